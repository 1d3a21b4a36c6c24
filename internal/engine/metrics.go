// Copyright 2025 The axfor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "kvsql"
	subsystem = "storage"
)

// Metrics holds the Prometheus instrumentation for engine operations.
type Metrics struct {
	OperationDuration *prometheus.HistogramVec
	OperationTotal    *prometheus.CounterVec
	OperationErrors   *prometheus.CounterVec
}

// NewMetrics registers the storage metrics against registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	return &Metrics{
		OperationDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "operation_duration_seconds",
				Help:      "Histogram of storage engine operation latencies.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"engine", "operation"},
		),
		OperationTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "operation_total",
				Help:      "Total number of storage engine operations.",
			},
			[]string{"engine", "operation"},
		),
		OperationErrors: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "operation_errors_total",
				Help:      "Total number of storage engine operation errors.",
			},
			[]string{"engine", "operation"},
		),
	}
}

// Observe records the outcome and latency of one operation.
func (m *Metrics) Observe(engineKind, operation string, start time.Time, err error) {
	m.OperationDuration.WithLabelValues(engineKind, operation).Observe(time.Since(start).Seconds())
	m.OperationTotal.WithLabelValues(engineKind, operation).Inc()
	if err != nil {
		m.OperationErrors.WithLabelValues(engineKind, operation).Inc()
	}
}

// InstrumentedEngine wraps an Engine with Metrics, recording every call.
type InstrumentedEngine struct {
	Engine
	kind    string
	metrics *Metrics
}

// Instrument wraps eng so every operation is recorded under kind
// ("memory" or "disk") in metrics.
func Instrument(eng Engine, kind string, metrics *Metrics) *InstrumentedEngine {
	return &InstrumentedEngine{Engine: eng, kind: kind, metrics: metrics}
}

func (e *InstrumentedEngine) Set(key, value []byte) error {
	start := time.Now()
	err := e.Engine.Set(key, value)
	e.metrics.Observe(e.kind, "set", start, err)
	return err
}

func (e *InstrumentedEngine) Get(key []byte) ([]byte, bool, error) {
	start := time.Now()
	v, found, err := e.Engine.Get(key)
	e.metrics.Observe(e.kind, "get", start, err)
	return v, found, err
}

func (e *InstrumentedEngine) Delete(key []byte) error {
	start := time.Now()
	err := e.Engine.Delete(key)
	e.metrics.Observe(e.kind, "delete", start, err)
	return err
}

func (e *InstrumentedEngine) Scan(rng Range) (*Iterator, error) {
	start := time.Now()
	it, err := e.Engine.Scan(rng)
	e.metrics.Observe(e.kind, "scan", start, err)
	return it, err
}

func (e *InstrumentedEngine) ScanPrefix(prefix []byte) (*Iterator, error) {
	start := time.Now()
	it, err := e.Engine.ScanPrefix(prefix)
	e.metrics.Observe(e.kind, "scan_prefix", start, err)
	return it, err
}
