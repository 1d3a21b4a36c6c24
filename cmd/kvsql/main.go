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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"kvsql/internal/catalog"
	"kvsql/internal/engine"
	"kvsql/internal/mvcc"
	"kvsql/pkg/config"
	"kvsql/pkg/health"
	"kvsql/pkg/log"
	"kvsql/pkg/metrics"
	"kvsql/pkg/reliability"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file; defaults used if omitted")
	flag.Parse()

	cfg, err := config.LoadConfigOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := log.InitFromConfig(&cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	eng, closeEngine, err := openEngine(cfg)
	if err != nil {
		log.Fatal("failed to open storage engine", log.Err(err), log.Engine(cfg.Storage.Engine))
	}

	registry := prometheus.NewRegistry()
	instrumented := engine.Instrument(eng, cfg.Storage.Engine, engine.NewMetrics(registry))

	m, err := mvcc.New(instrumented)
	if err != nil {
		log.Fatal("failed to start mvcc layer", log.Err(err))
	}

	cat := catalog.NewEngine(m)
	log.Info("kvsql engine ready",
		log.Engine(cfg.Storage.Engine),
		log.String("path", cfg.Storage.Path))

	shutdown := reliability.NewGracefulShutdown(15 * time.Second)
	shutdown.RegisterHook(reliability.PhaseCloseResources, func(ctx context.Context) error {
		return closeEngine()
	})

	if cfg.Monitoring.EnablePrometheus {
		zapLogger := log.GetLogger()
		ms := metrics.ServeMetrics(cfg.Monitoring.PrometheusAddr, registry, zapLogger.Zap())

		hs := health.NewHealthServer(zapLogger.Zap())
		hs.RegisterChecker(health.NewStoreChecker("catalog", func(ctx context.Context) error {
			tx, err := cat.Begin()
			if err != nil {
				return err
			}
			return tx.Rollback()
		}))
		if cfg.Storage.Engine == "disk" {
			hs.RegisterChecker(health.NewDiskSpaceChecker("disk", cfg.Storage.Path, 1, 90))
		}

		shutdown.RegisterHook(reliability.PhaseStopAccepting, func(ctx context.Context) error {
			return ms.Shutdown(ctx)
		})

		reliability.SafeGo("health-server", func() {
			addr := cfg.Monitoring.HealthAddr
			if err := health.StartHealthServer(addr, hs, zapLogger.Zap()); err != nil {
				log.Error("health server stopped", log.Err(err))
			}
		})
	}

	shutdown.Wait()
}

// openEngine constructs the configured storage engine and a matching
// close function.
func openEngine(cfg *config.Config) (engine.Engine, func() error, error) {
	switch cfg.Storage.Engine {
	case "memory":
		eng := engine.NewMemoryEngine()
		return eng, eng.Close, nil
	case "disk":
		var eng *engine.DiskEngine
		var err error
		if cfg.Storage.CompactOnOpen {
			eng, err = engine.NewCompactedDiskEngine(cfg.Storage.Path)
		} else {
			eng, err = engine.NewDiskEngine(cfg.Storage.Path)
		}
		if err != nil {
			return nil, nil, err
		}
		return eng, eng.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage engine: %s", cfg.Storage.Engine)
	}
}
