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

package log

import (
	"time"

	"go.uber.org/zap"
)

// Common field constructors, re-exported so callers only need to import
// this package rather than both log and zap.

func String(key, val string) zap.Field       { return zap.String(key, val) }
func Int64(key string, val int64) zap.Field  { return zap.Int64(key, val) }
func Int(key string, val int) zap.Field      { return zap.Int(key, val) }
func Uint64(key string, val uint64) zap.Field { return zap.Uint64(key, val) }
func Bool(key string, val bool) zap.Field    { return zap.Bool(key, val) }
func Duration(key string, val time.Duration) zap.Field { return zap.Duration(key, val) }
func Time(key string, val time.Time) zap.Field { return zap.Time(key, val) }
func Err(err error) zap.Field                { return zap.Error(err) }
func Any(key string, val interface{}) zap.Field { return zap.Any(key, val) }
func Namespace(key string) zap.Field         { return zap.Namespace(key) }

// Domain fields used across the storage, mvcc and catalog packages.

// Key logs a raw storage key.
func Key(key []byte) zap.Field {
	return zap.ByteString("key", key)
}

// Value logs a raw storage value, falling back to just its size once it
// gets large enough that logging the bytes themselves isn't useful.
func Value(value []byte) zap.Field {
	if len(value) > 1024 {
		return zap.Int("value_size", len(value))
	}
	return zap.ByteString("value", value)
}

// Version logs an mvcc transaction version.
func Version(v uint64) zap.Field {
	return zap.Uint64("version", v)
}

// Table logs a catalog table name.
func Table(name string) zap.Field {
	return zap.String("table", name)
}

// Engine logs a storage engine kind ("memory" or "disk").
func Engine(kind string) zap.Field {
	return zap.String("engine", kind)
}

// Operation logs the storage operation name (get/set/delete/scan/...).
func Operation(op string) zap.Field {
	return zap.String("operation", op)
}

// Component logs the subsystem a message originates from.
func Component(name string) zap.Field {
	return zap.String("component", name)
}

// Count logs a generic item count.
func Count(count int64) zap.Field {
	return zap.Int64("count", count)
}
