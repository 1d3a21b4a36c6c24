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

package reliability

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"kvsql/pkg/log"
)

var (
	// PanicCounter counts every panic recovered by this package.
	PanicCounter int64
	// PanicHandler, if set, is invoked after a panic is recovered and
	// logged.
	PanicHandler func(goroutineName string, panicValue interface{}, stack []byte)
)

// RecoverPanic recovers a panic in the current goroutine, logs it, and
// invokes PanicHandler if set. Use as `defer RecoverPanic("name")` at
// the top of any goroutine that must not crash the process.
func RecoverPanic(goroutineName string) {
	if r := recover(); r != nil {
		atomic.AddInt64(&PanicCounter, 1)
		stack := debug.Stack()

		log.Error("panic recovered",
			log.String("goroutine", goroutineName),
			log.String("panic_value", fmt.Sprintf("%v", r)),
			log.String("stack", string(stack)),
			log.Component("panic-recovery"))

		if PanicHandler != nil {
			PanicHandler(goroutineName, r, stack)
		}
	}
}

// SafeGo starts fn in a goroutine that recovers its own panics.
func SafeGo(name string, fn func()) {
	go func() {
		defer RecoverPanic(name)
		fn()
	}()
}

// SafeGoWithRestart starts fn in a goroutine that restarts itself after
// a panic, up to maxRestarts times (0 means unlimited).
func SafeGoWithRestart(name string, fn func(), maxRestarts int) {
	restartCount := 0

	var worker func()
	worker = func() {
		defer func() {
			if r := recover(); r != nil {
				atomic.AddInt64(&PanicCounter, 1)
				stack := debug.Stack()

				log.Error("panic recovered in auto-restart goroutine",
					log.String("goroutine", name),
					log.Int("restart_count", restartCount),
					log.String("panic_value", fmt.Sprintf("%v", r)),
					log.String("stack", string(stack)),
					log.Component("panic-recovery"))

				if PanicHandler != nil {
					PanicHandler(name, r, stack)
				}

				restartCount++
				if maxRestarts == 0 || restartCount <= maxRestarts {
					log.Info("restarting goroutine",
						log.String("goroutine", name),
						log.Int("attempt", restartCount+1),
						log.Component("panic-recovery"))
					go worker()
				} else {
					log.Warn("goroutine reached max restarts, not restarting",
						log.String("goroutine", name),
						log.Int("max_restarts", maxRestarts),
						log.Component("panic-recovery"))
				}
			}
		}()

		fn()
	}

	go worker()
}

// GetPanicCount returns the number of panics recovered so far.
func GetPanicCount() int64 {
	return atomic.LoadInt64(&PanicCounter)
}

// ResetPanicCount resets the panic counter to zero.
func ResetPanicCount() {
	atomic.StoreInt64(&PanicCounter, 0)
}
