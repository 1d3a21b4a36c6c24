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

// Package errs defines the error kinds shared across the storage stack.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an Error so callers can branch on failure category
// without parsing messages.
type Kind int

const (
	// Parse indicates malformed input the caller gave us.
	Parse Kind = iota
	// WriteConflict indicates a transaction lost a write race and must
	// be retried by the caller.
	WriteConflict
	// Internal indicates a storage-engine invariant was violated.
	Internal
)

func (k Kind) String() string {
	switch k {
	case Parse:
		return "parse error"
	case WriteConflict:
		return "write conflict"
	case Internal:
		return "internal error"
	default:
		return "unknown error"
	}
}

// Error is the single error type returned across the engine, keycode and
// mvcc packages.
type Error struct {
	Kind  Kind
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.msg == "" {
		return e.Kind.String()
	}
	if e.Kind == WriteConflict {
		return e.msg
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is an *Error with the same Kind, so callers
// can write errors.Is(err, errs.ErrWriteConflict).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// ErrWriteConflict is the sentinel for the single, parameterless
// WriteConflict case — compare against it with errors.Is.
var ErrWriteConflict = &Error{Kind: WriteConflict, msg: "write conflict, try transaction"}

// Parsef builds a Parse-kind error.
func Parsef(format string, args ...any) error {
	return &Error{Kind: Parse, msg: fmt.Sprintf(format, args...)}
}

// Internalf builds an Internal-kind error.
func Internalf(format string, args ...any) error {
	return &Error{Kind: Internal, msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an Internal-kind error that preserves cause for errors.As
// and errors.Unwrap.
func Wrap(cause error, format string, args ...any) error {
	return &Error{Kind: Internal, msg: fmt.Sprintf(format, args...), cause: cause}
}

// IsWriteConflict reports whether err is (or wraps) a WriteConflict error.
func IsWriteConflict(err error) bool {
	return errors.Is(err, ErrWriteConflict)
}

// KindOf extracts the Kind of err, defaulting to Internal for errors not
// produced by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
