// Copyright (c) 2026, Cobalt Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errors provides a small set of helpers on top of the standard
// library errors package, centered on the Log functions, which log an
// error (with the caller's file and line) and pass it through unchanged,
// so that error logging and error returning collapse into one call.
package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
)

// aliases for the standard library functions, so that this package
// can be used as a drop-in replacement for errors.

var (
	As     = errors.As
	Is     = errors.Is
	Join   = errors.Join
	New    = errors.New
	Unwrap = errors.Unwrap
)

// Errorf is a shorthand for [fmt.Errorf].
func Errorf(format string, a ...any) error {
	return fmt.Errorf(format, a...)
}

// CallerInfo returns string information about the caller
// at the given stack depth above this call, for error messages.
func CallerInfo(depth int) string {
	pc, file, line, ok := runtime.Caller(depth + 1)
	if !ok {
		return ""
	}
	name := ""
	if f := runtime.FuncForPC(pc); f != nil {
		name = f.Name()
	}
	return fmt.Sprintf("%s:%d (%s)", file, line, name)
}

// Log takes the given error and logs it if it is non-nil,
// returning it either way. Standard usage:
//
//	return errors.Log(doSomething())
func Log(err error) error {
	if err != nil {
		slog.Error(err.Error(), "from", CallerInfo(1))
	}
	return err
}

// Log1 is a version of [Log] for functions returning a value
// and an error:
//
//	v := errors.Log1(compute())
func Log1[T any](v T, err error) T {
	if err != nil {
		slog.Error(err.Error(), "from", CallerInfo(1))
	}
	return v
}

// Ignore1 ignores an error return value for a function
// returning a value and an error, when the error is known
// to be irrelevant.
func Ignore1[T any](v T, err error) T {
	return v
}

// Must panics if the given error is non-nil.
// It is for errors that can only arise from programming mistakes.
func Must(err error) {
	if err != nil {
		panic(err)
	}
}
