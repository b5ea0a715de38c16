// Copyright (c) 2026, Cobalt Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"

	"github.com/cobaltgfx/cobalt/base/errors"
)

// Error taxonomy for the entire layer. Every error returned by this
// package wraps exactly one of these sentinels, so callers can classify
// failures with [errors.Is] without parsing messages.
var (
	// ErrInvalidArgument is a caller contract violation: bad alignment,
	// mismatched vertex attribute counts, out-of-range sizes, etc.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidCommandListState is an operation attempted in the wrong
	// recording state, such as binding a second pipeline to a list, or
	// writing a streaming buffer twice within one frame. These indicate
	// bugs in the recording sequence, not recoverable conditions.
	ErrInvalidCommandListState = errors.New("invalid command list state")

	// ErrOutOfDeviceMemory means the backend could not satisfy a device
	// memory request.
	ErrOutOfDeviceMemory = errors.New("out of device memory")

	// ErrOutOfCPUMemory means a host-visible allocation failed.
	ErrOutOfCPUMemory = errors.New("out of cpu memory")

	// ErrShaderCompile wraps compiler diagnostics, including the shader
	// name and the full diagnostic text.
	ErrShaderCompile = errors.New("shader compile error")

	// ErrNoSuitableDevice is an initialization-time adapter/device
	// selection failure. It is fatal to initialization.
	ErrNoSuitableDevice = errors.New("no suitable device")

	// ErrBackend is an opaque native call failure. Backend errors are
	// logged with the originating call's name and never retried.
	ErrBackend = errors.New("backend error")
)

// invalidArgf returns an [ErrInvalidArgument] with formatted detail.
func invalidArgf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidArgument}, args...)...)
}

// invalidStatef returns an [ErrInvalidCommandListState] with formatted detail.
func invalidStatef(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidCommandListState}, args...)...)
}

// backendErr wraps a raw backend error with the originating call name,
// logging it per the propagation policy. Returns nil if err is nil.
func backendErr(call string, err error) error {
	if err == nil {
		return nil
	}
	return errors.Log(fmt.Errorf("%w: %s: %w", ErrBackend, call, err))
}
