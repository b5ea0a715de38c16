// Copyright (c) 2026, Cobalt Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gpu is a thin, explicit GPU abstraction layer in the style of
// Direct3D12-class APIs. It provides memory heaps with placed buffer and
// texture resources, command lists that insert the minimum number of
// resource state transition barriers automatically, fence-based command
// queues, a transient descriptor ring allocator, and an N-buffered frame
// resource ring that makes CPU-ahead-of-GPU rendering safe.
//
// All native calls go through the [Backend] interface; the core contains
// no backend-specific code. The [Device] is the explicit root object:
// there is no package-level GPU state other than the [Debug] flag.
//
// Synchronization is deliberately simple: the only blocking operations
// are [CommandQueue.WaitOnCPU] and [CommandQueue.Flush], which wait on a
// monotonically increasing fence counter. These waits are unbounded: a
// hung GPU or driver stalls the calling goroutine indefinitely. This is
// a known limitation, inherited from the explicit-fence model, and is
// not papered over with speculative timeouts.
//
// Recording and submission are single threaded per queue: the pending
// resource state table kept by each command list only coordinates with
// the committed state of resources under the documented precondition
// that lists are submitted in the order they were recorded.
package gpu
