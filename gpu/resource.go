// Copyright (c) 2026, Cobalt Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"github.com/cobaltgfx/cobalt/base/errors"
)

// Resource is the shared record of a placed buffer or texture: a stable
// identifier, its location within its heap, and its last committed GPU
// state. The committed state is the single source of truth that command
// lists read and write at submission time; it is only meaningful under
// the precondition that lists are submitted in recording order.
type Resource struct {
	id     uint64
	heap   *Heap
	offset int64
	size   int64

	// state is the last state committed by an executed command list
	// (or the initial state for a fresh resource). The pending state
	// tables inside recording command lists do not touch it until
	// [CommandQueue.Execute].
	state ResourceState

	usage Usage
}

// ID returns the process-unique identifier used for state tracking.
func (rs *Resource) ID() uint64 { return rs.id }

// Heap returns the heap this resource is placed in (non-owning).
func (rs *Resource) Heap() *Heap { return rs.heap }

// Size returns the resource's placement size in bytes.
func (rs *Resource) Size() int64 { return rs.size }

// State returns the last committed GPU state. Once a list touching
// this resource is executed, the queue's fence is the synchronization
// point for reuse, not this field.
func (rs *Resource) State() ResourceState { return rs.state }

// Usage returns the declared usage flags.
func (rs *Resource) Usage() Usage { return rs.usage }

// Buffer is a placed linear allocation.
type Buffer struct {
	Resource

	backend BackendBuffer

	// lastFrameWritten stamps the most recent frame index a streaming
	// write touched this buffer, enforcing the one-write-per-frame
	// invariant. Zero means never written.
	lastFrameWritten uint64
}

// Write copies data into the buffer at the given offset. Only valid
// for buffers placed in an upload heap; the data becomes visible to
// GPU reads in subsequently submitted lists.
func (bf *Buffer) Write(off int64, data []byte) error {
	if bf.heap.Kind != UploadHeap {
		return errors.Log(invalidArgf("Buffer.Write: requires an upload heap, not %s", bf.heap.Kind))
	}
	if off < 0 || off+int64(len(data)) > bf.size {
		return errors.Log(invalidArgf("Buffer.Write: range [%d, %d) exceeds buffer size %d",
			off, off+int64(len(data)), bf.size))
	}
	return backendErr("Buffer.Write", bf.backend.Write(off, data))
}

// ReadSync flushes the queue and copies the buffer contents at off
// into data. Only valid for buffers placed in a readback heap. The
// flush guarantees all writes to the buffer have completed; it is a
// blocking convenience, not a steady-state path.
func (bf *Buffer) ReadSync(cq *CommandQueue, off int64, data []byte) error {
	if bf.heap.Kind != ReadbackHeap {
		return errors.Log(invalidArgf("Buffer.ReadSync: requires a readback heap, not %s", bf.heap.Kind))
	}
	if off < 0 || off+int64(len(data)) > bf.size {
		return errors.Log(invalidArgf("Buffer.ReadSync: range [%d, %d) exceeds buffer size %d",
			off, off+int64(len(data)), bf.size))
	}
	cq.Flush()
	return backendErr("Buffer.Read", bf.backend.Read(off, data))
}

// Destroy releases the buffer. The caller must guarantee no submitted
// work still references it (flush the queue if unsure).
func (bf *Buffer) Destroy() {
	if bf.backend == nil {
		return
	}
	bf.heap.dev.stats.Buffers--
	bf.backend.Destroy()
	bf.backend = nil
}

// TextureDesc describes a texture to be placed in a heap.
type TextureDesc struct {
	// Name is used in diagnostics and debug events.
	Name string

	Format TextureFormat
	Width  int
	Height int

	// MipLevels must be at least 1.
	MipLevels int

	Usage Usage
}

func (td *TextureDesc) validate() error {
	switch {
	case td.Format == UndefinedFormat:
		return invalidArgf("texture %q: undefined format", td.Name)
	case td.Width <= 0 || td.Height <= 0:
		return invalidArgf("texture %q: resolution %dx%d not positive", td.Name, td.Width, td.Height)
	case td.MipLevels < 1:
		return invalidArgf("texture %q: mip levels must be >= 1, got %d", td.Name, td.MipLevels)
	}
	return nil
}

// Texture is a placed 2D texture.
type Texture struct {
	Resource

	// Desc is the creation description. Read-only.
	Desc TextureDesc

	backend BackendTexture
}

// Destroy releases the texture. Same in-flight discipline as
// [Buffer.Destroy].
func (tx *Texture) Destroy() {
	if tx.backend == nil {
		return
	}
	if tx.heap != nil { // swapchain backbuffers are not placed and not counted
		tx.heap.dev.stats.Textures--
	}
	tx.backend.Destroy()
	tx.backend = nil
}
