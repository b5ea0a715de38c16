// Copyright (c) 2026, Cobalt Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"

	"github.com/cobaltgfx/cobalt/base/errors"
)

// FrameRing is an N-slot ring of per-frame resources, indexed by
// frameIndex % N, where N is the frame latency. Each slot carries the
// fence value recorded the last time the slot was used; the slot must
// not be touched by the CPU again until that fence has signaled. The
// renderer enforces this by waiting at the start of each frame; see
// [Renderer.BeginFrame].
type FrameRing[T any] struct {
	slots  []T
	fences []uint64
}

// NewFrameRing creates a ring of n slots, initializing each with init
// (which may be nil for zero values).
func NewFrameRing[T any](n int, init func(slot int) T) *FrameRing[T] {
	fr := &FrameRing[T]{
		slots:  make([]T, n),
		fences: make([]uint64, n),
	}
	if init != nil {
		for i := range fr.slots {
			fr.slots[i] = init(i)
		}
	}
	return fr
}

// N returns the number of slots (the frame latency).
func (fr *FrameRing[T]) N() int { return len(fr.slots) }

// Slot returns the slot for the given frame index.
func (fr *FrameRing[T]) Slot(frame uint64) *T {
	return &fr.slots[frame%uint64(len(fr.slots))]
}

// Fence returns the fence value recorded the last time this frame's
// slot was used; the CPU must wait on it before reusing the slot.
func (fr *FrameRing[T]) Fence(frame uint64) uint64 {
	return fr.fences[frame%uint64(len(fr.fences))]
}

// SetFence records the fence value gating the next reuse of this
// frame's slot.
func (fr *FrameRing[T]) SetFence(frame uint64, value uint64) {
	fr.fences[frame%uint64(len(fr.fences))] = value
}

// All returns the underlying slot storage, for teardown iteration.
func (fr *FrameRing[T]) All() []T { return fr.slots }

// StreamingBuffer multiplexes CPU writes across the frame latency: it
// owns one upload-visible buffer instance per frame slot, and
// optionally copies into a single device-local destination each frame.
// Without a destination, bind the current upload instance directly
// (suitable for per-frame constant data).
//
// A streaming buffer may be written at most once per frame index; a
// second write within the same frame is a programming error.
type StreamingBuffer struct {
	// Name is used in diagnostics.
	Name string

	// Size is the payload size in bytes.
	Size int64

	dev    *Device
	heap   *Heap
	upload []*Buffer
	dst    *Buffer
}

// NewStreamingBuffer creates a streaming buffer of the given payload
// size with frames upload instances (use the device's FramesInFlight),
// copying into dst each written frame, or bound directly if dst is
// nil.
func (dv *Device) NewStreamingBuffer(name string, size int64, frames int, dst *Buffer) (*StreamingBuffer, error) {
	if frames < 1 {
		return nil, errors.Log(invalidArgf("NewStreamingBuffer %q: frames must be >= 1, got %d", name, frames))
	}
	if dst != nil && dst.size < size {
		return nil, errors.Log(invalidArgf("NewStreamingBuffer %q: destination size %d < payload size %d",
			name, dst.size, size))
	}
	al := dv.limits.BufferPlacementAlign
	stride := (size + al - 1) / al * al
	hp, err := dv.CreateHeap(UploadHeap, stride*int64(frames))
	if err != nil {
		return nil, err
	}
	sb := &StreamingBuffer{Name: name, Size: size, dev: dv, heap: hp, dst: dst}
	for i := range frames {
		bf, err := hp.PlaceBuffer(int64(i)*stride, size, UsageCopySrc|UsageConstant)
		if err != nil {
			sb.Destroy()
			return nil, err
		}
		sb.upload = append(sb.upload, bf)
	}
	return sb, nil
}

// Current returns the upload instance for the given frame index, for
// binding directly when there is no device-local destination.
func (sb *StreamingBuffer) Current(frame uint64) *Buffer {
	return sb.upload[frame%uint64(len(sb.upload))]
}

// Destination returns the device-local destination, or nil.
func (sb *StreamingBuffer) Destination() *Buffer { return sb.dst }

// WriteFrame writes the payload for the list's frame index into the
// frame's upload instance and, if a destination is configured, records
// the copy into it on the list. Writing the same frame index twice is
// rejected with [ErrInvalidCommandListState]: each instance's contents
// must stay stable until its frame's fence signals.
func (sb *StreamingBuffer) WriteFrame(cl *CommandList, data []byte) error {
	if int64(len(data)) > sb.Size {
		return errors.Log(invalidArgf("StreamingBuffer %q: write of %d bytes exceeds size %d",
			sb.Name, len(data), sb.Size))
	}
	frame := cl.frameIndex
	up := sb.Current(frame)
	if up.lastFrameWritten == frame {
		return errors.Log(fmt.Errorf(
			"%w: StreamingBuffer %q: second write within frame %d", ErrInvalidCommandListState, sb.Name, frame))
	}
	if err := up.Write(0, data); err != nil {
		return err
	}
	up.lastFrameWritten = frame
	if sb.dst != nil {
		return cl.CopyBuffer(up, 0, sb.dst, 0, int64(len(data)))
	}
	return nil
}

// Destroy releases the upload instances and their heap. The owning
// queue must be flushed first if any instance may be in flight.
func (sb *StreamingBuffer) Destroy() {
	for _, bf := range sb.upload {
		if bf != nil {
			bf.Destroy()
		}
	}
	sb.upload = nil
	if sb.heap != nil {
		sb.heap.Destroy()
		sb.heap = nil
	}
}
