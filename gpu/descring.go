// Copyright (c) 2026, Cobalt Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"

	"github.com/cobaltgfx/cobalt/base/errors"
)

// DescriptorTable is a contiguous range of binding table slots handed
// out by the ring for one draw or dispatch.
type DescriptorTable struct {
	First int
	Count int
}

// DescriptorRing is a circular allocator of transient GPU-visible
// binding table ranges. Ranges are never explicitly freed: the write
// cursor simply wraps, and correctness is guaranteed by the frame
// fence discipline, which ensures a frame's region of the ring cannot
// be rewritten before the GPU has finished reading it. Size the ring
// from expected bindings per frame times the frame latency.
type DescriptorRing struct {
	arena    BackendDescriptorArena
	capacity int
	cursor   int

	// allocated counts total slots handed out, for diagnostics.
	allocated uint64
}

// newDescriptorRing creates the ring with its fixed backing arena.
func newDescriptorRing(backend Backend, capacity int) (*DescriptorRing, error) {
	arena, err := backend.CreateDescriptorArena(capacity)
	if err != nil {
		return nil, backendErr("CreateDescriptorArena", err)
	}
	return &DescriptorRing{arena: arena, capacity: capacity}, nil
}

// AllocateRange hands out a contiguous range of count slots, wrapping
// the cursor when the range would not fit at the end. It fails only if
// count exceeds the total capacity, which is a configuration error,
// not a steady-state runtime condition.
func (dr *DescriptorRing) AllocateRange(count int) (DescriptorTable, error) {
	if count > dr.capacity {
		return DescriptorTable{}, errors.Log(fmt.Errorf(
			"%w: descriptor range of %d slots exceeds ring capacity %d (ring misconfigured)",
			ErrOutOfDeviceMemory, count, dr.capacity))
	}
	if dr.cursor+count > dr.capacity {
		dr.cursor = 0
	}
	tb := DescriptorTable{First: dr.cursor, Count: count}
	dr.cursor += count
	dr.allocated += uint64(count)
	return tb, nil
}

// write fills one slot of an allocated range.
func (dr *DescriptorRing) write(tb DescriptorTable, slot int, w DescriptorWrite) error {
	if slot < 0 || slot >= tb.Count {
		return errors.Log(invalidArgf("DescriptorRing.write: slot %d outside range of %d", slot, tb.Count))
	}
	return backendErr("DescriptorArena.Write", dr.arena.Write(tb.First+slot, w))
}

// Capacity returns the fixed total slot capacity.
func (dr *DescriptorRing) Capacity() int { return dr.capacity }

// release destroys the backing arena.
func (dr *DescriptorRing) release() {
	if dr.arena != nil {
		dr.arena.Destroy()
		dr.arena = nil
	}
}
