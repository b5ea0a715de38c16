// Copyright (c) 2026, Cobalt Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"
	"log/slog"

	"github.com/cobaltgfx/cobalt/base/errors"
)

// Heap is a contiguous device allocation from which buffers and
// textures are placed at explicit offsets. A heap must outlive every
// resource placed in it; this is caller discipline, not reference
// counted. Destroy resources, flush the queue, then destroy the heap.
type Heap struct {
	// Kind determines CPU visibility and the resource states allowed
	// for placed resources.
	Kind HeapKind

	// Size is the heap size in bytes.
	Size int64

	dev      *Device
	backend  BackendHeap
	resident bool
}

// CreateHeap allocates a heap of the given kind and size. Fails with
// [ErrOutOfDeviceMemory] if the backend cannot satisfy the request.
// The heap is registered with the residency system and starts resident.
func (dv *Device) CreateHeap(kind HeapKind, size int64) (*Heap, error) {
	if size <= 0 {
		return nil, errors.Log(invalidArgf("CreateHeap: size must be positive, got %d", size))
	}
	bh, err := dv.backend.CreateHeap(kind, size)
	if err != nil {
		return nil, errors.Log(fmt.Errorf("%w: CreateHeap %s %d bytes: %w",
			ErrOutOfDeviceMemory, kind, size, err))
	}
	hp := &Heap{Kind: kind, Size: size, dev: dv, backend: bh, resident: true}
	dv.heaps[hp] = true
	dv.stats.Heaps++
	if Debug {
		slog.Info("gpu.CreateHeap", "kind", kind, "size", size)
	}
	return hp, nil
}

// Resident reports whether the heap is currently backed by physical
// device memory. See [Device.SetHeapResident].
func (hp *Heap) Resident() bool { return hp.resident }

// TextureAllocInfo returns the size and alignment footprint the given
// texture description requires within a heap. Callers must use this to
// compute placement offsets before calling [Heap.PlaceTexture], as the
// footprint depends on format and mip count.
func (dv *Device) TextureAllocInfo(desc *TextureDesc) AllocInfo {
	return dv.backend.TextureAllocInfo(desc)
}

// PlaceBuffer creates a buffer of the given size at the given offset
// within the heap. The offset must be aligned to
// [Limits.BufferPlacementAlign] and the range must fit in the heap.
func (hp *Heap) PlaceBuffer(offset, size int64, usage Usage) (*Buffer, error) {
	al := hp.dev.limits.BufferPlacementAlign
	switch {
	case size <= 0:
		return nil, errors.Log(invalidArgf("PlaceBuffer: size must be positive, got %d", size))
	case offset%al != 0:
		return nil, errors.Log(invalidArgf("PlaceBuffer: offset %d not aligned to %d", offset, al))
	case offset+size > hp.Size:
		return nil, errors.Log(invalidArgf("PlaceBuffer: range [%d, %d) exceeds heap size %d",
			offset, offset+size, hp.Size))
	}
	bb, err := hp.backend.PlaceBuffer(offset, size, usage)
	if err != nil {
		return nil, backendErr("PlaceBuffer", err)
	}
	bf := &Buffer{
		Resource: Resource{
			id:     hp.dev.newID(),
			heap:   hp,
			offset: offset,
			size:   size,
			state:  hp.Kind.initialState(),
			usage:  usage,
		},
		backend: bb,
	}
	hp.dev.stats.Buffers++
	return bf, nil
}

// PlaceTexture creates a texture at the given offset within the heap.
// The offset must respect the alignment from [Device.TextureAllocInfo]
// and textures can only be placed in device heaps.
func (hp *Heap) PlaceTexture(offset int64, desc *TextureDesc) (*Texture, error) {
	if hp.Kind != DeviceHeap {
		return nil, errors.Log(invalidArgf("PlaceTexture: textures require a device heap, not %s", hp.Kind))
	}
	if err := desc.validate(); err != nil {
		return nil, errors.Log(err)
	}
	info := hp.dev.TextureAllocInfo(desc)
	switch {
	case offset%info.Align != 0:
		return nil, errors.Log(invalidArgf("PlaceTexture %q: offset %d not aligned to %d",
			desc.Name, offset, info.Align))
	case offset+info.Size > hp.Size:
		return nil, errors.Log(invalidArgf("PlaceTexture %q: range [%d, %d) exceeds heap size %d",
			desc.Name, offset, offset+info.Size, hp.Size))
	}
	bt, err := hp.backend.PlaceTexture(offset, desc)
	if err != nil {
		return nil, backendErr("PlaceTexture", err)
	}
	tx := &Texture{
		Resource: Resource{
			id:     hp.dev.newID(),
			heap:   hp,
			offset: offset,
			size:   info.Size,
			state:  StateCommon,
			usage:  desc.Usage,
		},
		Desc:    *desc,
		backend: bt,
	}
	hp.dev.stats.Textures++
	return tx, nil
}

// Destroy releases the heap and removes it from the residency table.
// All placed resources must have been destroyed and no in-flight work
// may reference them: flush the owning queue first.
func (hp *Heap) Destroy() {
	if hp.backend == nil {
		return
	}
	delete(hp.dev.heaps, hp)
	hp.dev.stats.Heaps--
	hp.backend.Destroy()
	hp.backend = nil
}

// initialState is the permanent (upload/readback) or starting (device)
// state for resources placed in a heap of this kind.
func (hk HeapKind) initialState() ResourceState {
	switch hk {
	case UploadHeap:
		return StateGenericRead
	case ReadbackHeap:
		return StateCopyDst
	default:
		return StateCommon
	}
}
