// Copyright (c) 2026, Cobalt Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import "image"

// Backend is the boundary between the core layer and a native graphics
// API. The core calls a backend only through this interface and the
// object interfaces it hands out; everything above it (state tracking,
// descriptor rings, frame pacing, pipeline validation) is backend
// agnostic. Implementations live in subpackages (nullgpu, webgpu).
type Backend interface {
	// Name identifies the backend for diagnostics.
	Name() string

	// Limits returns the implementation limits. They are immutable for
	// the lifetime of the backend.
	Limits() Limits

	// NewQueue creates a native submission queue with its own fence.
	NewQueue() (BackendQueue, error)

	// CreateHeap allocates a contiguous device allocation of the given
	// kind. Fails if the backend cannot satisfy the request.
	CreateHeap(kind HeapKind, size int64) (BackendHeap, error)

	// TextureAllocInfo returns the placement size and alignment a
	// texture with the given description requires. Callers must query
	// this before placing a texture in a heap.
	TextureAllocInfo(desc *TextureDesc) AllocInfo

	// Compile compiles one shader stage. The returned diagnostics on
	// failure include the full compiler output.
	Compile(stage ShaderStage, name, entry, source string) (BackendShader, error)

	// NewRenderPipeline builds a native render pipeline object from
	// compiled stages plus the core-computed binding layout.
	NewRenderPipeline(desc *RenderPipelineDesc) (BackendPipeline, error)

	// NewComputePipeline builds a native compute pipeline object.
	NewComputePipeline(desc *ComputePipelineDesc) (BackendPipeline, error)

	// CreateDescriptorArena allocates the fixed GPU-visible backing
	// storage for a descriptor ring of the given slot capacity.
	CreateDescriptorArena(capacity int) (BackendDescriptorArena, error)

	// CreateSwapchain creates the presentation swapchain for the
	// output surface. size is the current drawable size.
	CreateSwapchain(size image.Point, format TextureFormat) (BackendSwapchain, error)

	// CreateQueryPool allocates count GPU timestamp queries.
	CreateQueryPool(count int) (BackendQueryPool, error)

	// Release tears down the backend. All objects created from it must
	// have been destroyed.
	Release()
}

// Limits are the backend implementation limits the core validates
// against. They are fixed at device creation.
type Limits struct {
	// BufferPlacementAlign is the required alignment for placed buffer
	// offsets within a heap, commonly 64 KiB.
	BufferPlacementAlign int64

	// TexturePlacementAlign is the required alignment for placed
	// texture offsets within a heap.
	TexturePlacementAlign int64

	// MaxPushConstantBytes is the per-stage limit on direct inline
	// constants.
	MaxPushConstantBytes int

	// MaxSamplers is the maximum number of static samplers a pipeline
	// can declare.
	MaxSamplers int

	// TimestampFrequency is the number of timestamp ticks per second.
	TimestampFrequency uint64
}

// AllocInfo is the placement footprint of a texture: its total size
// within a heap and its required offset alignment.
type AllocInfo struct {
	Size  int64
	Align int64
}

// BackendQueue is a native submission queue with a monotonic fence.
type BackendQueue interface {
	// Submit submits closed lists for execution, in order.
	Submit(lists ...BackendList) error

	// NewList creates a new native command list in recording state.
	NewList() (BackendList, error)

	// Signal instructs the GPU to signal the fence with value once all
	// previously submitted work completes.
	Signal(value uint64) error

	// Completed returns the last fence value the GPU has completed.
	Completed() uint64

	// Wait blocks until Completed() >= value. The wait is unbounded.
	Wait(value uint64)

	// Release destroys the queue. All in-flight work must be complete.
	Release()
}

// BackendHeap is a native memory heap from which resources are placed.
type BackendHeap interface {
	// PlaceBuffer creates a buffer at the given offset within the heap.
	// Alignment has already been validated by the core.
	PlaceBuffer(offset, size int64, usage Usage) (BackendBuffer, error)

	// PlaceTexture creates a texture at the given offset within the heap.
	PlaceTexture(offset int64, desc *TextureDesc) (BackendTexture, error)

	// SetResident informs the backend residency system whether this
	// heap should be backed by physical device memory.
	SetResident(resident bool) error

	// Destroy releases the heap. All placed resources must have been
	// destroyed first; this is caller discipline, not checked here.
	Destroy()
}

// BackendBuffer is a native placed buffer.
type BackendBuffer interface {
	// Write copies data into the buffer at off. Only valid for buffers
	// placed in an upload heap.
	Write(off int64, data []byte) error

	// Read copies buffer contents at off into data. Only valid for
	// buffers placed in a readback heap, after a flush.
	Read(off int64, data []byte) error

	// Destroy releases the buffer.
	Destroy()
}

// BackendTexture is a native placed texture or swapchain image.
type BackendTexture interface {
	Destroy()
}

// BackendShader is a compiled native shader stage.
type BackendShader interface {
	Destroy()
}

// BackendPipeline is a native pipeline state object.
type BackendPipeline interface {
	Destroy()
}

// DescriptorWrite is one descriptor written into an arena slot.
type DescriptorWrite struct {
	Kind    BindingKind
	Buffer  BackendBuffer
	Texture BackendTexture
	Offset  int64
	Size    int64
}

// BackendDescriptorArena is the fixed backing storage of a descriptor
// ring: a GPU-visible array of binding slots addressed by index.
type BackendDescriptorArena interface {
	// Write fills one slot. Slots are recycled by ring wrapping; the
	// frame fence discipline guarantees the GPU is done with a slot
	// before it is rewritten.
	Write(slot int, w DescriptorWrite) error

	Destroy()
}

// BackendSwapchain is the native presentation chain.
type BackendSwapchain interface {
	// Acquire returns the texture to render into this frame.
	Acquire() (BackendTexture, error)

	// Present queues the most recently acquired texture for display.
	Present() error

	// Resize recreates the swapchain images at the new size. Nothing
	// may be in flight; the core flushes before calling this.
	Resize(size image.Point) error

	Destroy()
}

// BackendQueryPool is a pool of GPU timestamp queries.
type BackendQueryPool interface {
	// Resolve returns the timestamp tick values for queries
	// [first, first+count). Only valid once the writing frame's fence
	// has signaled.
	Resolve(first, count int) ([]uint64, error)

	Destroy()
}

// BackendList is a native command list in recording state.
// The core performs all state validation before calling into it.
type BackendList interface {
	// Transition records a resource state transition barrier.
	Transition(res any, from, to ResourceState)

	// SetPipeline sets the pipeline for subsequent draws/dispatches.
	SetPipeline(pl BackendPipeline)

	// SetRenderTarget sets the output color and optional depth target
	// and begins rendering to them.
	SetRenderTarget(color BackendTexture, depth BackendTexture)

	// SetDescriptorTable binds a contiguous descriptor range from the
	// arena, as laid out at pipeline creation.
	SetDescriptorTable(arena BackendDescriptorArena, first, count int)

	// SetPushConstants sets direct inline constants for a root register.
	SetPushConstants(stages ShaderStage, register int, data []byte)

	// SetVertexBuffer binds a vertex buffer to an input slot.
	SetVertexBuffer(slot int, buf BackendBuffer, offset int64)

	// SetIndexBuffer binds the index buffer (uint32 indices).
	SetIndexBuffer(buf BackendBuffer, offset int64)

	// Draw draws non-indexed primitives.
	Draw(vertexCount, instanceCount int)

	// DrawIndexed draws indexed primitives.
	DrawIndexed(indexCount, instanceCount int)

	// Dispatch dispatches compute thread groups.
	Dispatch(x, y, z int)

	// CopyBuffer copies a byte range between buffers.
	CopyBuffer(src BackendBuffer, srcOff int64, dst BackendBuffer, dstOff, size int64)

	// CopyBufferToTexture copies tightly packed texel rows from a
	// buffer into mip level 0 of a texture.
	CopyBufferToTexture(src BackendBuffer, srcOff int64, dst BackendTexture, desc *TextureDesc)

	// WriteTimestamp writes the GPU clock into the given query.
	WriteTimestamp(pool BackendQueryPool, query int)

	// BeginEvent/EndEvent bracket a named debug region.
	BeginEvent(name string)
	EndEvent()

	// Close ends recording. The list can then be submitted once, after
	// which Reset must be called before recording again.
	Close() error

	// Reset discards recorded commands and reopens for recording.
	Reset() error

	// Destroy releases the list.
	Destroy()
}

// RenderPipelineDesc is what a backend needs to build a native render
// pipeline: compiled stages, the core-computed binding layout, vertex
// input layout, and fixed function state.
type RenderPipelineDesc struct {
	Name    string
	Vertex  BackendShader
	Frag    BackendShader
	Layout  *BindingLayout
	Attribs []VertexAttribute

	Topology     Topology
	Cull         CullMode
	Blend        BlendMode
	DepthCompare CompareFunc
	DepthWrite   bool
	ColorFormat  TextureFormat
	DepthFormat  TextureFormat
	Samplers     []SamplerConfig
}

// ComputePipelineDesc is what a backend needs to build a native
// compute pipeline.
type ComputePipelineDesc struct {
	Name     string
	Compute  BackendShader
	Layout   *BindingLayout
	Samplers []SamplerConfig
}
