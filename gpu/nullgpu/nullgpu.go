// Copyright (c) 2026, Cobalt Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package nullgpu is a pure software [gpu.Backend] with no native API
// behind it. Buffers are byte slices, copies execute for real at
// submission, and fences are an explicit counter, so the full core
// layer (state tracking, descriptor rings, frame pacing, streaming)
// runs and is testable on any machine with no GPU at all.
package nullgpu

import (
	"fmt"
	"image"
	"strings"

	"github.com/cobaltgfx/cobalt/gpu"
)

// Backend is the software backend. The zero value is not usable; use
// [New].
type Backend struct {
	limits gpu.Limits

	// ManualFences disables automatic fence completion at Signal:
	// completion only advances when a CPU wait happens or a test calls
	// [Queue.Advance], which lets tests hold frames "on the GPU".
	ManualFences bool

	stats  Stats
	queues []*Queue
}

// Stats counts live backend objects and memory, for leak tests.
type Stats struct {
	Heaps     int
	HeapBytes int64
	Buffers   int
	Textures  int
	Lists     int
}

// New returns a software backend with defaults sized for tests: small
// placement alignments so test heaps stay small.
func New() *Backend {
	return &Backend{
		limits: gpu.Limits{
			BufferPlacementAlign:  256,
			TexturePlacementAlign: 4096,
			MaxPushConstantBytes:  256,
			MaxSamplers:           8,
			TimestampFrequency:    1_000_000_000,
		},
	}
}

func (b *Backend) Name() string       { return "null" }
func (b *Backend) Limits() gpu.Limits { return b.limits }

// Stats returns the live object counts.
func (b *Backend) Stats() Stats { return b.stats }

func (b *Backend) NewQueue() (gpu.BackendQueue, error) {
	q := &Queue{b: b}
	b.queues = append(b.queues, q)
	return q, nil
}

// LastQueue returns the most recently created queue, for test
// inspection of execution counters and manual fence control.
func (b *Backend) LastQueue() *Queue {
	if len(b.queues) == 0 {
		return nil
	}
	return b.queues[len(b.queues)-1]
}

func (b *Backend) CreateHeap(kind gpu.HeapKind, size int64) (gpu.BackendHeap, error) {
	h := &heap{b: b, kind: kind, data: make([]byte, size), resident: true}
	b.stats.Heaps++
	b.stats.HeapBytes += size
	return h, nil
}

func (b *Backend) TextureAllocInfo(desc *gpu.TextureDesc) gpu.AllocInfo {
	sz := textureBytes(desc)
	al := b.limits.TexturePlacementAlign
	return gpu.AllocInfo{Size: (sz + al - 1) / al * al, Align: al}
}

// textureBytes is the tightly packed size of all mip levels.
func textureBytes(desc *gpu.TextureDesc) int64 {
	var sz int64
	w, h := desc.Width, desc.Height
	for range desc.MipLevels {
		sz += int64(w * h * desc.Format.Bytes())
		if w > 1 {
			w /= 2
		}
		if h > 1 {
			h /= 2
		}
	}
	return sz
}

// Compile accepts any source containing a function with the given
// entry name, which is enough to exercise the core's compile error
// paths without a real compiler.
func (b *Backend) Compile(stage gpu.ShaderStage, name, entry, source string) (gpu.BackendShader, error) {
	if !strings.Contains(source, "fn "+entry) {
		return nil, fmt.Errorf("%s: entry point %q not found", name, entry)
	}
	return &shader{stage: stage, name: name, source: source}, nil
}

func (b *Backend) NewRenderPipeline(desc *gpu.RenderPipelineDesc) (gpu.BackendPipeline, error) {
	return &pipeline{name: desc.Name}, nil
}

func (b *Backend) NewComputePipeline(desc *gpu.ComputePipelineDesc) (gpu.BackendPipeline, error) {
	return &pipeline{name: desc.Name}, nil
}

func (b *Backend) CreateDescriptorArena(capacity int) (gpu.BackendDescriptorArena, error) {
	return &arena{slots: make([]gpu.DescriptorWrite, capacity)}, nil
}

func (b *Backend) CreateSwapchain(size image.Point, format gpu.TextureFormat) (gpu.BackendSwapchain, error) {
	sc := &swapchain{b: b, format: format}
	sc.create(size)
	return sc, nil
}

func (b *Backend) CreateQueryPool(count int) (gpu.BackendQueryPool, error) {
	return &queryPool{ticks: make([]uint64, count)}, nil
}

func (b *Backend) Release() {}

// heap is a plain byte slice; placed buffers alias into it, so copies
// between buffers in the same heap behave like the real thing.
type heap struct {
	b        *Backend
	kind     gpu.HeapKind
	data     []byte
	resident bool
}

func (h *heap) PlaceBuffer(offset, size int64, usage gpu.Usage) (gpu.BackendBuffer, error) {
	h.b.stats.Buffers++
	return &buffer{h: h, data: h.data[offset : offset+size]}, nil
}

func (h *heap) PlaceTexture(offset int64, desc *gpu.TextureDesc) (gpu.BackendTexture, error) {
	sz := textureBytes(desc)
	if offset+sz > int64(len(h.data)) {
		return nil, fmt.Errorf("texture %q does not fit in heap", desc.Name)
	}
	h.b.stats.Textures++
	return &texture{b: h.b, data: h.data[offset : offset+sz], desc: *desc}, nil
}

func (h *heap) SetResident(resident bool) error {
	h.resident = resident
	return nil
}

func (h *heap) Destroy() {
	h.b.stats.Heaps--
	h.b.stats.HeapBytes -= int64(len(h.data))
	h.data = nil
}

type buffer struct {
	h    *heap
	data []byte
}

func (bf *buffer) Write(off int64, data []byte) error {
	copy(bf.data[off:], data)
	return nil
}

func (bf *buffer) Read(off int64, data []byte) error {
	copy(data, bf.data[off:])
	return nil
}

func (bf *buffer) Destroy() { bf.h.b.stats.Buffers-- }

// Bytes exposes the backing storage, for test assertions on copy
// results without going through a readback heap.
func (bf *buffer) Bytes() []byte { return bf.data }

type texture struct {
	b    *Backend
	data []byte
	desc gpu.TextureDesc
}

func (tx *texture) Destroy() { tx.b.stats.Textures-- }

type shader struct {
	stage  gpu.ShaderStage
	name   string
	source string
}

func (sh *shader) Destroy() {}

type pipeline struct {
	name string
}

func (pl *pipeline) Destroy() {}

// arena is a plain slice of descriptor writes; tests can inspect what
// the core wrote into each slot.
type arena struct {
	slots []gpu.DescriptorWrite

	// writes counts total slot writes, including rewrites after the
	// ring wraps.
	writes int
}

func (ar *arena) Write(slot int, w gpu.DescriptorWrite) error {
	if slot < 0 || slot >= len(ar.slots) {
		return fmt.Errorf("descriptor slot %d out of range %d", slot, len(ar.slots))
	}
	ar.slots[slot] = w
	ar.writes++
	return nil
}

func (ar *arena) Destroy() {}

type swapchain struct {
	b      *Backend
	size   image.Point
	format gpu.TextureFormat
	images []*texture
	next   int
}

func (sc *swapchain) create(size image.Point) {
	sc.size = size
	sc.images = make([]*texture, 2)
	for i := range sc.images {
		sc.b.stats.Textures++
		sc.images[i] = &texture{
			b:    sc.b,
			data: make([]byte, size.X*size.Y*sc.format.Bytes()),
			desc: gpu.TextureDesc{
				Name: "backbuffer", Format: sc.format,
				Width: size.X, Height: size.Y, MipLevels: 1,
				Usage: gpu.UsageRenderTarget,
			},
		}
	}
}

func (sc *swapchain) Acquire() (gpu.BackendTexture, error) {
	tx := sc.images[sc.next]
	sc.next = (sc.next + 1) % len(sc.images)
	return tx, nil
}

func (sc *swapchain) Present() error { return nil }

func (sc *swapchain) Resize(size image.Point) error {
	sc.destroyImages()
	sc.create(size)
	sc.next = 0
	return nil
}

func (sc *swapchain) destroyImages() {
	for _, tx := range sc.images {
		tx.Destroy()
	}
	sc.images = nil
}

func (sc *swapchain) Destroy() { sc.destroyImages() }

type queryPool struct {
	ticks []uint64
}

func (qp *queryPool) Resolve(first, count int) ([]uint64, error) {
	if first < 0 || first+count > len(qp.ticks) {
		return nil, fmt.Errorf("query range [%d, %d) out of pool size %d", first, first+count, len(qp.ticks))
	}
	out := make([]uint64, count)
	copy(out, qp.ticks[first:first+count])
	return out, nil
}

func (qp *queryPool) Destroy() {}
