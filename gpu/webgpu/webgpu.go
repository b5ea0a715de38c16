// Copyright (c) 2026, Cobalt Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package webgpu adapts the core [gpu.Backend] interface onto WebGPU
// via github.com/cogentcore/webgpu. WebGPU manages resource states and
// memory residency itself, so several explicit concepts are emulated:
// heaps are bookkeeping records whose placed resources are independent
// native objects, transition barriers are no-ops, push constants are
// bound as a small uniform buffer, and fences map onto device polling.
package webgpu

import (
	"fmt"
	"image"

	"github.com/cobaltgfx/cobalt/gpu"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/naga"
)

// theInstance is the shared WebGPU instance; surfaces must be created
// from the same instance as the adapter, so it is package state rather
// than per backend.
var theInstance *wgpu.Instance

// Instance returns the shared WebGPU instance, creating it on first
// use.
func Instance() *wgpu.Instance {
	if theInstance == nil {
		theInstance = wgpu.CreateInstance(nil)
	}
	return theInstance
}

// Backend is the WebGPU backend. Use [New] with a surface from
// [GLFWCreateWindow] or equivalent; a nil surface gives a headless
// backend for compute and offscreen work.
type Backend struct {
	instance *wgpu.Instance
	surface  *wgpu.Surface
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	vsync  bool
	limits gpu.Limits
}

// New creates the WebGPU instance, adapter, device and queue. The
// surface, if non-nil, constrains adapter selection and is used by
// [Backend.CreateSwapchain].
func New(surface *wgpu.Surface, vsync bool) (*Backend, error) {
	b := &Backend{
		instance: Instance(),
		surface:  surface,
		vsync:    vsync,
	}
	adapter, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: RequestAdapter: %w", gpu.ErrNoSuitableDevice, err)
	}
	b.adapter = adapter
	device, err := adapter.RequestDevice(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: RequestDevice: %w", gpu.ErrNoSuitableDevice, err)
	}
	b.device = device
	b.queue = device.GetQueue()
	b.limits = gpu.Limits{
		// WebGPU has no placed resources; the alignments only govern
		// the core's offset bookkeeping. 256 is the WebGPU minimum
		// uniform buffer offset alignment.
		BufferPlacementAlign:  256,
		TexturePlacementAlign: 256,
		MaxPushConstantBytes:  256,
		MaxSamplers:           8,
		// Timestamps are taken CPU-side at submission; see queryPool.
		TimestampFrequency: 1_000_000_000,
	}
	return b, nil
}

func (b *Backend) Name() string       { return "webgpu" }
func (b *Backend) Limits() gpu.Limits { return b.limits }

func (b *Backend) NewQueue() (gpu.BackendQueue, error) {
	return &queue{b: b}, nil
}

// CreateHeap is pure bookkeeping: WebGPU allocates per resource, so
// the heap only records kind and size for the core's placement math.
func (b *Backend) CreateHeap(kind gpu.HeapKind, size int64) (gpu.BackendHeap, error) {
	return &heap{b: b, kind: kind, size: size}, nil
}

func (b *Backend) TextureAllocInfo(desc *gpu.TextureDesc) gpu.AllocInfo {
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
	al := b.limits.TexturePlacementAlign
	return gpu.AllocInfo{Size: (sz + al - 1) / al * al, Align: al}
}

// Compile validates the WGSL through naga first, which produces real
// compiler diagnostics, then creates the native shader module from the
// same source.
func (b *Backend) Compile(stage gpu.ShaderStage, name, entry, source string) (gpu.BackendShader, error) {
	if _, err := naga.Compile(source); err != nil {
		return nil, err
	}
	module, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: name,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: source,
		},
	})
	if err != nil {
		return nil, err
	}
	return &shader{module: module, entry: entry}, nil
}

func (b *Backend) CreateDescriptorArena(capacity int) (gpu.BackendDescriptorArena, error) {
	return &arena{slots: make([]gpu.DescriptorWrite, capacity)}, nil
}

func (b *Backend) CreateSwapchain(size image.Point, format gpu.TextureFormat) (gpu.BackendSwapchain, error) {
	if b.surface == nil {
		return nil, fmt.Errorf("headless backend has no surface")
	}
	sc := &swapchain{b: b, format: format}
	if err := sc.Resize(size); err != nil {
		return nil, err
	}
	return sc, nil
}

// CreateQueryPool returns a CPU-clock query pool: WebGPU timestamp
// queries are an optional feature, so timestamps are sampled on the
// CPU at command replay (submission) time instead. Resolved durations
// measure encoding/submission, not GPU execution.
func (b *Backend) CreateQueryPool(count int) (gpu.BackendQueryPool, error) {
	return &queryPool{ticks: make([]uint64, count)}, nil
}

func (b *Backend) Release() {
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	// the shared instance is intentionally kept; other backends or
	// surfaces may still be using it.
	b.instance = nil
}

// queue submits by replaying recorded lists into command encoders.
// WebGPU exposes no application fences; Wait maps onto blocking device
// polls, which wait for all submitted work.
type queue struct {
	b         *Backend
	signaled  uint64
	completed uint64
}

func (q *queue) Submit(lists ...gpu.BackendList) error {
	for _, bl := range lists {
		cl, ok := bl.(*list)
		if !ok {
			return fmt.Errorf("foreign list %T", bl)
		}
		if !cl.closed {
			return fmt.Errorf("list submitted while still recording")
		}
		buf, err := cl.replay()
		if err != nil {
			return err
		}
		if buf != nil {
			q.b.queue.Submit(buf)
			buf.Release()
		}
	}
	return nil
}

func (q *queue) NewList() (gpu.BackendList, error) {
	return &list{q: q}, nil
}

func (q *queue) Signal(value uint64) error {
	q.signaled = value
	return nil
}

func (q *queue) Completed() uint64 { return q.completed }

// Wait blocks until the device is idle, which completes every
// signaled value.
func (q *queue) Wait(value uint64) {
	q.b.device.Poll(true, nil)
	q.completed = q.signaled
	_ = value
}

func (q *queue) Release() {
	q.b.device.Poll(true, nil)
}

type heap struct {
	b        *Backend
	kind     gpu.HeapKind
	size     int64
	resident bool
}

func (h *heap) PlaceBuffer(offset, size int64, usage gpu.Usage) (gpu.BackendBuffer, error) {
	buf, err := h.b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Size:             uint64(size),
		Usage:            bufferUsage(h.kind, usage),
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, err
	}
	return &buffer{b: h.b, buf: buf, size: size}, nil
}

func (h *heap) PlaceTexture(offset int64, desc *gpu.TextureDesc) (gpu.BackendTexture, error) {
	tex, err := h.b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Name,
		Size: wgpu.Extent3D{
			Width:              uint32(desc.Width),
			Height:             uint32(desc.Height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: uint32(desc.MipLevels),
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        textureFormat(desc.Format),
		Usage:         textureUsage(desc.Usage),
	})
	if err != nil {
		return nil, err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	return &texture{tex: tex, view: view, desc: *desc}, nil
}

// SetResident is accepted but has no effect: WebGPU manages residency.
func (h *heap) SetResident(resident bool) error {
	h.resident = resident
	return nil
}

func (h *heap) Destroy() {}

type buffer struct {
	b    *Backend
	buf  *wgpu.Buffer
	size int64
}

func (bf *buffer) Write(off int64, data []byte) error {
	return bf.b.queue.WriteBuffer(bf.buf, uint64(off), data)
}

// Read maps the buffer for reading and blocks on the device until the
// map completes. The core only calls this after a flush.
func (bf *buffer) Read(off int64, data []byte) error {
	var mapErr error
	done := false
	bf.buf.MapAsync(wgpu.MapModeRead, uint64(off), uint64(len(data)), func(stat wgpu.BufferMapAsyncStatus) {
		done = true
		if stat != wgpu.BufferMapAsyncStatusSuccess {
			mapErr = fmt.Errorf("MapAsync: status %s", stat.String())
			return
		}
		bm := bf.buf.GetMappedRange(uint(off), uint(len(data)))
		copy(data, bm)
		bf.buf.Unmap()
	})
	for !done {
		bf.b.device.Poll(true, nil)
	}
	return mapErr
}

func (bf *buffer) Destroy() {
	if bf.buf != nil {
		bf.buf.Release()
		bf.buf = nil
	}
}

type texture struct {
	tex  *wgpu.Texture
	view *wgpu.TextureView
	desc gpu.TextureDesc

	// surface is true for swapchain backbuffer wrappers, whose native
	// texture is owned by the surface.
	surface bool
}

func (tx *texture) Destroy() {
	if tx.surface {
		return
	}
	if tx.view != nil {
		tx.view.Release()
		tx.view = nil
	}
	if tx.tex != nil {
		tx.tex.Release()
		tx.tex = nil
	}
}

type shader struct {
	module *wgpu.ShaderModule
	entry  string
}

func (sh *shader) Destroy() {
	if sh.module != nil {
		sh.module.Release()
		sh.module = nil
	}
}

// arena is CPU-side descriptor storage; actual wgpu bind groups are
// built per draw from the written slots, since WebGPU has no
// free-standing descriptor memory.
type arena struct {
	slots []gpu.DescriptorWrite
}

func (ar *arena) Write(slot int, w gpu.DescriptorWrite) error {
	if slot < 0 || slot >= len(ar.slots) {
		return fmt.Errorf("descriptor slot %d out of range %d", slot, len(ar.slots))
	}
	ar.slots[slot] = w
	return nil
}

func (ar *arena) Destroy() {}

type swapchain struct {
	b      *Backend
	format gpu.TextureFormat
	size   image.Point

	// current is a single reusable wrapper for the acquired surface
	// texture, so the core's state tracking sees a stable identity.
	current texture

	acquired *wgpu.Texture
}

func (sc *swapchain) Acquire() (gpu.BackendTexture, error) {
	st, err := sc.b.surface.GetCurrentTexture()
	if err != nil {
		return nil, err
	}
	view, err := st.CreateView(nil)
	if err != nil {
		st.Release()
		return nil, err
	}
	sc.acquired = st
	sc.current = texture{
		tex: st, view: view,
		desc: gpu.TextureDesc{
			Name: "backbuffer", Format: sc.format,
			Width: sc.size.X, Height: sc.size.Y, MipLevels: 1,
			Usage: gpu.UsageRenderTarget,
		},
		surface: true,
	}
	return &sc.current, nil
}

func (sc *swapchain) Present() error {
	sc.b.surface.Present()
	if sc.current.view != nil {
		sc.current.view.Release()
		sc.current.view = nil
	}
	if sc.acquired != nil {
		sc.acquired.Release()
		sc.acquired = nil
	}
	return nil
}

func (sc *swapchain) Resize(size image.Point) error {
	sc.size = size
	mode := wgpu.PresentModeImmediate
	if sc.b.vsync {
		mode = wgpu.PresentModeFifo
	}
	caps := sc.b.surface.GetCapabilities(sc.b.adapter)
	sc.b.surface.Configure(sc.b.adapter, sc.b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      textureFormat(sc.format),
		Width:       uint32(size.X),
		Height:      uint32(size.Y),
		PresentMode: mode,
		AlphaMode:   caps.AlphaModes[0],
	})
	return nil
}

func (sc *swapchain) Destroy() {}

// queryPool holds CPU-clock ticks written at command replay time.
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

// bufferUsage maps core usage flags plus heap kind onto wgpu buffer
// usage bits. Upload heap buffers are written via the queue, readback
// heap buffers are mapped for reading.
func bufferUsage(kind gpu.HeapKind, usage gpu.Usage) wgpu.BufferUsage {
	var u wgpu.BufferUsage
	if usage.Has(gpu.UsageCopySrc) {
		u |= wgpu.BufferUsageCopySrc
	}
	if usage.Has(gpu.UsageCopyDst) {
		u |= wgpu.BufferUsageCopyDst
	}
	if usage.Has(gpu.UsageVertex) {
		u |= wgpu.BufferUsageVertex
	}
	if usage.Has(gpu.UsageIndex) {
		u |= wgpu.BufferUsageIndex
	}
	if usage.Has(gpu.UsageConstant) {
		u |= wgpu.BufferUsageUniform
	}
	if usage.Has(gpu.UsageUnorderedAccess) {
		u |= wgpu.BufferUsageStorage
	}
	switch kind {
	case gpu.UploadHeap:
		u |= wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc
	case gpu.ReadbackHeap:
		u |= wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapRead
	}
	return u
}

func textureUsage(usage gpu.Usage) wgpu.TextureUsage {
	var u wgpu.TextureUsage
	if usage.Has(gpu.UsageCopySrc) {
		u |= wgpu.TextureUsageCopySrc
	}
	if usage.Has(gpu.UsageCopyDst) {
		u |= wgpu.TextureUsageCopyDst
	}
	if usage.Has(gpu.UsageShaderResource) {
		u |= wgpu.TextureUsageTextureBinding
	}
	if usage.Has(gpu.UsageUnorderedAccess) {
		u |= wgpu.TextureUsageStorageBinding
	}
	if usage.Has(gpu.UsageRenderTarget) || usage.Has(gpu.UsageDepthStencil) {
		u |= wgpu.TextureUsageRenderAttachment
	}
	return u
}

func textureFormat(tf gpu.TextureFormat) wgpu.TextureFormat {
	switch tf {
	case gpu.R8Unorm:
		return wgpu.TextureFormatR8Unorm
	case gpu.RG8Unorm:
		return wgpu.TextureFormatRG8Unorm
	case gpu.RGBA8Unorm:
		return wgpu.TextureFormatRGBA8Unorm
	case gpu.RGBA8Srgb:
		return wgpu.TextureFormatRGBA8UnormSrgb
	case gpu.BGRA8Unorm:
		return wgpu.TextureFormatBGRA8Unorm
	case gpu.R16Float:
		return wgpu.TextureFormatR16Float
	case gpu.RG16Float:
		return wgpu.TextureFormatRG16Float
	case gpu.RGBA16Float:
		return wgpu.TextureFormatRGBA16Float
	case gpu.R32Float:
		return wgpu.TextureFormatR32Float
	case gpu.RG32Float:
		return wgpu.TextureFormatRG32Float
	case gpu.RGBA32Float:
		return wgpu.TextureFormatRGBA32Float
	case gpu.Depth32:
		return wgpu.TextureFormatDepth32Float
	case gpu.Depth24Stencil8:
		return wgpu.TextureFormatDepth24PlusStencil8
	}
	return wgpu.TextureFormatUndefined
}

func vertexFormat(vt gpu.VertexType) wgpu.VertexFormat {
	switch vt {
	case gpu.Int32:
		return wgpu.VertexFormatSint32
	case gpu.Int32Vector2:
		return wgpu.VertexFormatSint32x2
	case gpu.Int32Vector4:
		return wgpu.VertexFormatSint32x4
	case gpu.Uint32:
		return wgpu.VertexFormatUint32
	case gpu.Uint32Vector2:
		return wgpu.VertexFormatUint32x2
	case gpu.Uint32Vector4:
		return wgpu.VertexFormatUint32x4
	case gpu.Float32:
		return wgpu.VertexFormatFloat32
	case gpu.Float32Vector2:
		return wgpu.VertexFormatFloat32x2
	case gpu.Float32Vector3:
		return wgpu.VertexFormatFloat32x3
	case gpu.Float32Vector4:
		return wgpu.VertexFormatFloat32x4
	}
	return wgpu.VertexFormatUndefined
}

func topology(tp gpu.Topology) wgpu.PrimitiveTopology {
	switch tp {
	case gpu.TriangleStrip:
		return wgpu.PrimitiveTopologyTriangleStrip
	case gpu.LineList:
		return wgpu.PrimitiveTopologyLineList
	case gpu.LineStrip:
		return wgpu.PrimitiveTopologyLineStrip
	case gpu.PointList:
		return wgpu.PrimitiveTopologyPointList
	}
	return wgpu.PrimitiveTopologyTriangleList
}

func cullMode(cm gpu.CullMode) wgpu.CullMode {
	switch cm {
	case gpu.CullBack:
		return wgpu.CullModeBack
	case gpu.CullFront:
		return wgpu.CullModeFront
	}
	return wgpu.CullModeNone
}

func compareFunc(cf gpu.CompareFunc) wgpu.CompareFunction {
	switch cf {
	case gpu.CompareNever:
		return wgpu.CompareFunctionNever
	case gpu.CompareLess:
		return wgpu.CompareFunctionLess
	case gpu.CompareEqual:
		return wgpu.CompareFunctionEqual
	case gpu.CompareLessEqual:
		return wgpu.CompareFunctionLessEqual
	case gpu.CompareGreater:
		return wgpu.CompareFunctionGreater
	case gpu.CompareNotEqual:
		return wgpu.CompareFunctionNotEqual
	case gpu.CompareGreaterEqual:
		return wgpu.CompareFunctionGreaterEqual
	}
	return wgpu.CompareFunctionAlways
}

func blendState(bm gpu.BlendMode) *wgpu.BlendState {
	switch bm {
	case gpu.AlphaBlend:
		return &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		}
	case gpu.AdditiveBlend:
		return &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOne,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOne,
				Operation: wgpu.BlendOperationAdd,
			},
		}
	}
	return &wgpu.BlendStateReplace
}

func filterMode(fm gpu.FilterMode) wgpu.FilterMode {
	if fm == gpu.FilterLinear {
		return wgpu.FilterModeLinear
	}
	return wgpu.FilterModeNearest
}

func addressMode(wm gpu.WrapMode) wgpu.AddressMode {
	switch wm {
	case gpu.WrapClampToEdge:
		return wgpu.AddressModeClampToEdge
	case gpu.WrapMirrorRepeat:
		return wgpu.AddressModeMirrorRepeat
	}
	return wgpu.AddressModeRepeat
}

func shaderVisibility(ss gpu.ShaderStage) wgpu.ShaderStage {
	var v wgpu.ShaderStage
	if ss&gpu.VertexShader != 0 {
		v |= wgpu.ShaderStageVertex
	}
	if ss&gpu.FragmentShader != 0 {
		v |= wgpu.ShaderStageFragment
	}
	if ss&gpu.ComputeShader != 0 {
		v |= wgpu.ShaderStageCompute
	}
	return v
}
