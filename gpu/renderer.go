// Copyright (c) 2026, Cobalt Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"image"
	"log/slog"

	"github.com/cobaltgfx/cobalt/base/errors"
)

// RendererConfig configures a [Renderer].
type RendererConfig struct {
	// Format is the swapchain color format. Zero selects BGRA8Unorm.
	Format TextureFormat

	// DepthFormat enables the renderer-owned depth buffer; leave
	// undefined for no depth.
	DepthFormat TextureFormat

	// Size is the initial drawable size in pixels.
	Size image.Point

	// Sampler enables GPU zone timing when non-nil; resolved samples
	// are delivered to it frame-latency frames later.
	Sampler FrameSampler

	// ProfileZones is the zone budget per frame when Sampler is set.
	// Zero selects 16.
	ProfileZones int

	// OnResize is called after the swapchain and depth buffer have been
	// recreated at a new size, before the frame's command list is handed
	// out. Recreate size-dependent resources here.
	OnResize func(size image.Point)
}

// Renderer drives the per-frame loop: it paces the CPU against the GPU
// by the configured frame latency, acquires and presents swapchain
// backbuffers, detects surface resizes, owns the optional depth buffer,
// and feeds the frame profiler. One [BeginFrame] / [FinishFrame] pair
// per displayed frame.
type Renderer struct {
	dev   *Device
	queue *CommandQueue
	cfg   RendererConfig

	swapchain BackendSwapchain
	size      image.Point

	// frame is the current frame index, starting at 1 so that zero
	// stays the "never" value in fences and write stamps.
	frame uint64

	// fences gates slot reuse: slot i may not be touched again until
	// its recorded fence value has signaled.
	fences *FrameRing[struct{}]

	// backbuffers wraps each native swapchain image in a tracked
	// Texture, so its committed state persists across frames.
	backbuffers map[BackendTexture]*Texture
	current     *Texture

	depthHeap *Heap
	depth     *Texture

	profiler *FrameProfiler
}

// NewRenderer creates the swapchain and frame pacing state on the
// given queue.
func (dv *Device) NewRenderer(cq *CommandQueue, cfg *RendererConfig) (*Renderer, error) {
	c := *cfg
	if c.Format == UndefinedFormat {
		c.Format = BGRA8Unorm
	}
	if c.Size.X <= 0 || c.Size.Y <= 0 {
		return nil, errors.Log(invalidArgf("NewRenderer: size %v not positive", c.Size))
	}
	sc, err := dv.backend.CreateSwapchain(c.Size, c.Format)
	if err != nil {
		return nil, backendErr("CreateSwapchain", err)
	}
	rr := &Renderer{
		dev:         dv,
		queue:       cq,
		cfg:         c,
		swapchain:   sc,
		size:        c.Size,
		fences:      NewFrameRing[struct{}](dv.Settings.FramesInFlight, nil),
		backbuffers: map[BackendTexture]*Texture{},
	}
	if c.DepthFormat != UndefinedFormat {
		if !c.DepthFormat.IsDepth() {
			rr.Release()
			return nil, errors.Log(invalidArgf("NewRenderer: %s is not a depth format", c.DepthFormat))
		}
		if err := rr.createDepth(c.Size); err != nil {
			rr.Release()
			return nil, err
		}
	}
	if c.Sampler != nil {
		zones := c.ProfileZones
		if zones <= 0 {
			zones = 16
		}
		fp, err := dv.NewFrameProfiler(zones, c.Sampler)
		if err != nil {
			rr.Release()
			return nil, err
		}
		rr.profiler = fp
	}
	return rr, nil
}

// Frame returns the current frame index.
func (rr *Renderer) Frame() uint64 { return rr.frame }

// Size returns the current drawable size.
func (rr *Renderer) Size() image.Point { return rr.size }

// Backbuffer returns the swapchain texture acquired for the current
// frame. Valid between BeginFrame and FinishFrame.
func (rr *Renderer) Backbuffer() *Texture { return rr.current }

// DepthBuffer returns the renderer-owned depth texture, or nil if no
// depth format was configured.
func (rr *Renderer) DepthBuffer() *Texture { return rr.depth }

// Profiler returns the frame profiler, or nil if no sampler was
// configured.
func (rr *Renderer) Profiler() *FrameProfiler { return rr.profiler }

// BeginFrame starts the next frame: it blocks until the GPU has
// finished the frame that last used this frame slot (the CPU-ahead
// limit), resolves that frame's timing samples, handles a drawable
// size change, acquires the backbuffer, and returns a command list
// recording for this frame. size is the surface's current drawable
// size; pass the previous size if unchanged.
func (rr *Renderer) BeginFrame(size image.Point) (*CommandList, error) {
	rr.frame++
	rr.queue.WaitOnCPU(rr.fences.Fence(rr.frame))
	if rr.profiler != nil {
		if latency := uint64(rr.fences.N()); rr.frame > latency {
			rr.profiler.resolve(rr.frame - latency)
		}
		rr.profiler.beginFrame(rr.frame)
	}
	if size != rr.size && size.X > 0 && size.Y > 0 {
		if err := rr.resize(size); err != nil {
			return nil, err
		}
	}
	bt, err := rr.swapchain.Acquire()
	if err != nil {
		return nil, backendErr("Swapchain.Acquire", err)
	}
	rr.current = rr.wrapBackbuffer(bt)
	cl, err := rr.queue.BeginRecording()
	if err != nil {
		return nil, err
	}
	cl.frameIndex = rr.frame
	return cl, nil
}

// FinishFrame transitions the backbuffer to the present state, submits
// the frame's list, signals the fence that gates this frame slot's
// reuse, and presents.
func (rr *Renderer) FinishFrame(cl *CommandList) error {
	if err := cl.EnsureState(&rr.current.Resource, StatePresent); err != nil {
		return err
	}
	if err := rr.queue.Execute(cl); err != nil {
		return err
	}
	fence, err := rr.queue.SignalOnGPU()
	if err != nil {
		return err
	}
	rr.fences.SetFence(rr.frame, fence)
	if err := rr.swapchain.Present(); err != nil {
		return backendErr("Swapchain.Present", err)
	}
	rr.current = nil
	if rr.dev.Settings.FlushEveryFrame {
		rr.queue.WaitOnCPU(fence)
	}
	return nil
}

// wrapBackbuffer returns the tracked Texture for a native swapchain
// image, creating it on first acquire. Swapchain images have no heap;
// their initial state is undefined, so the first frame's patch barrier
// moves them straight into the render target state.
func (rr *Renderer) wrapBackbuffer(bt BackendTexture) *Texture {
	if tx := rr.backbuffers[bt]; tx != nil {
		return tx
	}
	tx := &Texture{
		Resource: Resource{id: rr.dev.newID(), state: StateUndefined, usage: UsageRenderTarget},
		Desc: TextureDesc{
			Name: "backbuffer", Format: rr.cfg.Format,
			Width: rr.size.X, Height: rr.size.Y, MipLevels: 1,
			Usage: UsageRenderTarget,
		},
		backend: bt,
	}
	rr.backbuffers[bt] = tx
	return tx
}

// resize flushes the queue, recreates the swapchain images and the
// depth buffer at the new size, and notifies the caller.
func (rr *Renderer) resize(size image.Point) error {
	slog.Info("gpu.Renderer: resize", "from", rr.size, "to", size)
	rr.queue.Flush()
	if err := rr.swapchain.Resize(size); err != nil {
		return backendErr("Swapchain.Resize", err)
	}
	// native images were recreated; the wrappers do not own them, so
	// just drop the tracking entries.
	clear(rr.backbuffers)
	rr.size = size
	if rr.depth != nil {
		rr.destroyDepth()
		if err := rr.createDepth(size); err != nil {
			return err
		}
	}
	if rr.cfg.OnResize != nil {
		rr.cfg.OnResize(size)
	}
	return nil
}

// createDepth allocates the depth texture in its own device heap.
func (rr *Renderer) createDepth(size image.Point) error {
	desc := TextureDesc{
		Name: "depth", Format: rr.cfg.DepthFormat,
		Width: size.X, Height: size.Y, MipLevels: 1,
		Usage: UsageDepthStencil,
	}
	ai := rr.dev.TextureAllocInfo(&desc)
	hp, err := rr.dev.CreateHeap(DeviceHeap, ai.Size)
	if err != nil {
		return err
	}
	tx, err := hp.PlaceTexture(0, &desc)
	if err != nil {
		hp.Destroy()
		return err
	}
	rr.depthHeap, rr.depth = hp, tx
	return nil
}

func (rr *Renderer) destroyDepth() {
	if rr.depth != nil {
		rr.depth.Destroy()
		rr.depth = nil
	}
	if rr.depthHeap != nil {
		rr.depthHeap.Destroy()
		rr.depthHeap = nil
	}
}

// Release flushes the queue and destroys the swapchain, the depth
// buffer, and the profiler. The queue itself is not released; it is
// owned by the caller.
func (rr *Renderer) Release() {
	if rr.swapchain == nil {
		return
	}
	rr.queue.Flush()
	rr.destroyDepth()
	if rr.profiler != nil {
		rr.profiler.Release()
		rr.profiler = nil
	}
	clear(rr.backbuffers)
	rr.swapchain.Destroy()
	rr.swapchain = nil
}
