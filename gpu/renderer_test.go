// Copyright (c) 2026, Cobalt Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu_test

import (
	"image"
	"testing"

	"github.com/cobaltgfx/cobalt/gpu"
	"github.com/stretchr/testify/assert"
)

func TestRendererFrameLoop(t *testing.T) {
	dev, nb := newTestDevice(t, nil)
	cq, _ := dev.NewQueue()
	rr, err := dev.NewRenderer(cq, &gpu.RendererConfig{Size: image.Pt(32, 32)})
	assert.NoError(t, err)

	for f := uint64(1); f <= 3; f++ {
		cl, err := rr.BeginFrame(rr.Size())
		assert.NoError(t, err)
		assert.Equal(t, f, rr.Frame())
		assert.Equal(t, f, cl.FrameIndex())
		bb := rr.Backbuffer()
		assert.NotNil(t, bb)

		assert.NoError(t, rr.FinishFrame(cl))
		assert.Equal(t, gpu.StatePresent, bb.State())
		assert.Nil(t, rr.Backbuffer())
	}

	// double-buffered swapchain: two native images total
	assert.Equal(t, 2, nb.Stats().Textures)
	// each image needed exactly one first-use patch into present;
	// the third frame reused a committed image with no new patch
	patches := cq.PatchBarriers()
	assert.Equal(t, 2, len(patches))
	for _, tr := range patches {
		assert.Equal(t, gpu.StateUndefined, tr.From)
		assert.Equal(t, gpu.StatePresent, tr.To)
	}

	rr.Release()
	cq.Release()
	assert.Zero(t, nb.Stats().Textures)
	assert.Zero(t, nb.Stats().Lists)
}

func TestRendererSlotFenceGating(t *testing.T) {
	dev, nb := newTestDevice(t, nil) // FramesInFlight 2
	nb.ManualFences = true
	cq, _ := dev.NewQueue()
	rr, err := dev.NewRenderer(cq, &gpu.RendererConfig{Size: image.Pt(16, 16)})
	assert.NoError(t, err)

	for f := 1; f <= 2; f++ {
		cl, err := rr.BeginFrame(rr.Size())
		assert.NoError(t, err)
		assert.NoError(t, rr.FinishFrame(cl))
	}
	// two frames in flight, nothing completed yet
	assert.Zero(t, cq.Completed())

	// frame 3 reuses frame 1's slot and must wait out its fence
	cl, err := rr.BeginFrame(rr.Size())
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), cq.Completed())
	assert.NoError(t, rr.FinishFrame(cl))

	nb.LastQueue().Advance(cq.FenceValue())
	rr.Release()
	cq.Release()
}

func TestRendererResize(t *testing.T) {
	dev, nb := newTestDevice(t, nil)
	cq, _ := dev.NewQueue()
	var resized []image.Point
	rr, err := dev.NewRenderer(cq, &gpu.RendererConfig{
		Size:        image.Pt(32, 32),
		DepthFormat: gpu.Depth32,
		OnResize:    func(size image.Point) { resized = append(resized, size) },
	})
	assert.NoError(t, err)
	assert.NotNil(t, rr.DepthBuffer())

	cl, _ := rr.BeginFrame(image.Pt(32, 32))
	assert.NoError(t, rr.FinishFrame(cl))
	baseTex := nb.Stats().Textures
	baseHeaps := nb.Stats().Heaps

	// growing the drawable recreates the swapchain and depth buffer
	cl, err = rr.BeginFrame(image.Pt(64, 64))
	assert.NoError(t, err)
	assert.Equal(t, image.Pt(64, 64), rr.Size())
	assert.Equal(t, []image.Point{image.Pt(64, 64)}, resized)
	assert.Equal(t, 64, rr.DepthBuffer().Desc.Width)
	assert.NoError(t, rr.FinishFrame(cl))

	// no leaks across the recreate
	assert.Equal(t, baseTex, nb.Stats().Textures)
	assert.Equal(t, baseHeaps, nb.Stats().Heaps)

	// same size again is not a resize
	cl, _ = rr.BeginFrame(image.Pt(64, 64))
	assert.NoError(t, rr.FinishFrame(cl))
	assert.Equal(t, 1, len(resized))

	rr.Release()
	cq.Release()
	assert.Zero(t, nb.Stats().Textures)
	assert.Zero(t, nb.Stats().Heaps)
}

func TestRendererFlushEveryFrame(t *testing.T) {
	st := gpu.DefaultSettings()
	st.FlushEveryFrame = true
	dev, nb := newTestDevice(t, &st)
	nb.ManualFences = true
	cq, _ := dev.NewQueue()
	rr, err := dev.NewRenderer(cq, &gpu.RendererConfig{Size: image.Pt(16, 16)})
	assert.NoError(t, err)

	for f := 1; f <= 2; f++ {
		cl, err := rr.BeginFrame(rr.Size())
		assert.NoError(t, err)
		assert.NoError(t, rr.FinishFrame(cl))
		// the end-of-frame wait drains the GPU even with manual fences
		assert.Equal(t, cq.FenceValue(), cq.Completed())
	}
	rr.Release()
	cq.Release()
}

func TestRendererConfigValidation(t *testing.T) {
	dev, _ := newTestDevice(t, nil)
	cq, _ := dev.NewQueue()

	_, err := dev.NewRenderer(cq, &gpu.RendererConfig{})
	assert.ErrorIs(t, err, gpu.ErrInvalidArgument)

	_, err = dev.NewRenderer(cq, &gpu.RendererConfig{
		Size: image.Pt(8, 8), DepthFormat: gpu.RGBA8Unorm,
	})
	assert.ErrorIs(t, err, gpu.ErrInvalidArgument)
}
