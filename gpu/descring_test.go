// Copyright (c) 2026, Cobalt Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu_test

import (
	"testing"

	"github.com/cobaltgfx/cobalt/gpu"
	"github.com/stretchr/testify/assert"
)

func TestDescriptorRingWrap(t *testing.T) {
	st := gpu.DefaultSettings()
	st.DescriptorRingSlots = 8
	dev, _ := newTestDevice(t, &st)
	cq, _ := dev.NewQueue()
	ring, err := cq.Ring()
	assert.NoError(t, err)
	assert.Equal(t, 8, ring.Capacity())

	tb1, err := ring.AllocateRange(3)
	assert.NoError(t, err)
	assert.Equal(t, gpu.DescriptorTable{First: 0, Count: 3}, tb1)

	tb2, err := ring.AllocateRange(3)
	assert.NoError(t, err)
	assert.Equal(t, gpu.DescriptorTable{First: 3, Count: 3}, tb2)

	// 6+3 > 8: the cursor wraps, the range stays contiguous
	tb3, err := ring.AllocateRange(3)
	assert.NoError(t, err)
	assert.Equal(t, gpu.DescriptorTable{First: 0, Count: 3}, tb3)

	// a full-capacity range is fine
	tb4, err := ring.AllocateRange(8)
	assert.NoError(t, err)
	assert.Equal(t, gpu.DescriptorTable{First: 0, Count: 8}, tb4)
}

func TestDescriptorRingOversizedRange(t *testing.T) {
	st := gpu.DefaultSettings()
	st.DescriptorRingSlots = 4
	dev, _ := newTestDevice(t, &st)
	cq, _ := dev.NewQueue()
	ring, _ := cq.Ring()

	_, err := ring.AllocateRange(5)
	assert.ErrorIs(t, err, gpu.ErrOutOfDeviceMemory)
}

// TestDescriptorRingDrawTurnover verifies that repeated draws keep
// allocating fresh ranges and wrap across the whole ring: two frames
// of latency share the capacity without any explicit free.
func TestDescriptorRingDrawTurnover(t *testing.T) {
	st := gpu.DefaultSettings()
	st.DescriptorRingSlots = 8
	dev, _ := newTestDevice(t, &st)
	cq, _ := dev.NewQueue()
	pl, err := dev.NewRenderPipeline(litConfig())
	assert.NoError(t, err)

	al := dev.Limits().BufferPlacementAlign
	up, _ := dev.CreateHeap(gpu.UploadHeap, al)
	cam, _ := up.PlaceBuffer(0, 64, gpu.UsageConstant)
	tex := testSampledTexture(t, dev)

	for frame := 1; frame <= 3; frame++ {
		cl, err := cq.BeginRecording()
		assert.NoError(t, err)
		assert.NoError(t, cl.SetRenderPipeline(pl))
		assert.NoError(t, cl.SetRenderTarget(testRenderTarget(t, dev), nil))
		assert.NoError(t, cl.SetConstantBuffer(0, cam))
		assert.NoError(t, cl.SetTexture(2, tex))
		assert.NoError(t, cl.SetPushConstants(1, make([]byte, 16)))
		// table size is 2: four draws cycle the 8-slot ring exactly once
		for range 4 {
			assert.NoError(t, cl.Draw(3, 1))
		}
		assert.NoError(t, cq.Execute(cl))
		_, err = cq.SignalOnGPU()
		assert.NoError(t, err)
	}
}

// testSampledTexture places a small shader-resource texture.
func testSampledTexture(t *testing.T, dev *gpu.Device) *gpu.Texture {
	t.Helper()
	desc := gpu.TextureDesc{
		Name: "albedo", Format: gpu.RGBA8Unorm,
		Width: 4, Height: 4, MipLevels: 1,
		Usage: gpu.UsageShaderResource | gpu.UsageCopyDst,
	}
	ai := dev.TextureAllocInfo(&desc)
	hp, err := dev.CreateHeap(gpu.DeviceHeap, ai.Size)
	assert.NoError(t, err)
	tx, err := hp.PlaceTexture(0, &desc)
	assert.NoError(t, err)
	return tx
}
