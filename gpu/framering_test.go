// Copyright (c) 2026, Cobalt Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu_test

import (
	"bytes"
	"testing"

	"github.com/cobaltgfx/cobalt/gpu"
	"github.com/stretchr/testify/assert"
)

func TestFrameRing(t *testing.T) {
	fr := gpu.NewFrameRing(2, func(slot int) int { return slot * 10 })
	assert.Equal(t, 2, fr.N())
	assert.Equal(t, 10, *fr.Slot(1))
	assert.Equal(t, 0, *fr.Slot(2))
	// frames two apart share a slot
	assert.Same(t, fr.Slot(1), fr.Slot(3))

	fr.SetFence(3, 7)
	assert.Equal(t, uint64(7), fr.Fence(1))
	assert.Equal(t, uint64(0), fr.Fence(2))
	assert.Equal(t, []int{0, 10}, fr.All())
}

func TestStreamingBufferDirect(t *testing.T) {
	dev, _ := newTestDevice(t, nil)
	cq, _ := dev.NewQueue()
	sb, err := dev.NewStreamingBuffer("camera", 64, 2, nil)
	assert.NoError(t, err)
	assert.Nil(t, sb.Destination())
	// one upload instance per frame slot
	assert.NotSame(t, sb.Current(1), sb.Current(2))
	assert.Same(t, sb.Current(1), sb.Current(3))

	cl, _ := cq.BeginRecording()
	cl.SetFrameIndex(1)
	assert.NoError(t, sb.WriteFrame(cl, make([]byte, 64)))
	assert.ErrorIs(t, sb.WriteFrame(cl, make([]byte, 64)), gpu.ErrInvalidCommandListState)

	cl.SetFrameIndex(2)
	assert.NoError(t, sb.WriteFrame(cl, make([]byte, 64)))

	// frame 3 reuses frame 1's instance, which is allowed again
	cl.SetFrameIndex(3)
	assert.NoError(t, sb.WriteFrame(cl, make([]byte, 64)))

	assert.NoError(t, cq.Execute(cl))
	cq.Flush()
	sb.Destroy()
	cq.Release()
}

func TestStreamingBufferRoundTrip(t *testing.T) {
	dev, _ := newTestDevice(t, nil)
	cq, _ := dev.NewQueue()
	al := dev.Limits().BufferPlacementAlign

	dh, _ := dev.CreateHeap(gpu.DeviceHeap, al)
	dst, err := dh.PlaceBuffer(0, 64, gpu.UsageConstant|gpu.UsageCopySrc|gpu.UsageCopyDst)
	assert.NoError(t, err)
	rb, _ := dev.CreateHeap(gpu.ReadbackHeap, al)
	rbb, _ := rb.PlaceBuffer(0, 64, gpu.UsageCopyDst)

	sb, err := dev.NewStreamingBuffer("lights", 64, 2, dst)
	assert.NoError(t, err)
	assert.Same(t, dst, sb.Destination())

	for frame := uint64(1); frame <= 3; frame++ {
		cl, _ := cq.BeginRecording()
		cl.SetFrameIndex(frame)
		payload := bytes.Repeat([]byte{byte(frame)}, 64)
		assert.NoError(t, sb.WriteFrame(cl, payload))
		assert.NoError(t, cl.CopyBuffer(dst, 0, rbb, 0, 64))
		assert.NoError(t, cq.Execute(cl))
		_, err := cq.SignalOnGPU()
		assert.NoError(t, err)

		out := make([]byte, 64)
		assert.NoError(t, rbb.ReadSync(cq, 0, out))
		assert.Equal(t, payload, out)
	}
	cq.Flush()
	sb.Destroy()
	cq.Release()
}

func TestStreamingBufferValidation(t *testing.T) {
	dev, _ := newTestDevice(t, nil)
	cq, _ := dev.NewQueue()
	al := dev.Limits().BufferPlacementAlign

	_, err := dev.NewStreamingBuffer("bad", 64, 0, nil)
	assert.ErrorIs(t, err, gpu.ErrInvalidArgument)

	dh, _ := dev.CreateHeap(gpu.DeviceHeap, al)
	small, _ := dh.PlaceBuffer(0, 32, gpu.UsageCopyDst)
	_, err = dev.NewStreamingBuffer("bad", 64, 2, small)
	assert.ErrorIs(t, err, gpu.ErrInvalidArgument)

	sb, err := dev.NewStreamingBuffer("ok", 16, 2, nil)
	assert.NoError(t, err)
	cl, _ := cq.BeginRecording()
	cl.SetFrameIndex(1)
	assert.ErrorIs(t, sb.WriteFrame(cl, make([]byte, 32)), gpu.ErrInvalidArgument)
}
