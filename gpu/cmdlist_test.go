// Copyright (c) 2026, Cobalt Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu_test

import (
	"testing"

	"github.com/cobaltgfx/cobalt/gpu"
	"github.com/stretchr/testify/assert"
)

// testBuffers places an upload source and two device buffers for
// exercising copies and state tracking.
func testBuffers(t *testing.T, dev *gpu.Device) (src, a, b *gpu.Buffer) {
	t.Helper()
	al := dev.Limits().BufferPlacementAlign
	up, err := dev.CreateHeap(gpu.UploadHeap, al)
	assert.NoError(t, err)
	dh, err := dev.CreateHeap(gpu.DeviceHeap, 2*al)
	assert.NoError(t, err)
	src, err = up.PlaceBuffer(0, 64, gpu.UsageCopySrc)
	assert.NoError(t, err)
	a, err = dh.PlaceBuffer(0, 64, gpu.UsageCopySrc|gpu.UsageCopyDst|gpu.UsageVertex)
	assert.NoError(t, err)
	b, err = dh.PlaceBuffer(al, 64, gpu.UsageCopySrc|gpu.UsageCopyDst)
	assert.NoError(t, err)
	return src, a, b
}

func TestEnsureStateMinimalBarriers(t *testing.T) {
	dev, _ := newTestDevice(t, nil)
	cq, _ := dev.NewQueue()
	_, a, _ := testBuffers(t, dev)

	cl, err := cq.BeginRecording()
	assert.NoError(t, err)

	// first touch records the initial state, no barrier
	assert.NoError(t, cl.EnsureState(&a.Resource, gpu.StateCopyDst))
	assert.Empty(t, cl.Barriers())

	// same state again, still nothing
	assert.NoError(t, cl.EnsureState(&a.Resource, gpu.StateCopyDst))
	assert.Empty(t, cl.Barriers())

	// state change emits exactly one barrier
	assert.NoError(t, cl.EnsureState(&a.Resource, gpu.StateVertexBuffer))
	assert.Equal(t, 1, len(cl.Barriers()))
	assert.Equal(t, gpu.Transition{
		ResourceID: a.ID(), From: gpu.StateCopyDst, To: gpu.StateVertexBuffer,
	}, cl.Barriers()[0])

	// back again, one more
	assert.NoError(t, cl.EnsureState(&a.Resource, gpu.StateCopyDst))
	assert.Equal(t, 2, len(cl.Barriers()))
}

func TestExecutePatchesCommittedState(t *testing.T) {
	dev, _ := newTestDevice(t, nil)
	cq, _ := dev.NewQueue()
	src, a, _ := testBuffers(t, dev)

	// list 1: src -> a; a starts Common, first needs CopyDst
	cl, _ := cq.BeginRecording()
	assert.NoError(t, cl.CopyBuffer(src, 0, a, 0, 64))
	assert.NoError(t, cq.Execute(cl))

	patches := cq.PatchBarriers()
	assert.Equal(t, 1, len(patches))
	assert.Equal(t, gpu.Transition{
		ResourceID: a.ID(), From: gpu.StateCommon, To: gpu.StateCopyDst,
	}, patches[0])
	assert.Equal(t, gpu.StateCopyDst, a.State())

	// list 2 needing the same committed state: no new patch
	cl2, _ := cq.BeginRecording()
	assert.NoError(t, cl2.CopyBuffer(src, 0, a, 0, 64))
	assert.NoError(t, cq.Execute(cl2))
	assert.Equal(t, 1, len(cq.PatchBarriers()))

	// list 3 needing a different state: one more patch
	cl3, _ := cq.BeginRecording()
	assert.NoError(t, cl3.EnsureState(&a.Resource, gpu.StateVertexBuffer))
	assert.NoError(t, cq.Execute(cl3))
	patches = cq.PatchBarriers()
	assert.Equal(t, 2, len(patches))
	assert.Equal(t, gpu.Transition{
		ResourceID: a.ID(), From: gpu.StateCopyDst, To: gpu.StateVertexBuffer,
	}, patches[1])
	assert.Equal(t, gpu.StateVertexBuffer, a.State())
}

func TestEnsureStateFixedHeapStates(t *testing.T) {
	dev, _ := newTestDevice(t, nil)
	cq, _ := dev.NewQueue()
	al := dev.Limits().BufferPlacementAlign
	up, _ := dev.CreateHeap(gpu.UploadHeap, al)
	rb, _ := dev.CreateHeap(gpu.ReadbackHeap, al)
	ub, _ := up.PlaceBuffer(0, 32, gpu.UsageCopySrc)
	rbb, _ := rb.PlaceBuffer(0, 32, gpu.UsageCopyDst)

	cl, _ := cq.BeginRecording()

	// upload: any read state is fine and emits nothing
	assert.NoError(t, cl.EnsureState(&ub.Resource, gpu.StateCopySrc))
	assert.NoError(t, cl.EnsureState(&ub.Resource, gpu.StateConstantBuffer))
	assert.Empty(t, cl.Barriers())
	// write states are rejected
	assert.ErrorIs(t, cl.EnsureState(&ub.Resource, gpu.StateCopyDst), gpu.ErrInvalidArgument)

	// readback: only CopyDst
	assert.NoError(t, cl.EnsureState(&rbb.Resource, gpu.StateCopyDst))
	assert.ErrorIs(t, cl.EnsureState(&rbb.Resource, gpu.StateCopySrc), gpu.ErrInvalidArgument)
}

func TestCopyBufferValidation(t *testing.T) {
	dev, _ := newTestDevice(t, nil)
	cq, _ := dev.NewQueue()
	src, a, _ := testBuffers(t, dev)

	cl, _ := cq.BeginRecording()
	assert.ErrorIs(t, cl.CopyBuffer(a, 0, a, 0, 32), gpu.ErrInvalidArgument)
	assert.ErrorIs(t, cl.CopyBuffer(src, 32, a, 0, 64), gpu.ErrInvalidArgument)
	assert.ErrorIs(t, cl.CopyBuffer(src, 0, a, 32, 64), gpu.ErrInvalidArgument)
	assert.ErrorIs(t, cl.CopyBuffer(src, 0, a, 0, 0), gpu.ErrInvalidArgument)
	// negative offsets must be rejected here, never reach the backend
	assert.ErrorIs(t, cl.CopyBuffer(src, -64, a, 0, 64), gpu.ErrInvalidArgument)
	assert.ErrorIs(t, cl.CopyBuffer(src, 0, a, -64, 64), gpu.ErrInvalidArgument)
	// nothing invalid was recorded: the list submits cleanly
	assert.NoError(t, cq.Execute(cl))
}

func TestCopyBufferToTextureValidation(t *testing.T) {
	dev, _ := newTestDevice(t, nil)
	cq, _ := dev.NewQueue()
	src, _, _ := testBuffers(t, dev)
	tx := testSampledTexture(t, dev)

	cl, _ := cq.BeginRecording()
	assert.ErrorIs(t, cl.CopyBufferToTexture(src, -16, tx), gpu.ErrInvalidArgument)
	assert.ErrorIs(t, cl.CopyBufferToTexture(src, 32, tx), gpu.ErrInvalidArgument)
	assert.NoError(t, cl.CopyBufferToTexture(src, 0, tx))
	assert.NoError(t, cq.Execute(cl))
}

func TestOnePipelineAndTargetPerList(t *testing.T) {
	dev, _ := newTestDevice(t, nil)
	cq, _ := dev.NewQueue()
	pl := testRenderPipeline(t, dev)

	cl, _ := cq.BeginRecording()
	assert.NoError(t, cl.SetRenderPipeline(pl))
	assert.ErrorIs(t, cl.SetRenderPipeline(pl), gpu.ErrInvalidCommandListState)

	tx := testRenderTarget(t, dev)
	assert.NoError(t, cl.SetRenderTarget(tx, nil))
	assert.ErrorIs(t, cl.SetRenderTarget(tx, nil), gpu.ErrInvalidCommandListState)
}

func TestDrawRequiresPipelineAndTarget(t *testing.T) {
	dev, _ := newTestDevice(t, nil)
	cq, _ := dev.NewQueue()

	cl, _ := cq.BeginRecording()
	assert.ErrorIs(t, cl.Draw(3, 1), gpu.ErrInvalidCommandListState)

	pl := testRenderPipeline(t, dev)
	assert.NoError(t, cl.SetRenderPipeline(pl))
	assert.ErrorIs(t, cl.Draw(3, 1), gpu.ErrInvalidCommandListState)

	tx := testRenderTarget(t, dev)
	assert.NoError(t, cl.SetRenderTarget(tx, nil))
	assert.NoError(t, cl.Draw(3, 1))
}

func TestExecuteRejectsClosedList(t *testing.T) {
	dev, _ := newTestDevice(t, nil)
	cq, _ := dev.NewQueue()

	cl, _ := cq.BeginRecording()
	assert.NoError(t, cq.Execute(cl))
	assert.ErrorIs(t, cq.Execute(cl), gpu.ErrInvalidCommandListState)
}

func TestListReuseAfterFence(t *testing.T) {
	dev, nb := newTestDevice(t, nil)
	cq, _ := dev.NewQueue()

	cl, _ := cq.BeginRecording()
	cl.SetFrameIndex(7)
	assert.NoError(t, cq.Execute(cl))
	_, err := cq.SignalOnGPU()
	assert.NoError(t, err)
	cq.WaitOnCPU(cq.FenceValue())

	// the completed list is recycled, not recreated, and comes back
	// with no frame attribution from its previous life
	cl2, _ := cq.BeginRecording()
	assert.Same(t, cl, cl2)
	assert.Zero(t, cl2.FrameIndex())
	assert.Equal(t, 1, nb.Stats().Lists)
	assert.NoError(t, cq.Execute(cl2))
	cq.Release()
}

func TestRenderTargetStateFlow(t *testing.T) {
	dev, _ := newTestDevice(t, nil)
	cq, _ := dev.NewQueue()
	tx := testRenderTarget(t, dev)

	cl, _ := cq.BeginRecording()
	assert.NoError(t, cl.SetRenderTarget(tx, nil))
	assert.NoError(t, cl.EnsureState(&tx.Resource, gpu.StatePresent))
	assert.Equal(t, 1, len(cl.Barriers()))
	assert.NoError(t, cq.Execute(cl))
	assert.Equal(t, gpu.StatePresent, tx.State())
}
