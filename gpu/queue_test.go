// Copyright (c) 2026, Cobalt Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFenceMonotonic(t *testing.T) {
	dev, _ := newTestDevice(t, nil)
	cq, _ := dev.NewQueue()
	assert.Zero(t, cq.FenceValue())

	v1, err := cq.SignalOnGPU()
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), v1)
	v2, err := cq.SignalOnGPU()
	assert.NoError(t, err)
	assert.Equal(t, uint64(2), v2)
	assert.Equal(t, uint64(2), cq.FenceValue())
	// the software backend completes at signal by default
	assert.Equal(t, uint64(2), cq.Completed())

	cq.Flush()
	assert.Equal(t, uint64(3), cq.FenceValue())
	assert.Equal(t, uint64(3), cq.Completed())
	cq.Release()
}

func TestManualFenceGating(t *testing.T) {
	dev, nb := newTestDevice(t, nil)
	nb.ManualFences = true
	cq, _ := dev.NewQueue()
	q := nb.LastQueue()

	cl, _ := cq.BeginRecording()
	assert.NoError(t, cq.Execute(cl))
	v, err := cq.SignalOnGPU()
	assert.NoError(t, err)
	assert.Zero(t, cq.Completed())

	// the fence has not completed, so the first list is still in
	// flight and a fresh one must be created
	cl2, _ := cq.BeginRecording()
	assert.NotSame(t, cl, cl2)
	assert.Equal(t, 2, nb.Stats().Lists)
	assert.NoError(t, cq.Execute(cl2))

	// completing the fence makes the first list reclaimable
	q.Advance(v)
	assert.Equal(t, v, cq.Completed())
	cl3, _ := cq.BeginRecording()
	assert.Same(t, cl, cl3)
	assert.Equal(t, 2, nb.Stats().Lists)
}

func TestWaitOnCPUCompletesSignaled(t *testing.T) {
	dev, nb := newTestDevice(t, nil)
	nb.ManualFences = true
	cq, _ := dev.NewQueue()

	v, _ := cq.SignalOnGPU()
	assert.Zero(t, cq.Completed())
	cq.WaitOnCPU(v)
	assert.Equal(t, v, cq.Completed())

	// waiting on zero is always a no-op
	cq.WaitOnCPU(0)
	assert.Equal(t, v, cq.Completed())
}

func TestSubmitExecutesWorkImmediately(t *testing.T) {
	dev, nb := newTestDevice(t, nil)
	cq, _ := dev.NewQueue()
	q := nb.LastQueue()
	src, a, b := testBuffers(t, dev)

	cl, _ := cq.BeginRecording()
	assert.NoError(t, cl.CopyBuffer(src, 0, a, 0, 64))
	assert.NoError(t, cl.CopyBuffer(a, 0, b, 0, 64))
	assert.Zero(t, q.Copies)

	assert.NoError(t, cq.Execute(cl))
	assert.Equal(t, 2, q.Copies)
	// the patch list and the main list go down in one submission
	assert.Equal(t, 1, q.Submissions)
	// one in-list barrier (a: CopyDst -> CopySrc) plus two patch
	// barriers moving a and b out of Common
	assert.Equal(t, 3, q.Transitions)
}
