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

type sampleRec struct {
	category string
	label    string
	frame    uint64
	ms       float64
}

// recordSampler collects delivered samples for assertions.
type recordSampler struct {
	samples []sampleRec
}

func (rs *recordSampler) Sample(category, label string, frame uint64, ms float64) {
	rs.samples = append(rs.samples, sampleRec{category, label, frame, ms})
}

func TestFrameProfilerDelivery(t *testing.T) {
	dev, _ := newTestDevice(t, nil) // FramesInFlight 2
	cq, _ := dev.NewQueue()
	rec := &recordSampler{}
	rr, err := dev.NewRenderer(cq, &gpu.RendererConfig{
		Size: image.Pt(8, 8), Sampler: rec, ProfileZones: 2,
	})
	assert.NoError(t, err)
	fp := rr.Profiler()
	assert.NotNil(t, fp)

	for f := uint64(1); f <= 4; f++ {
		cl, err := rr.BeginFrame(rr.Size())
		assert.NoError(t, err)
		zn := fp.BeginZone(cl, "scene")
		assert.GreaterOrEqual(t, zn, 0)
		fp.EndZone(cl, zn)
		assert.NoError(t, rr.FinishFrame(cl))

		// samples arrive latency frames late: frame f's zone is
		// resolved at the top of frame f+2
		want := 0
		if f > 2 {
			want = int(f) - 2
		}
		assert.Equal(t, want, len(rec.samples))
	}

	for i, s := range rec.samples {
		assert.Equal(t, "gpu", s.category)
		assert.Equal(t, "scene", s.label)
		assert.Equal(t, uint64(i+1), s.frame)
		// the software clock steps 1000 ticks per command at 1 GHz,
		// so adjacent timestamps are one microsecond apart
		assert.InDelta(t, 0.001, s.ms, 1e-9)
	}

	rr.Release()
	cq.Release()
}

func TestFrameProfilerZoneBudget(t *testing.T) {
	dev, _ := newTestDevice(t, nil)
	cq, _ := dev.NewQueue()
	rec := &recordSampler{}
	rr, err := dev.NewRenderer(cq, &gpu.RendererConfig{
		Size: image.Pt(8, 8), Sampler: rec, ProfileZones: 1,
	})
	assert.NoError(t, err)
	fp := rr.Profiler()

	cl, _ := rr.BeginFrame(rr.Size())
	z0 := fp.BeginZone(cl, "within")
	assert.Equal(t, 0, z0)
	// over budget: dropped, not fatal
	z1 := fp.BeginZone(cl, "over")
	assert.Equal(t, -1, z1)
	fp.EndZone(cl, z1)
	fp.EndZone(cl, z0)
	assert.NoError(t, rr.FinishFrame(cl))

	rr.Release()
	cq.Release()
}

func TestNewFrameProfilerValidation(t *testing.T) {
	dev, _ := newTestDevice(t, nil)
	_, err := dev.NewFrameProfiler(0, &recordSampler{})
	assert.ErrorIs(t, err, gpu.ErrInvalidArgument)
}
