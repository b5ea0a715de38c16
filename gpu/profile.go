// Copyright (c) 2026, Cobalt Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"log/slog"

	"github.com/cobaltgfx/cobalt/base/errors"
)

// FrameSampler receives resolved GPU timing samples, one call per
// profiled zone per frame. Samples arrive frame-latency frames after
// the zone was recorded, once the writing frame's fence has signaled.
type FrameSampler interface {
	Sample(category, label string, frame uint64, ms float64)
}

// LogSampler is a FrameSampler that writes samples to slog at debug
// level, for when no aggregation layer is wired in.
type LogSampler struct{}

func (LogSampler) Sample(category, label string, frame uint64, ms float64) {
	slog.Debug("gpu.sample", "category", category, "label", label, "frame", frame, "ms", ms)
}

// zoneRecord is one begin/end timestamp pair recorded within a frame.
type zoneRecord struct {
	label string
}

// frameZones is the zone log of one frame slot.
type frameZones struct {
	frame uint64
	zones []zoneRecord
	open  bool
}

// FrameProfiler measures GPU time per named zone using timestamp
// queries, multiplexed across the frame latency so query slots are
// never resolved before the GPU has written them. The renderer drives
// it: beginFrame at the top of each frame, resolve for the frame that
// just completed.
type FrameProfiler struct {
	dev     *Device
	pool    BackendQueryPool
	sampler FrameSampler

	frames        int
	zonesPerFrame int
	slots         []frameZones
	freq          uint64
}

// NewFrameProfiler creates a profiler with room for zonesPerFrame
// zones per frame across the device's frame latency, reporting to
// sampler.
func (dv *Device) NewFrameProfiler(zonesPerFrame int, sampler FrameSampler) (*FrameProfiler, error) {
	if zonesPerFrame < 1 {
		return nil, errors.Log(invalidArgf("NewFrameProfiler: zonesPerFrame must be >= 1, got %d", zonesPerFrame))
	}
	frames := dv.Settings.FramesInFlight
	pool, err := dv.backend.CreateQueryPool(frames * zonesPerFrame * 2)
	if err != nil {
		return nil, backendErr("CreateQueryPool", err)
	}
	return &FrameProfiler{
		dev:           dv,
		pool:          pool,
		sampler:       sampler,
		frames:        frames,
		zonesPerFrame: zonesPerFrame,
		slots:         make([]frameZones, frames),
		freq:          dv.limits.TimestampFrequency,
	}, nil
}

// beginFrame opens the slot for the given frame. The renderer calls
// this after waiting on the slot's fence, so resolve for the slot's
// previous frame has already happened.
func (fp *FrameProfiler) beginFrame(frame uint64) {
	sl := &fp.slots[frame%uint64(fp.frames)]
	sl.frame = frame
	sl.zones = sl.zones[:0]
	sl.open = true
}

// queryBase returns the first query index of zone i in the slot for
// the given frame.
func (fp *FrameProfiler) queryBase(frame uint64, zone int) int {
	slot := int(frame % uint64(fp.frames))
	return (slot*fp.zonesPerFrame + zone) * 2
}

// BeginZone opens a named timing zone on the list, writing the begin
// timestamp. Returns the zone index for [EndZone]. Exceeding the
// per-frame zone budget drops the zone with a log message rather than
// failing the frame.
func (fp *FrameProfiler) BeginZone(cl *CommandList, label string) int {
	sl := &fp.slots[cl.frameIndex%uint64(fp.frames)]
	if !sl.open || sl.frame != cl.frameIndex {
		fp.beginFrame(cl.frameIndex)
		sl = &fp.slots[cl.frameIndex%uint64(fp.frames)]
	}
	if len(sl.zones) >= fp.zonesPerFrame {
		slog.Warn("gpu.FrameProfiler: zone budget exceeded, dropping zone",
			"label", label, "budget", fp.zonesPerFrame)
		return -1
	}
	zone := len(sl.zones)
	sl.zones = append(sl.zones, zoneRecord{label: label})
	cl.WriteTimestamp(fp.pool, fp.queryBase(cl.frameIndex, zone))
	cl.BeginEvent(label)
	return zone
}

// EndZone closes a zone opened with [BeginZone], writing the end
// timestamp. A negative zone (dropped) is a no-op.
func (fp *FrameProfiler) EndZone(cl *CommandList, zone int) {
	if zone < 0 {
		return
	}
	cl.EndEvent()
	cl.WriteTimestamp(fp.pool, fp.queryBase(cl.frameIndex, zone)+1)
}

// resolve reads back the timestamps of the given completed frame and
// reports one sample per zone. Must only be called once the frame's
// fence has signaled.
func (fp *FrameProfiler) resolve(frame uint64) {
	sl := &fp.slots[frame%uint64(fp.frames)]
	if !sl.open || sl.frame != frame || len(sl.zones) == 0 {
		return
	}
	sl.open = false
	first := fp.queryBase(frame, 0)
	ticks, err := fp.pool.Resolve(first, len(sl.zones)*2)
	if err != nil {
		slog.Error("gpu.FrameProfiler: query resolve failed, dropping frame samples",
			"frame", frame, "err", err)
		return
	}
	for i, zn := range sl.zones {
		begin, end := ticks[i*2], ticks[i*2+1]
		if end < begin || fp.freq == 0 {
			continue
		}
		ms := float64(end-begin) / float64(fp.freq) * 1000
		fp.sampler.Sample("gpu", zn.label, frame, ms)
	}
}

// Release destroys the query pool. Flush the queue first.
func (fp *FrameProfiler) Release() {
	if fp.pool != nil {
		fp.pool.Destroy()
		fp.pool = nil
	}
}
