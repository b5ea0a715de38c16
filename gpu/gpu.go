// Copyright (c) 2026, Cobalt Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"
	"log/slog"

	"github.com/cobaltgfx/cobalt/base/errors"
)

// Debug enables additional validation and diagnostic dumps, such as the
// full binding signature summary on pipeline creation. It is a build
// time style switch, not per-device state.
var Debug = false

// Device is the explicit root object of the layer: it owns the backend,
// the settings, the resource identifier counter, and the residency
// table. There are no package-level singletons; everything reachable
// from a Device is torn down by [Device.Release].
type Device struct {
	// Settings are the configuration values this device was created
	// with. Read-only after creation.
	Settings Settings

	backend Backend
	limits  Limits

	// nextID is the monotonically increasing resource identifier
	// counter. Identifiers are unique per device and used purely for
	// state-tracking lookups, never for ownership.
	nextID uint64

	// heaps is the residency table: every live heap, so the residency
	// system can evict and resubmit heaps under memory pressure.
	heaps map[*Heap]bool

	stats DeviceStats
}

// DeviceStats counts live objects, primarily so tests and leak checks
// can compare allocation counts across operations like surface resize.
type DeviceStats struct {
	Heaps     int
	Buffers   int
	Textures  int
	Pipelines int
}

// NewDevice creates a device on the given backend. A nil backend is an
// initialization failure ([ErrNoSuitableDevice]), which callers should
// treat as fatal.
func NewDevice(backend Backend, settings *Settings) (*Device, error) {
	if backend == nil {
		return nil, errors.Log(fmt.Errorf("%w: no backend", ErrNoSuitableDevice))
	}
	st := DefaultSettings()
	if settings != nil {
		st = *settings
	}
	st.clamp()
	dv := &Device{
		Settings: st,
		backend:  backend,
		limits:   backend.Limits(),
		heaps:    make(map[*Heap]bool),
	}
	slog.Info("gpu.NewDevice", "backend", backend.Name(),
		"framesInFlight", st.FramesInFlight, "vsync", st.VSync)
	return dv, nil
}

// Backend returns the native backend. Most callers never need it.
func (dv *Device) Backend() Backend { return dv.backend }

// Limits returns the backend implementation limits.
func (dv *Device) Limits() Limits { return dv.limits }

// Stats returns the current live object counts.
func (dv *Device) Stats() DeviceStats { return dv.stats }

// newID returns the next resource identifier. Identifiers start at 1;
// 0 is never a valid resource.
func (dv *Device) newID() uint64 {
	dv.nextID++
	return dv.nextID
}

// NewQueue creates a command queue on this device.
func (dv *Device) NewQueue() (*CommandQueue, error) {
	bq, err := dv.backend.NewQueue()
	if err != nil {
		return nil, backendErr("NewQueue", err)
	}
	return &CommandQueue{dev: dv, backend: bq}, nil
}

// SetHeapResident informs the backend residency system whether the
// given heap should currently be backed by physical device memory.
// Evicting a heap whose resources are referenced by in-flight work is
// a caller error; flush first.
func (dv *Device) SetHeapResident(hp *Heap, resident bool) error {
	if !dv.heaps[hp] {
		return errors.Log(invalidArgf("SetHeapResident: unknown heap"))
	}
	if err := hp.backend.SetResident(resident); err != nil {
		return backendErr("SetResident", err)
	}
	hp.resident = resident
	return nil
}

// Release tears down the device and the backend. All queues must have
// been flushed and all resources destroyed before calling this.
func (dv *Device) Release() {
	if dv.backend == nil {
		return
	}
	if dv.stats.Heaps != 0 || dv.stats.Pipelines != 0 {
		slog.Warn("gpu.Device.Release: live objects at teardown",
			"heaps", dv.stats.Heaps, "buffers", dv.stats.Buffers,
			"textures", dv.stats.Textures, "pipelines", dv.stats.Pipelines)
	}
	dv.backend.Release()
	dv.backend = nil
	dv.heaps = nil
}
