// Copyright (c) 2026, Cobalt Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"io/fs"
	"os"

	"github.com/cobaltgfx/cobalt/base/errors"
	"github.com/pelletier/go-toml/v2"
)

// Settings are the externally supplied configuration values the core
// reads. The core never persists settings itself; load them once at
// startup and pass to [NewDevice].
type Settings struct {
	// VSync synchronizes presentation to the display refresh.
	VSync bool `toml:"vsync"`

	// FramesInFlight is the frame latency: how many frames the CPU may
	// run ahead of the GPU before blocking. Clamped to [1, 3].
	FramesInFlight int `toml:"frames-in-flight"`

	// FlushEveryFrame flushes the queue at the end of every frame,
	// trading latency for strict ordering. Useful when debugging GPU
	// hangs, as it localizes the faulting frame.
	FlushEveryFrame bool `toml:"flush-every-frame"`

	// DebugEvents records named debug event markers into command lists.
	DebugEvents bool `toml:"debug-events"`

	// DescriptorRingSlots is the total capacity of the per-queue
	// transient descriptor ring. Size it from the expected bindings per
	// frame times FramesInFlight, with headroom.
	DescriptorRingSlots int `toml:"descriptor-ring-slots"`
}

// DefaultSettings returns the default configuration: vsync on, double
// buffering, and a descriptor ring sized for moderate scenes.
func DefaultSettings() Settings {
	return Settings{
		VSync:               true,
		FramesInFlight:      2,
		DescriptorRingSlots: 4096,
	}
}

func (st *Settings) clamp() {
	if st.FramesInFlight < 1 {
		st.FramesInFlight = 1
	}
	if st.FramesInFlight > 3 {
		st.FramesInFlight = 3
	}
	if st.DescriptorRingSlots <= 0 {
		st.DescriptorRingSlots = DefaultSettings().DescriptorRingSlots
	}
}

// OpenSettings reads settings in TOML format from the given file,
// returning defaults if the file does not exist. Unknown keys are
// ignored.
func OpenSettings(filename string) (*Settings, error) {
	st := DefaultSettings()
	b, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &st, nil
		}
		return &st, errors.Log(err)
	}
	if err := toml.Unmarshal(b, &st); err != nil {
		return &st, errors.Log(err)
	}
	st.clamp()
	return &st, nil
}
