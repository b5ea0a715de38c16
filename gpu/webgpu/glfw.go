// Copyright (c) 2026, Cobalt Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build (darwin && !ios) || windows || (linux && !android) || dragonfly || openbsd

package webgpu

import (
	"image"

	"github.com/cobaltgfx/cobalt/base/errors"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// This file holds the glfw dependencies, for desktop platform builds.
// Other platforms need to provide their own surface and event loop.

// Init initializes glfw for windowed use. Must be called on the main
// thread, before any window or surface creation.
func Init() error {
	return errors.Log(glfw.Init())
}

// Terminate shuts glfw down. Call as the last thing before quitting,
// on the main thread.
func Terminate() {
	glfw.Terminate()
}

// GLFWCreateWindow makes a glfw window and its WebGPU surface, for use
// in examples and tools. The returned surface is for [New], terminate
// tears the window down, and pollEvents processes window events and
// reports false once the window should close.
func GLFWCreateWindow(size image.Point, title string, resize *func(size image.Point)) (surface *wgpu.Surface, terminate func(), pollEvents func() bool, err error) {
	if err = Init(); err != nil {
		return
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(size.X, size.Y, title, nil, nil)
	if err != nil {
		return
	}
	surface = Instance().CreateSurface(wgpuglfw.GetSurfaceDescriptor(window))
	terminate = func() {
		window.Destroy()
		Terminate()
	}
	pollEvents = func() bool {
		if window.ShouldClose() {
			return false
		}
		glfw.PollEvents()
		return true
	}
	window.SetSizeCallback(func(w *glfw.Window, width, height int) {
		if resize != nil {
			(*resize)(image.Point{width, height})
		}
	})
	return
}
