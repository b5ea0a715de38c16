// Copyright (c) 2026, Cobalt Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	_ "embed"
	"fmt"
	"image"
	"runtime"
	"time"

	"github.com/cobaltgfx/cobalt/base/errors"
	"github.com/cobaltgfx/cobalt/gpu"
	"github.com/cobaltgfx/cobalt/gpu/webgpu"
)

//go:embed trianglelit.wgsl
var trianglelit string

func init() {
	// must lock main thread for gpu!
	runtime.LockOSThread()
}

func main() {
	size := image.Point{1024, 768}
	var resize func(size image.Point)
	surface, terminate, pollEvents, err := webgpu.GLFWCreateWindow(size, "Draw Triangle", &resize)
	if err != nil {
		return
	}
	backend, err := webgpu.New(surface, true)
	if errors.Log(err) != nil {
		return
	}
	dev := errors.Log1(gpu.NewDevice(backend, nil))
	cq := errors.Log1(dev.NewQueue())
	rr := errors.Log1(dev.NewRenderer(cq, &gpu.RendererConfig{Size: size}))

	resize = func(sz image.Point) { size = sz } // picked up at BeginFrame

	pl := errors.Log1(dev.NewRenderPipeline(&gpu.RenderPipelineConfig{
		Name:        "drawtri",
		Vertex:      gpu.ShaderSource{Name: "trianglelit", Entry: "vs_main", Source: trianglelit},
		Fragment:    gpu.ShaderSource{Name: "trianglelit", Entry: "fs_main", Source: trianglelit},
		ColorFormat: gpu.BGRA8Unorm,
	}))

	destroy := func() {
		pl.Release()
		rr.Release()
		cq.Release()
		dev.Release()
		terminate()
	}

	frameCount := 0
	stTime := time.Now()

	renderFrame := func() {
		cl, err := rr.BeginFrame(size)
		if errors.Log(err) != nil {
			return
		}
		errors.Log(cl.SetRenderTarget(rr.Backbuffer(), nil))
		errors.Log(cl.SetRenderPipeline(pl))
		errors.Log(cl.Draw(3, 1))
		errors.Log(rr.FinishFrame(cl))

		frameCount++
		eTime := time.Now()
		dur := float64(eTime.Sub(stTime)) / float64(time.Second)
		if dur > 10 {
			fps := float64(frameCount) / dur
			fmt.Printf("fps: %.0f\n", fps)
			frameCount = 0
			stTime = eTime
		}
	}

	exitC := make(chan struct{}, 2)

	fpsDelay := time.Second / 60
	fpsTicker := time.NewTicker(fpsDelay)
	for {
		select {
		case <-exitC:
			fpsTicker.Stop()
			destroy()
			return
		case <-fpsTicker.C:
			if !pollEvents() {
				exitC <- struct{}{}
				continue
			}
			renderFrame()
		}
	}
}
