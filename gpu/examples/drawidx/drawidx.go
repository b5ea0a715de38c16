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

	"github.com/chewxy/math32"
	"github.com/cobaltgfx/cobalt/base/errors"
	"github.com/cobaltgfx/cobalt/gpu"
	"github.com/cobaltgfx/cobalt/gpu/webgpu"
)

//go:embed indexed.wgsl
var indexed string

func init() {
	// must lock main thread for gpu!
	runtime.LockOSThread()
}

// Camera matches the shader-side uniform struct.
type Camera struct {
	MVP [16]float32
}

// rotationY returns a column-major Y rotation matrix.
func rotationY(angle float32) [16]float32 {
	c, s := math32.Cos(angle), math32.Sin(angle)
	return [16]float32{
		c, 0, -s, 0,
		0, 1, 0, 0,
		s, 0, c, 0,
		0, 0, 0, 1,
	}
}

func main() {
	gpu.Debug = true
	size := image.Point{1024, 768}
	var resize func(size image.Point)
	surface, terminate, pollEvents, err := webgpu.GLFWCreateWindow(size, "Draw Triangle Indexed", &resize)
	if err != nil {
		return
	}
	backend, err := webgpu.New(surface, true)
	if errors.Log(err) != nil {
		return
	}
	dev := errors.Log1(gpu.NewDevice(backend, nil))
	cq := errors.Log1(dev.NewQueue())
	rr := errors.Log1(dev.NewRenderer(cq, &gpu.RendererConfig{
		Size:        size,
		DepthFormat: gpu.Depth32,
	}))

	resize = func(sz image.Point) { size = sz } // picked up at BeginFrame

	pl := errors.Log1(dev.NewRenderPipeline(&gpu.RenderPipelineConfig{
		Name:     "drawidx",
		Vertex:   gpu.ShaderSource{Name: "indexed", Entry: "vs_main", Source: indexed},
		Fragment: gpu.ShaderSource{Name: "indexed", Entry: "fs_main", Source: indexed},
		Attributes: []gpu.VertexAttribute{
			{Name: "pos", Location: 0, Type: gpu.Float32Vector3},
			{Name: "color", Location: 1, Type: gpu.Float32Vector3},
		},
		Cull:         gpu.CullNone,
		DepthCompare: gpu.CompareLess,
		DepthWrite:   true,
		ColorFormat:  gpu.BGRA8Unorm,
		DepthFormat:  gpu.Depth32,
	}))

	// static geometry in one upload heap, one aligned slot per buffer.
	al := dev.Limits().BufferPlacementAlign
	hp := errors.Log1(dev.CreateHeap(gpu.UploadHeap, 3*al))
	posBuf := errors.Log1(hp.PlaceBuffer(0, 9*4, gpu.UsageVertex))
	clrBuf := errors.Log1(hp.PlaceBuffer(al, 9*4, gpu.UsageVertex))
	idxBuf := errors.Log1(hp.PlaceBuffer(2*al, 3*4, gpu.UsageIndex))

	errors.Log(gpu.SetBufferFrom(posBuf, 0, []float32{
		-0.5, -0.5, 0.0,
		0.5, -0.5, 0.0,
		0.0, 0.5, 0.0}))
	errors.Log(gpu.SetBufferFrom(clrBuf, 0, []float32{
		1.0, 0.0, 0.0,
		0.0, 1.0, 0.0,
		0.0, 0.0, 1.0}))
	errors.Log(gpu.SetBufferFrom(idxBuf, 0, []uint32{0, 1, 2}))

	// per-frame camera constants, multiplexed across the frame latency.
	cam := errors.Log1(dev.NewStreamingBuffer("camera", 64, dev.Settings.FramesInFlight, nil))

	destroy := func() {
		cam.Destroy()
		posBuf.Destroy()
		clrBuf.Destroy()
		idxBuf.Destroy()
		hp.Destroy()
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
		camo := Camera{MVP: rotationY(.01 * float32(frameCount))}
		errors.Log(cam.WriteFrame(cl, gpu.ValueBytes([]Camera{camo})))

		errors.Log(cl.SetRenderTarget(rr.Backbuffer(), rr.DepthBuffer()))
		errors.Log(cl.SetRenderPipeline(pl))
		errors.Log(cl.SetConstantBuffer(0, cam.Current(rr.Frame())))
		errors.Log(cl.SetVertexBuffer(0, posBuf, 0))
		errors.Log(cl.SetVertexBuffer(1, clrBuf, 0))
		errors.Log(cl.SetIndexBuffer(idxBuf, 0))
		errors.Log(cl.DrawIndexed(3, 1))
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
