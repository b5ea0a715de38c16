// Copyright (c) 2026, Cobalt Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu_test

import (
	"testing"

	"github.com/cobaltgfx/cobalt/gpu"
	"github.com/stretchr/testify/assert"
)

const plainShader = `
@vertex
fn vs_main(@builtin(vertex_index) vi: u32) -> @builtin(position) vec4<f32> {
	return vec4<f32>(0.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
	return vec4<f32>(1.0);
}
`

const litShader = `
struct Camera {
	mvp: mat4x4<f32>,
}

struct Material {
	tint: vec4<f32>,
}

@group(0) @binding(0) var<uniform> camera: Camera;
@group(0) @binding(1) var<uniform> material: Material;
@group(0) @binding(2) var albedo: texture_2d<f32>;
@group(0) @binding(0) var samp: sampler;

struct VertexOutput {
	@builtin(position) position: vec4<f32>,
	@location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(@location(0) pos: vec3<f32>, @location(1) uv: vec2<f32>) -> VertexOutput {
	var out: VertexOutput;
	out.position = camera.mvp * vec4<f32>(pos, 1.0);
	out.uv = uv;
	return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
	return textureSample(albedo, samp, in.uv) * material.tint;
}
`

const computeShader = `
@group(0) @binding(0) var<storage, read_write> data: array<u32>;

@compute @workgroup_size(64)
fn cs_main(@builtin(global_invocation_id) gid: vec3<u32>) {
	data[gid.x] = data[gid.x] * 2u;
}
`

// testRenderPipeline builds a minimal no-binding pipeline.
func testRenderPipeline(t *testing.T, dev *gpu.Device) *gpu.RenderPipeline {
	t.Helper()
	pl, err := dev.NewRenderPipeline(&gpu.RenderPipelineConfig{
		Name:        "plain",
		Vertex:      gpu.ShaderSource{Name: "plain", Entry: "vs_main", Source: plainShader},
		Fragment:    gpu.ShaderSource{Name: "plain", Entry: "fs_main", Source: plainShader},
		ColorFormat: gpu.BGRA8Unorm,
	})
	assert.NoError(t, err)
	return pl
}

// testRenderTarget places a small render target texture.
func testRenderTarget(t *testing.T, dev *gpu.Device) *gpu.Texture {
	t.Helper()
	desc := gpu.TextureDesc{
		Name: "rt", Format: gpu.BGRA8Unorm,
		Width: 16, Height: 16, MipLevels: 1,
		Usage: gpu.UsageRenderTarget,
	}
	ai := dev.TextureAllocInfo(&desc)
	hp, err := dev.CreateHeap(gpu.DeviceHeap, ai.Size)
	assert.NoError(t, err)
	tx, err := hp.PlaceTexture(0, &desc)
	assert.NoError(t, err)
	return tx
}

func litConfig() *gpu.RenderPipelineConfig {
	return &gpu.RenderPipelineConfig{
		Name:     "lit",
		Vertex:   gpu.ShaderSource{Name: "lit", Entry: "vs_main", Source: litShader},
		Fragment: gpu.ShaderSource{Name: "lit", Entry: "fs_main", Source: litShader},
		Attributes: []gpu.VertexAttribute{
			{Name: "pos", Location: 0, Type: gpu.Float32Vector3},
			{Name: "uv", Location: 1, Type: gpu.Float32Vector2},
		},
		PushConstantRegisters: []int{1},
		Samplers:              []gpu.SamplerConfig{{Filter: gpu.FilterLinear}},
		ColorFormat:           gpu.BGRA8Unorm,
	}
}

func TestPipelineLayout(t *testing.T) {
	dev, _ := newTestDevice(t, nil)
	pl, err := dev.NewRenderPipeline(litConfig())
	assert.NoError(t, err)

	lay := &pl.Layout
	assert.Equal(t, 1, len(lay.PushConstants))
	pc := lay.PushConstants[0]
	assert.Equal(t, "material", pc.Name)
	assert.Equal(t, 1, pc.Register)
	assert.Equal(t, 16, pc.Size)
	assert.Equal(t, gpu.FragmentShader, pc.Stages)

	// table is dynamic constant buffers then textures, offsets fixed
	assert.Equal(t, 2, lay.TableSize())
	assert.Equal(t, "camera", lay.Table[0].Name)
	assert.Equal(t, gpu.ConstantBufferBinding, lay.Table[0].Kind)
	assert.Equal(t, 0, lay.Table[0].TableOffset)
	assert.Equal(t, "albedo", lay.Table[1].Name)
	assert.Equal(t, gpu.TextureBinding, lay.Table[1].Kind)
	assert.Equal(t, 1, lay.Table[1].TableOffset)

	assert.Equal(t, 1, len(lay.Samplers))
	assert.Equal(t, 1, dev.Stats().Pipelines)

	doc := pl.StringDoc()
	assert.Contains(t, doc, "b1")
	assert.Contains(t, doc, "t2")
	assert.Contains(t, doc, "s0")

	pl.Release()
	assert.Equal(t, 0, dev.Stats().Pipelines)
}

func TestPipelineAttributeMismatch(t *testing.T) {
	dev, _ := newTestDevice(t, nil)

	cfg := litConfig()
	cfg.Attributes = cfg.Attributes[:1]
	_, err := dev.NewRenderPipeline(cfg)
	assert.ErrorIs(t, err, gpu.ErrInvalidArgument)
	assert.ErrorContains(t, err, "vertex attributes declared")

	cfg = litConfig()
	cfg.Attributes[1].Type = gpu.Float32Vector3
	_, err = dev.NewRenderPipeline(cfg)
	assert.ErrorIs(t, err, gpu.ErrInvalidArgument)
	// mismatches name the offending attribute index
	assert.ErrorContains(t, err, "attribute 1")

	cfg = litConfig()
	cfg.Attributes[0].Location = 5
	_, err = dev.NewRenderPipeline(cfg)
	assert.ErrorContains(t, err, "attribute 0")
}

func TestPipelinePushConstantValidation(t *testing.T) {
	dev, _ := newTestDevice(t, nil)

	cfg := litConfig()
	cfg.PushConstantRegisters = []int{7}
	_, err := dev.NewRenderPipeline(cfg)
	assert.ErrorIs(t, err, gpu.ErrInvalidArgument)
	assert.ErrorContains(t, err, "b7")

	// a runtime-sized array cannot be sized, so the push constant
	// reflects as 0 bytes and must fail creation
	zero := `
struct Unsized {
	data: array<f32>,
}
@group(0) @binding(0) var<uniform> junk: Unsized;
@vertex
fn vs_main() -> @builtin(position) vec4<f32> { return vec4<f32>(junk.data[0]); }
@fragment
fn fs_main() -> @location(0) vec4<f32> { return vec4<f32>(1.0); }
`
	_, err = dev.NewRenderPipeline(&gpu.RenderPipelineConfig{
		Name:                  "zero",
		Vertex:                gpu.ShaderSource{Name: "zero", Entry: "vs_main", Source: zero},
		Fragment:              gpu.ShaderSource{Name: "zero", Entry: "fs_main", Source: zero},
		PushConstantRegisters: []int{0},
		ColorFormat:           gpu.BGRA8Unorm,
	})
	assert.ErrorIs(t, err, gpu.ErrInvalidArgument)
	assert.ErrorContains(t, err, "size 0")

	// 5 mat4x4 = 320 bytes, over the backend's 256-byte inline limit
	huge := `
struct Bones {
	mats: array<mat4x4<f32>, 5>,
}
@group(0) @binding(0) var<uniform> bones: Bones;
@vertex
fn vs_main() -> @builtin(position) vec4<f32> { return bones.mats[0] * vec4<f32>(0.0); }
@fragment
fn fs_main() -> @location(0) vec4<f32> { return vec4<f32>(1.0); }
`
	_, err = dev.NewRenderPipeline(&gpu.RenderPipelineConfig{
		Name:                  "huge",
		Vertex:                gpu.ShaderSource{Name: "huge", Entry: "vs_main", Source: huge},
		Fragment:              gpu.ShaderSource{Name: "huge", Entry: "fs_main", Source: huge},
		PushConstantRegisters: []int{0},
		ColorFormat:           gpu.BGRA8Unorm,
	})
	assert.ErrorIs(t, err, gpu.ErrInvalidArgument)
	assert.ErrorContains(t, err, "exceeds limit")
}

func TestPipelineSamplerValidation(t *testing.T) {
	dev, _ := newTestDevice(t, nil)

	// count mismatch
	cfg := litConfig()
	cfg.Samplers = nil
	_, err := dev.NewRenderPipeline(cfg)
	assert.ErrorIs(t, err, gpu.ErrInvalidArgument)

	// declared but unused sampler
	unused := `
@group(0) @binding(0) var samp: sampler;
@vertex
fn vs_main() -> @builtin(position) vec4<f32> { return vec4<f32>(0.0); }
@fragment
fn fs_main() -> @location(0) vec4<f32> { return vec4<f32>(1.0); }
`
	_, err = dev.NewRenderPipeline(&gpu.RenderPipelineConfig{
		Name:        "unused",
		Vertex:      gpu.ShaderSource{Name: "unused", Entry: "vs_main", Source: unused},
		Fragment:    gpu.ShaderSource{Name: "unused", Entry: "fs_main", Source: unused},
		Samplers:    []gpu.SamplerConfig{{}},
		ColorFormat: gpu.BGRA8Unorm,
	})
	assert.ErrorIs(t, err, gpu.ErrInvalidArgument)
	assert.ErrorContains(t, err, "never used")
}

func TestPipelineStageNameConflict(t *testing.T) {
	dev, _ := newTestDevice(t, nil)
	vtx := `
@group(0) @binding(0) var<uniform> camera: mat4x4<f32>;
@vertex
fn vs_main() -> @builtin(position) vec4<f32> { return camera * vec4<f32>(0.0); }
`
	frg := `
@group(0) @binding(0) var<uniform> tint: vec4<f32>;
@fragment
fn fs_main() -> @location(0) vec4<f32> { return tint; }
`
	_, err := dev.NewRenderPipeline(&gpu.RenderPipelineConfig{
		Name:        "conflict",
		Vertex:      gpu.ShaderSource{Name: "vtx", Entry: "vs_main", Source: vtx},
		Fragment:    gpu.ShaderSource{Name: "frg", Entry: "fs_main", Source: frg},
		ColorFormat: gpu.BGRA8Unorm,
	})
	assert.ErrorIs(t, err, gpu.ErrInvalidArgument)
	assert.ErrorContains(t, err, "b0")
}

func TestPipelineCompileError(t *testing.T) {
	dev, _ := newTestDevice(t, nil)
	_, err := dev.NewRenderPipeline(&gpu.RenderPipelineConfig{
		Name:        "bad",
		Vertex:      gpu.ShaderSource{Name: "bad", Entry: "missing_entry", Source: plainShader},
		Fragment:    gpu.ShaderSource{Name: "bad", Entry: "fs_main", Source: plainShader},
		ColorFormat: gpu.BGRA8Unorm,
	})
	assert.ErrorIs(t, err, gpu.ErrShaderCompile)
	assert.ErrorContains(t, err, "bad")
}

func TestRebuildKeepsPreviousOnFailure(t *testing.T) {
	dev, _ := newTestDevice(t, nil)
	pl, err := dev.NewRenderPipeline(litConfig())
	assert.NoError(t, err)
	before := pl.Layout

	bad := gpu.ShaderSource{Name: "lit", Entry: "vs_main", Source: "not wgsl at all"}
	err = pl.Rebuild(bad, pl.Config.Fragment)
	assert.Error(t, err)

	// previous compiled state is intact
	assert.Equal(t, before, pl.Layout)
	assert.Equal(t, 1, dev.Stats().Pipelines)

	// a valid rebuild goes through
	assert.NoError(t, pl.Rebuild(pl.Config.Vertex, pl.Config.Fragment))
}

func TestComputePipelineAndDispatch(t *testing.T) {
	dev, _ := newTestDevice(t, nil)
	cq, _ := dev.NewQueue()

	pl, err := dev.NewComputePipeline(&gpu.ComputePipelineConfig{
		Name:    "double",
		Compute: gpu.ShaderSource{Name: "double", Entry: "cs_main", Source: computeShader},
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, pl.Layout.TableSize())
	assert.Equal(t, gpu.RWResourceBinding, pl.Layout.Table[0].Kind)

	al := dev.Limits().BufferPlacementAlign
	dh, _ := dev.CreateHeap(gpu.DeviceHeap, al)
	data, _ := dh.PlaceBuffer(0, 256, gpu.UsageUnorderedAccess)

	cl, _ := cq.BeginRecording()
	assert.NoError(t, cl.SetComputePipeline(pl))

	// dispatch without staging the binding names the register
	err = cl.Dispatch(1, 1, 1)
	assert.ErrorIs(t, err, gpu.ErrInvalidArgument)
	assert.ErrorContains(t, err, "u0")

	assert.NoError(t, cl.SetRWBuffer(0, data))
	assert.NoError(t, cl.Dispatch(1, 1, 1))
	assert.NoError(t, cq.Execute(cl))
	assert.Equal(t, gpu.StateUnorderedAccess, data.State())
}

func TestSetPushConstantsValidation(t *testing.T) {
	dev, _ := newTestDevice(t, nil)
	cq, _ := dev.NewQueue()
	pl, err := dev.NewRenderPipeline(litConfig())
	assert.NoError(t, err)

	cl, _ := cq.BeginRecording()
	assert.NoError(t, cl.SetRenderPipeline(pl))

	// wrong size
	err = cl.SetPushConstants(1, make([]byte, 8))
	assert.ErrorIs(t, err, gpu.ErrInvalidArgument)
	assert.ErrorContains(t, err, "16 bytes")

	// not a push register
	err = cl.SetPushConstants(0, make([]byte, 16))
	assert.ErrorIs(t, err, gpu.ErrInvalidArgument)

	assert.NoError(t, cl.SetPushConstants(1, make([]byte, 16)))
}

func TestDrawMissingTableBinding(t *testing.T) {
	dev, _ := newTestDevice(t, nil)
	cq, _ := dev.NewQueue()
	pl, err := dev.NewRenderPipeline(litConfig())
	assert.NoError(t, err)

	al := dev.Limits().BufferPlacementAlign
	up, _ := dev.CreateHeap(gpu.UploadHeap, al)
	cam, _ := up.PlaceBuffer(0, 64, gpu.UsageConstant)

	cl, _ := cq.BeginRecording()
	assert.NoError(t, cl.SetRenderPipeline(pl))
	assert.NoError(t, cl.SetRenderTarget(testRenderTarget(t, dev), nil))
	assert.NoError(t, cl.SetConstantBuffer(0, cam))
	assert.NoError(t, cl.SetPushConstants(1, make([]byte, 16)))

	// albedo t2 never staged
	err = cl.DrawIndexed(3, 1)
	assert.ErrorIs(t, err, gpu.ErrInvalidArgument)
	assert.ErrorContains(t, err, "t2")

	// staging an unknown register is caught immediately
	assert.ErrorIs(t, cl.SetConstantBuffer(9, cam), gpu.ErrInvalidArgument)
}
