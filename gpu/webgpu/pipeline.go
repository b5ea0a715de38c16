// Copyright (c) 2026, Cobalt Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webgpu

import (
	"github.com/cobaltgfx/cobalt/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// pipeline wraps a native render or compute pipeline plus everything
// needed to build bind groups per draw: the derived binding layout,
// the pipeline's bind group layout (obtained from wgpu's automatic
// layout, which resolves buffer-vs-texture binding types from the
// shader itself), and the static samplers.
type pipeline struct {
	render  *wgpu.RenderPipeline
	compute *wgpu.ComputePipeline

	bgl      *wgpu.BindGroupLayout
	layout   gpu.BindingLayout
	samplers []*wgpu.Sampler
}

func (b *Backend) NewRenderPipeline(desc *gpu.RenderPipelineDesc) (gpu.BackendPipeline, error) {
	vsh := desc.Vertex.(*shader)
	fsh := desc.Frag.(*shader)

	// one vertex buffer slot per attribute, tightly packed.
	vbufs := make([]wgpu.VertexBufferLayout, len(desc.Attribs))
	for i, at := range desc.Attribs {
		vbufs[i] = wgpu.VertexBufferLayout{
			ArrayStride: uint64(at.Type.Bytes()),
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes: []wgpu.VertexAttribute{{
				Format:         vertexFormat(at.Type),
				Offset:         0,
				ShaderLocation: uint32(at.Location),
			}},
		}
	}

	var depth *wgpu.DepthStencilState
	if desc.DepthFormat != gpu.UndefinedFormat {
		depth = &wgpu.DepthStencilState{
			Format:            textureFormat(desc.DepthFormat),
			DepthWriteEnabled: desc.DepthWrite,
			DepthCompare:      compareFunc(desc.DepthCompare),
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilReadMask:   0xFFFFFFFF,
			StencilWriteMask:  0xFFFFFFFF,
		}
	}

	rp, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: desc.Name,
		Vertex: wgpu.VertexState{
			Module:     vsh.module,
			EntryPoint: vsh.entry,
			Buffers:    vbufs,
		},
		Fragment: &wgpu.FragmentState{
			Module:     fsh.module,
			EntryPoint: fsh.entry,
			Targets: []wgpu.ColorTargetState{{
				Format:    textureFormat(desc.ColorFormat),
				Blend:     blendState(desc.Blend),
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  topology(desc.Topology),
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  cullMode(desc.Cull),
		},
		DepthStencil: depth,
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, err
	}
	pl := &pipeline{render: rp, layout: *desc.Layout, bgl: rp.GetBindGroupLayout(0)}
	if err := pl.createSamplers(b, desc.Samplers); err != nil {
		pl.Destroy()
		return nil, err
	}
	return pl, nil
}

func (b *Backend) NewComputePipeline(desc *gpu.ComputePipelineDesc) (gpu.BackendPipeline, error) {
	csh := desc.Compute.(*shader)
	cp, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: desc.Name,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     csh.module,
			EntryPoint: csh.entry,
		},
	})
	if err != nil {
		return nil, err
	}
	pl := &pipeline{compute: cp, layout: *desc.Layout, bgl: cp.GetBindGroupLayout(0)}
	if err := pl.createSamplers(b, desc.Samplers); err != nil {
		pl.Destroy()
		return nil, err
	}
	return pl, nil
}

func (pl *pipeline) createSamplers(b *Backend, cfgs []gpu.SamplerConfig) error {
	for _, sc := range cfgs {
		sd := &wgpu.SamplerDescriptor{
			AddressModeU:  addressMode(sc.Wrap),
			AddressModeV:  addressMode(sc.Wrap),
			AddressModeW:  addressMode(sc.Wrap),
			MagFilter:     filterMode(sc.Filter),
			MinFilter:     filterMode(sc.Filter),
			MipmapFilter:  wgpu.MipmapFilterModeNearest,
			LodMinClamp:   0,
			LodMaxClamp:   32,
			MaxAnisotropy: 1,
		}
		if sc.Filter == gpu.FilterLinear {
			sd.MipmapFilter = wgpu.MipmapFilterModeLinear
		}
		if sc.UseCompare {
			sd.Compare = compareFunc(sc.Compare)
		}
		sm, err := b.device.CreateSampler(sd)
		if err != nil {
			return err
		}
		pl.samplers = append(pl.samplers, sm)
	}
	return nil
}

func (pl *pipeline) Destroy() {
	for _, sm := range pl.samplers {
		sm.Release()
	}
	pl.samplers = nil
	if pl.bgl != nil {
		pl.bgl.Release()
		pl.bgl = nil
	}
	if pl.render != nil {
		pl.render.Release()
		pl.render = nil
	}
	if pl.compute != nil {
		pl.compute.Release()
		pl.compute = nil
	}
}
