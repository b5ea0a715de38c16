// Copyright (c) 2026, Cobalt Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/cobaltgfx/cobalt/base/errors"
)

// PushConstantSlot is a constant buffer promoted to a direct inline
// root constant, because its register matched a caller-declared push
// constant register.
type PushConstantSlot struct {
	Name     string
	Register int
	Size     int
	Stages   ShaderStage
}

// TableSlot is one entry of a pipeline's contiguous binding table:
// a merged binding plus its fixed offset within the table.
type TableSlot struct {
	BindingSlot

	// TableOffset is the slot's offset within the descriptor table
	// range allocated per draw/dispatch. Fixed at pipeline creation.
	TableOffset int
}

// BindingLayout is the complete derived binding interface of a
// pipeline: push constants (direct root parameters), the dynamic
// binding table (constant buffers sorted by register, then textures,
// then unordered resources), and the static samplers. It is immutable
// after pipeline creation and reused by every draw that binds the
// pipeline.
type BindingLayout struct {
	PushConstants []PushConstantSlot
	Table         []TableSlot
	Samplers      []BindingSlot
}

// TableSize returns the number of descriptor slots one draw needs.
func (bl *BindingLayout) TableSize() int { return len(bl.Table) }

// tableSlot returns the table entry for the given kind and register.
func (bl *BindingLayout) tableSlot(kind BindingKind, register int) *TableSlot {
	for i := range bl.Table {
		ts := &bl.Table[i]
		if ts.Kind == kind && ts.Register == register {
			return ts
		}
	}
	return nil
}

// pushSlot returns the push constant entry for the given register.
func (bl *BindingLayout) pushSlot(register int) *PushConstantSlot {
	for i := range bl.PushConstants {
		if bl.PushConstants[i].Register == register {
			return &bl.PushConstants[i]
		}
	}
	return nil
}

// RenderPipelineConfig is the caller-declared contract for a render
// pipeline: shader stages, the expected vertex attribute list, which
// registers are push constants, the static samplers, and fixed
// function state.
type RenderPipelineConfig struct {
	Name     string
	Vertex   ShaderSource
	Fragment ShaderSource

	// Attributes must exactly match what vertex stage reflection
	// reports, in count, location, and type.
	Attributes []VertexAttribute

	// PushConstantRegisters lists the b registers to promote to direct
	// inline constants. Every listed register must be referenced by
	// some stage.
	PushConstantRegisters []int

	// Samplers configures static sampler registers 0..len-1. Every one
	// must be declared and used by the shaders.
	Samplers []SamplerConfig

	Topology     Topology
	Cull         CullMode
	Blend        BlendMode
	DepthCompare CompareFunc
	DepthWrite   bool
	ColorFormat  TextureFormat
	DepthFormat  TextureFormat
}

// ComputePipelineConfig is the caller-declared contract for a compute
// pipeline.
type ComputePipelineConfig struct {
	Name                  string
	Compute               ShaderSource
	PushConstantRegisters []int
	Samplers              []SamplerConfig
}

// Pipeline is the shared base of [RenderPipeline] and
// [ComputePipeline]: compiled stages plus the derived binding layout.
// It is immutable after creation except for full rebuild (hot reload
// replaces the whole compiled state, never patches it).
type Pipeline struct {
	Name string

	// Layout is the derived binding layout. Read-only.
	Layout BindingLayout

	dev     *Device
	stages  map[ShaderStage]BackendShader
	backend BackendPipeline
}

// RenderPipeline is a pipeline for draw commands.
type RenderPipeline struct {
	Pipeline

	// Config is the creation config, kept for hot reload.
	Config RenderPipelineConfig
}

// ComputePipeline is a pipeline for dispatch commands.
type ComputePipeline struct {
	Pipeline

	// Config is the creation config, kept for hot reload.
	Config ComputePipelineConfig
}

// NewRenderPipeline compiles the vertex and fragment stages, reflects
// their bound resources, cross-validates them against the config, and
// builds the native pipeline. See the package docs for the register
// conventions. On success the full signature summary is logged when
// [Debug] is set.
func (dv *Device) NewRenderPipeline(cfg *RenderPipelineConfig) (*RenderPipeline, error) {
	pl := &RenderPipeline{Config: *cfg}
	if err := dv.buildRender(&pl.Pipeline, cfg); err != nil {
		return nil, err
	}
	dv.stats.Pipelines++
	return pl, nil
}

// NewComputePipeline compiles the compute stage, reflects its bound
// resources, validates them against the config, and builds the native
// pipeline.
func (dv *Device) NewComputePipeline(cfg *ComputePipelineConfig) (*ComputePipeline, error) {
	pl := &ComputePipeline{Config: *cfg}
	if err := dv.buildCompute(&pl.Pipeline, cfg); err != nil {
		return nil, err
	}
	dv.stats.Pipelines++
	return pl, nil
}

// Rebuild recompiles the pipeline from new shader sources (hot
// reload). On any error the previous compiled state is left fully
// intact and a warning is logged; the pipeline remains usable.
func (pl *RenderPipeline) Rebuild(vertex, fragment ShaderSource) error {
	cfg := pl.Config
	cfg.Vertex = vertex
	cfg.Fragment = fragment
	var scratch Pipeline
	if err := pl.dev.buildRender(&scratch, &cfg); err != nil {
		slog.Warn("gpu.RenderPipeline.Rebuild failed; keeping previous pipeline",
			"pipeline", pl.Name, "err", err)
		return err
	}
	pl.replaceWith(&scratch)
	pl.Config = cfg
	return nil
}

// Rebuild recompiles the compute pipeline from a new shader source,
// with the same keep-previous-on-failure semantics as the render
// version.
func (pl *ComputePipeline) Rebuild(compute ShaderSource) error {
	cfg := pl.Config
	cfg.Compute = compute
	var scratch Pipeline
	if err := pl.dev.buildCompute(&scratch, &cfg); err != nil {
		slog.Warn("gpu.ComputePipeline.Rebuild failed; keeping previous pipeline",
			"pipeline", pl.Name, "err", err)
		return err
	}
	pl.replaceWith(&scratch)
	pl.Config = cfg
	return nil
}

// replaceWith swaps in a successfully built scratch pipeline,
// releasing the previous compiled state.
func (pl *Pipeline) replaceWith(scratch *Pipeline) {
	pl.releaseCompiled()
	pl.Layout = scratch.Layout
	pl.stages = scratch.stages
	pl.backend = scratch.backend
}

// Release destroys the pipeline. In-flight lists must not reference it.
func (pl *Pipeline) Release() {
	if pl.backend == nil && pl.stages == nil {
		return
	}
	pl.releaseCompiled()
	pl.dev.stats.Pipelines--
}

func (pl *Pipeline) releaseCompiled() {
	for _, sh := range pl.stages {
		sh.Destroy()
	}
	pl.stages = nil
	if pl.backend != nil {
		pl.backend.Destroy()
		pl.backend = nil
	}
}

// buildRender does the full compile + reflect + validate + native
// build sequence into pl, which must be zero or scratch.
func (dv *Device) buildRender(pl *Pipeline, cfg *RenderPipelineConfig) error {
	pl.dev = dv
	pl.Name = cfg.Name
	vsh, vrf, err := dv.compileStage(VertexShader, cfg.Vertex)
	if err != nil {
		return err
	}
	fsh, frf, err := dv.compileStage(FragmentShader, cfg.Fragment)
	if err != nil {
		vsh.Destroy()
		return err
	}
	pl.stages = map[ShaderStage]BackendShader{VertexShader: vsh, FragmentShader: fsh}

	fail := func(err error) error {
		pl.releaseCompiled()
		return errors.Log(err)
	}
	if err := validateAttributes(cfg.Name, cfg.Attributes, vrf.Attributes); err != nil {
		return fail(err)
	}
	layout, err := dv.mergeBindings(cfg.Name, cfg.PushConstantRegisters, len(cfg.Samplers), vrf, frf)
	if err != nil {
		return fail(err)
	}
	pl.Layout = *layout

	bp, err := dv.backend.NewRenderPipeline(&RenderPipelineDesc{
		Name:         cfg.Name,
		Vertex:       vsh,
		Frag:         fsh,
		Layout:       layout,
		Attribs:      cfg.Attributes,
		Topology:     cfg.Topology,
		Cull:         cfg.Cull,
		Blend:        cfg.Blend,
		DepthCompare: cfg.DepthCompare,
		DepthWrite:   cfg.DepthWrite,
		ColorFormat:  cfg.ColorFormat,
		DepthFormat:  cfg.DepthFormat,
		Samplers:     cfg.Samplers,
	})
	if err != nil {
		return fail(backendErr("NewRenderPipeline", err))
	}
	pl.backend = bp
	pl.logSignature()
	return nil
}

// buildCompute is the compute-stage analogue of buildRender.
func (dv *Device) buildCompute(pl *Pipeline, cfg *ComputePipelineConfig) error {
	pl.dev = dv
	pl.Name = cfg.Name
	csh, crf, err := dv.compileStage(ComputeShader, cfg.Compute)
	if err != nil {
		return err
	}
	pl.stages = map[ShaderStage]BackendShader{ComputeShader: csh}

	layout, err := dv.mergeBindings(cfg.Name, cfg.PushConstantRegisters, len(cfg.Samplers), crf)
	if err != nil {
		pl.releaseCompiled()
		return errors.Log(err)
	}
	pl.Layout = *layout

	bp, err := dv.backend.NewComputePipeline(&ComputePipelineDesc{
		Name:     cfg.Name,
		Compute:  csh,
		Layout:   layout,
		Samplers: cfg.Samplers,
	})
	if err != nil {
		pl.releaseCompiled()
		return backendErr("NewComputePipeline", err)
	}
	pl.backend = bp
	pl.logSignature()
	return nil
}

// compileStage compiles one stage through the backend and reflects it.
// Compiler diagnostics are surfaced as [ErrShaderCompile] with the
// shader name.
func (dv *Device) compileStage(stage ShaderStage, src ShaderSource) (BackendShader, *ShaderReflection, error) {
	if src.Source == "" {
		return nil, nil, errors.Log(invalidArgf("shader %q: empty source", src.Name))
	}
	entry := src.Entry
	if entry == "" {
		entry = "main"
	}
	sh, err := dv.backend.Compile(stage, src.Name, entry, src.Source)
	if err != nil {
		return nil, nil, errors.Log(fmt.Errorf("%w: %s: %w", ErrShaderCompile, src.Name, err))
	}
	rf, err := Reflect(stage, entry, src.Source)
	if err != nil {
		sh.Destroy()
		return nil, nil, errors.Log(fmt.Errorf("%s: %w", src.Name, err))
	}
	return sh, rf, nil
}

// validateAttributes cross-checks the caller-declared vertex attribute
// list against vertex stage reflection: count, location and type must
// match exactly, and mismatches name the offending attribute index.
func validateAttributes(name string, declared, reflected []VertexAttribute) error {
	if len(declared) != len(reflected) {
		return invalidArgf("pipeline %q: %d vertex attributes declared, shader has %d",
			name, len(declared), len(reflected))
	}
	for i, da := range declared {
		ra := reflected[i]
		if da.Location != ra.Location {
			return invalidArgf("pipeline %q: attribute %d: declared location %d, shader has %d",
				name, i, da.Location, ra.Location)
		}
		if da.Type != ra.Type {
			return invalidArgf("pipeline %q: attribute %d: declared type %s, shader has %s",
				name, i, da.Type, ra.Type)
		}
	}
	return nil
}

// mergeBindings gathers the reflected bindings of all stages, merges
// bindings referenced by multiple stages into single descriptors with
// combined stage visibility, partitions constant buffers into push
// constants versus table-bound ones, validates samplers, and assigns
// the fixed table offsets.
func (dv *Device) mergeBindings(name string, pushRegs []int, numSamplers int, stages ...*ShaderReflection) (*BindingLayout, error) {
	merged := map[BindingKind]map[int]*BindingSlot{}
	for _, rf := range stages {
		for _, b := range rf.Bindings {
			km := merged[b.Kind]
			if km == nil {
				km = map[int]*BindingSlot{}
				merged[b.Kind] = km
			}
			prev, ok := km[b.Register]
			if !ok {
				nb := b
				nb.Stages = rf.Stage
				km[b.Register] = &nb
				continue
			}
			if prev.Name != b.Name {
				return nil, invalidArgf(
					"pipeline %q: register %s%d bound to %q in one stage and %q in another",
					name, b.Kind.registerPrefix(), b.Register, prev.Name, b.Name)
			}
			prev.Stages |= rf.Stage
			prev.used = prev.used || b.used
		}
	}

	lay := &BindingLayout{}

	// constant buffers sorted by register, partitioned into push
	// constants versus table-bound.
	cbs := sortedByRegister(merged[ConstantBufferBinding])
	for _, reg := range pushRegs {
		i := slices.IndexFunc(cbs, func(b *BindingSlot) bool { return b.Register == reg })
		if i < 0 {
			return nil, invalidArgf(
				"pipeline %q: push constant register b%d is not referenced by any stage", name, reg)
		}
		b := cbs[i]
		if b.Size == 0 || b.Size%4 != 0 {
			return nil, invalidArgf(
				"pipeline %q: push constant %q: size %d must be a positive multiple of 4", name, b.Name, b.Size)
		}
		if b.Size > dv.limits.MaxPushConstantBytes {
			return nil, invalidArgf(
				"pipeline %q: push constant %q: size %d exceeds limit %d",
				name, b.Name, b.Size, dv.limits.MaxPushConstantBytes)
		}
		lay.PushConstants = append(lay.PushConstants, PushConstantSlot{
			Name: b.Name, Register: b.Register, Size: b.Size, Stages: b.Stages,
		})
		cbs = slices.Delete(cbs, i, i+1)
	}

	// samplers validated by index continuity: registers 0..N-1 must
	// all be declared and used.
	samplers := sortedByRegister(merged[SamplerBinding])
	if numSamplers > dv.limits.MaxSamplers {
		return nil, invalidArgf("pipeline %q: %d samplers exceeds limit %d",
			name, numSamplers, dv.limits.MaxSamplers)
	}
	if len(samplers) != numSamplers {
		return nil, invalidArgf("pipeline %q: %d samplers configured, shaders declare %d",
			name, numSamplers, len(samplers))
	}
	for i, b := range samplers {
		if b.Register != i {
			return nil, invalidArgf("pipeline %q: sampler registers not contiguous: missing s%d", name, i)
		}
		if !b.used {
			return nil, invalidArgf("pipeline %q: sampler %q (s%d) is declared but never used",
				name, b.Name, b.Register)
		}
		lay.Samplers = append(lay.Samplers, *b)
	}

	// the shared binding table: dynamic constant buffers, then
	// textures, then unordered resources, each sorted by register.
	off := 0
	for _, group := range [][]*BindingSlot{
		cbs,
		sortedByRegister(merged[TextureBinding]),
		sortedByRegister(merged[RWResourceBinding]),
	} {
		for _, b := range group {
			lay.Table = append(lay.Table, TableSlot{BindingSlot: *b, TableOffset: off})
			off++
		}
	}
	return lay, nil
}

func sortedByRegister(m map[int]*BindingSlot) []*BindingSlot {
	out := make([]*BindingSlot, 0, len(m))
	for _, b := range m {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b *BindingSlot) int { return a.Register - b.Register })
	return out
}

func (bk BindingKind) registerPrefix() string {
	switch bk {
	case ConstantBufferBinding:
		return "b"
	case TextureBinding:
		return "t"
	case RWResourceBinding:
		return "u"
	case SamplerBinding:
		return "s"
	}
	return "?"
}

// logSignature logs the pipeline's full binding signature summary.
func (pl *Pipeline) logSignature() {
	slog.Info("gpu.Pipeline created", "pipeline", pl.Name,
		"pushConstants", len(pl.Layout.PushConstants),
		"tableSlots", pl.Layout.TableSize(),
		"samplers", len(pl.Layout.Samplers))
	if Debug {
		fmt.Printf("%s\n", pl.StringDoc())
	}
}

// StringDoc returns a readable summary of the pipeline's signature:
// push constants, binding table and samplers with registers, sizes,
// table offsets, and stage visibility.
func (pl *Pipeline) StringDoc() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Pipeline: %s\n", pl.Name)
	for _, pc := range pl.Layout.PushConstants {
		fmt.Fprintf(&sb, "    Push: b%d\t%s\t(size: %d)\t%s\n", pc.Register, pc.Name, pc.Size, pc.Stages)
	}
	for _, ts := range pl.Layout.Table {
		fmt.Fprintf(&sb, "    Table[%d]: %s%d\t%s\t%s\t%s\n", ts.TableOffset,
			ts.Kind.registerPrefix(), ts.Register, ts.Name, ts.Kind, ts.Stages)
	}
	for _, sm := range pl.Layout.Samplers {
		fmt.Fprintf(&sb, "    Sampler: s%d\t%s\t%s\n", sm.Register, sm.Name, sm.Stages)
	}
	return sb.String()
}
