// Copyright (c) 2026, Cobalt Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webgpu

import (
	"fmt"
	"time"

	"github.com/cobaltgfx/cobalt/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// list records commands as closures and replays them into a wgpu
// command encoder at submission. WebGPU encodes draws inside render
// pass scopes and copies outside them; the replayer opens and closes
// passes as the recorded stream requires, so the caller's flat
// command-list model maps cleanly onto it.
//
// Bind groups are built at record time from the descriptor slots the
// core has just written, combined with the pipeline's static samplers
// and any push constant buffers. Push constants themselves have no
// WebGPU equivalent and are emulated as small uniform buffers written
// through the queue.
type list struct {
	q      *queue
	ops    []func(*replay) error
	closed bool

	// record-time binding state.
	pl        *pipeline
	tableSnap []gpu.DescriptorWrite
	pushBufs  map[int]*wgpu.Buffer
	bindDirty bool

	// scratch holds push constant buffers until the list is reset,
	// which the core only does after the list's fence has completed.
	scratch []*wgpu.Buffer
}

func (cl *list) record(op func(*replay) error) { cl.ops = append(cl.ops, op) }

// Transition is a no-op: WebGPU tracks resource states internally.
func (cl *list) Transition(res any, from, to gpu.ResourceState) {}

func (cl *list) SetPipeline(bp gpu.BackendPipeline) {
	pl := bp.(*pipeline)
	cl.pl = pl
	cl.bindDirty = true
	cl.record(func(r *replay) error {
		r.pl = pl
		return nil
	})
}

func (cl *list) SetRenderTarget(color, depth gpu.BackendTexture) {
	var cv, dv *wgpu.TextureView
	if color != nil {
		cv = color.(*texture).view
	}
	if depth != nil {
		dv = depth.(*texture).view
	}
	cl.record(func(r *replay) error {
		r.endPasses()
		r.color, r.depth = cv, dv
		r.cleared = false
		return nil
	})
}

func (cl *list) SetDescriptorTable(ar gpu.BackendDescriptorArena, first, count int) {
	a := ar.(*arena)
	cl.tableSnap = append([]gpu.DescriptorWrite(nil), a.slots[first:first+count]...)
	cl.bindDirty = true
}

func (cl *list) SetPushConstants(stages gpu.ShaderStage, register int, data []byte) {
	buf, err := cl.q.b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "push constants",
		Size:  uint64(len(data)),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		cl.record(func(*replay) error { return fmt.Errorf("push constant buffer: %w", err) })
		return
	}
	if err := cl.q.b.queue.WriteBuffer(buf, 0, data); err != nil {
		buf.Release()
		cl.record(func(*replay) error { return fmt.Errorf("push constant write: %w", err) })
		return
	}
	cl.scratch = append(cl.scratch, buf)
	if cl.pushBufs == nil {
		cl.pushBufs = map[int]*wgpu.Buffer{}
	}
	cl.pushBufs[register] = buf
	cl.bindDirty = true
}

func (cl *list) SetVertexBuffer(slot int, buf gpu.BackendBuffer, offset int64) {
	b := buf.(*buffer)
	cl.record(func(r *replay) error {
		r.vertex[slot] = bufferBind{b.buf, offset}
		return nil
	})
}

func (cl *list) SetIndexBuffer(buf gpu.BackendBuffer, offset int64) {
	b := buf.(*buffer)
	cl.record(func(r *replay) error {
		r.index = bufferBind{b.buf, offset}
		return nil
	})
}

// flushBindGroup builds the bind group for the current binding state,
// if it changed since the last draw, and records setting it.
func (cl *list) flushBindGroup() {
	if !cl.bindDirty || cl.pl == nil {
		return
	}
	cl.bindDirty = false
	pl := cl.pl
	snap := cl.tableSnap
	var push map[int]*wgpu.Buffer
	if len(cl.pushBufs) > 0 {
		push = make(map[int]*wgpu.Buffer, len(cl.pushBufs))
		for k, v := range cl.pushBufs {
			push[k] = v
		}
	}
	cl.record(func(r *replay) error {
		return r.buildBindGroup(pl, snap, push)
	})
}

func (cl *list) Draw(vertexCount, instanceCount int) {
	cl.flushBindGroup()
	cl.record(func(r *replay) error {
		if err := r.beginRender(); err != nil {
			return err
		}
		r.applyDrawState()
		r.rp.Draw(uint32(vertexCount), uint32(instanceCount), 0, 0)
		return nil
	})
}

func (cl *list) DrawIndexed(indexCount, instanceCount int) {
	cl.flushBindGroup()
	cl.record(func(r *replay) error {
		if err := r.beginRender(); err != nil {
			return err
		}
		r.applyDrawState()
		if r.index.buf != nil {
			r.rp.SetIndexBuffer(r.index.buf, wgpu.IndexFormatUint32, uint64(r.index.offset), wgpu.WholeSize)
		}
		r.rp.DrawIndexed(uint32(indexCount), uint32(instanceCount), 0, 0, 0)
		return nil
	})
}

func (cl *list) Dispatch(x, y, z int) {
	cl.flushBindGroup()
	cl.record(func(r *replay) error {
		r.beginCompute()
		r.cp.SetPipeline(r.pl.compute)
		if r.bg != nil {
			r.cp.SetBindGroup(0, r.bg, nil)
		}
		r.cp.DispatchWorkgroups(uint32(x), uint32(y), uint32(z))
		return nil
	})
}

func (cl *list) CopyBuffer(src gpu.BackendBuffer, srcOff int64, dst gpu.BackendBuffer, dstOff, size int64) {
	sb, db := src.(*buffer), dst.(*buffer)
	cl.record(func(r *replay) error {
		r.endPasses()
		r.enc.CopyBufferToBuffer(sb.buf, uint64(srcOff), db.buf, uint64(dstOff), uint64(size))
		return nil
	})
}

func (cl *list) CopyBufferToTexture(src gpu.BackendBuffer, srcOff int64, dst gpu.BackendTexture, desc *gpu.TextureDesc) {
	sb, dt := src.(*buffer), dst.(*texture)
	cl.record(func(r *replay) error {
		r.endPasses()
		r.enc.CopyBufferToTexture(
			&wgpu.ImageCopyBuffer{
				Buffer: sb.buf,
				Layout: wgpu.TextureDataLayout{
					Offset:       uint64(srcOff),
					BytesPerRow:  uint32(desc.Width * desc.Format.Bytes()),
					RowsPerImage: uint32(desc.Height),
				},
			},
			&wgpu.ImageCopyTexture{
				Texture:  dt.tex,
				MipLevel: 0,
				Origin:   wgpu.Origin3D{},
				Aspect:   wgpu.TextureAspectAll,
			},
			&wgpu.Extent3D{
				Width:              uint32(desc.Width),
				Height:             uint32(desc.Height),
				DepthOrArrayLayers: 1,
			})
		return nil
	})
}

// WriteTimestamp records a CPU clock sample at replay time; see
// [Backend.CreateQueryPool].
func (cl *list) WriteTimestamp(pool gpu.BackendQueryPool, query int) {
	qp := pool.(*queryPool)
	cl.record(func(r *replay) error {
		qp.ticks[query] = uint64(time.Now().UnixNano())
		return nil
	})
}

func (cl *list) BeginEvent(name string) {
	cl.record(func(r *replay) error {
		r.pushGroup(name)
		return nil
	})
}

func (cl *list) EndEvent() {
	cl.record(func(r *replay) error {
		r.popGroup()
		return nil
	})
}

func (cl *list) Close() error {
	if cl.closed {
		return fmt.Errorf("list already closed")
	}
	cl.closed = true
	return nil
}

func (cl *list) Reset() error {
	cl.ops = cl.ops[:0]
	cl.closed = false
	cl.pl = nil
	cl.tableSnap = nil
	clear(cl.pushBufs)
	cl.bindDirty = false
	for _, buf := range cl.scratch {
		buf.Release()
	}
	cl.scratch = nil
	return nil
}

func (cl *list) Destroy() {
	for _, buf := range cl.scratch {
		buf.Release()
	}
	cl.scratch = nil
}

// replay runs the recorded command stream into a fresh encoder and
// returns the finished command buffer.
func (cl *list) replay() (*wgpu.CommandBuffer, error) {
	enc, err := cl.q.b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	r := &replay{b: cl.q.b, enc: enc, vertex: map[int]bufferBind{}}
	for _, op := range cl.ops {
		if err := op(r); err != nil {
			r.endPasses()
			r.release()
			enc.Release()
			return nil, err
		}
	}
	r.endPasses()
	buf, err := enc.Finish(nil)
	r.release()
	enc.Release()
	return buf, err
}

type bufferBind struct {
	buf    *wgpu.Buffer
	offset int64
}

// groupScope identifies the encoder or pass a debug group was pushed
// on, so it is popped on the same scope and auto-popped when a pass
// ends.
type groupScope struct {
	rp *wgpu.RenderPassEncoder
	cp *wgpu.ComputePassEncoder
}

type replay struct {
	b   *Backend
	enc *wgpu.CommandEncoder
	rp  *wgpu.RenderPassEncoder
	cp  *wgpu.ComputePassEncoder

	color, depth *wgpu.TextureView
	cleared      bool

	pl *pipeline
	bg *wgpu.BindGroup

	created []*wgpu.BindGroup
	groups  []groupScope

	vertex map[int]bufferBind
	index  bufferBind
}

// beginRender opens the render pass if needed. The first pass on a
// target clears it; reopening after an interleaved copy loads.
func (r *replay) beginRender() error {
	if r.rp != nil {
		return nil
	}
	if r.color == nil {
		return fmt.Errorf("draw without render target")
	}
	r.endCompute()
	loadOp := wgpu.LoadOpLoad
	if !r.cleared {
		loadOp = wgpu.LoadOpClear
		r.cleared = true
	}
	desc := &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       r.color,
			LoadOp:     loadOp,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{A: 1},
		}},
	}
	if r.depth != nil {
		desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            r.depth,
			DepthLoadOp:     loadOp,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1,
		}
	}
	r.rp = r.enc.BeginRenderPass(desc)
	return nil
}

func (r *replay) beginCompute() {
	if r.cp != nil {
		return
	}
	r.endRender()
	r.cp = r.enc.BeginComputePass(nil)
}

// applyDrawState sets the pipeline, bind group and vertex buffers on
// the open render pass. Redundant sets are cheap and keep the replay
// stateless across pass reopens.
func (r *replay) applyDrawState() {
	r.rp.SetPipeline(r.pl.render)
	if r.bg != nil {
		r.rp.SetBindGroup(0, r.bg, nil)
	}
	for slot, vb := range r.vertex {
		r.rp.SetVertexBuffer(uint32(slot), vb.buf, uint64(vb.offset), wgpu.WholeSize)
	}
}

// buildBindGroup creates the bind group for a draw from the descriptor
// table snapshot, the emulated push constant buffers, and the
// pipeline's static samplers.
func (r *replay) buildBindGroup(pl *pipeline, snap []gpu.DescriptorWrite, push map[int]*wgpu.Buffer) error {
	var entries []wgpu.BindGroupEntry
	for _, ts := range pl.layout.Table {
		if ts.TableOffset >= len(snap) {
			return fmt.Errorf("descriptor table snapshot too small for slot %q", ts.Name)
		}
		w := snap[ts.TableOffset]
		e := wgpu.BindGroupEntry{Binding: uint32(ts.Register)}
		switch {
		case w.Buffer != nil:
			e.Buffer = w.Buffer.(*buffer).buf
			e.Offset = uint64(w.Offset)
			e.Size = wgpu.WholeSize
			if w.Size > 0 {
				e.Size = uint64(w.Size)
			}
		case w.Texture != nil:
			e.TextureView = w.Texture.(*texture).view
		default:
			return fmt.Errorf("descriptor table slot %q is empty", ts.Name)
		}
		entries = append(entries, e)
	}
	for _, pc := range pl.layout.PushConstants {
		buf := push[pc.Register]
		if buf == nil {
			return fmt.Errorf("push constants %q never set", pc.Name)
		}
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: uint32(pc.Register),
			Buffer:  buf,
			Size:    wgpu.WholeSize,
		})
	}
	for i, sm := range pl.samplers {
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: uint32(pl.layout.Samplers[i].Register),
			Sampler: sm,
		})
	}
	bg, err := r.b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout:  pl.bgl,
		Entries: entries,
	})
	if err != nil {
		return err
	}
	r.bg = bg
	r.created = append(r.created, bg)
	return nil
}

func (r *replay) pushGroup(name string) {
	switch {
	case r.rp != nil:
		r.rp.PushDebugGroup(name)
	case r.cp != nil:
		r.cp.PushDebugGroup(name)
	default:
		r.enc.PushDebugGroup(name)
	}
	r.groups = append(r.groups, groupScope{rp: r.rp, cp: r.cp})
}

func (r *replay) popGroup() {
	if len(r.groups) == 0 {
		return
	}
	top := r.groups[len(r.groups)-1]
	r.groups = r.groups[:len(r.groups)-1]
	// only pop on the scope it was pushed on; a group whose pass
	// already ended was popped by endRender/endCompute.
	switch {
	case top.rp != nil:
		if top.rp == r.rp {
			r.rp.PopDebugGroup()
		}
	case top.cp != nil:
		if top.cp == r.cp {
			r.cp.PopDebugGroup()
		}
	default:
		if r.rp == nil && r.cp == nil {
			r.enc.PopDebugGroup()
		}
	}
}

// popScoped pops any debug groups still open on the pass that is about
// to end, keeping push/pop balanced per WebGPU scope rules.
func (r *replay) popScoped(rp *wgpu.RenderPassEncoder, cp *wgpu.ComputePassEncoder) {
	for len(r.groups) > 0 {
		top := r.groups[len(r.groups)-1]
		if top.rp != rp || top.cp != cp {
			return
		}
		r.groups = r.groups[:len(r.groups)-1]
		if rp != nil {
			rp.PopDebugGroup()
		} else if cp != nil {
			cp.PopDebugGroup()
		}
	}
}

func (r *replay) endRender() {
	if r.rp == nil {
		return
	}
	r.popScoped(r.rp, nil)
	r.rp.End()
	r.rp.Release()
	r.rp = nil
}

func (r *replay) endCompute() {
	if r.cp == nil {
		return
	}
	r.popScoped(nil, r.cp)
	r.cp.End()
	r.cp.Release()
	r.cp = nil
}

func (r *replay) endPasses() {
	r.endRender()
	r.endCompute()
}

func (r *replay) release() {
	for _, bg := range r.created {
		bg.Release()
	}
	r.created = nil
}
