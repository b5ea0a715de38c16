// Copyright (c) 2026, Cobalt Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"github.com/cobaltgfx/cobalt/base/errors"
)

// Transition is one recorded resource state transition, kept in an
// explicit per-list log so the barrier minimization logic can be
// tested in isolation from any backend.
type Transition struct {
	ResourceID uint64
	From       ResourceState
	To         ResourceState
}

// pendingState is a command list's local view of one resource's state:
// the state the list first needed it in (resolved against the
// committed state at submission), and the state the most recent
// barrier in this list left it in.
type pendingState struct {
	res     *Resource
	initial ResourceState
	current ResourceState
}

// bindTarget is one staged table binding: a buffer or a texture.
type bindTarget struct {
	buf *Buffer
	tex *Texture
}

// CommandList records a linear sequence of GPU operations, inserting
// the minimum number of resource state transition barriers: repeated
// uses of a resource in the same state emit nothing, and the barrier
// from the externally committed state into the list's first needed
// state is deferred to [CommandQueue.Execute].
//
// Lists are borrowed from a queue with [CommandQueue.BeginRecording]
// and returned to its pool automatically once the GPU is done with
// them. A list is not safe for concurrent recording.
type CommandList struct {
	queue   *CommandQueue
	backend BackendList

	// pending maps resource identifier to this list's local state.
	pending map[uint64]*pendingState

	// barriers is the explicit log of transitions recorded in-list
	// (excluding the submission-time patch barriers).
	barriers []Transition

	renderPl  *RenderPipeline
	computePl *ComputePipeline
	target    *Texture
	depth     *Texture
	hasTarget bool

	// staged bindings for the next draw/dispatch, keyed by register.
	stagedCB  map[int]*Buffer
	stagedTex map[int]*Texture
	stagedRW  map[int]bindTarget

	frameIndex uint64
	recording  bool
}

// FrameIndex returns the frame this list is being recorded for.
func (cl *CommandList) FrameIndex() uint64 { return cl.frameIndex }

// SetFrameIndex sets the frame this list is being recorded for.
// [Renderer.BeginFrame] does this automatically; set it manually when
// driving frames yourself (offscreen or compute loops) so streaming
// writes and profiler zones land in the right frame slot. Frame
// indices start at 1; 0 means "no frame".
func (cl *CommandList) SetFrameIndex(frame uint64) { cl.frameIndex = frame }

// Barriers returns the transitions recorded so far in this list.
// The slice is owned by the list; do not retain it across reset.
func (cl *CommandList) Barriers() []Transition { return cl.barriers }

// reset clears all recording state for reuse, including the frame
// index: a recycled list starts at frame 0 ("no frame") until the
// renderer or caller stamps it.
func (cl *CommandList) reset() {
	clear(cl.pending)
	cl.barriers = cl.barriers[:0]
	cl.renderPl = nil
	cl.computePl = nil
	cl.target = nil
	cl.depth = nil
	cl.hasTarget = false
	clear(cl.stagedCB)
	clear(cl.stagedTex)
	clear(cl.stagedRW)
	cl.frameIndex = 0
	cl.recording = true
}

// EnsureState records that the resource must be in the given state for
// the next operation, emitting a transition barrier only when the
// list-local state actually changes. The first touch of a resource
// emits nothing: that barrier, if needed, is resolved against the
// resource's committed state at submission time.
//
// Upload and readback heap resources have permanently fixed states;
// requesting an incompatible state is a caller error.
func (cl *CommandList) EnsureState(rs *Resource, needed ResourceState) error {
	if !cl.recording {
		return errors.Log(invalidStatef("EnsureState: list is not recording"))
	}
	if rs.heap != nil { // swapchain backbuffers have no heap and are fully tracked
		switch rs.heap.Kind {
		case UploadHeap:
			if stateWrites(needed) {
				return errors.Log(invalidArgf(
					"EnsureState: upload heap resource %d cannot enter write state %s", rs.id, needed))
			}
			return nil // permanently GenericRead, covers all read states
		case ReadbackHeap:
			if needed != StateCopyDst {
				return errors.Log(invalidArgf(
					"EnsureState: readback heap resource %d only supports CopyDst, not %s", rs.id, needed))
			}
			return nil
		}
	}
	ps := cl.pending[rs.id]
	if ps == nil {
		cl.pending[rs.id] = &pendingState{res: rs, initial: needed, current: needed}
		return nil
	}
	if ps.current == needed {
		return nil
	}
	cl.backend.Transition(rs, ps.current, needed)
	cl.barriers = append(cl.barriers, Transition{ResourceID: rs.id, From: ps.current, To: needed})
	ps.current = needed
	return nil
}

// stateWrites reports whether a state implies GPU writes.
func stateWrites(st ResourceState) bool {
	switch st {
	case StateCopyDst, StateUnorderedAccess, StateRenderTarget, StateDepthWrite:
		return true
	}
	return false
}

// SetRenderPipeline binds the render pipeline for this list. Only one
// pipeline may be bound per list; a second bind is an error.
func (cl *CommandList) SetRenderPipeline(pl *RenderPipeline) error {
	if cl.renderPl != nil || cl.computePl != nil {
		return errors.Log(invalidStatef("SetRenderPipeline: a pipeline is already bound to this list"))
	}
	cl.renderPl = pl
	cl.backend.SetPipeline(pl.backend)
	return nil
}

// SetComputePipeline binds the compute pipeline for this list, with
// the same one-per-list rule as [SetRenderPipeline].
func (cl *CommandList) SetComputePipeline(pl *ComputePipeline) error {
	if cl.renderPl != nil || cl.computePl != nil {
		return errors.Log(invalidStatef("SetComputePipeline: a pipeline is already bound to this list"))
	}
	cl.computePl = pl
	cl.backend.SetPipeline(pl.backend)
	return nil
}

// SetRenderTarget binds the output color target and optional depth
// target. Only one output target may be bound per list.
func (cl *CommandList) SetRenderTarget(color *Texture, depth *Texture) error {
	if cl.hasTarget {
		return errors.Log(invalidStatef("SetRenderTarget: an output target is already bound to this list"))
	}
	if err := cl.EnsureState(&color.Resource, StateRenderTarget); err != nil {
		return err
	}
	var bd BackendTexture
	if depth != nil {
		if err := cl.EnsureState(&depth.Resource, StateDepthWrite); err != nil {
			return err
		}
		bd = depth.backend
	}
	cl.target = color
	cl.depth = depth
	cl.hasTarget = true
	cl.backend.SetRenderTarget(color.backend, bd)
	return nil
}

// SetConstantBuffer stages a buffer for the constant buffer register
// for the next draw or dispatch.
func (cl *CommandList) SetConstantBuffer(register int, bf *Buffer) error {
	if err := cl.requireTableSlot(ConstantBufferBinding, register); err != nil {
		return err
	}
	cl.stagedCB[register] = bf
	return nil
}

// SetTexture stages a texture for the given t register.
func (cl *CommandList) SetTexture(register int, tx *Texture) error {
	if err := cl.requireTableSlot(TextureBinding, register); err != nil {
		return err
	}
	cl.stagedTex[register] = tx
	return nil
}

// SetRWBuffer stages a buffer for the given unordered access register.
func (cl *CommandList) SetRWBuffer(register int, bf *Buffer) error {
	if err := cl.requireTableSlot(RWResourceBinding, register); err != nil {
		return err
	}
	cl.stagedRW[register] = bindTarget{buf: bf}
	return nil
}

// SetRWTexture stages a texture for the given unordered access register.
func (cl *CommandList) SetRWTexture(register int, tx *Texture) error {
	if err := cl.requireTableSlot(RWResourceBinding, register); err != nil {
		return err
	}
	cl.stagedRW[register] = bindTarget{tex: tx}
	return nil
}

// SetPushConstants sets the inline constants for a push constant
// register. The data size must match the reflected buffer size.
func (cl *CommandList) SetPushConstants(register int, data []byte) error {
	lay, err := cl.boundLayout()
	if err != nil {
		return err
	}
	pc := lay.pushSlot(register)
	if pc == nil {
		return errors.Log(invalidArgf("SetPushConstants: b%d is not a push constant register", register))
	}
	if len(data) != pc.Size {
		return errors.Log(invalidArgf("SetPushConstants: %q expects %d bytes, got %d",
			pc.Name, pc.Size, len(data)))
	}
	cl.backend.SetPushConstants(pc.Stages, register, data)
	return nil
}

// SetVertexBuffer binds a vertex buffer to an input slot.
func (cl *CommandList) SetVertexBuffer(slot int, bf *Buffer, offset int64) error {
	if err := cl.EnsureState(&bf.Resource, StateVertexBuffer); err != nil {
		return err
	}
	cl.backend.SetVertexBuffer(slot, bf.backend, offset)
	return nil
}

// SetIndexBuffer binds the index buffer (uint32 indices).
func (cl *CommandList) SetIndexBuffer(bf *Buffer, offset int64) error {
	if err := cl.EnsureState(&bf.Resource, StateIndexBuffer); err != nil {
		return err
	}
	cl.backend.SetIndexBuffer(bf.backend, offset)
	return nil
}

// Draw draws non-indexed primitives with the staged bindings.
func (cl *CommandList) Draw(vertexCount, instanceCount int) error {
	if cl.renderPl == nil {
		return errors.Log(invalidStatef("Draw: no render pipeline bound"))
	}
	if !cl.hasTarget {
		return errors.Log(invalidStatef("Draw: no output target bound"))
	}
	if err := cl.flushBindings(); err != nil {
		return err
	}
	cl.backend.Draw(vertexCount, instanceCount)
	return nil
}

// DrawIndexed draws indexed primitives with the staged bindings.
func (cl *CommandList) DrawIndexed(indexCount, instanceCount int) error {
	if cl.renderPl == nil {
		return errors.Log(invalidStatef("DrawIndexed: no render pipeline bound"))
	}
	if !cl.hasTarget {
		return errors.Log(invalidStatef("DrawIndexed: no output target bound"))
	}
	if err := cl.flushBindings(); err != nil {
		return err
	}
	cl.backend.DrawIndexed(indexCount, instanceCount)
	return nil
}

// Dispatch dispatches compute thread groups with the staged bindings.
func (cl *CommandList) Dispatch(x, y, z int) error {
	if cl.computePl == nil {
		return errors.Log(invalidStatef("Dispatch: no compute pipeline bound"))
	}
	if err := cl.flushBindings(); err != nil {
		return err
	}
	cl.backend.Dispatch(x, y, z)
	return nil
}

// CopyBuffer copies a byte range between two distinct buffers.
// Copying a buffer to itself is rejected: the source and destination
// state requirements would conflict within one barrier pass.
func (cl *CommandList) CopyBuffer(src *Buffer, srcOff int64, dst *Buffer, dstOff, size int64) error {
	if src.id == dst.id {
		return errors.Log(invalidArgf("CopyBuffer: source and destination are the same resource %d", src.id))
	}
	if srcOff < 0 || dstOff < 0 || size <= 0 ||
		srcOff+size > src.size || dstOff+size > dst.size {
		return errors.Log(invalidArgf("CopyBuffer: range (src %d+%d, dst %d+%d) out of bounds",
			srcOff, size, dstOff, size))
	}
	if err := cl.EnsureState(&src.Resource, StateCopySrc); err != nil {
		return err
	}
	if err := cl.EnsureState(&dst.Resource, StateCopyDst); err != nil {
		return err
	}
	cl.backend.CopyBuffer(src.backend, srcOff, dst.backend, dstOff, size)
	return nil
}

// CopyBufferToTexture copies tightly packed texels from a buffer into
// mip level 0 of a texture.
func (cl *CommandList) CopyBufferToTexture(src *Buffer, srcOff int64, dst *Texture) error {
	need := int64(dst.Desc.Width * dst.Desc.Height * dst.Desc.Format.Bytes())
	if srcOff < 0 || srcOff+need > src.size {
		return errors.Log(invalidArgf("CopyBufferToTexture: texture %q needs %d bytes at offset %d, buffer has %d",
			dst.Desc.Name, need, srcOff, src.size))
	}
	if err := cl.EnsureState(&src.Resource, StateCopySrc); err != nil {
		return err
	}
	if err := cl.EnsureState(&dst.Resource, StateCopyDst); err != nil {
		return err
	}
	cl.backend.CopyBufferToTexture(src.backend, srcOff, dst.backend, &dst.Desc)
	return nil
}

// WriteTimestamp writes the GPU clock into the given query.
func (cl *CommandList) WriteTimestamp(pool BackendQueryPool, query int) {
	cl.backend.WriteTimestamp(pool, query)
}

// BeginEvent opens a named debug event region, when debug events are
// enabled in settings. Always pair with [CommandList.EndEvent].
func (cl *CommandList) BeginEvent(name string) {
	if cl.queue.dev.Settings.DebugEvents {
		cl.backend.BeginEvent(name)
	}
}

// EndEvent closes the innermost debug event region.
func (cl *CommandList) EndEvent() {
	if cl.queue.dev.Settings.DebugEvents {
		cl.backend.EndEvent()
	}
}

// boundLayout returns the binding layout of the bound pipeline.
func (cl *CommandList) boundLayout() (*BindingLayout, error) {
	switch {
	case cl.renderPl != nil:
		return &cl.renderPl.Layout, nil
	case cl.computePl != nil:
		return &cl.computePl.Layout, nil
	}
	return nil, errors.Log(invalidStatef("no pipeline bound"))
}

// requireTableSlot validates that the bound pipeline's table has a
// slot for the given kind and register.
func (cl *CommandList) requireTableSlot(kind BindingKind, register int) error {
	lay, err := cl.boundLayout()
	if err != nil {
		return err
	}
	if lay.tableSlot(kind, register) == nil {
		return errors.Log(invalidArgf("register %s%d is not in the bound pipeline's table",
			kind.registerPrefix(), register))
	}
	return nil
}

// flushBindings allocates a descriptor range for the bound pipeline's
// table, writes the staged bindings into it, transitions the staged
// resources into their required states, and binds the table. Called
// by every draw/dispatch.
func (cl *CommandList) flushBindings() error {
	lay, err := cl.boundLayout()
	if err != nil {
		return err
	}
	if lay.TableSize() == 0 {
		return nil
	}
	tb, err := cl.queue.ring.AllocateRange(lay.TableSize())
	if err != nil {
		return err
	}
	for _, ts := range lay.Table {
		var w DescriptorWrite
		w.Kind = ts.Kind
		switch ts.Kind {
		case ConstantBufferBinding:
			bf := cl.stagedCB[ts.Register]
			if bf == nil {
				return errors.Log(invalidArgf("draw: constant buffer b%d (%q) not set", ts.Register, ts.Name))
			}
			if err := cl.EnsureState(&bf.Resource, StateConstantBuffer); err != nil {
				return err
			}
			w.Buffer, w.Size = bf.backend, bf.size
		case TextureBinding:
			tx := cl.stagedTex[ts.Register]
			if tx == nil {
				return errors.Log(invalidArgf("draw: texture t%d (%q) not set", ts.Register, ts.Name))
			}
			if err := cl.EnsureState(&tx.Resource, StateShaderResource); err != nil {
				return err
			}
			w.Texture = tx.backend
		case RWResourceBinding:
			bt := cl.stagedRW[ts.Register]
			switch {
			case bt.buf != nil:
				if err := cl.EnsureState(&bt.buf.Resource, StateUnorderedAccess); err != nil {
					return err
				}
				w.Buffer, w.Size = bt.buf.backend, bt.buf.size
			case bt.tex != nil:
				if err := cl.EnsureState(&bt.tex.Resource, StateUnorderedAccess); err != nil {
					return err
				}
				w.Texture = bt.tex.backend
			default:
				return errors.Log(invalidArgf("draw: unordered resource u%d (%q) not set", ts.Register, ts.Name))
			}
		}
		if err := cl.queue.ring.write(tb, ts.TableOffset, w); err != nil {
			return err
		}
	}
	cl.backend.SetDescriptorTable(cl.queue.ring.arena, tb.First, tb.Count)
	return nil
}
