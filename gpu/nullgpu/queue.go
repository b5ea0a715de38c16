// Copyright (c) 2026, Cobalt Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nullgpu

import (
	"fmt"

	"github.com/cobaltgfx/cobalt/gpu"
)

// Queue executes submitted lists immediately on the CPU, so buffer
// copies are observable right after Submit. Fence completion is what
// is simulated: with [Backend.ManualFences] a signaled value does not
// complete until a wait happens or a test calls [Queue.Advance].
type Queue struct {
	b *Backend

	// clock is a fake GPU timestamp counter, advanced per executed
	// command so resolved zone durations are deterministic.
	clock uint64

	signaled  uint64
	completed uint64

	// Counts of executed commands, for test assertions.
	Draws       int
	Dispatches  int
	Copies      int
	Transitions int
	Submissions int
}

func (q *Queue) Submit(lists ...gpu.BackendList) error {
	for _, bl := range lists {
		cl, ok := bl.(*list)
		if !ok {
			return fmt.Errorf("foreign list %T", bl)
		}
		if !cl.closed {
			return fmt.Errorf("list submitted while still recording")
		}
		for _, op := range cl.ops {
			q.clock += 1000
			op(q)
		}
	}
	q.Submissions++
	return nil
}

func (q *Queue) NewList() (gpu.BackendList, error) {
	q.b.stats.Lists++
	return &list{q: q}, nil
}

func (q *Queue) Signal(value uint64) error {
	q.signaled = value
	if !q.b.ManualFences {
		q.completed = value
	}
	return nil
}

func (q *Queue) Completed() uint64 { return q.completed }

// Wait models the CPU blocking until the GPU reaches value: since all
// work already ran at Submit, waiting on a signaled value completes it.
func (q *Queue) Wait(value uint64) {
	if value <= q.signaled && value > q.completed {
		q.completed = value
	}
}

// Advance completes fence values up to value without a CPU wait, for
// tests driving manual fences.
func (q *Queue) Advance(value uint64) {
	if value > q.completed {
		q.completed = value
	}
}

func (q *Queue) Release() {}

// list records operations as closures over the executing queue.
type list struct {
	q      *Queue
	ops    []func(*Queue)
	closed bool
}

func (cl *list) record(op func(*Queue)) { cl.ops = append(cl.ops, op) }

func (cl *list) Transition(res any, from, to gpu.ResourceState) {
	cl.record(func(q *Queue) { q.Transitions++ })
}

func (cl *list) SetPipeline(pl gpu.BackendPipeline) {
	cl.record(func(q *Queue) {})
}

func (cl *list) SetRenderTarget(color, depth gpu.BackendTexture) {
	cl.record(func(q *Queue) {})
}

func (cl *list) SetDescriptorTable(arena gpu.BackendDescriptorArena, first, count int) {
	cl.record(func(q *Queue) {})
}

func (cl *list) SetPushConstants(stages gpu.ShaderStage, register int, data []byte) {
	cl.record(func(q *Queue) {})
}

func (cl *list) SetVertexBuffer(slot int, buf gpu.BackendBuffer, offset int64) {
	cl.record(func(q *Queue) {})
}

func (cl *list) SetIndexBuffer(buf gpu.BackendBuffer, offset int64) {
	cl.record(func(q *Queue) {})
}

func (cl *list) Draw(vertexCount, instanceCount int) {
	cl.record(func(q *Queue) { q.Draws++ })
}

func (cl *list) DrawIndexed(indexCount, instanceCount int) {
	cl.record(func(q *Queue) { q.Draws++ })
}

func (cl *list) Dispatch(x, y, z int) {
	cl.record(func(q *Queue) { q.Dispatches++ })
}

func (cl *list) CopyBuffer(src gpu.BackendBuffer, srcOff int64, dst gpu.BackendBuffer, dstOff, size int64) {
	sb, db := src.(*buffer), dst.(*buffer)
	cl.record(func(q *Queue) {
		copy(db.data[dstOff:dstOff+size], sb.data[srcOff:srcOff+size])
		q.Copies++
	})
}

func (cl *list) CopyBufferToTexture(src gpu.BackendBuffer, srcOff int64, dst gpu.BackendTexture, desc *gpu.TextureDesc) {
	sb, dt := src.(*buffer), dst.(*texture)
	size := int64(desc.Width * desc.Height * desc.Format.Bytes())
	cl.record(func(q *Queue) {
		copy(dt.data[:size], sb.data[srcOff:srcOff+size])
		q.Copies++
	})
}

func (cl *list) WriteTimestamp(pool gpu.BackendQueryPool, query int) {
	qp := pool.(*queryPool)
	cl.record(func(q *Queue) { qp.ticks[query] = q.clock })
}

func (cl *list) BeginEvent(name string) {
	cl.record(func(q *Queue) {})
}

func (cl *list) EndEvent() {
	cl.record(func(q *Queue) {})
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
	return nil
}

func (cl *list) Destroy() { cl.q.b.stats.Lists-- }
