// Copyright (c) 2026, Cobalt Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"log/slog"

	"github.com/cobaltgfx/cobalt/base/errors"
)

// CommandQueue is an ordered submission channel to the GPU with a
// monotonic fence. It owns a pool of reusable command lists and the
// transient descriptor ring those lists allocate binding tables from.
//
// Submission order must equal recording order when lists share
// resources: committed resource states are resolved at [Execute] on
// that precondition.
type CommandQueue struct {
	dev     *Device
	backend BackendQueue

	// fenceValue is the monotonic fence counter; the last issued value.
	fenceValue uint64

	// lastSignaled is the last value actually passed to the backend
	// fence signal.
	lastSignaled uint64

	ring *DescriptorRing

	free       []*CommandList
	unsignaled []*CommandList // executed, awaiting a fence value
	inFlight   []inFlightList

	// patchLog accumulates the submission-time barriers inserted to
	// move resources from their committed states into each list's
	// initial states.
	patchLog []Transition
}

type inFlightList struct {
	list  *CommandList
	fence uint64
}

// Ring returns the queue's transient descriptor ring.
func (cq *CommandQueue) Ring() (*DescriptorRing, error) {
	if cq.ring == nil {
		r, err := newDescriptorRing(cq.dev.backend, cq.dev.Settings.DescriptorRingSlots)
		if err != nil {
			return nil, err
		}
		cq.ring = r
	}
	return cq.ring, nil
}

// BeginRecording returns a command list in recording state, drawn from
// the pool of lists whose previous GPU work has completed, or newly
// created if none is free.
func (cq *CommandQueue) BeginRecording() (*CommandList, error) {
	if _, err := cq.Ring(); err != nil {
		return nil, err
	}
	cq.reclaim()
	if n := len(cq.free); n > 0 {
		cl := cq.free[n-1]
		cq.free = cq.free[:n-1]
		if err := cl.backend.Reset(); err != nil {
			return nil, backendErr("List.Reset", err)
		}
		cl.reset()
		return cl, nil
	}
	bl, err := cq.backend.NewList()
	if err != nil {
		return nil, backendErr("NewList", err)
	}
	cl := &CommandList{
		queue:     cq,
		backend:   bl,
		pending:   map[uint64]*pendingState{},
		stagedCB:  map[int]*Buffer{},
		stagedTex: map[int]*Texture{},
		stagedRW:  map[int]bindTarget{},
	}
	cl.reset()
	return cl, nil
}

// reclaim moves lists whose fence has completed back to the free pool.
func (cq *CommandQueue) reclaim() {
	done := cq.backend.Completed()
	kept := cq.inFlight[:0]
	for _, fl := range cq.inFlight {
		if fl.fence <= done {
			cq.free = append(cq.free, fl.list)
		} else {
			kept = append(kept, fl)
		}
	}
	cq.inFlight = kept
}

// Execute closes the list and submits it. Before the list runs, every
// resource in its pending state table is patched from its committed
// state into the state the list first needed it in; afterwards the
// committed states are advanced to the list's final states.
//
// Execute does not signal the fence: use [SignalOnGPU] after a batch
// of submissions. A failed submission is surfaced immediately and is
// fatal to the list; the engine does not retry submissions.
func (cq *CommandQueue) Execute(cl *CommandList) error {
	if !cl.recording {
		return errors.Log(invalidStatef("Execute: list is not recording"))
	}
	cl.recording = false
	if err := cl.backend.Close(); err != nil {
		cl.backend.Destroy()
		return backendErr("List.Close", err)
	}

	patch, err := cq.patchListFor(cl)
	if err != nil {
		cl.backend.Destroy()
		return err
	}
	var lists []BackendList
	if patch != nil {
		lists = append(lists, patch)
	}
	lists = append(lists, cl.backend)
	if err := cq.backend.Submit(lists...); err != nil {
		cl.backend.Destroy()
		return backendErr("Submit", err)
	}
	// commit the list's final states: the next list's patch barriers
	// will resolve against these.
	for _, ps := range cl.pending {
		ps.res.state = ps.current
	}
	cq.unsignaled = append(cq.unsignaled, cl)
	if patch != nil {
		patch.Destroy()
	}
	return nil
}

// patchListFor builds and closes a command list holding the front
// patch barriers for cl, or returns nil if none are needed.
func (cq *CommandQueue) patchListFor(cl *CommandList) (BackendList, error) {
	var patch BackendList
	for _, ps := range cl.pending {
		if ps.res.state == ps.initial {
			continue
		}
		if patch == nil {
			bl, err := cq.backend.NewList()
			if err != nil {
				return nil, backendErr("NewList", err)
			}
			patch = bl
		}
		patch.Transition(ps.res, ps.res.state, ps.initial)
		cq.patchLog = append(cq.patchLog, Transition{
			ResourceID: ps.res.id, From: ps.res.state, To: ps.initial,
		})
	}
	if patch == nil {
		return nil, nil
	}
	if err := patch.Close(); err != nil {
		patch.Destroy()
		return nil, backendErr("List.Close", err)
	}
	return patch, nil
}

// PatchBarriers returns the accumulated submission-time barrier log.
func (cq *CommandQueue) PatchBarriers() []Transition { return cq.patchLog }

// SignalOnGPU increments the fence counter and instructs the GPU to
// signal it once all previously submitted work completes, returning
// the new value. All lists executed since the last signal become
// reclaimable at that value.
func (cq *CommandQueue) SignalOnGPU() (uint64, error) {
	cq.fenceValue++
	if err := cq.backend.Signal(cq.fenceValue); err != nil {
		return 0, backendErr("Signal", err)
	}
	cq.lastSignaled = cq.fenceValue
	for _, cl := range cq.unsignaled {
		cq.inFlight = append(cq.inFlight, inFlightList{list: cl, fence: cq.fenceValue})
	}
	cq.unsignaled = cq.unsignaled[:0]
	return cq.fenceValue, nil
}

// WaitOnCPU blocks the calling goroutine until the GPU's completed
// fence counter reaches the given value; it returns immediately if
// already reached. The wait is unbounded: a hung GPU stalls the
// caller. Waiting on a value that was never signaled is a deadlock
// and is logged before waiting.
func (cq *CommandQueue) WaitOnCPU(value uint64) {
	if value == 0 {
		return
	}
	if value > cq.lastSignaled {
		slog.Error("gpu.CommandQueue.WaitOnCPU: waiting on unsignaled fence value",
			"value", value, "lastSignaled", cq.lastSignaled)
	}
	cq.backend.Wait(value)
	cq.reclaim()
}

// Flush signals the fence and waits for it: everything submitted so
// far is complete when it returns. Use before destroying or
// reallocating resources that may be in flight (swapchain resize,
// resource removal).
func (cq *CommandQueue) Flush() {
	v := errors.Log1(cq.SignalOnGPU())
	cq.WaitOnCPU(v)
}

// FenceValue returns the last issued fence value.
func (cq *CommandQueue) FenceValue() uint64 { return cq.fenceValue }

// Completed returns the last fence value the GPU has completed.
func (cq *CommandQueue) Completed() uint64 { return cq.backend.Completed() }

// Release flushes the queue and destroys the pool, the descriptor
// ring, and the native queue.
func (cq *CommandQueue) Release() {
	if cq.backend == nil {
		return
	}
	cq.Flush()
	cq.reclaim()
	for _, cl := range cq.free {
		cl.backend.Destroy()
	}
	cq.free = nil
	if cq.ring != nil {
		cq.ring.release()
		cq.ring = nil
	}
	cq.backend.Release()
	cq.backend = nil
}
