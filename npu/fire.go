// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package npu

import (
	"fmt"
	"sync"

	"github.com/feagi/feagi-core-sub002/nval"
)

// FCL is the Fire Candidate List: the per-burst, per-neuron
// accumulator of injected potential.  Written only during the
// injection phase, read only during dynamics, cleared every burst,
// never persisted.
type FCL[T nval.Value[T]] struct {
	acc []T
}

// Ensure sizes the accumulator for n neuron slots, preserving any
// already-accumulated values.
func (f *FCL[T]) Ensure(n int) {
	var z T
	for len(f.acc) < n {
		f.acc = append(f.acc, z)
	}
}

// Add accumulates v into slot idx (saturating).
func (f *FCL[T]) Add(idx NeuronIndex, v T) {
	f.acc[idx] = f.acc[idx].SatAdd(v)
}

// At returns the accumulated potential for slot idx.
func (f *FCL[T]) At(idx NeuronIndex) T { return f.acc[idx] }

// Acc exposes the raw accumulator column for the compute backend.
func (f *FCL[T]) Acc() []T { return f.acc }

// Clear zeroes the accumulator, retaining capacity.
func (f *FCL[T]) Clear() {
	var z T
	for i := range f.acc {
		f.acc[i] = z
	}
}

// FireQueues holds the current and previous fired sets as dense,
// disjoint neuron-id lists.  The previous set is the sole source of
// synaptic propagation, which is what enforces the one-burst
// propagation delay.
type FireQueues struct {
	cur, prev []NeuronIndex
}

// Cur returns this burst's fired set (being produced by dynamics).
func (fq *FireQueues) Cur() []NeuronIndex { return fq.cur }

// Prev returns the previous burst's fired set.
func (fq *FireQueues) Prev() []NeuronIndex { return fq.prev }

// SetCur installs the fired set produced by the dynamics phase.  The
// slice must be the one handed out by TakeCur.
func (fq *FireQueues) SetCur(ids []NeuronIndex) { fq.cur = ids }

// TakeCur hands out the (emptied) current slice for the backend to
// append fired ids into, reusing its capacity.
func (fq *FireQueues) TakeCur() []NeuronIndex { return fq.cur[:0] }

// Rotate makes current the new previous and recycles the old
// previous slice as the (empty) next current.
func (fq *FireQueues) Rotate() {
	fq.cur, fq.prev = fq.prev[:0], fq.cur
}

// StagedPotential is one sensory injection staged for the next burst.
type StagedPotential struct {
	Neuron NeuronIndex
	Amount float32
}

// SensoryStage buffers sensory potentials staged by the I/O
// collaborator between bursts.  Staging never blocks a burst: the
// buffer is swapped out at the start of the next injection phase.
type SensoryStage struct {
	mu   sync.Mutex
	pend []StagedPotential
}

// Stage appends sensory potentials for the next burst.  limit bounds
// neuron-id validation (callers pass the current slot count); a bad
// id rejects the whole batch synchronously.
func (st *SensoryStage) Stage(pots []StagedPotential, limit int) error {
	for i := range pots {
		if int(pots[i].Neuron) >= limit {
			return fmt.Errorf("staged potential %d: neuron %d beyond %d slots: %w",
				i, pots[i].Neuron, limit, ErrBadID)
		}
	}
	st.mu.Lock()
	st.pend = append(st.pend, pots...)
	st.mu.Unlock()
	return nil
}

// Drain swaps out the staged batch, installing reuse (truncated) as
// the fresh buffer.  The caller owns the returned slice and hands it
// back as reuse on a later Drain once consumed.
func (st *SensoryStage) Drain(reuse []StagedPotential) []StagedPotential {
	st.mu.Lock()
	out := st.pend
	st.pend = reuse[:0]
	st.mu.Unlock()
	return out
}

// Pending returns the number of staged entries.
func (st *SensoryStage) Pending() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.pend)
}
