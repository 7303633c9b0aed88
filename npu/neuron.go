// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package npu

import (
	"fmt"

	"github.com/goki/mat32"

	"github.com/feagi/feagi-core-sub002/nval"
)

// NeuronIndex is a dense index into the neuron store columns.
type NeuronIndex uint32

// NeurFlags are bit-flags encoding binary neuron state.
type NeurFlags uint8

const (
	// NeurValid means the slot holds a live neuron.  Invalid slots
	// are never read by any burst phase and may be recycled.
	NeurValid NeurFlags = 1 << iota
)

// Coord is the spatial position of a neuron within its cortical area.
type Coord struct {
	X, Y, Z int16
}

// NeuronSpec carries the parameters for creating one neuron.
// Produced by the external neurogenesis collaborator.
type NeuronSpec struct {

	// Threshold is the firing threshold; a potential exactly at
	// threshold fires.
	Threshold float32

	// Resting is the resting potential that leak pulls toward.
	Resting float32

	// Leak is the fraction of the distance to resting applied per
	// burst, in [0,1].
	Leak float32

	// RefractoryPeriod is the post-fire cooldown in bursts.
	RefractoryPeriod uint16

	// FireLimit caps back-to-back firings before the snooze period
	// is imposed.  0 = unlimited.
	FireLimit uint16

	// Snooze is the additional refractory applied when FireLimit is
	// reached.
	Snooze uint16

	// Excitability is the probability gate applied after threshold,
	// in [0,1].
	Excitability float32

	// Area is the owning cortical area.
	Area AreaIndex

	// Pos is the spatial coordinate within the area.
	Pos Coord
}

// NeuronStore holds all neuron state in columnar (one array per
// attribute) form, indexed by NeuronIndex, generic over the potential
// representation.  Removed slots keep their index and are recycled by
// later inserts; there is no compaction during normal operation.
type NeuronStore[T nval.Value[T]] struct {

	// Vm is the membrane potential.  Written by injection (area
	// accumulation resets) and dynamics only.
	Vm []T

	// Thr is the firing threshold.
	Thr []T

	// Rest is the resting potential.
	Rest []T

	// Leak is the per-burst leak fraction toward Rest.
	Leak []float32

	// RefracPer is the static refractory period in bursts.
	RefracPer []uint16

	// RefracCtr is the dynamic refractory countdown.
	RefracCtr []uint16

	// FireCnt counts consecutive firings.
	FireCnt []uint16

	// FireLimit is the consecutive-fire cap (0 = unlimited).
	FireLimit []uint16

	// Snooze is the extra refractory imposed when FireLimit is hit.
	Snooze []uint16

	// Excit is the excitability probability in [0,1].
	Excit []float32

	// Area is the owning cortical area per neuron.
	Area []AreaIndex

	// Pos is the spatial coordinate per neuron.
	Pos []Coord

	// Flags holds the validity bit per neuron.
	Flags []NeurFlags

	// free holds recycled indices, consumed LIFO by inserts.
	free []NeuronIndex

	nValid int
}

// NewNeuronStore returns a store with capacity reserved for cap
// neurons (it still grows beyond that on demand).
func NewNeuronStore[T nval.Value[T]](cap int) (*NeuronStore[T], error) {
	if cap < 0 {
		return nil, fmt.Errorf("NeuronStore capacity %d: %w", cap, ErrInvalidParam)
	}
	ns := &NeuronStore[T]{
		Vm:        make([]T, 0, cap),
		Thr:       make([]T, 0, cap),
		Rest:      make([]T, 0, cap),
		Leak:      make([]float32, 0, cap),
		RefracPer: make([]uint16, 0, cap),
		RefracCtr: make([]uint16, 0, cap),
		FireCnt:   make([]uint16, 0, cap),
		FireLimit: make([]uint16, 0, cap),
		Snooze:    make([]uint16, 0, cap),
		Excit:     make([]float32, 0, cap),
		Area:      make([]AreaIndex, 0, cap),
		Pos:       make([]Coord, 0, cap),
		Flags:     make([]NeurFlags, 0, cap),
	}
	return ns, nil
}

// grow appends one zero slot to every column.
func (ns *NeuronStore[T]) grow() {
	var z T
	ns.Vm = append(ns.Vm, z)
	ns.Thr = append(ns.Thr, z)
	ns.Rest = append(ns.Rest, z)
	ns.Leak = append(ns.Leak, 0)
	ns.RefracPer = append(ns.RefracPer, 0)
	ns.RefracCtr = append(ns.RefracCtr, 0)
	ns.FireCnt = append(ns.FireCnt, 0)
	ns.FireLimit = append(ns.FireLimit, 0)
	ns.Snooze = append(ns.Snooze, 0)
	ns.Excit = append(ns.Excit, 0)
	ns.Area = append(ns.Area, 0)
	ns.Pos = append(ns.Pos, Coord{})
	ns.Flags = append(ns.Flags, 0)
}

// Slots returns the number of allocated slots (valid or not).  This
// is the bound for dense iteration and the required FCL length.
func (ns *NeuronStore[T]) Slots() int { return len(ns.Vm) }

// Valid returns the number of live neurons.
func (ns *NeuronStore[T]) Valid() int { return ns.nValid }

// IsValid reports whether idx refers to a live neuron.
func (ns *NeuronStore[T]) IsValid(idx NeuronIndex) bool {
	return int(idx) < len(ns.Flags) && ns.Flags[idx]&NeurValid != 0
}

// CheckSpec validates neuron creation parameters.  Rejection is
// synchronous; nothing is substituted with a default.
func CheckSpec(spec *NeuronSpec) error {
	if mat32.IsNaN(spec.Threshold) || mat32.IsNaN(spec.Resting) {
		return fmt.Errorf("neuron threshold/resting is NaN: %w", ErrInvalidParam)
	}
	if spec.Leak < 0 || spec.Leak > 1 || mat32.IsNaN(spec.Leak) {
		return fmt.Errorf("neuron leak %g outside [0,1]: %w", spec.Leak, ErrInvalidParam)
	}
	if spec.Excitability < 0 || spec.Excitability > 1 || mat32.IsNaN(spec.Excitability) {
		return fmt.Errorf("neuron excitability %g outside [0,1]: %w", spec.Excitability, ErrInvalidParam)
	}
	return nil
}

// Add creates one neuron, reusing a recycled slot when available,
// and returns its assigned index.
func (ns *NeuronStore[T]) Add(spec *NeuronSpec) (NeuronIndex, error) {
	if err := CheckSpec(spec); err != nil {
		return 0, err
	}
	var idx NeuronIndex
	if n := len(ns.free); n > 0 {
		idx = ns.free[n-1]
		ns.free = ns.free[:n-1]
	} else {
		idx = NeuronIndex(len(ns.Vm))
		ns.grow()
	}
	var z T
	ns.Vm[idx] = z.FromFloat32(spec.Resting)
	ns.Thr[idx] = z.FromFloat32(spec.Threshold)
	ns.Rest[idx] = z.FromFloat32(spec.Resting)
	ns.Leak[idx] = spec.Leak
	ns.RefracPer[idx] = spec.RefractoryPeriod
	ns.RefracCtr[idx] = 0
	ns.FireCnt[idx] = 0
	ns.FireLimit[idx] = spec.FireLimit
	ns.Snooze[idx] = spec.Snooze
	ns.Excit[idx] = spec.Excitability
	ns.Area[idx] = spec.Area
	ns.Pos[idx] = spec.Pos
	ns.Flags[idx] = NeurValid
	ns.nValid++
	return idx, nil
}

// AddBatch creates a batch of neurons, returning assigned indices in
// spec order.  All specs are validated before any slot is touched, so
// a rejected batch leaves the store unchanged.
func (ns *NeuronStore[T]) AddBatch(specs []NeuronSpec) ([]NeuronIndex, error) {
	for si := range specs {
		if err := CheckSpec(&specs[si]); err != nil {
			return nil, fmt.Errorf("spec %d: %w", si, err)
		}
	}
	idxs := make([]NeuronIndex, len(specs))
	for si := range specs {
		idx, err := ns.Add(&specs[si])
		if err != nil {
			return nil, fmt.Errorf("spec %d: %w", si, err)
		}
		idxs[si] = idx
	}
	return idxs, nil
}

// Remove logically removes the neuron by clearing its validity bit;
// the slot is recycled by a later Add.
func (ns *NeuronStore[T]) Remove(idx NeuronIndex) error {
	if !ns.IsValid(idx) {
		return fmt.Errorf("remove neuron %d: %w", idx, ErrBadID)
	}
	ns.Flags[idx] &^= NeurValid
	ns.free = append(ns.free, idx)
	ns.nValid--
	return nil
}
