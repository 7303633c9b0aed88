// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package npu

import "fmt"

// SynIndex is a dense index into the synapse store columns.
type SynIndex uint32

// SynFlags are bit-flags encoding binary synapse state.
type SynFlags uint8

const (
	// SynValid means the slot holds a live synapse.
	SynValid SynFlags = 1 << iota

	// SynInhib marks an inhibitory synapse; its contribution is
	// sign-flipped.
	SynInhib
)

// SynapseSpec carries the parameters for creating one synapse.
type SynapseSpec struct {
	Src, Dst NeuronIndex

	// Weight and Conductance are 8-bit strengths, normalized to
	// [0,1] when computing the postsynaptic contribution.
	Weight      uint8
	Conductance uint8

	Inhibitory bool
}

// SynapseStore holds all synapse state in columnar form plus the
// source index: a CSR-style mapping from each source neuron to the
// contiguous range of its outgoing synapse indices.
//
// Every mutating call (add / remove / reassign) rebuilds the source
// index before it returns, while the caller still holds the exclusive
// synapse lock.  Treating mutation and rebuild as one transaction is
// what makes a stale index impossible by construction.  Weight
// updates do not change connectivity and are index-preserving.
type SynapseStore struct {
	Src   []NeuronIndex
	Dst   []NeuronIndex
	Wt    []uint8
	Cond  []uint8
	Flags []SynFlags

	free   []SynIndex
	nValid int

	// source index: order lists valid synapse indices grouped by
	// source; start[src] .. start[src+1] bounds the group.
	order []SynIndex
	start []int32

	// gen counts mutations (connectivity and weight alike) so
	// backends holding a device-side copy know when to resync.
	gen uint64
}

// NewSynapseStore returns a store with capacity reserved for cap
// synapses.
func NewSynapseStore(cap int) (*SynapseStore, error) {
	if cap < 0 {
		return nil, fmt.Errorf("SynapseStore capacity %d: %w", cap, ErrInvalidParam)
	}
	return &SynapseStore{
		Src:   make([]NeuronIndex, 0, cap),
		Dst:   make([]NeuronIndex, 0, cap),
		Wt:    make([]uint8, 0, cap),
		Cond:  make([]uint8, 0, cap),
		Flags: make([]SynFlags, 0, cap),
	}, nil
}

// Slots returns the number of allocated slots (valid or not).
func (ss *SynapseStore) Slots() int { return len(ss.Src) }

// Valid returns the number of live synapses.
func (ss *SynapseStore) Valid() int { return ss.nValid }

// IsValid reports whether idx refers to a live synapse.
func (ss *SynapseStore) IsValid(idx SynIndex) bool {
	return int(idx) < len(ss.Flags) && ss.Flags[idx]&SynValid != 0
}

func (ss *SynapseStore) checkSpec(spec *SynapseSpec, nNeurons int) error {
	if int(spec.Src) >= nNeurons {
		return fmt.Errorf("synapse source %d beyond %d neurons: %w", spec.Src, nNeurons, ErrBadID)
	}
	if int(spec.Dst) >= nNeurons {
		return fmt.Errorf("synapse target %d beyond %d neurons: %w", spec.Dst, nNeurons, ErrBadID)
	}
	return nil
}

func (ss *SynapseStore) insert(spec *SynapseSpec) SynIndex {
	var idx SynIndex
	if n := len(ss.free); n > 0 {
		idx = ss.free[n-1]
		ss.free = ss.free[:n-1]
	} else {
		idx = SynIndex(len(ss.Src))
		ss.Src = append(ss.Src, 0)
		ss.Dst = append(ss.Dst, 0)
		ss.Wt = append(ss.Wt, 0)
		ss.Cond = append(ss.Cond, 0)
		ss.Flags = append(ss.Flags, 0)
	}
	ss.Src[idx] = spec.Src
	ss.Dst[idx] = spec.Dst
	ss.Wt[idx] = spec.Weight
	ss.Cond[idx] = spec.Conductance
	fl := SynValid
	if spec.Inhibitory {
		fl |= SynInhib
	}
	ss.Flags[idx] = fl
	ss.nValid++
	return idx
}

// Add creates one synapse and rebuilds the source index before
// returning.  nNeurons bounds id validation and the index width.
func (ss *SynapseStore) Add(spec *SynapseSpec, nNeurons int) (SynIndex, error) {
	if err := ss.checkSpec(spec, nNeurons); err != nil {
		return 0, err
	}
	idx := ss.insert(spec)
	ss.RebuildIndex(nNeurons)
	return idx, nil
}

// AddBatch creates a batch of synapses with a single index rebuild at
// the end.  All specs are validated before any slot is touched.
func (ss *SynapseStore) AddBatch(specs []SynapseSpec, nNeurons int) ([]SynIndex, error) {
	for si := range specs {
		if err := ss.checkSpec(&specs[si], nNeurons); err != nil {
			return nil, fmt.Errorf("spec %d: %w", si, err)
		}
	}
	idxs := make([]SynIndex, len(specs))
	for si := range specs {
		idxs[si] = ss.insert(&specs[si])
	}
	ss.RebuildIndex(nNeurons)
	return idxs, nil
}

// Remove logically removes the synapse and rebuilds the source index.
func (ss *SynapseStore) Remove(idx SynIndex, nNeurons int) error {
	if !ss.IsValid(idx) {
		return fmt.Errorf("remove synapse %d: %w", idx, ErrBadID)
	}
	ss.Flags[idx] &^= SynValid
	ss.free = append(ss.free, idx)
	ss.nValid--
	ss.RebuildIndex(nNeurons)
	return nil
}

// Reassign repoints an existing synapse at a new source and target,
// rebuilding the source index.
func (ss *SynapseStore) Reassign(idx SynIndex, src, dst NeuronIndex, nNeurons int) error {
	if !ss.IsValid(idx) {
		return fmt.Errorf("reassign synapse %d: %w", idx, ErrBadID)
	}
	spec := SynapseSpec{Src: src, Dst: dst}
	if err := ss.checkSpec(&spec, nNeurons); err != nil {
		return err
	}
	ss.Src[idx] = src
	ss.Dst[idx] = dst
	ss.RebuildIndex(nNeurons)
	return nil
}

// UpdateWeight sets weight and conductance on a live synapse.
// Connectivity is unchanged, so the source index is preserved.
func (ss *SynapseStore) UpdateWeight(idx SynIndex, wt, cond uint8) error {
	if !ss.IsValid(idx) {
		return fmt.Errorf("update synapse %d: %w", idx, ErrBadID)
	}
	ss.Wt[idx] = wt
	ss.Cond[idx] = cond
	ss.gen++
	return nil
}

// Gen returns the mutation generation, incremented by every
// connectivity or weight change.
func (ss *SynapseStore) Gen() uint64 { return ss.gen }

// RebuildIndex reconstructs the source index over all valid synapses
// with a counting sort.  Called internally by every connectivity
// mutation; exposed for the neurogenesis collaborator's explicit
// rebuild trigger after bulk loads.
func (ss *SynapseStore) RebuildIndex(nNeurons int) {
	ss.gen++
	if cap(ss.start) < nNeurons+1 {
		ss.start = make([]int32, nNeurons+1)
	} else {
		ss.start = ss.start[:nNeurons+1]
		for i := range ss.start {
			ss.start[i] = 0
		}
	}
	for si := range ss.Src {
		if ss.Flags[si]&SynValid == 0 {
			continue
		}
		ss.start[ss.Src[si]+1]++
	}
	for i := 1; i <= nNeurons; i++ {
		ss.start[i] += ss.start[i-1]
	}
	if cap(ss.order) < ss.nValid {
		ss.order = make([]SynIndex, ss.nValid)
	} else {
		ss.order = ss.order[:ss.nValid]
	}
	fill := make([]int32, nNeurons)
	copy(fill, ss.start[:nNeurons])
	for si := range ss.Src {
		if ss.Flags[si]&SynValid == 0 {
			continue
		}
		src := ss.Src[si]
		ss.order[fill[src]] = SynIndex(si)
		fill[src]++
	}
}

// Outgoing returns the valid outgoing synapse indices of src, in
// index order.  The slice aliases the source index; callers must not
// hold it across a mutation.
func (ss *SynapseStore) Outgoing(src NeuronIndex) []SynIndex {
	if int(src)+1 >= len(ss.start) {
		return nil
	}
	return ss.order[ss.start[src]:ss.start[src+1]]
}

// OutRange returns the offset and length of src's run in the
// source-sorted order array, for callers that index the order array
// directly rather than through Outgoing.
func (ss *SynapseStore) OutRange(src NeuronIndex) (start, n int) {
	if int(src)+1 >= len(ss.start) {
		return 0, 0
	}
	return int(ss.start[src]), int(ss.start[src+1] - ss.start[src])
}

// Order returns the source-sorted synapse index array.  Read-only;
// aliases the source index, invalidated by any mutation.
func (ss *SynapseStore) Order() []SynIndex { return ss.order }

// OutDegree returns the number of valid outgoing synapses of src.
func (ss *SynapseStore) OutDegree(src NeuronIndex) int {
	if int(src)+1 >= len(ss.start) {
		return 0
	}
	return int(ss.start[src+1] - ss.start[src])
}

// IndexedNeurons returns the neuron count the source index was last
// built for, or 0 if it was never built.
func (ss *SynapseStore) IndexedNeurons() int {
	if len(ss.start) == 0 {
		return 0
	}
	return len(ss.start) - 1
}
