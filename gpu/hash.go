// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import "github.com/feagi/feagi-core-sub002/npu"

// RangeEntry maps a source neuron to its contiguous run of outgoing
// synapse indices in the source-sorted order array.  Empty slots have
// Key == EmptyKey.  Must match the HLSL struct in propagate.hlsl
// field for field.
type RangeEntry struct {
	Key   uint32
	Start uint32
	N     uint32

	pad uint32
}

// EmptyKey marks an unoccupied hash slot.  Neuron ids are indices so
// the max uint32 can never be a live key.
const EmptyKey uint32 = 0xFFFFFFFF

// RangeTable is an open-addressing, linear-probe hash from fired
// source neuron to its synapse range, rebuilt per burst on the host
// and uploaded alongside the fired list.  Uploads scale with the
// fired count rather than the population, which is what keeps the
// per-burst transfer small for large, sparsely firing populations.
//
// The table is power-of-two sized at twice the fired count (min 64)
// so probe chains stay short, and the probe loop in the shader is the
// same code as Lookup here.
type RangeTable struct {
	Entries []RangeEntry
	mask    uint32
}

// hashID is the 32-bit finalizer from MurmurHash3, good avalanche for
// sequential ids.
func hashID(id uint32) uint32 {
	id ^= id >> 16
	id *= 0x85EBCA6B
	id ^= id >> 13
	id *= 0xC2B2AE35
	id ^= id >> 16
	return id
}

// Build sizes and fills the table for one burst's fired set, pulling
// each source's range from the synapse store's source index.  Sources
// with no outgoing synapses are skipped.  The table's backing array
// is reused across bursts when the size allows.
func (rt *RangeTable) Build(fired []npu.NeuronIndex, syn *npu.SynapseStore) {
	size := 64
	for size < 2*len(fired) {
		size <<= 1
	}
	if cap(rt.Entries) >= size {
		rt.Entries = rt.Entries[:size]
	} else {
		rt.Entries = make([]RangeEntry, size)
	}
	rt.mask = uint32(size - 1)
	for i := range rt.Entries {
		rt.Entries[i] = RangeEntry{Key: EmptyKey}
	}
	for _, src := range fired {
		start, n := syn.OutRange(src)
		if n == 0 {
			continue
		}
		slot := hashID(uint32(src)) & rt.mask
		for rt.Entries[slot].Key != EmptyKey {
			slot = (slot + 1) & rt.mask
		}
		rt.Entries[slot] = RangeEntry{Key: uint32(src), Start: uint32(start), N: uint32(n)}
	}
}

// Mask returns the index mask for the current table size, passed to
// the propagate kernel as a uniform.
func (rt *RangeTable) Mask() uint32 { return rt.mask }

// Lookup returns the synapse range for a source, mirroring the probe
// loop the propagate kernel runs.
func (rt *RangeTable) Lookup(src npu.NeuronIndex) (start, n uint32, ok bool) {
	slot := hashID(uint32(src)) & rt.mask
	for {
		e := rt.Entries[slot]
		if e.Key == EmptyKey {
			return 0, 0, false
		}
		if e.Key == uint32(src) {
			return e.Start, e.N, true
		}
		slot = (slot + 1) & rt.mask
	}
}
