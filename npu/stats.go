// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package npu

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/c2h5oh/datasize"
)

// NeuronStats is a point-in-time snapshot of one neuron, taken under
// the neuron read lock so it is never torn.
type NeuronStats struct {
	Potential    float32
	Threshold    float32
	Resting      float32
	Leak         float32
	RefracRemain uint16
	FireCount    uint16
	Excitability float32
	Area         string
	Pos          Coord
}

// NeuronCount returns the number of live neurons.
func (np *NPU[T]) NeuronCount() int {
	np.nmu.RLock()
	defer np.nmu.RUnlock()
	return np.Neurons.Valid()
}

// SynapseCount returns the number of live synapses.
func (np *NPU[T]) SynapseCount() int {
	np.smu.RLock()
	defer np.smu.RUnlock()
	return np.Syns.Valid()
}

// AreaNeuronCount returns the number of live neurons in an area.
func (np *NPU[T]) AreaNeuronCount(area string) (int, error) {
	ai, err := np.Areas.ByName(area)
	if err != nil {
		return 0, err
	}
	np.nmu.RLock()
	defer np.nmu.RUnlock()
	n := 0
	for i := range np.Neurons.Flags {
		if np.Neurons.Flags[i]&NeurValid != 0 && np.Neurons.Area[i] == ai {
			n++
		}
	}
	return n, nil
}

// AreaSynapseCount returns the number of live synapses whose source
// neuron lives in an area.
func (np *NPU[T]) AreaSynapseCount(area string) (int, error) {
	ai, err := np.Areas.ByName(area)
	if err != nil {
		return 0, err
	}
	np.nmu.RLock()
	defer np.nmu.RUnlock()
	np.smu.RLock()
	defer np.smu.RUnlock()
	n := 0
	for si := range np.Syns.Src {
		if np.Syns.Flags[si]&SynValid == 0 {
			continue
		}
		src := np.Syns.Src[si]
		if np.Neurons.IsValid(src) && np.Neurons.Area[src] == ai {
			n++
		}
	}
	return n, nil
}

// NeuronStat returns a consistent snapshot of one neuron's dynamic
// and static state.
func (np *NPU[T]) NeuronStat(idx NeuronIndex) (NeuronStats, error) {
	np.nmu.RLock()
	defer np.nmu.RUnlock()
	ns := np.Neurons
	if !ns.IsValid(idx) {
		return NeuronStats{}, fmt.Errorf("neuron %d: %w", idx, ErrBadID)
	}
	return NeuronStats{
		Potential:    ns.Vm[idx].Float32(),
		Threshold:    ns.Thr[idx].Float32(),
		Resting:      ns.Rest[idx].Float32(),
		Leak:         ns.Leak[idx],
		RefracRemain: ns.RefracCtr[idx],
		FireCount:    ns.FireCnt[idx],
		Excitability: ns.Excit[idx],
		Area:         np.Areas.At(ns.Area[idx]).Name,
		Pos:          ns.Pos[idx],
	}, nil
}

// SizeReport returns a human-readable memory footprint report of the
// neuron and synapse columns, per area and total.
func (np *NPU[T]) SizeReport() string {
	np.nmu.RLock()
	defer np.nmu.RUnlock()
	np.smu.RLock()
	defer np.smu.RUnlock()

	var b strings.Builder
	ns := np.Neurons
	var vz T
	nrow := int(unsafe.Sizeof(vz))*3 + // Vm, Thr, Rest
		4 + // Leak
		2*5 + // RefracPer..Snooze
		4 + // Excit
		int(unsafe.Sizeof(AreaIndex(0))) +
		int(unsafe.Sizeof(Coord{})) + 1
	nmem := ns.Slots() * nrow
	srow := int(unsafe.Sizeof(NeuronIndex(0)))*2 + 2 + 1 +
		int(unsafe.Sizeof(SynIndex(0))) + 4 // columns + index share
	smem := np.Syns.Slots() * srow

	for ai := 0; ai < np.Areas.Len(); ai++ {
		cnt := 0
		for i := range ns.Flags {
			if ns.Flags[i]&NeurValid != 0 && ns.Area[i] == AreaIndex(ai) {
				cnt++
			}
		}
		fmt.Fprintf(&b, "%14s:\t Neurons: %d\t NeurMem: %v\n",
			np.Areas.At(AreaIndex(ai)).Name, cnt,
			(datasize.ByteSize)(cnt*nrow).HumanReadable())
	}
	fmt.Fprintf(&b, "\n%14s:\t Neurons: %d\t NeurMem: %v \t Syns: %d \t SynMem: %v\n",
		"total", ns.Valid(), (datasize.ByteSize)(nmem).HumanReadable(),
		np.Syns.Valid(), (datasize.ByteSize)(smem).HumanReadable())
	return b.String()
}
