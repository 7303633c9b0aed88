// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package npu

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/emer/emergent/v2/timer"

	"github.com/feagi/feagi-core-sub002/idset"
	"github.com/feagi/feagi-core-sub002/nval"
)

// NPU is the burst orchestrator: it owns the neuron store, synapse
// store, fire structures, and ledger, runs the five-phase pipeline
// once per Burst call, and exposes the external read/write/control
// surface under a fine-grained locking discipline.
//
// Lock groups (acquired in this order wherever more than one is
// needed): fire structures (fmu, exclusively held for a whole
// burst), neuron store (nmu), synapse store (smu).  The burst
// counter and scalar runtime parameters are lock-free atomics.
type NPU[T nval.Value[T]] struct {

	// Neurons, Syns, Areas, History are the owned state groups.
	// Direct access is only safe while holding the matching lock;
	// external callers go through the accessor methods.
	Neurons *NeuronStore[T]
	Syns    *SynapseStore
	Areas   *Areas

	ledger *Ledger

	backend Backend[T]

	fcl    FCL[T]
	queues FireQueues
	stage  SensoryStage

	// stagedReuse recycles the drained staging slice between bursts.
	stagedReuse []StagedPotential

	fmu sync.Mutex   // fire structures: FCL, queues, ledger
	nmu sync.RWMutex // neuron store
	smu sync.RWMutex // synapse store

	burst  atomic.Uint64
	nSlots atomic.Int64 // neuron slot count, for lock-free staging checks
}

// BurstStats reports one completed burst.
type BurstStats struct {
	Burst     uint64
	Fired     int
	Staged    int
	PhaseSecs [5]float64
}

// New returns an orchestrator over the given area registry with the
// given ledger window depth.  The backend defaults to CPU with one
// worker per core; SetBackend replaces it before the first burst.
func New[T nval.Value[T]](areas *Areas, ledgerDepth int) (*NPU[T], error) {
	if areas == nil || areas.Len() == 0 {
		return nil, fmt.Errorf("NPU requires at least one cortical area: %w", ErrInvalidParam)
	}
	lg, err := NewLedger(ledgerDepth)
	if err != nil {
		return nil, err
	}
	ns, _ := NewNeuronStore[T](0)
	ss, _ := NewSynapseStore(0)
	return &NPU[T]{
		Neurons: ns,
		Syns:    ss,
		Areas:   areas,
		ledger:  lg,
		backend: NewCPU[T](0),
	}, nil
}

// SetBackend swaps the compute backend, releasing the old one.  Must
// not be called while a burst is in flight.
func (np *NPU[T]) SetBackend(b Backend[T]) {
	np.fmu.Lock()
	defer np.fmu.Unlock()
	if np.backend != nil {
		np.backend.Release()
	}
	np.backend = b
}

// BackendName returns the active backend's name.
func (np *NPU[T]) BackendName() string { return np.backend.Name() }

// Release frees the backend.
func (np *NPU[T]) Release() {
	if np.backend != nil {
		np.backend.Release()
		np.backend = nil
	}
}

// BurstCount returns the number of completed bursts.  Lock-free.
func (np *NPU[T]) BurstCount() uint64 { return np.burst.Load() }

//////////////////////////////////////////////////////////////////////
//  Burst pipeline

// Burst runs one complete five-phase burst.  Once started it runs to
// completion; there is no mid-burst abort.  A phase failure aborts
// the remainder of that burst (leaving the fire structures cleared
// and the counter unadvanced) and is surfaced with phase context for
// the loop runner to decide whether to keep scheduling.
func (np *NPU[T]) Burst() (BurstStats, error) {
	np.fmu.Lock()
	defer np.fmu.Unlock()

	bn := np.burst.Load()
	bs := BurstStats{Burst: bn}
	var tmr timer.Time

	// Phase 1: injection
	tmr.Start()
	staged, err := np.injectPhase(bn)
	tmr.Stop()
	bs.Staged = staged
	bs.PhaseSecs[0] = tmr.TotalSecs()
	if err != nil {
		np.abortBurst()
		return bs, fmt.Errorf("burst %d phase 1 (injection): %w", bn, err)
	}

	// Phase 2: neural dynamics
	tmr.Reset()
	tmr.Start()
	np.nmu.Lock()
	np.fcl.Ensure(np.Neurons.Slots())
	cur, err := np.backend.ApplyDynamics(&np.fcl, np.Neurons, np.Areas, bn, np.queues.TakeCur())
	np.queues.SetCur(cur)
	np.nmu.Unlock()
	tmr.Stop()
	bs.PhaseSecs[1] = tmr.TotalSecs()
	if err != nil {
		np.abortBurst()
		return bs, fmt.Errorf("burst %d phase 2 (dynamics): %w", bn, err)
	}
	bs.Fired = len(np.queues.Cur())

	// Phase 3: archival
	tmr.Reset()
	tmr.Start()
	np.nmu.RLock()
	np.ledger.Archive(bn, np.queues.Cur(), func(i NeuronIndex) AreaIndex { return np.Neurons.Area[i] })
	np.nmu.RUnlock()
	tmr.Stop()
	bs.PhaseSecs[2] = tmr.TotalSecs()

	// Phase 4: rotation
	tmr.Reset()
	tmr.Start()
	np.queues.Rotate()
	tmr.Stop()
	bs.PhaseSecs[3] = tmr.TotalSecs()

	// Phase 5: cleanup
	tmr.Reset()
	tmr.Start()
	np.fcl.Clear()
	tmr.Stop()
	bs.PhaseSecs[4] = tmr.TotalSecs()

	np.burst.Add(1)
	return bs, nil
}

// abortBurst clears the fire structures after a failed phase so the
// next burst starts from a clean slate (a half-injected FCL must not
// double-deliver).
func (np *NPU[T]) abortBurst() {
	np.fcl.Clear()
	np.queues.SetCur(np.queues.TakeCur())
}

//////////////////////////////////////////////////////////////////////
//  Neurogenesis surface

// AddNeuron creates one neuron.
func (np *NPU[T]) AddNeuron(spec *NeuronSpec) (NeuronIndex, error) {
	if int(spec.Area) >= np.Areas.Len() {
		return 0, fmt.Errorf("neuron area %d: %w", spec.Area, ErrUnknownArea)
	}
	np.nmu.Lock()
	defer np.nmu.Unlock()
	idx, err := np.Neurons.Add(spec)
	if err != nil {
		return 0, err
	}
	np.nSlots.Store(int64(np.Neurons.Slots()))
	return idx, nil
}

// AddNeurons creates a batch of neurons, returning assigned indices
// in spec order.
func (np *NPU[T]) AddNeurons(specs []NeuronSpec) ([]NeuronIndex, error) {
	for si := range specs {
		if int(specs[si].Area) >= np.Areas.Len() {
			return nil, fmt.Errorf("spec %d: neuron area %d: %w", si, specs[si].Area, ErrUnknownArea)
		}
	}
	np.nmu.Lock()
	defer np.nmu.Unlock()
	idxs, err := np.Neurons.AddBatch(specs)
	if err != nil {
		return nil, err
	}
	np.nSlots.Store(int64(np.Neurons.Slots()))
	return idxs, nil
}

// RemoveNeuron logically removes a neuron.  Its slot may be recycled
// by a later insert; its synapses remain until explicitly removed but
// are skipped by propagation and dynamics.
func (np *NPU[T]) RemoveNeuron(idx NeuronIndex) error {
	np.nmu.Lock()
	defer np.nmu.Unlock()
	return np.Neurons.Remove(idx)
}

// AddSynapse creates one synapse; the source index is rebuilt before
// the call returns.
func (np *NPU[T]) AddSynapse(spec *SynapseSpec) (SynIndex, error) {
	np.nmu.RLock()
	n := np.Neurons.Slots()
	np.nmu.RUnlock()
	np.smu.Lock()
	defer np.smu.Unlock()
	return np.Syns.Add(spec, n)
}

// AddSynapses creates a batch of synapses with one index rebuild.
func (np *NPU[T]) AddSynapses(specs []SynapseSpec) ([]SynIndex, error) {
	np.nmu.RLock()
	n := np.Neurons.Slots()
	np.nmu.RUnlock()
	np.smu.Lock()
	defer np.smu.Unlock()
	return np.Syns.AddBatch(specs, n)
}

// RemoveSynapse removes one synapse; the source index is rebuilt
// before the call returns.
func (np *NPU[T]) RemoveSynapse(idx SynIndex) error {
	np.nmu.RLock()
	n := np.Neurons.Slots()
	np.nmu.RUnlock()
	np.smu.Lock()
	defer np.smu.Unlock()
	return np.Syns.Remove(idx, n)
}

// ReassignSynapse repoints a synapse; the source index is rebuilt
// before the call returns.
func (np *NPU[T]) ReassignSynapse(idx SynIndex, src, dst NeuronIndex) error {
	np.nmu.RLock()
	n := np.Neurons.Slots()
	np.nmu.RUnlock()
	np.smu.Lock()
	defer np.smu.Unlock()
	return np.Syns.Reassign(idx, src, dst, n)
}

// RebuildSynapseIndex is the explicit rebuild trigger for the
// neurogenesis collaborator after bulk mutation.
func (np *NPU[T]) RebuildSynapseIndex() {
	np.nmu.RLock()
	n := np.Neurons.Slots()
	np.nmu.RUnlock()
	np.smu.Lock()
	defer np.smu.Unlock()
	np.Syns.RebuildIndex(n)
}

//////////////////////////////////////////////////////////////////////
//  Learning surface

// SynapseWeight returns the weight and conductance of a synapse.
func (np *NPU[T]) SynapseWeight(idx SynIndex) (wt, cond uint8, err error) {
	np.smu.RLock()
	defer np.smu.RUnlock()
	if !np.Syns.IsValid(idx) {
		return 0, 0, fmt.Errorf("synapse %d: %w", idx, ErrBadID)
	}
	return np.Syns.Wt[idx], np.Syns.Cond[idx], nil
}

// UpdateSynapseWeight sets a synapse's weight and conductance under
// the exclusive synapse lock.  Index-preserving.
func (np *NPU[T]) UpdateSynapseWeight(idx SynIndex, wt, cond uint8) error {
	np.smu.Lock()
	defer np.smu.Unlock()
	return np.Syns.UpdateWeight(idx, wt, cond)
}

// History returns the compressed ledger window for an area, oldest
// first.  Sets are owned by the ledger; treat them as read-only.
// lookback must be positive.
func (np *NPU[T]) History(area string, lookback int) ([]LedgerEntry, error) {
	ai, err := np.Areas.ByName(area)
	if err != nil {
		return nil, err
	}
	if lookback <= 0 {
		return nil, fmt.Errorf("history lookback %d: %w", lookback, ErrInvalidParam)
	}
	np.fmu.Lock()
	defer np.fmu.Unlock()
	return np.ledger.History(ai, lookback), nil
}

// HistoryIDs returns the decompressed ledger window for an area.
func (np *NPU[T]) HistoryIDs(area string, lookback int) ([]struct {
	Burst uint64
	IDs   []uint32
}, error) {
	ai, err := np.Areas.ByName(area)
	if err != nil {
		return nil, err
	}
	if lookback <= 0 {
		return nil, fmt.Errorf("history lookback %d: %w", lookback, ErrInvalidParam)
	}
	np.fmu.Lock()
	defer np.fmu.Unlock()
	return np.ledger.HistoryIDs(ai, lookback), nil
}

// HistoryUnion returns the union of fired sets across the lookback
// window, computed on the compressed form.
func (np *NPU[T]) HistoryUnion(area string, lookback int) (idset.Set, error) {
	ai, err := np.Areas.ByName(area)
	if err != nil {
		return idset.Set{}, err
	}
	if lookback <= 0 {
		return idset.Set{}, fmt.Errorf("history lookback %d: %w", lookback, ErrInvalidParam)
	}
	np.fmu.Lock()
	defer np.fmu.Unlock()
	return np.ledger.HistoryUnion(ai, lookback), nil
}

//////////////////////////////////////////////////////////////////////
//  I/O surface

// StageSensory stages neuron-id / potential pairs for the next
// burst's injection phase.  Never blocks on a burst in flight.
func (np *NPU[T]) StageSensory(pots []StagedPotential) error {
	return np.stage.Stage(pots, int(np.nSlots.Load()))
}

// SetPower sets the continuous stimulation amount for an area.
// Lock-free; effective at the next burst.
func (np *NPU[T]) SetPower(area string, amt float32) error {
	ai, err := np.Areas.ByName(area)
	if err != nil {
		return err
	}
	return np.Areas.At(ai).SetPower(amt)
}
