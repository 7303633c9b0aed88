// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package npu

// injectPhase runs Phase 1 under the neuron write lock and synapse
// read lock, in order: (a) accumulation resets, (b) power-area
// stimulation, (c) synaptic carry-over from the previous fired set,
// (d) staged sensory potentials.  No neuron fires here; the only
// neuron-store mutation is the reset of non-accumulating areas.
func (np *NPU[T]) injectPhase(bn uint64) (int, error) {
	np.nmu.Lock()
	defer np.nmu.Unlock()
	np.smu.RLock()
	defer np.smu.RUnlock()

	ns := np.Neurons
	np.fcl.Ensure(ns.Slots())

	// (a)+(b): one dense scan covers resets and power, skipped
	// entirely when no area needs either.
	var z T
	nAreas := np.Areas.Len()
	reset := make([]bool, nAreas)
	power := make([]T, nAreas)
	anyWork := false
	for ai := 0; ai < nAreas; ai++ {
		ap := np.Areas.At(AreaIndex(ai))
		if !ap.Accumulate {
			reset[ai] = true
			anyWork = true
		}
		if p := ap.Power(); p > 0 {
			power[ai] = z.FromFloat32(p)
			anyWork = true
		}
	}
	if anyWork {
		for i := range ns.Flags {
			if ns.Flags[i]&NeurValid == 0 {
				continue
			}
			ai := ns.Area[i]
			if reset[ai] {
				ns.Vm[i] = ns.Rest[i]
			}
			if !power[ai].IsZero() {
				np.fcl.Add(NeuronIndex(i), power[ai])
			}
		}
	}

	// (c): synaptic carry-over, one burst delayed by construction
	if err := np.backend.Propagate(np.queues.Prev(), np.Syns, ns, np.Areas, &np.fcl); err != nil {
		return 0, err
	}

	// (d): staged sensory potentials
	staged := np.stage.Drain(np.stagedReuse)
	for i := range staged {
		id := staged[i].Neuron
		if !ns.IsValid(id) {
			continue // removed since staging; lifecycle, not error
		}
		np.fcl.Add(id, z.FromFloat32(staged[i].Amount))
	}
	n := len(staged)
	np.stagedReuse = staged
	return n, nil
}
