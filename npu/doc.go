// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package npu implements the neural processing unit: the burst-engine
core that advances a population of neurons and synapses through
discrete timesteps (bursts).

Each burst runs a five-phase pipeline:

 1. Injection: synaptic carry-over from the previous burst's fired
    set, power-area stimulation, and staged sensory input are
    accumulated into the Fire Candidate List (FCL).
 2. Neural dynamics: leak, threshold, refractory, and excitability
    logic evaluates every valid neuron against its FCL contribution
    and produces the current fired set.
 3. Archival: the fired set is compressed and recorded per cortical
    area in the fire ledger for learning consumers.
 4. Rotation: the current fired set becomes the previous set, so a
    synapse never delivers its contribution in the burst its source
    fired.
 5. Cleanup: the FCL is cleared.

State is partitioned into independently lockable groups (neuron
store, synapse store, fire structures) so that external stat queries
and sensory staging overlap safely with a burst in flight.  The two
hot operations, synaptic propagation and the dynamics update, are
delegated to a pluggable compute backend (CPU here, Vulkan compute in
the gpu package), both generic over the nval potential
representation.
*/
package npu
