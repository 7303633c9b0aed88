// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package npu

import (
	"runtime"
	"sync"

	"github.com/emer/emergent/v2/timer"

	"github.com/feagi/feagi-core-sub002/nval"
)

// cpuSerialMin is the work size below which the CPU backend skips
// the worker pool entirely: chunking costs more than it saves.
const cpuSerialMin = 512

// CPU is the data-parallel CPU compute backend.  Persistent worker
// goroutines monitor per-thread channels for work (same scheme the
// threaded network update uses in emergent-style simulators).
// Dynamics parallelizes over neuron ranges with no write conflicts:
// each neuron's state is owned by exactly one worker.  Propagation
// parallelizes over fired sources with per-worker partial
// accumulators merged range-wise afterward.
type CPU[T nval.Value[T]] struct {

	// NThreads is the number of worker goroutines.
	NThreads int

	// ThrTimes are per-thread timers, so workload balance is
	// observable.
	ThrTimes []timer.Time

	thrChans []chan func(th int)
	waitGp   sync.WaitGroup

	// per-thread propagation partials and per-thread fired lists
	partials [][]T
	fired    [][]NeuronIndex
}

// NewCPU returns a CPU backend running nThreads workers;
// nThreads <= 0 uses GOMAXPROCS.
func NewCPU[T nval.Value[T]](nThreads int) *CPU[T] {
	if nThreads <= 0 {
		nThreads = runtime.GOMAXPROCS(0)
	}
	cb := &CPU[T]{
		NThreads: nThreads,
		ThrTimes: make([]timer.Time, nThreads),
		thrChans: make([]chan func(th int), nThreads),
		partials: make([][]T, nThreads),
		fired:    make([][]NeuronIndex, nThreads),
	}
	for th := 0; th < nThreads; th++ {
		cb.thrChans[th] = make(chan func(th int))
		go cb.thrWorker(th)
	}
	return cb
}

func (cb *CPU[T]) Name() string { return "cpu" }

// Release stops the worker goroutines.
func (cb *CPU[T]) Release() {
	for th := range cb.thrChans {
		close(cb.thrChans[th])
	}
}

func (cb *CPU[T]) thrWorker(th int) {
	for fun := range cb.thrChans[th] {
		cb.ThrTimes[th].Start()
		fun(th)
		cb.ThrTimes[th].Stop()
		cb.waitGp.Done()
	}
}

// thrRun fans fun out to every worker and waits for completion.
func (cb *CPU[T]) thrRun(fun func(th int)) {
	for th := 0; th < cb.NThreads; th++ {
		cb.waitGp.Add(1)
		cb.thrChans[th] <- fun
	}
	cb.waitGp.Wait()
}

// chunk returns the half-open range of items assigned to thread th
// when n items are split across the pool.
func (cb *CPU[T]) chunk(th, n int) (int, int) {
	per := (n + cb.NThreads - 1) / cb.NThreads
	st := th * per
	ed := st + per
	if st > n {
		st = n
	}
	if ed > n {
		ed = n
	}
	return st, ed
}

// Propagate accumulates synaptic contributions of the fired set into
// the FCL.
func (cb *CPU[T]) Propagate(fired []NeuronIndex, syn *SynapseStore, ns *NeuronStore[T], areas *Areas, fcl *FCL[T]) error {
	if len(fired) == 0 {
		return nil
	}
	if cb.NThreads <= 1 || len(fired) < cpuSerialMin {
		propagateRange(fired, syn, ns, areas, fcl.Add)
		return nil
	}
	nslots := ns.Slots()
	var z T
	for th := 0; th < cb.NThreads; th++ {
		for len(cb.partials[th]) < nslots {
			cb.partials[th] = append(cb.partials[th], z)
		}
	}
	cb.thrRun(func(th int) {
		st, ed := cb.chunk(th, len(fired))
		part := cb.partials[th]
		propagateRange(fired[st:ed], syn, ns, areas, func(idx NeuronIndex, v T) {
			part[idx] = part[idx].SatAdd(v)
		})
	})
	// range-wise merge: each worker owns a disjoint slice of targets
	cb.thrRun(func(th int) {
		st, ed := cb.chunk(th, nslots)
		acc := fcl.Acc()
		for i := st; i < ed; i++ {
			for p := 0; p < cb.NThreads; p++ {
				v := cb.partials[p][i]
				if !v.IsZero() {
					acc[i] = acc[i].SatAdd(v)
					cb.partials[p][i] = z
				}
			}
		}
	})
	return nil
}

// propagateRange delivers the contributions of one slice of fired
// sources through add.
func propagateRange[T nval.Value[T]](fired []NeuronIndex, syn *SynapseStore, ns *NeuronStore[T], areas *Areas, add func(NeuronIndex, T)) {
	for _, src := range fired {
		if !ns.IsValid(src) {
			continue
		}
		out := syn.Outgoing(src)
		if len(out) == 0 {
			continue
		}
		uniform := areas.At(ns.Area[src]).UniformPSP
		deg := len(out)
		for _, si := range out {
			c := syn.SynContribution(si, uniform, deg)
			if c == 0 {
				continue
			}
			add(syn.Dst[si], EncodeContribution[T](c))
		}
	}
}

// ApplyDynamics runs the per-neuron dynamics update over all valid
// neurons, appending fired ids in ascending order.
func (cb *CPU[T]) ApplyDynamics(fcl *FCL[T], ns *NeuronStore[T], areas *Areas, burst uint64, out []NeuronIndex) ([]NeuronIndex, error) {
	n := ns.Slots()
	if cb.NThreads <= 1 || n < cpuSerialMin {
		for i := 0; i < n; i++ {
			idx := NeuronIndex(i)
			if ns.Flags[idx]&NeurValid == 0 {
				continue
			}
			if StepNeuron(ns, areas, idx, fcl.At(idx), burst) {
				out = append(out, idx)
			}
		}
		return out, nil
	}
	cb.thrRun(func(th int) {
		st, ed := cb.chunk(th, n)
		fd := cb.fired[th][:0]
		for i := st; i < ed; i++ {
			idx := NeuronIndex(i)
			if ns.Flags[idx]&NeurValid == 0 {
				continue
			}
			if StepNeuron(ns, areas, idx, fcl.At(idx), burst) {
				fd = append(fd, idx)
			}
		}
		cb.fired[th] = fd
	})
	// chunks are in index order, so concatenation stays ascending
	for th := 0; th < cb.NThreads; th++ {
		out = append(out, cb.fired[th]...)
	}
	return out, nil
}
