// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package npu

import (
	"log/slog"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/feagi/feagi-core-sub002/nval"
)

// Backend executes the two hot operations of a burst, parameterized
// by the potential representation.  The orchestrator is backend
// agnostic: CPU and GPU implementations are interchangeable and must
// produce identical fired sets for identical inputs.
type Backend[T nval.Value[T]] interface {

	// Name identifies the backend in logs and reports.
	Name() string

	// Propagate walks the outgoing synapses of every fired source
	// and accumulates postsynaptic contributions into the FCL.
	Propagate(fired []NeuronIndex, syn *SynapseStore, ns *NeuronStore[T], areas *Areas, fcl *FCL[T]) error

	// ApplyDynamics evaluates the neural-dynamics update for every
	// valid neuron and appends fired ids (ascending) to out,
	// returning the extended slice.
	ApplyDynamics(fcl *FCL[T], ns *NeuronStore[T], areas *Areas, burst uint64, out []NeuronIndex) ([]NeuronIndex, error)

	// Release frees backend resources (worker goroutines, GPU
	// buffers).
	Release()
}

// BackendKind selects a backend implementation.
type BackendKind int32

const (
	// BackendAuto selects by population size and hardware.
	BackendAuto BackendKind = iota

	// BackendCPU forces the CPU backend (always available).
	BackendCPU

	// BackendGPU forces the GPU backend for testing; falls back to
	// CPU with a logged warning when no device is present.
	BackendGPU
)

func (bk BackendKind) String() string {
	switch bk {
	case BackendCPU:
		return "cpu"
	case BackendGPU:
		return "gpu"
	default:
		return "auto"
	}
}

// Hardware describes the host capabilities relevant to backend
// selection.
type Hardware struct {
	Cores    int
	MemBytes uint64
	HasGPU   bool
}

// ProbeHardware inspects the host.  gpuAvail is supplied by the gpu
// package (or nil when GPU support is not compiled in) so this
// package carries no Vulkan dependency.
func ProbeHardware(gpuAvail func() bool) Hardware {
	hw := Hardware{Cores: 1}
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		hw.Cores = n
	} else if err != nil {
		slog.Warn("hardware probe: cpu count failed", "err", err)
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		hw.MemBytes = vm.Total
	} else {
		slog.Warn("hardware probe: memory stat failed", "err", err)
	}
	if gpuAvail != nil {
		hw.HasGPU = gpuAvail()
	}
	return hw
}

// SelectParams governs automatic backend selection.
type SelectParams struct {

	// Kind optionally overrides automatic selection.
	Kind BackendKind

	// SpeedupThreshold is the estimated GPU-over-CPU speedup the
	// population must reach before the GPU backend is chosen.
	SpeedupThreshold float64 `def:"2"`

	// PeakRatio is the asymptotic GPU/CPU throughput ratio the
	// estimate approaches for very large populations.
	PeakRatio float64 `def:"20"`

	// OverheadNeurons models per-dispatch GPU overhead as the
	// population size at which half the peak ratio is reached, per
	// CPU core.
	OverheadNeurons int `def:"25000"`
}

// Defaults sets default selection parameters.
func (sp *SelectParams) Defaults() {
	sp.Kind = BackendAuto
	sp.SpeedupThreshold = 2
	sp.PeakRatio = 20
	sp.OverheadNeurons = 25000
}

// EstGPUSpeedup estimates the GPU speedup for a population on the
// given core count.  Kernel dispatch overhead dominates small
// populations; the estimate approaches PeakRatio as the population
// saturates the device.
func (sp *SelectParams) EstGPUSpeedup(pop int, hw Hardware) float64 {
	if pop <= 0 {
		return 0
	}
	half := sp.OverheadNeurons * hw.Cores
	return sp.PeakRatio * float64(pop) / float64(pop+half)
}

// Choose picks the backend kind for a population.  Pure function of
// its inputs.  A GPU request without a device degrades to CPU; the
// caller logs the fallback.  CPU is always valid.
func (sp *SelectParams) Choose(pop int, hw Hardware) BackendKind {
	switch sp.Kind {
	case BackendCPU:
		return BackendCPU
	case BackendGPU:
		if !hw.HasGPU {
			return BackendCPU
		}
		return BackendGPU
	}
	if hw.HasGPU && sp.EstGPUSpeedup(pop, hw) >= sp.SpeedupThreshold {
		return BackendGPU
	}
	return BackendCPU
}
