// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package npu

import (
	"github.com/goki/gosl/slrand"
	"github.com/goki/gosl/sltype"

	"github.com/feagi/feagi-core-sub002/nval"
)

// ExciteP returns the excitability draw for a neuron at a burst: a
// uniform [0,1) value that is a pure function of (neuron id, burst
// count).  The Philox2x32 counter-based generator produces the same
// value on CPU and in the GPU dynamics kernel, which is what makes
// fired sets reproducible across runs and backends.
func ExciteP(id NeuronIndex, burst uint64) float32 {
	ctr := sltype.Uint2{X: uint32(burst), Y: uint32(burst >> 32)}
	r := slrand.Philox2x32(ctr, uint32(id))
	return slrand.Uint32ToFloat(r.X)
}

// StepNeuron runs the full neural-dynamics update for one neuron:
// leak toward resting, FCL accumulation, refractory bookkeeping,
// threshold test, excitability gate, and fire side effects.  Returns
// true if the neuron fired this burst.
//
// This is the single algorithm shared by the CPU backend and
// mirrored, operation for operation, by the GPU dynamics kernel.
func StepNeuron[T nval.Value[T]](ns *NeuronStore[T], areas *Areas, i NeuronIndex, inj T, burst uint64) bool {
	v := ns.Vm[i].LeakTo(ns.Rest[i], ns.Leak[i])
	v = v.SatAdd(inj)

	if ns.RefracCtr[i] > 0 {
		ns.RefracCtr[i]--
		// The consecutive-fire count resets only when the extended
		// (refractory + snooze) window fully elapses, which is the
		// only way a countdown can reach zero with the limit hit.
		if ns.RefracCtr[i] == 0 && ns.FireLimit[i] > 0 && ns.FireCnt[i] >= ns.FireLimit[i] {
			ns.FireCnt[i] = 0
		}
		ns.Vm[i] = v
		return false
	}

	if v.Less(ns.Thr[i]) {
		ns.Vm[i] = v
		ns.FireCnt[i] = 0 // streak broken: eligible but below threshold
		return false
	}

	if ex := ns.Excit[i]; ex < 1 && ExciteP(i, burst) >= ex {
		ns.Vm[i] = v
		ns.FireCnt[i] = 0
		return false
	}

	// fire
	if areas.At(ns.Area[i]).FireToRest {
		ns.Vm[i] = ns.Rest[i]
	} else {
		var z T
		ns.Vm[i] = z
	}
	ns.FireCnt[i]++
	if ns.FireLimit[i] > 0 && ns.FireCnt[i] >= ns.FireLimit[i] {
		ns.RefracCtr[i] = ns.RefracPer[i] + ns.Snooze[i]
	} else {
		ns.RefracCtr[i] = ns.RefracPer[i]
	}
	return true
}

// SynContribution computes the postsynaptic contribution of synapse
// si for a firing source with the given outgoing fan-out, in
// full-precision form: sign(polarity) * (weight/255) * (cond/255),
// divided by the fan-out when the source area's PSP distribution is
// non-uniform.  Division happens in float before quantization.
func (ss *SynapseStore) SynContribution(si SynIndex, uniformPSP bool, outDeg int) float32 {
	c := float32(ss.Wt[si]) / 255 * (float32(ss.Cond[si]) / 255)
	if !uniformPSP && outDeg > 1 {
		c /= float32(outDeg)
	}
	if ss.Flags[si]&SynInhib != 0 {
		c = -c
	}
	return c
}

// EncodeContribution quantizes a contribution into the potential
// representation, flooring at one quantum so that fan-out division
// never silently zeroes a nonzero contribution.
func EncodeContribution[T nval.Value[T]](c float32) T {
	var z T
	enc := z.FromFloat32(c)
	if enc.IsZero() && c != 0 {
		q := z.Quantum()
		if c < 0 {
			q = q.Neg()
		}
		return q
	}
	return enc
}
