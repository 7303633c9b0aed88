// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package npu

import (
	"testing"

	"github.com/goki/gosl/slrand"
	"github.com/goki/gosl/sltype"
	"github.com/goki/mat32"

	"github.com/feagi/feagi-core-sub002/nval"
)

const difTol = float32(1.0e-6)

func cmprFloats(t *testing.T, got, exp float32, msg string) {
	t.Helper()
	if mat32.Abs(got-exp) > difTol {
		t.Errorf("%s: got %v, expected %v", msg, got, exp)
	}
}

// testStore builds a one-area store with the given neurons.
func testStore(t *testing.T, specs ...NeuronSpec) (*NeuronStore[nval.Float32], *Areas) {
	t.Helper()
	areas := NewAreas()
	if _, err := areas.Add(&AreaParams{Name: "root", Accumulate: true, UniformPSP: true}); err != nil {
		t.Fatal(err)
	}
	ns, err := NewNeuronStore[nval.Float32](len(specs))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ns.AddBatch(specs); err != nil {
		t.Fatal(err)
	}
	return ns, areas
}

func enc(v float32) nval.Float32 {
	var z nval.Float32
	return z.FromFloat32(v)
}

func TestThresholdBoundary(t *testing.T) {
	ns, areas := testStore(t,
		NeuronSpec{Threshold: 1.0, Excitability: 1},
		NeuronSpec{Threshold: 1.0, Excitability: 1},
	)
	if !StepNeuron(ns, areas, 0, enc(1.0), 0) {
		t.Errorf("potential exactly at threshold must fire")
	}
	if StepNeuron(ns, areas, 1, enc(0.875), 0) {
		t.Errorf("potential below threshold must not fire")
	}
	cmprFloats(t, ns.Vm[1].Float32(), 0.875, "sub-threshold potential stored")
}

func TestLeakCorrectness(t *testing.T) {
	// leak=0 preserves potential across bursts absent injection
	ns, areas := testStore(t, NeuronSpec{Threshold: 10, Resting: 0.5, Leak: 0, Excitability: 1})
	ns.Vm[0] = enc(2)
	StepNeuron(ns, areas, 0, enc(0), 0)
	cmprFloats(t, ns.Vm[0].Float32(), 2, "leak=0 preserves")

	// leak=1 pins potential to resting after one burst
	ns2, areas2 := testStore(t, NeuronSpec{Threshold: 10, Resting: 0.5, Leak: 1, Excitability: 1})
	ns2.Vm[0] = enc(2)
	StepNeuron(ns2, areas2, 0, enc(0), 0)
	cmprFloats(t, ns2.Vm[0].Float32(), 0.5, "leak=1 reaches resting")
}

func TestRefractoryExclusion(t *testing.T) {
	ns, areas := testStore(t, NeuronSpec{Threshold: 1, RefractoryPeriod: 3, Excitability: 1})
	if !StepNeuron(ns, areas, 0, enc(5), 0) {
		t.Fatal("initial fire expected")
	}
	// within the countdown it never fires, regardless of injection
	for b := uint64(1); b <= 3; b++ {
		if StepNeuron(ns, areas, 0, enc(100), b) {
			t.Errorf("burst %d: fired inside refractory window", b)
		}
	}
	if !StepNeuron(ns, areas, 0, enc(100), 4) {
		t.Errorf("must fire again once countdown expired")
	}
}

func TestConsecutiveFireExtension(t *testing.T) {
	const limit, snooze = 3, 4
	ns, areas := testStore(t, NeuronSpec{
		Threshold: 1, FireLimit: limit, Snooze: snooze, Excitability: 1,
	})
	b := uint64(0)
	for i := 0; i < limit; i++ {
		if !StepNeuron(ns, areas, 0, enc(2), b) {
			t.Fatalf("fire %d expected", i)
		}
		b++
	}
	// extended refractory = refractory(0) + snooze
	if ns.RefracCtr[0] != snooze {
		t.Fatalf("extended refractory: got %d, expected %d", ns.RefracCtr[0], snooze)
	}
	// count must not reset until the extended window fully elapses
	for i := 0; i < snooze; i++ {
		if StepNeuron(ns, areas, 0, enc(2), b) {
			t.Fatalf("fired inside snooze at step %d", i)
		}
		if i < snooze-1 && ns.FireCnt[0] != limit {
			t.Fatalf("count reset early at step %d", i)
		}
		b++
	}
	if ns.FireCnt[0] != 0 {
		t.Errorf("count must reset once extended window elapses: got %d", ns.FireCnt[0])
	}
	if !StepNeuron(ns, areas, 0, enc(2), b) {
		t.Errorf("must fire again after snooze")
	}
	if ns.FireCnt[0] != 1 {
		t.Errorf("count restarts at 1: got %d", ns.FireCnt[0])
	}
}

func TestExcitabilityGate(t *testing.T) {
	// excitability 0 never fires, even far above threshold
	ns, areas := testStore(t, NeuronSpec{Threshold: 1, Excitability: 0})
	for b := uint64(0); b < 20; b++ {
		if StepNeuron(ns, areas, 0, enc(10), b) {
			t.Fatalf("excitability 0 fired at burst %d", b)
		}
	}
	// the draw is a pure function of (id, burst)
	for b := uint64(0); b < 100; b += 7 {
		if ExciteP(3, b) != ExciteP(3, b) {
			t.Fatalf("draw not deterministic at burst %d", b)
		}
	}
	if ExciteP(3, 5) == ExciteP(4, 5) && ExciteP(3, 6) == ExciteP(4, 6) {
		t.Errorf("draws for different neurons should differ")
	}
	// the draw is Philox keyed by the neuron id, with the burst count
	// split low/high across the counter words
	ctr := sltype.Uint2{X: 0x89ABCDEF, Y: 0x01234567}
	want := slrand.Uint32ToFloat(slrand.Philox2x32(ctr, 42).X)
	if got := ExciteP(42, 0x0123456789ABCDEF); got != want {
		t.Errorf("draw does not match generator: got %v, expected %v", got, want)
	}
	if want < 0 || want >= 1 {
		t.Errorf("draw outside [0,1): %v", want)
	}
}

func TestFireResetPolicy(t *testing.T) {
	areas := NewAreas()
	_, _ = areas.Add(&AreaParams{Name: "zero", Accumulate: true, UniformPSP: true})
	_, _ = areas.Add(&AreaParams{Name: "rest", Accumulate: true, UniformPSP: true, FireToRest: true})
	ns, _ := NewNeuronStore[nval.Float32](2)
	_, _ = ns.AddBatch([]NeuronSpec{
		{Threshold: 1, Resting: 0.25, Excitability: 1, Area: 0},
		{Threshold: 1, Resting: 0.25, Excitability: 1, Area: 1},
	})
	StepNeuron(ns, areas, 0, enc(2), 0)
	StepNeuron(ns, areas, 1, enc(2), 0)
	cmprFloats(t, ns.Vm[0].Float32(), 0, "fire resets to zero")
	cmprFloats(t, ns.Vm[1].Float32(), 0.25, "fire resets to resting")
}

func TestSynContributionSign(t *testing.T) {
	ss, _ := NewSynapseStore(2)
	_, err := ss.AddBatch([]SynapseSpec{
		{Src: 0, Dst: 1, Weight: 200, Conductance: 128},
		{Src: 0, Dst: 1, Weight: 200, Conductance: 128, Inhibitory: true},
	}, 2)
	if err != nil {
		t.Fatal(err)
	}
	ex := ss.SynContribution(0, true, 2)
	in := ss.SynContribution(1, true, 2)
	cmprFloats(t, ex, -in, "opposite polarity, equal magnitude")
	if ex <= 0 {
		t.Errorf("excitatory contribution must be positive: %v", ex)
	}
}

func TestSynContributionFanout(t *testing.T) {
	ss, _ := NewSynapseStore(4)
	specs := make([]SynapseSpec, 4)
	for i := range specs {
		specs[i] = SynapseSpec{Src: 0, Dst: NeuronIndex(i + 1), Weight: 255, Conductance: 255}
	}
	if _, err := ss.AddBatch(specs, 5); err != nil {
		t.Fatal(err)
	}
	full := ss.SynContribution(0, true, 4)
	div := ss.SynContribution(0, false, 4)
	cmprFloats(t, full, 1, "uniform PSP full contribution")
	cmprFloats(t, div, 0.25, "non-uniform PSP divided by fan-out")
}

func TestEncodeContributionFloor(t *testing.T) {
	// a contribution far below one Q8.8 quantum must floor, not zero
	got := EncodeContribution[nval.Fixed16](1.0e-4)
	if got.IsZero() {
		t.Errorf("nonzero contribution quantized to zero")
	}
	neg := EncodeContribution[nval.Fixed16](-1.0e-4)
	if neg.IsZero() || neg.Float32() >= 0 {
		t.Errorf("negative floor lost sign: %v", neg.Float32())
	}
	if !EncodeContribution[nval.Fixed16](0).IsZero() {
		t.Errorf("zero stays zero")
	}
}
