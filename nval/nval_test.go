// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nval

import (
	"math"
	"testing"

	"github.com/goki/mat32"
)

const difTol = float32(1.0e-6)

func cmprFloats(t *testing.T, got, exp float32, msg string) {
	t.Helper()
	if mat32.Abs(got-exp) > difTol {
		t.Errorf("%s: got %v, expected %v", msg, got, exp)
	}
}

func TestFloat32RoundTrip(t *testing.T) {
	var z Float32
	for _, v := range []float32{0, 1, -1, 0.5, 127.996, -128, 1e-3} {
		got := z.FromFloat32(v).Float32()
		cmprFloats(t, got, v, "Float32 round trip")
	}
}

func TestFloat32SatAdd(t *testing.T) {
	var z Float32
	a := z.FromFloat32(math.MaxFloat32)
	b := a.SatAdd(a)
	if math.IsInf(float64(b.Float32()), 1) {
		t.Errorf("SatAdd overflowed to +Inf")
	}
	cmprFloats(t, z.FromFloat32(1).SatAdd(z.FromFloat32(2)).Float32(), 3, "SatAdd")
}

func TestFloat32Leak(t *testing.T) {
	var z Float32
	v := z.FromFloat32(2)
	rest := z.FromFloat32(0.5)
	cmprFloats(t, v.LeakTo(rest, 0).Float32(), 2, "leak=0 preserves")
	cmprFloats(t, v.LeakTo(rest, 1).Float32(), 0.5, "leak=1 reaches rest")
	cmprFloats(t, v.LeakTo(rest, 0.5).Float32(), 1.25, "leak=0.5 halfway")
}

func TestFixed16RoundTrip(t *testing.T) {
	var z Fixed16
	for _, v := range []float32{0, 1, -1, 0.5, 0.25, 100, -100} {
		got := z.FromFloat32(v).Float32()
		cmprFloats(t, got, v, "Fixed16 round trip")
	}
	// sub-quantum values round to nearest step
	if z.FromFloat32(1.0/512 + 1.0/2048).Float32() != 1.0/256 {
		t.Errorf("Fixed16 rounding: got %v", z.FromFloat32(1.0/512+1.0/2048).Float32())
	}
}

func TestFixed16Saturation(t *testing.T) {
	var z Fixed16
	hi := z.FromFloat32(200) // beyond Q8.8 range
	if hi != fixedMax {
		t.Errorf("encode above range: got %v, expected %v", hi, fixedMax)
	}
	if fixedMax.SatAdd(z.FromFloat32(1)) != fixedMax {
		t.Errorf("SatAdd did not saturate at max")
	}
	if fixedMin.SatAdd(z.FromFloat32(-1)) != fixedMin {
		t.Errorf("SatAdd did not saturate at min")
	}
}

func TestFixed16Leak(t *testing.T) {
	var z Fixed16
	v := z.FromFloat32(2)
	rest := z.FromFloat32(0.5)
	cmprFloats(t, v.LeakTo(rest, 0).Float32(), 2, "leak=0 preserves")
	cmprFloats(t, v.LeakTo(rest, 1).Float32(), 0.5, "leak=1 reaches rest")
}

func TestOrderingAndQuantum(t *testing.T) {
	var zf Float32
	if !zf.FromFloat32(1).Less(zf.FromFloat32(2)) {
		t.Errorf("Float32 Less")
	}
	var zq Fixed16
	if !zq.FromFloat32(-1).Less(zq.FromFloat32(1)) {
		t.Errorf("Fixed16 Less")
	}
	if zq.Quantum().IsZero() {
		t.Errorf("Fixed16 Quantum must be nonzero")
	}
	if zf.Quantum().IsZero() {
		t.Errorf("Float32 Quantum must be nonzero")
	}
	if zq.FromFloat32(0.5).Neg().Float32() != -0.5 {
		t.Errorf("Fixed16 Neg")
	}
}
