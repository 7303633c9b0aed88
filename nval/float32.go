// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nval

import (
	"math"

	"github.com/goki/mat32"
)

// Float32 is the full-precision potential representation, the
// default on desktop and server targets.
type Float32 float32

// FromFloat32 encodes v.  Full precision, so encoding is exact;
// infinities are clamped to the finite range so SatAdd stays sane.
func (Float32) FromFloat32(v float32) Float32 {
	if math.IsInf(float64(v), 1) {
		return Float32(math.MaxFloat32)
	}
	if math.IsInf(float64(v), -1) {
		return Float32(-math.MaxFloat32)
	}
	return Float32(v)
}

func (v Float32) Float32() float32 { return float32(v) }

// SatAdd adds o, clamping at the finite float32 range.
func (v Float32) SatAdd(o Float32) Float32 {
	s := float32(v) + float32(o)
	if math.IsInf(float64(s), 1) {
		return Float32(math.MaxFloat32)
	}
	if math.IsInf(float64(s), -1) {
		return Float32(-math.MaxFloat32)
	}
	return Float32(s)
}

func (v Float32) LeakTo(rest Float32, frac float32) Float32 {
	f := mat32.Clamp(frac, 0, 1)
	return Float32(float32(v) + f*(float32(rest)-float32(v)))
}

func (v Float32) Less(o Float32) bool { return v < o }

func (v Float32) IsZero() bool { return v == 0 }

func (v Float32) Neg() Float32 { return -v }

func (Float32) Quantum() Float32 { return Float32(math.SmallestNonzeroFloat32) }
