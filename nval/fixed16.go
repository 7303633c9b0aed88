// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nval

import "github.com/goki/mat32"

// Fixed16 is a signed Q8.8 fixed-point potential representation for
// embedded targets: range [-128, 128), resolution 1/256, no heap use
// anywhere in its operations.  All arithmetic saturates instead of
// wrapping.
type Fixed16 int16

const (
	fixedFracBits = 8
	fixedOne      = 1 << fixedFracBits // 256

	fixedMax = Fixed16(32767)
	fixedMin = Fixed16(-32768)
)

// FromFloat32 encodes v with round-to-nearest, saturating at the
// Q8.8 range.
func (Fixed16) FromFloat32(v float32) Fixed16 {
	s := v * fixedOne
	s = mat32.Clamp(s, float32(fixedMin), float32(fixedMax))
	if s >= 0 {
		return Fixed16(s + 0.5)
	}
	return Fixed16(s - 0.5)
}

func (v Fixed16) Float32() float32 { return float32(v) / fixedOne }

func (v Fixed16) SatAdd(o Fixed16) Fixed16 {
	s := int32(v) + int32(o)
	if s > int32(fixedMax) {
		return fixedMax
	}
	if s < int32(fixedMin) {
		return fixedMin
	}
	return Fixed16(s)
}

// LeakTo moves toward rest by frac.  The fraction is applied in
// 32-bit fixed point (Q16) so the result is bit-reproducible across
// platforms.
func (v Fixed16) LeakTo(rest Fixed16, frac float32) Fixed16 {
	f := int64(mat32.Clamp(frac, 0, 1) * 65536)
	d := int64(rest) - int64(v)
	return Fixed16(int64(v) + (d*f)>>16)
}

func (v Fixed16) Less(o Fixed16) bool { return v < o }

func (v Fixed16) IsZero() bool { return v == 0 }

func (v Fixed16) Neg() Fixed16 {
	if v == fixedMin {
		return fixedMax
	}
	return -v
}

// Quantum returns one Q8.8 step (1/256).
func (Fixed16) Quantum() Fixed16 { return 1 }
