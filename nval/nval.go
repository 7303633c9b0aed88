// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package nval provides the numeric value representations used for
membrane potentials and other per-neuron quantities.

The burst dynamics are written once, generically, against the Value
constraint, and run unmodified whether potentials are stored at full
float32 precision (desktop / server) or as Q8.8 fixed point
(embedded, no-allocation targets).  The representation is chosen at
store construction time and is not switchable per neuron.
*/
package nval

// Value is the constraint satisfied by a storable potential
// representation.  All operations are value-semantics: they return
// the result rather than mutating the receiver, so representations
// stay trivially copyable inside columnar arrays.
type Value[T any] interface {
	comparable

	// FromFloat32 encodes a full-precision value into this
	// representation, saturating at the representable range.
	// Callable on the zero value, which acts as the factory.
	FromFloat32(v float32) T

	// Float32 returns the full-precision form of the value.
	Float32() float32

	// SatAdd returns the saturating sum of the value and o.
	SatAdd(o T) T

	// LeakTo returns the value moved toward rest by the fraction
	// frac in [0,1]: frac=0 preserves the value, frac=1 returns rest.
	LeakTo(rest T, frac float32) T

	// Less reports whether the value is strictly below o.
	Less(o T) bool

	// IsZero reports whether the value is exactly zero.
	IsZero() bool

	// Neg returns the negated value (saturating where the
	// representation is asymmetric).
	Neg() T

	// Quantum returns the smallest positive nonzero value of the
	// representation.  Used as a floor so that fan-out division of a
	// synaptic contribution never quantizes a nonzero contribution
	// to exactly zero.
	Quantum() T
}
