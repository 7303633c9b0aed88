// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package npu

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/goki/mat32"
)

// AreaIndex is a dense index into the cortical-area registry.
type AreaIndex uint16

// SleepBlock configures per-area low-activity throttling.  Sleep mode
// engages only when both the system-level enable flag and this block
// are present (dual gate); absence of either is a logged no-op.
type SleepBlock struct {

	// Threshold is the average fired-per-burst level below which the
	// area votes for sleep.
	Threshold float64

	// FrequencyHz is the throttled burst frequency while asleep.
	FrequencyHz float64

	// Window is the number of bursts the activity average spans.
	Window int
}

// AreaParams is the configuration shared by all neurons of one
// cortical area.
type AreaParams struct {

	// Name is the unique area identifier.
	Name string

	// Accumulate keeps membrane potential across bursts.  When
	// false, every neuron of the area is reset to its resting
	// potential at the start of each burst.
	Accumulate bool

	// UniformPSP delivers a firing neuron's full contribution to
	// each outgoing synapse.  When false the contribution is divided
	// by the outgoing-synapse count.
	UniformPSP bool

	// FireToRest resets a fired neuron's potential to resting
	// instead of zero.
	FireToRest bool

	// Sleep optionally configures low-activity throttling.
	Sleep *SleepBlock

	// power is the continuous stimulation amount injected into
	// every neuron of the area each burst, stored as float32 bits
	// so it is readable without any lock.
	power atomic.Uint32
}

// Power returns the per-burst stimulation amount.
func (ap *AreaParams) Power() float32 {
	return math.Float32frombits(ap.power.Load())
}

// SetPower sets the per-burst stimulation amount.  Lock-free; takes
// effect at the next burst's injection phase.
func (ap *AreaParams) SetPower(amt float32) error {
	if amt < 0 || mat32.IsNaN(amt) {
		return fmt.Errorf("power amount %g: %w", amt, ErrInvalidParam)
	}
	ap.power.Store(math.Float32bits(amt))
	return nil
}

// Areas is the registry of cortical areas.  Areas are registered up
// front (before neurons reference them) and never removed; their
// scalar parameters remain runtime-adjustable via atomics.
type Areas struct {
	byName map[string]AreaIndex
	list   []*AreaParams
}

// NewAreas returns an empty registry.
func NewAreas() *Areas {
	return &Areas{byName: make(map[string]AreaIndex)}
}

// Add registers an area and returns its index.
func (as *Areas) Add(ap *AreaParams) (AreaIndex, error) {
	if ap.Name == "" {
		return 0, fmt.Errorf("area name empty: %w", ErrInvalidParam)
	}
	if _, dup := as.byName[ap.Name]; dup {
		return 0, fmt.Errorf("area %q already registered: %w", ap.Name, ErrInvalidParam)
	}
	if ap.Sleep != nil {
		sl := ap.Sleep
		if sl.Threshold < 0 || sl.FrequencyHz <= 0 || sl.Window <= 0 {
			return 0, fmt.Errorf("area %q sleep block: %w", ap.Name, ErrInvalidParam)
		}
	}
	idx := AreaIndex(len(as.list))
	as.list = append(as.list, ap)
	as.byName[ap.Name] = idx
	return idx, nil
}

// At returns the area at idx.  Panics on out-of-range: area indices
// are assigned by Add and stored internally, so a bad one is a bug,
// not an input error.
func (as *Areas) At(idx AreaIndex) *AreaParams {
	return as.list[idx]
}

// ByName looks an area up by name.
func (as *Areas) ByName(name string) (AreaIndex, error) {
	idx, ok := as.byName[name]
	if !ok {
		return 0, fmt.Errorf("area %q: %w", name, ErrUnknownArea)
	}
	return idx, nil
}

// Len returns the number of registered areas.
func (as *Areas) Len() int { return len(as.list) }
