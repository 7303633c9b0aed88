// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package burst

import (
	"log/slog"

	"github.com/feagi/feagi-core-sub002/npu"
)

// ActivitySource provides the per-area fired history the sleep
// controller averages over.  *npu.NPU satisfies it.
type ActivitySource interface {
	History(area string, lookback int) ([]npu.LedgerEntry, error)
}

// SleepController implements low-activity throttling.  It is dual
// gated: the system-level enable flag and a per-area sleep block must
// both be present before any area can vote for sleep.  Absent either
// gate the controller is a logged no-op, never an error.
type SleepController struct {
	enabled bool
	areas   *npu.Areas
	src     ActivitySource
	asleep  map[string]bool
}

// NewSleepController wires the controller to the area registry and
// history source.
func NewSleepController(enabled bool, areas *npu.Areas, src ActivitySource) *SleepController {
	sc := &SleepController{
		enabled: enabled,
		areas:   areas,
		src:     src,
		asleep:  make(map[string]bool),
	}
	if !enabled {
		slog.Info("sleep mode disabled by configuration")
		return sc
	}
	n := 0
	for ai := 0; ai < areas.Len(); ai++ {
		if areas.At(npu.AreaIndex(ai)).Sleep != nil {
			n++
		}
	}
	if n == 0 {
		slog.Info("sleep mode enabled but no area carries a sleep block")
	}
	return sc
}

// Evaluate averages each sleep-configured area's fired count over its
// window and returns the lowest throttled frequency any sleeping area
// demands, with asleep reporting whether any area is throttling.
// State transitions are logged.
func (sc *SleepController) Evaluate() (hz float64, asleep bool) {
	if !sc.enabled {
		return 0, false
	}
	for ai := 0; ai < sc.areas.Len(); ai++ {
		ap := sc.areas.At(npu.AreaIndex(ai))
		sl := ap.Sleep
		if sl == nil {
			continue
		}
		hist, err := sc.src.History(ap.Name, sl.Window)
		if err != nil || len(hist) < sl.Window {
			continue // not enough history yet
		}
		sum := 0
		for i := range hist {
			sum += hist[i].Fired.Len()
		}
		avg := float64(sum) / float64(sl.Window)
		sleeping := avg < sl.Threshold
		if sleeping != sc.asleep[ap.Name] {
			sc.asleep[ap.Name] = sleeping
			if sleeping {
				slog.Info("area entering sleep", "area", ap.Name, "avgFired", avg, "hz", sl.FrequencyHz)
			} else {
				slog.Info("area waking", "area", ap.Name, "avgFired", avg)
			}
		}
		if sleeping {
			if !asleep || sl.FrequencyHz < hz {
				hz = sl.FrequencyHz
			}
			asleep = true
		}
	}
	return hz, asleep
}
