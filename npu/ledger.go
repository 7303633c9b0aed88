// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package npu

import (
	"fmt"

	"github.com/feagi/feagi-core-sub002/idset"
)

// LedgerEntry is one burst's compressed fired set for one area.
type LedgerEntry struct {
	Burst uint64
	Fired idset.Set
}

// Ledger is the bounded sliding-window firing history, partitioned
// per cortical area.  The orchestrator only writes (Archive); the
// learning collaborator only reads.  Entries older than the window
// depth are evicted.
type Ledger struct {
	depth int
	areas map[AreaIndex][]LedgerEntry
}

// NewLedger returns a ledger keeping depth bursts of history per
// area.
func NewLedger(depth int) (*Ledger, error) {
	if depth <= 0 {
		return nil, fmt.Errorf("ledger depth %d: %w", depth, ErrInvalidParam)
	}
	return &Ledger{depth: depth, areas: make(map[AreaIndex][]LedgerEntry)}, nil
}

// Depth returns the configured window depth.
func (lg *Ledger) Depth() int { return lg.depth }

// Archive records the fired set for one burst, splitting it per area
// via areaOf and compressing each partition.  Areas with no firings
// this burst get no entry.
func (lg *Ledger) Archive(burst uint64, fired []NeuronIndex, areaOf func(NeuronIndex) AreaIndex) {
	if len(fired) == 0 {
		return
	}
	touched := map[AreaIndex]*idset.Set{}
	for _, id := range fired {
		a := areaOf(id)
		s := touched[a]
		if s == nil {
			s = &idset.Set{}
			touched[a] = s
		}
		s.Add(uint32(id))
	}
	for a, s := range touched {
		win := append(lg.areas[a], LedgerEntry{Burst: burst, Fired: *s})
		if len(win) > lg.depth {
			n := copy(win, win[len(win)-lg.depth:])
			win = win[:n]
		}
		lg.areas[a] = win
	}
}

// History returns up to lookback entries for the area, oldest first,
// in compressed form.  The returned sets are the ledger's own;
// consumers must treat them as read-only.
func (lg *Ledger) History(area AreaIndex, lookback int) []LedgerEntry {
	if lookback <= 0 {
		return nil
	}
	win := lg.areas[area]
	if lookback < len(win) {
		win = win[len(win)-lookback:]
	}
	return win
}

// HistoryIDs returns the decompressed convenience form: ordered
// (burst, dense id list) pairs, oldest first.
func (lg *Ledger) HistoryIDs(area AreaIndex, lookback int) []struct {
	Burst uint64
	IDs   []uint32
} {
	win := lg.History(area, lookback)
	out := make([]struct {
		Burst uint64
		IDs   []uint32
	}, len(win))
	for i := range win {
		out[i].Burst = win[i].Burst
		out[i].IDs = win[i].Fired.IDs()
	}
	return out
}

// HistoryUnion returns the union of the fired sets across the
// lookback window, computed word-wise on the compressed form.
func (lg *Ledger) HistoryUnion(area AreaIndex, lookback int) idset.Set {
	var u idset.Set
	for _, e := range lg.History(area, lookback) {
		u.UnionWith(&e.Fired)
	}
	return u
}

// Restore replaces one area's window from persisted entries.  The
// window is validated as a whole: bursts must be strictly ascending,
// no entry may exceed the configured depth, and ids must fall below
// maxNeurons.  Any violation fails the load; nothing is truncated.
func (lg *Ledger) Restore(area AreaIndex, entries []LedgerEntry, maxNeurons int) error {
	if len(entries) > lg.depth {
		return fmt.Errorf("ledger restore area %d: %d entries exceed depth %d: %w",
			area, len(entries), lg.depth, ErrCorruptState)
	}
	for i := range entries {
		if i > 0 && entries[i].Burst <= entries[i-1].Burst {
			return fmt.Errorf("ledger restore area %d: bursts not ascending at entry %d: %w",
				area, i, ErrCorruptState)
		}
		var bad error
		entries[i].Fired.ForEach(func(id uint32) {
			if bad == nil && int(id) >= maxNeurons {
				bad = fmt.Errorf("ledger restore area %d entry %d: neuron %d beyond %d: %w",
					area, i, id, maxNeurons, ErrCorruptState)
			}
		})
		if bad != nil {
			return bad
		}
	}
	lg.areas[area] = append([]LedgerEntry(nil), entries...)
	return nil
}
