// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"testing"

	"github.com/feagi/feagi-core-sub002/npu"
)

func buildSynStore(t *testing.T, n int, edges [][2]int) *npu.SynapseStore {
	t.Helper()
	ss, err := npu.NewSynapseStore(len(edges))
	if err != nil {
		t.Fatal(err)
	}
	specs := make([]npu.SynapseSpec, len(edges))
	for i, e := range edges {
		specs[i] = npu.SynapseSpec{
			Src: npu.NeuronIndex(e[0]), Dst: npu.NeuronIndex(e[1]),
			Weight: 128, Conductance: 128,
		}
	}
	if _, err := ss.AddBatch(specs, n); err != nil {
		t.Fatal(err)
	}
	return ss
}

func TestRangeTableLookup(t *testing.T) {
	ss := buildSynStore(t, 100, [][2]int{
		{0, 1}, {0, 2}, {0, 3},
		{5, 6},
		{7, 8}, {7, 9},
	})
	var rt RangeTable
	fired := []npu.NeuronIndex{0, 5, 7, 42} // 42 has no synapses
	rt.Build(fired, ss)

	for _, src := range []npu.NeuronIndex{0, 5, 7} {
		start, n, ok := rt.Lookup(src)
		if !ok {
			t.Fatalf("source %d missing from table", src)
		}
		ws, wn := ss.OutRange(src)
		if int(start) != ws || int(n) != wn {
			t.Errorf("source %d: range (%d,%d), expected (%d,%d)", src, start, n, ws, wn)
		}
	}
	if _, _, ok := rt.Lookup(42); ok {
		t.Errorf("source with no synapses present in table")
	}
	if _, _, ok := rt.Lookup(99); ok {
		t.Errorf("unfired source present in table")
	}
}

// sequential ids all landing in one table are the worst realistic
// probe-chain case; every one must still resolve.
func TestRangeTableDenseFired(t *testing.T) {
	n := 1000
	edges := make([][2]int, n)
	for i := range edges {
		edges[i] = [2]int{i, (i + 1) % n}
	}
	ss := buildSynStore(t, n, edges)
	fired := make([]npu.NeuronIndex, n)
	for i := range fired {
		fired[i] = npu.NeuronIndex(i)
	}
	var rt RangeTable
	rt.Build(fired, ss)

	if len(rt.Entries)&(len(rt.Entries)-1) != 0 {
		t.Fatalf("table size %d not a power of two", len(rt.Entries))
	}
	if len(rt.Entries) < 2*n {
		t.Fatalf("table size %d under 2x load factor for %d fired", len(rt.Entries), n)
	}
	for _, src := range fired {
		start, deg, ok := rt.Lookup(src)
		if !ok {
			t.Fatalf("source %d missing", src)
		}
		ws, wn := ss.OutRange(src)
		if int(start) != ws || int(deg) != wn {
			t.Fatalf("source %d: range (%d,%d), expected (%d,%d)", src, start, deg, ws, wn)
		}
	}
}

func TestRangeTableReuse(t *testing.T) {
	ss := buildSynStore(t, 10, [][2]int{{1, 2}, {3, 4}})
	var rt RangeTable
	rt.Build([]npu.NeuronIndex{1, 3}, ss)
	if _, _, ok := rt.Lookup(1); !ok {
		t.Fatal("missing after first build")
	}
	// second build must fully clear the first burst's entries
	rt.Build([]npu.NeuronIndex{3}, ss)
	if _, _, ok := rt.Lookup(1); ok {
		t.Errorf("stale entry survived rebuild")
	}
	if _, _, ok := rt.Lookup(3); !ok {
		t.Errorf("missing after rebuild")
	}
}

func TestHashIDSpread(t *testing.T) {
	seen := map[uint32]bool{}
	for i := uint32(0); i < 4096; i++ {
		seen[hashID(i)] = true
	}
	if len(seen) != 4096 {
		t.Errorf("finalizer collided on sequential ids: %d distinct of 4096", len(seen))
	}
}
