// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package npu

import (
	"errors"
	"testing"
)

func TestSynapseAddIndexIsFresh(t *testing.T) {
	ss, _ := NewSynapseStore(8)
	const nn = 4
	s0, err := ss.Add(&SynapseSpec{Src: 0, Dst: 1, Weight: 10, Conductance: 10}, nn)
	if err != nil {
		t.Fatal(err)
	}
	// index usable immediately after the mutating call returns
	if got := ss.Outgoing(0); len(got) != 1 || got[0] != s0 {
		t.Fatalf("Outgoing(0) after Add: %v", got)
	}
	s1, _ := ss.Add(&SynapseSpec{Src: 0, Dst: 2, Weight: 10, Conductance: 10}, nn)
	s2, _ := ss.Add(&SynapseSpec{Src: 2, Dst: 3, Weight: 10, Conductance: 10}, nn)
	if got := ss.Outgoing(0); len(got) != 2 || got[0] != s0 || got[1] != s1 {
		t.Fatalf("Outgoing(0): %v", got)
	}
	if ss.OutDegree(2) != 1 {
		t.Fatalf("OutDegree(2): %d", ss.OutDegree(2))
	}
	if err := ss.Remove(s1, nn); err != nil {
		t.Fatal(err)
	}
	if got := ss.Outgoing(0); len(got) != 1 || got[0] != s0 {
		t.Fatalf("Outgoing(0) after Remove: %v", got)
	}
	if err := ss.Reassign(s2, 1, 0, nn); err != nil {
		t.Fatal(err)
	}
	if ss.OutDegree(2) != 0 || ss.OutDegree(1) != 1 {
		t.Fatalf("index stale after Reassign: deg2=%d deg1=%d", ss.OutDegree(2), ss.OutDegree(1))
	}
}

func TestSynapseSlotRecycling(t *testing.T) {
	ss, _ := NewSynapseStore(2)
	s0, _ := ss.Add(&SynapseSpec{Src: 0, Dst: 1}, 2)
	if err := ss.Remove(s0, 2); err != nil {
		t.Fatal(err)
	}
	s1, _ := ss.Add(&SynapseSpec{Src: 1, Dst: 0}, 2)
	if s1 != s0 {
		t.Errorf("freed slot not recycled: got %d, expected %d", s1, s0)
	}
	if ss.Valid() != 1 || ss.Slots() != 1 {
		t.Errorf("valid=%d slots=%d", ss.Valid(), ss.Slots())
	}
}

func TestSynapseBadIDs(t *testing.T) {
	ss, _ := NewSynapseStore(2)
	if _, err := ss.Add(&SynapseSpec{Src: 5, Dst: 0}, 2); !errors.Is(err, ErrBadID) {
		t.Errorf("out-of-range source: got %v", err)
	}
	if _, err := ss.Add(&SynapseSpec{Src: 0, Dst: 9}, 2); !errors.Is(err, ErrBadID) {
		t.Errorf("out-of-range target: got %v", err)
	}
	if err := ss.Remove(7, 2); !errors.Is(err, ErrBadID) {
		t.Errorf("remove missing: got %v", err)
	}
	if err := ss.UpdateWeight(7, 1, 1); !errors.Is(err, ErrBadID) {
		t.Errorf("update missing: got %v", err)
	}
}

func TestSynapseBatchAtomic(t *testing.T) {
	ss, _ := NewSynapseStore(4)
	_, err := ss.AddBatch([]SynapseSpec{
		{Src: 0, Dst: 1},
		{Src: 9, Dst: 0}, // bad
	}, 2)
	if !errors.Is(err, ErrBadID) {
		t.Fatalf("bad batch must be rejected: %v", err)
	}
	if ss.Valid() != 0 {
		t.Errorf("rejected batch mutated store: %d valid", ss.Valid())
	}
}

func TestUpdateWeightPreservesIndex(t *testing.T) {
	ss, _ := NewSynapseStore(2)
	s0, _ := ss.Add(&SynapseSpec{Src: 0, Dst: 1, Weight: 10, Conductance: 20}, 2)
	if err := ss.UpdateWeight(s0, 200, 100); err != nil {
		t.Fatal(err)
	}
	if ss.Wt[s0] != 200 || ss.Cond[s0] != 100 {
		t.Errorf("weight update lost: wt=%d cond=%d", ss.Wt[s0], ss.Cond[s0])
	}
	if got := ss.Outgoing(0); len(got) != 1 || got[0] != s0 {
		t.Errorf("index disturbed by weight update: %v", got)
	}
}
