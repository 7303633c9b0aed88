// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package idset

import (
	"reflect"
	"testing"
)

func TestAddHas(t *testing.T) {
	var s Set
	ids := []uint32{0, 1, 63, 64, 1000, 70000}
	for _, id := range ids {
		s.Add(id)
	}
	for _, id := range ids {
		if !s.Has(id) {
			t.Errorf("missing id %d", id)
		}
	}
	for _, id := range []uint32{2, 62, 65, 999, 1001, 70001} {
		if s.Has(id) {
			t.Errorf("unexpected id %d", id)
		}
	}
	if s.Len() != len(ids) {
		t.Errorf("Len: got %d, expected %d", s.Len(), len(ids))
	}
}

func TestAddBelowOffset(t *testing.T) {
	var s Set
	s.Add(1000)
	s.Add(3)
	if !s.Has(3) || !s.Has(1000) {
		t.Errorf("grow-down lost ids")
	}
	if s.Len() != 2 {
		t.Errorf("Len after grow-down: got %d", s.Len())
	}
}

func TestIDsOrdered(t *testing.T) {
	s := FromIDs([]uint32{500, 2, 77, 64, 63})
	exp := []uint32{2, 63, 64, 77, 500}
	if !reflect.DeepEqual(s.IDs(), exp) {
		t.Errorf("IDs: got %v, expected %v", s.IDs(), exp)
	}
}

func TestUnion(t *testing.T) {
	a := FromIDs([]uint32{1, 1000})
	b := FromIDs([]uint32{2, 70000})
	u := Union(&a, &b)
	exp := []uint32{1, 2, 1000, 70000}
	if !reflect.DeepEqual(u.IDs(), exp) {
		t.Errorf("Union: got %v, expected %v", u.IDs(), exp)
	}
	// operands untouched
	if a.Len() != 2 || b.Len() != 2 {
		t.Errorf("Union mutated operands")
	}
}

func TestIntersect(t *testing.T) {
	a := FromIDs([]uint32{1, 64, 1000, 5000})
	b := FromIDs([]uint32{64, 5000, 9000})
	i := Intersect(&a, &b)
	exp := []uint32{64, 5000}
	if !reflect.DeepEqual(i.IDs(), exp) {
		t.Errorf("Intersect: got %v, expected %v", i.IDs(), exp)
	}
	c := FromIDs([]uint32{100000})
	d := FromIDs([]uint32{5})
	if di := Intersect(&c, &d); !di.IsEmpty() {
		t.Errorf("disjoint Intersect not empty: %v", di.IDs())
	}
}

func TestCloneIndependent(t *testing.T) {
	a := FromIDs([]uint32{5, 6})
	b := a.Clone()
	b.Add(7)
	if a.Has(7) {
		t.Errorf("Clone shares storage")
	}
}

func TestFromWordsTrims(t *testing.T) {
	s := FromWords(64, []uint64{0, 0b101, 0})
	if s.Len() != 2 || !s.Has(128) || !s.Has(130) {
		t.Errorf("FromWords: got %v", s.IDs())
	}
	if e := FromWords(0, []uint64{0, 0}); !e.IsEmpty() {
		t.Errorf("all-zero FromWords not empty")
	}
}
