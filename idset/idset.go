// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package idset implements the compressed neuron-id sets recorded in
the fire ledger and produced by the GPU fired-mask compaction.

A Set is a word-trimmed bitmap: a first-word offset plus a dense
[]uint64 word slice covering only the populated range of ids.  Dense
firing patterns (vision-like areas firing tens of thousands of
neurons per burst) compress to one bit per neuron, and union /
intersection across a learning lookback window are word-wise
operations that never decompress to id lists.
*/
package idset

import "math/bits"

const wordBits = 64

// Set is a compressed set of dense uint32 neuron ids.
// The zero value is an empty set ready to use.
type Set struct {

	// off is the id covered by bit 0 of words[0], always a
	// multiple of 64.
	off uint32

	// words is the bitmap, trimmed so that (once built) the first
	// and last words are nonzero.
	words []uint64
}

// FromIDs builds a Set from a list of ids (need not be sorted).
func FromIDs(ids []uint32) Set {
	var s Set
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id into the set, growing the covered range as needed.
func (s *Set) Add(id uint32) {
	w := id / wordBits
	if len(s.words) == 0 {
		s.off = w * wordBits
		s.words = append(s.words, 0)
	} else if w*wordBits < s.off {
		grow := int(s.off/wordBits - w)
		nw := make([]uint64, grow+len(s.words))
		copy(nw[grow:], s.words)
		s.words = nw
		s.off = w * wordBits
	} else if idx := int(w - s.off/wordBits); idx >= len(s.words) {
		for len(s.words) <= idx {
			s.words = append(s.words, 0)
		}
	}
	s.words[w-s.off/wordBits] |= 1 << (id % wordBits)
}

// Has reports whether id is in the set.
func (s *Set) Has(id uint32) bool {
	if id < s.off {
		return false
	}
	idx := int((id - s.off) / wordBits)
	if idx >= len(s.words) {
		return false
	}
	return s.words[idx]&(1<<(id%wordBits)) != 0
}

// Len returns the number of ids in the set.
func (s *Set) Len() int {
	n := 0
	for _, w := range s.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// IsEmpty reports whether the set holds no ids.
func (s *Set) IsEmpty() bool {
	for _, w := range s.words {
		if w != 0 {
			return false
		}
	}
	return true
}

// UnionWith ORs o into the receiver without decompressing either set.
func (s *Set) UnionWith(o *Set) {
	if len(o.words) == 0 {
		return
	}
	if len(s.words) == 0 {
		s.off = o.off
		s.words = append(s.words[:0], o.words...)
		return
	}
	lo := s.off
	if o.off < lo {
		lo = o.off
	}
	sEnd := s.off + uint32(len(s.words))*wordBits
	oEnd := o.off + uint32(len(o.words))*wordBits
	hi := sEnd
	if oEnd > hi {
		hi = oEnd
	}
	nw := make([]uint64, (hi-lo)/wordBits)
	copy(nw[(s.off-lo)/wordBits:], s.words)
	ob := (o.off - lo) / wordBits
	for i, w := range o.words {
		nw[int(ob)+i] |= w
	}
	s.off = lo
	s.words = nw
}

// Union returns a new set holding all ids in a or b.
func Union(a, b *Set) Set {
	var s Set
	s.UnionWith(a)
	s.UnionWith(b)
	return s
}

// Intersect returns a new set holding the ids present in both a and b.
func Intersect(a, b *Set) Set {
	lo := a.off
	if b.off > lo {
		lo = b.off
	}
	aEnd := a.off + uint32(len(a.words))*wordBits
	bEnd := b.off + uint32(len(b.words))*wordBits
	hi := aEnd
	if bEnd < hi {
		hi = bEnd
	}
	var s Set
	if hi <= lo {
		return s
	}
	s.off = lo
	s.words = make([]uint64, (hi-lo)/wordBits)
	for i := range s.words {
		s.words[i] = a.words[(lo-a.off)/wordBits+uint32(i)] & b.words[(lo-b.off)/wordBits+uint32(i)]
	}
	return s
}

// ForEach calls fn for each id in the set in ascending order.
func (s *Set) ForEach(fn func(id uint32)) {
	for i, w := range s.words {
		base := s.off + uint32(i)*wordBits
		for w != 0 {
			b := uint32(bits.TrailingZeros64(w))
			fn(base + b)
			w &= w - 1
		}
	}
}

// IDs returns the decompressed, ascending id list.
func (s *Set) IDs() []uint32 {
	ids := make([]uint32, 0, s.Len())
	s.ForEach(func(id uint32) { ids = append(ids, id) })
	return ids
}

// Clone returns an independent copy of the set.
func (s *Set) Clone() Set {
	return Set{off: s.off, words: append([]uint64(nil), s.words...)}
}

// Clear empties the set, retaining capacity.
func (s *Set) Clear() {
	s.words = s.words[:0]
	s.off = 0
}

// Words exposes the raw offset and bitmap words, for bulk consumers
// such as the GPU fired-mask compaction.  The returned slice must be
// treated as read-only.
func (s *Set) Words() (off uint32, words []uint64) {
	return s.off, s.words
}

// FromWords builds a Set directly from a bitmap, trimming zero words
// at both ends.  off must be a multiple of 64.
func FromWords(off uint32, words []uint64) Set {
	lo, hi := 0, len(words)
	for lo < hi && words[lo] == 0 {
		lo++
	}
	for hi > lo && words[hi-1] == 0 {
		hi--
	}
	if lo == hi {
		return Set{}
	}
	return Set{
		off:   off + uint32(lo)*wordBits,
		words: append([]uint64(nil), words[lo:hi]...),
	}
}
