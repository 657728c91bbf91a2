// Copyright © 2024 The gatbcore Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package graph implements the unitig-based explicit de Bruijn graph of
// specification §4.6: compacted unitig sequences, extremity adjacency,
// per-unitig mean abundance, neighborhood/simple-path queries and the
// tip/bulge/EC simplification passes, grounded on
// original_source/gatb-core/src/gatb/debruijn/impl/GraphUnitigs.hpp.
package graph

import (
	"fmt"

	"github.com/gatb-go/gatbcore/gatberr"
	"github.com/gatb-go/gatbcore/kmer"
)

// Strand mirrors kmer::Strand: the orientation a unitig (or node) is
// read in.
type Strand bool

const (
	Forward Strand = false
	Reverse Strand = true
)

// Opposite returns the other strand.
func (s Strand) Opposite() Strand { return !s }

// Extremity identifies one end of a unitig.
type Extremity uint8

const (
	Begin Extremity = iota
	End
)

// Opposite returns the other extremity.
func (e Extremity) Opposite() Extremity {
	if e == Begin {
		return End
	}
	return Begin
}

// Unitigs is the packed store of every unitig in the graph: a flat
// 2-bit-packed nucleotide buffer with a prefix-sum length index, plus
// per-unitig mean abundance and soft-deletion/traversal bitsets. This
// mirrors GraphUnitigs.hpp's choice to store unitig sequences "packed 2
// bits per base ... with a side array of lengths" (spec.md §4.6) rather
// than one buffer per unitig.
type Unitigs struct {
	k int

	// packed holds every unitig's bases concatenated, 2 bits each,
	// most significant bits first within each byte.
	packed []byte
	// offsets[i] is the base offset of unitig i in the logical
	// (unpacked) coordinate space; offsets[len] is the total base
	// count. length of unitig i is offsets[i+1]-offsets[i].
	offsets []uint64
	// starts[i] is unitig i's base offset into packed (byte-aligned
	// per unitig, see AddUnitig).
	starts []int

	meanAbundance []float32
	deleted       []bool
	traversed     []bool
}

// NewUnitigs creates an empty store for k-mer size k.
func NewUnitigs(k int) *Unitigs {
	return &Unitigs{k: k, offsets: []uint64{0}}
}

// K returns the k-mer size the graph was built with.
func (u *Unitigs) K() int { return u.k }

// Len returns the number of unitigs in the store.
func (u *Unitigs) Len() int { return len(u.offsets) - 1 }

// Length returns the base-pair length of unitig id.
func (u *Unitigs) Length(id int) int {
	return int(u.offsets[id+1] - u.offsets[id])
}

// NbKmers returns the number of k-mers spanning unitig id:
// length-k+1, per spec.md §3 ("if length == k the unitig is a single
// k-mer").
func (u *Unitigs) NbKmers(id int) int {
	return u.Length(id) - u.k + 1
}

// MeanAbundance returns the average k-mer count over unitig id.
func (u *Unitigs) MeanAbundance(id int) float32 { return u.meanAbundance[id] }

// Deleted reports whether unitig id has been soft-deleted.
func (u *Unitigs) Deleted(id int) bool { return u.deleted[id] }

// SetDeleted marks unitig id as deleted. Deletion never rewrites
// adjacency; per spec.md §4.6 "neighborhood queries must honor the
// flag."
func (u *Unitigs) SetDeleted(id int, v bool) { u.deleted[id] = v }

// Traversed reports whether unitig id has been marked traversed by a
// simplification pass.
func (u *Unitigs) Traversed(id int) bool { return u.traversed[id] }

// SetTraversed marks unitig id's traversed bit.
func (u *Unitigs) SetTraversed(id int, v bool) { u.traversed[id] = v }

// ClearTraversed resets every traversed bit, used between
// simplification rounds that re-walk the graph.
func (u *Unitigs) ClearTraversed() {
	for i := range u.traversed {
		u.traversed[i] = false
	}
}

func getBase(packed []byte, pos int) uint8 {
	byteIdx := pos / 4
	shift := uint(6 - 2*(pos%4))
	return (packed[byteIdx] >> shift) & 3
}

func appendBases(packed []byte, bitPos int, bases []uint8) ([]byte, int) {
	for _, b := range bases {
		byteIdx := bitPos / 8
		for byteIdx >= len(packed) {
			packed = append(packed, 0)
		}
		shift := uint(6 - (bitPos % 8))
		packed[byteIdx] |= b << shift
		bitPos += 2
	}
	return packed, bitPos
}

// AddUnitig appends a new unitig with the given nucleotide sequence
// (upper-case ACGT) and mean abundance, returning its id.
func (u *Unitigs) AddUnitig(seq []byte, meanAbundance float32) (int, error) {
	codes := make([]uint8, len(seq))
	for i, b := range seq {
		c, ok := kmer.EncodeBase(b)
		if !ok {
			return 0, gatberr.New(gatberr.FormatError, "graph.AddUnitig", fmt.Errorf("invalid base byte %q", b))
		}
		codes[i] = c
	}
	bitPos := len(u.packed) * 8
	// start each unitig byte-aligned, the simplest boundary and the
	// one GraphUnitigs's own per-unitig buffer layout assumes.
	if bitPos%8 != 0 {
		bitPos += 8 - bitPos%8
	}
	start := bitPos / 2
	packed := make([]byte, bitPos/8)
	copy(packed, u.packed)
	packed, _ = appendBases(packed, bitPos, codes)
	u.packed = packed
	u.starts = append(u.starts, start)

	last := u.offsets[len(u.offsets)-1]
	u.offsets = append(u.offsets, last+uint64(len(seq)))
	u.meanAbundance = append(u.meanAbundance, meanAbundance)
	u.deleted = append(u.deleted, false)
	u.traversed = append(u.traversed, false)
	return len(u.offsets) - 2, nil
}

// Sequence decodes unitig id's nucleotide string, reverse-complemented
// iff strand==Reverse, per spec.md §4.6's unitigSequence query.
func (u *Unitigs) Sequence(id int, strand Strand) string {
	start := u.starts[id]
	n := u.Length(id)
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		buf[i] = kmer.DecodeBase(getBase(u.packed, start+i))
	}
	if strand == Forward {
		return string(buf)
	}
	return reverseComplementString(buf)
}

func reverseComplementString(seq []byte) string {
	out := make([]byte, len(seq))
	for i, b := range seq {
		code, _ := kmer.EncodeBase(b)
		out[len(seq)-1-i] = kmer.DecodeBase(code ^ 2)
	}
	return string(out)
}
