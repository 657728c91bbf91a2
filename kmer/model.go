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

package kmer

import (
	"encoding/binary"
	"fmt"

	"github.com/zeebo/wyhash"
)

// Value is the canonical, width-agnostic on-the-wire representation of a
// k-mer used by every downstream package (spill, dsk, membership, graph).
// For k<=32 only Lo is populated; for 32<k<=64 both words are used. This
// mirrors spec.md §9's "runtime dispatch over a small closed set of
// widths": the Model does the width dispatch once at Build time, and
// everything downstream of it is width-agnostic.
type Value = Kmer128

// Less reports unsigned lexicographic order, used for sorting solid-kmer
// output (spec.md §5 "ordered by canonical k-mer value").
func Less(a, b Value) bool { return a.Less(b) }

// Model canonicalizes, hashes and extracts minimizers of k-mers of a fixed
// size k, dispatching to the narrowest supported width. It is the Go
// analogue of GATB's Kmer<span>::ModelCanonical, built once per run and
// reused across every sequence (original_source/gatb-core SortingCountAlgorithm.cpp
// constructs exactly one Model per configure()/execute() pair).
type Model struct {
	K     int
	width Width
	seed  uint64
}

// NewModel builds a Model for k-mers of size k. k must be in [1, MaxK64].
func NewModel(k int) (*Model, error) {
	w, err := WidthFor(k)
	if err != nil {
		return nil, err
	}
	return &Model{K: k, width: w, seed: defaultHashSeed}, nil
}

// defaultHashSeed is the fixed wyhash seed used for every Model, so that
// hash(kmer) is reproducible across runs and across thread counts, per
// spec.md §4.1 and the partition-determinism property in spec.md §8.
const defaultHashSeed uint64 = 0x5eed5eed5eed5eed

// Kmer pairs a k-mer's canonical value with its position and the strand
// (false=forward, true=reverse-complement) the canonical form came from.
type Kmer struct {
	Value         Value
	Pos           int
	ReverseStrand bool
}

// Build returns the lazy, finite sequence of canonical k-mers of seq, one
// per window, in sequence order. Windows containing 'N' are skipped, per
// spec.md §4.1 ("k-mers containing N are skipped; consumer sees only
// valid ones"). Build never allocates the full slice: it returns a
// pull-style iterator function, the way spec.md §9 asks lazy sequence
// adapters to be built from simple pull APIs.
func (m *Model) Build(seq []byte) func() (Kmer, bool) {
	k := m.K
	n := len(seq)
	pos := 0

	return func() (Kmer, bool) {
		for pos+k <= n {
			window := seq[pos : pos+k]
			p := pos
			pos++

			var fwd, rc Value
			var ok bool
			switch m.width {
			case Width64:
				var f64 Kmer64
				f64, ok = Encode64(window, k)
				if !ok {
					continue
				}
				fwd = Value{Lo: uint64(f64)}
				rc = Value{Lo: uint64(ReverseComplement64(f64, k))}
			default:
				fwd, ok = Encode128(window, k)
				if !ok {
					continue
				}
				rc = ReverseComplement128(fwd, k)
			}

			if rc.Less(fwd) {
				return Kmer{Value: rc, Pos: p, ReverseStrand: true}, true
			}
			return Kmer{Value: fwd, Pos: p, ReverseStrand: false}, true
		}
		return Kmer{}, false
	}
}

// Canonical canonicalizes an arbitrary (non-canonicalized) k-mer value.
func (m *Model) Canonical(v Value) Value {
	switch m.width {
	case Width64:
		c := Canonical64(Kmer64(v.Lo), m.K)
		return Value{Lo: uint64(c)}
	default:
		return Canonical128(v, m.K)
	}
}

// ReverseComplement computes the reverse complement of v under this
// model's width.
func (m *Model) ReverseComplement(v Value) Value {
	switch m.width {
	case Width64:
		return Value{Lo: uint64(ReverseComplement64(Kmer64(v.Lo), m.K))}
	default:
		return ReverseComplement128(v, m.K)
	}
}

// String decodes v back to its nucleotide string under this model's k.
func (m *Model) String(v Value) string {
	switch m.width {
	case Width64:
		return Kmer64(v.Lo).String64(m.K)
	default:
		return v.String128(m.K)
	}
}

// Hash computes a fast, deterministic 64-bit mix of a k-mer value,
// required by spec.md §4.1 to be reproducible for partitioning. It uses
// wyhash (github.com/zeebo/wyhash), the same fast-hash dependency the
// retrieval pack's k-mer sketching tools rely on.
func (m *Model) Hash(v Value) uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], v.Hi)
	binary.LittleEndian.PutUint64(buf[8:16], v.Lo)
	return wyhash.Hash(buf[:], m.seed)
}

// HashValue is a package-level convenience for hashing a Value without a
// Model, with a caller-supplied seed, used by membership's Bloom probes.
func HashValue(v Value, seed uint64) uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], v.Hi)
	binary.LittleEndian.PutUint64(buf[8:16], v.Lo)
	return wyhash.Hash(buf[:], seed)
}

// Minimizer returns the smallest m-mer among the 2*(k-m+1) m-mers of km
// and its reverse complement, ties broken by position (lowest position
// wins), per spec.md §4.1.
func (m *Model) Minimizer(km Value, mLen int) (uint32, error) {
	if mLen <= 0 || mLen > m.K || mLen > 16 {
		return 0, fmt.Errorf("kmer: invalid minimizer length %d for k=%d", mLen, m.K)
	}
	s := []byte(m.String(km))
	rc := []byte(m.String(m.ReverseComplement(km)))

	best := ^uint32(0)
	scan := func(seq []byte) {
		windows := len(seq) - mLen + 1
		for i := 0; i < windows; i++ {
			var v uint32
			for j := 0; j < mLen; j++ {
				code, ok := EncodeBase(seq[i+j])
				if !ok {
					v = ^uint32(0)
					break
				}
				v = (v << 2) | uint32(code)
			}
			if v < best {
				best = v
			}
		}
	}
	scan(s)
	scan(rc)
	return best, nil
}
