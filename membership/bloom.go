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

// Package membership implements the Bloom+cFP membership container of
// specification §4.5, in both its simple and cascading forms, grounded on
// original_source/gatb-core/src/gatb/kmer/impl/DebloomAlgorithm.hpp and
// the BloomBuilder double-hashing construction it drives.
package membership

import (
	"math"

	"github.com/gatb-go/gatbcore/kmer"
)

// DefaultFPRate is the target false positive rate used when a caller
// does not size a filter explicitly.
const DefaultFPRate = 0.01

// Bloom is a bit-set Bloom filter probed with k independent hash
// functions built by double hashing two wyhash seeds, the same
// construction GATB's BloomBuilder uses (h_i = h1 + i*h2 mod m).
type Bloom struct {
	bits     []uint64
	nbBits   uint64
	nbHashes int
	seed1    uint64
	seed2    uint64
}

// NewBloom sizes a filter for n expected items at the given target false
// positive rate using the standard m = -n*ln(p)/(ln2)^2, k = m/n*ln2
// formulas. n=0 and out-of-range fpRate fall back to sane minimums.
func NewBloom(n uint64, fpRate float64) *Bloom {
	if n == 0 {
		n = 1
	}
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = DefaultFPRate
	}
	m := uint64(math.Ceil(-float64(n) * math.Log(fpRate) / (math.Ln2 * math.Ln2)))
	if m < 64 {
		m = 64
	}
	k := int(math.Round(float64(m) / float64(n) * math.Ln2))
	if k < 1 {
		k = 1
	}
	words := (m + 63) / 64
	return &Bloom{
		bits:     make([]uint64, words),
		nbBits:   m,
		nbHashes: k,
		seed1:    0x9e3779b97f4a7c15,
		seed2:    0xc6a4a7935bd1e995,
	}
}

func (b *Bloom) probe(v kmer.Value, i int) uint64 {
	h1 := kmer.HashValue(v, b.seed1)
	h2 := kmer.HashValue(v, b.seed2)
	return (h1 + uint64(i)*h2) % b.nbBits
}

// Insert sets the nbHashes bits v probes to.
func (b *Bloom) Insert(v kmer.Value) {
	for i := 0; i < b.nbHashes; i++ {
		idx := b.probe(v, i)
		b.bits[idx/64] |= 1 << (idx % 64)
	}
}

// Contains reports whether every bit v probes to is set. False positives
// are possible; false negatives never are, for any v previously Inserted.
func (b *Bloom) Contains(v kmer.Value) bool {
	for i := 0; i < b.nbHashes; i++ {
		idx := b.probe(v, i)
		if b.bits[idx/64]&(1<<(idx%64)) == 0 {
			return false
		}
	}
	return true
}

// NbBits returns m, the filter's bit-array size.
func (b *Bloom) NbBits() uint64 { return b.nbBits }

// NbHashes returns k, the number of probes per query.
func (b *Bloom) NbHashes() int { return b.nbHashes }

// Words returns the filter's backing bit-array, one uint64 per word, for
// callers that persist a Bloom to storage rather than query it directly.
func (b *Bloom) Words() []uint64 { return b.bits }

// RestoreBloom rebuilds a Bloom filter from a previously persisted
// bit-array and sizing, probed with the same fixed seeds NewBloom uses
// so Contains agrees with the filter that produced words.
func RestoreBloom(words []uint64, nbBits uint64, nbHashes int) *Bloom {
	return &Bloom{
		bits:     words,
		nbBits:   nbBits,
		nbHashes: nbHashes,
		seed1:    0x9e3779b97f4a7c15,
		seed2:    0xc6a4a7935bd1e995,
	}
}

// BuildBloom inserts every value yielded by items into a freshly sized
// filter.
func BuildBloom(items []kmer.Value, fpRate float64) *Bloom {
	b := NewBloom(uint64(len(items)), fpRate)
	for _, v := range items {
		b.Insert(v)
	}
	return b
}
