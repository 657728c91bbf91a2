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

package dsk

import (
	"math"
	"math/bits"
)

// LinearCounter is a linear-counting cardinality estimator (Whang,
// Vander-Zanden & Taylor 1990): a bitset of m bins, one bit set per
// distinct hash seen, with cardinality recovered from the fraction of
// bins still unset. Grounded on
// original_source/gatb-core/src/gatb/kmer/impl/SortingCountAlgorithm.cpp's
// EstimateNbDistinctKmers, which uses the same bitset-estimator strategy
// ahead of the real counting passes.
type LinearCounter struct {
	bits []uint64
	m    uint64
}

// NewLinearCounter builds a counter with m bins (rounded up to a multiple
// of 64); m=0 selects a default of 2^20 bins.
func NewLinearCounter(m uint64) *LinearCounter {
	if m == 0 {
		m = 1 << 20
	}
	words := (m + 63) / 64
	return &LinearCounter{bits: make([]uint64, words), m: m}
}

// Add records one observation of hash, mapping it into a bin by modulo.
func (lc *LinearCounter) Add(hash uint64) {
	idx := hash % lc.m
	lc.bits[idx/64] |= 1 << (idx % 64)
}

func (lc *LinearCounter) setBits() uint64 {
	var n uint64
	for _, w := range lc.bits {
		n += uint64(bits.OnesCount64(w))
	}
	return n
}

// EstimateCardinality returns the linear-counting cardinality estimate
// -m*ln(1 - z/m) where z is the number of set bins, saturating at m when
// every bin is set (the estimator is undefined there).
func (lc *LinearCounter) EstimateCardinality() uint64 {
	z := lc.setBits()
	if z == 0 {
		return 0
	}
	if z >= lc.m {
		return lc.m
	}
	est := -float64(lc.m) * math.Log(1-float64(z)/float64(lc.m))
	if est < 0 {
		return 0
	}
	return uint64(est)
}
