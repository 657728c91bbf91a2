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

// Package histogram implements the k-mer abundance histogram and
// auto-cutoff heuristic of specification §4.4, grounded on
// original_source/gatb-core/src/gatb/kmer/impl/SortingCountAlgorithm.cpp's
// `_histogram->save()` / `_histogram->compute_threshold()` calls.
package histogram

import (
	"sync/atomic"

	"github.com/gatb-go/gatbcore/storage"
	"gonum.org/v1/gonum/stat"
)

// DefaultHMax is H_MAX, the histogram's saturating upper bound on
// observed abundance, per spec.md §4.4.
const DefaultHMax = 10000

// DefaultCutoff is the fallback abundance threshold used when no local
// minimum is found below H_MAX, per spec.md §4.4.
const DefaultCutoff = 2

// Histogram is h[1..H_MAX], the number of distinct k-mers observed
// exactly c times, updated associatively/commutatively from any thread
// (spec.md §5).
type Histogram struct {
	hmax int
	h    []uint64 // index 0 unused; h[c] for c in [1,hmax]
}

// New builds a histogram with the given H_MAX.
func New(hmax int) *Histogram {
	if hmax <= 0 {
		hmax = DefaultHMax
	}
	return &Histogram{hmax: hmax, h: make([]uint64, hmax+1)}
}

// Observe records one distinct k-mer seen `count` times, incrementing
// h[min(count, H_MAX)] per spec.md §4.3 step 2. Safe for concurrent
// callers: counters are updated atomically so histogram merging needs no
// external lock (spec.md §5: "Histogram updates are associative and
// commutative").
func (hg *Histogram) Observe(count uint64) {
	c := count
	if c > uint64(hg.hmax) {
		c = uint64(hg.hmax)
	}
	if c == 0 {
		return
	}
	atomic.AddUint64(&hg.h[c], 1)
}

// At returns h[c], 0 if c is out of range.
func (hg *Histogram) At(c int) uint64 {
	if c < 1 || c > hg.hmax {
		return 0
	}
	return atomic.LoadUint64(&hg.h[c])
}

// HMax returns H_MAX.
func (hg *Histogram) HMax() int { return hg.hmax }

// TotalOccurrences returns sum over c of c*h[c], the testable property of
// spec.md §8 ("sum over c of c·h[c] == total k-mer occurrences seen").
func (hg *Histogram) TotalOccurrences() uint64 {
	var total uint64
	for c := 1; c <= hg.hmax; c++ {
		total += uint64(c) * hg.At(c)
	}
	return total
}

// Cutoff locates the abundance threshold, per spec.md §4.4: the smallest
// c>=2 such that h[c] < h[c-1] and h[c] <= h[c+1] (the first local
// minimum strictly after the erroneous-k-mer peak at c=1). If no such
// minimum exists below H_MAX, it falls back to defaultCutoff.
func (hg *Histogram) Cutoff(defaultCutoff int) int {
	if defaultCutoff <= 0 {
		defaultCutoff = DefaultCutoff
	}
	for c := 2; c < hg.hmax; c++ {
		hc := hg.At(c)
		if hc < hg.At(c-1) && hc <= hg.At(c+1) {
			return c
		}
	}
	return defaultCutoff
}

// NbSolidsAtCutoff returns the number of distinct k-mers whose count is
// >= cutoff, i.e. sum of h[c] for c in [cutoff, H_MAX].
func (hg *Histogram) NbSolidsAtCutoff(cutoff int) uint64 {
	var total uint64
	for c := cutoff; c <= hg.hmax; c++ {
		total += hg.At(c)
	}
	return total
}

// MeanAbundanceRatio computes mean and stdev of a set of per-unitig
// abundances using gonum/stat, used by graph/simplify.go's
// neighborhoodAbundance for the tip and erroneous-connection
// abundance-ratio checks (SPEC_FULL.md §11). Cutoff does not use it.
func MeanAbundanceRatio(abundances []float64) (mean, stdev float64) {
	if len(abundances) == 0 {
		return 0, 0
	}
	mean = stat.Mean(abundances, nil)
	if len(abundances) < 2 {
		return mean, 0
	}
	stdev = stat.StdDev(abundances, nil)
	return mean, stdev
}

// Save persists the histogram as dsk/histogram (spec.md §6): a
// collection of (count:u32, multiplicity:u64) pairs, in ascending count
// order, following SortingCountAlgorithm.cpp's `_histogram->save()`.
func (hg *Histogram) Save(coll *storage.Collection[storage.HistogramEntry]) error {
	entries := make([]storage.HistogramEntry, 0, hg.hmax)
	for c := 1; c <= hg.hmax; c++ {
		if m := hg.At(c); m > 0 {
			entries = append(entries, storage.HistogramEntry{Count: uint32(c), Multiplicity: m})
		}
	}
	if err := coll.InsertBatch(entries); err != nil {
		return err
	}
	return coll.Flush()
}

// Load reconstructs a Histogram from a previously Saved collection.
func Load(coll *storage.Collection[storage.HistogramEntry], hmax int) (*Histogram, error) {
	hg := New(hmax)
	it, err := coll.Iterator()
	if err != nil {
		return nil, err
	}
	for {
		e, ok, err := it()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if int(e.Count) <= hg.hmax {
			atomic.StoreUint64(&hg.h[e.Count], e.Multiplicity)
		}
	}
	return hg, nil
}
