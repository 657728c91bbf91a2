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

package membership

import "github.com/gatb-go/gatbcore/kmer"

// Container is the membership contract of spec.md §4.5: deterministic,
// side-effect-free, with false negatives forbidden for any k-mer that
// was actually inserted at construction time.
type Container interface {
	Contains(v kmer.Value) bool
}

// Simple is the Bloom+cFP membership container: contains(k) =
// bloom.contains(k) ∧ ¬cfp.contains(k) (spec.md §4.5). It stores
// pre-built sets only; BuildCFP performs the construction.
type Simple struct {
	bloom *Bloom
	cfp   *CFP
}

// NewSimple wraps a pre-built Bloom filter and critical-FP set.
func NewSimple(bloomFilter *Bloom, cfp *CFP) *Simple {
	return &Simple{bloom: bloomFilter, cfp: cfp}
}

// Contains implements Container.
func (s *Simple) Contains(v kmer.Value) bool {
	return s.bloom.Contains(v) && !s.cfp.Contains(v)
}

// Bloom returns the container's underlying Bloom filter, for callers
// that persist a Simple to storage.
func (s *Simple) Bloom() *Bloom { return s.bloom }

// CFP returns the container's underlying critical-FP set, for callers
// that persist a Simple to storage.
func (s *Simple) CFP() *CFP { return s.cfp }

// BuildSimple sizes a Bloom filter over solids, computes its
// critical-FP set against candidates, and wraps both into a Simple
// container — the full, non-cascading construction of spec.md §4.5.
func BuildSimple(solids []kmer.Value, candidates []kmer.Value, isSolid func(kmer.Value) bool, fpRate float64) *Simple {
	b := BuildBloom(solids, fpRate)
	cfp := BuildCFP(candidates, b, isSolid)
	return NewSimple(b, cfp)
}
