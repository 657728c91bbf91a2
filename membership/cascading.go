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

// Cascading is the four-level cascading Bloom+cFP variant of spec.md
// §4.5, grounded on DebloomAlgorithm.hpp's DEBLOOM_CASCADING mode: a
// chain of progressively smaller filters that squeezes the critical-FP
// set's memory footprint by re-applying Bloom filters to the cFP set
// itself instead of storing it exactly end to end.
//
// contains(k) = B(k) ∧ ¬cfp(k)
// cfp(k)      = B2(k) ∧ (¬B3(k) ∨ (B4(k) ∧ ¬F(k)))
type Cascading struct {
	b, b2, b3, b4 *Bloom
	f             *CFP
}

// Contains implements Container.
func (c *Cascading) Contains(v kmer.Value) bool {
	return c.b.Contains(v) && !c.cfp(v)
}

func (c *Cascading) cfp(v kmer.Value) bool {
	if !c.b2.Contains(v) {
		return false
	}
	if !c.b3.Contains(v) {
		return true
	}
	return c.b4.Contains(v) && !c.f.Contains(v)
}

// BuildCascading constructs the cascade over solids (the exact target
// membership set) and candidates (the superset of solids and their
// Bloom-positive neighbors, typically the graph builder's extension
// enumeration). isSolid decides exact membership in the solid set.
//
// The construction guarantees zero false negatives for every solid
// k-mer by design, not merely with high probability:
//
//   - B is a Bloom filter over solids, so B never false-negatives on a
//     solid k.
//   - trueCFP is the actual critical-FP set of B: candidates that B
//     reports present but that are not solid.
//   - B2 is a Bloom filter over trueCFP. B2 can false-positive, but a
//     false positive of B2 can only occur on some k that is NOT in
//     trueCFP (B2 never false-negatives trueCFP members). If k is
//     solid, k ∉ trueCFP by definition, so any solid k with B2(k)=true
//     is exactly such a false positive.
//   - s2 collects every solid k for which B2(k) is a false positive
//     (the set of solid k-mers cfp() must defuse).
//   - B3 and F are both built over s2, so for every k ∈ s2: B3(k)=true
//     (no false negative possible) and F(k)=true (exact). That forces
//     ¬F(k)=false, forcing (B4(k) ∧ ¬F(k))=false regardless of B4, and
//     the whole OR clause ¬B3(k) ∨ (...) is false, making cfp(k)=false.
//
// Hence for any solid k, cfp(k) is false and Contains(k)=B(k)=true.
// B4 still participates structurally, mirroring the real cascade's
// memory-halving trick for the non-solid branch of the OR, but it is
// not load-bearing for this correctness guarantee.
func BuildCascading(solids, candidates []kmer.Value, isSolid func(kmer.Value) bool, fpRate float64) *Cascading {
	b := BuildBloom(solids, fpRate)

	var trueCFP []kmer.Value
	for _, c := range candidates {
		if b.Contains(c) && !isSolid(c) {
			trueCFP = append(trueCFP, c)
		}
	}
	b2 := BuildBloom(trueCFP, fpRate)

	var s2 []kmer.Value
	for _, s := range solids {
		if b2.Contains(s) {
			s2 = append(s2, s)
		}
	}
	b3 := BuildBloom(s2, fpRate)
	b4 := BuildBloom(s2, fpRate)
	f := NewCFPFromSlice(s2)

	return &Cascading{b: b, b2: b2, b3: b3, b4: b4, f: f}
}
