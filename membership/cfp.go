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

// CFP is an exact critical-false-positive set: the k-mers a Bloom filter
// reports as present that are not actually solid. Grounded on
// DebloomAlgorithm.hpp's Hash16<Type>, GATB's own hand-rolled exact
// open-addressing set used to store debloom output.
type CFP struct {
	set map[kmer.Value]struct{}
}

// NewCFP builds an empty critical-false-positive set.
func NewCFP() *CFP {
	return &CFP{set: make(map[kmer.Value]struct{})}
}

// Add marks v as a critical false positive.
func (c *CFP) Add(v kmer.Value) { c.set[v] = struct{}{} }

// Contains reports whether v was marked, exactly (no false positives or
// negatives).
func (c *CFP) Contains(v kmer.Value) bool {
	_, ok := c.set[v]
	return ok
}

// Len returns the number of critical false positives recorded.
func (c *CFP) Len() int { return len(c.set) }

// Values returns every recorded critical false positive, in no
// particular order, for callers that persist a CFP to storage.
func (c *CFP) Values() []kmer.Value {
	out := make([]kmer.Value, 0, len(c.set))
	for v := range c.set {
		out = append(out, v)
	}
	return out
}

// NewCFPFromSlice builds an exact set from vs, used to materialize F in
// the cascading variant and as a general exact-membership helper.
func NewCFPFromSlice(vs []kmer.Value) *CFP {
	c := NewCFP()
	for _, v := range vs {
		c.Add(v)
	}
	return c
}

// BuildCFP computes the critical-FP set for the simple Bloom+cFP
// variant of spec.md §4.5: "the set of k-mers that the Bloom says are
// present but that do not appear in the solid set among the candidate
// neighbors of solid k-mers." Construction is external to the container:
// candidates is supplied by the caller (typically the graph builder's
// neighbor-extension enumeration over the solid set) and isSolid
// answers exact membership in the solid set.
func BuildCFP(candidates []kmer.Value, bloomFilter *Bloom, isSolid func(kmer.Value) bool) *CFP {
	cfp := NewCFP()
	for _, c := range candidates {
		if bloomFilter.Contains(c) && !isSolid(c) {
			cfp.Add(c)
		}
	}
	return cfp
}
