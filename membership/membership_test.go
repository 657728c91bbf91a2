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

import (
	"testing"

	"github.com/gatb-go/gatbcore/kmer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func valuesFromStrings(t *testing.T, k int, seqs ...string) []kmer.Value {
	t.Helper()
	model, err := kmer.NewModel(k)
	require.NoError(t, err)
	seen := make(map[kmer.Value]bool)
	var out []kmer.Value
	for _, s := range seqs {
		next := model.Build([]byte(s))
		for {
			km, ok := next()
			if !ok {
				break
			}
			if !seen[km.Value] {
				seen[km.Value] = true
				out = append(out, km.Value)
			}
		}
	}
	return out
}

// disjointSample builds a sample of k-mer values guaranteed disjoint from
// exclude, by enumerating lexical strings over {A,C,G,T} of length k and
// skipping anything canonicalizing into exclude.
func disjointSample(t *testing.T, k, n int, exclude map[kmer.Value]bool) []kmer.Value {
	t.Helper()
	model, err := kmer.NewModel(k)
	require.NoError(t, err)
	bases := []byte{'A', 'C', 'G', 'T'}
	var out []kmer.Value
	buf := make([]byte, k)
	var rec func(pos int)
	rec = func(pos int) {
		if len(out) >= n {
			return
		}
		if pos == k {
			next := model.Build(append([]byte{}, buf...))
			km, ok := next()
			if ok && !exclude[km.Value] {
				out = append(out, km.Value)
			}
			return
		}
		for _, b := range bases {
			buf[pos] = b
			rec(pos + 1)
			if len(out) >= n {
				return
			}
		}
	}
	rec(0)
	return out
}

func toSet(vs []kmer.Value) map[kmer.Value]bool {
	m := make(map[kmer.Value]bool, len(vs))
	for _, v := range vs {
		m[v] = true
	}
	return m
}

func TestBloomNoFalseNegatives(t *testing.T) {
	items := valuesFromStrings(t, 8, "ACGTACGTACGTACGT", "TTTTGGGGCCCCAAAA", "GATTACAGATTACAGG")
	b := BuildBloom(items, 0.01)
	for _, v := range items {
		assert.True(t, b.Contains(v))
	}
}

func TestBuildCFPNoFalseNegativesForSolids(t *testing.T) {
	solids := valuesFromStrings(t, 6, "ACGTACGTACGT", "GATTACAGATCG")
	solidSet := toSet(solids)
	isSolid := func(v kmer.Value) bool { return solidSet[v] }

	candidates := disjointSample(t, 6, 500, solidSet)
	candidates = append(candidates, solids...)

	simple := BuildSimple(solids, candidates, isSolid, 0.01)
	for _, v := range solids {
		assert.True(t, simple.Contains(v), "solid member must never be a false negative")
	}
}

// Scenario 6 of spec.md §8: a Bloom filter sized for a 1% false positive
// rate on the simple variant; the cascading variant built on the same
// solid set must report zero false negatives on any member and at most
// the configured cumulative rate on non-members sampled from a disjoint
// random set.
func TestCascadingZeroFalseNegativesBoundedFalsePositives(t *testing.T) {
	solids := valuesFromStrings(t, 10,
		"ACGTACGTACGTACGTACGT",
		"GATTACAGATTACAGATTAC",
		"TTGGCCAATTGGCCAATTGG",
		"CCGGAATTCCGGAATTCCGG",
	)
	solidSet := toSet(solids)
	isSolid := func(v kmer.Value) bool { return solidSet[v] }

	nonMembers := disjointSample(t, 10, 2000, solidSet)
	candidates := append(append([]kmer.Value{}, solids...), nonMembers...)

	casc := BuildCascading(solids, candidates, isSolid, 0.01)

	for _, v := range solids {
		assert.True(t, casc.Contains(v), "cascading container must never false-negative a solid member")
	}

	var falsePositives int
	for _, v := range nonMembers {
		if casc.Contains(v) {
			falsePositives++
		}
	}
	rate := float64(falsePositives) / float64(len(nonMembers))
	assert.LessOrEqual(t, rate, 0.01, "cumulative false positive rate should stay within the configured bound")
}

func TestSimpleAndCascadingAgreeOnMembers(t *testing.T) {
	solids := valuesFromStrings(t, 7, "ACGTACGTACGTACG", "TTGGCCAATTGGCCA")
	solidSet := toSet(solids)
	isSolid := func(v kmer.Value) bool { return solidSet[v] }
	candidates := disjointSample(t, 7, 300, solidSet)
	candidates = append(candidates, solids...)

	simple := BuildSimple(solids, candidates, isSolid, 0.01)
	casc := BuildCascading(solids, candidates, isSolid, 0.01)

	for _, v := range solids {
		assert.True(t, simple.Contains(v))
		assert.True(t, casc.Contains(v))
	}
}

func TestCFPLenAndContains(t *testing.T) {
	c := NewCFP()
	assert.Equal(t, 0, c.Len())
	v := kmer.Value{Lo: 42}
	assert.False(t, c.Contains(v))
	c.Add(v)
	assert.True(t, c.Contains(v))
	assert.Equal(t, 1, c.Len())
}
