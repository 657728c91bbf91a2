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

package graph

import (
	"sort"

	"github.com/gatb-go/gatbcore/kmer"
)

// BCALM-style compaction: starting from each unvisited solid k-mer, greedily
// extend a simple path in both directions as long as the next node has
// exactly one predecessor and the current node has exactly one successor,
// the same no-in-branching/no-out-branching contract SimplePathAvance
// checks on an already-built graph. Grounded on the k-mer extension idiom
// of other_examples/mudesheng-ga__constructcf.go (GetReadBntKmer / extend
// one base at a time), generalized here to work over encoded strings via
// kmer.Model instead of packed uint64 windows, and driven by canonical
// k-mer membership rather than a fixed input read.

func candidateExtensions(frontier string, forward bool, model *kmer.Model, solid map[kmer.Value]uint32) []string {
	var out []string
	for _, b := range "ACGT" {
		var cand string
		if forward {
			cand = frontier[1:] + string(b)
		} else {
			cand = string(b) + frontier[:len(frontier)-1]
		}
		next := model.Build([]byte(cand))
		km, ok := next()
		if !ok {
			continue
		}
		if _, isSolid := solid[km.Value]; isSolid {
			out = append(out, cand)
		}
	}
	return out
}

// BuildGraph compacts the solid k-mer set into unitigs and wires their
// adjacency, the unitig-construction pipeline spec.md §4.6 describes as
// "external" to the graph itself ("Built once, after counting, by an
// external unitig-construction algorithm").
func BuildGraph(k int, solid map[kmer.Value]uint32, model *kmer.Model) (*Graph, error) {
	keys := make([]kmer.Value, 0, len(solid))
	for v := range solid {
		keys = append(keys, v)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	visited := make(map[kmer.Value]bool, len(solid))
	unitigs := NewUnitigs(k)

	for _, start := range keys {
		if visited[start] {
			continue
		}
		seq := model.String(start)
		visited[start] = true

		// extend forward off the rightmost k bases
		frontier := seq
		for {
			cands := candidateExtensions(frontier, true, model, solid)
			if len(cands) != 1 {
				break
			}
			cand := cands[0]
			next := model.Build([]byte(cand))
			km, _ := next()
			if visited[km.Value] {
				break
			}
			back := candidateExtensions(cand, false, model, solid)
			if len(back) != 1 {
				break
			}
			seq += cand[len(cand)-1:]
			frontier = cand
			visited[km.Value] = true
		}

		// extend backward off the leftmost k bases
		frontier = seq[:k]
		for {
			cands := candidateExtensions(frontier, false, model, solid)
			if len(cands) != 1 {
				break
			}
			cand := cands[0]
			next := model.Build([]byte(cand))
			km, _ := next()
			if visited[km.Value] {
				break
			}
			fwd := candidateExtensions(cand, true, model, solid)
			if len(fwd) != 1 {
				break
			}
			seq = cand[:1] + seq
			frontier = cand
			visited[km.Value] = true
		}

		mean := meanAbundanceOf(seq, model, solid)
		if _, err := unitigs.AddUnitig([]byte(seq), mean); err != nil {
			return nil, err
		}
	}

	adj := wireAdjacency(unitigs, k-1)
	return NewGraph(k, unitigs, adj), nil
}

func meanAbundanceOf(seq string, model *kmer.Model, solid map[kmer.Value]uint32) float32 {
	k := model.K
	if len(seq) < k {
		return 0
	}
	var total uint64
	var n int
	next := model.Build([]byte(seq))
	for {
		km, ok := next()
		if !ok {
			break
		}
		total += uint64(solid[km.Value])
		n++
	}
	if n == 0 {
		return 0
	}
	return float32(float64(total) / float64(n))
}

// wireAdjacency builds the Flat adjacency structure by matching each
// unitig's two (k-1)-overlaps — its literal prefix and suffix — against
// every other unitig's literal prefix/suffix and their reverse
// complements. A unitig's End list answers "who continues past my
// End" (matched against my own suffix); its Begin list answers "who
// continues past my Begin" (matched against my own prefix). Each side
// has two ways to match: literally (the neighbor is read Forward, no
// splice-time complementing needed) or via the neighbor's own opposite
// end reverse-complemented (the neighbor must be read Reverse to
// splice in), per Descriptor's "relative strand to read it in" (spec.md
// §4.6; yielded-node strand rule, spec.md §4.6 neighbors(n,dir) doc).
func wireAdjacency(u *Unitigs, overlapLen int) Adjacency {
	type entry struct {
		unitig int
		ext    Extremity
		strand Strand
	}
	forEnd := make(map[string][]entry)   // consulted by u.Last
	forBegin := make(map[string][]entry) // consulted by u.First

	for id := 0; id < u.Len(); id++ {
		seq := u.Sequence(id, Forward)
		if len(seq) < overlapLen {
			continue
		}
		first := seq[:overlapLen]
		last := seq[len(seq)-overlapLen:]
		firstRC := reverseComplementString([]byte(first))
		lastRC := reverseComplementString([]byte(last))

		// a successor whose own prefix matches my suffix is read Forward.
		forEnd[first] = append(forEnd[first], entry{id, Begin, Forward})
		// a successor reached only by reverse-complementing my suffix
		// against its own suffix is read Reverse.
		forEnd[lastRC] = append(forEnd[lastRC], entry{id, End, Reverse})

		// a predecessor whose own suffix matches my prefix is read Forward.
		forBegin[last] = append(forBegin[last], entry{id, End, Forward})
		// a predecessor reached only by reverse-complementing my prefix
		// against its own prefix is read Reverse.
		forBegin[firstRC] = append(forBegin[firstRC], entry{id, Begin, Reverse})
	}

	adj := NewFlat()
	for id := 0; id < u.Len(); id++ {
		seq := u.Sequence(id, Forward)
		if len(seq) < overlapLen {
			adj.Set(id, Begin, nil)
			adj.Set(id, End, nil)
			continue
		}
		last := seq[len(seq)-overlapLen:]
		first := seq[:overlapLen]

		var endNeighbors, beginNeighbors []Descriptor
		for _, e := range forEnd[last] {
			endNeighbors = append(endNeighbors, Descriptor{Unitig: e.unitig, Extremity: e.ext, Strand: e.strand})
		}
		for _, e := range forBegin[first] {
			beginNeighbors = append(beginNeighbors, Descriptor{Unitig: e.unitig, Extremity: e.ext, Strand: e.strand})
		}
		adj.Set(id, End, endNeighbors)
		adj.Set(id, Begin, beginNeighbors)
	}
	return adj
}
