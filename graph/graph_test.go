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
	"path/filepath"
	"testing"

	"github.com/gatb-go/gatbcore/kmer"
	"github.com/gatb-go/gatbcore/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildChain assembles three hand-picked unitigs (k=4, overlap=3) that
// chain A -> B -> D end to end with no branching, and wires their
// adjacency the same way BuildGraph does. The three sequences are
// chosen so their (k-1)-overlaps line up exactly once each, which keeps
// this test's expected adjacency independently hand-checkable rather
// than relying on BuildGraph's own compaction to produce it.
func buildChain(t *testing.T) (*Graph, [3]int) {
	t.Helper()
	u := NewUnitigs(4)
	idA, err := u.AddUnitig([]byte("ACGTAC"), 10)
	require.NoError(t, err)
	idB, err := u.AddUnitig([]byte("TACGAT"), 20)
	require.NoError(t, err)
	idD, err := u.AddUnitig([]byte("GATCCG"), 30)
	require.NoError(t, err)

	adj := wireAdjacency(u, 3)
	return NewGraph(4, u, adj), [3]int{idA, idB, idD}
}

func TestWireAdjacencyChainIsolatedEnds(t *testing.T) {
	g, ids := buildChain(t)
	a, b, d := ids[0], ids[1], ids[2]

	assert.Equal(t, 0, g.degreeRaw(a, Begin), "A's Begin has no predecessor")
	assert.Equal(t, 1, g.degreeRaw(a, End))
	assert.Equal(t, 1, g.degreeRaw(b, Begin))
	assert.Equal(t, 1, g.degreeRaw(b, End))
	assert.Equal(t, 1, g.degreeRaw(d, Begin))
	assert.Equal(t, 0, g.degreeRaw(d, End), "D's End has no successor")
}

// TestWireAdjacencyMatchesOverlap is the unitig round-trip scenario of
// spec.md §8 scenario 5, adapted to a chain whose overlaps are
// independently verifiable by inspection: A's End overlaps B's Begin
// on "TAC", so neighbors(A.End, OUTCOMING) must be exactly B.Begin.
func TestWireAdjacencyMatchesOverlap(t *testing.T) {
	g, ids := buildChain(t)
	a, b := ids[0], ids[1]

	neighbors := g.Adjacency.Neighbors(a, End)
	require.Len(t, neighbors, 1)
	assert.Equal(t, b, neighbors[0].Unitig)
	assert.Equal(t, Begin, neighbors[0].Extremity)
	assert.Equal(t, Forward, neighbors[0].Strand)
}

// TestSymmetricEdgeExists checks spec.md §8's "for every edge (a,b), a
// symmetric edge exists" against the chain's wired adjacency: whenever
// A.End lists B.Begin, B.Begin must list A.End right back, with the
// same strand tag on both sides (a literal overlap mirrors as a
// literal overlap in the other direction).
func TestSymmetricEdgeExists(t *testing.T) {
	g, ids := buildChain(t)
	a, b, d := ids[0], ids[1], ids[2]

	forward := g.Adjacency.Neighbors(a, End)
	require.Len(t, forward, 1)
	require.Equal(t, b, forward[0].Unitig)
	require.Equal(t, Begin, forward[0].Extremity)

	back := g.Adjacency.Neighbors(b, Begin)
	require.Len(t, back, 1)
	assert.Equal(t, a, back[0].Unitig)
	assert.Equal(t, End, back[0].Extremity)
	assert.Equal(t, Forward, back[0].Strand, "a literal overlap is mirrored back with the same strand tag")

	forward2 := g.Adjacency.Neighbors(b, End)
	require.Len(t, forward2, 1)
	require.Equal(t, d, forward2[0].Unitig)
	require.Equal(t, Begin, forward2[0].Extremity)

	back2 := g.Adjacency.Neighbors(d, Begin)
	require.Len(t, back2, 1)
	assert.Equal(t, b, back2[0].Unitig)
	assert.Equal(t, End, back2[0].Extremity)
	assert.Equal(t, Forward, back2[0].Strand)
}

// TestInteriorNonBranchingInvariant checks spec.md §8's "for every
// unitig u and every interior position i of u:
// outdegree(node_at(u,i,FORWARD))==1 ∧ indegree(node_at(u,i+1,FORWARD))==1".
// The graph package never materializes interior per-base nodes — only
// the two extremities carry adjacency — so the invariant holds
// trivially by construction for every position strictly inside a
// unitig; this test instead checks it at the one place that can
// actually fail: the join between two chained unitigs, where B's
// Begin (arrival from A) and B's End (departure to D) both resolve to
// degree 1, exactly the non-branching contract a unitig promises.
func TestInteriorNonBranchingInvariant(t *testing.T) {
	g, ids := buildChain(t)
	b := ids[1]

	bBegin := Node{Unitig: b, Extremity: Begin, Strand: Forward}
	bEnd := Node{Unitig: b, Extremity: End, Strand: Forward}
	assert.Equal(t, 1, g.Outdegree(bEnd))
	assert.Equal(t, 1, g.Indegree(bBegin))
}

func TestSimplePathAvanceAndBothDirections(t *testing.T) {
	g, ids := buildChain(t)
	a, b, d := ids[0], ids[1], ids[2]

	// walking forward from A.End must reach B.Begin as Extended: the
	// in-branching check looks at the arrival extremity itself, B.Begin,
	// which has degree 1 (only A feeds into it), so the path extends.
	res, edge := g.SimplePathAvance(Node{Unitig: a, Extremity: End, Strand: Forward}, Outcoming)
	require.Equal(t, Extended, res)
	assert.Equal(t, b, edge.To.Unitig)
	assert.Equal(t, Begin, edge.To.Extremity)

	// from D's Begin, walking Incoming must reach back towards B.
	res2, edge2 := g.SimplePathAvance(Node{Unitig: d, Extremity: Begin, Strand: Forward}, Incoming)
	require.Equal(t, Extended, res2)
	assert.Equal(t, b, edge2.To.Unitig)

	seq, coverage := g.SimplePathBothDirections(Node{Unitig: b, Extremity: Begin, Strand: Forward})
	assert.Equal(t, "ACGTACGATCCG", seq)

	// mean coverage is the k-mer-count-weighted average of A/B/D's
	// abundances (10,20,30), each contributing 3 k-mers (length 6, k=4).
	assert.InDelta(t, 20.0, coverage, 1e-9)
}

func TestUnitigSequenceIsolation(t *testing.T) {
	g, ids := buildChain(t)
	a, d := ids[0], ids[2]

	seq, beginIsolated, endIsolated := g.UnitigSequence(Node{Unitig: a, Strand: Forward})
	assert.Equal(t, "ACGTAC", seq)
	assert.True(t, beginIsolated)
	assert.False(t, endIsolated)

	_, beginIsolated2, endIsolated2 := g.UnitigSequence(Node{Unitig: d, Strand: Forward})
	assert.False(t, beginIsolated2)
	assert.True(t, endIsolated2)
}

// buildSimplifiableGraph constructs a graph with one well-covered chain
// and a short, low-abundance tip hanging off its first unitig's Begin,
// the minimal shape spec.md §4.6 phase 1 (tip removal) targets. Wired
// with the same wireAdjacency BuildGraph itself uses, so the adjacency
// is the real derivation rather than a hand-specified (and easily
// strand-confused) adjacency literal.
func buildSimplifiableGraph(t *testing.T) (*Graph, [3]int, int) {
	t.Helper()
	u := NewUnitigs(4)
	idA, err := u.AddUnitig([]byte("ACGTAC"), 50)
	require.NoError(t, err)
	idB, err := u.AddUnitig([]byte("TACGAT"), 50)
	require.NoError(t, err)
	idD, err := u.AddUnitig([]byte("GATCCG"), 50)
	require.NoError(t, err)
	// tip: its last 3 bases ("ACG") literally equal A's first 3
	// ("ACG"), so it hangs a dead end off A's Begin; length < 2*k and
	// abundance far below the chain it hangs off of.
	idTip, err := u.AddUnitig([]byte("TTACG"), 2)
	require.NoError(t, err)

	adj := wireAdjacency(u, 3)
	return NewGraph(4, u, adj), [3]int{idA, idB, idD}, idTip
}

func TestSimplifyRemovesLowAbundanceTip(t *testing.T) {
	g, ids, tip := buildSimplifiableGraph(t)
	a, b, d := ids[0], ids[1], ids[2]

	cfg := DefaultSimplifyConfig(4)
	Simplify(g, cfg)

	assert.True(t, g.Unitigs.Deleted(tip), "low-abundance short tip should be removed")
	assert.False(t, g.Unitigs.Deleted(a))
	assert.False(t, g.Unitigs.Deleted(b))
	assert.False(t, g.Unitigs.Deleted(d))
}

func TestSimplifyIsIdempotent(t *testing.T) {
	g, _, _ := buildSimplifiableGraph(t)
	cfg := DefaultSimplifyConfig(4)
	Simplify(g, cfg)

	deletedAfterFirst := make([]bool, g.Unitigs.Len())
	for i := range deletedAfterFirst {
		deletedAfterFirst[i] = g.Unitigs.Deleted(i)
	}

	// spec.md §8: "simplification is idempotent at a fixed parameter
	// set after a bounded number of rounds" -- running again must not
	// change anything further.
	Simplify(g, cfg)
	for i := range deletedAfterFirst {
		assert.Equal(t, deletedAfterFirst[i], g.Unitigs.Deleted(i), "unitig %d changed on second Simplify pass", i)
	}
}

func TestBuildGraphFromSolidKmers(t *testing.T) {
	k := 4
	model, err := kmer.NewModel(k)
	require.NoError(t, err)

	// a single linear sequence with no branches: every k-mer window of
	// AACCGATTGC, canonicalized, is solid. Its 3-mers are all distinct and
	// none is the reverse complement of another, so no window has a second
	// solid neighbor on either strand.
	seq := "AACCGATTGC"
	solid := make(map[kmer.Value]uint32)
	next := model.Build([]byte(seq))
	for {
		km, ok := next()
		if !ok {
			break
		}
		solid[km.Value]++
	}

	g, err := BuildGraph(k, solid, model)
	require.NoError(t, err)

	// a fully non-branching source sequence compacts to exactly one
	// unitig, whose sequence round-trips (forward or its reverse
	// complement) to the original.
	require.Equal(t, 1, g.Unitigs.Len())
	got := g.Unitigs.Sequence(0, Forward)
	gotRC := g.Unitigs.Sequence(0, Reverse)
	assert.True(t, got == seq || gotRC == seq, "unitig sequence %q (or its rc %q) should equal input %q", got, gotRC, seq)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	g, ids, tip := buildSimplifiableGraph(t)
	a, b, d := ids[0], ids[1], ids[2]

	dir := t.TempDir()
	st, err := storage.Open(filepath.Join(dir, "out"))
	require.NoError(t, err)
	grp, err := st.Group("dbgh5")
	require.NoError(t, err)

	wantState := PhaseInit.Set(PhaseConfiguration).Set(PhaseSortingCount)
	require.NoError(t, Save(g, grp, wantState))

	loaded, gotState, err := Load(grp, 4)
	require.NoError(t, err)
	assert.Equal(t, wantState, gotState)
	require.Equal(t, g.Unitigs.Len(), loaded.Unitigs.Len())

	for _, id := range []int{a, b, d, tip} {
		assert.Equal(t, g.Unitigs.Sequence(id, Forward), loaded.Unitigs.Sequence(id, Forward))
		assert.Equal(t, g.Unitigs.MeanAbundance(id), loaded.Unitigs.MeanAbundance(id))
		for _, ext := range [2]Extremity{Begin, End} {
			assert.ElementsMatch(t, g.Adjacency.Neighbors(id, ext), loaded.Adjacency.Neighbors(id, ext))
		}
	}
}

func TestCompressedAdjacencyMatchesFlat(t *testing.T) {
	u := NewUnitigs(4)
	idA, err := u.AddUnitig([]byte("ACGTAC"), 10)
	require.NoError(t, err)
	idB, err := u.AddUnitig([]byte("TACGAT"), 20)
	require.NoError(t, err)

	flat := wireAdjacency(u, 3)
	flatA := flat.Neighbors(idA, End)

	compressed := NewCompressed()
	compressed.Set(idA, End, flatA)
	compressed.Set(idA, Begin, flat.Neighbors(idA, Begin))
	compressed.Set(idB, Begin, flat.Neighbors(idB, Begin))
	compressed.Set(idB, End, flat.Neighbors(idB, End))

	// spec.md §4.6 requires Flat and Compressed to be "functionally
	// indistinguishable": same Degree and the same decoded Neighbors.
	assert.Equal(t, flat.Degree(idA, End), compressed.Degree(idA, End))
	assert.Equal(t, flatA, compressed.Neighbors(idA, End))
	assert.Equal(t, flat.Neighbors(idB, Begin), compressed.Neighbors(idB, Begin))
}
