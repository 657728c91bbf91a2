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

// Node is a value-type view over a unitig extremity: (unitig id,
// extremity, strand). Equality ignores strand, per spec.md §3.
type Node struct {
	Unitig    int
	Extremity Extremity
	Strand    Strand
}

// Equal compares unitig and extremity only, per the data model's
// equality rule for Node.
func (n Node) Equal(o Node) bool {
	return n.Unitig == o.Unitig && n.Extremity == o.Extremity
}

// Reversed returns n with its strand flipped.
func (n Node) Reversed() Node {
	return Node{Unitig: n.Unitig, Extremity: n.Extremity, Strand: n.Strand.Opposite()}
}

// Direction is the traversal direction of an edge or query, relative to
// a node's strand.
type Direction uint8

const (
	Outcoming Direction = iota
	Incoming
)

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == Outcoming {
		return Incoming
	}
	return Outcoming
}

// Edge is a value-type transition between two Nodes, implied by
// adjacency plus strand arithmetic (spec.md §3).
type Edge struct {
	From      Node
	To        Node
	Direction Direction
}

// Graph is the explicit unitig de Bruijn graph: unitig storage plus
// its adjacency structure, queried read-only after construction
// (spec.md §5 — safe for concurrent readers; simplification must not
// interleave with queries).
type Graph struct {
	K         int
	Unitigs   *Unitigs
	Adjacency Adjacency
}

// NewGraph wraps a unitig store and an adjacency structure (Flat or
// Compressed — spec.md §4.6 requires both to behave identically).
func NewGraph(k int, unitigs *Unitigs, adj Adjacency) *Graph {
	return &Graph{K: k, Unitigs: unitigs, Adjacency: adj}
}

// extremityForDirection returns the physical extremity whose adjacency
// list must be consulted for n. Extremity is always physical (fixed by
// the unitig's own forward coordinate system, never strand-relative —
// see Descriptor's doc), and each extremity's list already serves both
// roles: it is simultaneously "what you reach leaving this end" and
// "what reaches you arriving at this end" (wireAdjacency builds this
// duality in). So neither n's strand nor dir changes which list is
// consulted; both parameters are kept for API symmetry with
// spec.md §4.6's degree(n, dir) signature, and dir remains meaningful
// bookkeeping for callers about which way a walk is proceeding.
func extremityForDirection(n Node, _ Direction) Extremity {
	return n.Extremity
}

// degreeRaw counts non-deleted neighbors at (unitig, extremity).
func (g *Graph) degreeRaw(unitig int, ext Extremity) int {
	if g.Unitigs.Deleted(unitig) {
		return 0
	}
	n := 0
	for _, d := range g.Adjacency.Neighbors(unitig, ext) {
		if !g.Unitigs.Deleted(d.Unitig) {
			n++
		}
	}
	return n
}

// Degree returns the number of live neighbors of n in direction dir,
// per spec.md §4.6 ("deleted neighbors are excluded").
func (g *Graph) Degree(n Node, dir Direction) int {
	return g.degreeRaw(n.Unitig, extremityForDirection(n, dir))
}

// Indegree is Degree(n, Incoming).
func (g *Graph) Indegree(n Node) int { return g.Degree(n, Incoming) }

// Outdegree is Degree(n, Outcoming).
func (g *Graph) Outdegree(n Node) int { return g.Degree(n, Outcoming) }

// Neighbors returns a lazy pull sequence of live Nodes reachable from n
// in direction dir. Each yielded node's strand is chosen so that its
// (k-1) overlap with n is end-to-begin in the chosen orientation: a
// descriptor's own Strand field already encodes that relative
// orientation, per how BuildGraph wires adjacency in builder.go.
func (g *Graph) Neighbors(n Node, dir Direction) func() (Node, bool) {
	ext := extremityForDirection(n, dir)
	descs := g.Adjacency.Neighbors(n.Unitig, ext)
	i := 0
	return func() (Node, bool) {
		for i < len(descs) {
			d := descs[i]
			i++
			if g.Unitigs.Deleted(d.Unitig) {
				continue
			}
			return Node{Unitig: d.Unitig, Extremity: d.Extremity, Strand: d.Strand}, true
		}
		return Node{}, false
	}
}

// AllNeighbors drains Neighbors into a slice, a convenience for callers
// that do not need the lazy form.
func (g *Graph) AllNeighbors(n Node, dir Direction) []Node {
	var out []Node
	next := g.Neighbors(n, dir)
	for {
		nb, ok := next()
		if !ok {
			break
		}
		out = append(out, nb)
	}
	return out
}

// PathResult discriminates the outcome of simplePathAvance, per
// spec.md §4.6.
type PathResult int

const (
	Extended PathResult = iota
	DeadEnd
	OutBranching
	InBranchingAhead
)

func (r PathResult) String() string {
	switch r {
	case Extended:
		return "Extended"
	case DeadEnd:
		return "DeadEnd"
	case OutBranching:
		return "OutBranching"
	case InBranchingAhead:
		return "InBranchingAhead"
	default:
		return "Unknown"
	}
}

// SimplePathAvance attempts to advance one step from n in direction dir.
// A unitig is a maximal path with no in-branching and no out-branching
// at each interior node (spec.md §4.6); this is the single-step
// primitive the builder and the simplification passes both walk with.
func (g *Graph) SimplePathAvance(n Node, dir Direction) (PathResult, Edge) {
	outdeg := g.Degree(n, dir)
	if outdeg == 0 {
		return DeadEnd, Edge{}
	}
	if outdeg > 1 {
		return OutBranching, Edge{}
	}
	next := g.Neighbors(n, dir)
	to, _ := next()
	// to.Extremity is already the physical extremity we arrive at (a
	// Descriptor names "which end of the neighbor overlaps"), so the
	// in-branching count is its raw degree directly — no direction-to-
	// extremity resolution needed, since that resolution is only for
	// picking an extremity relative to a node's own strand, not for a
	// node we've already landed on.
	if g.degreeRaw(to.Unitig, to.Extremity) > 1 {
		return InBranchingAhead, Edge{From: n, To: to, Direction: dir}
	}
	return Extended, Edge{From: n, To: to, Direction: dir}
}

// UnitigSequence returns n's underlying unitig sequence,
// reverse-complemented iff n.Strand==Reverse, and whether each of its
// two ends is isolated (degree 0), per spec.md §4.6.
func (g *Graph) UnitigSequence(n Node) (seq string, beginIsolated, endIsolated bool) {
	seq = g.Unitigs.Sequence(n.Unitig, n.Strand)
	beginIsolated = g.degreeRaw(n.Unitig, Begin) == 0
	endIsolated = g.degreeRaw(n.Unitig, End) == 0
	return seq, beginIsolated, endIsolated
}

// SimplePathBothDirections concatenates the unitig containing n with
// every unitig reachable by simple-path traversal on both sides,
// returning the full sequence and the mean coverage weighted by k-mer
// count, per spec.md §4.6.
func (g *Graph) SimplePathBothDirections(n Node) (sequence string, meanCoverage float64) {
	visited := map[int]bool{n.Unitig: true}
	mid := Node{Unitig: n.Unitig, Extremity: Begin, Strand: n.Strand}
	seq := g.Unitigs.Sequence(n.Unitig, n.Strand)
	totalKmers := float64(g.Unitigs.NbKmers(n.Unitig))
	weighted := totalKmers * float64(g.Unitigs.MeanAbundance(n.Unitig))

	// walk forward from the End of n's unitig
	cur := Node{Unitig: n.Unitig, Extremity: End, Strand: n.Strand}
	for {
		res, edge := g.SimplePathAvance(cur, Outcoming)
		if res != Extended || visited[edge.To.Unitig] {
			break
		}
		visited[edge.To.Unitig] = true
		nextSeq := g.Unitigs.Sequence(edge.To.Unitig, edge.To.Strand)
		overlap := g.K - 1
		if overlap < len(nextSeq) {
			seq += nextSeq[overlap:]
		}
		nk := float64(g.Unitigs.NbKmers(edge.To.Unitig))
		totalKmers += nk
		weighted += nk * float64(g.Unitigs.MeanAbundance(edge.To.Unitig))
		cur = Node{Unitig: edge.To.Unitig, Extremity: edge.To.Extremity.Opposite(), Strand: edge.To.Strand}
	}

	// walk backward from the Begin of n's unitig
	cur = mid
	var prefix string
	for {
		res, edge := g.SimplePathAvance(cur, Incoming)
		if res != Extended || visited[edge.To.Unitig] {
			break
		}
		visited[edge.To.Unitig] = true
		nextSeq := g.Unitigs.Sequence(edge.To.Unitig, edge.To.Strand)
		overlap := g.K - 1
		if overlap < len(nextSeq) {
			prefix = nextSeq[:len(nextSeq)-overlap] + prefix
		}
		nk := float64(g.Unitigs.NbKmers(edge.To.Unitig))
		totalKmers += nk
		weighted += nk * float64(g.Unitigs.MeanAbundance(edge.To.Unitig))
		cur = Node{Unitig: edge.To.Unitig, Extremity: edge.To.Extremity.Opposite(), Strand: edge.To.Strand}
	}

	sequence = prefix + seq
	if totalKmers > 0 {
		meanCoverage = weighted / totalKmers
	}
	return sequence, meanCoverage
}
