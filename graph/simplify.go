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
	"fmt"
	"sort"

	"github.com/gatb-go/gatbcore/dispatch"
	"github.com/gatb-go/gatbcore/histogram"
	"github.com/rdleal/intervalst/interval"
)

// SimplifyConfig carries the thresholds of spec.md §4.6's three
// simplification phases.
type SimplifyConfig struct {
	// TipLengthFactor multiplies k to get the tip-length cutoff (default 2).
	TipLengthFactor int
	// TipAbundanceRatio is the fraction of neighborhood abundance below
	// which a dead-end unitig is considered an erroneous tip.
	TipAbundanceRatio float64
	// BulgeLengthTolerance is the absolute length difference allowed
	// between two parallel branches for them to be considered a bulge.
	BulgeLengthTolerance int
	// BulgeIdentityThreshold is the minimum fraction of matching bases
	// (over the shorter branch's length) required to call two branches
	// a bulge.
	BulgeIdentityThreshold float64
	// ECLengthThreshold is the maximum length of an erroneous-connection
	// candidate.
	ECLengthThreshold int
	// ECAbundanceRatio is the fraction of neighboring abundance below
	// which a short bridging unitig is removed as an EC.
	ECAbundanceRatio float64
	// MaxRounds bounds the number of tip/bulge/EC iterations.
	MaxRounds int

	// Progress receives one Inc per round, per spec.md §9's "progress
	// notification is a separate observer interface". A nil Progress is
	// replaced with dispatch.NoopProgress by Simplify.
	Progress dispatch.Progress
}

func (c SimplifyConfig) progress() dispatch.Progress {
	if c.Progress == nil {
		return dispatch.NoopProgress{}
	}
	return c.Progress
}

// DefaultSimplifyConfig returns the thresholds GATB's own unitig
// simplification defaults to, scaled to k.
func DefaultSimplifyConfig(k int) SimplifyConfig {
	return SimplifyConfig{
		TipLengthFactor:        2,
		TipAbundanceRatio:      0.2,
		BulgeLengthTolerance:   k,
		BulgeIdentityThreshold: 0.9,
		ECLengthThreshold:      3 * k,
		ECAbundanceRatio:       0.1,
		MaxRounds:              10,
	}
}

// Simplify repeatedly runs tip, bulge and EC removal until a round
// produces no change or MaxRounds is reached, per spec.md §4.6.
// Deletion is always soft (Unitigs.SetDeleted), honored by every
// neighborhood query.
func Simplify(g *Graph, cfg SimplifyConfig) {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = 1
	}
	progress := cfg.progress()
	progress.Init(int64(cfg.MaxRounds), "simplifying graph")
	for round := 0; round < cfg.MaxRounds; round++ {
		changed := removeTips(g, cfg)
		changed = removeBulges(g, cfg) || changed
		changed = removeEC(g, cfg) || changed
		progress.Inc(1)
		if !changed {
			break
		}
		progress.SetMessage(fmt.Sprintf("simplifying graph: round %d", round+2))
	}
	progress.Finish()
}

// neighborhoodAbundance averages the mean abundance of u's non-deleted
// neighbors using histogram.MeanAbundanceRatio (the gonum/stat-backed
// mean/stdev helper), the
// same quantity removeTips and removeEC compare a unitig's own abundance
// against.
func neighborhoodAbundance(g *Graph, u int) float64 {
	var abundances []float64
	for _, ext := range [2]Extremity{Begin, End} {
		for _, d := range g.Adjacency.Neighbors(u, ext) {
			if g.Unitigs.Deleted(d.Unitig) {
				continue
			}
			abundances = append(abundances, float64(g.Unitigs.MeanAbundance(d.Unitig)))
		}
	}
	mean, _ := histogram.MeanAbundanceRatio(abundances)
	return mean
}

// removeTips implements spec.md §4.6 phase 1: delete unitigs with one
// dead-end extremity, short total length and low relative abundance.
func removeTips(g *Graph, cfg SimplifyConfig) bool {
	factor := cfg.TipLengthFactor
	if factor <= 0 {
		factor = 2
	}
	maxLen := factor * g.K
	changed := false
	for id := 0; id < g.Unitigs.Len(); id++ {
		if g.Unitigs.Deleted(id) {
			continue
		}
		beginDeg := g.degreeRaw(id, Begin)
		endDeg := g.degreeRaw(id, End)
		if beginDeg != 0 && endDeg != 0 {
			continue
		}
		if g.Unitigs.Length(id) >= maxLen {
			continue
		}
		neighborhood := neighborhoodAbundance(g, id)
		if neighborhood == 0 {
			continue
		}
		if float64(g.Unitigs.MeanAbundance(id)) < cfg.TipAbundanceRatio*neighborhood {
			g.Unitigs.SetDeleted(id, true)
			changed = true
		}
	}
	return changed
}

// bulgeKey identifies the pair of flanking neighbor unitigs a
// non-branching unitig runs between; unitigs sharing a key are parallel
// candidates for the same two branch points, per spec.md §4.6 phase 2.
type bulgeKey struct{ a, b int }

func normalizedBulgeKey(a, b int) bulgeKey {
	if a > b {
		a, b = b, a
	}
	return bulgeKey{a, b}
}

func flankUnitig(g *Graph, id int, ext Extremity) int {
	neighbors := g.Adjacency.Neighbors(id, ext)
	if len(neighbors) != 1 {
		return -1
	}
	return neighbors[0].Unitig
}

func hammingIdentity(a, b string) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	matches := 0
	for i := 0; i < n; i++ {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(n)
}

// removeBulges implements spec.md §4.6 phase 2 over the graph's
// already-compacted unitigs: since BuildGraph only ever produces
// maximal non-branching runs as single unitigs, "parallel simple paths
// between the same two branching nodes" reduces to sibling unitigs that
// share the same pair of flanking neighbors. Candidates are grouped by
// that flanking pair, then matched by length using an interval search
// tree (github.com/rdleal/intervalst, the same dependency LexicMap uses
// for mask-location overlap queries in lexicmap/cmd/gen-masks.go) before
// the more expensive identity check runs.
func removeBulges(g *Graph, cfg SimplifyConfig) bool {
	groups := make(map[bulgeKey][]int)
	for id := 0; id < g.Unitigs.Len(); id++ {
		if g.Unitigs.Deleted(id) {
			continue
		}
		a := flankUnitig(g, id, Begin)
		b := flankUnitig(g, id, End)
		if a < 0 || b < 0 {
			continue
		}
		key := normalizedBulgeKey(a, b)
		groups[key] = append(groups[key], id)
	}

	tol := cfg.BulgeLengthTolerance
	if tol < 0 {
		tol = 0
	}
	cmpFn := func(x, y int) int { return x - y }
	changed := false

	var keys []bulgeKey
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].a != keys[j].a {
			return keys[i].a < keys[j].a
		}
		return keys[i].b < keys[j].b
	})

	for _, key := range keys {
		members := groups[key]
		if len(members) < 2 {
			continue
		}
		sort.Ints(members)
		tree := interval.NewSearchTree[int, int](cmpFn)
		for _, id := range members {
			if g.Unitigs.Deleted(id) {
				continue
			}
			length := g.Unitigs.Length(id)
			if rival, ok := tree.AnyIntersection(length-tol, length+tol); ok {
				if g.Unitigs.Deleted(rival) {
					tree.Insert(length-tol, length+tol, id)
					continue
				}
				seqA := g.Unitigs.Sequence(id, Forward)
				seqB := g.Unitigs.Sequence(rival, Forward)
				if hammingIdentity(seqA, seqB) >= cfg.BulgeIdentityThreshold {
					loser := lowerAbundanceUnitig(g, id, rival)
					g.Unitigs.SetDeleted(loser, true)
					changed = true
					continue
				}
			}
			tree.Insert(length-tol, length+tol, id)
		}
	}
	return changed
}

// lowerAbundanceUnitig returns the id with lower mean abundance,
// breaking ties on unitig id (larger id loses) per spec.md §4.6's
// determinism requirement.
func lowerAbundanceUnitig(g *Graph, a, b int) int {
	ma, mb := g.Unitigs.MeanAbundance(a), g.Unitigs.MeanAbundance(b)
	if ma < mb {
		return a
	}
	if mb < ma {
		return b
	}
	if a > b {
		return a
	}
	return b
}

// removeEC implements spec.md §4.6 phase 3: a short, low-coverage
// bridge between two otherwise well-covered flanks is deleted.
func removeEC(g *Graph, cfg SimplifyConfig) bool {
	threshold := cfg.ECLengthThreshold
	if threshold <= 0 {
		threshold = 3 * g.K
	}

	var candidates []int
	for id := 0; id < g.Unitigs.Len(); id++ {
		if g.Unitigs.Deleted(id) {
			continue
		}
		if g.degreeRaw(id, Begin) == 0 || g.degreeRaw(id, End) == 0 {
			continue // tips are handled by removeTips, not EC
		}
		if g.Unitigs.Length(id) > threshold {
			continue
		}
		candidates = append(candidates, id)
	}
	sort.Ints(candidates)

	changed := false
	for _, id := range candidates {
		neighborhood := neighborhoodAbundance(g, id)
		if neighborhood == 0 {
			continue
		}
		if float64(g.Unitigs.MeanAbundance(id)) < cfg.ECAbundanceRatio*neighborhood {
			g.Unitigs.SetDeleted(id, true)
			changed = true
		}
	}
	return changed
}
