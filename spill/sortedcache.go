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

package spill

import (
	"sort"
	"sync"

	"github.com/gatb-go/gatbcore/kmer"
	"github.com/twotwotwo/sorts"
)

// valueSlice adapts []kmer.Value to sort.Interface so it can be sorted
// with twotwotwo/sorts.Quicksort, the same parallel-sort dependency
// LexicMap uses to sort k-mer/location pairs before emission
// (lexicmap/cmd/gen-masks.go: sorts.Quicksort(Kmer2Locs(_kmers2))).
type valueSlice []kmer.Value

func (s valueSlice) Len() int           { return len(s) }
func (s valueSlice) Less(i, j int) bool { return s[i].Less(s[j]) }
func (s valueSlice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// sortValues sorts vs in place by canonical k-mer order using a parallel
// quicksort for large slices and a plain sort for small ones (parallel
// sort overhead is not worth it below a few thousand elements).
func sortValues(vs []kmer.Value) {
	if len(vs) < 4096 {
		sort.Sort(valueSlice(vs))
		return
	}
	sorts.Quicksort(valueSlice(vs))
}

// localThreshold/sharedThreshold bound, in records, the per-worker and
// per-partition shared buffers of the sorted cache variant, per spec.md
// §4.2 paragraph 2.
const (
	localThreshold  = 1 << 14
	sharedThreshold = 1 << 18
)

// SortedCache is the sorted-cache variant of the spill store: a shared
// buffer per partition plus a per-worker buffer. On per-worker overflow a
// locked merge sorts the worker's local buffer and merges it into the
// shared buffer, which therefore stays sorted; on shared overflow, the
// shared buffer is emitted as is to the underlying Store. Duplicates are preserved throughout,
// per spec.md §4.2.
type SortedCache struct {
	base *Store

	mu     []sync.Mutex
	shared [][]kmer.Value
	local  [][][]kmer.Value // [partition][worker]
}

// NewSortedCache wraps base with nWorkers per-partition local buffers.
func NewSortedCache(base *Store, nWorkers int) *SortedCache {
	n := base.NumPartitions()
	sc := &SortedCache{
		base:   base,
		mu:     make([]sync.Mutex, n),
		shared: make([][]kmer.Value, n),
		local:  make([][][]kmer.Value, n),
	}
	for p := 0; p < n; p++ {
		sc.local[p] = make([][]kmer.Value, nWorkers)
	}
	return sc
}

// Insert appends v to worker's local buffer for partitionID, merging into
// the shared buffer (and, on shared overflow, the underlying Store) as
// thresholds are crossed.
func (sc *SortedCache) Insert(partitionID, worker int, v kmer.Value) error {
	sc.local[partitionID][worker] = append(sc.local[partitionID][worker], v)
	if len(sc.local[partitionID][worker]) < localThreshold {
		return nil
	}
	return sc.mergeLocal(partitionID, worker)
}

func (sc *SortedCache) mergeLocal(partitionID, worker int) error {
	local := sc.local[partitionID][worker]
	sc.local[partitionID][worker] = nil
	if len(local) == 0 {
		return nil
	}
	sortValues(local)

	sc.mu[partitionID].Lock()
	defer sc.mu[partitionID].Unlock()

	sc.shared[partitionID] = mergeSorted(local, sc.shared[partitionID])
	if len(sc.shared[partitionID]) < sharedThreshold {
		return nil
	}
	return sc.emitSharedLocked(partitionID)
}

// emitSharedLocked writes the shared buffer (already sorted, since
// mergeSorted keeps it so) to the underlying Store without re-sorting,
// then clears it.
func (sc *SortedCache) emitSharedLocked(partitionID int) error {
	buf := sc.shared[partitionID]
	sc.shared[partitionID] = nil
	if len(buf) == 0 {
		return nil
	}
	return sc.base.InsertBatch(partitionID, buf)
}

// Flush drains every worker's local buffer and the shared buffer for
// every partition down to the underlying Store, then flushes the Store.
func (sc *SortedCache) Flush() error {
	for p := 0; p < sc.base.NumPartitions(); p++ {
		for w := range sc.local[p] {
			if err := sc.mergeLocal(p, w); err != nil {
				return err
			}
		}
		sc.mu[p].Lock()
		err := sc.emitSharedLocked(p)
		sc.mu[p].Unlock()
		if err != nil {
			return err
		}
	}
	return sc.base.FlushAll()
}

// mergeSorted merges two already-sorted slices, preserving duplicates.
func mergeSorted(a, b []kmer.Value) []kmer.Value {
	if len(b) == 0 {
		return a
	}
	out := make([]kmer.Value, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].Less(b[j]) {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}
