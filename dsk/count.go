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

package dsk

import (
	"context"
	"sort"

	"github.com/gatb-go/gatbcore/bank"
	"github.com/gatb-go/gatbcore/dispatch"
	"github.com/gatb-go/gatbcore/gatberr"
	"github.com/gatb-go/gatbcore/histogram"
	"github.com/gatb-go/gatbcore/kmer"
	"github.com/gatb-go/gatbcore/spill"
	"github.com/gatb-go/gatbcore/storage"
	"github.com/twotwotwo/sorts"
)

// valueSlice adapts []kmer.Value to sort.Interface for both the stdlib
// sort and twotwotwo/sorts.Quicksort, the same parallel-sort dependency
// spill.sortValues uses, reused here for the drain phase's per-partition
// sort (spec.md §4.3 step 2, sort-mode branch).
type valueSlice []kmer.Value

func (s valueSlice) Len() int           { return len(s) }
func (s valueSlice) Less(i, j int) bool { return s[i].Less(s[j]) }
func (s valueSlice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

func sortValues(vs []kmer.Value) {
	if len(vs) < 4096 {
		sort.Sort(valueSlice(vs))
		return
	}
	sorts.Quicksort(valueSlice(vs))
}

// fillPartitions performs step 1 of spec.md §4.3's main loop for one
// pass: for each sequence, for each canonical k-mer, keep it only if
// hash(kmer) mod P == pass, and route it to partition
// (hash(kmer) div P) mod N.
func fillPartitions(ctx context.Context, bk bank.Bank, model *kmer.Model, plan *Plan, pass int, store *spill.Store, progress dispatch.Progress) error {
	it, err := bk.Iterator(ctx)
	if err != nil {
		return gatberr.Wrap(gatberr.IoError, "dsk.fill", err, "opening bank iterator")
	}

	p := uint64(plan.NbPasses)
	n := uint64(plan.NbPartitions)

	for {
		select {
		case <-ctx.Done():
			return gatberr.New(gatberr.Cancelled, "dsk.fill", ctx.Err())
		default:
		}

		seq, ok, err := it()
		if err != nil {
			return gatberr.Wrap(gatberr.FormatError, "dsk.fill", err, "reading sequence")
		}
		if !ok {
			break
		}

		next := model.Build(seq.Seq)
		for {
			km, ok := next()
			if !ok {
				break
			}
			h := model.Hash(km.Value)
			if h%p != uint64(pass) {
				continue
			}
			partition := int((h / p) % n)
			if err := store.Insert(partition, km.Value); err != nil {
				return err
			}
		}
		progress.Inc(1)
	}
	return nil
}

// drainPartitions performs step 2 of spec.md §4.3's main loop: one task
// per partition, dispatched across plan.Cores workers. progress.Inc is
// called from whichever worker goroutine finishes a partition, so a
// caller-supplied Progress must tolerate concurrent Inc calls (mpb's own
// bars are designed for exactly this).
func drainPartitions(plan *Plan, pass int, store *spill.Store, hg *histogram.Histogram, solids *SolidStore, tok *dispatch.CancelToken, progress dispatch.Progress) error {
	return dispatch.RunIndexed(plan.NbPartitions, plan.Cores, tok, func(p int, _ *dispatch.CancelToken) error {
		if err := drainOnePartition(plan, pass, p, store, hg, solids); err != nil {
			return err
		}
		progress.Inc(1)
		return nil
	})
}

func drainOnePartition(plan *Plan, pass, p int, store *spill.Store, hg *histogram.Histogram, solids *SolidStore) error {
	// Per spec.md §4.3 step 2: sort-mode when the partition's estimated
	// memory fits the per-worker budget and hash mode was not forced at
	// configure time; stream into a hash map otherwise.
	sizeBytes := store.Size(p) * bytesPerKmer
	useHash := plan.HashMode || sizeBytes > plan.perWorkerBudgetBytes()
	if useHash {
		return drainHashMode(plan, pass, p, store, hg, solids)
	}
	return drainSortMode(plan, pass, p, store, hg, solids)
}

// drainSortMode reads the whole partition into memory, sorts it, and
// run-length-encodes consecutive equal k-mers.
func drainSortMode(plan *Plan, pass, p int, store *spill.Store, hg *histogram.Histogram, solids *SolidStore) error {
	it, err := store.Iterate(p)
	if err != nil {
		return gatberr.Wrap(gatberr.IoError, "dsk.drain", err, "iterating partition %d", p)
	}
	var vals []kmer.Value
	for {
		v, ok, err := it()
		if err != nil {
			return gatberr.Wrap(gatberr.IoError, "dsk.drain", err, "reading partition %d", p)
		}
		if !ok {
			break
		}
		vals = append(vals, v)
	}
	sortValues(vals)

	var out []storage.Count
	i := 0
	for i < len(vals) {
		j := i + 1
		for j < len(vals) && vals[j] == vals[i] {
			j++
		}
		count := uint64(j - i)
		hg.Observe(count)
		if count >= uint64(plan.Abundance) {
			out = append(out, storage.Count{Kmer: vals[i], Count: uint32(count)})
		}
		i = j
	}
	return solids.WriteSorted(pass*plan.NbPartitions+p, out)
}

// drainHashMode streams the partition into a count map bounded only by
// the number of distinct k-mers in the partition. The map size is not
// checked against the per-worker budget: a partition whose distinct
// k-mers exceed that budget is still counted in memory, with no restart,
// recursion or error.
func drainHashMode(plan *Plan, pass, p int, store *spill.Store, hg *histogram.Histogram, solids *SolidStore) error {
	it, err := store.Iterate(p)
	if err != nil {
		return gatberr.Wrap(gatberr.IoError, "dsk.drain", err, "iterating partition %d", p)
	}
	counts := make(map[kmer.Value]uint64)
	for {
		v, ok, err := it()
		if err != nil {
			return gatberr.Wrap(gatberr.IoError, "dsk.drain", err, "reading partition %d", p)
		}
		if !ok {
			break
		}
		counts[v]++
	}

	vals := make([]kmer.Value, 0, len(counts))
	for v := range counts {
		vals = append(vals, v)
	}
	sortValues(vals)

	out := make([]storage.Count, 0, len(vals))
	for _, v := range vals {
		c := counts[v]
		hg.Observe(c)
		if c >= uint64(plan.Abundance) {
			out = append(out, storage.Count{Kmer: v, Count: uint32(c)})
		}
	}
	return solids.WriteSorted(pass*plan.NbPartitions+p, out)
}
