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
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gatb-go/gatbcore/storage"
)

// SolidStore is the solid-kmer bag of spec.md §4.3 ("emit (kmer, count)
// to the solid-kmer bag"), physically split into one storage.Collection
// per (pass, partition) key. Splitting this way makes the "strictly
// sorted, no duplicates, per partition" property of spec.md §8 hold by
// construction: each collection receives exactly one WriteSorted call,
// with the already sorted, run-length-deduplicated output of one drained
// spill partition.
type SolidStore struct {
	g *storage.Group

	mu    sync.Mutex
	colls map[int]*storage.Collection[storage.Count]
	order []int
}

// NewSolidStore opens a solid-kmer bag rooted at group g.
func NewSolidStore(g *storage.Group) *SolidStore {
	return &SolidStore{g: g, colls: make(map[int]*storage.Collection[storage.Count])}
}

func (s *SolidStore) collectionFor(key int) (*storage.Collection[storage.Count], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.colls[key]; ok {
		return c, nil
	}
	c, err := storage.NewCollection[storage.Count](s.g, fmt.Sprintf("solid-%06d", key), storage.CountCodec{})
	if err != nil {
		return nil, err
	}
	s.colls[key] = c
	s.order = append(s.order, key)
	return c, nil
}

// WriteSorted appends items — already sorted by canonical k-mer and
// deduplicated by the caller — to the collection for the given
// (pass, partition) key.
func (s *SolidStore) WriteSorted(key int, items []storage.Count) error {
	if len(items) == 0 {
		return nil
	}
	c, err := s.collectionFor(key)
	if err != nil {
		return err
	}
	if err := c.InsertBatch(items); err != nil {
		return err
	}
	return c.Flush()
}

// FlushAll forces every partition collection to disk.
func (s *SolidStore) FlushAll() error {
	s.mu.Lock()
	colls := make([]*storage.Collection[storage.Count], 0, len(s.colls))
	for _, c := range s.colls {
		colls = append(colls, c)
	}
	s.mu.Unlock()

	for _, c := range colls {
		if err := c.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// Partitions returns the (pass, partition) keys that received at least
// one solid k-mer, in the order their collections were first created.
func (s *SolidStore) Partitions() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.order))
	copy(out, s.order)
	return out
}

// DiscoverPartitions populates Partitions from the "solid-NNNNNN.bin.gz"
// files already on disk, for a SolidStore opened fresh against a group a
// previous process wrote to -- collectionFor's in-memory s.order only
// tracks collections created by the current process's own writes.
func (s *SolidStore) DiscoverPartitions() error {
	matches, err := filepath.Glob(filepath.Join(s.g.Dir(), "solid-*.bin.gz"))
	if err != nil {
		return err
	}
	keys := make([]int, 0, len(matches))
	for _, m := range matches {
		base := strings.TrimSuffix(filepath.Base(m), ".bin.gz")
		base = strings.TrimPrefix(base, "solid-")
		key, err := strconv.Atoi(base)
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	sort.Ints(keys)

	s.mu.Lock()
	defer s.mu.Unlock()
	known := make(map[int]bool, len(s.order))
	for _, k := range s.order {
		known[k] = true
	}
	for _, key := range keys {
		if known[key] {
			continue
		}
		s.order = append(s.order, key)
		known[key] = true
	}
	return nil
}

// Iterator returns a lazy iterator over every solid k-mer written to the
// given partition key.
func (s *SolidStore) Iterator(key int) (func() (storage.Count, bool, error), error) {
	c, err := s.collectionFor(key)
	if err != nil {
		return nil, err
	}
	return c.Iterator()
}

// TotalCount sums GetNbItems across every partition collection.
func (s *SolidStore) TotalCount() (uint64, error) {
	s.mu.Lock()
	colls := make([]*storage.Collection[storage.Count], 0, len(s.colls))
	for _, c := range s.colls {
		colls = append(colls, c)
	}
	s.mu.Unlock()

	var total uint64
	for _, c := range colls {
		n, err := c.GetNbItems()
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}
