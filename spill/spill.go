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

// Package spill implements the partitioned spill store of specification
// §4.2: N thread-safe append-only bags, one per partition, with a
// bulk-read interface. The on-disk record format follows the
// magic-numbered, fixed-width binary container idiom of
// lexicmap/kv/kv-data.go, simplified to the spill store's needs: raw
// 16-byte k-mer values with no index side-file (the spill store is read
// back exactly once per pass, so a random-access index brings no value).
package spill

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gatb-go/gatbcore/kmer"
	"github.com/pkg/errors"
)

// flushThreshold is the per-partition buffer size (in records) at which a
// writer's buffer is flushed to disk, per spec.md §4.2 ("flushed either
// on size threshold or on flush").
const flushThreshold = 1 << 16

// Store is N on-disk bags of raw k-mer values, one per partition index,
// per spec.md §4.2/§3 ("Spill record: raw kmer value").
type Store struct {
	dir string
	n   int

	mu    []sync.Mutex
	bufs  [][]kmer.Value
	files []*os.File
	size  []uint64 // atomic-accessed via atomic package
}

// Open creates (or reopens) a spill store of n partitions rooted at dir.
func Open(dir string, n int) (*Store, error) {
	if n <= 0 {
		return nil, errors.Errorf("spill: invalid partition count %d", n)
	}
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return nil, errors.Wrapf(err, "spill: creating partition dir %s", dir)
	}
	s := &Store{
		dir:   dir,
		n:     n,
		mu:    make([]sync.Mutex, n),
		bufs:  make([][]kmer.Value, n),
		files: make([]*os.File, n),
		size:  make([]uint64, n),
	}
	for p := 0; p < n; p++ {
		f, err := os.OpenFile(s.partitionPath(p), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o666)
		if err != nil {
			return nil, errors.Wrapf(err, "spill: creating partition file %d", p)
		}
		s.files[p] = f
	}
	return s, nil
}

func (s *Store) partitionPath(p int) string {
	return filepath.Join(s.dir, "partition-"+itoa(p)+".bin")
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// NumPartitions returns N.
func (s *Store) NumPartitions() int { return s.n }

// Insert appends one value into partition_id's thread-local-ish buffer;
// ordering within a partition is not guaranteed, per spec.md §4.2.
func (s *Store) Insert(partitionID int, v kmer.Value) error {
	s.mu[partitionID].Lock()
	defer s.mu[partitionID].Unlock()
	s.bufs[partitionID] = append(s.bufs[partitionID], v)
	if len(s.bufs[partitionID]) >= flushThreshold {
		return s.flushLocked(partitionID)
	}
	return nil
}

// InsertBatch appends many values at once, the batched-write idiom the
// counting pass driver uses so each worker drains its accumulated window
// of k-mers in one lock acquisition.
func (s *Store) InsertBatch(partitionID int, vs []kmer.Value) error {
	if len(vs) == 0 {
		return nil
	}
	s.mu[partitionID].Lock()
	defer s.mu[partitionID].Unlock()
	s.bufs[partitionID] = append(s.bufs[partitionID], vs...)
	if len(s.bufs[partitionID]) >= flushThreshold {
		return s.flushLocked(partitionID)
	}
	return nil
}

// Flush forces partitionID's buffer to disk.
func (s *Store) Flush(partitionID int) error {
	s.mu[partitionID].Lock()
	defer s.mu[partitionID].Unlock()
	return s.flushLocked(partitionID)
}

// FlushAll flushes every partition's buffer, called once per pass after
// the fill phase and before the drain phase.
func (s *Store) FlushAll() error {
	for p := 0; p < s.n; p++ {
		if err := s.Flush(p); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) flushLocked(partitionID int) error {
	buf := s.bufs[partitionID]
	if len(buf) == 0 {
		return nil
	}
	w := bufio.NewWriter(s.files[partitionID])
	var rec [16]byte
	for _, v := range buf {
		binary.LittleEndian.PutUint64(rec[0:8], v.Hi)
		binary.LittleEndian.PutUint64(rec[8:16], v.Lo)
		if _, err := w.Write(rec[:]); err != nil {
			return errors.Wrapf(err, "spill: writing partition %d", partitionID)
		}
	}
	if err := w.Flush(); err != nil {
		return errors.Wrapf(err, "spill: flushing partition %d", partitionID)
	}
	atomic.AddUint64(&s.size[partitionID], uint64(len(buf)))
	s.bufs[partitionID] = buf[:0]
	return nil
}

// Iterate returns a lazy pull iterator over every value previously
// inserted into partitionID, each exactly once, per spec.md §4.2.
// Callers must have drained all writers (FlushAll) before iterating.
func (s *Store) Iterate(partitionID int) (func() (kmer.Value, bool, error), error) {
	f, err := os.Open(s.partitionPath(partitionID))
	if err != nil {
		return nil, errors.Wrapf(err, "spill: opening partition %d for read", partitionID)
	}
	r := bufio.NewReader(f)
	return func() (kmer.Value, bool, error) {
		var rec [16]byte
		_, err := io.ReadFull(r, rec[:])
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			f.Close()
			return kmer.Value{}, false, nil
		}
		if err != nil {
			f.Close()
			return kmer.Value{}, false, errors.Wrapf(err, "spill: reading partition %d", partitionID)
		}
		v := kmer.Value{
			Hi: binary.LittleEndian.Uint64(rec[0:8]),
			Lo: binary.LittleEndian.Uint64(rec[8:16]),
		}
		return v, true, nil
	}, nil
}

// Size returns the exact number of records written to partitionID. It is
// only accurate after all writers have drained (flushed), per spec.md
// §4.2.
func (s *Store) Size(partitionID int) uint64 {
	return atomic.LoadUint64(&s.size[partitionID])
}

// Remove deletes the backing storage directory, per spec.md §4.2.
func (s *Store) Remove() error {
	for _, f := range s.files {
		if f != nil {
			f.Close()
		}
	}
	return errors.Wrapf(os.RemoveAll(s.dir), "spill: removing %s", s.dir)
}

// Reset truncates every partition file and zeroes sizes, used between
// passes (spec.md §4.3: "After each pass, delete the partitions").
func (s *Store) Reset() error {
	for p := 0; p < s.n; p++ {
		if err := s.files[p].Truncate(0); err != nil {
			return errors.Wrapf(err, "spill: truncating partition %d", p)
		}
		if _, err := s.files[p].Seek(0, io.SeekStart); err != nil {
			return errors.Wrapf(err, "spill: seeking partition %d", p)
		}
		atomic.StoreUint64(&s.size[p], 0)
		s.bufs[p] = s.bufs[p][:0]
	}
	return nil
}
