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

package storage

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/pgzip"
	"github.com/pkg/errors"
)

// Codec encodes/decodes one record of type T to/from a stream. Concrete
// codecs live in codec.go; this keeps Collection itself storage-format
// agnostic, per spec.md §9's advice to compose small traits rather than
// build a deep virtual hierarchy per record type.
type Codec[T any] interface {
	Encode(w io.Writer, v T) error
	Decode(r io.Reader) (T, error)
}

// Bag is the minimal write side of a collection: append-only insertion,
// batched inserts and an explicit flush.
type Bag[T any] interface {
	Insert(v T) error
	InsertBatch(vs []T) error
	Flush() error
}

// Iterable is the minimal read side of a collection: a lazy pull iterator
// plus an exact item count.
type Iterable[T any] interface {
	Iterator() (func() (T, bool, error), error)
	GetNbItems() (uint64, error)
}

// Collection is a typed leaf of the storage tree (spec.md §6), composing
// Bag and Iterable rather than inheriting from a deep hierarchy. It is
// backed by one pgzip-compressed file, the same compression dependency
// LexicMap carries (github.com/klauspost/pgzip) reused here for
// collection persistence instead of search-result compression.
type Collection[T any] struct {
	path  string
	codec Codec[T]

	mu      sync.Mutex
	buf     []T
	flushed bool
	count   uint64
}

// NewCollection returns a handle on the named collection under group g,
// e.g. NewCollection[Count](g, "solid", CountCodec{}). Nothing is written
// to disk until the first flush.
func NewCollection[T any](g *Group, name string, codec Codec[T]) (*Collection[T], error) {
	return &Collection[T]{
		path:  filepath.Join(g.dir, name+".bin.gz"),
		codec: codec,
	}, nil
}

// Insert appends one record, buffering until Flush or InsertBatch size
// pressure forces a write.
func (c *Collection[T]) Insert(v T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf = append(c.buf, v)
	if len(c.buf) >= 4096 {
		return c.flushLocked(false)
	}
	return nil
}

// InsertBatch appends many records at once, the batched-insert idiom
// spec.md §5 asks workers to use ("workers batch-insert").
func (c *Collection[T]) InsertBatch(vs []T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf = append(c.buf, vs...)
	if len(c.buf) >= 4096 {
		return c.flushLocked(false)
	}
	return nil
}

// Flush writes any buffered records to disk and finalizes the file.
func (c *Collection[T]) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked(true)
}

func (c *Collection[T]) flushLocked(final bool) error {
	if len(c.buf) == 0 && c.flushed {
		return nil
	}
	mode := os.O_WRONLY | os.O_CREATE
	if c.flushed {
		mode |= os.O_APPEND
	} else {
		mode |= os.O_TRUNC
	}
	f, err := os.OpenFile(c.path, mode, 0o666)
	if err != nil {
		return errors.Wrapf(err, "storage: opening collection file %s", c.path)
	}
	defer f.Close()

	gw, err := pgzip.NewWriterLevel(f, pgzip.DefaultCompression)
	if err != nil {
		return errors.Wrap(err, "storage: creating pgzip writer")
	}
	w := bufio.NewWriter(gw)
	for _, v := range c.buf {
		if err := c.codec.Encode(w, v); err != nil {
			return errors.Wrapf(err, "storage: encoding record in %s", c.path)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := gw.Close(); err != nil {
		return err
	}
	c.count += uint64(len(c.buf))
	c.buf = c.buf[:0]
	c.flushed = true
	_ = final
	return nil
}

// Iterator implements Iterable by streaming the compressed file.
func (c *Collection[T]) Iterator() (func() (T, bool, error), error) {
	f, err := os.Open(c.path)
	if os.IsNotExist(err) {
		return func() (T, bool, error) { var zero T; return zero, false, nil }, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "storage: opening collection file %s", c.path)
	}
	gr, err := pgzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "storage: opening pgzip stream %s", c.path)
	}
	r := bufio.NewReader(gr)

	return func() (T, bool, error) {
		v, err := c.codec.Decode(r)
		if err == io.EOF {
			gr.Close()
			f.Close()
			var zero T
			return zero, false, nil
		}
		if err != nil {
			gr.Close()
			f.Close()
			var zero T
			return zero, false, errors.Wrapf(err, "storage: decoding record in %s", c.path)
		}
		return v, true, nil
	}, nil
}

// GetNbItems returns the exact number of records inserted through this
// handle, flushed or still buffered. Per spec.md §9 open question, this
// implementation returns an exact count rather than a lower bound:
// c.count plus the buffer length, both tracked precisely.
func (c *Collection[T]) GetNbItems() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count + uint64(len(c.buf)), nil
}

// Path exposes the backing file path, used by tests and by callers that
// need to remove() a collection's storage directly.
func (c *Collection[T]) Path() string { return c.path }
