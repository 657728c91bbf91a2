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

// Package storage implements the abstract storage tree of specification
// §6: a Storage is a tree of Groups, leaves are typed Collections. This
// mirrors the trait composition GATB's Collection/Bag/Iterable/Group
// hierarchy is re-architected into per spec.md §9 ("a small set of
// traits/interfaces ... composed rather than inherited"), backed here by
// plain files on disk rather than HDF5, per spec.md §1's external-storage
// scope note.
package storage

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// Storage owns every typed collection beneath a root directory. Readers
// and writers share collections through Group handles: Group returns the
// same *Group for a given name on every call. Handles are not reference
// counted.
type Storage struct {
	root string
	mu   sync.Mutex
	grps map[string]*Group
}

// Open opens (creating if absent) a Storage rooted at dir.
func Open(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return nil, errors.Wrapf(err, "storage: creating root %s", dir)
	}
	return &Storage{root: dir, grps: make(map[string]*Group)}, nil
}

// Root returns the storage's root directory.
func (s *Storage) Root() string { return s.root }

// Group returns (creating if absent) the named top-level group, e.g.
// "dsk" or "dbgh5" per the storage layout in spec.md §6.
func (s *Storage) Group(name string) (*Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g, ok := s.grps[name]; ok {
		return g, nil
	}
	dir := filepath.Join(s.root, name)
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return nil, errors.Wrapf(err, "storage: creating group %s", name)
	}
	g := newGroup(s, name, dir)
	if err := g.loadProperties(); err != nil {
		return nil, err
	}
	s.grps[name] = g
	return g, nil
}

// Remove deletes the entire storage tree from disk.
func (s *Storage) Remove() error {
	return errors.Wrapf(os.RemoveAll(s.root), "storage: removing %s", s.root)
}
