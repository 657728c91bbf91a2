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
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Group is one node of the storage tree (spec.md §6: "dsk", "dbgh5").
// It carries named string properties ("kmer_size", "xml", "state") and
// is the factory for typed Collections underneath it.
type Group struct {
	storage *Storage
	name    string
	dir     string

	propMu sync.Mutex
	props  map[string]string
}

func newGroup(s *Storage, name, dir string) *Group {
	return &Group{storage: s, name: name, dir: dir, props: make(map[string]string)}
}

// Name returns the group's name.
func (g *Group) Name() string { return g.name }

// Dir returns the group's backing directory.
func (g *Group) Dir() string { return g.dir }

func (g *Group) propsPath() string { return filepath.Join(g.dir, "properties.tsv") }

// loadProperties reads the tab-separated key/value property file if it
// exists, the same line format LexicMap's cmd/util.go readKVs helper
// parses for its own key/value list files.
func (g *Group) loadProperties() error {
	f, err := os.Open(g.propsPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "storage: opening properties of group %s", g.name)
	}
	defer f.Close()

	g.propMu.Lock()
	defer g.propMu.Unlock()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, '\t')
		if idx < 0 {
			continue
		}
		g.props[line[:idx]] = line[idx+1:]
	}
	return scanner.Err()
}

// AddProperty sets a named string property on the group and persists it
// immediately, mirroring GATB's
// `(*_storage)("dsk").addProperty("kmer_size", ...)` call in
// SortingCountAlgorithm.cpp.
func (g *Group) AddProperty(key, value string) error {
	g.propMu.Lock()
	defer g.propMu.Unlock()

	g.props[key] = value
	return g.flushPropertiesLocked()
}

// GetProperty returns a named property and whether it was set.
func (g *Group) GetProperty(key string) (string, bool) {
	g.propMu.Lock()
	defer g.propMu.Unlock()
	v, ok := g.props[key]
	return v, ok
}

func (g *Group) flushPropertiesLocked() error {
	f, err := os.Create(g.propsPath())
	if err != nil {
		return errors.Wrapf(err, "storage: writing properties of group %s", g.name)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for k, v := range g.props {
		if _, err := w.WriteString(k + "\t" + v + "\n"); err != nil {
			return errors.Wrapf(err, "storage: writing properties of group %s", g.name)
		}
	}
	return w.Flush()
}
