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

package bank

import (
	"context"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/iafan/cwalk"
	"github.com/pkg/errors"
	"github.com/shenwei356/breader"
	"github.com/shenwei356/natsort"
)

// AlbumBank lists multiple sub-banks (spec.md §6: "an album format lists
// multiple sub-banks") and iterates them in sequence, presenting a single
// flat Bank to the core. This mirrors LexicMap's directory-walk indexing
// mode (-I/--in-dir + -r/--file-regexp in lexicmap/cmd/index.go), built
// here with the same github.com/iafan/cwalk concurrent walker.
type AlbumBank struct {
	subBanks []*FileBank
	files    []string
}

// NewAlbumFromDir discovers every file under dir matching pattern
// (matched as compiled by the caller) using a concurrent directory walk, sorts them with a
// natural-order comparator (github.com/shenwei356/natsort) so repeated
// runs enumerate files identically, and wraps each as its own FileBank.
func NewAlbumFromDir(dir string, pattern *regexp.Regexp, workers int) (*AlbumBank, error) {
	if workers <= 0 {
		workers = 1
	}
	var files []string
	var walkErr error

	cwalk.NumWorkers = workers
	err := cwalk.WalkWithSymlinks(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			walkErr = err
			return err
		}
		if !info.IsDir() && pattern.MatchString(info.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "bank: walking album directory %s", dir)
	}
	if walkErr != nil {
		return nil, errors.Wrapf(walkErr, "bank: walking album directory %s", dir)
	}

	sort.Slice(files, func(i, j int) bool { return natsort.Compare(files[i], files[j], false) })

	return NewAlbumFromFiles(files), nil
}

// NewAlbumFromFiles wraps an explicit, ordered list of sub-bank files.
func NewAlbumFromFiles(files []string) *AlbumBank {
	ab := &AlbumBank{files: files}
	for _, f := range files {
		ab.subBanks = append(ab.subBanks, NewFileBank([]string{f}))
	}
	return ab
}

// NewAlbumFromManifest reads an album manifest file, one sub-bank path
// per line, using github.com/shenwei356/breader's buffered concurrent
// line reader, the same dependency the retrieval pack's file-list
// readers use for large list files.
func NewAlbumFromManifest(manifest string) (*AlbumBank, error) {
	reader, err := breader.NewDefaultBufferedReader(manifest)
	if err != nil {
		return nil, errors.Wrapf(err, "bank: opening album manifest %s", manifest)
	}

	var files []string
	for chunk := range reader.Ch {
		if chunk.Err != nil {
			return nil, errors.Wrapf(chunk.Err, "bank: reading album manifest %s", manifest)
		}
		for _, data := range chunk.Data {
			line := strings.TrimSpace(data.(string))
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			files = append(files, line)
		}
	}
	return NewAlbumFromFiles(files), nil
}

// Iterator implements Bank by chaining every sub-bank's iterator.
func (a *AlbumBank) Iterator(ctx context.Context) (func() (Sequence, bool, error), error) {
	idx := 0
	var cur func() (Sequence, bool, error)

	advance := func() error {
		for idx < len(a.subBanks) {
			it, err := a.subBanks[idx].Iterator(ctx)
			idx++
			if err != nil {
				return err
			}
			cur = it
			return nil
		}
		cur = nil
		return nil
	}
	if err := advance(); err != nil {
		return nil, err
	}

	return func() (Sequence, bool, error) {
		for {
			if cur == nil {
				return Sequence{}, false, nil
			}
			seq, ok, err := cur()
			if err != nil {
				return Sequence{}, false, err
			}
			if ok {
				return seq, true, nil
			}
			if err := advance(); err != nil {
				return Sequence{}, false, err
			}
		}
	}, nil
}

// Estimate implements Bank by summing each sub-bank's estimate.
func (a *AlbumBank) Estimate() (nbSequences uint64, totalBP uint64, maxLen uint64, err error) {
	for _, sb := range a.subBanks {
		n, bp, ml, err := sb.Estimate()
		if err != nil {
			return 0, 0, 0, err
		}
		nbSequences += n
		totalBP += bp
		if ml > maxLen {
			maxLen = ml
		}
	}
	return nbSequences, totalBP, maxLen, nil
}

// GetNbItems implements Bank.
func (a *AlbumBank) GetNbItems() (uint64, error) {
	n, _, _, err := a.Estimate()
	return n, err
}

// Files returns the ordered list of sub-bank file paths.
func (a *AlbumBank) Files() []string { return a.files }
