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
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/xopen"
)

// FileBank is a Bank over one or more plain/gzipped FASTA or FASTQ files,
// read with shenwei356/bio/seqio/fastx the same way LexicMap's index/search
// commands do (lexicmap/cmd/design-masks.go, lexicmap/cmd/search.go):
// fastx.NewReader(alphabet, file, idRegexp) + record.Seq.Seq/.Qual.
type FileBank struct {
	Files []string

	// MaxBadRecordRatio bounds the fraction of malformed records that are
	// skipped before a FormatError escalates to fatal, per spec.md §7.
	MaxBadRecordRatio float64
}

// NewFileBank builds a FileBank over the given file paths.
func NewFileBank(files []string) *FileBank {
	return &FileBank{Files: files, MaxBadRecordRatio: 0.01}
}

// Iterator implements Bank.
func (b *FileBank) Iterator(ctx context.Context) (func() (Sequence, bool, error), error) {
	if len(b.Files) == 0 {
		return func() (Sequence, bool, error) { return Sequence{}, false, nil }, nil
	}

	fi := 0
	var reader *fastx.Reader
	var curCleanup func()
	var nBad, nTotal int64

	openNext := func() error {
		for fi < len(b.Files) {
			path, cleanup, err := resolveBankFile(b.Files[fi])
			fi++
			if err != nil {
				return errors.Wrapf(err, "bank: opening %s", b.Files[fi-1])
			}
			r, err := fastx.NewReader(nil, path, "")
			if err != nil {
				if cleanup != nil {
					cleanup()
				}
				return errors.Wrapf(err, "bank: opening %s", b.Files[fi-1])
			}
			reader = r
			curCleanup = cleanup
			return nil
		}
		reader = nil
		curCleanup = nil
		return nil
	}

	if err := openNext(); err != nil {
		return nil, err
	}

	return func() (Sequence, bool, error) {
		for {
			select {
			case <-ctx.Done():
				return Sequence{}, false, ctx.Err()
			default:
			}

			if reader == nil {
				return Sequence{}, false, nil
			}
			rec, err := reader.Read()
			if err == io.EOF {
				reader.Close()
				if curCleanup != nil {
					curCleanup()
				}
				if err := openNext(); err != nil {
					return Sequence{}, false, err
				}
				continue
			}
			if err != nil {
				nBad++
				nTotal++
				if nTotal > 0 && float64(nBad)/float64(nTotal) > b.MaxBadRecordRatio {
					return Sequence{}, false, &FormatError{Source: b.Files[fi-1], Cause: err}
				}
				continue
			}
			nTotal++

			seq := Sequence{
				ID:  append([]byte(nil), rec.ID...),
				Seq: append([]byte(nil), rec.Seq.Seq...),
			}
			if len(rec.Seq.Qual) > 0 {
				seq.Quality = append([]byte(nil), rec.Seq.Qual...)
			}
			return seq, true, nil
		}
	}, nil
}

// Estimate implements Bank by scanning every sequence once, accumulating
// count/total-length/max-length, the way
// original_source/gatb-core/src/gatb/kmer/impl/SortingCountAlgorithm.cpp's
// configure() calls bank->estimate(...) before doing any heavy I/O.
func (b *FileBank) Estimate() (nbSequences uint64, totalBP uint64, maxLen uint64, err error) {
	it, err := b.Iterator(context.Background())
	if err != nil {
		return 0, 0, 0, err
	}
	for {
		seq, ok, err := it()
		if err != nil {
			return 0, 0, 0, err
		}
		if !ok {
			break
		}
		nbSequences++
		totalBP += uint64(len(seq.Seq))
		if uint64(len(seq.Seq)) > maxLen {
			maxLen = uint64(len(seq.Seq))
		}
	}
	return nbSequences, totalBP, maxLen, nil
}

// resolveBankFile opens path with github.com/shenwei356/xopen the same way
// LexicMap's own readKVs (lexicmap/cmd/util.go) opens auxiliary input
// files: transparently decompressing gzip by content, and treating "-" as
// stdin. fastx.NewReader needs a real path, so when path is "-" or
// /dev/stdin, its bytes are copied to a temp file whose removal is
// returned as cleanup; for any other path (a named pipe included), xopen
// is used only to fail fast with a clear error before any partition work
// starts, and path is returned unchanged.
func resolveBankFile(path string) (resolved string, cleanup func(), err error) {
	fh, err := xopen.Ropen(path)
	if err != nil {
		return "", nil, err
	}
	defer fh.Close()

	if path != "-" && path != "/dev/stdin" {
		return path, nil, nil
	}

	tmp, err := os.CreateTemp("", "gatbcore-bank-stdin-*")
	if err != nil {
		return "", nil, err
	}
	if _, err := io.Copy(tmp, fh); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, err
	}
	name := tmp.Name()
	return name, func() { os.Remove(name) }, nil
}

// GetNbItems implements Bank.
func (b *FileBank) GetNbItems() (uint64, error) {
	n, _, _, err := b.Estimate()
	return n, err
}
