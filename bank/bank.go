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

// Package bank implements the read-only sequence bank collaborator the
// core consumes through three operations only (specification §6):
// Iterator, Estimate and GetNbItems. The core never introspects formats;
// format selection (FASTA/FASTQ/album) happens only when a bank is
// constructed (NewFileBank, NewAlbumFromDir).
package bank

import "context"

// Sequence is one read: an identifier, its nucleotide string, and an
// optional quality string (empty when the source format has none).
type Sequence struct {
	ID      []byte
	Seq     []byte
	Quality []byte
}

// Bank is the external collaborator the counting core depends on. It is
// intentionally minimal: the core calls only these three operations
// (spec.md §6).
type Bank interface {
	// Iterator returns a lazy iterator over every sequence in the bank.
	// The returned function yields one Sequence at a time; ok is false
	// once exhausted. The iterator must be safe to call exactly once per
	// pass (counting re-opens a fresh iterator per pass).
	Iterator(ctx context.Context) (func() (Sequence, bool, error), error)

	// Estimate returns (nbSequences, totalBasePairs, maxSequenceLen)
	// without necessarily reading every byte of every sequence twice.
	Estimate() (nbSequences uint64, totalBP uint64, maxLen uint64, err error)

	// GetNbItems returns the exact number of sequences in the bank.
	GetNbItems() (uint64, error)
}

// FormatError reports a corrupt or unrecognized record; per spec.md §7 a
// single malformed read is skippable up to a configurable ratio.
type FormatError struct {
	Source string
	Cause  error
}

func (e *FormatError) Error() string {
	return "bank: format error in " + e.Source + ": " + e.Cause.Error()
}

func (e *FormatError) Unwrap() error { return e.Cause }
