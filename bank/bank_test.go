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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFasta(t *testing.T, dir, name string, records map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	for id, seq := range records {
		_, err := f.WriteString(">" + id + "\n" + seq + "\n")
		require.NoError(t, err)
	}
	return path
}

func TestFileBankIteratesAllSequences(t *testing.T) {
	dir := t.TempDir()
	path := writeFasta(t, dir, "a.fa", map[string]string{
		"r1": "ACGTACGT",
		"r2": "CGTACGTA",
	})

	b := NewFileBank([]string{path})
	it, err := b.Iterator(context.Background())
	require.NoError(t, err)

	var got []string
	for {
		seq, ok, err := it()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, string(seq.Seq))
	}
	assert.Len(t, got, 2)
}

func TestFileBankEstimate(t *testing.T) {
	dir := t.TempDir()
	path := writeFasta(t, dir, "a.fa", map[string]string{
		"r1": "ACGTACGT",
		"r2": "CGTACGTAC",
	})

	b := NewFileBank([]string{path})
	n, bp, maxLen, err := b.Estimate()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
	assert.Equal(t, uint64(17), bp)
	assert.Equal(t, uint64(9), maxLen)
}

func TestAlbumBankFromFiles(t *testing.T) {
	dir := t.TempDir()
	p1 := writeFasta(t, dir, "a.fa", map[string]string{"r1": "ACGTACGT"})
	p2 := writeFasta(t, dir, "b.fa", map[string]string{"r2": "TTTTAAAA"})

	ab := NewAlbumFromFiles([]string{p1, p2})
	n, err := ab.GetNbItems()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
}
