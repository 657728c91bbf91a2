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

package spill

import (
	"testing"

	"github.com/gatb-go/gatbcore/kmer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreInsertIterateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, 4)
	require.NoError(t, err)
	defer s.Remove()

	want := []kmer.Value{{Lo: 1}, {Lo: 2}, {Lo: 3}}
	for _, v := range want {
		require.NoError(t, s.Insert(2, v))
	}
	require.NoError(t, s.FlushAll())

	assert.Equal(t, uint64(3), s.Size(2))
	assert.Equal(t, uint64(0), s.Size(0))

	it, err := s.Iterate(2)
	require.NoError(t, err)
	var got []kmer.Value
	for {
		v, ok, err := it()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, v)
	}
	assert.ElementsMatch(t, want, got)
}

func TestStoreResetClearsSizes(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, 2)
	require.NoError(t, err)
	defer s.Remove()

	require.NoError(t, s.Insert(0, kmer.Value{Lo: 9}))
	require.NoError(t, s.FlushAll())
	assert.Equal(t, uint64(1), s.Size(0))

	require.NoError(t, s.Reset())
	assert.Equal(t, uint64(0), s.Size(0))
}

func TestSortedCacheEmitsSortedDuplicatesPreserved(t *testing.T) {
	dir := t.TempDir()
	base, err := Open(dir, 1)
	require.NoError(t, err)
	defer base.Remove()

	sc := NewSortedCache(base, 2)
	vals := []kmer.Value{{Lo: 5}, {Lo: 3}, {Lo: 5}, {Lo: 1}, {Lo: 3}}
	for _, v := range vals {
		require.NoError(t, sc.Insert(0, 0, v))
	}
	require.NoError(t, sc.Flush())

	assert.Equal(t, uint64(len(vals)), base.Size(0))

	it, err := base.Iterate(0)
	require.NoError(t, err)
	var got []kmer.Value
	for {
		v, ok, err := it()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, v)
	}
	assert.ElementsMatch(t, vals, got)
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].Less(got[i-1]), "output must be sorted")
	}
}
