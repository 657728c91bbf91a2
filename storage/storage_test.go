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
	"testing"

	"github.com/gatb-go/gatbcore/kmer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupPropertiesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	st, err := Open(dir)
	require.NoError(t, err)

	g, err := st.Group("dsk")
	require.NoError(t, err)

	require.NoError(t, g.AddProperty("kmer_size", "21"))

	// reopen to force a reload from disk
	st2, err := Open(dir)
	require.NoError(t, err)
	g2, err := st2.Group("dsk")
	require.NoError(t, err)

	v, ok := g2.GetProperty("kmer_size")
	assert.True(t, ok)
	assert.Equal(t, "21", v)
}

func TestCollectionRoundTrip(t *testing.T) {
	dir := t.TempDir()
	st, err := Open(dir)
	require.NoError(t, err)
	g, err := st.Group("dsk")
	require.NoError(t, err)

	coll, err := NewCollection[Count](g, "solid", CountCodec{})
	require.NoError(t, err)

	want := []Count{
		{Kmer: kmer.Value{Lo: 1}, Count: 3},
		{Kmer: kmer.Value{Lo: 2}, Count: 5},
	}
	require.NoError(t, coll.InsertBatch(want))
	require.NoError(t, coll.Flush())

	n, err := coll.GetNbItems()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	it, err := coll.Iterator()
	require.NoError(t, err)
	var got []Count
	for {
		v, ok, err := it()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, v)
	}
	assert.Equal(t, want, got)
}
