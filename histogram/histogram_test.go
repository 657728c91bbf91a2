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

package histogram

import (
	"testing"

	"github.com/gatb-go/gatbcore/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveAndTotalOccurrences(t *testing.T) {
	hg := New(100)
	hg.Observe(1)
	hg.Observe(1)
	hg.Observe(3)
	hg.Observe(3)
	hg.Observe(3)

	assert.Equal(t, uint64(2), hg.At(1))
	assert.Equal(t, uint64(3), hg.At(3))
	assert.Equal(t, uint64(1*2+3*3), hg.TotalOccurrences())
}

func TestObserveSaturatesAtHMax(t *testing.T) {
	hg := New(10)
	hg.Observe(1000)
	assert.Equal(t, uint64(1), hg.At(10))
}

func TestCutoffFindsLocalMinimumAfterPeak(t *testing.T) {
	hg := New(20)
	// erroneous peak at c=1, decreasing through a minimum at c=4, then a
	// genuine coverage peak around c=8.
	counts := map[int]uint64{
		1: 100, 2: 60, 3: 30, 4: 10, 5: 12, 6: 40, 7: 70, 8: 90, 9: 50,
	}
	for c, n := range counts {
		for i := uint64(0); i < n; i++ {
			hg.Observe(uint64(c))
		}
	}
	assert.Equal(t, 4, hg.Cutoff(2))
}

func TestCutoffFallsBackToDefault(t *testing.T) {
	hg := New(5)
	// strictly decreasing histogram (h[c] = 6-c for c in 1..5): no local
	// minimum exists below H_MAX.
	for c := 1; c <= 5; c++ {
		for i := 0; i < 6-c; i++ {
			hg.Observe(uint64(c))
		}
	}
	assert.Equal(t, 7, hg.Cutoff(7))
}

func TestNbSolidsAtCutoff(t *testing.T) {
	hg := New(10)
	hg.Observe(1)
	hg.Observe(2)
	hg.Observe(2)
	hg.Observe(5)
	assert.Equal(t, uint64(3), hg.NbSolidsAtCutoff(2))
}

func TestMeanAbundanceRatio(t *testing.T) {
	mean, stdev := MeanAbundanceRatio([]float64{2, 4, 6, 8})
	assert.InDelta(t, 5.0, mean, 1e-9)
	assert.Greater(t, stdev, 0.0)

	mean, stdev = MeanAbundanceRatio(nil)
	assert.Equal(t, 0.0, mean)
	assert.Equal(t, 0.0, stdev)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	st, err := storage.Open(dir)
	require.NoError(t, err)
	g, err := st.Group("dsk")
	require.NoError(t, err)

	hg := New(50)
	hg.Observe(1)
	hg.Observe(1)
	hg.Observe(1)
	hg.Observe(4)

	coll, err := storage.NewCollection[storage.HistogramEntry](g, "histogram", storage.HistogramEntryCodec{})
	require.NoError(t, err)
	require.NoError(t, hg.Save(coll))

	coll2, err := storage.NewCollection[storage.HistogramEntry](g, "histogram", storage.HistogramEntryCodec{})
	require.NoError(t, err)
	loaded, err := Load(coll2, 50)
	require.NoError(t, err)

	assert.Equal(t, uint64(3), loaded.At(1))
	assert.Equal(t, uint64(1), loaded.At(4))
	assert.Equal(t, uint64(0), loaded.At(2))
}
