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

package dsk

import (
	"context"
	"encoding/xml"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/gatb-go/gatbcore/bank"
	"github.com/gatb-go/gatbcore/dispatch"
	"github.com/gatb-go/gatbcore/gatberr"
	"github.com/gatb-go/gatbcore/histogram"
	"github.com/gatb-go/gatbcore/kmer"
	"github.com/gatb-go/gatbcore/spill"
	"github.com/gatb-go/gatbcore/storage"
)

// Result is the outcome of a complete counting run, per spec.md §4.3
// "after all passes": the chosen cutoff, the resulting solid count, and
// handles on the persisted histogram and solid-kmer bag.
type Result struct {
	Plan              *Plan
	Cutoff            int
	NbSolidsForCutoff uint64
	Histogram         *histogram.Histogram
	Solids            *SolidStore
}

// statsXML is the serialized stats blob SortingCountAlgorithm::execute
// writes as the "xml" property of its storage group.
type statsXML struct {
	XMLName      xml.Name `xml:"dsk-stats"`
	KmerSize     int      `xml:"kmer_size"`
	Abundance    uint32   `xml:"abundance_min"`
	NbPasses     int      `xml:"nb_passes"`
	NbPartitions int      `xml:"nb_partitions"`
	TotalKmers   uint64   `xml:"total_kmers"`
	Cutoff       int      `xml:"cutoff"`
	NbSolids     uint64   `xml:"nb_solids"`
}

// Run executes the full counting pipeline of spec.md §4.3 against bk and
// persists its outputs under storage group "dsk": the solid k-mer bag,
// the histogram, and the kmer_size/cutoff/nbsolidsforcutoff/xml
// properties, the same set SortingCountAlgorithm::execute records.
func Run(ctx context.Context, st *storage.Storage, bk bank.Bank, cfg Config, tok *dispatch.CancelToken) (*Result, error) {
	plan, err := Configure(bk, cfg)
	if err != nil {
		return nil, err
	}
	model, err := kmer.NewModel(plan.K)
	if err != nil {
		return nil, gatberr.Wrap(gatberr.ConfigError, "dsk.run", err, "building kmer model")
	}

	g, err := st.Group("dsk")
	if err != nil {
		return nil, gatberr.Wrap(gatberr.IoError, "dsk.run", err, "opening dsk group")
	}

	hg := histogram.New(cfg.hmax())
	solids := NewSolidStore(g)
	spillDir := filepath.Join(g.Dir(), "partitions")
	progress := cfg.progress()

	// Failure semantics per spec.md §4.3/§7: a fatal failure during a
	// pass removes that pass's partial partitions before propagating.
	for pass := 0; pass < plan.NbPasses; pass++ {
		if tok.Cancelled() {
			return nil, gatberr.New(gatberr.Cancelled, "dsk.run", nil)
		}

		store, err := spill.Open(spillDir, plan.NbPartitions)
		if err != nil {
			return nil, gatberr.Wrap(gatberr.IoError, "dsk.run", err, "opening spill store for pass %d", pass)
		}

		progress.Init(int64(plan.NbSequences), fmt.Sprintf("pass %d/%d: filling partitions", pass+1, plan.NbPasses))
		if err := fillPartitions(ctx, bk, model, plan, pass, store, progress); err != nil {
			_ = store.Remove()
			return nil, err
		}
		progress.Finish()

		if err := store.FlushAll(); err != nil {
			_ = store.Remove()
			return nil, gatberr.Wrap(gatberr.IoError, "dsk.run", err, "flushing pass %d", pass)
		}

		progress.Init(int64(plan.NbPartitions), fmt.Sprintf("pass %d/%d: draining partitions", pass+1, plan.NbPasses))
		if err := drainPartitions(plan, pass, store, hg, solids, tok, progress); err != nil {
			_ = store.Remove()
			return nil, err
		}
		progress.Finish()

		// "After each pass, delete the partitions" (spec.md §4.3 step 3).
		if err := store.Remove(); err != nil {
			return nil, gatberr.Wrap(gatberr.IoError, "dsk.run", err, "removing partitions for pass %d", pass)
		}
	}

	if err := solids.FlushAll(); err != nil {
		return nil, gatberr.Wrap(gatberr.IoError, "dsk.run", err, "flushing solid store")
	}

	histColl, err := storage.NewCollection[storage.HistogramEntry](g, "histogram", storage.HistogramEntryCodec{})
	if err != nil {
		return nil, gatberr.Wrap(gatberr.IoError, "dsk.run", err, "opening histogram collection")
	}
	if err := hg.Save(histColl); err != nil {
		return nil, gatberr.Wrap(gatberr.IoError, "dsk.run", err, "saving histogram")
	}

	cutoff := hg.Cutoff(cfg.defaultCutoff())
	nbSolids := hg.NbSolidsAtCutoff(cutoff)

	if err := g.AddProperty("kmer_size", strconv.Itoa(plan.K)); err != nil {
		return nil, gatberr.Wrap(gatberr.IoError, "dsk.run", err, "recording kmer_size")
	}
	if err := g.AddProperty("cutoff", strconv.Itoa(cutoff)); err != nil {
		return nil, gatberr.Wrap(gatberr.IoError, "dsk.run", err, "recording cutoff")
	}
	if err := g.AddProperty("nbsolidsforcutoff", strconv.FormatUint(nbSolids, 10)); err != nil {
		return nil, gatberr.Wrap(gatberr.IoError, "dsk.run", err, "recording nbsolidsforcutoff")
	}

	stats := statsXML{
		KmerSize:     plan.K,
		Abundance:    plan.Abundance,
		NbPasses:     plan.NbPasses,
		NbPartitions: plan.NbPartitions,
		TotalKmers:   hg.TotalOccurrences(),
		Cutoff:       cutoff,
		NbSolids:     nbSolids,
	}
	blob, err := xml.MarshalIndent(stats, "", "  ")
	if err != nil {
		return nil, gatberr.Wrap(gatberr.IoError, "dsk.run", err, "marshaling stats xml")
	}
	if err := g.AddProperty("xml", string(blob)); err != nil {
		return nil, gatberr.Wrap(gatberr.IoError, "dsk.run", err, "recording xml stats")
	}

	return &Result{
		Plan:              plan,
		Cutoff:            cutoff,
		NbSolidsForCutoff: nbSolids,
		Histogram:         hg,
		Solids:            solids,
	}, nil
}
