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

// Package dsk implements the counting pass driver of specification §4.3:
// the configuration step that sizes passes/partitions from a resource
// budget, the fill/drain main loop, and the glue that persists the solid
// k-mer bag and histogram, grounded on
// original_source/gatb-core/src/gatb/kmer/impl/SortingCountAlgorithm.cpp's
// configure()/execute() pair.
package dsk

import (
	"context"
	"math"
	"syscall"

	"github.com/gatb-go/gatbcore/bank"
	"github.com/gatb-go/gatbcore/dispatch"
	"github.com/gatb-go/gatbcore/gatberr"
	"github.com/gatb-go/gatbcore/histogram"
	"github.com/gatb-go/gatbcore/kmer"
)

// bytesPerKmer is sizeof(kmer) in the volume formula of spec.md §4.3 step
// 2: the uniform on-the-wire kmer.Value is 16 bytes regardless of k.
const bytesPerKmer = 16

// Defaults used when a Config field is left zero.
const (
	defaultMaxMemoryMB = 1024
	defaultMaxDiskMB   = 1 << 20 // 1 TiB
	defaultFDLimit     = 1024
	// hashModeInflate accounts for hash-table load factor and per-entry
	// overhead when the hash-mode partition is selected, per spec.md
	// §4.3 step 5.
	hashModeInflate = 3
)

// Config is the resource budget and tuning knobs for one counting run,
// the Go analogue of SortingCountAlgorithm's constructor parameters
// (kmerSize, abundance, max_memory, max_disk_space, nbCores,
// partitionType).
type Config struct {
	K         int
	Abundance uint32

	MaxMemoryMB uint64 // M
	MaxDiskMB   uint64 // D
	Cores       int    // C

	// ForceHashMode skips the sort-mode/hash-mode decision per partition
	// and always streams into a hash map, per spec.md §4.3 step 5's
	// "user has ... forced hash mode".
	ForceHashMode bool

	// UseLinearCounter enables the optional cardinality pre-pass of
	// spec.md §4.3 step 6.
	UseLinearCounter bool

	// HMax overrides the histogram's H_MAX; 0 uses histogram.DefaultHMax.
	HMax int
	// DefaultCutoff overrides the auto-cutoff fallback; 0 uses
	// histogram.DefaultCutoff.
	DefaultCutoff int

	// Progress receives Init/Inc/Finish calls for the partition-filling
	// and partition-draining phases of each pass, per spec.md §9's
	// "progress notification is a separate observer interface". A nil
	// Progress is replaced with dispatch.NoopProgress by Run.
	Progress dispatch.Progress
}

// progress returns cfg's observer, or a no-op one if none was given.
func (c Config) progress() dispatch.Progress {
	if c.Progress == nil {
		return dispatch.NoopProgress{}
	}
	return c.Progress
}

func (c Config) hmax() int {
	if c.HMax <= 0 {
		return histogram.DefaultHMax
	}
	return c.HMax
}

func (c Config) defaultCutoff() int {
	if c.DefaultCutoff <= 0 {
		return histogram.DefaultCutoff
	}
	return c.DefaultCutoff
}

// Plan is the outcome of the configuration step: the number of passes and
// partitions, plus the estimates that produced them.
type Plan struct {
	K         int
	Abundance uint32
	Cores     int

	NbSequences uint64
	TotalBP     uint64
	MaxLen      uint64
	Volume      uint64 // V, bytes

	NbPasses     int // P
	NbPartitions int // N
	HashMode     bool

	MemoryBudgetBytes uint64
}

// perWorkerBudgetBytes returns the memory budget available to a single
// drain worker, used to decide sort-mode vs hash-mode per partition.
func (p *Plan) perWorkerBudgetBytes() uint64 {
	cores := uint64(p.Cores)
	if cores == 0 {
		cores = 1
	}
	return p.MemoryBudgetBytes / cores
}

func ceilDivU64(a, b uint64) uint64 {
	if b == 0 {
		return a
	}
	return (a + b - 1) / b
}

// fileDescriptorLimit returns the process's current soft RLIMIT_NOFILE,
// falling back to defaultFDLimit if it cannot be read.
func fileDescriptorLimit() (uint64, error) {
	var rlim syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rlim); err != nil {
		return defaultFDLimit, err
	}
	return rlim.Cur, nil
}

// Configure performs spec.md §4.3's configuration step: estimate the
// bank, size V, derive P and N from the M/D/C budget (retrying P on an
// fd-limit overflow), inflate N for hash mode, and optionally shrink N
// using a linear-counting cardinality estimate.
func Configure(bk bank.Bank, cfg Config) (*Plan, error) {
	if cfg.K <= 0 || cfg.K > kmer.MaxK64 {
		return nil, gatberr.New(gatberr.ConfigError, "dsk.configure", nil).WithInput("k")
	}

	nbSeq, totalBP, maxLen, err := bk.Estimate()
	if err != nil {
		return nil, gatberr.Wrap(gatberr.IoError, "dsk.configure", err, "estimating bank")
	}

	// V = (total_bp - nb_sequences*(k-1)) * sizeof(kmer), floored at 0 for
	// degenerate/empty banks.
	usable := int64(totalBP) - int64(nbSeq)*int64(cfg.K-1)
	if usable < 0 {
		usable = 0
	}
	volume := uint64(usable) * bytesPerKmer

	diskBytes := cfg.MaxDiskMB * (1 << 20)
	if diskBytes == 0 {
		diskBytes = defaultMaxDiskMB * (1 << 20)
	}
	memBytes := cfg.MaxMemoryMB * (1 << 20)
	if memBytes == 0 {
		memBytes = defaultMaxMemoryMB * (1 << 20)
	}
	cores := cfg.Cores
	if cores <= 0 {
		cores = 1
	}

	fdLimit, err := fileDescriptorLimit()
	if err != nil {
		fdLimit = defaultFDLimit
	}

	p := ceilDivU64(volume, diskBytes)
	if p < 1 {
		p = 1
	}

	var n uint64
	for {
		perPass := volume / p
		n = ceilDivU64(perPass*uint64(cores), memBytes)
		if n < 1 {
			n = 1
		}
		if n > fdLimit/2 {
			p++
			continue
		}
		break
	}

	hashMode := cfg.ForceHashMode
	if hashMode {
		n *= hashModeInflate
	}

	if cfg.UseLinearCounter && !cfg.ForceHashMode {
		if distinct, total, err := estimateDistinctRatio(bk, cfg.K); err == nil && total > 0 {
			ratio := float64(distinct) / float64(total)
			// An estimator reporting more distinct k-mers than total
			// occurrences, or none at all, is not trustworthy: keep the
			// conservative N already computed, per spec.md §4.3 step 6
			// ("on estimator inaccuracy, fall back to the conservative N").
			if ratio > 0 && ratio < 1 {
				shrunk := uint64(math.Ceil(float64(n) * ratio))
				if shrunk >= 1 {
					n = shrunk
				}
			}
		}
	}

	return &Plan{
		K:                 cfg.K,
		Abundance:         cfg.Abundance,
		Cores:             cores,
		NbSequences:       nbSeq,
		TotalBP:           totalBP,
		MaxLen:            maxLen,
		Volume:            volume,
		NbPasses:          int(p),
		NbPartitions:      int(n),
		HashMode:          hashMode,
		MemoryBudgetBytes: memBytes,
	}, nil
}

// estimateDistinctRatio streams the bank once through a linear-counting
// cardinality estimator and returns (estimated distinct kmers, total kmer
// occurrences seen), the pre-pass of spec.md §4.3 step 6 and
// SortingCountAlgorithm.cpp's EstimateNbDistinctKmers.
func estimateDistinctRatio(bk bank.Bank, k int) (distinct, total uint64, err error) {
	model, err := kmer.NewModel(k)
	if err != nil {
		return 0, 0, err
	}
	lc := NewLinearCounter(1 << 22)

	it, err := bk.Iterator(context.Background())
	if err != nil {
		return 0, 0, err
	}
	for {
		seq, ok, err := it()
		if err != nil {
			return 0, 0, err
		}
		if !ok {
			break
		}
		next := model.Build(seq.Seq)
		for {
			km, ok := next()
			if !ok {
				break
			}
			lc.Add(model.Hash(km.Value))
			total++
		}
	}
	distinct = lc.EstimateCardinality()
	return distinct, total, nil
}
