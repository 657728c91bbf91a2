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

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gatb-go/gatbcore/bank"
	"github.com/gatb-go/gatbcore/dispatch"
	"github.com/gatb-go/gatbcore/dsk"
	"github.com/gatb-go/gatbcore/storage"
	"github.com/spf13/cobra"
)

// minK mirrors LexicMap's "Maximum k-mer size" sanity floor
// (lexicmap/cmd/index.go): the smallest k kmer.Model accepts. The count
// command caps k at 32.
var minK = 1

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Count canonical k-mers and report their abundance histogram",
	Long: `Count canonical k-mers and report their abundance histogram

Input:
  1. One or more plain or gzipped FASTA/Q files given as positional
     arguments.
  2. Or a directory of sequence files via -I/--in-dir, matched by
     -r/--file-regexp.

The multi-pass, multi-partition counting algorithm automatically sizes
itself from -M/--max-memory and -D/--max-disk; pass --force-hash-mode to
skip that decision and always stream into an in-memory hash map.
`,
	Run: func(cmd *cobra.Command, args []string) {
		if fcfg, err := loadFileConfig(); err == nil {
			applyFileConfigDefaults(cmd, fcfg)
		}
		opt := getOptions(cmd)

		var fhLog *os.File
		if opt.Log2File {
			fhLog = addLog(opt.LogFile, opt.Verbose)
		}
		timeStart := time.Now()
		defer func() {
			if opt.Verbose || opt.Log2File {
				log.Infof("elapsed time: %s", time.Since(timeStart))
			}
			if opt.Log2File {
				fhLog.Close()
			}
		}()

		k := getFlagPositiveInt(cmd, "kmer")
		if k < minK || k > 32 {
			checkError(fmt.Errorf("the value of flag -k/--kmer should be in range of [%d, 32]", minK))
		}
		abundanceMin := getFlagNonNegativeInt(cmd, "abundance-min")
		maxMemoryMB := uint64(getFlagNonNegativeInt(cmd, "max-memory"))
		maxDiskMB := uint64(getFlagNonNegativeInt(cmd, "max-disk"))
		forceHashMode := getFlagBool(cmd, "force-hash-mode")
		useLinearCounter := getFlagBool(cmd, "linear-counter")

		inDir := getFlagString(cmd, "in-dir")
		fileRegexp := getFlagString(cmd, "file-regexp")
		outDir := getFlagString(cmd, "out-dir")
		force := getFlagBool(cmd, "force")

		if outDir == "" {
			checkError(fmt.Errorf("flag -O/--out-dir is needed"))
		}
		outDir = filepath.Clean(outDir)

		bk, err := openCountBank(inDir, fileRegexp, args, opt.NumCPUs)
		checkError(err)

		makeOutDir(outDir, force, "count", opt.Verbose)

		st, err := storage.Open(outDir)
		checkError(err)

		progress := newMpbProgress(opt.Verbose)
		cfg := dsk.Config{
			K:                k,
			Abundance:        uint32(abundanceMin),
			MaxMemoryMB:      maxMemoryMB,
			MaxDiskMB:        maxDiskMB,
			Cores:            opt.NumCPUs,
			ForceHashMode:    forceHashMode,
			UseLinearCounter: useLinearCounter,
			Progress:         progress,
		}

		tok := &dispatch.CancelToken{}
		result, err := dsk.Run(context.Background(), st, bk, cfg, tok)
		waitProgress(progress)
		checkError(err)

		if opt.Verbose || opt.Log2File {
			log.Infof("counted with k=%d, %d passes, %d partitions", k, result.Plan.NbPasses, result.Plan.NbPartitions)
			log.Infof("abundance cutoff: %d, solid k-mers: %d", result.Cutoff, result.NbSolidsForCutoff)
			log.Infof("output saved: %s", outDir)
		}
	},
}

// openCountBank picks the bank source the same way LexicMap's index
// command picks between -I/--in-dir and positional file arguments
// (lexicmap/cmd/index.go).
func openCountBank(inDir, fileRegexp string, args []string, threads int) (bank.Bank, error) {
	if inDir != "" {
		re, err := regexp.Compile("(?i)" + fileRegexp)
		if err != nil {
			return nil, fmt.Errorf("invalid -r/--file-regexp: %w", err)
		}
		return bank.NewAlbumFromDir(inDir, re, threads)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("no input given: use positional FASTA/Q files or -I/--in-dir")
	}
	return bank.NewFileBank(args), nil
}

func init() {
	RootCmd.AddCommand(countCmd)

	countCmd.Flags().IntP("kmer", "k", 31,
		formatFlagUsage(`K-mer size.`))
	countCmd.Flags().IntP("abundance-min", "a", 0,
		formatFlagUsage(`Minimum abundance for a k-mer to be solid. 0 keeps every k-mer. The automatic cutoff from the histogram's first minimum is reported and recorded, not applied.`))

	countCmd.Flags().StringP("in-dir", "I", "",
		formatFlagUsage(`Directory containing FASTA/Q files. Directory symlinks are followed.`))
	countCmd.Flags().StringP("file-regexp", "r", `\.(f[aq](st[aq])?|fna)(\.gz)?$`,
		formatFlagUsage(`Regular expression for matching sequence files in -I/--in-dir, case ignored.`))

	countCmd.Flags().StringP("out-dir", "O", "",
		formatFlagUsage(`Output directory.`))
	countCmd.Flags().BoolP("force", "", false,
		formatFlagUsage(`Overwrite existing output directory.`))

	countCmd.Flags().IntP("max-memory", "M", 1024,
		formatFlagUsage(`Maximum memory to use, in MiB.`))
	countCmd.Flags().IntP("max-disk", "D", 1<<20,
		formatFlagUsage(`Maximum disk space to use, in MiB.`))
	countCmd.Flags().BoolP("force-hash-mode", "", false,
		formatFlagUsage(`Always use in-memory hash counting instead of the sort/hash decision per partition.`))
	countCmd.Flags().BoolP("linear-counter", "", false,
		formatFlagUsage(`Use a linear counter to estimate distinct k-mer cardinality before sizing partitions.`))

	countCmd.SetUsageTemplate(usageTemplate("{<seq files> | -I <seqs dir>} -O <out dir>"))
}
