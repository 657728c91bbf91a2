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
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/gatb-go/gatbcore/kmer"
	"github.com/gatb-go/gatbcore/membership"
	"github.com/gatb-go/gatbcore/storage"
	"github.com/spf13/cobra"
)

// membershipCmd groups the standalone Bloom+cFP container commands, kept
// separate from "gatb graph" since the container answers membership in
// the solid set directly and never needs a compacted graph to exist.
var membershipCmd = &cobra.Command{
	Use:   "membership",
	Short: "Build and query a Bloom+cFP approximate membership container",
}

var membershipBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a membership container over a counted k-mer set",
	Long: `Build a membership container over a counted k-mer set

Reads the solid k-mers written by "gatb count" under -i/--count-dir,
sizes a Bloom filter over them, computes the critical-false-positive
set against their candidate neighbors (one-base extensions at either
end of every solid k-mer, the same frontier the graph builder tries),
and persists both to -O/--out-dir's membership group.
`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		countDir := getFlagString(cmd, "count-dir")
		outDir := getFlagString(cmd, "out-dir")
		force := getFlagBool(cmd, "force")
		fpRate := getFlagNonNegativeFloat(cmd, "fp-rate")
		if countDir == "" {
			checkError(fmt.Errorf("flag -i/--count-dir is needed"))
		}
		if outDir == "" {
			checkError(fmt.Errorf("flag -O/--out-dir is needed"))
		}
		outDir = filepath.Clean(outDir)

		countSt, err := storage.Open(countDir)
		checkError(err)
		dskGroup, err := countSt.Group("dsk")
		checkError(err)

		kStr, ok := dskGroup.GetProperty("kmer_size")
		if !ok {
			checkError(fmt.Errorf("no kmer_size property in %s: was this built by 'gatb count'?", countDir))
		}
		k, err := strconv.Atoi(kStr)
		checkError(err)

		model, err := kmer.NewModel(k)
		checkError(err)

		solidCounts, err := loadSolidSet(dskGroup)
		checkError(err)

		solids := make([]kmer.Value, 0, len(solidCounts))
		for v := range solidCounts {
			solids = append(solids, v)
		}
		candidates := candidateNeighbors(solids, model)
		if opt.Verbose {
			log.Infof("%d solid k-mers, %d candidate neighbors", len(solids), len(candidates))
		}

		container := membership.BuildSimple(solids, candidates, func(v kmer.Value) bool {
			_, ok := solidCounts[v]
			return ok
		}, fpRate)

		makeOutDir(outDir, force, "membership build", opt.Verbose)
		outSt, err := storage.Open(outDir)
		checkError(err)
		grp, err := outSt.Group("membership")
		checkError(err)

		checkError(saveMembership(grp, k, container))
		if opt.Verbose {
			log.Infof("membership container saved: %s", outDir)
		}
	},
}

var membershipQueryCmd = &cobra.Command{
	Use:   "query [kmers...]",
	Short: "Test whether the given k-mer(s) are members of a saved container",
	Run: func(cmd *cobra.Command, args []string) {
		inDir := getFlagString(cmd, "in-dir")
		if inDir == "" {
			checkError(fmt.Errorf("flag -i/--in-dir is needed"))
		}
		if len(args) == 0 {
			checkError(fmt.Errorf("no k-mers given"))
		}

		inSt, err := storage.Open(inDir)
		checkError(err)
		grp, err := inSt.Group("membership")
		checkError(err)

		k, container, err := loadMembership(grp)
		checkError(err)
		model, err := kmer.NewModel(k)
		checkError(err)

		for _, s := range args {
			next := model.Build([]byte(s))
			any := false
			for {
				km, ok := next()
				if !ok {
					break
				}
				any = true
				fmt.Printf("%s\t%v\n", s, container.Contains(km.Value))
			}
			if !any {
				fmt.Printf("%s\tskipped: shorter than k=%d or contains N\n", s, k)
			}
		}
	},
}

// candidateNeighbors enumerates the one-base extensions at both ends of
// every solid k-mer, the same frontier-extension idiom
// graph.candidateExtensions tries during compaction, reused here as the
// candidate set BuildCFP's critical-false-positive pass checks against.
func candidateNeighbors(solids []kmer.Value, model *kmer.Model) []kmer.Value {
	seen := make(map[kmer.Value]struct{}, len(solids))
	var out []kmer.Value
	add := func(v kmer.Value) {
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	for _, v := range solids {
		frontier := model.String(v)
		for _, forward := range []bool{true, false} {
			for _, b := range "ACGT" {
				var cand string
				if forward {
					cand = frontier[1:] + string(b)
				} else {
					cand = string(b) + frontier[:len(frontier)-1]
				}
				next := model.Build([]byte(cand))
				km, ok := next()
				if !ok {
					continue
				}
				add(km.Value)
			}
		}
	}
	return out
}

// saveMembership persists a Simple container's Bloom bit-array and
// critical-FP set as two collections under grp, the same "one
// collection per logical array" layout dsk/solid and graph/unitigs use
// elsewhere in this storage tree.
func saveMembership(grp *storage.Group, k int, container *membership.Simple) error {
	if err := grp.AddProperty("kmer_size", strconv.Itoa(k)); err != nil {
		return err
	}
	if err := grp.AddProperty("nb_bits", strconv.FormatUint(container.Bloom().NbBits(), 10)); err != nil {
		return err
	}
	if err := grp.AddProperty("nb_hashes", strconv.Itoa(container.Bloom().NbHashes())); err != nil {
		return err
	}

	bits, err := storage.NewCollection[uint64](grp, "bloom_bits", storage.Uint64Codec{})
	if err != nil {
		return err
	}
	if err := bits.InsertBatch(container.Bloom().Words()); err != nil {
		return err
	}
	if err := bits.Flush(); err != nil {
		return err
	}

	cfp, err := storage.NewCollection[storage.Count](grp, "cfp", storage.CountCodec{})
	if err != nil {
		return err
	}
	for _, v := range container.CFP().Values() {
		if err := cfp.Insert(storage.Count{Kmer: v}); err != nil {
			return err
		}
	}
	return cfp.Flush()
}

// loadMembership rebuilds a Simple container from what saveMembership
// wrote.
func loadMembership(grp *storage.Group) (int, *membership.Simple, error) {
	kStr, ok := grp.GetProperty("kmer_size")
	if !ok {
		return 0, nil, fmt.Errorf("no kmer_size property in membership group %s", grp.Dir())
	}
	k, err := strconv.Atoi(kStr)
	if err != nil {
		return 0, nil, err
	}

	nbBitsStr, _ := grp.GetProperty("nb_bits")
	nbHashesStr, _ := grp.GetProperty("nb_hashes")
	nbBits, err := strconv.ParseUint(nbBitsStr, 10, 64)
	if err != nil {
		return 0, nil, err
	}
	nbHashes, err := strconv.Atoi(nbHashesStr)
	if err != nil {
		return 0, nil, err
	}

	bits, err := storage.NewCollection[uint64](grp, "bloom_bits", storage.Uint64Codec{})
	if err != nil {
		return 0, nil, err
	}
	next, err := bits.Iterator()
	if err != nil {
		return 0, nil, err
	}
	var words []uint64
	for {
		w, ok, err := next()
		if err != nil {
			return 0, nil, err
		}
		if !ok {
			break
		}
		words = append(words, w)
	}
	bloom := membership.RestoreBloom(words, nbBits, nbHashes)

	cfpColl, err := storage.NewCollection[storage.Count](grp, "cfp", storage.CountCodec{})
	if err != nil {
		return 0, nil, err
	}
	cfpNext, err := cfpColl.Iterator()
	if err != nil {
		return 0, nil, err
	}
	var cfpValues []kmer.Value
	for {
		c, ok, err := cfpNext()
		if err != nil {
			return 0, nil, err
		}
		if !ok {
			break
		}
		cfpValues = append(cfpValues, c.Kmer)
	}

	return k, membership.NewSimple(bloom, membership.NewCFPFromSlice(cfpValues)), nil
}

func init() {
	RootCmd.AddCommand(membershipCmd)
	membershipCmd.AddCommand(membershipBuildCmd)
	membershipCmd.AddCommand(membershipQueryCmd)

	membershipBuildCmd.Flags().StringP("count-dir", "i", "",
		formatFlagUsage(`Directory previously written by 'gatb count'.`))
	membershipBuildCmd.Flags().StringP("out-dir", "O", "",
		formatFlagUsage(`Output directory.`))
	membershipBuildCmd.Flags().BoolP("force", "", false,
		formatFlagUsage(`Overwrite existing output directory.`))
	membershipBuildCmd.Flags().Float64P("fp-rate", "", membership.DefaultFPRate,
		formatFlagUsage(`Target Bloom filter false positive rate.`))
	membershipBuildCmd.SetUsageTemplate(usageTemplate("-i <count dir> -O <out dir>"))

	membershipQueryCmd.Flags().StringP("in-dir", "i", "",
		formatFlagUsage(`Directory previously written by 'gatb membership build'.`))
	membershipQueryCmd.SetUsageTemplate(usageTemplate("-i <membership dir> <kmer> [kmer...]"))
}
