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
	"time"

	"github.com/gatb-go/gatbcore/dsk"
	"github.com/gatb-go/gatbcore/graph"
	"github.com/gatb-go/gatbcore/kmer"
	"github.com/gatb-go/gatbcore/storage"
	"github.com/spf13/cobra"
)

// graphCmd groups the graph-construction and simplification subcommands,
// the de Bruijn graph half of the pipeline LexicMap's top-level index/
// search split mirrors for the lexichash half.
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Build and simplify the unitig-based de Bruijn graph",
}

var graphBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Compact a counted k-mer set into a unitig graph",
	Long: `Compact a counted k-mer set into a unitig graph

Reads the solid k-mers written by "gatb count" under -i/--count-dir,
compacts them into unitigs and wires their adjacency, then persists the
graph to -O/--out-dir's dbgh5 group.
`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		timeStart := time.Now()
		defer func() {
			if opt.Verbose {
				log.Infof("elapsed time: %s", time.Since(timeStart))
			}
		}()

		countDir := getFlagString(cmd, "count-dir")
		outDir := getFlagString(cmd, "out-dir")
		force := getFlagBool(cmd, "force")
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

		solids, err := loadSolidSet(dskGroup)
		checkError(err)
		if opt.Verbose {
			log.Infof("loaded %d solid k-mers", len(solids))
		}

		g, err := graph.BuildGraph(k, solids, model)
		checkError(err)
		if opt.Verbose {
			log.Infof("compacted into %d unitigs", g.Unitigs.Len())
		}

		makeOutDir(outDir, force, "graph build", opt.Verbose)
		outSt, err := storage.Open(outDir)
		checkError(err)
		grp, err := outSt.Group("dbgh5")
		checkError(err)

		state := graph.PhaseInit.Set(graph.PhaseConfiguration).Set(graph.PhaseSortingCount).Set(graph.PhaseBCALM2)
		checkError(graph.Save(g, grp, state))

		if opt.Verbose {
			log.Infof("graph saved: %s", outDir)
		}
	},
}

var graphSimplifyCmd = &cobra.Command{
	Use:   "simplify",
	Short: "Remove tips, bulges and error-correction unitigs from a graph",
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		timeStart := time.Now()
		defer func() {
			if opt.Verbose {
				log.Infof("elapsed time: %s", time.Since(timeStart))
			}
		}()

		inDir := getFlagString(cmd, "in-dir")
		outDir := getFlagString(cmd, "out-dir")
		force := getFlagBool(cmd, "force")
		if inDir == "" {
			checkError(fmt.Errorf("flag -i/--in-dir is needed"))
		}
		if outDir == "" {
			checkError(fmt.Errorf("flag -O/--out-dir is needed"))
		}
		outDir = filepath.Clean(outDir)

		inSt, err := storage.Open(inDir)
		checkError(err)
		inGrp, err := inSt.Group("dbgh5")
		checkError(err)

		kStr, ok := inGrp.GetProperty("kmer_size")
		if !ok {
			checkError(fmt.Errorf("no kmer_size property in %s: was this built by 'gatb graph build'?", inDir))
		}
		k, err := strconv.Atoi(kStr)
		checkError(err)

		g, state, err := graph.Load(inGrp, k)
		checkError(err)

		before := g.Unitigs.Len()
		progress := newMpbProgress(opt.Verbose)
		cfg := graph.DefaultSimplifyConfig(k)
		cfg.Progress = progress
		graph.Simplify(g, cfg)
		waitProgress(progress)

		removed := 0
		for id := 0; id < before; id++ {
			if g.Unitigs.Deleted(id) {
				removed++
			}
		}
		if opt.Verbose {
			log.Infof("removed %d/%d unitigs", removed, before)
		}

		makeOutDir(outDir, force, "graph simplify", opt.Verbose)
		outSt, err := storage.Open(outDir)
		checkError(err)
		outGrp, err := outSt.Group("dbgh5")
		checkError(err)

		checkError(graph.Save(g, outGrp, state))
		if opt.Verbose {
			log.Infof("simplified graph saved: %s", outDir)
		}
	},
}

// loadSolidSet drains every partition of the dsk solid-kmer bag into the
// in-memory set graph.BuildGraph expects (spec.md §4.6's "Built once,
// after counting"): the graph package takes a plain map rather than a
// SolidStore so it stays ignorant of how counting produced its input.
func loadSolidSet(dskGroup *storage.Group) (map[kmer.Value]uint32, error) {
	solids := dsk.NewSolidStore(dskGroup)
	if err := solids.DiscoverPartitions(); err != nil {
		return nil, err
	}
	keys := solids.Partitions()

	out := make(map[kmer.Value]uint32)
	for _, key := range keys {
		next, err := solids.Iterator(key)
		if err != nil {
			return nil, err
		}
		for {
			c, ok, err := next()
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			out[c.Kmer] = c.Count
		}
	}
	return out, nil
}

func init() {
	RootCmd.AddCommand(graphCmd)
	graphCmd.AddCommand(graphBuildCmd)
	graphCmd.AddCommand(graphSimplifyCmd)

	graphBuildCmd.Flags().StringP("count-dir", "i", "",
		formatFlagUsage(`Directory previously written by 'gatb count'.`))
	graphBuildCmd.Flags().StringP("out-dir", "O", "",
		formatFlagUsage(`Output directory.`))
	graphBuildCmd.Flags().BoolP("force", "", false,
		formatFlagUsage(`Overwrite existing output directory.`))
	graphBuildCmd.SetUsageTemplate(usageTemplate("-i <count dir> -O <out dir>"))

	graphSimplifyCmd.Flags().StringP("in-dir", "i", "",
		formatFlagUsage(`Directory previously written by 'gatb graph build'.`))
	graphSimplifyCmd.Flags().StringP("out-dir", "O", "",
		formatFlagUsage(`Output directory.`))
	graphSimplifyCmd.Flags().BoolP("force", "", false,
		formatFlagUsage(`Overwrite existing output directory.`))
	graphSimplifyCmd.SetUsageTemplate(usageTemplate("-i <graph dir> -O <out dir>"))
}
