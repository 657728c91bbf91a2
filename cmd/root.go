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

// Package cmd is the gatb command-line front end: subcommands wire the
// counting pipeline (gatbcore/dsk) and the graph pipeline
// (gatbcore/membership, gatbcore/graph) onto flags, a config file and a
// logger, the same front-end shape LexicMap wires onto its indexing and
// searching pipelines.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// RootCmd is the entry point every subcommand registers itself on via
// init()'s RootCmd.AddCommand(...).
var RootCmd = &cobra.Command{
	Use:   "gatb",
	Short: "gatb - external k-mer counting and de Bruijn graph construction",
	Long: fmt.Sprintf(`gatb - external k-mer counting and de Bruijn graph construction

Version: %s

Documentation: https://github.com/gatb-go/gatbcore

`, VERSION),
	SilenceUsage: true,
}

// Execute runs the selected subcommand, the single call cmd/gatb/main.go
// makes. Subcommands report their own failures through checkError (exit
// status 1), so an error returned here is a command-line parse failure
// and exits with status 2.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(2)
	}
}

func init() {
	RootCmd.PersistentFlags().IntP("threads", "j", 0,
		formatFlagUsage(`Number of CPUs to use. By default it's set to the number of CPUs.`))
	RootCmd.PersistentFlags().BoolP("quiet", "q", false,
		formatFlagUsage(`Do not print any verbose information.`))
	RootCmd.PersistentFlags().StringP("log", "", "",
		formatFlagUsage(`Also write log messages to this file. With -q/--quiet, they go to this file only.`))

	RootCmd.SetUsageTemplate(usageTemplate(""))
}
