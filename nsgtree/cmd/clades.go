// Copyright © 2023-2024 The NSGTree Authors
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
	"io"
	"os"
	"time"

	"github.com/NeLLi-team/nsgtree/nsgtree/phylo"
	"github.com/spf13/cobra"
)

var cladesCmd = &cobra.Command{
	Use:   "clades",
	Short: "Find maximal clades consisting of query genomes only",
	Long: `Find maximal clades consisting of query genomes only

A clade is query-only if all its leaves are queries, and it is maximal if
its parent clade is not query-only. Query leaves not in any clade of
at least two leaves are singletons.

Query leaves are given with a list file (-l/--query-list), or a label
prefix (-p/--query-prefix). Other leaves are references.

Output:
  1. An iTOL TREE_COLORS dataset (-o/--out-file).
  2. Optional clade membership of query genomes (-M/--membership),
     tab-delimited: taxon, clade, color.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		var fhLog *os.File
		if opt.Log2File {
			fhLog = addLog(opt.LogFile, opt.Verbose)
		}
		timeStart := time.Now()
		defer func() {
			if opt.Verbose || opt.Log2File {
				log.Info()
				log.Infof("elapsed time: %s", time.Since(timeStart))
				log.Info()
			}
			if opt.Log2File {
				fhLog.Close()
			}
		}()

		outFile := getFlagPath(cmd, "out-file")
		memFile := getFlagPath(cmd, "membership")
		color := getFlagString(cmd, "color")
		if color != "" {
			var err error
			color, err = phylo.ParseColor(color)
			checkError(err)
		}

		t, part := readTreeAndQueries(cmd, opt)
		res := phylo.MaximalClades(t, part)

		writeOutput(outFile, opt.CompressionLevel, func(w io.Writer) error {
			return phylo.WriteITOL(w, res, color)
		})
		if memFile != "" {
			writeOutput(memFile, opt.CompressionLevel, func(w io.Writer) error {
				return phylo.WriteMembership(w, res, color)
			})
		}

		if opt.Verbose || opt.Log2File {
			log.Infof("%d query clades, %d single query genomes", len(res.Clades), len(res.Singletons))
		}
	},
}

func init() {
	RootCmd.AddCommand(cladesCmd)

	addTreeInputFlags(cladesCmd)
	cladesCmd.Flags().StringP("membership", "M", "",
		formatFlagUsage(`Out file of clade membership of query genomes.`))
	cladesCmd.Flags().StringP("color", "", "",
		formatFlagUsage(`Hex color of all clades, e.g., "#ff0000". By default, every clade has its own color.`))

	cladesCmd.SetUsageTemplate(usageTemplate(""))
}
