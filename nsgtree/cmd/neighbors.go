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
	"fmt"
	"io"
	"os"
	"time"

	"github.com/NeLLi-team/nsgtree/nsgtree/phylo"
	"github.com/spf13/cobra"
)

var neighborsCmd = &cobra.Command{
	Use:   "neighbors",
	Short: "Find the closest reference of every query genome in a tree",
	Long: `Find the closest reference of every query genome in a tree

The closest reference of a query leaf is the reference leaf with the
shortest path length in the tree. Ties are broken by the number of
branches on the path, then by the order of leaves in the tree.

Query leaves are given with a list file (-l/--query-list), or a label
prefix (-p/--query-prefix). Other leaves are references.

Output format (tab-delimited):
  Query, Closest_Relative, Distance
  Queries without any reference or absent from the tree have "nd".

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
		t, part := readTreeAndQueries(cmd, opt)

		res := phylo.NearestNeighbors(t, part)
		if len(res.Missing) > 0 {
			log.Warningf("%d query genomes absent from the tree", len(res.Missing))
		}
		if len(res.Unpaired) > 0 {
			log.Warningf("%d query genomes without any reference", len(res.Unpaired))
		}

		writeOutput(outFile, opt.CompressionLevel, func(w io.Writer) error {
			return phylo.WritePairs(w, res)
		})

		if opt.Verbose || opt.Log2File {
			log.Infof("%d query genomes paired", len(res.Pairs))
		}
	},
}

// readTreeAndQueries reads the tree and query leaves given by flags.
func readTreeAndQueries(cmd *cobra.Command, opt *Options) (*phylo.Tree, *phylo.Partition) {
	treeFile := getFlagPath(cmd, "tree")
	if treeFile == "" {
		checkError(fmt.Errorf("flag -T/--tree is needed"))
	}
	listFile := getFlagPath(cmd, "query-list")
	prefix := getFlagString(cmd, "query-prefix")
	if (listFile == "") == (prefix == "") {
		checkError(fmt.Errorf("one of the flags -l/--query-list and -p/--query-prefix is needed"))
	}

	t, err := phylo.ReadNewickFile(treeFile)
	checkError(err)

	var part *phylo.Partition
	if listFile != "" {
		part, err = phylo.ReadPartitionFile(listFile)
		checkError(err)
	} else {
		part = phylo.PartitionByPrefix(t, prefix)
	}
	if opt.Verbose || opt.Log2File {
		log.Infof("%d leaves in the tree, %d query genomes", t.NumLeaves(), part.Len())
	}
	return t, part
}

func addTreeInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("tree", "T", "",
		formatFlagUsage(`Tree file in Newick format.`))
	cmd.Flags().StringP("query-list", "l", "",
		formatFlagUsage(`File of query leaves, one per line.`))
	cmd.Flags().StringP("query-prefix", "p", "",
		formatFlagUsage(`Label prefix of query leaves.`))
	cmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file, supports the ".gz" suffix ("-" for stdout).`))
}

func init() {
	RootCmd.AddCommand(neighborsCmd)

	addTreeInputFlags(neighborsCmd)

	neighborsCmd.SetUsageTemplate(usageTemplate(""))
}
