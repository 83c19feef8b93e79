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
	"strconv"

	"github.com/NeLLi-team/nsgtree/nsgtree/phylo"
	"github.com/spf13/cobra"
)

var distanceCmd = &cobra.Command{
	Use:   "distance",
	Short: "Compute path lengths between leaves of a tree",
	Long: `Compute path lengths between leaves of a tree

Pairs of leaf labels are given as positional arguments,
e.g., "nsgtree utils distance -T tree.nwk A B C D" for A-B and C-D.

Output format (tab-delimited):
  leaf1, leaf2, distance

`,
	Run: func(cmd *cobra.Command, args []string) {
		getOptions(cmd)

		treeFile := getFlagPath(cmd, "tree")
		if treeFile == "" {
			checkError(fmt.Errorf("flag -T/--tree is needed"))
		}
		if len(args) == 0 || len(args)%2 != 0 {
			checkError(fmt.Errorf("pairs of leaf labels needed"))
		}

		t, err := phylo.ReadNewickFile(treeFile)
		checkError(err)

		fmt.Println("leaf1\tleaf2\tdistance")
		for i := 0; i < len(args); i += 2 {
			d, err := t.Distance(args[i], args[i+1])
			checkError(err)
			fmt.Printf("%s\t%s\t%s\n", args[i], args[i+1], strconv.FormatFloat(d, 'f', -1, 64))
		}
	},
}

func init() {
	utilsCmd.AddCommand(distanceCmd)

	distanceCmd.Flags().StringP("tree", "T", "",
		formatFlagUsage(`Tree file in Newick format.`))

	distanceCmd.SetUsageTemplate(usageTemplate(""))
}
