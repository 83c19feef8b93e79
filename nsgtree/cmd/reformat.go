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
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/NeLLi-team/nsgtree/nsgtree/corpus"
	"github.com/dustin/go-humanize"
	"github.com/shenwei356/bio/seq"
	"github.com/spf13/cobra"
)

var reformatCmd = &cobra.Command{
	Use:   "reformat",
	Short: "Prefix protein IDs with genome IDs",
	Long: `Prefix protein IDs with genome IDs

Every genome protein file in the input directory (-i/--in-dir) is rewritten
to <out-dir>/<genome>.faa, where sequence headers become "<genome>|<protein>".
The genome ID is the file name with extensions removed. Protein IDs already
prefixed with the genome ID are kept.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		seq.ValidateSeq = false

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

		inDir := getFlagPath(cmd, "in-dir")
		if inDir == "" {
			checkError(fmt.Errorf("flag -i/--in-dir is needed"))
		}
		outDir := getFlagPath(cmd, "out-dir")
		if outDir == "" {
			checkError(fmt.Errorf("flag -O/--out-dir is needed"))
		}
		force := getFlagBool(cmd, "force")

		cps, err := corpus.Discover(inDir, "")
		checkError(err)
		makeOutDir(outDir, force, "output directory", opt.Verbose || opt.Log2File)

		counts := make([]int, len(cps.Genomes))
		tokens := make(chan int, opt.NumCPUs)
		var wg sync.WaitGroup
		for i, g := range cps.Genomes {
			tokens <- 1
			wg.Add(1)
			go func(i int, g corpus.Genome) {
				defer func() {
					wg.Done()
					<-tokens
				}()
				n, err := corpus.Reformat(g.File, filepath.Join(outDir, g.ID+".faa"), g.ID)
				checkError(err)
				counts[i] = n
			}(i, g)
		}
		wg.Wait()

		var total int
		for i, n := range counts {
			if n == 0 {
				log.Warningf("no proteins in genome %s", cps.Genomes[i].ID)
			}
			total += n
		}
		if opt.Verbose || opt.Log2File {
			log.Infof("%s proteins of %s genomes saved to %s", humanize.Comma(int64(total)),
				humanize.Comma(int64(len(counts))), outDir)
		}
	},
}

func init() {
	utilsCmd.AddCommand(reformatCmd)

	reformatCmd.Flags().StringP("in-dir", "i", "",
		formatFlagUsage(`Directory of genome protein files.`))
	reformatCmd.Flags().StringP("out-dir", "O", "",
		formatFlagUsage(`Output directory.`))
	reformatCmd.Flags().BoolP("force", "", false,
		formatFlagUsage(`Overwrite existing output directory.`))

	reformatCmd.SetUsageTemplate(usageTemplate(""))
}
