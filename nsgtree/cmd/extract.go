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
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/NeLLi-team/nsgtree/nsgtree/corpus"
	"github.com/NeLLi-team/nsgtree/nsgtree/extract"
	"github.com/NeLLi-team/nsgtree/nsgtree/filter"
	"github.com/dustin/go-humanize"
	"github.com/shenwei356/bio/seq"
	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract marker sequences of retained genomes",
	Long: `Extract marker sequences of retained genomes

For every retained genome and marker, the hit with the best score
(ties broken by the lower E-value) is the representative, and its
region is extracted from the protein, with alignment coordinates by
default. Sequences are written to <out-dir>/<marker>.faa, with headers
of "<genome>|<protein>".

Retained genomes:
  By default, genomes are filtered with the thresholds, like "nsgtree census".
  A list of removed genomes (-R/--removed), e.g., the <models>.removedtaxa
  file, can be given instead.

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

		queryDir := getFlagPath(cmd, "query-dir")
		if queryDir == "" {
			checkError(fmt.Errorf("flag -q/--query-dir is needed"))
		}
		outDir := getFlagPath(cmd, "out-dir")
		if outDir == "" {
			checkError(fmt.Errorf("flag -O/--out-dir is needed"))
		}
		force := getFlagBool(cmd, "force")
		removedFile := getFlagPath(cmd, "removed")

		cfg := getConfig(cmd, opt)

		cps, err := corpus.Discover(queryDir, getFlagPath(cmd, "ref-dir"))
		checkError(err)
		_, cen := buildCensus(cmd, opt, cfg, cps)

		var retained []string
		if removedFile != "" {
			removed, err := filter.ReadRemovedFile(removedFile)
			checkError(err)
			skip := make(map[string]struct{}, len(removed))
			for _, g := range removed {
				skip[g] = struct{}{}
			}
			retained = make([]string, 0, len(cen.Genomes))
			for _, g := range cen.Genomes {
				if _, ok := skip[g]; !ok {
					retained = append(retained, g)
				}
			}
		} else {
			res, err := filter.Apply(cen, cfg.Thresholds())
			checkError(err)
			retained = res.Retained()
		}
		if opt.Verbose || opt.Log2File {
			log.Infof("%s of %s genomes retained", humanize.Comma(int64(len(retained))),
				humanize.Comma(int64(len(cen.Genomes))))
		}

		eopt := cfg.ExtractOptions()
		if opt.Verbose {
			eopt.Progress = os.Stderr
		}
		sets, err := extract.Extract(context.Background(), cen, retained, corpus.NewFastaSource(cps), eopt)
		checkError(err)

		makeOutDir(outDir, force, "output directory", opt.Verbose || opt.Log2File)

		var n int
		for _, set := range sets {
			if set.Short > 0 {
				log.Warningf("marker %s: %d short sequences removed", set.Marker, set.Short)
			}
			writeOutput(filepath.Join(outDir, set.Marker+".faa"), opt.CompressionLevel, func(w io.Writer) error {
				return set.WriteFasta(w, corpus.LineWidth)
			})
			n += len(set.Sequences)
		}

		if opt.Verbose || opt.Log2File {
			log.Infof("%s sequences of %d markers saved to %s", humanize.Comma(int64(n)), len(sets), outDir)
		}
	},
}

func init() {
	RootCmd.AddCommand(extractCmd)

	addCensusInputFlags(extractCmd)
	extractCmd.Flags().StringP("removed", "R", "",
		formatFlagUsage(`File of removed genomes, one per line in the first column.`))
	extractCmd.Flags().StringP("out-dir", "O", "",
		formatFlagUsage(`Output directory.`))
	extractCmd.Flags().BoolP("force", "", false,
		formatFlagUsage(`Overwrite existing output directory.`))

	addConfigFlag(extractCmd)
	addFilterFlags(extractCmd)
	addExtractFlags(extractCmd)

	extractCmd.SetUsageTemplate(usageTemplate(""))
}
