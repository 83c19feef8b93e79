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
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/NeLLi-team/nsgtree/nsgtree/corpus"
	"github.com/NeLLi-team/nsgtree/nsgtree/errs"
	"github.com/NeLLi-team/nsgtree/nsgtree/markers"
	"github.com/NeLLi-team/nsgtree/nsgtree/supermatrix"
	"github.com/dustin/go-humanize"
	"github.com/shenwei356/bio/seq"
	"github.com/spf13/cobra"
)

var concatCmd = &cobra.Command{
	Use:   "concat",
	Short: "Concatenate marker alignments into a supermatrix",
	Long: `Concatenate marker alignments into a supermatrix

Input:
  A directory (-i/--in-dir) of trimmed alignments of markers, with the
  file suffix of --suffix. The marker name is the file name with the suffix
  removed. Row labels are "<genome>|<protein>" or "<genome>".

Output:
  1. The supermatrix in FASTA format (-o/--out-file). Genomes absent from
     a marker get gaps. Genomes absent from all markers are not written.
  2. Optional marker partitions (-p/--partitions), "<model>, <marker> = <start>-<end>".

Attention:
  1. Blocks follow the order of markers in the profile file (-m/--models) if given,
     otherwise the order of marker names.
  2. Genomes can be limited to a list (-g/--genome-list).
  3. It fails if the number of genomes with any aligned marker is not
     greater than --min-genomes.

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
		suffix := getFlagString(cmd, "suffix")
		if suffix == "" {
			checkError(fmt.Errorf("flag --suffix should not be empty"))
		}
		outFile := getFlagPath(cmd, "out-file")
		partFile := getFlagPath(cmd, "partitions")
		model := getFlagString(cmd, "partition-model")
		minGenomes := getFlagNonNegativeInt(cmd, "min-genomes")
		lineWidth := getFlagNonNegativeInt(cmd, "line-width")

		var markerList []string
		var err error
		if file := getFlagPath(cmd, "models"); file != "" {
			markerList, err = markers.ReadFile(file)
			checkError(err)
		}
		var genomes []string
		if file := getFlagPath(cmd, "genome-list"); file != "" {
			genomes, err = readList(file)
			checkError(err)
		}

		pattern := regexp.MustCompile(regexp.QuoteMeta(suffix) + "$")
		files, err := corpus.ListFiles(inDir, pattern)
		checkError(err)
		if len(files) == 0 {
			checkError(fmt.Errorf("no files with suffix %s found in %s", suffix, inDir))
		}

		blocks := make([]*supermatrix.Block, 0, len(files))
		seen := make(map[string]struct{}, len(files))
		for _, file := range files {
			marker := strings.TrimSuffix(filepath.Base(file), suffix)
			b, err := supermatrix.ReadBlock(file, marker)
			checkError(err)
			blocks = append(blocks, b)
			seen[marker] = struct{}{}
		}
		for _, m := range markerList {
			if _, ok := seen[m]; !ok {
				blocks = append(blocks, supermatrix.MissingBlock(m))
			}
		}
		if opt.Verbose || opt.Log2File {
			log.Infof("%s alignment files read", humanize.Comma(int64(len(files))))
		}

		sm, err := supermatrix.Assemble(blocks, genomes, &supermatrix.Options{
			MarkerOrder: markerList,
			Gap:         '-',
			MinGenomes:  minGenomes,
		})
		if err != nil && (sm == nil || !errors.Is(err, errs.ErrFatal)) {
			checkError(err)
		}
		if sm != nil {
			if len(sm.Missing) > 0 {
				log.Warningf("%d markers without alignment: %s", len(sm.Missing), strings.Join(sm.Missing, ", "))
			}
			if len(sm.Empty) > 0 {
				log.Warningf("%d genomes without any aligned marker: %s", len(sm.Empty), strings.Join(sm.Empty, ", "))
			}
			writeOutput(outFile, opt.CompressionLevel, func(w io.Writer) error {
				return sm.WriteFasta(w, lineWidth, true)
			})
			if partFile != "" {
				writeOutput(partFile, opt.CompressionLevel, func(w io.Writer) error {
					return sm.WritePartitions(w, model)
				})
			}
			if opt.Verbose || opt.Log2File {
				log.Infof("supermatrix: %s genomes, %s columns, %d markers",
					humanize.Comma(int64(sm.Informative())), humanize.Comma(int64(sm.Width)), len(sm.Partitions))
			}
		}
		checkError(err)
	},
}

func init() {
	RootCmd.AddCommand(concatCmd)

	concatCmd.Flags().StringP("in-dir", "i", "",
		formatFlagUsage(`Directory of trimmed alignments of markers.`))
	concatCmd.Flags().StringP("suffix", "s", ".mafft_t",
		formatFlagUsage(`File suffix of alignments.`))
	concatCmd.Flags().StringP("models", "m", "",
		formatFlagUsage(`Profile HMM file of marker proteins, for the order of markers.`))
	concatCmd.Flags().StringP("genome-list", "g", "",
		formatFlagUsage(`File of genomes to keep, one per line.`))
	concatCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file, supports the ".gz" suffix ("-" for stdout).`))
	concatCmd.Flags().StringP("partitions", "p", "",
		formatFlagUsage(`Out file of marker partitions.`))
	concatCmd.Flags().StringP("partition-model", "", "LG",
		formatFlagUsage(`Substitution model in the partition file.`))
	concatCmd.Flags().IntP("min-genomes", "", 3,
		formatFlagUsage(`The number of genomes with any aligned marker should be greater than this value.`))
	concatCmd.Flags().IntP("line-width", "w", corpus.LineWidth,
		formatFlagUsage(`Line width of sequences (0 for no wrap).`))

	concatCmd.SetUsageTemplate(usageTemplate(""))
}
