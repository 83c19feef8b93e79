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
	"strings"

	"github.com/NeLLi-team/nsgtree/nsgtree/pipeline"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Summarize the record of a run",
	Long: `Summarize the record of a run

The record is the file run.toml in the output directory of "nsgtree run".

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		file := getFlagPath(cmd, "in-file")
		if file == "" {
			checkError(fmt.Errorf("flag -i/--in-file is needed"))
		}
		outFile := getFlagPath(cmd, "out-file")

		r, err := pipeline.ReadRecord(file)
		checkError(err)

		writeOutput(outFile, opt.CompressionLevel, func(w io.Writer) error {
			s := r.Summary
			if s == nil {
				s = &pipeline.Summary{}
			}
			rows := [][2]string{
				{"version", r.Version},
				{"analysis", s.Name},
				{"query_dir", r.QueryDir},
				{"reference_dir", r.RefDir},
				{"models", r.Models},
				{"start", r.Start.Format("2006-01-02 15:04:05")},
				{"elapsed", r.Elapsed},
				{"genomes", humanize.Comma(int64(s.Genomes))},
				{"query_genomes", humanize.Comma(int64(s.Queries))},
				{"proteins", humanize.Comma(int64(s.Proteins))},
				{"markers", humanize.Comma(int64(s.Markers))},
				{"hits", humanize.Comma(int64(s.Hits))},
				{"malformed_lines", humanize.Comma(int64(s.MalformedLines))},
				{"removed_genomes", humanize.Comma(int64(s.Removed))},
				{"retained_genomes", humanize.Comma(int64(s.Retained))},
				{"aligned_markers", humanize.Comma(int64(s.AlignedMarkers))},
				{"failed_markers", strings.Join(s.FailedMarkers, ",")},
				{"protein_trees", humanize.Comma(int64(s.ProteinTrees))},
				{"final_genomes", humanize.Comma(int64(s.FinalGenomes))},
				{"columns", humanize.Comma(int64(s.Columns))},
				{"species_tree", s.SpeciesTree},
				{"pairs", humanize.Comma(int64(s.Pairs))},
				{"clades", humanize.Comma(int64(s.Clades))},
				{"error", r.Error},
			}
			for _, row := range rows {
				if _, err := fmt.Fprintf(w, "%s\t%s\n", row[0], row[1]); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

func init() {
	utilsCmd.AddCommand(recordCmd)

	recordCmd.Flags().StringP("in-file", "i", "",
		formatFlagUsage(`Record file, i.e., run.toml.`))
	recordCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file, supports the ".gz" suffix ("-" for stdout).`))

	recordCmd.SetUsageTemplate(usageTemplate(""))
}
