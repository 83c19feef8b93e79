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
	"path/filepath"
	"time"

	"github.com/NeLLi-team/nsgtree/nsgtree/census"
	"github.com/NeLLi-team/nsgtree/nsgtree/corpus"
	"github.com/NeLLi-team/nsgtree/nsgtree/filter"
	"github.com/NeLLi-team/nsgtree/nsgtree/hits"
	"github.com/NeLLi-team/nsgtree/nsgtree/markers"
	"github.com/NeLLi-team/nsgtree/nsgtree/pipeline"
	"github.com/dustin/go-humanize"
	"github.com/shenwei356/bio/seq"
	"github.com/spf13/cobra"
)

var censusCmd = &cobra.Command{
	Use:   "census",
	Short: "Count marker hits per genome and filter genomes",
	Long: `Count marker hits per genome and filter genomes

Input:
  1. A profile HMM file of marker proteins (-m/--models), for the marker order.
  2. One or more domain tables of hmmsearch (-i/--hits), where target names
     are "<genome>|<protein>".
  3. Optional genome directories (-q/--query-dir, -r/--ref-dir). Genomes
     without any hit still get a row. Without them, genomes are those
     appearing in the hits, sorted by ID.

Output (-O/--out-dir), named after the profile file:
  <models>.counts             genome x marker matrix of distinct hit proteins
  <models>.stats.tsv          completeness and duplication of every genome
  <models>.removedtaxa        removed genomes, the reason and the failed metric
  <models>.counts.itol.txt    iTOL heatmap of hit counts
  <models>.completeness.png   histogram of marker completeness

Filtering, in priority order:
  1. completeness < --min-marker
  2. fraction of present markers with exactly two hits > --max-single-dup
  3. hits per present marker > --max-dup

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

		outDir := getFlagPath(cmd, "out-dir")
		if outDir == "" {
			checkError(fmt.Errorf("flag -O/--out-dir is needed"))
		}
		force := getFlagBool(cmd, "force")

		cfg := getConfig(cmd, opt)
		models, cen := buildCensus(cmd, opt, cfg, nil)

		makeOutDir(outDir, force, "output directory", opt.Verbose || opt.Log2File)
		prefix := filepath.Join(outDir, models)

		res, err := filter.Apply(cen, cfg.Thresholds())
		checkError(err)

		for _, o := range []struct {
			file  string
			write func(io.Writer) error
		}{
			{prefix + ".counts", cen.WriteCounts},
			{prefix + ".stats.tsv", cen.WriteStats},
			{prefix + ".counts.itol.txt", cen.WriteITOLHeatmap},
			{prefix + ".removedtaxa", res.WriteRemoved},
		} {
			writeOutput(o.file, opt.CompressionLevel, o.write)
		}
		if err = cen.PlotCompleteness(prefix+".completeness.png", cfg.MinMarkerFraction); err != nil {
			log.Warningf("failed to plot marker completeness: %s", err)
		}

		if opt.Verbose || opt.Log2File {
			cs := cen.Summarize()
			counts := res.Counts()
			log.Infof("%s genomes, %s markers", humanize.Comma(int64(cs.Genomes)), humanize.Comma(int64(len(cen.Markers))))
			log.Infof("  marker completeness: mean %.3f, stdev %.3f, median %.3f", cs.MeanCompleteness,
				cs.StdevCompleteness, cs.MedianCompleteness)
			log.Infof("  %d genomes without hits", cs.NoHits)
			log.Infof("%s genomes removed (completeness: %d, single-copy duplication: %d, duplication: %d)",
				humanize.Comma(int64(len(res.Removed))), counts[filter.BelowMinMarker],
				counts[filter.ExceedsMaxSingleDup], counts[filter.ExceedsMaxDup])
			log.Infof("outputs saved to %s", outDir)
		}
	},
}

// buildCensus reads markers and hit tables given by flags, and builds the
// census of the genomes in the given corpus, or in the genome directories
// if the corpus is nil. It returns the base name of the profile file.
func buildCensus(cmd *cobra.Command, opt *Options, cfg *pipeline.Config, cps *corpus.Corpus) (string, *census.Census) {
	modelFile := getFlagPath(cmd, "models")
	if modelFile == "" {
		checkError(fmt.Errorf("flag -m/--models is needed"))
	}
	hitFiles := getFlagStringSlice(cmd, "hits")
	if len(hitFiles) == 0 {
		checkError(fmt.Errorf("flag -i/--hits is needed"))
	}

	markerList, err := markers.ReadFile(modelFile)
	checkError(err)

	var genomes []string
	if cps != nil {
		genomes = cps.IDs()
	} else if queryDir := getFlagPath(cmd, "query-dir"); queryDir != "" {
		cps, err = corpus.Discover(queryDir, getFlagPath(cmd, "ref-dir"))
		checkError(err)
		genomes = cps.IDs()
	}

	hs := make([]*hits.Hit, 0, 1024)
	for _, file := range hitFiles {
		list, sum, err := hits.NewTable(file, cfg.HitOptions()).ReadAll()
		if sum != nil && sum.Malformed > 0 {
			log.Warningf("%s: %s malformed lines skipped, first at line %d: %s", file,
				humanize.Comma(int64(sum.Malformed)), sum.FirstMalformed, sum.FirstMalformedText)
		}
		checkError(err)
		hs = append(hs, list...)
	}
	if opt.Verbose || opt.Log2File {
		log.Infof("%s domain hits read from %d files", humanize.Comma(int64(len(hs))), len(hitFiles))
	}

	cen, err := census.Build(markerList, genomes, hs)
	checkError(err)
	if cen.Ignored.UnknownGenome > 0 {
		log.Warningf("%s hits of unknown genomes ignored", humanize.Comma(int64(cen.Ignored.UnknownGenome)))
	}
	if cen.Ignored.UnknownMarker > 0 {
		log.Warningf("%s hits of unknown markers ignored", humanize.Comma(int64(cen.Ignored.UnknownMarker)))
	}

	base := filepath.Base(modelFile)
	name, _, _ := filepathTrimExtension(base, nil)
	return name, cen
}

func addCensusInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("models", "m", "",
		formatFlagUsage(`Profile HMM file of marker proteins.`))
	cmd.Flags().StringSliceP("hits", "i", []string{},
		formatFlagUsage(`Domain tables of hmmsearch (--domtblout). Multiple values are supported.`))
	cmd.Flags().StringP("query-dir", "q", "",
		formatFlagUsage(`Directory of protein FASTA files of query genomes.`))
	cmd.Flags().StringP("ref-dir", "r", "",
		formatFlagUsage(`Directory of protein FASTA files of reference genomes.`))
}

func init() {
	RootCmd.AddCommand(censusCmd)

	addCensusInputFlags(censusCmd)
	censusCmd.Flags().StringP("out-dir", "O", "",
		formatFlagUsage(`Output directory.`))
	censusCmd.Flags().BoolP("force", "", false,
		formatFlagUsage(`Overwrite existing output directory.`))

	addConfigFlag(censusCmd)
	addFilterFlags(censusCmd)

	censusCmd.SetUsageTemplate(usageTemplate(""))
}
