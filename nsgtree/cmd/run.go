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
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NeLLi-team/nsgtree/nsgtree/pipeline"
	"github.com/NeLLi-team/nsgtree/nsgtree/tools"
	"github.com/dustin/go-humanize"
	"github.com/shenwei356/bio/seq"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the whole workflow, from genome proteins to the species tree",
	Long: `Run the whole workflow, from genome proteins to the species tree

Input:
  1. A directory of query genomes (-q/--query-dir), one protein FASTA file
     per genome, with the file extension of .faa, optionally compressed
     (.gz, .xz, .zst, .bz2). The genome ID is the file name with
     extensions removed. Subdirectories are not searched.
  2. An optional directory of reference genomes (-r/--ref-dir).
  3. A profile HMM file of marker proteins (-m/--models).

Output (-O/--out-dir, default: <query-dir>/nsgt_out/<analysis name>):
  <name>.mafft_t              supermatrix alignment
  <name>.partitions.txt       marker partitions of the supermatrix
  <name>.treefile             species tree
  <name>.pairs.tsv            closest reference of every query genome
  <name>.clades.tsv           query-only clades
  <models>.completeness.png   marker completeness of genomes
  itol/                       iTOL datasets
  workflow.log                genome numbers of the analysis
  run.toml                    configuration and summary of the run
  analyses.tar.gz             intermediate files, or analyses/ with --keep-analyses

  The analysis name is <query dir>-<ref dir>-<models>-<method>-perc<min marker*10>.

Configuration:
  Values are read from the configuration file (-c/--config) if given,
  and flags given in the command line override them.

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

		// ---------------------------------------------------------------
		// flags

		queryDir := getFlagPath(cmd, "query-dir")
		if queryDir == "" {
			checkError(fmt.Errorf("flag -q/--query-dir is needed"))
		}
		refDir := getFlagPath(cmd, "ref-dir")
		models := getFlagPath(cmd, "models")
		if models == "" {
			checkError(fmt.Errorf("flag -m/--models is needed"))
		}
		outDir := getFlagPath(cmd, "out-dir")
		force := getFlagBool(cmd, "force")
		skipCheck := getFlagBool(cmd, "skip-check")

		cfg := getConfig(cmd, opt)

		if !skipCheck {
			checkError(tools.CheckPrograms(tools.DefaultExecutor, cfg.Programs()...))
		}

		// ---------------------------------------------------------------

		p := pipeline.New(cfg, tools.DefaultExecutor)
		p.Log = workflowLogger(opt)
		p.Version = VERSION
		if opt.Verbose {
			p.Progress = os.Stderr
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sum, err := p.Run(ctx, pipeline.Input{
			QueryDir: queryDir,
			RefDir:   refDir,
			Models:   models,
			OutDir:   outDir,
			Force:    force,
		})
		if err != nil {
			if sum != nil {
				log.Warningf("outputs written so far are kept in %s", sum.OutDir)
			}
			checkError(err)
		}

		if opt.Verbose || opt.Log2File {
			log.Info()
			log.Infof("%s of %s genomes in the species tree, %s columns",
				humanize.Comma(int64(sum.FinalGenomes)), humanize.Comma(int64(sum.Genomes)),
				humanize.Comma(int64(sum.Columns)))
			log.Infof("outputs saved to %s", sum.OutDir)
		}
	},
}

func init() {
	RootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("query-dir", "q", "",
		formatFlagUsage(`Directory of protein FASTA files of query genomes.`))
	runCmd.Flags().StringP("ref-dir", "r", "",
		formatFlagUsage(`Directory of protein FASTA files of reference genomes.`))
	runCmd.Flags().StringP("models", "m", "",
		formatFlagUsage(`Profile HMM file of marker proteins.`))
	runCmd.Flags().StringP("out-dir", "O", "",
		formatFlagUsage(`Output directory. Default: <query-dir>/nsgt_out/<analysis name>.`))
	runCmd.Flags().BoolP("force", "", false,
		formatFlagUsage(`Overwrite existing output directory.`))
	runCmd.Flags().BoolP("skip-check", "", false,
		formatFlagUsage(`Skip checking external programs in PATH.`))

	addConfigFlag(runCmd)
	addFilterFlags(runCmd)
	addExtractFlags(runCmd)
	addTreeFlags(runCmd)

	runCmd.SetUsageTemplate(usageTemplate(""))
}
