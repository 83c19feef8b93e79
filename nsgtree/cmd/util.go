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
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/NeLLi-team/nsgtree/nsgtree/pipeline"
	"github.com/pkg/errors"
	"github.com/shenwei356/util/pathutil"
	"github.com/shenwei356/xopen"
	"github.com/spf13/cobra"
	"github.com/twotwotwo/sorts"
)

// Options contains the global flags
type Options struct {
	NumCPUs int
	Verbose bool

	LogFile  string
	Log2File bool

	CompressionLevel int
}

func getOptions(cmd *cobra.Command) *Options {
	threads := getFlagNonNegativeInt(cmd, "threads")
	if threads == 0 {
		threads = runtime.NumCPU()
	}

	sorts.MaxProcs = threads
	runtime.GOMAXPROCS(threads)

	logfile := getFlagString(cmd, "log")
	return &Options{
		NumCPUs: threads,
		Verbose: !getFlagBool(cmd, "quiet"),

		LogFile:  logfile,
		Log2File: logfile != "",

		CompressionLevel: -1,
	}
}

func makeOutDir(outDir string, force bool, logname string, verbose bool) {
	pwd, _ := os.Getwd()
	if outDir != "./" && outDir != "." && pwd != filepath.Clean(outDir) {
		existed, err := pathutil.DirExists(outDir)
		checkError(errors.Wrap(err, outDir))
		if existed {
			empty, err := pathutil.IsEmpty(outDir)
			checkError(errors.Wrap(err, outDir))
			if !empty {
				if force {
					if verbose {
						log.Infof("removing old output directory: %s", outDir)
					}
					checkError(os.RemoveAll(outDir))
				} else {
					checkError(fmt.Errorf("%s not empty: %s, use --force to overwrite", logname, outDir))
				}
			} else {
				checkError(os.RemoveAll(outDir))
			}
		}
		checkError(os.MkdirAll(outDir, 0777))
	} else {
		checkError(fmt.Errorf("%s should not be current directory", logname))
	}
}

var defaultExts = []string{".gz", ".xz", ".zst", ".bz2"}

func filepathTrimExtension(file string, suffixes []string) (string, string, string) {
	if suffixes == nil {
		suffixes = defaultExts
	}

	var e, e1, e2 string
	f := strings.ToLower(file)
	for _, s := range suffixes {
		e = s
		if strings.HasSuffix(f, e) {
			e2 = e
			file = file[0 : len(file)-len(e)]
			break
		}
	}

	e1 = filepath.Ext(file)
	name := file[0 : len(file)-len(e1)]

	return name, e1, e2
}

// readList reads the first column of non-empty lines, skipping "#" lines.
func readList(file string) ([]string, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	list := make([]string, 0, 128)
	scanner := bufio.NewScanner(fh)
	var line string
	for scanner.Scan() {
		line = strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		list = append(list, strings.Fields(line)[0])
	}
	return list, scanner.Err()
}

// ---------------------------------------------------------------------------
// configuration

func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "",
		formatFlagUsage(`Configuration file in YAML (.yml, .yaml) or TOML (.toml) format. `+
			`Flags given in the command line override values in the file.`))
}

func addFilterFlags(cmd *cobra.Command) {
	d := pipeline.DefaultConfig()
	cmd.Flags().Float64P("min-marker", "", d.MinMarkerFraction,
		formatFlagUsage(`Minimum fraction of markers present in a genome.`))
	cmd.Flags().Float64P("max-single-dup", "", d.MaxSingleCopyDupRatio,
		formatFlagUsage(`Maximum fraction of present markers with exactly two hits.`))
	cmd.Flags().Float64P("max-dup", "", d.MaxTotalDupRatio,
		formatFlagUsage(`Maximum number of hits per present marker.`))
	cmd.Flags().Float64P("max-malformed", "", d.MaxMalformedFraction,
		formatFlagUsage(`Maximum fraction of malformed lines in hit tables.`))
}

func addExtractFlags(cmd *cobra.Command) {
	d := pipeline.DefaultConfig()
	cmd.Flags().IntP("min-length", "", d.MinLength,
		formatFlagUsage(`Minimum length of extracted regions.`))
	cmd.Flags().Float64P("min-length-frac", "", d.MinLengthFraction,
		formatFlagUsage(`Minimum length of extracted regions, relative to the median length of the marker.`))
	cmd.Flags().BoolP("whole-protein", "", d.WholeProtein,
		formatFlagUsage(`Extract whole proteins instead of hit regions.`))
	cmd.Flags().BoolP("envelope", "", d.Envelope,
		formatFlagUsage(`Use envelope coordinates instead of alignment coordinates.`))
}

func addTreeFlags(cmd *cobra.Command) {
	d := pipeline.DefaultConfig()
	cmd.Flags().StringP("tree-method", "t", d.TreeMethod,
		formatFlagUsage(`Tree inference program. Available values: fasttree, iqtree.`))
	cmd.Flags().StringP("hmmsearch-cutoff", "", d.HMMSearchCutoff,
		formatFlagUsage(`Reporting threshold of hmmsearch, e.g., "-E 1e-5" or "--cut_ga".`))
	cmd.Flags().StringP("mafft-options", "", d.MAFFTOptions,
		formatFlagUsage(`Extra options of mafft, e.g., "--thread 4".`))
	cmd.Flags().StringP("trimal-options", "", d.TrimAlOptions,
		formatFlagUsage(`Options of trimal.`))
	cmd.Flags().StringP("fasttree-options", "", d.FastTreeOptions,
		formatFlagUsage(`Options of FastTree.`))
	cmd.Flags().StringP("iqtree-model", "", d.IQTreeModel,
		formatFlagUsage(`Substitution model of IQ-TREE.`))
	cmd.Flags().IntP("min-genomes", "", d.MinGenomes,
		formatFlagUsage(`The species tree needs more than this number of genomes in the supermatrix.`))
	cmd.Flags().BoolP("protein-trees", "", d.ProteinTrees,
		formatFlagUsage(`Infer a tree for every marker.`))
	cmd.Flags().BoolP("keep-analyses", "", d.KeepAnalyses,
		formatFlagUsage(`Keep the intermediate directory "analyses" instead of archiving it.`))
	cmd.Flags().StringP("clade-color", "", d.CladeColor,
		formatFlagUsage(`Hex color of query clades in iTOL files. By default, every clade has its own color.`))
}

// getConfig loads the configuration file if given, and overrides values
// with flags set in the command line.
func getConfig(cmd *cobra.Command, opt *Options) *pipeline.Config {
	var c *pipeline.Config
	var err error
	if cmd.Flags().Lookup("config") != nil {
		if file := getFlagPath(cmd, "config"); file != "" {
			c, err = pipeline.LoadConfig(file)
			checkError(err)
		}
	}
	if c == nil {
		c = pipeline.DefaultConfig()
	}
	c.Threads = opt.NumCPUs
	c.CompressionLevel = opt.CompressionLevel

	changed := func(flag string) bool {
		f := cmd.Flags().Lookup(flag)
		return f != nil && f.Changed
	}
	floats := []struct {
		flag string
		v    *float64
	}{
		{"min-marker", &c.MinMarkerFraction},
		{"max-single-dup", &c.MaxSingleCopyDupRatio},
		{"max-dup", &c.MaxTotalDupRatio},
		{"max-malformed", &c.MaxMalformedFraction},
		{"min-length-frac", &c.MinLengthFraction},
	}
	for _, f := range floats {
		if changed(f.flag) {
			*f.v = getFlagNonNegativeFloat64(cmd, f.flag)
		}
	}
	ints := []struct {
		flag string
		v    *int
	}{
		{"min-length", &c.MinLength},
		{"min-genomes", &c.MinGenomes},
	}
	for _, f := range ints {
		if changed(f.flag) {
			*f.v = getFlagNonNegativeInt(cmd, f.flag)
		}
	}
	bools := []struct {
		flag string
		v    *bool
	}{
		{"whole-protein", &c.WholeProtein},
		{"envelope", &c.Envelope},
		{"protein-trees", &c.ProteinTrees},
		{"keep-analyses", &c.KeepAnalyses},
	}
	for _, f := range bools {
		if changed(f.flag) {
			*f.v = getFlagBool(cmd, f.flag)
		}
	}
	strs := []struct {
		flag string
		v    *string
	}{
		{"tree-method", &c.TreeMethod},
		{"hmmsearch-cutoff", &c.HMMSearchCutoff},
		{"mafft-options", &c.MAFFTOptions},
		{"trimal-options", &c.TrimAlOptions},
		{"fasttree-options", &c.FastTreeOptions},
		{"iqtree-model", &c.IQTreeModel},
		{"clade-color", &c.CladeColor},
	}
	for _, f := range strs {
		if changed(f.flag) {
			*f.v = getFlagString(cmd, f.flag)
		}
	}

	checkError(c.Validate())
	return c
}
