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

// Package pipeline runs the whole workflow, from genome protein files and
// marker profiles to the species tree and the placement of query genomes.
package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/NeLLi-team/nsgtree/nsgtree/census"
	"github.com/NeLLi-team/nsgtree/nsgtree/corpus"
	"github.com/NeLLi-team/nsgtree/nsgtree/errs"
	"github.com/NeLLi-team/nsgtree/nsgtree/extract"
	"github.com/NeLLi-team/nsgtree/nsgtree/filter"
	"github.com/NeLLi-team/nsgtree/nsgtree/hits"
	"github.com/NeLLi-team/nsgtree/nsgtree/markers"
	"github.com/NeLLi-team/nsgtree/nsgtree/phylo"
	"github.com/NeLLi-team/nsgtree/nsgtree/pool"
	"github.com/NeLLi-team/nsgtree/nsgtree/supermatrix"
	"github.com/NeLLi-team/nsgtree/nsgtree/tools"
	"github.com/dustin/go-humanize"
)

// Logger is satisfied by *logging.Logger.
type Logger interface {
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(format string, args ...interface{})    {}
func (nopLogger) Warningf(format string, args ...interface{}) {}

// Tools are the external programs of the workflow.
type Tools struct {
	Searcher    tools.Searcher
	Aligner     tools.Aligner
	Trimmer     tools.Trimmer
	SpeciesTree tools.TreeBuilder
	ProteinTree tools.TreeBuilder // one thread per tree
}

// NewTools returns the tools of a configuration.
// A nil executor runs programs with os/exec.
func NewTools(c *Config, e tools.Executor) *Tools {
	h := tools.NewHMMSearch(c.HMMSearchCutoff, c.Threads)
	h.Program = c.HMMSearchProgram
	h.Exec = e

	m := tools.NewMAFFT(c.MAFFTOptions)
	m.Program = c.MAFFTProgram
	m.Exec = e

	t := tools.NewTrimAl(c.TrimAlOptions)
	t.Program = c.TrimAlProgram
	t.Exec = e

	method := c.Method()
	opt := c.TreeOptions(c.Threads)
	opt.Exec = e
	species := tools.NewTreeBuilder(method, opt)
	opt.Threads = 1
	protein := tools.NewTreeBuilder(method, opt)

	return &Tools{Searcher: h, Aligner: m, Trimmer: t, SpeciesTree: species, ProteinTree: protein}
}

// Programs returns the programs needed by a configuration.
func (c *Config) Programs() []string {
	return []string{c.HMMSearchProgram, c.MAFFTProgram, c.TrimAlProgram,
		c.TreeOptions(c.Threads).Program(c.Method())}
}

// Input is the input of a run.
type Input struct {
	QueryDir string
	RefDir   string // optional
	Models   string // profile HMM file

	// OutDir defaults to <QueryDir>/nsgt_out/<analysis name>.
	OutDir string
	Force  bool // overwrite a non-empty OutDir
}

// Summary summarizes a run.
type Summary struct {
	Name   string `toml:"name"`
	OutDir string `toml:"outdir"`

	Genomes  int `toml:"genomes"`
	Queries  int `toml:"queries"`
	Proteins int `toml:"proteins"`
	Markers  int `toml:"markers"`

	Hits           int `toml:"hits"`
	MalformedLines int `toml:"malformed_lines"`

	Removed  int `toml:"removed_genomes"`
	Retained int `toml:"retained_genomes"`

	AlignedMarkers int      `toml:"aligned_markers"`
	FailedMarkers  []string `toml:"failed_markers"`
	ProteinTrees   int      `toml:"protein_trees"`

	FinalGenomes int `toml:"final_genomes"`
	Columns      int `toml:"columns"`

	SpeciesTree string `toml:"species_tree"`
	Pairs       int    `toml:"pairs"`
	Clades      int    `toml:"clades"`
}

// Pipeline runs the workflow.
type Pipeline struct {
	Config *Config
	Tools  *Tools

	Log      Logger
	Progress io.Writer // progress bars, none if nil
	Version  string
}

// New returns a pipeline with tools running programs through e.
func New(c *Config, e tools.Executor) *Pipeline {
	return &Pipeline{Config: c, Tools: NewTools(c, e), Log: nopLogger{}}
}

// MessageTooFewGenomes is written to the workflow log when the species
// tree is not inferred.
const MessageTooFewGenomes = "Too few genomes in the supermatrix alignment. " +
	"Check filtering thresholds to increase numbers of genomes to be retained."

// Run runs the workflow. The returned summary is not nil once the output
// directory is created, even if an error is returned. Outputs written before
// an error are kept.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Summary, error) {
	timeStart := time.Now()
	cfg := p.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if p.Log == nil {
		p.Log = nopLogger{}
	}
	log := p.Log
	if in.QueryDir == "" {
		return nil, errs.Config("query directory needed")
	}
	if in.Models == "" {
		return nil, errs.Config("marker profile file needed")
	}

	markerList, err := markers.ReadFile(in.Models)
	if err != nil {
		return nil, err
	}
	cps, err := corpus.Discover(in.QueryDir, in.RefDir)
	if err != nil {
		return nil, err
	}

	method := cfg.Method()
	name := AnalysisName(in.QueryDir, in.RefDir, in.Models, method, cfg.MinMarkerFraction)
	outdir := in.OutDir
	if outdir == "" {
		outdir = filepath.Join(in.QueryDir, "nsgt_out", name)
	}
	l := NewLayout(outdir, name, in.Models, method)
	if err = l.Create(in.Force); err != nil {
		return nil, errs.Wrap(errs.ErrConfig, err, "creating output directory")
	}
	log.Infof("analysis: %s", name)
	log.Infof("output directory: %s", outdir)

	wlog, err := newWorkflowLog(l.WorkflowLog(), p.Version)
	if err != nil {
		return nil, err
	}
	defer wlog.Close()

	sum := &Summary{
		Name:    name,
		OutDir:  outdir,
		Genomes: len(cps.Genomes),
		Queries: cps.NumQueries(),
		Markers: len(markerList),
	}
	log.Infof("%s genomes (%s queries), %s markers", humanize.Comma(int64(sum.Genomes)),
		humanize.Comma(int64(sum.Queries)), humanize.Comma(int64(sum.Markers)))
	wlog.Printf("Number of genomes in the analysis: %d", sum.Genomes)
	wlog.Separator()

	err = p.run(ctx, cfg, in, cps, markerList, l, wlog, sum)

	if rerr := writeRecord(l.RunRecord(), &Record{
		Version:  p.Version,
		QueryDir: in.QueryDir,
		RefDir:   in.RefDir,
		Models:   in.Models,
		Start:    timeStart,
		End:      time.Now(),
		Elapsed:  time.Since(timeStart).String(),
		Error:    errorString(err),
		Config:   cfg,
		Summary:  sum,
	}); rerr != nil && err == nil {
		err = rerr
	}
	return sum, err
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (p *Pipeline) run(ctx context.Context, cfg *Config, in Input, cps *corpus.Corpus, markerList []string,
	l *Layout, wlog *workflowLog, sum *Summary) error {
	log := p.Log
	var err error

	// -------------------------------------------------------------------
	// reformat and merge genome files

	log.Infof("reformatting %s genome files", humanize.Comma(int64(len(cps.Genomes))))
	nProteins := make([]int, len(cps.Genomes))
	err = pool.ForEach(ctx, len(cps.Genomes), cfg.Threads, p.Progress, "reformatted genomes", func(i int) error {
		g := cps.Genomes[i]
		n, err := corpus.Reformat(g.File, l.ReformattedFaa(g.ID), g.ID)
		if err != nil {
			if errs.KindOf(err) == nil {
				err = errs.Wrap(errs.ErrData, err, "reformatting %s", g.File)
			}
			return err
		}
		nProteins[i] = n
		return nil
	})
	if err != nil {
		return err
	}
	files := make([]string, len(cps.Genomes))
	for i, g := range cps.Genomes {
		files[i] = l.ReformattedFaa(g.ID)
		sum.Proteins += nProteins[i]
		if nProteins[i] == 0 {
			log.Warningf("no proteins in genome %s", g.ID)
		}
	}
	if err = concatFiles(l.MergedFaa(), files); err != nil {
		return err
	}
	log.Infof("  %s proteins merged", humanize.Comma(int64(sum.Proteins)))

	// -------------------------------------------------------------------
	// profile search and hit parsing

	log.Infof("searching proteins with %s marker profiles", humanize.Comma(int64(len(markerList))))
	r := p.Tools.Searcher.Search(ctx, tools.SearchInput{
		Models:    in.Models,
		Proteins:  l.MergedFaa(),
		DomTblOut: l.DomTable(),
		Log:       filepath.Join(l.Logs, "hmmsearch", "hmmsearch.log"),
	})
	if !r.OK {
		return errs.Fatal("profile search failed: %s", r.Reason)
	}

	hs, hsum, err := hits.NewTable(l.DomTable(), cfg.HitOptions()).ReadAll()
	if hsum != nil {
		sum.Hits = hsum.Hits
		sum.MalformedLines = hsum.Malformed
		if hsum.Malformed > 0 {
			log.Warningf("%s malformed lines skipped, first at line %d: %s",
				humanize.Comma(int64(hsum.Malformed)), hsum.FirstMalformed, hsum.FirstMalformedText)
		}
	}
	if err != nil {
		return err
	}
	log.Infof("  %s domain hits", humanize.Comma(int64(sum.Hits)))

	// -------------------------------------------------------------------
	// census and filtering

	cen, err := census.Build(markerList, cps.IDs(), hs)
	if err != nil {
		return err
	}
	if cen.Ignored.UnknownGenome > 0 {
		log.Warningf("%s hits of unknown genomes ignored", humanize.Comma(int64(cen.Ignored.UnknownGenome)))
	}
	if cen.Ignored.UnknownMarker > 0 {
		log.Warningf("%s hits of unknown markers ignored", humanize.Comma(int64(cen.Ignored.UnknownMarker)))
	}
	for _, o := range []struct {
		file  string
		write func(io.Writer) error
	}{
		{l.Counts(), cen.WriteCounts},
		{l.Stats(), cen.WriteStats},
		{l.CountsITOL(), cen.WriteITOLHeatmap},
	} {
		if err = writeFile(o.file, o.write); err != nil {
			return err
		}
	}
	if err = cen.PlotCompleteness(l.Completeness(), cfg.MinMarkerFraction); err != nil {
		log.Warningf("failed to plot marker completeness: %s", err)
	}
	cs := cen.Summarize()
	log.Infof("  marker completeness: mean %.3f, median %.3f; %d genomes without hits",
		cs.MeanCompleteness, cs.MedianCompleteness, cs.NoHits)

	res, err := filter.Apply(cen, cfg.Thresholds())
	if err != nil {
		return err
	}
	if err = writeFile(l.RemovedTaxa(), res.WriteRemoved); err != nil {
		return err
	}
	retained := res.Retained()
	sum.Removed = len(res.Removed)
	sum.Retained = len(retained)
	counts := res.Counts()
	log.Infof("%s genomes removed (completeness: %d, single-copy duplication: %d, duplication: %d), %s retained",
		humanize.Comma(int64(sum.Removed)), counts[filter.BelowMinMarker], counts[filter.ExceedsMaxSingleDup],
		counts[filter.ExceedsMaxDup], humanize.Comma(int64(sum.Retained)))
	wlog.Printf("Number of genomes that were removed due to filtering thresholds: %d", sum.Removed)

	// -------------------------------------------------------------------
	// extraction

	log.Infof("extracting marker sequences")
	opt := cfg.ExtractOptions()
	opt.Progress = p.Progress
	sets, err := extract.Extract(ctx, cen, retained, corpus.NewDirSource(l.Reformatted), opt)
	if err != nil {
		return err
	}
	for _, set := range sets {
		if set.Short > 0 {
			log.Warningf("marker %s: %d short sequences removed", set.Marker, set.Short)
		}
		if err = writeFile(l.MarkerFaa(set.Marker), func(w io.Writer) error {
			return set.WriteFasta(w, corpus.LineWidth)
		}); err != nil {
			return err
		}
	}

	// -------------------------------------------------------------------
	// alignment and trimming

	log.Infof("aligning and trimming %s markers", humanize.Comma(int64(len(markerList))))
	results := make([]tools.Result, len(markerList))
	err = pool.ForEach(ctx, len(markerList), cfg.Threads, p.Progress, "aligned markers", func(i int) error {
		m := markerList[i]
		r := p.Tools.Aligner.Align(ctx, l.MarkerFaa(m), l.MarkerAligned(m))
		if r.OK {
			r = p.Tools.Trimmer.Trim(ctx, r.Artifact, l.MarkerTrimmed(m))
		}
		results[i] = r
		return nil
	})
	if err != nil {
		return err
	}
	for i, r := range results {
		switch {
		case r.OK:
			sum.AlignedMarkers++
		case r.Reason == tools.ReasonEmptyInput:
			log.Warningf("marker %s: no sequences to align", markerList[i])
		default:
			log.Warningf("marker %s: %s", markerList[i], r.Reason)
			sum.FailedMarkers = append(sum.FailedMarkers, markerList[i])
		}
	}
	log.Infof("  %s markers aligned", humanize.Comma(int64(sum.AlignedMarkers)))

	if cfg.ProteinTrees {
		if err = p.proteinTrees(ctx, cfg, l, markerList, results, sum); err != nil {
			return err
		}
	}

	// -------------------------------------------------------------------
	// supermatrix

	blocks := make([]*supermatrix.Block, 0, len(markerList))
	for i, m := range markerList {
		if !results[i].OK {
			blocks = append(blocks, supermatrix.MissingBlock(m))
			continue
		}
		b, err := supermatrix.ReadBlock(l.MarkerTrimmed(m), m)
		if err != nil {
			return err
		}
		blocks = append(blocks, b)
	}
	sm, err := supermatrix.Assemble(blocks, retained, &supermatrix.Options{
		MarkerOrder: markerList,
		Gap:         '-',
		MinGenomes:  cfg.MinGenomes,
	})
	if sm != nil {
		sum.FinalGenomes = sm.Informative()
		sum.Columns = sm.Width
		if len(sm.Empty) > 0 {
			log.Warningf("%d retained genomes without any aligned marker: %s", len(sm.Empty),
				strings.Join(sm.Empty, ", "))
		}
		if werr := writeFile(l.Supermatrix(), func(w io.Writer) error {
			return sm.WriteFasta(w, corpus.LineWidth, true)
		}); werr != nil {
			return werr
		}
		if werr := writeFile(l.Partitions(), func(w io.Writer) error {
			return sm.WritePartitions(w, cfg.PartitionModel)
		}); werr != nil {
			return werr
		}
		wlog.Separator()
		wlog.Printf("Number of genomes in the final alignment: %d", sum.FinalGenomes)
		log.Infof("supermatrix: %s genomes, %s columns, %d markers", humanize.Comma(int64(sum.FinalGenomes)),
			humanize.Comma(int64(sm.Width)), len(sm.Partitions))
	}
	if err != nil {
		if errors.Is(err, errs.ErrFatal) {
			wlog.Printf("%s", MessageTooFewGenomes)
		}
		return err
	}

	// -------------------------------------------------------------------
	// species tree

	log.Infof("inferring the species tree with %s", treeProgram(cfg))
	r = p.Tools.SpeciesTree.Build(ctx, tools.TreeInput{
		Alignment: l.Supermatrix(),
		Tree:      l.SpeciesTree(),
		Prefix:    filepath.Join(l.SpeciesTreeWork, l.Name),
		Species:   true,
		Log:       filepath.Join(l.Logs, "trees", "speciestree.log"),
	})
	if !r.OK {
		return errs.Fatal("species tree inference failed: %s", r.Reason)
	}
	sum.SpeciesTree = r.Artifact
	log.Infof("  species tree saved to %s", r.Artifact)

	if err = p.placeQueries(l, cfg, cps, sum); err != nil {
		return err
	}

	// -------------------------------------------------------------------
	// cleanup

	return p.cleanup(l, cfg)
}

func treeProgram(cfg *Config) string {
	return cfg.TreeOptions(cfg.Threads).Program(cfg.Method())
}

func (p *Pipeline) proteinTrees(ctx context.Context, cfg *Config, l *Layout, markerList []string,
	aligned []tools.Result, sum *Summary) error {
	log := p.Log
	idx := make([]int, 0, len(markerList))
	for i, r := range aligned {
		if r.OK {
			idx = append(idx, i)
		}
	}
	log.Infof("inferring %s protein trees", humanize.Comma(int64(len(idx))))

	results := make([]tools.Result, len(idx))
	err := pool.ForEach(ctx, len(idx), cfg.Threads, p.Progress, "protein trees", func(i int) error {
		m := markerList[idx[i]]
		results[i] = p.Tools.ProteinTree.Build(ctx, tools.TreeInput{
			Alignment: l.MarkerTrimmed(m),
			Tree:      filepath.Join(l.ProteinTrees, m+".treefile"),
			Prefix:    filepath.Join(l.ProteinTreeWork, m),
			Log:       filepath.Join(l.Logs, "trees", m+".log"),
		})
		return nil
	})
	if err != nil {
		return err
	}
	for i, r := range results {
		if r.OK {
			sum.ProteinTrees++
		} else {
			log.Warningf("protein tree of %s: %s", markerList[idx[i]], r.Reason)
		}
	}
	return nil
}

// placeQueries finds the closest reference of every query genome and the
// maximal query-only clades of the species tree.
func (p *Pipeline) placeQueries(l *Layout, cfg *Config, cps *corpus.Corpus, sum *Summary) error {
	log := p.Log
	if cps.NumQueries() == len(cps.Genomes) {
		log.Infof("no reference genomes, query placement skipped")
		return nil
	}

	t, err := phylo.ReadNewickFile(l.SpeciesTree())
	if err != nil {
		return err
	}
	part := phylo.NewPartition(cps.QueryIDs())
	if err = writeFile(l.Queries(), func(w io.Writer) error {
		_, err := part.WriteTo(w)
		return err
	}); err != nil {
		return err
	}

	nn := phylo.NearestNeighbors(t, part)
	if len(nn.Missing) > 0 {
		log.Warningf("%d query genomes absent from the species tree", len(nn.Missing))
	}
	if err = writeFile(l.Pairs(), func(w io.Writer) error {
		return phylo.WritePairs(w, nn)
	}); err != nil {
		return err
	}

	cl := phylo.MaximalClades(t, part)
	if err = writeFile(l.CladesITOL(), func(w io.Writer) error {
		return phylo.WriteITOL(w, cl, cfg.CladeColor)
	}); err != nil {
		return err
	}
	if err = writeFile(l.Clades(), func(w io.Writer) error {
		return phylo.WriteMembership(w, cl, cfg.CladeColor)
	}); err != nil {
		return err
	}

	sum.Pairs = len(nn.Pairs)
	sum.Clades = len(cl.Clades)
	log.Infof("%d query genomes placed, %d query clades, %d single query genomes",
		sum.Pairs, sum.Clades, len(cl.Singletons))
	return nil
}

// cleanup removes temporary files, and archives the analyses directory
// unless it is kept.
func (p *Pipeline) cleanup(l *Layout, cfg *Config) error {
	log := p.Log
	for _, dir := range []string{l.Reformatted, l.Tmp} {
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}
	n, err := PruneEmptyFiles(l.Workdir, cfg.Threads)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Infof("%s empty files removed", humanize.Comma(int64(n)))
	}
	if cfg.KeepAnalyses {
		return nil
	}

	if err = Archive(l.Workdir, l.Archive(), cfg.CompressionLevel); err != nil {
		return err
	}
	log.Infof("intermediate files archived to %s", l.Archive())
	return os.RemoveAll(l.Workdir)
}

// writeFile creates a file and writes it with fn.
func writeFile(file string, fn func(w io.Writer) error) error {
	fh, err := os.Create(file)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(fh)
	if err = fn(bw); err != nil {
		fh.Close()
		return fmt.Errorf("%s: %w", file, err)
	}
	if err = bw.Flush(); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

// concatFiles concatenates files into one.
func concatFiles(out string, files []string) error {
	return writeFile(out, func(w io.Writer) error {
		for _, file := range files {
			fh, err := os.Open(file)
			if err != nil {
				return err
			}
			_, err = io.Copy(w, fh)
			fh.Close()
			if err != nil {
				return err
			}
		}
		return nil
	})
}
