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

package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/NeLLi-team/nsgtree/nsgtree/tools"
	"github.com/shenwei356/util/pathutil"
)

// AnalysisName returns the name of an analysis,
// "<query dir>-<reference dir>-<models>-<method>-perc<N>" without dots,
// where N is int(10 × min_marker_fraction).
func AnalysisName(queryDir, refDir, models string, method tools.TreeMethod, minMarkerFraction float64) string {
	var rdir string
	if refDir != "" {
		rdir = filepath.Base(filepath.Clean(refDir))
	}
	base := filepath.Base(models)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	name := fmt.Sprintf("%s-%s-%s-%s-perc%d", filepath.Base(filepath.Clean(queryDir)), rdir,
		base, method, int(minMarkerFraction*10))
	return strings.ReplaceAll(name, ".", "")
}

// Layout holds paths of an analysis.
//
//	<outdir>/
//	  analyses/{reformatted_faa,tmp,hmmout,hits_faa,aligned,aligned_t,log,...}
//	  proteintrees/
//	  itol/
//	  <name>.mafft_t, <name>.treefile, ...
type Layout struct {
	Name    string
	Models  string // base name of the profile file
	Method  tools.TreeMethod
	OutDir  string
	Workdir string // analyses

	Reformatted string
	Tmp         string
	HMMOut      string
	HitsFaa     string
	Aligned     string
	Trimmed     string
	Logs        string

	ProteinTreeWork string
	SpeciesTreeWork string
	ProteinTrees    string
	ITOL            string
}

// NewLayout returns the layout of an analysis.
func NewLayout(outdir, name, models string, method tools.TreeMethod) *Layout {
	work := filepath.Join(outdir, "analyses")
	base := filepath.Base(models)
	return &Layout{
		Name:    name,
		Models:  strings.TrimSuffix(base, filepath.Ext(base)),
		Method:  method,
		OutDir:  outdir,
		Workdir: work,

		Reformatted: filepath.Join(work, "reformatted_faa"),
		Tmp:         filepath.Join(work, "tmp"),
		HMMOut:      filepath.Join(work, "hmmout"),
		HitsFaa:     filepath.Join(work, "hits_faa"),
		Aligned:     filepath.Join(work, "aligned"),
		Trimmed:     filepath.Join(work, "aligned_t"),
		Logs:        filepath.Join(work, "log"),

		ProteinTreeWork: filepath.Join(work, "proteintrees", method.String()),
		SpeciesTreeWork: filepath.Join(work, "finaltree", method.String()),
		ProteinTrees:    filepath.Join(outdir, "proteintrees"),
		ITOL:            filepath.Join(outdir, "itol"),
	}
}

// Create creates all directories. An existing non-empty output directory
// is an error unless force is true, in which case it is removed first.
func (l *Layout) Create(force bool) error {
	existed, err := pathutil.DirExists(l.OutDir)
	if err != nil {
		return err
	}
	if existed {
		empty, err := pathutil.IsEmpty(l.OutDir)
		if err != nil {
			return err
		}
		if !empty {
			if !force {
				return fmt.Errorf("output directory not empty: %s, use --force to overwrite", l.OutDir)
			}
			if err = os.RemoveAll(l.OutDir); err != nil {
				return err
			}
		}
	}

	for _, dir := range []string{
		l.Reformatted, l.Tmp, l.HMMOut, l.HitsFaa, l.Aligned, l.Trimmed,
		filepath.Join(l.Logs, "hmmsearch"), filepath.Join(l.Logs, "aln"), filepath.Join(l.Logs, "trees"),
		l.ProteinTreeWork, l.SpeciesTreeWork, l.ProteinTrees, l.ITOL,
	} {
		if err = os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// output files

func (l *Layout) MergedFaa() string    { return filepath.Join(l.Tmp, "merged.faa") }
func (l *Layout) DomTable() string     { return filepath.Join(l.HMMOut, l.Models+".out") }
func (l *Layout) Counts() string       { return filepath.Join(l.HMMOut, l.Models+".counts") }
func (l *Layout) Stats() string        { return filepath.Join(l.HMMOut, l.Models+".stats.tsv") }
func (l *Layout) RemovedTaxa() string  { return filepath.Join(l.HMMOut, l.Models+".removedtaxa") }
func (l *Layout) CountsITOL() string   { return filepath.Join(l.ITOL, l.Models+".counts.itol.txt") }
func (l *Layout) Completeness() string { return filepath.Join(l.OutDir, l.Models+".completeness.png") }
func (l *Layout) Supermatrix() string  { return filepath.Join(l.OutDir, l.Name+".mafft_t") }
func (l *Layout) Partitions() string   { return filepath.Join(l.OutDir, l.Name+".partitions.txt") }
func (l *Layout) SpeciesTree() string  { return filepath.Join(l.OutDir, l.Name+".treefile") }
func (l *Layout) Pairs() string        { return filepath.Join(l.OutDir, l.Name+".pairs.tsv") }
func (l *Layout) Clades() string       { return filepath.Join(l.OutDir, l.Name+".clades.tsv") }
func (l *Layout) CladesITOL() string   { return filepath.Join(l.ITOL, l.Name+".clades.itol.txt") }
func (l *Layout) Queries() string      { return filepath.Join(l.ITOL, l.Name+".queries.txt") }
func (l *Layout) WorkflowLog() string  { return filepath.Join(l.OutDir, "workflow.log") }
func (l *Layout) RunRecord() string    { return filepath.Join(l.OutDir, "run.toml") }
func (l *Layout) Archive() string      { return filepath.Join(l.OutDir, "analyses.tar.gz") }
func (l *Layout) ReformattedFaa(genome string) string {
	return filepath.Join(l.Reformatted, genome+".faa")
}
func (l *Layout) MarkerFaa(marker string) string {
	return filepath.Join(l.HitsFaa, marker+".faa")
}
func (l *Layout) MarkerAligned(marker string) string {
	return filepath.Join(l.Aligned, marker+".mafft")
}
func (l *Layout) MarkerTrimmed(marker string) string {
	return filepath.Join(l.Trimmed, marker+".mafft_t")
}
