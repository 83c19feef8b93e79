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
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/NeLLi-team/nsgtree/nsgtree/errs"
	"github.com/NeLLi-team/nsgtree/nsgtree/tools"
	"github.com/shenwei356/bio/seq"
)

func init() {
	seq.ValidateSeq = false
}

const testModels = `HMMER3/f [3.1b2 | February 2015]
NAME  M1
LENG  10
//
HMMER3/f [3.1b2 | February 2015]
NAME  M2
LENG  10
//
HMMER3/f [3.1b2 | February 2015]
NAME  M3
LENG  10
//
`

var testProteins = map[string]string{
	"p1": "MKVLAAGHST",
	"p2": "MSTNPKPQRK",
	"p3": "MAEGEITTFT",
}

// fakeSearcher writes a hit of every marker in every genome.
type fakeSearcher struct {
	genomes []string
}

func (s *fakeSearcher) Search(ctx context.Context, in tools.SearchInput) tools.Result {
	if !tools.NonEmpty(in.Proteins) {
		return tools.Result{Reason: tools.ReasonEmptyInput}
	}
	var buf bytes.Buffer
	buf.WriteString("# target name accession tlen query name ...\n")
	for _, g := range s.genomes {
		for i, p := range []string{"p1", "p2", "p3"} {
			fmt.Fprintf(&buf, "%s|%s - 10 M%d - 10 1e-30 100.0 0.0 1 1 1e-30 1e-30 100.0 0.0 1 10 1 10 1 10 0.99 -\n",
				g, p, i+1)
		}
	}
	if err := os.WriteFile(in.DomTblOut, buf.Bytes(), 0644); err != nil {
		return tools.Result{Reason: err.Error()}
	}
	return tools.Result{OK: true, Artifact: in.DomTblOut}
}

// copier copies the input as the output, for aligners and trimmers.
type copier struct{}

func (copier) copy(in, out string) tools.Result {
	if !tools.NonEmpty(in) {
		return tools.Result{Reason: tools.ReasonEmptyInput}
	}
	data, err := os.ReadFile(in)
	if err == nil {
		err = os.WriteFile(out, data, 0644)
	}
	if err != nil {
		return tools.Result{Reason: err.Error()}
	}
	return tools.Result{OK: true, Artifact: out}
}

func (c copier) Align(ctx context.Context, in, out string) tools.Result { return c.copy(in, out) }
func (c copier) Trim(ctx context.Context, in, out string) tools.Result  { return c.copy(in, out) }

// fakeTree writes a fixed tree, or a star tree of the alignment rows.
type fakeTree struct {
	newick string
	fail   bool
}

func (f *fakeTree) Build(ctx context.Context, in tools.TreeInput) tools.Result {
	if !tools.NonEmpty(in.Alignment) {
		return tools.Result{Reason: tools.ReasonEmptyInput}
	}
	if f.fail {
		return tools.Result{Reason: "exit status 1"}
	}
	tree := f.newick
	if tree == "" {
		labels, err := headers(in.Alignment)
		if err != nil {
			return tools.Result{Reason: err.Error()}
		}
		tree = "(" + strings.Join(labels, ",") + ");"
	}
	if err := os.WriteFile(in.Tree, []byte(tree+"\n"), 0644); err != nil {
		return tools.Result{Reason: err.Error()}
	}
	return tools.Result{OK: true, Artifact: in.Tree}
}

func headers(file string) ([]string, error) {
	fh, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	labels := make([]string, 0, 8)
	scanner := bufio.NewScanner(fh)
	for scanner.Scan() {
		if line := scanner.Text(); strings.HasPrefix(line, ">") {
			labels = append(labels, strings.ReplaceAll(line[1:], "|", "_"))
		}
	}
	return labels, scanner.Err()
}

const speciesTree = "((Q1:0.1,Q2:0.1):0.2,(R1:0.1,(R2:0.1,R3:0.2):0.1):0.3);"

// testInput writes two query genomes, three reference genomes and a
// reference genome without any marker.
func testInput(t *testing.T) (string, Input) {
	dir := t.TempDir()
	qdir := filepath.Join(dir, "queries")
	rdir := filepath.Join(dir, "refs")
	for _, d := range []string{qdir, rdir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	for _, p := range []string{"p1", "p2", "p3"} {
		fmt.Fprintf(&buf, ">%s some protein\n%s\n", p, testProteins[p])
	}
	for _, g := range []string{"Q1", "Q2"} {
		writeTestFile(t, filepath.Join(qdir, g+".faa"), buf.String())
	}
	for _, g := range []string{"R1", "R2", "R3"} {
		writeTestFile(t, filepath.Join(rdir, g+".faa"), buf.String())
	}
	writeTestFile(t, filepath.Join(rdir, "R4.faa"), ">x\nMKKKKKKKKK\n")

	models := filepath.Join(dir, "markers.v1.hmm")
	writeTestFile(t, models, testModels)

	return dir, Input{QueryDir: qdir, RefDir: rdir, Models: models, OutDir: filepath.Join(dir, "out")}
}

func writeTestFile(t *testing.T, file, content string) {
	if err := os.WriteFile(file, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func testPipeline(cfg *Config) *Pipeline {
	return &Pipeline{
		Config: cfg,
		Tools: &Tools{
			Searcher:    &fakeSearcher{genomes: []string{"Q1", "Q2", "R1", "R2", "R3"}},
			Aligner:     copier{},
			Trimmer:     copier{},
			SpeciesTree: &fakeTree{newick: speciesTree},
			ProteinTree: &fakeTree{},
		},
		Version: "test",
	}
}

func TestRun(t *testing.T) {
	_, in := testInput(t)
	cfg := DefaultConfig()
	cfg.Threads = 2
	cfg.KeepAnalyses = true
	cfg.ProteinTrees = true

	sum, err := testPipeline(cfg).Run(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}

	if sum.Name != "queries-refs-markersv1-fasttree-perc1" {
		t.Errorf("unexpected analysis name: %s", sum.Name)
	}
	if sum.Genomes != 6 || sum.Queries != 2 || sum.Markers != 3 || sum.Proteins != 16 {
		t.Errorf("unexpected counts: %+v", sum)
	}
	if sum.Hits != 15 || sum.Removed != 1 || sum.Retained != 5 {
		t.Errorf("unexpected filtering: %+v", sum)
	}
	if sum.AlignedMarkers != 3 || sum.ProteinTrees != 3 || len(sum.FailedMarkers) != 0 {
		t.Errorf("unexpected alignments: %+v", sum)
	}
	if sum.FinalGenomes != 5 || sum.Columns != 30 {
		t.Errorf("unexpected supermatrix: %+v", sum)
	}
	if sum.Pairs != 2 || sum.Clades != 1 {
		t.Errorf("unexpected placement: %+v", sum)
	}

	l := NewLayout(in.OutDir, sum.Name, in.Models, tools.MethodFastTree)

	removed, err := os.ReadFile(l.RemovedTaxa())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(removed), "R4\tbelow_min_marker\t") {
		t.Errorf("unexpected removed taxa: %s", removed)
	}

	pairs, err := os.ReadFile(l.Pairs())
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(pairs)), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[1], "Q1\tR1\t") || !strings.HasPrefix(lines[2], "Q2\tR1\t") {
		t.Errorf("unexpected pairs: %q", lines)
	}

	itol, err := os.ReadFile(l.CladesITOL())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(itol), "Q1|Q2,clade,#") {
		t.Errorf("unexpected clades: %s", itol)
	}

	matrix, err := headers(l.Supermatrix())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(matrix, " ") != "Q1 Q2 R1 R2 R3" {
		t.Errorf("unexpected supermatrix rows: %v", matrix)
	}

	wlog, err := os.ReadFile(l.WorkflowLog())
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{
		"Number of genomes in the analysis: 6",
		"Number of genomes that were removed due to filtering thresholds: 1",
		"Number of genomes in the final alignment: 5",
	} {
		if !strings.Contains(string(wlog), s) {
			t.Errorf("workflow log without %q", s)
		}
	}

	for _, file := range []string{
		l.MarkerFaa("M1"), l.MarkerTrimmed("M3"), l.Counts(), l.CountsITOL(), l.SpeciesTree(),
		l.Partitions(), l.Clades(), l.Queries(), filepath.Join(l.ProteinTrees, "M2.treefile"),
	} {
		if !tools.NonEmpty(file) {
			t.Errorf("missing output: %s", file)
		}
	}
	for _, dir := range []string{l.Reformatted, l.Tmp} {
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Errorf("temporary directory not removed: %s", dir)
		}
	}

	rec, err := ReadRecord(l.RunRecord())
	if err != nil {
		t.Fatal(err)
	}
	if rec.Version != "test" || rec.Error != "" || rec.Summary.Retained != 5 || rec.Config.Threads != 2 {
		t.Errorf("unexpected run record: %+v", rec)
	}
}

func TestRunArchive(t *testing.T) {
	_, in := testInput(t)
	sum, err := testPipeline(DefaultConfig()).Run(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	l := NewLayout(in.OutDir, sum.Name, in.Models, tools.MethodFastTree)
	if !tools.NonEmpty(l.Archive()) {
		t.Errorf("analyses not archived")
	}
	if _, err = os.Stat(l.Workdir); !os.IsNotExist(err) {
		t.Errorf("analyses directory not removed")
	}

	// the output directory is not empty now
	_, err = testPipeline(DefaultConfig()).Run(context.Background(), in)
	if !errors.Is(err, errs.ErrConfig) {
		t.Errorf("expected a config error, results: %v", err)
	}
	in.Force = true
	if _, err = testPipeline(DefaultConfig()).Run(context.Background(), in); err != nil {
		t.Error(err)
	}
}

func TestRunTooFewGenomes(t *testing.T) {
	_, in := testInput(t)
	cfg := DefaultConfig()
	cfg.MinGenomes = 5
	sum, err := testPipeline(cfg).Run(context.Background(), in)
	if !errors.Is(err, errs.ErrFatal) {
		t.Fatalf("expected a fatal error, results: %v", err)
	}
	if sum == nil || sum.FinalGenomes != 5 {
		t.Errorf("unexpected summary: %+v", sum)
	}

	l := NewLayout(in.OutDir, sum.Name, in.Models, tools.MethodFastTree)
	wlog, err := os.ReadFile(l.WorkflowLog())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(wlog), MessageTooFewGenomes) {
		t.Errorf("workflow log without the error message")
	}
	if tools.NonEmpty(l.SpeciesTree()) {
		t.Errorf("species tree should not be inferred")
	}
	rec, err := ReadRecord(l.RunRecord())
	if err != nil {
		t.Fatal(err)
	}
	if rec.Error == "" {
		t.Errorf("error not recorded")
	}
}

func TestRunToolFailures(t *testing.T) {
	_, in := testInput(t)
	p := testPipeline(DefaultConfig())
	p.Tools.SpeciesTree = &fakeTree{fail: true}
	if _, err := p.Run(context.Background(), in); !errors.Is(err, errs.ErrFatal) {
		t.Errorf("expected a fatal error, results: %v", err)
	}

	_, in = testInput(t)
	p = testPipeline(DefaultConfig())
	p.Tools.Searcher = &fakeSearcher{genomes: []string{"Q1", "Q2", "R1"}}
	if _, err := p.Run(context.Background(), in); !errors.Is(err, errs.ErrFatal) {
		t.Errorf("expected a fatal error for 3 genomes, results: %v", err)
	}
}

func TestRunInvalidInput(t *testing.T) {
	_, in := testInput(t)
	cfg := DefaultConfig()
	cfg.MinMarkerFraction = 2
	if _, err := testPipeline(cfg).Run(context.Background(), in); !errors.Is(err, errs.ErrConfig) {
		t.Errorf("expected a config error, results: %v", err)
	}

	in.QueryDir = filepath.Join(in.QueryDir, "absent")
	if _, err := testPipeline(DefaultConfig()).Run(context.Background(), in); err == nil {
		t.Errorf("expected an error for a missing query directory")
	}
}

func TestRunCanceled(t *testing.T) {
	_, in := testInput(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := testPipeline(DefaultConfig()).Run(ctx, in); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, results: %v", err)
	}
}

// recordLogger keeps warnings.
type recordLogger struct {
	mu       sync.Mutex
	warnings []string
}

func (l *recordLogger) Infof(format string, args ...interface{}) {}

func (l *recordLogger) Warningf(format string, args ...interface{}) {
	l.mu.Lock()
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}

func TestRunShortSequences(t *testing.T) {
	_, in := testInput(t)
	cfg := DefaultConfig()
	cfg.MinLength = 11 // all regions have 10 residues
	p := testPipeline(cfg)
	rl := &recordLogger{}
	p.Log = rl
	if _, err := p.Run(context.Background(), in); err == nil {
		t.Errorf("expected an error without any marker sequence")
	}

	for _, m := range []string{"M1", "M2", "M3"} {
		expected := fmt.Sprintf("marker %s: 5 short sequences removed", m)
		var found bool
		for _, w := range rl.warnings {
			if w == expected {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected warning: %q, results: %q", expected, rl.warnings)
		}
	}
}
