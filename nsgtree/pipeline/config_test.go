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
	"archive/tar"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"github.com/NeLLi-team/nsgtree/nsgtree/errs"
	"github.com/NeLLi-team/nsgtree/nsgtree/tools"
	"github.com/klauspost/pgzip"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	yml := filepath.Join(dir, "config.yml")
	writeTestFile(t, yml, "min_marker_fraction: 0.5\ntree_method: iqtree\nthreads: 8\nprotein_trees: true\n")
	c, err := LoadConfig(yml)
	if err != nil {
		t.Fatal(err)
	}
	if c.MinMarkerFraction != 0.5 || c.Method() != tools.MethodIQTree || c.Threads != 8 || !c.ProteinTrees {
		t.Errorf("unexpected config: %+v", c)
	}
	// untouched values keep defaults
	if c.MaxTotalDupRatio != 4 || c.MinGenomes != 3 || c.TrimAlOptions != "-gt 0.1" {
		t.Errorf("defaults lost: %+v", c)
	}

	tml := filepath.Join(dir, "config.toml")
	writeTestFile(t, tml, "max_single_copy_dup_ratio = 0.2\nclade_color = \"ff0000\"\n")
	c, err = LoadConfig(tml)
	if err != nil {
		t.Fatal(err)
	}
	if err = c.Validate(); err != nil {
		t.Fatal(err)
	}
	if c.MaxSingleCopyDupRatio != 0.2 || c.CladeColor != "#ff0000" {
		t.Errorf("unexpected config: %+v", c)
	}

	for _, name := range []string{"empty.yaml", "empty.toml"} {
		empty := filepath.Join(dir, name)
		writeTestFile(t, empty, "")
		if c, err = LoadConfig(empty); err != nil || !reflect.DeepEqual(c, DefaultConfig()) {
			t.Errorf("%s: an empty file should give the defaults: %v", name, err)
		}
	}

	for file, content := range map[string]string{
		"unknown.yml":  "minmarker: 0.1\n",
		"unknown.toml": "minmarker = 0.1\n",
		"bad.yml":      "threads: many\n",
		"config.json":  "{}",
		"absent.yml":   "",
	} {
		file = filepath.Join(dir, file)
		if content != "" {
			writeTestFile(t, file, content)
		}
		if _, err = LoadConfig(file); !errors.Is(err, errs.ErrConfig) {
			t.Errorf("%s: expected a config error, results: %v", file, err)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("invalid default config: %s", err)
	}
	for i, fn := range []func(c *Config){
		func(c *Config) { c.MinMarkerFraction = -0.1 },
		func(c *Config) { c.MaxMalformedFraction = 1.5 },
		func(c *Config) { c.MinLengthFraction = 2 },
		func(c *Config) { c.Envelope, c.WholeProtein = true, true },
		func(c *Config) { c.MinGenomes = -1 },
		func(c *Config) { c.TreeMethod = "raxml" },
		func(c *Config) { c.Threads = 0 },
		func(c *Config) { c.CompressionLevel = 10 },
		func(c *Config) { c.CladeColor = "red" },
		func(c *Config) { c.MAFFTProgram = " " },
	} {
		c := DefaultConfig()
		fn(c)
		if err := c.Validate(); !errors.Is(err, errs.ErrConfig) {
			t.Errorf("case %d: expected a config error, results: %v", i, err)
		}
	}
}

func TestProgramsAndTools(t *testing.T) {
	c := DefaultConfig()
	c.TreeMethod = "iqtree"
	expected := []string{"hmmsearch", "mafft", "trimal", "iqtree2"}
	if !reflect.DeepEqual(c.Programs(), expected) {
		t.Errorf("expected: %v, results: %v", expected, c.Programs())
	}

	ts := NewTools(c, nil)
	if q, ok := ts.SpeciesTree.(*tools.IQTree); !ok || q.Threads != c.Threads || q.Model != "LG+F+I+G4" {
		t.Errorf("unexpected species tree builder: %+v", ts.SpeciesTree)
	}
	if q, ok := ts.ProteinTree.(*tools.IQTree); !ok || q.Threads != 1 {
		t.Errorf("unexpected protein tree builder: %+v", ts.ProteinTree)
	}
}

func TestAnalysisName(t *testing.T) {
	cases := []struct {
		qdir, rdir, models string
		method             tools.TreeMethod
		minMarker          float64
		name               string
	}{
		{"data/example_q/", "data/example_r", "models/UNI56.hmm", tools.MethodFastTree, 0.1, "example_q-example_r-UNI56-fasttree-perc1"},
		{"example", "", "rnapol.hmm", tools.MethodIQTree, 0.5, "example--rnapol-iqtree-perc5"},
		{"q.v2", "r", "m.v1.hmm", tools.MethodFastTree, 0, "qv2-r-mv1-fasttree-perc0"},
	}
	for _, c := range cases {
		if name := AnalysisName(c.qdir, c.rdir, c.models, c.method, c.minMarker); name != c.name {
			t.Errorf("expected: %s, results: %s", c.name, name)
		}
	}
}

func TestArchive(t *testing.T) {
	dir := t.TempDir()
	work := filepath.Join(dir, "analyses")
	for _, file := range []string{"hmmout/m.out", "aligned/M1.mafft", "aligned/M2.mafft", "log/empty.log"} {
		file = filepath.Join(work, file)
		if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
			t.Fatal(err)
		}
		content := "data\n"
		if filepath.Base(file) == "empty.log" {
			content = ""
		}
		writeTestFile(t, file, content)
	}

	n, err := PruneEmptyFiles(work, 2)
	if err != nil || n != 1 {
		t.Errorf("expected 1 pruned file, results: %d, %v", n, err)
	}

	out := filepath.Join(dir, "analyses.tar.gz")
	if err = Archive(work, out, 5); err != nil {
		t.Fatal(err)
	}

	fh, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer fh.Close()
	gr, err := pgzip.NewReader(fh)
	if err != nil {
		t.Fatal(err)
	}
	tr := tar.NewReader(gr)
	names := make([]string, 0, 8)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		names = append(names, hdr.Name)
	}
	expected := []string{"analyses/", "analyses/aligned/", "analyses/aligned/M1.mafft", "analyses/aligned/M2.mafft",
		"analyses/hmmout/", "analyses/hmmout/m.out", "analyses/log/"}
	sort.Strings(names)
	if !reflect.DeepEqual(names, expected) {
		t.Errorf("expected: %v, results: %v", expected, names)
	}
}
