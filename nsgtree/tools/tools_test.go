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

package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/NeLLi-team/nsgtree/nsgtree/errs"
)

// fakeExecutor records commands and writes fake outputs.
type fakeExecutor struct {
	installed map[string]bool
	commands  []*Command
	fail      bool
	silent    bool // produce no output
}

func (e *fakeExecutor) LookPath(program string) (string, error) {
	if e.installed[program] {
		return "/usr/bin/" + program, nil
	}
	return "", fmt.Errorf("%s not found", program)
}

func (e *fakeExecutor) Run(ctx context.Context, cmd *Command) error {
	e.commands = append(e.commands, cmd)
	if e.fail {
		return fmt.Errorf("%s: exit status 1", cmd.Program)
	}
	if e.silent {
		return nil
	}
	outputs := make([]string, 0, 2)
	if cmd.Stdout != "" {
		outputs = append(outputs, cmd.Stdout)
	}
	for i, a := range cmd.Args {
		if i+1 < len(cmd.Args) && (a == "-out" || a == "--domtblout") {
			outputs = append(outputs, cmd.Args[i+1])
		}
		if i+1 < len(cmd.Args) && a == "--prefix" {
			outputs = append(outputs, cmd.Args[i+1]+".treefile")
		}
	}
	for _, file := range outputs {
		if err := os.WriteFile(file, []byte("output\n"), 0644); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(t *testing.T, file, content string) string {
	if err := os.WriteFile(file, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return file
}

func TestEmptyInput(t *testing.T) {
	dir := t.TempDir()
	empty := writeFile(t, filepath.Join(dir, "empty.faa"), "")
	e := &fakeExecutor{}
	ctx := context.Background()

	results := []Result{
		(&MAFFT{Program: "mafft", Exec: e}).Align(ctx, empty, filepath.Join(dir, "out")),
		(&MAFFT{Program: "mafft", Exec: e}).Align(ctx, filepath.Join(dir, "absent"), filepath.Join(dir, "out")),
		(&TrimAl{Program: "trimal", Exec: e}).Trim(ctx, empty, filepath.Join(dir, "out")),
		(&FastTree{Program: "FastTree", Exec: e}).Build(ctx, TreeInput{Alignment: empty}),
		(&IQTree{Program: "iqtree2", Exec: e}).Build(ctx, TreeInput{Alignment: empty}),
		(&HMMSearch{Program: "hmmsearch", Exec: e}).Search(ctx, SearchInput{Models: empty, Proteins: empty}),
	}
	for i, r := range results {
		if r.OK || r.Reason != ReasonEmptyInput {
			t.Errorf("case %d: expected empty input, results: %+v", i, r)
		}
	}
	if len(e.commands) != 0 {
		t.Errorf("nothing should run for empty inputs")
	}
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, filepath.Join(dir, "M1.faa"), ">a\nMK\n")
	models := writeFile(t, filepath.Join(dir, "models.hmm"), "HMMER3/f\nNAME  M1\n//\n")
	e := &fakeExecutor{}
	ctx := context.Background()

	h := NewHMMSearch("-E 1e-5", 4)
	h.Exec = e
	r := h.Search(ctx, SearchInput{Models: models, Proteins: in, DomTblOut: filepath.Join(dir, "hits.domtbl")})
	if !r.OK || r.Artifact != filepath.Join(dir, "hits.domtbl") {
		t.Errorf("unexpected result: %+v", r)
	}
	expected := []string{"-E", "1e-5", "--domtblout", filepath.Join(dir, "hits.domtbl"), "--noali", "--cpu", "4", models, in}
	if !reflect.DeepEqual(e.commands[0].Args, expected) {
		t.Errorf("expected: %v, results: %v", expected, e.commands[0].Args)
	}

	m := NewMAFFT("--thread 2")
	m.Exec = e
	aligned := filepath.Join(dir, "M1.mafft")
	if r = m.Align(ctx, in, aligned); !r.OK {
		t.Errorf("unexpected result: %+v", r)
	}
	if c := e.commands[1]; c.Stdout != aligned || !reflect.DeepEqual(c.Args, []string{"--quiet", "--thread", "2", in}) {
		t.Errorf("unexpected command: %s", c)
	}

	tr := NewTrimAl("-gt 0.1")
	tr.Exec = e
	trimmed := filepath.Join(dir, "M1.mafft_t")
	if r = tr.Trim(ctx, aligned, trimmed); !r.OK || r.Artifact != trimmed {
		t.Errorf("unexpected result: %+v", r)
	}
	if c := e.commands[2]; c.String() != "trimal -gt 0.1 -in "+aligned+" -out "+trimmed {
		t.Errorf("unexpected command: %s", c)
	}

	opt := DefaultTreeOptions()
	opt.Exec = e
	opt.FastTreeOptions = "-lg -threads 4"
	opt.Threads = 4
	ft := NewTreeBuilder(MethodFastTree, opt)
	tree := filepath.Join(dir, "M1.treefile")
	if r = ft.Build(ctx, TreeInput{Alignment: trimmed, Tree: tree}); !r.OK {
		t.Errorf("unexpected result: %+v", r)
	}
	if c := e.commands[3]; c.Program != "FastTree" || c.Stdout != tree || !reflect.DeepEqual(c.Args, []string{"-lg", trimmed}) {
		t.Errorf("unexpected command: %s", c)
	}
	if c := e.commands[3]; !reflect.DeepEqual(c.Env, []string{"OMP_NUM_THREADS=4"}) {
		t.Errorf("unexpected environment: %v", c.Env)
	}
	opt.Threads = 1

	iq := NewTreeBuilder(MethodIQTree, opt)
	species := filepath.Join(dir, "species.treefile")
	r = iq.Build(ctx, TreeInput{Alignment: trimmed, Tree: species, Prefix: filepath.Join(dir, "iq", "species"), Species: true})
	if r.OK {
		t.Errorf("expected failure without the output directory")
	}
	os.MkdirAll(filepath.Join(dir, "iq"), 0755)
	r = iq.Build(ctx, TreeInput{Alignment: trimmed, Tree: species, Prefix: filepath.Join(dir, "iq", "species"), Species: true})
	if !r.OK || !NonEmpty(species) {
		t.Errorf("unexpected result: %+v", r)
	}
	if c := e.commands[len(e.commands)-1]; strings.Contains(c.String(), "-fast") || !strings.Contains(c.String(), "-m LG+F+I+G4") {
		t.Errorf("unexpected command: %s", c)
	}
}

func TestFailures(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, filepath.Join(dir, "M1.faa"), ">a\nMK\n")
	ctx := context.Background()

	r := (&MAFFT{Program: "mafft", Exec: &fakeExecutor{fail: true}}).Align(ctx, in, filepath.Join(dir, "out"))
	if r.OK || !strings.Contains(r.Reason, "exit status 1") {
		t.Errorf("unexpected result: %+v", r)
	}

	r = (&TrimAl{Program: "trimal", Exec: &fakeExecutor{silent: true}}).Trim(ctx, in, filepath.Join(dir, "out2"))
	if r.OK || !strings.Contains(r.Reason, "no output") {
		t.Errorf("unexpected result: %+v", r)
	}
}

func TestTreeMethod(t *testing.T) {
	for s, m := range map[string]TreeMethod{"fasttree": MethodFastTree, "IQTREE": MethodIQTree, "iqtree2": MethodIQTree} {
		r, err := ParseTreeMethod(s)
		if err != nil || r != m {
			t.Errorf("%s: expected: %s, results: %s, %v", s, m, r, err)
		}
	}
	if _, err := ParseTreeMethod("raxml"); !errors.Is(err, errs.ErrConfig) {
		t.Errorf("expected a config error, results: %v", err)
	}
	if MethodIQTree.String() != "iqtree" || DefaultTreeOptions().Program(MethodIQTree) != "iqtree2" {
		t.Errorf("unexpected names")
	}
}

func TestCheckPrograms(t *testing.T) {
	e := &fakeExecutor{installed: map[string]bool{"mafft": true}}
	if err := CheckPrograms(e, "mafft"); err != nil {
		t.Error(err)
	}
	err := CheckPrograms(e, "mafft", "trimal", "hmmsearch")
	if !errors.Is(err, errs.ErrConfig) || !strings.Contains(err.Error(), "trimal, hmmsearch") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTailWriter(t *testing.T) {
	w := &tailWriter{buf: new(bytes.Buffer), max: 4}
	fmt.Fprint(w, "abc")
	fmt.Fprint(w, "defg")
	if w.buf.String() != "defg" {
		t.Errorf("expected: defg, results: %s", w.buf.String())
	}
}

func TestOSExecutor(t *testing.T) {
	e := OSExecutor{}
	if _, err := e.LookPath("sh"); err != nil {
		t.Skip("sh not found")
	}
	dir := t.TempDir()
	out := filepath.Join(dir, "out.txt")
	log := filepath.Join(dir, "run.log")
	cmd := &Command{
		Program: "sh",
		Args:    []string{"-c", "echo $OMP_NUM_THREADS; echo done >&2"},
		Env:     []string{"OMP_NUM_THREADS=3"},
		Stdout:  out,
		Log:     log,
	}
	if err := e.Run(context.Background(), cmd); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(out); string(data) != "3\n" {
		t.Errorf("expected: %q, results: %q", "3\n", data)
	}
	if data, _ := os.ReadFile(log); !strings.HasSuffix(string(data), "done\n") {
		t.Errorf("unexpected log: %q", data)
	}

	cmd = &Command{Program: "sh", Args: []string{"-c", "echo oops >&2; exit 2"}}
	if err := e.Run(context.Background(), cmd); err == nil || !strings.Contains(err.Error(), "oops") {
		t.Errorf("expected an error with stderr, results: %v", err)
	}

	cmd = &Command{Program: "sh", Args: []string{"-c", "true"}, Stdout: filepath.Join(dir, "absent", "out.txt")}
	if err := e.Run(context.Background(), cmd); err == nil {
		t.Errorf("expected an error for an uncreatable output file")
	}
}
