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
	"context"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/NeLLi-team/nsgtree/nsgtree/errs"
)

// SearchInput is the input of a profile search.
type SearchInput struct {
	Models    string // profile HMM file
	Proteins  string // protein FASTA file
	DomTblOut string // domain table output
	Log       string
}

// Searcher searches proteins with profile HMMs.
type Searcher interface {
	Search(ctx context.Context, in SearchInput) Result
}

// Aligner aligns sequences of a FASTA file.
type Aligner interface {
	Align(ctx context.Context, in, out string) Result
}

// Trimmer removes poorly aligned columns.
type Trimmer interface {
	Trim(ctx context.Context, in, out string) Result
}

// TreeInput is the input of tree inference.
type TreeInput struct {
	Alignment string
	Tree      string // output tree file
	Prefix    string // prefix of intermediate files
	Species   bool   // species tree or protein tree
	Log       string
}

// TreeBuilder infers a tree from an alignment.
type TreeBuilder interface {
	Build(ctx context.Context, in TreeInput) Result
}

// HMMSearch runs hmmsearch.
type HMMSearch struct {
	Program string
	Cutoff  string // e.g., "-E 1e-5" or "--cut_ga"
	Threads int
	Exec    Executor
}

// NewHMMSearch returns a hmmsearch runner.
func NewHMMSearch(cutoff string, threads int) *HMMSearch {
	return &HMMSearch{Program: "hmmsearch", Cutoff: cutoff, Threads: threads}
}

// Search runs hmmsearch and writes the domain table.
func (h *HMMSearch) Search(ctx context.Context, in SearchInput) Result {
	if !NonEmpty(in.Proteins) || !NonEmpty(in.Models) {
		return failure(ReasonEmptyInput)
	}
	args := splitOptions(h.Cutoff)
	args = append(args, "--domtblout", in.DomTblOut, "--noali", "--cpu", strconv.Itoa(max(h.Threads, 1)),
		in.Models, in.Proteins)
	return run(ctx, h.Exec, &Command{Program: h.Program, Args: args, Stdout: in.Log}, in.DomTblOut)
}

// MAFFT runs mafft.
type MAFFT struct {
	Program string
	Options string // e.g., "--thread 4"
	Exec    Executor
}

// NewMAFFT returns a mafft runner.
func NewMAFFT(options string) *MAFFT {
	return &MAFFT{Program: "mafft", Options: options}
}

// Align aligns sequences with mafft.
func (m *MAFFT) Align(ctx context.Context, in, out string) Result {
	if !NonEmpty(in) {
		return failure(ReasonEmptyInput)
	}
	args := append([]string{"--quiet"}, splitOptions(m.Options)...)
	args = append(args, in)
	return run(ctx, m.Exec, &Command{Program: m.Program, Args: args, Stdout: out, Log: out + ".log"}, out)
}

// TrimAl runs trimal.
type TrimAl struct {
	Program string
	Options string // e.g., "-gt 0.1"
	Exec    Executor
}

// NewTrimAl returns a trimal runner.
func NewTrimAl(options string) *TrimAl {
	return &TrimAl{Program: "trimal", Options: options}
}

// Trim trims an alignment with trimal.
func (t *TrimAl) Trim(ctx context.Context, in, out string) Result {
	if !NonEmpty(in) {
		return failure(ReasonEmptyInput)
	}
	args := splitOptions(t.Options)
	args = append(args, "-in", in, "-out", out)
	return run(ctx, t.Exec, &Command{Program: t.Program, Args: args}, out)
}

// FastTree runs FastTree.
type FastTree struct {
	Program string
	Options string // e.g., "-spr 4 -mlacc 3 -slownni -lg"
	Threads int    // passed by OMP_NUM_THREADS
	Exec    Executor
}

// Build infers a tree with FastTree.
func (f *FastTree) Build(ctx context.Context, in TreeInput) Result {
	if !NonEmpty(in.Alignment) {
		return failure(ReasonEmptyInput)
	}
	opts := splitOptions(f.Options)
	args := make([]string, 0, len(opts)+1)
	for i := 0; i < len(opts); i++ {
		// threads are set by the environment variable OMP_NUM_THREADS
		if o := opts[i]; strings.HasPrefix(o, "-thread") {
			if !strings.Contains(o, "=") && i+1 < len(opts) && !strings.HasPrefix(opts[i+1], "-") {
				i++
			}
			continue
		}
		args = append(args, opts[i])
	}
	args = append(args, in.Alignment)
	cmd := &Command{
		Program: f.Program,
		Args:    args,
		Env:     []string{"OMP_NUM_THREADS=" + strconv.Itoa(max(f.Threads, 1))},
		Stdout:  in.Tree,
		Log:     in.Log,
	}
	return run(ctx, f.Exec, cmd, in.Tree)
}

// IQTree runs IQ-TREE.
type IQTree struct {
	Program string
	Model   string // e.g., "LG+F+I+G4"
	Threads int
	Exec    Executor
}

// Build infers a tree with IQ-TREE. Protein trees use the fast mode.
// The consensus tree is preferred over the ML tree if it exists.
func (q *IQTree) Build(ctx context.Context, in TreeInput) Result {
	if !NonEmpty(in.Alignment) {
		return failure(ReasonEmptyInput)
	}
	prefix := in.Prefix
	if prefix == "" {
		prefix = strings.TrimSuffix(in.Tree, ".treefile")
	}
	args := []string{"--quiet", "--prefix", prefix, "-m", q.Model, "-T", strconv.Itoa(max(q.Threads, 1))}
	if !in.Species {
		args = append(args, "-fast")
	}
	args = append(args, "-s", in.Alignment)

	e := q.Exec
	if e == nil {
		e = DefaultExecutor
	}
	if err := e.Run(ctx, &Command{Program: q.Program, Args: args, Log: in.Log}); err != nil {
		return failure("%s", err)
	}

	for _, file := range []string{prefix + ".contree", prefix + ".treefile"} {
		if !NonEmpty(file) {
			continue
		}
		if file != in.Tree {
			if err := copyFile(file, in.Tree); err != nil {
				return failure("%s", err)
			}
		}
		return success(in.Tree)
	}
	return failure("%s produced no tree", q.Program)
}

func copyFile(src, dst string) error {
	r, err := os.Open(src)
	if err != nil {
		return err
	}
	defer r.Close()
	w, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err = io.Copy(w, r); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// TreeMethod is the tree inference program.
type TreeMethod uint8

const (
	MethodFastTree TreeMethod = iota
	MethodIQTree
)

func (m TreeMethod) String() string {
	switch m {
	case MethodFastTree:
		return "fasttree"
	case MethodIQTree:
		return "iqtree"
	}
	return "unknown"
}

// ParseTreeMethod parses "fasttree" or "iqtree".
func ParseTreeMethod(s string) (TreeMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fasttree", "":
		return MethodFastTree, nil
	case "iqtree", "iqtree2":
		return MethodIQTree, nil
	}
	return MethodFastTree, errs.Config("invalid tree method: %s, available: fasttree, iqtree", s)
}

// TreeOptions are the options of tree builders.
type TreeOptions struct {
	FastTreeProgram string
	FastTreeOptions string

	IQTreeProgram string
	IQTreeModel   string
	Threads       int

	Exec Executor
}

// DefaultTreeOptions returns the default options.
func DefaultTreeOptions() TreeOptions {
	return TreeOptions{
		FastTreeProgram: "FastTree",
		FastTreeOptions: "-spr 4 -mlacc 3 -slownni -lg",
		IQTreeProgram:   "iqtree2",
		IQTreeModel:     "LG+F+I+G4",
		Threads:         1,
	}
}

// NewTreeBuilder returns the builder of a method.
func NewTreeBuilder(m TreeMethod, opt TreeOptions) TreeBuilder {
	if m == MethodIQTree {
		return &IQTree{Program: opt.IQTreeProgram, Model: opt.IQTreeModel, Threads: opt.Threads, Exec: opt.Exec}
	}
	return &FastTree{Program: opt.FastTreeProgram, Options: opt.FastTreeOptions, Threads: opt.Threads, Exec: opt.Exec}
}

// Program returns the program name of a method.
func (opt TreeOptions) Program(m TreeMethod) string {
	if m == MethodIQTree {
		return opt.IQTreeProgram
	}
	return opt.FastTreeProgram
}
