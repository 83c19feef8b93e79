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

package supermatrix

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/NeLLi-team/nsgtree/nsgtree/errs"
)

// Options contains the options of assembly.
type Options struct {
	// MarkerOrder is the order of blocks, i.e., the profile order.
	// Blocks of other markers follow, sorted by name.
	MarkerOrder []string

	// Gap is the character for absent rows.
	Gap byte

	// Assembly fails if the number of genomes with at least one block
	// is not greater than MinGenomes.
	MinGenomes int
}

// DefaultOptions returns the default options.
func DefaultOptions() *Options {
	return &Options{Gap: '-', MinGenomes: 3}
}

// Partition is the column range of a marker, 1-based and inclusive.
type Partition struct {
	Marker string
	Start  int
	End    int
}

// Supermatrix is the concatenated alignment.
type Supermatrix struct {
	Genomes []string
	Rows    [][]byte // one row per genome, all of Width columns
	Width   int

	Partitions []Partition // blocks with at least one column

	// Present counts the blocks where each genome has at least one
	// non-gap residue.
	Present []int

	Empty   []string // genomes without any block, all-gap rows
	Missing []string // markers without alignment
}

// Assemble concatenates blocks for the genomes. If genomes is nil, the
// genomes are all genomes appearing in blocks, sorted by ID. Rows of
// genomes not in the list are ignored.
func Assemble(blocks []*Block, genomes []string, opt *Options) (*Supermatrix, error) {
	if opt == nil {
		opt = DefaultOptions()
	}
	gap := opt.Gap
	if gap == 0 {
		gap = '-'
	}

	blocks, err := orderBlocks(blocks, opt.MarkerOrder)
	if err != nil {
		return nil, err
	}

	if genomes == nil {
		seen := make(map[string]struct{}, 128)
		for _, b := range blocks {
			for g := range b.Rows {
				seen[g] = struct{}{}
			}
		}
		genomes = make([]string, 0, len(seen))
		for g := range seen {
			genomes = append(genomes, g)
		}
		sort.Strings(genomes)
	}
	idx := make(map[string]int, len(genomes))
	for i, g := range genomes {
		if _, ok := idx[g]; ok {
			return nil, errs.Config("duplicated genome: %s", g)
		}
		idx[g] = i
	}

	m := &Supermatrix{Genomes: genomes, Present: make([]int, len(genomes))}
	for _, b := range blocks {
		for g, row := range b.Rows {
			if len(row) != b.Width {
				return nil, errs.Data("marker %s: row of %s has %d columns, expected %d",
					b.Marker, g, len(row), b.Width)
			}
		}
		if b.Missing {
			m.Missing = append(m.Missing, b.Marker)
		}
		if b.Width == 0 {
			continue
		}
		m.Partitions = append(m.Partitions, Partition{Marker: b.Marker, Start: m.Width + 1, End: m.Width + b.Width})
		m.Width += b.Width
	}

	m.Rows = make([][]byte, len(genomes))
	for gi, g := range genomes {
		row := make([]byte, 0, m.Width)
		for _, b := range blocks {
			if b.Width == 0 {
				continue
			}
			if r, ok := b.Rows[g]; ok {
				row = append(row, r...)
				if hasResidue(r, gap) {
					m.Present[gi]++
				}
			} else {
				row = append(row, bytes.Repeat([]byte{gap}, b.Width)...)
			}
		}
		m.Rows[gi] = row
		if m.Present[gi] == 0 {
			m.Empty = append(m.Empty, g)
		}
	}

	if n := m.Informative(); n <= opt.MinGenomes {
		return m, errs.Fatal("only %d genomes with aligned markers, at least %d needed", n, opt.MinGenomes+1)
	}
	return m, nil
}

// hasResidue reports whether row has a byte other than the gap characters.
func hasResidue(row []byte, gap byte) bool {
	for _, c := range row {
		if c != gap && c != '-' {
			return true
		}
	}
	return false
}

func orderBlocks(blocks []*Block, order []string) ([]*Block, error) {
	rank := make(map[string]int, len(order))
	for i, marker := range order {
		rank[marker] = i
	}
	seen := make(map[string]struct{}, len(blocks))
	sorted := make([]*Block, 0, len(blocks))
	for _, b := range blocks {
		if b == nil {
			continue
		}
		if _, ok := seen[b.Marker]; ok {
			return nil, errs.Data("more than one block for marker %s", b.Marker)
		}
		seen[b.Marker] = struct{}{}
		sorted = append(sorted, b)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, oki := rank[sorted[i].Marker]
		rj, okj := rank[sorted[j].Marker]
		switch {
		case oki && okj:
			return ri < rj
		case oki != okj:
			return oki
		}
		return sorted[i].Marker < sorted[j].Marker
	})
	return sorted, nil
}

// Informative returns the number of genomes with at least one block.
func (m *Supermatrix) Informative() int {
	var n int
	for _, p := range m.Present {
		if p > 0 {
			n++
		}
	}
	return n
}

// Row returns the row of a genome, or nil.
func (m *Supermatrix) Row(genome string) []byte {
	for i, g := range m.Genomes {
		if g == genome {
			return m.Rows[i]
		}
	}
	return nil
}

// WriteFasta writes the supermatrix in FASTA format, with rows labeled
// by genome IDs. Genomes without any block are skipped if skipEmpty.
func (m *Supermatrix) WriteFasta(w io.Writer, lineWidth int, skipEmpty bool) error {
	bw := bufio.NewWriter(w)
	for i, g := range m.Genomes {
		if skipEmpty && m.Present[i] == 0 {
			continue
		}
		fmt.Fprintf(bw, ">%s\n", g)
		row := m.Rows[i]
		if lineWidth <= 0 || len(row) == 0 {
			bw.Write(row)
			bw.WriteByte('\n')
			continue
		}
		for j := 0; j < len(row); j += lineWidth {
			k := j + lineWidth
			if k > len(row) {
				k = len(row)
			}
			bw.Write(row[j:k])
			bw.WriteByte('\n')
		}
	}
	return bw.Flush()
}

// WritePartitions writes a RAxML/IQ-TREE style partition file,
// e.g., "LG, marker = 1-100".
func (m *Supermatrix) WritePartitions(w io.Writer, model string) error {
	if model == "" {
		model = "LG"
	}
	bw := bufio.NewWriter(w)
	for _, p := range m.Partitions {
		fmt.Fprintf(bw, "%s, %s = %d-%d\n", model, p.Marker, p.Start, p.End)
	}
	return bw.Flush()
}
