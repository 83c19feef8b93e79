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

// Package supermatrix concatenates per-marker alignment blocks into one
// alignment with a row of fixed width for every genome.
package supermatrix

import (
	"io"
	"os"
	"strings"

	"github.com/NeLLi-team/nsgtree/nsgtree/errs"
	"github.com/shenwei356/bio/seqio/fastx"
)

// GenomeSeparator separates the genome ID from the protein ID in row labels.
var GenomeSeparator = "|"

// Block is the trimmed alignment of one marker.
type Block struct {
	Marker string
	Width  int

	Genomes []string          // row order of the input
	Rows    map[string][]byte // genome -> aligned row

	// Missing means the alignment was not produced, e.g., the aligner failed.
	// A missing block has no rows and a width of 0.
	Missing bool
}

// MissingBlock returns a block of a marker whose alignment is unavailable.
func MissingBlock(marker string) *Block {
	return &Block{Marker: marker, Rows: map[string][]byte{}, Missing: true}
}

// NewBlock creates a block from labeled rows. The genome of a row is the
// part of the label before the first separator. All rows must have the
// same width and a genome can only appear once.
func NewBlock(marker string, labels []string, rows [][]byte) (*Block, error) {
	if len(labels) != len(rows) {
		return nil, errs.Data("marker %s: %d labels for %d rows", marker, len(labels), len(rows))
	}
	if len(rows) == 0 {
		return MissingBlock(marker), nil
	}

	b := &Block{
		Marker:  marker,
		Width:   len(rows[0]),
		Genomes: make([]string, 0, len(rows)),
		Rows:    make(map[string][]byte, len(rows)),
	}
	var genome string
	for i, label := range labels {
		genome = GenomeOf(label)
		if _, ok := b.Rows[genome]; ok {
			return nil, errs.Data("marker %s: genome %s appears more than once", marker, genome)
		}
		if len(rows[i]) != b.Width {
			return nil, errs.Data("marker %s: row of %s has %d columns, expected %d",
				marker, label, len(rows[i]), b.Width)
		}
		b.Genomes = append(b.Genomes, genome)
		b.Rows[genome] = rows[i]
	}
	return b, nil
}

// GenomeOf returns the genome part of a row label.
func GenomeOf(label string) string {
	if i := strings.Index(label, GenomeSeparator); i >= 0 {
		return label[:i]
	}
	return label
}

// ReadBlock reads the alignment of a marker from a FASTA file.
// A missing or empty file yields a missing block.
func ReadBlock(file, marker string) (*Block, error) {
	info, err := os.Stat(file)
	if err != nil {
		if os.IsNotExist(err) {
			return MissingBlock(marker), nil
		}
		return nil, err
	}
	if info.Size() == 0 {
		return MissingBlock(marker), nil
	}

	reader, err := fastx.NewReader(nil, file, "")
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	labels := make([]string, 0, 128)
	rows := make([][]byte, 0, 128)
	var record *fastx.Record
	for {
		record, err = reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, errs.Wrap(errs.ErrFormat, err, "reading alignment %s", file)
		}
		labels = append(labels, string(record.ID))
		row := make([]byte, len(record.Seq.Seq))
		copy(row, record.Seq.Seq)
		rows = append(rows, row)
	}

	b, err := NewBlock(marker, labels, rows)
	if err != nil {
		return nil, errs.Wrap(errs.ErrData, err, "alignment %s", file)
	}
	return b, nil
}
