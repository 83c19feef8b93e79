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

package corpus

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/NeLLi-team/nsgtree/nsgtree/errs"
	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/xopen"
)

// Separator separates genome and protein IDs in sequence labels.
const Separator = "|"

// LineWidth is the line width of output FASTA files.
var LineWidth = 60

// Label returns the label of a protein, "<genome>|<protein>".
// An ID already prefixed with the genome is returned unchanged.
func Label(genome, id string) string {
	if strings.HasPrefix(id, genome+Separator) {
		return id
	}
	return genome + Separator + id
}

// Reformat rewrites a genome protein file so every header is
// "<genome>|<protein>", and returns the number of records.
func Reformat(inFile, outFile, genome string) (int, error) {
	reader, err := fastx.NewReader(nil, inFile, "")
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	outfh, err := xopen.Wopen(outFile)
	if err != nil {
		return 0, err
	}

	var n int
	var record *fastx.Record
	for {
		record, err = reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			outfh.Close()
			return n, errs.Wrap(errs.ErrFormat, err, "reading %s", inFile)
		}

		fmt.Fprintf(outfh, ">%s\n", Label(genome, string(record.ID)))
		outfh.Write(record.Seq.FormatSeq(LineWidth))
		if _, err = outfh.Write([]byte{'\n'}); err != nil {
			outfh.Close()
			return n, errors.Wrapf(err, "writing %s", outFile)
		}
		n++
	}
	if err = outfh.Close(); err != nil {
		return n, errors.Wrapf(err, "writing %s", outFile)
	}
	return n, nil
}

// FastaSource reads proteins from genome protein files.
// Files of genomes absent from Files are looked up as <Dir>/<genome>.faa.
type FastaSource struct {
	Files map[string]string
	Dir   string
}

// NewFastaSource returns a FastaSource of a corpus.
func NewFastaSource(c *Corpus) *FastaSource {
	return &FastaSource{Files: c.Files()}
}

// NewDirSource returns a FastaSource reading <dir>/<genome>.faa.
func NewDirSource(dir string) *FastaSource {
	return &FastaSource{Dir: dir}
}

// File returns the protein file of a genome.
func (s *FastaSource) File(genome string) (string, error) {
	if file, ok := s.Files[genome]; ok {
		return file, nil
	}
	if s.Dir != "" {
		file := filepath.Join(s.Dir, genome+".faa")
		if _, err := os.Stat(file); err == nil {
			return file, nil
		}
	}
	return "", errs.Data("protein file of genome %s not found", genome)
}

// Proteins returns residues of the given proteins of a genome.
// Record IDs may be plain protein IDs or "<genome>|<protein>".
// Proteins not in the file are absent from the returned map.
func (s *FastaSource) Proteins(genome string, ids []string) (map[string][]byte, error) {
	file, err := s.File(genome)
	if err != nil {
		return nil, err
	}

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	m := make(map[string][]byte, len(ids))
	if len(want) == 0 {
		return m, nil
	}

	reader, err := fastx.NewReader(nil, file, "")
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	prefix := genome + Separator
	var record *fastx.Record
	var id string
	var ok bool
	for {
		record, err = reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, errs.Wrap(errs.ErrFormat, err, "reading %s", file)
		}

		id = strings.TrimPrefix(string(record.ID), prefix)
		if _, ok = want[id]; !ok {
			continue
		}
		if _, ok = m[id]; ok {
			continue
		}
		// records are reused by the reader
		residues := make([]byte, len(record.Seq.Seq))
		copy(residues, record.Seq.Seq)
		m[id] = residues

		if len(m) == len(want) {
			break
		}
	}
	return m, nil
}
