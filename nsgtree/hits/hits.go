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

// Package hits parses HMMER domain tables (hmmsearch --domtblout).
package hits

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/NeLLi-team/nsgtree/nsgtree/errs"
	"github.com/shenwei356/xopen"
)

// DefaultSeparator separates genome and protein IDs in target names.
const DefaultSeparator = "|"

// NumFields is the minimum number of columns of a domain table line.
const NumFields = 22

// DefaultMaxMalformedFraction is the default tolerance of malformed lines.
var DefaultMaxMalformedFraction = 0.5

// Hit is one domain hit of a marker profile in a protein sequence.
type Hit struct {
	Target  string // <genome>|<protein>
	Genome  string
	Protein string
	TLen    int // target length

	Marker string // query profile name

	FullEValue float64 // E-value of the full sequence
	FullScore  float64 // bit score of the full sequence

	Domain     int     // domain index, 1-based
	NumDomains int     // number of domains
	EValue     float64 // independent E-value of the domain
	Score      float64 // bit score of the domain

	HMMFrom, HMMTo int // coordinates on the profile
	AliFrom, AliTo int // alignment coordinates on the target, 1-based
	EnvFrom, EnvTo int // envelope coordinates on the target, 1-based

	Order int // position in the hit stream, 0-based
}

func (h Hit) String() string {
	return fmt.Sprintf("%s %s domain %d/%d, score: %.1f, e-value: %g, ali: %d-%d",
		h.Marker, h.Target, h.Domain, h.NumDomains, h.Score, h.EValue, h.AliFrom, h.AliTo)
}

// Options contains the parsing options.
type Options struct {
	Separator            string  // genome-protein separator in target names
	MaxMalformedFraction float64 // return a FormatError above this fraction
}

// DefaultOptions returns the default options.
func DefaultOptions() *Options {
	return &Options{
		Separator:            DefaultSeparator,
		MaxMalformedFraction: DefaultMaxMalformedFraction,
	}
}

// Summary records what a pass over a hit table saw.
type Summary struct {
	Lines     int // all lines
	Comments  int // comment and blank lines
	Hits      int // parsed hits
	Malformed int // skipped lines

	FirstMalformed     int    // line number of the first malformed line, 1-based
	FirstMalformedText string // reason of the first malformed line
}

// MalformedFraction is the fraction of data lines that were skipped.
func (s *Summary) MalformedFraction() float64 {
	n := s.Hits + s.Malformed
	if n == 0 {
		return 0
	}
	return float64(s.Malformed) / float64(n)
}

// SplitTarget splits a target name on the first separator.
func SplitTarget(target string, sep string) (genome string, protein string, ok bool) {
	i := strings.Index(target, sep)
	if i <= 0 || i+len(sep) >= len(target) {
		return "", "", false
	}
	return target[:i], target[i+len(sep):], true
}

// ParseLine parses a non-comment line of a domain table.
// The returned hit has no Order.
func ParseLine(line string, sep string) (*Hit, error) {
	items := strings.Fields(line)
	if len(items) < NumFields {
		return nil, fmt.Errorf("%d columns (<%d)", len(items), NumFields)
	}

	var h Hit
	var ok bool
	var err error

	h.Target = items[0]
	h.Genome, h.Protein, ok = SplitTarget(h.Target, sep)
	if !ok {
		return nil, fmt.Errorf("target name without separator %q: %s", sep, h.Target)
	}
	h.Marker = items[3]

	ints := []struct {
		v    *int
		col  int
		name string
	}{
		{&h.TLen, 2, "tlen"},
		{&h.Domain, 9, "domain index"},
		{&h.NumDomains, 10, "domain number"},
		{&h.HMMFrom, 15, "hmm from"},
		{&h.HMMTo, 16, "hmm to"},
		{&h.AliFrom, 17, "ali from"},
		{&h.AliTo, 18, "ali to"},
		{&h.EnvFrom, 19, "env from"},
		{&h.EnvTo, 20, "env to"},
	}
	for _, f := range ints {
		*f.v, err = strconv.Atoi(items[f.col])
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %s", f.name, items[f.col])
		}
	}

	floats := []struct {
		v    *float64
		col  int
		name string
	}{
		{&h.FullEValue, 6, "full E-value"},
		{&h.FullScore, 7, "full score"},
		{&h.EValue, 12, "i-Evalue"},
		{&h.Score, 13, "domain score"},
	}
	for _, f := range floats {
		*f.v, err = strconv.ParseFloat(items[f.col], 64)
		if err != nil || math.IsNaN(*f.v) || math.IsInf(*f.v, 0) {
			return nil, fmt.Errorf("failed to parse %s: %s", f.name, items[f.col])
		}
	}

	if h.AliFrom < 1 || h.AliTo < h.AliFrom {
		return nil, fmt.Errorf("invalid alignment coordinates: %d-%d", h.AliFrom, h.AliTo)
	}
	if h.EnvFrom < 1 || h.EnvTo < h.EnvFrom {
		return nil, fmt.Errorf("invalid envelope coordinates: %d-%d", h.EnvFrom, h.EnvTo)
	}

	return &h, nil
}

// Parse streams hits from r to fn in input order.
// Malformed lines are skipped and counted. After the pass, a FormatError is
// returned if the fraction of malformed lines exceeds the tolerance.
// An error returned by fn stops the pass and is returned as is.
func Parse(r io.Reader, opt *Options, fn func(h *Hit) error) (*Summary, error) {
	if opt == nil {
		opt = DefaultOptions()
	}
	sep := opt.Separator
	if sep == "" {
		sep = DefaultSeparator
	}

	s := &Summary{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<24)

	var line string
	var h *Hit
	var err error
	for scanner.Scan() {
		s.Lines++
		line = strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" || line[0] == '#' {
			s.Comments++
			continue
		}

		h, err = ParseLine(line, sep)
		if err != nil {
			if s.Malformed == 0 {
				s.FirstMalformed = s.Lines
				s.FirstMalformedText = err.Error()
			}
			s.Malformed++
			continue
		}

		h.Order = s.Hits
		s.Hits++
		if err = fn(h); err != nil {
			return s, err
		}
	}
	if err = scanner.Err(); err != nil {
		return s, err
	}

	if s.Malformed > 0 && s.MalformedFraction() > opt.MaxMalformedFraction {
		return s, errs.Format("%d of %d data lines malformed (%.4f > %.4f), first at line %d: %s",
			s.Malformed, s.Hits+s.Malformed, s.MalformedFraction(), opt.MaxMalformedFraction,
			s.FirstMalformed, s.FirstMalformedText)
	}
	return s, nil
}

// Table is a domain table file. Every call of Scan reads the file again,
// so a Table can be iterated any number of times.
type Table struct {
	File string
	opt  *Options
}

// NewTable returns a Table for a (possibly compressed) file.
func NewTable(file string, opt *Options) *Table {
	if opt == nil {
		opt = DefaultOptions()
	}
	return &Table{File: file, opt: opt}
}

// Scan streams all hits of the table to fn.
func (t *Table) Scan(fn func(h *Hit) error) (*Summary, error) {
	fh, err := xopen.Ropen(t.File)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	return Parse(fh, t.opt, fn)
}

// ReadAll returns all hits of the table.
func (t *Table) ReadAll() ([]*Hit, *Summary, error) {
	hs := make([]*Hit, 0, 1024)
	s, err := t.Scan(func(h *Hit) error {
		hs = append(hs, h)
		return nil
	})
	if err != nil {
		return nil, s, err
	}
	return hs, s, nil
}
