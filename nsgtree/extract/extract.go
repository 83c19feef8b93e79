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

// Package extract cuts the hit region of the best hit of every retained
// genome and marker, and groups the regions by marker.
package extract

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/NeLLi-team/nsgtree/nsgtree/census"
	"github.com/NeLLi-team/nsgtree/nsgtree/errs"
	"github.com/NeLLi-team/nsgtree/nsgtree/hits"
	"github.com/NeLLi-team/nsgtree/nsgtree/pool"
	"gonum.org/v1/gonum/stat"
)

// SequenceSource returns residues of proteins of a genome.
// Proteins absent from the genome are absent from the returned map.
type SequenceSource interface {
	Proteins(genome string, ids []string) (map[string][]byte, error)
}

// Options contains the options of extraction.
type Options struct {
	Threads int

	// Envelope uses envelope coordinates instead of alignment coordinates.
	Envelope bool
	// WholeProtein keeps the whole protein of the representative hit.
	WholeProtein bool

	// MinLength is the minimum number of residues of a region.
	MinLength int
	// MinLengthFraction is the minimum length of a region, relative to the
	// median region length of the marker.
	MinLengthFraction float64

	// Progress shows progress bars on it if not nil.
	Progress io.Writer
}

// DefaultOptions returns the default options.
func DefaultOptions() *Options {
	return &Options{Threads: 1}
}

// Validate checks the options.
func (opt *Options) Validate() error {
	if opt.MinLength < 0 {
		return errs.Config("invalid min length: %d, should be >= 0", opt.MinLength)
	}
	if !(opt.MinLengthFraction >= 0 && opt.MinLengthFraction <= 1) {
		return errs.Config("invalid min length fraction: %v, valid range: [0, 1]", opt.MinLengthFraction)
	}
	if opt.Envelope && opt.WholeProtein {
		return errs.Config("envelope coordinates and whole proteins are mutually exclusive")
	}
	return nil
}

// Sequence is the region of a protein chosen for a genome and marker.
type Sequence struct {
	Genome   string
	Marker   string
	Protein  string
	Residues []byte
	Start    int // 1-based
	End      int // 1-based, inclusive
}

// Label returns "<genome>|<protein>".
func (s *Sequence) Label() string {
	return s.Genome + hits.DefaultSeparator + s.Protein
}

// MarkerSet is the sequences of a marker, in genome order.
type MarkerSet struct {
	Marker    string
	Sequences []*Sequence

	// regions dropped by the length rules
	Short int
}

// WriteFasta writes the sequences in FASTA format.
func (m *MarkerSet) WriteFasta(w io.Writer, lineWidth int) error {
	bw := bufio.NewWriter(w)
	for _, s := range m.Sequences {
		fmt.Fprintf(bw, ">%s\n", s.Label())
		if lineWidth <= 0 {
			bw.Write(s.Residues)
			bw.WriteByte('\n')
			continue
		}
		for i := 0; i < len(s.Residues); i += lineWidth {
			j := i + lineWidth
			if j > len(s.Residues) {
				j = len(s.Residues)
			}
			bw.Write(s.Residues[i:j])
			bw.WriteByte('\n')
		}
	}
	return bw.Flush()
}

// Representative returns the best hit: the highest score, then the lowest
// E-value, then the earliest in the hit stream.
func Representative(hs []*hits.Hit) *hits.Hit {
	var best *hits.Hit
	for _, h := range hs {
		if best == nil || better(h, best) {
			best = h
		}
	}
	return best
}

func better(a, b *hits.Hit) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.EValue != b.EValue {
		return a.EValue < b.EValue
	}
	return a.Order < b.Order
}

// Extract extracts regions of retained genomes and returns one MarkerSet
// per marker in census marker order. Markers without any hit of retained
// genomes get empty sets.
func Extract(ctx context.Context, c *census.Census, retained []string, src SequenceSource, opt *Options) ([]*MarkerSet, error) {
	if opt == nil {
		opt = DefaultOptions()
	}
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	threads := opt.Threads
	if threads <= 0 {
		threads = 1
	}

	// representative hits, genome × marker
	nm := len(c.Markers)
	reps := make([][]*hits.Hit, len(retained))
	for gi, g := range retained {
		if !c.HasGenome(g) {
			return nil, errs.Config("genome not in census: %s", g)
		}
		reps[gi] = make([]*hits.Hit, nm)
		for mi, m := range c.Markers {
			reps[gi][mi] = Representative(c.Hits(g, m))
		}
	}

	// stage 1: load needed proteins, one job per genome

	proteins := make([]map[string][]byte, len(retained))
	err := pool.ForEach(ctx, len(retained), threads, opt.Progress, "loaded genomes", func(gi int) error {
		ids := make([]string, 0, nm)
		for _, h := range reps[gi] {
			if h != nil {
				ids = append(ids, h.Protein)
			}
		}
		if len(ids) == 0 {
			return nil
		}
		m, err := src.Proteins(retained[gi], ids)
		if err != nil {
			return err
		}
		proteins[gi] = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	// stage 2: cut regions, one job per marker

	sets := make([]*MarkerSet, nm)
	err = pool.ForEach(ctx, nm, threads, opt.Progress, "extracted markers", func(mi int) error {
		set := &MarkerSet{Marker: c.Markers[mi], Sequences: make([]*Sequence, 0, len(retained))}
		for gi, g := range retained {
			h := reps[gi][mi]
			if h == nil {
				continue
			}
			s, err := cut(g, h, proteins[gi], opt)
			if err != nil {
				return err
			}
			set.Sequences = append(set.Sequences, s)
		}
		applyLengthRules(set, opt)
		sets[mi] = set
		return nil
	})
	if err != nil {
		return nil, err
	}

	return sets, nil
}

func cut(genome string, h *hits.Hit, proteins map[string][]byte, opt *Options) (*Sequence, error) {
	residues, ok := proteins[h.Protein]
	if !ok {
		return nil, errs.Data("protein %s of genome %s (marker %s) not found", h.Protein, genome, h.Marker)
	}

	var start, end int
	switch {
	case opt.WholeProtein:
		start, end = 1, len(residues)
	case opt.Envelope:
		start, end = h.EnvFrom, h.EnvTo
	default:
		start, end = h.AliFrom, h.AliTo
	}
	if start < 1 || end < start || end > len(residues) {
		return nil, errs.Data("invalid region %d-%d of protein %s of genome %s (length %d, marker %s)",
			start, end, h.Protein, genome, len(residues), h.Marker)
	}

	return &Sequence{
		Genome:   genome,
		Marker:   h.Marker,
		Protein:  h.Protein,
		Residues: residues[start-1 : end],
		Start:    start,
		End:      end,
	}, nil
}

func applyLengthRules(set *MarkerSet, opt *Options) {
	if len(set.Sequences) == 0 || (opt.MinLength <= 0 && opt.MinLengthFraction <= 0) {
		return
	}

	minLen := float64(opt.MinLength)
	if opt.MinLengthFraction > 0 {
		lens := make([]float64, len(set.Sequences))
		for i, s := range set.Sequences {
			lens[i] = float64(len(s.Residues))
		}
		sort.Float64s(lens)
		median := stat.Quantile(0.5, stat.Empirical, lens, nil)
		if v := opt.MinLengthFraction * median; v > minLen {
			minLen = v
		}
	}

	kept := set.Sequences[:0]
	for _, s := range set.Sequences {
		if float64(len(s.Residues)) < minLen {
			set.Short++
			continue
		}
		kept = append(kept, s)
	}
	set.Sequences = kept
}
