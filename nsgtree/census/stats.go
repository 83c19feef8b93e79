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

package census

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Stats are the completeness and duplication statistics of a genome.
type Stats struct {
	Genome string

	Markers    int // number of markers
	Present    int // markers with at least one hit
	Copies     int // sum of hit counts
	Exactly2   int // markers with exactly two hits
	Duplicated int // markers with more than one hit
	MaxCopies  int // largest hit count of any marker

	// Present / Markers
	Completeness float64
	// Exactly2 / Present, 0 if no marker is present
	SingleCopyDupRatio float64
	// Copies / Present, 0 if no marker is present
	TotalDupRatio float64
}

func computeStats(genome string, counts []int) Stats {
	s := Stats{Genome: genome, Markers: len(counts)}
	for _, n := range counts {
		if n == 0 {
			continue
		}
		s.Present++
		s.Copies += n
		if n == 2 {
			s.Exactly2++
		}
		if n > 1 {
			s.Duplicated++
		}
		if n > s.MaxCopies {
			s.MaxCopies = n
		}
	}
	if s.Markers > 0 {
		s.Completeness = float64(s.Present) / float64(s.Markers)
	}
	if s.Present > 0 {
		s.SingleCopyDupRatio = float64(s.Exactly2) / float64(s.Present)
		s.TotalDupRatio = float64(s.Copies) / float64(s.Present)
	}
	return s
}

// Summary summarizes completeness and duplication over genomes.
type Summary struct {
	Genomes int

	MeanCompleteness   float64
	StdevCompleteness  float64
	MedianCompleteness float64

	MeanTotalDupRatio float64

	NoHits int // genomes without any hit
}

// Summarize summarizes the statistics of all genomes.
func (c *Census) Summarize() Summary {
	s := Summary{Genomes: len(c.stats)}
	if s.Genomes == 0 {
		return s
	}

	comp := make([]float64, 0, s.Genomes)
	dup := make([]float64, 0, s.Genomes)
	for _, st := range c.stats {
		comp = append(comp, st.Completeness)
		dup = append(dup, st.TotalDupRatio)
		if st.Present == 0 {
			s.NoHits++
		}
	}

	s.MeanCompleteness, s.StdevCompleteness = stat.MeanStdDev(comp, nil)
	if s.Genomes == 1 {
		s.StdevCompleteness = 0
	}
	s.MeanTotalDupRatio = stat.Mean(dup, nil)

	sort.Float64s(comp)
	s.MedianCompleteness = stat.Quantile(0.5, stat.Empirical, comp, nil)

	return s
}
