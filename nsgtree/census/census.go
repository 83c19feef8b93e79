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

// Package census builds the genome-by-marker hit count matrix.
package census

import (
	"sort"

	"github.com/NeLLi-team/nsgtree/nsgtree/errs"
	"github.com/NeLLi-team/nsgtree/nsgtree/hits"
)

// Census is the genome × marker matrix of hit counts.
// Both key domains are fixed once Build returns.
//
// A count is the number of distinct proteins of a genome hit by a marker,
// so multiple domains of one protein count once.
type Census struct {
	Markers []string // profile order
	Genomes []string // discovery order

	markerIdx map[string]int
	genomeIdx map[string]int

	counts [][]int         // genome, marker
	hits   [][][]*hits.Hit // genome, marker, hits in stream order

	stats []Stats

	Ignored Ignored
}

// Ignored counts hits outside the key domains.
type Ignored struct {
	UnknownGenome int // hits of genomes outside the corpus
	UnknownMarker int // hits of markers absent from the profile file
}

// Build builds a census from the marker list, the genome corpus and hits.
//
// Every genome in the corpus gets a row, even without hits. If genomes is
// empty, the genomes are those seen in hits, sorted by ID.
// The result does not depend on the order of hits.
func Build(markers []string, genomes []string, hs []*hits.Hit) (*Census, error) {
	if len(markers) == 0 {
		return nil, errs.Config("empty marker list")
	}

	c := &Census{
		Markers:   markers,
		markerIdx: make(map[string]int, len(markers)),
	}
	for i, m := range markers {
		if _, ok := c.markerIdx[m]; ok {
			return nil, errs.Config("duplicated marker: %s", m)
		}
		c.markerIdx[m] = i
	}

	restricted := len(genomes) > 0
	if !restricted {
		seen := make(map[string]struct{}, 128)
		for _, h := range hs {
			if _, ok := c.markerIdx[h.Marker]; !ok {
				continue
			}
			seen[h.Genome] = struct{}{}
		}
		genomes = make([]string, 0, len(seen))
		for g := range seen {
			genomes = append(genomes, g)
		}
		sort.Strings(genomes)
	}

	c.Genomes = genomes
	c.genomeIdx = make(map[string]int, len(genomes))
	for i, g := range genomes {
		if _, ok := c.genomeIdx[g]; ok {
			return nil, errs.Config("duplicated genome: %s", g)
		}
		c.genomeIdx[g] = i
	}

	nm := len(markers)
	c.counts = make([][]int, len(genomes))
	c.hits = make([][][]*hits.Hit, len(genomes))
	for i := range genomes {
		c.counts[i] = make([]int, nm)
		c.hits[i] = make([][]*hits.Hit, nm)
	}

	// distinct proteins per cell
	proteins := make(map[[2]int]map[string]struct{}, len(genomes)*nm/2+1)

	var gi, mi int
	var ok bool
	var key [2]int
	for _, h := range hs {
		if mi, ok = c.markerIdx[h.Marker]; !ok {
			c.Ignored.UnknownMarker++
			continue
		}
		if gi, ok = c.genomeIdx[h.Genome]; !ok {
			c.Ignored.UnknownGenome++
			continue
		}

		c.hits[gi][mi] = append(c.hits[gi][mi], h)

		key = [2]int{gi, mi}
		ps, ok := proteins[key]
		if !ok {
			ps = make(map[string]struct{}, 2)
			proteins[key] = ps
		}
		if _, ok = ps[h.Protein]; !ok {
			ps[h.Protein] = struct{}{}
			c.counts[gi][mi]++
		}
	}

	for gi = range c.hits {
		for mi = range c.hits[gi] {
			list := c.hits[gi][mi]
			if len(list) > 1 {
				sort.Slice(list, func(i, j int) bool { return list[i].Order < list[j].Order })
			}
		}
	}

	c.stats = make([]Stats, len(genomes))
	for gi = range genomes {
		c.stats[gi] = computeStats(genomes[gi], c.counts[gi])
	}

	return c, nil
}

// HasGenome tells whether a genome is in the census.
func (c *Census) HasGenome(genome string) bool {
	_, ok := c.genomeIdx[genome]
	return ok
}

// Count returns the hit count of a genome and a marker.
// It returns 0 for unknown keys.
func (c *Census) Count(genome, marker string) int {
	gi, ok := c.genomeIdx[genome]
	if !ok {
		return 0
	}
	mi, ok := c.markerIdx[marker]
	if !ok {
		return 0
	}
	return c.counts[gi][mi]
}

// Row returns the counts of a genome in marker order, or nil.
// The returned slice must not be modified.
func (c *Census) Row(genome string) []int {
	gi, ok := c.genomeIdx[genome]
	if !ok {
		return nil
	}
	return c.counts[gi]
}

// Hits returns the hits of a genome and a marker in stream order.
// The returned slice must not be modified.
func (c *Census) Hits(genome, marker string) []*hits.Hit {
	gi, ok := c.genomeIdx[genome]
	if !ok {
		return nil
	}
	mi, ok := c.markerIdx[marker]
	if !ok {
		return nil
	}
	return c.hits[gi][mi]
}

// Stats returns the statistics of a genome.
func (c *Census) Stats(genome string) (Stats, bool) {
	gi, ok := c.genomeIdx[genome]
	if !ok {
		return Stats{}, false
	}
	return c.stats[gi], true
}

// AllStats returns the statistics of all genomes in genome order.
// The returned slice must not be modified.
func (c *Census) AllStats() []Stats {
	return c.stats
}

// MarkerTotals returns the number of genomes with at least one hit per marker.
func (c *Census) MarkerTotals() []int {
	totals := make([]int, len(c.Markers))
	for _, row := range c.counts {
		for mi, n := range row {
			if n > 0 {
				totals[mi]++
			}
		}
	}
	return totals
}
