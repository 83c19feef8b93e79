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

package filter

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/NeLLi-team/nsgtree/nsgtree/census"
	"github.com/NeLLi-team/nsgtree/nsgtree/errs"
	"github.com/NeLLi-team/nsgtree/nsgtree/hits"
)

func buildCensus(t *testing.T, markers []string, counts map[string][]int) *census.Census {
	genomes := make([]string, 0, len(counts))
	for g := range counts {
		genomes = append(genomes, g)
	}
	// stable, and not sorted, to check that decisions follow census order
	genomes = sortedReverse(genomes)

	var hs []*hits.Hit
	var order int
	for _, g := range genomes {
		for mi, n := range counts[g] {
			for k := 0; k < n; k++ {
				hs = append(hs, &hits.Hit{
					Genome:  g,
					Protein: fmt.Sprintf("%s_%d_%d", g, mi, k),
					Marker:  markers[mi],
					Order:   order,
				})
				order++
			}
		}
	}
	c, err := census.Build(markers, genomes, hs)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func sortedReverse(s []string) []string {
	for i := 0; i < len(s); i++ {
		for j := i + 1; j < len(s); j++ {
			if s[j] > s[i] {
				s[i], s[j] = s[j], s[i]
			}
		}
	}
	return s
}

func TestScenario(t *testing.T) {
	c := buildCensus(t, []string{"M1", "M2", "M3"}, map[string][]int{
		"A": {1, 1, 1},
		"B": {2, 0, 0},
	})
	th := Thresholds{MinMarkerFraction: 0.5, MaxSingleCopyDupRatio: 0.3, MaxTotalDupRatio: 4}
	r, err := Apply(c, th)
	if err != nil {
		t.Error(err)
		return
	}
	if !reflect.DeepEqual(r.Removed, []string{"B"}) {
		t.Errorf("expected B removed, results: %v", r.Removed)
	}
	for _, d := range r.Decisions {
		if d.Genome == "B" && d.Reason != BelowMinMarker {
			t.Errorf("expected reason %s, results: %s", BelowMinMarker, d.Reason)
		}
	}
	if !reflect.DeepEqual(r.Retained(), []string{"A"}) {
		t.Errorf("expected A retained, results: %v", r.Retained())
	}

	var buf bytes.Buffer
	if err = r.WriteRemoved(&buf); err != nil {
		t.Error(err)
		return
	}
	if buf.String() != "B\tbelow_min_marker\tcompleteness:0.3333\n" {
		t.Errorf("unexpected report: %q", buf.String())
	}

	list, err := ReadRemoved(&buf)
	if err != nil || !reflect.DeepEqual(list, []string{"B"}) {
		t.Errorf("unexpected removed list: %v, %v", list, err)
	}
}

func TestPriority(t *testing.T) {
	th := Thresholds{MinMarkerFraction: 0.5, MaxSingleCopyDupRatio: 0.2, MaxTotalDupRatio: 1.5}
	cases := []struct {
		s      census.Stats
		reason Reason
	}{
		// fails all three, completeness wins
		{census.Stats{Completeness: 0.1, SingleCopyDupRatio: 1, TotalDupRatio: 3}, BelowMinMarker},
		// fails both duplication checks, single-copy wins
		{census.Stats{Completeness: 0.9, SingleCopyDupRatio: 0.5, TotalDupRatio: 3}, ExceedsMaxSingleDup},
		{census.Stats{Completeness: 0.9, SingleCopyDupRatio: 0.1, TotalDupRatio: 3}, ExceedsMaxDup},
		// boundaries are inclusive for retention
		{census.Stats{Completeness: 0.5, SingleCopyDupRatio: 0.2, TotalDupRatio: 1.5}, None},
	}
	for i, c := range cases {
		d := Decide(c.s, th)
		if d.Reason != c.reason || d.Retained != (c.reason == None) {
			t.Errorf("case %d: expected: %s, results: %s", i, c.reason, d.Reason)
		}
	}
}

// removed reasons predict the failed comparison, retained genomes pass all.
func TestProperties(t *testing.T) {
	markers := []string{"M1", "M2", "M3", "M4", "M5"}
	r := rand.New(rand.NewSource(1))
	counts := make(map[string][]int, 50)
	for i := 0; i < 50; i++ {
		row := make([]int, len(markers))
		for j := range row {
			row[j] = r.Intn(4)
		}
		counts[fmt.Sprintf("g%02d", i)] = row
	}
	c := buildCensus(t, markers, counts)
	th := Thresholds{MinMarkerFraction: 0.6, MaxSingleCopyDupRatio: 0.4, MaxTotalDupRatio: 1.8}

	res, err := Apply(c, th)
	if err != nil {
		t.Error(err)
		return
	}
	for i, d := range res.Decisions {
		if d.Genome != c.Genomes[i] {
			t.Errorf("decisions should follow census order")
		}
		s := d.Stats
		if d.Retained {
			if s.Completeness < th.MinMarkerFraction || s.SingleCopyDupRatio > th.MaxSingleCopyDupRatio ||
				s.TotalDupRatio > th.MaxTotalDupRatio {
				t.Errorf("%s retained but fails a threshold: %+v", d.Genome, s)
			}
			continue
		}
		switch d.Reason {
		case BelowMinMarker:
			if !(s.Completeness < th.MinMarkerFraction) {
				t.Errorf("%s: wrong reason %s", d.Genome, d.Reason)
			}
		case ExceedsMaxSingleDup:
			if s.Completeness < th.MinMarkerFraction || !(s.SingleCopyDupRatio > th.MaxSingleCopyDupRatio) {
				t.Errorf("%s: wrong reason %s", d.Genome, d.Reason)
			}
		case ExceedsMaxDup:
			if s.Completeness < th.MinMarkerFraction || s.SingleCopyDupRatio > th.MaxSingleCopyDupRatio ||
				!(s.TotalDupRatio > th.MaxTotalDupRatio) {
				t.Errorf("%s: wrong reason %s", d.Genome, d.Reason)
			}
		default:
			t.Errorf("%s removed without reason", d.Genome)
		}
	}

	// pure function
	res2, err := Apply(c, th)
	if err != nil {
		t.Error(err)
		return
	}
	if !reflect.DeepEqual(res.Removed, res2.Removed) {
		t.Errorf("filtering twice gives different results")
	}
}

func TestValidate(t *testing.T) {
	bad := []Thresholds{
		{MinMarkerFraction: -0.1},
		{MinMarkerFraction: 1.1},
		{MinMarkerFraction: 0.5, MaxSingleCopyDupRatio: math.NaN()},
		{MinMarkerFraction: 0.5, MaxTotalDupRatio: math.Inf(1)},
	}
	for _, th := range bad {
		if err := th.Validate(); !errors.Is(err, errs.ErrConfig) {
			t.Errorf("expected a config error for %+v, results: %v", th, err)
		}
	}
	if err := DefaultThresholds().Validate(); err != nil {
		t.Errorf("default thresholds should be valid: %s", err)
	}

	if _, err := Apply(nil, DefaultThresholds()); !errors.Is(err, errs.ErrConfig) {
		t.Errorf("expected a config error for a nil census, results: %v", err)
	}
}

func TestReason(t *testing.T) {
	for _, r := range []Reason{None, BelowMinMarker, ExceedsMaxSingleDup, ExceedsMaxDup} {
		r2, err := ParseReason(r.String())
		if err != nil || r2 != r {
			t.Errorf("expected: %s, results: %s (%v)", r, r2, err)
		}
	}
	if _, err := ParseReason("other"); err == nil {
		t.Errorf("expected an error for an unknown reason")
	}
}
