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

package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/NeLLi-team/nsgtree/nsgtree/census"
	"github.com/NeLLi-team/nsgtree/nsgtree/errs"
	"github.com/NeLLi-team/nsgtree/nsgtree/hits"
)

type mapSource map[string]map[string]string

func (s mapSource) Proteins(genome string, ids []string) (map[string][]byte, error) {
	ps, ok := s[genome]
	if !ok {
		return nil, errs.Data("unknown genome: %s", genome)
	}
	m := make(map[string][]byte, len(ids))
	for _, id := range ids {
		if p, ok := ps[id]; ok {
			m[id] = []byte(p)
		}
	}
	return m, nil
}

func hit(genome, protein, marker string, score, evalue float64, from, to, order int) *hits.Hit {
	return &hits.Hit{
		Target:  genome + "|" + protein,
		Genome:  genome,
		Protein: protein,
		Marker:  marker,
		Score:   score,
		EValue:  evalue,
		AliFrom: from,
		AliTo:   to,
		EnvFrom: 1,
		EnvTo:   to,
		Order:   order,
	}
}

func build(t *testing.T, markers, genomes []string, hs []*hits.Hit) *census.Census {
	c, err := census.Build(markers, genomes, hs)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestRepresentative(t *testing.T) {
	a := hit("A", "p1", "M1", 50, 1e-10, 1, 5, 0)
	b := hit("A", "p2", "M1", 80, 1e-5, 1, 5, 1)
	c := hit("A", "p3", "M1", 80, 1e-9, 1, 5, 2)
	d := hit("A", "p4", "M1", 80, 1e-9, 1, 5, 3)

	cases := []struct {
		hs       []*hits.Hit
		expected *hits.Hit
	}{
		{nil, nil},
		{[]*hits.Hit{a}, a},
		{[]*hits.Hit{a, b}, b},       // higher score
		{[]*hits.Hit{a, b, c}, c},    // same score, lower e-value
		{[]*hits.Hit{d, a, b, c}, c}, // same score and e-value, earlier in stream
	}
	for i, cs := range cases {
		if r := Representative(cs.hs); r != cs.expected {
			t.Errorf("case %d: expected: %v, results: %v", i, cs.expected, r)
		}
	}
}

func TestExtract(t *testing.T) {
	src := mapSource{
		"A": {"a1": "MKWLLPREAA", "a2": "MSTNPKPQRK"},
		"B": {"b1": "MAAAAAAAAA"},
	}
	hs := []*hits.Hit{
		hit("A", "a1", "M1", 100, 1e-20, 2, 5, 0),
		hit("A", "a2", "M1", 90, 1e-30, 1, 10, 1),
		hit("A", "a2", "M2", 90, 1e-30, 3, 4, 2),
		hit("B", "b1", "M1", 10, 1e-3, 1, 10, 3),
	}
	c := build(t, []string{"M1", "M2", "M3"}, []string{"A", "B"}, hs)

	for _, threads := range []int{1, 4} {
		sets, err := Extract(context.Background(), c, []string{"A", "B"}, src, &Options{Threads: threads})
		if err != nil {
			t.Error(err)
			return
		}
		if len(sets) != 3 {
			t.Errorf("expected 3 marker sets, results: %d", len(sets))
			return
		}
		if len(sets[2].Sequences) != 0 || sets[2].Marker != "M3" {
			t.Errorf("expected an empty set for M3")
		}

		m1 := sets[0].Sequences
		if len(m1) != 2 || m1[0].Protein != "a1" || string(m1[0].Residues) != "KWLL" ||
			m1[0].Start != 2 || m1[0].End != 5 {
			t.Errorf("unexpected M1 region of A: %+v", m1[0])
		}
		if m1[1].Genome != "B" || string(m1[1].Residues) != "MAAAAAAAAA" {
			t.Errorf("unexpected M1 region of B: %+v", m1[1])
		}

		var buf bytes.Buffer
		if err = sets[0].WriteFasta(&buf, 0); err != nil {
			t.Error(err)
			return
		}
		if buf.String() != ">A|a1\nKWLL\n>B|b1\nMAAAAAAAAA\n" {
			t.Errorf("unexpected fasta: %q", buf.String())
		}

		buf.Reset()
		sets[1].WriteFasta(&buf, 1)
		if buf.String() != ">A|a2\nT\nN\n" {
			t.Errorf("unexpected wrapped fasta: %q", buf.String())
		}
	}

	// only retained genomes
	sets, err := Extract(context.Background(), c, []string{"B"}, src, nil)
	if err != nil {
		t.Error(err)
		return
	}
	if len(sets[0].Sequences) != 1 || len(sets[1].Sequences) != 0 {
		t.Errorf("unexpected sets for B only")
	}
}

func TestRegions(t *testing.T) {
	src := mapSource{"A": {"a1": "MKWLLPREAA"}}
	h := hit("A", "a1", "M1", 100, 1e-20, 3, 5, 0)
	h.EnvFrom, h.EnvTo = 2, 8
	c := build(t, []string{"M1"}, nil, []*hits.Hit{h})

	cases := []struct {
		opt      *Options
		expected string
	}{
		{&Options{}, "WLL"},
		{&Options{Envelope: true}, "KWLLPRE"},
		{&Options{WholeProtein: true}, "MKWLLPREAA"},
	}
	for i, cs := range cases {
		sets, err := Extract(context.Background(), c, []string{"A"}, src, cs.opt)
		if err != nil {
			t.Error(err)
			return
		}
		if r := string(sets[0].Sequences[0].Residues); r != cs.expected {
			t.Errorf("case %d: expected: %s, results: %s", i, cs.expected, r)
		}
	}

	if _, err := Extract(context.Background(), c, []string{"A"}, src, &Options{Envelope: true, WholeProtein: true}); !errors.Is(err, errs.ErrConfig) {
		t.Errorf("expected a config error, results: %v", err)
	}
}

func TestDataErrors(t *testing.T) {
	src := mapSource{"A": {"a1": "MKWLL"}}

	outOfRange := build(t, []string{"M1"}, nil, []*hits.Hit{hit("A", "a1", "M1", 1, 1, 3, 9, 0)})
	if _, err := Extract(context.Background(), outOfRange, []string{"A"}, src, nil); !errors.Is(err, errs.ErrData) {
		t.Errorf("expected a data error for out-of-range coordinates, results: %v", err)
	}

	missing := build(t, []string{"M1"}, nil, []*hits.Hit{hit("A", "a9", "M1", 1, 1, 1, 2, 0)})
	if _, err := Extract(context.Background(), missing, []string{"A"}, src, &Options{Threads: 2}); !errors.Is(err, errs.ErrData) {
		t.Errorf("expected a data error for a missing protein, results: %v", err)
	}
}

func TestLengthRules(t *testing.T) {
	// lengths 10, 20, 30, 40 and 2
	src := mapSource{}
	var hs []*hits.Hit
	lens := []int{10, 20, 30, 40, 2}
	genomes := make([]string, len(lens))
	for i, n := range lens {
		g := fmt.Sprintf("G%d", i)
		genomes[i] = g
		src[g] = map[string]string{"p": string(bytes.Repeat([]byte{'A'}, n))}
		hs = append(hs, hit(g, "p", "M1", 1, 1, 1, n, i))
	}
	c := build(t, []string{"M1"}, genomes, hs)

	labels := func(opt *Options) []string {
		sets, err := Extract(context.Background(), c, genomes, src, opt)
		if err != nil {
			t.Fatal(err)
		}
		list := make([]string, 0, len(sets[0].Sequences))
		for _, s := range sets[0].Sequences {
			list = append(list, s.Genome)
		}
		return list
	}

	if r := labels(&Options{}); len(r) != 5 {
		t.Errorf("no rule should keep all, results: %v", r)
	}
	if r := labels(&Options{MinLength: 15}); !reflect.DeepEqual(r, []string{"G1", "G2", "G3"}) {
		t.Errorf("unexpected results of min length: %v", r)
	}
	// median of 2, 10, 20, 30, 40 is 20
	if r := labels(&Options{MinLengthFraction: 0.5}); !reflect.DeepEqual(r, []string{"G0", "G1", "G2", "G3"}) {
		t.Errorf("unexpected results of min length fraction: %v", r)
	}
	// the stricter rule applies
	if r := labels(&Options{MinLength: 25, MinLengthFraction: 0.5}); !reflect.DeepEqual(r, []string{"G2", "G3"}) {
		t.Errorf("unexpected results of combined rules: %v", r)
	}

	if _, err := Extract(context.Background(), c, genomes, src, &Options{MinLengthFraction: 1.5}); !errors.Is(err, errs.ErrConfig) {
		t.Errorf("expected a config error, results: %v", err)
	}
}
