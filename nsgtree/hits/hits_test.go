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

package hits

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/NeLLi-team/nsgtree/nsgtree/errs"
)

const domtbl = `#                                                                            --- full sequence --- -------------- this domain -------------   hmm coord   ali coord   env coord
# target name        accession   tlen query name           accession   qlen   E-value  score  bias   #  of  c-Evalue  i-Evalue  score  bias  from    to  from    to  from    to  acc description of target
#------------------- ---------- ----- -------------------- ---------- ----- --------- ------ ----- --- --- --------- --------- ------ ----- ----- ----- ----- ----- ----- ----- ---- ---------------------
gA|p1                -            300 M1                   -            280   1.2e-80  270.1   0.1   1   1   1.1e-83   1.3e-80  269.9   0.1     2   279    10   290     8   295 0.98 -
gA|p2                -            250 M2                   -            240   3.4e-50  170.2   0.2   1   2   2.1e-30   2.2e-27   95.0   0.0     1   120     5   130     3   132 0.95 -
gA|p2                -            250 M2                   -            240   3.4e-50  170.2   0.2   2   2   1.1e-25   1.2e-22   80.1   0.0   121   240   131   245   131   248 0.94 -
gB|p7                -            310 M1                   -            280   5.0e-70  240.0   0.3   1   1   4.0e-73   4.8e-70  239.8   0.3     3   280    20   300    18   305 0.97 protein X
`

func TestParse(t *testing.T) {
	var hs []*Hit
	s, err := Parse(strings.NewReader(domtbl), nil, func(h *Hit) error {
		hs = append(hs, h)
		return nil
	})
	if err != nil {
		t.Error(err)
		return
	}
	if s.Hits != 4 || s.Comments != 3 || s.Malformed != 0 {
		t.Errorf("unexpected summary: %+v", s)
	}
	if len(hs) != 4 {
		t.Errorf("expected 4 hits, results: %d", len(hs))
		return
	}

	h := hs[2]
	if h.Genome != "gA" || h.Protein != "p2" || h.Marker != "M2" {
		t.Errorf("unexpected ids: %s %s %s", h.Genome, h.Protein, h.Marker)
	}
	if h.Domain != 2 || h.NumDomains != 2 || h.AliFrom != 131 || h.AliTo != 245 {
		t.Errorf("unexpected coordinates: %s", h)
	}
	if h.Score != 80.1 || h.EValue != 1.2e-22 || h.FullScore != 170.2 {
		t.Errorf("unexpected scores: %s", h)
	}
	for i, h := range hs {
		if h.Order != i {
			t.Errorf("expected order %d, results: %d", i, h.Order)
		}
	}
}

func TestSplitTarget(t *testing.T) {
	cases := []struct {
		target, genome, protein string
		ok                      bool
	}{
		{"gA|p1", "gA", "p1", true},
		{"gA|p1|x", "gA", "p1|x", true},
		{"gA", "", "", false},
		{"|p1", "", "", false},
		{"gA|", "", "", false},
	}
	for _, c := range cases {
		g, p, ok := SplitTarget(c.target, "|")
		if g != c.genome || p != c.protein || ok != c.ok {
			t.Errorf("%s: expected: (%s, %s, %v), results: (%s, %s, %v)",
				c.target, c.genome, c.protein, c.ok, g, p, ok)
		}
	}
}

func TestParseMalformedTolerated(t *testing.T) {
	input := domtbl + "gC|p1 - 100 M1\n" // too few columns
	s, err := Parse(strings.NewReader(input), nil, func(h *Hit) error { return nil })
	if err != nil {
		t.Error(err)
		return
	}
	if s.Malformed != 1 || s.Hits != 4 || s.FirstMalformed != 8 {
		t.Errorf("unexpected summary: %+v", s)
	}
}

func TestParseMalformedMajority(t *testing.T) {
	lines := []string{
		"gA|p1 - 300 M1 - 280 1e-80 270.1 0.1 1 1 1e-83 1e-80 269.9 0.1 2 279 10 290 8 295 0.98 -",
		"gA|p2 - 300 M1 - 280 1e-80 notanumber 0.1 1 1 1e-83 1e-80 269.9 0.1 2 279 10 290 8 295 0.98 -",
		"noseparator - 300 M1 - 280 1e-80 270.1 0.1 1 1 1e-83 1e-80 269.9 0.1 2 279 10 290 8 295 0.98 -",
	}
	s, err := Parse(strings.NewReader(strings.Join(lines, "\n")), nil, func(h *Hit) error { return nil })
	if !errors.Is(err, errs.ErrFormat) {
		t.Errorf("expected a format error, results: %v", err)
	}
	if s.Malformed != 2 || s.Hits != 1 {
		t.Errorf("unexpected summary: %+v", s)
	}

	// a looser tolerance accepts it
	opt := DefaultOptions()
	opt.MaxMalformedFraction = 0.7
	_, err = Parse(strings.NewReader(strings.Join(lines, "\n")), opt, func(h *Hit) error { return nil })
	if err != nil {
		t.Errorf("expected no error, results: %v", err)
	}
}

func TestTableRestartable(t *testing.T) {
	file := filepath.Join(t.TempDir(), "hits.domtbl")
	if err := os.WriteFile(file, []byte(domtbl), 0644); err != nil {
		t.Error(err)
		return
	}

	tbl := NewTable(file, nil)
	for i := 0; i < 2; i++ {
		hs, s, err := tbl.ReadAll()
		if err != nil {
			t.Error(err)
			return
		}
		if len(hs) != 4 || s.Hits != 4 {
			t.Errorf("pass %d: expected 4 hits, results: %d", i, len(hs))
		}
	}

	stop := errors.New("stop")
	n := 0
	_, err := tbl.Scan(func(h *Hit) error {
		n++
		if n == 2 {
			return stop
		}
		return nil
	})
	if err != stop || n != 2 {
		t.Errorf("expected early stop after 2 hits, results: %v, %d", err, n)
	}
}

func TestParseNonFinite(t *testing.T) {
	lines := []string{
		"gA|p1 - 300 M1 - 280 1e-80 270.1 0.1 1 1 1e-83 1e-80 nan 0.1 2 279 10 290 8 295 0.98 -",
		"gA|p2 - 300 M1 - 280 1e-80 270.1 0.1 1 1 1e-83 inf 269.9 0.1 2 279 10 290 8 295 0.98 -",
		"gA|p3 - 300 M1 - 280 1e-80 -Inf 0.1 1 1 1e-83 1e-80 269.9 0.1 2 279 10 290 8 295 0.98 -",
		"gA|p4 - 300 M1 - 280 1e-80 300 0.1 1 1 1e-83 1e-80 300 0.1 2 279 10 290 8 295 0.98 -",
	}
	for _, line := range lines[:3] {
		if _, err := ParseLine(line, DefaultSeparator); err == nil {
			t.Errorf("expected an error for a non-finite value: %s", line)
		}
	}

	opt := DefaultOptions()
	opt.MaxMalformedFraction = 0.9
	var hs []*Hit
	s, err := Parse(strings.NewReader(strings.Join(lines, "\n")), opt, func(h *Hit) error {
		hs = append(hs, h)
		return nil
	})
	if err != nil {
		t.Error(err)
		return
	}
	if s.Malformed != 3 || s.Hits != 1 || len(hs) != 1 || hs[0].Protein != "p4" {
		t.Errorf("unexpected summary: %+v", s)
	}
}
