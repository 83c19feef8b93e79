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

// Package filter decides which genomes are kept for the supermatrix.
package filter

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/NeLLi-team/nsgtree/nsgtree/census"
	"github.com/NeLLi-team/nsgtree/nsgtree/errs"
	"github.com/shenwei356/xopen"
)

// Reason is why a genome is removed.
type Reason uint8

const (
	None                Reason = iota // retained
	BelowMinMarker                    // completeness < min_marker_fraction
	ExceedsMaxSingleDup               // single-copy duplication ratio > max_single_copy_dup_ratio
	ExceedsMaxDup                     // overall duplication ratio > max_total_dup_ratio
)

var reasonNames = [...]string{"none", "below_min_marker", "exceeds_max_single_dup", "exceeds_max_dup"}

func (r Reason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return fmt.Sprintf("Reason(%d)", r)
}

// ParseReason is the inverse of Reason.String.
func ParseReason(s string) (Reason, error) {
	for i, name := range reasonNames {
		if name == s {
			return Reason(i), nil
		}
	}
	return None, fmt.Errorf("unknown reason: %s", s)
}

// Thresholds are the retention thresholds.
type Thresholds struct {
	MinMarkerFraction     float64 `yaml:"min_marker_fraction" toml:"min_marker_fraction"`
	MaxSingleCopyDupRatio float64 `yaml:"max_single_copy_dup_ratio" toml:"max_single_copy_dup_ratio"`
	MaxTotalDupRatio      float64 `yaml:"max_total_dup_ratio" toml:"max_total_dup_ratio"`
}

// DefaultThresholds returns the default thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinMarkerFraction:     0.1,
		MaxSingleCopyDupRatio: 0.3,
		MaxTotalDupRatio:      4.0,
	}
}

// Validate checks the thresholds.
func (t Thresholds) Validate() error {
	check := func(name string, v float64) error {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return errs.Config("invalid %s: %v, should be a non-negative number", name, v)
		}
		return nil
	}
	if err := check("min_marker_fraction", t.MinMarkerFraction); err != nil {
		return err
	}
	if t.MinMarkerFraction > 1 {
		return errs.Config("invalid min_marker_fraction: %v, valid range: [0, 1]", t.MinMarkerFraction)
	}
	if err := check("max_single_copy_dup_ratio", t.MaxSingleCopyDupRatio); err != nil {
		return err
	}
	return check("max_total_dup_ratio", t.MaxTotalDupRatio)
}

// Decision is the filtering decision of a genome.
type Decision struct {
	Genome   string
	Retained bool
	Reason   Reason
	Stats    census.Stats
}

// Metric returns the value compared for the reason, formatted as "name:value".
func (d Decision) Metric() string {
	switch d.Reason {
	case BelowMinMarker:
		return fmt.Sprintf("completeness:%.4f", d.Stats.Completeness)
	case ExceedsMaxSingleDup:
		return fmt.Sprintf("single_copy_dup_ratio:%.4f", d.Stats.SingleCopyDupRatio)
	case ExceedsMaxDup:
		return fmt.Sprintf("total_dup_ratio:%.4f", d.Stats.TotalDupRatio)
	}
	return ""
}

// Result holds decisions of all genomes in census order.
type Result struct {
	Thresholds Thresholds
	Decisions  []Decision
	Removed    []string // removed genomes in census order
}

// Decide returns the decision of one genome. Thresholds are checked in
// priority order: completeness, single-copy duplication, overall duplication.
func Decide(s census.Stats, t Thresholds) Decision {
	d := Decision{Genome: s.Genome, Stats: s}
	switch {
	case s.Completeness < t.MinMarkerFraction:
		d.Reason = BelowMinMarker
	case s.SingleCopyDupRatio > t.MaxSingleCopyDupRatio:
		d.Reason = ExceedsMaxSingleDup
	case s.TotalDupRatio > t.MaxTotalDupRatio:
		d.Reason = ExceedsMaxDup
	default:
		d.Retained = true
	}
	return d
}

// Apply applies the thresholds to all genomes of a census.
// It has no side effects.
func Apply(c *census.Census, t Thresholds) (*Result, error) {
	if c == nil || len(c.Markers) == 0 {
		return nil, errs.Config("empty marker list, filtering is undefined")
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	all := c.AllStats()
	r := &Result{
		Thresholds: t,
		Decisions:  make([]Decision, 0, len(all)),
		Removed:    make([]string, 0, 8),
	}
	for _, s := range all {
		d := Decide(s, t)
		r.Decisions = append(r.Decisions, d)
		if !d.Retained {
			r.Removed = append(r.Removed, d.Genome)
		}
	}
	return r, nil
}

// Retained returns retained genomes in census order.
func (r *Result) Retained() []string {
	list := make([]string, 0, len(r.Decisions)-len(r.Removed))
	for _, d := range r.Decisions {
		if d.Retained {
			list = append(list, d.Genome)
		}
	}
	return list
}

// Counts returns the number of removed genomes per reason.
func (r *Result) Counts() map[Reason]int {
	m := make(map[Reason]int, 4)
	for _, d := range r.Decisions {
		if !d.Retained {
			m[d.Reason]++
		}
	}
	return m
}

// WriteRemoved writes removed genomes, one per line:
// genome, reason and the failed metric, tab-delimited.
func (r *Result) WriteRemoved(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, d := range r.Decisions {
		if d.Retained {
			continue
		}
		fmt.Fprintf(bw, "%s\t%s\t%s\n", d.Genome, d.Reason, d.Metric())
	}
	return bw.Flush()
}

// ReadRemoved reads genome IDs from the first column of a removed-taxa report.
func ReadRemoved(r io.Reader) ([]string, error) {
	list := make([]string, 0, 8)
	scanner := bufio.NewScanner(r)
	var line string
	var fields []string
	for scanner.Scan() {
		line = strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		fields = strings.Fields(line)
		list = append(list, fields[0])
	}
	return list, scanner.Err()
}

// ReadRemovedFile reads a removed-taxa report from a file.
func ReadRemovedFile(file string) ([]string, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return ReadRemoved(fh)
}
