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

package phylo

import (
	"bufio"
	"io"
	"strings"

	"github.com/shenwei356/xopen"
)

// Partition is the set of query taxa. All other leaves are references.
type Partition struct {
	labels []string
	set    map[string]struct{}
}

// NewPartition creates a partition from query labels.
// Duplicated labels are ignored.
func NewPartition(labels []string) *Partition {
	p := &Partition{
		labels: make([]string, 0, len(labels)),
		set:    make(map[string]struct{}, len(labels)),
	}
	for _, l := range labels {
		if _, ok := p.set[l]; ok {
			continue
		}
		p.set[l] = struct{}{}
		p.labels = append(p.labels, l)
	}
	return p
}

// PartitionByPrefix marks leaves with the prefix as queries.
func PartitionByPrefix(t *Tree, prefix string) *Partition {
	labels := make([]string, 0, 8)
	for _, n := range t.leaves {
		if strings.HasPrefix(n.Label, prefix) {
			labels = append(labels, n.Label)
		}
	}
	return NewPartition(labels)
}

// ReadPartition reads query labels, one per line.
// Blank lines and lines starting with "#" are skipped.
func ReadPartition(r io.Reader) (*Partition, error) {
	labels := make([]string, 0, 64)
	scanner := bufio.NewScanner(r)
	var line string
	for scanner.Scan() {
		line = strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		labels = append(labels, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return NewPartition(labels), nil
}

// ReadPartitionFile reads query labels from a file.
func ReadPartitionFile(file string) (*Partition, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return ReadPartition(fh)
}

// IsQuery tells whether a label is a query.
func (p *Partition) IsQuery(label string) bool {
	_, ok := p.set[label]
	return ok
}

// Labels returns query labels in input order.
func (p *Partition) Labels() []string { return p.labels }

// Len returns the number of queries.
func (p *Partition) Len() int { return len(p.labels) }

// WriteTo writes query labels, one per line.
func (p *Partition) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for _, l := range p.labels {
		m, _ := bw.WriteString(l)
		bw.WriteByte('\n')
		n += int64(m) + 1
	}
	return n, bw.Flush()
}
