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
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/NeLLi-team/nsgtree/nsgtree/errs"
	"github.com/shenwei356/xopen"
)

// ReadNewickFile reads the first tree of a Newick file.
func ReadNewickFile(file string) (*Tree, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	t, err := ReadNewick(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return t, nil
}

// ReadNewick reads the first tree in Newick format.
//
// Branch lengths are optional (a missing length is 0), labels can be
// quoted with single quotes, labels of internal nodes (e.g., support
// values) are kept, and comments in square brackets are ignored.
// Leaf labels must be unique.
func ReadNewick(r io.Reader) (*Tree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseNewick(data)
}

// ParseNewick parses the first tree of the data.
func ParseNewick(data []byte) (*Tree, error) {
	p := &newickParser{data: data}
	p.skip()
	if p.eof() {
		return nil, errs.Format("newick: empty input")
	}

	root, err := p.subtree(nil)
	if err != nil {
		return nil, err
	}
	p.skip()
	if !p.eof() {
		if p.data[p.pos] != ';' {
			return nil, p.errorf("unexpected character %q", p.data[p.pos])
		}
		p.pos++
	}

	return newTree(root)
}

type newickParser struct {
	data []byte
	pos  int
}

func (p *newickParser) eof() bool { return p.pos >= len(p.data) }

func (p *newickParser) errorf(format string, a ...interface{}) error {
	return errs.Format("newick: "+format+" at offset %d", append(a, p.pos)...)
}

// skip skips white spaces and comments.
func (p *newickParser) skip() {
	for !p.eof() {
		switch c := p.data[p.pos]; {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			p.pos++
		case c == '[':
			end := bytes.IndexByte(p.data[p.pos:], ']')
			if end < 0 {
				p.pos = len(p.data)
				return
			}
			p.pos += end + 1
		default:
			return
		}
	}
}

func (p *newickParser) subtree(parent *Node) (*Node, error) {
	n := &Node{Parent: parent}

	p.skip()
	if !p.eof() && p.data[p.pos] == '(' {
		p.pos++
		for {
			child, err := p.subtree(n)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, child)

			p.skip()
			if p.eof() {
				return nil, p.errorf("unbalanced parentheses")
			}
			c := p.data[p.pos]
			p.pos++
			if c == ',' {
				continue
			}
			if c == ')' {
				break
			}
			return nil, p.errorf("unexpected character %q", c)
		}
	}

	var err error
	if n.Label, err = p.label(); err != nil {
		return nil, err
	}

	p.skip()
	if !p.eof() && p.data[p.pos] == ':' {
		p.pos++
		p.skip()
		start := p.pos
		for !p.eof() && !isDelimiter(p.data[p.pos]) {
			p.pos++
		}
		s := string(p.data[start:p.pos])
		if s != "" {
			n.Length, err = strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, p.errorf("invalid branch length %q", s)
			}
		}
	}
	return n, nil
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', ',', ':', ';', '[', ' ', '\t', '\n', '\r':
		return true
	}
	return false
}

func (p *newickParser) label() (string, error) {
	p.skip()
	if p.eof() {
		return "", nil
	}

	if p.data[p.pos] == '\'' {
		var sb strings.Builder
		p.pos++
		for {
			if p.eof() {
				return "", p.errorf("unterminated quoted label")
			}
			c := p.data[p.pos]
			p.pos++
			if c == '\'' {
				// '' is an escaped quote
				if !p.eof() && p.data[p.pos] == '\'' {
					sb.WriteByte('\'')
					p.pos++
					continue
				}
				return sb.String(), nil
			}
			sb.WriteByte(c)
		}
	}

	start := p.pos
	for !p.eof() && !isDelimiter(p.data[p.pos]) {
		p.pos++
	}
	return string(p.data[start:p.pos]), nil
}
