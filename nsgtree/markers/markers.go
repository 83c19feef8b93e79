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

// Package markers reads marker names from a profile HMM file.
package markers

import (
	"bufio"
	"io"
	"strings"

	"github.com/NeLLi-team/nsgtree/nsgtree/errs"
	"github.com/shenwei356/xopen"
)

// Read returns marker names in file order, one per "NAME" line.
// Duplicated names are reported as a ConfigError.
func Read(r io.Reader) ([]string, error) {
	names := make([]string, 0, 64)
	seen := make(map[string]int, 64)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<24)
	var line string
	var fields []string
	var n int
	for scanner.Scan() {
		n++
		line = scanner.Text()
		if !strings.HasPrefix(line, "NAME") {
			continue
		}
		fields = strings.Fields(line)
		if len(fields) < 2 || fields[0] != "NAME" {
			continue
		}
		name := fields[len(fields)-1]
		if prev, ok := seen[name]; ok {
			return nil, errs.Config("duplicated marker name %q at line %d (first at line %d)", name, n, prev)
		}
		seen[name] = n
		names = append(names, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

// ReadFile reads marker names from a (possibly compressed) profile file.
func ReadFile(file string) ([]string, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	return Read(fh)
}

// Index maps marker names to their positions.
func Index(names []string) map[string]int {
	m := make(map[string]int, len(names))
	for i, name := range names {
		m[name] = i
	}
	return m
}
