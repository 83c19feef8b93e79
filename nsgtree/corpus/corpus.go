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

// Package corpus discovers genome protein files and reads proteins from them.
package corpus

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/NeLLi-team/nsgtree/nsgtree/errs"
	"github.com/twotwotwo/sorts"
)

// FilePattern matches genome protein files.
var FilePattern = regexp.MustCompile(`\.faa(\.gz|\.xz|\.zst|\.bz2)?$`)

var compressionExts = []string{".gz", ".xz", ".zst", ".bz2"}

// GenomeID returns the genome ID of a file, i.e., the base name without
// the compression and .faa extensions.
func GenomeID(file string) string {
	name := filepath.Base(file)
	lower := strings.ToLower(name)
	for _, e := range compressionExts {
		if strings.HasSuffix(lower, e) {
			name = name[:len(name)-len(e)]
			break
		}
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Genome is a genome protein file.
type Genome struct {
	ID    string
	File  string
	Query bool
}

// Corpus is the set of query and reference genomes.
type Corpus struct {
	Genomes []Genome // query genomes first, each group sorted by ID

	idx map[string]int
}

// Discover lists genome files in the query directory and the optional
// reference directory. Only files directly in the directories are genomes,
// so outputs of earlier runs written into subdirectories are not picked up.
// Genome IDs must be unique across both directories.
func Discover(queryDir, refDir string) (*Corpus, error) {
	if queryDir == "" {
		return nil, errs.Config("query directory not given")
	}

	c := &Corpus{idx: make(map[string]int, 128)}

	add := func(dir string, query bool) error {
		files, err := ListFiles(dir, FilePattern)
		if err != nil {
			return errs.Wrap(errs.ErrConfig, err, "listing genome files in %s", dir)
		}
		group := make([]Genome, 0, len(files))
		for _, file := range files {
			group = append(group, Genome{ID: GenomeID(file), File: file, Query: query})
		}
		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })

		for _, g := range group {
			if i, ok := c.idx[g.ID]; ok {
				return errs.Config("duplicated genome ID %s: %s and %s", g.ID, c.Genomes[i].File, g.File)
			}
			c.idx[g.ID] = len(c.Genomes)
			c.Genomes = append(c.Genomes, g)
		}
		return nil
	}

	if err := add(queryDir, true); err != nil {
		return nil, err
	}
	if refDir != "" {
		if err := add(refDir, false); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ListFiles returns files directly in dir with base names matching pattern,
// in lexical order. Subdirectories are not visited, and symbolic links to
// files are followed.
func ListFiles(dir string, pattern *regexp.Regexp) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errs.Config("not a directory: %s", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !pattern.MatchString(e.Name()) {
			continue
		}
		file := filepath.Join(dir, e.Name())
		if e.Type()&os.ModeSymlink != 0 {
			if info, err = os.Stat(file); err != nil {
				return nil, err
			}
			if info.IsDir() {
				continue
			}
		} else if e.IsDir() {
			continue
		}
		files = append(files, file)
	}

	sorts.Quicksort(sort.StringSlice(files))
	return files, nil
}

// IDs returns all genome IDs in corpus order.
func (c *Corpus) IDs() []string {
	ids := make([]string, len(c.Genomes))
	for i, g := range c.Genomes {
		ids[i] = g.ID
	}
	return ids
}

// QueryIDs returns the IDs of query genomes.
func (c *Corpus) QueryIDs() []string {
	ids := make([]string, 0, len(c.Genomes))
	for _, g := range c.Genomes {
		if g.Query {
			ids = append(ids, g.ID)
		}
	}
	return ids
}

// NumQueries returns the number of query genomes.
func (c *Corpus) NumQueries() int {
	var n int
	for _, g := range c.Genomes {
		if g.Query {
			n++
		}
	}
	return n
}

// Get returns a genome by ID.
func (c *Corpus) Get(id string) (Genome, bool) {
	i, ok := c.idx[id]
	if !ok {
		return Genome{}, false
	}
	return c.Genomes[i], true
}

// Files returns a map from genome ID to file.
func (c *Corpus) Files() map[string]string {
	m := make(map[string]string, len(c.Genomes))
	for _, g := range c.Genomes {
		m[g.ID] = g.File
	}
	return m
}
