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

package pipeline

import (
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/NeLLi-team/nsgtree/nsgtree/errs"
	"github.com/NeLLi-team/nsgtree/nsgtree/extract"
	"github.com/NeLLi-team/nsgtree/nsgtree/filter"
	"github.com/NeLLi-team/nsgtree/nsgtree/hits"
	"github.com/NeLLi-team/nsgtree/nsgtree/phylo"
	"github.com/NeLLi-team/nsgtree/nsgtree/supermatrix"
	"github.com/NeLLi-team/nsgtree/nsgtree/tools"
	"github.com/pelletier/go-toml/v2"
	"github.com/shenwei356/xopen"
	"go.yaml.in/yaml/v3"
)

// Config is the configuration of the workflow.
type Config struct {
	// genome filtering
	MinMarkerFraction     float64 `yaml:"min_marker_fraction" toml:"min_marker_fraction"`
	MaxSingleCopyDupRatio float64 `yaml:"max_single_copy_dup_ratio" toml:"max_single_copy_dup_ratio"`
	MaxTotalDupRatio      float64 `yaml:"max_total_dup_ratio" toml:"max_total_dup_ratio"`

	// hit parsing
	MaxMalformedFraction float64 `yaml:"max_malformed_fraction" toml:"max_malformed_fraction"`

	// sequence extraction
	MinLength         int     `yaml:"min_length" toml:"min_length"`
	MinLengthFraction float64 `yaml:"min_length_fraction" toml:"min_length_fraction"`
	WholeProtein      bool    `yaml:"whole_protein" toml:"whole_protein"`
	Envelope          bool    `yaml:"envelope" toml:"envelope"`

	// supermatrix
	MinGenomes int `yaml:"min_genomes" toml:"min_genomes"`

	// external tools
	TreeMethod      string `yaml:"tree_method" toml:"tree_method"`
	HMMSearchCutoff string `yaml:"hmmsearch_cutoff" toml:"hmmsearch_cutoff"`
	MAFFTOptions    string `yaml:"mafft_options" toml:"mafft_options"`
	TrimAlOptions   string `yaml:"trimal_options" toml:"trimal_options"`
	FastTreeOptions string `yaml:"fasttree_options" toml:"fasttree_options"`
	IQTreeModel     string `yaml:"iqtree_model" toml:"iqtree_model"`

	// workflow
	ProteinTrees     bool   `yaml:"protein_trees" toml:"protein_trees"`
	PartitionModel   string `yaml:"partition_model" toml:"partition_model"`
	CladeColor       string `yaml:"clade_color" toml:"clade_color"`
	KeepAnalyses     bool   `yaml:"keep_analyses" toml:"keep_analyses"`
	Threads          int    `yaml:"threads" toml:"threads"`
	CompressionLevel int    `yaml:"compression_level" toml:"compression_level"`
	FastTreeProgram  string `yaml:"fasttree_program" toml:"fasttree_program"`
	IQTreeProgram    string `yaml:"iqtree_program" toml:"iqtree_program"`
	HMMSearchProgram string `yaml:"hmmsearch_program" toml:"hmmsearch_program"`
	MAFFTProgram     string `yaml:"mafft_program" toml:"mafft_program"`
	TrimAlProgram    string `yaml:"trimal_program" toml:"trimal_program"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	th := filter.DefaultThresholds()
	tr := tools.DefaultTreeOptions()
	return &Config{
		MinMarkerFraction:     th.MinMarkerFraction,
		MaxSingleCopyDupRatio: th.MaxSingleCopyDupRatio,
		MaxTotalDupRatio:      th.MaxTotalDupRatio,

		MaxMalformedFraction: hits.DefaultMaxMalformedFraction,

		MinGenomes: supermatrix.DefaultOptions().MinGenomes,

		TreeMethod:       tools.MethodFastTree.String(),
		HMMSearchCutoff:  "-E 1e-5",
		MAFFTOptions:     "",
		TrimAlOptions:    "-gt 0.1",
		FastTreeOptions:  tr.FastTreeOptions,
		IQTreeModel:      tr.IQTreeModel,
		PartitionModel:   "LG",
		Threads:          1,
		CompressionLevel: 5,
		FastTreeProgram:  tr.FastTreeProgram,
		IQTreeProgram:    tr.IQTreeProgram,
		HMMSearchProgram: "hmmsearch",
		MAFFTProgram:     "mafft",
		TrimAlProgram:    "trimal",
	}
}

// Thresholds returns the filtering thresholds.
func (c *Config) Thresholds() filter.Thresholds {
	return filter.Thresholds{
		MinMarkerFraction:     c.MinMarkerFraction,
		MaxSingleCopyDupRatio: c.MaxSingleCopyDupRatio,
		MaxTotalDupRatio:      c.MaxTotalDupRatio,
	}
}

// ExtractOptions returns the options of sequence extraction.
func (c *Config) ExtractOptions() *extract.Options {
	return &extract.Options{
		Threads:           c.Threads,
		Envelope:          c.Envelope,
		WholeProtein:      c.WholeProtein,
		MinLength:         c.MinLength,
		MinLengthFraction: c.MinLengthFraction,
	}
}

// HitOptions returns the options of hit parsing.
func (c *Config) HitOptions() *hits.Options {
	return &hits.Options{Separator: hits.DefaultSeparator, MaxMalformedFraction: c.MaxMalformedFraction}
}

// Method returns the tree method. Validate must be called first.
func (c *Config) Method() tools.TreeMethod {
	m, _ := tools.ParseTreeMethod(c.TreeMethod)
	return m
}

// TreeOptions returns the options of tree builders.
func (c *Config) TreeOptions(threads int) tools.TreeOptions {
	return tools.TreeOptions{
		FastTreeProgram: c.FastTreeProgram,
		FastTreeOptions: c.FastTreeOptions,
		IQTreeProgram:   c.IQTreeProgram,
		IQTreeModel:     c.IQTreeModel,
		Threads:         threads,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := c.Thresholds().Validate(); err != nil {
		return err
	}
	if !(c.MaxMalformedFraction >= 0 && c.MaxMalformedFraction <= 1) {
		return errs.Config("invalid max_malformed_fraction: %v, valid range: [0, 1]", c.MaxMalformedFraction)
	}
	if err := c.ExtractOptions().Validate(); err != nil {
		return err
	}
	if c.MinGenomes < 0 {
		return errs.Config("invalid min_genomes: %d, should be >= 0", c.MinGenomes)
	}
	if _, err := tools.ParseTreeMethod(c.TreeMethod); err != nil {
		return err
	}
	if c.Threads <= 0 {
		return errs.Config("invalid threads: %d, should be > 0", c.Threads)
	}
	if c.CompressionLevel < -1 || c.CompressionLevel > 9 {
		return errs.Config("invalid compression_level: %d, valid range: [-1, 9]", c.CompressionLevel)
	}
	if c.CladeColor != "" {
		color, err := phylo.ParseColor(c.CladeColor)
		if err != nil {
			return err
		}
		c.CladeColor = color
	}
	for _, p := range []struct{ key, value string }{
		{"hmmsearch_program", c.HMMSearchProgram},
		{"mafft_program", c.MAFFTProgram},
		{"trimal_program", c.TrimAlProgram},
		{"fasttree_program", c.FastTreeProgram},
		{"iqtree_program", c.IQTreeProgram},
	} {
		if strings.TrimSpace(p.value) == "" {
			return errs.Config("empty %s", p.key)
		}
	}
	return nil
}

// LoadConfig reads a YAML (.yml, .yaml) or TOML (.toml) file on top of
// the default configuration. Unknown keys are rejected.
func LoadConfig(file string) (*Config, error) {
	c := DefaultConfig()

	var decode func(io.Reader, *Config) error
	switch strings.ToLower(filepath.Ext(strings.TrimSuffix(file, ".gz"))) {
	case ".toml":
		decode = DecodeTOML
	case ".yml", ".yaml":
		decode = DecodeYAML
	default:
		return nil, errs.Config("unsupported config file format: %s, should be .yml, .yaml or .toml", file)
	}

	fh, err := xopen.Ropen(file)
	if err != nil {
		if errors.Is(err, xopen.ErrNoContent) {
			return c, nil
		}
		return nil, errs.Wrap(errs.ErrConfig, err, "%s", file)
	}
	defer fh.Close()

	if err = decode(fh, c); err != nil {
		return nil, errs.Wrap(errs.ErrConfig, err, "%s", file)
	}
	return c, nil
}

// DecodeYAML decodes YAML into c.
func DecodeYAML(r io.Reader, c *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// DecodeTOML decodes TOML into c.
func DecodeTOML(r io.Reader, c *Config) error {
	return toml.NewDecoder(r).DisallowUnknownFields().Decode(c)
}
