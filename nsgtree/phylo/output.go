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
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/NeLLi-team/nsgtree/nsgtree/errs"
	"github.com/zeebo/wyhash"
)

// NotDetermined is written for queries without a neighbor.
const NotDetermined = "nd"

// ColorSeed is the hash seed of clade colors.
var ColorSeed uint64 = 1

// WritePairs writes query-neighbor pairs as a tab-delimited table.
// Queries without a reference leaf or absent from the tree follow
// the pairs, with "nd" as the neighbor and the distance.
func WritePairs(w io.Writer, res *Neighbors) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("Query\tClosest_Relative\tDistance\n")
	for _, p := range res.Pairs {
		fmt.Fprintf(bw, "%s\t%s\t%s\n", p.Query, p.Reference, strconv.FormatFloat(p.Distance, 'f', -1, 64))
	}
	for _, list := range [][]string{res.Unpaired, res.Missing} {
		for _, q := range list {
			fmt.Fprintf(bw, "%s\t%s\t%s\n", q, NotDetermined, NotDetermined)
		}
	}
	return bw.Flush()
}

// ParseColor checks a hex color, with or without the leading "#",
// and returns it with "#".
func ParseColor(s string) (string, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return "", errs.Config("invalid hex color: %q", s)
	}
	if _, err := strconv.ParseUint(s, 16, 32); err != nil {
		return "", errs.Config("invalid hex color: %q", s)
	}
	return "#" + strings.ToLower(s), nil
}

// Color returns a stable color of a label. Channels are kept in [32, 223]
// so colors are neither too dark nor too light.
func Color(label string) string {
	h := wyhash.Hash([]byte(label), ColorSeed)
	var c [3]uint8
	for i := range c {
		c[i] = 32 + uint8((h>>(uint(i)*16))%192)
	}
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}

func cladeColor(color string, first string) string {
	if color != "" {
		return color
	}
	return Color(first)
}

// WriteITOL writes clades as an iTOL TREE_COLORS dataset.
// Clades of at least two leaves are written as "a|b,clade,#hex,normal,2",
// and singletons as "x,branch,#hex,normal,2". An empty color gives every
// clade its own color.
func WriteITOL(w io.Writer, res *Clades, color string) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("TREE_COLORS\nSEPARATOR COMMA\nDATA\n")
	for _, c := range res.Clades {
		fmt.Fprintf(bw, "%s,clade,%s,normal,2\n", strings.Join(c.Leaves, "|"), cladeColor(color, c.Leaves[0]))
	}
	for _, s := range res.Singletons {
		fmt.Fprintf(bw, "%s,branch,%s,normal,2\n", s, cladeColor(color, s))
	}
	return bw.Flush()
}

// WriteMembership writes clade membership of query taxa as a tab-delimited
// table. Singletons have the clade "-".
func WriteMembership(w io.Writer, res *Clades, color string) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("taxon\tclade\tcolor\n")
	for _, c := range res.Clades {
		hex := cladeColor(color, c.Leaves[0])
		for _, l := range c.Leaves {
			fmt.Fprintf(bw, "%s\tclade%d\t%s\n", l, c.ID, hex)
		}
	}
	for _, s := range res.Singletons {
		fmt.Fprintf(bw, "%s\t-\t%s\n", s, cladeColor(color, s))
	}
	return bw.Flush()
}
