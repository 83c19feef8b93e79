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

package census

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// WriteCounts writes the count matrix as a tab-delimited table,
// one row per genome and one column per marker.
func (c *Census) WriteCounts(w io.Writer) error {
	bw := bufio.NewWriter(w)

	bw.WriteString("genome")
	for _, m := range c.Markers {
		bw.WriteByte('\t')
		bw.WriteString(m)
	}
	bw.WriteByte('\n')

	for gi, g := range c.Genomes {
		bw.WriteString(g)
		for _, n := range c.counts[gi] {
			bw.WriteByte('\t')
			bw.WriteString(strconv.Itoa(n))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// WriteStats writes per-genome statistics as a tab-delimited table.
func (c *Census) WriteStats(w io.Writer) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("genome\tmarkers\tpresent\tcopies\texactly2\tduplicated\tmax_copies\tcompleteness\tsingle_copy_dup_ratio\ttotal_dup_ratio\n")
	for _, s := range c.stats {
		fmt.Fprintf(bw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%.4f\t%.4f\t%.4f\n",
			s.Genome, s.Markers, s.Present, s.Copies, s.Exactly2, s.Duplicated, s.MaxCopies,
			s.Completeness, s.SingleCopyDupRatio, s.TotalDupRatio)
	}
	return bw.Flush()
}

// WriteITOLHeatmap writes the count matrix as an iTOL heatmap dataset.
func (c *Census) WriteITOLHeatmap(w io.Writer) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("DATASET_HEATMAP\n")
	bw.WriteString("SEPARATOR COMMA\n")
	bw.WriteString("DATASET_LABEL,Count\n")
	bw.WriteString("COLOR,#ff0000\n")
	bw.WriteString("COLOR_MIN,#ff0000\n")
	bw.WriteString("COLOR_MAX,#0000ff\n")
	bw.WriteString("FIELD_LABELS," + strings.Join(c.Markers, ",") + "\n")
	bw.WriteString("DATA\n")

	for gi, g := range c.Genomes {
		bw.WriteString(g)
		for _, n := range c.counts[gi] {
			bw.WriteByte(',')
			bw.WriteString(strconv.Itoa(n))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// PlotCompleteness saves a histogram of genome completeness.
// The image format follows the file extension (png, svg, pdf, ...).
func (c *Census) PlotCompleteness(file string, threshold float64) error {
	values := make(plotter.Values, 0, len(c.stats))
	for _, s := range c.stats {
		values = append(values, s.Completeness)
	}
	if len(values) == 0 {
		return fmt.Errorf("no genomes to plot")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Marker completeness of %d genomes", len(values))
	p.X.Label.Text = "fraction of markers present"
	p.Y.Label.Text = "genomes"
	p.X.Min = 0
	p.X.Max = 1

	h, err := plotter.NewHist(values, 20)
	if err != nil {
		return err
	}
	p.Add(h)

	if threshold > 0 {
		line, err := plotter.NewLine(plotter.XYs{{X: threshold, Y: 0}, {X: threshold, Y: float64(len(values))}})
		if err != nil {
			return err
		}
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("min fraction %.2f", threshold), line)
	}

	return p.Save(6*vg.Inch, 4*vg.Inch, file)
}
