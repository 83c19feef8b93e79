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
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// workflowLog is the plain-text log of an analysis, workflow.log.
type workflowLog struct {
	fh *os.File
}

func newWorkflowLog(file, version string) (*workflowLog, error) {
	fh, err := os.Create(file)
	if err != nil {
		return nil, err
	}
	w := &workflowLog{fh: fh}
	w.Printf("nsgtree %s", version)
	w.Printf("Build genome tree from concatenated alignment after hmmsearch using a set of user provided HMMs")
	w.Separator()
	return w, nil
}

// Printf writes a line. Write errors are ignored.
func (w *workflowLog) Printf(format string, a ...interface{}) {
	fmt.Fprintf(w.fh, format, a...)
	w.fh.WriteString("\n")
}

func (w *workflowLog) Separator() {
	w.fh.WriteString("################################\n")
}

func (w *workflowLog) Close() error {
	return w.fh.Close()
}

// Record is the record of a run, saved as run.toml.
type Record struct {
	Version  string `toml:"version"`
	QueryDir string `toml:"query_dir"`
	RefDir   string `toml:"reference_dir"`
	Models   string `toml:"models"`

	Start   time.Time `toml:"start"`
	End     time.Time `toml:"end"`
	Elapsed string    `toml:"elapsed"`
	Error   string    `toml:"error,omitempty"`

	Config  *Config  `toml:"config"`
	Summary *Summary `toml:"summary"`
}

func writeRecord(file string, r *Record) error {
	fh, err := os.Create(file)
	if err != nil {
		return err
	}
	enc := toml.NewEncoder(fh)
	enc.SetIndentTables(true)
	if err = enc.Encode(r); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

// ReadRecord reads a run record.
func ReadRecord(file string) (*Record, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var r Record
	if err = toml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return &r, nil
}
