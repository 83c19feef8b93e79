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

// Package tools runs the external programs of the workflow: hmmsearch,
// mafft, trimal, FastTree and IQ-TREE.
package tools

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/NeLLi-team/nsgtree/nsgtree/errs"
)

// Command is an external command.
type Command struct {
	Program string
	Args    []string
	Env     []string // extra environment variables, "KEY=value"

	Stdout string // file receiving stdout, discarded if empty
	Log    string // file receiving stderr, kept in memory for errors if empty
	Dir    string // working directory
}

func (c *Command) String() string {
	return strings.TrimSpace(c.Program + " " + strings.Join(c.Args, " "))
}

// Executor runs commands. Tests substitute it with fakes.
type Executor interface {
	LookPath(program string) (string, error)
	Run(ctx context.Context, cmd *Command) error
}

// OSExecutor runs commands with os/exec.
type OSExecutor struct{}

// DefaultExecutor is the executor used when a tool has none.
var DefaultExecutor Executor = OSExecutor{}

// LookPath searches for a program in PATH.
func (OSExecutor) LookPath(program string) (string, error) {
	return exec.LookPath(program)
}

// Run runs a command and waits for it. Errors of closing the stdout and
// log files are returned if the command succeeds.
func (OSExecutor) Run(ctx context.Context, c *Command) (err error) {
	cmd := exec.CommandContext(ctx, c.Program, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	closeFile := func(fh *os.File) {
		if e := fh.Close(); e != nil && err == nil {
			err = e
		}
	}

	if c.Stdout != "" {
		fh, err := os.Create(c.Stdout)
		if err != nil {
			return err
		}
		defer closeFile(fh)
		cmd.Stdout = fh
	}

	var stderr bytes.Buffer
	if c.Log != "" {
		fh, err := os.Create(c.Log)
		if err != nil {
			return err
		}
		defer closeFile(fh)
		fmt.Fprintf(fh, "%s\n", c)
		cmd.Stderr = io.MultiWriter(fh, &tailWriter{buf: &stderr, max: 1 << 10})
	} else {
		cmd.Stderr = &tailWriter{buf: &stderr, max: 1 << 10}
	}

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", c.Program, err, msg)
		}
		return fmt.Errorf("%s: %w", c.Program, err)
	}
	return nil
}

// tailWriter keeps the last max bytes.
type tailWriter struct {
	buf *bytes.Buffer
	max int
}

func (w *tailWriter) Write(p []byte) (int, error) {
	n := len(p)
	w.buf.Write(p)
	if extra := w.buf.Len() - w.max; extra > 0 {
		w.buf.Next(extra)
	}
	return n, nil
}

// CheckPrograms returns a ConfigError listing programs not found.
func CheckPrograms(e Executor, programs ...string) error {
	if e == nil {
		e = DefaultExecutor
	}
	missing := make([]string, 0, len(programs))
	for _, p := range programs {
		if _, err := e.LookPath(p); err != nil {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return errs.Config("programs not found in PATH: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Result is the outcome of a tool. A failed tool never aborts the workflow
// by itself, the caller decides how to handle it.
type Result struct {
	OK       bool
	Artifact string // output file
	Reason   string // why it failed
}

// ReasonEmptyInput is the reason for skipped tools.
const ReasonEmptyInput = "empty input"

func success(artifact string) Result {
	return Result{OK: true, Artifact: artifact}
}

func failure(format string, a ...interface{}) Result {
	return Result{Reason: fmt.Sprintf(format, a...)}
}

// NonEmpty tells whether a file exists and is not empty.
func NonEmpty(file string) bool {
	info, err := os.Stat(file)
	return err == nil && !info.IsDir() && info.Size() > 0
}

func run(ctx context.Context, e Executor, cmd *Command, artifact string) Result {
	if e == nil {
		e = DefaultExecutor
	}
	if err := e.Run(ctx, cmd); err != nil {
		return failure("%s", err)
	}
	if !NonEmpty(artifact) {
		return failure("%s produced no output", cmd.Program)
	}
	return success(artifact)
}

func splitOptions(s string) []string {
	return strings.Fields(s)
}
