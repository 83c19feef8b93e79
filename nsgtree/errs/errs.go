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

// Package errs defines the error kinds shared by all nsgtree stages.
//
// Every error returned by a stage that should stop the workflow carries one
// of four kinds, which callers test with errors.Is:
//
//	ErrFormat  malformed input beyond the tolerated fraction
//	ErrConfig  invalid or missing thresholds, empty marker list
//	ErrData    structural mismatch, e.g. alignment row width
//	ErrFatal   too few informative genomes to continue
package errs

import (
	"errors"
	"fmt"
)

// ErrFormat means the input is malformed.
var ErrFormat = errors.New("format error")

// ErrConfig means the configuration is invalid.
var ErrConfig = errors.New("config error")

// ErrData means the data are structurally inconsistent.
var ErrData = errors.New("data error")

// ErrFatal means the workflow can not proceed.
var ErrFatal = errors.New("fatal error")

// Error is an error of a given kind, optionally wrapping a cause.
type Error struct {
	Kind error  // one of ErrFormat, ErrConfig, ErrData, ErrFatal
	Msg  string // message
	Err  error  // cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the kind of the error.
func (e *Error) Is(target error) bool { return target == e.Kind }

// Format returns a FormatError.
func Format(format string, a ...interface{}) error {
	return &Error{Kind: ErrFormat, Msg: fmt.Sprintf(format, a...)}
}

// Config returns a ConfigError.
func Config(format string, a ...interface{}) error {
	return &Error{Kind: ErrConfig, Msg: fmt.Sprintf(format, a...)}
}

// Data returns a DataError.
func Data(format string, a ...interface{}) error {
	return &Error{Kind: ErrData, Msg: fmt.Sprintf(format, a...)}
}

// Fatal returns a FatalError.
func Fatal(format string, a ...interface{}) error {
	return &Error{Kind: ErrFatal, Msg: fmt.Sprintf(format, a...)}
}

// Wrap attaches a kind and a message to err. It returns nil if err is nil.
func Wrap(kind error, err error, format string, a ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, a...), Err: err}
}

// KindOf returns the kind of err, or nil if err has none.
func KindOf(err error) error {
	for _, k := range []error{ErrFormat, ErrConfig, ErrData, ErrFatal} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
