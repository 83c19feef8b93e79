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

// Package pool runs indexed jobs with a bounded number of goroutines.
package pool

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// ForEach calls fn for 0..n-1 with at most threads concurrent calls.
// It stops launching new calls after the first error or the cancellation
// of ctx, and returns that error.
func ForEach(ctx context.Context, n, threads int, progress io.Writer, name string, fn func(i int) error) error {
	if n == 0 {
		return ctx.Err()
	}
	threads = max(threads, 1)

	// process bar
	var pbs *mpb.Progress
	var bar *mpb.Bar
	var chDuration chan time.Duration
	var doneDuration chan int
	if progress != nil {
		pbs = mpb.New(mpb.WithWidth(40), mpb.WithOutput(progress))
		bar = pbs.AddBar(int64(n),
			mpb.PrependDecorators(
				decor.Name(name+": ", decor.WC{W: len(name) + 2, C: decor.DindentRight}),
				decor.Name("", decor.WCSyncSpaceR),
				decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.Name("ETA: ", decor.WC{W: len("ETA: ")}),
				decor.EwmaETA(decor.ET_STYLE_GO, 10),
				decor.OnComplete(decor.Name(""), ". done"),
			),
		)

		chDuration = make(chan time.Duration, threads)
		doneDuration = make(chan int)
		go func() {
			for t := range chDuration {
				bar.EwmaIncrBy(1, t)
			}
			doneDuration <- 1
		}()
	}

	var wg sync.WaitGroup
	tokens := make(chan int, threads)
	var once sync.Once
	var firstErr error
	setErr := func(err error) {
		once.Do(func() { firstErr = err })
	}
	failed := make(chan struct{})

LOOP:
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			setErr(err)
			break
		}
		select {
		case <-ctx.Done():
			setErr(ctx.Err())
			break LOOP
		case <-failed:
			break LOOP
		case tokens <- 1:
		}

		wg.Add(1)
		go func(i int) {
			defer func() {
				wg.Done()
				<-tokens
			}()
			start := time.Now()
			if err := fn(i); err != nil {
				once.Do(func() {
					firstErr = err
					close(failed)
				})
				return
			}
			if chDuration != nil {
				chDuration <- time.Since(start)
			}
		}(i)
	}
	wg.Wait()

	if progress != nil {
		close(chDuration)
		<-doneDuration
		if firstErr != nil {
			bar.Abort(false)
		}
		pbs.Wait()
	}
	return firstErr
}
