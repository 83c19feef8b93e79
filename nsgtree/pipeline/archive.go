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
	"archive/tar"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/iafan/cwalk"
	"github.com/klauspost/pgzip"
)

// PruneEmptyFiles removes empty regular files under dir and returns
// the number of removed files.
func PruneEmptyFiles(dir string, threads int) (int, error) {
	empty := make([]string, 0, 64)
	ch := make(chan string, threads)
	done := make(chan int)
	go func() {
		for file := range ch {
			empty = append(empty, file)
		}
		done <- 1
	}()

	cwalk.NumWorkers = max(threads, 1)
	err := cwalk.Walk(dir, func(_path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() && info.Size() == 0 {
			ch <- filepath.Join(dir, _path)
		}
		return nil
	})
	close(ch)
	<-done
	if err != nil {
		return 0, err
	}

	for _, file := range empty {
		if err = os.Remove(file); err != nil {
			return 0, err
		}
	}
	return len(empty), nil
}

// Archive writes dir into a gzip-compressed tar file. Entries are stored in
// lexical order under the base name of dir.
func Archive(dir, file string, level int) error {
	files := make([]string, 0, 256)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return err
	}
	sort.Strings(files)

	fh, err := os.Create(file)
	if err != nil {
		return err
	}
	gw, err := pgzip.NewWriterLevel(fh, level)
	if err != nil {
		fh.Close()
		return err
	}
	tw := tar.NewWriter(gw)

	parent := filepath.Dir(filepath.Clean(dir))
	for _, path := range files {
		if err = addToTar(tw, parent, path); err != nil {
			tw.Close()
			gw.Close()
			fh.Close()
			return err
		}
	}

	if err = tw.Close(); err != nil {
		gw.Close()
		fh.Close()
		return err
	}
	if err = gw.Close(); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

func addToTar(tw *tar.Writer, parent, path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() && !info.IsDir() {
		return nil
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	name, err := filepath.Rel(parent, path)
	if err != nil {
		return err
	}
	hdr.Name = filepath.ToSlash(name)
	if info.IsDir() {
		hdr.Name += "/"
	}
	if err = tw.WriteHeader(hdr); err != nil {
		return err
	}
	if info.IsDir() {
		return nil
	}

	r, err := os.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()
	_, err = io.Copy(tw, r)
	return err
}
