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

package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/NeLLi-team/nsgtree/nsgtree/pipeline"
	"github.com/spf13/cobra"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Archive a directory into a tar.gz file",
	Long: `Archive a directory into a tar.gz file

Entries are stored in lexical order under the base name of the directory,
e.g., "analyses/hmmout/...". Empty files can be removed before archiving
with --prune.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		var fhLog *os.File
		if opt.Log2File {
			fhLog = addLog(opt.LogFile, opt.Verbose)
		}
		timeStart := time.Now()
		defer func() {
			if opt.Verbose || opt.Log2File {
				log.Info()
				log.Infof("elapsed time: %s", time.Since(timeStart))
				log.Info()
			}
			if opt.Log2File {
				fhLog.Close()
			}
		}()

		inDir := getFlagPath(cmd, "in-dir")
		if inDir == "" {
			checkError(fmt.Errorf("flag -i/--in-dir is needed"))
		}
		outFile := getFlagPath(cmd, "out-file")
		if outFile == "" {
			checkError(fmt.Errorf("flag -o/--out-file is needed"))
		}
		if !strings.HasSuffix(outFile, ".tar.gz") && !strings.HasSuffix(outFile, ".tgz") {
			log.Warningf("the output file has no suffix of .tar.gz or .tgz: %s", outFile)
		}
		level := getFlagInt(cmd, "compression-level")
		prune := getFlagBool(cmd, "prune")
		remove := getFlagBool(cmd, "remove")

		if prune {
			n, err := pipeline.PruneEmptyFiles(inDir, opt.NumCPUs)
			checkError(err)
			if opt.Verbose || opt.Log2File {
				log.Infof("%d empty files removed", n)
			}
		}

		checkError(pipeline.Archive(inDir, outFile, level))
		if remove {
			checkError(os.RemoveAll(inDir))
		}

		if opt.Verbose || opt.Log2File {
			log.Infof("%s archived to %s", inDir, outFile)
		}
	},
}

func init() {
	utilsCmd.AddCommand(archiveCmd)

	archiveCmd.Flags().StringP("in-dir", "i", "",
		formatFlagUsage(`Directory to archive.`))
	archiveCmd.Flags().StringP("out-file", "o", "",
		formatFlagUsage(`Out file, with the suffix of ".tar.gz".`))
	archiveCmd.Flags().IntP("compression-level", "", 5,
		formatFlagUsage(`Compression level of gzip, -1 for the default level.`))
	archiveCmd.Flags().BoolP("prune", "", false,
		formatFlagUsage(`Remove empty files before archiving.`))
	archiveCmd.Flags().BoolP("remove", "", false,
		formatFlagUsage(`Remove the directory after archiving.`))

	archiveCmd.SetUsageTemplate(usageTemplate(""))
}
