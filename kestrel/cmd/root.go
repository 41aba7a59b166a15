// Copyright © 2024-2026 The kestrel authors
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
	"runtime"

	"github.com/mattn/go-colorable"
	logging "github.com/shenwei356/go-logging"
	"github.com/spf13/cobra"
	"github.com/twotwotwo/sorts"
)

// VERSION of kestrel
const VERSION = "0.2.0"

var log = logging.MustGetLogger("kestrel")

var logFormat = logging.MustStringFormatter(
	`%{color}[%{level:.4s}]%{color:reset} %{time:15:04:05} %{message}`,
)

var logFormatPlain = logging.MustStringFormatter(
	`[%{level:.4s}] %{time:15:04:05} %{message}`,
)

func init() {
	backend := logging.NewLogBackend(colorable.NewColorableStderr(), "", 0)
	logging.SetBackend(logging.NewBackendFormatter(backend, logFormat))
}

// RootCmd is the root command of kestrel.
var RootCmd = &cobra.Command{
	Use:   "kestrel",
	Short: "k-mer based taxonomic sequence classification",
	Long: fmt.Sprintf(`kestrel: k-mer based taxonomic sequence classification

Version: v%s
Source code: https://github.com/telatin/kestrel

Kestrel builds a database of canonical k-mers (or minimizers, or spaced
k-mers) from reference sequences whose FASTA headers carry GTDB/SILVA
style lineage strings, and classifies FASTA/Q reads against it with
lowest-common-ancestor resolution of conflicting and tied assignments.

`, VERSION),
}

// Execute runs the root command, exiting non-zero on any error.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().IntP("threads", "j", runtime.NumCPU(),
		formatFlagUsage(`Number of CPU cores to use (0 for all).`))
	RootCmd.PersistentFlags().BoolP("quiet", "", false,
		formatFlagUsage(`Do not print any verbose information.`))
	RootCmd.PersistentFlags().StringP("log", "", "",
		formatFlagUsage(`Log file to which verbose information is also written.`))
	RootCmd.PersistentFlags().StringP("infile-list", "X", "",
		formatFlagUsage(`File of input file paths (one per line), added to positional arguments.`))

	RootCmd.CompletionOptions.DisableDefaultCmd = true
}

// Options contains the global flags
type Options struct {
	NumCPUs int
	Verbose bool

	LogFile  string
	Log2File bool

	CompressionLevel int
}

func getOptions(cmd *cobra.Command) *Options {
	threads := getFlagNonNegativeInt(cmd, "threads")
	if threads == 0 {
		threads = runtime.NumCPU()
	}

	sorts.MaxProcs = threads
	runtime.GOMAXPROCS(threads)

	logfile := getFlagString(cmd, "log")
	return &Options{
		NumCPUs: threads,
		Verbose: !getFlagBool(cmd, "quiet"),

		LogFile:  logfile,
		Log2File: logfile != "",

		CompressionLevel: -1,
	}
}

func checkError(err error) {
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

// addLog tees log output into a file. The returned handle is closed by
// the caller when the command finishes.
func addLog(logfile string, verbose bool) *os.File {
	fh, err := os.Create(logfile)
	checkError(err)

	stderr := logging.NewBackendFormatter(
		logging.NewLogBackend(colorable.NewColorableStderr(), "", 0), logFormat)
	file := logging.NewBackendFormatter(
		logging.NewLogBackend(fh, "", 0), logFormatPlain)

	if verbose {
		logging.SetBackend(stderr, file)
	} else {
		logging.SetBackend(file)
	}

	return fh
}
