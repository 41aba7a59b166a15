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
	"time"

	"github.com/shenwei356/bio/seq"
	"github.com/spf13/cobra"
	"github.com/telatin/kestrel/kestrel/db"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify reads against a classification database",
	Long: `Classify reads against a classification database

Input:
  1. Plain or gzipped FASTA/Q files via positional arguments or the
     flag -X/--infile-list with a list of input files (or stdin).
  2. A database directory built with 'kestrel build' (-d/--db-dir).

Quality masking:
  For FASTQ records whose quality string matches the sequence length,
  bases below -q/--quality (Phred+33) are masked to N before k-mer
  extraction, so they cannot contribute hits.

Output:
  <prefix>_classification.txt  read_id, taxonomy, hit count and total
                               k-mers per read, TAB-separated, no header.
  <prefix>_summary.txt         one row per taxonomy sorted by read count,
                               with average score and total bases.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		seq.ValidateSeq = false

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

		// ---------------------------------------------------------------
		// basic flags

		dbDir := getFlagString(cmd, "db-dir")
		if dbDir == "" {
			checkError(fmt.Errorf("flag -d/--db-dir is needed"))
		}
		dbDir = expandPath(dbDir)

		outPrefix := getFlagString(cmd, "out-prefix")
		if outPrefix == "" {
			checkError(fmt.Errorf("flag -o/--out-prefix is needed"))
		}

		copt := &ClassifyOptions{
			NumCPUs:  opt.NumCPUs,
			Verbose:  opt.Verbose,
			Log2File: opt.Log2File,

			QualityThreshold: getFlagNonNegativeInt(cmd, "quality"),
			MinHits:          getFlagNonNegativeInt(cmd, "min-hits"),

			OutPrefix:        outPrefix,
			Gzip:             getFlagBool(cmd, "gzip"),
			CompressionLevel: opt.CompressionLevel,
		}

		// ---------------------------------------------------------------
		// input files

		files := getFileListFromArgsAndFile(cmd, args, true, "infile-list", true)
		if opt.Verbose || opt.Log2File {
			log.Infof("kestrel v%s", VERSION)
			log.Info("  https://github.com/telatin/kestrel")
			log.Info()
			if len(files) == 1 && isStdin(files[0]) {
				log.Info("no files given, reading from stdin")
			} else {
				log.Infof("%d input file(s) given", len(files))
			}
		}

		// ---------------------------------------------------------------
		// database

		if opt.Verbose || opt.Log2File {
			log.Infof("loading database: %s", dbDir)
		}
		d, err := db.Load(dbDir)
		checkError(err)

		if opt.Verbose || opt.Log2File {
			if d.Params.KmerShape != nil {
				log.Infof("  k-mer shape: %s (k=%d)", d.Params.KmerShape.Pattern, d.Params.KmerSize)
			} else if d.Params.MinimizerSize > 0 {
				log.Infof("  k-mer size: %d, minimizer size: %d", d.Params.KmerSize, d.Params.MinimizerSize)
			} else {
				log.Infof("  k-mer size: %d", d.Params.KmerSize)
			}
			log.Infof("  %d k-mers, %d taxa", d.Params.NumKmers, d.Taxonomy.NumTaxa())
			log.Info()
			log.Infof("classifying ...")
		}

		// ---------------------------------------------------------------

		checkError(Classify(d, files, copt))
	},
}

func init() {
	RootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().StringP("db-dir", "d", "",
		formatFlagUsage(`Database directory built with 'kestrel build'.`))

	classifyCmd.Flags().StringP("out-prefix", "o", "",
		formatFlagUsage(`Prefix of the two output files <prefix>_classification.txt and <prefix>_summary.txt.`))

	classifyCmd.Flags().BoolP("gzip", "z", false,
		formatFlagUsage(`Gzip the output files, appending .gz to their names.`))

	classifyCmd.Flags().IntP("quality", "q", 15,
		formatFlagUsage(`Minimum base quality (Phred+33); lower-quality bases are masked to N.`))

	classifyCmd.Flags().IntP("min-hits", "n", 3,
		formatFlagUsage(`Minimum number of k-mer hits to classify a read.`))

	classifyCmd.SetUsageTemplate(usageTemplate("-d <db dir> -o <out prefix> [-q <quality>] [-n <min hits>] {<read files> | -X <file list>}"))
}
