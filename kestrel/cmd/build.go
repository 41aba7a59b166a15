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
	"regexp"
	"time"

	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"
	"github.com/telatin/kestrel/kestrel/kmer"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a classification database from reference sequences",
	Long: `Build a classification database from reference sequences

Input:
  1. Plain or gzipped FASTA files via positional arguments or the flag
     -X/--infile-list with a list of input files,
  2. Or a directory of sequence files via the flag -I/--in-dir, with
     multiple-level sub-directories allowed. A regular expression for
     matching sequence files is available via the flag -r/--file-regexp.
  3. The header comment of every reference record (text after the first
     whitespace) must be a GTDB/SILVA style lineage, e.g.
       >seq_1 d__Bacteria;p__Firmicutes;c__Bacilli
     Records with an invalid lineage are skipped with a warning.

K-mer modes:
  1. Plain k-mers (-k), the default.
  2. Minimizers (-k with -m), storing one minimizer of size m per
     window, which shrinks the database.
  3. Spaced k-mers (-s), a pattern over {O, -} where 'O' marks a
     position contributing to the k-mer, e.g. -s OOO-O-OOO.
     -s replaces -k and cannot be combined with it.

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

		var err error

		k := getFlagPositiveInt(cmd, "kmer")
		minimizer := getFlagNonNegativeInt(cmd, "minimizer")
		shapeStr := getFlagString(cmd, "shape")

		var shape *kmer.Shape
		if shapeStr != "" {
			if cmd.Flags().Changed("kmer") {
				checkError(fmt.Errorf("flag -s/--shape replaces -k/--kmer, do not give both"))
			}
			shape, err = kmer.ParseShape(shapeStr)
			checkError(err)
		}

		outDir := getFlagString(cmd, "out-dir")
		force := getFlagBool(cmd, "force")
		skipFileCheck := getFlagBool(cmd, "skip-file-check")

		if outDir == "" {
			checkError(fmt.Errorf("flag -O/--out-dir is needed"))
		}
		outDir = expandPath(outDir)

		inDir := getFlagString(cmd, "in-dir")
		readFromDir := inDir != ""
		if readFromDir {
			inDir = expandPath(inDir)
			if inDir == outDir {
				checkError(fmt.Errorf("input and output paths should not be the same: %s", outDir))
			}
			var isDir bool
			isDir, err = pathutil.IsDir(inDir)
			if err != nil {
				checkError(errors.Wrapf(err, "checking -I/--in-dir"))
			}
			if !isDir {
				checkError(fmt.Errorf("value of -I/--in-dir should be a directory: %s", inDir))
			}
		}

		reFileStr := getFlagString(cmd, "file-regexp")
		var reFile *regexp.Regexp
		if reFileStr != "" {
			if !reIgnoreCase.MatchString(reFileStr) {
				reFileStr = reIgnoreCaseStr + reFileStr
			}
			reFile, err = regexp.Compile(reFileStr)
			checkError(errors.Wrapf(err, "failed to parse regular expression for matching file: %s", reFileStr))
		}

		// ---------------------------------------------------------------
		// options for building the database

		bopt := &DBBuildingOptions{
			NumCPUs:  opt.NumCPUs,
			Verbose:  opt.Verbose,
			Log2File: opt.Log2File,

			K:         k,
			Minimizer: minimizer,
			Shape:     shape,
		}
		err = CheckDBBuildingOptions(bopt)
		checkError(err)

		// ---------------------------------------------------------------
		// input files

		if opt.Verbose || opt.Log2File {
			log.Infof("kestrel v%s", VERSION)
			log.Info("  https://github.com/telatin/kestrel")
			log.Info()

			log.Info("checking input files ...")
		}

		var files []string
		if readFromDir {
			files, err = getFileListFromDir(inDir, reFile, opt.NumCPUs)
			if err != nil {
				checkError(errors.Wrapf(err, "walking dir: %s", inDir))
			}
			if len(files) == 0 {
				log.Warningf("  no files matching regular expression: %s", reFileStr)
			}
		} else {
			files = getFileListFromArgsAndFile(cmd, args, !skipFileCheck, "infile-list", !skipFileCheck)
		}
		if len(files) < 1 {
			checkError(fmt.Errorf("FASTA files needed"))
		}
		for _, file := range files {
			if isStdin(file) {
				checkError(fmt.Errorf("stdin not supported, references are read twice"))
			}
		}
		if opt.Verbose || opt.Log2File {
			log.Infof("  %d input file(s) given", len(files))
		}

		// ---------------------------------------------------------------
		// log

		if opt.Verbose || opt.Log2File {
			log.Info()
			log.Infof("-------------------- [main parameters] --------------------")
			log.Info()
			if shape != nil {
				log.Infof("k-mer shape: %s (k=%d, window=%d)", shape.Pattern, shape.K, shape.Window)
			} else {
				log.Infof("k-mer size: %d", k)
				if minimizer > 0 {
					log.Infof("minimizer size: %d", minimizer)
				}
			}
			log.Infof("output directory: %s", outDir)
			log.Info()
			log.Infof("-------------------- [main parameters] --------------------")
			log.Info()
			log.Infof("building database ...")
		}

		// ---------------------------------------------------------------
		// out dir

		makeOutDir(outDir, force, "out-dir", opt.Verbose || opt.Log2File)

		// ---------------------------------------------------------------

		err = BuildDB(outDir, files, bopt)
		if err != nil {
			checkError(fmt.Errorf("failed to build the database: %s", err))
		}

		if opt.Verbose || opt.Log2File {
			log.Infof("finished building the database in %s from %d file(s)",
				time.Since(timeStart), len(files))
			log.Infof("database saved: %s", outDir)
		}
	},
}

func init() {
	RootCmd.AddCommand(buildCmd)

	// -----------------------------  input  -----------------------------

	buildCmd.Flags().StringP("in-dir", "I", "",
		formatFlagUsage(`Directory containing FASTA files. Directory symlinks are followed.`))

	buildCmd.Flags().StringP("file-regexp", "r", `\.(f[aq](st[aq])?|fna)(.gz)?$`,
		formatFlagUsage(`Regular expression for matching sequence files in -I/--in-dir, case ignored.`))

	buildCmd.Flags().BoolP("skip-file-check", "S", false,
		formatFlagUsage(`Skip input file checking when given files or a file list.`))

	// -----------------------------  output  -----------------------------

	buildCmd.Flags().StringP("out-dir", "O", "",
		formatFlagUsage(`Output directory.`))

	buildCmd.Flags().BoolP("force", "", false,
		formatFlagUsage(`Overwrite existing output directory.`))

	// -----------------------------  k-mers  -----------------------------

	buildCmd.Flags().IntP("kmer", "k", 31,
		formatFlagUsage(fmt.Sprintf(`K-mer size, in range of [1, %d].`, kmer.MaxK)))

	buildCmd.Flags().IntP("minimizer", "m", 0,
		formatFlagUsage(`Minimizer size (0 for no minimizers), needs to be smaller than k.`))

	buildCmd.Flags().StringP("shape", "s", "",
		formatFlagUsage(`Spaced k-mer shape over {O, -}, e.g. OOO-O-OOO. Replaces -k/--kmer.`))

	// ----------------------------------------------------------

	buildCmd.SetUsageTemplate(usageTemplate("[-k <k>] [-m <m>] [-s <shape>] {[-I <seqs dir>] | <seq files> | -X <file list>} -O <out dir>"))
}
