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
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/telatin/kestrel/kestrel/db"
	"github.com/telatin/kestrel/kestrel/kmer"
	"github.com/telatin/kestrel/kestrel/taxonomy"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"github.com/zeebo/wyhash"
)

// DBBuildingOptions are the parameters of BuildDB.
type DBBuildingOptions struct {
	NumCPUs  int
	Verbose  bool
	Log2File bool

	K         int         // k-mer size
	Minimizer int         // minimizer size, 0 disables
	Shape     *kmer.Shape // spaced k-mer shape, overrides K
}

// CheckDBBuildingOptions checks the options before any I/O.
func CheckDBBuildingOptions(opt *DBBuildingOptions) error {
	if opt.Shape != nil {
		if opt.Minimizer > 0 {
			return fmt.Errorf("a k-mer shape can not be combined with minimizers")
		}
		return nil
	}
	if opt.K < 1 || opt.K > kmer.MaxK {
		return fmt.Errorf("invalid k value: %d, valid range: [1, %d]", opt.K, kmer.MaxK)
	}
	if opt.Minimizer > 0 && opt.Minimizer >= opt.K {
		return fmt.Errorf("invalid minimizer size: %d, needs to be smaller than k (%d)",
			opt.Minimizer, opt.K)
	}
	return nil
}

// newFingerprintIterator picks the extraction mode once per call site.
func newFingerprintIterator(s []byte, opt *DBBuildingOptions) (*kmer.Iterator, error) {
	switch {
	case opt.Shape != nil:
		return kmer.NewShapeIterator(s, opt.Shape)
	case opt.Minimizer > 0:
		return kmer.NewMinimizerIterator(s, opt.K, opt.Minimizer)
	default:
		return kmer.NewIterator(s, opt.K)
	}
}

// recordComment returns the FASTA header comment: the text after the
// first whitespace, with surrounding whitespace trimmed.
func recordComment(name []byte) string {
	i := bytes.IndexAny(name, " \t")
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(string(name[i+1:]))
}

// BuildDB builds a classification database from reference files and
// writes it into outdir (which must exist).
//
// Pass 1 collects and validates the lineage strings from the header
// comments and builds the taxonomy. Pass 2 streams the sequences again,
// extracts fingerprints and assigns each to its record's taxon, merging
// conflicting assignments with the LCA of the two taxa.
func BuildDB(outdir string, files []string, opt *DBBuildingOptions) error {
	err := CheckDBBuildingOptions(opt)
	if err != nil {
		return err
	}

	// ---------------------------------------------------------------
	// pass 1: taxonomy collection

	lineages := make([]string, 0, 1024)
	seenLineages := make(map[string]interface{}, 1024)
	seenIDs := make(map[uint64]interface{}, 1024)

	var record *fastx.Record
	var fastxReader *fastx.Reader

	for _, file := range files {
		fastxReader, err = fastx.NewDefaultReader(file)
		if err != nil {
			return errors.Wrap(err, file)
		}

		for {
			record, err = fastxReader.Read()
			if err != nil {
				if err == io.EOF {
					break
				}
				return errors.Wrap(err, file)
			}

			idh := wyhash.HashString(string(record.ID), 1)
			if _, ok := seenIDs[idh]; ok {
				log.Warningf("duplicated record ID: %s", record.ID)
			} else {
				seenIDs[idh] = nil
			}

			lineage := recordComment(record.Name)
			if !taxonomy.IsValidLineage(lineage) {
				log.Warningf("skipping record %s: invalid lineage: %q", record.ID, lineage)
				continue
			}

			if _, ok := seenLineages[lineage]; !ok {
				seenLineages[lineage] = nil
				lineages = append(lineages, lineage)
			}
		}
	}

	if len(lineages) == 0 {
		return fmt.Errorf("no valid taxonomies found in %d file(s)", len(files))
	}

	taxdb := taxonomy.New(lineages)

	if opt.Verbose || opt.Log2File {
		log.Infof("%d unique lineage(s) collected, %d taxa", len(lineages), taxdb.NumTaxa())
	}

	// ---------------------------------------------------------------
	// pass 2: fingerprint accumulation

	// process bar
	var pbs *mpb.Progress
	var bar *mpb.Bar
	var chDuration chan time.Duration
	var doneDuration chan int
	if opt.Verbose {
		pbs = mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
		bar = pbs.AddBar(int64(len(files)),
			mpb.PrependDecorators(
				decor.Name("processed files: ", decor.WC{W: len("processed files: "), C: decor.DindentRight}),
				decor.Name("", decor.WCSyncSpaceR),
				decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.Name("ETA: ", decor.WC{W: len("ETA: ")}),
				decor.EwmaETA(decor.ET_STYLE_GO, 10),
				decor.OnComplete(decor.Name(""), ". done"),
			),
		)

		chDuration = make(chan time.Duration, opt.NumCPUs)
		doneDuration = make(chan int)
		go func() {
			for t := range chDuration {
				bar.Increment()
				bar.EwmaIncrBy(1, t)
			}
			doneDuration <- 1
		}()
	}

	d := db.New(opt.K, opt.Minimizer, opt.Shape, taxdb)

	var it *kmer.Iterator
	var code uint64
	var ok bool
	var taxid, prev uint32

	for _, file := range files {
		timeStartFile := time.Now()

		fastxReader, err = fastx.NewDefaultReader(file)
		if err != nil {
			return errors.Wrap(err, file)
		}

		for {
			record, err = fastxReader.Read()
			if err != nil {
				if err == io.EOF {
					break
				}
				return errors.Wrap(err, file)
			}

			// records rejected in pass 1
			taxid, ok = taxdb.TaxID(recordComment(record.Name))
			if !ok {
				continue
			}

			it, err = newFingerprintIterator(record.Seq.Seq, opt)
			if err != nil {
				return errors.Wrapf(err, "seq: %s", record.ID)
			}

			for {
				code, ok = it.Next()
				if !ok {
					break
				}

				if prev, ok = d.Kmers[code]; ok {
					if prev != taxid {
						d.Kmers[code] = taxdb.LCA(prev, taxid)
					}
				} else {
					d.Kmers[code] = taxid
				}
			}
		}

		if opt.Verbose {
			chDuration <- time.Since(timeStartFile)
		}
	}

	if opt.Verbose {
		close(chDuration)
		<-doneDuration
		pbs.Wait()
	}

	if len(d.Kmers) == 0 {
		return fmt.Errorf("no k-mers extracted from %d file(s)", len(files))
	}

	if opt.Verbose || opt.Log2File {
		log.Infof("%d k-mer(s) collected", len(d.Kmers))
	}

	// ---------------------------------------------------------------
	// serialization

	return d.Save(outdir)
}
