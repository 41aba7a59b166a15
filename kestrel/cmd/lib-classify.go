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
	"io"
	"sort"

	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/telatin/kestrel/kestrel/db"
)

// unclassifiedName is reported when a winning taxon has no level name,
// noHitsName when a read has no (or too few) database hits.
const (
	unclassifiedName = "unclassified"
	noHitsName       = "no hits"
)

// ClassifyOptions are the parameters of Classify.
type ClassifyOptions struct {
	NumCPUs  int
	Verbose  bool
	Log2File bool

	QualityThreshold int // Phred+33, bases below are masked to N
	MinHits          int // minimum hits to classify a read

	OutPrefix        string
	Gzip             bool
	CompressionLevel int
}

// readClass is the classification of a single read.
type readClass struct {
	taxonomy string
	hits     int     // count of the winning taxon, or total hits below MinHits
	total    int     // fingerprints extracted from the read
	score    float64 // hits / total for a classified read, 0 for "no hits"
}

// maskQuality masks bases whose Phred+33 quality is below threshold
// to N, in place. Sequences whose quality length does not match are
// left untouched.
func maskQuality(s []byte, qual []byte, threshold int) {
	if len(qual) != len(s) {
		return
	}
	for i, q := range qual {
		if int(q)-33 < threshold {
			s[i] = 'N'
		}
	}
}

// classifySeq classifies one (masked) sequence against the database.
func classifySeq(d *db.DB, s []byte, minHits int) (readClass, error) {
	it, err := d.NewIterator(s)
	if err != nil {
		return readClass{}, err
	}

	var total, totalHits int
	counts := make(map[uint32]int, 8)

	for {
		code, ok := it.Next()
		if !ok {
			break
		}
		total++

		if taxid, ok := d.Kmers[code]; ok {
			counts[taxid]++
			totalHits++
		}
	}

	if total == 0 {
		return readClass{taxonomy: noHitsName}, nil
	}
	if totalHits == 0 || totalHits < minHits {
		return readClass{taxonomy: noHitsName, hits: totalHits, total: total}, nil
	}

	max := 0
	for _, c := range counts {
		if c > max {
			max = c
		}
	}

	// the LCA of tied taxa wins; LCA is associative and commutative,
	// so the fold order does not matter
	var winner uint32
	first := true
	for taxid, c := range counts {
		if c != max {
			continue
		}
		if first {
			winner = taxid
			first = false
		} else {
			winner = d.Taxonomy.LCA(winner, taxid)
		}
	}

	name, ok := d.Taxonomy.Name(winner)
	if !ok {
		name = unclassifiedName
	}

	return readClass{
		taxonomy: name,
		hits:     max,
		total:    total,
		score:    float64(max) / float64(total),
	}, nil
}

// taxonSummary accumulates the per-taxonomy summary rows.
type taxonSummary struct {
	reads    int
	sumScore float64
	bases    int
}

// Classify streams reads from files, classifies each against the
// database and writes <prefix>_classification.txt and
// <prefix>_summary.txt. A single read never fails the run: reads
// without enough hits are reported as "no hits".
func Classify(d *db.DB, files []string, opt *ClassifyOptions) error {
	fileClass := opt.OutPrefix + "_classification.txt"
	fileSummary := opt.OutPrefix + "_summary.txt"
	if opt.Gzip {
		fileClass += ".gz"
		fileSummary += ".gz"
	}

	outfh, gw, w, err := outStream(fileClass, opt.Gzip, opt.CompressionLevel)
	if err != nil {
		return err
	}

	summary := make(map[string]*taxonSummary, 128)

	var record *fastx.Record
	var fastxReader *fastx.Reader
	var nReads int

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

			maskQuality(record.Seq.Seq, record.Seq.Qual, opt.QualityThreshold)

			res, err := classifySeq(d, record.Seq.Seq, opt.MinHits)
			if err != nil {
				return errors.Wrapf(err, "seq: %s", record.ID)
			}

			fmt.Fprintf(outfh, "%s\t%s\t%d\t%d\n", record.ID, res.taxonomy, res.hits, res.total)
			nReads++

			stat := summary[res.taxonomy]
			if stat == nil {
				stat = &taxonSummary{}
				summary[res.taxonomy] = stat
			}
			stat.reads++
			stat.sumScore += res.score
			stat.bases += len(record.Seq.Seq)
		}
	}

	outfh.Flush()
	if gw != nil {
		gw.Close()
	}
	w.Close()

	err = writeSummary(fileSummary, summary, opt)
	if err != nil {
		return err
	}

	if opt.Verbose || opt.Log2File {
		log.Infof("%d read(s) classified into %d taxonomies", nReads, len(summary))
		log.Infof("per-read output saved: %s", fileClass)
		log.Infof("summary saved: %s", fileSummary)
	}

	return nil
}

func writeSummary(file string, summary map[string]*taxonSummary, opt *ClassifyOptions) error {
	outfh, gw, w, err := outStream(file, opt.Gzip, opt.CompressionLevel)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(summary))
	for name := range summary {
		names = append(names, name)
	}
	// descending by reads; name order breaks ties so output is stable
	sort.Slice(names, func(i, j int) bool {
		si, sj := summary[names[i]], summary[names[j]]
		if si.reads != sj.reads {
			return si.reads > sj.reads
		}
		return names[i] < names[j]
	})

	fmt.Fprintf(outfh, "Taxonomy\tReads\tAvg_Score\tTotal_Bases\n")
	for _, name := range names {
		stat := summary[name]
		fmt.Fprintf(outfh, "%s\t%d\t%.3f\t%d\n",
			name, stat.reads, stat.sumScore/float64(stat.reads), stat.bases)
	}

	outfh.Flush()
	if gw != nil {
		gw.Close()
	}
	return w.Close()
}
