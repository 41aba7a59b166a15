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
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func revCompSeq(s string) string {
	comp := map[byte]byte{'A': 'T', 'C': 'G', 'G': 'C', 'T': 'A'}
	b := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		b[len(s)-1-i] = comp[s[i]]
	}
	return string(b)
}

func TestMaskQuality(t *testing.T) {
	s := []byte("ACGTACGT")
	maskQuality(s, []byte("!!!!!!!!"), 15) // Phred 0 everywhere
	if string(s) != "NNNNNNNN" {
		t.Errorf("got %s, want NNNNNNNN", s)
	}

	s = []byte("ACGTACGT")
	maskQuality(s, []byte("IIIIIIII"), 15) // Phred 40 everywhere
	if string(s) != "ACGTACGT" {
		t.Errorf("high-quality bases masked: %s", s)
	}

	s = []byte("ACGTACGT")
	maskQuality(s, []byte("!I!I!I!I"), 15)
	if string(s) != "NCNTNCNT" {
		t.Errorf("got %s, want NCNTNCNT", s)
	}

	// mismatched lengths pass through unmodified
	s = []byte("ACGTACGT")
	maskQuality(s, []byte("!!!"), 15)
	if string(s) != "ACGTACGT" {
		t.Errorf("sequence modified despite length mismatch: %s", s)
	}

	// threshold is strict: Phred 15 survives a threshold of 15
	s = []byte("AC")
	maskQuality(s, []byte{33 + 15, 33 + 14}, 15)
	if string(s) != "AN" {
		t.Errorf("got %s, want AN", s)
	}
}

func TestClassifyIdenticalRead(t *testing.T) {
	d, err := buildTestDB(t, [][2]string{{testLineage, testRef}}, &DBBuildingOptions{K: 25})
	if err != nil {
		t.Error(err)
		return
	}

	res, err := classifySeq(d, []byte(testRef), 1)
	if err != nil {
		t.Error(err)
		return
	}
	if res.taxonomy != "s__S" || res.hits != 1 || res.total != 1 || res.score != 1.0 {
		t.Errorf("got %+v, want s__S with 1/1 hits and score 1.0", res)
	}
}

func TestClassifyReverseComplement(t *testing.T) {
	d, err := buildTestDB(t, [][2]string{{testLineage, testRef}}, &DBBuildingOptions{K: 25})
	if err != nil {
		t.Error(err)
		return
	}

	res, err := classifySeq(d, []byte(revCompSeq(testRef)), 1)
	if err != nil {
		t.Error(err)
		return
	}
	if res.taxonomy != "s__S" || res.hits != 1 {
		t.Errorf("reverse complement read not classified: %+v", res)
	}
}

func TestClassifyNoFingerprintsAndMinHits(t *testing.T) {
	d, err := buildTestDB(t, [][2]string{{testLineage, testRef}}, &DBBuildingOptions{K: 25})
	if err != nil {
		t.Error(err)
		return
	}

	// shorter than k: no fingerprints at all
	res, err := classifySeq(d, []byte("ACGT"), 1)
	if err != nil {
		t.Error(err)
		return
	}
	if res.taxonomy != noHitsName || res.hits != 0 || res.total != 0 || res.score != 0 {
		t.Errorf("got %+v, want empty no-hits result", res)
	}

	// a single hit below the default min-hits stays unclassified
	res, err = classifySeq(d, []byte(testRef), 3)
	if err != nil {
		t.Error(err)
		return
	}
	if res.taxonomy != noHitsName || res.hits != 1 || res.total != 1 || res.score != 0 {
		t.Errorf("got %+v, want no-hits with 1/1", res)
	}
}

// raising min-hits never turns a no-hits outcome into a classification
func TestClassifyMinHitsMonotonic(t *testing.T) {
	d, err := buildTestDB(t, [][2]string{{testLineage, testRef}}, &DBBuildingOptions{K: 25})
	if err != nil {
		t.Error(err)
		return
	}

	read := []byte(testRef)
	prevNoHits := false
	for minHits := 0; minHits <= 5; minHits++ {
		res, err := classifySeq(d, read, minHits)
		if err != nil {
			t.Error(err)
			return
		}
		noHits := res.taxonomy == noHitsName
		if prevNoHits && !noHits {
			t.Errorf("min-hits %d classified a read that %d did not", minHits, minHits-1)
			return
		}
		prevNoHits = noHits
	}
}

func TestClassifyTieResolvesToLCA(t *testing.T) {
	kmerX := strings.Repeat("A", 25)
	kmerY := strings.Repeat("C", 25)

	d, err := buildTestDB(t, [][2]string{
		{"d__B;p__P;c__C;o__O;f__F;g__G;s__X", kmerX},
		{"d__B;p__P;c__C;o__O;f__F;g__G;s__Y", kmerY},
	}, &DBBuildingOptions{K: 25})
	if err != nil {
		t.Error(err)
		return
	}

	// one hit for each species: the tie resolves to their genus
	read := kmerX + kmerY
	res, err := classifySeq(d, []byte(read), 1)
	if err != nil {
		t.Error(err)
		return
	}
	if res.taxonomy != "g__G" {
		t.Errorf("tied read classified as %q, want g__G", res.taxonomy)
		return
	}
	if res.hits != 1 || res.total != len(read)-25+1 {
		t.Errorf("got %d/%d, want 1/%d", res.hits, res.total, len(read)-25+1)
		return
	}
	if want := 1.0 / float64(res.total); math.Abs(res.score-want) > 1e-12 {
		t.Errorf("score %f, want %f (winning count over total fingerprints)", res.score, want)
	}
}

func TestClassifyEndToEnd(t *testing.T) {
	d, err := buildTestDB(t, [][2]string{{testLineage, testRef}}, &DBBuildingOptions{K: 25})
	if err != nil {
		t.Error(err)
		return
	}

	tmp := t.TempDir()
	reads := filepath.Join(tmp, "reads.fq")
	good := strings.Repeat("I", len(testRef))
	bad := strings.Repeat("!", len(testRef))
	fq := fmt.Sprintf("@read_1\n%s\n+\n%s\n@read_2\n%s\n+\n%s\n@read_3\n%s\n+\n%s\n",
		testRef, good,
		testRef, bad, // every base masked to N: no hits
		testRef, good)
	if err = os.WriteFile(reads, []byte(fq), 0644); err != nil {
		t.Error(err)
		return
	}

	prefix := filepath.Join(tmp, "out")
	opt := &ClassifyOptions{
		NumCPUs:          1,
		QualityThreshold: 15,
		MinHits:          1,
		OutPrefix:        prefix,
		CompressionLevel: -1,
	}
	if err = Classify(d, []string{reads}, opt); err != nil {
		t.Errorf("classify: %s", err)
		return
	}

	// ------------- per-read output -------------

	data, err := os.ReadFile(prefix + "_classification.txt")
	if err != nil {
		t.Error(err)
		return
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Errorf("got %d classification rows, want 3", len(lines))
		return
	}
	wantRows := []string{
		"read_1\ts__S\t1\t1",
		"read_2\tno hits\t0\t0",
		"read_3\ts__S\t1\t1",
	}
	for i, want := range wantRows {
		if lines[i] != want {
			t.Errorf("row %d: got %q, want %q", i, lines[i], want)
			return
		}
	}

	// ------------- summary -------------

	data, err = os.ReadFile(prefix + "_summary.txt")
	if err != nil {
		t.Error(err)
		return
	}
	lines = strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if lines[0] != "Taxonomy\tReads\tAvg_Score\tTotal_Bases" {
		t.Errorf("summary header: %q", lines[0])
		return
	}
	if len(lines) != 3 {
		t.Errorf("got %d summary rows, want 2 plus the header", len(lines)-1)
		return
	}
	// s__S has more reads and sorts first; bases count the masked length
	if lines[1] != fmt.Sprintf("s__S\t2\t1.000\t%d", 2*len(testRef)) {
		t.Errorf("summary row 1: %q", lines[1])
		return
	}
	if lines[2] != fmt.Sprintf("no hits\t1\t0.000\t%d", len(testRef)) {
		t.Errorf("summary row 2: %q", lines[2])
	}
}
