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
	"path/filepath"
	"strings"
	"testing"

	"github.com/telatin/kestrel/kestrel/db"
	"github.com/telatin/kestrel/kestrel/kmer"
)

const testLineage = "d__B;p__P;c__C;o__O;f__F;g__G;s__S"

// the 25 bp reference used across the build tests
const testRef = "ACGTACGTACGTACGTACGTACGTA"

func writeFasta(t *testing.T, file string, records [][2]string) {
	t.Helper()
	var sb strings.Builder
	for i, rec := range records {
		fmt.Fprintf(&sb, ">seq_%d %s\n%s\n", i+1, rec[0], rec[1])
	}
	if err := os.WriteFile(file, []byte(sb.String()), 0644); err != nil {
		t.Fatalf("writing test fasta: %s", err)
	}
}

func buildTestDB(t *testing.T, records [][2]string, opt *DBBuildingOptions) (*db.DB, error) {
	t.Helper()
	tmp := t.TempDir()

	file := filepath.Join(tmp, "refs.fasta")
	writeFasta(t, file, records)

	outdir := filepath.Join(tmp, "db")
	if err := os.MkdirAll(outdir, 0755); err != nil {
		t.Fatalf("creating out dir: %s", err)
	}

	if err := BuildDB(outdir, []string{file}, opt); err != nil {
		return nil, err
	}
	return db.Load(outdir)
}

func TestCheckDBBuildingOptions(t *testing.T) {
	if err := CheckDBBuildingOptions(&DBBuildingOptions{K: 0}); err == nil {
		t.Errorf("k=0 accepted")
	}
	if err := CheckDBBuildingOptions(&DBBuildingOptions{K: 32}); err == nil {
		t.Errorf("k=32 accepted")
	}
	if err := CheckDBBuildingOptions(&DBBuildingOptions{K: 15, Minimizer: 15}); err == nil {
		t.Errorf("m=k accepted")
	}
	if err := CheckDBBuildingOptions(&DBBuildingOptions{K: 25, Minimizer: 15}); err != nil {
		t.Errorf("valid minimizer options rejected: %s", err)
	}

	shape, _ := kmer.ParseShape("OO-OO")
	if err := CheckDBBuildingOptions(&DBBuildingOptions{Shape: shape, Minimizer: 5}); err == nil {
		t.Errorf("shape with minimizer accepted")
	}
	if err := CheckDBBuildingOptions(&DBBuildingOptions{Shape: shape}); err != nil {
		t.Errorf("valid shape options rejected: %s", err)
	}
}

func TestBuildSingleReference(t *testing.T) {
	d, err := buildTestDB(t, [][2]string{{testLineage, testRef}}, &DBBuildingOptions{K: 25})
	if err != nil {
		t.Errorf("building database: %s", err)
		return
	}

	if d.Params.NumKmers != 1 {
		t.Errorf("got %d k-mers, want 1", d.Params.NumKmers)
		return
	}

	want, _ := d.Taxonomy.TaxID("s__S")
	for _, taxid := range d.Kmers {
		if taxid != want {
			t.Errorf("k-mer assigned to taxid %d, want %d (s__S)", taxid, want)
		}
	}
}

func TestBuildMergesConflictsWithLCA(t *testing.T) {
	shared := strings.Repeat("A", 25)
	d, err := buildTestDB(t, [][2]string{
		{"d__B;p__P;c__C;o__O;f__F;g__G;s__S1", shared},
		{"d__B;p__P;c__C;o__O;f__F;g__G;s__S2", shared},
	}, &DBBuildingOptions{K: 25})
	if err != nil {
		t.Errorf("building database: %s", err)
		return
	}

	if d.Params.NumKmers != 1 {
		t.Errorf("got %d k-mers, want 1", d.Params.NumKmers)
		return
	}

	genus, _ := d.Taxonomy.TaxID("g__G")
	for _, taxid := range d.Kmers {
		if taxid != genus {
			t.Errorf("shared k-mer assigned to taxid %d, want %d (g__G)", taxid, genus)
		}
	}
}

func TestBuildSkipsInvalidLineages(t *testing.T) {
	d, err := buildTestDB(t, [][2]string{
		{testLineage, testRef},
		{"not a lineage", strings.Repeat("C", 30)},
	}, &DBBuildingOptions{K: 25})
	if err != nil {
		t.Errorf("building database: %s", err)
		return
	}

	if _, ok := d.Taxonomy.TaxID("not a lineage"); ok {
		t.Errorf("invalid lineage entered the taxonomy")
	}
	if d.Params.NumKmers != 1 {
		t.Errorf("got %d k-mers, want 1 (invalid record must not contribute)", d.Params.NumKmers)
	}
}

func TestBuildFailsWithoutTaxonomies(t *testing.T) {
	_, err := buildTestDB(t, [][2]string{
		{"no lineage here", testRef},
	}, &DBBuildingOptions{K: 25})
	if err == nil {
		t.Errorf("build without valid lineages succeeded")
	}
}

func TestBuildFailsWithoutKmers(t *testing.T) {
	// a valid lineage, but the sequence is shorter than k
	_, err := buildTestDB(t, [][2]string{
		{testLineage, "ACGT"},
	}, &DBBuildingOptions{K: 25})
	if err == nil {
		t.Errorf("build without k-mers succeeded")
	}
}

func TestBuildMinimizer(t *testing.T) {
	refs := [][2]string{{testLineage, testRef + strings.Repeat("GATTACA", 20)}}

	plain, err := buildTestDB(t, refs, &DBBuildingOptions{K: 25})
	if err != nil {
		t.Errorf("plain build: %s", err)
		return
	}
	mini, err := buildTestDB(t, refs, &DBBuildingOptions{K: 25, Minimizer: 15})
	if err != nil {
		t.Errorf("minimizer build: %s", err)
		return
	}

	if mini.Params.NumKmers > plain.Params.NumKmers {
		t.Errorf("minimizer database larger than plain: %d > %d",
			mini.Params.NumKmers, plain.Params.NumKmers)
		return
	}

	// the reference still hits its own database
	res, err := classifySeq(mini, []byte(refs[0][1]), 1)
	if err != nil {
		t.Error(err)
		return
	}
	if res.taxonomy != "s__S" || res.hits < 1 {
		t.Errorf("reference does not hit its minimizer database: %+v", res)
	}
}

func TestBuildShapeMatchesPlain(t *testing.T) {
	shape, err := kmer.ParseShape(strings.Repeat("O", 25))
	if err != nil {
		t.Error(err)
		return
	}

	refs := [][2]string{{testLineage, testRef + strings.Repeat("GATTACA", 10)}}

	plain, err := buildTestDB(t, refs, &DBBuildingOptions{K: 25})
	if err != nil {
		t.Errorf("plain build: %s", err)
		return
	}
	shaped, err := buildTestDB(t, refs, &DBBuildingOptions{Shape: shape})
	if err != nil {
		t.Errorf("shaped build: %s", err)
		return
	}

	if len(shaped.Kmers) != len(plain.Kmers) {
		t.Errorf("all-O shape differs from plain mode: %d vs %d k-mers",
			len(shaped.Kmers), len(plain.Kmers))
		return
	}
	for code, taxid := range plain.Kmers {
		if shaped.Kmers[code] != taxid {
			t.Errorf("k-mer %d differs between all-O shape and plain mode", code)
			return
		}
	}
}

func TestRecordComment(t *testing.T) {
	tests := []struct {
		name    string
		comment string
	}{
		{"seq_1 d__B;p__P", "d__B;p__P"},
		{"seq_1\td__B", "d__B"},
		{"seq_1  spaced  ", "spaced"},
		{"seq_1", ""},
	}
	for _, test := range tests {
		if got := recordComment([]byte(test.name)); got != test.comment {
			t.Errorf("recordComment(%q): got %q, want %q", test.name, got, test.comment)
		}
	}
}
