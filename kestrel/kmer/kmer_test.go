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

package kmer

import (
	"math/rand"
	"testing"
)

// mustEncode packs bases for tests, skipping validity checks.
func mustEncode(s string) uint64 {
	var code uint64
	for i := 0; i < len(s); i++ {
		code = code<<2 | uint64(base2bit[s[i]])
	}
	return code
}

func TestRevCompKnownValues(t *testing.T) {
	tests := []struct {
		kmer    string
		revComp string
	}{
		{"A", "T"},
		{"AA", "TT"},
		{"ACGT", "ACGT"}, // palindrome
		{"AAAAC", "GTTTT"},
		{"ACGTACGTACGTACGTACGTACGTA", "TACGTACGTACGTACGTACGTACGT"},
	}

	for _, test := range tests {
		k := uint8(len(test.kmer))
		got := RevComp(mustEncode(test.kmer), k)
		want := mustEncode(test.revComp)
		if got != want {
			t.Errorf("RevComp(%s): got %s, want %s",
				test.kmer, MustDecode(got, k), test.revComp)
		}
	}
}

func TestRevCompInvolution(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, k := range []uint8{1, 2, 7, 15, 21, 31} {
		mask := uint64(1)<<(uint(k)<<1) - 1
		for i := 0; i < 1000; i++ {
			code := r.Uint64() & mask
			if RevComp(RevComp(code, k), k) != code {
				t.Errorf("revcomp not an involution for k=%d, code=%d", k, code)
				return
			}
		}
	}
}

func TestCanonicalIdempotence(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for _, k := range []uint8{1, 5, 13, 25, 31} {
		mask := uint64(1)<<(uint(k)<<1) - 1
		for i := 0; i < 1000; i++ {
			code := r.Uint64() & mask
			c := Canonical(code, k)
			if Canonical(c, k) != c {
				t.Errorf("canonical not idempotent for k=%d, code=%d", k, code)
				return
			}
			if c != Canonical(RevComp(code, k), k) {
				t.Errorf("canonical differs between strands for k=%d, code=%d", k, code)
				return
			}
		}
	}
}

func TestHash64(t *testing.T) {
	if Hash64(0) != 0 {
		t.Errorf("Hash64(0): got %d, want 0", Hash64(0))
	}

	// deterministic and (practically) collision-free on small inputs
	seen := make(map[uint64]uint64, 10000)
	for i := uint64(1); i <= 10000; i++ {
		h := Hash64(i)
		if h != Hash64(i) {
			t.Errorf("Hash64 not deterministic for %d", i)
			return
		}
		if prev, ok := seen[h]; ok {
			t.Errorf("Hash64 collision: %d and %d", prev, i)
			return
		}
		seen[h] = i
	}
}

func TestMustDecode(t *testing.T) {
	for _, s := range []string{"A", "ACGT", "GATTACA", "TTTTTTTTTTTTTTTTTTTTTTTTT"} {
		got := string(MustDecode(mustEncode(s), uint8(len(s))))
		if got != s {
			t.Errorf("MustDecode: got %s, want %s", got, s)
		}
	}
}
