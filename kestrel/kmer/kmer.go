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

// Package kmer provides the 2-bit nucleotide codec and the fingerprint
// iterators (plain k-mers, minimizers, spaced shapes) shared by the
// database builder and the classifier.
package kmer

import "math/bits"

// MaxK is the maximum k-mer size, limited by 2 bits per base in a uint64
// with one spare bit pair reserved.
const MaxK = 31

// invalidBase marks any character outside ACGTacgt.
const invalidBase = 4

// base2bit maps a nucleotide to its 2-bit code: A=0, C=1, G=2, T=3,
// case-insensitive. Everything else, including N and other ambiguity
// codes, maps to invalidBase.
var base2bit [256]uint8

var bit2base = [4]byte{'A', 'C', 'G', 'T'}

func init() {
	for i := range base2bit {
		base2bit[i] = invalidBase
	}
	base2bit['A'], base2bit['a'] = 0, 0
	base2bit['C'], base2bit['c'] = 1, 1
	base2bit['G'], base2bit['g'] = 2, 2
	base2bit['T'], base2bit['t'] = 3, 3
}

// RevComp returns the reverse complement of a 2-bit packed k-mer.
// Complementing both bits of a base yields its DNA complement
// (A<->T is 00<->11, C<->G is 01<->10), so the whole word is inverted
// first, then the 2-bit groups are reversed with the usual
// pair/nibble/byte swap cascade, and the result is aligned to the
// low 2k bits.
func RevComp(code uint64, k uint8) uint64 {
	c := ^code
	c = c>>2&0x3333333333333333 | c&0x3333333333333333<<2
	c = c>>4&0x0f0f0f0f0f0f0f0f | c&0x0f0f0f0f0f0f0f0f<<4
	c = bits.ReverseBytes64(c)
	return c >> (64 - (uint(k) << 1))
}

// Canonical returns the smaller of a k-mer and its reverse complement,
// compared as unsigned 64-bit integers. A window and its reverse
// complement therefore share one fingerprint.
func Canonical(code uint64, k uint8) uint64 {
	if rc := RevComp(code, k); rc < code {
		return rc
	}
	return code
}

// Hash64 is the 64-bit finalizer of MurmurHash3, used where a uniformly
// distributed derivation of a code is needed.
func Hash64(code uint64) uint64 {
	code ^= code >> 33
	code *= 0xff51afd7ed558ccd
	code ^= code >> 33
	code *= 0xc4ceb9fe1a85ec53
	code ^= code >> 33
	return code
}

// MustDecode returns the bases of a 2-bit packed k-mer.
// It does not check k.
func MustDecode(code uint64, k uint8) []byte {
	kmer := make([]byte, k)
	var i uint8
	for i = 0; i < k; i++ {
		kmer[k-1-i] = bit2base[code&3]
		code >>= 2
	}
	return kmer
}
