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

import "errors"

// ErrKOverflow means k is out of the range [1, 31].
var ErrKOverflow = errors.New("kmer: k-mer size [1, 31] overflow")

// ErrBigM means the minimizer size is not smaller than k.
var ErrBigM = errors.New("kmer: minimizer size needs to be smaller than k")

// minimizerToggle is XORed into canonical m-mer codes before comparison,
// so ties are broken on a scrambled ordering instead of favouring
// low-complexity minimizers. The constant is part of the database format:
// changing it breaks compatibility with existing databases.
const minimizerToggle = 0xe37e28c4271b5a2d

const (
	modePlain = iota
	modeMinimizer
	modeShape
)

type minimizerEntry struct {
	key uint64
	pos int
}

// Iterator yields the 64-bit fingerprints of a nucleotide sequence in
// positional order. It is single-use: create one per sequence and call
// Next until it returns false. Invalid bases never surface as errors,
// they only shorten the emission stream.
type Iterator struct {
	s    []byte
	mode uint8

	k    int
	mask uint64

	// rolling state shared by the plain and minimizer modes
	i        int
	validLen int
	code     uint64

	// minimizer mode
	m      int
	mMask  uint64
	mCode  uint64
	toggle uint64
	deque  []minimizerEntry
	front  int

	// shape mode
	shape  *Shape
	offset int
}

// NewIterator returns an iterator over the canonical plain k-mers of s.
func NewIterator(s []byte, k int) (*Iterator, error) {
	if k < 1 || k > MaxK {
		return nil, ErrKOverflow
	}
	return &Iterator{
		s:    s,
		mode: modePlain,
		k:    k,
		mask: 1<<(uint(k)<<1) - 1,
	}, nil
}

// NewMinimizerIterator returns an iterator emitting, for every position
// with at least k preceding valid bases, the canonical minimizer of size m
// among the k-m m-mers that end in the last k-m positions, i.e. that lie
// within the last k-1 bases.
func NewMinimizerIterator(s []byte, k int, m int) (*Iterator, error) {
	if k < 1 || k > MaxK {
		return nil, ErrKOverflow
	}
	if m < 1 || m > MaxK {
		return nil, ErrKOverflow
	}
	if m >= k {
		return nil, ErrBigM
	}
	mMask := uint64(1)<<(uint(m)<<1) - 1
	return &Iterator{
		s:      s,
		mode:   modeMinimizer,
		k:      k,
		m:      m,
		mMask:  mMask,
		toggle: minimizerToggle & mMask,
		deque:  make([]minimizerEntry, 0, k-m+1),
	}, nil
}

// NewShapeIterator returns an iterator over the canonical spaced k-mers
// of s selected by the shape.
func NewShapeIterator(s []byte, shape *Shape) (*Iterator, error) {
	if shape.K < 1 || shape.K > MaxK {
		return nil, ErrKOverflow
	}
	return &Iterator{
		s:     s,
		mode:  modeShape,
		shape: shape,
	}, nil
}

// Next returns the next fingerprint, or false when the sequence is
// exhausted.
func (it *Iterator) Next() (uint64, bool) {
	switch it.mode {
	case modePlain:
		return it.nextPlain()
	case modeMinimizer:
		return it.nextMinimizer()
	default:
		return it.nextShape()
	}
}

func (it *Iterator) nextPlain() (uint64, bool) {
	for it.i < len(it.s) {
		b := base2bit[it.s[it.i]]
		it.i++

		if b == invalidBase {
			it.validLen = 0
			it.code = 0
			continue
		}

		it.code = (it.code<<2 | uint64(b)) & it.mask
		it.validLen++

		if it.validLen >= it.k {
			return Canonical(it.code, uint8(it.k)), true
		}
	}
	return 0, false
}

func (it *Iterator) nextMinimizer() (uint64, bool) {
	for it.i < len(it.s) {
		b := base2bit[it.s[it.i]]
		pos := it.i
		it.i++

		if b == invalidBase {
			it.validLen = 0
			it.mCode = 0
			it.deque = it.deque[:0]
			it.front = 0
			continue
		}

		it.mCode = (it.mCode<<2 | uint64(b)) & it.mMask
		it.validLen++

		if it.validLen >= it.m {
			ck := Canonical(it.mCode, uint8(it.m)) ^ it.toggle

			// keep keys strictly increasing from the front
			for len(it.deque) > it.front && it.deque[len(it.deque)-1].key >= ck {
				it.deque = it.deque[:len(it.deque)-1]
			}
			it.deque = append(it.deque, minimizerEntry{key: ck, pos: pos})

			// drop minimizers that do not lie within the last k-1 bases
			for it.deque[it.front].pos < pos-it.k+it.m+1 {
				it.front++
			}
		}

		if it.validLen >= it.k {
			return it.deque[it.front].key ^ it.toggle, true
		}
	}
	return 0, false
}

func (it *Iterator) nextShape() (uint64, bool) {
	shape := it.shape
	for it.offset+shape.Window <= len(it.s) {
		window := it.s[it.offset:]
		it.offset++

		var code uint64
		ok := true
		for _, p := range shape.positions {
			b := base2bit[window[p]]
			if b == invalidBase {
				ok = false
				break
			}
			code = code<<2 | uint64(b)
		}
		if ok {
			return Canonical(code, uint8(shape.K)), true
		}
	}
	return 0, false
}
