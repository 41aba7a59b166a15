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

import "fmt"

// Shape is a spaced k-mer pattern over {O, -}: 'O' marks a position
// packed into the fingerprint, '-' a skipped one.
type Shape struct {
	Pattern string
	K       int // number of 'O' positions
	Window  int // pattern length

	positions []int // indices of 'O' in the pattern
}

// ParseShape parses a pattern like "OO-O--OO".
// The number of 'O' positions needs to be in range of [1, 31].
func ParseShape(pattern string) (*Shape, error) {
	if pattern == "" {
		return nil, fmt.Errorf("kmer: empty shape pattern")
	}

	positions := make([]int, 0, len(pattern))
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case 'O':
			positions = append(positions, i)
		case '-':
		default:
			return nil, fmt.Errorf("kmer: invalid character %q in shape pattern: %s",
				pattern[i], pattern)
		}
	}

	if len(positions) < 1 || len(positions) > MaxK {
		return nil, fmt.Errorf("kmer: shape needs 1-%d 'O' positions: %s", MaxK, pattern)
	}

	return &Shape{
		Pattern:   pattern,
		K:         len(positions),
		Window:    len(pattern),
		positions: positions,
	}, nil
}
