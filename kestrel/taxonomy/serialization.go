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

package taxonomy

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/shenwei356/xopen"
)

var le = binary.LittleEndian

// ErrBrokenFile means the lineage file is not complete.
var ErrBrokenFile = errors.New("taxonomy: broken lineage file")

// WriteParents writes the child-to-parent table to a file:
// a uint64 pair count followed by (uint32 child, uint32 parent) pairs,
// little-endian. Pair order is not defined.
func (t *Taxonomy) WriteParents(file string) (int, error) {
	outfh, err := xopen.Wopen(file)
	if err != nil {
		return 0, err
	}
	defer outfh.Close()

	return t.writeParents(outfh)
}

func (t *Taxonomy) writeParents(w io.Writer) (int, error) {
	var N int

	err := binary.Write(w, le, uint64(len(t.parents)))
	if err != nil {
		return N, err
	}
	N += 8

	buf := make([]byte, 8)
	for child, parent := range t.parents {
		le.PutUint32(buf[:4], child)
		le.PutUint32(buf[4:], parent)
		_, err = w.Write(buf)
		if err != nil {
			return N, err
		}
		N += 8
	}

	return N, nil
}

// ReadParents reads a child-to-parent table written by WriteParents.
func ReadParents(file string) (map[uint32]uint32, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	return readParents(fh)
}

func readParents(r io.Reader) (map[uint32]uint32, error) {
	buf := make([]byte, 8)

	_, err := io.ReadFull(r, buf)
	if err != nil {
		return nil, ErrBrokenFile
	}
	n := le.Uint64(buf)

	parents := make(map[uint32]uint32, n)
	var i uint64
	for i = 0; i < n; i++ {
		_, err = io.ReadFull(r, buf)
		if err != nil {
			return nil, ErrBrokenFile
		}
		parents[le.Uint32(buf[:4])] = le.Uint32(buf[4:])
	}

	return parents, nil
}
