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

// maxDepth caps ancestor walks. Lineages are at most 7 levels deep, so
// the cap only matters for a corrupted parent table.
const maxDepth = 64

// LCA returns the lowest common ancestor of two taxa, or the root when
// they share no ancestor.
func (t *Taxonomy) LCA(a, b uint32) uint32 {
	if a == b {
		return a
	}

	ancestors := make(map[uint32]struct{}, maxDepth)
	n := a
	for depth := 0; depth < maxDepth; depth++ {
		ancestors[n] = struct{}{}
		if n == RootID {
			break
		}
		p, ok := t.parents[n]
		if !ok || p == n {
			break
		}
		n = p
	}

	n = b
	for depth := 0; depth < maxDepth; depth++ {
		if _, ok := ancestors[n]; ok {
			return n
		}
		if n == RootID {
			break
		}
		p, ok := t.parents[n]
		if !ok || p == n {
			break
		}
		n = p
	}

	return RootID
}
