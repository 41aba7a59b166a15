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

// Package taxonomy builds a parent-pointer tree from GTDB/SILVA-style
// lineage strings and answers lowest-common-ancestor queries over it.
package taxonomy

import "strings"

// RootID is the identifier of the synthetic root taxon.
const RootID uint32 = 0

// levelPrefixes are the expected rank prefixes by position.
// Position 0 accepts d__ or k__ and is handled separately.
var levelPrefixes = [7]string{"", "p__", "c__", "o__", "f__", "g__", "s__"}

// Taxonomy is a bidirectional mapping between lineage level texts and
// dense 32-bit identifiers, plus a child-to-parent table rooted at 0.
// Whole lineage strings are stored as aliases of their most specific
// level. A level's identifier depends on the level text alone, so
// lineages sharing a prefix share the identifiers of that prefix.
type Taxonomy struct {
	names   map[string]uint32 // level text and whole-lineage alias -> id
	ids     map[uint32]string // id -> level text, individual levels only
	parents map[uint32]uint32 // child -> parent, without self loops
}

// New builds a Taxonomy from lineage strings, assigning identifiers in
// order of first appearance starting at 1. Callers are expected to have
// validated the lineages with IsValidLineage.
func New(lineages []string) *Taxonomy {
	t := &Taxonomy{
		names:   map[string]uint32{"root": RootID},
		ids:     map[uint32]string{RootID: "root"},
		parents: make(map[uint32]uint32, len(lineages)*4),
	}

	next := uint32(1)
	for _, lineage := range lineages {
		parent := RootID
		last := RootID
		any := false
		for _, level := range strings.Split(lineage, ";") {
			level = strings.TrimSpace(level)
			if level == "" {
				continue
			}

			id, ok := t.names[level]
			if !ok {
				id = next
				next++
				t.names[level] = id
				t.ids[id] = level
			}
			// a level text reappearing as its own ancestor must not
			// produce a self loop
			if id != parent {
				t.parents[id] = parent
			}
			parent = id
			last = id
			any = true
		}
		if any {
			t.names[lineage] = last
		}
	}

	return t
}

// FromMaps reconstructs a Taxonomy from a deserialized name table and
// parent table. Names containing a ';' are whole-lineage aliases and are
// excluded from the reverse mapping.
func FromMaps(names map[string]uint32, parents map[uint32]uint32) *Taxonomy {
	t := &Taxonomy{
		names:   names,
		ids:     make(map[uint32]string, len(names)),
		parents: parents,
	}
	for name, id := range names {
		if !strings.Contains(name, ";") {
			t.ids[id] = name
		}
	}
	return t
}

// TaxID returns the identifier of a level text or of a whole lineage
// string (the id of its most specific level).
func (t *Taxonomy) TaxID(name string) (uint32, bool) {
	id, ok := t.names[name]
	return id, ok
}

// Name returns the level text of an identifier.
func (t *Taxonomy) Name(id uint32) (string, bool) {
	name, ok := t.ids[id]
	return name, ok
}

// Names returns the name-to-identifier table, including whole-lineage
// aliases. The returned map is the internal one and must not be modified.
func (t *Taxonomy) Names() map[string]uint32 {
	return t.names
}

// Parents returns the child-to-parent table.
// The returned map is the internal one and must not be modified.
func (t *Taxonomy) Parents() map[uint32]uint32 {
	return t.parents
}

// NumTaxa returns the number of taxa, the synthetic root included.
func (t *Taxonomy) NumTaxa() int {
	return len(t.ids)
}

// IsValidLineage reports whether a string is a well-formed lineage:
// semicolon-separated levels starting at domain (d__ or k__), with the
// rank prefixes p__, c__, o__, f__, g__, s__ in order. Lineages are
// capped at 7 levels. A level's name must be non-empty and contain only
// alphanumerics and characters from " _-.()/:".
func IsValidLineage(lineage string) bool {
	if lineage == "" {
		return false
	}

	for i, level := range strings.Split(lineage, ";") {
		level = strings.TrimSpace(level)
		if level == "" {
			return false
		}

		if i == 0 {
			if !strings.HasPrefix(level, "d__") && !strings.HasPrefix(level, "k__") {
				return false
			}
		} else {
			if i >= len(levelPrefixes) {
				return false
			}
			if !strings.HasPrefix(level, levelPrefixes[i]) {
				return false
			}
		}

		if len(level) <= 3 {
			return false
		}
		for j := 3; j < len(level); j++ {
			if !isValidNameChar(level[j]) {
				return false
			}
		}
	}

	return true
}

func isValidNameChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z',
		c >= 'A' && c <= 'Z',
		c >= '0' && c <= '9':
		return true
	}
	switch c {
	case ' ', '_', '-', '.', '(', ')', '/', ':':
		return true
	}
	return false
}
