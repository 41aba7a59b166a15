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

// Package db defines the on-disk classification database: a directory
// with params.json, lineage.bin and kmers.bin, written once by the
// builder and loaded read-only by the classifier.
package db

import (
	"github.com/pkg/errors"
	"github.com/telatin/kestrel/kestrel/kmer"
	"github.com/telatin/kestrel/kestrel/taxonomy"
)

// Database file names inside a database directory.
const (
	FileParams   = "params.json"
	FileLineages = "lineage.bin"
	FileKmers    = "kmers.bin"
)

// ValueBits is the number of bits reserved for taxon identifiers in
// packed representations of fingerprint-taxon pairs.
const ValueBits = 24

// ShapeParams describes a spaced k-mer shape in params.json.
type ShapeParams struct {
	Pattern    string `json:"pattern"`
	WindowSize int    `json:"window_size"`
}

// Params are the database parameters stored in params.json.
// Taxonomies maps level texts and whole-lineage strings to identifiers.
type Params struct {
	KmerSize      int               `json:"kmer_size"`
	MinimizerSize int               `json:"minimizer_size"`
	ValueBits     int               `json:"value_bits"`
	NumKmers      int               `json:"num_kmers"`
	Taxonomies    map[string]uint32 `json:"taxonomies"`
	KmerShape     *ShapeParams      `json:"kmer_shape,omitempty"`
}

// DB is a classification database. After Save/Load it is immutable and
// safe for concurrent readers.
type DB struct {
	Params   Params
	Kmers    map[uint64]uint32
	Taxonomy *taxonomy.Taxonomy

	shape *kmer.Shape // parsed from Params.KmerShape, nil for plain/minimizer
}

// New returns a database shell with the given extraction parameters.
// shape may be nil; when set it takes precedence over k.
func New(k int, minimizer int, shape *kmer.Shape, t *taxonomy.Taxonomy) *DB {
	d := &DB{
		Params: Params{
			KmerSize:      k,
			MinimizerSize: minimizer,
			ValueBits:     ValueBits,
		},
		Kmers:    make(map[uint64]uint32, 1<<20),
		Taxonomy: t,
		shape:    shape,
	}
	if shape != nil {
		d.Params.KmerSize = shape.K
		d.Params.KmerShape = &ShapeParams{
			Pattern:    shape.Pattern,
			WindowSize: shape.Window,
		}
	}
	return d
}

// NewIterator returns a fingerprint iterator over s using the database's
// extraction parameters, so queries see exactly the fingerprints the
// references produced.
func (d *DB) NewIterator(s []byte) (*kmer.Iterator, error) {
	switch {
	case d.shape != nil:
		return kmer.NewShapeIterator(s, d.shape)
	case d.Params.MinimizerSize > 0:
		return kmer.NewMinimizerIterator(s, d.Params.KmerSize, d.Params.MinimizerSize)
	default:
		return kmer.NewIterator(s, d.Params.KmerSize)
	}
}

// checkParams validates loaded parameters before any query runs.
func (d *DB) checkParams() error {
	k := d.Params.KmerSize
	if k < 1 || k > kmer.MaxK {
		return errors.Errorf("invalid k-mer size: %d, valid range: [1, %d]", k, kmer.MaxK)
	}
	m := d.Params.MinimizerSize
	if m > 0 && m >= k {
		return errors.Errorf("invalid minimizer size: %d, needs to be smaller than k (%d)", m, k)
	}
	if d.Params.KmerShape != nil {
		shape, err := kmer.ParseShape(d.Params.KmerShape.Pattern)
		if err != nil {
			return err
		}
		d.shape = shape
	}
	return nil
}
