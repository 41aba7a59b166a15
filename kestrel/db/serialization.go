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

package db

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/shenwei356/xopen"
	"github.com/telatin/kestrel/kestrel/taxonomy"
	"github.com/twotwotwo/sorts/sortutil"
)

var le = binary.LittleEndian

// ErrBrokenFile means a database file is not complete.
var ErrBrokenFile = errors.New("db: broken k-mer file")

// Save writes params.json, lineage.bin and kmers.bin into outdir,
// which must exist. The fingerprint table is written in ascending
// fingerprint order so identical inputs produce an identical kmers.bin
// (the pair order of lineage.bin is not defined); readers must not rely
// on the order.
func (d *DB) Save(outdir string) error {
	d.Params.NumKmers = len(d.Kmers)
	d.Params.Taxonomies = d.Taxonomy.Names()

	fileParams := filepath.Join(outdir, FileParams)
	data, err := json.MarshalIndent(&d.Params, "", "  ")
	if err != nil {
		return errors.Wrap(err, fileParams)
	}
	err = os.WriteFile(fileParams, append(data, '\n'), 0644)
	if err != nil {
		return errors.Wrap(err, fileParams)
	}

	fileLineages := filepath.Join(outdir, FileLineages)
	_, err = d.Taxonomy.WriteParents(fileLineages)
	if err != nil {
		return errors.Wrap(err, fileLineages)
	}

	fileKmers := filepath.Join(outdir, FileKmers)
	err = d.writeKmers(fileKmers)
	if err != nil {
		return errors.Wrap(err, fileKmers)
	}

	return nil
}

func (d *DB) writeKmers(file string) error {
	outfh, err := xopen.Wopen(file)
	if err != nil {
		return err
	}
	defer outfh.Close()

	err = binary.Write(outfh, le, uint64(len(d.Kmers)))
	if err != nil {
		return err
	}

	codes := make([]uint64, 0, len(d.Kmers))
	for code := range d.Kmers {
		codes = append(codes, code)
	}
	sortutil.Uint64s(codes)

	buf := make([]byte, 12)
	for _, code := range codes {
		le.PutUint64(buf[:8], code)
		le.PutUint32(buf[8:], d.Kmers[code])
		_, err = outfh.Write(buf)
		if err != nil {
			return err
		}
	}

	return nil
}

func readKmers(file string) (map[uint64]uint32, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	buf := make([]byte, 12)

	_, err = io.ReadFull(fh, buf[:8])
	if err != nil {
		return nil, ErrBrokenFile
	}
	n := le.Uint64(buf[:8])

	kmers := make(map[uint64]uint32, n)
	var i uint64
	for i = 0; i < n; i++ {
		_, err = io.ReadFull(fh, buf)
		if err != nil {
			return nil, ErrBrokenFile
		}
		kmers[le.Uint64(buf[:8])] = le.Uint32(buf[8:])
	}

	return kmers, nil
}

// Load reads a database directory written by Save and validates its
// parameters. The returned database is read-only.
func Load(dir string) (*DB, error) {
	d := &DB{}

	fileParams := filepath.Join(dir, FileParams)
	data, err := os.ReadFile(fileParams)
	if err != nil {
		return nil, errors.Wrap(err, fileParams)
	}
	err = json.Unmarshal(data, &d.Params)
	if err != nil {
		return nil, errors.Wrap(err, fileParams)
	}
	err = d.checkParams()
	if err != nil {
		return nil, errors.Wrap(err, fileParams)
	}

	fileLineages := filepath.Join(dir, FileLineages)
	parents, err := taxonomy.ReadParents(fileLineages)
	if err != nil {
		return nil, errors.Wrap(err, fileLineages)
	}
	d.Taxonomy = taxonomy.FromMaps(d.Params.Taxonomies, parents)

	fileKmers := filepath.Join(dir, FileKmers)
	d.Kmers, err = readKmers(fileKmers)
	if err != nil {
		return nil, errors.Wrap(err, fileKmers)
	}
	if len(d.Kmers) != d.Params.NumKmers {
		return nil, errors.Wrapf(ErrBrokenFile,
			"%s: %d k-mers, %d expected", fileKmers, len(d.Kmers), d.Params.NumKmers)
	}

	return d, nil
}
