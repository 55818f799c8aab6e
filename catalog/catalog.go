// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package catalog implements the per-content archfiles catalog: a
// small relational table recording every source file ingested into a
// content type, its time span and the rows it contributed.
//
// It is built directly on modernc.org/kv, the ordered, transactional,
// file-backed key/value store the teacher repository uses for its own
// BLAST-hit tables (internal/store, cmd/ins/blast.go,
// cmd/audit-ins-db). The key encoding follows the same idiom as the
// teacher's MarshalBlastRecordKey/UnmarshalBlastRecordKey pair: a
// fixed-width binary prefix (here, filetime) followed by the variable
// part (filename), so that kv's natural ordered iteration gives
// filetime order for free.
package catalog

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"modernc.org/kv"
)

var order = binary.BigEndian

// ArchFile is one row of the catalog: the record of a single source
// file's contribution to a content type's columns.
type ArchFile struct {
	Filename   string
	FileTime   int64
	TStart     float64
	TStop      float64
	RowStart   int64
	RowStop    int64
	Revision   int32
	IngestDate time.Time
	DecomVers  string
}

// key is filetime (8 bytes, big-endian) || filename, which makes the
// kv store's natural byte ordering equal to filetime ordering.
func marshalKey(filetime int64, filename string) []byte {
	buf := make([]byte, 8+len(filename))
	order.PutUint64(buf[0:8], uint64(filetime))
	copy(buf[8:], filename)
	return buf
}

func marshalValue(a ArchFile) []byte {
	var buf bytes.Buffer
	var b [8]byte
	order.PutUint64(b[:], uint64(a.FileTime))
	buf.Write(b[:])
	order.PutUint64(b[:], math.Float64bits(a.TStart))
	buf.Write(b[:])
	order.PutUint64(b[:], math.Float64bits(a.TStop))
	buf.Write(b[:])
	order.PutUint64(b[:], uint64(a.RowStart))
	buf.Write(b[:])
	order.PutUint64(b[:], uint64(a.RowStop))
	buf.Write(b[:])
	order.PutUint32(b[:4], uint32(a.Revision))
	buf.Write(b[:4])
	order.PutUint64(b[:], uint64(a.IngestDate.UTC().UnixNano()))
	buf.Write(b[:])
	order.PutUint32(b[:4], uint32(len(a.DecomVers)))
	buf.Write(b[:4])
	buf.WriteString(a.DecomVers)
	order.PutUint32(b[:4], uint32(len(a.Filename)))
	buf.Write(b[:4])
	buf.WriteString(a.Filename)
	return buf.Bytes()
}

func unmarshalValue(data []byte) ArchFile {
	var a ArchFile
	a.FileTime = int64(order.Uint64(data[0:8]))
	a.TStart = math.Float64frombits(order.Uint64(data[8:16]))
	a.TStop = math.Float64frombits(order.Uint64(data[16:24]))
	a.RowStart = int64(order.Uint64(data[24:32]))
	a.RowStop = int64(order.Uint64(data[32:40]))
	a.Revision = int32(order.Uint32(data[40:44]))
	a.IngestDate = time.Unix(0, int64(order.Uint64(data[44:52]))).UTC()
	n := order.Uint32(data[52:56])
	data = data[56:]
	a.DecomVers = string(data[:n])
	data = data[n:]
	n = order.Uint32(data[:4])
	data = data[4:]
	a.Filename = string(data[:n])
	return a
}

// Catalog is the open handle to one content type's archfiles table.
type Catalog struct {
	db         *kv.DB
	path       string
	byName     map[string]bool
	byFileTime map[int64]string
	lastRow    int64
	lastStop   float64
}

// compare orders keys by the embedded 8-byte filetime, then
// lexicographically by filename, matching marshalKey's layout.
func compare(x, y []byte) int {
	return bytes.Compare(x, y)
}

// Open opens (creating if absent) the catalog file at path.
func Open(path string) (*Catalog, error) {
	opts := &kv.Options{Compare: compare}
	db, err := kv.Open(path, opts)
	if err != nil {
		db, err = kv.Create(path, opts)
		if err != nil {
			return nil, fmt.Errorf("catalog: opening %s: %w", path, err)
		}
	}
	c := &Catalog{db: db, path: path, byName: map[string]bool{}, byFileTime: map[int64]string{}}
	if err := c.scan(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) scan() error {
	it, err := c.db.SeekFirst()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}
	for {
		_, v, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		a := unmarshalValue(v)
		c.byName[a.Filename] = true
		c.byFileTime[a.FileTime] = a.Filename
		if a.RowStop > c.lastRow {
			c.lastRow = a.RowStop
		}
		if a.TStop > c.lastStop {
			c.lastStop = a.TStop
		}
	}
	return nil
}

// Close closes the underlying kv database.
func (c *Catalog) Close() error { return c.db.Close() }

// Has reports whether filename has already been ingested, for replay
// idempotence.
func (c *Catalog) Has(filename string) bool { return c.byName[filename] }

// FilenameAt returns the filename already recorded under filetime, if
// any. Used to detect a reused filetime naming a different file.
func (c *Catalog) FilenameAt(filetime int64) (string, bool) {
	name, ok := c.byFileTime[filetime]
	return name, ok
}

// LastRow returns the tail row index already occupied by ingested
// data.
func (c *Catalog) LastRow() int64 { return c.lastRow }

// LastStop returns the tstop of the most recently ingested archfile,
// 0 if the catalog is empty. Used by the gap policy.
func (c *Catalog) LastStop() float64 { return c.lastStop }

// GapTo returns the gap in seconds between the previous tstop and a
// candidate tstart. Negative indicates overlap.
func (c *Catalog) GapTo(tstart float64) float64 {
	if len(c.byName) == 0 {
		return 0
	}
	return tstart - c.lastStop
}

// Record inserts a new archfile row. Must be called only after the
// columns it describes have been durably extended.
func (c *Catalog) Record(a ArchFile) error {
	key := marshalKey(a.FileTime, a.Filename)
	if err := c.db.Set(key, marshalValue(a)); err != nil {
		return err
	}
	c.byName[a.Filename] = true
	c.byFileTime[a.FileTime] = a.Filename
	if a.RowStop > c.lastRow {
		c.lastRow = a.RowStop
	}
	if a.TStop > c.lastStop {
		c.lastStop = a.TStop
	}
	return nil
}

// All returns every archfile row in filetime order.
func (c *Catalog) All() ([]ArchFile, error) {
	it, err := c.db.SeekFirst()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []ArchFile
	for {
		_, v, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, unmarshalValue(v))
	}
	return out, nil
}

// Rows returns every archfile whose time span overlaps [tstart, tstop),
// in filetime order. Used by the fetch engine to report which source
// file(s) contributed a query's result.
func (c *Catalog) Rows(tstart, tstop float64) ([]ArchFile, error) {
	all, err := c.All()
	if err != nil {
		return nil, err
	}
	var out []ArchFile
	for _, a := range all {
		if a.TStart < tstop && tstart < a.TStop {
			out = append(out, a)
		}
	}
	return out, nil
}

// DeleteAfter removes every archfile row whose tstart is >= cutoff and
// returns the smallest rowstart among the removed rows (the row index
// the caller must truncate the columns back to), and whether any row
// was removed.
func (c *Catalog) DeleteAfter(cutoff float64) (cutRow int64, found bool, err error) {
	rows, err := c.All()
	if err != nil {
		return 0, false, err
	}
	var toDelete []ArchFile
	newLastRow, newLastStop := int64(0), 0.0
	for _, a := range rows {
		if a.TStart >= cutoff {
			toDelete = append(toDelete, a)
			continue
		}
		if a.RowStop > newLastRow {
			newLastRow = a.RowStop
		}
		if a.TStop > newLastStop {
			newLastStop = a.TStop
		}
	}
	if len(toDelete) == 0 {
		return 0, false, nil
	}
	cutRow = toDelete[0].RowStart
	for _, a := range toDelete[1:] {
		if a.RowStart < cutRow {
			cutRow = a.RowStart
		}
	}
	if err := c.db.BeginTransaction(); err != nil {
		return 0, false, err
	}
	for _, a := range toDelete {
		key := marshalKey(a.FileTime, a.Filename)
		if err := c.db.Delete(key); err != nil {
			c.db.Rollback()
			return 0, false, err
		}
		delete(c.byName, a.Filename)
		delete(c.byFileTime, a.FileTime)
	}
	if err := c.db.Commit(); err != nil {
		return 0, false, err
	}
	c.lastRow = newLastRow
	c.lastStop = newLastStop
	return cutRow, true, nil
}
