// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package column implements the archive's per-MSID append-only column
// store: a fixed-width value array and a parallel 1-bit quality array,
// each with O(1) append, range-read and truncate.
//
// The on-disk layout follows the fixed-width binary record idiom used
// throughout the teacher repository this package is adapted from
// (internal/store: binary.BigEndian, paired Put/Get on fixed-size
// buffers) rather than a general serialization library: columns are
// flat arrays of identically-sized elements, so a hand-written header
// plus offset arithmetic is both simpler and faster than anything a
// generic codec would buy.
package column

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/sedna-systems/telearc/schema"
)

var order = binary.BigEndian

const (
	magic         = 0x54454c41 // "TELA"
	headerSize    = 16         // magic(4) type(1) width(1) pad(2) count(8)
	qualityHeader = 16
)

// SchemaMismatch is returned when a column's on-disk element type or
// width differs from what the caller expects.
type SchemaMismatch struct {
	Path            string
	WantType, Have  schema.ElementType
	WantWidth, Got  int
}

func (e *SchemaMismatch) Error() string {
	return fmt.Sprintf("column %s: schema mismatch: have type=%v width=%d, want type=%v width=%d",
		e.Path, e.Have, e.Got, e.WantType, e.WantWidth)
}

// LengthDrift signals that two columns of the same content that must
// have identical length do not. It is fatal: it indicates a prior
// partial write that escaped recovery.
type LengthDrift struct {
	A, B         string
	LenA, LenB int64
}

func (e *LengthDrift) Error() string {
	return fmt.Sprintf("column: length drift between %s (%d rows) and %s (%d rows)", e.A, e.LenA, e.B, e.LenB)
}

// Value is the per-MSID fixed-width numeric array, backed by a single
// file. Values are always passed through this package's API as
// float64; Value narrows/widens on the way to and from disk.
type Value struct {
	f      *os.File
	path   string
	typ    schema.ElementType
	width  int
	count  int64
}

// OpenValue opens or creates the value column at path for element type
// typ (width only matters for schema.String). mode selects read-only
// vs. writable access; append-only growth is always permitted on a
// writable handle.
func OpenValue(path string, typ schema.ElementType, declaredWidth int, writable bool) (*Value, error) {
	width := typ.Width(declaredWidth)
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR | os.O_CREATE
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, err
	}
	v := &Value{f: f, path: path, typ: typ, width: width}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() == 0 {
		if !writable {
			f.Close()
			return nil, fmt.Errorf("column: %s does not exist", path)
		}
		if err := v.writeHeader(0); err != nil {
			f.Close()
			return nil, err
		}
		return v, nil
	}
	if err := v.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return v, nil
}

func (v *Value) writeHeader(count int64) error {
	var buf [headerSize]byte
	order.PutUint32(buf[0:4], magic)
	buf[4] = byte(v.typ)
	buf[5] = byte(v.width)
	order.PutUint64(buf[8:16], uint64(count))
	_, err := v.f.WriteAt(buf[:], 0)
	v.count = count
	return err
}

func (v *Value) readHeader() error {
	var buf [headerSize]byte
	if _, err := v.f.ReadAt(buf[:], 0); err != nil {
		return err
	}
	if order.Uint32(buf[0:4]) != magic {
		return fmt.Errorf("column: %s: bad magic", v.path)
	}
	haveType := schema.ElementType(buf[4])
	haveWidth := int(buf[5])
	if haveType != v.typ || haveWidth != v.width {
		return &SchemaMismatch{Path: v.path, WantType: v.typ, WantWidth: v.width, Have: haveType, Got: haveWidth}
	}
	v.count = int64(order.Uint64(buf[8:16]))
	return nil
}

// Length returns the number of elements currently stored.
func (v *Value) Length() int64 { return v.count }

// Close closes the underlying file.
func (v *Value) Close() error { return v.f.Close() }

func (v *Value) offset(row int64) int64 { return int64(headerSize) + row*int64(v.width) }

// Append adds len(vals) elements to the end of the column.
func (v *Value) Append(vals []float64) error {
	if len(vals) == 0 {
		return nil
	}
	buf := make([]byte, len(vals)*v.width)
	for i, x := range vals {
		v.encode(buf[i*v.width:(i+1)*v.width], x)
	}
	if _, err := v.f.WriteAt(buf, v.offset(v.count)); err != nil {
		return err
	}
	return v.writeHeader(v.count + int64(len(vals)))
}

// At reads the single element at row, without materializing a slice.
// Used for binary search over TIME without pulling the whole column
// into memory.
func (v *Value) At(row int64) (float64, error) {
	if row < 0 || row >= v.count {
		return 0, fmt.Errorf("column: %s: row %d out of bounds [0,%d)", v.path, row, v.count)
	}
	buf := make([]byte, v.width)
	if _, err := v.f.ReadAt(buf, v.offset(row)); err != nil {
		return 0, err
	}
	return v.decode(buf), nil
}

// ReadRange reads the half-open row range [lo, hi).
func (v *Value) ReadRange(lo, hi int64) ([]float64, error) {
	if lo < 0 || hi > v.count || lo > hi {
		return nil, fmt.Errorf("column: %s: range [%d,%d) out of bounds [0,%d)", v.path, lo, hi, v.count)
	}
	n := hi - lo
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n*int64(v.width))
	if _, err := v.f.ReadAt(buf, v.offset(lo)); err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = v.decode(buf[int64(i)*int64(v.width) : int64(i+1)*int64(v.width)])
	}
	return out, nil
}

// Truncate shrinks the column to rowKeep elements, syncing before
// returning so the operation is durable before the caller updates the
// catalog.
func (v *Value) Truncate(rowKeep int64) error {
	if rowKeep > v.count {
		return fmt.Errorf("column: %s: cannot truncate to %d rows, only have %d", v.path, rowKeep, v.count)
	}
	if err := v.f.Truncate(v.offset(rowKeep)); err != nil {
		return err
	}
	if err := v.writeHeader(rowKeep); err != nil {
		return err
	}
	return v.f.Sync()
}

// Sync flushes pending writes to stable storage.
func (v *Value) Sync() error { return v.f.Sync() }

func (v *Value) encode(buf []byte, x float64) {
	switch v.typ {
	case schema.Int8:
		buf[0] = byte(int8(x))
	case schema.Uint8:
		buf[0] = byte(uint8(x))
	case schema.Int16:
		order.PutUint16(buf, uint16(int16(x)))
	case schema.Uint16:
		order.PutUint16(buf, uint16(x))
	case schema.Int32:
		order.PutUint32(buf, uint32(int32(x)))
	case schema.Uint32:
		order.PutUint32(buf, uint32(x))
	case schema.Float32:
		order.PutUint32(buf, math.Float32bits(float32(x)))
	case schema.Float64:
		order.PutUint64(buf, math.Float64bits(x))
	default:
		panic(fmt.Sprintf("column: unsupported encode type %v", v.typ))
	}
}

func (v *Value) decode(buf []byte) float64 {
	switch v.typ {
	case schema.Int8:
		return float64(int8(buf[0]))
	case schema.Uint8:
		return float64(buf[0])
	case schema.Int16:
		return float64(int16(order.Uint16(buf)))
	case schema.Uint16:
		return float64(order.Uint16(buf))
	case schema.Int32:
		return float64(int32(order.Uint32(buf)))
	case schema.Uint32:
		return float64(order.Uint32(buf))
	case schema.Float32:
		return float64(math.Float32frombits(order.Uint32(buf)))
	case schema.Float64:
		return math.Float64frombits(order.Uint64(buf))
	default:
		panic(fmt.Sprintf("column: unsupported decode type %v", v.typ))
	}
}
