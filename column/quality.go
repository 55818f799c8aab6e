// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package column

import (
	"encoding/binary"
	"fmt"
	"os"
)

// Quality is the per-MSID 1-bit-per-sample quality array. true means
// bad.
type Quality struct {
	f     *os.File
	path  string
	count int64
}

// OpenQuality opens or creates the quality column at path.
func OpenQuality(path string, writable bool) (*Quality, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR | os.O_CREATE
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, err
	}
	q := &Quality{f: f, path: path}
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
		if err := q.writeHeader(0); err != nil {
			f.Close()
			return nil, err
		}
		return q, nil
	}
	if err := q.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return q, nil
}

func (q *Quality) writeHeader(count int64) error {
	var buf [qualityHeader]byte
	binary.BigEndian.PutUint32(buf[0:4], magic)
	binary.BigEndian.PutUint64(buf[8:16], uint64(count))
	_, err := q.f.WriteAt(buf[:], 0)
	q.count = count
	return err
}

func (q *Quality) readHeader() error {
	var buf [qualityHeader]byte
	if _, err := q.f.ReadAt(buf[:], 0); err != nil {
		return err
	}
	if binary.BigEndian.Uint32(buf[0:4]) != magic {
		return fmt.Errorf("column: %s: bad magic", q.path)
	}
	q.count = int64(binary.BigEndian.Uint64(buf[8:16]))
	return nil
}

// Length returns the number of quality bits currently stored.
func (q *Quality) Length() int64 { return q.count }

// Close closes the underlying file.
func (q *Quality) Close() error { return q.f.Close() }

func byteOffset(bit int64) (byteIdx int64, mask byte) {
	return bit / 8, 1 << uint(bit%8)
}

// Append adds len(bads) bits to the end of the array.
func (q *Quality) Append(bads []bool) error {
	if len(bads) == 0 {
		return nil
	}
	start := q.count
	end := start + int64(len(bads))
	firstByte, _ := byteOffset(start)
	lastByte, _ := byteOffset(end - 1)
	nBytes := lastByte - firstByte + 1
	buf := make([]byte, nBytes)
	// Preserve any bits already set in the first byte (a partially
	// filled trailing byte from a previous append).
	if _, err := q.f.ReadAt(buf[:1], qualityHeader+firstByte); err == nil {
		// best effort; a short/zero read just leaves buf[0] == 0, which is correct for a fresh file.
	}
	// Bits at or past start are not part of the array (Truncate may have
	// left them behind in the shared byte), so only lower bits survive.
	buf[0] &= byte(1)<<uint(start%8) - 1
	for i, bad := range bads {
		bit := start + int64(i)
		bi, mask := byteOffset(bit)
		if bad {
			buf[bi-firstByte] |= mask
		}
	}
	if _, err := q.f.WriteAt(buf, qualityHeader+firstByte); err != nil {
		return err
	}
	return q.writeHeader(end)
}

// ReadRange reads the half-open bit range [lo, hi).
func (q *Quality) ReadRange(lo, hi int64) ([]bool, error) {
	if lo < 0 || hi > q.count || lo > hi {
		return nil, fmt.Errorf("column: %s: range [%d,%d) out of bounds [0,%d)", q.path, lo, hi, q.count)
	}
	out := make([]bool, hi-lo)
	if len(out) == 0 {
		return out, nil
	}
	firstByte, _ := byteOffset(lo)
	lastByte, _ := byteOffset(hi - 1)
	buf := make([]byte, lastByte-firstByte+1)
	if _, err := q.f.ReadAt(buf, qualityHeader+firstByte); err != nil {
		return nil, err
	}
	for i := range out {
		bit := lo + int64(i)
		bi, mask := byteOffset(bit)
		out[i] = buf[bi-firstByte]&mask != 0
	}
	return out, nil
}

// Truncate shrinks the array to rowKeep bits.
func (q *Quality) Truncate(rowKeep int64) error {
	if rowKeep > q.count {
		return fmt.Errorf("column: %s: cannot truncate to %d rows, only have %d", q.path, rowKeep, q.count)
	}
	lastByte := int64(0)
	if rowKeep > 0 {
		lastByte, _ = byteOffset(rowKeep - 1)
		lastByte++
	}
	if err := q.f.Truncate(qualityHeader + lastByte); err != nil {
		return err
	}
	if err := q.writeHeader(rowKeep); err != nil {
		return err
	}
	return q.f.Sync()
}

// Sync flushes pending writes to stable storage.
func (q *Quality) Sync() error { return q.f.Sync() }
