// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stats

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"modernc.org/kv"
)

var order = binary.BigEndian

const (
	prefixMeta   = 0x00
	prefixRecord = 0x01
)

var metaKey = []byte{prefixMeta}

func recordKey(index int64) []byte {
	buf := make([]byte, 9)
	buf[0] = prefixRecord
	order.PutUint64(buf[1:], uint64(index))
	return buf
}

func compare(x, y []byte) int { return bytes.Compare(x, y) }

// Store is one (MSID, Kind) statistics table, built on modernc.org/kv
// exactly as catalog.Catalog is: an ordered, transactional, file-backed
// store whose natural iteration order matches the mission-global
// interval index, since recordKey is a big-endian encoding of it.
type Store struct {
	db   *kv.DB
	path string
}

// Open opens (creating if absent) the stat store at path.
func Open(path string) (*Store, error) {
	opts := &kv.Options{Compare: compare}
	db, err := kv.Open(path, opts)
	if err != nil {
		db, err = kv.Create(path, opts)
		if err != nil {
			return nil, fmt.Errorf("stats: opening %s: %w", path, err)
		}
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying kv database.
func (s *Store) Close() error { return s.db.Close() }

// NextIndex returns the next candidate interval index the update cycle
// should start from; 0 for a freshly created store.
func (s *Store) NextIndex() (int64, error) {
	v, err := s.db.Get(nil, metaKey)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, nil
	}
	return int64(order.Uint64(v)), nil
}

// SetNextIndex persists the next candidate interval index.
func (s *Store) SetNextIndex(idx int64) error {
	var buf [8]byte
	order.PutUint64(buf[:], uint64(idx))
	return s.db.Set(metaKey, buf[:])
}

// DeleteFrom removes every stored record with Index >= from; the
// possibly-partial tail is always discarded before recomputation.
func (s *Store) DeleteFrom(from int64) error {
	it, hit, err := s.db.Seek(recordKey(from))
	if err != nil {
		return err
	}
	_ = hit
	var keys [][]byte
	for {
		k, _, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		cp := make([]byte, len(k))
		copy(cp, k)
		keys = append(keys, cp)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.db.BeginTransaction(); err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.db.Delete(k); err != nil {
			s.db.Rollback()
			return err
		}
	}
	return s.db.Commit()
}

// Append writes (or overwrites) the record for r.Index.
func (s *Store) Append(r Record) error {
	return s.db.Set(recordKey(r.Index), marshalRecord(r))
}

// Get returns the record for index, if present.
func (s *Store) Get(index int64) (Record, bool, error) {
	v, err := s.db.Get(nil, recordKey(index))
	if err != nil {
		return Record{}, false, err
	}
	if v == nil {
		return Record{}, false, nil
	}
	return unmarshalRecord(v), true, nil
}

// Range returns every record with index in [lo, hi), in index order.
func (s *Store) Range(lo, hi int64) ([]Record, error) {
	it, _, err := s.db.Seek(recordKey(lo))
	if err != nil {
		return nil, err
	}
	hiKey := recordKey(hi)
	var out []Record
	for {
		k, v, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if bytes.Compare(k, hiKey) >= 0 {
			break
		}
		out = append(out, unmarshalRecord(v))
	}
	return out, nil
}

// All returns every record in the store, in index order. Used by the
// audit tool.
func (s *Store) All() ([]Record, error) {
	it, err := s.db.SeekFirst()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []Record
	for {
		k, v, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(k) == 0 || k[0] != prefixRecord {
			continue
		}
		out = append(out, unmarshalRecord(v))
	}
	return out, nil
}

func marshalRecord(r Record) []byte {
	var buf bytes.Buffer
	var b [8]byte
	order.PutUint64(b[:], uint64(r.Index))
	buf.Write(b[:])
	order.PutUint32(b[:4], r.NSamples)
	buf.Write(b[:4])
	for _, f := range []float64{r.MidVal, r.Mean, r.Min, r.Max, r.Std} {
		order.PutUint64(b[:], math.Float64bits(f))
		buf.Write(b[:])
	}
	if r.HasPercentiles {
		buf.WriteByte(1)
		for _, f := range r.Percentiles {
			order.PutUint64(b[:], math.Float64bits(f))
			buf.Write(b[:])
		}
	} else {
		buf.WriteByte(0)
	}
	order.PutUint32(b[:4], uint32(len(r.States)))
	buf.Write(b[:4])
	for code, n := range r.States {
		order.PutUint64(b[:], uint64(code))
		buf.Write(b[:])
		order.PutUint32(b[:4], n)
		buf.Write(b[:4])
	}
	return buf.Bytes()
}

func unmarshalRecord(data []byte) Record {
	var r Record
	r.Index = int64(order.Uint64(data[0:8]))
	r.NSamples = order.Uint32(data[8:12])
	data = data[12:]
	fs := [5]*float64{&r.MidVal, &r.Mean, &r.Min, &r.Max, &r.Std}
	for _, p := range fs {
		*p = math.Float64frombits(order.Uint64(data[:8]))
		data = data[8:]
	}
	if data[0] == 1 {
		r.HasPercentiles = true
		data = data[1:]
		for i := range r.Percentiles {
			r.Percentiles[i] = math.Float64frombits(order.Uint64(data[:8]))
			data = data[8:]
		}
	} else {
		data = data[1:]
	}
	n := order.Uint32(data[:4])
	data = data[4:]
	if n > 0 {
		r.States = make(map[int64]uint32, n)
		for i := uint32(0); i < n; i++ {
			code := int64(order.Uint64(data[:8]))
			data = data[8:]
			cnt := order.Uint32(data[:4])
			data = data[4:]
			r.States[code] = cnt
		}
	}
	return r
}
