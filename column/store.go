// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package column

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/sedna-systems/telearc/schema"
)

// Store is the full set of columns belonging to one content type: the
// shared TIME array plus one value+quality pair per MSID. It is the
// unit the ingest pipeline appends to atomically.
type Store struct {
	dir      string
	content  *schema.ContentType
	writable bool

	Time   *Value
	values map[string]*Value
	quals  map[string]*Quality
}

// Open opens (creating if absent and writable) every column belonging
// to content, rooted at dir (conventionally data/<content>).
func Open(dir string, content *schema.ContentType, reg *schema.Registry, writable bool) (*Store, error) {
	s := &Store{dir: dir, content: content, writable: writable, values: map[string]*Value{}, quals: map[string]*Quality{}}
	var err error
	s.Time, err = OpenValue(filepath.Join(dir, "TIME.value"), schema.Float64, 0, writable)
	if err != nil {
		return nil, fmt.Errorf("column: opening TIME for %s: %w", content.Name, err)
	}
	for _, name := range content.MSIDs {
		m, ok := reg.MSID(name)
		if !ok {
			return nil, fmt.Errorf("column: content %s references unknown MSID %s", content.Name, name)
		}
		v, err := OpenValue(filepath.Join(dir, name+".value"), m.Type, m.Width, writable)
		if err != nil {
			return nil, fmt.Errorf("column: opening %s: %w", name, err)
		}
		q, err := OpenQuality(filepath.Join(dir, name+".quality"), writable)
		if err != nil {
			return nil, fmt.Errorf("column: opening %s quality: %w", name, err)
		}
		s.values[name] = v
		s.quals[name] = q
	}
	if err := s.checkLengths(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) checkLengths() error {
	want := s.Time.Length()
	for name, v := range s.values {
		if v.Length() != want {
			return &LengthDrift{A: "TIME", B: name, LenA: want, LenB: v.Length()}
		}
		if s.quals[name].Length() != want {
			return &LengthDrift{A: "TIME", B: name + ".quality", LenA: want, LenB: s.quals[name].Length()}
		}
	}
	return nil
}

// Length returns the number of rows currently stored (== len(TIME)).
func (s *Store) Length() int64 { return s.Time.Length() }

// Value returns the value column handle for msid.
func (s *Store) Value(msid string) (*Value, bool) {
	v, ok := s.values[schema.Canonical(msid)]
	return v, ok
}

// Quality returns the quality column handle for msid.
func (s *Store) Quality(msid string) (*Quality, bool) {
	q, ok := s.quals[schema.Canonical(msid)]
	return q, ok
}

// Append extends every column in the store by the same number of
// rows. times must have the same length as every entry of vals and
// bads, and vals/bads must have an entry for every MSID in the
// content. The TIME column is appended last (after all MSID columns
// have succeeded) only in the sense that nothing has been synced yet;
// Sync is what makes an append durable, and must be called before the
// catalog record is committed.
func (s *Store) Append(times []float64, vals map[string][]float64, bads map[string][]bool) error {
	n := len(times)
	for _, name := range s.content.MSIDs {
		if len(vals[name]) != n || len(bads[name]) != n {
			return fmt.Errorf("column: append: MSID %s has %d/%d rows, want %d", name, len(vals[name]), len(bads[name]), n)
		}
	}
	for _, name := range s.content.MSIDs {
		if err := s.values[name].Append(vals[name]); err != nil {
			return err
		}
		if err := s.quals[name].Append(bads[name]); err != nil {
			return err
		}
	}
	return s.Time.Append(times)
}

// Sync flushes every column to stable storage.
func (s *Store) Sync() error {
	if err := s.Time.Sync(); err != nil {
		return err
	}
	for _, name := range s.content.MSIDs {
		if err := s.values[name].Sync(); err != nil {
			return err
		}
		if err := s.quals[name].Sync(); err != nil {
			return err
		}
	}
	return nil
}

// Truncate shrinks every column in the store to rowKeep rows.
func (s *Store) Truncate(rowKeep int64) error {
	if err := s.Time.Truncate(rowKeep); err != nil {
		return err
	}
	for _, name := range s.content.MSIDs {
		if err := s.values[name].Truncate(rowKeep); err != nil {
			return err
		}
		if err := s.quals[name].Truncate(rowKeep); err != nil {
			return err
		}
	}
	return nil
}

// RowRange returns the half-open row index range [lo, hi) of samples
// whose TIME falls in [tstart, tstop), via binary search. TIME is
// required to be strictly increasing, which makes
// this well defined.
func (s *Store) RowRange(tstart, tstop float64) (lo, hi int64, err error) {
	n := s.Time.Length()
	var probeErr error
	search := func(t float64) int64 {
		return int64(sort.Search(int(n), func(i int) bool {
			v, e := s.Time.At(int64(i))
			if e != nil {
				probeErr = e
				return true
			}
			return v >= t
		}))
	}
	lo = search(tstart)
	if probeErr != nil {
		return 0, 0, probeErr
	}
	hi = search(tstop)
	if probeErr != nil {
		return 0, 0, probeErr
	}
	return lo, hi, nil
}

// Close closes every column handle in the store.
func (s *Store) Close() error {
	var first error
	record := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	record(s.Time.Close())
	for _, v := range s.values {
		record(v.Close())
	}
	for _, q := range s.quals {
		record(q.Close())
	}
	return first
}
