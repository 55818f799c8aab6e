// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stats

import (
	"fmt"
	"path/filepath"

	"github.com/sedna-systems/telearc/column"
	"github.com/sedna-systems/telearc/ingest"
	"github.com/sedna-systems/telearc/schema"
)

// Manager owns the open 5-minute and daily Store for every MSID of one
// content type, and drives their update cycle after each ingest.
type Manager struct {
	dir     string
	content *schema.ContentType
	stores  map[string][2]*Store // msid -> [FiveMin, Daily]
}

// OpenContent opens (creating as needed) the stat stores for every
// MSID of content, rooted at dir (conventionally stats/<content>).
func OpenContent(dir string, content *schema.ContentType) (*Manager, error) {
	mgr := &Manager{dir: dir, content: content, stores: map[string][2]*Store{}}
	for _, name := range content.MSIDs {
		five, err := Open(filepath.Join(dir, name+".5min.db"))
		if err != nil {
			return nil, err
		}
		daily, err := Open(filepath.Join(dir, name+".daily.db"))
		if err != nil {
			return nil, err
		}
		mgr.stores[schema.Canonical(name)] = [2]*Store{five, daily}
	}
	return mgr, nil
}

// Store returns the open store for msid's kind.
func (mgr *Manager) Store(msid string, kind Kind) (*Store, bool) {
	pair, ok := mgr.stores[schema.Canonical(msid)]
	if !ok {
		return nil, false
	}
	return pair[kind], true
}

// ResetAfter rewinds every MSID's statistics of both kinds so the
// first interval touching cutoff (and everything after it) is dropped
// and recomputed on the next update cycle. It is the stats-side
// counterpart of a column truncation: deleting archfile rows and
// shrinking columns without also rewinding `last_index` would leave
// stale 5-minute/daily records for intervals whose full-resolution
// data no longer exists, since Update's `start >= upper` short-circuit
// never revisits an index once it has advanced past it.
func (mgr *Manager) ResetAfter(cutoff float64) error {
	for _, name := range mgr.content.MSIDs {
		for _, kind := range [2]Kind{FiveMin, Daily} {
			store, ok := mgr.Store(name, kind)
			if !ok {
				return fmt.Errorf("stats: no store open for %s %s", name, kind)
			}
			idx := Index(cutoff, kind)
			if err := store.DeleteFrom(idx); err != nil {
				return fmt.Errorf("stats: resetting %s %s: %w", name, kind, err)
			}
			if err := store.SetNextIndex(idx); err != nil {
				return fmt.Errorf("stats: resetting %s %s: %w", name, kind, err)
			}
		}
	}
	return nil
}

// UpdateAll runs the update cycle for every MSID and both kinds
// against cs's current contents.
func (mgr *Manager) UpdateAll(cs *column.Store, reg *schema.Registry) error {
	for _, name := range mgr.content.MSIDs {
		for _, kind := range [2]Kind{FiveMin, Daily} {
			store, ok := mgr.Store(name, kind)
			if !ok {
				return fmt.Errorf("stats: no store open for %s %s", name, kind)
			}
			if err := Update(cs, reg, name, kind, store); err != nil {
				return fmt.Errorf("stats: updating %s %s: %w", name, kind, err)
			}
		}
	}
	return nil
}

// Hook returns an ingest.Pipeline.OnAppend callback that runs the full
// update cycle after every successful append.
func (mgr *Manager) Hook(cs *column.Store, reg *schema.Registry) func(ingest.PostAppend) error {
	return func(ingest.PostAppend) error {
		return mgr.UpdateAll(cs, reg)
	}
}

// Close closes every open store.
func (mgr *Manager) Close() error {
	var first error
	for _, pair := range mgr.stores {
		for _, s := range pair {
			if err := s.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
