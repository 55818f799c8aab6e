// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dparam

import (
	"fmt"
	"time"

	"github.com/sedna-systems/telearc/catalog"
	"github.com/sedna-systems/telearc/column"
)

// Manager drives the recompute cycle for one Definition, packaging
// (content_root, time_step) as a synthetic content the same way any
// other content is ingested: its output goes through the
// same column.Store/catalog.Catalog pair, so the statistics engine
// processes it identically to a natively ingested MSID.
type Manager struct {
	Def     Definition
	Roots   *column.Store // opened against Def.ContentRoot
	Target  *column.Store // opened against the synthetic DP content
	Catalog *catalog.Catalog
	Now     func() time.Time
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Recompute extends the derived parameter's output up to the latest
// time every root MSID has covered, appending new rows through the
// target column store and recording one archfile row per cycle.
func (m *Manager) Recompute() error {
	roots, err := m.readRoots()
	if err != nil {
		return err
	}
	end := CommonEnd(roots)

	start := 0.0
	if n := m.Target.Length(); n > 0 {
		last, err := m.Target.Time.At(n - 1)
		if err != nil {
			return err
		}
		start = last + m.Def.TimeStep
	} else {
		start = earliestStart(roots)
	}
	if start >= end {
		return nil
	}

	times, vals, bads, err := Evaluate(m.Def, roots, start, end)
	if err != nil {
		return err
	}
	if len(times) == 0 {
		return nil
	}

	if err := m.Target.Append(times, map[string][]float64{m.Def.Name: vals}, map[string][]bool{m.Def.Name: bads}); err != nil {
		return fmt.Errorf("dparam: %s: appending: %w", m.Def.Name, err)
	}
	if err := m.Target.Sync(); err != nil {
		return fmt.Errorf("dparam: %s: syncing: %w", m.Def.Name, err)
	}

	rowStart := m.Catalog.LastRow()
	rowStop := rowStart + int64(len(times))
	filetime := int64(times[0] * 1000)
	filename := fmt.Sprintf("dparam:%s:%d", m.Def.Name, filetime)
	return m.Catalog.Record(catalog.ArchFile{
		Filename:   filename,
		FileTime:   filetime,
		TStart:     times[0],
		TStop:      times[len(times)-1],
		RowStart:   rowStart,
		RowStop:    rowStop,
		IngestDate: m.now(),
	})
}

func (m *Manager) readRoots() (map[string]RootSeries, error) {
	n := m.Roots.Length()
	out := make(map[string]RootSeries, len(m.Def.RootMSIDs))
	for _, name := range m.Def.RootMSIDs {
		v, ok := m.Roots.Value(name)
		if !ok {
			return nil, fmt.Errorf("dparam: %s: root %s not open", m.Def.Name, name)
		}
		q, ok := m.Roots.Quality(name)
		if !ok {
			return nil, fmt.Errorf("dparam: %s: root %s has no quality column", m.Def.Name, name)
		}
		times, err := m.Roots.Time.ReadRange(0, n)
		if err != nil {
			return nil, err
		}
		vals, err := v.ReadRange(0, n)
		if err != nil {
			return nil, err
		}
		bads, err := q.ReadRange(0, n)
		if err != nil {
			return nil, err
		}
		out[name] = RootSeries{Times: times, Vals: vals, Bad: bads}
	}
	return out, nil
}

func earliestStart(roots map[string]RootSeries) float64 {
	first := true
	var start float64
	for _, r := range roots {
		if len(r.Times) == 0 {
			continue
		}
		if first || r.Times[0] < start {
			start = r.Times[0]
			first = false
		}
	}
	return start
}
