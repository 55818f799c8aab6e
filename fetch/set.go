// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fetch

import (
	"github.com/sedna-systems/telearc/schema"
	"github.com/sedna-systems/telearc/units"
)

// FetchSet answers an MSIDset query: patterns
// are expanded to a unique MSID list (capped at the engine's glob
// limit), each is fetched, and when filterBad is set, MSIDs sharing
// one content type are made to agree on which rows are dropped (the
// same-content concordance rule) rather than each filtering
// independently.
func (e *Engine) FetchSet(patterns []string, tstart, tstop float64, kind StatKind, filterBad bool, sys schema.UnitSystem) ([]Result, error) {
	seen := map[string]bool{}
	var names []string
	for _, p := range patterns {
		matches, err := ResolveGlob(e.Registry, p, 0)
		if err != nil {
			return nil, err
		}
		for _, n := range matches {
			canon := schema.Canonical(n)
			if seen[canon] {
				continue
			}
			seen[canon] = true
			names = append(names, n)
			if len(names) > e.globLimit() {
				return nil, &GlobOverMatchError{Pattern: "<set>", Matches: names, Limit: e.globLimit()}
			}
		}
	}

	byContent := map[string][]*schema.MSID{}
	var order []string
	for _, n := range names {
		m, _ := e.Registry.MSID(n)
		c := schema.Canonical(m.Content)
		if _, ok := byContent[c]; !ok {
			order = append(order, c)
		}
		byContent[c] = append(byContent[c], m)
	}

	var out []Result
	for _, c := range order {
		members := byContent[c]
		if kind != StatNone || !filterBad || len(members) < 2 {
			for _, m := range members {
				r, err := e.fetchMSID(m, tstart, tstop, kind, filterBad, sys)
				if err != nil {
					return nil, err
				}
				out = append(out, r)
			}
			continue
		}
		rs, err := e.fetchConcordant(members, tstart, tstop, sys)
		if err != nil {
			return nil, err
		}
		out = append(out, rs...)
	}
	return out, nil
}

// fetchConcordant implements the same-content concordance rule: a row
// is dropped from every member's result if any member has quality=true
// at that row.
func (e *Engine) fetchConcordant(members []*schema.MSID, tstart, tstop float64, sys schema.UnitSystem) ([]Result, error) {
	handle, err := e.handleFor(members[0])
	if err != nil {
		return nil, err
	}
	lo, hi, err := handle.Store.RowRange(tstart, tstop)
	if err != nil {
		return nil, err
	}
	if lo >= hi {
		out := make([]Result, len(members))
		for i, m := range members {
			out[i] = Result{Kind: KindFullRes, MSID: m.Name, Content: m.Content}
		}
		return out, nil
	}

	combined := make([]bool, hi-lo)
	perMSID := make(map[string][]bool, len(members))
	for _, m := range members {
		q, _ := handle.Store.Quality(m.Name)
		bads, err := q.ReadRange(lo, hi)
		if err != nil {
			return nil, err
		}
		perMSID[m.Name] = bads
		for i, b := range bads {
			if b {
				combined[i] = true
			}
		}
	}
	if e.BadTimes != nil {
		times, err := handle.Store.Time.ReadRange(lo, hi)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			bt := e.BadTimes.FilterBad(m.Name, times)
			for i, b := range bt {
				if b {
					combined[i] = true
				}
			}
		}
	}

	times, err := handle.Store.Time.ReadRange(lo, hi)
	if err != nil {
		return nil, err
	}
	out := make([]Result, len(members))
	for i, m := range members {
		val, _ := handle.Store.Value(m.Name)
		vals, err := val.ReadRange(lo, hi)
		if err != nil {
			return nil, err
		}
		for j := range vals {
			vals[j] = units.Convert(m, sys, vals[j])
		}
		ot, ov, ob := dropBad(times, vals, combined, nil)
		out[i] = Result{
			Kind:       KindFullRes,
			MSID:       m.Name,
			Content:    m.Content,
			Times:      ot,
			Vals:       ov,
			Bads:       ob,
			DataSource: archiveProvenance(handle, tstart, tstop),
		}
	}
	return out, nil
}
