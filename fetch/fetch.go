// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fetch implements range and multi-MSID queries over the
// archive: MSID/glob resolution, quality filtering, same-content
// concordance, interpolation, interval selection/removal, unit
// conversion and multi-source provenance.
package fetch

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sedna-systems/telearc/badtimes"
	"github.com/sedna-systems/telearc/catalog"
	"github.com/sedna-systems/telearc/column"
	"github.com/sedna-systems/telearc/schema"
	"github.com/sedna-systems/telearc/stats"
	"github.com/sedna-systems/telearc/units"
)

// StatKind selects which view of an MSID's history a query wants.
type StatKind int

const (
	StatNone StatKind = iota
	StatFiveMin
	StatDaily
)

// ResultKind tags which variant of Result is populated, replacing the
// source's single object with many optional attributes.
type ResultKind int

const (
	KindFullRes ResultKind = iota
	KindStatFiveMin
	KindStatDaily
	KindStatState
)

// UnknownMSIDError is returned when a glob pattern matches no MSID.
type UnknownMSIDError struct{ Pattern string }

func (e *UnknownMSIDError) Error() string {
	return fmt.Sprintf("fetch: no MSID matches %q", e.Pattern)
}

// GlobOverMatchError is returned when a glob pattern matches more MSIDs
// than the caller's limit allows.
type GlobOverMatchError struct {
	Pattern string
	Matches []string
	Limit   int
}

func (e *GlobOverMatchError) Error() string {
	return fmt.Sprintf("fetch: %q matches %d MSIDs, limit is %d", e.Pattern, len(e.Matches), e.Limit)
}

// matchName reports whether pattern matches name, case-insensitively,
// with the DP_ prefix optional on either side.
func matchName(pattern, name string) bool {
	p := strings.ToUpper(pattern)
	n := strings.ToUpper(name)
	if ok, _ := filepath.Match(p, n); ok {
		return true
	}
	if strings.HasPrefix(n, "DP_") {
		if ok, _ := filepath.Match(p, strings.TrimPrefix(n, "DP_")); ok {
			return true
		}
	}
	if strings.HasPrefix(p, "DP_") {
		if ok, _ := filepath.Match(strings.TrimPrefix(p, "DP_"), n); ok {
			return true
		}
	}
	return false
}

// ResolveGlob expands pattern against every MSID name in reg, capped at
// limit matches.
func ResolveGlob(reg *schema.Registry, pattern string, limit int) ([]string, error) {
	var matches []string
	// Exact match short-circuits glob expansion so a plain name always
	// resolves even if it happens to contain a glob metacharacter.
	if m, ok := reg.MSID(pattern); ok {
		return []string{m.Name}, nil
	}
	for _, name := range reg.Names() {
		if matchName(pattern, name) {
			matches = append(matches, name)
		}
	}
	if len(matches) == 0 {
		return nil, &UnknownMSIDError{Pattern: pattern}
	}
	if limit > 0 && len(matches) > limit {
		return nil, &GlobOverMatchError{Pattern: pattern, Matches: matches, Limit: limit}
	}
	return matches, nil
}

// DefaultGlobLimit is the default MSIDset glob expansion cap.
const DefaultGlobLimit = 10

// ContentHandle bundles the per-content collaborators a fetch needs:
// its column store and (optionally) its statistics manager.
type ContentHandle struct {
	Store   *column.Store
	Stats   *stats.Manager   // nil if no stats are kept for this content
	Catalog *catalog.Catalog // nil disables per-archfile provenance detail
}

// Engine is the fetch entry point, bound to a registry and the open
// content handles it may read from.
type Engine struct {
	Registry  *schema.Registry
	Contents  map[string]*ContentHandle // canonical content name -> handle
	BadTimes  *badtimes.Registry        // nil disables bad-times filtering
	GlobLimit int                       // 0 uses DefaultGlobLimit
}

func (e *Engine) globLimit() int {
	if e.GlobLimit > 0 {
		return e.GlobLimit
	}
	return DefaultGlobLimit
}

func (e *Engine) handleFor(m *schema.MSID) (*ContentHandle, error) {
	h, ok := e.Contents[schema.Canonical(m.Content)]
	if !ok {
		return nil, fmt.Errorf("fetch: content %s not open", m.Content)
	}
	return h, nil
}

// SourceRange records which contributor answered one time range of a
// result.
type SourceRange struct {
	Source       string
	TStart, TStop float64
}

// Result is a tagged sum of the shapes a query can return, so
// callers switch on Kind instead of probing for nil/absent fields.
type Result struct {
	Kind        ResultKind
	MSID        string
	Content     string
	Unit        string
	DataSource  []SourceRange

	// KindFullRes
	Times, Vals []float64
	Bads        []bool
	RawVals     []string  // state-valued MSIDs only
	Times0      []float64 // pre-interpolation timestamps; set by Interpolate

	// KindStatFiveMin / KindStatDaily / KindStatState
	StatIndex []int64
	NSamples  []uint32
	MidVal    []float64
	Mean      []float64
	Min       []float64
	Max       []float64
	Std       []float64
	Percentile map[float64][]float64 // daily numeric only, level -> series
	StateCounts []map[string]uint32  // KindStatState only, resolved via state table
}

// FetchOne answers a single-MSID query. pattern must resolve to exactly one MSID.
func (e *Engine) FetchOne(pattern string, tstart, tstop float64, kind StatKind, filterBad bool, sys schema.UnitSystem) (Result, error) {
	names, err := ResolveGlob(e.Registry, pattern, 1)
	if err != nil {
		return Result{}, err
	}
	m, _ := e.Registry.MSID(names[0])
	return e.fetchMSID(m, tstart, tstop, kind, filterBad, sys)
}

func (e *Engine) fetchMSID(m *schema.MSID, tstart, tstop float64, kind StatKind, filterBad bool, sys schema.UnitSystem) (Result, error) {
	handle, err := e.handleFor(m)
	if err != nil {
		return Result{}, err
	}
	switch kind {
	case StatNone:
		return e.fetchFullRes(m, handle, tstart, tstop, filterBad, sys)
	case StatFiveMin, StatDaily:
		return e.fetchStat(m, handle, tstart, tstop, kind, sys)
	default:
		return Result{}, fmt.Errorf("fetch: unknown stat kind %v", kind)
	}
}

func (e *Engine) fetchFullRes(m *schema.MSID, handle *ContentHandle, tstart, tstop float64, filterBad bool, sys schema.UnitSystem) (Result, error) {
	lo, hi, err := handle.Store.RowRange(tstart, tstop)
	if err != nil {
		return Result{}, err
	}
	res := Result{Kind: KindFullRes, MSID: m.Name, Content: m.Content, Unit: units.Unit(m, sys)}
	if lo >= hi {
		return res, nil // OutOfRange: empty result, not an error
	}
	val, _ := handle.Store.Value(m.Name)
	qual, _ := handle.Store.Quality(m.Name)
	times, err := handle.Store.Time.ReadRange(lo, hi)
	if err != nil {
		return Result{}, err
	}
	vals, err := val.ReadRange(lo, hi)
	if err != nil {
		return Result{}, err
	}
	bads, err := qual.ReadRange(lo, hi)
	if err != nil {
		return Result{}, err
	}
	for i := range vals {
		vals[i] = units.Convert(m, sys, vals[i])
	}
	if e.BadTimes != nil {
		bt := e.BadTimes.FilterBad(m.Name, times)
		for i, b := range bt {
			if b {
				bads[i] = true
			}
		}
	}
	if filterBad {
		times, vals, bads = dropBad(times, vals, bads, nil)
	}
	res.Times, res.Vals, res.Bads = times, vals, bads
	if m.IsState() {
		res.RawVals = make([]string, len(vals))
		for i, v := range vals {
			res.RawVals[i] = m.States[int64(v)]
		}
	}
	res.DataSource = archiveProvenance(handle, tstart, tstop)
	return res, nil
}

// archiveProvenance reports which ingested source file(s) cover a
// fetched range, via the content's archfiles catalog. It
// falls back to one undifferentiated range when no catalog is bound.
func archiveProvenance(handle *ContentHandle, tstart, tstop float64) []SourceRange {
	if handle.Catalog == nil {
		return []SourceRange{{Source: "archive", TStart: tstart, TStop: tstop}}
	}
	rows, err := handle.Catalog.Rows(tstart, tstop)
	if err != nil || len(rows) == 0 {
		return []SourceRange{{Source: "archive", TStart: tstart, TStop: tstop}}
	}
	out := make([]SourceRange, len(rows))
	for i, a := range rows {
		lo, hi := a.TStart, a.TStop
		if lo < tstart {
			lo = tstart
		}
		if hi > tstop {
			hi = tstop
		}
		out[i] = SourceRange{Source: a.Filename, TStart: lo, TStop: hi}
	}
	return out
}

func (e *Engine) fetchStat(m *schema.MSID, handle *ContentHandle, tstart, tstop float64, kind StatKind, sys schema.UnitSystem) (Result, error) {
	if handle.Stats == nil {
		return Result{}, fmt.Errorf("fetch: %s: no statistics kept", m.Name)
	}
	sk := stats.FiveMin
	rk := KindStatFiveMin
	if kind == StatDaily {
		sk = stats.Daily
		rk = KindStatDaily
	}
	store, ok := handle.Stats.Store(m.Name, sk)
	if !ok {
		return Result{}, fmt.Errorf("fetch: %s: no %v statistics store", m.Name, sk)
	}
	lo := stats.Index(tstart, sk)
	hi := stats.Index(tstop, sk)
	records, err := store.Range(lo, hi)
	if err != nil {
		return Result{}, err
	}
	if m.IsState() {
		return stateResult(m, records), nil
	}
	res := Result{Kind: rk, MSID: m.Name, Content: m.Content, Unit: units.Unit(m, sys)}
	for _, r := range records {
		res.StatIndex = append(res.StatIndex, r.Index)
		res.NSamples = append(res.NSamples, r.NSamples)
		res.MidVal = append(res.MidVal, units.Convert(m, sys, r.MidVal))
		res.Mean = append(res.Mean, units.Convert(m, sys, r.Mean))
		res.Min = append(res.Min, units.Convert(m, sys, r.Min))
		res.Max = append(res.Max, units.Convert(m, sys, r.Max))
		res.Std = append(res.Std, r.Std*m.Units[sys].Scale)
	}
	if kind == StatDaily {
		res.Percentile = map[float64][]float64{}
		for _, level := range stats.PercentileLevels {
			res.Percentile[level] = nil
		}
		for _, r := range records {
			for i, level := range stats.PercentileLevels {
				v := r.MidVal
				if r.HasPercentiles {
					v = r.Percentiles[i]
				}
				res.Percentile[level] = append(res.Percentile[level], units.Convert(m, sys, v))
			}
		}
	}
	return res, nil
}

func stateResult(m *schema.MSID, records []stats.Record) Result {
	res := Result{Kind: KindStatState, MSID: m.Name, Content: m.Content}
	for _, r := range records {
		res.StatIndex = append(res.StatIndex, r.Index)
		res.NSamples = append(res.NSamples, r.NSamples)
		counts := make(map[string]uint32, len(r.States))
		for code, n := range r.States {
			counts[m.States[code]] = n
		}
		res.StateCounts = append(res.StateCounts, counts)
	}
	return res
}

// dropBad removes indices where bads[i] is true (or extra[i] is true,
// for the same-content concordance rule), keeping times/vals/bads in
// step.
func dropBad(times, vals []float64, bads []bool, extra []bool) (ot, ov []float64, ob []bool) {
	for i, b := range bads {
		if b || (extra != nil && extra[i]) {
			continue
		}
		ot = append(ot, times[i])
		ov = append(ov, vals[i])
		ob = append(ob, false)
	}
	return ot, ov, ob
}
