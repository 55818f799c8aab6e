// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package badtimes implements the bad-times registry: a process-wide,
// mutable mapping from MSID name (exact or glob) to a list of
// exclusion intervals, loaded from text tables at startup and
// augmentable at runtime. It is a user policy overlay
// layered on top of, and independent from, stored quality bits.
package badtimes

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/biogo/store/interval"

	"github.com/sedna-systems/telearc/schema"
)

func isGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

func msec(t float64) int64 { return int64(t * 1000) }

type span struct {
	id      uintptr
	lo, hi  int64
	pattern string // "" for entries registered under an exact MSID
}

func (s span) ID() uintptr { return s.id }
func (s span) Range() interval.IntRange {
	return interval.IntRange{Start: int(s.lo), End: int(s.hi)}
}
func (s span) Overlap(b interval.IntRange) bool {
	return int64(b.Start) < s.hi && s.lo < int64(b.End)
}

// Registry is one bad-times overlay. Construction and mutation are
// serialized by Registry's own lock, so a reload racing a fetch is
// safe.
type Registry struct {
	mu       sync.Mutex
	exact    map[string]*interval.IntTree
	globTree *interval.IntTree
	globOf   map[uintptr]string
	nextID   uintptr
}

// NewRegistry returns an empty bad-times registry.
func NewRegistry() *Registry {
	return &Registry{
		exact:    map[string]*interval.IntTree{},
		globTree: &interval.IntTree{},
		globOf:   map[uintptr]string{},
	}
}

// Add registers one exclusion interval for pattern, an exact MSID name
// or a glob pattern. Exact names are matched
// case-insensitively with an optional DP_ prefix, mirroring fetch's
// MSID resolution; globs are tested the same way.
func (r *Registry) Add(pattern string, tstart, tstop float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	s := span{id: id, lo: msec(tstart), hi: msec(tstop)}
	if isGlob(pattern) {
		s.pattern = pattern
		r.globOf[id] = pattern
		if err := r.globTree.Insert(s, true); err != nil {
			return err
		}
		r.globTree.AdjustRanges()
		return nil
	}
	canon := schema.Canonical(pattern)
	tree, ok := r.exact[canon]
	if !ok {
		tree = &interval.IntTree{}
		r.exact[canon] = tree
	}
	if err := tree.Insert(s, true); err != nil {
		return err
	}
	tree.AdjustRanges()
	return nil
}

// Clear removes every registered exclusion.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exact = map[string]*interval.IntTree{}
	r.globTree = &interval.IntTree{}
	r.globOf = map[uintptr]string{}
}

// Load reads a bad-times text table: lines of "msid_or_glob tstart
// tstop", blank lines and lines starting with # ignored.
func (r *Registry) Load(rd io.Reader) error {
	sc := bufio.NewScanner(rd)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return fmt.Errorf("badtimes: line %d: want 3 fields, got %d", lineNo, len(fields))
		}
		tstart, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return fmt.Errorf("badtimes: line %d: tstart: %w", lineNo, err)
		}
		tstop, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return fmt.Errorf("badtimes: line %d: tstop: %w", lineNo, err)
		}
		if err := r.Add(fields[0], tstart, tstop); err != nil {
			return fmt.Errorf("badtimes: line %d: %w", lineNo, err)
		}
	}
	return sc.Err()
}

func matchesPattern(pattern, msid string) bool {
	p := strings.ToUpper(pattern)
	m := strings.ToUpper(msid)
	if ok, _ := filepath.Match(p, m); ok {
		return true
	}
	if strings.HasPrefix(m, "DP_") {
		if ok, _ := filepath.Match(p, strings.TrimPrefix(m, "DP_")); ok {
			return true
		}
	}
	return false
}

// FilterBad reports, for each time in times, whether it falls inside a
// registered exclusion interval for msid.
func (r *Registry) FilterBad(msid string, times []float64) []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	canon := schema.Canonical(msid)
	out := make([]bool, len(times))
	exact := r.exact[canon]
	var exactNoDP *interval.IntTree
	if strings.HasPrefix(canon, "DP_") {
		exactNoDP = r.exact[strings.TrimPrefix(canon, "DP_")]
	}
	for i, t := range times {
		lo := msec(t)
		probe := span{lo: lo, hi: lo + 1}
		if exact != nil && len(exact.Get(probe)) > 0 {
			out[i] = true
			continue
		}
		if exactNoDP != nil && len(exactNoDP.Get(probe)) > 0 {
			out[i] = true
			continue
		}
		for _, hit := range r.globTree.Get(probe) {
			pattern := r.globOf[hit.(span).ID()]
			if matchesPattern(pattern, msid) {
				out[i] = true
				break
			}
		}
	}
	return out
}
