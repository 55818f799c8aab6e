// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fetch

import (
	"github.com/biogo/store/interval"
)

// Interval is one row of an interval-filter table: a time span with an optional symmetric pad applied on
// both ends.
type Interval struct {
	TStart, TStop float64
	Pad           float64
}

func msec(t float64) int64 { return int64(t * 1000) }

type span struct {
	id     uintptr
	lo, hi int64
}

func (s span) ID() uintptr { return s.id }
func (s span) Range() interval.IntRange {
	return interval.IntRange{Start: int(s.lo), End: int(s.hi)}
}
func (s span) Overlap(b interval.IntRange) bool {
	return int64(b.Start) < s.hi && s.lo < int64(b.End)
}

func buildTree(intervals []Interval) *interval.IntTree {
	tree := &interval.IntTree{}
	for i, iv := range intervals {
		lo := iv.TStart - iv.Pad
		hi := iv.TStop + iv.Pad
		tree.Insert(span{id: uintptr(i), lo: msec(lo), hi: msec(hi)}, true)
	}
	tree.AdjustRanges()
	return tree
}

// inAnyInterval reports, for each time in times, whether it falls in
// the union of intervals (after padding).
func inAnyInterval(times []float64, intervals []Interval) []bool {
	tree := buildTree(intervals)
	out := make([]bool, len(times))
	for i, t := range times {
		lo := msec(t)
		probe := span{lo: lo, hi: lo + 1}
		out[i] = len(tree.Get(probe)) > 0
	}
	return out
}

// SelectIntervals keeps only samples whose time falls in the union of
// intervals.
func SelectIntervals(r Result, intervals []Interval) Result {
	in := inAnyInterval(r.Times, intervals)
	keep := make([]bool, len(in))
	for i, b := range in {
		keep[i] = b
	}
	return maskResult(r, keep)
}

// RemoveIntervals keeps only samples whose time falls outside the
// union of intervals.
func RemoveIntervals(r Result, intervals []Interval) Result {
	in := inAnyInterval(r.Times, intervals)
	keep := make([]bool, len(in))
	for i, b := range in {
		keep[i] = !b
	}
	return maskResult(r, keep)
}

func maskResult(r Result, keep []bool) Result {
	hasRaw := len(r.RawVals) == len(r.Times)
	out := r
	out.Times, out.Vals, out.Bads, out.RawVals = nil, nil, nil, nil
	for i, k := range keep {
		if !k {
			continue
		}
		out.Times = append(out.Times, r.Times[i])
		out.Vals = append(out.Vals, r.Vals[i])
		out.Bads = append(out.Bads, r.Bads[i])
		if hasRaw {
			out.RawVals = append(out.RawVals, r.RawVals[i])
		}
	}
	return out
}
