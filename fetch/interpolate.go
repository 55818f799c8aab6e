// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fetch

import "sort"

// Interpolate resamples every result in rs onto a shared uniform grid
// from the earliest to the latest time present across all of them, at
// step dt, following the filter_bad/bad_union behavior matrix.
// rs must all be KindFullRes.
func Interpolate(rs []Result, dt float64, filterBad, badUnion bool) ([]Result, error) {
	if len(rs) == 0 || dt <= 0 {
		return rs, nil
	}

	work := make([]Result, len(rs))
	copy(work, rs)
	if filterBad && !badUnion {
		// Remove bads before interpolation, independently per MSID.
		for i, r := range work {
			t, v, b := dropBad(r.Times, r.Vals, r.Bads, nil)
			work[i].Times, work[i].Vals, work[i].Bads = t, v, b
		}
	}

	start, stop := gridBounds(work)
	grid := buildGrid(start, stop, dt)

	out := make([]Result, len(work))
	for i, r := range work {
		vals, bads, times0 := nearestOnto(r.Times, r.Vals, r.Bads, grid)
		out[i] = r
		out[i].Times = grid
		out[i].Vals = vals
		out[i].Bads = bads
		out[i].Times0 = times0
	}

	if badUnion {
		union := make([]bool, len(grid))
		for _, r := range out {
			for i, b := range r.Bads {
				if b {
					union[i] = true
				}
			}
		}
		for i := range out {
			out[i].Bads = append([]bool(nil), union...)
		}
		if filterBad {
			for i, r := range out {
				t, v, b := dropBad(r.Times, r.Vals, r.Bads, nil)
				out[i].Times, out[i].Vals, out[i].Bads = t, v, b
				out[i].Times0 = dropByMask(r.Times0, union)
			}
		}
	}
	return out, nil
}

func gridBounds(rs []Result) (start, stop float64) {
	first := true
	for _, r := range rs {
		if len(r.Times) == 0 {
			continue
		}
		lo, hi := r.Times[0], r.Times[len(r.Times)-1]
		if first {
			start, stop = lo, hi
			first = false
			continue
		}
		if lo < start {
			start = lo
		}
		if hi > stop {
			stop = hi
		}
	}
	return start, stop
}

func buildGrid(start, stop, dt float64) []float64 {
	var grid []float64
	for t := start; t <= stop; t += dt {
		grid = append(grid, t)
	}
	return grid
}

func nearestOnto(times, vals []float64, bads []bool, grid []float64) (outVals []float64, outBads []bool, times0 []float64) {
	outVals = make([]float64, len(grid))
	outBads = make([]bool, len(grid))
	times0 = make([]float64, len(grid))
	if len(times) == 0 {
		for i := range grid {
			outBads[i] = true
		}
		return outVals, outBads, times0
	}
	for i, t := range grid {
		j := sort.SearchFloat64s(times, t)
		best := j
		if j == len(times) {
			best = len(times) - 1
		} else if j > 0 {
			if times[j]-t > t-times[j-1] {
				best = j - 1
			}
		}
		outVals[i] = vals[best]
		outBads[i] = bads[best]
		times0[i] = times[best]
	}
	return outVals, outBads, times0
}

func dropByMask(xs []float64, bad []bool) []float64 {
	var out []float64
	for i, b := range bad {
		if b {
			continue
		}
		out = append(out, xs[i])
	}
	return out
}
