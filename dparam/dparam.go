// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dparam implements derived parameters: MSIDs computed as a
// pure function of other MSIDs on a shared uniform time grid.
// Definitions are data, not subclasses: a registration table of
// name/roots/time_step/calc tuples, each calc a pure function over
// pre-aligned input columns.
package dparam

import (
	"fmt"
	"sort"
)

// Aligned is one root MSID's values resampled onto a derived
// parameter's target grid.
type Aligned struct {
	Times []float64
	Vals  []float64
}

// Definition registers one derived parameter.
type Definition struct {
	Name        string
	ContentRoot string
	RootMSIDs   []string
	TimeStep    float64
	Calc        func(inputs map[string]Aligned) (vals []float64, bads []bool)
}

// RootSeries is one root MSID's raw full-resolution data over whatever
// span the caller has fetched, used as alignment input.
type RootSeries struct {
	Times []float64
	Vals  []float64
	Bad   []bool
}

// Grid returns the uniform sample times in [start, stop) at step dt.
func Grid(start, stop, dt float64) []float64 {
	if dt <= 0 || stop <= start {
		return nil
	}
	n := int((stop-start)/dt) + 1
	grid := make([]float64, 0, n)
	for t := start; t < stop; t += dt {
		grid = append(grid, t)
	}
	return grid
}

// alignNearest resamples one root's good samples onto grid by nearest
// neighbor, marking a grid point bad if the nearest good sample is
// farther than timeStep away.
func alignNearest(r RootSeries, grid []float64, timeStep float64) (vals []float64, bad []bool) {
	vals = make([]float64, len(grid))
	bad = make([]bool, len(grid))

	var goodTimes, goodVals []float64
	for i, b := range r.Bad {
		if b {
			continue
		}
		goodTimes = append(goodTimes, r.Times[i])
		goodVals = append(goodVals, r.Vals[i])
	}
	if len(goodTimes) == 0 {
		for i := range grid {
			bad[i] = true
		}
		return vals, bad
	}

	for i, t := range grid {
		j := sort.SearchFloat64s(goodTimes, t)
		best := -1
		bestD := timeStep
		for _, cand := range []int{j - 1, j} {
			if cand < 0 || cand >= len(goodTimes) {
				continue
			}
			d := goodTimes[cand] - t
			if d < 0 {
				d = -d
			}
			if d <= bestD {
				best, bestD = cand, d
			}
		}
		if best < 0 {
			bad[i] = true
			continue
		}
		vals[i] = goodVals[best]
	}
	return vals, bad
}

// Evaluate computes def's output over [gridStart, gridStop), given
// each root's raw series: align every root to the grid, union their
// per-point bad flags, invoke Calc, then union in whatever bads Calc
// itself reports.
func Evaluate(def Definition, roots map[string]RootSeries, gridStart, gridStop float64) (times, vals []float64, bads []bool, err error) {
	for _, name := range def.RootMSIDs {
		if _, ok := roots[name]; !ok {
			return nil, nil, nil, fmt.Errorf("dparam: %s: missing root series for %s", def.Name, name)
		}
	}
	grid := Grid(gridStart, gridStop, def.TimeStep)
	if len(grid) == 0 {
		return nil, nil, nil, nil
	}

	inputs := make(map[string]Aligned, len(def.RootMSIDs))
	rootBad := make([]bool, len(grid))
	for _, name := range def.RootMSIDs {
		v, b := alignNearest(roots[name], grid, def.TimeStep)
		inputs[name] = Aligned{Times: grid, Vals: v}
		for i, bb := range b {
			if bb {
				rootBad[i] = true
			}
		}
	}

	calcVals, calcBads := def.Calc(inputs)
	if len(calcVals) != len(grid) || len(calcBads) != len(grid) {
		return nil, nil, nil, fmt.Errorf("dparam: %s: calc returned %d/%d values, want %d", def.Name, len(calcVals), len(calcBads), len(grid))
	}

	out := make([]bool, len(grid))
	for i := range grid {
		out[i] = rootBad[i] || calcBads[i]
	}
	return grid, calcVals, out, nil
}

// CommonEnd returns the earliest end-of-coverage among roots, the
// range the engine recomputes up to on each cycle.
func CommonEnd(roots map[string]RootSeries) float64 {
	first := true
	var end float64
	for _, r := range roots {
		if len(r.Times) == 0 {
			return 0
		}
		t := r.Times[len(r.Times)-1]
		if first || t < end {
			end = t
			first = false
		}
	}
	return end
}
