// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stats

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/sedna-systems/telearc/column"
	"github.com/sedna-systems/telearc/schema"
)

// minSamples is the threshold below which a window is skipped
// entirely rather than emitting a low-confidence record.
const minSamples = 3

// Update runs the incremental update cycle for one MSID's statistics
// of one kind, against the content's current column store:
// it discards the possibly-partial tail, recomputes every interval up
// to (but not including) the one the most recent sample falls in, and
// advances the store's bookkeeping past them. It is safe to call after
// every ingest and after a crash, in either case recomputing at most
// the tail windows.
func Update(cs *column.Store, reg *schema.Registry, msid string, kind Kind, store *Store) error {
	n := cs.Length()
	if n == 0 {
		return nil
	}
	lastT, err := cs.Time.At(n - 1)
	if err != nil {
		return err
	}
	upper := Index(lastT, kind)

	start, err := store.NextIndex()
	if err != nil {
		return fmt.Errorf("stats: %s %s: %w", msid, kind, err)
	}
	if err := store.DeleteFrom(start); err != nil {
		return fmt.Errorf("stats: %s %s: deleting tail from %d: %w", msid, kind, start, err)
	}
	if start >= upper {
		return nil
	}

	val, ok := cs.Value(msid)
	if !ok {
		return fmt.Errorf("stats: %s: no value column", msid)
	}
	qual, ok := cs.Quality(msid)
	if !ok {
		return fmt.Errorf("stats: %s: no quality column", msid)
	}
	m, ok := reg.MSID(msid)
	if !ok {
		return fmt.Errorf("stats: %s: not in registry", msid)
	}
	isState := m.IsState()
	wantPercentiles := kind == Daily && !isState

	for idx := start; idx < upper; idx++ {
		lo, hi := Window(idx, kind)
		rowLo, rowHi, err := cs.RowRange(lo, hi)
		if err != nil {
			return err
		}
		rec, ok, err := computeWindow(cs, val, qual, idx, lo, hi, rowLo, rowHi, isState, wantPercentiles)
		if err != nil {
			return err
		}
		if ok {
			if err := store.Append(rec); err != nil {
				return err
			}
		}
	}
	return store.SetNextIndex(upper)
}

func computeWindow(cs *column.Store, val *column.Value, qual *column.Quality, index int64, lo, hi float64, rowLo, rowHi int64, isState, wantPercentiles bool) (Record, bool, error) {
	if rowHi <= rowLo {
		return Record{}, false, nil
	}
	times, err := cs.Time.ReadRange(rowLo, rowHi)
	if err != nil {
		return Record{}, false, err
	}
	values, err := val.ReadRange(rowLo, rowHi)
	if err != nil {
		return Record{}, false, err
	}
	bads, err := qual.ReadRange(rowLo, rowHi)
	if err != nil {
		return Record{}, false, err
	}

	var gt, gv []float64
	for i, bad := range bads {
		if bad {
			continue
		}
		gt = append(gt, times[i])
		gv = append(gv, values[i])
	}
	if len(gv) < minSamples {
		return Record{}, false, nil
	}

	// nextRowTime is the time of the first row past this window, used
	// to derive the dwell width of the last kept sample.
	nextRowTime := hi
	if rowHi < cs.Time.Length() {
		t, err := cs.Time.At(rowHi)
		if err != nil {
			return Record{}, false, err
		}
		nextRowTime = math.Min(t, hi)
	}

	rec := Record{Index: index, NSamples: uint32(len(gv))}
	rec.MidVal = nearestCenter(gt, gv, (lo+hi)/2)

	if isState {
		rec.States = map[int64]uint32{}
		for _, v := range gv {
			rec.States[int64(v)]++
		}
		return rec, true, nil
	}

	rec.Min, rec.Max = gv[0], gv[0]
	for _, v := range gv {
		if v < rec.Min {
			rec.Min = v
		}
		if v > rec.Max {
			rec.Max = v
		}
	}

	var sumDt, sumVDt float64
	dwell := make([]float64, len(gv))
	for i := range gt {
		var next float64
		if i+1 < len(gt) {
			next = gt[i+1]
		} else {
			next = nextRowTime
		}
		dt := next - gt[i]
		if dt < 0 {
			dt = 0
		}
		dwell[i] = dt
		sumDt += dt
		sumVDt += dt * gv[i]
	}
	if sumDt <= 0 {
		rec.Mean = mean(gv)
	} else {
		rec.Mean = sumVDt / sumDt
	}
	var sumSqDt float64
	for i, v := range gv {
		d := v - rec.Mean
		sumSqDt += dwell[i] * d * d
	}
	if sumDt > 0 {
		rec.Std = math.Sqrt(sumSqDt / sumDt)
	}

	if wantPercentiles {
		sorted := append([]float64(nil), gv...)
		sort.Float64s(sorted)
		for i, p := range PercentileLevels {
			rec.Percentiles[i] = stat.Quantile(p/100, stat.LinInterp, sorted, nil)
		}
		rec.HasPercentiles = true
	}
	return rec, true, nil
}

func nearestCenter(times, values []float64, center float64) float64 {
	best := 0
	bestD := math.Abs(times[0] - center)
	for i := 1; i < len(times); i++ {
		d := math.Abs(times[i] - center)
		if d < bestD {
			best, bestD = i, d
		}
	}
	return values[best]
}

func mean(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}
