// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stats implements the 5-minute and daily statistics engine:
// deterministic aggregate records keyed to a mission-wide interval
// index, kept coherent with full-resolution appends.
package stats

// Kind distinguishes the two statistics views: 5-minute and daily.
type Kind uint8

const (
	FiveMin Kind = iota
	Daily
)

// Delta returns the window width in seconds for kind.
func (k Kind) Delta() float64 {
	switch k {
	case FiveMin:
		return 328
	case Daily:
		return 86400
	default:
		panic("stats: unknown kind")
	}
}

func (k Kind) String() string {
	switch k {
	case FiveMin:
		return "5min"
	case Daily:
		return "daily"
	default:
		return "unknown"
	}
}

// Index returns floor(t / Δ_kind), the mission-global interval index
// containing time t.
func Index(t float64, k Kind) int64 {
	return int64(floorDiv(t, k.Delta()))
}

// Window returns the half-open time window [lo, hi) covered by index i
// of kind k.
func Window(i int64, k Kind) (lo, hi float64) {
	d := k.Delta()
	return float64(i) * d, float64(i+1) * d
}

func floorDiv(t, d float64) float64 {
	q := t / d
	f := float64(int64(q))
	if f > q {
		f--
	}
	return f
}

// PercentileLevels is the set of percentile levels daily records carry
//, in the fixed order every Record.Percentiles array uses.
var PercentileLevels = [7]float64{1, 5, 16, 50, 84, 95, 99}

// Record is one stat record for one MSID, one kind, one interval
// index. Percentiles is populated only for Daily records of
// non-state MSIDs; States is populated only for state-valued MSIDs.
type Record struct {
	Index      int64
	NSamples   uint32
	MidVal     float64
	Mean       float64
	Min        float64
	Max        float64
	Std        float64
	Percentiles [7]float64 // order matches PercentileLevels; daily only
	HasPercentiles bool
	States     map[int64]uint32 // raw code -> count; state-valued MSIDs only
}
