// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fetch

import (
	"testing"

	"github.com/sedna-systems/telearc/schema"
)

func newRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg := schema.NewRegistry()
	ct := &schema.ContentType{Name: "TEST1", MaxGap: 1e6}
	if err := reg.AddContent(ct); err != nil {
		t.Fatal(err)
	}
	for _, n := range []string{"X", "Y", "TEMP1"} {
		if err := reg.AddMSID(&schema.MSID{Name: n, Content: "TEST1", Type: schema.Float64}); err != nil {
			t.Fatal(err)
		}
	}
	return reg
}

func TestResolveGlobExactAndWildcard(t *testing.T) {
	reg := newRegistry(t)
	if _, err := ResolveGlob(reg, "temp1", 1); err != nil {
		t.Fatalf("exact case-insensitive lookup failed: %v", err)
	}
	matches, err := ResolveGlob(reg, "T*", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("T* matches = %v, want just TEMP1", matches)
	}
	if _, err := ResolveGlob(reg, "NOPE*", 0); err == nil {
		t.Error("expected UnknownMSIDError")
	} else if _, ok := err.(*UnknownMSIDError); !ok {
		t.Errorf("got %T, want *UnknownMSIDError", err)
	}
	if _, err := ResolveGlob(reg, "*", 1); err == nil {
		t.Error("expected GlobOverMatchError")
	} else if _, ok := err.(*GlobOverMatchError); !ok {
		t.Errorf("got %T, want *GlobOverMatchError", err)
	}
}

// TestInterpolateBadUnion implements the spec's E5 worked example: X
// at 1s cadence (one bad sample), Y at 4s cadence; interpolate to
// dt=2s with filter_bad=true, bad_union=true should drop every grid
// point where X's nearest neighbor was bad, from both results.
func TestInterpolateBadUnion(t *testing.T) {
	xTimes := make([]float64, 20)
	xVals := make([]float64, 20)
	xBads := make([]bool, 20)
	for i := range xTimes {
		xTimes[i] = float64(i)
		xVals[i] = float64(i)
	}
	xBads[10] = true // bad at t=10

	var yTimes, yVals []float64
	for t := 0; t < 20; t += 4 {
		yTimes = append(yTimes, float64(t))
		yVals = append(yVals, float64(t))
	}
	yBads := make([]bool, len(yTimes))

	x := Result{Kind: KindFullRes, MSID: "X", Times: xTimes, Vals: xVals, Bads: xBads}
	y := Result{Kind: KindFullRes, MSID: "Y", Times: yTimes, Vals: yVals, Bads: yBads}

	out, err := Interpolate([]Result{x, y}, 2, true, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d results, want 2", len(out))
	}
	for _, t10 := range out[0].Times {
		if t10 == 10 {
			t.Error("grid point at t=10 should have been dropped (X bad there)")
		}
	}
	if len(out[0].Times) != len(out[1].Times) {
		t.Errorf("bad_union should leave both results with the same grid: %d vs %d", len(out[0].Times), len(out[1].Times))
	}
}

// TestSelectRemoveInvariant checks that select and remove over the
// same interval table partition a result exactly:
// their union recovers the original samples and their intersection is
// empty.
func TestSelectRemoveInvariant(t *testing.T) {
	times := []float64{0, 5, 10, 15, 20, 25, 30}
	vals := append([]float64(nil), times...)
	bads := make([]bool, len(times))
	r := Result{Kind: KindFullRes, MSID: "X", Times: times, Vals: vals, Bads: bads}

	intervals := []Interval{{TStart: 8, TStop: 22}}
	sel := SelectIntervals(r, intervals)
	rem := RemoveIntervals(r, intervals)

	if len(sel.Times)+len(rem.Times) != len(times) {
		t.Fatalf("select (%d) + remove (%d) != original (%d)", len(sel.Times), len(rem.Times), len(times))
	}
	seen := map[float64]bool{}
	for _, t := range sel.Times {
		seen[t] = true
	}
	for _, t := range rem.Times {
		if seen[t] {
			t.Errorf("time %v present in both select and remove", t)
		}
	}
}
