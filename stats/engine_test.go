// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stats

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/sedna-systems/telearc/column"
	"github.com/sedna-systems/telearc/schema"
)

func testStore(t *testing.T) (*column.Store, *schema.Registry, *schema.ContentType) {
	t.Helper()
	reg := schema.NewRegistry()
	ct := &schema.ContentType{Name: "TEST1", MaxGap: 1e6}
	if err := reg.AddContent(ct); err != nil {
		t.Fatal(err)
	}
	if err := reg.AddMSID(&schema.MSID{Name: "A", Content: "TEST1", Type: schema.Float64}); err != nil {
		t.Fatal(err)
	}
	cs, err := column.Open(t.TempDir(), ct, reg, true)
	if err != nil {
		t.Fatal(err)
	}
	return cs, reg, ct
}

// TestFiveMinWorkedExample covers the 5-minute aggregate shape of the
// spec's E2 worked example: 1s-spaced samples with A == time index,
// all good quality, window 0 fully sampled and window 1 only partly
// sampled (272 of a possible 328 rows, matching E2's literal count)
// before the feed resumes past window 1's end. Window 1's count is
// only knowable as final once later data places the engine's upper
// bound past it; an E2 reading that stops at t=599 would instead find
// index 1 the in-progress window (excluded by Update until more data
// arrives) — see DESIGN.md.
func TestFiveMinWorkedExample(t *testing.T) {
	cs, reg, _ := testStore(t)
	defer cs.Close()

	n := 600
	times := make([]float64, n)
	vals := make([]float64, n)
	bads := make([]bool, n)
	for i := 0; i < n; i++ {
		times[i] = float64(i)
		vals[i] = float64(i)
	}
	if err := cs.Append(times, map[string][]float64{"A": vals}, map[string][]bool{"A": bads}); err != nil {
		t.Fatal(err)
	}
	// A quiet gap, then one more sample past window 1's end (t=656) so
	// window 1 is no longer the in-progress window.
	if err := cs.Append([]float64{660}, map[string][]float64{"A": {660}}, map[string][]bool{"A": {false}}); err != nil {
		t.Fatal(err)
	}

	store, err := Open(filepath.Join(t.TempDir(), "A.5min.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := Update(cs, reg, "A", FiveMin, store); err != nil {
		t.Fatal(err)
	}

	r0, ok, err := store.Get(0)
	if err != nil || !ok {
		t.Fatalf("index 0: ok=%v err=%v", ok, err)
	}
	if r0.NSamples != 328 {
		t.Errorf("index 0: n_samples = %d, want 328", r0.NSamples)
	}
	if r0.Min != 0 || r0.Max != 327 {
		t.Errorf("index 0: min=%v max=%v, want 0,327", r0.Min, r0.Max)
	}
	if r0.MidVal != 164 {
		t.Errorf("index 0: midval = %v, want 164", r0.MidVal)
	}
	if math.Abs(r0.Mean-163.5) > 1e-9 {
		t.Errorf("index 0: mean = %v, want 163.5", r0.Mean)
	}

	r1, ok, err := store.Get(1)
	if err != nil || !ok {
		t.Fatalf("index 1: ok=%v err=%v", ok, err)
	}
	if r1.NSamples != 272 {
		t.Errorf("index 1: n_samples = %d, want 272", r1.NSamples)
	}

	next, err := store.NextIndex()
	if err != nil {
		t.Fatal(err)
	}
	if next != 2 {
		t.Errorf("next index = %d, want 2", next)
	}
}

func TestUpdateIsIdempotent(t *testing.T) {
	cs, reg, _ := testStore(t)
	defer cs.Close()
	store, err := Open(filepath.Join(t.TempDir(), "A.5min.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	n := 700
	times := make([]float64, n)
	vals := make([]float64, n)
	bads := make([]bool, n)
	for i := 0; i < n; i++ {
		times[i] = float64(i)
		vals[i] = float64(i)
	}
	if err := cs.Append(times, map[string][]float64{"A": vals}, map[string][]bool{"A": bads}); err != nil {
		t.Fatal(err)
	}
	if err := Update(cs, reg, "A", FiveMin, store); err != nil {
		t.Fatal(err)
	}
	first, err := store.All()
	if err != nil {
		t.Fatal(err)
	}

	if err := Update(cs, reg, "A", FiveMin, store); err != nil {
		t.Fatal(err)
	}
	second, err := store.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Fatalf("re-running Update with no new data changed record count: %d -> %d", len(first), len(second))
	}
}

func TestLowSampleWindowSkipped(t *testing.T) {
	cs, reg, _ := testStore(t)
	defer cs.Close()
	store, err := Open(filepath.Join(t.TempDir(), "A.5min.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	times := []float64{0, 1, 400}
	vals := []float64{1, 2, 3}
	bads := []bool{false, false, false}
	if err := cs.Append(times, map[string][]float64{"A": vals}, map[string][]bool{"A": bads}); err != nil {
		t.Fatal(err)
	}
	if err := Update(cs, reg, "A", FiveMin, store); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := store.Get(0); ok {
		t.Error("window with only 2 good samples should have been skipped")
	}
}
