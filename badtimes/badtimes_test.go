// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package badtimes

import (
	"strings"
	"testing"
)

func TestExactMatch(t *testing.T) {
	r := NewRegistry()
	if err := r.Add("TEMP1", 100, 200); err != nil {
		t.Fatal(err)
	}
	got := r.FilterBad("temp1", []float64{50, 100, 150, 199, 200, 250})
	want := []bool{false, true, true, true, false, false}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("t[%d]: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestGlobMatch(t *testing.T) {
	r := NewRegistry()
	if err := r.Add("TEMP*", 10, 20); err != nil {
		t.Fatal(err)
	}
	if !r.FilterBad("TEMP7", []float64{15})[0] {
		t.Error("TEMP7 at t=15 should match TEMP* bad-time")
	}
	if r.FilterBad("VOLT1", []float64{15})[0] {
		t.Error("VOLT1 should not match TEMP* pattern")
	}
}

func TestLoadTable(t *testing.T) {
	r := NewRegistry()
	table := `
# comment
TEMP1 100 200

VOLT* 0 5
`
	if err := r.Load(strings.NewReader(table)); err != nil {
		t.Fatal(err)
	}
	if !r.FilterBad("TEMP1", []float64{150})[0] {
		t.Error("expected TEMP1 at t=150 to be excluded")
	}
	if !r.FilterBad("VOLT9", []float64{2})[0] {
		t.Error("expected VOLT9 at t=2 to be excluded via glob")
	}
}

func TestClear(t *testing.T) {
	r := NewRegistry()
	r.Add("TEMP1", 0, 10)
	r.Clear()
	if r.FilterBad("TEMP1", []float64{5})[0] {
		t.Error("expected no exclusions after Clear")
	}
}
