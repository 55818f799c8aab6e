// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sedna-systems/telearc/dparam"
	"github.com/sedna-systems/telearc/schema"
)

const sample = `
bad_times = ["bad1.txt", "bad2.txt"]

[[content]]
name = "THERMAL"
msids = ["TEMP1", "TEMP2"]
max_gap = 10.0
allow_gap = false

[[msid]]
name = "TEMP1"
content = "THERMAL"
dtype = "float64"

[msid.units.cxc]
label = "K"
scale = 1.0
offset = 0.0

[msid.units.sci]
label = "degC"
scale = 1.0
offset = -273.15

[[msid]]
name = "TEMP2"
content = "THERMAL"
dtype = "uint8"

[msid.states]
0 = "OFF"
1 = "ON"

[[derived]]
name = "DP_SUM"
content_root = "THERMAL"
root_msids = ["TEMP1", "TEMP2"]
time_step = 1.0
`

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.toml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeSample(t)
	a, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(a.BadTimesFiles) != 2 {
		t.Fatalf("bad_times = %v, want 2 entries", a.BadTimesFiles)
	}
	m, ok := a.Registry.MSID("TEMP1")
	if !ok {
		t.Fatal("TEMP1 not registered")
	}
	if m.Type != schema.Float64 {
		t.Errorf("TEMP1 dtype = %v, want Float64", m.Type)
	}
	if m.Units[schema.Sci].Offset != -273.15 {
		t.Errorf("TEMP1 sci offset = %v, want -273.15", m.Units[schema.Sci].Offset)
	}

	state, ok := a.Registry.MSID("TEMP2")
	if !ok {
		t.Fatal("TEMP2 not registered")
	}
	if !state.IsState() || state.States[1] != "ON" {
		t.Errorf("TEMP2 states = %v, want {0:OFF,1:ON}", state.States)
	}

	if len(a.Derived) != 1 || a.Derived[0].Name != "DP_SUM" {
		t.Fatalf("derived = %v", a.Derived)
	}
}

func TestBindRequiresCalc(t *testing.T) {
	specs := []DerivedSpec{{Name: "DP_X"}}
	if _, err := Bind(specs, nil); err == nil {
		t.Error("expected error for missing calc function")
	}
	calcs := map[string]func(map[string]dparam.Aligned) ([]float64, []bool){
		"DP_X": func(map[string]dparam.Aligned) ([]float64, []bool) { return nil, nil },
	}
	defs, err := Bind(specs, calcs)
	if err != nil {
		t.Fatal(err)
	}
	if len(defs) != 1 || defs[0].Calc == nil {
		t.Fatalf("defs = %v", defs)
	}
}
