// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package units

import (
	"math"
	"testing"

	"github.com/sedna-systems/telearc/schema"
)

func TestRoundTrip(t *testing.T) {
	m := &schema.MSID{
		Units: [3]schema.UnitConv{
			schema.CXC: Identity("K"),
			schema.Sci: KelvinToCelsius(),
			schema.Eng: KelvinToFahrenheit(),
		},
	}
	for _, sys := range []schema.UnitSystem{schema.CXC, schema.Sci, schema.Eng} {
		v := 300.15
		conv := Convert(m, sys, v)
		back := m.Units[sys].Invert(conv)
		if math.Abs(back-v) > 1e-9 {
			t.Errorf("system %v: round trip %v -> %v -> %v, want %v", sys, v, conv, back, v)
		}
	}
}

func TestKelvinConversions(t *testing.T) {
	if got := KelvinToCelsius().Apply(273.15); math.Abs(got) > 1e-9 {
		t.Errorf("273.15K -> %v degC, want 0", got)
	}
	if got := KelvinToFahrenheit().Apply(273.15); math.Abs(got-32) > 1e-6 {
		t.Errorf("273.15K -> %v degF, want 32", got)
	}
}
