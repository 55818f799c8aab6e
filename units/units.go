// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package units provides the affine unit-conversion helpers used to
// build a schema.MSID's per-system conversion table.
// Mixed temperature scales across MSIDs are not reconciled; each MSID
// carries its own table independently.
package units

import "github.com/sedna-systems/telearc/schema"

// Identity returns a no-op conversion labelled unit.
func Identity(unit string) schema.UnitConv {
	return schema.UnitConv{Label: unit, Scale: 1, Offset: 0}
}

// Affine returns the conversion y = x*scale + offset.
func Affine(unit string, scale, offset float64) schema.UnitConv {
	return schema.UnitConv{Label: unit, Scale: scale, Offset: offset}
}

// KelvinToCelsius returns the storage->sci conversion for a channel
// stored in Kelvin, reporting degrees Celsius.
func KelvinToCelsius() schema.UnitConv { return Affine("degC", 1, -273.15) }

// KelvinToFahrenheit returns the storage->eng conversion for a channel
// stored in Kelvin, reporting degrees Fahrenheit.
func KelvinToFahrenheit() schema.UnitConv { return Affine("degF", 9.0/5.0, -459.67) }

// Convert converts v, stored in m's intrinsic unit, into system sys.
func Convert(m *schema.MSID, sys schema.UnitSystem, v float64) float64 {
	return m.Units[sys].Apply(v)
}

// Unit returns the unit label m reports in system sys.
func Unit(m *schema.MSID, sys schema.UnitSystem) string {
	return m.Units[sys].Label
}
