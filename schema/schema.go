// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package schema holds the static description of the telemetry
// archive: content types, MSIDs, their element types, unit labels and
// state-code tables. Registries are built once, typically by package
// config, and shared read-only by every other package.
package schema

import (
	"fmt"
	"strings"
	"time"
)

// Epoch is the mission reference epoch. Stored times are float64
// seconds since this instant, in Terrestrial Time.
var Epoch = time.Date(1998, time.January, 1, 0, 0, 0, 0, time.UTC)

// ElementType identifies the scalar type stored in a column.
type ElementType uint8

const (
	Int8 ElementType = iota
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Float32
	Float64
	String // fixed-width, width given by MSID.Width
)

// Width returns the on-disk element width in bytes for fixed-width
// numeric types. For String it returns the MSID's declared Width.
func (t ElementType) Width(declaredWidth int) int {
	switch t {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Float64:
		return 8
	case String:
		return declaredWidth
	}
	return 8
}

// UnitSystem selects one of the three fetch-time unit systems.
type UnitSystem uint8

const (
	CXC UnitSystem = iota
	Sci
	Eng
)

func (u UnitSystem) String() string {
	switch u {
	case CXC:
		return "cxc"
	case Sci:
		return "sci"
	case Eng:
		return "eng"
	default:
		return "unknown"
	}
}

// ParseUnitSystem parses the textual names used in configuration and
// fetch requests.
func ParseUnitSystem(s string) (UnitSystem, error) {
	switch strings.ToLower(s) {
	case "cxc":
		return CXC, nil
	case "sci":
		return Sci, nil
	case "eng":
		return Eng, nil
	default:
		return 0, fmt.Errorf("schema: unknown unit system %q", s)
	}
}

// UnitConv is the affine conversion y = x*Scale + Offset from the
// storage unit to one target system.
type UnitConv struct {
	Label  string
	Scale  float64
	Offset float64
}

// Apply converts a value expressed in the storage unit into this
// system's unit.
func (c UnitConv) Apply(v float64) float64 { return v*c.Scale + c.Offset }

// Invert converts a value expressed in this system's unit back to the
// storage unit.
func (c UnitConv) Invert(v float64) float64 { return (v - c.Offset) / c.Scale }

// MSID describes one telemetry channel.
type MSID struct {
	Name    string // canonical, upper-case
	Content string // owning content type name

	Type  ElementType
	Width int // only meaningful for Type == String

	Units [3]UnitConv // indexed by UnitSystem

	// States maps raw integer codes to short state names. Nil for
	// non-state-valued MSIDs.
	States map[int64]string

	// SanityMax bounds the absolute value accepted without an ingest
	// warning. Zero or negative (the default) disables the check.
	SanityMax float64
}

// IsState reports whether m carries a state-code table.
func (m *MSID) IsState() bool { return len(m.States) != 0 }

// Canonical upper-cases and trims an MSID or content name for lookup.
func Canonical(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// ContentType describes a set of MSIDs sharing one time grid.
type ContentType struct {
	Name    string
	MSIDs   []string // canonical names, in declared order
	MaxGap  float64  // seconds; gap policy soft limit
	AllowGap bool    // special "allow-gap" operating mode
}

// HardGapLimit is the "hard_limit" beyond which a gap is always
// rejected, regardless of AllowGap.
const HardGapLimit = 1e6

// Registry is the set of known content types and MSIDs, looked up by
// canonical (upper-case) name.
type Registry struct {
	contents map[string]*ContentType
	msids    map[string]*MSID
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{contents: map[string]*ContentType{}, msids: map[string]*MSID{}}
}

// AddContent registers a content type. It is an error to register the
// same name twice.
func (r *Registry) AddContent(c *ContentType) error {
	name := Canonical(c.Name)
	if _, ok := r.contents[name]; ok {
		return fmt.Errorf("schema: duplicate content type %q", c.Name)
	}
	c.Name = name
	r.contents[name] = c
	return nil
}

// AddMSID registers an MSID. Its content type must already be
// registered.
func (r *Registry) AddMSID(m *MSID) error {
	name := Canonical(m.Name)
	content := Canonical(m.Content)
	if _, ok := r.contents[content]; !ok {
		return fmt.Errorf("schema: MSID %q refers to unknown content type %q", m.Name, m.Content)
	}
	if _, ok := r.msids[name]; ok {
		return fmt.Errorf("schema: duplicate MSID %q", m.Name)
	}
	m.Name = name
	m.Content = content
	r.msids[name] = m
	c := r.contents[content]
	for i, listed := range c.MSIDs {
		if Canonical(listed) == name {
			c.MSIDs[i] = name
			return nil
		}
	}
	c.MSIDs = append(c.MSIDs, name)
	return nil
}

// MSID looks up an MSID by name, case-insensitively. The DP_ prefix is
// optional on the query.
func (r *Registry) MSID(name string) (*MSID, bool) {
	canon := Canonical(name)
	if m, ok := r.msids[canon]; ok {
		return m, true
	}
	if !strings.HasPrefix(canon, "DP_") {
		if m, ok := r.msids["DP_"+canon]; ok {
			return m, true
		}
	}
	return nil, false
}

// Content looks up a content type by name.
func (r *Registry) Content(name string) (*ContentType, bool) {
	c, ok := r.contents[Canonical(name)]
	return c, ok
}

// Names returns every registered MSID's canonical name.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.msids))
	for n := range r.msids {
		names = append(names, n)
	}
	return names
}
