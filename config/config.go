// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the archive's static TOML configuration: the
// content-type/MSID registry, derived-parameter declarations and the
// bad-times file list, following the teacher pack's own use
// of github.com/midbel/toml for declarative settings.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/midbel/toml"

	"github.com/sedna-systems/telearc/dparam"
	"github.com/sedna-systems/telearc/schema"
)

type unitTOML struct {
	Label  string  `toml:"label"`
	Scale  float64 `toml:"scale"`
	Offset float64 `toml:"offset"`
}

func (u unitTOML) conv() schema.UnitConv {
	scale := u.Scale
	if scale == 0 && u.Label != "" {
		scale = 1
	}
	return schema.UnitConv{Label: u.Label, Scale: scale, Offset: u.Offset}
}

type unitsTOML struct {
	CXC unitTOML `toml:"cxc"`
	Sci unitTOML `toml:"sci"`
	Eng unitTOML `toml:"eng"`
}

type contentTOML struct {
	Name     string   `toml:"name"`
	MSIDs    []string `toml:"msids"`
	MaxGap   float64  `toml:"max_gap"`
	AllowGap bool     `toml:"allow_gap"`
}

type msidTOML struct {
	Name      string            `toml:"name"`
	Content   string            `toml:"content"`
	Dtype     string            `toml:"dtype"`
	Width     int               `toml:"width"`
	SanityMax float64           `toml:"sanity_max"`
	Units     unitsTOML         `toml:"units"`
	States    map[string]string `toml:"states"`
}

type derivedTOML struct {
	Name        string   `toml:"name"`
	ContentRoot string   `toml:"content_root"`
	RootMSIDs   []string `toml:"root_msids"`
	TimeStep    float64  `toml:"time_step"`
}

type document struct {
	Content  []contentTOML `toml:"content"`
	MSID     []msidTOML    `toml:"msid"`
	Derived  []derivedTOML `toml:"derived"`
	BadTimes []string      `toml:"bad_times"`
}

// DerivedSpec is a derived-parameter declaration as it appears in
// configuration: everything but the calc function, which is code, not
// data, and must be supplied by the caller via Bind.
type DerivedSpec struct {
	Name        string
	ContentRoot string
	RootMSIDs   []string
	TimeStep    float64
}

// Archive is the fully parsed static configuration.
type Archive struct {
	Registry      *schema.Registry
	Derived       []DerivedSpec
	BadTimesFiles []string
}

// Load reads and validates the TOML configuration at path.
func Load(path string) (*Archive, error) {
	var doc document
	if err := toml.DecodeFile(path, &doc); err != nil {
		return nil, fmt.Errorf("config: decoding %s: %w", path, err)
	}

	reg := schema.NewRegistry()
	for _, c := range doc.Content {
		if err := reg.AddContent(&schema.ContentType{
			Name:     c.Name,
			MSIDs:    c.MSIDs,
			MaxGap:   c.MaxGap,
			AllowGap: c.AllowGap,
		}); err != nil {
			return nil, fmt.Errorf("config: content %s: %w", c.Name, err)
		}
	}
	for _, m := range doc.MSID {
		typ, err := parseDtype(m.Dtype)
		if err != nil {
			return nil, fmt.Errorf("config: MSID %s: %w", m.Name, err)
		}
		states, err := parseStates(m.States)
		if err != nil {
			return nil, fmt.Errorf("config: MSID %s: %w", m.Name, err)
		}
		if err := reg.AddMSID(&schema.MSID{
			Name:      m.Name,
			Content:   m.Content,
			Type:      typ,
			Width:     m.Width,
			Units:     [3]schema.UnitConv{m.Units.CXC.conv(), m.Units.Sci.conv(), m.Units.Eng.conv()},
			States:    states,
			SanityMax: m.SanityMax,
		}); err != nil {
			return nil, fmt.Errorf("config: MSID %s: %w", m.Name, err)
		}
	}

	a := &Archive{Registry: reg, BadTimesFiles: doc.BadTimes}
	for _, d := range doc.Derived {
		a.Derived = append(a.Derived, DerivedSpec{
			Name:        d.Name,
			ContentRoot: d.ContentRoot,
			RootMSIDs:   d.RootMSIDs,
			TimeStep:    d.TimeStep,
		})
	}
	return a, nil
}

func parseDtype(s string) (schema.ElementType, error) {
	switch strings.ToLower(s) {
	case "int8":
		return schema.Int8, nil
	case "uint8":
		return schema.Uint8, nil
	case "int16":
		return schema.Int16, nil
	case "uint16":
		return schema.Uint16, nil
	case "int32":
		return schema.Int32, nil
	case "uint32":
		return schema.Uint32, nil
	case "float32":
		return schema.Float32, nil
	case "float64":
		return schema.Float64, nil
	case "string":
		return schema.String, nil
	default:
		return 0, fmt.Errorf("unknown dtype %q", s)
	}
}

func parseStates(m map[string]string) (map[int64]string, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := make(map[int64]string, len(m))
	for k, v := range m {
		code, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("state code %q: %w", k, err)
		}
		out[code] = v
	}
	return out, nil
}

// Bind attaches calc functions to the declarative derived-parameter
// specs parsed from configuration, producing the dparam.Definition
// table the engine actually runs. calcs is keyed by derived-parameter
// name.
func Bind(specs []DerivedSpec, calcs map[string]func(map[string]dparam.Aligned) ([]float64, []bool)) ([]dparam.Definition, error) {
	defs := make([]dparam.Definition, 0, len(specs))
	for _, s := range specs {
		calc, ok := calcs[s.Name]
		if !ok {
			return nil, fmt.Errorf("config: no calc function registered for %s", s.Name)
		}
		defs = append(defs, dparam.Definition{
			Name:        s.Name,
			ContentRoot: s.ContentRoot,
			RootMSIDs:   s.RootMSIDs,
			TimeStep:    s.TimeStep,
			Calc:        calc,
		})
	}
	return defs, nil
}
