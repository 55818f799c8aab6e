// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fetch

import "math"

// Source is the abstract data-source boundary: given an MSID and a
// time range, it answers with whatever full-resolution
// samples it has, reporting whether it recognizes the MSID at all. The
// columnar archive is one Source; a live-telemetry proxy or any other
// collaborator need only satisfy this to participate.
type Source interface {
	Name() string
	Fetch(msid string, tstart, tstop float64) (times, vals []float64, bads []bool, ok bool, err error)
}

// ArchiveSource adapts Engine.FetchOne (full-resolution only) to the
// Source interface, making the primary archive itself the first
// element of an ordered source list.
type ArchiveSource struct {
	Engine *Engine
}

func (a ArchiveSource) Name() string { return "archive" }

func (a ArchiveSource) Fetch(msid string, tstart, tstop float64) (times, vals []float64, bads []bool, ok bool, err error) {
	r, err := a.Engine.FetchOne(msid, tstart, tstop, StatNone, false, 0)
	if _, isUnknown := err.(*UnknownMSIDError); isUnknown {
		return nil, nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, nil, false, err
	}
	return r.Times, r.Vals, r.Bads, true, nil
}

// FetchFromSources tries each source for msid in order:
// the first source that knows the MSID answers for as much of
// [tstart, tstop) as it covers; any remaining range is forwarded to
// later sources. Per-range provenance is recorded on the result.
func FetchFromSources(sources []Source, msid string, tstart, tstop float64) (Result, error) {
	res := Result{Kind: KindFullRes, MSID: msid}
	remainingStart := tstart
	for _, src := range sources {
		if remainingStart >= tstop {
			break
		}
		times, vals, bads, ok, err := src.Fetch(msid, remainingStart, tstop)
		if err != nil {
			return Result{}, err
		}
		if !ok || len(times) == 0 {
			continue
		}
		res.Times = append(res.Times, times...)
		res.Vals = append(res.Vals, vals...)
		res.Bads = append(res.Bads, bads...)
		res.DataSource = append(res.DataSource, SourceRange{Source: src.Name(), TStart: times[0], TStop: times[len(times)-1]})
		remainingStart = math.Nextafter(times[len(times)-1], math.Inf(1))
	}
	return res, nil
}
