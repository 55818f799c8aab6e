// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ingest implements the per-content ingest pipeline: ordering
// source files, validating monotonic time coverage, appending rows to
// every column of a content type atomically, updating the archfiles
// catalog, and emitting the post-append trigger the statistics engine
// listens on.
package ingest

import (
	"fmt"
	"io"
	"time"

	"github.com/sedna-systems/telearc/catalog"
	"github.com/sedna-systems/telearc/column"
	"github.com/sedna-systems/telearc/schema"
)

// DecodedFile is what the external source-file reader yields for one source file: row-aligned
// columns for every MSID in the content, a shared time column and a
// per-row quality matrix, plus file-level metadata.
type DecodedFile struct {
	Time     []float64
	Values   map[string][]float64
	Bad      map[string][]bool
	TStart   float64
	TStop    float64
	Revision int32
	DecomVers string
}

// Decoder turns a content type's source files into DecodedFile values.
// It is the abstract boundary for source-file decoding; the core does
// not care about the physical file format.
type Decoder interface {
	Decode(sourceFile string) (DecodedFile, error)
}

// PostAppend describes one successful ingest, passed to Pipeline's
// OnAppend hook. The statistics engine's update
// cycle is the canonical consumer.
type PostAppend struct {
	Content            string
	RowStart, RowStop  int64
	TStart, TStop      float64
}

// Pipeline drives ingest for a single content type. One Pipeline is
// bound to one writer; concurrent ingest into the same content is not
// supported.
type Pipeline struct {
	Content  *schema.ContentType
	Registry *schema.Registry
	Store    *column.Store
	Catalog  *catalog.Catalog
	Decoder  Decoder

	// OnAppend is invoked after the archfile row is committed. A nil
	// hook is allowed for callers that drive the statistics engine out
	// of band.
	OnAppend func(PostAppend) error

	// Warnings receives gap-policy and sanity-threshold warnings. A
	// nil Warnings discards them.
	Warnings io.Writer

	// AllowGap enables the allow-gap operating mode for this pipeline
	// instance: gaps beyond the content's max gap, up to the hard
	// limit, are accepted with a warning instead of rejected.
	AllowGap bool

	// Now is used for IngestDate; defaults to time.Now if nil.
	Now func() time.Time
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) warnf(format string, args ...interface{}) {
	if p.Warnings != nil {
		fmt.Fprintf(p.Warnings, format+"\n", args...)
	}
}

// Recover performs the crash-recovery sweep: if the columns are
// longer than the catalog's last recorded row, a prior
// append did not complete before the archfile record was written (or
// failed partway), so every column is truncated back to the catalog's
// tail before further ingest proceeds.
func (p *Pipeline) Recover() error {
	want := p.Catalog.LastRow()
	if p.Store.Length() > want {
		return p.Store.Truncate(want)
	}
	return nil
}

// Ingest processes a single source file. It returns nil (with zero
// rows appended) if filename was already ingested.
func (p *Pipeline) Ingest(filename string, filetime int64) error {
	if p.Catalog.Has(filename) {
		return nil
	}
	if existing, ok := p.Catalog.FilenameAt(filetime); ok && existing != filename {
		return &OverlapError{FileTime: filetime, First: existing, Second: filename}
	}

	df, err := p.Decoder.Decode(filename)
	if err != nil {
		return &SourceDecomError{File: filename, Err: err}
	}

	n := len(df.Time)
	if n == 0 {
		return nil
	}
	for _, name := range p.Content.MSIDs {
		if len(df.Values[name]) != n || len(df.Bad[name]) != n {
			return &SourceDecomError{File: filename, Err: fmt.Errorf("MSID %s has %d/%d rows, time has %d", name, len(df.Values[name]), len(df.Bad[name]), n)}
		}
	}

	// Validate non-decreasing time, then collapse equal timestamps,
	// keeping the first and marking the rest bad (open question
	// resolved in DESIGN.md).
	if err := validateMonotonic(df.Time); err != nil {
		return &SourceDecomError{File: filename, Err: err}
	}
	collapseDuplicateTimes(&df)

	if err := p.checkGap(filename, df.TStart); err != nil {
		return err
	}

	rowStart := p.Catalog.LastRow()
	rowStop := rowStart + int64(n)

	if err := p.Store.Append(df.Time, df.Values, df.Bad); err != nil {
		return fmt.Errorf("ingest: appending %s: %w", filename, err)
	}
	if err := p.Store.Sync(); err != nil {
		return fmt.Errorf("ingest: syncing %s: %w", filename, err)
	}

	if err := p.checkSanity(df); err != nil {
		p.warnf("ingest: %v", err)
	}

	if err := p.Catalog.Record(catalog.ArchFile{
		Filename:   filename,
		FileTime:   filetime,
		TStart:     df.TStart,
		TStop:      df.TStop,
		RowStart:   rowStart,
		RowStop:    rowStop,
		Revision:   df.Revision,
		IngestDate: p.now(),
		DecomVers:  df.DecomVers,
	}); err != nil {
		return fmt.Errorf("ingest: recording %s: %w", filename, err)
	}

	if p.OnAppend != nil {
		return p.OnAppend(PostAppend{
			Content:  p.Content.Name,
			RowStart: rowStart,
			RowStop:  rowStop,
			TStart:   df.TStart,
			TStop:    df.TStop,
		})
	}
	return nil
}

// checkGap applies the gap policy against the catalog's current
// tail.
func (p *Pipeline) checkGap(filename string, tstart float64) error {
	if p.Catalog.LastRow() == 0 {
		return nil
	}
	gap := p.Catalog.GapTo(tstart)
	switch {
	case gap < 0:
		return &GapError{Content: p.Content.Name, File: filename, Gap: gap, HardLimit: schema.HardGapLimit, Overlap: true}
	case gap <= p.Content.MaxGap:
		return nil
	case gap <= schema.HardGapLimit:
		if !p.AllowGap && !p.Content.AllowGap {
			return &GapError{Content: p.Content.Name, File: filename, Gap: gap, HardLimit: schema.HardGapLimit}
		}
		p.warnf("ingest: %s: file %s has gap %.3fs (> max %.3fs), accepted under allow-gap mode", p.Content.Name, filename, gap, p.Content.MaxGap)
		return nil
	default:
		return &GapError{Content: p.Content.Name, File: filename, Gap: gap, HardLimit: schema.HardGapLimit}
	}
}

// checkSanity warns, rather than rejects, when values exceed a
// per-MSID sanity threshold; the
// quality bit remains the contractual exclusion mechanism.
func (p *Pipeline) checkSanity(df DecodedFile) error {
	var bad []string
	for _, name := range p.Content.MSIDs {
		m, ok := p.Registry.MSID(name)
		if !ok || m.SanityMax <= 0 {
			continue
		}
		for _, v := range df.Values[name] {
			if abs(v) > m.SanityMax {
				bad = append(bad, name)
				break
			}
		}
	}
	if len(bad) == 0 {
		return nil
	}
	return fmt.Errorf("sanity threshold exceeded for %v", bad)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// validateMonotonic checks the time column is non-decreasing.
// Equal-timestamp runs are allowed here; they are resolved by
// collapseDuplicateTimes.
func validateMonotonic(t []float64) error {
	for i := 1; i < len(t); i++ {
		if t[i] < t[i-1] {
			return fmt.Errorf("time column is not non-decreasing at row %d: %v then %v", i, t[i-1], t[i])
		}
	}
	return nil
}

// collapseDuplicateTimes applies the tie-break rule for rows sharing
// a timestamp: the first is kept and the rest are marked bad in every
// MSID column. The row itself is not removed, so every column in the
// content keeps the same row count.
func collapseDuplicateTimes(df *DecodedFile) {
	for i := 1; i < len(df.Time); i++ {
		if df.Time[i] != df.Time[i-1] {
			continue
		}
		for name := range df.Bad {
			df.Bad[name][i] = true
		}
	}
}
