// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ingest

import "fmt"

// SourceDecomError wraps a failure to decode a source file. The
// ingest pipeline skips the file and does not advance the catalog.
type SourceDecomError struct {
	File string
	Err  error
}

func (e *SourceDecomError) Error() string {
	return fmt.Sprintf("ingest: decoding %s: %v", e.File, e.Err)
}

func (e *SourceDecomError) Unwrap() error { return e.Err }

// GapError reports a gap between the last tstop on record and a
// candidate file's tstart that the gap policy rejects: one beyond the
// content's max gap while allow-gap mode is off, one beyond the hard
// limit, or an overlap (negative gap). The file is rejected; an
// operator must intervene before retrying.
type GapError struct {
	Content       string
	File          string
	Gap           float64
	HardLimit     float64
	Overlap       bool
}

func (e *GapError) Error() string {
	if e.Overlap {
		return fmt.Sprintf("ingest: %s: file %s overlaps existing data by %.3fs", e.Content, e.File, -e.Gap)
	}
	if e.Gap <= e.HardLimit {
		return fmt.Sprintf("ingest: %s: file %s gap %.3fs exceeds max gap and allow-gap mode is off", e.Content, e.File, e.Gap)
	}
	return fmt.Sprintf("ingest: %s: file %s gap %.3fs exceeds hard limit %.3fs", e.Content, e.File, e.Gap, e.HardLimit)
}

// OverlapError reports that the same filetime was seen twice with
// different content.
type OverlapError struct {
	FileTime int64
	First    string
	Second   string
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("ingest: filetime %d already used by %s, rejecting duplicate %s", e.FileTime, e.First, e.Second)
}
