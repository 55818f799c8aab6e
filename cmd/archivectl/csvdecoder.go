// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/sedna-systems/telearc/ingest"
	"github.com/sedna-systems/telearc/schema"
)

// csvDecoder is a reference ingest.Decoder: the source-file format is
// an out-of-scope collaborator, so this is only a minimal stand-in
// good enough to drive archivectl ingest end to end. One header row
// TIME,<msid>,<msid>_Q,... followed by one data row per sample; _Q
// columns hold 0 (good) or 1 (bad).
type csvDecoder struct {
	registry *schema.Registry
	content  *schema.ContentType
}

func (d csvDecoder) Decode(sourceFile string) (ingest.DecodedFile, error) {
	f, err := os.Open(sourceFile)
	if err != nil {
		return ingest.DecodedFile{}, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return ingest.DecodedFile{}, fmt.Errorf("csvDecoder: reading header: %w", err)
	}
	if len(header) == 0 || header[0] != "TIME" {
		return ingest.DecodedFile{}, fmt.Errorf("csvDecoder: first column must be TIME, got %v", header)
	}

	valCol := map[string]int{}
	qCol := map[string]int{}
	for i, name := range header[1:] {
		col := i + 1
		switch {
		case len(name) > 2 && name[len(name)-2:] == "_Q":
			qCol[schema.Canonical(name[:len(name)-2])] = col
		default:
			valCol[schema.Canonical(name)] = col
		}
	}

	df := ingest.DecodedFile{
		Values: map[string][]float64{},
		Bad:    map[string][]bool{},
	}
	for _, name := range d.content.MSIDs {
		if _, ok := valCol[name]; !ok {
			return ingest.DecodedFile{}, fmt.Errorf("csvDecoder: missing column for MSID %s", name)
		}
	}

	rows, err := r.ReadAll()
	if err != nil {
		return ingest.DecodedFile{}, fmt.Errorf("csvDecoder: reading rows: %w", err)
	}
	for _, row := range rows {
		t, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			return ingest.DecodedFile{}, fmt.Errorf("csvDecoder: bad TIME %q: %w", row[0], err)
		}
		df.Time = append(df.Time, t)
		for _, name := range d.content.MSIDs {
			v, err := strconv.ParseFloat(row[valCol[name]], 64)
			if err != nil {
				return ingest.DecodedFile{}, fmt.Errorf("csvDecoder: MSID %s: bad value %q: %w", name, row[valCol[name]], err)
			}
			df.Values[name] = append(df.Values[name], v)
			bad := false
			if col, ok := qCol[name]; ok {
				bad = row[col] == "1"
			}
			df.Bad[name] = append(df.Bad[name], bad)
		}
	}
	if len(df.Time) == 0 {
		return df, nil
	}
	df.TStart = df.Time[0]
	df.TStop = df.Time[len(df.Time)-1]
	df.Revision = 1
	df.DecomVers = "csvDecoder/1"
	return df, nil
}
