// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ingest

import (
	"path/filepath"
	"testing"

	"github.com/sedna-systems/telearc/catalog"
	"github.com/sedna-systems/telearc/column"
	"github.com/sedna-systems/telearc/schema"
)

type mapDecoder map[string]DecodedFile

func (d mapDecoder) Decode(file string) (DecodedFile, error) {
	f, ok := d[file]
	if !ok {
		return DecodedFile{}, errNotFound(file)
	}
	return f, nil
}

type errNotFound string

func (e errNotFound) Error() string { return "no such file: " + string(e) }

func newTestPipeline(t *testing.T, dir string, dec mapDecoder) (*Pipeline, *schema.Registry, *schema.ContentType) {
	t.Helper()
	reg := schema.NewRegistry()
	ct := &schema.ContentType{Name: "TEST1", MaxGap: 10}
	if err := reg.AddContent(ct); err != nil {
		t.Fatal(err)
	}
	if err := reg.AddMSID(&schema.MSID{Name: "A", Content: "TEST1", Type: schema.Float64}); err != nil {
		t.Fatal(err)
	}

	s, err := column.Open(dir, ct, reg, true)
	if err != nil {
		t.Fatal(err)
	}
	cat, err := catalog.Open(filepath.Join(dir, "archfiles.db"))
	if err != nil {
		t.Fatal(err)
	}
	return &Pipeline{Content: ct, Registry: reg, Store: s, Catalog: cat, Decoder: dec}, reg, ct
}

func mkFile(tstart, tstop float64, times, vals []float64, bads []bool) DecodedFile {
	return DecodedFile{
		Time:   times,
		Values: map[string][]float64{"A": vals},
		Bad:    map[string][]bool{"A": bads},
		TStart: tstart,
		TStop:  tstop,
	}
}

func TestIngestE1(t *testing.T) {
	dir := t.TempDir()
	dec := mapDecoder{
		"f1": mkFile(0, 3, []float64{0, 1, 2, 3}, []float64{10, 11, 12, 13}, []bool{false, false, true, false}),
	}
	p, _, _ := newTestPipeline(t, dir, dec)
	defer p.Store.Close()
	defer p.Catalog.Close()

	if err := p.Ingest("f1", 1); err != nil {
		t.Fatal(err)
	}
	if p.Store.Length() != 4 {
		t.Fatalf("length = %d, want 4", p.Store.Length())
	}
	lo, hi, err := p.Store.RowRange(0, 4)
	if err != nil {
		t.Fatal(err)
	}
	v, _ := p.Store.Value("A")
	q, _ := p.Store.Quality("A")
	vals, _ := v.ReadRange(lo, hi)
	bads, _ := q.ReadRange(lo, hi)
	var gotTimes, gotVals []float64
	times := []float64{0, 1, 2, 3}
	for i, bad := range bads {
		if bad {
			continue
		}
		gotTimes = append(gotTimes, times[i])
		gotVals = append(gotVals, vals[i])
	}
	wantTimes := []float64{0, 1, 3}
	wantVals := []float64{10, 11, 13}
	for i := range wantTimes {
		if gotTimes[i] != wantTimes[i] || gotVals[i] != wantVals[i] {
			t.Errorf("row %d = (%v,%v), want (%v,%v)", i, gotTimes[i], gotVals[i], wantTimes[i], wantVals[i])
		}
	}
}

func TestIngestIdempotentReplay(t *testing.T) {
	dir := t.TempDir()
	dec := mapDecoder{
		"f1": mkFile(0, 100, seq(0, 100), seq(0, 100), boolsOf(100, false)),
	}
	p, _, _ := newTestPipeline(t, dir, dec)
	defer p.Store.Close()
	defer p.Catalog.Close()

	if err := p.Ingest("f1", 1); err != nil {
		t.Fatal(err)
	}
	lenBefore := p.Store.Length()
	rowsBefore, _ := p.Catalog.All()

	if err := p.Ingest("f1", 1); err != nil {
		t.Fatal(err)
	}
	if p.Store.Length() != lenBefore {
		t.Fatalf("length changed on replay: %d -> %d", lenBefore, p.Store.Length())
	}
	rowsAfter, _ := p.Catalog.All()
	if len(rowsAfter) != len(rowsBefore) {
		t.Fatalf("archfiles changed on replay: %d -> %d", len(rowsBefore), len(rowsAfter))
	}
}

func TestIngestTruncateAndRebuild(t *testing.T) {
	dir := t.TempDir()
	dec := mapDecoder{
		"f1": mkFile(0, 100, seq(0, 100), seq(0, 100), boolsOf(100, false)),
		"f2": mkFile(100, 200, seq(100, 200), seq(100, 200), boolsOf(100, false)),
	}
	p, _, ct := newTestPipeline(t, dir, dec)
	defer p.Store.Close()
	defer p.Catalog.Close()

	if err := p.Ingest("f1", 1); err != nil {
		t.Fatal(err)
	}
	if err := p.Ingest("f2", 2); err != nil {
		t.Fatal(err)
	}
	if p.Store.Length() != 200 {
		t.Fatalf("length = %d, want 200", p.Store.Length())
	}

	cutRow, found, err := p.Catalog.DeleteAfter(100)
	if err != nil {
		t.Fatal(err)
	}
	if !found || cutRow != 100 {
		t.Fatalf("DeleteAfter(100) = (%d,%v)", cutRow, found)
	}
	if err := p.Store.Truncate(cutRow); err != nil {
		t.Fatal(err)
	}
	if p.Store.Length() != 100 {
		t.Fatalf("length after truncate = %d, want 100", p.Store.Length())
	}
	if p.Catalog.Has("f2") {
		t.Fatal("f2 still present after truncate")
	}

	if err := p.Ingest("f2", 2); err != nil {
		t.Fatal(err)
	}
	if p.Store.Length() != 200 {
		t.Fatalf("length after rebuild = %d, want 200", p.Store.Length())
	}
	_ = ct
}

func TestIngestGapRejected(t *testing.T) {
	dir := t.TempDir()
	dec := mapDecoder{
		"f1": mkFile(0, 100, seq(0, 100), seq(0, 100), boolsOf(100, false)),
		"f2": mkFile(2e6, 2e6+100, seq(2000000, 2000100), seq(0, 100), boolsOf(100, false)),
	}
	p, _, _ := newTestPipeline(t, dir, dec)
	defer p.Store.Close()
	defer p.Catalog.Close()

	if err := p.Ingest("f1", 1); err != nil {
		t.Fatal(err)
	}
	err := p.Ingest("f2", 2)
	if _, ok := err.(*GapError); !ok {
		t.Fatalf("expected *GapError, got %T: %v", err, err)
	}
}

func TestIngestRejectsReusedFileTime(t *testing.T) {
	dir := t.TempDir()
	dec := mapDecoder{
		"f1": mkFile(0, 100, seq(0, 100), seq(0, 100), boolsOf(100, false)),
		"f2": mkFile(100, 200, seq(100, 200), seq(100, 200), boolsOf(100, false)),
	}
	p, _, _ := newTestPipeline(t, dir, dec)
	defer p.Store.Close()
	defer p.Catalog.Close()

	if err := p.Ingest("f1", 1); err != nil {
		t.Fatal(err)
	}
	err := p.Ingest("f2", 1)
	if _, ok := err.(*OverlapError); !ok {
		t.Fatalf("expected *OverlapError, got %T: %v", err, err)
	}
	if p.Catalog.Has("f2") {
		t.Fatal("f2 recorded despite reused filetime")
	}
}

func seq(lo, hi int) []float64 {
	out := make([]float64, hi-lo)
	for i := range out {
		out[i] = float64(lo + i)
	}
	return out
}

func boolsOf(n int, v bool) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = v
	}
	return out
}
