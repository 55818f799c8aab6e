// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package column

import (
	"path/filepath"
	"testing"

	"github.com/sedna-systems/telearc/schema"
)

func TestValueAppendReadTruncate(t *testing.T) {
	dir := t.TempDir()
	v, err := OpenValue(filepath.Join(dir, "A.value"), schema.Float64, 0, true)
	if err != nil {
		t.Fatal(err)
	}
	defer v.Close()

	if err := v.Append([]float64{10, 11, 12, 13}); err != nil {
		t.Fatal(err)
	}
	if v.Length() != 4 {
		t.Fatalf("length = %d, want 4", v.Length())
	}

	got, err := v.ReadRange(0, 4)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{10, 11, 12, 13}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d = %v, want %v", i, got[i], want[i])
		}
	}

	if err := v.Truncate(2); err != nil {
		t.Fatal(err)
	}
	if v.Length() != 2 {
		t.Fatalf("length after truncate = %d, want 2", v.Length())
	}

	if err := v.Append([]float64{20, 21}); err != nil {
		t.Fatal(err)
	}
	got, err = v.ReadRange(0, 4)
	if err != nil {
		t.Fatal(err)
	}
	want = []float64{10, 11, 20, 21}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("after truncate+append row %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestValueSchemaMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "A.value")
	v, err := OpenValue(path, schema.Int16, 0, true)
	if err != nil {
		t.Fatal(err)
	}
	v.Close()

	_, err = OpenValue(path, schema.Float64, 0, true)
	var mismatch *SchemaMismatch
	if err == nil {
		t.Fatal("expected SchemaMismatch, got nil")
	}
	if !asSchemaMismatch(err, &mismatch) {
		t.Fatalf("expected *SchemaMismatch, got %T: %v", err, err)
	}
}

func asSchemaMismatch(err error, target **SchemaMismatch) bool {
	if e, ok := err.(*SchemaMismatch); ok {
		*target = e
		return true
	}
	return false
}

func TestQualityAppendReadTruncate(t *testing.T) {
	dir := t.TempDir()
	q, err := OpenQuality(filepath.Join(dir, "A.quality"), true)
	if err != nil {
		t.Fatal(err)
	}
	defer q.Close()

	bads := []bool{false, false, true, false, true, true, false, false, true}
	if err := q.Append(bads); err != nil {
		t.Fatal(err)
	}
	got, err := q.ReadRange(0, int64(len(bads)))
	if err != nil {
		t.Fatal(err)
	}
	for i := range bads {
		if got[i] != bads[i] {
			t.Errorf("bit %d = %v, want %v", i, got[i], bads[i])
		}
	}

	if err := q.Truncate(4); err != nil {
		t.Fatal(err)
	}
	if err := q.Append([]bool{true, true}); err != nil {
		t.Fatal(err)
	}
	got, err = q.ReadRange(0, 6)
	if err != nil {
		t.Fatal(err)
	}
	want := []bool{false, false, true, false, true, true}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("after truncate+append bit %d = %v, want %v", i, got[i], want[i])
		}
	}
}
