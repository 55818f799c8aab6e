// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package catalog

import (
	"path/filepath"
	"testing"
	"time"
)

func TestRecordHasAndOrder(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "archfiles.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if c.Has("f1") {
		t.Fatal("Has(f1) = true before Record")
	}

	files := []ArchFile{
		{Filename: "f1", FileTime: 100, TStart: 0, TStop: 100, RowStart: 0, RowStop: 100, IngestDate: time.Now()},
		{Filename: "f2", FileTime: 200, TStart: 100, TStop: 200, RowStart: 100, RowStop: 200, IngestDate: time.Now()},
	}
	for _, a := range files {
		if err := c.Record(a); err != nil {
			t.Fatal(err)
		}
	}

	if !c.Has("f1") || !c.Has("f2") {
		t.Fatal("Has() false after Record")
	}
	if c.LastRow() != 200 {
		t.Fatalf("LastRow() = %d, want 200", c.LastRow())
	}
	if name, ok := c.FilenameAt(100); !ok || name != "f1" {
		t.Fatalf("FilenameAt(100) = (%q,%v), want (f1,true)", name, ok)
	}
	if _, ok := c.FilenameAt(999); ok {
		t.Fatal("FilenameAt(999) = true, want false")
	}

	all, err := c.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Filename != "f1" || all[1].Filename != "f2" {
		t.Fatalf("All() = %+v, want f1 then f2 in filetime order", all)
	}
}

func TestDeleteAfter(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "archfiles.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	files := []ArchFile{
		{Filename: "f1", FileTime: 100, TStart: 0, TStop: 100, RowStart: 0, RowStop: 100},
		{Filename: "f2", FileTime: 200, TStart: 100, TStop: 200, RowStart: 100, RowStop: 200},
	}
	for _, a := range files {
		if err := c.Record(a); err != nil {
			t.Fatal(err)
		}
	}

	cutRow, found, err := c.DeleteAfter(100)
	if err != nil {
		t.Fatal(err)
	}
	if !found || cutRow != 100 {
		t.Fatalf("DeleteAfter(100) = (%d,%v), want (100,true)", cutRow, found)
	}
	if c.Has("f2") {
		t.Fatal("f2 still present after DeleteAfter")
	}
	if !c.Has("f1") {
		t.Fatal("f1 removed by DeleteAfter(100), should have survived")
	}
	if c.LastRow() != 100 {
		t.Fatalf("LastRow() after DeleteAfter = %d, want 100", c.LastRow())
	}
}
