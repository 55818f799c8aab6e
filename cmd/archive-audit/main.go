// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The archive-audit command allows the kv-backed stores that back a
// content type to be inspected directly, bypassing the fetch engine.
// There are two kinds of store it understands, identified by file
// name:
//   - archfiles.db — the per-content ingest catalog (package catalog);
//     one JSON object per row, in filetime order.
//   - <MSID>.5min.db / <MSID>.daily.db — the per-MSID statistics store
//     (package stats); one JSON object per row, in index order.
//
// Output is a JSON stream on stdout, one object per line.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/sedna-systems/telearc/catalog"
	"github.com/sedna-systems/telearc/stats"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("archive-audit: ")

	path := flag.String("db", "", "db file to audit (archfiles.db, or an MSID.5min.db/MSID.daily.db)")
	flag.Parse()
	if *path == "" {
		flag.Usage()
		os.Exit(2)
	}

	base := filepath.Base(*path)
	switch {
	case base == "archfiles.db":
		auditCatalog(*path)
	case strings.HasSuffix(base, ".5min.db"), strings.HasSuffix(base, ".daily.db"):
		auditStats(*path)
	default:
		log.Fatalf("unrecognized db file %q: expected archfiles.db or *.5min.db/*.daily.db", base)
	}
}

func auditCatalog(path string) {
	c, err := catalog.Open(path)
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	rows, err := c.All()
	if err != nil {
		log.Fatal(err)
	}
	enc := json.NewEncoder(os.Stdout)
	for _, a := range rows {
		if err := enc.Encode(a); err != nil {
			log.Fatal(err)
		}
	}
}

func auditStats(path string) {
	s, err := stats.Open(path)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	records, err := s.All()
	if err != nil {
		log.Fatal(err)
	}
	enc := json.NewEncoder(os.Stdout)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			log.Fatal(err)
		}
	}
}
