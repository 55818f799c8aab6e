// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The archivectl command drives the telemetry archive from the command
// line: ingesting source files into a content type, truncating a
// content type back to a given time, and running ad hoc fetch queries
// against it. Configuration is a single TOML file (see package
// config); data lives under -root, one subdirectory per content type.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/sedna-systems/telearc/catalog"
	"github.com/sedna-systems/telearc/column"
	"github.com/sedna-systems/telearc/config"
	"github.com/sedna-systems/telearc/fetch"
	"github.com/sedna-systems/telearc/ingest"
	"github.com/sedna-systems/telearc/schema"
	"github.com/sedna-systems/telearc/stats"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("archivectl: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "ingest":
		runIngest(os.Args[2:])
	case "truncate":
		runTruncate(os.Args[2:])
	case "fetch":
		runFetch(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: archivectl {ingest|truncate|fetch} [flags]")
}

func openArchive(configPath, root, content string) (*config.Archive, *schema.ContentType, *column.Store, *catalog.Catalog, *stats.Manager) {
	a, err := config.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	ct, ok := a.Registry.Content(content)
	if !ok {
		log.Fatalf("unknown content type %s", content)
	}
	dir := filepath.Join(root, schema.Canonical(content))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatal(err)
	}
	store, err := column.Open(dir, ct, a.Registry, true)
	if err != nil {
		log.Fatal(err)
	}
	cat, err := catalog.Open(filepath.Join(dir, "archfiles.db"))
	if err != nil {
		log.Fatal(err)
	}
	statDir := filepath.Join(root, "stats", schema.Canonical(content))
	if err := os.MkdirAll(statDir, 0o755); err != nil {
		log.Fatal(err)
	}
	mgr, err := stats.OpenContent(statDir, ct)
	if err != nil {
		log.Fatal(err)
	}
	return a, ct, store, cat, mgr
}

func runIngest(args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", "archive.toml", "archive TOML configuration")
	root := fs.String("root", ".", "archive data root")
	content := fs.String("content", "", "content type to ingest into")
	allowGap := fs.Bool("allow-gap", false, "accept gaps up to the hard limit")
	fs.Parse(args)
	if *content == "" || fs.NArg() == 0 {
		log.Fatal("usage: archivectl ingest -content NAME file...")
	}

	a, ct, store, cat, statMgr := openArchive(*configPath, *root, *content)
	defer store.Close()
	defer cat.Close()
	defer statMgr.Close()

	p := &ingest.Pipeline{
		Content:  ct,
		Registry: a.Registry,
		Store:    store,
		Catalog:  cat,
		Decoder:  csvDecoder{registry: a.Registry, content: ct},
		Warnings: os.Stderr,
		AllowGap: *allowGap,
	}
	p.OnAppend = statMgr.Hook(store, a.Registry)

	if err := p.Recover(); err != nil {
		log.Fatal(err)
	}
	for i, file := range fs.Args() {
		if err := p.Ingest(file, int64(i)); err != nil {
			log.Fatalf("ingesting %s: %v", file, err)
		}
		log.Printf("ingested %s", file)
	}
}

func runTruncate(args []string) {
	fs := flag.NewFlagSet("truncate", flag.ExitOnError)
	configPath := fs.String("config", "archive.toml", "archive TOML configuration")
	root := fs.String("root", ".", "archive data root")
	content := fs.String("content", "", "content type to truncate")
	cutoff := fs.Float64("after", 0, "remove every archfile with tstart >= this mission time")
	fs.Parse(args)
	if *content == "" {
		log.Fatal("usage: archivectl truncate -content NAME -after TIME")
	}

	_, _, store, cat, statMgr := openArchive(*configPath, *root, *content)
	defer store.Close()
	defer cat.Close()
	defer statMgr.Close()

	cutRow, found, err := cat.DeleteAfter(*cutoff)
	if err != nil {
		log.Fatal(err)
	}
	if !found {
		log.Print("nothing to truncate")
		return
	}
	if err := store.Truncate(cutRow); err != nil {
		log.Fatal(err)
	}
	if err := statMgr.ResetAfter(*cutoff); err != nil {
		log.Fatal(err)
	}
	log.Printf("truncated to row %d", cutRow)
}

func runFetch(args []string) {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	configPath := fs.String("config", "archive.toml", "archive TOML configuration")
	root := fs.String("root", ".", "archive data root")
	msid := fs.String("msid", "", "MSID or glob to fetch")
	tstart := fs.Float64("tstart", 0, "range start, mission seconds")
	tstop := fs.Float64("tstop", 0, "range stop, mission seconds")
	filterBad := fs.Bool("filter-bad", true, "drop bad-quality samples")
	fs.Parse(args)
	if *msid == "" {
		log.Fatal("usage: archivectl fetch -msid NAME -tstart T0 -tstop T1")
	}

	a, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	m, ok := a.Registry.MSID(*msid)
	if !ok {
		log.Fatalf("unknown MSID %s", *msid)
	}
	dir := filepath.Join(*root, schema.Canonical(m.Content))
	ct, _ := a.Registry.Content(m.Content)
	store, err := column.Open(dir, ct, a.Registry, false)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()
	cat, err := catalog.Open(filepath.Join(dir, "archfiles.db"))
	if err != nil {
		log.Fatal(err)
	}
	defer cat.Close()

	eng := &fetch.Engine{
		Registry: a.Registry,
		Contents: map[string]*fetch.ContentHandle{
			schema.Canonical(m.Content): {Store: store, Catalog: cat},
		},
	}
	res, err := eng.FetchOne(*msid, *tstart, *tstop, fetch.StatNone, *filterBad, schema.CXC)
	if err != nil {
		log.Fatal(err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		log.Fatal(err)
	}
}
