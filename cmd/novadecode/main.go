// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/novafc_decoder/internal/app"
	"github.com/relabs-tech/novafc_decoder/internal/config"
	"github.com/relabs-tech/novafc_decoder/internal/ingest"
	"github.com/relabs-tech/novafc_decoder/internal/page"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to configuration file (optional)")
	input := flag.String("input", "", "page dump to decode (default stdin)")
	encoding := flag.String("encoding", "", "page line encoding: base64 or hex")
	jsonOut := flag.Bool("json", false, "print samples as JSON instead of the text report")
	dump := flag.Bool("dump", false, "log every record with its raw fields")
	seriesDir := flag.String("series", "", "write g_load.json and pressures.json into `dir`")
	plotDir := flag.String("plot", "", "write acceleration and pressure plots into `dir`")
	chartPath := flag.String("chart", "", "write an interactive HTML chart to `file`")
	dbPath := flag.String("db", "", "archive the run in the SQLite database at `path`")
	workers := flag.Int("workers", 0, "pages decoded concurrently")
	desync := flag.String("desync", "", "on an unmatched byte: skip or fatal")
	keepGoing := flag.Bool("keep-going", false, "drop pages with fatal errors instead of stopping")
	flag.Parse()

	log.Println("starting novafc decoder")

	if err := config.InitGlobalOptional(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	var flagErr error
	err := config.Update(func(c *config.Config) {
		if set["input"] {
			c.InputPath = *input
		}
		if set["encoding"] {
			enc, err := ingest.ParseEncoding(*encoding)
			if err != nil {
				flagErr = err
				return
			}
			c.InputEncoding = enc
		}
		if set["desync"] {
			p, err := page.ParseDesyncPolicy(*desync)
			if err != nil {
				flagErr = err
				return
			}
			c.DesyncPolicy = p
		}
		if set["series"] {
			c.SeriesDir = *seriesDir
		}
		if set["plot"] {
			c.PlotDir = *plotDir
		}
		if set["chart"] {
			c.ChartPath = *chartPath
		}
		if set["db"] {
			c.DBPath = *dbPath
		}
		if set["workers"] {
			c.DecodeWorkers = *workers
		}
		if *keepGoing {
			c.AbortOnFatal = false
		}
	})
	if flagErr != nil {
		log.Fatalf("invalid flag: %v", flagErr)
	}
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunDecode(ctx, app.DecodeOptions{JSON: *jsonOut, Dump: *dump}); err != nil {
		stop()
		log.Fatalf("fatal: %v", err)
	}
}
