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
	"time"

	"github.com/relabs-tech/novafc_decoder/internal/app"
	"github.com/relabs-tech/novafc_decoder/internal/config"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to configuration file (optional)")
	interval := flag.Duration("interval", 100*time.Millisecond, "delay between synthetic pages")
	flag.Parse()

	log.Println("starting novafc demo (synthetic flight, no hardware)")

	if err := config.InitGlobalOptional(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunDemo(ctx, os.Stdout, *interval); err != nil {
		stop()
		log.Fatalf("fatal: %v", err)
	}
}
