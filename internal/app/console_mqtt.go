// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/novafc_decoder/internal/config"
	"github.com/relabs-tech/novafc_decoder/internal/publish"
	"github.com/relabs-tech/novafc_decoder/internal/sample"
	"github.com/relabs-tech/novafc_decoder/internal/stats"
)

// RunConsoleMQTT prints every page and summary a publisher sends until
// interrupted.
func RunConsoleMQTT() error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("console: %w", errNoConfig)
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	samplesToken := client.Subscribe(cfg.TopicSamples, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var m publish.PageMessage
		if err := json.Unmarshal(msg.Payload(), &m); err != nil {
			log.Printf("console: page unmarshal error: %v", err)
			return
		}
		fmt.Println(formatPage(m))
	})
	samplesToken.Wait()
	if samplesToken.Error() != nil {
		return samplesToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicSamples)

	summaryToken := client.Subscribe(cfg.TopicSummary, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var m publish.SummaryMessage
		if err := json.Unmarshal(msg.Payload(), &m); err != nil {
			log.Printf("console: summary unmarshal error: %v", err)
			return
		}
		fmt.Print(formatSummary(m))
	})
	summaryToken.Wait()
	if summaryToken.Error() != nil {
		return summaryToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicSummary)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}

// formatPage renders one page as a single line: sample counts per kind and
// the page's peak acceleration.
func formatPage(m publish.PageMessage) string {
	agg := stats.New()
	agg.AddAll(m.Samples)

	var b strings.Builder
	fmt.Fprintf(&b, "[PAGE %4d] run=%s len=%d", m.Page, shortID(m.RunID), len(m.Samples))
	counts := agg.Counts()
	for _, k := range sample.Kinds {
		fmt.Fprintf(&b, " %s=%d", k, counts[k])
	}
	if g, err := agg.MaxAccelMagnitude(); err == nil {
		fmt.Fprintf(&b, " max_g=%.3f", g)
	}
	return b.String()
}

// formatSummary renders the end-of-run summary as indented lines.
func formatSummary(m publish.SummaryMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[SUMMARY] run=%s pages=%d failed=%d samples=%d\n",
		shortID(m.RunID), m.Pages, m.FailedPages, m.Summary.Samples)
	series := func(name, unit string, s *stats.Series) {
		if s == nil {
			fmt.Fprintf(&b, "  %-8s n/a\n", name)
			return
		}
		fmt.Fprintf(&b, "  %-8s min=%.3f%s max=%.3f%s mean=%.3f%s\n",
			name, s.Min, unit, s.Max, unit, s.Mean, unit)
	}
	series("g load", "g", m.Summary.GLoad)
	series("pressure", "Pa", m.Summary.Pressure)
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
