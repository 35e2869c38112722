// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package publish sends decoded pages and run summaries to an MQTT broker.
package publish

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/novafc_decoder/internal/monitoring"
	"github.com/relabs-tech/novafc_decoder/internal/pipeline"
	"github.com/relabs-tech/novafc_decoder/internal/sample"
	"github.com/relabs-tech/novafc_decoder/internal/stats"
)

// Config names the broker and topics.
type Config struct {
	Broker       string
	ClientID     string
	TopicSamples string
	TopicSummary string
}

// PageMessage is published to the samples topic once per decoded page.
type PageMessage struct {
	RunID   string          `json:"run_id"`
	Page    int             `json:"page"`
	Samples []sample.Sample `json:"samples"`
}

// SummaryMessage is published, retained, to the summary topic at the end of a run.
type SummaryMessage struct {
	RunID       string        `json:"run_id"`
	Pages       int           `json:"pages"`
	FailedPages int           `json:"failed_pages"`
	Summary     stats.Summary `json:"summary"`
}

// client is the part of mqtt.Client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher implements pipeline.SampleSink.
type MQTTPublisher struct {
	c     client
	cfg   Config
	runID string
}

var _ pipeline.SampleSink = (*MQTTPublisher)(nil)

// Connect dials the broker.
func Connect(cfg Config) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID)

	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("publish: connect %s: %w", cfg.Broker, token.Error())
	}
	monitoring.Logf("publish: connected to MQTT broker at %s", cfg.Broker)
	return newPublisher(c, cfg), nil
}

func newPublisher(c client, cfg Config) *MQTTPublisher {
	return &MQTTPublisher{c: c, cfg: cfg}
}

// SetRunID tags subsequent messages with the run they belong to.
func (p *MQTTPublisher) SetRunID(id string) { p.runID = id }

// Publish sends one page's samples.
func (p *MQTTPublisher) Publish(pageIndex int, samples []sample.Sample) error {
	if samples == nil {
		samples = []sample.Sample{}
	}
	return p.send(p.cfg.TopicSamples, false, PageMessage{RunID: p.runID, Page: pageIndex, Samples: samples})
}

// PublishSummary sends the run summary as a retained message.
func (p *MQTTPublisher) PublishSummary(res pipeline.Result) error {
	return p.send(p.cfg.TopicSummary, true, SummaryMessage{
		RunID:       res.RunID,
		Pages:       len(res.Pages),
		FailedPages: res.FailedPages,
		Summary:     res.Summary,
	})
}

func (p *MQTTPublisher) send(topic string, retained bool, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("publish: marshal for %s: %w", topic, err)
	}
	token := p.c.Publish(topic, 0, retained, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("publish: %s: %w", topic, token.Error())
	}
	return nil
}

// Close disconnects, letting in-flight messages drain for 250 ms.
func (p *MQTTPublisher) Close() {
	p.c.Disconnect(250)
}
