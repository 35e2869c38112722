// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/relabs-tech/novafc_decoder/internal/ingest"
	"github.com/relabs-tech/novafc_decoder/internal/page"
	"github.com/relabs-tech/novafc_decoder/internal/pipeline"
	"github.com/relabs-tech/novafc_decoder/internal/publish"
)

// DefaultPath is the config file the binaries look for in the working directory.
const DefaultPath = "novafc_config.txt"

// Config holds all application configuration values.
type Config struct {
	// Input
	InputPath      string // empty reads stdin
	InputEncoding  ingest.Encoding
	MinLineLength  int
	FirstPageIndex int
	LastPageIndex  int // 0 disables the page limit

	// Decoding
	DesyncPolicy  page.DesyncPolicy
	AbortOnFatal  bool
	DecodeWorkers int

	// Outputs
	DBPath    string // empty disables the run archive
	SeriesDir string
	PlotDir   string
	ChartPath string

	// MQTT
	MQTTBroker            string
	MQTTClientIDPublisher string
	MQTTClientIDConsole   string

	// Topics
	TopicSamples string
	TopicSummary string

	// Serial capture
	SerialPort     string
	SerialBaudRate int

	// Web Server
	WebServerPort    int
	WSReplayInterval int // milliseconds between pages when replaying over websocket
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal, Update and Get.
//   - configOnce: ensures initialization runs once, even if called multiple times.
//   - configMu: RWMutex; write lock for initialization and Update, read lock for Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		InputEncoding:  ingest.EncodingBase64,
		MinLineLength:  ingest.DefaultMinLineLength,
		FirstPageIndex: ingest.DefaultFirstPageIndex,
		LastPageIndex:  ingest.DefaultLastPageIndex,

		DesyncPolicy:  page.DesyncSkip,
		AbortOnFatal:  true,
		DecodeWorkers: 1,

		MQTTBroker:            "tcp://localhost:1883",
		MQTTClientIDPublisher: "novafc-publisher",
		MQTTClientIDConsole:   "novafc-console-subscriber",
		TopicSamples:          "novafc/samples",
		TopicSummary:          "novafc/summary",

		SerialPort:     "/dev/ttyACM0",
		SerialBaudRate: 115200,

		WebServerPort:    8080,
		WSReplayInterval: 20,
	}
}

// Load reads the configuration file on top of the defaults.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		if err := cfg.setValue(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields Default().
func LoadOrDefault(configPath string) (*Config, error) {
	cfg, err := Load(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func parseInt(key, value string, min, max int) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if n < min || n > max {
		return 0, fmt.Errorf("%s must be %d-%d, got %d", key, min, max, n)
	}
	return n, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// Input
	case "INPUT_PATH":
		c.InputPath = value
	case "INPUT_ENCODING":
		c.InputEncoding, err = ingest.ParseEncoding(value)
	case "INPUT_MIN_LINE_LENGTH":
		c.MinLineLength, err = parseInt(key, value, 0, 1<<20)
	case "FIRST_PAGE_INDEX":
		c.FirstPageIndex, err = parseInt(key, value, 0, 1<<30)
	case "LAST_PAGE_INDEX":
		c.LastPageIndex, err = parseInt(key, value, 0, 1<<30)

	// Decoding
	case "DESYNC_POLICY":
		c.DesyncPolicy, err = page.ParseDesyncPolicy(value)
	case "ABORT_ON_FATAL":
		c.AbortOnFatal, err = strconv.ParseBool(value)
		if err != nil {
			err = fmt.Errorf("invalid ABORT_ON_FATAL %q: %w", value, err)
		}
	case "DECODE_WORKERS":
		c.DecodeWorkers, err = parseInt(key, value, 1, 256)

	// Outputs
	case "DB_PATH":
		c.DBPath = value
	case "SERIES_DIR":
		c.SeriesDir = value
	case "PLOT_DIR":
		c.PlotDir = value
	case "CHART_PATH":
		c.ChartPath = value

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PUBLISHER":
		c.MQTTClientIDPublisher = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value

	// Topics
	case "TOPIC_SAMPLES":
		c.TopicSamples = value
	case "TOPIC_SUMMARY":
		c.TopicSummary = value

	// Serial capture
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		c.SerialBaudRate, err = parseInt(key, value, 1, 4000000)

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value, 1, 65535)
	case "WS_REPLAY_INTERVAL":
		c.WSReplayInterval, err = parseInt(key, value, 0, 60000)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.LastPageIndex > 0 && c.LastPageIndex < c.FirstPageIndex {
		return fmt.Errorf("LAST_PAGE_INDEX (%d) is before FIRST_PAGE_INDEX (%d)", c.LastPageIndex, c.FirstPageIndex)
	}
	if c.DecodeWorkers < 1 {
		return fmt.Errorf("DECODE_WORKERS must be at least 1, got %d", c.DecodeWorkers)
	}
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicSamples == "" || c.TopicSummary == "" {
		return fmt.Errorf("TOPIC_SAMPLES and TOPIC_SUMMARY are required")
	}
	return nil
}

// IngestOptions maps the input settings to the page scanner.
func (c *Config) IngestOptions() ingest.Options {
	return ingest.Options{
		MinLineLength:  c.MinLineLength,
		Encoding:       c.InputEncoding,
		FirstPageIndex: c.FirstPageIndex,
		LastPageIndex:  c.LastPageIndex,
	}
}

// PipelineOptions maps the decode settings to a run. Sinks, observer and
// trace are left to the caller.
func (c *Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		Decode:       page.Options{DesyncPolicy: c.DesyncPolicy},
		AbortOnFatal: c.AbortOnFatal,
		Workers:      c.DecodeWorkers,
	}
}

// PublishConfig returns the MQTT settings for the given client ID.
func (c *Config) PublishConfig(clientID string) publish.Config {
	return publish.Config{
		Broker:       c.MQTTBroker,
		ClientID:     clientID,
		TopicSamples: c.TopicSamples,
		TopicSummary: c.TopicSummary,
	}
}

// InitGlobal loads the configuration file once and stores it as the global
// configuration. Safe to call from multiple goroutines.
func InitGlobal(configPath string) error {
	return initGlobal(configPath, Load)
}

// InitGlobalOptional is InitGlobal, falling back to Default() when the file
// does not exist.
func InitGlobalOptional(configPath string) error {
	return initGlobal(configPath, LoadOrDefault)
}

func initGlobal(configPath string, load func(string) (*Config, error)) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = load(configPath)
	})
	return err
}

// Update applies fn to a copy of the global configuration and installs the
// copy if it still validates. Used by binaries to apply command-line flags.
func Update(fn func(*Config)) error {
	configMu.Lock()
	defer configMu.Unlock()
	if globalConfig == nil {
		return errors.New("config: Update called before InitGlobal")
	}
	next := *globalConfig
	fn(&next)
	if err := next.Validate(); err != nil {
		return err
	}
	globalConfig = &next
	return nil
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
