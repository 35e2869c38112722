// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/novafc_decoder/internal/config"
	"github.com/relabs-tech/novafc_decoder/internal/db"
	"github.com/relabs-tech/novafc_decoder/internal/ingest"
	"github.com/relabs-tech/novafc_decoder/internal/monitoring"
	"github.com/relabs-tech/novafc_decoder/internal/page"
	"github.com/relabs-tech/novafc_decoder/internal/pipeline"
	"github.com/relabs-tech/novafc_decoder/internal/publish"
	"github.com/relabs-tech/novafc_decoder/internal/report"
	"github.com/relabs-tech/novafc_decoder/internal/sample"
	"github.com/relabs-tech/novafc_decoder/internal/synth"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	if err := config.InitGlobalOptional("testdata-missing-config.txt"); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

// withConfig applies fn to the global config for the duration of the test.
func withConfig(t *testing.T, fn func(c *config.Config)) {
	t.Helper()
	saved := *config.Get()
	require.NoError(t, config.Update(fn))
	t.Cleanup(func() {
		require.NoError(t, config.Update(func(c *config.Config) { *c = saved }))
	})
}

// recordsPerFlightPage is the accel+gyro pairs plus the barometer record.
var recordsPerFlightPage = 2*synth.DefaultFlight.RecordsPerPage + 1

// flightDump is the default flight as the recorder prints it, with the short
// status lines the dump starts with.
func flightDump() string {
	lines := append([]string{"NovaFC recorder dump", "pages: 12"}, synth.DefaultFlight.Lines()...)
	return strings.Join(lines, "\n") + "\n"
}

// badLine is a page long enough to pass the line threshold that stops on an
// unknown doubled tag after 60 accelerometer records.
func badLine() string {
	b := synth.NewPage()
	for i := 0; i < 60; i++ {
		b.Accel(1, 2, 3)
	}
	b.Raw('Z', 'Z')
	return base64.StdEncoding.EncodeToString(b.Bytes())
}

func TestRunDecodeText(t *testing.T) {
	var out bytes.Buffer
	err := RunDecode(context.Background(), DecodeOptions{In: strings.NewReader(flightDump()), Out: &out})
	require.NoError(t, err)

	text := out.String()
	for i := 0; i < synth.DefaultFlight.PageCount; i++ {
		assert.Contains(t, text, fmt.Sprintf("page %d: len %d\n", 64+i, recordsPerFlightPage))
	}
	assert.Contains(t, text, "Max g load ")
	assert.Contains(t, text, "Min pressure ")
	assert.NotContains(t, text, "failed")
}

func TestRunDecodeJSON(t *testing.T) {
	var out bytes.Buffer
	err := RunDecode(context.Background(), DecodeOptions{JSON: true, In: strings.NewReader(flightDump()), Out: &out})
	require.NoError(t, err)

	var samples []sample.Sample
	require.NoError(t, json.Unmarshal(out.Bytes(), &samples))
	assert.Len(t, samples, synth.DefaultFlight.PageCount*recordsPerFlightPage)
	assert.Equal(t, sample.KindHighGAccelerometer, samples[0].Kind())
}

func TestRunDecodeFromInputPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.txt")
	require.NoError(t, os.WriteFile(path, []byte(flightDump()), 0o644))
	withConfig(t, func(c *config.Config) { c.InputPath = path })

	var out bytes.Buffer
	require.NoError(t, RunDecode(context.Background(), DecodeOptions{Out: &out}))
	assert.Contains(t, out.String(), "page 75: len ")
}

func TestRunDecodeMissingInput(t *testing.T) {
	withConfig(t, func(c *config.Config) { c.InputPath = filepath.Join(t.TempDir(), "nope.txt") })
	err := RunDecode(context.Background(), DecodeOptions{Out: io.Discard})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunDecodeWritesArtifactsAndArchive(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "runs.db")
	withConfig(t, func(c *config.Config) {
		c.SeriesDir = filepath.Join(dir, "series")
		c.PlotDir = filepath.Join(dir, "plots")
		c.ChartPath = filepath.Join(dir, "flight.html")
		c.DBPath = dbPath
	})

	err := RunDecode(context.Background(), DecodeOptions{In: strings.NewReader(flightDump()), Out: io.Discard})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "series", report.GLoadFile))
	assert.FileExists(t, filepath.Join(dir, "series", report.PressuresFile))
	assert.FileExists(t, filepath.Join(dir, "plots", report.AccelerationPlot))
	assert.FileExists(t, filepath.Join(dir, "plots", report.PressurePlot))
	chart, err := os.ReadFile(filepath.Join(dir, "flight.html"))
	require.NoError(t, err)
	assert.Contains(t, string(chart), "NovaFC flight")

	archive, err := db.Open(dbPath)
	require.NoError(t, err)
	defer archive.Close()
	runs, err := archive.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "stdin", runs[0].Source)
	assert.Equal(t, "skip", runs[0].DesyncPolicy)
	assert.Equal(t, synth.DefaultFlight.PageCount, runs[0].PageCount)
	assert.Equal(t, synth.DefaultFlight.PageCount*recordsPerFlightPage, runs[0].SampleCount)
}

func TestRunDecodeAbortStillReports(t *testing.T) {
	good := synth.DefaultFlight.Lines()[0]
	in := strings.NewReader(good + "\n" + badLine() + "\n" + good + "\n")

	var out bytes.Buffer
	err := RunDecode(context.Background(), DecodeOptions{In: in, Out: &out})
	require.Error(t, err)
	assert.ErrorIs(t, err, page.ErrFatal)

	text := out.String()
	assert.Contains(t, text, fmt.Sprintf("page 64: len %d\n", recordsPerFlightPage))
	assert.Contains(t, text, "page 65: failed after 60 records")
	assert.NotContains(t, text, "page 66")
	assert.Contains(t, text, "1 of 2 pages failed")
}

func TestRunDecodeKeepGoing(t *testing.T) {
	withConfig(t, func(c *config.Config) { c.AbortOnFatal = false })
	good := synth.DefaultFlight.Lines()[0]
	in := strings.NewReader(good + "\n" + badLine() + "\n" + good + "\n")

	var out bytes.Buffer
	require.NoError(t, RunDecode(context.Background(), DecodeOptions{In: in, Out: &out}))
	text := out.String()
	assert.Contains(t, text, "page 65: failed after 60 records")
	assert.Contains(t, text, fmt.Sprintf("page 66: len %d\n", recordsPerFlightPage))
	assert.Contains(t, text, "1 of 3 pages failed")
}

func TestRunDecodeDump(t *testing.T) {
	var (
		mu   sync.Mutex
		logs []string
	)
	monitoring.SetLogger(func(format string, v ...interface{}) {
		mu.Lock()
		defer mu.Unlock()
		logs = append(logs, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	line := base64.StdEncoding.EncodeToString(synth.NewPage().Accel(0, 0, 5461).Gyro(0, 0, 0).Baro(2000, 100000).Bytes())
	withConfig(t, func(c *config.Config) { c.MinLineLength = 0 })
	require.NoError(t, RunDecode(context.Background(), DecodeOptions{Dump: true, In: strings.NewReader(line), Out: io.Discard}))

	var dumps []string
	for _, l := range logs {
		if strings.HasPrefix(l, "dump: ") {
			dumps = append(dumps, l)
		}
	}
	require.Len(t, dumps, 3)
	assert.True(t, strings.HasPrefix(dumps[0], "dump: page 64 @4 A raw=[0 0 5461]"), dumps[0])
	assert.True(t, strings.HasPrefix(dumps[1], "dump: page 64 @12 G raw=[0 0 0]"), dumps[1])
	assert.Contains(t, dumps[2], "B raw=[2000 100000] temperature=293.15K pressure=100000Pa")
}

func TestRunScannerSurfacesLineError(t *testing.T) {
	proc := pipeline.NewProcessor(pipeline.DefaultOptions())
	sc := ingest.NewScanner(strings.NewReader("not base64 but long enough "+strings.Repeat("!", 500)), ingest.DefaultOptions())
	_, err := runScanner(context.Background(), proc, sc)
	var decErr *ingest.DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, 1, decErr.Line)
}

type fakeSummaryPublisher struct {
	pages   []publish.PageMessage
	summary *pipeline.Result
	runID   string
	closed  bool
}

func (f *fakeSummaryPublisher) Publish(pageIndex int, samples []sample.Sample) error {
	f.pages = append(f.pages, publish.PageMessage{RunID: f.runID, Page: pageIndex, Samples: samples})
	return nil
}
func (f *fakeSummaryPublisher) SetRunID(id string) { f.runID = id }
func (f *fakeSummaryPublisher) PublishSummary(res pipeline.Result) error {
	f.summary = &res
	return nil
}
func (f *fakeSummaryPublisher) Close() { f.closed = true }

func TestRunPublisher(t *testing.T) {
	fake := &fakeSummaryPublisher{}
	var gotCfg publish.Config
	orig := connectPublisher
	connectPublisher = func(cfg publish.Config) (summaryPublisher, error) {
		gotCfg = cfg
		return fake, nil
	}
	t.Cleanup(func() { connectPublisher = orig })

	require.NoError(t, RunPublisher(context.Background(), strings.NewReader(flightDump())))

	assert.Equal(t, "novafc-publisher", gotCfg.ClientID)
	assert.Equal(t, "novafc/samples", gotCfg.TopicSamples)
	require.Len(t, fake.pages, synth.DefaultFlight.PageCount)
	assert.Equal(t, 64, fake.pages[0].Page)
	assert.Len(t, fake.pages[0].Samples, recordsPerFlightPage)
	require.NotNil(t, fake.summary)
	assert.Equal(t, fake.runID, fake.summary.RunID)
	assert.Equal(t, fake.runID, fake.pages[0].RunID)
	assert.True(t, fake.closed)
}

type nopCloser struct{ closed bool }

func (c *nopCloser) Close() error { c.closed = true; return nil }

func TestRunCapture(t *testing.T) {
	port := &nopCloser{}
	var gotCfg ingest.SerialConfig
	orig := openSerial
	openSerial = func(cfg ingest.SerialConfig, opts ingest.Options) (*ingest.Scanner, io.Closer, error) {
		gotCfg = cfg
		return ingest.NewScanner(strings.NewReader(flightDump()), opts), port, nil
	}
	t.Cleanup(func() { openSerial = orig })

	var out bytes.Buffer
	require.NoError(t, RunCapture(context.Background(), &out))
	assert.Equal(t, ingest.SerialConfig{PortName: "/dev/ttyACM0", BaudRate: 115200}, gotCfg)
	assert.Contains(t, out.String(), "page 64: len ")
	assert.Contains(t, out.String(), "Max pressure ")
	assert.True(t, port.closed)
}

func TestRunCaptureOpenError(t *testing.T) {
	orig := openSerial
	openSerial = func(ingest.SerialConfig, ingest.Options) (*ingest.Scanner, io.Closer, error) {
		return nil, nil, os.ErrPermission
	}
	t.Cleanup(func() { openSerial = orig })

	err := RunCapture(context.Background(), io.Discard)
	assert.ErrorIs(t, err, os.ErrPermission)
}

func TestRunDemo(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, RunDemo(context.Background(), &out, 0))

	text := out.String()
	assert.Contains(t, text, "[PAGE   64]")
	assert.Contains(t, text, "[PAGE   75]")
	assert.Contains(t, text, fmt.Sprintf("page 75: len %d\n", recordsPerFlightPage))
	assert.Contains(t, text, "Max g load ")
	// page lines come before the report
	assert.Less(t, strings.Index(text, "[PAGE   75]"), strings.Index(text, "Max g load"))
}

func TestRunDemoCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RunDemo(ctx, io.Discard, 0)
	assert.ErrorIs(t, err, context.Canceled)
}
