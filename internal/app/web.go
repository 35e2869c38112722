// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relabs-tech/novafc_decoder/internal/config"
	"github.com/relabs-tech/novafc_decoder/internal/db"
	"github.com/relabs-tech/novafc_decoder/internal/ingest"
	"github.com/relabs-tech/novafc_decoder/internal/metrics"
	"github.com/relabs-tech/novafc_decoder/internal/pipeline"
	"github.com/relabs-tech/novafc_decoder/internal/publish"
	"github.com/relabs-tech/novafc_decoder/internal/report"
	"github.com/relabs-tech/novafc_decoder/internal/sample"
	"github.com/relabs-tech/novafc_decoder/internal/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// webServer serves one run. Handlers answer 503 until setRun is called.
type webServer struct {
	mu     sync.RWMutex
	loaded bool
	res    pipeline.Result
	store  *store.Store

	reg            *prometheus.Registry
	replayInterval time.Duration
}

func newWebServer(reg *prometheus.Registry, replayInterval time.Duration) *webServer {
	return &webServer{reg: reg, replayInterval: replayInterval}
}

func (s *webServer) setRun(res pipeline.Result, st *store.Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.res = res
	s.store = st
	s.loaded = true
}

func (s *webServer) run() (pipeline.Result, *store.Store, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.res, s.store, s.loaded
}

// RunWeb loads a run in the background and serves it: decoded from
// INPUT_PATH when set, otherwise the newest run archived in DB_PATH.
func RunWeb(ctx context.Context) error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("web: %w", errNoConfig)
	}
	if cfg.InputPath == "" && cfg.DBPath == "" {
		return errors.New("web: INPUT_PATH or DB_PATH is required")
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	srv := newWebServer(reg, time.Duration(cfg.WSReplayInterval)*time.Millisecond)

	go func() {
		if err := srv.load(ctx, cfg, m); err != nil {
			log.Printf("web: load run: %v", err)
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	httpSrv := &http.Server{Addr: addr, Handler: srv.handler()}
	go func() {
		<-ctx.Done()
		httpSrv.Close()
	}()

	log.Printf("web: server listening on %s", addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// load decodes the input file, or reads the latest archived run.
func (s *webServer) load(ctx context.Context, cfg *config.Config, m *metrics.Metrics) error {
	if cfg.InputPath != "" {
		in, source, err := openInput(cfg, nil)
		if err != nil {
			return err
		}
		defer in.Close()

		opts := cfg.PipelineOptions()
		opts.Observer = m
		proc := pipeline.NewProcessor(opts)
		res, err := runScanner(ctx, proc, ingest.NewScanner(in, cfg.IngestOptions()))
		m.ObserveRun(err)
		// an aborted run is still shown up to the failed page
		s.setRun(res, proc.Store())
		log.Printf("web: run %s decoded from %s: %d pages, %d samples", res.RunID, source, len(res.Pages), len(res.Samples))
		return err
	}

	archive, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer archive.Close()

	latest, err := archive.LatestRun()
	if err != nil {
		return err
	}
	res, err := archive.LoadResult(latest.RunID)
	if err != nil {
		return err
	}
	st, err := storeFromResult(res)
	if err != nil {
		return err
	}
	s.setRun(res, st)
	log.Printf("web: run %s loaded from %s: %d pages, %d samples", res.RunID, cfg.DBPath, len(res.Pages), len(res.Samples))
	return nil
}

// storeFromResult splits the run's samples back into pages. Failed pages
// contributed no samples.
func storeFromResult(res pipeline.Result) (*store.Store, error) {
	st := store.New()
	next := 0
	for _, pr := range res.Pages {
		if pr.Err != nil {
			continue
		}
		end := next + pr.Records
		if end > len(res.Samples) {
			return nil, fmt.Errorf("web: page %d needs %d samples, run has %d", pr.Index, end, len(res.Samples))
		}
		if err := st.AppendPage(pr.Index, res.Samples[next:end]); err != nil {
			return nil, err
		}
		next = end
	}
	if next != len(res.Samples) {
		return nil, fmt.Errorf("web: pages account for %d of %d samples", next, len(res.Samples))
	}
	return st, nil
}

func (s *webServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/summary", s.handleSummary)
	mux.HandleFunc("/api/samples", s.handleSamples)
	mux.HandleFunc("/chart", s.handleChart)
	mux.HandleFunc("/ws", s.handleWS)
	mux.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))
	mux.Handle("/", http.RedirectHandler("/chart", http.StatusFound))
	return mux
}

func (s *webServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	res, _, ok := s.run()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, publish.SummaryMessage{
		RunID:       res.RunID,
		Pages:       len(res.Pages),
		FailedPages: res.FailedPages,
		Summary:     res.Summary,
	})
}

// handleSamples returns every sample, or one kind with ?kind=gyro.
func (s *webServer) handleSamples(w http.ResponseWriter, r *http.Request) {
	_, st, ok := s.run()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}

	var samples []sample.Sample
	if name := r.URL.Query().Get("kind"); name != "" {
		kind, err := sample.ParseKind(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		samples = st.Filter(kind)
	} else {
		samples = st.Samples()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := report.WriteSamplesJSON(w, samples); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

func (s *webServer) handleChart(w http.ResponseWriter, r *http.Request) {
	_, st, ok := s.run()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.WriteChart(w, st.Samples()); err != nil {
		log.Printf("web: chart error: %v", err)
	}
}

// handleWS replays the run one page message at a time, then closes.
func (s *webServer) handleWS(w http.ResponseWriter, r *http.Request) {
	res, st, ok := s.run()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	// the client never sends; reading only detects it going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("web: websocket error: %v", err)
				}
				return
			}
		}
	}()

	var tick <-chan time.Time
	if s.replayInterval > 0 {
		ticker := time.NewTicker(s.replayInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for i, span := range st.Spans() {
		if i > 0 && tick != nil {
			select {
			case <-tick:
			case <-gone:
				return
			}
		}
		samples, _ := st.Page(span.Page)
		msg := publish.PageMessage{RunID: res.RunID, Page: span.Page, Samples: samples}
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("web: websocket write error: %v", err)
			return
		}
	}

	closing := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "end of run")
	if err := conn.WriteControl(websocket.CloseMessage, closing, time.Now().Add(time.Second)); err != nil {
		return
	}
	select {
	case <-gone:
	case <-time.After(time.Second):
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}
