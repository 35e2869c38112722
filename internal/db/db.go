// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package db archives decode runs in sqlite so a flight can be reloaded and
// viewed without the original dump.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/relabs-tech/novafc_decoder/internal/pipeline"
	"github.com/relabs-tech/novafc_decoder/internal/sample"
	"github.com/relabs-tech/novafc_decoder/internal/stats"
)

// ErrRunNotFound is returned when a run ID is not in the archive.
var ErrRunNotFound = errors.New("db: run not found")

// DB is the run archive.
type DB struct {
	*sql.DB
}

// createdLayout sorts lexically in time order.
const createdLayout = "2006-01-02T15:04:05.000000000Z07:00"

// now is replaced in tests.
var now = func() time.Time { return time.Now().UTC() }

// Open opens (creating if needed) the archive at path and migrates it to the
// latest schema.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", path, err)
	}
	// one connection so the pragmas below apply to every statement
	sqlDB.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("db: %s: %w", pragma, err)
		}
	}
	db := &DB{sqlDB}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// RunMeta describes where a run came from.
type RunMeta struct {
	Source       string // input file, serial port or "demo"
	DesyncPolicy string
}

// Run is one archived run.
type Run struct {
	RunID        string
	Source       string
	DesyncPolicy string
	PageCount    int
	FailedPages  int
	SampleCount  int
	CreatedAt    time.Time
}

// SaveRun stores the run, its page results and samples in one transaction.
func (db *DB) SaveRun(res pipeline.Result, meta RunMeta) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("db: begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.Exec(`INSERT INTO runs (run_id, source, desync_policy, page_count, failed_pages, sample_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, meta.Source, meta.DesyncPolicy, len(res.Pages), res.FailedPages, len(res.Samples),
		now().Format(createdLayout))
	if err != nil {
		return fmt.Errorf("db: insert run %s: %w", res.RunID, err)
	}

	pageStmt, err := tx.Prepare(`INSERT INTO pages (run_id, seq, page_index, line, records, skipped_bytes, trailing_bytes, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("db: prepare pages: %w", err)
	}
	defer pageStmt.Close()

	// samples of failed pages were never committed, so walk committed pages only
	var committed []int
	for seq, pr := range res.Pages {
		var errText sql.NullString
		if pr.Err != nil {
			errText = sql.NullString{String: pr.Err.Error(), Valid: true}
		} else {
			for i := 0; i < pr.Records; i++ {
				committed = append(committed, pr.Index)
			}
		}
		if _, err = pageStmt.Exec(res.RunID, seq, pr.Index, pr.Line, pr.Records, pr.SkippedBytes, pr.TrailingBytes, errText); err != nil {
			return fmt.Errorf("db: insert page %d: %w", pr.Index, err)
		}
	}
	if len(committed) != len(res.Samples) {
		return fmt.Errorf("db: run %s has %d samples but its pages account for %d", res.RunID, len(res.Samples), len(committed))
	}

	sampleStmt, err := tx.Prepare(`INSERT INTO samples (run_id, seq, page_index, kind, ticks, x, y, z, temperature, pressure)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("db: prepare samples: %w", err)
	}
	defer sampleStmt.Close()

	for seq, s := range res.Samples {
		var x, y, z, temp, press sql.NullFloat64
		switch d := s.Data.(type) {
		case sample.HighGAccelerometer:
			x, y, z = valid(d.X), valid(d.Y), valid(d.Z)
		case sample.Gyro:
			x, y, z = valid(d.X), valid(d.Y), valid(d.Z)
		case sample.Barometer:
			temp, press = valid(d.Temperature), valid(d.Pressure)
		default:
			panic(fmt.Sprintf("db: unhandled sample kind %T", s.Data))
		}
		if _, err = sampleStmt.Exec(res.RunID, seq, committed[seq], s.Kind().String(), s.TicksSinceLastMessage, x, y, z, temp, press); err != nil {
			return fmt.Errorf("db: insert sample %d: %w", seq, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("db: commit run %s: %w", res.RunID, err)
	}
	return nil
}

func valid(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

// GetRun returns one run's metadata.
func (db *DB) GetRun(runID string) (Run, error) {
	row := db.QueryRow(`SELECT run_id, source, desync_policy, page_count, failed_pages, sample_count, created_at
		FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return r, err
}

// ListRuns returns every run, newest first.
func (db *DB) ListRuns() ([]Run, error) {
	rows, err := db.Query(`SELECT run_id, source, desync_policy, page_count, failed_pages, sample_count, created_at
		FROM runs ORDER BY created_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("db: list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LatestRun returns the most recently saved run.
func (db *DB) LatestRun() (Run, error) {
	runs, err := db.ListRuns()
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, ErrRunNotFound
	}
	return runs[0], nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r       Run
		created string
	)
	if err := s.Scan(&r.RunID, &r.Source, &r.DesyncPolicy, &r.PageCount, &r.FailedPages, &r.SampleCount, &created); err != nil {
		return Run{}, err
	}
	t, err := time.Parse(createdLayout, created)
	if err != nil {
		return Run{}, fmt.Errorf("db: run %s created_at %q: %w", r.RunID, created, err)
	}
	r.CreatedAt = t
	return r, nil
}

// LoadSamples returns a run's samples in decode order.
func (db *DB) LoadSamples(runID string) ([]sample.Sample, error) {
	rows, err := db.Query(`SELECT kind, ticks, x, y, z, temperature, pressure
		FROM samples WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("db: load samples: %w", err)
	}
	defer rows.Close()

	var out []sample.Sample
	for rows.Next() {
		var (
			kindName             string
			ticks                uint32
			x, y, z, temp, press sql.NullFloat64
		)
		if err := rows.Scan(&kindName, &ticks, &x, &y, &z, &temp, &press); err != nil {
			return nil, fmt.Errorf("db: scan sample: %w", err)
		}
		kind, err := sample.ParseKind(kindName)
		if err != nil {
			return nil, fmt.Errorf("db: %w", err)
		}
		var d sample.Data
		switch kind {
		case sample.KindHighGAccelerometer:
			d = sample.HighGAccelerometer{X: x.Float64, Y: y.Float64, Z: z.Float64}
		case sample.KindGyro:
			d = sample.Gyro{X: x.Float64, Y: y.Float64, Z: z.Float64}
		case sample.KindBarometer:
			d = sample.Barometer{Temperature: temp.Float64, Pressure: press.Float64}
		default:
			panic(fmt.Sprintf("db: unhandled sample kind %d", uint8(kind)))
		}
		out = append(out, sample.Sample{TicksSinceLastMessage: ticks, Data: d})
	}
	return out, rows.Err()
}

// storedPageError stands in for a page error reloaded from the archive.
type storedPageError struct{ msg string }

func (e *storedPageError) Error() string { return e.msg }

// LoadPages returns a run's page results in processing order. Page errors
// come back as opaque errors carrying the stored message.
func (db *DB) LoadPages(runID string) ([]pipeline.PageResult, error) {
	rows, err := db.Query(`SELECT page_index, line, records, skipped_bytes, trailing_bytes, error
		FROM pages WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("db: load pages: %w", err)
	}
	defer rows.Close()

	var out []pipeline.PageResult
	for rows.Next() {
		var (
			pr      pipeline.PageResult
			errText sql.NullString
		)
		if err := rows.Scan(&pr.Index, &pr.Line, &pr.Records, &pr.SkippedBytes, &pr.TrailingBytes, &errText); err != nil {
			return nil, fmt.Errorf("db: scan page: %w", err)
		}
		if errText.Valid {
			pr.Err = &storedPageError{msg: errText.String}
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

// LoadResult rebuilds a pipeline.Result from the archive.
func (db *DB) LoadResult(runID string) (pipeline.Result, error) {
	run, err := db.GetRun(runID)
	if err != nil {
		return pipeline.Result{}, err
	}
	pages, err := db.LoadPages(runID)
	if err != nil {
		return pipeline.Result{}, err
	}
	samples, err := db.LoadSamples(runID)
	if err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.Result{
		RunID:       run.RunID,
		Pages:       pages,
		Samples:     samples,
		Summary:     stats.Reduce(samples),
		FailedPages: run.FailedPages,
	}, nil
}
