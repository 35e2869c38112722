// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/novafc_decoder/internal/ingest"
)

// Run processes pages until the channel is closed, ctx is cancelled or a
// fatal page aborts the run. The Result always reflects the pages committed
// so far. Cancellation is only observed between pages.
func (p *Processor) Run(ctx context.Context, pages <-chan ingest.Page) (Result, error) {
	var err error
	if p.opts.Workers > 1 {
		err = p.runParallel(ctx, pages, p.opts.Workers)
	} else {
		err = p.runSequential(ctx, pages)
	}
	if err != nil {
		// let a blocked producer finish
		go func() {
			for range pages {
			}
		}()
	}
	return p.Result(), err
}

// RunAll processes an in-memory page list.
func (p *Processor) RunAll(pages []ingest.Page) (Result, error) {
	ch := make(chan ingest.Page, len(pages))
	for _, pg := range pages {
		ch <- pg
	}
	close(ch)
	return p.Run(context.Background(), ch)
}

func (p *Processor) runSequential(ctx context.Context, pages <-chan ingest.Page) error {
	for seq := 0; ; seq++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		var (
			pg ingest.Page
			ok bool
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pg, ok = <-pages:
		}
		if !ok {
			return nil
		}
		if _, err := p.commit(p.decode(seq, pg)); err != nil {
			return err
		}
	}
}

// runParallel fans pages out to workers and commits the decoded pages in
// arrival order.
func (p *Processor) runParallel(ctx context.Context, pages <-chan ingest.Page, workers int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	type job struct {
		seq int
		pg  ingest.Page
	}
	jobs := make(chan job)
	out := make(chan decoded, workers)

	g.Go(func() error {
		defer close(jobs)
		seq := 0
		for {
			if err := gctx.Err(); err != nil {
				return err
			}
			select {
			case <-gctx.Done():
				return gctx.Err()
			case pg, ok := <-pages:
				if !ok {
					return nil
				}
				select {
				case jobs <- job{seq: seq, pg: pg}:
					seq++
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		}
	})

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for j := range jobs {
				select {
				case out <- p.decode(j.seq, j.pg):
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		wg.Wait()
		close(out)
	}()

	var runErr error
	pending := make(map[int]decoded)
	next := 0
	for d := range out {
		if runErr != nil {
			continue
		}
		pending[d.seq] = d
		for {
			d, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			if err := ctx.Err(); err != nil {
				runErr = err
				break
			}
			if _, err := p.commit(d); err != nil {
				runErr = err
				cancel()
				break
			}
		}
	}

	gerr := g.Wait()
	if runErr != nil {
		return runErr
	}
	if gerr != nil {
		return gerr
	}
	// parent cancellation that raced with the last page
	return ctx.Err()
}
