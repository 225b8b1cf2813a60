package pool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// supervised runs size goroutines. Each one claims an input, runs a worker
// for it, waits for the worker and records the result before it claims the
// next one.
func (p *Pool) supervised(ctx context.Context, st *state, name string, size int) {
	var g errgroup.Group
	for range size {
		g.Go(func() error {
			for {
				j, ok := st.claim(ctx)
				if !ok {
					return nil
				}
				w, err := p.start(ctx, name, j)
				if err != nil {
					p.record(ctx, st, failed(j, err))
					continue
				}
				p.record(ctx, st, w.wait(ctx))
			}
		})
	}
	_ = g.Wait()
}

// direct starts size workers and replaces every worker which exits with a
// worker for the next input, until the backlog is empty. Workers are
// started from the calling goroutine only; the exited ones report on a
// shared channel.
func (p *Pool) direct(ctx context.Context, st *state, name string, size int) {
	exited := make(chan Result, size)

	spawn := func() {
		for {
			j, ok := st.claim(ctx)
			if !ok {
				return
			}
			w, err := p.start(ctx, name, j)
			if err != nil {
				p.record(ctx, st, failed(j, err))
				continue
			}
			go func() {
				exited <- w.wait(ctx)
			}()
			return
		}
	}

	for range size {
		spawn()
	}
	for st.running() > 0 {
		r := <-exited
		p.record(ctx, st, r)
		spawn()
	}
}
