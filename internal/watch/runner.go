package watch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// RenderFunc renders the layer from the current input files. It must
// return promptly once ctx is canceled.
type RenderFunc func(ctx context.Context) error

// runner starts one render per trigger. A new trigger cancels the render in
// flight and waits for it to return before starting, so at most one render
// writes output at a time and the last trigger always gets a full run.
type runner struct {
	parent context.Context
	render RenderFunc
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{} // closed when the latest render returns
	runs   int
	wg     sync.WaitGroup
}

func newRunner(parent context.Context, render RenderFunc, logger *slog.Logger) *runner {
	return &runner{parent: parent, render: render, logger: logger}
}

func (r *runner) trigger(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.parent.Err() != nil {
		return
	}
	if r.cancel != nil {
		r.cancel()
	}
	ctx, cancel := context.WithCancel(r.parent)
	prev := r.done
	done := make(chan struct{})
	r.cancel, r.done = cancel, done
	r.runs++
	run := r.runs

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(done)
		defer cancel()
		if prev != nil {
			<-prev
		}
		if ctx.Err() != nil {
			r.logger.Debug("render superseded before start", "run", run)
			return
		}

		start := time.Now()
		r.logger.Info("rendering", "run", run, "trigger", reason)
		err := r.render(ctx)
		switch {
		case err == nil:
			r.logger.Info("render finished", "run", run, "elapsed", time.Since(start).Round(time.Millisecond))
		case errors.Is(err, context.Canceled):
			r.logger.Debug("render canceled", "run", run)
		default:
			r.logger.Error("render failed", "run", run, "error", err)
		}
	}()
}

// stop cancels the render in flight and waits for all renders to return.
func (r *runner) stop() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
	r.wg.Wait()
}
