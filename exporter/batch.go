package exporter

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashita-ai/kiseki"
)

// batcher accumulates spans in memory and hands them to a send function when
// either the size threshold or the flush interval is reached. A batch size of
// one (or less) bypasses buffering entirely: every span is sent inline.
//
// Failed batches are dropped, not re-queued — the SDK must never accumulate
// unbounded memory behind a dead backend. The drop is logged with the count.
type batcher struct {
	name     string
	size     int
	interval time.Duration
	logger   *slog.Logger
	send     func(context.Context, []kiseki.SpanData) bool

	mu    sync.Mutex
	spans []kiseki.SpanData

	dropped atomic.Int64

	started    atomic.Bool
	done       chan struct{}
	cancelLoop context.CancelFunc
	drainCtx   context.Context // set by stop so the final flush respects the caller's deadline
}

func newBatcher(name string, size int, interval time.Duration, logger *slog.Logger, send func(context.Context, []kiseki.SpanData) bool) *batcher {
	return &batcher{
		name:     name,
		size:     size,
		interval: interval,
		logger:   logger,
		send:     send,
		done:     make(chan struct{}),
	}
}

// start launches the interval flush loop. Idempotent: extra calls are logged
// and ignored. Unbuffered batchers have no loop to start.
func (b *batcher) start(ctx context.Context) {
	if b.size <= 1 {
		return
	}
	if !b.started.CompareAndSwap(false, true) {
		b.logger.Warn("exporter: batcher already started", "exporter", b.name)
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	b.cancelLoop = cancel
	go b.flushLoop(loopCtx)
}

// add accepts one span. Below the threshold it returns success optimistically;
// reaching the threshold triggers an immediate flush.
func (b *batcher) add(ctx context.Context, sd kiseki.SpanData) bool {
	if b.size <= 1 {
		return b.send(ctx, []kiseki.SpanData{sd})
	}

	b.mu.Lock()
	b.spans = append(b.spans, sd)
	full := len(b.spans) >= b.size
	b.mu.Unlock()

	if full {
		b.flush(ctx)
	}
	return true
}

func (b *batcher) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final flush. ctx is already done, so use the drain context from
			// stop(), falling back to a bounded background context.
			if b.drainCtx != nil {
				b.flush(b.drainCtx)
			} else {
				fallbackCtx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
				b.flush(fallbackCtx)
				cancel()
			}
			close(b.done)
			return
		case <-ticker.C:
			b.flush(ctx)
		}
	}
}

// flush swaps the buffer out under the lock and sends outside it, so slow
// network calls never block concurrent add calls.
func (b *batcher) flush(ctx context.Context) {
	b.mu.Lock()
	if len(b.spans) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.spans
	b.spans = nil
	b.mu.Unlock()

	if !b.send(ctx, batch) {
		b.dropped.Add(int64(len(batch)))
		b.logger.Error("exporter: batch send failed, dropping spans",
			"exporter", b.name, "dropped", len(batch))
		return
	}
	b.logger.Debug("exporter: batch flushed", "exporter", b.name, "batch_size", len(batch))
}

// stop cancels the flush loop and waits for its final flush, bounded by ctx.
func (b *batcher) stop(ctx context.Context) {
	if b.size <= 1 || !b.started.Load() {
		b.flush(ctx)
		return
	}
	b.drainCtx = ctx
	b.cancelLoop()
	select {
	case <-b.done:
	case <-ctx.Done():
		b.logger.Warn("exporter: stop timed out waiting for flush loop", "exporter", b.name)
	}
}

// len reports the current buffer depth.
func (b *batcher) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.spans)
}

// droppedSpans reports the total spans dropped after failed sends.
// A non-zero value indicates data loss.
func (b *batcher) droppedSpans() int64 {
	return b.dropped.Load()
}
