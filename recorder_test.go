package kiseki

import (
	"context"
	"sync"
)

// recorder is an in-memory Exporter used across the package tests.
type recorder struct {
	mu      sync.Mutex
	spans   []SpanData
	batches [][]SpanData
	ok      bool
	started int
	stopped int
	flushed int
}

func newRecorder() *recorder { return &recorder{ok: true} }

func (r *recorder) Export(_ context.Context, sd SpanData) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = append(r.spans, sd)
	return r.ok
}

func (r *recorder) ExportBatch(_ context.Context, spans []SpanData) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, spans)
	r.spans = append(r.spans, spans...)
	return r.ok
}

func (r *recorder) Start(context.Context) error { r.started++; return nil }
func (r *recorder) Stop(context.Context) error  { r.stopped++; return nil }
func (r *recorder) Flush(context.Context)       { r.flushed++ }
func (r *recorder) HealthCheck(context.Context) bool {
	return true
}

func (r *recorder) recorded() []SpanData {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SpanData, len(r.spans))
	copy(out, r.spans)
	return out
}

func (r *recorder) last() SpanData {
	spans := r.recorded()
	return spans[len(spans)-1]
}
