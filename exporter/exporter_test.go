package exporter

import (
	"context"
	"sync"

	"github.com/ashita-ai/kiseki"
)

// testSpan builds a representative LLM span for payload tests.
func testSpan(name string) kiseki.SpanData {
	return kiseki.NewBuilder().
		TraceID("0123456789abcdef0123456789abcdef").
		SpanID("fedcba9876543210").
		Name(name).
		Type(kiseki.SpanTypeLLM).
		Workflow("test-wf").
		Timestamp("2026-08-27T10:00:00.5Z").
		DurationMs(123.45).
		ModelName("gpt-4o").
		ModelProvider("openai").
		InputTokens(100).
		OutputTokens(50).
		Build()
}

// stubExporter is a configurable in-memory sink for Multi tests.
type stubExporter struct {
	mu      sync.Mutex
	ok      bool
	healthy bool
	spans   []kiseki.SpanData
	started int
	stopped int
	flushed int
}

func (s *stubExporter) Export(_ context.Context, sd kiseki.SpanData) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spans = append(s.spans, sd)
	return s.ok
}

func (s *stubExporter) ExportBatch(_ context.Context, spans []kiseki.SpanData) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spans = append(s.spans, spans...)
	return s.ok
}

func (s *stubExporter) Start(context.Context) error      { s.started++; return nil }
func (s *stubExporter) Stop(context.Context) error       { s.stopped++; return nil }
func (s *stubExporter) Flush(context.Context)            { s.flushed++ }
func (s *stubExporter) HealthCheck(context.Context) bool { return s.healthy }

func (s *stubExporter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.spans)
}
