package kiseki

import "context"

// Exporter delivers finished spans to a backend.
//
// Delivery follows a swallow-and-report policy: transport failures never
// surface as errors to tracing call sites. Export and ExportBatch return
// whether delivery (or buffering) succeeded; failures are logged inside the
// exporter and the spans are dropped. Only configuration problems are errors,
// and those are returned by the exporter's constructor or by Start.
type Exporter interface {
	// Export delivers a single span. Buffering exporters may report success
	// optimistically once the span is accepted into the buffer.
	Export(ctx context.Context, span SpanData) bool

	// ExportBatch delivers several spans in one call. Exporters without a
	// native batch wire format deliver individually and report success only
	// when every span succeeded.
	ExportBatch(ctx context.Context, spans []SpanData) bool

	// Start acquires resources and launches background work. Call once.
	Start(ctx context.Context) error

	// Stop flushes buffered spans and releases resources, bounded by ctx.
	// Call once; the exporter is unusable afterwards.
	Stop(ctx context.Context) error

	// Flush forces buffered spans out without stopping.
	Flush(ctx context.Context)

	// HealthCheck probes backend reachability. Exporters with no meaningful
	// probe report healthy.
	HealthCheck(ctx context.Context) bool
}

// TokenReporter lets result types expose their token usage directly, taking
// priority over the shape-based extraction in ExtractTokens.
type TokenReporter interface {
	TokenUsage() (input, output int)
}
