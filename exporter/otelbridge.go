package exporter

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/ashita-ai/kiseki"
)

// OTelBridge replays spans into an OpenTelemetry TracerProvider so existing
// OTel pipelines (collectors, samplers, processors) can consume kiseki spans
// without a separate wire format. Original timestamps and the trace id are
// preserved by starting each replayed span under a remote parent context;
// the SDK assigns the replayed span its own id, linked beneath the kiseki
// span id.
//
// The provider is owned by the caller: Stop flushes it but does not shut it
// down.
type OTelBridge struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewOTelBridge wraps the given provider.
func NewOTelBridge(tp *sdktrace.TracerProvider) *OTelBridge {
	return &OTelBridge{provider: tp, tracer: tp.Tracer("kiseki")}
}

func (e *OTelBridge) Start(context.Context) error { return nil }

func (e *OTelBridge) Stop(ctx context.Context) error {
	return e.provider.ForceFlush(ctx)
}

func (e *OTelBridge) Flush(ctx context.Context) {
	_ = e.provider.ForceFlush(ctx)
}

func (e *OTelBridge) HealthCheck(context.Context) bool { return true }

func (e *OTelBridge) Export(ctx context.Context, sd kiseki.SpanData) bool {
	start, err := time.Parse(time.RFC3339Nano, sd.Timestamp)
	if err != nil {
		start = time.Now()
	}
	end := start.Add(time.Duration(sd.DurationMs * float64(time.Millisecond)))

	// Link under the original ids. Root spans use their own kiseki span id as
	// the remote parent, which keeps the trace id intact across the bridge.
	parentHex := sd.SpanID
	if sd.ParentSpanID != nil {
		parentHex = *sd.ParentSpanID
	}
	if tid, terr := trace.TraceIDFromHex(sd.TraceID); terr == nil {
		if pid, perr := trace.SpanIDFromHex(parentHex); perr == nil {
			psc := trace.NewSpanContext(trace.SpanContextConfig{
				TraceID:    tid,
				SpanID:     pid,
				TraceFlags: trace.FlagsSampled,
				Remote:     true,
			})
			ctx = trace.ContextWithSpanContext(ctx, psc)
		}
	}

	attrs := []attribute.KeyValue{
		attribute.String("gen_ai.span_type", string(sd.SpanType)),
	}
	if sd.WorkflowName != "" {
		attrs = append(attrs, attribute.String("gen_ai.workflow_name", sd.WorkflowName))
	}
	if sd.ModelName != "" {
		attrs = append(attrs, attribute.String("gen_ai.model.name", sd.ModelName))
	}
	if sd.ModelProvider != "" {
		attrs = append(attrs, attribute.String("gen_ai.model.provider", sd.ModelProvider))
	}
	if sd.InputTokens != nil {
		attrs = append(attrs, attribute.Int("gen_ai.usage.input_tokens", *sd.InputTokens))
	}
	if sd.OutputTokens != nil {
		attrs = append(attrs, attribute.Int("gen_ai.usage.output_tokens", *sd.OutputTokens))
	}
	if sd.TotalTokens != nil {
		attrs = append(attrs, attribute.Int("gen_ai.usage.total_tokens", *sd.TotalTokens))
	}
	if sd.EmbeddingModel != "" {
		attrs = append(attrs, attribute.String("gen_ai.embedding.model", sd.EmbeddingModel))
	}
	if sd.VectorStore != "" {
		attrs = append(attrs, attribute.String("gen_ai.vector_store", sd.VectorStore))
	}
	if sd.DocumentsRetrieved != nil {
		attrs = append(attrs, attribute.Int("gen_ai.documents_retrieved", *sd.DocumentsRetrieved))
	}
	if sd.ToolName != "" {
		attrs = append(attrs, attribute.String("gen_ai.tool.name", sd.ToolName))
	}
	if sd.AgentName != "" {
		attrs = append(attrs, attribute.String("gen_ai.agent.name", sd.AgentName))
	}
	if sd.AgentType != "" {
		attrs = append(attrs, attribute.String("gen_ai.agent.type", sd.AgentType))
	}

	_, span := e.tracer.Start(ctx, sd.Name,
		trace.WithTimestamp(start),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	if sd.IsError == 1 {
		span.SetStatus(codes.Error, sd.ErrorMessage)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(end))
	return true
}

func (e *OTelBridge) ExportBatch(ctx context.Context, spans []kiseki.SpanData) bool {
	return exportEach(ctx, spans, e.Export)
}
