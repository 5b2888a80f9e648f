package exporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ashita-ai/kiseki"
)

// DatadogConfig configures the Datadog trace-agent exporter. APIKey is
// required.
type DatadogConfig struct {
	APIKey        string
	Site          string // default "datadoghq.com"
	ServiceName   string // default "genai-app"
	BatchSize     int    // default 10
	FlushInterval time.Duration
	Logger        *slog.Logger
}

// Datadog ships spans to the Datadog trace intake. Datadog span ids are
// unsigned 64-bit integers, so the 128-bit trace id is truncated to its last
// 16 hex characters.
type Datadog struct {
	apiKey      string
	url         string
	serviceName string
	client      *http.Client
	logger      *slog.Logger
	batch       *batcher
}

// NewDatadog validates the config and builds the exporter.
func NewDatadog(cfg DatadogConfig) (*Datadog, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("exporter: datadog API key is required")
	}

	e := &Datadog{
		apiKey:      cfg.APIKey,
		url:         "https://trace.agent." + strOr(cfg.Site, "datadoghq.com") + "/api/v0.2/traces",
		serviceName: strOr(cfg.ServiceName, "genai-app"),
		client:      newHTTPClient(),
		logger:      orDefault(cfg.Logger),
	}
	e.batch = newBatcher("datadog", intOr(cfg.BatchSize, 10), durOr(cfg.FlushInterval, 5*time.Second), e.logger, e.sendBatch)
	return e, nil
}

func (e *Datadog) Start(ctx context.Context) error {
	e.batch.start(ctx)
	return nil
}

func (e *Datadog) Stop(ctx context.Context) error {
	e.batch.stop(ctx)
	return nil
}

func (e *Datadog) Flush(ctx context.Context) {
	e.batch.flush(ctx)
}

func (e *Datadog) Export(ctx context.Context, sd kiseki.SpanData) bool {
	return e.batch.add(ctx, sd)
}

func (e *Datadog) ExportBatch(ctx context.Context, spans []kiseki.SpanData) bool {
	return e.sendBatch(ctx, spans)
}

// HealthCheck reports healthy: the intake has no unauthenticated probe
// endpoint, and a synthetic trace would pollute real data.
func (e *Datadog) HealthCheck(context.Context) bool { return true }

// hexToUint64 converts the last 16 hex characters of an id to an unsigned
// 64-bit integer. Unparseable input maps to zero rather than failing the
// whole batch.
func hexToUint64(hex string) uint64 {
	if len(hex) > 16 {
		hex = hex[len(hex)-16:]
	}
	v, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return 0
	}
	return v
}

func (e *Datadog) toDatadogSpan(sd kiseki.SpanData) map[string]any {
	ts, err := time.Parse(time.RFC3339Nano, sd.Timestamp)
	if err != nil {
		ts = time.Now()
	}
	startNano := ts.UnixMilli() * 1_000_000
	durationNano := int64(sd.DurationMs * 1_000_000)

	meta := map[string]string{
		"gen_ai.span_type": string(sd.SpanType),
	}
	if sd.WorkflowName != "" {
		meta["gen_ai.workflow_name"] = sd.WorkflowName
	}
	if sd.ModelName != "" {
		meta["gen_ai.model.name"] = sd.ModelName
	}
	if sd.ModelProvider != "" {
		meta["gen_ai.model.provider"] = sd.ModelProvider
	}
	if sd.EmbeddingModel != "" {
		meta["gen_ai.embedding.model"] = sd.EmbeddingModel
	}
	if sd.VectorStore != "" {
		meta["gen_ai.vector_store"] = sd.VectorStore
	}
	if sd.ToolName != "" {
		meta["gen_ai.tool.name"] = sd.ToolName
	}
	if sd.AgentName != "" {
		meta["gen_ai.agent.name"] = sd.AgentName
	}
	if sd.AgentType != "" {
		meta["gen_ai.agent.type"] = sd.AgentType
	}
	if sd.IsError == 1 {
		if sd.ErrorMessage != "" {
			meta["error.message"] = sd.ErrorMessage
		}
		if sd.ErrorType != "" {
			meta["error.type"] = sd.ErrorType
		}
	}

	metrics := map[string]float64{}
	if sd.InputTokens != nil {
		metrics["gen_ai.usage.input_tokens"] = float64(*sd.InputTokens)
	}
	if sd.OutputTokens != nil {
		metrics["gen_ai.usage.output_tokens"] = float64(*sd.OutputTokens)
	}
	if sd.TotalTokens != nil {
		metrics["gen_ai.usage.total_tokens"] = float64(*sd.TotalTokens)
	}
	if sd.DocumentsRetrieved != nil {
		metrics["gen_ai.documents_retrieved"] = float64(*sd.DocumentsRetrieved)
	}

	span := map[string]any{
		"trace_id": hexToUint64(sd.TraceID),
		"span_id":  hexToUint64(sd.SpanID),
		"name":     strings.ToLower(string(sd.SpanType)),
		"resource": sd.Name,
		"service":  e.serviceName,
		"type":     "custom",
		"start":    startNano,
		"duration": durationNano,
		"meta":     meta,
		"metrics":  metrics,
		"error":    sd.IsError,
	}
	if sd.ParentSpanID != nil {
		span["parent_id"] = hexToUint64(*sd.ParentSpanID)
	}
	return span
}

func (e *Datadog) sendBatch(ctx context.Context, spans []kiseki.SpanData) bool {
	if len(spans) == 0 {
		return true
	}

	ddSpans := make([]map[string]any, len(spans))
	for i, sd := range spans {
		ddSpans[i] = e.toDatadogSpan(sd)
	}
	// The intake expects an array of traces, each an array of spans.
	body, err := json.Marshal([][]map[string]any{ddSpans})
	if err != nil {
		e.logger.Error("exporter: datadog encode failed", "error", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, e.url, bytes.NewReader(body))
	if err != nil {
		e.logger.Error("exporter: datadog request failed", "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("DD-API-KEY", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Error("exporter: datadog send failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		e.logger.Error("exporter: datadog rejected batch", "status", resp.StatusCode, "batch_size", len(spans))
		return false
	}
	return true
}
