package exporter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ashita-ai/kiseki"
)

// OTLPConfig configures the OTLP/HTTP JSON exporter. The payload is built by
// hand rather than through an OTel SDK pipeline because kiseki ids and
// timestamps are already assigned when the span reaches the exporter; see
// OTelBridge for feeding spans into an SDK TracerProvider instead.
type OTLPConfig struct {
	Endpoint      string            // default "http://localhost:4318"; /v1/traces appended when missing
	Headers       map[string]string // extra request headers (auth tokens etc.)
	ServiceName   string            // default "genai-app"
	BatchSize     int               // default 10
	FlushInterval time.Duration
	Logger        *slog.Logger
}

// OTLP ships spans to any OpenTelemetry collector as OTLP/HTTP JSON.
type OTLP struct {
	endpoint    string
	headers     map[string]string
	serviceName string
	client      *http.Client
	logger      *slog.Logger
	batch       *batcher
}

// NewOTLP builds the exporter.
func NewOTLP(cfg OTLPConfig) *OTLP {
	endpoint := strings.TrimRight(strOr(cfg.Endpoint, "http://localhost:4318"), "/")
	if !strings.Contains(endpoint, "/v1/traces") {
		endpoint += "/v1/traces"
	}

	e := &OTLP{
		endpoint:    endpoint,
		headers:     cfg.Headers,
		serviceName: strOr(cfg.ServiceName, "genai-app"),
		client:      newHTTPClient(),
		logger:      orDefault(cfg.Logger),
	}
	e.batch = newBatcher("otlp", intOr(cfg.BatchSize, 10), durOr(cfg.FlushInterval, 5*time.Second), e.logger, e.sendBatch)
	return e
}

func (e *OTLP) Start(ctx context.Context) error {
	e.batch.start(ctx)
	return nil
}

func (e *OTLP) Stop(ctx context.Context) error {
	e.batch.stop(ctx)
	return nil
}

func (e *OTLP) Flush(ctx context.Context) {
	e.batch.flush(ctx)
}

func (e *OTLP) Export(ctx context.Context, sd kiseki.SpanData) bool {
	return e.batch.add(ctx, sd)
}

func (e *OTLP) ExportBatch(ctx context.Context, spans []kiseki.SpanData) bool {
	return e.sendBatch(ctx, spans)
}

// HealthCheck reports healthy: collectors expose no standard probe on the
// traces endpoint.
func (e *OTLP) HealthCheck(context.Context) bool { return true }

type otlpAttr struct {
	Key   string         `json:"key"`
	Value map[string]any `json:"value"`
}

func appendAttr(attrs []otlpAttr, key string, value any) []otlpAttr {
	if value == nil {
		return attrs
	}
	var wrapped map[string]any
	switch v := value.(type) {
	case string:
		if v == "" {
			return attrs
		}
		wrapped = map[string]any{"stringValue": v}
	case *int:
		if v == nil {
			return attrs
		}
		// OTLP JSON carries 64-bit ints as strings.
		wrapped = map[string]any{"intValue": strconv.Itoa(*v)}
	case int:
		wrapped = map[string]any{"intValue": strconv.Itoa(v)}
	case float64:
		wrapped = map[string]any{"doubleValue": v}
	default:
		return attrs
	}
	return append(attrs, otlpAttr{Key: key, Value: wrapped})
}

func strAttr(key, value string) otlpAttr {
	return otlpAttr{Key: key, Value: map[string]any{"stringValue": value}}
}

func (e *OTLP) toOTLPSpan(sd kiseki.SpanData) map[string]any {
	ts, err := time.Parse(time.RFC3339Nano, sd.Timestamp)
	if err != nil {
		ts = time.Now()
	}
	startNano := ts.UnixMilli() * 1_000_000
	endNano := startNano + int64(sd.DurationMs*1_000_000)

	var attrs []otlpAttr
	attrs = appendAttr(attrs, "gen_ai.span_type", string(sd.SpanType))
	attrs = appendAttr(attrs, "gen_ai.workflow_name", sd.WorkflowName)
	attrs = appendAttr(attrs, "gen_ai.model.name", sd.ModelName)
	attrs = appendAttr(attrs, "gen_ai.model.provider", sd.ModelProvider)
	attrs = appendAttr(attrs, "gen_ai.usage.input_tokens", sd.InputTokens)
	attrs = appendAttr(attrs, "gen_ai.usage.output_tokens", sd.OutputTokens)
	attrs = appendAttr(attrs, "gen_ai.usage.total_tokens", sd.TotalTokens)
	attrs = appendAttr(attrs, "gen_ai.embedding.model", sd.EmbeddingModel)
	attrs = appendAttr(attrs, "gen_ai.vector_store", sd.VectorStore)
	attrs = appendAttr(attrs, "gen_ai.documents_retrieved", sd.DocumentsRetrieved)
	attrs = appendAttr(attrs, "gen_ai.tool.name", sd.ToolName)
	attrs = appendAttr(attrs, "gen_ai.agent.name", sd.AgentName)
	attrs = appendAttr(attrs, "gen_ai.agent.type", sd.AgentType)
	if sd.IsError == 1 {
		attrs = appendAttr(attrs, "error.message", sd.ErrorMessage)
		attrs = appendAttr(attrs, "error.type", sd.ErrorType)
	}

	statusCode := 1 // STATUS_CODE_OK
	if sd.IsError == 1 {
		statusCode = 2 // STATUS_CODE_ERROR
	}

	span := map[string]any{
		"traceId":           sd.TraceID,
		"spanId":            sd.SpanID,
		"name":              sd.Name,
		"kind":              1, // SPAN_KIND_INTERNAL
		"startTimeUnixNano": strconv.FormatInt(startNano, 10),
		"endTimeUnixNano":   strconv.FormatInt(endNano, 10),
		"attributes":        attrs,
		"status": map[string]any{
			"code":    statusCode,
			"message": sd.ErrorMessage,
		},
	}
	if sd.ParentSpanID != nil {
		span["parentSpanId"] = *sd.ParentSpanID
	}
	return span
}

func (e *OTLP) sendBatch(ctx context.Context, spans []kiseki.SpanData) bool {
	if len(spans) == 0 {
		return true
	}

	otlpSpans := make([]map[string]any, len(spans))
	for i, sd := range spans {
		otlpSpans[i] = e.toOTLPSpan(sd)
	}

	payload := map[string]any{
		"resourceSpans": []map[string]any{{
			"resource": map[string]any{
				"attributes": []otlpAttr{
					strAttr("service.name", e.serviceName),
					strAttr("telemetry.sdk.name", "kiseki"),
					strAttr("telemetry.sdk.language", "go"),
				},
			},
			"scopeSpans": []map[string]any{{
				"scope": map[string]any{"name": "kiseki"},
				"spans": otlpSpans,
			}},
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		e.logger.Error("exporter: otlp encode failed", "error", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		e.logger.Error("exporter: otlp request failed", "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range e.headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Error("exporter: otlp send failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		e.logger.Error("exporter: otlp rejected batch", "status", resp.StatusCode, "batch_size", len(spans))
		return false
	}
	return true
}
