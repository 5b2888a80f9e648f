package exporter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kiseki"
)

func TestOTLPPayload(t *testing.T) {
	var gotPath, gotHeader string
	var payload map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeader = r.Header.Get("X-Auth")
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := NewOTLP(OTLPConfig{
		Endpoint:    srv.URL,
		Headers:     map[string]string{"X-Auth": "tok"},
		ServiceName: "my-service",
	})
	require.True(t, e.ExportBatch(context.Background(), []kiseki.SpanData{testSpan("llm_call")}))

	assert.Equal(t, "/v1/traces", gotPath)
	assert.Equal(t, "tok", gotHeader)

	rs := payload["resourceSpans"].([]any)[0].(map[string]any)
	resAttrs := rs["resource"].(map[string]any)["attributes"].([]any)
	names := map[string]string{}
	for _, a := range resAttrs {
		attr := a.(map[string]any)
		names[attr["key"].(string)] = attr["value"].(map[string]any)["stringValue"].(string)
	}
	assert.Equal(t, "my-service", names["service.name"])
	assert.Equal(t, "kiseki", names["telemetry.sdk.name"])
	assert.Equal(t, "go", names["telemetry.sdk.language"])

	span := rs["scopeSpans"].([]any)[0].(map[string]any)["spans"].([]any)[0].(map[string]any)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", span["traceId"])
	assert.Equal(t, "fedcba9876543210", span["spanId"])
	assert.Equal(t, "llm_call", span["name"])
	assert.Equal(t, float64(1), span["kind"])

	// 2026-08-27T10:00:00.5Z truncated to millis, then in nanos.
	start := time.Date(2026, 8, 27, 10, 0, 0, 500_000_000, time.UTC)
	wantStart := strconv.FormatInt(start.UnixMilli()*1_000_000, 10)
	assert.Equal(t, wantStart, span["startTimeUnixNano"])
	wantEnd := strconv.FormatInt(start.UnixMilli()*1_000_000+int64(123.45*1_000_000), 10)
	assert.Equal(t, wantEnd, span["endTimeUnixNano"])

	status := span["status"].(map[string]any)
	assert.Equal(t, float64(1), status["code"])
}

func TestOTLPSpanAttributes(t *testing.T) {
	e := NewOTLP(OTLPConfig{})
	sd := testSpan("x")
	span := e.toOTLPSpan(sd)

	vals := map[string]map[string]any{}
	for _, a := range span["attributes"].([]otlpAttr) {
		vals[a.Key] = a.Value
	}
	assert.Equal(t, "LLM", vals["gen_ai.span_type"]["stringValue"])
	assert.Equal(t, "gpt-4o", vals["gen_ai.model.name"]["stringValue"])
	// OTLP JSON carries int values as strings.
	assert.Equal(t, "100", vals["gen_ai.usage.input_tokens"]["intValue"])
	assert.Equal(t, "50", vals["gen_ai.usage.output_tokens"]["intValue"])
	assert.Equal(t, "150", vals["gen_ai.usage.total_tokens"]["intValue"])
	assert.NotContains(t, vals, "error.message")
}

func TestOTLPErrorSpanStatus(t *testing.T) {
	e := NewOTLP(OTLPConfig{})
	sd := testSpan("x")
	sd.Status = kiseki.StatusError
	sd.IsError = 1
	sd.ErrorMessage = "rate limited"
	sd.ErrorType = "RateLimitError"

	span := e.toOTLPSpan(sd)
	status := span["status"].(map[string]any)
	assert.Equal(t, 2, status["code"])
	assert.Equal(t, "rate limited", status["message"])

	vals := map[string]map[string]any{}
	for _, a := range span["attributes"].([]otlpAttr) {
		vals[a.Key] = a.Value
	}
	assert.Equal(t, "RateLimitError", vals["error.type"]["stringValue"])
}

func TestOTLPEndpointNormalization(t *testing.T) {
	e := NewOTLP(OTLPConfig{Endpoint: "http://collector:4318/"})
	assert.Equal(t, "http://collector:4318/v1/traces", e.endpoint)

	e = NewOTLP(OTLPConfig{Endpoint: "http://collector:4318/v1/traces"})
	assert.Equal(t, "http://collector:4318/v1/traces", e.endpoint)
}

func TestOTLPNon200IsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	e := NewOTLP(OTLPConfig{Endpoint: srv.URL})
	assert.False(t, e.ExportBatch(context.Background(), []kiseki.SpanData{testSpan("x")}))
}
