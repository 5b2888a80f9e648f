// Package exporter provides the span delivery backends for kiseki: Splunk
// HEC, Elasticsearch, OTLP, Datadog, Loki, a Prometheus pushgateway
// aggregator, CloudWatch Logs, JSONL files, the console, an OpenTelemetry
// bridge, and a fan-out Multi exporter. FromEnv builds a configured exporter
// from environment variables.
//
// All exporters follow the same delivery policy: transport failures are
// logged and reported as a false return, never as an error, so a flaky
// backend cannot break the traced application. Only configuration problems
// are errors, and those fail at construction.
package exporter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/ashita-ai/kiseki"
)

const defaultTimeout = 10 * time.Second

// newHTTPClient builds the shared transport for network exporters: bounded
// retries with backoff and a hard per-request timeout.
func newHTTPClient() *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = defaultTimeout
	rc.Logger = nil
	return rc.StandardClient()
}

// exportEach delivers spans one at a time and reports success only when every
// delivery succeeded. Used by exporters without a native batch wire format.
func exportEach(ctx context.Context, spans []kiseki.SpanData, send func(context.Context, kiseki.SpanData) bool) bool {
	ok := true
	for _, sd := range spans {
		if !send(ctx, sd) {
			ok = false
		}
	}
	return ok
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

func strOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func intOr(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func durOr(v, def time.Duration) time.Duration {
	if v == 0 {
		return def
	}
	return v
}
