package exporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashita-ai/kiseki"
)

// SplunkHECConfig configures the Splunk HTTP Event Collector exporter.
// URL and Token are required; URL may point at the collector base — the
// /services/collector/event path is appended when missing.
type SplunkHECConfig struct {
	URL           string
	Token         string
	Index         string        // default "genai_traces"
	SourceType    string        // default "genai:trace"
	BatchSize     int           // default 1 (unbuffered)
	FlushInterval time.Duration // default 5s
	Logger        *slog.Logger
}

// SplunkHEC ships spans to Splunk as HEC events, one JSON object per line.
type SplunkHEC struct {
	url        string
	token      string
	index      string
	sourceType string
	client     *http.Client
	logger     *slog.Logger
	batch      *batcher
}

// NewSplunkHEC validates the config and builds the exporter.
func NewSplunkHEC(cfg SplunkHECConfig) (*SplunkHEC, error) {
	if cfg.URL == "" || cfg.Token == "" {
		return nil, fmt.Errorf("exporter: splunk HEC URL and token are required")
	}

	url := strings.TrimRight(cfg.URL, "/")
	if !strings.HasSuffix(url, "/services/collector/event") {
		url += "/services/collector/event"
	}

	e := &SplunkHEC{
		url:        url,
		token:      cfg.Token,
		index:      strOr(cfg.Index, "genai_traces"),
		sourceType: strOr(cfg.SourceType, "genai:trace"),
		client:     newHTTPClient(),
		logger:     orDefault(cfg.Logger),
	}
	e.batch = newBatcher("splunk_hec", intOr(cfg.BatchSize, 1), durOr(cfg.FlushInterval, 5*time.Second), e.logger, e.sendBatch)
	return e, nil
}

func (e *SplunkHEC) Start(ctx context.Context) error {
	e.batch.start(ctx)
	return nil
}

func (e *SplunkHEC) Stop(ctx context.Context) error {
	e.batch.stop(ctx)
	return nil
}

func (e *SplunkHEC) Flush(ctx context.Context) {
	e.batch.flush(ctx)
}

func (e *SplunkHEC) Export(ctx context.Context, sd kiseki.SpanData) bool {
	return e.batch.add(ctx, sd)
}

func (e *SplunkHEC) ExportBatch(ctx context.Context, spans []kiseki.SpanData) bool {
	return e.sendBatch(ctx, spans)
}

// HealthCheck posts a probe event through the normal pipeline; HEC has no
// side-effect-free health endpoint that also validates the token.
func (e *SplunkHEC) HealthCheck(ctx context.Context) bool {
	probe := kiseki.NewBuilder().Name("health_check").Type(kiseki.SpanType("HEALTH")).Build()
	return e.sendBatch(ctx, []kiseki.SpanData{probe})
}

func (e *SplunkHEC) sendBatch(ctx context.Context, spans []kiseki.SpanData) bool {
	if len(spans) == 0 {
		return true
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, sd := range spans {
		event := map[string]any{
			"index":      e.index,
			"sourcetype": e.sourceType,
			"source":     "kiseki",
			"event":      sd,
		}
		if err := enc.Encode(event); err != nil {
			e.logger.Error("exporter: splunk HEC encode failed", "error", err)
			return false
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, &buf)
	if err != nil {
		e.logger.Error("exporter: splunk HEC request failed", "error", err)
		return false
	}
	req.Header.Set("Authorization", "Splunk "+e.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Error("exporter: splunk HEC send failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		e.logger.Error("exporter: splunk HEC rejected batch", "status", resp.StatusCode, "batch_size", len(spans))
		return false
	}
	return true
}
