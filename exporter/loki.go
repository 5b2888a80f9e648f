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

// LokiConfig configures the Grafana Loki exporter.
type LokiConfig struct {
	URL           string // default "http://localhost:3100"; /loki/api/v1/push appended when missing
	TenantID      string // sent as X-Scope-OrgID when set
	BatchSize     int    // default 10
	FlushInterval time.Duration
	Logger        *slog.Logger
}

// Loki ships spans as log lines, grouped into streams by span type, workflow,
// status and model so that Loki label queries can slice them.
type Loki struct {
	url      string
	tenantID string
	client   *http.Client
	logger   *slog.Logger
	batch    *batcher
}

// NewLoki builds the exporter; Loki needs no credentials, so the zero config
// targets a local instance.
func NewLoki(cfg LokiConfig) *Loki {
	url := strings.TrimRight(strOr(cfg.URL, "http://localhost:3100"), "/")
	if !strings.Contains(url, "/loki/api/v1/push") {
		url += "/loki/api/v1/push"
	}

	e := &Loki{
		url:      url,
		tenantID: cfg.TenantID,
		client:   newHTTPClient(),
		logger:   orDefault(cfg.Logger),
	}
	e.batch = newBatcher("loki", intOr(cfg.BatchSize, 10), durOr(cfg.FlushInterval, 5*time.Second), e.logger, e.sendBatch)
	return e
}

func (e *Loki) Start(ctx context.Context) error {
	e.batch.start(ctx)
	return nil
}

func (e *Loki) Stop(ctx context.Context) error {
	e.batch.stop(ctx)
	return nil
}

func (e *Loki) Flush(ctx context.Context) {
	e.batch.flush(ctx)
}

func (e *Loki) Export(ctx context.Context, sd kiseki.SpanData) bool {
	return e.batch.add(ctx, sd)
}

func (e *Loki) ExportBatch(ctx context.Context, spans []kiseki.SpanData) bool {
	return e.sendBatch(ctx, spans)
}

// HealthCheck probes the Loki readiness endpoint.
func (e *Loki) HealthCheck(ctx context.Context) bool {
	base := strings.Replace(e.url, "/loki/api/v1/push", "", 1)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/ready", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

type lokiStreamKey struct {
	spanType string
	workflow string
	status   string
	model    string
}

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

// toStreams groups spans by label set. Each value is [nanosecond-timestamp,
// serialized span]; spans that fail to serialize are skipped, not fatal.
func (e *Loki) toStreams(spans []kiseki.SpanData) []lokiStream {
	groups := make(map[lokiStreamKey][]kiseki.SpanData)
	var order []lokiStreamKey
	for _, sd := range spans {
		key := lokiStreamKey{
			spanType: string(sd.SpanType),
			workflow: strOr(sd.WorkflowName, "default"),
			status:   string(sd.Status),
			model:    sd.ModelName,
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], sd)
	}

	streams := make([]lokiStream, 0, len(order))
	for _, key := range order {
		labels := map[string]string{
			"job":       "kiseki",
			"span_type": key.spanType,
			"workflow":  key.workflow,
			"status":    key.status,
		}
		if key.model != "" {
			labels["model"] = key.model
		}

		var values [][]string
		for _, sd := range groups[key] {
			ts, err := time.Parse(time.RFC3339Nano, sd.Timestamp)
			if err != nil {
				ts = time.Now()
			}
			line, err := json.Marshal(sd)
			if err != nil {
				e.logger.Warn("exporter: loki span serialize failed", "error", err)
				continue
			}
			values = append(values, []string{strconv.FormatInt(ts.UnixNano(), 10), string(line)})
		}
		streams = append(streams, lokiStream{Stream: labels, Values: values})
	}
	return streams
}

func (e *Loki) sendBatch(ctx context.Context, spans []kiseki.SpanData) bool {
	if len(spans) == 0 {
		return true
	}

	payload := map[string]any{"streams": e.toStreams(spans)}
	body, err := json.Marshal(payload)
	if err != nil {
		e.logger.Error("exporter: loki encode failed", "error", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		e.logger.Error("exporter: loki request failed", "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	if e.tenantID != "" {
		req.Header.Set("X-Scope-OrgID", e.tenantID)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Error("exporter: loki send failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		e.logger.Error("exporter: loki rejected batch", "status", resp.StatusCode, "batch_size", len(spans))
		return false
	}
	return true
}
