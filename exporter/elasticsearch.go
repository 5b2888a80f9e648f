package exporter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ashita-ai/kiseki"
)

// ElasticsearchConfig configures the Elasticsearch bulk exporter. An empty
// Hosts list targets a local instance.
type ElasticsearchConfig struct {
	Hosts         []string // default ["http://localhost:9200"]
	Index         string   // default "genai-traces"
	APIKey        string   // preferred over basic auth when set
	Username      string
	Password      string
	BatchSize     int // default 1 (unbuffered)
	FlushInterval time.Duration
	Logger        *slog.Logger
}

// Elasticsearch indexes spans through the _bulk API, rotating across hosts
// round-robin.
type Elasticsearch struct {
	hosts    []string
	index    string
	apiKey   string
	username string
	password string
	hostIdx  atomic.Uint64
	client   *http.Client
	logger   *slog.Logger
	batch    *batcher
}

// NewElasticsearch builds the exporter.
func NewElasticsearch(cfg ElasticsearchConfig) *Elasticsearch {
	hosts := cfg.Hosts
	if len(hosts) == 0 {
		hosts = []string{"http://localhost:9200"}
	}
	trimmed := make([]string, len(hosts))
	for i, h := range hosts {
		trimmed[i] = strings.TrimRight(h, "/")
	}

	e := &Elasticsearch{
		hosts:    trimmed,
		index:    strOr(cfg.Index, "genai-traces"),
		apiKey:   cfg.APIKey,
		username: cfg.Username,
		password: cfg.Password,
		client:   newHTTPClient(),
		logger:   orDefault(cfg.Logger),
	}
	e.batch = newBatcher("elasticsearch", intOr(cfg.BatchSize, 1), durOr(cfg.FlushInterval, 5*time.Second), e.logger, e.sendBatch)
	return e
}

func (e *Elasticsearch) Start(ctx context.Context) error {
	e.batch.start(ctx)
	return nil
}

func (e *Elasticsearch) Stop(ctx context.Context) error {
	e.batch.stop(ctx)
	return nil
}

func (e *Elasticsearch) Flush(ctx context.Context) {
	e.batch.flush(ctx)
}

func (e *Elasticsearch) Export(ctx context.Context, sd kiseki.SpanData) bool {
	return e.batch.add(ctx, sd)
}

func (e *Elasticsearch) ExportBatch(ctx context.Context, spans []kiseki.SpanData) bool {
	return e.sendBatch(ctx, spans)
}

// HealthCheck probes cluster health on the next host in rotation.
func (e *Elasticsearch) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.host()+"/_cluster/health", nil)
	if err != nil {
		return false
	}
	e.setAuth(req)
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// host returns the next host round-robin.
func (e *Elasticsearch) host() string {
	idx := e.hostIdx.Add(1) - 1
	return e.hosts[idx%uint64(len(e.hosts))]
}

func (e *Elasticsearch) setAuth(req *http.Request) {
	if e.apiKey != "" {
		req.Header.Set("Authorization", "ApiKey "+e.apiKey)
	} else if e.username != "" && e.password != "" {
		req.SetBasicAuth(e.username, e.password)
	}
}

func (e *Elasticsearch) sendBatch(ctx context.Context, spans []kiseki.SpanData) bool {
	if len(spans) == 0 {
		return true
	}

	// The bulk API pairs an action line with each document line.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	action := map[string]any{"index": map[string]string{"_index": e.index}}
	for _, sd := range spans {
		if err := enc.Encode(action); err != nil {
			e.logger.Error("exporter: elasticsearch encode failed", "error", err)
			return false
		}
		if err := enc.Encode(sd); err != nil {
			e.logger.Error("exporter: elasticsearch encode failed", "error", err)
			return false
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.host()+"/_bulk", &buf)
	if err != nil {
		e.logger.Error("exporter: elasticsearch request failed", "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	e.setAuth(req)

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Error("exporter: elasticsearch send failed", "error", err)
		return false
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		e.logger.Error("exporter: elasticsearch rejected batch", "status", resp.StatusCode, "body", string(body))
		return false
	}

	// A 200 bulk response can still carry per-item failures.
	var result struct {
		Errors bool `json:"errors"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		e.logger.Error("exporter: elasticsearch response parse failed", "error", err)
		return false
	}
	if result.Errors {
		e.logger.Error("exporter: elasticsearch bulk response reported item errors", "batch_size", len(spans))
		return false
	}
	return true
}
