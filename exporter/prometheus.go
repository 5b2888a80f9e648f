package exporter

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/prometheus/common/expfmt"

	"github.com/ashita-ai/kiseki"
)

// PrometheusConfig configures the pushgateway metrics exporter.
type PrometheusConfig struct {
	PushgatewayURL string // default "http://localhost:9091"
	JobName        string // default "genai_telemetry"

	// MaxSeries bounds the number of label sets kept per metric group.
	// Unbounded model or vector-store names would otherwise grow the
	// aggregates forever; the least-recently-updated series is evicted and
	// its aggregate state discarded. Default 512.
	MaxSeries int
	Logger    *slog.Logger
}

// Prometheus is a metrics-aggregation sink: instead of forwarding span
// records it folds each span into monotonic aggregates (durations, token
// counters, error counters) and pushes the entire aggregate state to a
// pushgateway after every export. The PUT replaces the job's metric group,
// so the gateway always holds the current totals.
type Prometheus struct {
	gatewayURL string
	job        string
	client     *http.Client
	logger     *slog.Logger
	pusher     *push.Pusher

	mu                sync.Mutex
	llmDuration       *prometheus.SummaryVec
	llmTokens         *prometheus.CounterVec
	llmErrors         *prometheus.CounterVec
	embeddingDuration *prometheus.SummaryVec
	retrieverDuration *prometheus.SummaryVec
	retrieverDocs     *prometheus.CounterVec

	llmSeries       *lru.Cache[[2]string, struct{}]
	embeddingSeries *lru.Cache[[2]string, struct{}]
	retrieverSeries *lru.Cache[[2]string, struct{}]
}

// NewPrometheus builds the exporter and its metric families.
func NewPrometheus(cfg PrometheusConfig) (*Prometheus, error) {
	e := &Prometheus{
		gatewayURL: strings.TrimRight(strOr(cfg.PushgatewayURL, "http://localhost:9091"), "/"),
		job:        strOr(cfg.JobName, "genai_telemetry"),
		client:     newHTTPClient(),
		logger:     orDefault(cfg.Logger),
	}

	e.llmDuration = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name: "genai_llm_duration_seconds",
		Help: "LLM call duration",
	}, []string{"workflow", "model"})
	e.llmTokens = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "genai_llm_tokens_total",
		Help: "Total tokens used",
	}, []string{"workflow", "model", "type"})
	e.llmErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "genai_llm_errors_total",
		Help: "Total LLM errors",
	}, []string{"workflow", "model"})
	e.embeddingDuration = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name: "genai_embedding_duration_seconds",
		Help: "Embedding call duration",
	}, []string{"workflow", "model"})
	e.retrieverDuration = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name: "genai_retriever_duration_seconds",
		Help: "Retriever call duration",
	}, []string{"workflow", "vector_store"})
	e.retrieverDocs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "genai_retriever_documents_total",
		Help: "Documents retrieved",
	}, []string{"workflow", "vector_store"})

	reg := prometheus.NewRegistry()
	for _, c := range []prometheus.Collector{
		e.llmDuration, e.llmTokens, e.llmErrors,
		e.embeddingDuration, e.retrieverDuration, e.retrieverDocs,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	maxSeries := intOr(cfg.MaxSeries, 512)
	var err error
	e.llmSeries, err = lru.NewWithEvict(maxSeries, func(k [2]string, _ struct{}) {
		e.llmDuration.DeleteLabelValues(k[0], k[1])
		e.llmErrors.DeleteLabelValues(k[0], k[1])
		e.llmTokens.DeleteLabelValues(k[0], k[1], "input")
		e.llmTokens.DeleteLabelValues(k[0], k[1], "output")
	})
	if err != nil {
		return nil, err
	}
	e.embeddingSeries, err = lru.NewWithEvict(maxSeries, func(k [2]string, _ struct{}) {
		e.embeddingDuration.DeleteLabelValues(k[0], k[1])
	})
	if err != nil {
		return nil, err
	}
	e.retrieverSeries, err = lru.NewWithEvict(maxSeries, func(k [2]string, _ struct{}) {
		e.retrieverDuration.DeleteLabelValues(k[0], k[1])
		e.retrieverDocs.DeleteLabelValues(k[0], k[1])
	})
	if err != nil {
		return nil, err
	}

	e.pusher = push.New(e.gatewayURL, e.job).
		Gatherer(reg).
		Client(e.client).
		Format(expfmt.NewFormat(expfmt.TypeTextPlain))
	return e, nil
}

func (e *Prometheus) Start(context.Context) error { return nil }

// Stop pushes the final aggregate state.
func (e *Prometheus) Stop(ctx context.Context) error {
	e.push(ctx)
	return nil
}

func (e *Prometheus) Flush(ctx context.Context) {
	e.push(ctx)
}

// Export folds the span into the aggregates and pushes the updated state.
func (e *Prometheus) Export(ctx context.Context, sd kiseki.SpanData) bool {
	e.mu.Lock()
	e.update(sd)
	e.mu.Unlock()
	return e.push(ctx)
}

// ExportBatch folds all spans, then pushes once.
func (e *Prometheus) ExportBatch(ctx context.Context, spans []kiseki.SpanData) bool {
	e.mu.Lock()
	for _, sd := range spans {
		e.update(sd)
	}
	e.mu.Unlock()
	return e.push(ctx)
}

// HealthCheck probes the pushgateway health endpoint.
func (e *Prometheus) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.gatewayURL+"/-/healthy", nil)
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

// update must be called with e.mu held: the LRU caches are not safe for
// concurrent eviction callbacks against the vecs.
func (e *Prometheus) update(sd kiseki.SpanData) {
	workflow := strOr(sd.WorkflowName, "default")

	switch sd.SpanType {
	case kiseki.SpanTypeLLM:
		model := strOr(sd.ModelName, sd.Name)
		e.llmSeries.Add([2]string{workflow, model}, struct{}{})
		e.llmDuration.WithLabelValues(workflow, model).Observe(sd.DurationMs / 1000)
		if sd.InputTokens != nil {
			e.llmTokens.WithLabelValues(workflow, model, "input").Add(float64(*sd.InputTokens))
		}
		if sd.OutputTokens != nil {
			e.llmTokens.WithLabelValues(workflow, model, "output").Add(float64(*sd.OutputTokens))
		}
		if sd.IsError == 1 {
			e.llmErrors.WithLabelValues(workflow, model).Inc()
		}

	case kiseki.SpanTypeEmbedding:
		model := strOr(sd.EmbeddingModel, strOr(sd.ModelName, sd.Name))
		e.embeddingSeries.Add([2]string{workflow, model}, struct{}{})
		e.embeddingDuration.WithLabelValues(workflow, model).Observe(sd.DurationMs / 1000)

	case kiseki.SpanTypeRetriever:
		store := strOr(sd.VectorStore, sd.Name)
		e.retrieverSeries.Add([2]string{workflow, store}, struct{}{})
		e.retrieverDuration.WithLabelValues(workflow, store).Observe(sd.DurationMs / 1000)
		if sd.DocumentsRetrieved != nil {
			e.retrieverDocs.WithLabelValues(workflow, store).Add(float64(*sd.DocumentsRetrieved))
		}
	}
}

func (e *Prometheus) push(ctx context.Context) bool {
	if err := e.pusher.PushContext(ctx); err != nil {
		e.logger.Error("exporter: pushgateway push failed", "error", err)
		return false
	}
	return true
}
