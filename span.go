package kiseki

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Span is an in-flight operation owned by its TraceContext. It is mutable
// between StartSpan and EndSpan: callers attach model parameters, token
// counts and custom attributes directly on the handle. Like the TraceContext
// that owns it, a Span is goroutine-affine and unsynchronized.
type Span struct {
	traceID      string
	spanID       string
	parentSpanID string // "" for a root span
	name         string
	spanType     SpanType
	workflowName string

	start      time.Time
	durationMs float64
	status     SpanStatus
	errMessage string
	errType    string

	modelName     string
	modelProvider string
	inputTokens   int
	outputTokens  int
	temperature   *float64
	maxTokens     *int

	embeddingModel      string
	embeddingDimensions *int

	vectorStore        string
	documentsRetrieved int
	relevanceScore     *float64

	toolName  string
	agentName string
	agentType string

	attrs map[string]any
}

func newSpan(traceID, spanID, parentSpanID, name string, st SpanType, workflow string) *Span {
	return &Span{
		traceID:      traceID,
		spanID:       spanID,
		parentSpanID: parentSpanID,
		name:         name,
		spanType:     st,
		workflowName: workflow,
		start:        time.Now(),
		status:       StatusOK,
	}
}

func (s *Span) TraceID() string      { return s.traceID }
func (s *Span) SpanID() string       { return s.spanID }
func (s *Span) ParentSpanID() string { return s.parentSpanID }
func (s *Span) Name() string         { return s.name }
func (s *Span) Type() SpanType       { return s.spanType }
func (s *Span) Status() SpanStatus   { return s.status }
func (s *Span) DurationMs() float64  { return s.durationMs }

// SetModel records the model identity for LLM spans.
func (s *Span) SetModel(name, provider string) *Span {
	s.modelName = name
	s.modelProvider = provider
	return s
}

// SetTokens records prompt and completion token counts.
func (s *Span) SetTokens(input, output int) *Span {
	s.inputTokens = input
	s.outputTokens = output
	return s
}

func (s *Span) SetTemperature(t float64) *Span { s.temperature = &t; return s }
func (s *Span) SetMaxTokens(n int) *Span       { s.maxTokens = &n; return s }

func (s *Span) SetEmbeddingModel(m string) *Span      { s.embeddingModel = m; return s }
func (s *Span) SetEmbeddingDimensions(n int) *Span    { s.embeddingDimensions = &n; return s }
func (s *Span) SetVectorStore(v string) *Span         { s.vectorStore = v; return s }
func (s *Span) SetDocumentsRetrieved(n int) *Span     { s.documentsRetrieved = n; return s }
func (s *Span) SetRelevanceScore(score float64) *Span { s.relevanceScore = &score; return s }
func (s *Span) SetToolName(n string) *Span            { s.toolName = n; return s }

// SetAgent records the agent identity for AGENT spans.
func (s *Span) SetAgent(name, agentType string) *Span {
	s.agentName = name
	s.agentType = agentType
	return s
}

// SetAttribute attaches one custom key/value to the span.
func (s *Span) SetAttribute(key string, value any) *Span {
	if s.attrs == nil {
		s.attrs = map[string]any{}
	}
	s.attrs[key] = value
	return s
}

// finish seals the span: duration in milliseconds rounded to two decimals,
// and on error the ERROR status with the error's message and type name.
func (s *Span) finish(err error) {
	s.durationMs = round2(time.Since(s.start).Seconds() * 1000)
	if err != nil {
		s.status = StatusError
		s.errMessage = err.Error()
		s.errType = errTypeName(err)
	}
}

// toSpanData snapshots the span into its immutable wire record, stamped with
// the moment of conversion. LLM spans always carry token counts (zeros
// included, so backends can aggregate); other span types carry them only when
// set.
func (s *Span) toSpanData() SpanData {
	b := NewBuilder().
		TraceID(s.traceID).
		SpanID(s.spanID).
		ParentSpanID(s.parentSpanID).
		Name(s.name).
		Type(s.spanType).
		Workflow(s.workflowName).
		Timestamp(time.Now().UTC().Format(time.RFC3339Nano)).
		DurationMs(s.durationMs).
		Status(s.status)

	if s.status == StatusError {
		b.Error(s.errMessage, s.errType)
	}

	if s.spanType == SpanTypeLLM || s.inputTokens > 0 || s.outputTokens > 0 {
		b.InputTokens(s.inputTokens).OutputTokens(s.outputTokens)
	}
	if s.modelName != "" {
		b.ModelName(s.modelName)
	}
	if s.modelProvider != "" {
		b.ModelProvider(s.modelProvider)
	}
	if s.temperature != nil {
		b.Temperature(*s.temperature)
	}
	if s.maxTokens != nil {
		b.MaxTokens(*s.maxTokens)
	}
	if s.embeddingModel != "" {
		b.EmbeddingModel(s.embeddingModel)
	}
	if s.embeddingDimensions != nil {
		b.EmbeddingDimensions(*s.embeddingDimensions)
	}
	if s.vectorStore != "" {
		b.VectorStore(s.vectorStore)
	}
	if s.documentsRetrieved > 0 {
		b.DocumentsRetrieved(s.documentsRetrieved)
	}
	if s.relevanceScore != nil {
		b.RelevanceScore(*s.relevanceScore)
	}
	if s.toolName != "" {
		b.ToolName(s.toolName)
	}
	if s.agentName != "" {
		b.AgentName(s.agentName)
	}
	if s.agentType != "" {
		b.AgentType(s.agentType)
	}
	for k, v := range s.attrs {
		b.Attribute(k, v)
	}
	return b.Build()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// errTypeName derives a short type name from a Go error value, e.g.
// "*fs.PathError" becomes "PathError".
func errTypeName(err error) string {
	t := fmt.Sprintf("%T", err)
	if i := strings.LastIndex(t, "."); i >= 0 {
		t = t[i+1:]
	}
	return strings.TrimPrefix(t, "*")
}
