package kiseki

import "time"

// SpanType classifies the generative-AI operation a span covers.
type SpanType string

const (
	SpanTypeLLM       SpanType = "LLM"
	SpanTypeEmbedding SpanType = "EMBEDDING"
	SpanTypeRetriever SpanType = "RETRIEVER"
	SpanTypeTool      SpanType = "TOOL"
	SpanTypeChain     SpanType = "CHAIN"
	SpanTypeAgent     SpanType = "AGENT"
)

// SpanStatus is the terminal outcome of a span.
type SpanStatus string

const (
	StatusOK    SpanStatus = "OK"
	StatusError SpanStatus = "ERROR"
)

// SpanData is the immutable wire record for one finished span. Field names
// follow the snake_case schema consumed by the backends; optional fields are
// pointers with omitempty so they are absent, never null, when unset.
type SpanData struct {
	TraceID      string   `json:"trace_id"`
	SpanID       string   `json:"span_id"`
	ParentSpanID *string  `json:"parent_span_id,omitempty"`
	Name         string   `json:"name"`
	SpanType     SpanType `json:"span_type"`
	WorkflowName string   `json:"workflow_name,omitempty"`

	// Timestamp is the record's construction time (not the span start) in
	// RFC 3339 UTC with sub-second precision.
	Timestamp  string     `json:"timestamp"`
	DurationMs float64    `json:"duration_ms"`
	Status     SpanStatus `json:"status"`

	// IsError is 0 or 1 and always present so that backends can sum it.
	IsError      int    `json:"is_error"`
	ErrorMessage string `json:"error_message,omitempty"`
	ErrorType    string `json:"error_type,omitempty"`

	ModelName     string   `json:"model_name,omitempty"`
	ModelProvider string   `json:"model_provider,omitempty"`
	InputTokens   *int     `json:"input_tokens,omitempty"`
	OutputTokens  *int     `json:"output_tokens,omitempty"`
	TotalTokens   *int     `json:"total_tokens,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	MaxTokens     *int     `json:"max_tokens,omitempty"`

	EmbeddingModel      string `json:"embedding_model,omitempty"`
	EmbeddingDimensions *int   `json:"embedding_dimensions,omitempty"`

	VectorStore        string   `json:"vector_store,omitempty"`
	DocumentsRetrieved *int     `json:"documents_retrieved,omitempty"`
	RelevanceScore     *float64 `json:"relevance_score,omitempty"`

	ToolName  string `json:"tool_name,omitempty"`
	AgentName string `json:"agent_name,omitempty"`
	AgentType string `json:"agent_type,omitempty"`

	Custom map[string]any `json:"custom_attributes,omitempty"`
}

// SpanBuilder assembles a SpanData one field at a time. The zero value is
// ready to use; methods return the receiver for chaining and Build produces
// the final record. Validation and derived fields (total_tokens, timestamp
// default) happen once, in Build.
type SpanBuilder struct {
	sd SpanData
}

// NewBuilder returns an empty SpanBuilder.
func NewBuilder() *SpanBuilder { return &SpanBuilder{} }

func (b *SpanBuilder) TraceID(id string) *SpanBuilder  { b.sd.TraceID = id; return b }
func (b *SpanBuilder) SpanID(id string) *SpanBuilder   { b.sd.SpanID = id; return b }
func (b *SpanBuilder) Name(name string) *SpanBuilder   { b.sd.Name = name; return b }
func (b *SpanBuilder) Type(st SpanType) *SpanBuilder   { b.sd.SpanType = st; return b }
func (b *SpanBuilder) Workflow(w string) *SpanBuilder  { b.sd.WorkflowName = w; return b }
func (b *SpanBuilder) Timestamp(ts string) *SpanBuilder {
	b.sd.Timestamp = ts
	return b
}

// ParentSpanID records the parent. Empty means a root span and leaves the
// field absent.
func (b *SpanBuilder) ParentSpanID(id string) *SpanBuilder {
	if id != "" {
		b.sd.ParentSpanID = &id
	}
	return b
}

func (b *SpanBuilder) DurationMs(ms float64) *SpanBuilder   { b.sd.DurationMs = ms; return b }
func (b *SpanBuilder) Status(s SpanStatus) *SpanBuilder     { b.sd.Status = s; return b }
func (b *SpanBuilder) ErrorMessage(m string) *SpanBuilder   { b.sd.ErrorMessage = m; return b }
func (b *SpanBuilder) ErrorType(t string) *SpanBuilder      { b.sd.ErrorType = t; return b }
func (b *SpanBuilder) ModelName(m string) *SpanBuilder      { b.sd.ModelName = m; return b }
func (b *SpanBuilder) ModelProvider(p string) *SpanBuilder  { b.sd.ModelProvider = p; return b }
func (b *SpanBuilder) InputTokens(n int) *SpanBuilder       { b.sd.InputTokens = &n; return b }
func (b *SpanBuilder) OutputTokens(n int) *SpanBuilder      { b.sd.OutputTokens = &n; return b }
func (b *SpanBuilder) TotalTokens(n int) *SpanBuilder       { b.sd.TotalTokens = &n; return b }
func (b *SpanBuilder) Temperature(t float64) *SpanBuilder   { b.sd.Temperature = &t; return b }
func (b *SpanBuilder) MaxTokens(n int) *SpanBuilder         { b.sd.MaxTokens = &n; return b }
func (b *SpanBuilder) EmbeddingModel(m string) *SpanBuilder { b.sd.EmbeddingModel = m; return b }
func (b *SpanBuilder) EmbeddingDimensions(n int) *SpanBuilder {
	b.sd.EmbeddingDimensions = &n
	return b
}
func (b *SpanBuilder) VectorStore(v string) *SpanBuilder { b.sd.VectorStore = v; return b }
func (b *SpanBuilder) DocumentsRetrieved(n int) *SpanBuilder {
	b.sd.DocumentsRetrieved = &n
	return b
}
func (b *SpanBuilder) RelevanceScore(s float64) *SpanBuilder { b.sd.RelevanceScore = &s; return b }
func (b *SpanBuilder) ToolName(n string) *SpanBuilder        { b.sd.ToolName = n; return b }
func (b *SpanBuilder) AgentName(n string) *SpanBuilder       { b.sd.AgentName = n; return b }
func (b *SpanBuilder) AgentType(t string) *SpanBuilder       { b.sd.AgentType = t; return b }

// Error marks the span failed in one call: ERROR status, is_error flag,
// message and kind.
func (b *SpanBuilder) Error(message, errType string) *SpanBuilder {
	b.sd.Status = StatusError
	b.sd.IsError = 1
	b.sd.ErrorMessage = message
	b.sd.ErrorType = errType
	return b
}

// Attribute adds one custom attribute, allocating the map on first use.
func (b *SpanBuilder) Attribute(key string, value any) *SpanBuilder {
	if b.sd.Custom == nil {
		b.sd.Custom = map[string]any{}
	}
	b.sd.Custom[key] = value
	return b
}

// Build finalizes the record. total_tokens is derived as input+output only
// when both are set and no explicit total was given — an explicit total is
// never recomputed. A missing timestamp defaults to now; a missing status
// defaults to OK.
func (b *SpanBuilder) Build() SpanData {
	sd := b.sd
	if sd.TotalTokens == nil && sd.InputTokens != nil && sd.OutputTokens != nil {
		total := *sd.InputTokens + *sd.OutputTokens
		sd.TotalTokens = &total
	}
	if sd.Timestamp == "" {
		sd.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if sd.Status == "" {
		sd.Status = StatusOK
	}
	if sd.Status == StatusError {
		sd.IsError = 1
	}
	return sd
}
