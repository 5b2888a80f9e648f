package kiseki

import (
	"context"
	"time"
)

// The TraceX helpers wrap a single operation in a span: time it, run it, and
// submit an OK or ERROR span through the context's exporter. The operation's
// result and error pass through unchanged — a failed export never alters what
// the caller sees, and the operation's error is re-returned as-is, not
// wrapped. Export completes before the helper returns.

// TraceLLM runs op as a model call. On success, token counts are extracted
// from the result (see ExtractTokens) and recorded alongside the model
// identity.
func TraceLLM[T any](ctx context.Context, tc *TraceContext, name, modelName, modelProvider string, op func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	result, err := op(ctx)
	b := NewBuilder().ModelName(modelName).ModelProvider(modelProvider).DurationMs(elapsedMs(start))
	if err != nil {
		b.Error(err.Error(), errTypeName(err))
		tc.SendSpan(ctx, SpanTypeLLM, name, b)
		return result, err
	}
	in, out := ExtractTokens(result)
	b.InputTokens(in).OutputTokens(out)
	tc.SendSpan(ctx, SpanTypeLLM, name, b)
	return result, nil
}

// TraceEmbedding runs op as an embedding computation. Input token usage is
// extracted from the result when the shape exposes it.
func TraceEmbedding[T any](ctx context.Context, tc *TraceContext, name, embeddingModel string, op func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	result, err := op(ctx)
	b := NewBuilder().EmbeddingModel(embeddingModel).DurationMs(elapsedMs(start))
	if err != nil {
		b.Error(err.Error(), errTypeName(err))
		tc.SendSpan(ctx, SpanTypeEmbedding, name, b)
		return result, err
	}
	if in, _ := ExtractTokens(result); in > 0 {
		b.InputTokens(in)
	}
	tc.SendSpan(ctx, SpanTypeEmbedding, name, b)
	return result, nil
}

// TraceRetrieval runs op as a vector-store lookup. The document count is the
// length of the returned slice.
func TraceRetrieval[D any](ctx context.Context, tc *TraceContext, name, vectorStore string, op func(context.Context) ([]D, error)) ([]D, error) {
	start := time.Now()
	result, err := op(ctx)
	b := NewBuilder().VectorStore(vectorStore).DurationMs(elapsedMs(start))
	if err != nil {
		b.Error(err.Error(), errTypeName(err))
		tc.SendSpan(ctx, SpanTypeRetriever, name, b)
		return result, err
	}
	b.DocumentsRetrieved(len(result))
	tc.SendSpan(ctx, SpanTypeRetriever, name, b)
	return result, nil
}

// TraceTool runs op as a tool invocation.
func TraceTool[T any](ctx context.Context, tc *TraceContext, name string, op func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	result, err := op(ctx)
	b := NewBuilder().ToolName(name).DurationMs(elapsedMs(start))
	if err != nil {
		b.Error(err.Error(), errTypeName(err))
	}
	tc.SendSpan(ctx, SpanTypeTool, name, b)
	return result, err
}

// TraceChain runs op as a top-level chain. A chain is a trace boundary:
// a fresh trace id is started before the operation runs, so every span
// produced inside op shares the new trace.
func TraceChain[T any](ctx context.Context, tc *TraceContext, name string, op func(context.Context) (T, error)) (T, error) {
	tc.NewTrace()
	start := time.Now()
	result, err := op(ctx)
	b := NewBuilder().DurationMs(elapsedMs(start))
	if err != nil {
		b.Error(err.Error(), errTypeName(err))
	}
	tc.SendSpan(ctx, SpanTypeChain, name, b)
	return result, err
}

// TraceAgent runs op as a top-level agent execution. Like TraceChain it
// starts a fresh trace before running.
func TraceAgent[T any](ctx context.Context, tc *TraceContext, name, agentType string, op func(context.Context) (T, error)) (T, error) {
	tc.NewTrace()
	start := time.Now()
	result, err := op(ctx)
	b := NewBuilder().AgentName(name).AgentType(agentType).DurationMs(elapsedMs(start))
	if err != nil {
		b.Error(err.Error(), errTypeName(err))
	}
	tc.SendSpan(ctx, SpanTypeAgent, name, b)
	return result, err
}

func elapsedMs(start time.Time) float64 {
	return round2(time.Since(start).Seconds() * 1000)
}
