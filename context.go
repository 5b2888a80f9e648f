package kiseki

import (
	"context"
	"time"
)

// TraceContext tracks one logical call stack: the current trace id and a LIFO
// stack of open spans. Obtain one per goroutine via Telemetry.NewContext —
// there is no implicit goroutine-local state, the handle makes trace
// propagation explicit. A TraceContext is not safe for concurrent use.
type TraceContext struct {
	tel     *Telemetry
	traceID string
	stack   []*Span
}

// TraceID returns the current trace id, generating one lazily on first use.
func (tc *TraceContext) TraceID() string {
	if tc.traceID == "" {
		tc.traceID = newTraceID()
	}
	return tc.traceID
}

// SetTraceID adopts an externally supplied trace id (e.g. propagated from an
// upstream service) for subsequent spans.
func (tc *TraceContext) SetTraceID(id string) {
	tc.traceID = id
}

// NewTrace starts a fresh trace: a new id replaces the current one and is
// returned. Open spans keep the ids they were started with.
func (tc *TraceContext) NewTrace() string {
	tc.traceID = newTraceID()
	return tc.traceID
}

// CurrentSpan returns the innermost open span, or nil when none is open.
func (tc *TraceContext) CurrentSpan() *Span {
	if len(tc.stack) == 0 {
		return nil
	}
	return tc.stack[len(tc.stack)-1]
}

// StartSpan opens a span and pushes it onto the stack. The parent is the
// span that was innermost at the time of the call; the first span of a trace
// has no parent. The returned handle is mutable until EndSpan.
func (tc *TraceContext) StartSpan(name string, st SpanType) *Span {
	parent := ""
	if cur := tc.CurrentSpan(); cur != nil {
		parent = cur.spanID
	}
	span := newSpan(tc.TraceID(), newSpanID(), parent, name, st, tc.tel.workflowName)
	tc.stack = append(tc.stack, span)
	return span
}

// EndSpan pops the innermost span, seals it (duration, error state) and hands
// it to the exporter. A nil err means OK; a non-nil err marks the span ERROR
// with the error's message and type. The return value reports delivery, not
// operation outcome. Calling EndSpan with no open span is a silent no-op that
// reports success — a mismatched end must not break the application.
func (tc *TraceContext) EndSpan(ctx context.Context, err error) bool {
	if len(tc.stack) == 0 {
		return true
	}
	span := tc.stack[len(tc.stack)-1]
	tc.stack = tc.stack[:len(tc.stack)-1]
	span.finish(err)
	return tc.tel.exporter.Export(ctx, span.toSpanData())
}

// SendSpan submits a pre-assembled span directly, bypassing the span stack.
// The builder supplies the payload fields; trace id, span id, parent (the
// currently open span, if any), type, name, workflow and timestamp are filled
// in here. The stack is left untouched.
func (tc *TraceContext) SendSpan(ctx context.Context, st SpanType, name string, b *SpanBuilder) bool {
	if b == nil {
		b = NewBuilder()
	}
	b.TraceID(tc.TraceID()).
		SpanID(newSpanID()).
		Type(st).
		Name(name).
		Workflow(tc.tel.workflowName)
	if cur := tc.CurrentSpan(); cur != nil {
		b.ParentSpanID(cur.spanID)
	}
	if b.sd.Timestamp == "" {
		b.Timestamp(time.Now().UTC().Format(time.RFC3339Nano))
	}
	return tc.tel.exporter.Export(ctx, b.Build())
}
