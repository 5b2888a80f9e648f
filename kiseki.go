// Package kiseki is a tracing SDK for generative-AI applications.
//
// It times model calls, embeddings, retrievals, tool invocations, chains and
// agent runs, assembles structured span records, and ships them to
// observability backends through pluggable exporters:
//
//	exp := exporter.NewConsole(exporter.ConsoleConfig{})
//	tel, err := kiseki.New("support-bot", kiseki.WithExporter(exp))
//	if err != nil { ... }
//	tel.Start(ctx)
//	defer tel.Stop(ctx)
//
//	tc := tel.NewContext()
//	resp, err := kiseki.TraceLLM(ctx, tc, "answer", "gpt-4o", "openai", callModel)
//
// The import graph enforces a strict no-cycle rule: the exporter subpackage
// imports kiseki (root) for SpanData and the Exporter interface, but the root
// never imports exporter. Public types are standalone structs with no
// subpackage imports.
package kiseki

import (
	"context"
	"fmt"
	"log/slog"
)

// Telemetry is an explicit tracing instance. Construct with New(); there is no
// package-level singleton — libraries and applications hold their own handle,
// and multiple instances with different workflows and exporters can coexist in
// one process.
type Telemetry struct {
	workflowName string
	serviceName  string
	exporter     Exporter
	logger       *slog.Logger
}

// New builds a Telemetry instance for the given workflow. The workflow name
// labels every span produced through this instance. An exporter is required:
// configuration problems are construction errors, never deferred to export
// time.
func New(workflowName string, opts ...Option) (*Telemetry, error) {
	if workflowName == "" {
		return nil, fmt.Errorf("kiseki: workflow name is required")
	}

	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	if o.exporter == nil {
		return nil, fmt.Errorf("kiseki: an exporter is required (use WithExporter)")
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	serviceName := o.serviceName
	if serviceName == "" {
		serviceName = workflowName
	}

	return &Telemetry{
		workflowName: workflowName,
		serviceName:  serviceName,
		exporter:     o.exporter,
		logger:       logger,
	}, nil
}

// Start brings up the exporter pipeline (background flush loops, log streams).
// Call once before tracing; Stop must be called to release it.
func (t *Telemetry) Start(ctx context.Context) error {
	if err := t.exporter.Start(ctx); err != nil {
		return fmt.Errorf("kiseki: start exporter: %w", err)
	}
	t.logger.Debug("kiseki started", "workflow", t.workflowName, "service", t.serviceName)
	return nil
}

// Stop flushes buffered spans and shuts the exporter down, bounded by ctx.
func (t *Telemetry) Stop(ctx context.Context) error {
	if err := t.exporter.Stop(ctx); err != nil {
		return fmt.Errorf("kiseki: stop exporter: %w", err)
	}
	t.logger.Debug("kiseki stopped", "workflow", t.workflowName)
	return nil
}

// Flush forces any buffered spans out without stopping the pipeline.
func (t *Telemetry) Flush(ctx context.Context) {
	t.exporter.Flush(ctx)
}

// NewContext returns a fresh trace context for one logical call stack.
// A TraceContext is goroutine-affine and unsynchronized: create one per
// goroutine (or per request) rather than sharing.
func (t *Telemetry) NewContext() *TraceContext {
	return &TraceContext{tel: t}
}

// WorkflowName reports the workflow label stamped on every span.
func (t *Telemetry) WorkflowName() string { return t.workflowName }

// ServiceName reports the service name (defaults to the workflow name).
func (t *Telemetry) ServiceName() string { return t.serviceName }

// Exporter returns the configured exporter.
func (t *Telemetry) Exporter() Exporter { return t.exporter }
