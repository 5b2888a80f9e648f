package exporter

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/kiseki"
)

// MultiObserver receives the per-sink outcome of every fan-out delivery.
// index is the sink's position in the NewMulti argument list. Observers must
// be fast; they run on the delivery path.
type MultiObserver func(index int, exp kiseki.Exporter, ok bool)

// Multi fans every span out to several exporters concurrently. Delivery
// succeeds when ANY sink succeeds: one healthy backend is enough to preserve
// the data, and a broken one must not mask it. Attach an observer to see
// individual sink outcomes.
type Multi struct {
	exporters []kiseki.Exporter
	observer  MultiObserver
}

// NewMulti builds a fan-out over the given exporters.
func NewMulti(exporters ...kiseki.Exporter) *Multi {
	return &Multi{exporters: exporters}
}

// WithObserver attaches a per-sink outcome hook and returns the receiver.
func (m *Multi) WithObserver(obs MultiObserver) *Multi {
	m.observer = obs
	return m
}

// Exporters returns the wrapped sinks in registration order.
func (m *Multi) Exporters() []kiseki.Exporter { return m.exporters }

// Start brings up every sink. All sinks are attempted; errors are joined.
func (m *Multi) Start(ctx context.Context) error {
	var errs []error
	for i, exp := range m.exporters {
		if err := exp.Start(ctx); err != nil {
			errs = append(errs, fmt.Errorf("exporter[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Stop shuts every sink down. All sinks are attempted; errors are joined.
func (m *Multi) Stop(ctx context.Context) error {
	var errs []error
	for i, exp := range m.exporters {
		if err := exp.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("exporter[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Flush flushes all sinks concurrently.
func (m *Multi) Flush(ctx context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	for _, exp := range m.exporters {
		exp := exp
		g.Go(func() error {
			exp.Flush(ctx)
			return nil
		})
	}
	_ = g.Wait()
}

// Export fans out concurrently and reports whether any sink accepted the span.
func (m *Multi) Export(ctx context.Context, sd kiseki.SpanData) bool {
	return m.fanOut(ctx, func(ctx context.Context, exp kiseki.Exporter) bool {
		return exp.Export(ctx, sd)
	})
}

// ExportBatch fans out concurrently and reports whether any sink accepted the
// batch.
func (m *Multi) ExportBatch(ctx context.Context, spans []kiseki.SpanData) bool {
	return m.fanOut(ctx, func(ctx context.Context, exp kiseki.Exporter) bool {
		return exp.ExportBatch(ctx, spans)
	})
}

// HealthCheck reports healthy when any sink is healthy.
func (m *Multi) HealthCheck(ctx context.Context) bool {
	return m.fanOut(ctx, func(ctx context.Context, exp kiseki.Exporter) bool {
		return exp.HealthCheck(ctx)
	})
}

func (m *Multi) fanOut(ctx context.Context, call func(context.Context, kiseki.Exporter) bool) bool {
	if len(m.exporters) == 0 {
		return true
	}

	results := make([]bool, len(m.exporters))
	var g errgroup.Group
	for i, exp := range m.exporters {
		i, exp := i, exp
		g.Go(func() error {
			results[i] = call(ctx, exp)
			return nil
		})
	}
	_ = g.Wait()

	any := false
	for i, ok := range results {
		if m.observer != nil {
			m.observer(i, m.exporters[i], ok)
		}
		if ok {
			any = true
		}
	}
	return any
}
