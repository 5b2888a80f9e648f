package kiseki

import "log/slog"

// Option configures a Telemetry instance.
type Option func(*resolvedOptions)

// resolvedOptions holds configuration after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	serviceName string
	exporter    Exporter
	logger      *slog.Logger
}

// WithExporter sets the span destination. Required: New fails without one.
// Use exporter.NewMulti to fan out to several backends.
func WithExporter(e Exporter) Option {
	return func(o *resolvedOptions) { o.exporter = e }
}

// WithServiceName sets the instance's service name, readable via
// Telemetry.ServiceName. Exporters that distinguish service from workflow
// (OTLP resource attributes, Datadog service field) take the name in their
// own config. Defaults to the workflow name.
func WithServiceName(name string) Option {
	return func(o *resolvedOptions) { o.serviceName = name }
}

// WithLogger sets the structured logger for the instance.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}
