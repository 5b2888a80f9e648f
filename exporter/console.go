package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ashita-ai/kiseki"
)

// ConsoleConfig configures the console exporter.
type ConsoleConfig struct {
	Colored bool // ANSI colors on the summary line
	Verbose bool // also print the full span as indented JSON

	// Out overrides the destination (default os.Stdout).
	Out io.Writer
}

// Console prints a one-line human summary per span. Intended for development
// and debugging.
type Console struct {
	colored bool
	verbose bool

	mu  sync.Mutex
	out io.Writer
}

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
)

// NewConsole builds the exporter.
func NewConsole(cfg ConsoleConfig) *Console {
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	return &Console{colored: cfg.Colored, verbose: cfg.Verbose, out: out}
}

func (e *Console) Start(context.Context) error      { return nil }
func (e *Console) Stop(context.Context) error       { return nil }
func (e *Console) Flush(context.Context)            {}
func (e *Console) HealthCheck(context.Context) bool { return true }

func (e *Console) Export(_ context.Context, sd kiseki.SpanData) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	var line string
	if e.colored {
		statusColor := ansiGreen
		if sd.Status == kiseki.StatusError {
			statusColor = ansiRed
		}
		line = fmt.Sprintf("%s[%s]%s %s%s%s %s %s%s%s (%.2fms)",
			ansiCyan, sd.Timestamp, ansiReset,
			ansiYellow, sd.SpanType, ansiReset,
			sd.Name,
			statusColor, sd.Status, ansiReset,
			sd.DurationMs)
	} else {
		line = fmt.Sprintf("[%s] %s %s %s (%.2fms)",
			sd.Timestamp, sd.SpanType, sd.Name, sd.Status, sd.DurationMs)
	}

	if _, err := fmt.Fprintln(e.out, line); err != nil {
		return false
	}

	if e.verbose {
		raw, err := json.MarshalIndent(sd, "", "  ")
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintln(e.out, string(raw)); err != nil {
			return false
		}
	}
	return true
}

func (e *Console) ExportBatch(ctx context.Context, spans []kiseki.SpanData) bool {
	return exportEach(ctx, spans, e.Export)
}
