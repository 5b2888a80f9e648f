package exporter

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/ashita-ai/kiseki"
)

// FileConfig configures the JSONL file exporter.
type FileConfig struct {
	Path   string // default "genai_traces.jsonl"
	Logger *slog.Logger
}

// File appends spans to a local file, one JSON object per line. The file is
// opened lazily on first use, so constructing the exporter never touches the
// filesystem.
type File struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
	f  *os.File
	w  *bufio.Writer
}

// NewFile builds the exporter.
func NewFile(cfg FileConfig) *File {
	return &File{
		path:   strOr(cfg.Path, "genai_traces.jsonl"),
		logger: orDefault(cfg.Logger),
	}
}

func (e *File) Start(context.Context) error { return nil }

// Stop flushes and closes the file.
func (e *File) Stop(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.f == nil {
		return nil
	}
	if err := e.w.Flush(); err != nil {
		return fmt.Errorf("exporter: file flush: %w", err)
	}
	if err := e.f.Close(); err != nil {
		return fmt.Errorf("exporter: file close: %w", err)
	}
	e.f, e.w = nil, nil
	return nil
}

// Flush pushes buffered writes to disk.
func (e *File) Flush(context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.w != nil {
		if err := e.w.Flush(); err != nil {
			e.logger.Error("exporter: file flush failed", "error", err, "path", e.path)
		}
	}
}

func (e *File) Export(_ context.Context, sd kiseki.SpanData) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.writeLocked(sd)
}

func (e *File) ExportBatch(_ context.Context, spans []kiseki.SpanData) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ok := true
	for _, sd := range spans {
		if !e.writeLocked(sd) {
			ok = false
		}
	}
	return ok
}

// HealthCheck verifies the file is (or can be) opened for append.
func (e *File) HealthCheck(context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.openLocked() == nil
}

func (e *File) openLocked() error {
	if e.f != nil {
		return nil
	}
	if dir := filepath.Dir(e.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("exporter: file create directory: %w", err)
		}
	}
	f, err := os.OpenFile(e.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("exporter: file open: %w", err)
	}
	e.f = f
	e.w = bufio.NewWriter(f)
	return nil
}

func (e *File) writeLocked(sd kiseki.SpanData) bool {
	if err := e.openLocked(); err != nil {
		e.logger.Error("exporter: file open failed", "error", err, "path", e.path)
		return false
	}
	line, err := json.Marshal(sd)
	if err != nil {
		e.logger.Error("exporter: file span serialize failed", "error", err)
		return false
	}
	if _, err := e.w.Write(append(line, '\n')); err != nil {
		e.logger.Error("exporter: file write failed", "error", err, "path", e.path)
		return false
	}
	return true
}
