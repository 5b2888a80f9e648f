package exporter

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kiseki"
)

func TestConsolePlainLine(t *testing.T) {
	var buf bytes.Buffer
	e := NewConsole(ConsoleConfig{Out: &buf})

	require.True(t, e.Export(context.Background(), testSpan("llm_call")))

	line := strings.TrimRight(buf.String(), "\n")
	assert.Equal(t, "[2026-08-27T10:00:00.5Z] LLM llm_call OK (123.45ms)", line)
}

func TestConsoleColoredLine(t *testing.T) {
	var buf bytes.Buffer
	e := NewConsole(ConsoleConfig{Colored: true, Out: &buf})

	require.True(t, e.Export(context.Background(), testSpan("llm_call")))

	out := buf.String()
	assert.Contains(t, out, ansiCyan)
	assert.Contains(t, out, ansiGreen, "OK status renders green")
	assert.Contains(t, out, "llm_call")
}

func TestConsoleErrorStatusIsRed(t *testing.T) {
	var buf bytes.Buffer
	e := NewConsole(ConsoleConfig{Colored: true, Out: &buf})

	sd := testSpan("x")
	sd.Status = kiseki.StatusError
	require.True(t, e.Export(context.Background(), sd))

	assert.Contains(t, buf.String(), ansiRed)
}

func TestConsoleVerbosePrintsJSON(t *testing.T) {
	var buf bytes.Buffer
	e := NewConsole(ConsoleConfig{Verbose: true, Out: &buf})

	require.True(t, e.Export(context.Background(), testSpan("x")))

	out := buf.String()
	assert.Contains(t, out, `"trace_id": "0123456789abcdef0123456789abcdef"`)
	assert.Contains(t, out, `"model_name": "gpt-4o"`)
}

func TestConsoleBatchPrintsEachSpan(t *testing.T) {
	var buf bytes.Buffer
	e := NewConsole(ConsoleConfig{Out: &buf})

	ok := e.ExportBatch(context.Background(), []kiseki.SpanData{testSpan("a"), testSpan("b")})
	require.True(t, ok)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 2)
}
