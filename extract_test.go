package kiseki

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type usageResult struct{ in, out int }

func (r usageResult) TokenUsage() (int, int) { return r.in, r.out }

func TestExtractTokensOpenAIMap(t *testing.T) {
	in, out := ExtractTokens(map[string]any{
		"usage": map[string]any{"prompt_tokens": 120, "completion_tokens": 80},
	})
	assert.Equal(t, 120, in)
	assert.Equal(t, 80, out)
}

func TestExtractTokensAnthropicMap(t *testing.T) {
	in, out := ExtractTokens(map[string]any{
		"usage": map[string]any{"input_tokens": 30, "output_tokens": 12},
	})
	assert.Equal(t, 30, in)
	assert.Equal(t, 12, out)
}

func TestExtractTokensPrefersOpenAIKeys(t *testing.T) {
	in, out := ExtractTokens(map[string]any{
		"usage": map[string]any{
			"prompt_tokens": 1, "completion_tokens": 2,
			"input_tokens": 100, "output_tokens": 200,
		},
	})
	assert.Equal(t, 1, in)
	assert.Equal(t, 2, out)
}

func TestExtractTokensReporter(t *testing.T) {
	in, out := ExtractTokens(usageResult{in: 5, out: 9})
	assert.Equal(t, 5, in)
	assert.Equal(t, 9, out)
}

func TestExtractTokensJSONString(t *testing.T) {
	in, out := ExtractTokens(`{"usage":{"prompt_tokens":11,"completion_tokens":4}}`)
	assert.Equal(t, 11, in)
	assert.Equal(t, 4, out)
}

func TestExtractTokensStructFallback(t *testing.T) {
	type usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	}
	type response struct {
		Usage usage `json:"usage"`
	}
	in, out := ExtractTokens(response{Usage: usage{PromptTokens: 64, CompletionTokens: 32}})
	assert.Equal(t, 64, in)
	assert.Equal(t, 32, out)
}

func TestExtractTokensUnrecognizedShapes(t *testing.T) {
	for _, result := range []any{
		nil,
		"plain text, not json",
		42,
		map[string]any{"no_usage": true},
		map[string]any{"usage": "not a map"},
	} {
		in, out := ExtractTokens(result)
		assert.Zero(t, in, "result %v", result)
		assert.Zero(t, out, "result %v", result)
	}
}

func TestExtractContentAnthropic(t *testing.T) {
	got := ExtractContent(map[string]any{
		"content": []any{
			map[string]any{"type": "text", "text": "Hello"},
			map[string]any{"type": "text", "text": " world"},
		},
	}, "anthropic")
	assert.Equal(t, "Hello world", got)
}

func TestExtractContentOpenAIChat(t *testing.T) {
	got := ExtractContent(map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"content": "Hi there"}},
		},
	}, "openai")
	assert.Equal(t, "Hi there", got)
}

func TestExtractContentOpenAICompletion(t *testing.T) {
	got := ExtractContent(map[string]any{
		"choices": []any{map[string]any{"text": "legacy completion"}},
	}, "openai")
	assert.Equal(t, "legacy completion", got)
}

func TestExtractContentGenericFallbacks(t *testing.T) {
	assert.Equal(t, "raw", ExtractContent(map[string]any{"content": "raw"}, "unknown"))
	assert.Equal(t, "42", ExtractContent(42, "openai"))
}
