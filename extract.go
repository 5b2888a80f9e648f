package kiseki

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractTokens pulls prompt and completion token counts out of a model-call
// result. It recognizes a closed set of shapes, tried in order, and never
// fails — any result it cannot interpret yields zero counts:
//
//  1. a TokenReporter implementation (the result reports its own usage),
//  2. a map[string]any with a "usage" object holding OpenAI-style
//     prompt_tokens/completion_tokens or Anthropic-style
//     input_tokens/output_tokens,
//  3. a JSON string parsing to that map shape,
//  4. any other value that marshals to that map shape.
func ExtractTokens(result any) (input, output int) {
	switch r := result.(type) {
	case nil:
		return 0, 0
	case TokenReporter:
		return r.TokenUsage()
	case map[string]any:
		return tokensFromMap(r)
	case string:
		var m map[string]any
		if json.Unmarshal([]byte(r), &m) == nil {
			return tokensFromMap(m)
		}
		return 0, 0
	default:
		raw, err := json.Marshal(result)
		if err != nil {
			return 0, 0
		}
		var m map[string]any
		if json.Unmarshal(raw, &m) != nil {
			return 0, 0
		}
		return tokensFromMap(m)
	}
}

func tokensFromMap(m map[string]any) (input, output int) {
	usage, ok := m["usage"].(map[string]any)
	if !ok {
		return 0, 0
	}
	input = intFrom(usage["prompt_tokens"])
	if input == 0 {
		input = intFrom(usage["input_tokens"])
	}
	output = intFrom(usage["completion_tokens"])
	if output == 0 {
		output = intFrom(usage["output_tokens"])
	}
	return input, output
}

func intFrom(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	default:
		return 0
	}
}

// ExtractContent pulls the generated text out of a model-call result for the
// named provider. Anthropic responses carry a content-block array; OpenAI
// responses carry choices with either a chat message or a completion text.
// Results that match neither shape fall back to a bare "content" field, then
// to their string rendering. Like ExtractTokens, it never fails.
func ExtractContent(result any, provider string) string {
	m, ok := asMap(result)
	if !ok {
		return fmt.Sprint(result)
	}

	switch strings.ToLower(provider) {
	case "anthropic":
		if blocks, ok := m["content"].([]any); ok {
			var sb strings.Builder
			for _, b := range blocks {
				if block, ok := b.(map[string]any); ok {
					if text, ok := block["text"].(string); ok {
						sb.WriteString(text)
					}
				}
			}
			if sb.Len() > 0 {
				return sb.String()
			}
		}
	case "openai":
		if choices, ok := m["choices"].([]any); ok && len(choices) > 0 {
			if choice, ok := choices[0].(map[string]any); ok {
				if msg, ok := choice["message"].(map[string]any); ok {
					if content, ok := msg["content"].(string); ok {
						return content
					}
				}
				if text, ok := choice["text"].(string); ok {
					return text
				}
			}
		}
	}

	if content, ok := m["content"].(string); ok {
		return content
	}
	return fmt.Sprint(result)
}

func asMap(result any) (map[string]any, bool) {
	switch r := result.(type) {
	case map[string]any:
		return r, true
	case string:
		var m map[string]any
		if json.Unmarshal([]byte(r), &m) == nil {
			return m, true
		}
		return nil, false
	case nil:
		return nil, false
	default:
		raw, err := json.Marshal(result)
		if err != nil {
			return nil, false
		}
		var m map[string]any
		if json.Unmarshal(raw, &m) != nil {
			return nil, false
		}
		return m, true
	}
}
