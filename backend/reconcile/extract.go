package reconcile

import (
	"encoding/json"

	"github.com/corvid/threadview/backend/thread"
)

// ToolCall describes one invocation issued by an assistant turn. ID is empty
// for legacy formats, which assumed a single implicit call per turn.
type ToolCall struct {
	ID           string `json:"id,omitempty"`
	Function     string `json:"function"`
	RawArguments string `json:"raw_arguments,omitempty"`
	// Synthesized marks a call stub created for a surplus owner-keyed
	// result rather than extracted from the assistant message itself.
	Synthesized bool `json:"synthesized,omitempty"`
}

// ExtractCalls produces the ordered tool calls implied by an assistant
// message. It never returns more calls than the message declares and never
// infers calls that are not explicitly present.
func ExtractCalls(msg thread.Message) []ToolCall {
	if msg.Role != thread.RoleAssistant {
		return nil
	}

	shape, resolved := resolveShape(NormalizeContent(msg.Content).Parsed, 0)
	switch shape {
	case ShapeNativeAssistant:
		return extractNative(resolved.(map[string]any))
	case ShapeToolExecution:
		return extractExecution(resolved.(map[string]any))
	case ShapeLegacyXML:
		return extractXML(resolved.(string))
	default:
		return nil
	}
}

func extractNative(obj map[string]any) []ToolCall {
	entries, _ := obj["tool_calls"].([]any)
	calls := make([]ToolCall, 0, len(entries))

	for _, entry := range entries {
		call, ok := entry.(map[string]any)
		if !ok {
			continue
		}

		id, _ := call["id"].(string)
		var name, args string
		if fn, ok := call["function"].(map[string]any); ok {
			name, _ = fn["name"].(string)
			args = rawArguments(fn["arguments"])
		}
		if name == "" {
			// Some producers flatten the function descriptor.
			name, _ = call["name"].(string)
			if args == "" {
				args = rawArguments(call["arguments"])
			}
		}

		calls = append(calls, ToolCall{
			ID:           id,
			Function:     name,
			RawArguments: args,
		})
	}

	return calls
}

func extractExecution(obj map[string]any) []ToolCall {
	execution, ok := obj["tool_execution"].(map[string]any)
	if !ok {
		return []ToolCall{{Function: ""}}
	}

	return []ToolCall{{
		Function:     executionFunctionName(execution),
		RawArguments: rawArguments(execution["arguments"]),
	}}
}

func extractXML(text string) []ToolCall {
	name, attrs, ok := xmlToolTag(text)
	if !ok {
		return nil
	}
	return []ToolCall{{Function: name, RawArguments: attrs}}
}

func executionFunctionName(execution map[string]any) string {
	for _, key := range []string{"function_name", "name", "tool_name"} {
		if name, ok := execution[key].(string); ok && name != "" {
			return name
		}
	}
	return ""
}

// rawArguments copies an arguments value verbatim as a JSON-encoded string
// for storage fidelity. Parsing into a mapping is the execution layer's
// responsibility, not this engine's.
func rawArguments(v any) string {
	switch args := v.(type) {
	case nil:
		return ""
	case string:
		return args
	default:
		encoded, err := json.Marshal(args)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}
