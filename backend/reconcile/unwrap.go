package reconcile

import (
	"encoding/json"
	"fmt"
)

// Unwrapped is the output of resolving a result payload to its real output
// text. ExplicitSuccess is nil when no wrapper layer carried a success flag;
// ToolCallID and Name are display metadata carried forward from the
// outermost wrapper layer that provided them.
type Unwrapped struct {
	OutputText      string
	ExplicitSuccess *bool
	ToolCallID      string
	Name            string
}

const (
	// maxEncodingLevels bounds double-encoding recovery: past this many
	// successful string parses the last parsed string is taken as final.
	maxEncodingLevels = 3
	// maxWrapperDepth bounds role/content wrapper recursion.
	maxWrapperDepth = 4
)

// UnwrapContent recursively resolves nesting and double-encoding in a raw
// result payload. It never fails; malformed input degrades to plain text.
func UnwrapContent(content any) Unwrapped {
	var u Unwrapped
	unwrapValue(content, 0, 0, &u)
	return u
}

func unwrapValue(v any, encLevels, wrapDepth int, u *Unwrapped) {
	switch val := v.(type) {
	case nil:
		u.OutputText = ""
	case string:
		unwrapString(val, encLevels, wrapDepth, u)
	case map[string]any:
		unwrapObject(val, encLevels, wrapDepth, u)
	default:
		u.OutputText = stringifyJSON(val)
	}
}

func unwrapString(s string, encLevels, wrapDepth int, u *Unwrapped) {
	cur := s
	for encLevels < maxEncodingLevels {
		var parsed any
		if err := json.Unmarshal([]byte(cur), &parsed); err != nil {
			// Not JSON: the string itself is the output text.
			u.OutputText = cur
			return
		}
		encLevels++

		if inner, ok := parsed.(string); ok {
			// Double encoding: the parsed value is itself a JSON
			// string, so parse again.
			cur = inner
			continue
		}

		unwrapValue(parsed, encLevels, wrapDepth, u)
		return
	}

	// Depth limit reached: the last successfully parsed string is final.
	u.OutputText = cur
}

func unwrapObject(obj map[string]any, encLevels, wrapDepth int, u *Unwrapped) {
	if role, _ := obj["role"].(string); role == "tool" {
		if inner, ok := obj["content"]; ok {
			// Outer metadata is never overwritten by inner metadata.
			if u.ToolCallID == "" {
				if id, ok := obj["tool_call_id"].(string); ok {
					u.ToolCallID = id
				}
			}
			if u.Name == "" {
				if name, ok := obj["name"].(string); ok {
					u.Name = name
				}
			}

			if wrapDepth >= maxWrapperDepth {
				u.OutputText = stringifyJSON(obj)
				return
			}
			unwrapValue(inner, encLevels, wrapDepth+1, u)
			return
		}
	}

	if execution, ok := obj["tool_execution"].(map[string]any); ok {
		unwrapExecution(execution, wrapDepth, u)
		return
	}

	// Terminal object with no recognized wrapper shape.
	u.OutputText = stringifyJSON(obj)
}

func unwrapExecution(execution map[string]any, wrapDepth int, u *Unwrapped) {
	if u.Name == "" {
		u.Name = executionFunctionName(execution)
	}

	result, ok := execution["result"].(map[string]any)
	if !ok {
		u.OutputText = stringifyJSON(map[string]any{"tool_execution": execution})
		return
	}

	// The outermost explicit flag wins over anything found deeper.
	if success, ok := result["success"].(bool); ok && u.ExplicitSuccess == nil {
		u.ExplicitSuccess = &success
	}

	switch output := result["output"].(type) {
	case nil:
		u.OutputText = ""
	case string:
		// The output may itself be a JSON string once more; apply a
		// single extra unwrap pass.
		var parsed any
		if err := json.Unmarshal([]byte(output), &parsed); err != nil {
			u.OutputText = output
			return
		}
		if inner, ok := parsed.(string); ok {
			u.OutputText = inner
			return
		}
		unwrapValue(parsed, maxEncodingLevels, wrapDepth+1, u)
	default:
		unwrapValue(output, maxEncodingLevels, wrapDepth+1, u)
	}
}

func stringifyJSON(v any) string {
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(encoded)
}
