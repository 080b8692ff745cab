package reconcile

import (
	"regexp"
	"strings"
)

// Shape identifies which wire format generation a message content belongs to.
type Shape int

const (
	ShapePlainText Shape = iota
	ShapeNativeAssistant
	ShapeNativeToolResult
	ShapeToolExecution
	ShapeLegacyXML
)

func (s Shape) String() string {
	switch s {
	case ShapeNativeAssistant:
		return "native_assistant"
	case ShapeNativeToolResult:
		return "native_tool_result"
	case ShapeToolExecution:
		return "tool_execution"
	case ShapeLegacyXML:
		return "legacy_xml"
	default:
		return "plain_text"
	}
}

// maxClassifyDepth bounds the role/content re-classification recursion so
// adversarially nested payloads cannot loop the classifier.
const maxClassifyDepth = 4

var xmlTagPattern = regexp.MustCompile(`<([a-zA-Z_][a-zA-Z0-9_-]*)(\s[^<>]*)?>`)

// Classify assigns a normalized content value to one of the five supported
// shapes. Native formats take precedence over legacy markers that may still
// be present in the same payload.
func Classify(n Normalized) Shape {
	shape, _ := resolveShape(n.Parsed, 0)
	return shape
}

// resolveShape returns both the shape and the value the shape applies to.
// The returned value matters when the shape was found by unwrapping a
// role/content envelope: downstream components operate on the resolved
// variant and never re-probe the outer layers.
func resolveShape(v any, depth int) (Shape, any) {
	switch val := v.(type) {
	case map[string]any:
		if _, ok := val["tool_calls"].([]any); ok {
			return ShapeNativeAssistant, val
		}
		if role, _ := val["role"].(string); role == "tool" {
			if _, ok := val["content"]; ok {
				return ShapeNativeToolResult, val
			}
		}
		if _, ok := val["tool_execution"]; ok {
			return ShapeToolExecution, val
		}
		if _, hasRole := val["role"]; hasRole {
			if inner, hasContent := val["content"]; hasContent {
				if depth >= maxClassifyDepth {
					return ShapePlainText, val
				}
				return resolveShape(NormalizeContent(inner).Parsed, depth+1)
			}
		}
		return ShapePlainText, val
	case string:
		if _, _, ok := xmlToolTag(val); ok {
			return ShapeLegacyXML, val
		}
		return ShapePlainText, val
	default:
		return ShapePlainText, val
	}
}

// xmlToolTag reports the first XML-style tool tag in s. A tag counts when it
// either has a matching closing tag or carries inline attributes, which is
// how the legacy single-tool format marked invocations.
func xmlToolTag(s string) (name string, attrs string, ok bool) {
	m := xmlTagPattern.FindStringSubmatch(s)
	if m == nil {
		return "", "", false
	}

	name = m[1]
	attrs = strings.TrimSpace(m[2])
	if strings.Contains(s, "</"+name+">") {
		return name, attrs, true
	}
	if attrs != "" && attrs != "/" {
		return name, attrs, true
	}
	return "", "", false
}
