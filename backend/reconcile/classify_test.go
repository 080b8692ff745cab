package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		content any
		want    Shape
	}{
		{
			"native multi-call assistant",
			`{"tool_calls":[{"id":"tu_1","function":{"name":"web_search","arguments":"{}"}}]}`,
			ShapeNativeAssistant,
		},
		{
			"native tool result",
			`{"role":"tool","tool_call_id":"tu_1","name":"web_search","content":"X"}`,
			ShapeNativeToolResult,
		},
		{
			"structured tool execution",
			`{"tool_execution":{"function_name":"scrape_webpage","result":{"output":"ok","success":true}}}`,
			ShapeToolExecution,
		},
		{
			"legacy xml tag pair",
			`<web-search query="golang generics"></web-search>`,
			ShapeLegacyXML,
		},
		{
			"legacy xml inline attributes without closing tag",
			`<execute-command command="ls -la">`,
			ShapeLegacyXML,
		},
		{"plain text", "just some prose", ShapePlainText},
		{"bare tag without attributes is prose", "a <b> c", ShapePlainText},
		{"number", `42`, ShapePlainText},
		{"null content", nil, ShapePlainText},
		{
			"role envelope unwraps to native assistant",
			`{"role":"assistant","content":{"tool_calls":[{"id":"tu_1","function":{"name":"web_search"}}]}}`,
			ShapeNativeAssistant,
		},
		{
			"role envelope with string content unwraps",
			`{"role":"assistant","content":"{\"tool_execution\":{\"function_name\":\"grep\"}}"}`,
			ShapeToolExecution,
		},
		{
			"native format wins over residual legacy markers",
			`{"tool_calls":[{"id":"tu_1","function":{"name":"x"}}],"tool_execution":{"function_name":"y"}}`,
			ShapeNativeAssistant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(NormalizeContent(tt.content))
			assert.Equal(t, tt.want, got, "shape %s", got)
		})
	}
}

func TestClassifyDepthBound(t *testing.T) {
	// Five nested role/content envelopes exceed the four-level bound and
	// degrade to plain text instead of recursing further.
	nested := map[string]any{"tool_calls": []any{}}
	var content any = nested
	for range 5 {
		content = map[string]any{"role": "assistant", "content": content}
	}

	got := Classify(NormalizeContent(content))
	assert.Equal(t, ShapePlainText, got)

	// Within the bound the inner shape is still found.
	content = nested
	for range 3 {
		content = map[string]any{"role": "assistant", "content": content}
	}
	got = Classify(NormalizeContent(content))
	assert.Equal(t, ShapeNativeAssistant, got)
}
