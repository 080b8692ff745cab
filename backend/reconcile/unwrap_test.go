package reconcile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	encoded, err := json.Marshal(v)
	require.NoError(t, err)
	return string(encoded)
}

func TestUnwrapPlainString(t *testing.T) {
	u := UnwrapContent("result A")
	assert.Equal(t, "result A", u.OutputText)
	assert.Nil(t, u.ExplicitSuccess)
}

func TestUnwrapToolRoleWrapper(t *testing.T) {
	u := UnwrapContent(`{"role":"tool","tool_call_id":"t1","name":"web_search","content":"X"}`)
	assert.Equal(t, "X", u.OutputText)
	assert.Equal(t, "t1", u.ToolCallID)
	assert.Equal(t, "web_search", u.Name)
	assert.Nil(t, u.ExplicitSuccess)
}

func TestUnwrapDoubleEncoding(t *testing.T) {
	payload := map[string]any{"role": "tool", "content": "X"}
	single := mustJSON(t, payload)
	double := mustJSON(t, single)

	u1 := UnwrapContent(single)
	u2 := UnwrapContent(double)

	assert.Equal(t, "X", u1.OutputText)
	assert.Equal(t, u1.OutputText, u2.OutputText)
}

func TestUnwrapEncodingDepthBound(t *testing.T) {
	// Four string encodings exceed the three-level bound; the last
	// successfully parsed string is taken as final output.
	inner := "deep"
	wrapped := inner
	for range 4 {
		wrapped = mustJSON(t, wrapped)
	}

	u := UnwrapContent(wrapped)
	// Three parses peel three layers; what remains is the once-encoded
	// form of the innermost string.
	assert.Equal(t, mustJSON(t, inner), u.OutputText)
}

func TestUnwrapToolExecution(t *testing.T) {
	u := UnwrapContent(`{"tool_execution":{"function_name":"web_search","result":{"output":"found it","success":true}}}`)
	assert.Equal(t, "found it", u.OutputText)
	require.NotNil(t, u.ExplicitSuccess)
	assert.True(t, *u.ExplicitSuccess)
	assert.Equal(t, "web_search", u.Name)
}

func TestUnwrapToolExecutionFailure(t *testing.T) {
	u := UnwrapContent(`{"tool_execution":{"function_name":"scrape","result":{"output":"timeout","success":false}}}`)
	assert.Equal(t, "timeout", u.OutputText)
	require.NotNil(t, u.ExplicitSuccess)
	assert.False(t, *u.ExplicitSuccess)
}

func TestUnwrapToolExecutionEncodedOutput(t *testing.T) {
	// result.output may itself be one more JSON-encoded string.
	u := UnwrapContent(`{"tool_execution":{"result":{"output":"\"inner text\"","success":true}}}`)
	assert.Equal(t, "inner text", u.OutputText)
}

func TestUnwrapOuterMetadataWins(t *testing.T) {
	inner := map[string]any{"role": "tool", "tool_call_id": "inner_id", "name": "inner_name", "content": "X"}
	outer := map[string]any{"role": "tool", "tool_call_id": "outer_id", "name": "outer_name", "content": inner}

	u := UnwrapContent(outer)
	assert.Equal(t, "X", u.OutputText)
	assert.Equal(t, "outer_id", u.ToolCallID)
	assert.Equal(t, "outer_name", u.Name)
}

func TestUnwrapOutermostExplicitFlagWins(t *testing.T) {
	inner := mustJSON(t, map[string]any{
		"tool_execution": map[string]any{
			"result": map[string]any{"output": "inner out", "success": true},
		},
	})
	outer := map[string]any{
		"tool_execution": map[string]any{
			"result": map[string]any{"output": inner, "success": false},
		},
	}

	u := UnwrapContent(outer)
	require.NotNil(t, u.ExplicitSuccess)
	assert.False(t, *u.ExplicitSuccess)
	assert.Equal(t, "inner out", u.OutputText)
}

func TestUnwrapTerminalObjectStringifies(t *testing.T) {
	u := UnwrapContent(map[string]any{"status": "done", "count": float64(3)})
	assert.JSONEq(t, `{"status":"done","count":3}`, u.OutputText)
	assert.Nil(t, u.ExplicitSuccess)
}

func TestUnwrapMalformedNeverPanics(t *testing.T) {
	inputs := []any{
		nil,
		"",
		"{",
		`{"role":"tool"}`,
		`{"tool_execution":"not an object"}`,
		`{"tool_execution":{"result":"not an object"}}`,
		[]any{"a", "b"},
		42.0,
	}
	for _, input := range inputs {
		assert.NotPanics(t, func() { UnwrapContent(input) })
	}
}
