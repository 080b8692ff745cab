package reconcile

import "encoding/json"

// Normalized is the boundary-decoded form of a message content field.
// Parsed holds either a decoded JSON value or the original string when the
// content is not JSON, which is a legal shape for the legacy text formats.
type Normalized struct {
	Parsed  any
	WasJSON bool
}

// NormalizeContent turns a raw content value into a parsed value without any
// knowledge of tool semantics. It never fails: unparsable input is returned
// unchanged as plain text.
func NormalizeContent(content any) Normalized {
	switch v := content.(type) {
	case nil:
		return Normalized{Parsed: nil, WasJSON: false}
	case string:
		var parsed any
		if err := json.Unmarshal([]byte(v), &parsed); err != nil {
			return Normalized{Parsed: v, WasJSON: false}
		}
		return Normalized{Parsed: parsed, WasJSON: true}
	case json.RawMessage:
		return NormalizeContent(string(v))
	default:
		return Normalized{Parsed: v, WasJSON: true}
	}
}
