package reconcile

import "strings"

// failureMarkers are scanned case-insensitively when no wrapper layer carried
// an explicit success flag.
var failureMarkers = []string{"error", "failed", "failure"}

// InferSuccess determines the success verdict for an unwrapped result. An
// explicit flag from the outermost wrapper layer always wins; otherwise the
// verdict is a best-effort substring heuristic, which callers should treat as
// advisory since output text may legitimately discuss error handling.
func InferSuccess(u Unwrapped) bool {
	if u.ExplicitSuccess != nil {
		return *u.ExplicitSuccess
	}

	lower := strings.ToLower(u.OutputText)
	for _, marker := range failureMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}
