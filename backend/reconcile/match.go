package reconcile

import (
	"sort"
	"time"

	"github.com/corvid/threadview/backend/thread"
	"github.com/prometheus/client_golang/prometheus"
)

// PairState tracks a pair's lifecycle. PENDING is a legitimate, displayable
// state while the owning assistant turn is still streaming.
type PairState string

const (
	PairStatePending  PairState = "pending"
	PairStateResolved PairState = "resolved"
)

// NoResultOutput is the sentinel output for a call whose assistant turn
// completed without a result ever arriving. An explicit timeout policy, not
// a silent omission.
const NoResultOutput = "no result received"

// ToolCallPair joins one tool call with its result, if any. A given result
// is attached to at most one pair across the whole list, and a given call
// appears in exactly one pair.
type ToolCallPair struct {
	Call            ToolCall    `json:"call"`
	Result          *ToolResult `json:"result,omitempty"`
	OutputText      string      `json:"output_text"`
	Success         bool        `json:"success"`
	State           PairState   `json:"state"`
	CallCreatedAt   time.Time   `json:"call_created_at"`
	ResultCreatedAt time.Time   `json:"result_created_at,omitzero"`
}

// Engine is the reconciliation engine: a pure, idempotent projection from a
// message list to an ordered pair list. It holds no state between passes, so
// a single Engine is safe for concurrent use.
type Engine struct {
	metrics *metricsProvider
}

type EngineOption func(*Engine)

func WithMetrics(registry *prometheus.Registry) EngineOption {
	return func(e *Engine) {
		e.metrics = newMetricsProvider(registry)
	}
}

func NewEngine(opts ...EngineOption) *Engine {
	engine := &Engine{}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Reconcile computes the full pair list for a message snapshot. Identical
// input yields identical output, so callers may memoize the result and must
// re-run the pass after each incremental change rather than patching pairs.
func (e *Engine) Reconcile(msgs []thread.Message) []ToolCallPair {
	ordered := make([]thread.Message, len(msgs))
	copy(ordered, msgs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	idx := buildResultIndex(ordered)

	var pairs []ToolCallPair
	for _, msg := range ordered {
		if msg.Role != thread.RoleAssistant {
			continue
		}
		pairs = append(pairs, e.matchMessage(msg, idx)...)
	}

	e.metrics.ObservePass(pairs, idx)
	return pairs
}

func (e *Engine) matchMessage(msg thread.Message, idx *resultIndex) []ToolCallPair {
	shape, _ := resolveShape(NormalizeContent(msg.Content).Parsed, 0)
	calls := ExtractCalls(msg)

	if shape == ShapeNativeAssistant {
		// Filter semantics: every call gets its own lookup, so k calls
		// with k available results yield k resolved pairs.
		pairs := make([]ToolCallPair, 0, len(calls))
		for _, call := range calls {
			pairs = append(pairs, e.makePair(msg, call, idx.lookupByCallID(call.ID)))
		}
		return pairs
	}

	// Legacy: zip the synthesized calls positionally against all
	// owner-keyed results, in creation order.
	owned := idx.unclaimedOwned(msg.ID)

	var pairs []ToolCallPair
	for i, call := range calls {
		var result *ToolResult
		if i < len(owned) {
			result = owned[i]
		}
		pairs = append(pairs, e.makePair(msg, call, result))
	}

	// Surplus results are a historical data irregularity: surface them
	// with a synthesized call stub rather than dropping them.
	for _, result := range owned[min(len(calls), len(owned)):] {
		pairs = append(pairs, e.makePair(msg, stubCall(result), result))
	}

	return pairs
}

func (e *Engine) makePair(msg thread.Message, call ToolCall, result *ToolResult) ToolCallPair {
	pair := ToolCallPair{
		Call:          call,
		CallCreatedAt: msg.CreatedAt,
	}

	if result == nil {
		if msg.Complete {
			// Turn finished with no result: forced failure sentinel.
			pair.State = PairStateResolved
			pair.OutputText = NoResultOutput
			pair.Success = false
		} else {
			pair.State = PairStatePending
		}
		return pair
	}

	unwrapped := UnwrapContent(result.RawContent)

	pair.Result = result
	pair.State = PairStateResolved
	pair.OutputText = unwrapped.OutputText
	pair.Success = InferSuccess(unwrapped)
	pair.ResultCreatedAt = result.CreatedAt

	if pair.Call.Function == "" {
		pair.Call.Function = displayName(result, unwrapped)
	}
	if pair.Call.ID == "" && result.ToolCallID != "" {
		pair.Call.ID = result.ToolCallID
	}

	return pair
}

func stubCall(result *ToolResult) ToolCall {
	unwrapped := UnwrapContent(result.RawContent)
	return ToolCall{
		Function:    displayName(result, unwrapped),
		Synthesized: true,
	}
}

func displayName(result *ToolResult, unwrapped Unwrapped) string {
	if result.Name != "" {
		return result.Name
	}
	if unwrapped.Name != "" {
		return unwrapped.Name
	}
	return "tool"
}
