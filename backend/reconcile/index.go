package reconcile

import (
	"sort"
	"time"

	"github.com/corvid/threadview/backend/thread"
)

// ToolResult is the engine's record of one tool-role message.
type ToolResult struct {
	MessageID          string    `json:"message_id"`
	ToolCallID         string    `json:"tool_call_id,omitempty"`
	AssistantMessageID string    `json:"assistant_message_id,omitempty"`
	Name               string    `json:"name,omitempty"`
	RawContent         any       `json:"-"`
	CreatedAt          time.Time `json:"created_at"`
}

// resultIndex holds the two lookup structures built once per reconciliation
// pass: results keyed by call id, and owner-keyed lists for legacy matching.
type resultIndex struct {
	byCallID map[string]*ToolResult
	byOwner  map[string][]*ToolResult
	claimed  map[string]bool
	all      []*ToolResult
}

func buildResultIndex(msgs []thread.Message) *resultIndex {
	idx := &resultIndex{
		byCallID: make(map[string]*ToolResult),
		byOwner:  make(map[string][]*ToolResult),
		claimed:  make(map[string]bool),
	}

	for _, msg := range msgs {
		if msg.Role != thread.RoleTool {
			continue
		}

		result := describeResult(msg)
		idx.all = append(idx.all, result)

		if result.ToolCallID != "" {
			existing, ok := idx.byCallID[result.ToolCallID]
			// Duplicate call ids are a data-integrity anomaly; the
			// earliest-created message wins deterministically.
			if !ok || result.CreatedAt.Before(existing.CreatedAt) {
				idx.byCallID[result.ToolCallID] = result
			}
		}

		if result.AssistantMessageID != "" {
			idx.byOwner[result.AssistantMessageID] = append(idx.byOwner[result.AssistantMessageID], result)
		}
	}

	for owner := range idx.byOwner {
		list := idx.byOwner[owner]
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		})
	}

	return idx
}

// describeResult reads the identifying fields off a tool-role message. The
// call id and tool name live inside native result content; the owning
// assistant message id comes from metadata, with the content field as a
// fallback for producers that inlined it.
func describeResult(msg thread.Message) *ToolResult {
	result := &ToolResult{
		MessageID:          msg.ID,
		AssistantMessageID: msg.Metadata.AssistantMessageID,
		RawContent:         msg.Content,
		CreatedAt:          msg.CreatedAt,
	}

	parsed := NormalizeContent(msg.Content).Parsed
	if obj, ok := parsed.(map[string]any); ok {
		if id, ok := obj["tool_call_id"].(string); ok {
			result.ToolCallID = id
		}
		if name, ok := obj["name"].(string); ok {
			result.Name = name
		}
		if result.AssistantMessageID == "" {
			if owner, ok := obj["assistant_message_id"].(string); ok {
				result.AssistantMessageID = owner
			}
		}
	}

	return result
}

// lookupByCallID returns the result bound to a call id, claiming it so it can
// never be attached to more than one pair.
func (idx *resultIndex) lookupByCallID(callID string) *ToolResult {
	if callID == "" {
		return nil
	}
	result, ok := idx.byCallID[callID]
	if !ok || idx.claimed[result.MessageID] {
		return nil
	}
	idx.claimed[result.MessageID] = true
	return result
}

// unclaimedOwned returns the still-unclaimed owner-keyed results for an
// assistant message, in creation order, claiming all of them.
func (idx *resultIndex) unclaimedOwned(assistantMessageID string) []*ToolResult {
	var owned []*ToolResult
	for _, result := range idx.byOwner[assistantMessageID] {
		if idx.claimed[result.MessageID] {
			continue
		}
		idx.claimed[result.MessageID] = true
		owned = append(owned, result)
	}
	return owned
}
