package conv

import (
	"time"

	"github.com/corvid/threadview/backend/reconcile"
	"github.com/corvid/threadview/backend/thread"
)

// ToolCallPair is the wire shape of one reconciled pair.
type ToolCallPair struct {
	CallID          string     `json:"call_id,omitempty"`
	Function        string     `json:"function"`
	Arguments       string     `json:"arguments,omitempty"`
	Synthesized     bool       `json:"synthesized,omitempty"`
	Output          string     `json:"output"`
	Success         bool       `json:"success"`
	State           string     `json:"state"`
	ResultMessageID string     `json:"result_message_id,omitempty"`
	CallCreatedAt   time.Time  `json:"call_created_at"`
	ResultCreatedAt *time.Time `json:"result_created_at,omitempty"`
}

func ConvertPair(p *reconcile.ToolCallPair) ToolCallPair {
	pair := ToolCallPair{
		CallID:        p.Call.ID,
		Function:      p.Call.Function,
		Arguments:     p.Call.RawArguments,
		Synthesized:   p.Call.Synthesized,
		Output:        p.OutputText,
		Success:       p.Success,
		State:         string(p.State),
		CallCreatedAt: p.CallCreatedAt,
	}
	if p.Result != nil {
		pair.ResultMessageID = p.Result.MessageID
	}
	if !p.ResultCreatedAt.IsZero() {
		t := p.ResultCreatedAt
		pair.ResultCreatedAt = &t
	}
	return pair
}

func ConvertPairs(pairs []reconcile.ToolCallPair) []ToolCallPair {
	out := make([]ToolCallPair, len(pairs))
	for i := range pairs {
		out[i] = ConvertPair(&pairs[i])
	}
	return out
}

// Message is the wire shape of a stored message.
type Message struct {
	ID                 string    `json:"id"`
	ThreadID           string    `json:"thread_id"`
	Role               string    `json:"role"`
	Content            any       `json:"content"`
	AssistantMessageID string    `json:"assistant_message_id,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	Complete           bool      `json:"complete"`
}

func ConvertMessage(m *thread.Message) Message {
	return Message{
		ID:                 m.ID,
		ThreadID:           m.ThreadID,
		Role:               string(m.Role),
		Content:            m.Content,
		AssistantMessageID: m.Metadata.AssistantMessageID,
		CreatedAt:          m.CreatedAt,
		Complete:           m.Complete,
	}
}

func ConvertMessages(msgs []thread.Message) []Message {
	out := make([]Message, len(msgs))
	for i := range msgs {
		out[i] = ConvertMessage(&msgs[i])
	}
	return out
}

// Thread is the wire shape of a thread.
type Thread struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func ConvertThread(t *thread.Thread) Thread {
	return Thread{
		ID:        t.ID,
		Title:     t.Title,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func ConvertThreads(threads []thread.Thread) []Thread {
	out := make([]Thread, len(threads))
	for i := range threads {
		out[i] = ConvertThread(&threads[i])
	}
	return out
}
