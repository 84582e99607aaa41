package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Citation is a source passage returned alongside an answer.
type Citation struct {
	PageNumber     int     `json:"page"`
	Snippet        string  `json:"content"`
	RelevanceScore float64 `json:"score"`
}

// Preview returns the first n runes of the snippet, with an ellipsis when cut.
func (c Citation) Preview(n int) string {
	runes := []rune(c.Snippet)
	if n <= 0 || len(runes) <= n {
		return c.Snippet
	}
	return string(runes[:n]) + "..."
}

type ChatTurn struct {
	ID        string     `json:"id"`
	Role      Role       `json:"role"`
	Text      string     `json:"text"`
	Citations []Citation `json:"citations,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Clone returns a deep copy so callers cannot mutate the session log.
func (t ChatTurn) Clone() ChatTurn {
	out := t
	if t.Citations != nil {
		out.Citations = make([]Citation, len(t.Citations))
		copy(out.Citations, t.Citations)
	}
	return out
}

// HistoryEntry is the role/content pair echoed back to the backend.
type HistoryEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatAnswer is the decoded result of one question.
type ChatAnswer struct {
	Answer    string
	Detail    string
	Citations []Citation
}

// Text applies the answer → detail → placeholder fallback.
func (a ChatAnswer) Text() string {
	if strings.TrimSpace(a.Answer) != "" {
		return a.Answer
	}
	if a.Detail != "" {
		return a.Detail
	}
	return MsgNoAnswer
}
