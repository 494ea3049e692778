package chat

import "time"

// Roles recognised in a conversation transcript.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn entry in the conversation. While an assistant message is
// being streamed its Content grows by append and Citations is append-only; once
// the stream ends the message is frozen.
type Message struct {
	ID        string     `json:"id"`
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Citations []Citation `json:"citations,omitempty"`
	Matches   []JobMatch `json:"matches,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Citation attributes a character range of assistant text to one context
// document. Start/End are rune offsets into the final content as known when
// the citation was emitted; they must be re-validated against the latest
// content length before use. DocumentID is a 1-based decimal index into the
// Matches of the same message.
type Citation struct {
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Text       string `json:"text"`
	DocumentID string `json:"document_id"`
}

// ConsolidatedCitation is the derived, render-ready form of a citation: one
// per distinct document id, snapped outward to word boundaries. Never stored.
type ConsolidatedCitation struct {
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Text       string `json:"text"`
	DocumentID string `json:"document_id"`
}

// JobMatch is one vector-search hit. Produced once per user turn, attached to
// exactly one assistant message, never mutated.
type JobMatch struct {
	ID       string      `json:"id"`
	Score    float64     `json:"score"`
	Metadata JobMetadata `json:"metadata"`
}

// JobMetadata carries the listing fields used for context documents and cards.
type JobMetadata struct {
	Company     string   `json:"company"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	JobType     string   `json:"job_type"`
	MinAmount   *float64 `json:"min_amount,omitempty"`
	MaxAmount   *float64 `json:"max_amount,omitempty"`
	Currency    string   `json:"currency,omitempty"`
	Interval    string   `json:"interval,omitempty"`
	JobURL      string   `json:"job_url"`
	DatePosted  string   `json:"date_posted,omitempty"`
}
