package conversation

import (
	"time"

	"github.com/zhouzirui/careerchat/client/internal/analysis/citation"
	"github.com/zhouzirui/careerchat/client/internal/model/chat"
)

// CitationView is one consolidated citation with its resolved source label.
type CitationView struct {
	Start       int    `json:"start"`
	End         int    `json:"end"`
	Text        string `json:"text"`
	DocumentID  string `json:"document_id"`
	SourceLabel string `json:"sourceLabel"`
}

// MessageView is a render-ready message: the raw citation list is replaced by
// the consolidated layer.
type MessageView struct {
	ID        string          `json:"id"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Citations []CitationView  `json:"citations,omitempty"`
	Matches   []chat.JobMatch `json:"matches,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

type SnapshotView struct {
	Version  uint64        `json:"version"`
	Loading  bool          `json:"loading"`
	Messages []MessageView `json:"messages"`
}

// RenderSnapshot applies citation consolidation to every message. Running the
// projection on each render is deliberate: it is pure and cheap, and the raw
// citation list keeps growing while a message streams in.
func RenderSnapshot(snapshot chat.Snapshot) SnapshotView {
	view := SnapshotView{
		Version:  snapshot.Version,
		Loading:  snapshot.Loading,
		Messages: make([]MessageView, 0, len(snapshot.Messages)),
	}

	for _, msg := range snapshot.Messages {
		mv := MessageView{
			ID:        msg.ID,
			Role:      msg.Role,
			Content:   msg.Content,
			Matches:   msg.Matches,
			CreatedAt: msg.CreatedAt,
		}
		for _, c := range citation.Consolidate(msg.Content, msg.Citations) {
			mv.Citations = append(mv.Citations, CitationView{
				Start:       c.Start,
				End:         c.End,
				Text:        c.Text,
				DocumentID:  c.DocumentID,
				SourceLabel: citation.SourceLabel(msg.Matches, c.DocumentID),
			})
		}
		view.Messages = append(view.Messages, mv)
	}
	return view
}
