// Package session drives one conversational turn end to end: lookups, the
// streamed answer request, frame decoding and store updates.
package session

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"

	"github.com/zhouzirui/careerchat/client/internal/model/chat"
	"github.com/zhouzirui/careerchat/client/internal/service/backend"
	"github.com/zhouzirui/careerchat/client/internal/service/conversation"
	"github.com/zhouzirui/careerchat/client/internal/service/lookup"
	"github.com/zhouzirui/careerchat/client/internal/service/notify"
)

var (
	ErrEmptyMessage  = errors.New("message is empty")
	ErrTurnInFlight  = errors.New("a turn is already in flight")
	errMissingStream = errors.New("stream body unavailable")
)

const streamReadBufferSize = 4096

// Service is the top-level turn coordinator. It owns all writes to the
// conversation store for the duration of a turn.
type Service struct {
	store    *conversation.Service
	lookup   *lookup.Service
	backend  *backend.Client
	notifier notify.Notifier
}

// NewService wires the coordinator. The notifier receives the single
// user-visible error per failed turn.
func NewService(store *conversation.Service, lookupSvc *lookup.Service, client *backend.Client, notifier notify.Notifier) *Service {
	return &Service{
		store:    store,
		lookup:   lookupSvc,
		backend:  client,
		notifier: notifier,
	}
}

// Store exposes the conversation store for read-side consumers.
func (s *Service) Store() *conversation.Service {
	return s.store
}

// Submit starts a turn for the given user text. It returns a channel that
// carries a conversation snapshot after every state change and closes when the
// turn completes or fails. Blank input and overlapping turns are rejected
// up front.
func (s *Service) Submit(ctx context.Context, text string) (<-chan chat.Snapshot, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	if !s.store.BeginTurn() {
		return nil, ErrTurnInFlight
	}

	s.store.Append(chat.Message{Role: chat.RoleUser, Content: text})

	updates := make(chan chat.Snapshot, 8)
	go s.runTurn(ctx, text, updates)
	return updates, nil
}

// runTurn performs the lookups and consumes the answer stream. Whatever
// partial assistant content accumulated before a failure stays in the store.
func (s *Service) runTurn(ctx context.Context, text string, updates chan<- chat.Snapshot) {
	defer close(updates)
	defer s.emit(ctx, updates) // final snapshot with loading cleared
	defer s.store.EndTurn()

	s.emit(ctx, updates) // user message + loading

	result := s.lookup.Resolve(ctx, text)

	if err := s.streamAnswer(ctx, result, updates); err != nil {
		log.Printf("[session] turn failed: %v", err)
		s.notifier.Notify(notify.Notification{
			Title:   "Error",
			Message: "Failed to send message. Please try again.",
		})
	}
}

// streamAnswer opens the answer channel and folds decoded frames into the
// assistant message, republishing a snapshot after every chunk.
func (s *Service) streamAnswer(ctx context.Context, result lookup.Result, updates chan<- chat.Snapshot) error {
	req := backend.ChatRequest{
		Messages: outboundMessages(s.store.History(false)),
		Stream:   true,
		Context:  result.ContextDocuments,
	}
	if req.Context == nil {
		req.Context = []backend.ContextDocument{}
	}

	body, err := s.backend.OpenChatStream(ctx, req)
	if err != nil {
		return err
	}
	if body == nil {
		return errMissingStream
	}
	defer body.Close()

	var (
		decoder   = backend.NewDecoder()
		content   strings.Builder
		citations []chat.Citation
		inserted  bool
		buf       = make([]byte, streamReadBufferSize)
	)

	apply := func(frames []backend.Frame) {
		if len(frames) == 0 {
			return
		}
		for _, frame := range frames {
			switch frame.Kind {
			case backend.FrameContentDelta:
				content.WriteString(frame.Text)
			case backend.FrameCitations:
				citations = append(citations, frame.Citations...)
			}
		}

		message := chat.Message{
			Role:      chat.RoleAssistant,
			Content:   content.String(),
			Citations: append([]chat.Citation(nil), citations...),
		}
		if result.NeedsSearch {
			message.Matches = result.Matches
		}

		if !inserted {
			s.store.Append(message)
			inserted = true
		} else if err := s.store.ReplaceLast(message); err != nil {
			log.Printf("[session] replace assistant message: %v", err)
		}
		s.emit(ctx, updates)
	}

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			apply(decoder.Decode(string(buf[:n])))
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				apply(decoder.Flush())
				return nil
			}
			return readErr
		}
	}
}

// emit publishes the current snapshot unless the caller has gone away.
func (s *Service) emit(ctx context.Context, updates chan<- chat.Snapshot) {
	select {
	case updates <- s.store.Snapshot():
	case <-ctx.Done():
	}
}

// outboundMessages reduces history to the role/content pairs the answer
// endpoint accepts.
func outboundMessages(history []chat.Message) []backend.ChatMessage {
	messages := make([]backend.ChatMessage, 0, len(history))
	for _, msg := range history {
		messages = append(messages, backend.ChatMessage{Role: msg.Role, Content: msg.Content})
	}
	return messages
}
