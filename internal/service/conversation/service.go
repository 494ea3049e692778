// Package conversation owns the single mutable piece of client state: the
// in-memory message sequence for the one conversation a client instance
// serves. Everything else operates on value copies read from here.
package conversation

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zhouzirui/careerchat/client/internal/model/chat"
)

var ErrNoMessages = errors.New("conversation is empty")

// Service is a versioned in-memory conversation store. Mutations only happen
// from the coordinator owning the current turn; readers get deep-copied
// snapshots and can never observe later writes.
type Service struct {
	mu       sync.RWMutex
	messages []chat.Message
	version  uint64
	loading  bool
}

// NewService bootstraps an empty conversation store.
func NewService() *Service {
	return &Service{messages: make([]chat.Message, 0, 16)}
}

// BeginTurn flips the loading flag and reports whether the caller acquired the
// turn. Only one turn may be in flight; the flag doubles as the mutex that
// enforces it.
func (s *Service) BeginTurn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loading {
		return false
	}
	s.loading = true
	s.version++
	return true
}

// EndTurn clears the loading flag at stream end or on any error.
func (s *Service) EndTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.version++
}

// Append adds a message to the conversation, assigning id and timestamp when
// absent.
func (s *Service) Append(message chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	s.messages = append(s.messages, message)
	s.version++
}

// ReplaceLast swaps the newest message for an updated snapshot of it. Identity
// and creation time of the original are preserved so a streaming update cannot
// reassign them.
func (s *Service) ReplaceLast(message chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.messages) == 0 {
		return ErrNoMessages
	}

	last := s.messages[len(s.messages)-1]
	message.ID = last.ID
	message.CreatedAt = last.CreatedAt
	s.messages[len(s.messages)-1] = message
	s.version++
	return nil
}

// History returns a copy of the transcript, optionally dropping system-role
// messages, which the answer endpoint must not see.
func (s *Service) History(includeSystem bool) []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := make([]chat.Message, 0, len(s.messages))
	for _, msg := range s.messages {
		if !includeSystem && msg.Role == chat.RoleSystem {
			continue
		}
		history = append(history, copyMessage(msg))
	}
	return history
}

// Snapshot exposes a read-only copy of the conversation for rendering.
func (s *Service) Snapshot() chat.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := make([]chat.Message, len(s.messages))
	for i, msg := range s.messages {
		messages[i] = copyMessage(msg)
	}

	return chat.Snapshot{
		Version:  s.version,
		Loading:  s.loading,
		Messages: messages,
	}
}

// copyMessage detaches the slices a streamed message keeps appending to.
func copyMessage(msg chat.Message) chat.Message {
	if len(msg.Citations) > 0 {
		msg.Citations = append([]chat.Citation(nil), msg.Citations...)
	}
	if len(msg.Matches) > 0 {
		msg.Matches = append([]chat.JobMatch(nil), msg.Matches...)
	}
	return msg
}
