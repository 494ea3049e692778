package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/careerchat/client/internal/model/chat"
	"github.com/zhouzirui/careerchat/client/internal/service/backend"
	"github.com/zhouzirui/careerchat/client/internal/service/conversation"
	"github.com/zhouzirui/careerchat/client/internal/service/lookup"
	"github.com/zhouzirui/careerchat/client/internal/service/notify"
)

// turnBackend fakes all three upstream endpoints for one turn.
type turnBackend struct {
	needsSearch  bool
	streamStatus int
	streamLines  []string

	mu          sync.Mutex
	chatRequest backend.ChatRequest
}

func (b *turnBackend) lastChatRequest() backend.ChatRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.chatRequest
}

func (b *turnBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/agent/analyze", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"needs_vector_search": b.needsSearch})
	})
	mux.HandleFunc("/api/v1/vector/search", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"matches": []map[string]any{
				{
					"id":    "job-1",
					"score": 0.9,
					"metadata": map[string]any{
						"company":     "Acme",
						"title":       "Backend Engineer",
						"description": "Go services at scale",
						"location":    "Berlin",
						"job_type":    "fulltime",
						"job_url":     "https://jobs.example/1",
					},
				},
			},
		})
	})
	mux.HandleFunc("/api/v1/chat/stream", func(w http.ResponseWriter, r *http.Request) {
		var req backend.ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		b.mu.Lock()
		b.chatRequest = req
		b.mu.Unlock()

		if b.streamStatus != 0 {
			w.WriteHeader(b.streamStatus)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range b.streamLines {
			fmt.Fprintf(w, "data: %s\n\n", line)
			flusher.Flush()
		}
	})
	return mux
}

func newTurnService(t *testing.T, b *turnBackend) (*Service, *notify.Hub) {
	t.Helper()
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)

	client := backend.NewClient(srv.URL, 5*time.Second)
	hub := notify.NewHub()
	svc := NewService(conversation.NewService(), lookup.NewService(client, 3), client, hub)
	return svc, hub
}

func drain(t *testing.T, updates <-chan chat.Snapshot) chat.Snapshot {
	t.Helper()
	var last chat.Snapshot
	for snapshot := range updates {
		last = snapshot
	}
	return last
}

func TestSubmitRejectsBlankInput(t *testing.T) {
	svc, _ := newTurnService(t, &turnBackend{})

	_, err := svc.Submit(context.Background(), "   \n\t")
	require.ErrorIs(t, err, ErrEmptyMessage)
}

func TestSubmitRejectsOverlappingTurns(t *testing.T) {
	svc, _ := newTurnService(t, &turnBackend{streamLines: []string{`"hi"`, "[DONE]"}})

	require.True(t, svc.Store().BeginTurn())
	defer svc.Store().EndTurn()

	_, err := svc.Submit(context.Background(), "hello")
	require.ErrorIs(t, err, ErrTurnInFlight)
}

func TestTurnStreamsContentAndCitationsWithMatches(t *testing.T) {
	b := &turnBackend{
		needsSearch: true,
		streamLines: []string{
			`"Acme is hiring"`,
			`" Go engineers."`,
			`{"type":"citation-start","citations":[{"start":0,"end":4,"text":"Acme","document_id":"1"}]}`,
			`.`,
			`[DONE]`,
		},
	}
	svc, _ := newTurnService(t, b)

	updates, err := svc.Submit(context.Background(), "find go jobs")
	require.NoError(t, err)
	final := drain(t, updates)

	require.Len(t, final.Messages, 2)
	assert.Equal(t, chat.RoleUser, final.Messages[0].Role)

	assistant := final.Messages[1]
	assert.Equal(t, chat.RoleAssistant, assistant.Role)
	assert.Equal(t, "Acme is hiring Go engineers.", assistant.Content)
	require.Len(t, assistant.Citations, 1)
	assert.Equal(t, "1", assistant.Citations[0].DocumentID)
	require.Len(t, assistant.Matches, 1)
	assert.Equal(t, "Acme", assistant.Matches[0].Metadata.Company)

	assert.False(t, final.Loading, "loading must clear at stream end")

	req := b.lastChatRequest()
	assert.True(t, req.Stream)
	require.Len(t, req.Context, 1)
	assert.Equal(t, "1", req.Context[0].ID)
	require.NotEmpty(t, req.Messages)
	assert.Equal(t, chat.RoleUser, req.Messages[len(req.Messages)-1].Role)
}

func TestTurnWithoutSearchSendsEmptyContextAndNoMatches(t *testing.T) {
	b := &turnBackend{
		needsSearch: false,
		streamLines: []string{`"General advice."`, `[DONE]`},
	}
	svc, _ := newTurnService(t, b)

	updates, err := svc.Submit(context.Background(), "cover letter tips")
	require.NoError(t, err)
	final := drain(t, updates)

	req := b.lastChatRequest()
	require.NotNil(t, req.Context)
	assert.Empty(t, req.Context)

	require.Len(t, final.Messages, 2)
	assert.Empty(t, final.Messages[1].Matches, "no matches may attach when search was not needed")
}

func TestTurnExcludesSystemMessagesFromOutboundHistory(t *testing.T) {
	b := &turnBackend{streamLines: []string{`"ok"`, `[DONE]`}}
	svc, _ := newTurnService(t, b)
	svc.Store().Append(chat.Message{Role: chat.RoleSystem, Content: "be brief"})

	updates, err := svc.Submit(context.Background(), "hello")
	require.NoError(t, err)
	drain(t, updates)

	for _, msg := range b.lastChatRequest().Messages {
		assert.NotEqual(t, chat.RoleSystem, msg.Role)
	}
}

func TestStreamFailureNotifiesOnceAndKeepsPartialState(t *testing.T) {
	b := &turnBackend{streamStatus: http.StatusInternalServerError}
	svc, hub := newTurnService(t, b)

	notifications, cancel := hub.Subscribe()
	defer cancel()

	updates, err := svc.Submit(context.Background(), "hello")
	require.NoError(t, err)
	final := drain(t, updates)

	select {
	case n := <-notifications:
		assert.Equal(t, "Error", n.Title)
	case <-time.After(time.Second):
		t.Fatal("expected an error notification")
	}
	select {
	case n := <-notifications:
		t.Fatalf("expected exactly one notification, got another: %+v", n)
	default:
	}

	assert.False(t, final.Loading, "loading must clear on failure")
	require.Len(t, final.Messages, 1, "user message stays, no assistant message was created")
	assert.Equal(t, chat.RoleUser, final.Messages[0].Role)

	// The conversation stays usable for the next turn.
	require.True(t, svc.Store().BeginTurn())
	svc.Store().EndTurn()
}

func TestMidStreamSnapshotsGrowMonotonically(t *testing.T) {
	b := &turnBackend{streamLines: []string{`"a"`, `"b"`, `"c"`, `[DONE]`}}
	svc, _ := newTurnService(t, b)

	updates, err := svc.Submit(context.Background(), "hello")
	require.NoError(t, err)

	var previous string
	for snapshot := range updates {
		if len(snapshot.Messages) < 2 {
			continue
		}
		content := snapshot.Messages[1].Content
		require.True(t, len(content) >= len(previous), "content shrank: %q -> %q", previous, content)
		require.Equal(t, previous, content[:len(previous)], "content is append-only")
		previous = content
	}
	require.Equal(t, "abc", previous)
}
