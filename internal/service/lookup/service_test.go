package lookup

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/careerchat/client/internal/service/backend"
)

type fakeBackend struct {
	needsSearch   bool
	analyzeStatus int
	searchStatus  int
	searchDelay   time.Duration
	searchCalls   atomic.Int32
	searchAborted atomic.Bool
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/agent/analyze", func(w http.ResponseWriter, r *http.Request) {
		if f.analyzeStatus != 0 {
			w.WriteHeader(f.analyzeStatus)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"needs_vector_search": f.needsSearch,
			"reasoning":           "test",
			"modified_query":      "",
		})
	})
	mux.HandleFunc("/api/v1/vector/search", func(w http.ResponseWriter, r *http.Request) {
		f.searchCalls.Add(1)
		if f.searchStatus != 0 {
			w.WriteHeader(f.searchStatus)
			return
		}
		if f.searchDelay > 0 {
			select {
			case <-time.After(f.searchDelay):
			case <-r.Context().Done():
				f.searchAborted.Store(true)
				return
			}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"matches": []map[string]any{
				{
					"id":    "job-1",
					"score": 0.91,
					"metadata": map[string]any{
						"company":     "Acme",
						"title":       "Backend Engineer",
						"description": "Go services",
						"location":    "Berlin",
						"job_type":    "fulltime",
						"job_url":     "https://jobs.example/1",
					},
				},
				{
					"id":    "job-2",
					"score": 0.77,
					"metadata": map[string]any{
						"company":     "Globex",
						"title":       "SRE",
						"description": "Keep it up",
						"location":    "Remote",
						"job_type":    "contract",
						"job_url":     "https://jobs.example/2",
					},
				},
			},
		})
	})
	return mux
}

func newService(t *testing.T, f *fakeBackend, topK int) *Service {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return NewService(backend.NewClient(srv.URL, 5*time.Second), topK)
}

func TestResolveBuildsContextDocumentsWhenSearchNeeded(t *testing.T) {
	f := &fakeBackend{needsSearch: true}
	svc := newService(t, f, 3)

	result := svc.Resolve(context.Background(), "find me go jobs")

	require.True(t, result.NeedsSearch)
	require.Len(t, result.Matches, 2)
	require.Len(t, result.ContextDocuments, 2)

	assert.Equal(t, "1", result.ContextDocuments[0].ID)
	assert.Equal(t, "2", result.ContextDocuments[1].ID)
	assert.Contains(t, result.ContextDocuments[0].Data, "Acme")
	assert.Contains(t, result.ContextDocuments[0].Data, "Backend Engineer")
	assert.Contains(t, result.ContextDocuments[0].Data, "Go services")
}

func TestResolveNoSearchNeededYieldsEmptyResult(t *testing.T) {
	f := &fakeBackend{needsSearch: false, searchDelay: 500 * time.Millisecond}
	svc := newService(t, f, 3)

	result := svc.Resolve(context.Background(), "how do I write a cover letter")

	assert.False(t, result.NeedsSearch)
	assert.Empty(t, result.ContextDocuments)
	assert.Empty(t, result.Matches)
	// Both lookups launch together; the analysis verdict cancels the slower
	// speculative search before it finishes.
	assert.EqualValues(t, 1, f.searchCalls.Load())
}

func TestResolveAnalysisFailureDegradesToNoSearch(t *testing.T) {
	f := &fakeBackend{analyzeStatus: http.StatusInternalServerError}
	svc := newService(t, f, 3)

	result := svc.Resolve(context.Background(), "data scientist salaries")

	assert.False(t, result.NeedsSearch)
	assert.Empty(t, result.ContextDocuments)
	assert.Empty(t, result.Matches)
}

func TestResolveSearchFailureDegradesToEmptyMatches(t *testing.T) {
	f := &fakeBackend{needsSearch: true, searchStatus: http.StatusBadGateway}
	svc := newService(t, f, 3)

	result := svc.Resolve(context.Background(), "find me go jobs")

	assert.True(t, result.NeedsSearch)
	assert.Empty(t, result.Matches)
	assert.Empty(t, result.ContextDocuments)
}
