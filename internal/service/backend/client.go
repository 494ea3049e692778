package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zhouzirui/careerchat/client/internal/model/chat"
)

// ErrStreamStatus reports a non-success status from the answer stream endpoint.
var ErrStreamStatus = errors.New("chat stream request failed")

// Client talks to the job-search backend: query-intent analysis, vector
// similarity search and the streamed answer channel.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a backend client for the given base URL. The timeout covers
// the two lookup requests; the answer stream deliberately runs without one and
// is bounded by its context instead.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// AnalyzeResponse mirrors POST /api/v1/agent/analyze.
type AnalyzeResponse struct {
	NeedsVectorSearch bool   `json:"needs_vector_search"`
	Reasoning         string `json:"reasoning"`
	ModifiedQuery     string `json:"modified_query"`
}

// searchResponse mirrors POST /api/v1/vector/search.
type searchResponse struct {
	Matches []chat.JobMatch `json:"matches"`
}

// ContextDocument is one grounding document sent with the chat request. ID is
// a 1-based decimal string; citations reference it as document_id.
type ContextDocument struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

// ChatMessage is the role/content pair the chat endpoint accepts.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /api/v1/chat/stream.
type ChatRequest struct {
	Messages []ChatMessage     `json:"messages"`
	Stream   bool              `json:"stream"`
	Context  []ContextDocument `json:"context"`
}

// AnalyzeQuery asks the intent classifier whether the query needs job search.
func (c *Client) AnalyzeQuery(ctx context.Context, query string) (*AnalyzeResponse, error) {
	var result AnalyzeResponse
	if err := c.postJSON(ctx, "/api/v1/agent/analyze", map[string]any{"query": query}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// VectorSearch retrieves the topK most similar job listings.
func (c *Client) VectorSearch(ctx context.Context, query string, topK int) ([]chat.JobMatch, error) {
	var result searchResponse
	body := map[string]any{"query": query, "top_k": topK}
	if err := c.postJSON(ctx, "/api/v1/vector/search", body, &result); err != nil {
		return nil, err
	}
	return result.Matches, nil
}

// OpenChatStream opens the streamed answer channel. The caller owns the
// returned body and must close it; a non-2xx status is reported as
// ErrStreamStatus with the body already closed.
func (c *Client) OpenChatStream(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/chat/stream", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	// Streams outlive the lookup timeout; rely on ctx for cancellation.
	streamClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := streamClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("open chat stream: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d", ErrStreamStatus, resp.StatusCode)
	}

	return resp.Body, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request %s: status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
