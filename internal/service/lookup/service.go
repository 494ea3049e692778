// Package lookup resolves the two speculative upstream lookups that precede
// every answer: query-intent analysis and vector similarity search.
package lookup

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/careerchat/client/internal/model/chat"
	"github.com/zhouzirui/careerchat/client/internal/service/backend"
)

// Service coordinates the analysis and search requests for one turn.
type Service struct {
	backend *backend.Client
	topK    int
}

// NewService wires the coordinator to the backend client. topK bounds the
// vector search result size.
func NewService(client *backend.Client, topK int) *Service {
	if topK < 1 {
		topK = 3
	}
	return &Service{backend: client, topK: topK}
}

// Result is the assembled outcome of both lookups. ContextDocuments is empty
// unless NeedsSearch is true; its 1-based ids are the document_id contract
// citations refer back to.
type Result struct {
	NeedsSearch      bool
	ContextDocuments []backend.ContextDocument
	Matches          []chat.JobMatch
}

// Resolve launches both lookups concurrently: the search is speculative, so it
// starts before the analysis verdict exists. The search runs under its own
// cancellable context and is aborted the moment analysis resolves that no
// search is needed, saving the remaining network cost. Either request failing
// degrades to a conservative default; lookup failures never reach the user.
func (s *Service) Resolve(ctx context.Context, query string) Result {
	searchCtx, cancelSearch := context.WithCancel(ctx)
	defer cancelSearch()

	var (
		needsSearch bool
		matches     []chat.JobMatch
	)

	g := new(errgroup.Group)
	g.Go(func() error {
		analysis, err := s.backend.AnalyzeQuery(ctx, query)
		if err != nil {
			log.Printf("[lookup] analysis failed, skipping search: %v", err)
			cancelSearch()
			return nil
		}
		needsSearch = analysis.NeedsVectorSearch
		if !needsSearch {
			cancelSearch()
		}
		return nil
	})
	g.Go(func() error {
		found, err := s.backend.VectorSearch(searchCtx, query, s.topK)
		if err != nil {
			// Cancellation of the speculative search is the expected path
			// when analysis says no; only genuine failures are worth a line.
			if searchCtx.Err() == nil {
				log.Printf("[lookup] vector search failed, continuing without matches: %v", err)
			}
			return nil
		}
		matches = found
		return nil
	})
	_ = g.Wait()

	if !needsSearch {
		return Result{}
	}

	return Result{
		NeedsSearch:      true,
		ContextDocuments: buildContextDocuments(matches),
		Matches:          matches,
	}
}

// buildContextDocuments turns matches into the human-readable grounding
// documents the answer generator cites. Index is 1-based by contract.
func buildContextDocuments(matches []chat.JobMatch) []backend.ContextDocument {
	documents := make([]backend.ContextDocument, 0, len(matches))
	for i, match := range matches {
		meta := match.Metadata
		documents = append(documents, backend.ContextDocument{
			ID:   strconv.Itoa(i + 1),
			Data: fmt.Sprintf("Company: %s\nTitle: %s\nDescription: %s", meta.Company, meta.Title, meta.Description),
		})
	}
	return documents
}
