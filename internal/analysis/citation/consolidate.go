// Package citation projects the raw, possibly-overlapping citations collected
// during streaming into a stable annotation layer for rendering. Everything
// here is pure: it is recomputed on every render and never mutates stored
// state.
package citation

import (
	"fmt"
	"sort"
	"strconv"
	"unicode"

	"github.com/zhouzirui/careerchat/client/internal/model/chat"
)

// Consolidate dedups, clamps, word-snaps and sorts raw citations against the
// current content. Per document id only the citation with the largest end
// survives (later, longer citations supersede earlier ones referencing the
// same source). Spans that degenerate after clamping are dropped, so every
// returned span satisfies 0 <= start < end <= len(content) in runes.
// Overlaps between different document ids are passed through untouched; the
// renderer must tolerate nested or adjacent markers.
func Consolidate(content string, raw []chat.Citation) []chat.ConsolidatedCitation {
	if len(raw) == 0 {
		return nil
	}

	widest := make(map[string]chat.Citation, len(raw))
	for _, c := range raw {
		if kept, ok := widest[c.DocumentID]; !ok || c.End > kept.End {
			widest[c.DocumentID] = c
		}
	}

	runes := []rune(content)
	result := make([]chat.ConsolidatedCitation, 0, len(widest))
	for _, c := range widest {
		start, end := clamp(c.Start, 0, len(runes)), clamp(c.End, 0, len(runes))
		if start >= end {
			// Emitted against content that has since been superseded, or
			// still streaming in; nothing renderable yet.
			continue
		}

		for start > 0 && isWordRune(runes[start-1]) {
			start--
		}
		for end < len(runes) && isWordRune(runes[end]) {
			end++
		}

		result = append(result, chat.ConsolidatedCitation{
			Start:      start,
			End:        end,
			Text:       string(runes[start:end]),
			DocumentID: c.DocumentID,
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Start != result[j].Start {
			return result[i].Start < result[j].Start
		}
		return result[i].DocumentID < result[j].DocumentID
	})
	return result
}

// ResolveSource maps a citation document id to the job match it cites.
// Document ids are 1-based decimal strings into the match list of the same
// message.
func ResolveSource(matches []chat.JobMatch, documentID string) (chat.JobMatch, bool) {
	idx, err := strconv.Atoi(documentID)
	if err != nil || idx < 1 || idx > len(matches) {
		return chat.JobMatch{}, false
	}
	return matches[idx-1], true
}

// SourceLabel renders a short preview label for a citation source, falling
// back to the raw id when it does not resolve.
func SourceLabel(matches []chat.JobMatch, documentID string) string {
	match, ok := ResolveSource(matches, documentID)
	if !ok {
		return fmt.Sprintf("Source: %s", documentID)
	}
	return fmt.Sprintf("%s, %s", match.Metadata.Company, match.Metadata.Title)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// isWordRune reports whether markers must not break before/after r.
func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
