// Package citationgraph implements the derived Citation Graph: a post-pass
// over every Structured Record that resolves each document's prior-opinion
// references against the corpus's own letter identifiers, writing a
// reverse cited-by index back into each citing target and reporting
// references that resolve to nothing in the corpus ("dangling" targets).
// Grounded on original_source/scripts/build_citation_graph.py's two-phase
// shape (build an ID-variant lookup, then resolve forward references into
// a reverse index plus a dangling-targets report) and check_citations.py's
// summary statistics, reworked from a one-shot script walking
// data/extracted/**/*.json into a pass over internal/record Structured
// Records already indexed by the State Store. ID-variant generation reuses
// internal/citation.SelfCitationVariants rather than re-deriving the same
// variant rules a second time.
package citationgraph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nomindnick/fppc-corpus/internal/citation"
	"github.com/nomindnick/fppc-corpus/internal/record"
	"github.com/nomindnick/fppc-corpus/internal/store"
)

// Gap is one dangling citation target: a prior-opinion reference that
// never resolves to a Document in the corpus.
type Gap struct {
	ID               string   `json:"id"`
	CitedByCount     int      `json:"cited_by_count"`
	ExampleCitingDocs []string `json:"example_citing_docs"`
}

// Report summarises one citation-graph build.
type Report struct {
	TotalDocuments    int   `json:"total_documents"`
	TotalEdges        int   `json:"total_edges"`
	TotalResolved     int   `json:"total_resolved"`
	TotalDangling     int   `json:"total_dangling"`
	DocsUpdated       int   `json:"docs_updated"`
	DocsUnchanged     int   `json:"docs_unchanged"`
	Gaps              []Gap `json:"gaps"`
}

// docEntry pairs a Document row with its loaded Structured Record, so the
// same in-memory pass can both read citations and write cited_by back.
type docEntry struct {
	doc *store.Document
	rec record.Record
}

// Build loads every extracted Document's Structured Record, resolves its
// prior-opinion references against every other Document's letter ID (in
// any textual variant), writes the resulting cited_by index back to disk,
// and returns a report of dangling (uncorpused) citation targets.
func Build(ctx context.Context, repo *store.Repository) (Report, error) {
	all, err := repo.AllExtracted(ctx, 1_000_000)
	if err != nil {
		return Report{}, fmt.Errorf("list extracted documents: %w", err)
	}

	entries := make([]docEntry, 0, len(all))
	variantToCanonical := make(map[string]string)
	for _, d := range all {
		if d.JSONPath == "" {
			continue
		}
		rec, err := record.Load(d.JSONPath)
		if err != nil {
			continue
		}
		entries = append(entries, docEntry{doc: d, rec: rec})

		canonical := rec.Identity.LetterID
		if canonical == "" {
			continue
		}
		for _, variant := range citation.SelfCitationVariants(canonical) {
			key := strings.ToUpper(variant)
			if _, exists := variantToCanonical[key]; !exists {
				variantToCanonical[key] = canonical
			}
		}
	}

	citedBy := make(map[string]map[string]bool) // canonical target -> set of citing canonical IDs
	dangling := make(map[string]map[string]bool) // cited-as-written -> set of citing canonical IDs

	report := Report{TotalDocuments: len(entries)}
	for _, e := range entries {
		citingID := e.rec.Identity.LetterID
		for _, cited := range e.rec.Citations.PriorOpinions {
			report.TotalEdges++
			if canonical, ok := variantToCanonical[strings.ToUpper(cited)]; ok {
				if citedBy[canonical] == nil {
					citedBy[canonical] = make(map[string]bool)
				}
				citedBy[canonical][citingID] = true
				report.TotalResolved++
			} else {
				if dangling[cited] == nil {
					dangling[cited] = make(map[string]bool)
				}
				dangling[cited][citingID] = true
				report.TotalDangling++
			}
		}
	}

	for _, e := range entries {
		newCitedBy := sortedSet(citedBy[e.rec.Identity.LetterID])
		if equalStringSlices(e.rec.Citations.CitedBy, newCitedBy) {
			report.DocsUnchanged++
			continue
		}
		e.rec.Citations.CitedBy = newCitedBy
		if _, err := record.Save(extractedDirOf(e.doc.JSONPath), e.rec); err != nil {
			return report, fmt.Errorf("save record with cited_by for %s: %w", e.rec.Identity.LetterID, err)
		}
		report.DocsUpdated++
	}

	report.Gaps = buildGaps(dangling)
	return report, nil
}

func buildGaps(dangling map[string]map[string]bool) []Gap {
	gaps := make([]Gap, 0, len(dangling))
	for target, citingSet := range dangling {
		citing := sortedSet(citingSet)
		examples := citing
		if len(examples) > 10 {
			examples = examples[:10]
		}
		gaps = append(gaps, Gap{ID: target, CitedByCount: len(citing), ExampleCitingDocs: examples})
	}
	sort.Slice(gaps, func(i, j int) bool {
		if gaps[i].CitedByCount != gaps[j].CitedByCount {
			return gaps[i].CitedByCount > gaps[j].CitedByCount
		}
		return gaps[i].ID < gaps[j].ID
	})
	return gaps
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func equalStringSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// extractedDirOf recovers the <extracted-dir>/<year> parent's grandparent
// from a record's json_path, so record.Save recomputes the same canonical
// path the record was first written to.
func extractedDirOf(jsonPath string) string {
	idx := strings.LastIndex(jsonPath, "/")
	if idx < 0 {
		return "."
	}
	yearDir := jsonPath[:idx]
	idx2 := strings.LastIndex(yearDir, "/")
	if idx2 < 0 {
		return "."
	}
	return yearDir[:idx2]
}
