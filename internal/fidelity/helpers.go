package fidelity

import (
	"strings"

	"github.com/nomindnick/fppc-corpus/internal/errkind"
)

// costCeilingErr wraps errkind's cost-ceiling kind, matching the halt
// behaviour internal/llmsynth uses when cumulative spend reaches a
// configured ceiling.
func costCeilingErr(message string) error {
	return errkind.CostCeilingError(message)
}

// extractedDirOf recovers the <extracted-dir>/<year> parent's grandparent
// from a record's json_path, so record.Save recomputes the same canonical
// path the record was first written to. Duplicated from
// internal/llmsynth's helper of the same name since both packages need it
// and neither is a natural home for the other to import.
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
