// Package reports writes the Fidelity Verifier's per-phase report files
// (spec §6: reports/{canary_scan, high_risk_verification,
// medium_risk_sampling, fidelity_report}.{json,md}) to the configured
// reports directory. It is a thin adapter over internal/checkpoint's
// write-temp-then-rename primitive, since a report file has the same
// interrupt-safety requirement as a checkpoint: a crash mid-write must
// never leave a half-written report that a later run, or the report
// server, could read as truth.
package reports

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nomindnick/fppc-corpus/internal/checkpoint"
)

// Names of the four report files spec §6 names, stem only (no extension).
const (
	CanaryScan           = "canary_scan"
	HighRiskVerification = "high_risk_verification"
	MediumRiskSampling   = "medium_risk_sampling"
	FidelityReport       = "fidelity_report"
)

// Write renders v as both reportsDir/<name>.json (atomically, via
// checkpoint.Save) and reportsDir/<name>.md (a flat key/value table built
// from kv, in insertion order).
func Write[T any](reportsDir, name string, v T, kv []KV) error {
	if reportsDir == "" {
		return nil
	}
	if err := os.MkdirAll(reportsDir, 0o755); err != nil {
		return fmt.Errorf("create reports directory: %w", err)
	}

	jsonPath := filepath.Join(reportsDir, name+".json")
	if err := checkpoint.Save(jsonPath, v); err != nil {
		return fmt.Errorf("write %s: %w", jsonPath, err)
	}

	mdPath := filepath.Join(reportsDir, name+".md")
	if err := writeMarkdown(mdPath, name, kv); err != nil {
		return fmt.Errorf("write %s: %w", mdPath, err)
	}
	return nil
}

// KV is one row of a rendered Markdown report table.
type KV struct {
	Key   string
	Value string
}

func writeMarkdown(path, title string, kv []KV) error {
	var out string
	out += "# " + title + "\n\n"
	out += "| field | value |\n|---|---|\n"
	for _, row := range kv {
		out += fmt.Sprintf("| %s | %s |\n", row.Key, row.Value)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(out); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}
