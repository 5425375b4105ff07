package reports

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Attempted int `json:"attempted"`
	Verified  int `json:"verified"`
}

func TestWrite_ProducesJSONAndMarkdown(t *testing.T) {
	dir := t.TempDir()
	v := sample{Attempted: 10, Verified: 8}
	kv := []KV{{Key: "attempted", Value: "10"}, {Key: "verified", Value: "8"}}

	require.NoError(t, Write(dir, HighRiskVerification, v, kv))

	jsonPath := filepath.Join(dir, "high_risk_verification.json")
	assert.FileExists(t, jsonPath)
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"attempted": 10`)

	mdPath := filepath.Join(dir, "high_risk_verification.md")
	assert.FileExists(t, mdPath)
	md, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.Contains(t, string(md), "# high_risk_verification")
	assert.Contains(t, string(md), "| attempted | 10 |")
	assert.Contains(t, string(md), "| verified | 8 |")
}

func TestWrite_EmptyReportsDirIsNoOp(t *testing.T) {
	err := Write("", CanaryScan, sample{}, nil)
	assert.NoError(t, err)
}

func TestWrite_CreatesReportsDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "reports")
	require.NoError(t, Write(dir, FidelityReport, sample{Attempted: 1}, nil))
	assert.DirExists(t, dir)
}

func TestWrite_OverwritesExistingReport(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(dir, MediumRiskSampling, sample{Attempted: 1}, []KV{{Key: "a", Value: "1"}}))
	require.NoError(t, Write(dir, MediumRiskSampling, sample{Attempted: 2}, []KV{{Key: "a", Value: "2"}}))

	md, err := os.ReadFile(filepath.Join(dir, "medium_risk_sampling.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "| a | 2 |")
	assert.NotContains(t, string(md), "| a | 1 |")
}
