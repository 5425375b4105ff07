package record

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemSafeID_ReplacesUnsafeCharacters(t *testing.T) {
	assert.Equal(t, "A_15_003", FilesystemSafeID("A/15:003"))
}

func TestFilesystemSafeID_TrimsSurroundingWhitespace(t *testing.T) {
	assert.Equal(t, "A-15-003", FilesystemSafeID("  A-15-003  "))
}

func TestFilesystemSafeID_EmptyInputFallsBackToUntitled(t *testing.T) {
	assert.Equal(t, "untitled", FilesystemSafeID("///"))
}

func TestPath_IsYearPartitioned(t *testing.T) {
	p := Path("/data/records", 1998, "A-98-001")
	assert.Equal(t, filepath.Join("/data/records", "1998", "A-98-001.json"), p)
}

func TestSaveAndLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	r := Record{
		Identity: Identity{LetterID: "A-98-001", Year: 1998, ContentHash: "deadbeef"},
		Content:  Content{FullText: "the text"},
		Sections: Sections{Question: "q", ParseMethod: "rule-based", Confidence: 0.9},
	}

	path, err := Save(dir, r)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "1998", "A-98-001.json"), path)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, r, loaded)
}

func TestSave_CreatesYearDirectory(t *testing.T) {
	dir := t.TempDir()
	r := Record{Identity: Identity{LetterID: "I-05-201", Year: 2005}}
	_, err := Save(dir, r)
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(dir, "2005"))
}

func TestDelete_MissingFileIsNotAnError(t *testing.T) {
	err := Delete(filepath.Join(t.TempDir(), "missing.json"))
	assert.NoError(t, err)
}

func TestDelete_EmptyPathIsNoOp(t *testing.T) {
	assert.NoError(t, Delete(""))
}

func TestDelete_RemovesExistingFile(t *testing.T) {
	dir := t.TempDir()
	r := Record{Identity: Identity{LetterID: "A-98-001", Year: 1998}}
	path, err := Save(dir, r)
	require.NoError(t, err)

	require.NoError(t, Delete(path))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestBuildEmbedding_ExtractedProvenanceWhenBothPresent(t *testing.T) {
	s := Sections{Question: "Q text", Conclusion: "C text"}
	e := BuildEmbedding(s, "full text body", "a summary")
	assert.Equal(t, "extracted", e.Provenance)
	assert.Contains(t, e.QAText, "Question: Q text")
	assert.Contains(t, e.QAText, "Conclusion: C text")
	assert.Equal(t, "a summary", e.Summary)
}

func TestBuildEmbedding_SyntheticProvenanceWhenOnlySyntheticPresent(t *testing.T) {
	s := Sections{QuestionSynthetic: "synth Q", ConclusionSynthetic: "synth C"}
	e := BuildEmbedding(s, "fallback body", "")
	assert.Equal(t, "synthetic", e.Provenance)
	assert.Contains(t, e.QAText, "synth Q")
	assert.Contains(t, e.QAText, "synth C")
}

func TestBuildEmbedding_MixedProvenanceWhenPartiallyExtracted(t *testing.T) {
	s := Sections{Question: "real Q", ConclusionSynthetic: "synth C"}
	e := BuildEmbedding(s, "fallback body", "")
	assert.Equal(t, "mixed", e.Provenance)
	assert.Contains(t, e.QAText, "real Q")
	assert.Contains(t, e.QAText, "synth C")
}

func TestBuildEmbedding_FallbackTruncatedTo200Words(t *testing.T) {
	words := make([]string, 250)
	for i := range words {
		words[i] = "w"
	}
	s := Sections{Question: "q", Conclusion: "c"}
	e := BuildEmbedding(s, strings.Join(words, " "), "")
	assert.Len(t, strings.Fields(e.Fallback), 200)
}
