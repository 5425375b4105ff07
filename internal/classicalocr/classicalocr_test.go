package classicalocr

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomindnick/fppc-corpus/internal/errkind"
)

// The script ignores the tesseract-style "stdin stdout -l <lang>" argv it
// receives and runs bare `cat`, which reads stdin and writes stdout by
// default, standing in for a real OCR binary in these tests.
func TestRecognizePage_ReturnsSubprocessStdout(t *testing.T) {
	script := filepath.Join(t.TempDir(), "echo-ocr.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\ncat\n"), 0o755))

	e := New(script, "eng")
	text, err := e.RecognizePage(context.Background(), []byte("recognised text"))
	require.NoError(t, err)
	assert.Equal(t, "recognised text", text)
}

func TestRecognizePage_MissingBinaryReturnsParseFailedError(t *testing.T) {
	e := New("/no/such/ocr-binary", "eng")
	_, err := e.RecognizePage(context.Background(), []byte("x"))
	require.Error(t, err)
	kind, ok := errkind.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errkind.ParseFailed, kind)
}

func TestRecognizePage_NonZeroExitReturnsParseFailedErrorWithStderr(t *testing.T) {
	script := filepath.Join(t.TempDir(), "fail-ocr.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho boom >&2\nexit 1\n"), 0o755))

	e := New(script, "eng")
	_, err := e.RecognizePage(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRecognizePage_ContextCancellationStopsSubprocess(t *testing.T) {
	script := filepath.Join(t.TempDir(), "slow-ocr.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nsleep 2\n"), 0o755))

	e := New(script, "eng")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := e.RecognizePage(ctx, []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
