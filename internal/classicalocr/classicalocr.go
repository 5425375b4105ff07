// Package classicalocr wraps a local classical-OCR subprocess (tesseract by
// default) used as the Fidelity Verifier's honest baseline (C7 phase 1) and
// as the repair path for hallucinated vision-OCR records (C7 phase 2).
// Grounded on spec §6 Remote interfaces' "local subprocess reading an image
// from standard input and writing UTF-8 text to standard output" contract;
// the subprocess-with-context-cancellation pattern follows the teacher
// modules' general convention of threading ctx through every external call.
package classicalocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/nomindnick/fppc-corpus/internal/errkind"
)

// Engine drives the configured classical OCR binary.
type Engine struct {
	Binary string
	Lang   string
}

func New(binary, lang string) *Engine {
	return &Engine{Binary: binary, Lang: lang}
}

// RecognizePage runs the OCR binary over one page's image bytes, returning
// the recognised UTF-8 text. tesseract's stdin/stdout convention is
// `tesseract stdin stdout -l <lang>`.
func (e *Engine) RecognizePage(ctx context.Context, imageBytes []byte) (string, error) {
	cmd := exec.CommandContext(ctx, e.Binary, "stdin", "stdout", "-l", e.Lang)
	cmd.Stdin = bytes.NewReader(imageBytes)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errkind.ParseFailedError("classical ocr subprocess", fmt.Errorf("%w: %s", err, stderr.String()))
	}
	return stdout.String(), nil
}
