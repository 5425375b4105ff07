// Package visionocr implements the remote vision-OCR client used by the
// Text Extractor's conditional OCR fallback (C4 step 5) and the Fidelity
// Verifier's adjudication/full-retranscription phases (C7 phases 2/4).
// Grounded on the pdf-extractor module's internal/llm/client.go: an
// OpenAI-compatible chat-completion POST with a base64 data-URL image part,
// generalised here to a page-by-page transcription client instead of a
// streaming markdown-extraction client, per spec §6 Remote interfaces.
package visionocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nomindnick/fppc-corpus/internal/errkind"
)

// Client talks to an OpenAI-compatible chat-completion endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	maxRetries int
}

func New(baseURL, apiKey, model string, timeout time.Duration, maxRetries int) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
	}
}

type message struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type request struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Result is one page's transcription plus the token usage to account cost.
type Result struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// TranscribePage sends one page image with prompt text, one page per
// request as spec §4.4 step 5 requires.
func (c *Client) TranscribePage(ctx context.Context, jpegBytes []byte, prompt string) (Result, error) {
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegBytes)

	req := request{
		Model: c.model,
		Messages: []message{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
			},
		}},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("marshal vision-ocr request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(backoff(attempt)):
			}
		}

		resp, err := c.doOnce(ctx, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryable(err) {
			break
		}
	}
	return Result{}, lastErr
}

func (c *Client) doOnce(ctx context.Context, body []byte) (Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build vision-ocr request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, errkind.TransientNetworkError("vision-ocr request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return Result{}, errkind.RateLimitedError("vision-ocr", fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 500 {
		return Result{}, errkind.TransientNetworkError("vision-ocr", fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return Result{}, errkind.ParseFailedError("vision-ocr", fmt.Errorf("status %d: %s", resp.StatusCode, b))
	}

	var parsed response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Result{}, errkind.ParseFailedError("vision-ocr response", err)
	}
	if len(parsed.Choices) == 0 {
		return Result{}, errkind.ParseFailedError("vision-ocr response", fmt.Errorf("no choices in response"))
	}

	return Result{
		Text:             parsed.Choices[0].Message.Content,
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
	}, nil
}

func isRetryable(err error) bool {
	kind, ok := errkind.KindOf(err)
	if !ok {
		return false
	}
	return kind == errkind.TransientNetwork || kind == errkind.RateLimited
}

func backoff(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt)) * time.Second
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

// TranscriptionPrompt is the strict verbatim-transcription prompt used by
// both the Extractor's OCR fallback and the Verifier's adjudication phases.
const TranscriptionPrompt = `Transcribe the visible text of this document page verbatim, in reading order. ` +
	`Output only the transcribed text, with no commentary, headers, or description of the image. ` +
	`If the page is illegible, output exactly: UNREADABLE`
