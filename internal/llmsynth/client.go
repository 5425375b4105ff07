// Package llmsynth implements the LLM Section Synthesiser (C6): for
// Documents flagged needs_llm_extraction, it calls a remote text-LLM to
// produce synthetic Q/Conclusion summaries, refine document type, and
// produce a one-line summary, per spec §4.6. The chat-completion client
// below mirrors internal/visionocr/client.go's OpenAI-compatible POST,
// generalised to text-only messages (no image part) since synthesis reads
// the Structured Record's text rather than a page image.
package llmsynth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nomindnick/fppc-corpus/internal/errkind"
)

// Client talks to an OpenAI-compatible chat-completion endpoint with a
// system + user message pair, no image content.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	maxRetries int
}

// NewClient builds the chat-completion transport used by Synthesiser. A
// separate name from Synthesiser's own New avoids a same-package clash,
// since unlike visionocr/classicalocr this package has two constructible
// types (the transport and the stage orchestrator).
func NewClient(baseURL, apiKey, model string, timeout time.Duration, maxRetries int) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
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

// Result is one completion plus the token usage needed for cost accounting.
type Result struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Complete sends one system+user message pair, retrying up to maxRetries
// times (maxRetries+1 attempts in all) on rate-limit, 5xx and transport
// errors, per spec §4.6 robustness.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (Result, error) {
	req := request{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("marshal llm-synth request: %w", err)
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
		return Result{}, fmt.Errorf("build llm-synth request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, errkind.TransientNetworkError("llm-synth request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return Result{}, errkind.RateLimitedError("llm-synth", fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 500 {
		return Result{}, errkind.TransientNetworkError("llm-synth", fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return Result{}, errkind.ParseFailedError("llm-synth", fmt.Errorf("status %d: %s", resp.StatusCode, b))
	}

	var parsed response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Result{}, errkind.ParseFailedError("llm-synth response", err)
	}
	if len(parsed.Choices) == 0 {
		return Result{}, errkind.ParseFailedError("llm-synth response", fmt.Errorf("no choices in response"))
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

// SystemPrompt enforces "JSON only, no fences" per spec §6 Remote interfaces.
const SystemPrompt = `You are assisting with structured extraction of California FPPC advice ` +
	`letters. Respond with a single JSON object only, no markdown code fences, no prose before ` +
	`or after the object. The object must have exactly these fields: document_type, is_response, ` +
	`question, question_synthetic, conclusion, conclusion_synthetic, summary, extraction_confidence, notes.`
