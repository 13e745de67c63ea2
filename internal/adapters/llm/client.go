// Package llm talks to an OpenAI-compatible chat completions endpoint
// (OpenRouter by default) and asks for JSON-object answers.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"review_studio/internal/adapters/observability"
)

const systemPrompt = "Du bist ein erfahrener Redakteur eines deutschen Gaming- und Technikmagazins. " +
	"Du antwortest ausschließlich mit gültigem JSON."

type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	MaxInFlight int
	Timeout     time.Duration
	RPS         float64
}

type Client struct {
	base      string
	key       string
	model     string
	maxTokens int
	hc        *http.Client
	sem       *semaphore.Weighted
	rl        *rate.Limiter
}

func New(o Options) (*Client, error) {
	if o.APIKey == "" {
		return nil, errors.New("LLM API key is required")
	}
	if o.MaxInFlight <= 0 {
		o.MaxInFlight = 5
	}
	if o.Timeout <= 0 {
		o.Timeout = 2 * time.Minute
	}
	if o.RPS <= 0 {
		o.RPS = 2
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 4096
	}
	return &Client{
		base:      strings.TrimRight(o.BaseURL, "/"),
		key:       o.APIKey,
		model:     o.Model,
		maxTokens: o.MaxTokens,
		hc:        &http.Client{Timeout: o.Timeout},
		sem:       semaphore.NewWeighted(int64(o.MaxInFlight)),
		rl:        rate.NewLimiter(rate.Limit(o.RPS), o.MaxInFlight),
	}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type completionRequest struct {
	Model          string         `json:"model"`
	Messages       []message      `json:"messages"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type completionResponse struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// StatusError is a non-2xx answer. Callers retry it like any other error.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string { return fmt.Sprintf("llm: status %d: %s", e.Code, e.Body) }

// Complete sends prompt and returns the raw message content. The number of
// concurrent requests is bounded by MaxInFlight.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.sem.Release(1)
	if err := c.rl.Wait(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(completionRequest{
		Model:          c.model,
		Messages:       []message{{Role: "system", Content: systemPrompt}, {Role: "user", Content: prompt}},
		MaxTokens:      c.maxTokens,
		Temperature:    0.7,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("llm", "chat_completions", 0, time.Since(start))
		return "", fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal("llm", "chat_completions", resp.StatusCode, time.Since(start))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{Code: resp.StatusCode, Body: observability.Preview(string(raw), 300)}
	}

	var parsed completionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %s", observability.Preview(string(raw), 300))
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return "", fmt.Errorf("llm api error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("llm: no choices returned")
	}
	ch := parsed.Choices[0]
	if ch.FinishReason == "length" {
		log.Debug().Int("max_tokens", c.maxTokens).Msg("completion hit the token limit")
	}
	return ch.Message.Content, nil
}
