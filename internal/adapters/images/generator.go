package images

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"review_studio/internal/adapters/observability"
)

// Generator creates images through an OpenRouter-style chat completions
// endpoint with image output.
type Generator struct {
	base        string
	key         string
	model       string
	aspectRatio string
	hc          *http.Client
	rl          *rate.Limiter
}

func NewGenerator(base, apiKey, model string) *Generator {
	if model == "" {
		model = "google/gemini-2.5-flash-image"
	}
	return &Generator{
		base:        strings.TrimRight(base, "/"),
		key:         apiKey,
		model:       model,
		aspectRatio: "16:9",
		hc:          &http.Client{Timeout: 3 * time.Minute},
		rl:          rate.NewLimiter(rate.Limit(0.5), 1),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type imageConfig struct {
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

type imageRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Modalities  []string      `json:"modalities"`
	Stream      bool          `json:"stream"`
	ImageConfig *imageConfig  `json:"image_config,omitempty"`
}

type imageResponse struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Choices []struct {
		Message struct {
			Images []struct {
				ImageURL struct {
					URL string `json:"url"`
				} `json:"image_url"`
			} `json:"images"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerateImage returns the first generated image as a data URL or a remote
// URL, whichever the provider answers with.
func (g *Generator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if g.key == "" {
		return "", fmt.Errorf("image generation: %w (no API key)", errNoImage)
	}
	if err := g.rl.Wait(ctx); err != nil {
		return "", err
	}
	body, err := json.Marshal(imageRequest{
		Model:       g.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Modalities:  []string{"image", "text"},
		ImageConfig: &imageConfig{AspectRatio: g.aspectRatio},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.base+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.key)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := g.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("imagegen", "chat_completions", 0, time.Since(start))
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal("imagegen", "chat_completions", resp.StatusCode, time.Since(start))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	var parsed imageResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse response (%d): %s", resp.StatusCode, observability.Preview(string(raw), 500))
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return "", fmt.Errorf("api error (%d): %s", resp.StatusCode, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 || len(parsed.Choices[0].Message.Images) == 0 {
		return "", fmt.Errorf("%w (%d)", errNoImage, resp.StatusCode)
	}
	u := strings.TrimSpace(parsed.Choices[0].Message.Images[0].ImageURL.URL)
	if u == "" {
		return "", fmt.Errorf("%w: empty image url", errNoImage)
	}
	return u, nil
}
