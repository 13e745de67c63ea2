// Package images finds or generates review artwork.
package images

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

	"golang.org/x/time/rate"

	"review_studio/internal/adapters/observability"
)

const tavilyBaseURL = "https://api.tavily.com"

// Tavily searches the web for product images.
type Tavily struct {
	base string
	key  string
	hc   *http.Client
	rl   *rate.Limiter
}

func NewTavily(base, apiKey string) *Tavily {
	if base == "" {
		base = tavilyBaseURL
	}
	return &Tavily{
		base: strings.TrimRight(base, "/"),
		key:  apiKey,
		hc:   &http.Client{Timeout: 30 * time.Second},
		rl:   rate.NewLimiter(rate.Limit(1), 2),
	}
}

type tavilyRequest struct {
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	IncludeImages bool   `json:"include_images"`
	MaxResults    int    `json:"max_results"`
}

type tavilyResponse struct {
	// images is either a list of URLs or, with descriptions enabled,
	// a list of {url, description} objects
	Images []json.RawMessage `json:"images"`
}

// SearchImages returns up to n distinct image URLs for query. A missing API
// key yields no results and no error.
func (t *Tavily) SearchImages(ctx context.Context, query string, n int) ([]string, error) {
	if t.key == "" || n <= 0 {
		return nil, nil
	}
	if err := t.rl.Wait(ctx); err != nil {
		return nil, err
	}
	body, err := json.Marshal(tavilyRequest{Query: query, SearchDepth: "basic", IncludeImages: true, MaxResults: 5})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.base+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+t.key)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := t.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("tavily", "search", 0, time.Since(start))
		return nil, fmt.Errorf("tavily request: %w", err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal("tavily", "search", resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("tavily status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var parsed tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode tavily response: %w", err)
	}

	seen := map[string]bool{}
	out := make([]string, 0, n)
	for _, raw := range parsed.Images {
		u := imageURL(raw)
		if !usableImageURL(u) || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
		if len(out) == n {
			break
		}
	}
	return out, nil
}

func imageURL(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.URL)
	}
	return ""
}

// usableImageURL drops vector graphics and non-http links, which cannot be
// transcoded.
func usableImageURL(u string) bool {
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return false
	}
	low := strings.ToLower(u)
	if i := strings.IndexAny(low, "?#"); i >= 0 {
		low = low[:i]
	}
	return !strings.HasSuffix(low, ".svg") && !strings.HasSuffix(low, ".gif")
}

var errNoImage = errors.New("no image returned")
