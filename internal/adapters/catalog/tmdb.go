package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// TMDB reads movies and tv series from the TMDB v3 API.
type TMDB struct {
	t        *transport
	base     string
	key      string
	language string
}

func NewTMDB(base, apiKey, language string, rps int) (*TMDB, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("TMDB API key is required")
	}
	if language == "" {
		language = "de-DE"
	}
	return &TMDB{t: newTransport("tmdb", rps), base: strings.TrimRight(base, "/"), key: apiKey, language: language}, nil
}

// Popular lists one page of popular titles. kind is "movie" or "tv".
func (c *TMDB) Popular(ctx context.Context, kind string, page int) ([]map[string]any, error) {
	if kind != "movie" && kind != "tv" {
		return nil, fmt.Errorf("tmdb: unknown kind %q", kind)
	}
	if page < 1 {
		page = 1
	}
	var out struct {
		Results []map[string]any `json:"results"`
	}
	u := c.url("/"+kind+"/popular", url.Values{"page": {fmt.Sprint(page)}})
	if err := c.t.do(ctx, kind+"_popular", http.MethodGet, u, nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *TMDB) GetMovie(ctx context.Context, id int64) (map[string]any, error) {
	return c.details(ctx, "movie", id)
}

func (c *TMDB) GetSeries(ctx context.Context, id int64) (map[string]any, error) {
	return c.details(ctx, "tv", id)
}

func (c *TMDB) details(ctx context.Context, kind string, id int64) (map[string]any, error) {
	var out map[string]any
	u := c.url(fmt.Sprintf("/%s/%d", kind, id), url.Values{"append_to_response": {"videos"}})
	return out, c.t.do(ctx, kind+"_details", http.MethodGet, u, nil, nil, &out)
}

func (c *TMDB) url(path string, q url.Values) string {
	q.Set("api_key", c.key)
	q.Set("language", c.language)
	return c.base + path + "?" + q.Encode()
}
