package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const gameFields = "fields id,name,slug,summary,storyline,url,first_release_date,total_rating,aggregated_rating," +
	"genres.name,platforms.name,involved_companies.company.name,involved_companies.developer," +
	"cover.image_id,screenshots.image_id,artworks.image_id,videos.video_id;"

// IGDB queries the IGDB v4 API with Apicalypse bodies. Tokens come from an
// injected TokenCache.
type IGDB struct {
	t        *transport
	base     string
	clientID string
	tokens   *TokenCache
}

func NewIGDB(base, clientID string, tokens *TokenCache, rps int) (*IGDB, error) {
	if clientID == "" || tokens == nil {
		return nil, fmt.Errorf("IGDB client id and token cache are required")
	}
	return &IGDB{t: newTransport("igdb", rps), base: strings.TrimRight(base, "/"), clientID: clientID, tokens: tokens}, nil
}

// PopularGames returns the most rated games that have cover art.
func (c *IGDB) PopularGames(ctx context.Context, limit int) ([]map[string]any, error) {
	body := fmt.Sprintf("%s where total_rating_count > 50 & cover != null & version_parent = null; sort total_rating_count desc; limit %d;",
		gameFields, clampLimit(limit))
	return c.query(ctx, "games", body)
}

func (c *IGDB) SearchGames(ctx context.Context, q string, limit int) ([]map[string]any, error) {
	q = strings.NewReplacer(`\`, "", `"`, "").Replace(strings.TrimSpace(q))
	body := fmt.Sprintf(`search "%s"; %s limit %d;`, q, gameFields, clampLimit(limit))
	return c.query(ctx, "games", body)
}

func (c *IGDB) GetGame(ctx context.Context, id int64) (map[string]any, error) {
	out, err := c.query(ctx, "games", fmt.Sprintf("%s where id = %d;", gameFields, id))
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out[0], nil
}

// query posts body to endpoint. A 401 drops the cached token and retries once.
func (c *IGDB) query(ctx context.Context, endpoint, body string) ([]map[string]any, error) {
	var out []map[string]any
	for attempt := 0; attempt < 2; attempt++ {
		tok, err := c.tokens.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("igdb token: %w", err)
		}
		hdr := http.Header{}
		hdr.Set("Client-ID", c.clientID)
		hdr.Set("Authorization", "Bearer "+tok)
		hdr.Set("Content-Type", "text/plain")
		err = c.t.do(ctx, endpoint, http.MethodPost, c.base+"/"+endpoint, []byte(body), hdr, &out)
		if errors.Is(err, ErrUnauthorized) && attempt == 0 {
			c.tokens.Invalidate()
			continue
		}
		return out, err
	}
	return out, ErrUnauthorized
}

func clampLimit(n int) int {
	if n <= 0 {
		return 10
	}
	if n > 500 {
		return 500
	}
	return n
}
