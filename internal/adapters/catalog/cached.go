package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"review_studio/internal/domain"
)

// CachedGames and CachedMedia put catalog lookups behind a domain.Cache.
// Cache failures never fail the lookup.
type CachedGames struct {
	next  domain.GameCatalog
	cache domain.Cache
	ttl   time.Duration
}

func NewCachedGames(next domain.GameCatalog, c domain.Cache, ttl time.Duration) *CachedGames {
	return &CachedGames{next: next, cache: c, ttl: ttl}
}

func (g *CachedGames) PopularGames(ctx context.Context, limit int) ([]map[string]any, error) {
	return cachedList(ctx, g.cache, g.ttl, fmt.Sprintf("igdb:popular:%d", limit), func() ([]map[string]any, error) {
		return g.next.PopularGames(ctx, limit)
	})
}

func (g *CachedGames) SearchGames(ctx context.Context, q string, limit int) ([]map[string]any, error) {
	return cachedList(ctx, g.cache, g.ttl, fmt.Sprintf("igdb:search:%s:%d", q, limit), func() ([]map[string]any, error) {
		return g.next.SearchGames(ctx, q, limit)
	})
}

func (g *CachedGames) GetGame(ctx context.Context, id int64) (map[string]any, error) {
	return cachedOne(ctx, g.cache, g.ttl, fmt.Sprintf("igdb:game:%d", id), func() (map[string]any, error) {
		return g.next.GetGame(ctx, id)
	})
}

type CachedMedia struct {
	next  domain.MediaCatalog
	cache domain.Cache
	ttl   time.Duration
}

func NewCachedMedia(next domain.MediaCatalog, c domain.Cache, ttl time.Duration) *CachedMedia {
	return &CachedMedia{next: next, cache: c, ttl: ttl}
}

func (m *CachedMedia) Popular(ctx context.Context, kind string, page int) ([]map[string]any, error) {
	return cachedList(ctx, m.cache, m.ttl, fmt.Sprintf("tmdb:popular:%s:%d", kind, page), func() ([]map[string]any, error) {
		return m.next.Popular(ctx, kind, page)
	})
}

func (m *CachedMedia) GetMovie(ctx context.Context, id int64) (map[string]any, error) {
	return cachedOne(ctx, m.cache, m.ttl, fmt.Sprintf("tmdb:movie:%d", id), func() (map[string]any, error) {
		return m.next.GetMovie(ctx, id)
	})
}

func (m *CachedMedia) GetSeries(ctx context.Context, id int64) (map[string]any, error) {
	return cachedOne(ctx, m.cache, m.ttl, fmt.Sprintf("tmdb:tv:%d", id), func() (map[string]any, error) {
		return m.next.GetSeries(ctx, id)
	})
}

func cachedOne(ctx context.Context, c domain.Cache, ttl time.Duration, key string, load func() (map[string]any, error)) (map[string]any, error) {
	var out map[string]any
	if ok, err := c.Get(ctx, key, &out); err == nil && ok {
		return out, nil
	} else if err != nil {
		log.Debug().Err(err).Str("key", key).Msg("catalog cache read failed")
	}
	out, err := load()
	if err != nil {
		return nil, err
	}
	if err := c.Set(ctx, key, out, int(ttl.Seconds())); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
	return out, nil
}

func cachedList(ctx context.Context, c domain.Cache, ttl time.Duration, key string, load func() ([]map[string]any, error)) ([]map[string]any, error) {
	var out []map[string]any
	if ok, err := c.Get(ctx, key, &out); err == nil && ok {
		return out, nil
	} else if err != nil {
		log.Debug().Err(err).Str("key", key).Msg("catalog cache read failed")
	}
	out, err := load()
	if err != nil {
		return nil, err
	}
	if err := c.Set(ctx, key, out, int(ttl.Seconds())); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
	return out, nil
}
