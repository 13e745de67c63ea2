package app

import (
	"context"
	"fmt"
	"strings"

	"review_studio/internal/domain"
)

// Sources builds job inputs from the catalogs.
type Sources struct {
	games domain.GameCatalog
	media domain.MediaCatalog
}

func NewSources(g domain.GameCatalog, m domain.MediaCatalog) *Sources {
	return &Sources{games: g, media: m}
}

const maxPopularPages = 10

// Popular returns up to limit popular items of category c.
func (s *Sources) Popular(ctx context.Context, c domain.Category, limit int) ([]domain.SourceItem, error) {
	if limit <= 0 {
		return nil, nil
	}
	switch c {
	case domain.CategoryGame:
		if s.games == nil {
			return nil, fmt.Errorf("popular %s: game catalog not configured", c)
		}
		raw, err := s.games.PopularGames(ctx, limit)
		if err != nil {
			return nil, fmt.Errorf("popular games: %w", err)
		}
		out := make([]domain.SourceItem, 0, len(raw))
		for _, p := range raw {
			if it := MapGame(p); it.Name != "" {
				out = append(out, it)
			}
		}
		return capItems(out, limit), nil
	case domain.CategoryMovie, domain.CategorySeries:
		if s.media == nil {
			return nil, fmt.Errorf("popular %s: media catalog not configured", c)
		}
		kind := "movie"
		if c == domain.CategorySeries {
			kind = "tv"
		}
		var out []domain.SourceItem
		for page := 1; page <= maxPopularPages && len(out) < limit; page++ {
			raw, err := s.media.Popular(ctx, kind, page)
			if err != nil {
				return nil, fmt.Errorf("popular %s page %d: %w", kind, page, err)
			}
			if len(raw) == 0 {
				break
			}
			for _, p := range raw {
				if it := MapMedia(c, p); it.Name != "" {
					out = append(out, it)
				}
			}
		}
		return capItems(out, limit), nil
	default:
		return nil, fmt.Errorf("popular %s: no catalog source for category", c)
	}
}

// FromNames builds bare items; the processor enriches them later.
func FromNames(c domain.Category, names []string) []domain.SourceItem {
	out := make([]domain.SourceItem, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || strings.HasPrefix(n, "#") {
			continue
		}
		key := normTitle(n)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, domain.SourceItem{Name: n, Category: c})
	}
	return out
}

func capItems(in []domain.SourceItem, limit int) []domain.SourceItem {
	if len(in) > limit {
		return in[:limit]
	}
	return in
}
