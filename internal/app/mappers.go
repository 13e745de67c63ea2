package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"review_studio/internal/domain"
)

/********** alias registries (single source of truth) **********/

var gameAliases = map[string][]string{
	"id":        {"id", "igdb_id", "game_id"},
	"name":      {"name", "title"},
	"summary":   {"summary", "storyline", "description"},
	"developer": {"developer", "involved_companies.company.name"},
	"url":       {"url", "websites.url"},
}

var mediaAliases = map[string][]string{
	"id":        {"id", "tmdb_id"},
	"name":      {"title", "name", "original_title", "original_name"},
	"summary":   {"overview", "tagline", "description"},
	"release":   {"release_date", "first_air_date"},
	"developer": {"production_companies.name", "networks.name", "created_by.name"},
	"url":       {"homepage"},
}

const (
	igdbImageBase = "https://images.igdb.com/igdb/image/upload/t_1080p/"
	tmdbImageBase = "https://image.tmdb.org/t/p/original"
)

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps. A list on the way
// resolves to its first element that has the next key.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		switch obj := cur.(type) {
		case map[string]any:
			v, ok := obj[part]
			if !ok {
				return nil
			}
			cur = v
		case []any:
			var found any
			for _, it := range obj {
				if mm, ok := it.(map[string]any); ok {
					if v, ok := mm[part]; ok {
						found = v
						break
					}
				}
			}
			if found == nil {
				return nil
			}
			cur = found
		default:
			return nil
		}
	}
	return cur
}

// lookupStr returns string at path or "".
func lookupStr(m map[string]any, path string) string {
	if v := lookupAny(m, path); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) string {
	for _, p := range aliases[key] {
		if s := strings.TrimSpace(lookupStr(m, p)); s != "" {
			return s
		}
	}
	return ""
}

// getFloatFlexible: number from several paths (float64/int/string like "8,0").
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

// firstInt64Flexible: int64 from several paths (float64/int/string).
func firstInt64Flexible(m map[string]any, paths ...string) *int64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			x := int64(v)
			return &x
		case int:
			x := int64(v)
			return &x
		case int64:
			x := v
			return &x
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				continue
			}
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return &n
			}
		}
	}
	return nil
}

// firstSliceStrings: accept []any with either strings or {name/url/key}.
func firstSliceStrings(m map[string]any, paths ...string) []string {
	for _, k := range paths {
		raw, ok := lookupAny(m, k).([]any)
		if !ok {
			continue
		}
		out := make([]string, 0, len(raw))
		for _, it := range raw {
			switch t := it.(type) {
			case string:
				if t != "" {
					out = append(out, t)
				}
			case map[string]any:
				for _, f := range []string{"name", "url", "key", "video_id", "image_id"} {
					if s, ok := t[f].(string); ok && s != "" {
						out = append(out, s)
						break
					}
				}
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// topLevelKnownFromAliases builds a set of top-level keys to exclude from extras.
func topLevelKnownFromAliases(aliases map[string][]string, extra ...string) map[string]struct{} {
	set := make(map[string]struct{}, 16)
	for _, paths := range aliases {
		for _, path := range paths {
			top := path
			if i := strings.IndexByte(top, '.'); i >= 0 {
				top = top[:i]
			}
			set[top] = struct{}{}
		}
	}
	for _, k := range extra {
		set[k] = struct{}{}
	}
	return set
}

// scalarExtras keeps the scalar top-level fields that no alias consumed.
func scalarExtras(p map[string]any, known map[string]struct{}) map[string]any {
	out := map[string]any{}
	for k, v := range p {
		if _, ok := known[k]; ok {
			continue
		}
		switch v.(type) {
		case string, float64, bool, int, int64:
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

/********** game mapper (IGDB payloads) **********/

// MapGame converts an IGDB game payload into a SourceItem.
func MapGame(p map[string]any) domain.SourceItem {
	it := domain.SourceItem{
		Name:      firstNonEmptyAlias(p, gameAliases, "name"),
		Category:  domain.CategoryGame,
		Summary:   firstNonEmptyAlias(p, gameAliases, "summary"),
		Genres:    firstSliceStrings(p, "genres"),
		Platforms: firstSliceStrings(p, "platforms"),
		Developer: igdbDeveloper(p),
		URL:       firstNonEmptyAlias(p, gameAliases, "url"),
		Videos:    firstSliceStrings(p, "videos"),
	}
	if id := firstInt64Flexible(p, gameAliases["id"]...); id != nil {
		it.ExternalID = strconv.FormatInt(*id, 10)
	}
	if ts := firstInt64Flexible(p, "first_release_date"); ts != nil && *ts > 0 {
		it.ReleaseDate = time.Unix(*ts, 0).UTC().Format("2006-01-02")
	}
	if r := getFloatFlexible(p, "total_rating", "aggregated_rating", "rating"); r != nil {
		v := clampRating(*r)
		it.Rating = &v
	}
	if cover := lookupStr(p, "cover.image_id"); cover != "" {
		it.Images = append(it.Images, igdbImageBase+cover+".jpg")
	}
	for _, id := range firstSliceStrings(p, "screenshots", "artworks") {
		it.Images = append(it.Images, igdbImageBase+id+".jpg")
	}
	it.Facts = scalarExtras(p, topLevelKnownFromAliases(gameAliases,
		"first_release_date", "total_rating", "aggregated_rating", "rating", "cover", "screenshots",
		"artworks", "videos", "genres", "platforms"))
	return it
}

// igdbDeveloper prefers the involved company flagged as developer.
func igdbDeveloper(p map[string]any) string {
	if list, ok := p["involved_companies"].([]any); ok {
		for _, c := range list {
			m, ok := c.(map[string]any)
			if !ok {
				continue
			}
			if dev, _ := m["developer"].(bool); dev {
				if s := lookupStr(m, "company.name"); s != "" {
					return s
				}
			}
		}
	}
	return firstNonEmptyAlias(p, gameAliases, "developer")
}

/********** movie/series mapper (TMDB payloads) **********/

// MapMedia converts a TMDB movie or tv payload into a SourceItem.
func MapMedia(c domain.Category, p map[string]any) domain.SourceItem {
	it := domain.SourceItem{
		Name:        firstNonEmptyAlias(p, mediaAliases, "name"),
		Category:    c,
		Summary:     firstNonEmptyAlias(p, mediaAliases, "summary"),
		ReleaseDate: firstNonEmptyAlias(p, mediaAliases, "release"),
		Genres:      firstSliceStrings(p, "genres"),
		Developer:   firstNonEmptyAlias(p, mediaAliases, "developer"),
		URL:         firstNonEmptyAlias(p, mediaAliases, "url"),
	}
	if id := firstInt64Flexible(p, mediaAliases["id"]...); id != nil {
		it.ExternalID = strconv.FormatInt(*id, 10)
	}
	if r := getFloatFlexible(p, "vote_average"); r != nil && *r > 0 {
		v := clampRating(*r * 10)
		it.Rating = &v
	}
	for _, k := range []string{"poster_path", "backdrop_path"} {
		if s := lookupStr(p, k); s != "" {
			it.Images = append(it.Images, tmdbImageBase+s)
		}
	}
	if vids, ok := lookupAny(p, "videos.results").([]any); ok {
		for _, v := range vids {
			m, ok := v.(map[string]any)
			if !ok || !strings.EqualFold(fmt.Sprint(m["site"]), "YouTube") {
				continue
			}
			if key, _ := m["key"].(string); key != "" {
				it.Videos = append(it.Videos, key)
			}
		}
	}
	it.Facts = scalarExtras(p, topLevelKnownFromAliases(mediaAliases,
		"vote_average", "poster_path", "backdrop_path", "videos", "genres", "genre_ids"))
	return it
}

func clampRating(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 100 {
		return 100
	}
	return f
}
