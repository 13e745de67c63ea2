package domain

import (
	"fmt"
	"strings"
	"time"
)

type Category string

const (
	CategoryGame     Category = "game"
	CategoryHardware Category = "hardware"
	CategoryMovie    Category = "movie"
	CategorySeries   Category = "series"
	CategoryAmazon   Category = "amazon"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryGame, CategoryHardware, CategoryMovie, CategorySeries, CategoryAmazon:
		return true
	}
	return false
}

func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
	return c, nil
}

type ReviewStatus string

const (
	ReviewDraft     ReviewStatus = "draft"
	ReviewPublished ReviewStatus = "published"
)

func (s ReviewStatus) Valid() bool { return s == ReviewDraft || s == ReviewPublished }

// Review is a bilingual article. Content fields are markdown and may carry
// ![[IMAGE_n]] placeholders that index into Images (1-based).
type Review struct {
	ID            int64        `json:"id"`
	Title         string       `json:"title"`
	TitleEN       string       `json:"title_en"`
	Slug          string       `json:"slug"`
	Category      Category     `json:"category"`
	Content       string       `json:"content"`
	ContentEN     string       `json:"content_en"`
	Score         int          `json:"score"`
	Pros          []string     `json:"pros"`
	Cons          []string     `json:"cons"`
	ProsEN        []string     `json:"pros_en"`
	ConsEN        []string     `json:"cons_en"`
	Images        []string     `json:"images"`
	YouTubeVideos []string     `json:"youtube_videos"`
	Status        ReviewStatus `json:"status"`
	IGDBID        *int64       `json:"igdb_id,omitempty"`
	TMDBID        *int64       `json:"tmdb_id,omitempty"`
	AmazonASIN    *string      `json:"amazon_asin,omitempty"`
	HardwareID    *int64       `json:"hardware_id,omitempty"`
	SpecsJSON     []byte       `json:"-"` // free-form spec sheet
	MetadataJSON  []byte       `json:"-"` // facts copied from the source API
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// ExternalID returns the populated external id for the review's category, or "".
func (r Review) ExternalID() string {
	switch r.Category {
	case CategoryGame:
		if r.IGDBID != nil {
			return fmt.Sprint(*r.IGDBID)
		}
	case CategoryMovie, CategorySeries:
		if r.TMDBID != nil {
			return fmt.Sprint(*r.TMDBID)
		}
	case CategoryAmazon:
		if r.AmazonASIN != nil {
			return *r.AmazonASIN
		}
	}
	return ""
}

type ReviewQuery struct {
	Category *Category
	Status   *ReviewStatus
	Limit    int
}
