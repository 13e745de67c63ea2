package domain

import "time"

// SourceItem is one input of a mass-creation job: whatever the catalog
// (or the admin) knows about the thing to review.
type SourceItem struct {
	Name         string         `json:"name"`
	ExternalID   string         `json:"external_id,omitempty"`
	Category     Category       `json:"category"`
	Summary      string         `json:"summary,omitempty"`
	ReleaseDate  string         `json:"release_date,omitempty"`
	Genres       []string       `json:"genres,omitempty"`
	Platforms    []string       `json:"platforms,omitempty"`
	Developer    string         `json:"developer,omitempty"`
	Rating       *float64       `json:"rating,omitempty"` // normalised to 0..100
	Images       []string       `json:"images,omitempty"`
	Videos       []string       `json:"videos,omitempty"` // YouTube ids
	Manufacturer string         `json:"manufacturer,omitempty"`
	Model        string         `json:"model,omitempty"`
	HardwareType HardwareType   `json:"hardware_type,omitempty"`
	Price        *float64       `json:"price,omitempty"`
	URL          string         `json:"url,omitempty"`
	Facts        map[string]any `json:"facts,omitempty"`
}

// FeedEntry is one news item from a hardware RSS/Atom feed.
type FeedEntry struct {
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Summary   string    `json:"summary"` // plain text
	Image     string    `json:"image,omitempty"`
	Published time.Time `json:"published"`
}
