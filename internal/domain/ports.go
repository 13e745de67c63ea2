package domain

import "context"

type ReviewRepository interface {
	// Write paths
	CreateReview(ctx context.Context, r *Review) error // ErrSlugTaken / ErrAlreadyExists on unique violations
	UpdateReviewStatus(ctx context.Context, id int64, status ReviewStatus) error

	// Read paths
	GetReview(ctx context.Context, id int64) (Review, error)
	GetReviewBySlug(ctx context.Context, slug string) (Review, error)
	FindByExternalID(ctx context.Context, c Category, externalID string) (Review, error)
	FindByTitle(ctx context.Context, c Category, title string) (Review, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	ListReviews(ctx context.Context, q ReviewQuery) ([]Review, error)
}

type HardwareRepository interface {
	CreateHardware(ctx context.Context, h *Hardware) error
	GetHardwareBySlug(ctx context.Context, slug string) (Hardware, error)
}

// JobStore is the single authority for job progress. Runners write to it,
// the API and CLIs read from it.
type JobStore interface {
	CreateJob(ctx context.Context, j Job) error
	UpdateJob(ctx context.Context, j Job) error
	GetJob(ctx context.Context, id string) (Job, error)
	ListRecentJobs(ctx context.Context, limit int) ([]Job, error)
}

// Completer is an LLM endpoint returning a JSON-object formatted answer.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type ImageSearcher interface {
	SearchImages(ctx context.Context, query string, n int) ([]string, error)
}

type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// ObjectStore persists a remote (or data:) URL and returns a public URL.
type ObjectStore interface {
	Upload(ctx context.Context, sourceURL, filename string) (string, error)
}

type GameCatalog interface {
	PopularGames(ctx context.Context, limit int) ([]map[string]any, error)
	SearchGames(ctx context.Context, query string, limit int) ([]map[string]any, error)
	GetGame(ctx context.Context, id int64) (map[string]any, error)
}

type MediaCatalog interface {
	Popular(ctx context.Context, kind string, page int) ([]map[string]any, error)
	GetMovie(ctx context.Context, id int64) (map[string]any, error)
	GetSeries(ctx context.Context, id int64) (map[string]any, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
