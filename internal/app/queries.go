package app

import (
	"context"
	"time"

	"review_studio/internal/domain"
)

// QueryService serves the read side of the admin API. Review lookups by
// slug go through the cache; publishing invalidates the entry.
type QueryService struct {
	repo     domain.ReviewRepository
	jobs     domain.JobStore
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(r domain.ReviewRepository, j domain.JobStore, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, jobs: j, cache: c, cacheTTL: ttl}
}

func reviewKey(slug string) string { return "review:" + slug }

func (s *QueryService) GetReviewBySlug(ctx context.Context, slug string) (domain.Review, error) {
	key := reviewKey(slug)
	var rv domain.Review
	if ok, _ := s.cache.Get(ctx, key, &rv); ok {
		return rv, nil
	}
	rv, err := s.repo.GetReviewBySlug(ctx, slug)
	if err != nil {
		return domain.Review{}, err
	}
	_ = s.cache.Set(ctx, key, rv, int(s.cacheTTL.Seconds()))
	return rv, nil
}

func (s *QueryService) ListReviews(ctx context.Context, q domain.ReviewQuery) ([]domain.Review, error) {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	rs, err := s.repo.ListReviews(ctx, q)
	if err != nil {
		return nil, err
	}
	// copy to avoid aliasing the repo's backing array
	out := make([]domain.Review, len(rs))
	copy(out, rs)
	return out, nil
}

// Publish flips a review to published and drops its cached copy.
func (s *QueryService) Publish(ctx context.Context, id int64) (domain.Review, error) {
	if err := s.repo.UpdateReviewStatus(ctx, id, domain.ReviewPublished); err != nil {
		return domain.Review{}, err
	}
	rv, err := s.repo.GetReview(ctx, id)
	if err != nil {
		return domain.Review{}, err
	}
	_ = s.cache.Del(ctx, reviewKey(rv.Slug))
	return rv, nil
}

func (s *QueryService) GetJob(ctx context.Context, id string) (domain.Job, error) {
	return s.jobs.GetJob(ctx, id)
}

func (s *QueryService) ListJobs(ctx context.Context, limit int) ([]domain.Job, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.jobs.ListRecentJobs(ctx, limit)
}
