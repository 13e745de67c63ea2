// Package memory keeps reviews, hardware and jobs in process memory. It backs
// the API when no MySQL DSN is configured and serves as the store in tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"review_studio/internal/domain"
)

type Store struct {
	mu       sync.RWMutex
	now      func() time.Time
	nextID   int64
	reviews  map[int64]domain.Review
	bySlug   map[string]int64
	hardware map[string]domain.Hardware
	jobs     map[string]domain.Job
}

func New() *Store {
	return &Store{
		now:      time.Now,
		reviews:  map[int64]domain.Review{},
		bySlug:   map[string]int64{},
		hardware: map[string]domain.Hardware{},
		jobs:     map[string]domain.Job{},
	}
}

/********** reviews **********/

func (s *Store) CreateReview(ctx context.Context, r *domain.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.bySlug[r.Slug]; taken {
		return domain.ErrSlugTaken
	}
	if ext := r.ExternalID(); ext != "" {
		for _, e := range s.reviews {
			if e.Category == r.Category && e.ExternalID() == ext {
				return domain.ErrAlreadyExists
			}
		}
	}
	s.nextID++
	now := s.now().UTC()
	r.ID = s.nextID
	r.CreatedAt, r.UpdatedAt = now, now
	s.reviews[r.ID] = cloneReview(*r)
	s.bySlug[r.Slug] = r.ID
	return nil
}

func (s *Store) UpdateReviewStatus(ctx context.Context, id int64, status domain.ReviewStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = s.now().UTC()
	s.reviews[id] = r
	return nil
}

func (s *Store) GetReview(ctx context.Context, id int64) (domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reviews[id]
	if !ok {
		return domain.Review{}, domain.ErrNotFound
	}
	return cloneReview(r), nil
}

func (s *Store) GetReviewBySlug(ctx context.Context, slug string) (domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.bySlug[slug]
	if !ok {
		return domain.Review{}, domain.ErrNotFound
	}
	return cloneReview(s.reviews[id]), nil
}

func (s *Store) FindByExternalID(ctx context.Context, c domain.Category, externalID string) (domain.Review, error) {
	return s.find(func(r domain.Review) bool { return r.Category == c && r.ExternalID() == externalID })
}

// FindByTitle compares case-insensitively against both language titles.
func (s *Store) FindByTitle(ctx context.Context, c domain.Category, title string) (domain.Review, error) {
	t := strings.TrimSpace(title)
	return s.find(func(r domain.Review) bool {
		return r.Category == c && (strings.EqualFold(r.Title, t) || strings.EqualFold(r.TitleEN, t))
	})
}

func (s *Store) find(match func(domain.Review) bool) (domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *domain.Review
	for _, r := range s.reviews {
		if match(r) && (best == nil || r.ID < best.ID) {
			r := r
			best = &r
		}
	}
	if best == nil {
		return domain.Review{}, domain.ErrNotFound
	}
	return cloneReview(*best), nil
}

func (s *Store) SlugExists(ctx context.Context, slug string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.bySlug[slug]
	return ok, nil
}

func (s *Store) ListReviews(ctx context.Context, q domain.ReviewQuery) ([]domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Review, 0, len(s.reviews))
	for _, r := range s.reviews {
		if q.Category != nil && r.Category != *q.Category {
			continue
		}
		if q.Status != nil && r.Status != *q.Status {
			continue
		}
		out = append(out, cloneReview(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func cloneReview(r domain.Review) domain.Review {
	r.Pros = append([]string(nil), r.Pros...)
	r.Cons = append([]string(nil), r.Cons...)
	r.ProsEN = append([]string(nil), r.ProsEN...)
	r.ConsEN = append([]string(nil), r.ConsEN...)
	r.Images = append([]string(nil), r.Images...)
	r.YouTubeVideos = append([]string(nil), r.YouTubeVideos...)
	return r
}

/********** hardware **********/

func (s *Store) CreateHardware(ctx context.Context, h *domain.Hardware) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hardware[h.Slug]; ok {
		return domain.ErrSlugTaken
	}
	s.nextID++
	h.ID = s.nextID
	h.CreatedAt = s.now().UTC()
	s.hardware[h.Slug] = *h
	return nil
}

func (s *Store) GetHardwareBySlug(ctx context.Context, slug string) (domain.Hardware, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hardware[slug]
	if !ok {
		return domain.Hardware{}, domain.ErrNotFound
	}
	return h, nil
}

/********** jobs **********/

func (s *Store) CreateJob(ctx context.Context, j domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.jobs[j.ID] = j.Clone()
	return nil
}

func (s *Store) UpdateJob(ctx context.Context, j domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; !ok {
		return domain.ErrJobNotFound
	}
	s.jobs[j.ID] = j.Clone()
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, domain.ErrJobNotFound
	}
	return j.Clone(), nil
}

func (s *Store) ListRecentJobs(ctx context.Context, limit int) ([]domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.Clone())
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
