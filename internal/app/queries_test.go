package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review_studio/internal/app"
	"review_studio/internal/domain"
	"review_studio/internal/storage/memory"
)

func TestGetReviewBySlug_CacheMissThenHit(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.CreateReview(ctx, &domain.Review{Title: "Tetris", Slug: "tetris", Category: domain.CategoryGame, Status: domain.ReviewDraft}))
	cache := &mapCache{}
	q := app.NewQueryService(store, store, cache, 10*time.Minute)

	rv, err := q.GetReviewBySlug(ctx, "tetris")
	require.NoError(t, err)
	assert.Equal(t, "Tetris", rv.Title)
	assert.Equal(t, 1, cache.sets)

	_, err = q.GetReviewBySlug(ctx, "tetris")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets, "second read served from cache")

	_, err = q.GetReviewBySlug(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPublish_InvalidatesCache(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rv := &domain.Review{Title: "Tetris", Slug: "tetris", Category: domain.CategoryGame, Status: domain.ReviewDraft}
	require.NoError(t, store.CreateReview(ctx, rv))
	cache := &mapCache{}
	q := app.NewQueryService(store, store, cache, time.Minute)

	_, err := q.GetReviewBySlug(ctx, "tetris")
	require.NoError(t, err)

	pub, err := q.Publish(ctx, rv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewPublished, pub.Status)
	assert.Equal(t, 1, cache.dels)

	again, err := q.GetReviewBySlug(ctx, "tetris")
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewPublished, again.Status)

	_, err = q.Publish(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListJobs_Recent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.CreateJob(ctx, domain.Job{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Hour)}))
	}
	q := app.NewQueryService(store, store, &mapCache{}, time.Minute)

	jobs, err := q.ListJobs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "c", jobs[0].ID)
	assert.Equal(t, "b", jobs[1].ID)

	_, err = q.GetJob(ctx, "zzz")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}
