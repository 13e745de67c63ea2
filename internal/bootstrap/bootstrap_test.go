package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisad "review_studio/internal/adapters/redis"
	"review_studio/internal/domain"
	"review_studio/internal/shared"
	"review_studio/internal/storage/memory"
)

func TestBuild_InMemoryWithoutKeys(t *testing.T) {
	cfg := shared.Config{CacheTTL: time.Minute}
	cfg.Storage.Dir = t.TempDir()
	cfg.Storage.PublicURL = "/media"

	d, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer d.Close()

	assert.IsType(t, &memory.Store{}, d.Reviews)
	assert.IsType(t, redisad.Noop{}, d.Cache)
	assert.Nil(t, d.Games)
	assert.Nil(t, d.Media)

	_, err = d.Generator.GenerateContent(context.Background(), "p", "x")
	assert.ErrorIs(t, err, ErrLLMDisabled)

	_, err = d.Sources.Popular(context.Background(), domain.CategoryGame, 5)
	assert.Error(t, err)
}

func TestBuild_UnreachableRedisFallsBack(t *testing.T) {
	cfg := shared.Config{RedisAddr: "127.0.0.1:1"}
	cfg.Storage.Dir = t.TempDir()
	d, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer d.Close()
	assert.IsType(t, redisad.Noop{}, d.Cache)
}

func TestJobOptions(t *testing.T) {
	o := JobOptions(shared.JobConfig{
		BatchSize: 4, ItemDelay: 1500 * time.Millisecond, BatchDelay: 10 * time.Second,
		MaxRetries: 3, RetryBase: 2 * time.Second, SkipExisting: true, Status: "published",
	})
	assert.Equal(t, domain.JobOptions{
		BatchSize: 4, DelayMS: 1500, BatchDelayMS: 10000, MaxRetries: 3, RetryBaseMS: 2000,
		SkipExisting: true, Status: domain.ReviewPublished,
	}, o)
}
