package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisad "review_studio/internal/adapters/redis"
	"review_studio/internal/domain"
)

func TestCache_SetGetDel(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))

	var rv domain.Review
	ok, err := c.Get(ctx, "review:tetris", &rv)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "review:tetris", domain.Review{ID: 3, Slug: "tetris", Pros: []string{"zeitlos"}}, 60))
	ok, err = c.Get(ctx, "review:tetris", &rv)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(3), rv.ID)
	assert.Equal(t, []string{"zeitlos"}, rv.Pros)

	mr.FastForward(61 * time.Second)
	ok, _ = c.Get(ctx, "review:tetris", &rv)
	assert.False(t, ok, "entry expires after ttl")

	require.NoError(t, c.Set(ctx, "k", map[string]any{"a": 1}, 60))
	require.NoError(t, c.Del(ctx, "k"))
	assert.False(t, mr.Exists("k"))
}

func TestNoop(t *testing.T) {
	var c domain.Cache = redisad.Noop{}
	ok, err := c.Get(context.Background(), "x", new(int))
	assert.False(t, ok)
	assert.NoError(t, err)
}
