package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/tutor-insights-api/pkg/errors"
)

func TestCacheRepositoryKeyPrefix(t *testing.T) {
	repo := NewCacheRepository(nil, "insights:", nil)
	assert.Equal(t, "insights:trends:engagement", repo.key("trends:engagement"))

	repo = NewCacheRepository(nil, "  ", nil)
	assert.Equal(t, "tutor-insights:x", repo.key("x"))
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	ctx := context.Background()
	repo := NewCacheRepository(nil, "", nil)

	var dest map[string]int
	assert.ErrorIs(t, repo.Get(ctx, "k", &dest), appErrors.ErrCacheMiss)
	require.NoError(t, repo.Set(ctx, "k", map[string]int{"a": 1}, time.Minute))
	require.NoError(t, repo.DeleteByPattern(ctx, "*"))
	require.NoError(t, repo.Ping(ctx))
	require.NoError(t, repo.Close())
}
