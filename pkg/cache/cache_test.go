package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/leppupy/pkg/cache"
)

func TestNilStoreIsNoop(t *testing.T) {
	ctx := context.Background()
	s := cache.New(nil)

	assert.False(t, s.Enabled())
	require.NoError(t, s.Set(ctx, "k", 1, time.Minute))
	var v int
	assert.False(t, s.Get(ctx, "k", &v))
	require.NoError(t, s.Del(ctx, "k"))
	require.NoError(t, s.Close())
}

func TestRememberCallsLoaderOnMiss(t *testing.T) {
	ctx := context.Background()
	s := cache.New(nil)
	calls := 0

	for i := 0; i < 2; i++ {
		v, err := cache.Remember(ctx, s, "catalog:list", time.Minute, func() ([]string, error) {
			calls++
			return []string{"a", "b"}, nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, v)
	}
	assert.Equal(t, 2, calls)

	_, err := cache.Remember(ctx, s, "x", time.Minute, func() (int, error) { return 0, errors.New("down") })
	assert.EqualError(t, err, "down")
}
