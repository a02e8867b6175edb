package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type details struct {
	Phone string   `json:"phone"`
	Types []string `json:"types"`
}

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	cache := NewCache[details](client, "placedetails", 24*time.Hour)

	got, err := cache.Load(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, cache.Store(ctx, "abc", &details{Phone: "+84 28 1234", Types: []string{"cafe"}}))
	assert.True(t, mr.Exists("placedetails:abc"))
	assert.Equal(t, 24*time.Hour, mr.TTL("placedetails:abc"))

	got, err = cache.Load(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "+84 28 1234", got.Phone)
	assert.Equal(t, []string{"cafe"}, got.Types)

	mr.FastForward(25 * time.Hour)
	got, err = cache.Load(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCacheCorruptEntry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	require.NoError(t, mr.Set("placedetails:bad", "{not json"))
	_, err := NewCache[details](client, "placedetails", time.Hour).Load(context.Background(), "bad")
	assert.Error(t, err)
}

func TestCacheWithoutRedis(t *testing.T) {
	ctx := context.Background()
	cache := NewCache[details](nil, "placedetails", time.Hour)
	assert.NoError(t, cache.Store(ctx, "abc", &details{Phone: "1"}))
	got, err := cache.Load(ctx, "abc")
	assert.NoError(t, err)
	assert.Nil(t, got)
}
