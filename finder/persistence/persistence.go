// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/honeycombio/beeline-go"
	"github.com/redis/go-redis/v9"
)

// Cache stores JSON encoded values in redis under "<prefix>:<id>". A Cache without a redis client misses on every
// load and silently drops every store.
type Cache[T any] struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
}

func NewCache[T any](r *redis.Client, prefix string, ttl time.Duration) *Cache[T] {
	return &Cache[T]{redis: r, prefix: prefix, ttl: ttl}
}

func (c *Cache[T]) key(id string) string {
	return c.prefix + ":" + id
}

// Load returns the cached value for id, or nil if there isn't one.
func (c *Cache[T]) Load(ctx context.Context, id string) (*T, error) {
	if c == nil || c.redis == nil {
		return nil, nil
	}
	ctx, span := beeline.StartSpan(ctx, "load_cached_data")
	defer span.Send()
	span.AddField("cache", c.prefix)
	data, err := c.redis.Get(ctx, c.key(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			span.AddField("hit", false)
			return nil, nil
		}
		span.AddField("error", err)
		return nil, err
	}
	var decoded T
	if err := json.Unmarshal([]byte(data), &decoded); err != nil {
		span.AddField("error", err)
		return nil, err
	}
	span.AddField("hit", true)
	return &decoded, nil
}

func (c *Cache[T]) Store(ctx context.Context, id string, value *T) error {
	if c == nil || c.redis == nil || value == nil {
		return nil
	}
	ctx, span := beeline.StartSpan(ctx, "cache_data")
	defer span.Send()
	span.AddField("cache", c.prefix)
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.redis.Set(ctx, c.key(id), encoded, c.ttl).Err(); err != nil {
		span.AddField("error", err)
		return err
	}
	return nil
}
