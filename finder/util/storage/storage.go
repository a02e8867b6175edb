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

package storage

import (
	"log"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/nearbyeats/eatery-finder/service/finder/config"
)

var (
	once   sync.Once
	client *redis.Client
)

// GetRedis returns the process-wide redis client for REDIS_URL, or nil if no redis is configured.
// Everything that takes a redis client works without one.
func GetRedis() *redis.Client {
	once.Do(func() {
		client = NewRedis(config.GetConfig().RedisURL)
	})
	return client
}

// NewRedis connects to the given redis URL. An empty or unparseable URL yields nil.
func NewRedis(url string) *redis.Client {
	if url == "" {
		log.Println("No REDIS_URL configured; running without a cache or quota tracking.")
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("Invalid REDIS_URL: %v", err)
		return nil
	}
	return redis.NewClient(opts)
}
