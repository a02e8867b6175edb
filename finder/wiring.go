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

package finder

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/nearbyeats/eatery-finder/service/finder/aggregate"
	"github.com/nearbyeats/eatery-finder/service/finder/config"
	"github.com/nearbyeats/eatery-finder/service/finder/providers/gemini"
	"github.com/nearbyeats/eatery-finder/service/finder/providers/places"
	"github.com/nearbyeats/eatery-finder/service/finder/providers/placesnew"
	"github.com/nearbyeats/eatery-finder/service/finder/quota"
)

// NewAggregator builds the production pipeline from cfg. r may be nil, which disables caching and quota tracking.
// The returned function releases the pipeline's worker pools.
func NewAggregator(ctx context.Context, cfg *config.Config, r *redis.Client) (*aggregate.Aggregator, func(), error) {
	var structured aggregate.Source
	cleanup := func() {}
	switch cfg.StructuredProvider {
	case config.ProviderPlacesV1:
		p, err := placesnew.New(ctx, placesnew.Options{
			APIKey: cfg.PlacesKey,
			Quota:  quota.NewTracker(r, "places"),
		})
		if err != nil {
			return nil, nil, err
		}
		structured = p
	case config.ProviderMaps:
		p, err := places.New(places.Options{
			APIKey: cfg.PlacesKey,
			Redis:  r,
			Quota:  quota.NewTracker(r, "places"),
		})
		if err != nil {
			return nil, nil, err
		}
		structured = p
		cleanup = p.Close
	default:
		return nil, nil, fmt.Errorf("unknown structured provider %q", cfg.StructuredProvider)
	}
	if cfg.PlacesKey == "" {
		log.Printf("GOOGLE_PLACES_API_KEY is not set; structured results will be empty.")
	}

	generative, err := gemini.New(ctx, gemini.Options{
		APIKey: cfg.GeminiKey,
		Model:  cfg.GeminiModel,
		Quota:  quota.NewTracker(r, "gemini"),
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	a, err := aggregate.New(structured, generative)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return a, func() {
		a.Close()
		cleanup()
	}, nil
}
