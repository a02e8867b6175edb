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

// Package places finds eateries with the Google Maps Places text search and details APIs.
package places

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/honeycombio/beeline-go"
	"github.com/panjf2000/ants/v2"
	"github.com/redis/go-redis/v9"
	"googlemaps.github.io/maps"

	"github.com/nearbyeats/eatery-finder/service/finder/category"
	"github.com/nearbyeats/eatery-finder/service/finder/model"
	"github.com/nearbyeats/eatery-finder/service/finder/persistence"
	"github.com/nearbyeats/eatery-finder/service/finder/quota"
)

const (
	DefaultMaxResults        = 10
	DefaultDetailConcurrency = 5
	DefaultDetailsCacheTTL   = 24 * time.Hour
	maxPhotos                = 3
	photoEndpoint            = "https://maps.googleapis.com/maps/api/place/photo"
)

var detailFields = []maps.PlaceDetailsFieldMask{
	maps.PlaceDetailsFieldMaskFormattedPhoneNumber,
	maps.PlaceDetailsFieldMaskWebsite,
	maps.PlaceDetailsFieldMaskOpeningHours,
	maps.PlaceDetailsFieldMaskTypes,
}

type Options struct {
	APIKey string
	// BaseURL overrides the maps API host; only useful in tests.
	BaseURL           string
	HTTPClient        *http.Client
	Redis             *redis.Client
	Quota             *quota.Tracker
	MaxResults        int
	DetailConcurrency int
	DetailsCacheTTL   time.Duration
}

type Provider struct {
	client     *maps.Client
	apiKey     string
	maxResults int
	pool       *ants.Pool
	cache      *persistence.Cache[maps.PlaceDetailsResult]
	quota      *quota.Tracker
}

// New creates a Provider. Without an API key the Provider is still usable, but every search comes back empty.
func New(opts Options) (*Provider, error) {
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.DetailConcurrency <= 0 {
		opts.DetailConcurrency = DefaultDetailConcurrency
	}
	if opts.DetailsCacheTTL <= 0 {
		opts.DetailsCacheTTL = DefaultDetailsCacheTTL
	}
	p := &Provider{
		apiKey:     opts.APIKey,
		maxResults: opts.MaxResults,
		cache:      persistence.NewCache[maps.PlaceDetailsResult](opts.Redis, "placedetails", opts.DetailsCacheTTL),
		quota:      opts.Quota,
	}
	if opts.APIKey != "" {
		clientOpts := []maps.ClientOption{maps.WithAPIKey(opts.APIKey)}
		if opts.BaseURL != "" {
			clientOpts = append(clientOpts, maps.WithBaseURL(opts.BaseURL))
		}
		if opts.HTTPClient != nil {
			clientOpts = append(clientOpts, maps.WithHTTPClient(opts.HTTPClient))
		}
		client, err := maps.NewClient(clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("creating maps client: %w", err)
		}
		p.client = client
	}
	pool, err := ants.NewPool(opts.DetailConcurrency)
	if err != nil {
		return nil, fmt.Errorf("creating details pool: %w", err)
	}
	p.pool = pool
	return p, nil
}

func (p *Provider) Close() {
	p.pool.Release()
}

func (p *Provider) Name() string {
	return "places"
}

// Search runs the structured half of an eatery search. It never returns an error: any failure is logged and yields
// an empty result.
func (p *Provider) Search(ctx context.Context, req model.SearchRequest) (*model.SearchResult, error) {
	places := p.SearchNearby(ctx, req.Location, category.Query(req.Categories), uint(req.RadiusKm*1000))
	return &model.SearchResult{Places: places, Citations: []model.Citation{}}, nil
}

// SearchNearby performs a text search for query around location, then looks up contact details and opening hours
// for each of the first few results.
func (p *Provider) SearchNearby(ctx context.Context, location model.Coordinates, query string, radiusMeters uint) []model.Place {
	ctx, span := beeline.StartSpan(ctx, "places_search")
	defer span.Send()
	span.AddField("query", query)
	span.AddField("radius_m", radiusMeters)
	if p.client == nil {
		log.Println("No Google Places API key configured; skipping structured search.")
		span.AddField("skipped", "no_key")
		return []model.Place{}
	}

	_ = p.quota.ChargeCredits(ctx, quota.TextSearchCredits)
	resp, err := p.client.TextSearch(ctx, &maps.TextSearchRequest{
		Query:    query,
		Location: &maps.LatLng{Lat: location.Latitude, Lng: location.Longitude},
		Radius:   radiusMeters,
	})
	if err != nil {
		span.AddField("error", err)
		log.Printf("Places text search for %q failed: %v", query, err)
		return []model.Place{}
	}
	results := resp.Results
	if len(results) > p.maxResults {
		results = results[:p.maxResults]
	}
	span.AddField("result_count", len(results))
	log.Printf("Places text search for %q returned %d results (keeping %d)", query, len(resp.Results), len(results))

	details := make([]*maps.PlaceDetailsResult, len(results))
	var wg sync.WaitGroup
	for i, r := range results {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			details[i] = p.lookupDetails(ctx, r.PlaceID)
		}
		if err := p.pool.Submit(task); err != nil {
			log.Printf("Couldn't schedule details lookup, running inline: %v", err)
			task()
		}
	}
	wg.Wait()

	places := make([]model.Place, 0, len(results))
	for i, r := range results {
		places = append(places, p.toPlace(r, details[i]))
	}
	return places
}

// lookupDetails fetches the extra fields a text search doesn't return. Failures are logged and produce nil.
func (p *Provider) lookupDetails(ctx context.Context, placeID string) *maps.PlaceDetailsResult {
	if placeID == "" {
		return nil
	}
	ctx, span := beeline.StartSpan(ctx, "place_details")
	defer span.Send()
	span.AddField("place_id", placeID)
	cached, err := p.cache.Load(ctx, placeID)
	if err != nil {
		log.Printf("Couldn't load cached details for %s: %v", placeID, err)
	}
	if cached != nil {
		span.AddField("cached", true)
		return cached
	}
	_ = p.quota.ChargeCredits(ctx, quota.PlaceDetailsCredits)
	result, err := p.client.PlaceDetails(ctx, &maps.PlaceDetailsRequest{
		PlaceID: placeID,
		Fields:  detailFields,
	})
	if err != nil {
		span.AddField("error", err)
		log.Printf("Place details lookup for %s failed: %v", placeID, err)
		return nil
	}
	if err := p.cache.Store(ctx, placeID, &result); err != nil {
		log.Printf("Couldn't cache details for %s: %v", placeID, err)
	}
	return &result
}

func (p *Provider) toPlace(r maps.PlacesSearchResult, d *maps.PlaceDetailsResult) model.Place {
	place := model.Place{
		Name:           r.Name,
		Address:        r.FormattedAddress,
		ProviderID:     r.PlaceID,
		Description:    "Restaurant located at " + r.FormattedAddress,
		Menu:           []model.MenuItem{},
		MenuHighlights: []string{},
		Platforms:      []string{},
		PlaceTypes:     r.Types,
	}
	place.SetLocation(model.Coordinates{Latitude: r.Geometry.Location.Lat, Longitude: r.Geometry.Location.Lng})
	if r.Rating > 0 {
		place.Rating = fmt.Sprintf("%.1f/5 (%d reviews)", r.Rating, r.UserRatingsTotal)
	}
	// The client decodes a missing price_level as 0, the same as "free". A rated result is a fully populated
	// listing, so its 0 is taken at face value; otherwise 0 means unknown.
	if r.PriceLevel > 0 || r.Rating > 0 {
		level := r.PriceLevel
		place.PriceLevel = &level
	}
	if r.OpeningHours != nil {
		place.OpeningHours = r.OpeningHours.WeekdayText
	}
	for _, photo := range r.Photos {
		if len(place.Photos) == maxPhotos {
			break
		}
		if photo.PhotoReference == "" {
			continue
		}
		place.Photos = append(place.Photos, p.photoURL(photo.PhotoReference))
	}
	if d != nil {
		place.Phone = d.FormattedPhoneNumber
		place.Website = d.Website
		if d.OpeningHours != nil && len(d.OpeningHours.WeekdayText) > 0 {
			place.OpeningHours = d.OpeningHours.WeekdayText
		}
		if len(d.Types) > 0 {
			place.PlaceTypes = d.Types
		}
	}
	return place
}

func (p *Provider) photoURL(reference string) string {
	return fmt.Sprintf("%s?maxwidth=400&photo_reference=%s&key=%s", photoEndpoint, url.QueryEscape(reference), url.QueryEscape(p.apiKey))
}
