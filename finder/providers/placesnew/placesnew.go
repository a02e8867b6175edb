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

// Package placesnew finds eateries with the Places API (New). Unlike the classic API, a single text search returns
// phone numbers, websites and opening hours, so no per-place detail lookups are needed.
package placesnew

import (
	"context"
	"fmt"
	"log"
	"net/url"

	"github.com/honeycombio/beeline-go"
	"google.golang.org/api/option"
	"google.golang.org/api/places/v1"

	"github.com/nearbyeats/eatery-finder/service/finder/category"
	"github.com/nearbyeats/eatery-finder/service/finder/model"
	"github.com/nearbyeats/eatery-finder/service/finder/quota"
)

const maxResults = 10

const fieldMask = "places.id,places.displayName,places.formattedAddress,places.location,places.rating," +
	"places.userRatingCount,places.priceLevel,places.types,places.regularOpeningHours,places.nationalPhoneNumber," +
	"places.internationalPhoneNumber,places.websiteUri,places.photos"

var priceLevels = map[string]int{
	"PRICE_LEVEL_FREE":           0,
	"PRICE_LEVEL_INEXPENSIVE":    1,
	"PRICE_LEVEL_MODERATE":       2,
	"PRICE_LEVEL_EXPENSIVE":      3,
	"PRICE_LEVEL_VERY_EXPENSIVE": 4,
}

type Options struct {
	APIKey string
	// Endpoint overrides the API root; only useful in tests.
	Endpoint string
	Quota    *quota.Tracker
}

type Provider struct {
	service *places.Service
	apiKey  string
	quota   *quota.Tracker
}

func New(ctx context.Context, opts Options) (*Provider, error) {
	p := &Provider{apiKey: opts.APIKey, quota: opts.Quota}
	if opts.APIKey == "" {
		return p, nil
	}
	clientOpts := []option.ClientOption{option.WithAPIKey(opts.APIKey)}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}
	service, err := places.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating places service: %w", err)
	}
	p.service = service
	return p, nil
}

func (p *Provider) Name() string {
	return "places_v1"
}

// Search never returns an error: failures are logged and produce an empty result.
func (p *Provider) Search(ctx context.Context, req model.SearchRequest) (*model.SearchResult, error) {
	ctx, span := beeline.StartSpan(ctx, "places_v1_search")
	defer span.Send()
	result := &model.SearchResult{Places: []model.Place{}, Citations: []model.Citation{}}
	if p.service == nil {
		log.Println("No Google Places API key configured; skipping structured search.")
		span.AddField("skipped", "no_key")
		return result, nil
	}
	query := category.Query(req.Categories)
	span.AddField("query", query)
	_ = p.quota.ChargeCredits(ctx, quota.TextSearchCredits)
	resp, err := p.service.Places.SearchText(&places.GoogleMapsPlacesV1SearchTextRequest{
		TextQuery: query,
		PageSize:  maxResults,
		LocationBias: &places.GoogleMapsPlacesV1SearchTextRequestLocationBias{
			Circle: &places.GoogleMapsPlacesV1Circle{
				Center: &places.GoogleTypeLatLng{
					Latitude:  req.Location.Latitude,
					Longitude: req.Location.Longitude,
				},
				Radius: req.RadiusKm * 1000,
			},
		},
	}).Fields(fieldMask).Context(ctx).Do()
	if err != nil {
		span.AddField("error", err)
		log.Printf("Places v1 text search for %q failed: %v", query, err)
		return result, nil
	}
	for i, pl := range resp.Places {
		if i == maxResults {
			break
		}
		result.Places = append(result.Places, p.toPlace(pl))
	}
	span.AddField("result_count", len(result.Places))
	return result, nil
}

func (p *Provider) toPlace(pl *places.GoogleMapsPlacesV1Place) model.Place {
	place := model.Place{
		Address:        pl.FormattedAddress,
		ProviderID:     pl.Id,
		Description:    "Restaurant located at " + pl.FormattedAddress,
		Website:        pl.WebsiteUri,
		Phone:          pl.InternationalPhoneNumber,
		Menu:           []model.MenuItem{},
		MenuHighlights: []string{},
		Platforms:      []string{},
		PlaceTypes:     pl.Types,
	}
	if pl.DisplayName != nil {
		place.Name = pl.DisplayName.Text
	}
	if place.Phone == "" {
		place.Phone = pl.NationalPhoneNumber
	}
	if pl.Location != nil {
		place.SetLocation(model.Coordinates{Latitude: pl.Location.Latitude, Longitude: pl.Location.Longitude})
	}
	if pl.Rating > 0 {
		place.Rating = fmt.Sprintf("%.1f/5 (%d reviews)", pl.Rating, pl.UserRatingCount)
	}
	if level, ok := priceLevels[pl.PriceLevel]; ok {
		place.PriceLevel = &level
	}
	if pl.RegularOpeningHours != nil {
		place.OpeningHours = pl.RegularOpeningHours.WeekdayDescriptions
	}
	for _, photo := range pl.Photos {
		if len(place.Photos) == 3 {
			break
		}
		if photo == nil || photo.Name == "" {
			continue
		}
		place.Photos = append(place.Photos, fmt.Sprintf("https://places.googleapis.com/v1/%s/media?maxWidthPx=400&key=%s", photo.Name, url.QueryEscape(p.apiKey)))
	}
	return place
}
