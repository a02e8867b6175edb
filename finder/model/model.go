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

package model

import (
	"regexp"
	"strconv"
	"strings"
)

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (c Coordinates) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

type MenuItem struct {
	Name        string `json:"name"`
	Price       string `json:"price,omitempty"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

// Place is one physical establishment, possibly fused from several providers.
type Place struct {
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	ProviderID  string   `json:"placeId,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Description string   `json:"description"`
	// Rating is free-form, e.g. "4.5/5 (120 reviews)". See NumericRating.
	Rating       string   `json:"rating,omitempty"`
	PriceLevel   *int     `json:"priceLevel,omitempty"`
	OpeningHours []string `json:"openingHours,omitempty"`

	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Website string `json:"website,omitempty"`

	Menu []MenuItem `json:"menu,omitempty"`
	// Deprecated: use Menu. Kept for clients that still render highlights.
	MenuHighlights []string `json:"menuHighlights,omitempty"`

	Platforms     []string `json:"platforms"`
	GrabFoodURL   string   `json:"grabFoodUrl,omitempty"`
	ShopeeFoodURL string   `json:"shopeeFoodUrl,omitempty"`

	// PlaceTypes are raw provider type tokens, only used for filtering.
	PlaceTypes []string `json:"-"`
	Photos     []string `json:"photos,omitempty"`

	// Sentinel marks the placeholder produced when a provider answered with text we could not use.
	Sentinel bool `json:"-"`
}

// Location returns the place's coordinates, if it has both of them.
func (p *Place) Location() (Coordinates, bool) {
	if p.Latitude == nil || p.Longitude == nil {
		return Coordinates{}, false
	}
	return Coordinates{Latitude: *p.Latitude, Longitude: *p.Longitude}, true
}

func (p *Place) SetLocation(c Coordinates) {
	lat, lon := c.Latitude, c.Longitude
	p.Latitude = &lat
	p.Longitude = &lon
}

// Clone returns a copy of p that shares no slices with it.
func (p Place) Clone() Place {
	c := p
	c.OpeningHours = cloneStrings(p.OpeningHours)
	c.MenuHighlights = cloneStrings(p.MenuHighlights)
	c.Platforms = cloneStrings(p.Platforms)
	c.PlaceTypes = cloneStrings(p.PlaceTypes)
	c.Photos = cloneStrings(p.Photos)
	if p.Menu != nil {
		c.Menu = append(make([]MenuItem, 0, len(p.Menu)), p.Menu...)
	}
	if p.Latitude != nil {
		lat := *p.Latitude
		c.Latitude = &lat
	}
	if p.Longitude != nil {
		lon := *p.Longitude
		c.Longitude = &lon
	}
	if p.PriceLevel != nil {
		pl := *p.PriceLevel
		c.PriceLevel = &pl
	}
	return c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}

var leadingNumber = regexp.MustCompile(`^\s*[-+]?(\d+(\.\d*)?|\.\d+)`)

// NumericRating is the number in front of the first "/" of Rating, or 0 if there isn't one.
func (p *Place) NumericRating() float64 {
	if p.Rating == "" {
		return 0
	}
	prefix, _, _ := strings.Cut(p.Rating, "/")
	m := leadingNumber.FindString(prefix)
	if m == "" {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(m), 64)
	if err != nil {
		return 0
	}
	return f
}

type Citation struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

type SearchResult struct {
	Places    []Place    `json:"places"`
	Citations []Citation `json:"citations"`
	// Notice carries a human-readable message when a provider answered with something unusable.
	Notice string `json:"notice,omitempty"`
}
