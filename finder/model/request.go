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
	"errors"
	"fmt"
	"math"
)

var ErrInvalidRequest = errors.New("invalid search request")

type SearchRequest struct {
	Categories   []string    `json:"categories"`
	RadiusKm     float64     `json:"radiusKm"`
	Location     Coordinates `json:"location"`
	ThinkingMode bool        `json:"thinkingMode"`
}

func (r SearchRequest) Validate() error {
	if len(r.Categories) == 0 {
		return fmt.Errorf("%w: at least one category is required", ErrInvalidRequest)
	}
	for _, c := range r.Categories {
		if c == "" {
			return fmt.Errorf("%w: empty category", ErrInvalidRequest)
		}
	}
	if math.IsNaN(r.RadiusKm) || math.IsInf(r.RadiusKm, 0) || r.RadiusKm <= 0 {
		return fmt.Errorf("%w: radius must be positive, not %v", ErrInvalidRequest, r.RadiusKm)
	}
	if math.IsNaN(r.Location.Latitude) || math.IsNaN(r.Location.Longitude) || !r.Location.Valid() {
		return fmt.Errorf("%w: coordinates %f,%f are out of range", ErrInvalidRequest, r.Location.Latitude, r.Location.Longitude)
	}
	return nil
}

// APIError is a fatal error from an upstream provider, labelled with the provider's name.
type APIError struct {
	Provider string
	Err      error
}

func (e *APIError) Error() string {
	return e.Provider + " API Error: " + e.Err.Error()
}

func (e *APIError) Unwrap() error {
	return e.Err
}
