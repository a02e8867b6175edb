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

package query

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/nearbyeats/eatery-finder/service/finder/geo"
	"github.com/nearbyeats/eatery-finder/service/finder/model"
)

// ParseSearchRequest builds a search request from query parameters:
//
//	categories=Coffee,Bakery (or repeated category=...)
//	radius=2
//	lat=10.77&lon=106.70, or mapsUrl=https://www.google.com/maps/@10.77,106.70,15z
//	thinking=true
//
// The returned request has been validated.
func ParseSearchRequest(q url.Values) (model.SearchRequest, error) {
	var req model.SearchRequest
	for _, raw := range append(q["categories"], q["category"]...) {
		for _, c := range strings.Split(raw, ",") {
			c = strings.TrimSpace(c)
			if c != "" && !slices.Contains(req.Categories, c) {
				req.Categories = append(req.Categories, c)
			}
		}
	}

	radius := q.Get("radius")
	if radius == "" {
		return req, fmt.Errorf("%w: radius is required", model.ErrInvalidRequest)
	}
	r, err := strconv.ParseFloat(radius, 64)
	if err != nil {
		return req, fmt.Errorf("%w: radius %q is not a number", model.ErrInvalidRequest, radius)
	}
	req.RadiusKm = r

	switch {
	case q.Get("lat") != "" && q.Get("lon") != "":
		lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
		lon, lonErr := strconv.ParseFloat(q.Get("lon"), 64)
		if latErr != nil || lonErr != nil {
			return req, fmt.Errorf("%w: lat and lon must be numbers", model.ErrInvalidRequest)
		}
		req.Location = model.Coordinates{Latitude: lat, Longitude: lon}
	case q.Get("mapsUrl") != "":
		loc, ok := geo.ParseMapsURL(q.Get("mapsUrl"))
		if !ok {
			return req, fmt.Errorf("%w: no coordinates found in mapsUrl", model.ErrInvalidRequest)
		}
		req.Location = loc
	default:
		return req, fmt.Errorf("%w: lat and lon, or mapsUrl, are required", model.ErrInvalidRequest)
	}

	if t := q.Get("thinking"); t != "" {
		thinking, err := strconv.ParseBool(t)
		if err != nil {
			return req, fmt.Errorf("%w: thinking must be true or false", model.ErrInvalidRequest)
		}
		req.ThinkingMode = thinking
	}
	return req, req.Validate()
}

type qckt int

var queryContextKey qckt

// ContextWith tags ctx with the id of the search being served.
func ContextWith(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, queryContextKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(queryContextKey).(string)
	return id
}
