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

// Package category maps the categories users pick to the place type tokens the places API reports.
package category

import (
	"log"
	"strings"

	"golang.org/x/exp/slices"
)

const (
	Coffee     = "Coffee"
	Restaurant = "Restaurant"
	Bistro     = "Bistro"
	StreetFood = "Street Food"
	Bakery     = "Bakery"
	Lodging    = "Resort/Hotel"
)

const fallbackToken = "establishment"

var typeTokens = map[string][]string{
	Coffee:     {"cafe", "coffee_shop"},
	Restaurant: {"restaurant", "food", "meal_delivery", "meal_takeaway"},
	Bistro:     {"restaurant", "food"},
	StreetFood: {"food", "meal_takeaway", "street_food"},
	Bakery:     {"bakery", "food"},
	Lodging:    {"lodging", "resort", "hotel"},
}

var descriptions = map[string]string{
	Coffee:     "coffee shops, cafes, coffee houses",
	Restaurant: "restaurants, dining establishments",
	Bistro:     "bistros, casual dining restaurants",
	StreetFood: "street food vendors, food stalls, street food establishments",
	Bakery:     "bakeries, pastry shops",
	Lodging:    "resorts, hotels, lodging establishments, accommodation facilities",
}

// Known lists the recognised category labels.
func Known() []string {
	return []string{Coffee, Restaurant, Bistro, StreetFood, Bakery, Lodging}
}

// TypeTokensFor returns the place type tokens for a category. Unknown categories map to "establishment".
func TypeTokensFor(category string) []string {
	if tokens, ok := typeTokens[category]; ok {
		return slices.Clone(tokens)
	}
	return []string{fallbackToken}
}

// Matches reports whether a candidate with the given type tokens belongs to any of the requested categories.
// Candidates without any type information are kept: the text query already narrowed things down, and we'd rather
// show an unrelated place than hide one that was asked for.
func Matches(candidateTokens []string, requested []string) bool {
	if len(candidateTokens) == 0 {
		return true
	}
	valid := make(map[string]struct{})
	for _, c := range requested {
		for _, t := range TypeTokensFor(c) {
			valid[t] = struct{}{}
		}
	}
	for _, t := range candidateTokens {
		if _, ok := valid[t]; ok {
			return true
		}
	}
	log.Printf("Place types [%s] don't match categories [%s]", strings.Join(candidateTokens, ", "), strings.Join(requested, ", "))
	return false
}

// Describe returns the phrase used to describe a category in natural language.
func Describe(category string) string {
	if d, ok := descriptions[category]; ok {
		return d
	}
	return strings.ToLower(category)
}

// Query builds the text query sent to the places API, e.g. "Coffee or Bakery".
func Query(categories []string) string {
	return strings.Join(categories, " or ")
}
