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

package gemini

import (
	"strconv"
	"strings"

	"github.com/nearbyeats/eatery-finder/service/finder/category"
	"github.com/nearbyeats/eatery-finder/service/finder/model"
)

// The model can't be given a response schema while the search tool is enabled, so the output shape has to be
// described in the prompt itself.
func buildPrompt(req model.SearchRequest) string {
	descriptions := make([]string, 0, len(req.Categories))
	for _, c := range req.Categories {
		descriptions = append(descriptions, category.Describe(c))
	}
	radius := strconv.FormatFloat(req.RadiusKm, 'f', -1, 64)
	lat := strconv.FormatFloat(req.Location.Latitude, 'f', -1, 64)
	lon := strconv.FormatFloat(req.Location.Longitude, 'f', -1, 64)

	var sb strings.Builder
	sb.WriteString("Search for " + strings.Join(descriptions, " or ") + " within " + radius + "km radius from coordinates: " + lat + ", " + lon + ".\n\n")
	sb.WriteString("CRITICAL REQUIREMENTS:\n")
	sb.WriteString("1. Use the search tool to find places near the specified coordinates.\n")
	sb.WriteString("2. Only return establishments that match the requested category: " + strings.Join(req.Categories, ", ") + "\n")
	sb.WriteString("3. If searching for \"" + category.Lodging + "\", do NOT include cafes, coffee shops, or restaurants.\n")
	sb.WriteString("4. If searching for \"" + category.Coffee + "\", do NOT include hotels or resorts.\n")
	sb.WriteString("5. Each result MUST include its exact latitude and longitude.\n")
	sb.WriteString("6. Only include places within " + radius + "km from the center point.\n\n")
	sb.WriteString("For each establishment found, extract:\n")
	sb.WriteString("1. Name, address, and exact coordinates (latitude, longitude).\n")
	sb.WriteString("2. Contact information: phone numbers and emails (check their websites/social media if found).\n")
	sb.WriteString("3. Rating and review information.\n")
	sb.WriteString("4. Delivery platform presence: check if listed on \"GrabFood\" or \"ShopeeFood\" (if applicable).\n")
	sb.WriteString("5. Menu items (if applicable): names, prices, categories, descriptions.\n\n")
	sb.WriteString("Output Format:\n")
	sb.WriteString("You must output strictly valid JSON inside a code block ```json ... ```.\n")
	sb.WriteString("The JSON structure must be a list of objects with these fields:\n")
	sb.WriteString("- name (string)\n")
	sb.WriteString("- address (string)\n")
	sb.WriteString("- latitude (number) - REQUIRED: exact latitude, as a literal number\n")
	sb.WriteString("- longitude (number) - REQUIRED: exact longitude, as a literal number\n")
	sb.WriteString("- description (string: professional business summary)\n")
	sb.WriteString("- email (string | null)\n")
	sb.WriteString("- phone (string | null)\n")
	sb.WriteString("- menu (array of objects with: name, price (optional), description (optional), category (optional))\n")
	sb.WriteString("- platforms (array of strings: e.g. [\"GrabFood\", \"ShopeeFood\", \"Gojek\"])\n")
	sb.WriteString("- rating (string | null: e.g. \"4.5/5\")\n\n")
	sb.WriteString("Do not include markdown text outside the JSON block.")
	return sb.String()
}
