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
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/nearbyeats/eatery-finder/service/finder/model"
	"github.com/nearbyeats/eatery-finder/service/finder/util/jsonfix"
)

var (
	jsonFence = regexp.MustCompile("(?is)```json\\s*\\n(.*?)\\n?```")
	anyFence  = regexp.MustCompile("(?s)```(.*?)```")
)

var entitySchema = gojsonschema.NewStringLoader(`{
  "type": "object",
  "required": ["latitude", "longitude"],
  "properties": {
    "name": {"type": ["string", "null"]},
    "address": {"type": ["string", "null"]},
    "latitude": {"type": "number", "minimum": -90, "maximum": 90},
    "longitude": {"type": "number", "minimum": -180, "maximum": 180},
    "description": {"type": ["string", "null"]},
    "email": {"type": ["string", "null"]},
    "phone": {"type": ["string", "null"]},
    "menu": {"type": ["array", "null"], "items": {"type": "object"}},
    "platforms": {"type": ["array", "null"], "items": {"type": "string"}},
    "rating": {"type": ["string", "number", "null"]}
  }
}`)

var compiledSchema *gojsonschema.Schema

func init() {
	var err error
	compiledSchema, err = gojsonschema.NewSchema(entitySchema)
	if err != nil {
		panic(err)
	}
}

// looseString accepts a JSON string, number or null. The model isn't consistent about quoting ratings and prices.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = looseString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = looseString(n.String())
	return nil
}

type menuItem struct {
	Name        looseString `json:"name"`
	Price       looseString `json:"price"`
	Description looseString `json:"description"`
	Category    looseString `json:"category"`
}

type entity struct {
	Name        string      `json:"name"`
	Address     string      `json:"address"`
	Latitude    float64     `json:"latitude"`
	Longitude   float64     `json:"longitude"`
	Description string      `json:"description"`
	Email       string      `json:"email"`
	Phone       string      `json:"phone"`
	Menu        []menuItem  `json:"menu"`
	Platforms   []string    `json:"platforms"`
	Rating      looseString `json:"rating"`
}

func (e entity) toPlace() model.Place {
	p := model.Place{
		Name:           e.Name,
		Address:        e.Address,
		Description:    e.Description,
		Email:          e.Email,
		Phone:          e.Phone,
		Rating:         string(e.Rating),
		Menu:           make([]model.MenuItem, 0, len(e.Menu)),
		MenuHighlights: []string{},
		Platforms:      []string{},
	}
	p.SetLocation(model.Coordinates{Latitude: e.Latitude, Longitude: e.Longitude})
	for _, m := range e.Menu {
		if m.Name == "" {
			continue
		}
		p.Menu = append(p.Menu, model.MenuItem{
			Name:        string(m.Name),
			Price:       string(m.Price),
			Description: string(m.Description),
			Category:    string(m.Category),
		})
	}
	for _, platform := range e.Platforms {
		if platform = strings.TrimSpace(platform); platform != "" {
			p.Platforms = append(p.Platforms, platform)
		}
	}
	return p
}

var errNoEntities = errors.New("no JSON list found in response")

// extractPlaces finds the JSON in the model's answer and decodes every usable establishment from it. Candidates are
// tried in order: a fence tagged json, any fence, then the whole text with fence markers removed.
func extractPlaces(text string) ([]model.Place, error) {
	var candidates []string
	if m := jsonFence.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	if m := anyFence.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	stripped := strings.ReplaceAll(text, "```json", "")
	stripped = strings.ReplaceAll(stripped, "```", "")
	candidates = append(candidates, stripped)

	for _, c := range candidates {
		raw, err := decodeList(c)
		if err != nil {
			fixed := jsonfix.FixupBrokenJSON(c)
			if fixed == c {
				continue
			}
			if raw, err = decodeList(fixed); err != nil {
				continue
			}
		}
		return validEntities(raw), nil
	}
	return nil, errNoEntities
}

// decodeList decodes a JSON list of objects. A lone object is treated as a list of one.
func decodeList(s string) ([]json.RawMessage, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errNoEntities
	}
	var list []json.RawMessage
	if err := json.Unmarshal([]byte(s), &list); err == nil {
		return list, nil
	}
	var single map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &single); err != nil {
		return nil, err
	}
	return []json.RawMessage{json.RawMessage(s)}, nil
}

func validEntities(raw []json.RawMessage) []model.Place {
	places := make([]model.Place, 0, len(raw))
	for i, r := range raw {
		result, err := compiledSchema.Validate(gojsonschema.NewBytesLoader(r))
		if err != nil {
			log.Printf("Couldn't validate entity %d: %v", i, err)
			continue
		}
		if !result.Valid() {
			var problems []string
			for _, e := range result.Errors() {
				problems = append(problems, e.String())
			}
			log.Printf("Skipping entity %d: %s", i, strings.Join(problems, "; "))
			continue
		}
		var e entity
		if err := json.Unmarshal(r, &e); err != nil {
			log.Printf("Skipping entity %d: %v", i, err)
			continue
		}
		places = append(places, e.toPlace())
	}
	return places
}
