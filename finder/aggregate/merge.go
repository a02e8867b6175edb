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

package aggregate

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/nearbyeats/eatery-finder/service/finder/geo"
	"github.com/nearbyeats/eatery-finder/service/finder/model"
)

// A cases.Caser keeps state, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// findCounterpart returns the index of the first generative place whose name contains, or is contained in, the
// structured place's name, or -1. Places further apart than the merge distance are never counterparts, so same-named
// branches stay separate.
func (a *Aggregator) findCounterpart(s model.Place, generative []model.Place) int {
	name := fold(s.Name)
	if name == "" {
		return -1
	}
	for i := range generative {
		g := &generative[i]
		other := fold(g.Name)
		if other == "" {
			continue
		}
		if !strings.Contains(other, name) && !strings.Contains(name, other) {
			continue
		}
		if a.mergeDistanceKm > 0 {
			sl, sok := s.Location()
			gl, gok := g.Location()
			if sok && gok && geo.DistanceKm(sl, gl) > a.mergeDistanceKm {
				continue
			}
		}
		return i
	}
	return -1
}

// mergePlaces keeps the structured place's identity, location and contact details, and takes the generative place's
// description, menu and, when the structured place has none, email.
func mergePlaces(s, g model.Place) model.Place {
	merged := s.Clone()
	if g.Description != "" {
		merged.Description = g.Description
	}
	if merged.Email == "" {
		merged.Email = g.Email
	}
	if len(g.Menu) > 0 {
		merged.Menu = append(make([]model.MenuItem, 0, len(g.Menu)), g.Menu...)
	}
	if len(g.MenuHighlights) > 0 {
		merged.MenuHighlights = append(make([]string, 0, len(g.MenuHighlights)), g.MenuHighlights...)
	}
	if merged.Platforms == nil {
		merged.Platforms = []string{}
	}
	return merged
}

// alreadyListed reports whether g duplicates a place in listed, either by name or because a listed address contains
// g's address.
func alreadyListed(g model.Place, listed []model.Place) bool {
	name := fold(g.Name)
	address := fold(g.Address)
	for _, l := range listed {
		if fold(l.Name) == name {
			return true
		}
		if address != "" && l.Address != "" && strings.Contains(fold(l.Address), address) {
			return true
		}
	}
	return false
}
