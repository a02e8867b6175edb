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

// Package enrichment attaches food delivery platform listings to places.
package enrichment

import (
	"context"
	"fmt"
	"log"

	"github.com/honeycombio/beeline-go"
	"golang.org/x/exp/slices"

	"github.com/nearbyeats/eatery-finder/service/finder/model"
)

type Outcome int

const (
	// NotApplicable means the enricher had nothing to add to the place.
	NotApplicable Outcome = iota
	// Enriched means the place gained a listing.
	Enriched
	// Unchanged means the enricher failed; the place is returned as it was and Err says why.
	Unchanged
)

func (o Outcome) String() string {
	switch o {
	case NotApplicable:
		return "not_applicable"
	case Enriched:
		return "enriched"
	case Unchanged:
		return "unchanged"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

type Result struct {
	Outcome Outcome
	Place   model.Place
	Err     error
}

// An Enricher must never fail the caller: on any problem it returns the input place with Outcome Unchanged.
type Enricher interface {
	Name() string
	Enrich(ctx context.Context, place model.Place) Result
}

// Listing is what a platform lookup knows about a place.
type Listing struct {
	URL         string
	PlatformTag string
	Available   bool
}

type LookupFunc func(ctx context.Context, name, address string) (Listing, error)

// Platform enriches places with their listing on one delivery platform.
type Platform struct {
	name   string
	lookup LookupFunc
	setURL func(p *model.Place, url string)
}

func NewPlatform(name string, lookup LookupFunc, setURL func(p *model.Place, url string)) *Platform {
	return &Platform{name: name, lookup: lookup, setURL: setURL}
}

func (p *Platform) Name() string {
	return p.name
}

func (p *Platform) Enrich(ctx context.Context, place model.Place) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Enricher %s panicked on %q: %v", p.name, place.Name, r)
			result = Result{Outcome: Unchanged, Place: place, Err: fmt.Errorf("%s enricher panicked: %v", p.name, r)}
		}
	}()
	listing, err := p.lookup(ctx, place.Name, place.Address)
	if err != nil {
		return Result{Outcome: Unchanged, Place: place, Err: fmt.Errorf("%s lookup: %w", p.name, err)}
	}
	if !listing.Available || listing.URL == "" {
		return Result{Outcome: NotApplicable, Place: place}
	}
	enriched := place.Clone()
	if p.setURL != nil {
		p.setURL(&enriched, listing.URL)
	}
	tag := listing.PlatformTag
	if tag == "" {
		tag = p.name
	}
	if !slices.Contains(enriched.Platforms, tag) {
		enriched.Platforms = append(enriched.Platforms, tag)
	}
	return Result{Outcome: Enriched, Place: enriched}
}

// Chain runs enrichers one after another, each seeing the previous one's output.
type Chain []Enricher

// Apply never fails: the returned place carries every successful enrichment, and results has one entry per enricher.
func (c Chain) Apply(ctx context.Context, place model.Place) (model.Place, []Result) {
	ctx, span := beeline.StartSpan(ctx, "enrich_place")
	defer span.Send()
	span.AddField("place", place.Name)
	results := make([]Result, 0, len(c))
	current := place
	for _, e := range c {
		r := e.Enrich(ctx, current)
		if r.Outcome == Enriched {
			current = r.Place
		}
		if r.Err != nil {
			log.Printf("Failed to enrich %q with %s: %v", place.Name, e.Name(), r.Err)
			span.AddField("error."+e.Name(), r.Err)
		}
		span.AddField("outcome."+e.Name(), r.Outcome.String())
		results = append(results, r)
	}
	return current, results
}
