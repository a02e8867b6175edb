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

// Package aggregate combines the structured and generative providers into a single ranked list of eateries.
package aggregate

import (
	"cmp"
	"context"
	"errors"
	"log"
	"sync"

	"github.com/honeycombio/beeline-go"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/exp/slices"

	"github.com/nearbyeats/eatery-finder/service/finder/category"
	"github.com/nearbyeats/eatery-finder/service/finder/enrichment"
	"github.com/nearbyeats/eatery-finder/service/finder/geo"
	"github.com/nearbyeats/eatery-finder/service/finder/model"
	"github.com/nearbyeats/eatery-finder/service/finder/retry"
)

const (
	DefaultMergeDistanceKm   = 0.5
	DefaultEnrichConcurrency = 10
)

var ErrStructuredSourceRequired = errors.New("a structured source is required")

// Source is anything that can answer an eatery search. Structured sources are expected never to fail; a failing
// generative source is tolerated.
type Source interface {
	Name() string
	Search(ctx context.Context, req model.SearchRequest) (*model.SearchResult, error)
}

type Aggregator struct {
	structured      Source
	generative      Source
	enrichers       enrichment.Chain
	mergeDistanceKm float64
	pool            *ants.Pool
}

// Option configures an Aggregator.
type Option func(*Aggregator) error

// WithMergeDistance sets how far apart a structured and a generative place may be and still be merged by name.
// Zero or a negative distance turns the check off.
func WithMergeDistance(km float64) Option {
	return func(a *Aggregator) error {
		a.mergeDistanceKm = km
		return nil
	}
}

func WithEnrichers(chain enrichment.Chain) Option {
	return func(a *Aggregator) error {
		a.enrichers = chain
		return nil
	}
}

// WithEnrichConcurrency bounds how many places are enriched at once.
func WithEnrichConcurrency(size int) Option {
	return func(a *Aggregator) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if a.pool != nil {
			a.pool.Release()
		}
		a.pool = pool
		return nil
	}
}

// New creates an Aggregator. generative may be nil, in which case only the structured source is used.
func New(structured, generative Source, opts ...Option) (*Aggregator, error) {
	if structured == nil {
		return nil, ErrStructuredSourceRequired
	}
	pool, err := ants.NewPool(DefaultEnrichConcurrency)
	if err != nil {
		return nil, err
	}
	a := &Aggregator{
		structured:      structured,
		generative:      generative,
		enrichers:       enrichment.DefaultChain(),
		mergeDistanceKm: DefaultMergeDistanceKm,
		pool:            pool,
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *Aggregator) Close() {
	a.pool.Release()
}

type sourceResult struct {
	result *model.SearchResult
	err    error
}

// FindEateries runs a complete search. It only fails for invalid requests, or when the generative source fails with a
// non-retryable provider error while the structured source found nothing at all; that error is then returned as is.
func (a *Aggregator) FindEateries(ctx context.Context, req model.SearchRequest) (*model.SearchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ctx, span := beeline.StartSpan(ctx, "find_eateries")
	defer span.Send()
	span.AddField("categories", req.Categories)
	span.AddField("radius_km", req.RadiusKm)
	span.AddField("thinking", req.ThinkingMode)

	var structured, generative sourceResult
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		structured = a.query(ctx, a.structured, req)
	}()
	if a.generative != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			generative = a.query(ctx, a.generative, req)
		}()
	}
	wg.Wait()

	var structuredPlaces []model.Place
	if structured.err != nil {
		log.Printf("Structured source %s failed, continuing without it: %v", a.structured.Name(), structured.err)
	} else if structured.result != nil {
		structuredPlaces = structured.result.Places
	}
	if generative.err != nil {
		log.Printf("Generative source %s failed, continuing with structured data only: %v", a.generative.Name(), generative.err)
		span.AddField("generative_error", generative.err.Error())
		if len(structuredPlaces) == 0 && isFatal(generative.err) {
			return nil, generative.err
		}
	}

	result := &model.SearchResult{Places: []model.Place{}, Citations: []model.Citation{}}
	var generativePlaces []model.Place
	if generative.result != nil {
		generativePlaces = generative.result.Places
		result.Citations = append(result.Citations, generative.result.Citations...)
		for _, p := range generativePlaces {
			if p.Sentinel {
				result.Notice = p.Description
				break
			}
		}
	}

	structuredPlaces = filterStructured(structuredPlaces, req)
	generativePlaces = filterByDistance(generativePlaces, req)
	span.AddField("structured_count", len(structuredPlaces))
	span.AddField("generative_count", len(generativePlaces))

	combined := make([]model.Place, 0, len(structuredPlaces)+len(generativePlaces))
	merged := make(map[int]bool)
	for _, s := range structuredPlaces {
		if i := a.findCounterpart(s, generativePlaces); i >= 0 {
			combined = append(combined, mergePlaces(s, generativePlaces[i]))
			merged[i] = true
		} else {
			combined = append(combined, s.Clone())
		}
	}
	for i, g := range generativePlaces {
		if merged[i] {
			continue
		}
		if !alreadyListed(g, combined) {
			combined = append(combined, g.Clone())
		}
	}

	combined = a.enrichAll(ctx, combined)
	result.Places = filterByDistance(combined, req)
	slices.SortStableFunc(result.Places, func(x, y model.Place) int {
		return cmp.Compare(y.NumericRating(), x.NumericRating())
	})
	span.AddField("result_count", len(result.Places))
	return result, nil
}

// isFatal reports whether a generative failure is worth surfacing: a provider error that retrying could never fix,
// such as a rejected key. Exhausted retries, transient errors and panics are not.
func isFatal(err error) bool {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return !errors.Is(err, retry.ErrRetriesExhausted) && !retry.IsTransient(err)
}

func (a *Aggregator) query(ctx context.Context, source Source, req model.SearchRequest) (r sourceResult) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("Source %s panicked: %v", source.Name(), p)
			r = sourceResult{err: errors.New(source.Name() + " source panicked")}
		}
	}()
	result, err := source.Search(ctx, req)
	return sourceResult{result: result, err: err}
}

func filterStructured(places []model.Place, req model.SearchRequest) []model.Place {
	kept := make([]model.Place, 0, len(places))
	for _, p := range places {
		if !geo.WithinRadius(req.Location, &p, req.RadiusKm) {
			continue
		}
		if !category.Matches(p.PlaceTypes, req.Categories) {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

// filterByDistance drops anything without coordinates or outside the search radius.
func filterByDistance(places []model.Place, req model.SearchRequest) []model.Place {
	kept := make([]model.Place, 0, len(places))
	for _, p := range places {
		if geo.WithinRadius(req.Location, &p, req.RadiusKm) {
			kept = append(kept, p)
		}
	}
	return kept
}

// enrichAll runs the enrichment chain over every place on the pool, preserving order.
func (a *Aggregator) enrichAll(ctx context.Context, places []model.Place) []model.Place {
	if len(a.enrichers) == 0 {
		return places
	}
	out := make([]model.Place, len(places))
	var wg sync.WaitGroup
	for i, p := range places {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			out[i], _ = a.enrichers.Apply(ctx, p)
		}
		if err := a.pool.Submit(task); err != nil {
			log.Printf("Couldn't schedule enrichment, running inline: %v", err)
			task()
		}
	}
	wg.Wait()
	return out
}
