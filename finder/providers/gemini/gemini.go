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

// Package gemini finds eateries by asking Gemini to research the area with search grounding.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/honeycombio/beeline-go"
	"google.golang.org/genai"

	"github.com/nearbyeats/eatery-finder/service/finder/model"
	"github.com/nearbyeats/eatery-finder/service/finder/quota"
	"github.com/nearbyeats/eatery-finder/service/finder/retry"
)

const (
	DefaultModel         = "gemini-2.5-flash"
	DefaultThinkingModel = "gemini-2.5-pro"
	ProviderLabel        = "Gemini"
)

const (
	sentinelName        = "Analysis Error"
	sentinelAddress     = "N/A"
	sentinelDescription = "The AI conducted the research but the data structure was malformed. Please try again."
)

var ErrNoAPIKey = errors.New("no Gemini API key configured")

// Backend is the part of the genai client the provider needs. *genai.Models satisfies it.
type Backend interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Options struct {
	APIKey        string
	Model         string
	ThinkingModel string
	// Backend replaces the genai client, mostly for tests. APIKey is ignored when it is set.
	Backend Backend
	Retry   retry.Policy
	Quota   *quota.Tracker
}

type Provider struct {
	backend       Backend
	model         string
	thinkingModel string
	retry         retry.Policy
	quota         *quota.Tracker
}

func New(ctx context.Context, opts Options) (*Provider, error) {
	p := &Provider{
		backend:       opts.Backend,
		model:         opts.Model,
		thinkingModel: opts.ThinkingModel,
		retry:         opts.Retry,
		quota:         opts.Quota,
	}
	if p.model == "" {
		p.model = DefaultModel
	}
	if p.thinkingModel == "" {
		p.thinkingModel = DefaultThinkingModel
	}
	if p.retry.MaxAttempts == 0 {
		p.retry = retry.DefaultPolicy()
	}
	if p.backend == nil && opts.APIKey != "" {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  opts.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("creating Gemini client: %w", err)
		}
		p.backend = client.Models
	}
	return p, nil
}

func (p *Provider) Name() string {
	return "gemini"
}

func (p *Provider) Search(ctx context.Context, req model.SearchRequest) (*model.SearchResult, error) {
	return p.Find(ctx, req.Categories, req.RadiusKm, req.Location, req.ThinkingMode)
}

// Find asks the model for eateries matching categories around location. Unusable answers produce a single
// placeholder place rather than an error; errors are only returned when the API itself fails, and are always
// *model.APIError.
func (p *Provider) Find(ctx context.Context, categories []string, radiusKm float64, location model.Coordinates, thinking bool) (*model.SearchResult, error) {
	ctx, span := beeline.StartSpan(ctx, "gemini_find")
	defer span.Send()
	if p.backend == nil {
		span.AddField("error", ErrNoAPIKey)
		return nil, &model.APIError{Provider: ProviderLabel, Err: ErrNoAPIKey}
	}
	if err := p.quota.CheckQuota(ctx); err != nil {
		span.AddField("error", err)
		return nil, &model.APIError{Provider: ProviderLabel, Err: err}
	}

	modelName := p.model
	if thinking {
		modelName = p.thinkingModel
	}
	span.AddField("model", modelName)
	prompt := buildPrompt(model.SearchRequest{Categories: categories, RadiusKm: radiusKm, Location: location})
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}

	resp, err := retry.Do(ctx, p.retry, func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		return p.backend.GenerateContent(ctx, modelName, contents, config)
	})
	if err != nil {
		span.AddField("error", err)
		log.Printf("Error calling Gemini API: %v", err)
		return nil, &model.APIError{Provider: ProviderLabel, Err: err}
	}
	p.chargeUsage(ctx, resp)

	text := responseText(resp)
	span.AddField("response_length", len(text))
	places, err := extractPlaces(text)
	if err != nil {
		log.Printf("Could not parse JSON structure from response: %v", err)
		places = []model.Place{}
	}
	log.Printf("Gemini found %d establishments with coordinates", len(places))
	span.AddField("result_count", len(places))

	if len(places) == 0 && text != "" {
		places = []model.Place{{
			Name:           sentinelName,
			Address:        sentinelAddress,
			Description:    sentinelDescription,
			MenuHighlights: []string{},
			Platforms:      []string{},
			Sentinel:       true,
		}}
	}
	return &model.SearchResult{Places: places, Citations: citations(resp)}, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

func citations(resp *genai.GenerateContentResponse) []model.Citation {
	result := []model.Citation{}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return result
	}
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		if chunk.Web.URI == "" || chunk.Web.Title == "" {
			continue
		}
		result = append(result, model.Citation{URI: chunk.Web.URI, Title: chunk.Web.Title})
	}
	return result
}

func (p *Provider) chargeUsage(ctx context.Context, resp *genai.GenerateContentResponse) {
	if resp == nil || resp.UsageMetadata == nil {
		return
	}
	ctx, span := beeline.StartSpan(ctx, "charge_usage")
	defer span.Send()
	inputTokens := int(resp.UsageMetadata.PromptTokenCount)
	outputTokens := int(resp.UsageMetadata.CandidatesTokenCount)
	span.AddField("input_tokens", inputTokens)
	span.AddField("output_tokens", outputTokens)
	if err := p.quota.ChargeTokens(ctx, inputTokens, outputTokens); err != nil {
		span.AddField("error", err)
		log.Printf("charge token quota failed: %v\n", err)
	}
}
