package gemini

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/nearbyeats/eatery-finder/service/finder/model"
	"github.com/nearbyeats/eatery-finder/service/finder/quota"
	"github.com/nearbyeats/eatery-finder/service/finder/retry"
)

type fakeBackend struct {
	responses []*genai.GenerateContentResponse
	errs      []error
	calls     int
	models    []string
	prompts   []string
}

func (f *fakeBackend) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	i := f.calls
	f.calls++
	f.models = append(f.models, model)
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompts = append(f.prompts, contents[0].Parts[0].Text)
	}
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return f.responses[len(f.responses)-1], nil
}

func textResponse(text string, sources ...model.Citation) *genai.GenerateContentResponse {
	var chunks []*genai.GroundingChunk
	for _, s := range sources {
		chunks = append(chunks, &genai.GroundingChunk{Web: &genai.GroundingChunkWeb{URI: s.URI, Title: s.Title}})
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:           &genai.Content{Parts: []*genai.Part{{Text: text}}},
			GroundingMetadata: &genai.GroundingMetadata{GroundingChunks: chunks},
		}},
	}
}

func fastRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 4, BaseDelay: time.Millisecond, IsRetryable: retry.IsTransient}
}

func newTestProvider(t *testing.T, backend Backend) *Provider {
	p, err := New(context.Background(), Options{Backend: backend, Retry: fastRetry()})
	require.NoError(t, err)
	return p
}

var center = model.Coordinates{Latitude: 10, Longitude: 106}

func TestFindParsesFencedJSON(t *testing.T) {
	backend := &fakeBackend{responses: []*genai.GenerateContentResponse{textResponse("Here you go:\n```json\n" + `[
  {"name": "Blue Sky Cafe", "address": "1 Nguyen Hue", "latitude": 10.001, "longitude": 106.001,
   "description": "Great coffee", "email": "hi@bluesky.vn", "phone": null,
   "menu": [{"name": "Latte", "price": 45000}], "platforms": ["GrabFood"], "rating": 4.6}
]` + "\n```")}}
	p := newTestProvider(t, backend)

	result, err := p.Find(context.Background(), []string{"Coffee"}, 2, center, false)
	require.NoError(t, err)
	require.Len(t, result.Places, 1)
	cafe := result.Places[0]
	assert.Equal(t, "Blue Sky Cafe", cafe.Name)
	assert.Equal(t, "Great coffee", cafe.Description)
	assert.Equal(t, "hi@bluesky.vn", cafe.Email)
	assert.Equal(t, "", cafe.Phone)
	assert.Equal(t, "4.6", cafe.Rating)
	assert.Equal(t, []model.MenuItem{{Name: "Latte", Price: "45000"}}, cafe.Menu)
	assert.Equal(t, []string{"GrabFood"}, cafe.Platforms)
	loc, ok := cafe.Location()
	require.True(t, ok)
	assert.InDelta(t, 10.001, loc.Latitude, 1e-9)
	assert.False(t, cafe.Sentinel)
	assert.Equal(t, []string{DefaultModel}, backend.models)
}

func TestFindParsesBareArray(t *testing.T) {
	backend := &fakeBackend{responses: []*genai.GenerateContentResponse{
		textResponse(`[{"name": "Cafe A", "latitude": 10.0, "longitude": 106.0}]`),
	}}
	result, err := newTestProvider(t, backend).Find(context.Background(), []string{"Coffee"}, 2, center, false)
	require.NoError(t, err)
	require.Len(t, result.Places, 1)
	assert.Equal(t, "Cafe A", result.Places[0].Name)
}

func TestFindParsesUntaggedFence(t *testing.T) {
	backend := &fakeBackend{responses: []*genai.GenerateContentResponse{
		textResponse("Results:\n```\n" + `[{"name": "Cafe A", "latitude": 10.0, "longitude": 106.0}]` + "\n```\nEnjoy!"),
	}}
	result, err := newTestProvider(t, backend).Find(context.Background(), []string{"Coffee"}, 2, center, false)
	require.NoError(t, err)
	require.Len(t, result.Places, 1)
	assert.Equal(t, "Cafe A", result.Places[0].Name)
	assert.False(t, result.Places[0].Sentinel)
}

func TestFindParsesUppercaseFenceTag(t *testing.T) {
	backend := &fakeBackend{responses: []*genai.GenerateContentResponse{
		textResponse("Here:\n```JSON\n" + `[{"name": "Cafe B", "latitude": 10.001, "longitude": 106.001}]` + "\n```"),
	}}
	result, err := newTestProvider(t, backend).Find(context.Background(), []string{"Coffee"}, 2, center, false)
	require.NoError(t, err)
	require.Len(t, result.Places, 1)
	assert.Equal(t, "Cafe B", result.Places[0].Name)
	assert.False(t, result.Places[0].Sentinel)
}

func TestFindRepairsArithmetic(t *testing.T) {
	backend := &fakeBackend{responses: []*genai.GenerateContentResponse{textResponse("```json\n" + `[
  {
    "name": "Cafe A",
    "latitude": 10 + 0.002,
    "longitude": 106.001
  }
]` + "\n```")}}
	result, err := newTestProvider(t, backend).Find(context.Background(), []string{"Coffee"}, 2, center, false)
	require.NoError(t, err)
	require.Len(t, result.Places, 1)
	loc, ok := result.Places[0].Location()
	require.True(t, ok)
	assert.InDelta(t, 10.002, loc.Latitude, 1e-9)
}

func TestFindDropsEntitiesWithoutCoordinates(t *testing.T) {
	backend := &fakeBackend{responses: []*genai.GenerateContentResponse{textResponse("```json\n" + `[
  {"name": "No Lat", "longitude": 106.0},
  {"name": "Null Lon", "latitude": 10.0, "longitude": null},
  {"name": "String Lat", "latitude": "ten", "longitude": 106.0},
  {"name": "Kept", "latitude": 10.0, "longitude": 106.0},
  {"name": "Equator", "latitude": 0, "longitude": 106.0}
]` + "\n```")}}
	result, err := newTestProvider(t, backend).Find(context.Background(), []string{"Coffee"}, 2, center, false)
	require.NoError(t, err)
	var names []string
	for _, p := range result.Places {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Kept", "Equator"}, names)
}

func TestFindReturnsSentinelForUnparseableText(t *testing.T) {
	backend := &fakeBackend{responses: []*genai.GenerateContentResponse{
		textResponse("I found several nice cafes but I can't format them.", model.Citation{URI: "https://a.example", Title: "A"}),
	}}
	result, err := newTestProvider(t, backend).Find(context.Background(), []string{"Coffee"}, 2, center, false)
	require.NoError(t, err)
	require.Len(t, result.Places, 1)
	s := result.Places[0]
	assert.True(t, s.Sentinel)
	assert.Equal(t, "Analysis Error", s.Name)
	assert.Equal(t, "N/A", s.Address)
	assert.Equal(t, "The AI conducted the research but the data structure was malformed. Please try again.", s.Description)
	_, ok := s.Location()
	assert.False(t, ok)
	assert.Len(t, result.Citations, 1)
}

func TestFindEmptyTextIsEmptyResult(t *testing.T) {
	backend := &fakeBackend{responses: []*genai.GenerateContentResponse{{}}}
	result, err := newTestProvider(t, backend).Find(context.Background(), []string{"Coffee"}, 2, center, false)
	require.NoError(t, err)
	assert.Empty(t, result.Places)
	assert.NotNil(t, result.Citations)
}

func TestFindFiltersCitations(t *testing.T) {
	backend := &fakeBackend{responses: []*genai.GenerateContentResponse{textResponse("[]",
		model.Citation{URI: "https://a.example", Title: "A"},
		model.Citation{URI: "https://b.example"},
		model.Citation{Title: "C"},
	)}}
	result, err := newTestProvider(t, backend).Find(context.Background(), []string{"Coffee"}, 2, center, false)
	require.NoError(t, err)
	assert.Equal(t, []model.Citation{{URI: "https://a.example", Title: "A"}}, result.Citations)
}

func TestFindRetriesOverloadedModel(t *testing.T) {
	backend := &fakeBackend{
		errs:      []error{errors.New("Error 503, Message: The model is overloaded"), errors.New("429 rate limit")},
		responses: []*genai.GenerateContentResponse{textResponse(`[{"name": "Cafe A", "latitude": 10, "longitude": 106}]`)},
	}
	result, err := newTestProvider(t, backend).Find(context.Background(), []string{"Coffee"}, 2, center, false)
	require.NoError(t, err)
	assert.Equal(t, 3, backend.calls)
	assert.Len(t, result.Places, 1)
}

func TestFindDoesNotRetryAuthErrors(t *testing.T) {
	backend := &fakeBackend{errs: []error{errors.New("Error 400, Message: API key not valid")}}
	_, err := newTestProvider(t, backend).Find(context.Background(), []string{"Coffee"}, 2, center, false)
	require.Error(t, err)
	assert.Equal(t, 1, backend.calls)
	var apiErr *model.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Gemini", apiErr.Provider)
	assert.Equal(t, "Gemini API Error: Error 400, Message: API key not valid", err.Error())
}

func TestFindGivesUpAfterRetries(t *testing.T) {
	overloaded := errors.New("503 UNAVAILABLE")
	backend := &fakeBackend{errs: []error{overloaded, overloaded, overloaded, overloaded}}
	_, err := newTestProvider(t, backend).Find(context.Background(), []string{"Coffee"}, 2, center, false)
	assert.Equal(t, 4, backend.calls)
	assert.ErrorIs(t, err, retry.ErrRetriesExhausted)
	assert.ErrorIs(t, err, overloaded)
	assert.Contains(t, err.Error(), "Gemini API Error:")
}

func TestFindWithoutKey(t *testing.T) {
	p, err := New(context.Background(), Options{})
	require.NoError(t, err)
	_, err = p.Find(context.Background(), []string{"Coffee"}, 2, center, false)
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestThinkingModeUsesThinkingModel(t *testing.T) {
	backend := &fakeBackend{responses: []*genai.GenerateContentResponse{textResponse("[]")}}
	p := newTestProvider(t, backend)
	_, err := p.Search(context.Background(), model.SearchRequest{
		Categories: []string{"Coffee"}, RadiusKm: 2, Location: center, ThinkingMode: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultThinkingModel}, backend.models)
}

func TestPromptMentionsRequest(t *testing.T) {
	backend := &fakeBackend{responses: []*genai.GenerateContentResponse{textResponse("[]")}}
	_, err := newTestProvider(t, backend).Find(context.Background(), []string{"Coffee", "Resort/Hotel"}, 2.5, model.Coordinates{Latitude: 10.5, Longitude: 106.25}, false)
	require.NoError(t, err)
	require.Len(t, backend.prompts, 1)
	prompt := backend.prompts[0]
	assert.Contains(t, prompt, "coffee shops, cafes, coffee houses or resorts, hotels, lodging establishments, accommodation facilities")
	assert.Contains(t, prompt, "within 2.5km radius from coordinates: 10.5, 106.25")
	assert.Contains(t, prompt, "Coffee, Resort/Hotel")
	assert.Contains(t, prompt, "```json")
}

func TestUsageIsCharged(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	tracker := quota.NewTracker(client, "gemini")

	resp := textResponse("[]")
	resp.UsageMetadata = &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 100, CandidatesTokenCount: 10}

	p, err := New(context.Background(), Options{Backend: &fakeBackend{responses: []*genai.GenerateContentResponse{resp}}, Retry: fastRetry(), Quota: tracker})
	require.NoError(t, err)
	_, err = p.Find(context.Background(), []string{"Coffee"}, 2, center, false)
	require.NoError(t, err)

	used, _, err := tracker.GetQuota(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100*quota.InputTokenCredits+10*quota.OutputTokenCredits, used)
}

func TestUsageChargeFailureDoesNotFailSearch(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	now := time.Now()
	key := fmt.Sprintf("quota:%02d%02d:gemini", now.Year()%100, now.Month())
	require.NoError(t, mr.Set(key, "not a number"))

	resp := textResponse(`[{"name": "Cafe A", "latitude": 10.0, "longitude": 106.0}]`)
	resp.UsageMetadata = &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 100, CandidatesTokenCount: 10}
	p, err := New(context.Background(), Options{
		Backend: &fakeBackend{responses: []*genai.GenerateContentResponse{resp}},
		Retry:   fastRetry(),
		Quota:   quota.NewTracker(client, "gemini"),
	})
	require.NoError(t, err)

	result, err := p.Find(context.Background(), []string{"Coffee"}, 2, center, false)
	require.NoError(t, err)
	assert.Len(t, result.Places, 1)
	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "not a number", got)
}
