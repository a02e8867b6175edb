package finder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/nearbyeats/eatery-finder/service/finder/model"
	"github.com/nearbyeats/eatery-finder/service/finder/quota"
)

type fakeSearcher struct {
	result *model.SearchResult
	err    error
	wait   bool
	got    model.SearchRequest
}

func (f *fakeSearcher) FindEateries(ctx context.Context, req model.SearchRequest) (*model.SearchResult, error) {
	f.got = req
	if f.wait {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.result, f.err
}

func sampleResult() *model.SearchResult {
	p := model.Place{Name: "Blue Sky Cafe", Address: "1 Nguyen Hue", Rating: "4.5/5 (120 reviews)", Platforms: []string{}}
	p.SetLocation(model.Coordinates{Latitude: 10.001, Longitude: 106.001})
	return &model.SearchResult{
		Places:    []model.Place{p},
		Citations: []model.Citation{{URI: "https://example.com", Title: "Example"}},
	}
}

const validQuery = "/search?categories=Coffee&radius=2&lat=10&lon=106"

func TestHeartbeat(t *testing.T) {
	s := NewService(&fakeSearcher{}, time.Second)
	rw := httptest.NewRecorder()
	s.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/heartbeat", nil))
	assert.Equal(t, http.StatusOK, rw.Code)
	assert.Equal(t, "eatery-finder", rw.Body.String())
}

func TestSearchReturnsResult(t *testing.T) {
	searcher := &fakeSearcher{result: sampleResult()}
	s := NewService(searcher, time.Second)
	rw := httptest.NewRecorder()
	s.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, validQuery+"&thinking=true", nil))

	require.Equal(t, http.StatusOK, rw.Code)
	assert.Equal(t, "application/json", rw.Header().Get("Content-Type"))
	assert.NotEmpty(t, rw.Header().Get("X-Request-Id"))
	assert.True(t, searcher.got.ThinkingMode)
	assert.Equal(t, []string{"Coffee"}, searcher.got.Categories)

	var body struct {
		Places []struct {
			Name      string   `json:"name"`
			Latitude  float64  `json:"latitude"`
			Platforms []string `json:"platforms"`
		} `json:"places"`
		Citations []model.Citation `json:"citations"`
	}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &body))
	require.Len(t, body.Places, 1)
	assert.Equal(t, "Blue Sky Cafe", body.Places[0].Name)
	assert.InDelta(t, 10.001, body.Places[0].Latitude, 1e-9)
	assert.NotNil(t, body.Places[0].Platforms)
	assert.Equal(t, []model.Citation{{URI: "https://example.com", Title: "Example"}}, body.Citations)
	assert.NotContains(t, rw.Body.String(), "PlaceTypes")
}

func TestSearchErrors(t *testing.T) {
	cases := []struct {
		name    string
		target  string
		err     error
		status  int
		message string
	}{
		{
			name:   "invalid query",
			target: "/search?categories=Coffee&radius=-1&lat=10&lon=106",
			status: http.StatusBadRequest,
		},
		{
			name:    "provider failure",
			target:  validQuery,
			err:     &model.APIError{Provider: "Gemini", Err: errors.New("API key not valid")},
			status:  http.StatusBadGateway,
			message: "Gemini API Error: API key not valid",
		},
		{
			name:    "quota",
			target:  validQuery,
			err:     &model.APIError{Provider: "Gemini", Err: fmt.Errorf("gemini: %w", quota.ErrQuotaExceeded)},
			status:  http.StatusTooManyRequests,
			message: "The monthly search quota has been used up.",
		},
		{
			name:    "unexpected",
			target:  validQuery,
			err:     errors.New("dial tcp: connection refused"),
			status:  http.StatusInternalServerError,
			message: "The search failed. Please try again.",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewService(&fakeSearcher{err: tc.err}, time.Second)
			rw := httptest.NewRecorder()
			s.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, tc.target, nil))
			assert.Equal(t, tc.status, rw.Code)
			var body errorResponse
			require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &body))
			if tc.message != "" {
				assert.Equal(t, tc.message, body.Error)
			} else {
				assert.NotEmpty(t, body.Error)
			}
		})
	}
}

func TestSearchTimeout(t *testing.T) {
	s := NewService(&fakeSearcher{wait: true}, 20*time.Millisecond)
	rw := httptest.NewRecorder()
	s.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, validQuery, nil))
	assert.Equal(t, http.StatusGatewayTimeout, rw.Code)
}

func TestSearchRejectsPost(t *testing.T) {
	s := NewService(&fakeSearcher{}, time.Second)
	rw := httptest.NewRecorder()
	s.ServeHTTP(rw, httptest.NewRequest(http.MethodPost, validQuery, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rw.Code)
}

func readSession(t *testing.T, s *Service, target string) []string {
	t.Helper()
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, srv.URL+target, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	var frames []string
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
			return frames
		}
		frames = append(frames, string(data))
	}
}

func TestSearchSession(t *testing.T) {
	s := NewService(&fakeSearcher{result: sampleResult()}, time.Second)
	frames := readSession(t, s, strings.Replace(validQuery, "/search", "/search/ws", 1))
	require.Len(t, frames, 2)
	assert.Equal(t, "ssearching", frames[0])
	require.True(t, strings.HasPrefix(frames[1], "r"))
	var result model.SearchResult
	require.NoError(t, json.Unmarshal([]byte(frames[1][1:]), &result))
	require.Len(t, result.Places, 1)
	assert.Equal(t, "Blue Sky Cafe", result.Places[0].Name)
}

func TestSearchSessionReportsErrors(t *testing.T) {
	s := NewService(&fakeSearcher{err: &model.APIError{Provider: "Gemini", Err: errors.New("overloaded")}}, time.Second)
	frames := readSession(t, s, strings.Replace(validQuery, "/search", "/search/ws", 1))
	assert.Equal(t, []string{"ssearching", "eGemini API Error: overloaded"}, frames)
}

func TestSearchSessionRejectsInvalidRequest(t *testing.T) {
	s := NewService(&fakeSearcher{}, time.Second)
	frames := readSession(t, s, "/search/ws?categories=Coffee")
	require.Len(t, frames, 1)
	assert.True(t, strings.HasPrefix(frames[0], "e"))
}
