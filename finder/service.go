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

package finder

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/honeycombio/beeline-go"
	"github.com/honeycombio/beeline-go/wrappers/hnynethttp"

	"github.com/nearbyeats/eatery-finder/service/finder/model"
	"github.com/nearbyeats/eatery-finder/service/finder/query"
	"github.com/nearbyeats/eatery-finder/service/finder/quota"
)

// Searcher runs one eatery search. *aggregate.Aggregator is the production implementation.
type Searcher interface {
	FindEateries(ctx context.Context, req model.SearchRequest) (*model.SearchResult, error)
}

type Service struct {
	mux      *http.ServeMux
	searcher Searcher
	timeout  time.Duration
}

func NewService(searcher Searcher, timeout time.Duration) *Service {
	s := &Service{
		mux:      http.NewServeMux(),
		searcher: searcher,
		timeout:  timeout,
	}
	s.mux.HandleFunc("/search", s.handleSearch)
	s.mux.HandleFunc("/search/ws", s.handleSearchSession)
	s.mux.HandleFunc("/heartbeat", s.handleHeartbeat)
	return s
}

func (s *Service) handleHeartbeat(rw http.ResponseWriter, r *http.Request) {
	_, _ = rw.Write([]byte("eatery-finder"))
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Service) handleSearch(rw http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	ctx := query.ContextWith(r.Context(), requestID)
	beeline.AddField(ctx, "request_id", requestID)
	rw.Header().Set("X-Request-Id", requestID)
	if r.Method != http.MethodGet {
		rw.Header().Set("Allow", http.MethodGet)
		writeJSON(rw, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	req, err := query.ParseSearchRequest(r.URL.Query())
	if err != nil {
		writeJSON(rw, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	result, err := s.search(ctx, req)
	if err != nil {
		status, message := describeError(err)
		log.Printf("Search %s failed: %v", requestID, err)
		writeJSON(rw, status, errorResponse{Error: message})
		return
	}
	writeJSON(rw, http.StatusOK, result)
}

func (s *Service) handleSearchSession(rw http.ResponseWriter, r *http.Request) {
	session, err := NewSearchSession(s, rw, r)
	if err != nil {
		log.Printf("Creating session failed: %v", err)
		return
	}
	session.Run(r.Context())
}

func (s *Service) search(ctx context.Context, req model.SearchRequest) (*model.SearchResult, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.searcher.FindEateries(ctx, req)
}

// describeError maps a search error to an HTTP status and the message shown to the caller.
func describeError(err error) (int, string) {
	var apiErr *model.APIError
	switch {
	case errors.Is(err, model.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, quota.ErrQuotaExceeded):
		return http.StatusTooManyRequests, "The monthly search quota has been used up."
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "The search took too long. Please try again."
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, apiErr.Error()
	default:
		return http.StatusInternalServerError, "The search failed. Please try again."
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		log.Printf("Writing response failed: %v", err)
	}
}

func (s *Service) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(rw, r)
}

// ListenAndServe serves the API, opening a trace for every request.
func (s *Service) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, hnynethttp.WrapHandler(s.mux))
}
