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
	"log"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/honeycombio/beeline-go"
	"nhooyr.io/websocket"

	"github.com/nearbyeats/eatery-finder/service/finder/query"
)

// A SearchSession streams the progress of one search over a websocket. Every frame is a single
// letter followed by its payload:
//
//	s<status>  progress, e.g. "searching"
//	r<json>    the result
//	e<message> the search failed
//
// The server closes the connection normally after the r or e frame.
type SearchSession struct {
	conn    *websocket.Conn
	query   url.Values
	service *Service
	id      uuid.UUID
}

func NewSearchSession(service *Service, rw http.ResponseWriter, r *http.Request) (*SearchSession, error) {
	c, err := websocket.Accept(rw, r, &websocket.AcceptOptions{
		OriginPatterns:     []string{"null"},
		InsecureSkipVerify: true,
	})
	if err != nil {
		return nil, err
	}
	return &SearchSession{
		conn:    c,
		query:   r.URL.Query(),
		service: service,
		id:      uuid.New(),
	}, nil
}

func (ss *SearchSession) Run(ctx context.Context) {
	ctx = query.ContextWith(ctx, ss.id.String())
	ctx, span := beeline.StartSpan(ctx, "search_session")
	defer span.Send()
	span.AddField("request_id", ss.id.String())

	req, err := query.ParseSearchRequest(ss.query)
	if err != nil {
		ss.fail(ctx, err.Error())
		return
	}
	if err := ss.conn.Write(ctx, websocket.MessageText, []byte("ssearching")); err != nil {
		log.Printf("write to websocket failed: %v\n", err)
		_ = ss.conn.Close(websocket.StatusInternalError, "write failed")
		return
	}
	result, err := ss.service.search(ctx, req)
	if err != nil {
		span.AddField("error", err)
		log.Printf("Search %s failed: %v", ss.id, err)
		_, message := describeError(err)
		ss.fail(ctx, message)
		return
	}
	j, err := json.Marshal(result)
	if err != nil {
		span.AddField("error", err)
		ss.fail(ctx, "The search failed. Please try again.")
		return
	}
	if err := ss.conn.Write(ctx, websocket.MessageText, append([]byte("r"), j...)); err != nil {
		log.Printf("write to websocket failed: %v\n", err)
		_ = ss.conn.Close(websocket.StatusInternalError, "write failed")
		return
	}
	span.AddField("result_count", len(result.Places))
	_ = ss.conn.Close(websocket.StatusNormalClosure, "")
}

func (ss *SearchSession) fail(ctx context.Context, message string) {
	if err := ss.conn.Write(ctx, websocket.MessageText, []byte("e"+message)); err != nil {
		log.Printf("write to websocket failed: %v\n", err)
		_ = ss.conn.Close(websocket.StatusInternalError, "write failed")
		return
	}
	_ = ss.conn.Close(websocket.StatusNormalClosure, "")
}
