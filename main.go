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

package main

import (
	"context"
	"log"
	"net/http"

	"github.com/honeycombio/beeline-go"
	"github.com/honeycombio/beeline-go/wrappers/hnynethttp"

	"github.com/nearbyeats/eatery-finder/service/finder"
	"github.com/nearbyeats/eatery-finder/service/finder/config"
	"github.com/nearbyeats/eatery-finder/service/finder/util/redact"
	"github.com/nearbyeats/eatery-finder/service/finder/util/storage"
)

func main() {
	cfg := config.GetConfig()
	beeline.Init(beeline.Config{
		WriteKey:    cfg.HoneycombKey,
		Dataset:     "eatery-finder",
		ServiceName: "eatery-finder",
		PresendHook: redact.CleanHoneycomb,
	})
	defer beeline.Close()
	http.DefaultTransport = hnynethttp.WrapRoundTripper(http.DefaultTransport)

	aggregator, cleanup, err := finder.NewAggregator(context.Background(), cfg, storage.GetRedis())
	if err != nil {
		log.Fatalf("Setting up search failed: %v", err)
	}
	defer cleanup()
	service := finder.NewService(aggregator, cfg.SearchTimeout)
	log.Printf("Listening on %s.", cfg.ListenAddr)
	log.Fatal(service.ListenAndServe(cfg.ListenAddr))
}
