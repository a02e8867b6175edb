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
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/nearbyeats/eatery-finder/service/finder"
	"github.com/nearbyeats/eatery-finder/service/finder/config"
	"github.com/nearbyeats/eatery-finder/service/finder/model"
	"github.com/nearbyeats/eatery-finder/service/finder/util/storage"
)

// searcherFactory builds the pipeline a command runs against, and a function to release it.
type searcherFactory func(ctx context.Context) (finder.Searcher, func(), error)

func productionSearcher(ctx context.Context) (finder.Searcher, func(), error) {
	a, cleanup, err := finder.NewAggregator(ctx, config.GetConfig(), storage.GetRedis())
	if err != nil {
		return nil, nil, err
	}
	return a, cleanup, nil
}

func main() {
	if err := newApp(productionSearcher).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(factory searcherFactory) *cli.App {
	return &cli.App{
		Name:  "eaterysearch",
		Usage: "Find eateries near a location",
		Commands: []*cli.Command{
			{
				Name:  "search",
				Usage: "Search for eateries around a point",
				Action: func(c *cli.Context) error {
					return searchCommand(c, factory)
				},
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:     "category",
						Aliases:  []string{"c"},
						Usage:    "Category to search for (Coffee, Restaurant, Bistro, Street Food, Bakery, Resort/Hotel). Repeat it for several categories, always as --category or always as -c",
						Required: true,
					},
					&cli.Float64Flag{
						Name:    "radius",
						Aliases: []string{"r"},
						Usage:   "Search radius in kilometres",
						Value:   2,
					},
					&cli.Float64Flag{
						Name:     "lat",
						Usage:    "Latitude of the search centre",
						Required: true,
					},
					&cli.Float64Flag{
						Name:     "lon",
						Usage:    "Longitude of the search centre",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "thinking",
						Usage: "Use the slower, deeper reasoning model",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the raw JSON result",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Give up after this long",
						Value: config.GetConfig().SearchTimeout,
					},
				},
			},
		},
	}
}

func searchCommand(c *cli.Context, factory searcherFactory) error {
	req := model.SearchRequest{
		Categories:   c.StringSlice("category"),
		RadiusKm:     c.Float64("radius"),
		Location:     model.Coordinates{Latitude: c.Float64("lat"), Longitude: c.Float64("lon")},
		ThinkingMode: c.Bool("thinking"),
	}
	if err := req.Validate(); err != nil {
		return err
	}

	ctx := c.Context
	if timeout := c.Duration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	searcher, cleanup, err := factory(ctx)
	if err != nil {
		return fmt.Errorf("setting up search: %w", err)
	}
	defer cleanup()

	result, err := searcher.FindEateries(ctx, req)
	if err != nil {
		return err
	}
	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printResult(c.App.Writer, result)
	return nil
}

func printResult(w io.Writer, result *model.SearchResult) {
	if result.Notice != "" {
		fmt.Fprintf(w, "Note: %s\n\n", result.Notice)
	}
	if len(result.Places) == 0 {
		fmt.Fprintln(w, "No eateries found.")
	}
	for i, p := range result.Places {
		fmt.Fprintf(w, "%d. %s", i+1, p.Name)
		if p.Rating != "" {
			fmt.Fprintf(w, " [%s]", p.Rating)
		}
		fmt.Fprintln(w)
		if p.Address != "" {
			fmt.Fprintf(w, "   %s\n", p.Address)
		}
		if p.Phone != "" {
			fmt.Fprintf(w, "   %s\n", p.Phone)
		}
		for _, item := range p.Menu {
			if item.Price != "" {
				fmt.Fprintf(w, "   - %s (%s)\n", item.Name, item.Price)
			} else {
				fmt.Fprintf(w, "   - %s\n", item.Name)
			}
		}
	}
	if len(result.Citations) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for _, citation := range result.Citations {
			fmt.Fprintf(w, "  %s <%s>\n", citation.Title, citation.URI)
		}
	}
}
