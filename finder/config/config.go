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

package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderMaps     = "maps"
	ProviderPlacesV1 = "places_v1"
)

const defaultSearchTimeout = 60 * time.Second

type Config struct {
	GeminiKey          string
	GeminiModel        string
	PlacesKey          string
	StructuredProvider string
	RedisURL           string
	HoneycombKey       string
	ListenAddr         string
	SearchTimeout      time.Duration
}

var c Config

func GetConfig() *Config {
	return &c
}

func init() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Only log if the file exists but couldn't be loaded
		if !os.IsNotExist(err) {
			log.Printf("Error loading .env file: %v", err)
		}
	}
	c = FromEnv()
}

// FromEnv builds a Config from the current environment.
func FromEnv() Config {
	return Config{
		GeminiKey:          firstEnv("GEMINI_KEY", "API_KEY", "GEMINI_API_KEY"),
		GeminiModel:        os.Getenv("GEMINI_MODEL"),
		PlacesKey:          os.Getenv("GOOGLE_PLACES_API_KEY"),
		StructuredProvider: envOr("STRUCTURED_PROVIDER", ProviderMaps),
		RedisURL:           os.Getenv("REDIS_URL"),
		HoneycombKey:       os.Getenv("HONEYCOMB_KEY"),
		ListenAddr:         envOr("LISTEN_ADDR", "0.0.0.0:8080"),
		SearchTimeout:      durationEnv("SEARCH_TIMEOUT", defaultSearchTimeout),
	}
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func durationEnv(name string, fallback time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("Ignoring invalid %s %q: %v", name, v, err)
		return fallback
	}
	return d
}
