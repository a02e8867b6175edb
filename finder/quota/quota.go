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

package quota

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/honeycombio/beeline-go"
	"github.com/redis/go-redis/v9"
)

// one credit is worth $0.000000025.
const InputTokenCredits = 4
const OutputTokenCredits = 16
const TextSearchCredits = 1_280_000
const PlaceDetailsCredits = 680_000
const MonthlyQuotaCredits = 4_000_000_000

var ErrQuotaExceeded = errors.New("monthly quota exceeded")

// Tracker counts the credits spent on one upstream provider in the current month. A nil Tracker, or one without a
// redis client, tracks nothing and never reports the quota as exceeded.
type Tracker struct {
	redis *redis.Client
	scope string
}

func NewTracker(redisClient *redis.Client, scope string) *Tracker {
	return &Tracker{
		redis: redisClient,
		scope: scope,
	}
}

func (q *Tracker) enabled() bool {
	return q != nil && q.redis != nil
}

func (q *Tracker) ChargeTokens(ctx context.Context, inputTokens, outputTokens int) error {
	return q.ChargeCredits(ctx, inputTokens*InputTokenCredits+outputTokens*OutputTokenCredits)
}

func (q *Tracker) GetQuota(ctx context.Context) (used, remaining int, err error) {
	if !q.enabled() {
		return 0, MonthlyQuotaCredits, nil
	}
	ctx, span := beeline.StartSpan(ctx, "get_quota")
	defer span.Send()
	span.AddField("scope", q.scope)
	result := q.redis.Get(ctx, keyForQuota(q.scope, time.Now()))
	if errors.Is(result.Err(), redis.Nil) {
		return 0, MonthlyQuotaCredits, nil
	}
	if result.Err() != nil {
		span.AddField("error", result.Err())
		return 0, 0, result.Err()
	}
	used, err = result.Int()
	if err != nil {
		return 0, 0, err
	}
	return used, MonthlyQuotaCredits - used, nil
}

// CheckQuota returns ErrQuotaExceeded once the month's credits are spent. Failing to read the quota is logged and
// treated as having quota left.
func (q *Tracker) CheckQuota(ctx context.Context) error {
	_, remaining, err := q.GetQuota(ctx)
	if err != nil {
		log.Printf("Couldn't read %s quota: %v", q.scope, err)
		return nil
	}
	if remaining <= 0 {
		return fmt.Errorf("%s: %w", q.scope, ErrQuotaExceeded)
	}
	return nil
}

func keyForQuota(scope string, now time.Time) string {
	return fmt.Sprintf("quota:%02d%02d:%s", now.Year()%100, now.Month(), scope)
}

func (q *Tracker) chargeCredits(ctx context.Context, credits int) (int, error) {
	ctx, span := beeline.StartSpan(ctx, "charge_credits")
	defer span.Send()
	key := keyForQuota(q.scope, time.Now())
	result := q.redis.IncrBy(ctx, key, int64(credits))
	if result.Err() != nil {
		span.AddField("error", result.Err())
		return 0, result.Err()
	}
	i, err := result.Uint64()
	if err != nil {
		span.AddField("error", err)
		return 0, err
	}
	if int(i) == credits {
		_, err = q.redis.Expire(ctx, key, 45*24*time.Hour).Result()
		if err != nil {
			span.AddField("error", err)
			return 0, err
		}
	}
	return int(i), nil
}

func (q *Tracker) ChargeCredits(ctx context.Context, credits int) error {
	if !q.enabled() || credits <= 0 {
		return nil
	}
	used, err := q.chargeCredits(ctx, credits)
	if err != nil {
		log.Printf("Failed to charge %d credits to %s: %v", credits, q.scope, err)
		return err
	}
	log.Printf("Charging %d credits to %s. Total used: %d\n", credits, q.scope, used)
	return nil
}
