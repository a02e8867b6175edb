package enrichment

import (
	"context"
	"net/url"
	"strings"

	"github.com/nearbyeats/eatery-finder/service/finder/model"
)

const (
	GrabFoodTag   = "GrabFood"
	ShopeeFoodTag = "ShopeeFood"
)

// Neither platform has a public API. Until a partner API or scraper exists, the lookups only build a search link
// and report the listing as unavailable, so enrichment is a no-op.

func GrabFoodLookup(ctx context.Context, name, address string) (Listing, error) {
	return Listing{
		URL:         "https://food.grab.com/vn/en/search?q=" + encodeQuery(name+" "+address+" grab food vietnam"),
		PlatformTag: GrabFoodTag,
	}, nil
}

func ShopeeFoodLookup(ctx context.Context, name, address string) (Listing, error) {
	return Listing{
		URL:         "https://shopee.vn/food/search?q=" + encodeQuery(name+" "+address+" shopee food vietnam"),
		PlatformTag: ShopeeFoodTag,
	}, nil
}

func encodeQuery(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func GrabFood() *Platform {
	return NewPlatform(GrabFoodTag, GrabFoodLookup, func(p *model.Place, u string) { p.GrabFoodURL = u })
}

func ShopeeFood() *Platform {
	return NewPlatform(ShopeeFoodTag, ShopeeFoodLookup, func(p *model.Place, u string) { p.ShopeeFoodURL = u })
}

// DefaultChain is GrabFood followed by ShopeeFood.
func DefaultChain() Chain {
	return Chain{GrabFood(), ShopeeFood()}
}
