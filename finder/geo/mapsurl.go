package geo

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/nearbyeats/eatery-finder/service/finder/model"
)

const coordPair = `([+-]?\d+\.?\d*),\s*([+-]?\d+\.?\d*)`

// Tried in order; the first pattern yielding an in-range pair wins.
var mapsURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[?&]q=` + coordPair),
	regexp.MustCompile(`@` + coordPair),
	regexp.MustCompile(`/place/[^@]+@` + coordPair),
	regexp.MustCompile(`/dir/[^@]+@` + coordPair),
}

// ParseMapsURL extracts a coordinate from a Google Maps link, e.g.
// https://www.google.com/maps/place/Somewhere/@10.7769,106.7009,17z or https://maps.google.com/?q=10.7,106.7.
// Shortened links can't be resolved without a network round trip and are rejected.
func ParseMapsURL(raw string) (model.Coordinates, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.Coordinates{}, false
	}
	for _, re := range mapsURLPatterns {
		m := re.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		if c, ok := parsePair(m[1], m[2]); ok {
			return c, true
		}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return model.Coordinates{}, false
	}
	if ll := u.Query().Get("ll"); ll != "" {
		lat, lon, found := strings.Cut(ll, ",")
		if found {
			return parsePair(lat, lon)
		}
	}
	return model.Coordinates{}, false
}

func parsePair(latStr, lonStr string) (model.Coordinates, bool) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return model.Coordinates{}, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return model.Coordinates{}, false
	}
	c := model.Coordinates{Latitude: lat, Longitude: lon}
	if !c.Valid() {
		return model.Coordinates{}, false
	}
	return c, true
}
