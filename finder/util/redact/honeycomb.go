package redact

import (
	"net/url"
	"regexp"

	"golang.org/x/exp/slices"
)

var sensitiveQueryParams = []string{
	"key",          // Google Maps / Places API key, and the key appended to photo URLs
	"access_token", // OAuth tokens sent to Google APIs
	"lon", "lat",   // user's location as sent to us
	"location",     // the search centre as forwarded to the Places web service
	"mapsUrl",      // a maps link carries the same coordinates as lat/lon
	"photo_reference",
}

// Places v1 puts the place id in the path, e.g. /v1/places/ChIJ.../media.
var placesPathRegex = regexp.MustCompile(`^/v1/places/[^/:]+`)

func redactQuery(query string) string {
	values, err := url.ParseQuery(query)
	if err != nil {
		return "[parse error redacted for safety]"
	}
	newValues := url.Values{}
	for k, v := range values {
		if slices.Contains(sensitiveQueryParams, k) {
			newValues[k] = []string{"redacted"}
		} else {
			newValues[k] = v
		}
	}
	return newValues.Encode()
}

func cleanPath(path string) string {
	return placesPathRegex.ReplaceAllString(path, "/v1/places/[place]")
}

func cleanUrl(u string) string {
	parsedUrl, err := url.Parse(u)
	if err != nil {
		return "[parse error redacted for safety]"
	}
	parsedUrl.Path = cleanPath(parsedUrl.Path)
	parsedUrl.RawQuery = redactQuery(parsedUrl.RawQuery)
	return parsedUrl.String()
}

func CleanHoneycomb(data map[string]interface{}) {
	// Outbound requests carry our API keys and inbound ones carry the user's location. Neither goes to Honeycomb.
	if query, ok := data["request.query"]; ok {
		if queryStr, ok := query.(string); ok {
			data["request.query"] = redactQuery(queryStr)
		}
	}
	if path, ok := data["request.path"]; ok {
		if pathStr, ok := path.(string); ok {
			data["request.path"] = cleanPath(pathStr)
		}
	}
	if u, ok := data["request.url"]; ok {
		if urlStr, ok := u.(string); ok {
			data["request.url"] = cleanUrl(urlStr)
		}
	}
}
