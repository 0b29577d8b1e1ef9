package processor

import (
	"net/url"
	"strings"
)

// Query parameters that only track attribution and never change the resource.
var trackingParams = map[string]bool{
	"fbclid":  true,
	"gclid":   true,
	"msclkid": true,
	"ref":     true,
	"ref_src": true,
	"ref_url": true,
	"s":       true,
	"t":       true,
	"cmpid":   true,
	"ncid":    true,
}

// NormalizeURL canonicalizes a news URL for deduplication: scheme and host
// are lower-cased, tracking query parameters (utm_* and friends) and the
// fragment are dropped, and the trailing slash is stripped.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimRight(strings.TrimSpace(raw), "/")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for param := range q {
		if trackingParams[param] || strings.HasPrefix(param, "utm_") {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()

	u.Path = strings.TrimRight(u.Path, "/")

	return u.String()
}
