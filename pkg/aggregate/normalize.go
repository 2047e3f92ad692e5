package aggregate

import (
	"net/url"
	"strings"
)

// CanonicalURL reduces a URL to its deduplication identity: lower-cased
// scheme, host and path with the query string and fragment stripped. A
// trailing slash is insignificant. Unparseable URLs fall back to the
// lower-cased, trimmed raw string so they still dedupe against byte-equal
// twins.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimRight(raw, "/"))
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	path := strings.ToLower(strings.TrimRight(u.Path, "/"))

	return scheme + "://" + host + path
}
