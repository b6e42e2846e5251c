package recentactivity

import (
	"net/url"
	"strings"
)

// domainOf returns the lower-cased host of rawURL without port or a
// leading "www.". Unparsable URLs yield "".
func domainOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}
