package util

import (
	"net/url"
	"strings"
)

// ResolveURL resolves href against base and drops fragments. Non-http(s)
// links such as "javascript:" or "mailto:" are rejected.
func ResolveURL(base, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	u := b.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Fragment = ""
	return u.String(), true
}

// Origin returns scheme://host of u, the key robots.txt rules apply to.
func Origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}
