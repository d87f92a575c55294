// Package urlutil normalizes and classifies URLs discovered during a crawl.
package urlutil

import (
	"net"
	"net/url"
	"strings"
)

// Resolve resolves href against base and returns a canonical absolute
// HTTP(S) URL. Fragment-only references and unsupported schemes are
// rejected.
func Resolve(base *url.URL, href string) (string, bool) {
	trimmed := strings.TrimSpace(href)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", false
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", false
	}

	if !isSupportedScheme(parsed.Scheme) {
		return "", false
	}

	resolved := resolveReference(base, parsed)
	if !isSupportedScheme(resolved.Scheme) || resolved.Host == "" {
		return "", false
	}

	canonicalize(resolved)

	return resolved.String(), true
}

func isSupportedScheme(scheme string) bool {
	return scheme == "" || scheme == "http" || scheme == "https"
}

func resolveReference(base *url.URL, parsed *url.URL) *url.URL {
	if parsed.Scheme == "" {
		return base.ResolveReference(parsed)
	}

	return parsed
}

// canonicalize lowercases scheme and host, drops default ports and the
// fragment, and folds a bare "/" path into the empty path so that
// "https://example.com/" and "https://example.com" collapse to one key.
func canonicalize(u *url.URL) {
	u.Scheme = strings.ToLower(u.Scheme)
	u.Fragment = ""

	host := strings.ToLower(u.Hostname())
	port := u.Port()

	switch {
	case u.Scheme == "http" && port == "80":
		port = ""
	case u.Scheme == "https" && port == "443":
		port = ""
	}

	if port == "" {
		u.Host = host
	} else {
		u.Host = net.JoinHostPort(host, port)
	}

	if u.Path == "/" {
		u.Path = ""
		u.RawPath = ""
	}
}

// SameHost reports whether the URL targets the same host as root.
// Subdomains do not match; this is the crawl's same-site boundary.
func SameHost(root *url.URL, raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}

	return strings.EqualFold(parsed.Hostname(), root.Hostname())
}
