package crawler

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// NormalizeURL canonicalizes a URL so that two spellings of the same crawl
// target compare equal. Rules, in order: force https when no scheme is
// present, lowercase the host, strip a leading "www.", drop the query string
// and fragment, and default an empty path to "/". The result is idempotent:
// NormalizeURL(NormalizeURL(u)) == NormalizeURL(u).
//
// Query strings are stripped deliberately. Keeping them turns paginated
// listings into unbounded crawl identities; the visited set and link-diff
// arithmetic both rely on this normalizer, so the choice must be uniform.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", raw)
	}

	u.Scheme = "https"
	u.Host = strings.ToLower(u.Host)
	u.Host = strings.TrimPrefix(u.Host, "www.")
	u.RawQuery = ""
	u.Fragment = ""

	if u.Path == "" {
		u.Path = "/"
	}
	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String(), nil
}

// TargetKey reduces a normalized URL to the identity used to key detector
// baselines and stored change history.
func TargetKey(normalized string) string {
	return normalized
}

// SameDomain reports whether candidate shares the registrable host of base.
// Hosts are compared after www-stripping, so "www.example.com" and
// "example.com" count as the same domain.
func SameDomain(base, candidate string) bool {
	bu, err := url.Parse(base)
	if err != nil {
		return false
	}
	cu, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	bh := strings.TrimPrefix(strings.ToLower(bu.Hostname()), "www.")
	ch := strings.TrimPrefix(strings.ToLower(cu.Hostname()), "www.")
	if bh == "" {
		return false
	}
	return ch == "" || bh == ch
}

// Location returns the path component of a normalized URL, "/" for the root.
func Location(normalized string) string {
	u, err := url.Parse(normalized)
	if err != nil || u.Path == "" {
		return "/"
	}
	return path.Clean(u.Path)
}
