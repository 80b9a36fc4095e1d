package feeds

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Canonicalize normalizes an article or feed URL for deduplication:
// lowercased scheme and host, default ports stripped, fragment dropped,
// tracking query parameters removed per the denylist, and the remaining
// query parameters sorted.
//
// Denylist entries ending in "*" match by prefix ("utm_*").
func Canonicalize(rawURL string, denylist []string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q has no scheme or host", rawURL)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	switch {
	case u.Scheme == "http" && strings.HasSuffix(u.Host, ":80"):
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(u.Host, ":443"):
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			if deniedParam(key, denylist) {
				q.Del(key)
			}
		}
		u.RawQuery = sortedEncode(q)
	}
	return u.String(), nil
}

func deniedParam(key string, denylist []string) bool {
	key = strings.ToLower(key)
	for _, d := range denylist {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if strings.HasSuffix(d, "*") {
			if strings.HasPrefix(key, strings.TrimSuffix(d, "*")) {
				return true
			}
		} else if key == d {
			return true
		}
	}
	return false
}

// sortedEncode is url.Values.Encode with deterministic key AND value order.
func sortedEncode(q url.Values) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		vs := append([]string(nil), q[k]...)
		sort.Strings(vs)
		for _, v := range vs {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// URLHash is the dedup key for raw articles: sha256 over the canonical URL.
func URLHash(canonicalURL string) string {
	sum := sha256.Sum256([]byte(canonicalURL))
	return hex.EncodeToString(sum[:])
}

// Domain extracts the host for source attribution, without port.
func Domain(canonicalURL string) string {
	u, err := url.Parse(canonicalURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
