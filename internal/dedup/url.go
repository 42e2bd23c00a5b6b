package dedup

import (
	"crypto/sha256"
	"net/url"
	"sort"
	"strings"
)

const defaultScheme = "https"

var trackingParams = map[string]struct{}{
	"gclid":   {},
	"fbclid":  {},
	"ref":     {},
	"ref_src": {},
	"spm":     {},
}

// CanonicalURL returns a stable comparison key for raw, or "" when raw is
// empty, unparsable or has no host. The result is idempotent.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Scheme == "" {
		if strings.HasPrefix(raw, "//") {
			raw = defaultScheme + ":" + raw
		} else {
			raw = defaultScheme + "://" + raw
		}
		if u, err = url.Parse(raw); err != nil {
			return ""
		}
	}
	if u.Host == "" {
		return ""
	}

	var b strings.Builder
	b.WriteString(strings.ToLower(u.Scheme))
	b.WriteString("://")
	if u.User != nil {
		b.WriteString(strings.ToLower(u.User.String()))
		b.WriteByte('@')
	}
	b.WriteString(strings.ToLower(u.Host))
	b.WriteString(canonicalPath(u.EscapedPath()))
	if query := canonicalQuery(u.RawQuery); query != "" {
		b.WriteByte('?')
		b.WriteString(query)
	}

	return b.String()
}

// URLHash is the sha256 of the canonical key, used as the persisted dedup key.
func URLHash(raw string) [32]byte {
	return sha256.Sum256([]byte(CanonicalURL(raw)))
}

// canonicalPath drops trailing slashes but keeps a bare root.
func canonicalPath(path string) string {
	if path == "" {
		return ""
	}
	trimmed := strings.TrimRight(path, "/")
	if trimmed == "" {
		return "/"
	}
	return trimmed
}

type queryParam struct {
	name  string
	value string
}

func canonicalQuery(raw string) string {
	if raw == "" {
		return ""
	}

	params := make([]queryParam, 0, strings.Count(raw, "&")+1)
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		name, value = unescapeQuery(name), unescapeQuery(value)
		if isTrackingParam(name) {
			continue
		}
		params = append(params, queryParam{name: name, value: value})
	}

	sort.Slice(params, func(i, j int) bool {
		if params[i].name != params[j].name {
			return params[i].name < params[j].name
		}
		return params[i].value < params[j].value
	})

	encoded := make([]string, 0, len(params))
	for _, p := range params {
		encoded = append(encoded, url.QueryEscape(p.name)+"="+url.QueryEscape(p.value))
	}
	return strings.Join(encoded, "&")
}

func unescapeQuery(s string) string {
	if v, err := url.QueryUnescape(s); err == nil {
		return v
	}
	return s
}

func isTrackingParam(name string) bool {
	name = strings.ToLower(name)
	if strings.HasPrefix(name, "utm_") {
		return true
	}
	_, ok := trackingParams[name]
	return ok
}
