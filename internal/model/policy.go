package model

import (
	"mime"
	"sort"
	"strings"
)

// CategoryPolicy holds the size and content type limits for one category.
// It is resolved per request and passed explicitly; nothing caches it globally.
type CategoryPolicy struct {
	Category            Category
	MaxSizeBytes        int64
	AllowedContentTypes map[string]struct{}
}

// NewCategoryPolicy builds a policy with normalized content types.
func NewCategoryPolicy(c Category, maxSize int64, contentTypes ...string) *CategoryPolicy {
	p := &CategoryPolicy{
		Category:            c,
		MaxSizeBytes:        maxSize,
		AllowedContentTypes: make(map[string]struct{}, len(contentTypes)),
	}
	for _, ct := range contentTypes {
		if n := NormalizeContentType(ct); n != "" {
			p.AllowedContentTypes[n] = struct{}{}
		}
	}
	return p
}

// Allows reports whether the declared content type is on the allow-list.
func (p *CategoryPolicy) Allows(contentType string) bool {
	if p == nil {
		return false
	}
	_, ok := p.AllowedContentTypes[NormalizeContentType(contentType)]
	return ok
}

// ContentTypes returns the allow-list sorted.
func (p *CategoryPolicy) ContentTypes() []string {
	out := make([]string, 0, len(p.AllowedContentTypes))
	for ct := range p.AllowedContentTypes {
		out = append(out, ct)
	}
	sort.Strings(out)
	return out
}

// NormalizeContentType lowercases a media type and strips its parameters.
// Unparseable values normalize to "".
func NormalizeContentType(ct string) string {
	ct = strings.TrimSpace(ct)
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return strings.ToLower(mt)
}
