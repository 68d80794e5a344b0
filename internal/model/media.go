package model

import (
	"strings"
	"time"
)

// Category is the media kind governing size/type policy and key namespacing.
type Category string

const (
	CategoryBook  Category = "book"
	CategoryAudio Category = "audio"
	CategoryVideo Category = "video"
	CategoryImage Category = "image"
)

// Categories lists every supported category in a stable order.
var Categories = []Category{CategoryBook, CategoryAudio, CategoryVideo, CategoryImage}

// ParseCategory returns the category named by s.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, true
		}
	}
	return "", false
}

func (c Category) String() string { return string(c) }

// MediaRecord is the relational record a logical media ID resolves to.
type MediaRecord struct {
	ID         string   `json:"id"`
	OwnerID    string   `json:"owner_id"`
	Category   Category `json:"category"`
	StorageKey string   `json:"storage_key"`
}

// ObjectMetadata is the store's view of an object. It is only valid for the request
// that fetched it.
type ObjectMetadata struct {
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}

// StoredObject is returned after a successful upload.
type StoredObject struct {
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}
