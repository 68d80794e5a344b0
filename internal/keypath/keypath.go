// Package keypath guards storage keys against path traversal and cross-category
// forgery. It is the only gate between user-influenced input and storage calls.
package keypath

import (
	"errors"
	"strings"
	"unicode"

	"mediagateway/internal/model"
)

// Separator between key segments.
const Separator = "/"

// ErrInvalidKey is returned for every rejected key. Callers must not forward the
// raw key to the store once this is returned.
var ErrInvalidKey = errors.New("invalid storage key")

// Key is a storage key that passed validation.
type Key struct {
	Category model.Category
	OwnerID  string
	Filename string
}

// String renders the key in its storage form.
func (k Key) String() string {
	return string(k.Category) + Separator + k.OwnerID + Separator + k.Filename
}

// Validate checks that key has the shape <category>/<id>/<filename> and belongs to
// the expected category. It never panics and has no side effects.
func Validate(key string, expected model.Category) (Key, error) {
	if key == "" || expected == "" {
		return Key{}, ErrInvalidKey
	}
	if strings.Contains(key, Separator+Separator) || strings.ContainsRune(key, '\\') {
		return Key{}, ErrInvalidKey
	}
	for _, r := range key {
		if unicode.IsControl(r) {
			return Key{}, ErrInvalidKey
		}
	}

	segments := strings.Split(key, Separator)
	for _, s := range segments {
		if s == ".." || s == "." {
			return Key{}, ErrInvalidKey
		}
	}
	if len(segments) != 3 {
		return Key{}, ErrInvalidKey
	}
	if segments[0] != string(expected) || segments[1] == "" || segments[2] == "" {
		return Key{}, ErrInvalidKey
	}

	return Key{Category: expected, OwnerID: segments[1], Filename: segments[2]}, nil
}

// New builds a key for a freshly uploaded object and validates it with the same
// rules applied to incoming keys.
func New(c model.Category, ownerID, filename string) (Key, error) {
	return Validate(string(c)+Separator+ownerID+Separator+filename, c)
}
