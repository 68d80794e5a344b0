package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in     string
		want   Category
		wantOK bool
	}{
		{"book", CategoryBook, true},
		{"AUDIO", CategoryAudio, true},
		{" video ", CategoryVideo, true},
		{"image", CategoryImage, true},
		{"podcast", "", false},
		{"", "", false},
		{"../book", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseCategory(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestCategoryPolicy_Allows(t *testing.T) {
	p := NewCategoryPolicy(CategoryBook, 100, "application/pdf", "Application/EPUB+zip", "not a type;;")

	assert.True(t, p.Allows("application/pdf"))
	assert.True(t, p.Allows("APPLICATION/PDF; charset=binary"))
	assert.True(t, p.Allows("application/epub+zip"))
	assert.False(t, p.Allows("application/x-msdownload"))
	assert.False(t, p.Allows(""))
	assert.Equal(t, []string{"application/epub+zip", "application/pdf"}, p.ContentTypes())

	var nilPolicy *CategoryPolicy
	assert.False(t, nilPolicy.Allows("application/pdf"))
}

func TestNormalizeContentType(t *testing.T) {
	assert.Equal(t, "image/png", NormalizeContentType(" image/PNG "))
	assert.Equal(t, "video/mp4", NormalizeContentType("video/mp4; codecs=avc1"))
	assert.Equal(t, "", NormalizeContentType(""))
	assert.Equal(t, "", NormalizeContentType("/"))
}
