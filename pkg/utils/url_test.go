package utils

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivedName(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{name: "query string stripped", url: "https://x/img.png?v=2", want: "img.png"},
		{name: "plain path", url: "https://cdn.example.com/a/b/photo.jpeg", want: "photo.jpeg"},
		{name: "fragment stripped", url: "https://x/pic.gif#top", want: "pic.gif"},
		{name: "trailing slash", url: "https://x/images/", want: ""},
		{name: "no path", url: "https://x", want: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DerivedName(tt.url))
		})
	}
}

func TestIsFetchable(t *testing.T) {
	assert.True(t, IsFetchable("https://x/a.png"))
	assert.True(t, IsFetchable("http://x/a.png"))
	assert.False(t, IsFetchable("data:image/png;base64,AAAA"))
	assert.False(t, IsFetchable("blob:https://x/1234"))
	assert.False(t, IsFetchable("::not a url"))
}

func TestToAbsoluteURL(t *testing.T) {
	base, err := url.Parse("https://example.com/gallery/index.html")
	require.NoError(t, err)

	abs, err := ToAbsoluteURL(base, "../img/cat.png")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/img/cat.png", abs)

	abs, err = ToAbsoluteURL(base, "//cdn.example.com/dog.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/dog.png", abs)
}
