package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdekker/atblog/internal/blog"
	"github.com/jdekker/atblog/internal/identity"
)

func TestBuildRSS(t *testing.T) {
	ident := &identity.Identity{
		DID:         "did:plc:abc",
		Handle:      "blog.example.com",
		DisplayName: "Example Blog",
		Description: "notes and links",
	}
	posts := []blog.Post{
		{
			RKey:      "newest",
			Title:     "Second Post",
			CreatedAt: time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC),
			HTML:      "<p>hello <strong>again</strong></p>",
			Excerpt:   "hello again",
		},
		{
			RKey:      "oldest",
			Title:     "First Post",
			CreatedAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
			HTML:      "<p>hello</p>",
			Excerpt:   "hello",
		},
	}

	rss, err := BuildRSS(ident, posts, "https://example.com", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Contains(t, rss, "<title>Blog - Example Blog</title>")
	assert.Contains(t, rss, "<description>notes and links</description>")
	assert.Contains(t, rss, "<link>https://example.com/blog</link>")
	assert.Contains(t, rss, "<link>https://example.com/blog/newest</link>")
	assert.Contains(t, rss, "<link>https://example.com/blog/oldest</link>")
	assert.Contains(t, rss, "<title>Second Post</title>")
	assert.Contains(t, rss, "<description>hello again</description>")
}

func TestBuildRSSWithoutDisplayName(t *testing.T) {
	ident := &identity.Identity{Handle: "plain.example.com"}

	rss, err := BuildRSS(ident, nil, "https://example.com", time.Now())
	require.NoError(t, err)

	assert.Contains(t, rss, "<title>Blog - plain.example.com</title>")
	assert.NotContains(t, rss, "<item>")
}

func TestBuildRSSNilIdentity(t *testing.T) {
	rss, err := BuildRSS(nil, nil, "https://example.com", time.Now())
	require.NoError(t, err)

	assert.Contains(t, rss, "<title>Blog</title>")
}
