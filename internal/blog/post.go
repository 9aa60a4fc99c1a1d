// Package blog holds the domain model: record validation, the rendered post
// collection, milestones, and the service that orchestrates loading it all.
package blog

import "time"

// MarkdownPost is a validated, not-yet-rendered blog entry. One-to-one with
// an accepted upstream record.
type MarkdownPost struct {
	// RKey is the record's unique key, stable across fetches.
	RKey string

	// Title is the post title; synthesized when the record has none.
	Title string

	// CreatedAt is the author-declared publication time.
	CreatedAt time.Time

	// Content is the raw markdown source.
	Content string
}

// Post is a fully rendered blog entry. Immutable once built.
type Post struct {
	RKey      string    `json:"rkey"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`

	// HTML is the sanitized rendering of the markdown source.
	HTML string `json:"content"`

	// Excerpt is bounded plain text derived from the source.
	Excerpt string `json:"excerpt"`

	// WordCount is computed from the markdown source, not the rendering.
	WordCount int `json:"wordCount"`

	// Number is the post's ordinal: 1 for the oldest post, N for the newest.
	// Assigned when the collection is built.
	Number int `json:"postNumber"`
}

// Adjacent are the neighbors of a post in the newest-first sequence.
// Previous is the next-newer post, Next the next-older one; the names follow
// sequence position, not calendar direction.
type Adjacent struct {
	Previous *Post `json:"previous"`
	Next     *Post `json:"next"`
}

// Stats summarizes a collection for display.
type Stats struct {
	TotalPosts    int    `json:"totalPosts"`
	TotalWords    int    `json:"totalWords"`
	ReadTimeMin   int    `json:"readTimeMinutes"`
	ReadTimeLabel string `json:"readTime"`
}
