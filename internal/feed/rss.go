// Package feed assembles the syndication feed from the rendered post list.
package feed

import (
	"fmt"
	"time"

	"github.com/gorilla/feeds"

	"github.com/jdekker/atblog/internal/blog"
	"github.com/jdekker/atblog/internal/identity"
)

// BuildRSS renders an RSS 2.0 document for posts, newest first. baseURL is
// the public site root used for permalinks, without a trailing slash.
func BuildRSS(ident *identity.Identity, posts []blog.Post, baseURL string, now time.Time) (string, error) {
	author := "unknown"
	title := "Blog"
	description := ""
	if ident != nil {
		author = ident.Handle
		if ident.DisplayName != "" {
			author = fmt.Sprintf("%s (%s)", ident.DisplayName, ident.Handle)
		}
		name := ident.DisplayName
		if name == "" {
			name = ident.Handle
		}
		title = "Blog - " + name
		description = ident.Description
	}

	f := &feeds.Feed{
		Title:       title,
		Link:        &feeds.Link{Href: baseURL + "/blog"},
		Description: description,
		Updated:     now,
	}

	for _, post := range posts {
		permalink := fmt.Sprintf("%s/blog/%s", baseURL, post.RKey)
		f.Items = append(f.Items, &feeds.Item{
			Title:       post.Title,
			Link:        &feeds.Link{Href: permalink},
			Id:          permalink,
			Created:     post.CreatedAt,
			Description: post.Excerpt,
			Content:     post.HTML,
			Author:      &feeds.Author{Name: author},
		})
	}

	rss, err := f.ToRss()
	if err != nil {
		return "", fmt.Errorf("render rss: %w", err)
	}
	return rss, nil
}
