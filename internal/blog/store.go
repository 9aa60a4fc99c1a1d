package blog

import (
	"fmt"
	"sort"
)

const wordsPerMinute = 200

// Collection is the process's rendered post set for one identity: a lookup by
// rkey plus the newest-first ordered sequence with assigned post numbers.
type Collection struct {
	byKey  map[string]int // index into sorted
	sorted []Post
}

// NewCollection builds a Collection from posts in fetch order. Posts are
// sorted by createdAt descending (stable, so fetch order breaks ties), then
// numbered so the newest post gets N and the oldest gets 1. Callers must have
// already resolved duplicate rkeys; see dedupe.
func NewCollection(posts []Post) *Collection {
	sorted := make([]Post, len(posts))
	copy(sorted, posts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	total := len(sorted)
	byKey := make(map[string]int, total)
	for i := range sorted {
		sorted[i].Number = total - i
		byKey[sorted[i].RKey] = i
	}

	return &Collection{byKey: byKey, sorted: sorted}
}

// Len returns the number of posts.
func (c *Collection) Len() int {
	return len(c.sorted)
}

// Get returns the post for rkey.
func (c *Collection) Get(rkey string) (Post, bool) {
	i, ok := c.byKey[rkey]
	if !ok {
		return Post{}, false
	}
	return c.sorted[i], true
}

// Adjacent returns the posts on either side of rkey in the newest-first
// sequence. Both neighbors are nil if rkey is unknown; each is nil at a
// sequence boundary.
func (c *Collection) Adjacent(rkey string) Adjacent {
	i, ok := c.byKey[rkey]
	if !ok {
		return Adjacent{}
	}

	var adj Adjacent
	if i > 0 {
		prev := c.sorted[i-1]
		adj.Previous = &prev
	}
	if i < len(c.sorted)-1 {
		next := c.sorted[i+1]
		adj.Next = &next
	}
	return adj
}

// Sorted returns the posts newest-first.
func (c *Collection) Sorted() []Post {
	out := make([]Post, len(c.sorted))
	copy(out, c.sorted)
	return out
}

// Latest returns the newest n posts, fewer if the collection is smaller.
func (c *Collection) Latest(n int) []Post {
	if n > len(c.sorted) {
		n = len(c.sorted)
	}
	out := make([]Post, n)
	copy(out, c.sorted[:n])
	return out
}

// Stats totals the collection's word counts and estimated read time at 200
// words per minute, each post rounded up to a whole minute.
func (c *Collection) Stats() Stats {
	var words, minutes int
	for _, p := range c.sorted {
		words += p.WordCount
		minutes += (p.WordCount + wordsPerMinute - 1) / wordsPerMinute
	}
	return Stats{
		TotalPosts:    len(c.sorted),
		TotalWords:    words,
		ReadTimeMin:   minutes,
		ReadTimeLabel: formatReadTime(minutes),
	}
}

// formatReadTime renders minutes as a rough human-scale label.
func formatReadTime(minutes int) string {
	const (
		hour = 60
		day  = 60 * 24
		week = 60 * 24 * 7
	)
	switch {
	case minutes < hour:
		return fmt.Sprintf("%d min", minutes)
	case minutes < day:
		return plural((minutes+hour/2)/hour, "hour")
	case minutes < week:
		return plural((minutes+day/2)/day, "day")
	default:
		return plural((minutes+week/2)/week, "week")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// dedupe collapses duplicate rkeys in fetch order: the later record's content
// overwrites the earlier one while keeping the earlier position. Last-seen
// wins is a deliberate merge policy, not incidental map behavior.
func dedupe(posts []MarkdownPost) []MarkdownPost {
	index := make(map[string]int, len(posts))
	var out []MarkdownPost
	for _, p := range posts {
		if i, seen := index[p.RKey]; seen {
			out[i] = p
			continue
		}
		index[p.RKey] = len(out)
		out = append(out, p)
	}
	return out
}
