package blog

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jdekker/atblog/internal/atproto"
)

// createdAtFormats are the timestamp layouts accepted from upstream records,
// tried in order.
var createdAtFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Validator converts raw upstream records into MarkdownPosts. Rejections are
// expected and non-fatal; they are logged and the record is skipped.
type Validator struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewValidator creates a Validator.
func NewValidator(logger *slog.Logger) *Validator {
	return &Validator{
		logger: logger,
		now:    time.Now,
	}
}

// Normalize validates rec and returns its canonical MarkdownPost, or ok=false
// if the record is malformed or not public.
func (v *Validator) Normalize(rec atproto.RawRecord) (MarkdownPost, bool) {
	segments := strings.Split(rec.URI, "/")
	rkey := segments[len(segments)-1]
	if len(segments) != 5 {
		v.logger.Debug("skipping record with malformed uri", "uri", rec.URI, "segments", len(segments))
		return MarkdownPost{}, false
	}

	payload, ok := rec.Payload()
	if !ok {
		v.logger.Warn("no record value found", "rkey", rkey)
		return MarkdownPost{}, false
	}

	if visibility, ok := lookupField(payload, []string{"visibility"}); ok {
		if s, isString := visibility.(string); !isString || s != "public" {
			v.logger.Debug("skipping non-public record", "rkey", rkey, "visibility", visibility)
			return MarkdownPost{}, false
		}
	}

	content, _ := lookupString(payload, "content")
	if content == "" {
		v.logger.Warn("skipping post with missing content", "rkey", rkey)
		return MarkdownPost{}, false
	}

	createdAt := v.now()
	if raw, ok := lookupString(payload, "createdAt"); ok {
		parsed, err := parseCreatedAt(raw)
		if err != nil {
			v.logger.Warn("skipping post with invalid date", "rkey", rkey, "createdAt", raw)
			return MarkdownPost{}, false
		}
		createdAt = parsed
	} else {
		v.logger.Warn("post missing createdAt, using current time", "rkey", rkey)
	}

	title, _ := lookupString(payload, "title")
	if title == "" {
		title = fmt.Sprintf("Untitled Post (%s)", rkey)
	}

	return MarkdownPost{
		RKey:      rkey,
		Title:     title,
		CreatedAt: createdAt,
		Content:   content,
	}, true
}

// lookupString tries the cascading lookup paths for field and returns the
// first present string value: the direct field, its capitalized variant, then
// the nested value.* path. Upstream record shapes are heterogeneous enough
// that all three occur in the wild.
func lookupString(payload map[string]any, field string) (string, bool) {
	capitalized := strings.ToUpper(field[:1]) + field[1:]
	paths := [][]string{
		{field},
		{capitalized},
		{"value", field},
	}
	for _, path := range paths {
		if v, ok := lookupField(payload, path); ok {
			if s, isString := v.(string); isString && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// lookupField walks path through nested string-keyed maps.
func lookupField(payload map[string]any, path []string) (any, bool) {
	var current any = payload
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func parseCreatedAt(raw string) (time.Time, error) {
	for _, layout := range createdAtFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", raw)
}
