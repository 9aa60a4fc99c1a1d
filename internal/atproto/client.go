// Package atproto is a minimal XRPC client for reading records out of a
// personal data server.
package atproto

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/jdekker/atblog/internal/fetch"
)

// DefaultMaxPages bounds the cursor chain so a misbehaving endpoint cannot
// keep us paginating forever.
const DefaultMaxPages = 100

// ErrTooManyPages means the endpoint kept returning cursors past the page cap.
var ErrTooManyPages = errors.New("too many pages")

// RawRecord is one record as returned by listRecords. Value is the
// loosely-typed payload; some servers have been seen nesting it under a
// "record" key instead, so both are decoded.
type RawRecord struct {
	URI    string         `json:"uri"`
	CID    string         `json:"cid"`
	Value  map[string]any `json:"value"`
	Record map[string]any `json:"record"`
}

// Payload returns the record's value mapping, falling back to the alternate
// field name. ok=false if neither is present.
func (r RawRecord) Payload() (map[string]any, bool) {
	if r.Value != nil {
		return r.Value, true
	}
	if r.Record != nil {
		return r.Record, true
	}
	return nil, false
}

type listRecordsResponse struct {
	Records []RawRecord `json:"records"`
	Cursor  string      `json:"cursor"`
}

// Client fetches records from data servers.
type Client struct {
	httpClient *http.Client
	maxPages   int
	logger     *slog.Logger
}

// NewClient creates a Client with the default page cap.
func NewClient(logger *slog.Logger) *Client {
	return &Client{
		httpClient: fetch.NewClient(),
		maxPages:   DefaultMaxPages,
		logger:     logger,
	}
}

// ListRecords retrieves every record of collection in repo from endpoint,
// following continuation cursors until the server stops returning one. A
// failed page fetch aborts the whole listing; no partial results are
// returned.
func (c *Client) ListRecords(ctx context.Context, endpoint, repo, collection string) ([]RawRecord, error) {
	var (
		records []RawRecord
		cursor  string
	)

	for page := 1; ; page++ {
		if page > c.maxPages {
			return nil, fmt.Errorf("%w: %s gave %d cursors for %s", ErrTooManyPages, endpoint, c.maxPages, collection)
		}

		query := url.Values{}
		query.Set("repo", repo)
		query.Set("collection", collection)
		query.Set("limit", "100")
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		var resp listRecordsResponse
		pageURL := endpoint + "/xrpc/com.atproto.repo.listRecords?" + query.Encode()
		if err := fetch.JSON(ctx, c.httpClient, pageURL, &resp); err != nil {
			return nil, fmt.Errorf("list records page %d: %w", page, err)
		}

		records = append(records, resp.Records...)

		if resp.Cursor == "" {
			break
		}
		cursor = resp.Cursor
	}

	c.logger.Debug("listed records", "collection", collection, "count", len(records))
	return records, nil
}
