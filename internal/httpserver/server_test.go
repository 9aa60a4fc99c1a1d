package httpserver

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdekker/atblog/internal/atproto"
	"github.com/jdekker/atblog/internal/blog"
	"github.com/jdekker/atblog/internal/cache"
	"github.com/jdekker/atblog/internal/config"
	"github.com/jdekker/atblog/internal/identity"
	"github.com/jdekker/atblog/internal/markdown"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer stands up a Server whose blog service is wired to local fake
// upstreams serving a three post blog and a link board.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	const did = "did:plc:testblog"

	pds := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var records []map[string]any
		switch r.URL.Query().Get("collection") {
		case blog.DefaultCollection:
			records = []map[string]any{
				{
					"uri": "at://" + did + "/com.whtwnd.blog.entry/r3",
					"value": map[string]any{
						"title": "Third", "content": "# Three\n\nnewest body",
						"createdAt": "2024-01-03T00:00:00Z",
					},
				},
				{
					"uri": "at://" + did + "/com.whtwnd.blog.entry/r1",
					"value": map[string]any{
						"title": "First", "content": "oldest body",
						"createdAt": "2024-01-01T00:00:00Z",
					},
				},
				{
					"uri": "at://" + did + "/com.whtwnd.blog.entry/r2",
					"value": map[string]any{
						"title": "Second", "content": "middle body",
						"createdAt": "2024-01-02T00:00:00Z",
					},
				},
			}
		case "blue.linkat.board":
			records = []map[string]any{
				{
					"uri": "at://" + did + "/blue.linkat.board/self",
					"value": map[string]any{
						"cards": []any{
							map[string]any{"url": "https://example.com", "text": "Site"},
						},
					},
				},
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"records": records})
	}))
	t.Cleanup(pds.Close)

	directory := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"service": []map[string]string{
				{"id": "#atproto_pds", "type": "AtprotoPersonalDataServer", "serviceEndpoint": pds.URL},
			},
		})
	}))
	t.Cleanup(directory.Close)

	appView := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"did": did, "handle": "blog.example.com", "displayName": "Test Blog",
		})
	}))
	t.Cleanup(appView.Close)

	logger := discardLogger()
	store := cache.NewMemory()
	resolver := identity.NewResolver(appView.URL, directory.URL, store, time.Hour, logger)
	service := blog.NewService("blog.example.com", "", resolver, atproto.NewClient(logger), markdown.NewPipeline(0), store, time.Hour, logger)

	cfg := &config.Config{
		Actor:   "blog.example.com",
		Port:    0,
		BaseURL: "https://example.com",
	}
	return NewServer(cfg, service, logger)
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestProfileEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv, "/api/profile")
	require.Equal(t, http.StatusOK, rec.Code)

	var ident identity.Identity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ident))
	assert.Equal(t, "did:plc:testblog", ident.DID)
	assert.Equal(t, "Test Blog", ident.DisplayName)
}

func TestListPostsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv, "/api/posts")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Posts []blog.Post `json:"posts"`
		Total int         `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total)
	require.Len(t, resp.Posts, 3)
	assert.Equal(t, "r3", resp.Posts[0].RKey)
	assert.Equal(t, 3, resp.Posts[0].Number)
	assert.Equal(t, "r1", resp.Posts[2].RKey)
}

func TestListPostsLimit(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv, "/api/posts?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Posts []blog.Post `json:"posts"`
		Total int         `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Posts, 2)
	assert.Equal(t, 3, resp.Total, "total reports the full collection size")
}

func TestListPostsInvalidLimit(t *testing.T) {
	srv := newTestServer(t)

	for _, limit := range []string{"0", "-1", "abc"} {
		rec := get(t, srv, "/api/posts?limit="+limit)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}
}

func TestGetPostEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv, "/api/posts/r2")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Post     blog.Post     `json:"post"`
		Adjacent blog.Adjacent `json:"adjacent"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Second", resp.Post.Title)
	assert.Equal(t, 2, resp.Post.Number)
	require.NotNil(t, resp.Adjacent.Previous)
	assert.Equal(t, "r3", resp.Adjacent.Previous.RKey)
	require.NotNil(t, resp.Adjacent.Next)
	assert.Equal(t, "r1", resp.Adjacent.Next.RKey)
}

func TestGetPostMilestone(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv, "/api/posts/r1")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	var milestone blog.Milestone
	require.Contains(t, resp, "milestone", "post number 1 carries a milestone")
	require.NoError(t, json.Unmarshal(resp["milestone"], &milestone))
	assert.Equal(t, "First Post!", milestone.Text)
}

func TestGetPostNotFound(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv, "/api/posts/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NotFound")
}

func TestStatsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats blog.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.TotalPosts)
	assert.Equal(t, 8, stats.TotalWords)
}

func TestLinksEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv, "/api/links")
	require.Equal(t, http.StatusOK, rec.Code)

	var board blog.LinkBoard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &board))
	require.Len(t, board.Cards, 1)
	assert.Equal(t, "https://example.com", board.Cards[0].URL)
}

func TestRSSEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv, "/blog/rss")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "application/xml; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "max-age=0, s-maxage=3600", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), "<title>Blog - Test Blog</title>")
	assert.Contains(t, rec.Body.String(), "https://example.com/blog/r3")
}

func TestProfileUnavailableWhenResolutionFails(t *testing.T) {
	appView := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer appView.Close()

	logger := discardLogger()
	store := cache.NewMemory()
	resolver := identity.NewResolver(appView.URL, "http://unused.invalid", store, time.Hour, logger)
	service := blog.NewService("down.example.com", "", resolver, atproto.NewClient(logger), markdown.NewPipeline(0), store, time.Hour, logger)
	srv := NewServer(&config.Config{BaseURL: "https://example.com"}, service, logger)

	rec := get(t, srv, "/api/profile")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// the post listing still answers, just empty
	rec = get(t, srv, "/api/posts")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":0`)
}
