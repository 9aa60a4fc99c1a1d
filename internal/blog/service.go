package blog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jdekker/atblog/internal/atproto"
	"github.com/jdekker/atblog/internal/cache"
	"github.com/jdekker/atblog/internal/identity"
	"github.com/jdekker/atblog/internal/markdown"
)

// DefaultCollection is the record collection holding blog entries.
const DefaultCollection = "com.whtwnd.blog.entry"

// linkBoardCollection holds the account's link board, a single record keyed
// "self".
const linkBoardCollection = "blue.linkat.board"

// Snapshot is one consistent view of the blog: the resolved identity plus the
// built post collection. Identity is nil only when resolution has never
// succeeded.
type Snapshot struct {
	Identity   *identity.Identity
	Collection *Collection
}

// LinkCard is one entry of the account's link board.
type LinkCard struct {
	URL   string `json:"url"`
	Text  string `json:"text"`
	Emoji string `json:"emoji"`
}

// LinkBoard is the account's pinned link collection.
type LinkBoard struct {
	Cards []LinkCard `json:"cards"`
}

// Service loads and memoizes the blog for one configured actor. Concurrent
// loads are collapsed through a single-flight group so only one resolve-and-
// fetch sequence runs per expiry window.
type Service struct {
	actor      string
	collection string
	resolver   *identity.Resolver
	client     *atproto.Client
	pipeline   *markdown.Pipeline
	validator  *Validator
	posts      *cache.Typed[[]Post]
	boards     *cache.Typed[LinkBoard]
	ttl        time.Duration
	logger     *slog.Logger

	group singleflight.Group

	mu           sync.RWMutex
	current      *Snapshot
	expiresAt    time.Time
	lastIdentity *identity.Identity
}

// NewService creates a Service. collection defaults to DefaultCollection when
// empty; ttl bounds how long a built snapshot is reused.
func NewService(
	actor string,
	collection string,
	resolver *identity.Resolver,
	client *atproto.Client,
	pipeline *markdown.Pipeline,
	store cache.Store,
	ttl time.Duration,
	logger *slog.Logger,
) *Service {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Service{
		actor:      actor,
		collection: collection,
		resolver:   resolver,
		client:     client,
		pipeline:   pipeline,
		validator:  NewValidator(logger),
		posts:      cache.NewTyped[[]Post](store),
		boards:     cache.NewTyped[LinkBoard](store),
		ttl:        ttl,
		logger:     logger,
	}
}

// Load returns the current snapshot, rebuilding it when expired. It never
// fails: when the upstream pipeline errors, it logs and degrades to an empty
// collection plus the last successfully resolved identity, so callers must
// treat an empty collection as possibly meaning "error".
func (s *Service) Load(ctx context.Context) *Snapshot {
	if snap := s.fresh(); snap != nil {
		return snap
	}

	v, err, _ := s.group.Do("load", func() (any, error) {
		if snap := s.fresh(); snap != nil {
			return snap, nil
		}

		snap, err := s.build(ctx)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.current = snap
		s.expiresAt = time.Now().Add(s.ttl)
		s.lastIdentity = snap.Identity
		s.mu.Unlock()
		return snap, nil
	})
	if err != nil {
		s.logger.Error("blog load failed, serving empty collection", "actor", s.actor, "error", err)
		s.mu.RLock()
		ident := s.lastIdentity
		s.mu.RUnlock()
		return &Snapshot{Identity: ident, Collection: NewCollection(nil)}
	}

	return v.(*Snapshot)
}

func (s *Service) fresh() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current != nil && time.Now().Before(s.expiresAt) {
		return s.current
	}
	return nil
}

// build runs the full pipeline: resolve, fetch, validate, render, order.
func (s *Service) build(ctx context.Context) (*Snapshot, error) {
	ident, err := s.resolver.Resolve(ctx, s.actor)
	if err != nil {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}

	postsKey := "posts_" + ident.DID
	if cached, ok := s.posts.Get(ctx, postsKey); ok {
		s.logger.Debug("serving posts from cache", "did", ident.DID, "count", len(cached))
		return &Snapshot{Identity: ident, Collection: NewCollection(cached)}, nil
	}

	records, err := s.client.ListRecords(ctx, ident.PDS, ident.DID, s.collection)
	if err != nil {
		return nil, fmt.Errorf("fetch records: %w", err)
	}

	var accepted []MarkdownPost
	for _, rec := range records {
		if post, ok := s.validator.Normalize(rec); ok {
			accepted = append(accepted, post)
		}
	}
	accepted = dedupe(accepted)
	s.logger.Info("processed records", "accepted", len(accepted), "total", len(records))

	posts := make([]Post, 0, len(accepted))
	for _, md := range accepted {
		result, err := s.pipeline.Render(md.Content)
		if err != nil {
			s.logger.Warn("skipping unrenderable post", "rkey", md.RKey, "error", err)
			continue
		}
		posts = append(posts, Post{
			RKey:      md.RKey,
			Title:     md.Title,
			CreatedAt: md.CreatedAt,
			HTML:      result.HTML,
			Excerpt:   result.Excerpt,
			WordCount: result.WordCount,
		})
	}

	if err := s.posts.Set(ctx, postsKey, posts, s.ttl); err != nil {
		s.logger.Warn("failed to cache posts", "did", ident.DID, "error", err)
	}

	return &Snapshot{Identity: ident, Collection: NewCollection(posts)}, nil
}

// Invalidate drops the memoized snapshot and the cached post payloads so the
// next Load refetches from upstream.
func (s *Service) Invalidate(ctx context.Context) {
	s.mu.Lock()
	ident := s.lastIdentity
	s.current = nil
	s.expiresAt = time.Time{}
	s.mu.Unlock()

	if ident != nil {
		if err := s.posts.Delete(ctx, "posts_"+ident.DID); err != nil {
			s.logger.Warn("failed to drop cached posts", "did", ident.DID, "error", err)
		}
	}
	s.logger.Info("blog cache invalidated", "actor", s.actor)
}

// Latest returns the newest n posts, or none when the blog cannot be loaded.
func (s *Service) Latest(ctx context.Context, n int) []Post {
	return s.Load(ctx).Collection.Latest(n)
}

// LinkBoard fetches the account's link board, cached alongside the posts.
// Unlike Load this surfaces errors; a board is optional content and callers
// decide how to degrade.
func (s *Service) LinkBoard(ctx context.Context) (*LinkBoard, error) {
	snap := s.Load(ctx)
	if snap.Identity == nil {
		return nil, fmt.Errorf("identity not resolved")
	}

	boardKey := "links_" + snap.Identity.DID
	if cached, ok := s.boards.Get(ctx, boardKey); ok {
		return &cached, nil
	}

	records, err := s.client.ListRecords(ctx, snap.Identity.PDS, snap.Identity.DID, linkBoardCollection)
	if err != nil {
		return nil, fmt.Errorf("fetch link board: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	rec := records[0]
	for _, candidate := range records {
		if strings.HasSuffix(candidate.URI, "/self") {
			rec = candidate
			break
		}
	}

	board := decodeLinkBoard(rec)
	if err := s.boards.Set(ctx, boardKey, board, s.ttl); err != nil {
		s.logger.Warn("failed to cache link board", "error", err)
	}
	return &board, nil
}

func decodeLinkBoard(rec atproto.RawRecord) LinkBoard {
	var board LinkBoard
	payload, ok := rec.Payload()
	if !ok {
		return board
	}
	cards, _ := payload["cards"].([]any)
	for _, raw := range cards {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		card := LinkCard{}
		card.URL, _ = m["url"].(string)
		card.Text, _ = m["text"].(string)
		card.Emoji, _ = m["emoji"].(string)
		if card.URL != "" {
			board.Cards = append(board.Cards, card)
		}
	}
	return board
}
