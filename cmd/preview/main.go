// Command preview resolves an account, loads and renders its blog once, and
// prints a summary to stdout. Handy for checking a handle before deploying
// the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jdekker/atblog/internal/atproto"
	"github.com/jdekker/atblog/internal/blog"
	"github.com/jdekker/atblog/internal/cache"
	"github.com/jdekker/atblog/internal/identity"
	"github.com/jdekker/atblog/internal/markdown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		actor      string
		collection string
		appView    string
		plcURL     string
		limit      int
		verbose    bool
	)

	flag.StringVar(&actor, "actor", envOrDefault("BLOG_ACTOR", ""), "handle or DID to preview (e.g. user.bsky.social)")
	flag.StringVar(&collection, "collection", envOrDefault("BLOG_COLLECTION", blog.DefaultCollection), "record collection to list")
	flag.StringVar(&appView, "appview", "https://public.api.bsky.app", "profile service base URL")
	flag.StringVar(&plcURL, "plc", "https://plc.directory", "PLC directory base URL")
	flag.IntVar(&limit, "limit", 0, "print at most this many posts (0 = all)")
	flag.BoolVar(&verbose, "v", false, "enable debug logging")
	flag.Parse()

	if actor == "" {
		return fmt.Errorf("--actor is required (or set BLOG_ACTOR)")
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	store := cache.NewMemory()
	resolver := identity.NewResolver(appView, plcURL, store, cache.DefaultTTL, logger)
	client := atproto.NewClient(logger)
	pipeline := markdown.NewPipeline(markdown.DefaultExcerptLength)
	service := blog.NewService(actor, collection, resolver, client, pipeline, store, cache.DefaultTTL, logger)

	ctx := context.Background()

	ident, err := resolver.Resolve(ctx, actor)
	if err != nil {
		return err
	}
	fmt.Printf("Resolved %s\n", actor)
	fmt.Printf("  DID:    %s\n", ident.DID)
	fmt.Printf("  Handle: %s\n", ident.Handle)
	fmt.Printf("  PDS:    %s\n", ident.PDS)

	snap := service.Load(ctx)
	stats := snap.Collection.Stats()
	fmt.Printf("\n%d posts, %d words, ~%s total read time\n\n", stats.TotalPosts, stats.TotalWords, stats.ReadTimeLabel)

	posts := snap.Collection.Sorted()
	if limit > 0 {
		posts = snap.Collection.Latest(limit)
	}
	for _, post := range posts {
		fmt.Printf("#%-4d %s  %s (%d words)\n", post.Number, post.CreatedAt.Format(time.DateOnly), post.Title, post.WordCount)
		if post.Excerpt != "" {
			fmt.Printf("      %s\n", post.Excerpt)
		}
		if milestone, ok := blog.GetMilestone(post.Number); ok {
			fmt.Printf("      %s %s\n", milestone.Emoji, milestone.Text)
		}
	}

	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
