package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Actor is the handle or DID whose blog this process serves.
	Actor string

	// Port is the HTTP server port.
	Port int

	// BaseURL is the public site root used to build permalinks in the feed.
	BaseURL string

	// AppViewURL is the profile service base.
	AppViewURL string

	// PLCDirectoryURL is the PLC DID directory base.
	PLCDirectoryURL string

	// Collection is the record collection holding blog entries.
	Collection string

	// CacheTTL is how long resolved identities and built post sets are
	// reused.
	CacheTTL time.Duration

	// CachePath is the SQLite cache database path. Empty selects the
	// in-memory cache.
	CachePath string

	// ExcerptLength caps post excerpts, in characters.
	ExcerptLength int

	// FirehoseURL is the Jetstream WebSocket endpoint used for cache
	// invalidation. The value "off" disables the subscriber.
	FirehoseURL string
}

// FirehoseEnabled reports whether the invalidation subscriber should run.
func (c *Config) FirehoseEnabled() bool {
	return c.FirehoseURL != "" && c.FirehoseURL != "off"
}

// Load reads configuration from the environment with sensible defaults. A
// .env file in the working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	actor := os.Getenv("BLOG_ACTOR")
	if actor == "" {
		return nil, fmt.Errorf("BLOG_ACTOR is required")
	}

	port := 3000
	if p := os.Getenv("PORT"); p != "" {
		var err error
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
	}

	cacheTTL := time.Hour
	if t := os.Getenv("BLOG_CACHE_TTL"); t != "" {
		var err error
		cacheTTL, err = time.ParseDuration(t)
		if err != nil {
			return nil, fmt.Errorf("invalid BLOG_CACHE_TTL: %w", err)
		}
	}

	excerptLength := 160
	if e := os.Getenv("BLOG_EXCERPT_LENGTH"); e != "" {
		parsed, err := strconv.Atoi(e)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("invalid BLOG_EXCERPT_LENGTH: %q", e)
		}
		excerptLength = parsed
	}

	baseURL := os.Getenv("BLOG_BASE_URL")
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%d", port)
	}

	return &Config{
		Actor:           actor,
		Port:            port,
		BaseURL:         baseURL,
		AppViewURL:      envOrDefault("BLOG_APPVIEW_URL", "https://public.api.bsky.app"),
		PLCDirectoryURL: envOrDefault("BLOG_PLC_URL", "https://plc.directory"),
		Collection:      envOrDefault("BLOG_COLLECTION", "com.whtwnd.blog.entry"),
		CacheTTL:        cacheTTL,
		CachePath:       os.Getenv("BLOG_CACHE_DB"),
		ExcerptLength:   excerptLength,
		FirehoseURL:     envOrDefault("BLOG_FIREHOSE_URL", "wss://jetstream1.us-east.bsky.network/subscribe"),
	}, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
