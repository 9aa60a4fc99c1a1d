// Package identity resolves a logical AT Protocol account identifier (handle
// or DID) to the personal data server that holds its records.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jdekker/atblog/internal/cache"
	"github.com/jdekker/atblog/internal/fetch"
)

var (
	// ErrMalformedIdentifier means the profile's DID did not start with the
	// "did" method marker or lacked the segments its method requires.
	ErrMalformedIdentifier = errors.New("malformed DID")

	// ErrUnsupportedMethod means the DID uses a resolution method other than
	// plc or web.
	ErrUnsupportedMethod = errors.New("unsupported DID method")

	// ErrNoRepositoryEndpoint means the DID document has no #atproto_pds
	// service entry.
	ErrNoRepositoryEndpoint = errors.New("DID document lacks #atproto_pds service")
)

// Identity is a resolved account: its public profile plus the endpoint of the
// data server storing its records. Immutable once built; replaced wholesale
// when the cache entry expires.
type Identity struct {
	Actor       string `json:"actor"`
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Avatar      string `json:"avatar"`
	Banner      string `json:"banner"`
	PDS         string `json:"pds"`
}

// Resolver resolves identifiers through the public AppView and the DID
// method's directory, caching successful results.
type Resolver struct {
	appViewURL string
	plcURL     string
	httpClient *http.Client
	cache      *cache.Typed[Identity]
	cacheTTL   time.Duration
	logger     *slog.Logger
}

// NewResolver creates a Resolver. appViewURL and plcURL are the bases of the
// profile service and the PLC directory, without trailing slashes.
func NewResolver(appViewURL, plcURL string, store cache.Store, cacheTTL time.Duration, logger *slog.Logger) *Resolver {
	return &Resolver{
		appViewURL: appViewURL,
		plcURL:     plcURL,
		httpClient: fetch.NewClient(),
		cache:      cache.NewTyped[Identity](store),
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

type profileResponse struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Avatar      string `json:"avatar"`
	Banner      string `json:"banner"`
}

type didDocument struct {
	Service []didService `json:"service"`
}

type didService struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

// Resolve maps actor to its Identity. The result is cached under a key
// derived from actor for the resolver's TTL.
func (r *Resolver) Resolve(ctx context.Context, actor string) (*Identity, error) {
	cacheKey := "profile_" + actor
	if cached, ok := r.cache.Get(ctx, cacheKey); ok {
		return &cached, nil
	}

	var profile profileResponse
	profileURL := r.appViewURL + "/xrpc/app.bsky.actor.getProfile?actor=" + url.QueryEscape(actor)
	if err := fetch.JSON(ctx, r.httpClient, profileURL, &profile); err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}

	doc, err := r.resolveDIDDocument(ctx, profile.DID)
	if err != nil {
		return nil, err
	}

	pds := ""
	for _, svc := range doc.Service {
		if svc.ID == "#atproto_pds" {
			pds = svc.ServiceEndpoint
		}
	}
	if pds == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoRepositoryEndpoint, profile.DID)
	}

	ident := Identity{
		Actor:       actor,
		DID:         profile.DID,
		Handle:      profile.Handle,
		DisplayName: profile.DisplayName,
		Description: profile.Description,
		Avatar:      profile.Avatar,
		Banner:      profile.Banner,
		PDS:         pds,
	}

	if err := r.cache.Set(ctx, cacheKey, ident, r.cacheTTL); err != nil {
		r.logger.Warn("failed to cache identity", "actor", actor, "error", err)
	}

	return &ident, nil
}

// resolveDIDDocument fetches the DID document from the directory matching the
// DID's method: plc DIDs go through the PLC directory, web DIDs through the
// domain's well-known document.
func (r *Resolver) resolveDIDDocument(ctx context.Context, did string) (*didDocument, error) {
	parts := strings.Split(did, ":")
	if parts[0] != "did" || len(parts) < 3 {
		return nil, fmt.Errorf("%w: %q", ErrMalformedIdentifier, did)
	}

	var docURL string
	switch parts[1] {
	case "plc":
		docURL = r.plcURL + "/" + did
	case "web":
		if parts[2] == "" {
			return nil, fmt.Errorf("%w: %q", ErrMalformedIdentifier, did)
		}
		docURL = "https://" + parts[2] + "/.well-known/did.json"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, parts[1])
	}

	var doc didDocument
	if err := fetch.JSON(ctx, r.httpClient, docURL, &doc); err != nil {
		return nil, fmt.Errorf("fetch DID document: %w", err)
	}
	return &doc, nil
}
