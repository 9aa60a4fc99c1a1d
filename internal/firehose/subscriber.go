// Package firehose watches the Jetstream event stream for commits to the
// configured account's blog collection and invalidates the blog cache when
// one lands, so edits show up before the TTL would expire.
package firehose

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const reconnectDelay = 5 * time.Second

// Invalidator is the part of the blog service the subscriber drives.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// Subscriber connects to Jetstream and processes events.
type Subscriber struct {
	url        string
	did        string
	collection string
	target     Invalidator
	logger     *slog.Logger
}

// NewSubscriber creates a subscriber filtered to one DID and collection.
func NewSubscriber(firehoseURL, did, collection string, target Invalidator, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		url:        firehoseURL,
		did:        did,
		collection: collection,
		target:     target,
		logger:     logger,
	}
}

// Start connects to the firehose and processes events until the context is
// cancelled. It automatically reconnects on transient errors.
func (s *Subscriber) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := s.subscribe(ctx); err != nil {
				s.logger.Error("firehose connection error, reconnecting", "error", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(reconnectDelay):
					// backoff before reconnecting
				}
			}
		}
	}
}

func (s *Subscriber) buildURL() string {
	u, _ := url.Parse(s.url)
	q := u.Query()
	q.Set("wantedCollections", s.collection)
	q.Set("wantedDids", s.did)
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *Subscriber) subscribe(ctx context.Context) error {
	wsURL := s.buildURL()
	s.logger.Info("connecting to firehose", "url", wsURL)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial firehose: %w", err)
	}
	defer conn.Close()

	s.logger.Info("connected to firehose")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		var event jetstreamEvent
		if err := json.Unmarshal(message, &event); err != nil {
			s.logger.Error("failed to parse event", "error", err)
			continue
		}

		if event.Kind != "commit" || event.Commit == nil {
			continue
		}
		if event.DID != s.did || event.Commit.Collection != s.collection {
			continue
		}

		s.logger.Info("blog commit observed, invalidating cache",
			"operation", event.Commit.Operation,
			"rkey", event.Commit.RKey,
		)
		s.target.Invalidate(ctx)
	}
}
