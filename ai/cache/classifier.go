package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/poiesic/reviewpipe/ai"
	"github.com/poiesic/reviewpipe/core"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "reviewpipe:sentiment:"

// Classifier is a caching ai.TextClassifier decorator.
type Classifier struct {
	next   ai.TextClassifier
	store  Store
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithTTL sets how long labels stay cached. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(c *Classifier) {
		c.ttl = ttl
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger.With("component", "classifier-cache")
	}
}

// New wraps next with a cache in store.
func New(next ai.TextClassifier, store Store, opts ...Option) *Classifier {
	c := &Classifier{
		next:   next,
		store:  store,
		logger: slog.Default().With("component", "classifier-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns a cached label or asks the wrapped classifier.
//
// Concurrent calls for the same text share one upstream call. That call is
// detached from the cancellation of whichever caller started it; each caller
// stops waiting when its own ctx is done.
func (c *Classifier) Classify(ctx context.Context, text, language string) (ai.Label, error) {
	key := buildKey(text, language)
	if label, ok := c.lookup(ctx, key); ok {
		return label, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		if label, ok := c.lookup(shared, key); ok {
			return label, nil
		}
		label, err := c.next.Classify(shared, text, language)
		if err != nil {
			return ai.Label(""), err
		}
		if err := c.store.Set(shared, key, label.String(), c.ttl); err != nil {
			c.logger.Error("cache set failed", "key", key, "err", err)
		}
		return label, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(ai.Label), nil
	}
}

func (c *Classifier) lookup(ctx context.Context, key string) (ai.Label, bool) {
	v, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.logger.Error("cache get failed", "key", key, "err", err)
		}
		c.misses.Add(1)
		return "", false
	}
	label, err := ai.ParseLabel(v)
	if err != nil {
		c.logger.Warn("discarding invalid cached label", "key", key, "value", v)
		c.misses.Add(1)
		return "", false
	}
	c.hits.Add(1)
	return label, true
}

// Stats returns cache hit and miss counts.
func (c *Classifier) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Close closes the underlying store.
func (c *Classifier) Close() error {
	return c.store.Close()
}

func buildKey(text, language string) string {
	return keyPrefix + core.Fingerprint(language, text)
}
