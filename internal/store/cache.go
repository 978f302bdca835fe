// Package store holds the client's normalized board state. Reads never
// block; fetches are coalesced; local mutations always win over fetches
// that started before them.
package store

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"kanbandash/internal/kanban"
)

const (
	DefaultRefreshInterval = 30 * time.Second
	DefaultRetryDelay      = 5 * time.Second
)

// Fetcher loads the authoritative board. gateway.Client implements it.
type Fetcher interface {
	FetchBoardState(ctx context.Context) (*kanban.NormalizedState, error)
}

// Updater derives the next state from a private copy of the current one.
// The argument is nil before the first successful fetch.
type Updater func(*kanban.NormalizedState) *kanban.NormalizedState

type MutateOptions struct {
	// Revalidate schedules a background fetch after the mutation.
	Revalidate bool
}

// Snapshot is what Read returns. Data is a copy the caller may keep.
type Snapshot struct {
	Data      *kanban.NormalizedState
	Loading   bool
	Err       error
	UpdatedAt time.Time
}

type Option func(*Cache)

func WithRefreshInterval(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithRetryDelay bounds how often Read retries a failed fetch of an empty
// cache.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.retryDelay = d
		}
	}
}

func WithLogger(l log.FieldLogger) Option {
	return func(c *Cache) { c.logger = l }
}

type Cache struct {
	key      string
	fetcher  Fetcher
	interval   time.Duration
	retryDelay time.Duration
	logger   log.FieldLogger
	group    singleflight.Group

	mu        sync.Mutex
	data      *kanban.NormalizedState
	err       error
	loading   bool
	updatedAt time.Time
	failedAt  time.Time
	gen       uint64 // bumped by every Mutate
	holds     int
	subs      map[chan struct{}]struct{}

	reconnect chan struct{}
}

func New(key string, fetcher Fetcher, opts ...Option) *Cache {
	c := &Cache{
		key:       key,
		fetcher:   fetcher,
		interval:   DefaultRefreshInterval,
		retryDelay: DefaultRetryDelay,
		logger:    log.StandardLogger(),
		subs:      map[chan struct{}]struct{}{},
		reconnect: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key is the logical resource this cache holds.
func (c *Cache) Key() string { return c.key }

// Read returns the current value without waiting. A Read on an empty cache
// starts a background fetch; after a failed one it retries at most once per
// retry delay.
func (c *Cache) Read() Snapshot {
	c.mu.Lock()
	snap := Snapshot{
		Data:      c.data.Clone(),
		Loading:   c.loading,
		Err:       c.err,
		UpdatedAt: c.updatedAt,
	}
	kick := c.data == nil && !c.loading &&
		(c.err == nil || time.Since(c.failedAt) >= c.retryDelay)
	c.mu.Unlock()

	if kick {
		go c.revalidateQuietly()
	}
	return snap
}

// Mutate replaces the value with updater's result and notifies subscribers
// before returning. It returns a copy of the new value.
func (c *Cache) Mutate(updater Updater, opts MutateOptions) *kanban.NormalizedState {
	c.mu.Lock()
	next := updater(c.data.Clone())
	c.data = next
	c.gen++
	out := next.Clone()
	c.mu.Unlock()

	c.notify()
	if opts.Revalidate {
		go c.revalidateQuietly()
	}
	return out
}

// Hold marks an optimistic operation in flight. Fetches that complete while
// any hold is active are discarded. The returned release is idempotent.
func (c *Cache) Hold() (release func()) {
	c.mu.Lock()
	c.holds++
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			c.holds--
			c.mu.Unlock()
		})
	}
}

// Revalidate fetches the board. Concurrent calls share one fetch.
func (c *Cache) Revalidate(ctx context.Context) error {
	ch := c.group.DoChan(c.key, func() (any, error) {
		return nil, c.fetch(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Cache) revalidateQuietly() {
	if err := c.Revalidate(context.Background()); err != nil {
		c.logger.WithError(err).WithField("key", c.key).Warn("board refresh failed")
	}
}

func (c *Cache) fetch(ctx context.Context) error {
	c.mu.Lock()
	startGen := c.gen
	c.loading = true
	c.mu.Unlock()
	c.notify()

	state, err := c.fetcher.FetchBoardState(ctx)

	c.mu.Lock()
	c.loading = false
	switch {
	case err != nil:
		c.err = err
		c.failedAt = time.Now()
	case c.gen != startGen || c.holds > 0:
		c.logger.WithField("key", c.key).Debug("discarding fetch overtaken by a local mutation")
	default:
		c.data = state
		c.err = nil
		c.updatedAt = time.Now()
	}
	c.mu.Unlock()

	c.notify()
	return err
}

// Reconnected asks the background loop for an immediate refresh.
func (c *Cache) Reconnected() {
	select {
	case c.reconnect <- struct{}{}:
	default:
	}
}

// Start refreshes now, then on every interval tick and every Reconnected
// call, until ctx is done.
func (c *Cache) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		c.revalidateQuietly()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.revalidateQuietly()
			case <-c.reconnect:
				c.revalidateQuietly()
			}
		}
	}()
}

// Subscribe returns a channel that receives a value after changes. Bursts
// coalesce into one notification. cancel stops delivery.
func (c *Cache) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		delete(c.subs, ch)
		c.mu.Unlock()
	}
}

func (c *Cache) notify() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
