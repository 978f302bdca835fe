// Package optimistic applies board edits locally before the server confirms
// them, then settles or rolls back once the remote call returns.
package optimistic

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"kanbandash/internal/gateway"
	"kanbandash/internal/kanban"
	"kanbandash/internal/store"
)

var (
	// ErrNoop from a Precondition ends Run without touching the cache.
	ErrNoop = errors.New("nothing to do")

	ErrUnknownColumn = errors.New("unknown column")
)

// Cache is the part of store.Cache the engine drives.
type Cache interface {
	Read() store.Snapshot
	Mutate(updater store.Updater, opts store.MutateOptions) *kanban.NormalizedState
	Hold() (release func())
}

var _ Cache = (*store.Cache)(nil)

// Op describes one optimistic operation.
type Op[R any] struct {
	Kind string
	// Key serializes operations on the same entity.
	Key string
	// Precondition sees the current state once Key is held. Returning
	// ErrNoop skips the operation; any other error is returned as is.
	Precondition func(*kanban.NormalizedState) error
	Apply        store.Updater
	Remote       func(context.Context) Result[R]
	// Settle builds the updater for a successful result. Nil keeps the
	// applied state.
	Settle   func(R) store.Updater
	Rollback store.Updater
}

type Option func(*Engine)

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

func WithLogger(l log.FieldLogger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

type Engine struct {
	cache    Cache
	gw       gateway.Gateway
	locks    *keyLocks
	observer Observer
	logger   log.FieldLogger
	now      func() time.Time
}

func New(cache Cache, gw gateway.Gateway, opts ...Option) *Engine {
	e := &Engine{
		cache:  cache,
		gw:     gw,
		locks:  newKeyLocks(),
		logger: log.StandardLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.observer == nil {
		e.observer = LogObserver{Logger: e.logger}
	}
	return e
}

// Run applies op.Apply, calls op.Remote and reconciles. Once applied the
// operation is not cancellable: Remote gets a context that ignores ctx's
// cancellation. A failure is returned after the rollback is in the cache.
func Run[R any](ctx context.Context, e *Engine, op Op[R]) (R, error) {
	var zero R

	unlock := e.locks.lock(op.Key)
	defer unlock()

	if op.Precondition != nil {
		if err := op.Precondition(e.cache.Read().Data); err != nil {
			if errors.Is(err, ErrNoop) {
				return zero, nil
			}
			return zero, err
		}
	}

	release := e.cache.Hold()
	defer release()

	e.cache.Mutate(op.Apply, store.MutateOptions{})
	e.observe(op.Kind, op.Key, PhaseIdle, PhaseApplied, nil)

	v, err := op.Remote(context.WithoutCancel(ctx)).Unwrap()
	if err != nil {
		e.cache.Mutate(op.Rollback, store.MutateOptions{})
		e.observe(op.Kind, op.Key, PhaseApplied, PhaseRolledBack, err)
		return zero, err
	}

	if op.Settle != nil {
		e.cache.Mutate(op.Settle(v), store.MutateOptions{})
	}
	e.observe(op.Kind, op.Key, PhaseApplied, PhaseSettled, nil)
	return v, nil
}

func (e *Engine) observe(kind, key string, from, to Phase, err error) {
	e.observer.Observe(Transition{Kind: kind, Key: key, From: from, To: to, Err: err})
}
