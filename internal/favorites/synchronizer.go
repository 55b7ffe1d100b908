// Package favorites keeps bookmarked articles in the local store and exposes
// live views of them.
package favorites

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/bryan-buckman/headlines/internal/database"
	"github.com/bryan-buckman/headlines/internal/metrics"
	"github.com/bryan-buckman/headlines/internal/model"
)

// Synchronizer mediates every favorites read and write. Writes for one key
// are serialized; writes for different keys proceed independently. After each
// committed write all live views re-read the store.
type Synchronizer struct {
	store  database.Store
	locks  *keyedMutex
	hub    *hub
	logger *slog.Logger
}

// New creates a synchronizer over store.
func New(store database.Store, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		store:  store,
		locks:  newKeyedMutex(),
		hub:    newHub(),
		logger: logger.With("component", "favorites"),
	}
}

// Add stores the article, replacing any favorite with the same key.
func (s *Synchronizer) Add(ctx context.Context, a model.Article) error {
	if a.Key() == "" {
		return fmt.Errorf("add favorite: %w", ErrEmptyKey)
	}
	unlock := s.locks.Lock(a.Key())
	defer unlock()
	return s.write(ctx, "add", a.Key(), func() error {
		return s.store.UpsertFavorite(ctx, a)
	})
}

// Remove deletes the favorite with the article's key. Removing an article that
// is not a favorite succeeds.
func (s *Synchronizer) Remove(ctx context.Context, a model.Article) error {
	return s.RemoveKey(ctx, a.Key())
}

// RemoveKey deletes the favorite stored under key.
func (s *Synchronizer) RemoveKey(ctx context.Context, key string) error {
	unlock := s.locks.Lock(key)
	defer unlock()
	return s.write(ctx, "remove", key, func() error {
		return s.store.DeleteFavorite(ctx, key)
	})
}

// Toggle flips the favorite state of the article and returns the new state.
func (s *Synchronizer) Toggle(ctx context.Context, a model.Article) (bool, error) {
	if a.Key() == "" {
		return false, fmt.Errorf("toggle favorite: %w", ErrEmptyKey)
	}
	unlock := s.locks.Lock(a.Key())
	defer unlock()

	exists, err := s.store.IsFavorite(ctx, a.Key())
	if err != nil {
		return false, fmt.Errorf("toggle favorite: %w", err)
	}
	if exists {
		return false, s.write(ctx, "remove", a.Key(), func() error {
			return s.store.DeleteFavorite(ctx, a.Key())
		})
	}
	return true, s.write(ctx, "add", a.Key(), func() error {
		return s.store.UpsertFavorite(ctx, a)
	})
}

// Contains reports whether the article is currently a favorite.
func (s *Synchronizer) Contains(ctx context.Context, a model.Article) (bool, error) {
	return s.store.IsFavorite(ctx, a.Key())
}

// All returns the current favorites in storage order.
func (s *Synchronizer) All(ctx context.Context) ([]model.Article, error) {
	return s.store.ListFavorites(ctx)
}

func (s *Synchronizer) write(ctx context.Context, op, key string, fn func() error) error {
	err := fn()
	metrics.RecordFavoriteWrite(op, err)
	if err != nil {
		s.logger.WarnContext(ctx, "favorite write failed", "op", op, "key", key, "error", err)
		return fmt.Errorf("%s favorite: %w", op, err)
	}
	s.logger.DebugContext(ctx, "favorite write committed", "op", op, "key", key)
	s.hub.notify()
	return nil
}

// IsFavorite returns a live view of the article's favorite state. The channel
// receives the current state, then every change, and is closed when ctx ends.
func (s *Synchronizer) IsFavorite(ctx context.Context, a model.Article) <-chan bool {
	key := a.Key()
	return watch(ctx, s, func(ctx context.Context) (bool, error) {
		return s.store.IsFavorite(ctx, key)
	}, func(x, y bool) bool { return x == y })
}

// List returns a live view of all favorites, closed when ctx ends.
func (s *Synchronizer) List(ctx context.Context) <-chan []model.Article {
	return watch(ctx, s, s.store.ListFavorites, slices.Equal[[]model.Article])
}

// watch re-runs query after every committed write and forwards results that
// differ from the last one delivered.
func watch[T any](ctx context.Context, s *Synchronizer, query func(context.Context) (T, error), equal func(T, T) bool) <-chan T {
	out := make(chan T)
	// Register before the first read so no write can slip between them.
	signal, cancel := s.hub.subscribe()

	go func() {
		defer close(out)
		defer cancel()

		var last T
		delivered := false
		for {
			v, err := query(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.WarnContext(ctx, "live favorites query failed", "error", err)
			} else if !delivered || !equal(last, v) {
				select {
				case out <- v:
					last, delivered = v, true
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-signal:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
