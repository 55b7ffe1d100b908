// Package database provides storage backends for favorites and settings.
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/bryan-buckman/headlines/internal/model"
)

var (
	// ErrStore wraps every failure reported by a storage backend.
	ErrStore = errors.New("favorites store failure")
	// ErrNotFound is returned when a setting does not exist.
	ErrNotFound = errors.New("not found")
)

// Store defines the interface for database operations.
// Both SQLite and PostgreSQL implementations satisfy this interface.
// Every write is atomic per record.
type Store interface {
	Close() error

	// DatabaseType returns the name of the database backend ("SQLite" or "PostgreSQL").
	DatabaseType() string

	// Favorite operations, keyed by model.Article.Key.
	UpsertFavorite(ctx context.Context, article model.Article) error
	DeleteFavorite(ctx context.Context, key string) error
	ListFavorites(ctx context.Context) ([]model.Article, error)
	IsFavorite(ctx context.Context, key string) (bool, error)

	// Settings operations
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Open opens the backend named by driver ("sqlite" or "postgres").
func Open(driver, dsn string) (Store, error) {
	switch driver {
	case "", "sqlite":
		db, err := New(dsn)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres":
		db, err := NewPostgres(dsn)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}
