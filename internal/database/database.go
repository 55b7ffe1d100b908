package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bryan-buckman/headlines/internal/model"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
}

// Ensure DB implements Store interface.
var _ Store = (*DB)(nil)

// New opens or creates an SQLite database at the given path.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single connection serializes writers and avoids SQLITE_BUSY.
	conn.SetMaxOpenConns(1)
	// Enable WAL mode for better concurrency.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// DatabaseType returns the database backend name.
func (db *DB) DatabaseType() string {
	return "SQLite"
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS favorites (
		title TEXT PRIMARY KEY,
		description TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		published_at TEXT NOT NULL DEFAULT '',
		author TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	-- Follow-system defaults.
	INSERT OR IGNORE INTO settings (key, value) VALUES ('theme_option', '0');
	INSERT OR IGNORE INTO settings (key, value) VALUES ('language_key', '0');
	`
	_, err := db.conn.Exec(schema)
	return err
}

// --- Favorite Methods ---

// UpsertFavorite inserts a favorite or overwrites the one with the same key.
func (db *DB) UpsertFavorite(ctx context.Context, a model.Article) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO favorites (title, description, content, image_url, source, published_at, author, url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(title) DO UPDATE SET
			description = excluded.description,
			content = excluded.content,
			image_url = excluded.image_url,
			source = excluded.source,
			published_at = excluded.published_at,
			author = excluded.author,
			url = excluded.url`,
		a.Key(), a.Description, a.Content, a.ImageURL, a.Source, a.PublishedAt, a.Author, a.URL)
	if err != nil {
		return storeErr("upsert favorite", err)
	}
	return nil
}

// DeleteFavorite removes a favorite. Missing keys are not an error.
func (db *DB) DeleteFavorite(ctx context.Context, key string) error {
	if _, err := db.conn.ExecContext(ctx, "DELETE FROM favorites WHERE title = ?", key); err != nil {
		return storeErr("delete favorite", err)
	}
	return nil
}

// ListFavorites returns all favorites in storage order.
func (db *DB) ListFavorites(ctx context.Context) ([]model.Article, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT title, description, content, image_url, source, published_at, author, url FROM favorites ORDER BY rowid")
	if err != nil {
		return nil, storeErr("list favorites", err)
	}
	defer rows.Close()
	items, err := scanArticles(rows)
	if err != nil {
		return nil, storeErr("scan favorites", err)
	}
	return items, nil
}

// IsFavorite reports whether a favorite with the key exists.
func (db *DB) IsFavorite(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM favorites WHERE title = ?)", key).Scan(&exists)
	if err != nil {
		return false, storeErr("is favorite", err)
	}
	return exists, nil
}

func scanArticles(rows *sql.Rows) ([]model.Article, error) {
	items := []model.Article{}
	for rows.Next() {
		var a model.Article
		if err := rows.Scan(&a.Title, &a.Description, &a.Content, &a.ImageURL, &a.Source, &a.PublishedAt, &a.Author, &a.URL); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

// --- Settings Methods ---

// GetSetting retrieves a setting value.
func (db *DB) GetSetting(ctx context.Context, key string) (string, error) {
	var val string
	err := db.conn.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", storeErr("get setting", err)
	}
	return val, nil
}

// SetSetting saves a setting.
func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	_, err := db.conn.ExecContext(ctx, "INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = ?", key, value, value)
	if err != nil {
		return storeErr("set setting", err)
	}
	return nil
}
