// SPDX-License-Identifier: MPL-2.0

// Package metacache stores registry metadata responses in SQLite so that
// repeated runs can revalidate with ETag/Last-Modified and fall back to the
// last known index when a registry is unreachable.
package metacache

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pakt/pakt/internal/clock"
)

// FileName is the database file created inside the cache directory.
const FileName = "metadata.db"

//go:embed schema.sql
var schemaSQL string

// ErrClosed is returned by operations on a closed Cache.
var ErrClosed = errors.New("metadata cache is closed")

type (
	// Entry is one cached HTTP response body.
	Entry struct {
		URL          string
		ETag         string
		LastModified string
		Body         []byte
		FetchedAt    time.Time
	}

	// Cache is a SQLite-backed response cache. It is safe for concurrent use.
	Cache struct {
		mu    sync.RWMutex
		db    *sql.DB
		clock clock.Clock
	}
)

// Open opens (creating if needed) the cache database at path. A nil clock
// uses the system clock.
func Open(ctx context.Context, path string, clk clock.Clock) (*Cache, error) {
	if clk == nil {
		clk = clock.Real{}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open metadata cache %s: %w", path, err)
	}
	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize metadata cache %s: %w", path, err)
	}
	return &Cache{db: db, clock: clk}, nil
}

// OpenDir opens the cache file inside dir.
func OpenDir(ctx context.Context, dir string, clk clock.Clock) (*Cache, error) {
	return Open(ctx, filepath.Join(dir, FileName), clk)
}

// Get returns the entry for url. The boolean is false when nothing is cached.
func (c *Cache) Get(ctx context.Context, url string) (Entry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil {
		return Entry{}, false, ErrClosed
	}

	var (
		e         Entry
		fetchedAt string
	)
	row := c.db.QueryRowContext(ctx,
		`SELECT url, etag, last_modified, body, fetched_at FROM responses WHERE url = ?`, url)
	if err := row.Scan(&e.URL, &e.ETag, &e.LastModified, &e.Body, &fetchedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("read cached %s: %w", url, err)
	}
	t, err := time.Parse(time.RFC3339Nano, fetchedAt)
	if err != nil {
		return Entry{}, false, fmt.Errorf("cached %s has bad timestamp %q: %w", url, fetchedAt, err)
	}
	e.FetchedAt = t
	return e, true, nil
}

// Put stores e, replacing any previous entry for the same URL. A zero
// FetchedAt is stamped with the cache clock.
func (c *Cache) Put(ctx context.Context, e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return ErrClosed
	}
	if e.FetchedAt.IsZero() {
		e.FetchedAt = c.clock.Now()
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO responses (url, etag, last_modified, body, fetched_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET etag = excluded.etag, last_modified = excluded.last_modified,
		 body = excluded.body, fetched_at = excluded.fetched_at`,
		e.URL, e.ETag, e.LastModified, e.Body, e.FetchedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("cache %s: %w", e.URL, err)
	}
	return nil
}

// Touch refreshes the fetch time of url after a 304 revalidation.
func (c *Cache) Touch(ctx context.Context, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return ErrClosed
	}
	_, err := c.db.ExecContext(ctx, `UPDATE responses SET fetched_at = ? WHERE url = ?`,
		c.clock.Now().UTC().Format(time.RFC3339Nano), url)
	return err
}

// Prune deletes entries fetched more than olderThan ago and returns how many
// were removed.
func (c *Cache) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return 0, ErrClosed
	}
	cutoff := c.clock.Now().Add(-olderThan).UTC().Format(time.RFC3339Nano)
	res, err := c.db.ExecContext(ctx, `DELETE FROM responses WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune metadata cache: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database handle. Closing twice is a no-op.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}
