// Package ledger records publications in a SQLite database.
package ledger

import (
	"context"
	"database/sql"
	stderrors "errors"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/postpub/internal/foundation/errors"
	"git.home.luguber.info/inful/postpub/internal/post"
)

// Entry is one recorded publication.
type Entry struct {
	PublisherID  string
	Path         string
	Title        string
	CanonicalURL string
	PublishedAt  time.Time
}

// EntryFor builds the ledger entry for a published post.
func EntryFor(p post.Post, at time.Time) Entry {
	return Entry{
		PublisherID:  p.Publisher().ID.String(),
		Path:         p.Filepath(),
		Title:        p.Title(),
		CanonicalURL: p.CanonicalURL(),
		PublishedAt:  at,
	}
}

// ErrNotFound is returned by Get for unknown publisher ids.
var ErrNotFound = stderrors.New("publication not found")

// SQLiteLedger stores entries keyed by publisher id; recording the same
// publisher again replaces its entry.
type SQLiteLedger struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (creating if needed) the ledger at dbPath.
// Use ":memory:" for an in-memory database.
func Open(dbPath string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, storageError(err, "open sqlite database", dbPath)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	l := &SQLiteLedger{db: db}
	if err := l.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, storageError(err, "initialize schema", dbPath)
	}
	return l, nil
}

func (l *SQLiteLedger) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS publications (
		publisher_id TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		title TEXT NOT NULL,
		canonical_url TEXT NOT NULL,
		published_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_publications_path ON publications(path);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Record inserts or replaces the entry for e.PublisherID.
func (l *SQLiteLedger) Record(ctx context.Context, e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO publications (publisher_id, path, title, canonical_url, published_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(publisher_id) DO UPDATE SET
			path = excluded.path,
			title = excluded.title,
			canonical_url = excluded.canonical_url,
			published_at = excluded.published_at`,
		e.PublisherID, e.Path, e.Title, e.CanonicalURL, e.PublishedAt.Unix(),
	)
	if err != nil {
		return storageError(err, "record publication", e.Path)
	}
	return nil
}

// Get returns the entry for publisherID or ErrNotFound.
func (l *SQLiteLedger) Get(ctx context.Context, publisherID string) (Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	row := l.db.QueryRowContext(ctx,
		"SELECT publisher_id, path, title, canonical_url, published_at FROM publications WHERE publisher_id = ?",
		publisherID,
	)
	e, err := scanEntry(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, storageError(err, "query publication", publisherID)
	}
	return e, nil
}

// List returns every entry ordered by path.
func (l *SQLiteLedger) List(ctx context.Context) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rows, err := l.db.QueryContext(ctx,
		"SELECT publisher_id, path, title, canonical_url, published_at FROM publications ORDER BY path, publisher_id")
	if err != nil {
		return nil, storageError(err, "query publications", "")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, storageError(err, "scan publication", "")
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(err, "iterate rows", "")
	}
	return out, nil
}

// Close closes the database.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var e Entry
	var publishedAt int64
	if err := s.Scan(&e.PublisherID, &e.Path, &e.Title, &e.CanonicalURL, &publishedAt); err != nil {
		return Entry{}, err
	}
	e.PublishedAt = time.Unix(publishedAt, 0).UTC()
	return e, nil
}

func storageError(err error, message, path string) error {
	b := errors.WrapError(err, errors.CategoryStorage, message).WithRetry(errors.RetryBackoff)
	if path != "" {
		b = b.WithContext("path", path)
	}
	return b.Build()
}
