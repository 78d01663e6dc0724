// Package history keeps a local record of dictated transcripts.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS dictations (
    id          TEXT PRIMARY KEY,
    created_ns  INTEGER NOT NULL,
    raw         TEXT NOT NULL,
    text        TEXT NOT NULL,
    pasted      INTEGER NOT NULL,
    error       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_dictations_created ON dictations(created_ns);
`

// DefaultMaxEntries bounds the table when Open receives maxEntries <= 0.
const DefaultMaxEntries = 500

// DefaultRecentLimit is used by Recent when limit <= 0.
const DefaultRecentLimit = 50

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("history store is closed")

// Entry is one dictation outcome.
type Entry struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Raw       string    `json:"raw"`
	Text      string    `json:"text"`
	Pasted    bool      `json:"pasted"`
	Error     string    `json:"error,omitempty"`
}

// Store is a SQLite-backed dictation log.
type Store struct {
	mu         sync.RWMutex
	db         *sql.DB
	maxEntries int
	now        func() time.Time
}

// Open opens or creates the database at path. Only the newest maxEntries
// rows are retained.
func Open(path string, maxEntries int) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("history database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	dsn := "file:" + filepath.ToSlash(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	// A single connection keeps writes serialized without SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Store{db: db, maxEntries: maxEntries, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) handle() (*sql.DB, error) {
	if s == nil {
		return nil, ErrClosed
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}
	return s.db, nil
}

// Record inserts e, filling ID and CreatedAt when empty, and trims the table
// to the retention limit. It returns the stored entry.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	db, err := s.handle()
	if err != nil {
		return Entry{}, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	e.CreatedAt = e.CreatedAt.UTC()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("begin history transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO dictations (id, created_ns, raw, text, pasted, error)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.CreatedAt.UnixNano(), e.Raw, e.Text, e.Pasted, e.Error,
	); err != nil {
		return Entry{}, fmt.Errorf("insert dictation: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM dictations WHERE id NOT IN (
			SELECT id FROM dictations ORDER BY created_ns DESC, rowid DESC LIMIT ?
		)`, s.maxEntries,
	); err != nil {
		return Entry{}, fmt.Errorf("trim dictations: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Entry{}, fmt.Errorf("commit history transaction: %w", err)
	}
	return e, nil
}

// Recent returns up to limit entries, newest first. limit is capped at the
// retention size since no more rows can exist.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	limit = min(limit, s.maxEntries)
	rows, err := db.QueryContext(ctx, `
		SELECT id, created_ns, raw, text, pasted, error
		FROM dictations ORDER BY created_ns DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query dictations: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, min(limit, DefaultRecentLimit))
	for rows.Next() {
		var (
			e         Entry
			createdNs int64
		)
		if err := rows.Scan(&e.ID, &createdNs, &e.Raw, &e.Text, &e.Pasted, &e.Error); err != nil {
			return nil, fmt.Errorf("scan dictation: %w", err)
		}
		e.CreatedAt = time.Unix(0, createdNs).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dictations: %w", err)
	}
	return entries, nil
}

// Clear deletes every entry.
func (s *Store) Clear(ctx context.Context) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM dictations`); err != nil {
		return fmt.Errorf("clear dictations: %w", err)
	}
	return nil
}
