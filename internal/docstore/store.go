// Package docstore provides a SQLite-backed document database. Documents are
// JSON objects grouped into named collections and queried with simple field
// filters, which is all the live views need from their backing store.
package docstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite" // register sqlite driver
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrInvalidQuery is returned for malformed collection names, fields or operators.
	ErrInvalidQuery = errors.New("docstore: invalid query")
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ChangeFunc is called after a write commits. id is empty for batch writes.
type ChangeFunc func(collection, id string)

// Document is one stored JSON object.
type Document struct {
	Collection string
	ID         string
	Data       map[string]any
	Version    int64
	UpdatedAt  time.Time
}

// Value returns the raw value of a top-level field.
func (d Document) Value(field string) (any, bool) {
	v, ok := d.Data[field]
	return v, ok
}

// String returns a top-level field as a string, or "" if it is missing or not a string.
func (d Document) String(field string) string {
	s, _ := d.Data[field].(string)
	return s
}

// Bool returns a top-level boolean field, false when missing.
func (d Document) Bool(field string) bool {
	b, _ := d.Data[field].(bool)
	return b
}

// Entry is one document of a batch write.
type Entry struct {
	ID   string
	Data map[string]any
}

// Store is a document database backed by a single SQLite file.
type Store struct {
	db *sql.DB

	mu    sync.RWMutex
	hooks []ChangeFunc

	now func() time.Time
}

// Open opens or creates the database at dbPath and applies pending migrations.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening store db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging store db: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// OnChange registers fn to be called after every committed write.
func (s *Store) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

func (s *Store) notify(collection, id string) {
	s.mu.RLock()
	hooks := append([]ChangeFunc(nil), s.hooks...)
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(collection, id)
	}
}

// Put creates or replaces the document id in collection.
func (s *Store) Put(ctx context.Context, collection, id string, data map[string]any) (Document, error) {
	if !identRe.MatchString(collection) {
		return Document{}, fmt.Errorf("%w: collection %q", ErrInvalidQuery, collection)
	}
	if strings.TrimSpace(id) == "" {
		return Document{}, fmt.Errorf("%w: empty document id", ErrInvalidQuery)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Document{}, err
	}
	defer func() { _ = tx.Rollback() }()

	doc, err := s.upsert(ctx, tx, collection, id, data)
	if err != nil {
		return Document{}, err
	}
	if err := tx.Commit(); err != nil {
		return Document{}, err
	}

	s.notify(collection, id)
	return doc, nil
}

// Add stores data under a freshly generated id.
func (s *Store) Add(ctx context.Context, collection string, data map[string]any) (Document, error) {
	return s.Put(ctx, collection, uuid.NewString(), data)
}

// PutBatch writes all entries in one transaction and fires a single change
// notification for the collection.
func (s *Store) PutBatch(ctx context.Context, collection string, entries []Entry) error {
	if !identRe.MatchString(collection) {
		return fmt.Errorf("%w: collection %q", ErrInvalidQuery, collection)
	}
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range entries {
		id := e.ID
		if strings.TrimSpace(id) == "" {
			id = uuid.NewString()
		}
		if _, err := s.upsert(ctx, tx, collection, id, e.Data); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.notify(collection, "")
	return nil
}

func (s *Store) upsert(ctx context.Context, tx *sql.Tx, collection, id string, data map[string]any) (Document, error) {
	if data == nil {
		data = map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Document{}, fmt.Errorf("encoding document %s/%s: %w", collection, id, err)
	}

	now := s.now().UTC()
	_, err = tx.ExecContext(ctx, `INSERT INTO documents (collection, id, data, version, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			data = excluded.data,
			version = documents.version + 1,
			updated_at = excluded.updated_at`,
		collection, id, string(raw), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Document{}, fmt.Errorf("writing document %s/%s: %w", collection, id, err)
	}

	var version int64
	err = tx.QueryRowContext(ctx,
		"SELECT version FROM documents WHERE collection = ? AND id = ?", collection, id,
	).Scan(&version)
	if err != nil {
		return Document{}, fmt.Errorf("reading version %s/%s: %w", collection, id, err)
	}

	decoded, err := decodeData(raw)
	if err != nil {
		return Document{}, err
	}
	return Document{
		Collection: collection,
		ID:         id,
		Data:       decoded,
		Version:    version,
		UpdatedAt:  now,
	}, nil
}

// Get returns a single document.
func (s *Store) Get(ctx context.Context, collection, id string) (Document, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, data, version, updated_at FROM documents WHERE collection = ? AND id = ?",
		collection, id,
	)
	doc, err := scanDocument(collection, row)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	return doc, err
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE collection = ? AND id = ?", collection, id)
	if err != nil {
		return fmt.Errorf("deleting document %s/%s: %w", collection, id, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.notify(collection, id)
	}
	return nil
}

// Query returns all documents matching q, ordered by document id.
func (s *Store) Query(ctx context.Context, q Query) ([]Document, error) {
	where, args, err := q.sql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, data, version, updated_at FROM documents WHERE "+where+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", q.Collection, err)
	}
	defer func() { _ = rows.Close() }()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(q.Collection, rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Count returns the number of documents in a collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE collection = ?", collection).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(collection string, row rowScanner) (Document, error) {
	var (
		doc       Document
		raw       string
		updatedAt string
	)
	if err := row.Scan(&doc.ID, &raw, &doc.Version, &updatedAt); err != nil {
		return Document{}, err
	}
	data, err := decodeData([]byte(raw))
	if err != nil {
		return Document{}, fmt.Errorf("decoding document %s/%s: %w", collection, doc.ID, err)
	}
	doc.Collection = collection
	doc.Data = data
	doc.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return doc, nil
}

// decodeData keeps numbers as json.Number so amounts survive without float rounding.
func decodeData(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	data := map[string]any{}
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	return data, nil
}
