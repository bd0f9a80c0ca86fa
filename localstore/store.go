// Package localstore is a SQLite-backed content source with the same query
// semantics as the CMS. It serves local development and tests; the CMS
// remains the system of record.
package localstore

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eringen/spacetravel/content"
)

const defaultPageSize = 20

// Store wraps a SQLite database of CMS documents and preview revisions.
type Store struct {
	db *sql.DB
}

var _ content.Source = (*Store)(nil)

// Open opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets page builds read while fixtures are being loaded.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    uid TEXT,
    type TEXT NOT NULL,
    first_published INTEGER,
    last_published INTEGER,
    data TEXT NOT NULL DEFAULT '{}'
);
CREATE UNIQUE INDEX IF NOT EXISTS documents_type_uid ON documents(type, uid);
CREATE INDEX IF NOT EXISTS documents_type_published ON documents(type, first_published);
CREATE TABLE IF NOT EXISTS revisions (
    ref TEXT NOT NULL,
    id TEXT NOT NULL,
    uid TEXT,
    type TEXT NOT NULL,
    first_published INTEGER,
    last_published INTEGER,
    data TEXT NOT NULL DEFAULT '{}',
    PRIMARY KEY (ref, id)
);
`)
	return err
}

// SaveDocument upserts a published document.
func (s *Store) SaveDocument(ctx context.Context, d content.Document) error {
	if d.ID == "" || d.Type == "" {
		return errors.New("localstore: document id and type are required")
	}
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO documents (id, uid, type, first_published, last_published, data) VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, nullString(d.UID), d.Type, millis(d.FirstPublicationDate), millis(d.LastPublicationDate), dataText(d.Data))
	return err
}

// SaveRevision stores the state of a document as seen through a preview ref.
func (s *Store) SaveRevision(ctx context.Context, ref string, d content.Document) error {
	if ref == "" {
		return errors.New("localstore: revision ref is required")
	}
	if d.ID == "" || d.Type == "" {
		return errors.New("localstore: document id and type are required")
	}
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO revisions (ref, id, uid, type, first_published, last_published, data) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ref, d.ID, nullString(d.UID), d.Type, millis(d.FirstPublicationDate), millis(d.LastPublicationDate), dataText(d.Data))
	return err
}

// DeleteDocument removes a document and its revisions.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM revisions WHERE id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	return err
}

// view selects documents as seen through ref: revision rows replace the
// published row of the same id. The first two arguments are the ref.
const view = `
WITH view AS (
    SELECT id, uid, type, first_published, last_published, data FROM revisions WHERE ref = ?
    UNION ALL
    SELECT id, uid, type, first_published, last_published, data FROM documents
    WHERE id NOT IN (SELECT id FROM revisions WHERE ref = ?)
)`

// Query returns documents of q.Type ordered by first publication date.
// Unpublished documents sort last in both directions and never match a
// date bound. The cursor is an opaque offset.
func (s *Store) Query(ctx context.Context, q content.Query) (content.Page, error) {
	offset, err := decodeCursor(q.Cursor)
	if err != nil {
		return content.Page{}, err
	}
	size := q.PageSize
	if size <= 0 {
		size = defaultPageSize
	}

	where := []string{"type = ?"}
	args := []any{q.Ref, q.Ref, q.Type}
	if q.PublishedAfter != nil {
		where = append(where, "first_published > ?")
		args = append(args, q.PublishedAfter.UnixMilli())
	}
	if q.PublishedBefore != nil {
		where = append(where, "first_published < ?")
		args = append(args, q.PublishedBefore.UnixMilli())
	}
	dir := "DESC"
	if q.Order == content.Ascending {
		dir = "ASC"
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, view+` SELECT COUNT(*) FROM view WHERE `+cond, args...).Scan(&total); err != nil {
		return content.Page{}, transport("count", err)
	}

	stmt := view + ` SELECT id, uid, type, first_published, last_published, data FROM view WHERE ` + cond +
		` ORDER BY first_published IS NULL, first_published ` + dir + `, id ` + dir + ` LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, stmt, append(args, size+1, offset)...)
	if err != nil {
		return content.Page{}, transport("query", err)
	}
	defer rows.Close()

	page := content.Page{Total: total}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return content.Page{}, transport("query", err)
		}
		page.Results = append(page.Results, d)
	}
	if err := rows.Err(); err != nil {
		return content.Page{}, transport("query", err)
	}
	if len(page.Results) > size {
		page.Results = page.Results[:size]
		page.NextCursor = encodeCursor(offset + size)
	}
	return page, nil
}

// GetByUID returns the document of docType with the given UID.
func (s *Store) GetByUID(ctx context.Context, docType, uid, ref string) (content.Document, error) {
	row := s.db.QueryRowContext(ctx, view+` SELECT id, uid, type, first_published, last_published, data FROM view WHERE type = ? AND uid = ? LIMIT 1`,
		ref, ref, docType, uid)
	return s.single(row)
}

// GetByID returns a document by id.
func (s *Store) GetByID(ctx context.Context, id, ref string) (content.Document, error) {
	row := s.db.QueryRowContext(ctx, view+` SELECT id, uid, type, first_published, last_published, data FROM view WHERE id = ? LIMIT 1`,
		ref, ref, id)
	return s.single(row)
}

func (s *Store) single(row *sql.Row) (content.Document, error) {
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return content.Document{}, content.ErrNotFound
	}
	if err != nil {
		return content.Document{}, transport("get", err)
	}
	return d, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(sc scanner) (content.Document, error) {
	var (
		d           content.Document
		uid         sql.NullString
		first, last sql.NullInt64
		data        string
	)
	if err := sc.Scan(&d.ID, &uid, &d.Type, &first, &last, &data); err != nil {
		return content.Document{}, err
	}
	d.UID = uid.String
	d.FirstPublicationDate = fromMillis(first)
	d.LastPublicationDate = fromMillis(last)
	d.Data = json.RawMessage(data)
	return d, nil
}

func transport(op string, err error) error {
	return &content.TransportError{Op: "localstore " + op, Err: err}
}

const cursorPrefix = "offset:"

func encodeCursor(offset int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(cursorPrefix + strconv.Itoa(offset)))
}

func decodeCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil || !strings.HasPrefix(string(b), cursorPrefix) {
		return 0, content.ErrInvalidCursor
	}
	n, err := strconv.Atoi(strings.TrimPrefix(string(b), cursorPrefix))
	if err != nil || n < 0 {
		return 0, content.ErrInvalidCursor
	}
	return n, nil
}

func millis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func dataText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}

// ParseTime accepts RFC 3339 and the CMS's numeric-offset form.
func ParseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05-0700"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("localstore: invalid timestamp %q", s)
}
