package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rexliu/folio/pkg/annotations"
	"github.com/rexliu/folio/pkg/core"
	"github.com/rexliu/folio/pkg/wire"
)

// Options tunes the connection pragmas.
type Options struct {
	JournalMode string
	Synchronous string
}

// Store owns the SQLite database for a profile.
type Store struct {
	db   *sql.DB
	path string
	opts Options
}

// Path returns the underlying SQLite file path.
func (s *Store) Path() string {
	return s.path
}

// Open initializes a SQLite database at path.
func Open(path string, opts Options) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer keeps busy errors out of a single-user profile
	db.SetMaxOpenConns(1)
	if opts.JournalMode == "" {
		opts.JournalMode = "DELETE"
	}
	if opts.Synchronous == "" {
		opts.Synchronous = "FULL"
	}
	return &Store{db: db, path: path, opts: opts}, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Init ensures pragmas and schema are configured.
func (s *Store) Init(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("nil store")
	}
	pragmas := []string{
		fmt.Sprintf("PRAGMA journal_mode = %s;", pragmaWord(s.opts.JournalMode)),
		fmt.Sprintf("PRAGMA synchronous = %s;", pragmaWord(s.opts.Synchronous)),
		"PRAGMA busy_timeout = 5000;",
	}
	for _, stmt := range pragmas {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply pragma %q: %w", stmt, err)
		}
	}
	return s.applySchema(ctx)
}

// pragmaWord strips anything but letters so config values cannot extend
// the statement.
func pragmaWord(v string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return r
		}
		return -1
	}, v)
}

func (s *Store) applySchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`INSERT OR IGNORE INTO meta(key,value) VALUES ('schemaVersion','1');`,
		`CREATE TABLE IF NOT EXISTS annotations (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL CHECK (kind IN ('highlight','bookmark')),
			chapter TEXT NOT NULL,
			record TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_annotations_kind_chapter ON annotations(kind, chapter);`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Annotations returns the store for one annotation kind.
func (s *Store) Annotations(kind annotations.Kind) *AnnotationStore {
	return &AnnotationStore{db: s.db, kind: kind, newID: core.NewAnnotationID}
}

// AnnotationStore implements annotations.Store over one kind's rows.
type AnnotationStore struct {
	db    *sql.DB
	kind  annotations.Kind
	newID func() string
}

var _ annotations.Store = (*AnnotationStore)(nil)

func (a *AnnotationStore) List(ctx context.Context, chapter string) ([]annotations.Entry, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, chapter, record
		FROM annotations
		WHERE kind = ? AND chapter = ?
		ORDER BY created_at, id;
	`, string(a.kind), chapter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]annotations.Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (a *AnnotationStore) Get(ctx context.Context, id string) (annotations.Entry, bool, error) {
	row := a.db.QueryRowContext(ctx, `SELECT id, chapter, record FROM annotations WHERE kind = ? AND id = ?`, string(a.kind), id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return annotations.Entry{}, false, nil
	}
	if err != nil {
		return annotations.Entry{}, false, err
	}
	return entry, true, nil
}

func (a *AnnotationStore) Insert(ctx context.Context, chapter string, record wire.Object) (annotations.Entry, error) {
	id := a.newID()
	stamped := annotations.Stamp(record, id)
	body, err := json.Marshal(stamped)
	if err != nil {
		return annotations.Entry{}, fmt.Errorf("%w: %v", annotations.ErrInvalidRecord, err)
	}
	now := time.Now().UnixMilli()
	_, err = a.db.ExecContext(ctx, `INSERT INTO annotations(id, kind, chapter, record, created_at, updated_at) VALUES(?,?,?,?,?,?)`,
		id, string(a.kind), chapter, string(body), now, now)
	if err != nil {
		return annotations.Entry{}, err
	}
	return annotations.Entry{ID: id, Chapter: chapter, Record: stamped}, nil
}

func (a *AnnotationStore) Replace(ctx context.Context, id string, record wire.Object) (bool, error) {
	body, err := json.Marshal(record)
	if err != nil {
		return false, fmt.Errorf("%w: %v", annotations.ErrInvalidRecord, err)
	}
	res, err := a.db.ExecContext(ctx, `UPDATE annotations SET record = ?, updated_at = ? WHERE kind = ? AND id = ?`,
		string(body), time.Now().UnixMilli(), string(a.kind), id)
	return rowsAffected(res, err)
}

func (a *AnnotationStore) Delete(ctx context.Context, id string) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM annotations WHERE kind = ? AND id = ?`, string(a.kind), id)
	return err
}

func (a *AnnotationStore) Len(ctx context.Context) (int, error) {
	var n int
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM annotations WHERE kind = ?`, string(a.kind)).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (annotations.Entry, error) {
	var (
		id      string
		chapter string
		body    string
	)
	if err := row.Scan(&id, &chapter, &body); err != nil {
		return annotations.Entry{}, err
	}
	record, err := wire.DecodeObject(body)
	if err != nil {
		return annotations.Entry{}, fmt.Errorf("decode record %s: %w", id, err)
	}
	return annotations.Entry{ID: id, Chapter: chapter, Record: record}, nil
}

func rowsAffected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
