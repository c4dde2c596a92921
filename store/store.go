// Package store keeps the pipeline run registry in SQLite: which contracts
// have been processed, their content hash, and the history of stage runs.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Document statuses.
const (
	StatusPending  = "pending"
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// ErrNotFound is returned when a document or run does not exist.
var ErrNotFound = errors.New("store: not found")

// Document represents a row in the documents table.
type Document struct {
	ID          int64  `json:"id"`
	Path        string `json:"path"`
	Filename    string `json:"filename"`
	DocumentID  string `json:"document_id"`
	ContentHash string `json:"content_hash"`
	Status      string `json:"status"`
	Source      string `json:"source,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// StageRun represents a row in the stage_runs table.
type StageRun struct {
	ID         string    `json:"id"`
	DocumentID int64     `json:"document_id"`
	Stage      string    `json:"stage"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Duration   int64     `json:"duration_ms"`
}

// Store wraps the SQLite registry database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New opens (or creates) a SQLite database at the given path, creates the
// schema and applies pending migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, now: time.Now}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- Document operations ---

// UpsertDocument inserts or updates a document keyed by path and returns
// its row id.
func (s *Store) UpsertDocument(ctx context.Context, doc Document) (int64, error) {
	if doc.Status == "" {
		doc.Status = StatusPending
	}
	if doc.Filename == "" {
		doc.Filename = filepath.Base(doc.Path)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (path, filename, document_id, content_hash, status, source)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			filename = excluded.filename,
			document_id = excluded.document_id,
			content_hash = excluded.content_hash,
			status = excluded.status,
			source = excluded.source,
			updated_at = CURRENT_TIMESTAMP
	`, doc.Path, doc.Filename, doc.DocumentID, doc.ContentHash, doc.Status, doc.Source); err != nil {
		return 0, fmt.Errorf("upserting document: %w", err)
	}

	// LastInsertId is unreliable after the UPDATE branch.
	var id int64
	if err := s.db.QueryRowContext(ctx, "SELECT id FROM documents WHERE path = ?", doc.Path).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

const documentColumns = `id, path, filename, document_id, content_hash, status, COALESCE(source, ''), created_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (*Document, error) {
	d := &Document{}
	err := row.Scan(&d.ID, &d.Path, &d.Filename, &d.DocumentID, &d.ContentHash,
		&d.Status, &d.Source, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

// GetDocumentByPath retrieves a document by its file path.
func (s *Store) GetDocumentByPath(ctx context.Context, path string) (*Document, error) {
	return scanDocument(s.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE path = ?", path))
}

// GetDocumentByDocID retrieves the most recently updated document with the
// given contract document id.
func (s *Store) GetDocumentByDocID(ctx context.Context, docID string) (*Document, error) {
	return scanDocument(s.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE document_id = ? ORDER BY updated_at DESC, id DESC LIMIT 1", docID))
}

// ListDocuments returns all documents, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+documentColumns+" FROM documents ORDER BY updated_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

// UpdateDocumentStatus updates the status and, when non-empty, the source.
func (s *Store) UpdateDocumentStatus(ctx context.Context, id int64, status, source string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, source = CASE WHEN ? = '' THEN source ELSE ? END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, status, source, source, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteDocument removes a document and its run history.
func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM stage_runs WHERE document_id = ?", id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
		if err != nil {
			return err
		}
		return requireRow(res)
	})
}

// Unchanged reports whether path is registered with the given hash and its
// last run completed.
func (s *Store) Unchanged(ctx context.Context, path, hash string) (bool, error) {
	doc, err := s.GetDocumentByPath(ctx, path)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return doc.ContentHash == hash && doc.Status == StatusComplete, nil
}

// --- Stage runs ---

// StartRun records the start of stage for a document and returns the run id.
func (s *Store) StartRun(ctx context.Context, docID int64, stage string) (string, error) {
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO stage_runs (id, document_id, stage, status, started_at)
		VALUES (?, ?, ?, ?, ?)`, id, docID, stage, StatusRunning, s.now().UTC()); err != nil {
		return "", fmt.Errorf("starting %s run: %w", stage, err)
	}
	return id, nil
}

// FinishRun closes a run as complete, or failed when runErr is non-nil.
func (s *Store) FinishRun(ctx context.Context, runID string, runErr error) error {
	var started time.Time
	if err := s.db.QueryRowContext(ctx, "SELECT started_at FROM stage_runs WHERE id = ?", runID).Scan(&started); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	finished := s.now().UTC()
	status, msg := StatusComplete, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE stage_runs SET status = ?, error = ?, finished_at = ?, duration_ms = ?
		WHERE id = ?`, status, msg, finished, finished.Sub(started).Milliseconds(), runID)
	return err
}

const runColumns = `id, document_id, stage, status, COALESCE(error, ''), started_at, finished_at, duration_ms`

func scanRuns(rows *sql.Rows) ([]StageRun, error) {
	defer rows.Close()
	var runs []StageRun
	for rows.Next() {
		var (
			r        StageRun
			finished sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.Stage, &r.Status, &r.Error,
			&r.StartedAt, &finished, &r.Duration); err != nil {
			return nil, err
		}
		r.FinishedAt = finished.Time
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunsByDocument returns the run history of a document in start order.
func (s *Store) RunsByDocument(ctx context.Context, docID int64) ([]StageRun, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM stage_runs WHERE document_id = ? ORDER BY started_at, rowid", docID)
	if err != nil {
		return nil, err
	}
	return scanRuns(rows)
}

// RecentRuns returns up to limit runs across all documents, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]StageRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM stage_runs ORDER BY started_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	return scanRuns(rows)
}

// Stats holds registry counts.
type Stats struct {
	Documents int `json:"documents"`
	Complete  int `json:"complete"`
	Failed    int `json:"failed"`
	Runs      int `json:"runs"`
}

// Stats returns counts of documents by status and of stage runs.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	queries := []struct {
		query string
		args  []any
		dest  *int
	}{
		{"SELECT COUNT(*) FROM documents", nil, &stats.Documents},
		{"SELECT COUNT(*) FROM documents WHERE status = ?", []any{StatusComplete}, &stats.Complete},
		{"SELECT COUNT(*) FROM documents WHERE status = ?", []any{StatusFailed}, &stats.Failed},
		{"SELECT COUNT(*) FROM stage_runs", nil, &stats.Runs},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query, q.args...).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", q.query, err)
		}
	}
	return stats, nil
}

// FileHash computes the SHA-256 hash of a file's content.
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
