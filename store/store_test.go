//go:build cgo

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// fixedClock returns a clock that advances by step on every call.
func fixedClock(start time.Time, step time.Duration) func() time.Time {
	cur := start
	return func() time.Time {
		t := cur
		cur = cur.Add(step)
		return t
	}
}

func sampleDoc(path string) Document {
	return Document{
		Path:        path,
		DocumentID:  "nda_2024",
		ContentHash: "abc123",
	}
}

func TestNewCreatesParentDir(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "sub", "dir", "test.db"))
	require.NoError(t, err)
	s.Close()
}

func TestMigrationsApplied(t *testing.T) {
	s := newTestStore(t)
	v, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, migrations[len(migrations)-1].version, v)

	// Reapplying is a no-op.
	require.NoError(t, s.Migrate(context.Background()))
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := New(path)
	require.NoError(t, err)
	_, err = s.UpsertDocument(context.Background(), sampleDoc("/data/nda.pdf"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = New(path)
	require.NoError(t, err)
	defer s.Close()
	docs, err := s.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestUpsertAndGetDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.UpsertDocument(ctx, sampleDoc("/data/nda.pdf"))
	require.NoError(t, err)
	require.NotZero(t, id)

	got, err := s.GetDocumentByPath(ctx, "/data/nda.pdf")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "nda.pdf", got.Filename)
	assert.Equal(t, "nda_2024", got.DocumentID)
	assert.Equal(t, StatusPending, got.Status)
	assert.Empty(t, got.Source)

	byDoc, err := s.GetDocumentByDocID(ctx, "nda_2024")
	require.NoError(t, err)
	assert.Equal(t, id, byDoc.ID)
}

func TestUpsertDocumentUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id1, err := s.UpsertDocument(ctx, sampleDoc("/data/nda.pdf"))
	require.NoError(t, err)

	doc := sampleDoc("/data/nda.pdf")
	doc.ContentHash = "def456"
	doc.Status = StatusComplete
	id2, err := s.UpsertDocument(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	got, err := s.GetDocumentByPath(ctx, "/data/nda.pdf")
	require.NoError(t, err)
	assert.Equal(t, "def456", got.ContentHash)
	assert.Equal(t, StatusComplete, got.Status)
}

func TestGetDocumentNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetDocumentByPath(context.Background(), "/missing.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetDocumentByDocID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateDocumentStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, err := s.UpsertDocument(ctx, sampleDoc("/data/nda.pdf"))
	require.NoError(t, err)

	require.NoError(t, s.UpdateDocumentStatus(ctx, id, StatusComplete, "hybrid"))
	got, err := s.GetDocumentByPath(ctx, "/data/nda.pdf")
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, got.Status)
	assert.Equal(t, "hybrid", got.Source)

	// An empty source keeps the previous one.
	require.NoError(t, s.UpdateDocumentStatus(ctx, id, StatusFailed, ""))
	got, err = s.GetDocumentByPath(ctx, "/data/nda.pdf")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "hybrid", got.Source)

	assert.ErrorIs(t, s.UpdateDocumentStatus(ctx, id+100, StatusFailed, ""), ErrNotFound)
}

func TestUnchanged(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok, err := s.Unchanged(ctx, "/data/nda.pdf", "abc123")
	require.NoError(t, err)
	assert.False(t, ok, "unknown document")

	id, err := s.UpsertDocument(ctx, sampleDoc("/data/nda.pdf"))
	require.NoError(t, err)
	ok, err = s.Unchanged(ctx, "/data/nda.pdf", "abc123")
	require.NoError(t, err)
	assert.False(t, ok, "not yet complete")

	require.NoError(t, s.UpdateDocumentStatus(ctx, id, StatusComplete, ""))
	ok, err = s.Unchanged(ctx, "/data/nda.pdf", "abc123")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Unchanged(ctx, "/data/nda.pdf", "other")
	require.NoError(t, err)
	assert.False(t, ok, "hash changed")
}

func TestStageRuns(t *testing.T) {
	s := newTestStore(t)
	s.now = fixedClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), 1500*time.Millisecond)
	ctx := context.Background()

	docID, err := s.UpsertDocument(ctx, sampleDoc("/data/nda.pdf"))
	require.NoError(t, err)

	convert, err := s.StartRun(ctx, docID, "convert")
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, convert, nil))

	extract, err := s.StartRun(ctx, docID, "extract")
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, extract, errors.New("no usable input")))

	assert.NotEqual(t, convert, extract)

	runs, err := s.RunsByDocument(ctx, docID)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "convert", runs[0].Stage)
	assert.Equal(t, StatusComplete, runs[0].Status)
	assert.Empty(t, runs[0].Error)
	assert.Equal(t, int64(1500), runs[0].Duration)
	assert.False(t, runs[0].FinishedAt.IsZero())

	assert.Equal(t, "extract", runs[1].Stage)
	assert.Equal(t, StatusFailed, runs[1].Status)
	assert.Equal(t, "no usable input", runs[1].Error)

	recent, err := s.RecentRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, extract, recent[0].ID)
}

func TestFinishRunUnknown(t *testing.T) {
	s := newTestStore(t)
	assert.ErrorIs(t, s.FinishRun(context.Background(), "nope", nil), ErrNotFound)
}

func TestDeleteDocumentRemovesRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.UpsertDocument(ctx, sampleDoc("/data/nda.pdf"))
	require.NoError(t, err)
	_, err = s.StartRun(ctx, id, "convert")
	require.NoError(t, err)

	require.NoError(t, s.DeleteDocument(ctx, id))
	runs, err := s.RunsByDocument(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.ErrorIs(t, s.DeleteDocument(ctx, id), ErrNotFound)
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.UpsertDocument(ctx, sampleDoc("/data/a.pdf"))
	require.NoError(t, err)
	b, err := s.UpsertDocument(ctx, sampleDoc("/data/b.pdf"))
	require.NoError(t, err)
	require.NoError(t, s.UpdateDocumentStatus(ctx, a, StatusComplete, ""))
	require.NoError(t, s.UpdateDocumentStatus(ctx, b, StatusFailed, ""))
	_, err = s.StartRun(ctx, a, "convert")
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Stats{Documents: 2, Complete: 1, Failed: 1, Runs: 1}, stats)
}

func TestFileHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	h, err := FileHash(path)
	require.NoError(t, err)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", h)

	_, err = FileHash(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
