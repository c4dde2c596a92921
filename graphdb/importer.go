package graphdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/brunobiangulo/contractgraph/cypher"
)

// Importer writes contract graphs.
type Importer struct {
	db Runner
}

func NewImporter(db Runner) *Importer {
	return &Importer{db: db}
}

// Import runs stmts in a single transaction; either all apply or none do.
func (im *Importer) Import(ctx context.Context, stmts []cypher.Statement) error {
	if len(stmts) == 0 {
		return errors.New("no statements to import")
	}
	start := time.Now()
	if err := im.db.ExecuteWrite(ctx, stmts); err != nil {
		return fmt.Errorf("importing graph: %w", err)
	}
	slog.Info("graphdb: import complete",
		"statements", len(stmts),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// ImportScript parses a script written by cypher.WriteScript and imports it.
func (im *Importer) ImportScript(ctx context.Context, r io.Reader) error {
	stmts, err := cypher.ParseScript(r)
	if err != nil {
		return err
	}
	return im.Import(ctx, stmts)
}
