// Package graphdb loads contract graphs into Neo4j and reads them back.
package graphdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/brunobiangulo/contractgraph/cypher"
)

var (
	// ErrUnavailable is returned when the database cannot be reached.
	ErrUnavailable = errors.New("graphdb: database unavailable")
	// ErrContractNotFound is returned when no Contract node has the
	// requested document id.
	ErrContractNotFound = errors.New("graphdb: contract not found")
)

// Config holds Neo4j connection settings.
type Config struct {
	URI      string `json:"uri" yaml:"uri"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	Database string `json:"database" yaml:"database"`
}

// Runner executes Cypher. Client is the production implementation.
type Runner interface {
	// Run executes a read query and returns each record as a map.
	Run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
	// ExecuteWrite runs statements in one write transaction.
	ExecuteWrite(ctx context.Context, stmts []cypher.Statement) error
}

// Client wraps a Neo4j driver.
type Client struct {
	driver   neo4j.DriverWithContext
	database string
}

// Open connects to Neo4j and verifies connectivity.
func Open(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("%w: no uri configured", ErrUnavailable)
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	slog.Debug("graphdb: connected", "uri", cfg.URI, "database", cfg.Database)
	return &Client{driver: driver, database: cfg.Database}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func (c *Client) Run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead, DatabaseName: c.database})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("collecting results: %w", err)
	}
	rows := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		rows = append(rows, rec.AsMap())
	}
	return rows, nil
}

func (c *Client) ExecuteWrite(ctx context.Context, stmts []cypher.Statement) error {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite, DatabaseName: c.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for i, s := range stmts {
			res, err := tx.Run(ctx, s.Query, s.Params)
			if err != nil {
				return nil, fmt.Errorf("statement %d: %w", i, err)
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, fmt.Errorf("statement %d: %w", i, err)
			}
		}
		return nil, nil
	})
	return err
}
