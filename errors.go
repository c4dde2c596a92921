package contractgraph

import (
	"errors"

	"github.com/brunobiangulo/contractgraph/extract"
	"github.com/brunobiangulo/contractgraph/graphdb"
	"github.com/brunobiangulo/contractgraph/parser"
	"github.com/brunobiangulo/contractgraph/store"
)

var (
	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("contractgraph: invalid configuration")

	// ErrUnsupportedFormat is returned for inputs or outputs the pipeline
	// cannot handle.
	ErrUnsupportedFormat = errors.New("contractgraph: unsupported format")

	// ErrParserNotConfigured is returned when LlamaParse is selected
	// without an API key.
	ErrParserNotConfigured = parser.ErrNotConfigured

	// ErrNoUsableInput is returned when neither the parsed JSON nor the
	// text fallback yields a contract.
	ErrNoUsableInput = extract.ErrNoUsableInput

	// ErrContractNotFound is returned when the graph holds no contract for
	// a document id.
	ErrContractNotFound = graphdb.ErrContractNotFound

	// ErrDocumentNotFound is returned when the run registry has no entry
	// for a document id.
	ErrDocumentNotFound = store.ErrNotFound

	// ErrGraphUnavailable is returned when Neo4j is not configured or
	// unreachable.
	ErrGraphUnavailable = graphdb.ErrUnavailable
)
