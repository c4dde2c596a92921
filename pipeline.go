// Package contractgraph turns PDF contracts into a Neo4j graph and a
// Markdown summary. The Pipeline type runs each stage on its own or all of
// them in sequence.
package contractgraph

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/brunobiangulo/contractgraph/contract"
	"github.com/brunobiangulo/contractgraph/cypher"
	"github.com/brunobiangulo/contractgraph/extract"
	"github.com/brunobiangulo/contractgraph/graphdb"
	"github.com/brunobiangulo/contractgraph/llm"
	"github.com/brunobiangulo/contractgraph/nlp"
	"github.com/brunobiangulo/contractgraph/parser"
	"github.com/brunobiangulo/contractgraph/render"
	"github.com/brunobiangulo/contractgraph/store"
)

// Stage names, as recorded in the run registry.
const (
	StageConvert   = "convert"
	StageExtract   = "extract"
	StageCypher    = "cypher"
	StageImport    = "import"
	StageSummarize = "summarize"
)

// Output suffixes for derived files.
const (
	enhancedSuffix = "_enhanced.json"
	summarySuffix  = "_summary.md"
	cypherExt      = ".cypher"
)

// Pipeline wires the parser, extractor, graph and renderer together.
type Pipeline struct {
	cfg       Config
	parsers   *parser.Registry
	extractor *extract.Extractor
	renderer  *render.Renderer
	now       func() time.Time

	graphMu sync.Mutex
	graph   graphdb.Runner
	client  *graphdb.Client

	storeMu sync.Mutex
	store   *store.Store
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithGraph uses r instead of connecting to the configured Neo4j server.
func WithGraph(r graphdb.Runner) Option {
	return func(p *Pipeline) { p.graph = r }
}

// WithConverter registers an additional conversion method.
func WithConverter(c parser.Converter) Option {
	return func(p *Pipeline) { p.parsers.Register(c) }
}

// WithStore uses an already opened run registry.
func WithStore(s *store.Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithClock overrides the time source for generated timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New validates cfg and builds a Pipeline. The graph database and the run
// registry are opened on first use.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	parsers := parser.NewRegistry()
	parsers.SetLlamaParse(parser.LlamaParseConfig{
		APIKey:       cfg.LlamaParse.APIKey,
		BaseURL:      cfg.LlamaParse.BaseURL,
		PollInterval: cfg.LlamaParse.PollInterval,
		MaxPolls:     cfg.LlamaParse.MaxPolls,
	})

	var chat llm.Provider
	if cfg.NLP.Mode == nlp.ModeLLM || cfg.NLP.Mode == nlp.ModeEnsemble {
		var err error
		chat, err = llm.NewProvider(cfg.NLP.LLM)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	ner, cls, err := nlp.New(cfg.NLP.Mode, chat, nlp.LLMOptions{
		Model:             cfg.NLP.LLM.Model,
		RequestsPerSecond: cfg.NLP.RequestsPerSecond,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	renderer, err := render.New(cfg.TemplateDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	p := &Pipeline{
		cfg:       cfg,
		parsers:   parsers,
		extractor: extract.New(ner, cls, extract.WithConcurrency(cfg.NLP.Concurrency)),
		renderer:  renderer,
		now:       time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Config returns the validated configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Close releases the graph connection and the run registry.
func (p *Pipeline) Close() error {
	var errs []error
	p.graphMu.Lock()
	if p.client != nil {
		errs = append(errs, p.client.Close(context.Background()))
		p.client, p.graph = nil, nil
	}
	p.graphMu.Unlock()

	p.storeMu.Lock()
	if p.store != nil {
		errs = append(errs, p.store.Close())
		p.store = nil
	}
	p.storeMu.Unlock()
	return errors.Join(errs...)
}

// Registry opens the SQLite run registry on first use.
func (p *Pipeline) Registry() (*store.Store, error) {
	p.storeMu.Lock()
	defer p.storeMu.Unlock()
	if p.store == nil {
		s, err := store.New(p.cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening run registry: %w", err)
		}
		p.store = s
	}
	return p.store, nil
}

func (p *Pipeline) graphRunner(ctx context.Context) (graphdb.Runner, error) {
	p.graphMu.Lock()
	defer p.graphMu.Unlock()
	if p.graph == nil {
		c, err := graphdb.Open(ctx, p.cfg.Neo4j)
		if err != nil {
			return nil, err
		}
		p.client, p.graph = c, c
	}
	return p.graph, nil
}

// --- Stages ---

// ConvertOptions tunes Convert.
type ConvertOptions struct {
	Formats []parser.Format // empty means all
	Method  string          // empty picks the configured default
	OutDir  string          // empty writes next to the input
}

// Convert turns a PDF into the requested formats and returns the written
// paths.
func (p *Pipeline) Convert(ctx context.Context, pdfPath string, opts ConvertOptions) ([]string, error) {
	start := time.Now()
	if !strings.EqualFold(filepath.Ext(pdfPath), ".pdf") {
		return nil, fmt.Errorf("%w: %s is not a PDF", ErrUnsupportedFormat, filepath.Base(pdfPath))
	}
	if _, err := os.Stat(pdfPath); err != nil {
		return nil, fmt.Errorf("convert: %w", err)
	}
	formats := opts.Formats
	if len(formats) == 0 {
		formats = parser.AllFormats
	}
	method := opts.Method
	if method == "" {
		method = p.cfg.ParseMethod
	}
	conv, err := p.parsers.Get(method)
	if err != nil {
		return nil, err
	}

	res, err := conv.Convert(ctx, pdfPath, formats)
	if err != nil {
		return nil, fmt.Errorf("converting %s: %w", filepath.Base(pdfPath), err)
	}
	written, err := parser.WriteOutputs(res, pdfPath, opts.OutDir, formats)
	if err != nil {
		return written, err
	}
	slog.Info("convert: done",
		"file", filepath.Base(pdfPath),
		"method", res.Method,
		"pages", len(res.Pages()),
		"outputs", len(written),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return written, nil
}

// EnhancedPath is where Extract writes the contract for a parsed JSON file.
func EnhancedPath(jsonPath string) string {
	return strings.TrimSuffix(jsonPath, filepath.Ext(jsonPath)) + enhancedSuffix
}

// Extract builds the enhanced contract from jsonPath, falling back to
// txtPath, and saves it to outPath. An empty txtPath uses the text output
// beside jsonPath; an empty outPath uses EnhancedPath. A failing
// enhancement pass is logged and the structural contract is still saved.
func (p *Pipeline) Extract(ctx context.Context, jsonPath, txtPath, outPath string) (*contract.Contract, error) {
	start := time.Now()
	if txtPath == "" && jsonPath != "" {
		txtPath = parser.OutputPath(jsonPath, parser.FormatText)
	}
	if outPath == "" {
		base := jsonPath
		if base == "" {
			base = txtPath
		}
		outPath = EnhancedPath(base)
	}

	c, text, err := p.extractor.Process(ctx, jsonPath, txtPath)
	if err != nil {
		return nil, err
	}
	if err := p.extractor.Enhance(ctx, c, text); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("extract: enhancement failed, keeping structure only", "doc_id", c.DocumentID, "error", err)
	}
	if err := c.Save(outPath); err != nil {
		return nil, fmt.Errorf("saving contract: %w", err)
	}
	slog.Info("extract: done",
		"doc_id", c.DocumentID,
		"source", c.Source,
		"articles", len(c.Articles),
		"parties", len(c.Parties),
		"file", filepath.Base(outPath),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return c, nil
}

// GenerateCypher builds the graph statements for c and, when outPath is
// set, writes them as a cypher-shell script.
func (p *Pipeline) GenerateCypher(c *contract.Contract, outPath string) ([]cypher.Statement, error) {
	now := p.now()
	g := cypher.Build(c, cypher.ImportMeta{
		DocumentName: c.SourceDocument,
		DocumentID:   c.DocumentID,
		Timestamp:    now,
	})
	stmts := cypher.Statements(g)
	if outPath == "" {
		return stmts, nil
	}

	f, err := os.Create(outPath)
	if err != nil {
		return nil, fmt.Errorf("creating script: %w", err)
	}
	if err := cypher.WriteScript(f, stmts, now); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing script: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	slog.Info("cypher: script written",
		"doc_id", c.DocumentID,
		"nodes", len(g.Nodes),
		"relationships", len(g.Relationships),
		"file", filepath.Base(outPath),
	)
	return stmts, nil
}

// Import writes statements to the graph database in one transaction.
func (p *Pipeline) Import(ctx context.Context, stmts []cypher.Statement) error {
	db, err := p.graphRunner(ctx)
	if err != nil {
		return err
	}
	return graphdb.NewImporter(db).Import(ctx, stmts)
}

// ImportScript imports a script produced by GenerateCypher.
func (p *Pipeline) ImportScript(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	defer f.Close()

	db, err := p.graphRunner(ctx)
	if err != nil {
		return err
	}
	return graphdb.NewImporter(db).ImportScript(ctx, f)
}

// SummaryRequest selects the contract to summarise. InputPath (an enhanced
// JSON file) takes precedence over DocumentID, which reads from the graph.
type SummaryRequest struct {
	DocumentID string
	InputPath  string
	HTML       bool
}

// Summarize renders the contract summary as Markdown, or sanitised HTML
// when requested.
func (p *Pipeline) Summarize(ctx context.Context, req SummaryRequest) ([]byte, error) {
	var (
		c      *contract.Contract
		source string
		err    error
	)
	switch {
	case req.InputPath != "":
		c, err = contract.Load(req.InputPath)
		source = render.SourceJSON
	case req.DocumentID != "":
		var db graphdb.Runner
		if db, err = p.graphRunner(ctx); err == nil {
			c, err = graphdb.NewReader(db).ContractInfo(ctx, req.DocumentID)
		}
		source = render.SourceGraph
	default:
		return nil, errors.New("summarize: a document id or input file is required")
	}
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := p.renderer.RenderMarkdown(&buf, render.Summary{Contract: c, GeneratedOn: p.now(), Source: source}); err != nil {
		return nil, err
	}
	if req.HTML {
		return render.RenderHTML(buf.Bytes()), nil
	}
	return buf.Bytes(), nil
}

// --- Full run ---

// RunOptions tunes Run.
type RunOptions struct {
	Method string
	Force  bool // convert even when the PDF is unchanged
}

// RunResult lists what a full run produced.
type RunResult struct {
	DocumentID    string        `json:"document_id"`
	Source        string        `json:"source"`
	Outputs       []string      `json:"outputs"`
	EnhancedPath  string        `json:"enhanced_path"`
	CypherPath    string        `json:"cypher_path"`
	SummaryPath   string        `json:"summary_path"`
	Imported      bool          `json:"imported"`
	SkippedParse  bool          `json:"skipped_parse"`
	Elapsed       time.Duration `json:"elapsed"`
	SummarySource string        `json:"summary_source"`
}

// Run executes every stage for one PDF, recording each in the registry.
// Conversion is skipped when the PDF hash matches the registry and its
// outputs still exist. An unreachable graph database downgrades the run:
// the import is skipped and the summary is rendered from JSON.
func (p *Pipeline) Run(ctx context.Context, pdfPath string, opts RunOptions) (*RunResult, error) {
	start := time.Now()
	abs, err := filepath.Abs(pdfPath)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(filepath.Ext(abs), ".pdf") {
		return nil, fmt.Errorf("%w: %s is not a PDF", ErrUnsupportedFormat, filepath.Base(abs))
	}
	hash, err := store.FileHash(abs)
	if err != nil {
		return nil, fmt.Errorf("hashing %s: %w", filepath.Base(abs), err)
	}

	reg, err := p.Registry()
	if err != nil {
		return nil, err
	}
	base := filepath.Join(p.cfg.DataDir, filepath.Base(abs))
	jsonPath := parser.OutputPath(base, parser.FormatJSON)
	res := &RunResult{
		DocumentID:   contract.DocumentID(abs),
		EnhancedPath: EnhancedPath(jsonPath),
		CypherPath:   strings.TrimSuffix(base, filepath.Ext(base)) + cypherExt,
		SummaryPath:  strings.TrimSuffix(base, filepath.Ext(base)) + summarySuffix,
	}

	// Only a completed run vouches for the outputs on disk; a failed
	// conversion leaves the previous PDF's JSON behind.
	skip := false
	if !opts.Force {
		unchanged, err := reg.Unchanged(ctx, abs, hash)
		if err != nil {
			return nil, err
		}
		skip = unchanged && fileExists(jsonPath)
	}
	if err := p.replaceOtherPath(ctx, reg, res.DocumentID, abs); err != nil {
		return nil, err
	}
	docRow, err := reg.UpsertDocument(ctx, store.Document{
		Path:        abs,
		DocumentID:  res.DocumentID,
		ContentHash: hash,
		Status:      store.StatusRunning,
	})
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*RunResult, error) {
		if uerr := reg.UpdateDocumentStatus(context.WithoutCancel(ctx), docRow, store.StatusFailed, ""); uerr != nil {
			slog.Warn("run: recording failure", "doc_id", res.DocumentID, "error", uerr)
		}
		return res, err
	}

	if skip {
		res.SkippedParse = true
		res.Outputs = existing(parser.OutputPath(base, parser.FormatJSON), parser.OutputPath(base, parser.FormatMarkdown), parser.OutputPath(base, parser.FormatText))
		slog.Info("run: PDF unchanged, reusing parsed outputs", "doc_id", res.DocumentID)
	} else {
		err := p.stage(ctx, reg, docRow, StageConvert, func() error {
			var err error
			res.Outputs, err = p.Convert(ctx, abs, ConvertOptions{Method: opts.Method, OutDir: p.cfg.DataDir})
			return err
		})
		if err != nil {
			return fail(err)
		}
	}

	var c *contract.Contract
	err = p.stage(ctx, reg, docRow, StageExtract, func() error {
		var err error
		c, err = p.Extract(ctx, jsonPath, "", res.EnhancedPath)
		return err
	})
	if err != nil {
		return fail(err)
	}
	res.Source = string(c.Source)

	var stmts []cypher.Statement
	err = p.stage(ctx, reg, docRow, StageCypher, func() error {
		var err error
		stmts, err = p.GenerateCypher(c, res.CypherPath)
		return err
	})
	if err != nil {
		return fail(err)
	}

	err = p.stage(ctx, reg, docRow, StageImport, func() error {
		return p.Import(ctx, stmts)
	})
	switch {
	case err == nil:
		res.Imported = true
	case errors.Is(err, ErrGraphUnavailable):
		slog.Warn("run: graph database unavailable, skipping import", "doc_id", res.DocumentID, "error", err)
	default:
		return fail(err)
	}

	err = p.stage(ctx, reg, docRow, StageSummarize, func() error {
		req := SummaryRequest{InputPath: res.EnhancedPath}
		res.SummarySource = render.SourceJSON
		if res.Imported {
			req = SummaryRequest{DocumentID: c.DocumentID}
			res.SummarySource = render.SourceGraph
		}
		md, err := p.Summarize(ctx, req)
		if err != nil {
			return err
		}
		return os.WriteFile(res.SummaryPath, md, 0644)
	})
	if err != nil {
		return fail(err)
	}

	if err := reg.UpdateDocumentStatus(ctx, docRow, store.StatusComplete, res.Source); err != nil {
		return res, err
	}
	res.Elapsed = time.Since(start).Round(time.Millisecond)
	slog.Info("run: complete", "doc_id", res.DocumentID, "imported", res.Imported, "elapsed", res.Elapsed)
	return res, nil
}

// replaceOtherPath drops the registry entry of a contract with the same
// document id registered from another path. Both write the same outputs
// and graph nodes, so this run replaces it.
func (p *Pipeline) replaceOtherPath(ctx context.Context, reg *store.Store, docID, path string) error {
	prev, err := reg.GetDocumentByDocID(ctx, docID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if prev.Path == path {
		return nil
	}
	if err := reg.DeleteDocument(ctx, prev.ID); err != nil {
		return fmt.Errorf("replacing %s: %w", prev.Path, err)
	}
	slog.Info("run: replacing document registered from another path", "doc_id", docID, "previous", prev.Path)
	return nil
}

// stage runs fn as a registry-tracked stage.
func (p *Pipeline) stage(ctx context.Context, reg *store.Store, docRow int64, name string, fn func() error) error {
	runID, err := reg.StartRun(ctx, docRow, name)
	if err != nil {
		return err
	}
	stageErr := fn()
	if err := reg.FinishRun(context.WithoutCancel(ctx), runID, stageErr); err != nil {
		slog.Warn("run: recording stage", "stage", name, "run_id", runID, "error", err)
	}
	if stageErr != nil {
		return fmt.Errorf("%s: %w", name, stageErr)
	}
	return nil
}

// Status is a snapshot of the run registry.
type Status struct {
	Stats     *store.Stats     `json:"stats"`
	Documents []store.Document `json:"documents"`
	Runs      []store.StageRun `json:"runs"`
}

// Status reports registered documents and the most recent stage runs.
func (p *Pipeline) Status(ctx context.Context, limit int) (*Status, error) {
	reg, err := p.Registry()
	if err != nil {
		return nil, err
	}
	stats, err := reg.Stats(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := reg.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	runs, err := reg.RecentRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	return &Status{Stats: stats, Documents: docs, Runs: runs}, nil
}

// DocumentStatus is one document's registry entry with its full run
// history.
type DocumentStatus struct {
	Document *store.Document  `json:"document"`
	Runs     []store.StageRun `json:"runs"`
}

// DocumentStatus looks up a contract by document id. It returns
// ErrDocumentNotFound when the contract was never run.
func (p *Pipeline) DocumentStatus(ctx context.Context, docID string) (*DocumentStatus, error) {
	reg, err := p.Registry()
	if err != nil {
		return nil, err
	}
	doc, err := reg.GetDocumentByDocID(ctx, docID)
	if err != nil {
		return nil, err
	}
	runs, err := reg.RunsByDocument(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	return &DocumentStatus{Document: doc, Runs: runs}, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func existing(paths ...string) []string {
	var out []string
	for _, p := range paths {
		if fileExists(p) {
			out = append(out, p)
		}
	}
	return out
}
