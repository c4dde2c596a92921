// Package extract turns parser output into a structured contract: metadata,
// parties, articles and sections, plus the NLP enhancement pass. Parsed
// JSON is preferred; plain text is the fallback.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/brunobiangulo/contractgraph/contract"
	"github.com/brunobiangulo/contractgraph/nlp"
	"github.com/brunobiangulo/contractgraph/parser"
)

// ErrNoUsableInput is returned when the parsed JSON is unusable and no
// text fallback exists.
var ErrNoUsableInput = errors.New("extract: no usable input")

const defaultConcurrency = 4

// Extractor runs the extraction stages with a fixed recognizer and classifier.
type Extractor struct {
	ner         nlp.Recognizer
	cls         nlp.Classifier
	concurrency int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithConcurrency bounds the number of concurrent model passes in Enhance.
func WithConcurrency(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

func New(ner nlp.Recognizer, cls nlp.Classifier, opts ...Option) *Extractor {
	e := &Extractor{ner: ner, cls: cls, concurrency: defaultConcurrency}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Process builds a contract from jsonPath, falling back to txtPath. It
// returns the contract and the full text it was read from.
//
// The JSON is trusted only when it has pages with text and yields at least
// one article with content. A trusted result missing its title is
// completed from the text file (source "hybrid").
func (e *Extractor) Process(ctx context.Context, jsonPath, txtPath string) (*contract.Contract, string, error) {
	c, text, jsonErr := e.fromJSON(ctx, jsonPath)
	if jsonErr == nil {
		if c.Metadata.Title == "" && fileExists(txtPath) {
			if err := e.supplement(c, txtPath); err != nil {
				slog.Warn("extract: hybrid supplement failed", "file", txtPath, "error", err)
			}
		}
		e.finish(c, text, jsonPath)
		return c, text, nil
	}
	if ctx.Err() != nil {
		return nil, "", ctx.Err()
	}

	slog.Warn("extract: JSON unusable, trying text fallback", "file", jsonPath, "reason", jsonErr)
	if !fileExists(txtPath) {
		return nil, "", fmt.Errorf("%w: %v", ErrNoUsableInput, jsonErr)
	}
	c, text, txtErr := fromText(txtPath)
	if txtErr != nil {
		return nil, "", fmt.Errorf("extracting from JSON and text failed: %w", errors.Join(jsonErr, txtErr))
	}
	e.finish(c, text, txtPath)
	return c, text, nil
}

func (e *Extractor) fromJSON(ctx context.Context, path string) (*contract.Contract, string, error) {
	if path == "" {
		return nil, "", errors.New("no JSON input")
	}
	docs, err := parser.LoadDocuments(path)
	if err != nil {
		return nil, "", err
	}
	var pages []parser.Page
	for _, d := range docs {
		if len(d.Pages) > 0 {
			pages = d.Pages
			break
		}
	}
	if len(pages) == 0 {
		return nil, "", errors.New("JSON has no pages")
	}
	hasText := false
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			hasText = true
			break
		}
	}
	if !hasText {
		return nil, "", errors.New("JSON pages have no text")
	}

	articles := ArticlesFromPages(pages)
	if len(articles) == 0 {
		return nil, "", errors.New("no articles found in JSON")
	}
	withContent := false
	for _, a := range articles {
		if a.HasContent() {
			withContent = true
			break
		}
	}
	if !withContent {
		return nil, "", errors.New("articles from JSON have no content")
	}

	md, err := e.MetadataFromPages(ctx, pages)
	if err != nil {
		return nil, "", fmt.Errorf("metadata: %w", err)
	}
	parties, err := e.PartiesFromPages(ctx, pages)
	if err != nil {
		return nil, "", fmt.Errorf("parties: %w", err)
	}
	if len(parties) == 0 {
		parties = PartiesFromMetadata(md)
	}

	c := &contract.Contract{
		Source:   contract.SourceJSON,
		Metadata: md,
		Parties:  parties,
		Articles: articles,
	}
	return c, joinPages(pages), nil
}

func fromText(path string) (*contract.Contract, string, error) {
	text, err := parser.LoadText(path)
	if err != nil {
		return nil, "", err
	}
	if strings.TrimSpace(text) == "" {
		return nil, "", fmt.Errorf("text file %s is empty", filepath.Base(path))
	}
	md := MetadataFromText(text)
	c := &contract.Contract{
		Source:   contract.SourceTXT,
		Metadata: md,
		Parties:  PartiesFromMetadata(md),
		Articles: ArticlesFromText(text),
	}
	return c, text, nil
}

// supplement fills missing metadata fields from the text file.
func (e *Extractor) supplement(c *contract.Contract, txtPath string) error {
	text, err := parser.LoadText(txtPath)
	if err != nil {
		return err
	}
	md := MetadataFromText(text)
	if c.Metadata.DocumentType == "" {
		c.Metadata.DocumentType = md.DocumentType
	}
	if c.Metadata.EffectiveDate == "" {
		c.Metadata.EffectiveDate = md.EffectiveDate
	}
	if c.Metadata.ExecutionDate == "" {
		c.Metadata.ExecutionDate = md.ExecutionDate
	}
	if c.Metadata.Title == "" {
		c.Metadata.Title = md.Title
	}
	if len(c.Articles) == 0 {
		c.Articles = ArticlesFromText(text)
	}
	c.Source = contract.SourceHybrid
	slog.Info("extract: supplemented metadata from text", "file", filepath.Base(txtPath))
	return nil
}

func (e *Extractor) finish(c *contract.Contract, text, path string) {
	if c.DocumentID == "" {
		c.DocumentID = contract.DocumentID(path)
	}
	if c.SourceDocument == "" {
		c.SourceDocument = filepath.Base(path)
	}
	if c.Parties == nil {
		c.Parties = []contract.Party{}
	}
	c.Definitions = Definitions(text)
	c.CrossReferences = CrossReferences(c.Articles)
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
