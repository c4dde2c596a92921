package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotConfigured is returned when the hosted parser is selected without credentials.
var ErrNotConfigured = errors.New("parser: LlamaParse API key not configured")

// Format is an output representation of a converted document.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatAll      Format = "all"
)

// AllFormats lists every concrete format in the order they are written.
var AllFormats = []Format{FormatJSON, FormatMarkdown, FormatText}

// ParseFormats expands a user supplied format name. "all" (or empty)
// yields every concrete format.
func ParseFormats(s string) ([]Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatAll, "":
		return append([]Format(nil), AllFormats...), nil
	case FormatJSON:
		return []Format{FormatJSON}, nil
	case FormatMarkdown, "md":
		return []Format{FormatMarkdown}, nil
	case FormatText, "txt":
		return []Format{FormatText}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want json, markdown, text or all)", s)
	}
}

// Page is one page of a parsed document, in the shape the hosted parser emits.
type Page struct {
	Number   int    `json:"page"`
	Text     string `json:"text"`
	Markdown string `json:"md,omitempty"`
}

// Document is one parsed file.
type Document struct {
	Pages       []Page         `json:"pages"`
	JobMetadata map[string]any `json:"job_metadata,omitempty"`
	FilePath    string         `json:"file_path,omitempty"`
}

// Text joins the page texts with a blank line.
func (d Document) Text() string {
	parts := make([]string, 0, len(d.Pages))
	for _, p := range d.Pages {
		parts = append(parts, p.Text)
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

// Markdown joins the page markdown with a blank line, falling back to the
// page text when a page carries no markdown.
func (d Document) Markdown() string {
	parts := make([]string, 0, len(d.Pages))
	for _, p := range d.Pages {
		if p.Markdown != "" {
			parts = append(parts, p.Markdown)
		} else {
			parts = append(parts, p.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

// Result is what a converter produces for one input file.
type Result struct {
	Documents []Document
	Markdown  string
	Text      string
	Method    string // "llamaparse" or "native"
}

// Pages returns the pages of the first document, or nil.
func (r *Result) Pages() []Page {
	if r == nil || len(r.Documents) == 0 {
		return nil
	}
	return r.Documents[0].Pages
}

// Converter turns a source document into the requested formats.
type Converter interface {
	Convert(ctx context.Context, path string, formats []Format) (*Result, error)
	Name() string
}

// DecodeDocuments accepts either a single document object or an array of them.
func DecodeDocuments(data []byte) ([]Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty parse result")
	}
	if trimmed[0] == '[' {
		var docs []Document
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			return nil, fmt.Errorf("decoding parse result array: %w", err)
		}
		return docs, nil
	}
	var doc Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("decoding parse result: %w", err)
	}
	return []Document{doc}, nil
}

// LoadDocuments reads a JSON parse result from disk.
func LoadDocuments(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeDocuments(data)
}

// LoadText reads a plain text parse result from disk.
func LoadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading text file: %w", err)
	}
	return string(data), nil
}

func wants(formats []Format, f Format) bool {
	for _, x := range formats {
		if x == f || x == FormatAll {
			return true
		}
	}
	return false
}
