package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Layout summarises how hard a PDF is for plain text extraction.
type Layout struct {
	Pages       int
	TablePages  int
	MultiColumn int
	EmptyPages  int // no extractable text, most likely scanned
}

// NeedsHostedParser reports whether native extraction would lose
// structure: any scanned page, or tables or columns on a fifth of the pages.
func (l Layout) NeedsHostedParser() bool {
	if l.Pages == 0 || l.EmptyPages > 0 {
		return true
	}
	return (l.TablePages+l.MultiColumn)*5 >= l.Pages
}

// DetectLayout inspects every page's plain text.
func DetectLayout(path string) (Layout, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return Layout{}, err
	}
	defer f.Close()

	var l Layout
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		l.Pages++
		text, err := page.GetPlainText(nil)
		if err != nil || strings.TrimSpace(text) == "" {
			l.EmptyPages++
			continue
		}
		table, multi := pageLayout(text)
		if table {
			l.TablePages++
		}
		if multi {
			l.MultiColumn++
		}
	}
	return l, nil
}

// pageLayout looks for grid-like lines (pipes, tabs, rules) and for lines
// split by a wide gap around their middle.
func pageLayout(text string) (table, multiColumn bool) {
	lines := strings.Split(text, "\n")
	var tabs, pipes, rules, gapped int
	for _, line := range lines {
		tabs += strings.Count(line, "\t")
		pipes += strings.Count(line, "|")
		trimmed := strings.TrimSpace(line)
		if len(trimmed) > 3 && (strings.Count(trimmed, "-") > len(trimmed)/2 || strings.Count(trimmed, "_") > len(trimmed)/2) {
			rules++
		}
		if len(line) > 40 {
			mid := len(line) / 2
			if strings.Count(line[max(0, mid-10):min(len(line), mid+10)], " ") > 8 {
				gapped++
			}
		}
	}
	return tabs > 5 || pipes > 5 || rules > 2, gapped > 3
}

// Auto picks the hosted parser only for PDFs whose layout needs it.
type Auto struct {
	Native Converter
	Hosted Converter // nil when LlamaParse is not configured
}

func (a *Auto) Name() string { return "auto" }

func (a *Auto) Convert(ctx context.Context, path string, formats []Format) (*Result, error) {
	if a.Hosted == nil {
		return a.Native.Convert(ctx, path, formats)
	}
	l, err := DetectLayout(path)
	if err != nil {
		return nil, fmt.Errorf("detecting layout: %w", err)
	}
	slog.Debug("parser: layout detected",
		"pages", l.Pages, "tables", l.TablePages, "multi_column", l.MultiColumn, "empty", l.EmptyPages)
	if l.NeedsHostedParser() {
		return a.Hosted.Convert(ctx, path, formats)
	}
	return a.Native.Convert(ctx, path, formats)
}
