package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Native extracts text locally from PDFs. It needs no credentials and
// produces the same page layout as the hosted parser, with headings in
// the markdown inferred from line shape.
type Native struct{}

func (n *Native) Name() string { return "native" }

func (n *Native) Convert(ctx context.Context, path string, formats []Format) (*Result, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	doc := Document{FilePath: path}
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip pages that fail to extract
			continue
		}
		text = strings.TrimSpace(text)
		doc.Pages = append(doc.Pages, Page{
			Number:   i,
			Text:     text,
			Markdown: pageMarkdown(text),
		})
	}

	res := &Result{Method: n.Name()}
	if wants(formats, FormatJSON) {
		res.Documents = []Document{doc}
	}
	if wants(formats, FormatMarkdown) {
		res.Markdown = doc.Markdown()
	}
	if wants(formats, FormatText) {
		res.Text = doc.Text()
	}
	return res, nil
}

// pageMarkdown renders page text as markdown, promoting heading-like lines.
func pageMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	var b strings.Builder
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			b.WriteString("\n")
			continue
		}
		if isLikelyHeading(trimmed) {
			b.WriteString("\n")
			b.WriteString(strings.Repeat("#", detectHeadingLevel(trimmed)+1))
			b.WriteString(" ")
			b.WriteString(trimmed)
			b.WriteString("\n\n")
			continue
		}
		b.WriteString(trimmed)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func isLikelyHeading(line string) bool {
	// All caps and short
	if len(line) < 100 && len(line) > 2 && line == strings.ToUpper(line) && strings.ToLower(line) != line {
		return true
	}
	if len(line) >= 120 {
		return false
	}
	// "1." "1.1" "3.9.1" followed by a capitalised word
	if line[0] >= '0' && line[0] <= '9' && strings.Contains(line[:min(10, len(line))], ".") {
		fields := strings.Fields(line)
		return len(fields) > 1 && len(fields) <= 12
	}
	lower := strings.ToLower(line)
	return strings.HasPrefix(lower, "section ") || strings.HasPrefix(lower, "article ") ||
		strings.HasPrefix(lower, "schedule ") || strings.HasPrefix(lower, "exhibit ")
}

func detectHeadingLevel(heading string) int {
	// Count dots in numbering to determine depth
	parts := strings.SplitN(heading, " ", 2)
	if len(parts) > 0 {
		if dots := strings.Count(strings.TrimSuffix(parts[0], "."), "."); dots > 0 {
			return min(dots+1, 4)
		}
	}
	return 1
}
