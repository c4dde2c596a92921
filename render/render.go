// Package render produces the human-readable contract summary.
package render

import (
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"text/template"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"

	"github.com/brunobiangulo/contractgraph/contract"
)

// TemplateName is the file a custom template directory must provide.
const TemplateName = "contract_summary.md.tmpl"

// Summary sources.
const (
	SourceJSON  = "JSON File"
	SourceGraph = "Neo4j Database"
)

//go:embed templates/*.tmpl
var defaultTemplates embed.FS

// Summary is the data a summary template renders.
type Summary struct {
	Contract    *contract.Contract
	GeneratedOn time.Time
	Source      string
}

// Renderer executes the summary template.
type Renderer struct {
	tmpl *template.Template
}

// New loads the summary template from dir, or the built-in one when dir is
// empty.
func New(dir string) (*Renderer, error) {
	var (
		fsys    fs.FS = defaultTemplates
		pattern       = "templates/*.tmpl"
	)
	if dir != "" {
		fsys, pattern = os.DirFS(dir), "*.tmpl"
	}
	tmpl, err := template.New(TemplateName).Funcs(funcs).ParseFS(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}
	if tmpl.Lookup(TemplateName) == nil {
		return nil, fmt.Errorf("template %s not found in %s", TemplateName, dir)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// RenderMarkdown writes the Markdown summary of s to w.
func (r *Renderer) RenderMarkdown(w io.Writer, s Summary) error {
	if s.Contract == nil {
		return fmt.Errorf("render: no contract")
	}
	if s.GeneratedOn.IsZero() {
		s.GeneratedOn = time.Now()
	}
	if err := r.tmpl.ExecuteTemplate(w, TemplateName, s); err != nil {
		return fmt.Errorf("rendering summary: %w", err)
	}
	return nil
}

// RenderHTML converts Markdown to sanitised HTML.
func RenderHTML(md []byte) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse(md)

	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	out := markdown.Render(doc, renderer)
	return bluemonday.UGCPolicy().SanitizeBytes(out)
}

var funcs = template.FuncMap{
	"join":     func(list []string, sep string) string { return strings.Join(list, sep) },
	"upper":    strings.ToUpper,
	"title":    titleWords,
	"add":      func(a, b int) int { return a + b },
	"truncate": truncate,
	"bullet":   bullet,
	"cell":     cell,
}

var cellEscaper = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ", "\r", " ")

// cell makes s safe inside a Markdown table cell.
func cell(s string) string {
	return cellEscaper.Replace(s)
}

// titleWords upper-cases the first letter of each space separated word.
func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// truncate shortens s to n runes, appending "..." when it cut.
func truncate(n int, s string) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func bullet(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return "- " + strings.Join(items, "\n- ")
}
