package parser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OutputPath derives the output file for input in the given format by
// replacing the extension.
func OutputPath(input string, f Format) string {
	root := strings.TrimSuffix(input, filepath.Ext(input))
	switch f {
	case FormatMarkdown:
		return root + ".md"
	case FormatText:
		return root + ".txt"
	default:
		return root + ".json"
	}
}

// WriteOutputs writes each requested format next to input (or into dir
// when set) and returns the written paths in format order.
func WriteOutputs(res *Result, input, dir string, formats []Format) ([]string, error) {
	base := input
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
		base = filepath.Join(dir, filepath.Base(input))
	}

	var written []string
	for _, f := range AllFormats {
		if !wants(formats, f) {
			continue
		}
		path := OutputPath(base, f)
		var data []byte
		switch f {
		case FormatJSON:
			docs := res.Documents
			if docs == nil {
				docs = []Document{}
			}
			b, err := json.MarshalIndent(docs, "", "  ")
			if err != nil {
				return written, fmt.Errorf("encoding json output: %w", err)
			}
			data = b
		case FormatMarkdown:
			data = []byte(res.Markdown)
		case FormatText:
			data = []byte(res.Text)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return written, fmt.Errorf("writing %s output: %w", f, err)
		}
		written = append(written, path)
	}
	return written, nil
}
