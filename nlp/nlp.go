// Package nlp provides the named-entity recognition and text
// classification used to enrich extracted contracts. Implementations are
// rule based, LLM backed, or an ensemble of both.
package nlp

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"
)

// Entity labels.
const (
	LabelPerson = "PERSON"
	LabelOrg    = "ORG"
	LabelDate   = "DATE"
	LabelMoney  = "MONEY"
	LabelLaw    = "LAW"
	LabelGPE    = "GPE"
)

// Labels lists every entity label in reporting order.
var Labels = []string{LabelPerson, LabelOrg, LabelDate, LabelMoney, LabelLaw, LabelGPE}

// Entity is a labelled span of text. Start and End are byte offsets into
// the text passed to Recognize.
type Entity struct {
	Label string  `json:"label"`
	Text  string  `json:"text"`
	Start int     `json:"start"`
	End   int     `json:"end"`
	Score float64 `json:"score"`
}

// Recognizer finds named entities in text.
type Recognizer interface {
	Recognize(ctx context.Context, text string) ([]Entity, error)
}

// Category is a classification target described by indicative keywords.
type Category struct {
	Name     string
	Keywords []string
}

// Classification is the best category for a text and its confidence in [0,1].
type Classification struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classifier assigns text to one of the given categories.
type Classifier interface {
	Classify(ctx context.Context, text string, categories []Category) (Classification, error)
}

// Window is a slice of a larger text together with its byte offset.
type Window struct {
	Text   string
	Offset int
}

// Windows splits text[:limit] into consecutive windows of at most size
// bytes, never cutting a UTF-8 sequence. limit <= 0 means the whole text.
func Windows(text string, size, limit int) []Window {
	if limit > 0 && limit < len(text) {
		cut := limit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	if size <= 0 {
		size = len(text)
	}
	var out []Window
	for start := 0; start < len(text); {
		end := start + size
		if end >= len(text) {
			end = len(text)
		} else {
			for end > start && !utf8.RuneStart(text[end]) {
				end--
			}
			if end == start {
				end = start + size
			}
		}
		out = append(out, Window{Text: text[start:end], Offset: start})
		start = end
	}
	return out
}

// Chunks is Windows without offsets.
func Chunks(text string, size, limit int) []string {
	ws := Windows(text, size, limit)
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Text
	}
	return out
}

// RecognizeWindows runs r over each window and shifts offsets back into
// the coordinates of the full text.
func RecognizeWindows(ctx context.Context, r Recognizer, text string, size, limit int) ([]Entity, error) {
	var all []Entity
	for _, w := range Windows(text, size, limit) {
		ents, err := r.Recognize(ctx, w.Text)
		if err != nil {
			return all, err
		}
		for _, e := range ents {
			e.Start += w.Offset
			e.End += w.Offset
			all = append(all, e)
		}
	}
	return all, nil
}

// Dedupe drops repeated (label, text) pairs case-insensitively, keeping
// the highest scoring occurrence, and returns entities ordered by offset.
func Dedupe(ents []Entity) []Entity {
	best := make(map[string]int)
	var out []Entity
	for _, e := range ents {
		key := e.Label + "\x00" + strings.ToLower(strings.Join(strings.Fields(e.Text), " "))
		if i, ok := best[key]; ok {
			if e.Score > out[i].Score {
				out[i].Score = e.Score
			}
			continue
		}
		best[key] = len(out)
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// Filter returns the entities carrying label.
func Filter(ents []Entity, label string) []Entity {
	var out []Entity
	for _, e := range ents {
		if e.Label == label {
			out = append(out, e)
		}
	}
	return out
}
