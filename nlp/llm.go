package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/brunobiangulo/contractgraph/llm"
)

// entityPrompt asks the model for contract entities as strict JSON.
const entityPrompt = `You are a named entity recognition engine for legal contracts.
Extract every entity of the following types from the text.

ENTITY TYPES (use exactly these values):
- PERSON : a named individual, such as a signatory
- ORG    : a company, body or institution, including its legal suffix (Inc., LLC, GmbH...)
- DATE   : a calendar date exactly as written
- MONEY  : a monetary amount with its currency
- LAW    : a statute, regulation or governing-law clause ("laws of the State of New York")
- GPE    : a country, state or city

Return a JSON object with exactly one key:
  "entities" : array of {"label": string, "text": string}

Rules:
- "text" must be copied verbatim from the input.
- Only include entities clearly present in the text.
- If there are none, return an empty array.
- Do NOT include any text outside the JSON object.

EXAMPLE:

Input: "This Agreement is made on March 1, 2024 between Acme Widgets Inc. and Beta Systems LLC for a fee of $25,000, governed by the laws of the State of Delaware."
Output:
{"entities": [{"label": "DATE", "text": "March 1, 2024"}, {"label": "ORG", "text": "Acme Widgets Inc."}, {"label": "ORG", "text": "Beta Systems LLC"}, {"label": "MONEY", "text": "$25,000"}, {"label": "LAW", "text": "laws of the State of Delaware"}, {"label": "GPE", "text": "Delaware"}]}

TEXT:
%s`

// classifyPrompt asks the model to pick one category and report confidence.
const classifyPrompt = `You are a legal text classifier.
Choose the single category that best describes the text.

CATEGORIES:
%s

Return a JSON object with exactly two keys:
  "label" : one of the category names above, copied exactly, or "" if none applies
  "score" : your confidence between 0.0 and 1.0

Do NOT include any text outside the JSON object.

TEXT:
%s`

// codeBlockRe strips markdown code fences from LLM output.
var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// extractJSON pulls the JSON object out of a model reply that may be
// wrapped in prose or code fences.
func extractJSON(raw string) (string, error) {
	if m := codeBlockRe.FindStringSubmatch(raw); len(m) > 1 {
		raw = m[1]
	}
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		return raw, nil
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1], nil
	}
	return "", fmt.Errorf("no JSON object found in response")
}

// LLMOptions tunes the LLM-backed analyzers.
type LLMOptions struct {
	Model             string
	RequestsPerSecond float64       // 0 disables rate limiting
	Timeout           time.Duration // per request, default 90s
}

type llmBase struct {
	chat    llm.Provider
	opts    LLMOptions
	limiter *rate.Limiter
}

func newLLMBase(chat llm.Provider, opts LLMOptions) llmBase {
	if opts.Timeout <= 0 {
		opts.Timeout = 90 * time.Second
	}
	b := llmBase{chat: chat, opts: opts}
	if opts.RequestsPerSecond > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return b
}

func (b llmBase) ask(ctx context.Context, prompt string, out any) error {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	ctx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	resp, err := b.chat.Chat(ctx, llm.ChatRequest{
		Model:          b.opts.Model,
		Messages:       []llm.Message{{Role: "user", Content: prompt}},
		Temperature:    0,
		ResponseFormat: "json_object",
	})
	if err != nil {
		return fmt.Errorf("llm request: %w", err)
	}
	raw, err := extractJSON(resp.Content)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decoding llm reply: %w", err)
	}
	return nil
}

// LLMRecognizer extracts entities by prompting a chat model.
type LLMRecognizer struct {
	base llmBase
}

func NewLLMRecognizer(chat llm.Provider, opts LLMOptions) *LLMRecognizer {
	return &LLMRecognizer{base: newLLMBase(chat, opts)}
}

func (r *LLMRecognizer) Recognize(ctx context.Context, text string) ([]Entity, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	var reply struct {
		Entities []struct {
			Label string `json:"label"`
			Text  string `json:"text"`
		} `json:"entities"`
	}
	if err := r.base.ask(ctx, fmt.Sprintf(entityPrompt, text), &reply); err != nil {
		return nil, err
	}

	var ents []Entity
	cursor := make(map[string]int)
	for _, e := range reply.Entities {
		label := strings.ToUpper(strings.TrimSpace(e.Label))
		value := strings.TrimSpace(e.Text)
		if !knownLabel(label) || len(value) < 2 {
			continue
		}
		// Entities must be grounded in the input; locate each occurrence
		// after the previous one of the same text.
		from := cursor[value]
		idx := strings.Index(text[from:], value)
		if idx < 0 {
			idx = strings.Index(text, value)
			if idx < 0 {
				continue
			}
		} else {
			idx += from
		}
		cursor[value] = idx + len(value)
		ents = append(ents, Entity{Label: label, Text: value, Start: idx, End: idx + len(value), Score: 0.8})
	}
	return ents, nil
}

func knownLabel(label string) bool {
	for _, l := range Labels {
		if l == label {
			return true
		}
	}
	return false
}

// LLMClassifier classifies text by prompting a chat model.
type LLMClassifier struct {
	base llmBase
}

func NewLLMClassifier(chat llm.Provider, opts LLMOptions) *LLMClassifier {
	return &LLMClassifier{base: newLLMBase(chat, opts)}
}

func (c *LLMClassifier) Classify(ctx context.Context, text string, categories []Category) (Classification, error) {
	if strings.TrimSpace(text) == "" || len(categories) == 0 {
		return Classification{}, nil
	}
	var list strings.Builder
	for _, cat := range categories {
		fmt.Fprintf(&list, "- %s", cat.Name)
		if len(cat.Keywords) > 0 {
			fmt.Fprintf(&list, " (signals: %s)", strings.Join(cat.Keywords, ", "))
		}
		list.WriteString("\n")
	}

	var reply Classification
	if err := c.base.ask(ctx, fmt.Sprintf(classifyPrompt, list.String(), text), &reply); err != nil {
		return Classification{}, err
	}
	for _, cat := range categories {
		if strings.EqualFold(cat.Name, strings.TrimSpace(reply.Label)) {
			score := reply.Score
			if score < 0 {
				score = 0
			} else if score > 1 {
				score = 1
			}
			return Classification{Label: cat.Name, Score: score}, nil
		}
	}
	return Classification{}, nil
}
