package nlp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/brunobiangulo/contractgraph/llm"
)

// Analyzer modes.
const (
	ModeRules    = "rules"
	ModeLLM      = "llm"
	ModeEnsemble = "ensemble"
)

// Ensemble runs several recognizers concurrently and merges their output.
// A failing member is logged and skipped; Recognize only fails when every
// member does.
type Ensemble struct {
	Members []Recognizer
}

func (e *Ensemble) Recognize(ctx context.Context, text string) ([]Entity, error) {
	results := make([][]Entity, len(e.Members))
	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range e.Members {
		g.Go(func() error {
			ents, err := m.Recognize(gctx, text)
			if err != nil {
				slog.Warn("nlp: recognizer failed", "member", fmt.Sprintf("%T", m), "error", err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return nil
			}
			results[i] = ents
			return nil
		})
	}
	g.Wait() // members report failures through errs, never to the group

	if len(e.Members) > 0 && len(errs) == len(e.Members) {
		return nil, fmt.Errorf("all recognizers failed: %w", errors.Join(errs...))
	}
	var all []Entity
	for _, r := range results {
		all = append(all, r...)
	}
	return Dedupe(all), nil
}

// Fallback classifies with Primary and falls back to Secondary when the
// primary errors or has no answer.
type Fallback struct {
	Primary   Classifier
	Secondary Classifier
}

func (f *Fallback) Classify(ctx context.Context, text string, categories []Category) (Classification, error) {
	c, err := f.Primary.Classify(ctx, text, categories)
	if err == nil && c.Label != "" {
		return c, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return Classification{}, ctx.Err()
		}
		slog.Warn("nlp: primary classifier failed, using fallback", "error", err)
	}
	return f.Secondary.Classify(ctx, text, categories)
}

// FallbackRecognizer recognizes with Primary and falls back to Secondary
// when the primary errors.
type FallbackRecognizer struct {
	Primary   Recognizer
	Secondary Recognizer
}

func (f *FallbackRecognizer) Recognize(ctx context.Context, text string) ([]Entity, error) {
	ents, err := f.Primary.Recognize(ctx, text)
	if err == nil {
		return ents, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	slog.Warn("nlp: primary recognizer failed, using fallback", "error", err)
	return f.Secondary.Recognize(ctx, text)
}

// New builds the recognizer and classifier for mode. chat is required
// for the llm and ensemble modes.
func New(mode string, chat llm.Provider, opts LLMOptions) (Recognizer, Classifier, error) {
	switch mode {
	case ModeRules, "":
		return NewRuleRecognizer(), NewRuleClassifier(), nil
	case ModeLLM, ModeEnsemble:
		if chat == nil {
			return nil, nil, fmt.Errorf("nlp mode %q needs an llm provider", mode)
		}
		cls := &Fallback{Primary: NewLLMClassifier(chat, opts), Secondary: NewRuleClassifier()}
		if mode == ModeLLM {
			return &FallbackRecognizer{Primary: NewLLMRecognizer(chat, opts), Secondary: NewRuleRecognizer()}, cls, nil
		}
		return &Ensemble{Members: []Recognizer{NewRuleRecognizer(), NewLLMRecognizer(chat, opts)}}, cls, nil
	default:
		return nil, nil, fmt.Errorf("unknown nlp mode: %s", mode)
	}
}
