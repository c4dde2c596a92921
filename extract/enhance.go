package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brunobiangulo/contractgraph/contract"
	"github.com/brunobiangulo/contractgraph/nlp"
)

// Enhance adds key provisions, financial terms, key dates, key terms and
// named entities to c. fullText is the complete contract text. The model
// passes run concurrently.
func (e *Extractor) Enhance(ctx context.Context, c *contract.Contract, fullText string) error {
	start := time.Now()
	var (
		ents       []nlp.Entity
		provisions []contract.KeyProvision
		terms      []contract.KeyTerm
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	g.Go(func() error {
		var err error
		ents, err = nlp.RecognizeWindows(gctx, e.ner, fullText, windowSize, enhanceLimit)
		if err != nil {
			return fmt.Errorf("recognizing entities: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		provisions, err = e.KeyProvisions(gctx, c.Articles)
		if err != nil {
			return fmt.Errorf("classifying provisions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		terms, err = e.KeyTerms(gctx, fullText)
		if err != nil {
			return fmt.Errorf("classifying key terms: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	c.KeyProvisions = provisions
	c.KeyTerms = terms
	c.Financials = financials(fullText, ents)
	c.KeyDates = keyDates(fullText, ents)
	c.NamedEntities = entityGroups(ents)

	slog.Debug("extract: enhanced contract",
		"provisions", len(c.KeyProvisions),
		"financials", len(c.Financials),
		"dates", len(c.KeyDates),
		"terms", len(c.KeyTerms),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// KeyProvisions selects the articles whose title names an important topic,
// or whose text the classifier confidently assigns to one.
func (e *Extractor) KeyProvisions(ctx context.Context, articles []contract.Article) ([]contract.KeyProvision, error) {
	var out []contract.KeyProvision
	for _, a := range articles {
		important := containsAny(strings.ToLower(a.Title), importantKeywords)
		if !important {
			var err error
			important, err = e.classifiedImportant(ctx, articleText(a))
			if err != nil {
				return nil, err
			}
		}
		if important {
			out = append(out, contract.KeyProvision{Number: a.Number, Title: a.Title, Summary: provisionSummary(a)})
		}
	}
	return out, nil
}

func articleText(a contract.Article) string {
	if strings.TrimSpace(a.Content) != "" {
		return a.Content
	}
	parts := make([]string, 0, len(a.Sections))
	for _, s := range a.Sections {
		parts = append(parts, s.Content)
	}
	return strings.Join(parts, "\n")
}

func (e *Extractor) classifiedImportant(ctx context.Context, text string) (bool, error) {
	if strings.TrimSpace(text) == "" {
		return false, nil
	}
	for _, chunk := range nlp.Chunks(text, windowSize, provisionLimit) {
		cls, err := e.cls.Classify(ctx, chunk, provisionCategories)
		if err != nil {
			return false, err
		}
		if cls.Score > provisionThreshold && containsAny(strings.ToLower(cls.Label), importantKeywords) {
			return true, nil
		}
	}
	return false, nil
}

// provisionSummary joins the first sentence of each section, stopping once
// the summary passes summaryLimit bytes.
func provisionSummary(a contract.Article) string {
	var b strings.Builder
	for _, s := range a.Sections {
		if strings.TrimSpace(s.Content) == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s ", s.Number, firstSentence(s.Content))
		if b.Len() > summaryLimit {
			return truncate(b.String(), summaryLimit) + "..."
		}
	}
	return strings.TrimSpace(b.String())
}

// KeyTerms classifies windows of the text into legal topics and keeps up
// to maxTermContexts excerpts per topic, in category order.
func (e *Extractor) KeyTerms(ctx context.Context, text string) ([]contract.KeyTerm, error) {
	found := make(map[string][]string)
	for _, chunk := range nlp.Chunks(text, windowSize, enhanceLimit) {
		if len(strings.TrimSpace(chunk)) < minKeyTermWindow {
			continue
		}
		cls, err := e.cls.Classify(ctx, chunk, keyTermCategories)
		if err != nil {
			return nil, err
		}
		if cls.Label == "" || cls.Score <= keyTermThreshold {
			continue
		}
		if len(found[cls.Label]) < maxTermContexts {
			found[cls.Label] = append(found[cls.Label], normalizeSpace(chunk))
		}
	}

	var terms []contract.KeyTerm
	for _, cat := range keyTermCategories {
		if ctxs := found[cat.Name]; len(ctxs) > 0 {
			terms = append(terms, contract.KeyTerm{Name: cat.Name, Contexts: ctxs})
		}
	}
	return terms, nil
}

func financials(text string, ents []nlp.Entity) []contract.Financial {
	var out []contract.Financial
	seen := make(map[string]bool)
	for _, en := range nlp.Filter(ents, nlp.LabelMoney) {
		if seen[en.Text] {
			continue
		}
		seen[en.Text] = true
		out = append(out, contract.Financial{Amount: en.Text, Context: mentionContext(text, en)})
		if len(out) == maxFinancials {
			break
		}
	}
	return out
}

func keyDates(text string, ents []nlp.Entity) []contract.KeyDate {
	var out []contract.KeyDate
	seen := make(map[string]bool)
	for _, en := range nlp.Filter(ents, nlp.LabelDate) {
		if seen[en.Text] {
			continue
		}
		seen[en.Text] = true
		out = append(out, contract.KeyDate{Date: en.Text, Context: mentionContext(text, en)})
		if len(out) == maxKeyDates {
			break
		}
	}
	return out
}

// mentionContext is the sentence around an entity, or 50 bytes either
// side when offsets fall outside the text.
func mentionContext(text string, en nlp.Entity) string {
	if s := sentenceAround(text, en.Start, en.End); s != "" {
		return s
	}
	idx := strings.Index(text, en.Text)
	if idx < 0 {
		return en.Text
	}
	from := max(0, idx-50)
	to := min(len(text), idx+len(en.Text)+50)
	return normalizeSpace(strings.ToValidUTF8(text[from:to], ""))
}

// entityGroups groups entity texts by label in reporting order, dropping
// empty groups.
func entityGroups(ents []nlp.Entity) []contract.EntityGroup {
	var groups []contract.EntityGroup
	for _, label := range nlp.Labels {
		var values []string
		seen := make(map[string]bool)
		for _, en := range nlp.Filter(ents, label) {
			v := normalizeSpace(en.Text)
			if len(v) <= 1 || seen[v] {
				continue
			}
			seen[v] = true
			values = append(values, v)
		}
		if len(values) > 0 {
			groups = append(groups, contract.EntityGroup{Type: label, Values: values})
		}
	}
	return groups
}
