package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/brunobiangulo/contractgraph/contract"
	"github.com/brunobiangulo/contractgraph/nlp"
	"github.com/brunobiangulo/contractgraph/parser"
)

// MetadataFromPages reads title, document type, effective date and party
// names from the first parsed page.
func (e *Extractor) MetadataFromPages(ctx context.Context, pages []parser.Page) (contract.Metadata, error) {
	md := contract.Metadata{DocumentType: "Contract"}
	if len(pages) == 0 {
		return md, nil
	}
	text := pages[0].Text

	if m := directEffectiveDateRe.FindStringSubmatch(text); m != nil {
		md.EffectiveDate = strings.TrimSpace(m[1])
	}

	cls, err := e.cls.Classify(ctx, truncate(text, classifyLimit), docTypes)
	if err != nil {
		return md, err
	}
	if cls.Label != "" && cls.Score > docTypeThreshold {
		md.DocumentType = cls.Label
	}

	ents, err := nlp.RecognizeWindows(ctx, e.ner, text, windowSize, metadataNERLimit)
	if err != nil {
		return md, err
	}
	dates := entityTexts(ents, nlp.LabelDate)

	if md.EffectiveDate == "" {
		md.EffectiveDate = effectiveDate(text, dates)
	}
	md.PartyNames = metadataParties(entityTexts(ents, nlp.LabelOrg))
	md.Title = titleFromSentences(text)

	if len(md.PartyNames) == 0 {
		names, err := e.betweenParties(ctx, text)
		if err != nil {
			return md, err
		}
		md.PartyNames = names
	}
	return md, nil
}

// entityTexts lists the distinct texts of label in order of appearance,
// skipping fragments of a recently seen date.
func entityTexts(ents []nlp.Entity, label string) []string {
	var out []string
	for _, en := range nlp.Filter(ents, label) {
		w := strings.TrimSpace(en.Text)
		if len(w) <= 1 {
			continue
		}
		if label == nlp.LabelDate && isFragment(w, out) {
			continue
		}
		out = append(out, w)
	}
	return out
}

func isFragment(w string, seen []string) bool {
	from := max(0, len(seen)-3)
	for _, s := range seen[from:] {
		if strings.HasPrefix(s, w) || strings.HasPrefix(w, s) {
			return true
		}
	}
	return false
}

var dateNormalizer = strings.NewReplacer(".", " ", ":", " ", ",", " ", ";", " ")

// effectiveDate picks the candidate date closest after a date context
// phrase, then the first "Month D, YYYY", then the first recognised date.
func effectiveDate(text string, nerDates []string) string {
	candidates := append([]string(nil), nerDates...)
	for _, re := range datePatterns {
		for _, d := range re.FindAllString(text, -1) {
			if !contains(candidates, d) {
				candidates = append(candidates, d)
			}
		}
	}

	normalized := dateNormalizer.Replace(strings.ToLower(text))
	for _, phrase := range dateContexts {
		ctxPos := strings.Index(normalized, phrase)
		if ctxPos < 0 {
			continue
		}
		best, bestDist := "", dateContextDistance
		for _, d := range candidates {
			pos := strings.Index(normalized, dateNormalizer.Replace(strings.ToLower(d)))
			if pos > ctxPos && pos-ctxPos < bestDist {
				best, bestDist = d, pos-ctxPos
			}
		}
		if best != "" {
			return best
		}
	}

	if m := monthDayYearRe.FindString(text); m != "" {
		return m
	}
	if len(nerDates) > 0 {
		return nerDates[0]
	}
	return ""
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// metadataParties keeps multi-word organisation names with a legal suffix
// or company word, merging names that contain one another in favour of
// the longer.
func metadataParties(orgs []string) []string {
	var parties []string
	for _, org := range orgs {
		if wordCount(org) <= 1 {
			continue
		}
		if !orgSuffixRe.MatchString(org) && !containsAny(strings.ToLower(org), []string{"company", "corporation", "technologies", "systems"}) {
			continue
		}
		if containsAny(strings.ToLower(org), metadataPartyFalsePositives) {
			continue
		}
		unique := true
		for i, existing := range parties {
			if strings.Contains(existing, org) || strings.Contains(org, existing) {
				unique = false
				if len(org) > len(existing) {
					parties[i] = org
				}
				break
			}
		}
		if unique {
			parties = append(parties, org)
		}
	}
	if len(parties) > maxMetadataParties {
		parties = parties[:maxMetadataParties]
	}
	return parties
}

// titleFromSentences looks for an all-caps or AGREEMENT/CONTRACT sentence
// among the first five, then falls back to the title patterns.
func titleFromSentences(text string) string {
	var candidates []string
	sents := sentences(text)
	if len(sents) > 5 {
		sents = sents[:5]
	}
	for _, s := range sents {
		wc := wordCount(s)
		if (isUpper(s) && wc >= 3 && wc <= 15) || strings.Contains(s, "AGREEMENT") || strings.Contains(s, "CONTRACT") {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) > 0 {
		best := candidates[0]
		for _, c := range candidates[1:] {
			if (strings.Contains(c, "AGREEMENT") || strings.Contains(c, "CONTRACT")) && wordCount(c) < 15 {
				best = c
			}
		}
		return cleanHeading(best)
	}
	for _, re := range titlePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if t := cleanHeading(m[1]); t != "" && wordCount(t) <= 15 {
			return t
		}
	}
	return ""
}

var headingMarkRe = regexp.MustCompile(`^[#*\s]+|[*\s]+$`)

func cleanHeading(s string) string {
	return normalizeSpace(headingMarkRe.ReplaceAllString(s, ""))
}

// betweenParties reads the "Between X and Y" clause. Organisations found
// inside each side are preferred over the raw text.
func (e *Extractor) betweenParties(ctx context.Context, text string) ([]string, error) {
	m := betweenRe.FindStringSubmatch(text)
	if m == nil {
		return nil, nil
	}
	var names []string
	for _, side := range m[1:3] {
		side = strings.TrimSpace(side)
		ents, err := e.ner.Recognize(ctx, side)
		if err != nil {
			return nil, err
		}
		orgs := nlp.Filter(ents, nlp.LabelOrg)
		if len(orgs) == 0 {
			if wordCount(side) > 1 && len(side) > 5 {
				names = append(names, normalizeSpace(side))
			}
			continue
		}
		for _, o := range orgs {
			if wordCount(o.Text) > 1 && len(o.Text) > 5 {
				names = append(names, strings.TrimSpace(o.Text))
			}
		}
	}
	return names, nil
}

// MetadataFromText derives metadata from plain text with regular
// expressions only.
func MetadataFromText(text string) contract.Metadata {
	md := contract.Metadata{Title: "Untitled Contract", DocumentType: "Unknown"}

	head := truncate(text, 1000)
	for _, t := range txtDocTypes {
		if t.re.MatchString(head) {
			md.DocumentType = t.name
			break
		}
	}

	if t := scoredTitle(text); t != "" {
		md.Title = t
	}
	if m := txtEffectiveDateRe.FindStringSubmatch(text); m != nil {
		md.EffectiveDate = strings.TrimSpace(m[1])
	}
	if m := txtExecutionDateRe.FindStringSubmatch(text); m != nil {
		md.ExecutionDate = strings.TrimSpace(m[1])
	}
	for _, m := range txtPartyRe.FindAllStringSubmatch(truncate(text, 3000), -1) {
		if name := normalizeSpace(m[2]); len(name) > 3 {
			md.PartyNames = append(md.PartyNames, name)
		}
	}
	return md
}

var txtDocTypes = []struct {
	name string
	re   *regexp.Regexp
}{
	{"Agreement", regexp.MustCompile(`(?i)\bagreement\b`)},
	{"Contract", regexp.MustCompile(`(?i)\bcontract\b`)},
	{"Amendment", regexp.MustCompile(`(?i)\bamendment\b`)},
	{"Addendum", regexp.MustCompile(`(?i)\baddendum\b`)},
}

var agreementTypes = []string{
	"service", "employment", "non-disclosure", "confidentiality",
	"sale", "purchase", "master", "subscription", "consulting",
	"license", "partnership", "distribution", "supply",
}

// scoredTitle scores the opening lines as title candidates and returns
// the best, or the first non-empty line when none qualifies.
func scoredTitle(text string) string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = cleanHeading(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return ""
	}

	best, bestScore := "", 0
	consider := func(line string, score int) {
		if score > bestScore {
			best, bestScore = line, score
		}
	}
	for _, line := range lines[:min(10, len(lines))] {
		wc := wordCount(line)
		upper := strings.ToUpper(line)
		switch {
		case isUpper(line) && wc >= 2 && wc <= 15:
			if containsAny(line, []string{"AGREEMENT", "CONTRACT", "LICENSE", "LEASE"}) {
				consider(line, 10)
			} else {
				consider(line, 5)
			}
		case containsAny(upper, []string{"AGREEMENT", "CONTRACT", "LICENSE"}):
			consider(line, 8)
		}
	}
	for _, line := range lines[:min(15, len(lines))] {
		lower := strings.ToLower(line)
		matched := false
		for _, t := range agreementTypes {
			if strings.Contains(lower, t+" agreement") {
				matched = true
				break
			}
		}
		switch {
		case matched:
			consider(line, 9)
		case strings.Contains(lower, "agreement") && wordCount(line) <= 10:
			consider(line, 7)
		}
	}
	if best == "" {
		return lines[0]
	}
	return best
}
