package nlp

import (
	"context"
	"regexp"
	"sort"
	"strings"
)

const months = `(?:January|February|March|April|May|June|July|August|September|Sept|October|November|December)`

// orgSuffix matches legal-form suffixes of company names.
const orgSuffix = `(?:Inc\.|Corp\.|Co\.|Ltd\.|L\.L\.C\.|B\.V\.|S\.A\.|S\.p\.A\.|P\.L\.C\.|N\.V\.|Incorporated\b|Corporation\b|Company\b|Limited\b|LLC\b|LLP\b|Ltd\b|GmbH\b|PLC\b|LP\b|AG\b|ApS\b|Oyj?\b)`

// orgName matches up to seven capitalised words, allowing a few joiners.
const orgName = `[A-Z][\w&'.-]*(?:[ \t]+(?:[A-Z][\w&'.-]*|&|and|of|the)){0,6}?`

type rule struct {
	label string
	re    *regexp.Regexp
	group int // submatch carrying the entity text; 0 is the whole match
	score float64
}

var defaultRules = []rule{
	// Money
	{LabelMoney, regexp.MustCompile(`(?:[$€£]|\b(?:USD|EUR|GBP|US\$)[ \t]?)\d+(?:,\d{3})*(?:\.\d+)?(?:[ \t]?(?:million|billion|thousand)\b)?`), 0, 0.9},
	{LabelMoney, regexp.MustCompile(`\b\d+(?:,\d{3})*(?:\.\d+)?[ \t]?(?:dollars|euros|pounds|USD|EUR|GBP)\b`), 0, 0.85},

	// Dates
	{LabelDate, regexp.MustCompile(`\b` + months + `[ \t]+\d{1,2}(?:st|nd|rd|th)?,?[ \t]+\d{4}\b`), 0, 0.9},
	{LabelDate, regexp.MustCompile(`\b\d{1,2}(?:st|nd|rd|th)?[ \t]+(?:day[ \t]+of[ \t]+)?` + months + `,?[ \t]+\d{4}\b`), 0, 0.9},
	{LabelDate, regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`), 0, 0.7},
	{LabelDate, regexp.MustCompile(`\b\d{1,2}\.\d{1,2}\.\d{4}\b`), 0, 0.7},
	{LabelDate, regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`), 0, 0.8},

	// Organisations
	{LabelOrg, regexp.MustCompile(orgName + `,?[ \t]+` + orgSuffix), 0, 0.85},
	{LabelOrg, regexp.MustCompile(`(` + orgName + `),?[ \t]*\((?:a|an)[ \t]+[^)]*(?:corporation|company|partnership|entity|organization)\)`), 1, 0.75},
	{LabelOrg, regexp.MustCompile(`(` + orgName + `),[ \t]+(?:a|an)[ \t]+[A-Z][a-z]+(?:[ \t]+[a-z]+){0,3}[ \t]+(?:corporation|company|partnership)\b`), 1, 0.75},

	// People
	{LabelPerson, regexp.MustCompile(`\bName:[ \t]*([A-Z][a-zA-Z'.-]+(?:[ \t]+[A-Z][a-zA-Z'.-]*){1,3})`), 1, 0.9},
	{LabelPerson, regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Dr|Prof)\.?[ \t]+([A-Z][a-z]+(?:[ \t]+[A-Z]\.)?(?:[ \t]+[A-Z][a-z]+){0,2})`), 1, 0.8},
	{LabelPerson, regexp.MustCompile(`\bBy:[ \t]*(?:/s/[ \t]*)?([A-Z][a-z]+(?:[ \t]+[A-Z]\.)?(?:[ \t]+[A-Z][a-z]+){1,2})\b`), 1, 0.7},

	// Law
	{LabelLaw, regexp.MustCompile(`\blaws[ \t]+of[ \t]+(?:the[ \t]+)?(?:State|Commonwealth|Province)[ \t]+of[ \t]+[A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+)?`), 0, 0.85},
	{LabelLaw, regexp.MustCompile(`\blaws[ \t]+of[ \t]+(?:the[ \t]+)?[A-Z][a-z]+(?:[ \t]+(?:and[ \t]+)?[A-Z][a-z]+){0,2}`), 0, 0.7},
	{LabelLaw, regexp.MustCompile(`\b(?:[A-Z][a-z]+[ \t]+){1,5}Act(?:[ \t]+of[ \t]+\d{4})?\b`), 0, 0.75},
	{LabelLaw, regexp.MustCompile(`\b(?:Uniform Commercial Code|General Data Protection Regulation|GDPR)\b`), 0, 0.9},

	// Places
	{LabelGPE, regexp.MustCompile(`\b(?:State|Commonwealth|Province)[ \t]+of[ \t]+([A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+)?)`), 1, 0.85},
	{LabelGPE, regexp.MustCompile(`\b(?:United States(?: of America)?|United Kingdom|England(?: and Wales)?|Scotland|Canada|Germany|France|Netherlands|Denmark|Finland|Sweden|Norway|Ireland|Switzerland|Luxembourg|Singapore|Japan|China|India|Australia|Delaware|California|New York|Texas|Nevada|Illinois|Massachusetts|Ontario|London|Amsterdam|Berlin|Paris)\b`), 0, 0.8},
}

var orgWordRe = regexp.MustCompile(`(?i)\b(?:inc|corp|corporation|company|llc|ltd|limited|gmbh|plc|technologies|systems)\b`)

// trailingFieldRe strips a signature-block field label swallowed by a
// same-line name match, as in "Name: Jane Doe Title: CEO".
var trailingFieldRe = regexp.MustCompile(`[ \t]+(?:Title|Position|Date|Signature|Its)$`)

// RuleRecognizer finds entities with regular expressions. It needs no
// model or network access.
type RuleRecognizer struct {
	rules []rule
}

func NewRuleRecognizer() *RuleRecognizer {
	return &RuleRecognizer{rules: defaultRules}
}

func (r *RuleRecognizer) Recognize(ctx context.Context, text string) ([]Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var ents []Entity
	for _, ru := range r.rules {
		for _, loc := range ru.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[2*ru.group], loc[2*ru.group+1]
			if start < 0 {
				continue
			}
			value := strings.TrimSpace(text[start:end])
			value = strings.TrimRight(value, ",;")
			if len(value) < 2 {
				continue
			}
			if ru.label == LabelPerson {
				if orgWordRe.MatchString(value) {
					continue
				}
				value = trailingFieldRe.ReplaceAllString(value, "")
			}
			ents = append(ents, Entity{
				Label: ru.label,
				Text:  value,
				Start: start,
				End:   start + len(value),
				Score: ru.score,
			})
		}
	}
	return dropOverlaps(ents), nil
}

// dropOverlaps keeps, per label, the earliest and then longest of any
// overlapping spans.
func dropOverlaps(ents []Entity) []Entity {
	sort.SliceStable(ents, func(i, j int) bool {
		if ents[i].Start != ents[j].Start {
			return ents[i].Start < ents[j].Start
		}
		return ents[i].End-ents[i].Start > ents[j].End-ents[j].Start
	})
	lastEnd := make(map[string]int)
	out := ents[:0]
	for _, e := range ents {
		if end, ok := lastEnd[e.Label]; ok && e.Start < end {
			continue
		}
		lastEnd[e.Label] = e.End
		out = append(out, e)
	}
	return out
}

// RuleClassifier scores categories by keyword hits. The score is the
// winning category's share of all hits.
type RuleClassifier struct{}

func NewRuleClassifier() *RuleClassifier { return &RuleClassifier{} }

func (c *RuleClassifier) Classify(ctx context.Context, text string, categories []Category) (Classification, error) {
	if err := ctx.Err(); err != nil {
		return Classification{}, err
	}
	lower := strings.ToLower(text)
	total, bestHits := 0, 0
	best := ""
	for _, cat := range categories {
		hits := 0
		for _, kw := range cat.Keywords {
			hits += strings.Count(lower, strings.ToLower(kw))
		}
		total += hits
		if hits > bestHits {
			bestHits = hits
			best = cat.Name
		}
	}
	if total == 0 {
		return Classification{}, nil
	}
	return Classification{Label: best, Score: float64(bestHits) / float64(total)}, nil
}
