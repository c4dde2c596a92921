package extract

import (
	"context"
	"strings"

	"github.com/brunobiangulo/contractgraph/contract"
	"github.com/brunobiangulo/contractgraph/nlp"
	"github.com/brunobiangulo/contractgraph/parser"
)

var quoteNormalizer = strings.NewReplacer("“", `"`, "”", `"`, "’", "'")

// PartiesFromPages identifies the contracting organisations from the
// opening pages and attaches signatories found on the closing pages.
func (e *Extractor) PartiesFromPages(ctx context.Context, pages []parser.Page) ([]contract.Party, error) {
	if len(pages) == 0 {
		return nil, nil
	}
	first := joinPages(pages[:min(3, len(pages))])
	var last string
	if len(pages) > 2 {
		last = joinPages(pages[len(pages)-2:])
	}

	ents, err := nlp.RecognizeWindows(ctx, e.ner, first, windowSize, metadataNERLimit)
	if err != nil {
		return nil, err
	}
	var orgs []string
	for _, en := range nlp.Filter(ents, nlp.LabelOrg) {
		if w := strings.TrimSpace(en.Text); len(w) > 2 {
			orgs = append(orgs, w)
		}
	}

	var candidates []string
	for _, org := range orgs {
		if wordCount(org) > 1 && (orgSuffixRe.MatchString(org) || orgWordRe.MatchString(org) || len(org) > 5) {
			candidates = append(candidates, org)
		}
	}
	if m := betweenRe.FindStringSubmatch(first); m != nil {
		for _, side := range m[1:3] {
			for _, org := range orgs {
				if strings.Contains(side, org) && !contains(candidates, org) {
					candidates = append(candidates, org)
				}
			}
		}
	}

	parties := partiesFromNames(candidates)
	if last != "" {
		if err := e.attachSignatories(ctx, parties, last); err != nil {
			return parties, err
		}
	}
	return parties, nil
}

func joinPages(pages []parser.Page) string {
	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = p.Text
	}
	return strings.Join(texts, "\n")
}

// partiesFromNames normalises candidate names, drops false positives and
// names contained in an earlier one, and classifies each organisation.
func partiesFromNames(names []string) []contract.Party {
	var parties []contract.Party
	var seen []string
	for _, name := range names {
		name = quoteNormalizer.Replace(normalizeSpace(name))
		name = strings.TrimRight(name, ",;")
		if len(name) <= 5 || containsAny(strings.ToLower(name), partyFalsePositives) {
			continue
		}
		unique := true
		for _, s := range seen {
			if strings.Contains(s, name) || strings.Contains(name, s) {
				unique = false
				break
			}
		}
		if !unique {
			continue
		}
		seen = append(seen, name)
		parties = append(parties, contract.Party{
			Name:        name,
			Type:        organizationType(name),
			Signatories: []contract.Signatory{},
		})
	}
	return parties
}

func organizationType(name string) string {
	for _, t := range orgTypes {
		if t.re.MatchString(name) {
			return t.name
		}
	}
	return "Organization"
}

// sameOrg compares organisation names loosely: one must contain the other,
// ignoring case.
func sameOrg(a, b string) bool {
	a, b = strings.ToLower(normalizeSpace(a)), strings.ToLower(normalizeSpace(b))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// attachSignatories fills party signatories from signature blocks, then by
// proximity of people to organisations, then by order of appearance.
func (e *Extractor) attachSignatories(ctx context.Context, parties []contract.Party, text string) error {
	for _, re := range signaturePatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			company := lastLine(m[1])
			name := normalizeSpace(m[2])
			title := normalizeSpace(firstLine(m[3]))
			if company == "" || name == "" {
				continue
			}
			for i := range parties {
				if sameOrg(company, parties[i].Name) {
					addSignatory(&parties[i], contract.Signatory{Name: name, Title: title})
					break
				}
			}
		}
	}

	ents, err := nlp.RecognizeWindows(ctx, e.ner, text, windowSize, signatureNERLimit)
	if err != nil {
		return err
	}
	orgs := nlp.Filter(ents, nlp.LabelOrg)
	people := nlp.Filter(ents, nlp.LabelPerson)

	for _, p := range people {
		var closest *nlp.Entity
		best := proximityDistance
		for i := range orgs {
			d := abs(p.Start - orgs[i].Start)
			if d < best {
				best, closest = d, &orgs[i]
			}
		}
		if closest == nil {
			continue
		}
		for i := range parties {
			if sameOrg(closest.Text, parties[i].Name) {
				addSignatory(&parties[i], contract.Signatory{Name: p.Text, Title: "Signatory"})
				break
			}
		}
	}

	for _, p := range parties {
		if len(p.Signatories) > 0 {
			return nil
		}
	}
	var names []string
	for _, p := range people {
		if !contains(names, p.Text) {
			names = append(names, p.Text)
		}
	}
	for i := range parties {
		if i < len(names) {
			parties[i].Signatories = append(parties[i].Signatories, contract.Signatory{Name: names[i], Title: "Signatory"})
		}
	}
	return nil
}

// addSignatory appends s unless a signatory with the same name exists.
func addSignatory(p *contract.Party, s contract.Signatory) {
	for _, existing := range p.Signatories {
		if strings.EqualFold(existing.Name, s.Name) {
			return
		}
	}
	p.Signatories = append(p.Signatories, s)
}

// PartiesFromMetadata builds parties, without signatories, from the names
// found while reading metadata.
func PartiesFromMetadata(md contract.Metadata) []contract.Party {
	return partiesFromNames(md.PartyNames)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(line)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
