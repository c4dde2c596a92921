package extract

import (
	"regexp"
	"strings"

	"github.com/brunobiangulo/contractgraph/contract"
)

// definitionMeansPattern matches lines where a quoted term is being
// defined, as in `"Services" means ...` or `"Term" shall have the meaning`.
var definitionMeansPattern = regexp.MustCompile(
	`(?i)^[ \t]*(?:\(?[a-z0-9]{1,3}[.)][ \t]+)?["\x{201c}]([^"\x{201c}\x{201d}]{1,80})["\x{201d}][ \t]*,?[ \t]+(?:means|shall\s+mean|shall\s+refer\s+to|refers\s+to|is\s+defined\s+as|shall\s+have\s+the\s+meaning)\b[ \t:]*`,
)

// inlineDefinitionPattern matches parenthetical definitions such as
// `(the "Agreement")` or `(hereinafter referred to as "Supplier")`.
var inlineDefinitionPattern = regexp.MustCompile(
	`\((?:the[ \t]+|each[ \t]+a[ \t]+|hereinafter[ \t]+(?:referred[ \t]+to[ \t]+as[ \t]+)?(?:the[ \t]+)?)?["\x{201c}]([A-Z][^"\x{201c}\x{201d}]{0,60})["\x{201d}]\)`,
)

var clauseStartPattern = regexp.MustCompile(`^(?:\d+(?:\.\d+)+|\(?[a-z]\))\s`)

// Definitions extracts defined terms from text. Terms defined with
// "means" carry the definition body, including continuation lines;
// parenthetical definitions carry the sentence that introduces them.
// Each term is reported once, first occurrence wins.
func Definitions(text string) []contract.Definition {
	var defs []contract.Definition
	seen := make(map[string]bool)
	add := func(term, body string) {
		key := strings.ToLower(strings.TrimSpace(term))
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		defs = append(defs, contract.Definition{Term: strings.TrimSpace(term), Text: body})
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if m := definitionMeansPattern.FindStringSubmatchIndex(line); m != nil {
			body := strings.TrimSpace(line[m[1]:])
			body = collectContinuation(lines, i, body)
			add(line[m[2]:m[3]], normalizeSpace(body))
		}
	}

	for _, m := range inlineDefinitionPattern.FindAllStringSubmatchIndex(text, -1) {
		add(text[m[2]:m[3]], sentenceAround(text, m[0], m[1]))
	}
	return defs
}

// collectContinuation gathers the non-empty lines that follow a definition
// start line until a blank line, a new clause or a new definition.
func collectContinuation(lines []string, startIdx int, initial string) string {
	var b strings.Builder
	b.WriteString(initial)
	for j := startIdx + 1; j < len(lines); j++ {
		trimmed := strings.TrimSpace(lines[j])
		if trimmed == "" {
			break
		}
		if clauseStartPattern.MatchString(trimmed) || definitionMeansPattern.MatchString(trimmed) {
			break
		}
		b.WriteString(" ")
		b.WriteString(trimmed)
	}
	return b.String()
}

// crossRefPatterns match common cross-reference styles found in
// contracts. Index i pairs with crossRefTypes[i].
var crossRefPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bclause\s+(\d+(?:\.\d+)*)`),
	regexp.MustCompile(`(?i)\bsections?\s+(\d+(?:\.\d+)*)`),
	regexp.MustCompile(`(?i)\barticles?\s+(\d+|[IVXLC]+)\b`),
	regexp.MustCompile(`(?i)\bschedule\s+([A-Z0-9]+)\b`),
	regexp.MustCompile(`(?i)\bappendix\s+([A-Z0-9]+)\b`),
	regexp.MustCompile(`(?i)\bannex\s+([A-Z0-9]+)\b`),
	regexp.MustCompile(`\((?:see|ref\.?)\s+(\d+(?:\.\d+)*)\)`),
}

var crossRefTypes = []string{"clause", "section", "article", "schedule", "appendix", "annex", "ref"}

// CrossReferences lists the references each article and section makes to
// other parts of the contract. Self references and repeats are dropped.
func CrossReferences(articles []contract.Article) []contract.CrossReference {
	var refs []contract.CrossReference
	seen := make(map[contract.CrossReference]bool)
	scan := func(article, section, text string) {
		for i, re := range crossRefPatterns {
			for _, m := range re.FindAllStringSubmatch(text, -1) {
				target := strings.TrimSuffix(m[1], ".")
				typ := crossRefTypes[i]
				if typ == "article" {
					target = strings.ToUpper(target)
				}
				if target == section || (typ == "article" && numericID(target) == article) {
					continue
				}
				ref := contract.CrossReference{FromArticle: article, FromSection: section, Type: typ, Target: target}
				if seen[ref] {
					continue
				}
				seen[ref] = true
				refs = append(refs, ref)
			}
		}
	}

	for _, a := range articles {
		id := a.NumericID
		if id == "" {
			id = a.Number
		}
		if len(a.Sections) == 0 {
			scan(id, "", a.Content)
			continue
		}
		for _, s := range a.Sections {
			scan(id, s.Number, s.Content)
		}
	}
	return refs
}
