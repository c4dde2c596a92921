package extract

import (
	"sort"
	"strconv"
	"strings"

	"github.com/brunobiangulo/contractgraph/contract"
	"github.com/brunobiangulo/contractgraph/parser"
)

// heading is a matched article or section heading line.
type heading struct {
	number string
	title  string
	start  int // offset of the heading line
	end    int // offset just past the heading line
}

// findHeadings applies patterns in order. A match overlapping one already
// accepted is dropped, so earlier patterns win. Results are sorted by offset.
func findHeadings(text string, patterns []headerPattern) []heading {
	var hs []heading
	for _, p := range patterns {
		for _, loc := range p.re.FindAllStringSubmatchIndex(text, -1) {
			if overlaps(hs, loc[0], loc[1]) {
				continue
			}
			h := heading{start: loc[0], end: loc[1]}
			if loc[2*p.number] >= 0 {
				h.number = strings.TrimSpace(text[loc[2*p.number]:loc[2*p.number+1]])
			}
			if p.title > 0 && loc[2*p.title] >= 0 {
				h.title = strings.TrimSpace(text[loc[2*p.title]:loc[2*p.title+1]])
			}
			hs = append(hs, h)
		}
	}
	sort.Slice(hs, func(i, j int) bool { return hs[i].start < hs[j].start })
	return hs
}

func overlaps(hs []heading, start, end int) bool {
	for _, h := range hs {
		if start < h.end && h.start < end {
			return true
		}
	}
	return false
}

// articleHeadings finds numbered article headings, falling back to
// all-caps heading lines numbered in order of appearance.
func articleHeadings(text string) []heading {
	hs := findHeadings(text, articlePatterns)
	if len(hs) > 0 {
		return hs
	}
	for i, loc := range capsHeadingPattern.FindAllStringSubmatchIndex(text, -1) {
		hs = append(hs, heading{
			number: strconv.Itoa(i + 1),
			title:  normalizeSpace(text[loc[2]:loc[3]]),
			start:  loc[0],
			end:    loc[1],
		})
	}
	return hs
}

func numericID(number string) string {
	if n, ok := romanToNumber[strings.ToUpper(number)]; ok {
		return n
	}
	return number
}

// bodyAfter returns the text between heading i and the next heading.
func bodyAfter(text string, hs []heading, i int) string {
	end := len(text)
	if i+1 < len(hs) {
		end = hs[i+1].start
	}
	return text[hs[i].end:end]
}

// ArticlesFromText segments plain text into articles and sections. Every
// article keeps its full body as content; sections are found inside it.
func ArticlesFromText(text string) []contract.Article {
	hs := articleHeadings(text)
	articles := make([]contract.Article, 0, len(hs))
	for i, h := range hs {
		body := strings.TrimSpace(bodyAfter(text, hs, i))
		articles = append(articles, contract.Article{
			Number:    h.number,
			NumericID: numericID(h.number),
			Title:     h.title,
			Content:   body,
			Sections:  sectionsIn(body, sectionPatterns),
		})
	}
	return dedupeArticles(articles)
}

// ArticlesFromPages segments parsed pages. Sections use the stricter
// structured heading patterns; an article without sections takes its body
// as content. Articles are ordered numerically when every id is a number.
func ArticlesFromPages(pages []parser.Page) []contract.Article {
	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = p.Text
	}
	text := strings.Join(texts, "\n")

	hs := articleHeadings(text)
	articles := make([]contract.Article, 0, len(hs))
	for i, h := range hs {
		body := bodyAfter(text, hs, i)
		a := contract.Article{
			Number:    h.number,
			NumericID: numericID(h.number),
			Title:     h.title,
			Sections:  sectionsIn(body, structuredSectionPatterns),
		}
		if len(a.Sections) == 0 {
			a.Content = strings.TrimSpace(body)
		}
		articles = append(articles, a)
	}
	articles = dedupeArticles(articles)
	sortNumeric(articles)
	return articles
}

// sectionsIn splits an article body at section headings. Heading text
// after a leading "Title." becomes part of the section content.
func sectionsIn(body string, patterns []headerPattern) []contract.Section {
	hs := findHeadings(body, patterns)
	if len(hs) == 0 {
		return nil
	}
	sections := make([]contract.Section, 0, len(hs))
	for i, h := range hs {
		title, rest := splitHeading(h.title)
		content := strings.TrimSpace(bodyAfter(body, hs, i))
		if rest != "" {
			content = strings.TrimSpace(rest + "\n" + content)
		}
		sections = append(sections, contract.Section{Number: h.number, Title: title, Content: content})
	}
	return sections
}

// dedupeArticles collapses repeated article numbers, as produced by a
// table of contents, preferring the occurrence that has content.
func dedupeArticles(articles []contract.Article) []contract.Article {
	seen := make(map[string]int)
	out := articles[:0]
	for _, a := range articles {
		key := strings.ToUpper(a.NumericID)
		if i, ok := seen[key]; ok {
			if !out[i].HasContent() && a.HasContent() {
				out[i] = a
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, a)
	}
	return out
}

func sortNumeric(articles []contract.Article) {
	ids := make([]int, len(articles))
	for i, a := range articles {
		n, err := strconv.Atoi(a.NumericID)
		if err != nil {
			return
		}
		ids[i] = n
	}
	idx := make([]int, len(articles))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return ids[idx[a]] < ids[idx[b]] })
	sorted := make([]contract.Article, len(articles))
	for i, j := range idx {
		sorted[i] = articles[j]
	}
	copy(articles, sorted)
}
