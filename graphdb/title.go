package graphdb

import (
	"strings"
	"unicode"
)

// cleanTitle trims a stored contract title down to its heading: the first
// line, before any "ARTICLE", "Between" or parenthetical, without trailing
// punctuation. All-caps titles are title-cased.
func cleanTitle(title string) string {
	for _, sep := range []string{"\n", "ARTICLE", "Between", "("} {
		title, _, _ = strings.Cut(title, sep)
		title = strings.TrimSpace(title)
	}
	return finishTitle(title)
}

// provisionTitle cleans a key provision title. A bare article number is
// expanded to "Article N".
func provisionTitle(title string) string {
	if title == "" {
		return "Key Provision"
	}
	for _, sep := range []string{"\n", "ARTICLE"} {
		title, _, _ = strings.Cut(title, sep)
		title = strings.TrimSpace(title)
	}
	if isDigits(title) {
		title = "Article " + title
	}
	return finishTitle(title)
}

func finishTitle(title string) string {
	if strings.HasSuffix(title, ".") || strings.HasSuffix(title, ":") {
		title = strings.TrimSpace(title[:len(title)-1])
	}
	if isAllCaps(title) {
		title = titleCase(title)
	}
	return title
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isAllCaps(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

// titleCase upper-cases the first letter of every run of letters and
// lower-cases the rest, so "NON-DISCLOSURE AGREEMENT" reads
// "Non-Disclosure Agreement".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}
