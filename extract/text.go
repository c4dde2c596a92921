package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// isUpper reports whether s has at least one cased letter and no
// lowercase ones.
func isUpper(s string) bool {
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

func wordCount(s string) int { return len(strings.Fields(s)) }

func normalizeSpace(s string) string { return strings.Join(strings.Fields(s), " ") }

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// containsAny reports whether lower contains any of the needles.
func containsAny(lower string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

// sentences splits text into trimmed sentences. Line breaks always end a
// sentence; within a line a sentence ends at . ! or ? followed by space.
func sentences(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		start := 0
		for i := 0; i < len(line); i++ {
			c := line[i]
			if (c == '.' || c == '!' || c == '?') && i+1 < len(line) && line[i+1] == ' ' {
				if s := strings.TrimSpace(line[start : i+1]); s != "" {
					out = append(out, s)
				}
				start = i + 1
			}
		}
		if s := strings.TrimSpace(line[start:]); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// sentenceAround returns the sentence of text containing [start,end),
// whitespace normalised. Sentence bounds are line breaks and sentence
// punctuation followed by a space.
func sentenceAround(text string, start, end int) string {
	if start < 0 || end > len(text) || start >= end {
		return ""
	}
	from := 0
	for i := start - 1; i >= 0; i-- {
		c := text[i]
		if c == '\n' {
			from = i + 1
			break
		}
		if (c == '.' || c == '!' || c == '?') && (text[i+1] == ' ' || text[i+1] == '\n') {
			from = i + 1
			break
		}
	}
	to := len(text)
	for i := end; i < len(text); i++ {
		c := text[i]
		if c == '\n' {
			to = i
			break
		}
		if (c == '.' || c == '!' || c == '?') && (i+1 == len(text) || text[i+1] == ' ' || text[i+1] == '\n') {
			to = i + 1
			break
		}
	}
	return normalizeSpace(text[from:to])
}

// firstSentence returns content up to its first period, with the period.
func firstSentence(content string) string {
	head, _, _ := strings.Cut(content, ".")
	return strings.TrimSpace(head) + "."
}

// splitHeading separates a heading line such as "Fees. Client shall pay"
// into its title and the body text that follows on the same line.
func splitHeading(line string) (title, rest string) {
	line = strings.TrimSpace(line)
	if i := strings.Index(line, ". "); i > 0 && wordCount(line[:i]) <= 8 {
		return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+2:])
	}
	return line, ""
}
