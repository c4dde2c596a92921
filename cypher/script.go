package cypher

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"
)

// WriteScript writes statements as a cypher-shell script wrapped in a
// single explicit transaction.
func WriteScript(w io.Writer, stmts []Statement, generatedAt time.Time) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "// Neo4j Cypher import script")
	fmt.Fprintf(bw, "// Generated on %s\n", generatedAt.Format(TimestampLayout))
	fmt.Fprintln(bw, "// Creates the graph representation of one contract. Run with cypher-shell -f.")
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, ":begin")
	for i, s := range stmts {
		line, err := s.Inline()
		if err != nil {
			return fmt.Errorf("statement %d: %w", i, err)
		}
		fmt.Fprintf(bw, "%s;\n", line)
	}
	fmt.Fprintln(bw, ":commit")
	return bw.Flush()
}

// ParseScript reads statements back from a script. Comments, blank lines
// and cypher-shell commands are skipped; a statement ends at a line
// ending in ";".
func ParseScript(r io.Reader) ([]Statement, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var (
		stmts []Statement
		cur   strings.Builder
	)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if cur.Len() == 0 && (line == "" || strings.HasPrefix(line, "//") || strings.HasPrefix(line, ":")) {
			continue
		}
		if strings.EqualFold(line, "BEGIN") || strings.EqualFold(line, "COMMIT") {
			continue
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
		if strings.HasSuffix(line, ";") {
			q := strings.TrimSpace(strings.TrimSuffix(cur.String(), ";"))
			if q != "" {
				stmts = append(stmts, Statement{Query: q})
			}
			cur.Reset()
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading cypher script: %w", err)
	}
	if q := strings.TrimSpace(cur.String()); q != "" {
		stmts = append(stmts, Statement{Query: q})
	}
	return stmts, nil
}
