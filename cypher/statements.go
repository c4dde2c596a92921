package cypher

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Statement is one parameterised Cypher statement.
type Statement struct {
	Query  string
	Params map[string]any
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Statements renders g as Cypher. The first statement removes any nodes a
// previous import of the same document left behind, so re-importing is
// idempotent.
func Statements(g *Graph) []Statement {
	stmts := make([]Statement, 0, 1+len(g.Nodes)+len(g.Relationships))
	stmts = append(stmts, Statement{
		Query:  "MATCH (n {documentId: $documentId}) DETACH DELETE n",
		Params: map[string]any{"documentId": g.DocumentID},
	})

	for _, n := range g.Nodes {
		stmts = append(stmts, Statement{
			Query:  fmt.Sprintf("CREATE (n:%s $props)", quoteIdent(n.Label)),
			Params: map[string]any{"props": n.Props},
		})
	}

	for _, r := range g.Relationships {
		from, okFrom := g.Node(r.From)
		to, okTo := g.Node(r.To)
		if !okFrom || !okTo {
			continue
		}
		rel := quoteIdent(r.Type)
		params := map[string]any{"documentId": g.DocumentID, "from": r.From, "to": r.To}
		if len(r.Props) > 0 {
			rel += " $props"
			params["props"] = r.Props
		}
		stmts = append(stmts, Statement{
			Query: fmt.Sprintf(
				"MATCH (a:%s {documentId: $documentId, key: $from}) MATCH (b:%s {documentId: $documentId, key: $to}) CREATE (a)-[:%s]->(b)",
				quoteIdent(from.Label), quoteIdent(to.Label), rel,
			),
			Params: params,
		})
	}
	return stmts
}

func quoteIdent(s string) string {
	if identRe.MatchString(s) {
		return s
	}
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

var paramRe = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)

// Inline returns the statement with every parameter replaced by its
// literal, as needed by cypher-shell scripts.
func (s Statement) Inline() (string, error) {
	var missing []string
	out := paramRe.ReplaceAllStringFunc(s.Query, func(m string) string {
		v, ok := s.Params[m[1:]]
		if !ok {
			missing = append(missing, m)
			return m
		}
		return Literal(v)
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("unbound parameters %s", strings.Join(missing, ", "))
	}
	return out, nil
}

var stringEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// Literal renders v as a Cypher literal. Maps are rendered with sorted keys.
func Literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return "'" + stringEscaper.Replace(x) + "'"
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []string:
		parts := make([]string, len(x))
		for i, s := range x {
			parts[i] = Literal(s)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = Literal(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = quoteIdent(k) + ": " + Literal(x[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return Literal(fmt.Sprint(x))
	}
}
