package cypher

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/contractgraph/contract"
)

func sampleContract() *contract.Contract {
	return &contract.Contract{
		DocumentID: "msa",
		Source:     contract.SourceJSON,
		Metadata:   contract.Metadata{Title: "MASTER SERVICES AGREEMENT", DocumentType: "Services Agreement", EffectiveDate: "March 1, 2024"},
		Parties: []contract.Party{
			{Name: "Acme Widgets Inc.", Type: "Corporation", Signatories: []contract.Signatory{{Name: "John Smith", Title: "CEO"}}},
			{Name: "Beta Systems LLC", Type: "Limited Liability Company"},
		},
		Articles: []contract.Article{
			{Number: "I", NumericID: "1", Title: "DEFINITIONS", Sections: []contract.Section{
				{Number: "1.1", Title: "Services", Content: "See Section 2.1 for fees."},
			}},
			{Number: "II", NumericID: "2", Title: "PAYMENT", Sections: []contract.Section{
				{Number: "2.1", Title: "Fees", Content: strings.Repeat("x", 600)},
			}},
		},
		KeyProvisions: []contract.KeyProvision{{Number: "II", Title: "PAYMENT", Summary: "2.1: Fees."}},
		Financials:    []contract.Financial{{Amount: "$5,000", Context: "Client pays $5,000."}},
		KeyDates:      []contract.KeyDate{{Date: "March 1, 2024", Context: "Effective March 1, 2024."}},
		KeyTerms:      []contract.KeyTerm{{Name: "payment terms", Contexts: []string{"pay on time", "invoice monthly"}}},
		NamedEntities: []contract.EntityGroup{{Type: "ORG", Values: []string{"Acme Widgets Inc.", "Beta Systems LLC"}}},
		Definitions:   []contract.Definition{{Term: "Services", Text: "the consulting work"}},
		CrossReferences: []contract.CrossReference{
			{FromArticle: "1", FromSection: "1.1", Type: "section", Target: "2.1"},
			{FromArticle: "1", FromSection: "1.1", Type: "schedule", Target: "A"},
		},
	}
}

var importMeta = ImportMeta{
	DocumentName: "msa_enhanced.json",
	DocumentID:   "msa",
	Timestamp:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
}

func relTypes(g *Graph) map[string]int {
	out := make(map[string]int)
	for _, r := range g.Relationships {
		out[r.Type]++
	}
	return out
}

func TestBuild(t *testing.T) {
	g := Build(sampleContract(), importMeta)

	assert.Equal(t, 1, g.Count(LabelContract))
	assert.Equal(t, 2, g.Count(LabelParty))
	assert.Equal(t, 1, g.Count(LabelPerson))
	assert.Equal(t, 2, g.Count(LabelArticle))
	assert.Equal(t, 2, g.Count(LabelSection))
	assert.Equal(t, 1, g.Count(LabelDefinition))

	assert.Equal(t, map[string]int{
		RelPartyTo:         2,
		RelRepresents:      1,
		RelContains:        2,
		RelHasSection:      2,
		RelHasKeyProvision: 1,
		RelHasFinancial:    1,
		RelHasDate:         1,
		RelHasTerm:         1,
		RelHasEntity:       1,
		RelHasDefinition:   1,
		RelReferences:      1,
	}, relTypes(g))

	c, ok := g.Node(ContractKey)
	require.True(t, ok)
	assert.Equal(t, "2024-03-01 12:00:00", c.Props["importTimestamp"])
	for _, n := range g.Nodes {
		assert.Equal(t, "msa", n.Props["documentId"], n.Key)
		assert.Equal(t, "msa_enhanced.json", n.Props["sourceDocument"], n.Key)
	}
}

func TestBuildKeepsArticleContent(t *testing.T) {
	c := sampleContract()
	c.Articles[0].Content = strings.Repeat("y", 900)
	g := Build(c, importMeta)
	a, ok := g.Node(articleKey(0))
	require.True(t, ok)
	assert.Len(t, a.Props["content"], 900)
}

func TestBuildRecordsPositions(t *testing.T) {
	c := sampleContract()
	c.Definitions = append(c.Definitions, contract.Definition{Term: "Fees", Text: "the amounts due"})
	g := Build(c, importMeta)
	for key, want := range map[string]int{
		"party:0": 0, "party:1": 1, "person:0:0": 0, "provision:0": 0,
		"financial:0": 0, "date:0": 0, "term:0": 0, "entity:org": 0,
		"definition:0": 0, "definition:1": 1,
	} {
		n, ok := g.Node(key)
		require.True(t, ok, key)
		assert.Equal(t, want, n.Props["position"], key)
	}
}

func TestBuildClipsSectionContent(t *testing.T) {
	g := Build(sampleContract(), importMeta)
	s, ok := g.Node(sectionKey(1, 0))
	require.True(t, ok)
	content := s.Props["content"].(string)
	assert.Len(t, content, 500)
	assert.True(t, strings.HasSuffix(content, "..."))
}

func TestBuildReferencesResolveSections(t *testing.T) {
	g := Build(sampleContract(), importMeta)
	var refs []Relationship
	for _, r := range g.Relationships {
		if r.Type == RelReferences {
			refs = append(refs, r)
		}
	}
	require.Len(t, refs, 1)
	assert.Equal(t, sectionKey(0, 0), refs[0].From)
	assert.Equal(t, sectionKey(1, 0), refs[0].To)
}

func TestBullets(t *testing.T) {
	s := Bullets([]string{"a", "b"})
	assert.Equal(t, "• a\n• b", s)
	assert.Equal(t, []string{"a", "b"}, SplitBullets(s))
	assert.Empty(t, Bullets(nil))
	assert.Nil(t, SplitBullets(""))
}

func TestStatements(t *testing.T) {
	g := Build(sampleContract(), importMeta)
	stmts := Statements(g)
	require.Len(t, stmts, 1+len(g.Nodes)+len(g.Relationships))

	assert.Equal(t, "MATCH (n {documentId: $documentId}) DETACH DELETE n", stmts[0].Query)
	assert.Equal(t, "msa", stmts[0].Params["documentId"])
	assert.Equal(t, "CREATE (n:Contract $props)", stmts[1].Query)

	last := stmts[len(stmts)-1]
	assert.Equal(t,
		"MATCH (a:Section {documentId: $documentId, key: $from}) MATCH (b:Section {documentId: $documentId, key: $to}) CREATE (a)-[:REFERENCES $props]->(b)",
		last.Query)
	assert.Equal(t, "section:0:0", last.Params["from"])
}

func TestLiteral(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"it's", `'it\'s'`},
		{"a\nb", `'a\nb'`},
		{`c:\path`, `'c:\\path'`},
		{nil, "null"},
		{3, "3"},
		{1.5, "1.5"},
		{true, "true"},
		{[]string{"a", "b"}, "['a', 'b']"},
		{map[string]any{"b": 1, "a": "x", "weird key": 2}, "{a: 'x', b: 1, `weird key`: 2}"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Literal(tt.in))
	}
}

func TestInlineUnboundParameter(t *testing.T) {
	_, err := Statement{Query: "MATCH (n {id: $id}) RETURN n"}.Inline()
	assert.ErrorContains(t, err, "$id")
}

func TestScriptRoundTrip(t *testing.T) {
	stmts := Statements(Build(sampleContract(), importMeta))

	var buf bytes.Buffer
	require.NoError(t, WriteScript(&buf, stmts, importMeta.Timestamp))
	script := buf.String()

	assert.True(t, strings.HasPrefix(script, "// Neo4j Cypher import script\n// Generated on 2024-03-01 12:00:00\n"))
	assert.Contains(t, script, "\n:begin\n")
	assert.True(t, strings.HasSuffix(script, ":commit\n"))
	assert.Contains(t, script, "MATCH (n {documentId: 'msa'}) DETACH DELETE n;")

	parsed, err := ParseScript(strings.NewReader(script))
	require.NoError(t, err)
	require.Len(t, parsed, len(stmts))
	for i, s := range stmts {
		want, err := s.Inline()
		require.NoError(t, err)
		assert.Equal(t, want, parsed[i].Query)
		assert.Nil(t, parsed[i].Params)
	}
}

func TestParseScriptLegacyWrapper(t *testing.T) {
	script := `// old style
BEGIN

// MATCH (n) DETACH DELETE n;
CREATE (c:Contract {title: 'X'});
MATCH (c:Contract)
RETURN c;

COMMIT
`
	stmts, err := ParseScript(strings.NewReader(script))
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE (c:Contract {title: 'X'})", stmts[0].Query)
	assert.Equal(t, "MATCH (c:Contract)\nRETURN c", stmts[1].Query)
}
