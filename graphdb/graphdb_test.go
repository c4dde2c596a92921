package graphdb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/contractgraph/contract"
	"github.com/brunobiangulo/contractgraph/cypher"
)

// fakeRunner answers queries from a canned table and records writes.
type fakeRunner struct {
	rows    map[string][]map[string]any
	err     error
	queries []string
	written [][]cypher.Statement
}

func (f *fakeRunner) Run(_ context.Context, query string, params map[string]any) ([]map[string]any, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.rows[query], nil
}

func (f *fakeRunner) ExecuteWrite(_ context.Context, stmts []cypher.Statement) error {
	if f.err != nil {
		return f.err
	}
	f.written = append(f.written, stmts)
	return nil
}

// orderingRunner serves fixed rows sorted by the property named in the
// query's trailing ORDER BY, as the database would.
type orderingRunner struct {
	fakeRunner
	rows []map[string]any
}

var trailingOrderBy = regexp.MustCompile(`ORDER BY \w+\.(\w+)\s*$`)

func (o *orderingRunner) Run(_ context.Context, query string, _ map[string]any) ([]map[string]any, error) {
	rows := append([]map[string]any(nil), o.rows...)
	if m := trailingOrderBy.FindStringSubmatch(query); m != nil {
		prop := m[1]
		sort.SliceStable(rows, func(i, j int) bool {
			a, b := rows[i][prop], rows[j][prop]
			if x, ok := a.(int); ok {
				return x < b.(int)
			}
			return fmt.Sprint(a) < fmt.Sprint(b)
		})
	}
	return rows, nil
}

func TestContractMetadataCleansTitle(t *testing.T) {
	db := &fakeRunner{rows: map[string][]map[string]any{
		metadataQuery: {{
			"title":            "MASTER SERVICES AGREEMENT\nARTICLE I",
			"document_type":    "Services Agreement",
			"effective_date":   "March 1, 2024",
			"execution_date":   nil,
			"source_document":  "msa_enhanced.json",
			"import_timestamp": "2024-03-01 12:00:00",
		}},
	}}

	md, err := NewReader(db).ContractMetadata(context.Background(), "msa")
	require.NoError(t, err)
	assert.Equal(t, "Master Services Agreement", md.Title)
	assert.Equal(t, "Services Agreement", md.DocumentType)
	assert.Empty(t, md.ExecutionDate)
	assert.Equal(t, "msa_enhanced.json", md.SourceDocument)
}

func TestContractMetadataNotFound(t *testing.T) {
	_, err := NewReader(&fakeRunner{}).ContractMetadata(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrContractNotFound)
}

func TestCleanTitle(t *testing.T) {
	tests := []struct{ in, want string }{
		{"SOFTWARE LICENSE AGREEMENT.", "Software License Agreement"},
		{"Consulting Agreement Between Acme and Beta", "Consulting Agreement"},
		{"Lease Agreement (the \"Lease\")", "Lease Agreement"},
		{"NON-DISCLOSURE AGREEMENT:", "Non-Disclosure Agreement"},
		{"Mixed Case Title", "Mixed Case Title"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanTitle(tt.in), tt.in)
	}
}

func TestProvisionTitle(t *testing.T) {
	assert.Equal(t, "Article 4", provisionTitle("4"))
	assert.Equal(t, "Payment", provisionTitle("PAYMENT:"))
	assert.Equal(t, "Key Provision", provisionTitle(""))
}

func TestPartiesFallback(t *testing.T) {
	db := &fakeRunner{rows: map[string][]map[string]any{
		partiesFallbackQuery: {
			{"party_name": "Acme Widgets Inc.\n(the Supplier)", "party_type": "Corporation", "signatories": []any{}},
			{"party_name": "Beta Systems LLC (Client)", "party_type": "Limited Liability Company", "signatories": []any{}},
		},
	}}

	parties, err := NewReader(db).Parties(context.Background(), "msa")
	require.NoError(t, err)
	require.Len(t, parties, 2)
	assert.Equal(t, "Acme Widgets Inc.", parties[0].Name)
	assert.Equal(t, "Beta Systems LLC", parties[1].Name)
	assert.Equal(t, []string{partiesQuery, partiesFallbackQuery}, db.queries)
}

func TestPartiesSkipsNullSignatories(t *testing.T) {
	db := &fakeRunner{rows: map[string][]map[string]any{
		partiesQuery: {{
			"party_name": "Acme Widgets Inc.",
			"party_type": "Corporation",
			"signatories": []any{
				map[string]any{"name": "John Smith", "title": "CEO"},
				map[string]any{"name": nil, "title": nil},
			},
		}},
	}}

	parties, err := NewReader(db).Parties(context.Background(), "msa")
	require.NoError(t, err)
	require.Len(t, parties, 1)
	assert.Equal(t, []contract.Signatory{{Name: "John Smith", Title: "CEO"}}, parties[0].Signatories)
}

func TestArticlesDropEmptySections(t *testing.T) {
	db := &fakeRunner{rows: map[string][]map[string]any{
		articlesQuery: {
			{"article_number": "1", "numeric_id": "1", "article_title": "SCOPE", "content": "body", "sections": []any{
				map[string]any{"number": nil, "title": nil, "content": nil},
			}},
			{"article_number": "2", "numeric_id": "2", "article_title": "FEES", "content": nil, "sections": []any{
				map[string]any{"number": "2.1", "title": "Invoices", "content": "Pay monthly."},
			}},
		},
	}}

	articles, err := NewReader(db).Articles(context.Background(), "msa")
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Empty(t, articles[0].Sections)
	assert.Equal(t, "body", articles[0].Content)
	assert.Equal(t, []contract.Section{{Number: "2.1", Title: "Invoices", Content: "Pay monthly."}}, articles[1].Sections)
}

func TestKeyProvisionsTiers(t *testing.T) {
	t.Run("stored", func(t *testing.T) {
		db := &fakeRunner{rows: map[string][]map[string]any{
			keyProvisionsQuery: {{"number": "2", "title": "PAYMENT", "summary": "2.1: Pay."}},
		}}
		got, err := NewReader(db).KeyProvisions(context.Background(), "msa")
		require.NoError(t, err)
		assert.Equal(t, []contract.KeyProvision{{Number: "2", Title: "Payment", Summary: "2.1: Pay."}}, got)
		assert.Len(t, db.queries, 1)
	})

	t.Run("keyword articles", func(t *testing.T) {
		db := &fakeRunner{rows: map[string][]map[string]any{
			keywordProvisionsQuery: {{"number": "3", "title": "3", "summary": nil}},
		}}
		got, err := NewReader(db).KeyProvisions(context.Background(), "msa")
		require.NoError(t, err)
		assert.Equal(t, []contract.KeyProvision{{Number: "3", Title: "Article 3", Summary: "No summary available."}}, got)
	})

	t.Run("synthesized", func(t *testing.T) {
		db := &fakeRunner{rows: map[string][]map[string]any{
			synthesizedProvisionQuery: {{"number": "Main", "title": "LEASE AGREEMENT", "summary": "This lease agreement between A and B establishes terms for a lease agreement arrangement. "}},
		}}
		got, err := NewReader(db).KeyProvisions(context.Background(), "msa")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Main", got[0].Number)
		assert.Equal(t, "Lease Agreement", got[0].Title)
		assert.Len(t, db.queries, 3)
	})
}

func TestContractInfo(t *testing.T) {
	db := &fakeRunner{rows: map[string][]map[string]any{
		metadataQuery:      {{"title": "MSA", "document_type": "Services Agreement"}},
		partiesQuery:       {{"party_name": "Acme Widgets Inc.", "party_type": "Corporation", "signatories": []any{}}},
		keyProvisionsQuery: {{"number": "1", "title": "Scope", "summary": "s"}},
		financialsQuery:    {{"amount": "$5,000", "context": "Pay $5,000."}},
		keyDatesQuery:      {{"date": "March 1, 2024", "context": "Effective March 1, 2024."}},
		keyTermsQuery:      {{"name": "payment terms", "contexts": cypher.Bullets([]string{"a", "b"})}},
		namedEntitiesQuery: {{"type": "ORG", "values": cypher.Bullets([]string{"Acme Widgets Inc."})}},
		definitionsQuery:   {{"term": "Services", "text": "the work"}},
	}}

	c, err := NewReader(db).ContractInfo(context.Background(), "msa")
	require.NoError(t, err)
	assert.Equal(t, "msa", c.DocumentID)
	assert.Equal(t, "Msa", c.Metadata.Title)
	assert.Len(t, c.Parties, 1)
	assert.Equal(t, []contract.KeyTerm{{Name: "payment terms", Contexts: []string{"a", "b"}}}, c.KeyTerms)
	assert.Equal(t, []contract.EntityGroup{{Type: "ORG", Values: []string{"Acme Widgets Inc."}}}, c.NamedEntities)
	assert.Equal(t, "$5,000", c.Financials[0].Amount)
	assert.Equal(t, "March 1, 2024", c.KeyDates[0].Date)
	assert.Len(t, c.Definitions, 1)
}

func TestReaderPropagatesErrors(t *testing.T) {
	db := &fakeRunner{err: errors.New("connection reset")}
	_, err := NewReader(db).ContractInfo(context.Background(), "msa")
	assert.ErrorContains(t, err, "connection reset")
}

func TestImporter(t *testing.T) {
	db := &fakeRunner{}
	im := NewImporter(db)

	stmts := []cypher.Statement{{Query: "CREATE (n:Contract $props)", Params: map[string]any{"props": map[string]any{"title": "x"}}}}
	require.NoError(t, im.Import(context.Background(), stmts))
	require.Len(t, db.written, 1)

	assert.Error(t, im.Import(context.Background(), nil))

	script := ":begin\nCREATE (n:Contract {title: 'x'});\nCREATE (n:Party {name: 'y'});\n:commit\n"
	require.NoError(t, im.ImportScript(context.Background(), strings.NewReader(script)))
	require.Len(t, db.written, 2)
	assert.Len(t, db.written[1], 2)
}

func TestImporterWrapsWriteError(t *testing.T) {
	db := &fakeRunner{err: errors.New("constraint violated")}
	err := NewImporter(db).Import(context.Background(), []cypher.Statement{{Query: "RETURN 1"}})
	assert.ErrorContains(t, err, "importing graph: constraint violated")
}

func TestOpenWithoutURI(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFinancialsKeepExtractionOrder(t *testing.T) {
	c := &contract.Contract{DocumentID: "msa"}
	for i := 1; i <= 12; i++ {
		c.Financials = append(c.Financials, contract.Financial{Amount: fmt.Sprintf("$%d,000", i)})
	}
	g := cypher.Build(c, cypher.ImportMeta{DocumentID: "msa"})

	// Stored rows come back in arbitrary order; newest node first here.
	var rows []map[string]any
	for i := len(g.Nodes) - 1; i >= 0; i-- {
		n := g.Nodes[i]
		if n.Label != cypher.LabelFinancial {
			continue
		}
		rows = append(rows, map[string]any{
			"amount":   n.Props["amount"],
			"context":  n.Props["context"],
			"key":      n.Props["key"],
			"position": n.Props["position"],
		})
	}

	got, err := NewReader(&orderingRunner{rows: rows}).Financials(context.Background(), "msa")
	require.NoError(t, err)
	require.Len(t, got, 12)
	for i, f := range got {
		assert.Equal(t, fmt.Sprintf("$%d,000", i+1), f.Amount)
	}
}

func TestListQueriesOrderByPosition(t *testing.T) {
	for _, q := range []string{partiesQuery, keyProvisionsQuery, financialsQuery, keyDatesQuery, keyTermsQuery, namedEntitiesQuery, definitionsQuery} {
		m := trailingOrderBy.FindStringSubmatch(q)
		if q == partiesQuery {
			assert.Contains(t, q, "ORDER BY p.position")
			continue
		}
		require.NotNil(t, m, q)
		assert.Equal(t, "position", m[1], q)
	}
}
