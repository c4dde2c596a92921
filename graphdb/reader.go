package graphdb

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/brunobiangulo/contractgraph/contract"
	"github.com/brunobiangulo/contractgraph/cypher"
)

// Reader reads a contract graph back, keyed by document id.
type Reader struct {
	db Runner
}

func NewReader(db Runner) *Reader {
	return &Reader{db: db}
}

// ContractMetadata is the Contract node plus its provenance.
type ContractMetadata struct {
	contract.Metadata
	SourceDocument  string
	ImportTimestamp string
}

const metadataQuery = `
MATCH (c:Contract {documentId: $documentId})
RETURN c.title AS title,
       c.effectiveDate AS effective_date,
       c.executionDate AS execution_date,
       c.documentType AS document_type,
       c.sourceDocument AS source_document,
       c.importTimestamp AS import_timestamp
LIMIT 1`

func (r *Reader) ContractMetadata(ctx context.Context, documentID string) (ContractMetadata, error) {
	rows, err := r.db.Run(ctx, metadataQuery, params(documentID))
	if err != nil {
		return ContractMetadata{}, fmt.Errorf("reading contract metadata: %w", err)
	}
	if len(rows) == 0 {
		return ContractMetadata{}, fmt.Errorf("%w: %s", ErrContractNotFound, documentID)
	}
	row := rows[0]
	return ContractMetadata{
		Metadata: contract.Metadata{
			Title:         cleanTitle(str(row, "title")),
			DocumentType:  str(row, "document_type"),
			EffectiveDate: str(row, "effective_date"),
			ExecutionDate: str(row, "execution_date"),
		},
		SourceDocument:  str(row, "source_document"),
		ImportTimestamp: str(row, "import_timestamp"),
	}, nil
}

const partiesQuery = `
MATCH (p:Party {documentId: $documentId})-[:PARTY_TO]->(c:Contract {documentId: $documentId})
OPTIONAL MATCH (s:Person)-[:REPRESENTS]->(p)
WITH p, s ORDER BY s.position
WITH p, collect({name: s.name, title: s.title}) AS signatories
ORDER BY p.position
RETURN p.name AS party_name, p.type AS party_type, signatories`

const partiesFallbackQuery = `
MATCH (p:Party {documentId: $documentId})
WHERE p.name IS NOT NULL
  AND size(p.name) > 3
  AND NOT p.name IN ['', 'A', 'B', 'C', 'The']
RETURN DISTINCT p.name AS party_name, p.type AS party_type, [] AS signatories
ORDER BY
  CASE
    WHEN p.name CONTAINS 'Inc.' OR p.name CONTAINS 'Corporation' OR p.name CONTAINS 'LLC' THEN 0
    WHEN p.name CONTAINS 'B.V.' OR p.name CONTAINS 'GmbH' OR p.name CONTAINS 'Ltd' THEN 1
    ELSE 2
  END DESC
LIMIT 5`

// Parties follows PARTY_TO edges, falling back to any Party node of the
// document.
func (r *Reader) Parties(ctx context.Context, documentID string) ([]contract.Party, error) {
	rows, err := r.db.Run(ctx, partiesQuery, params(documentID))
	if err != nil {
		return nil, fmt.Errorf("reading parties: %w", err)
	}
	if len(rows) == 0 {
		rows, err = r.db.Run(ctx, partiesFallbackQuery, params(documentID))
		if err != nil {
			return nil, fmt.Errorf("reading parties: %w", err)
		}
	}

	var parties []contract.Party
	for _, row := range rows {
		name := cleanPartyName(str(row, "party_name"))
		if name == "" {
			continue
		}
		p := contract.Party{Name: name, Type: str(row, "party_type"), Signatories: []contract.Signatory{}}
		for _, m := range maps(row, "signatories") {
			if sn := str(m, "name"); sn != "" {
				p.Signatories = append(p.Signatories, contract.Signatory{Name: sn, Title: str(m, "title")})
			}
		}
		parties = append(parties, p)
	}
	return parties, nil
}

const articlesQuery = `
MATCH (c:Contract {documentId: $documentId})-[:CONTAINS]->(a:Article)
OPTIONAL MATCH (a)-[:HAS_SECTION]->(s:Section)
WITH a, s ORDER BY s.position
WITH a, collect({number: s.number, title: s.title, content: s.content}) AS sections
ORDER BY a.position, a.number
RETURN a.number AS article_number, a.numericId AS numeric_id, a.title AS article_title,
       a.content AS content, sections`

// Articles returns the articles in document order with their sections.
func (r *Reader) Articles(ctx context.Context, documentID string) ([]contract.Article, error) {
	rows, err := r.db.Run(ctx, articlesQuery, params(documentID))
	if err != nil {
		return nil, fmt.Errorf("reading articles: %w", err)
	}
	var articles []contract.Article
	for _, row := range rows {
		a := contract.Article{
			Number:    str(row, "article_number"),
			NumericID: str(row, "numeric_id"),
			Title:     str(row, "article_title"),
			Content:   str(row, "content"),
		}
		for _, m := range maps(row, "sections") {
			if str(m, "number") == "" {
				continue
			}
			a.Sections = append(a.Sections, contract.Section{
				Number:  str(m, "number"),
				Title:   str(m, "title"),
				Content: str(m, "content"),
			})
		}
		articles = append(articles, a)
	}
	return articles, nil
}

const keyProvisionsQuery = `
MATCH (c:Contract {documentId: $documentId})-[:HAS_KEY_PROVISION]->(kp:KeyProvision)
RETURN kp.number AS number, kp.title AS title, kp.summary AS summary
ORDER BY kp.position`

const keywordProvisionsQuery = `
MATCH (c:Contract {documentId: $documentId})-[:CONTAINS]->(a:Article)-[:HAS_SECTION]->(s:Section)
WHERE toLower(a.title) CONTAINS 'purpose' OR toLower(a.title) CONTAINS 'scope' OR
      toLower(a.title) CONTAINS 'license' OR toLower(a.title) CONTAINS 'term' OR
      toLower(a.title) CONTAINS 'payment' OR toLower(a.title) CONTAINS 'termination' OR
      toLower(a.title) CONTAINS 'background' OR toLower(a.title) CONTAINS 'recital' OR
      toLower(a.title) CONTAINS 'definitions' OR toLower(a.title) CONTAINS 'objective'
RETURN a.number AS number, a.title AS title,
       substring(s.content, 0, 200) + '...' AS summary
LIMIT 5`

// synthesizedProvisionQuery describes the contract from its type, parties
// and first financial term when no article qualifies as a key provision.
const synthesizedProvisionQuery = `
MATCH (c:Contract {documentId: $documentId})
WITH c
OPTIONAL MATCH (c)-[:HAS_FINANCIAL]->(f:Financial)
WITH c, collect(DISTINCT f.context)[0] AS financial_context
OPTIONAL MATCH (p:Party {documentId: $documentId})
WHERE p.name IS NOT NULL AND size(p.name) > 3
  AND NOT p.name IN ['', 'A', 'B', 'C', 'The']
WITH c, financial_context, collect(DISTINCT p.name) AS party_names
OPTIONAL MATCH (c)-[:CONTAINS]->(a:Article)
WHERE toLower(a.title) CONTAINS 'purpose' OR toLower(a.title) CONTAINS 'scope'
WITH c, financial_context, party_names, collect(a.title)[0] AS purpose_article
WITH c, financial_context, party_names, purpose_article,
     CASE WHEN c.documentType IS NOT NULL AND c.documentType <> '' THEN toLower(c.documentType) ELSE null END AS doc_type
RETURN 'Main' AS number,
       c.title AS title,
       'This ' + coalesce(doc_type, 'agreement') +
       CASE WHEN size(party_names) >= 2 THEN ' between ' + party_names[0] + ' and ' + party_names[1]
            WHEN size(party_names) = 1 THEN ' involving ' + party_names[0]
            ELSE ' between the involved parties'
       END +
       ' establishes terms for ' +
       CASE WHEN doc_type IS NOT NULL THEN 'a ' + doc_type + ' arrangement'
            WHEN purpose_article IS NOT NULL THEN 'activities related to ' + toLower(purpose_article)
            ELSE 'business operations between the parties'
       END +
       '. ' +
       CASE WHEN financial_context IS NOT NULL THEN 'Financial terms include ' + financial_context + '. '
            ELSE ''
       END AS summary`

// KeyProvisions reads stored key provisions. Without any, it falls back to
// articles with a keyword title and finally to one synthesized summary.
func (r *Reader) KeyProvisions(ctx context.Context, documentID string) ([]contract.KeyProvision, error) {
	var rows []map[string]any
	for _, q := range []string{keyProvisionsQuery, keywordProvisionsQuery, synthesizedProvisionQuery} {
		var err error
		rows, err = r.db.Run(ctx, q, params(documentID))
		if err != nil {
			return nil, fmt.Errorf("reading key provisions: %w", err)
		}
		if len(rows) > 0 {
			break
		}
	}

	provisions := make([]contract.KeyProvision, 0, len(rows))
	for _, row := range rows {
		summary := str(row, "summary")
		if summary == "" {
			summary = "No summary available."
		}
		provisions = append(provisions, contract.KeyProvision{
			Number:  str(row, "number"),
			Title:   provisionTitle(str(row, "title")),
			Summary: summary,
		})
	}
	return provisions, nil
}

const financialsQuery = `
MATCH (c:Contract {documentId: $documentId})-[:HAS_FINANCIAL]->(f:Financial)
RETURN f.amount AS amount, f.context AS context
ORDER BY f.position`

func (r *Reader) Financials(ctx context.Context, documentID string) ([]contract.Financial, error) {
	rows, err := r.db.Run(ctx, financialsQuery, params(documentID))
	if err != nil {
		return nil, fmt.Errorf("reading financials: %w", err)
	}
	out := make([]contract.Financial, 0, len(rows))
	for _, row := range rows {
		out = append(out, contract.Financial{Amount: str(row, "amount"), Context: str(row, "context")})
	}
	return out, nil
}

const keyDatesQuery = `
MATCH (c:Contract {documentId: $documentId})-[:HAS_DATE]->(d:Date)
RETURN d.value AS date, d.context AS context
ORDER BY d.position`

func (r *Reader) KeyDates(ctx context.Context, documentID string) ([]contract.KeyDate, error) {
	rows, err := r.db.Run(ctx, keyDatesQuery, params(documentID))
	if err != nil {
		return nil, fmt.Errorf("reading key dates: %w", err)
	}
	out := make([]contract.KeyDate, 0, len(rows))
	for _, row := range rows {
		out = append(out, contract.KeyDate{Date: str(row, "date"), Context: str(row, "context")})
	}
	return out, nil
}

const keyTermsQuery = `
MATCH (c:Contract {documentId: $documentId})-[:HAS_TERM]->(t:Term)
RETURN t.name AS name, t.contexts AS contexts
ORDER BY t.position`

func (r *Reader) KeyTerms(ctx context.Context, documentID string) ([]contract.KeyTerm, error) {
	rows, err := r.db.Run(ctx, keyTermsQuery, params(documentID))
	if err != nil {
		return nil, fmt.Errorf("reading key terms: %w", err)
	}
	out := make([]contract.KeyTerm, 0, len(rows))
	for _, row := range rows {
		out = append(out, contract.KeyTerm{Name: str(row, "name"), Contexts: cypher.SplitBullets(str(row, "contexts"))})
	}
	return out, nil
}

const namedEntitiesQuery = `
MATCH (c:Contract {documentId: $documentId})-[:HAS_ENTITY]->(e:Entity)
RETURN e.type AS type, e.values AS values
ORDER BY e.position`

func (r *Reader) NamedEntities(ctx context.Context, documentID string) ([]contract.EntityGroup, error) {
	rows, err := r.db.Run(ctx, namedEntitiesQuery, params(documentID))
	if err != nil {
		return nil, fmt.Errorf("reading named entities: %w", err)
	}
	out := make([]contract.EntityGroup, 0, len(rows))
	for _, row := range rows {
		out = append(out, contract.EntityGroup{Type: str(row, "type"), Values: cypher.SplitBullets(str(row, "values"))})
	}
	return out, nil
}

const definitionsQuery = `
MATCH (c:Contract {documentId: $documentId})-[:HAS_DEFINITION]->(d:Definition)
RETURN d.term AS term, d.text AS text
ORDER BY d.position`

func (r *Reader) Definitions(ctx context.Context, documentID string) ([]contract.Definition, error) {
	rows, err := r.db.Run(ctx, definitionsQuery, params(documentID))
	if err != nil {
		return nil, fmt.Errorf("reading definitions: %w", err)
	}
	var out []contract.Definition
	for _, row := range rows {
		out = append(out, contract.Definition{Term: str(row, "term"), Text: str(row, "text")})
	}
	return out, nil
}

// ContractInfo reads everything stored for documentID into a contract.
func (r *Reader) ContractInfo(ctx context.Context, documentID string) (*contract.Contract, error) {
	md, err := r.ContractMetadata(ctx, documentID)
	if err != nil {
		return nil, err
	}
	c := &contract.Contract{
		DocumentID:     documentID,
		SourceDocument: md.SourceDocument,
		Metadata:       md.Metadata,
	}
	if c.Parties, err = r.Parties(ctx, documentID); err != nil {
		return nil, err
	}
	if c.Articles, err = r.Articles(ctx, documentID); err != nil {
		return nil, err
	}
	if c.KeyProvisions, err = r.KeyProvisions(ctx, documentID); err != nil {
		return nil, err
	}
	if c.Financials, err = r.Financials(ctx, documentID); err != nil {
		return nil, err
	}
	if c.KeyDates, err = r.KeyDates(ctx, documentID); err != nil {
		return nil, err
	}
	if c.KeyTerms, err = r.KeyTerms(ctx, documentID); err != nil {
		return nil, err
	}
	if c.NamedEntities, err = r.NamedEntities(ctx, documentID); err != nil {
		return nil, err
	}
	if c.Definitions, err = r.Definitions(ctx, documentID); err != nil {
		return nil, err
	}
	return c, nil
}

func params(documentID string) map[string]any {
	return map[string]any{"documentId": documentID}
}

// str reads key from a record as a string. Missing and null values read
// as "".
func str(row map[string]any, key string) string {
	switch v := row[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprint(v)
	}
}

// maps reads a list of maps, as produced by collect({...}).
func maps(row map[string]any, key string) []map[string]any {
	list, _ := row[key].([]any)
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func cleanPartyName(name string) string {
	name, _, _ = strings.Cut(name, "\n")
	name, _, _ = strings.Cut(name, "(")
	return strings.TrimSpace(name)
}
