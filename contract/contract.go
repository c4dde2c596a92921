// Package contract defines the structured representation of a parsed
// contract that flows between the extract, cypher, graphdb and render stages.
package contract

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Source records which input the structure was derived from.
type Source string

const (
	SourceJSON   Source = "json"
	SourceTXT    Source = "txt"
	SourceHybrid Source = "hybrid"
)

// Metadata holds the contract-level facts.
type Metadata struct {
	Title         string `json:"title"`
	DocumentType  string `json:"document_type"`
	EffectiveDate string `json:"effective_date"`
	ExecutionDate string `json:"execution_date,omitempty"`
	// PartyNames are the names found while reading metadata. They seed
	// Parties when no richer party extraction is available.
	PartyNames []string `json:"party_names,omitempty"`
}

// Signatory is a person signing on behalf of a party.
type Signatory struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

// Party is an organisation bound by the contract.
type Party struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Signatories []Signatory `json:"signatories"`
}

// Section is a numbered subdivision of an article.
type Section struct {
	Number  string `json:"number"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Article is a top-level division of the contract body.
type Article struct {
	Number    string    `json:"number"`
	NumericID string    `json:"numeric_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Sections  []Section `json:"sections"`
}

// HasContent reports whether the article or any of its sections carries text.
func (a Article) HasContent() bool {
	if strings.TrimSpace(a.Content) != "" {
		return true
	}
	for _, s := range a.Sections {
		if strings.TrimSpace(s.Content) != "" {
			return true
		}
	}
	return false
}

// KeyProvision is an article judged important enough to summarise.
type KeyProvision struct {
	Number  string `json:"number"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// Financial is a monetary amount with the sentence it appeared in.
type Financial struct {
	Amount  string `json:"amount"`
	Context string `json:"context"`
}

// KeyDate is a date mention with its surrounding context.
type KeyDate struct {
	Date    string `json:"date"`
	Context string `json:"context"`
}

// KeyTerm groups text excerpts under a legal topic such as "termination".
type KeyTerm struct {
	Name     string   `json:"name"`
	Contexts []string `json:"contexts"`
}

// EntityGroup lists the distinct named entities of one label.
type EntityGroup struct {
	Type   string   `json:"type"`
	Values []string `json:"values"`
}

// Definition is a defined term from the contract body.
type Definition struct {
	Term string `json:"term"`
	Text string `json:"text"`
}

// CrossReference links an article or section to another part of the contract.
type CrossReference struct {
	FromArticle string `json:"from_article"`
	FromSection string `json:"from_section,omitempty"`
	Type        string `json:"type"` // "article", "section", "clause"
	Target      string `json:"target"`
}

// Contract is the full extraction result for one document.
type Contract struct {
	DocumentID      string           `json:"document_id"`
	SourceDocument  string           `json:"source_document"`
	Source          Source           `json:"source"`
	Metadata        Metadata         `json:"metadata"`
	Parties         []Party          `json:"parties"`
	Articles        []Article        `json:"articles"`
	KeyProvisions   []KeyProvision   `json:"key_provisions"`
	Financials      []Financial      `json:"financials"`
	KeyDates        []KeyDate        `json:"key_dates"`
	KeyTerms        []KeyTerm        `json:"key_terms"`
	NamedEntities   []EntityGroup    `json:"named_entities"`
	Definitions     []Definition     `json:"definitions,omitempty"`
	CrossReferences []CrossReference `json:"cross_references,omitempty"`
}

// DocumentID derives the stable graph identifier for a file: its base name
// without extension.
func DocumentID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Load reads a contract previously written with Save.
func Load(path string) (*Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Contract
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding contract %s: %w", filepath.Base(path), err)
	}
	return &c, nil
}

// Save writes the contract as indented JSON.
func (c *Contract) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}
