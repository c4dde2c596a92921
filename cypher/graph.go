// Package cypher turns an extracted contract into a property graph and the
// Cypher statements that load it into Neo4j.
package cypher

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/brunobiangulo/contractgraph/contract"
)

// Node labels used in the contract graph.
const (
	LabelContract     = "Contract"
	LabelParty        = "Party"
	LabelPerson       = "Person"
	LabelArticle      = "Article"
	LabelSection      = "Section"
	LabelKeyProvision = "KeyProvision"
	LabelFinancial    = "Financial"
	LabelDate         = "Date"
	LabelTerm         = "Term"
	LabelEntity       = "Entity"
	LabelDefinition   = "Definition"
)

// Relationship types used in the contract graph.
const (
	RelPartyTo         = "PARTY_TO"
	RelRepresents      = "REPRESENTS"
	RelContains        = "CONTAINS"
	RelHasSection      = "HAS_SECTION"
	RelHasKeyProvision = "HAS_KEY_PROVISION"
	RelHasFinancial    = "HAS_FINANCIAL"
	RelHasDate         = "HAS_DATE"
	RelHasTerm         = "HAS_TERM"
	RelHasEntity       = "HAS_ENTITY"
	RelHasDefinition   = "HAS_DEFINITION"
	RelReferences      = "REFERENCES"
)

// TimestampLayout formats the import timestamp stored on the Contract node.
const TimestampLayout = "2006-01-02 15:04:05"

const (
	maxSectionContent = 500
	bullet            = "• "
)

// ContractKey is the key of the single Contract node of every graph.
const ContractKey = "contract"

// Node is a labelled vertex. Key is unique within one document.
type Node struct {
	Label string
	Key   string
	Props map[string]any
}

// Relationship connects two nodes of the same document by key.
type Relationship struct {
	Type  string
	From  string
	To    string
	Props map[string]any
}

// Graph is the property graph of one contract document.
type Graph struct {
	DocumentID    string
	DocumentName  string
	Nodes         []Node
	Relationships []Relationship

	index map[string]int
}

// ImportMeta identifies the document a graph is built from.
type ImportMeta struct {
	DocumentName string
	DocumentID   string
	Timestamp    time.Time
}

// Node returns the node with key, if any.
func (g *Graph) Node(key string) (Node, bool) {
	i, ok := g.index[key]
	if !ok {
		return Node{}, false
	}
	return g.Nodes[i], true
}

// Count returns the number of nodes carrying label.
func (g *Graph) Count(label string) int {
	n := 0
	for _, nd := range g.Nodes {
		if nd.Label == label {
			n++
		}
	}
	return n
}

func (g *Graph) addNode(label, key string, props map[string]any) {
	props["key"] = key
	props["documentId"] = g.DocumentID
	props["sourceDocument"] = g.DocumentName
	g.index[key] = len(g.Nodes)
	g.Nodes = append(g.Nodes, Node{Label: label, Key: key, Props: props})
}

func (g *Graph) relate(typ, from, to string) {
	g.Relationships = append(g.Relationships, Relationship{Type: typ, From: from, To: to})
}

// Build converts c into its graph representation.
func Build(c *contract.Contract, meta ImportMeta) *Graph {
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	g := &Graph{
		DocumentID:   meta.DocumentID,
		DocumentName: meta.DocumentName,
		index:        make(map[string]int),
	}

	g.addNode(LabelContract, ContractKey, map[string]any{
		"title":           c.Metadata.Title,
		"effectiveDate":   c.Metadata.EffectiveDate,
		"executionDate":   c.Metadata.ExecutionDate,
		"documentType":    c.Metadata.DocumentType,
		"source":          string(c.Source),
		"importTimestamp": meta.Timestamp.Format(TimestampLayout),
	})

	for i, p := range c.Parties {
		pk := fmt.Sprintf("party:%d", i)
		g.addNode(LabelParty, pk, map[string]any{"name": p.Name, "type": p.Type, "position": i})
		g.relate(RelPartyTo, pk, ContractKey)
		for j, s := range p.Signatories {
			sk := fmt.Sprintf("person:%d:%d", i, j)
			g.addNode(LabelPerson, sk, map[string]any{"name": s.Name, "title": s.Title, "position": j})
			g.relate(RelRepresents, sk, pk)
		}
	}

	for i, a := range c.Articles {
		ak := articleKey(i)
		g.addNode(LabelArticle, ak, map[string]any{
			"number":    a.Number,
			"numericId": a.NumericID,
			"position":  i,
			"title":     a.Title,
			"content":   a.Content,
		})
		g.relate(RelContains, ContractKey, ak)
		for j, s := range a.Sections {
			sk := sectionKey(i, j)
			g.addNode(LabelSection, sk, map[string]any{
				"number":   s.Number,
				"title":    s.Title,
				"content":  clip(s.Content),
				"position": j,
			})
			g.relate(RelHasSection, ak, sk)
		}
	}

	for i, kp := range c.KeyProvisions {
		k := fmt.Sprintf("provision:%d", i)
		g.addNode(LabelKeyProvision, k, map[string]any{
			"number": kp.Number, "title": kp.Title, "summary": kp.Summary, "position": i,
		})
		g.relate(RelHasKeyProvision, ContractKey, k)
	}
	for i, f := range c.Financials {
		k := fmt.Sprintf("financial:%d", i)
		g.addNode(LabelFinancial, k, map[string]any{"amount": f.Amount, "context": f.Context, "position": i})
		g.relate(RelHasFinancial, ContractKey, k)
	}
	for i, d := range c.KeyDates {
		k := fmt.Sprintf("date:%d", i)
		g.addNode(LabelDate, k, map[string]any{"value": d.Date, "context": d.Context, "position": i})
		g.relate(RelHasDate, ContractKey, k)
	}
	for i, t := range c.KeyTerms {
		k := fmt.Sprintf("term:%d", i)
		g.addNode(LabelTerm, k, map[string]any{"name": t.Name, "contexts": Bullets(t.Contexts), "position": i})
		g.relate(RelHasTerm, ContractKey, k)
	}
	for i, e := range c.NamedEntities {
		k := "entity:" + strings.ToLower(e.Type)
		g.addNode(LabelEntity, k, map[string]any{"type": e.Type, "values": Bullets(e.Values), "position": i})
		g.relate(RelHasEntity, ContractKey, k)
	}
	for i, d := range c.Definitions {
		k := fmt.Sprintf("definition:%d", i)
		g.addNode(LabelDefinition, k, map[string]any{"term": d.Term, "text": d.Text, "position": i})
		g.relate(RelHasDefinition, ContractKey, k)
	}

	g.addReferences(c)
	return g
}

func articleKey(i int) string    { return fmt.Sprintf("article:%d", i) }
func sectionKey(i, j int) string { return fmt.Sprintf("section:%d:%d", i, j) }

// addReferences links the referring article or section to the referenced
// article or section. References to schedules, annexes and other parts
// with no node of their own are skipped.
func (g *Graph) addReferences(c *contract.Contract) {
	articleByID := make(map[string]int)
	sectionByNumber := make(map[string]string)
	for i, a := range c.Articles {
		for _, id := range []string{a.NumericID, strings.ToUpper(a.Number)} {
			if _, ok := articleByID[id]; !ok && id != "" {
				articleByID[id] = i
			}
		}
		for j, s := range a.Sections {
			if _, ok := sectionByNumber[s.Number]; !ok {
				sectionByNumber[s.Number] = sectionKey(i, j)
			}
		}
	}

	seen := make(map[[2]string]bool)
	for _, ref := range c.CrossReferences {
		ai, ok := articleByID[ref.FromArticle]
		if !ok {
			continue
		}
		from := articleKey(ai)
		if ref.FromSection != "" {
			for j, s := range c.Articles[ai].Sections {
				if s.Number == ref.FromSection {
					from = sectionKey(ai, j)
					break
				}
			}
		}

		var to string
		switch ref.Type {
		case "article":
			if ti, ok := articleByID[strings.ToUpper(ref.Target)]; ok {
				to = articleKey(ti)
			}
		case "section", "clause", "ref":
			to = sectionByNumber[ref.Target]
			if to == "" {
				if ti, ok := articleByID[ref.Target]; ok {
					to = articleKey(ti)
				}
			}
		}
		if to == "" || to == from || seen[[2]string{from, to}] {
			continue
		}
		seen[[2]string{from, to}] = true
		g.Relationships = append(g.Relationships, Relationship{
			Type:  RelReferences,
			From:  from,
			To:    to,
			Props: map[string]any{"type": ref.Type, "target": ref.Target},
		})
	}
}

// clip truncates section content to maxSectionContent bytes, marking the cut.
func clip(s string) string {
	if len(s) <= maxSectionContent {
		return s
	}
	n := maxSectionContent - 3
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

// Bullets renders values as a "• " list, one per line.
func Bullets(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return bullet + strings.Join(values, "\n"+bullet)
}

// SplitBullets reverses Bullets.
func SplitBullets(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, "\n"+bullet)
	parts[0] = strings.TrimPrefix(parts[0], bullet)
	return parts
}
