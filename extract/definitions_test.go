package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/contractgraph/contract"
)

func TestDefinitions(t *testing.T) {
	text := `1. DEFINITIONS
"Confidential Information" means any information disclosed by a party
that is marked as confidential.
"Services" shall mean the hosting services.
"services" means a duplicate that is ignored.

This Agreement (the "Agreement") is made between Acme Widgets Inc. (the "Supplier") and Beta.`

	defs := Definitions(text)
	require.Len(t, defs, 4)

	assert.Equal(t, contract.Definition{
		Term: "Confidential Information",
		Text: "any information disclosed by a party that is marked as confidential.",
	}, defs[0])
	assert.Equal(t, contract.Definition{Term: "Services", Text: "the hosting services."}, defs[1])

	assert.Equal(t, "Agreement", defs[2].Term)
	assert.Contains(t, defs[2].Text, "This Agreement")
	assert.Equal(t, "Supplier", defs[3].Term)
	assert.Contains(t, defs[3].Text, `"Supplier"`)
}

func TestDefinitionsNone(t *testing.T) {
	assert.Empty(t, Definitions("The parties agree to cooperate."))
}

func TestCrossReferences(t *testing.T) {
	articles := []contract.Article{
		{
			Number: "1", NumericID: "1",
			Sections: []contract.Section{
				{Number: "1.1", Content: "Fees are set out in Section 2.1 and Schedule A. See Section 1.1."},
			},
		},
		{Number: "II", NumericID: "2", Content: "Subject to Article I and Article II, and clause 4.2. Refer to Section 2.1 and Section 2.1."},
	}

	refs := CrossReferences(articles)
	assert.Equal(t, []contract.CrossReference{
		{FromArticle: "1", FromSection: "1.1", Type: "section", Target: "2.1"},
		{FromArticle: "1", FromSection: "1.1", Type: "schedule", Target: "A"},
		{FromArticle: "2", Type: "clause", Target: "4.2"},
		{FromArticle: "2", Type: "section", Target: "2.1"},
		{FromArticle: "2", Type: "article", Target: "I"},
	}, refs)
}
