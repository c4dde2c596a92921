package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/contractgraph/parser"
)

const ndaFirstPage = `NON-DISCLOSURE AGREEMENT
Effective Date: March 1, 2024
This Agreement is between Acme Widgets Inc. and Beta Systems LLC.
Confidential information disclosed under this agreement shall remain confidential.`

func TestMetadataFromPages(t *testing.T) {
	e := newTestExtractor()
	md, err := e.MetadataFromPages(context.Background(), []parser.Page{{Number: 1, Text: ndaFirstPage}})
	require.NoError(t, err)

	assert.Equal(t, "NON-DISCLOSURE AGREEMENT", md.Title)
	assert.Equal(t, "Non-Disclosure Agreement", md.DocumentType)
	assert.Equal(t, "March 1, 2024", md.EffectiveDate)
	assert.Equal(t, []string{"Acme Widgets Inc.", "Beta Systems LLC"}, md.PartyNames)
}

func TestMetadataFromPagesEmpty(t *testing.T) {
	md, err := newTestExtractor().MetadataFromPages(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Contract", md.DocumentType)
	assert.Empty(t, md.Title)
}

func TestMetadataFromPagesCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestExtractor().MetadataFromPages(ctx, []parser.Page{{Number: 1, Text: ndaFirstPage}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEffectiveDatePrefersContextPhrase(t *testing.T) {
	text := "This agreement is dated as of 5 June 2023 and renews on July 1, 2024."
	assert.Equal(t, "5 June 2023", effectiveDate(text, nil))
}

func TestEffectiveDateFallsBackToFirstMonthDayYear(t *testing.T) {
	assert.Equal(t, "July 1, 2024", effectiveDate("Signed on July 1, 2024.", nil))
	assert.Equal(t, "", effectiveDate("no dates here", nil))
	assert.Equal(t, "2024", effectiveDate("no context", []string{"2024"}))
}

func TestMetadataPartiesMergesContainedNames(t *testing.T) {
	got := metadataParties([]string{
		"Acme Widgets",
		"Acme Widgets Inc.",
		"Section 4 Inc.",
		"Beta Systems LLC",
		"Gamma",
	})
	assert.Equal(t, []string{"Acme Widgets Inc.", "Beta Systems LLC"}, got)
}

func TestMetadataFromText(t *testing.T) {
	text := `MASTER SERVICES AGREEMENT
This Agreement is made effective as of January 5, 2024 by and between Acme Widgets Inc. and Beta Systems LLC.
Signed this March 1, 2024.`

	md := MetadataFromText(text)
	assert.Equal(t, "MASTER SERVICES AGREEMENT", md.Title)
	assert.Equal(t, "Agreement", md.DocumentType)
	assert.Equal(t, "January 5, 2024", md.EffectiveDate)
	assert.Equal(t, "March 1, 2024", md.ExecutionDate)
	require.NotEmpty(t, md.PartyNames)
	assert.Contains(t, md.PartyNames[0], "Acme Widgets Inc.")
}

func TestMetadataFromTextDefaults(t *testing.T) {
	md := MetadataFromText("")
	assert.Equal(t, "Untitled Contract", md.Title)
	assert.Equal(t, "Unknown", md.DocumentType)
	assert.Empty(t, md.EffectiveDate)
}

func TestScoredTitlePrefersAgreementType(t *testing.T) {
	text := "Confidential\nConsulting Agreement\nBetween the parties below"
	assert.Equal(t, "Consulting Agreement", scoredTitle(text))
}
