package nlp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticRecognizer struct {
	ents []Entity
	err  error
}

func (s staticRecognizer) Recognize(ctx context.Context, text string) ([]Entity, error) {
	return s.ents, s.err
}

type staticClassifier struct {
	c   Classification
	err error
}

func (s staticClassifier) Classify(ctx context.Context, text string, cats []Category) (Classification, error) {
	return s.c, s.err
}

func TestEnsembleMergesMembers(t *testing.T) {
	e := &Ensemble{Members: []Recognizer{
		staticRecognizer{ents: []Entity{{Label: LabelOrg, Text: "Acme Inc.", Start: 5, Score: 0.85}}},
		staticRecognizer{ents: []Entity{
			{Label: LabelOrg, Text: "ACME INC.", Start: 5, Score: 0.8},
			{Label: LabelDate, Text: "May 1, 2024", Start: 0, Score: 0.8},
		}},
		staticRecognizer{err: errors.New("model offline")},
	}}
	ents, err := e.Recognize(context.Background(), "text")
	require.NoError(t, err)
	require.Len(t, ents, 2)
	assert.Equal(t, LabelDate, ents[0].Label)
	assert.Equal(t, 0.85, ents[1].Score)
}

func TestEnsembleAllFail(t *testing.T) {
	e := &Ensemble{Members: []Recognizer{
		staticRecognizer{err: errors.New("a")},
		staticRecognizer{err: errors.New("b")},
	}}
	_, err := e.Recognize(context.Background(), "text")
	assert.ErrorContains(t, err, "all recognizers failed")
}

func TestFallbackClassifier(t *testing.T) {
	secondary := staticClassifier{c: Classification{Label: "rules", Score: 0.7}}

	f := &Fallback{Primary: staticClassifier{c: Classification{Label: "llm", Score: 0.9}}, Secondary: secondary}
	c, err := f.Classify(context.Background(), "x", nil)
	require.NoError(t, err)
	assert.Equal(t, "llm", c.Label)

	f.Primary = staticClassifier{err: errors.New("timeout")}
	c, err = f.Classify(context.Background(), "x", nil)
	require.NoError(t, err)
	assert.Equal(t, "rules", c.Label)

	f.Primary = staticClassifier{}
	c, err = f.Classify(context.Background(), "x", nil)
	require.NoError(t, err)
	assert.Equal(t, "rules", c.Label)
}

func TestNew(t *testing.T) {
	r, c, err := New(ModeRules, nil, LLMOptions{})
	require.NoError(t, err)
	assert.IsType(t, &RuleRecognizer{}, r)
	assert.IsType(t, &RuleClassifier{}, c)

	_, _, err = New(ModeLLM, nil, LLMOptions{})
	assert.Error(t, err)

	r, c, err = New(ModeEnsemble, &fakeChat{}, LLMOptions{})
	require.NoError(t, err)
	assert.IsType(t, &Ensemble{}, r)
	assert.IsType(t, &Fallback{}, c)

	r, _, err = New(ModeLLM, &fakeChat{}, LLMOptions{})
	require.NoError(t, err)
	require.IsType(t, &FallbackRecognizer{}, r)
	assert.IsType(t, &LLMRecognizer{}, r.(*FallbackRecognizer).Primary)

	_, _, err = New("spacy", nil, LLMOptions{})
	assert.ErrorContains(t, err, "unknown nlp mode")
}

func TestFallbackRecognizer(t *testing.T) {
	ctx := context.Background()
	primary := staticRecognizer{ents: []Entity{{Label: LabelOrg, Text: "Acme Inc."}}}
	secondary := staticRecognizer{ents: []Entity{{Label: LabelMoney, Text: "$5"}}}

	ents, err := (&FallbackRecognizer{Primary: primary, Secondary: secondary}).Recognize(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, primary.ents, ents)

	failing := staticRecognizer{err: errors.New("llm down")}
	ents, err = (&FallbackRecognizer{Primary: failing, Secondary: secondary}).Recognize(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, secondary.ents, ents)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = (&FallbackRecognizer{Primary: failing, Secondary: secondary}).Recognize(canceled, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLLMModeSurvivesProviderOutage(t *testing.T) {
	chat := &fakeChat{err: errors.New("connection refused")}
	r, c, err := New(ModeLLM, chat, LLMOptions{})
	require.NoError(t, err)

	ents, err := r.Recognize(context.Background(), "Acme Widgets Inc. shall pay $5,000 on March 1, 2024.")
	require.NoError(t, err)
	assert.NotEmpty(t, Filter(ents, LabelMoney))

	cls, err := c.Classify(context.Background(), "payment of fees", []Category{{Name: "Payment", Keywords: []string{"payment", "fees"}}})
	require.NoError(t, err)
	assert.Equal(t, "Payment", cls.Label)
	assert.NotEmpty(t, chat.prompts)
}
