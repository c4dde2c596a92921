package nlp

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/contractgraph/llm"
)

// fakeChat returns canned replies and records prompts.
type fakeChat struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (f *fakeChat) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, req.Messages[0].Content)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Content: f.reply}, nil
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		err  bool
	}{
		{"plain", `{"a":1}`, `{"a":1}`, false},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, false},
		{"prose", `Sure! Here it is: {"a":1} hope that helps`, `{"a":1}`, false},
		{"none", "no json here", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLLMRecognizer(t *testing.T) {
	text := "Acme Inc. pays Beta LLC $5,000. Acme Inc. is located in Texas."
	chat := &fakeChat{reply: "```json\n" + `{"entities":[
		{"label":"org","text":"Acme Inc."},
		{"label":"ORG","text":"Acme Inc."},
		{"label":"MONEY","text":"$5,000"},
		{"label":"GPE","text":"Paris"},
		{"label":"FOOD","text":"pizza"}
	]}` + "\n```"}

	ents, err := NewLLMRecognizer(chat, LLMOptions{}).Recognize(context.Background(), text)
	require.NoError(t, err)
	require.Len(t, ents, 3)

	assert.Equal(t, LabelOrg, ents[0].Label)
	assert.Equal(t, 0, ents[0].Start)
	// The second mention is located after the first.
	assert.Equal(t, 32, ents[1].Start)
	assert.Equal(t, "$5,000", text[ents[2].Start:ents[2].End])
	require.Len(t, chat.prompts, 1)
	assert.Contains(t, chat.prompts[0], text)
}

func TestLLMRecognizerEmptyText(t *testing.T) {
	chat := &fakeChat{}
	ents, err := NewLLMRecognizer(chat, LLMOptions{}).Recognize(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, ents)
	assert.Empty(t, chat.prompts)
}

func TestLLMRecognizerBadReply(t *testing.T) {
	chat := &fakeChat{reply: "I cannot help with that."}
	_, err := NewLLMRecognizer(chat, LLMOptions{}).Recognize(context.Background(), "Acme Inc.")
	assert.ErrorContains(t, err, "no JSON object")
}

func TestLLMClassifier(t *testing.T) {
	cats := []Category{{Name: "governing law", Keywords: []string{"laws of"}}, {Name: "termination"}}

	chat := &fakeChat{reply: `{"label":"Governing Law","score":1.4}`}
	c, err := NewLLMClassifier(chat, LLMOptions{}).Classify(context.Background(), "governed by the laws of Delaware", cats)
	require.NoError(t, err)
	assert.Equal(t, "governing law", c.Label)
	assert.Equal(t, 1.0, c.Score)
	assert.Contains(t, chat.prompts[0], "- governing law (signals: laws of)")

	chat = &fakeChat{reply: `{"label":"recipes","score":0.99}`}
	c, err = NewLLMClassifier(chat, LLMOptions{}).Classify(context.Background(), "text", cats)
	require.NoError(t, err)
	assert.Empty(t, c.Label)
}

func TestLLMRateLimitHonoursContext(t *testing.T) {
	r := NewLLMRecognizer(&fakeChat{reply: `{"entities":[]}`}, LLMOptions{RequestsPerSecond: 0.001})
	_, err := r.Recognize(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Recognize(ctx, "second")
	assert.Error(t, err)
}

func TestLLMErrorsPropagate(t *testing.T) {
	chat := &fakeChat{err: errors.New("connection refused")}
	_, err := NewLLMClassifier(chat, LLMOptions{}).Classify(context.Background(), "x", []Category{{Name: "a"}})
	assert.ErrorContains(t, err, "connection refused")
}
