// Package llm is a small chat-completion client for OpenAI-compatible
// endpoints, used by the LLM-backed entity recognizer and classifier.
package llm

import (
	"context"
	"fmt"
)

// Provider sends chat completion requests.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatRequest is a chat completion request.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	// ResponseFormat can be set to "json_object" for JSON mode.
	ResponseFormat string `json:"response_format,omitempty"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatResponse struct {
	Content          string `json:"content"`
	Model            string `json:"model"`
	FinishReason     string `json:"finish_reason"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

// Config configures an LLM provider.
type Config struct {
	Provider string `json:"provider" yaml:"provider"` // ollama, lmstudio, openrouter, openai, groq, xai, gemini, custom
	Model    string `json:"model" yaml:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key"`
}

type preset struct {
	baseURL string
	prefix  string
	model   string
}

// presets holds the endpoint defaults for each named provider. Every one
// speaks the OpenAI chat completions dialect.
var presets = map[string]preset{
	"ollama":     {baseURL: "http://localhost:11434", prefix: "/v1"},
	"lmstudio":   {baseURL: "http://localhost:1234", prefix: "/v1"},
	"openrouter": {baseURL: "https://openrouter.ai/api", prefix: "/v1"},
	"openai":     {baseURL: "https://api.openai.com", prefix: "/v1", model: "gpt-4o-mini"},
	"groq":       {baseURL: "https://api.groq.com/openai", prefix: "/v1", model: "llama-3.3-70b-versatile"},
	"xai":        {baseURL: "https://api.x.ai", prefix: "/v1"},
	// Gemini's compatibility layer has no /v1 segment.
	"gemini": {baseURL: "https://generativelanguage.googleapis.com/v1beta/openai", prefix: "", model: "gemini-2.5-flash"},
	"custom": {prefix: "/v1"},
}

// NewProvider creates an LLM provider from configuration.
func NewProvider(cfg Config) (Provider, error) {
	if cfg.Provider == "" {
		return nil, fmt.Errorf("llm provider not specified")
	}
	p, ok := presets[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = p.baseURL
	}
	if cfg.Model == "" {
		cfg.Model = p.model
	}
	return newClient(cfg, p.prefix), nil
}
