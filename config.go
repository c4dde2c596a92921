package contractgraph

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/brunobiangulo/contractgraph/graphdb"
	"github.com/brunobiangulo/contractgraph/llm"
	"github.com/brunobiangulo/contractgraph/nlp"
)

// Config holds all configuration for the pipeline.
type Config struct {
	// DataDir receives converted outputs and is what backup archives.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// DBPath is the SQLite run registry. Defaults to <DataDir>/contractgraph.db.
	DBPath string `json:"db_path" yaml:"db_path"`

	// TemplateDir overrides the built-in summary template when set.
	TemplateDir string `json:"template_dir" yaml:"template_dir"`

	// ParseMethod is "llamaparse", "native", "auto" (by PDF layout), or
	// empty to pick LlamaParse whenever an API key is configured.
	ParseMethod string           `json:"parse_method" yaml:"parse_method"`
	LlamaParse  LlamaParseConfig `json:"llamaparse" yaml:"llamaparse"`

	NLP   NLPConfig      `json:"nlp" yaml:"nlp"`
	Neo4j graphdb.Config `json:"neo4j" yaml:"neo4j"`
}

// LlamaParseConfig configures the hosted parsing service.
type LlamaParseConfig struct {
	APIKey       string        `json:"api_key" yaml:"api_key"`
	BaseURL      string        `json:"base_url" yaml:"base_url"`
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`
	MaxPolls     int           `json:"max_polls" yaml:"max_polls"`
}

// NLPConfig selects the entity recognition and classification backend.
type NLPConfig struct {
	Mode              string     `json:"mode" yaml:"mode"` // rules, llm, ensemble
	LLM               llm.Config `json:"llm" yaml:"llm"`
	RequestsPerSecond float64    `json:"requests_per_second" yaml:"requests_per_second"`
	Concurrency       int        `json:"concurrency" yaml:"concurrency"`
}

// DefaultConfig returns a Config that runs fully offline except for
// LlamaParse, which stays off until a key is supplied.
func DefaultConfig() Config {
	return Config{
		DataDir: "data",
		LlamaParse: LlamaParseConfig{
			PollInterval: 5 * time.Second,
			MaxPolls:     120,
		},
		NLP: NLPConfig{
			Mode: nlp.ModeRules,
			LLM: llm.Config{
				Provider: "ollama",
				Model:    "llama3.1:8b",
			},
			RequestsPerSecond: 2,
			Concurrency:       4,
		},
		Neo4j: graphdb.Config{
			URI:      "bolt://localhost:7687",
			User:     "neo4j",
			Database: "neo4j",
		},
	}
}

// LoadConfig builds the effective configuration: defaults, then the YAML
// file at path (skipped when empty), then .env, then environment
// overrides. The result is validated.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, filepath.Base(path), err)
		}
	}

	// A missing .env is normal; anything else is worth reporting.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("loading .env: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv() error {
	strs := []struct {
		key  string
		dest *string
	}{
		{"LLAMAPARSE_API_KEY", &c.LlamaParse.APIKey},
		{"LLAMAPARSE_BASE_URL", &c.LlamaParse.BaseURL},
		{"NEO4J_URI", &c.Neo4j.URI},
		{"NEO4J_USER", &c.Neo4j.User},
		{"NEO4J_PASSWORD", &c.Neo4j.Password},
		{"NEO4J_DATABASE", &c.Neo4j.Database},
		{"CONTRACTGRAPH_DATA_DIR", &c.DataDir},
		{"CONTRACTGRAPH_DB_PATH", &c.DBPath},
		{"CONTRACTGRAPH_TEMPLATE_DIR", &c.TemplateDir},
		{"CONTRACTGRAPH_PARSE_METHOD", &c.ParseMethod},
		{"CONTRACTGRAPH_NLP_MODE", &c.NLP.Mode},
		{"CONTRACTGRAPH_LLM_PROVIDER", &c.NLP.LLM.Provider},
		{"CONTRACTGRAPH_LLM_MODEL", &c.NLP.LLM.Model},
		{"CONTRACTGRAPH_LLM_BASE_URL", &c.NLP.LLM.BaseURL},
		{"CONTRACTGRAPH_LLM_API_KEY", &c.NLP.LLM.APIKey},
	}
	for _, s := range strs {
		if v, ok := os.LookupEnv(s.key); ok {
			*s.dest = v
		}
	}

	if v := os.Getenv("CONTRACTGRAPH_NLP_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: CONTRACTGRAPH_NLP_CONCURRENCY: %v", ErrInvalidConfig, err)
		}
		c.NLP.Concurrency = n
	}
	if v := os.Getenv("CONTRACTGRAPH_LLM_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: CONTRACTGRAPH_LLM_RPS: %v", ErrInvalidConfig, err)
		}
		c.NLP.RequestsPerSecond = f
	}
	if v := os.Getenv("LLAMAPARSE_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: LLAMAPARSE_POLL_INTERVAL: %v", ErrInvalidConfig, err)
		}
		c.LlamaParse.PollInterval = d
	}
	return nil
}

// Validate checks field values and fills derived defaults.
func (c *Config) Validate() error {
	var problems []string

	if c.DataDir == "" {
		problems = append(problems, "data_dir is empty")
	}
	if c.DBPath == "" && c.DataDir != "" {
		c.DBPath = filepath.Join(c.DataDir, "contractgraph.db")
	}
	switch c.ParseMethod {
	case "", "llamaparse", "native", "auto":
	default:
		problems = append(problems, fmt.Sprintf("unknown parse_method %q", c.ParseMethod))
	}
	if c.ParseMethod == "llamaparse" && c.LlamaParse.APIKey == "" {
		problems = append(problems, "parse_method llamaparse needs LLAMAPARSE_API_KEY")
	}
	if c.LlamaParse.PollInterval < 0 || c.LlamaParse.MaxPolls < 0 {
		problems = append(problems, "llamaparse polling values must not be negative")
	}
	switch c.NLP.Mode {
	case "", nlp.ModeRules:
	case nlp.ModeLLM, nlp.ModeEnsemble:
		if c.NLP.LLM.Provider == "" {
			problems = append(problems, fmt.Sprintf("nlp mode %s needs llm.provider", c.NLP.Mode))
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown nlp mode %q", c.NLP.Mode))
	}
	if c.NLP.Concurrency < 1 {
		problems = append(problems, "nlp.concurrency must be at least 1")
	}
	if c.NLP.RequestsPerSecond < 0 {
		problems = append(problems, "nlp.requests_per_second must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
