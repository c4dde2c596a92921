package parser

import "fmt"

// Registry resolves a conversion method name to a Converter.
type Registry struct {
	converters map[string]Converter
	llamaParse bool
}

func NewRegistry() *Registry {
	r := &Registry{converters: make(map[string]Converter)}
	r.Register(&Native{})
	return r
}

// SetLlamaParse enables the hosted converter. An empty API key leaves it
// unregistered so Get reports ErrNotConfigured.
func (r *Registry) SetLlamaParse(cfg LlamaParseConfig) {
	if cfg.APIKey == "" {
		return
	}
	r.llamaParse = true
	r.Register(NewLlamaParse(cfg))
}

func (r *Registry) Register(c Converter) {
	r.converters[c.Name()] = c
}

// Get returns the converter for method. An empty method picks LlamaParse
// when it is configured and the native extractor otherwise; "auto" lets
// the PDF layout decide.
func (r *Registry) Get(method string) (Converter, error) {
	if method == "auto" {
		return &Auto{Native: r.converters["native"], Hosted: r.converters["llamaparse"]}, nil
	}
	if method == "" {
		if r.llamaParse {
			method = "llamaparse"
		} else {
			method = "native"
		}
	}
	c, ok := r.converters[method]
	if !ok {
		if method == "llamaparse" {
			return nil, ErrNotConfigured
		}
		return nil, fmt.Errorf("no converter for method: %s", method)
	}
	return c, nil
}
