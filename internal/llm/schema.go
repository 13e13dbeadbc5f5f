package llm

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// SchemaCache compiles response schemas once per name. It is safe for
// concurrent use and is shared by all providers built by NewProvider.
type SchemaCache struct {
	mu       sync.Mutex
	compiled map[string]*jsonschema.Schema
}

// NewSchemaCache returns an empty cache.
func NewSchemaCache() *SchemaCache {
	return &SchemaCache{compiled: make(map[string]*jsonschema.Schema)}
}

// Validate checks raw against schema. A nil schema accepts anything and a
// nil cache compiles without caching. Failures are returned as
// *ErrInvalidResponse.
func (c *SchemaCache) Validate(schema *Schema, raw json.RawMessage) error {
	if schema == nil {
		return nil
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return &ErrInvalidResponse{Content: raw, Err: fmt.Errorf("invalid JSON: %w", err)}
	}

	compiled, err := c.get(schema)
	if err != nil {
		return &ErrInvalidResponse{Content: raw, Err: fmt.Errorf("compile schema %q: %w", schema.Name, err)}
	}

	if err := compiled.Validate(doc); err != nil {
		return &ErrInvalidResponse{Content: raw, Err: fmt.Errorf("schema validation failed: %w", err)}
	}
	return nil
}

// Len returns the number of compiled schemas.
func (c *SchemaCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.compiled)
}

// check applies the shared post-processing of every backend: structured
// output cut off by the token limit is unusable, otherwise it must satisfy
// the request schema.
func (c *SchemaCache) check(req Request, content json.RawMessage, stopReason string) error {
	if req.Schema == nil {
		return nil
	}
	if stopReason == "max_tokens" {
		return &ErrMaxTokensExceeded{Content: content}
	}
	return c.Validate(req.Schema, content)
}

func (c *SchemaCache) get(schema *Schema) (*jsonschema.Schema, error) {
	if c == nil {
		return CompileSchema(schema.Name, schema.Definition)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.compiled[schema.Name]; ok {
		return s, nil
	}

	s, err := CompileSchema(schema.Name, schema.Definition)
	if err != nil {
		return nil, err
	}
	c.compiled[schema.Name] = s
	return s, nil
}

// CompileSchema compiles a JSON Schema given as a Go value. The value is
// round-tripped through encoding/json because the compiler only accepts
// the generic decoded form (map[string]any, []any, float64...).
func CompileSchema(name string, definition any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(definition)
	if err != nil {
		return nil, fmt.Errorf("marshal schema definition: %w", err)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse schema definition: %w", err)
	}

	c := jsonschema.NewCompiler()
	url := fmt.Sprintf("schema://%s.json", name)
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	return s, nil
}
