package llm

import (
	"encoding/json"
	"errors"
	"testing"
)

func hintSchema() *Schema {
	return &Schema{
		Name:        "test-hint",
		Description: "A single hint",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"hint":  map[string]any{"type": "string", "minLength": 1},
				"level": map[string]any{"type": "integer", "minimum": 1, "maximum": 3},
				"tone":  map[string]any{"type": "string", "enum": []any{"gentle", "direct"}},
			},
			"required":             []any{"hint"},
			"additionalProperties": false,
		},
	}
}

func TestSchemaCache_Validate(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"all fields", `{"hint":"Line up the tens.","level":2,"tone":"gentle"}`, false},
		{"required only", `{"hint":"Line up the tens."}`, false},
		{"missing required", `{"level":2}`, true},
		{"wrong type", `{"hint":"x","level":"two"}`, true},
		{"out of range", `{"hint":"x","level":4}`, true},
		{"bad enum", `{"hint":"x","tone":"harsh"}`, true},
		{"extra property", `{"hint":"x","answer":"12"}`, true},
		{"empty string", `{"hint":""}`, true},
		{"malformed", `{not json}`, true},
		{"empty body", ``, true},
	}

	cache := NewSchemaCache()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cache.Validate(hintSchema(), json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var inv *ErrInvalidResponse
				if !errors.As(err, &inv) {
					t.Fatalf("expected ErrInvalidResponse, got %T", err)
				}
			}
		})
	}
}

func TestSchemaCache_CompilesOncePerName(t *testing.T) {
	cache := NewSchemaCache()
	for range 3 {
		if err := cache.Validate(hintSchema(), json.RawMessage(`{"hint":"x"}`)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if cache.Len() != 1 {
		t.Fatalf("expected 1 compiled schema, got %d", cache.Len())
	}
}

func TestSchemaCache_NilSchemaAcceptsAnything(t *testing.T) {
	if err := NewSchemaCache().Validate(nil, json.RawMessage(`not even json`)); err != nil {
		t.Fatalf("expected no error with nil schema, got: %v", err)
	}
}

func TestSchemaCache_NilCacheStillValidates(t *testing.T) {
	var cache *SchemaCache
	if err := cache.Validate(hintSchema(), json.RawMessage(`{"hint":"ok"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cache.Validate(hintSchema(), json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestSchemaCache_Check(t *testing.T) {
	cache := NewSchemaCache()
	req := Request{Schema: hintSchema()}

	var maxTok *ErrMaxTokensExceeded
	if err := cache.check(req, json.RawMessage(`{"hint":"ok"}`), "max_tokens"); !errors.As(err, &maxTok) {
		t.Fatalf("expected ErrMaxTokensExceeded, got %v", err)
	}
	if err := cache.check(Request{}, json.RawMessage(`plain text`), "max_tokens"); err != nil {
		t.Fatalf("unstructured output is never checked, got %v", err)
	}
	if err := cache.check(req, json.RawMessage(`{"hint":"ok"}`), "end"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
