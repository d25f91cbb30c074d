package schema

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	js "github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator compiles JSON Schemas and validates documents against them.
// Compiled schemas are cached by content hash so hot schemas (the embedded
// triage response schema in particular) compile once per hour at most.
type Validator struct {
	cache *expirable.LRU[string, *js.Schema]
}

func NewValidator(maxSize int) *Validator {
	return &Validator{
		cache: expirable.NewLRU[string, *js.Schema](maxSize, nil, time.Hour),
	}
}

func (v *Validator) compiled(schemaJSON []byte) (*js.Schema, error) {
	sum := sha256.Sum256(schemaJSON)
	key := hex.EncodeToString(sum[:])
	if s, ok := v.cache.Get(key); ok {
		return s, nil
	}

	c := js.NewCompiler()
	c.ExtractAnnotations = true
	resourceURL := fmt.Sprintf("mem://schema/%s.json", key[:16])
	if err := c.AddResource(resourceURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	compiled, err := c.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	v.cache.Add(key, compiled)
	return compiled, nil
}

// Validate checks value against the schema given as raw JSON. The value is
// round-tripped through encoding/json so any Go value with JSON tags works.
func (v *Validator) Validate(schemaJSON []byte, value interface{}) error {
	compiled, err := v.compiled(schemaJSON)
	if err != nil {
		return err
	}

	valueBytes, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	var raw interface{}
	if err := json.Unmarshal(valueBytes, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}

	if err := compiled.Validate(raw); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
