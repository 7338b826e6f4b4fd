package statements

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema validates parsed records against a JSON Schema document.
type Schema struct {
	url    string
	schema *jsonschema.Schema
}

// CompileSchema compiles a schema from its JSON text.
func CompileSchema(name, text string) (*Schema, error) {
	url := "mem://" + name
	s, err := jsonschema.CompileString(url, text)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{url: url, schema: s}, nil
}

// LoadSchemaFile reads and compiles the schema at path.
func LoadSchemaFile(path string) (*Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	url := "file://" + path
	if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("load schema %s: %w", path, err)
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", path, err)
	}
	return &Schema{url: url, schema: s}, nil
}

// Validate checks rec against the schema. The record is normalised through
// encoding/json first so nested Go types match what the validator expects.
func (s *Schema) Validate(rec Record) error {
	if s == nil {
		return nil
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	if err := s.schema.Validate(doc); err != nil {
		return err
	}
	return nil
}
