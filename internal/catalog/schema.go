// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package catalog

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// SchemaID identifies the catalog document schema.
const SchemaID = "https://minervacm.github.io/schemas/catalog.schema.json"

// schemaState holds the compiled schema and sync.Once for thread-safe
// initialization.
type schemaState struct {
	once   sync.Once
	schema *jschema.Schema
	err    error
}

var globalSchemaState = &schemaState{}

// GenerateSchema generates a JSON Schema from the Document struct.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&Document{})

	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "Minerva Catalog"
	schema.Description = "Schema for compiled catalog documents"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.In("schema").Hint("failed to marshal schema").Wrap(err)
	}
	// Append trailing newline for POSIX compliance
	data = append(data, '\n')
	return data, nil
}

// ValidateSchema validates an emitted catalog document against the
// catalog JSON Schema.
func ValidateSchema(data []byte) error {
	if len(data) == 0 {
		return oops.In("schema").New("catalog data is empty")
	}

	document, err := jschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return oops.In("schema").Hint("invalid JSON").Wrap(err)
	}

	sch, err := getCompiledSchema()
	if err != nil {
		return oops.In("schema").Hint("failed to compile schema").Wrap(err)
	}

	if err := sch.Validate(document); err != nil {
		return oops.In("schema").Hint("catalog does not match schema").Wrap(err)
	}
	return nil
}

func getCompiledSchema() (*jschema.Schema, error) {
	globalSchemaState.once.Do(func() {
		generated, err := GenerateSchema()
		if err != nil {
			globalSchemaState.err = err
			return
		}
		document, err := jschema.UnmarshalJSON(bytes.NewReader(generated))
		if err != nil {
			globalSchemaState.err = err
			return
		}
		compiler := jschema.NewCompiler()
		if err := compiler.AddResource(SchemaID, document); err != nil {
			globalSchemaState.err = err
			return
		}
		globalSchemaState.schema, globalSchemaState.err = compiler.Compile(SchemaID)
	})
	return globalSchemaState.schema, globalSchemaState.err
}
