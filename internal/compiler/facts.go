// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package compiler

import (
	"fmt"
	"os"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/minervacm/minerva/internal/value"
)

// readFacts loads a YAML facts file and converts it to runtime
// values bound into the evaluator's top scope.
func readFacts(path string) (map[string]value.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Code("FACTS_UNREADABLE").With("path", path).Wrap(err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, oops.Code("FACTS_INVALID").With("path", path).Hint("facts must be a YAML mapping").Wrap(err)
	}

	facts := make(map[string]value.Value, len(raw))
	for name, v := range raw {
		facts[name] = convertFact(v)
	}
	return facts, nil
}

// convertFact maps YAML-decoded data onto the value model.
func convertFact(v any) value.Value {
	switch t := v.(type) {
	case nil:
		return value.Undef{}
	case bool:
		return value.Boolean(t)
	case int:
		return value.Integer(int64(t))
	case int64:
		return value.Integer(t)
	case float64:
		return value.Double(t)
	case string:
		return value.String(t)
	case []any:
		array := make(value.Array, len(t))
		for i, element := range t {
			array[i] = convertFact(element)
		}
		return array
	case map[string]any:
		hash := value.NewHash()
		for _, key := range sortedKeys(t) {
			hash.Set(value.String(key), convertFact(t[key]))
		}
		return hash
	}
	return value.String(fmt.Sprintf("%v", v))
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}
