// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/minervacm/minerva/internal/value"
)

// Document is the emitted catalog, field order matching the wire
// format. Resources and parameter objects are pre-rendered so that
// insertion order survives encoding.
type Document struct {
	Tags            []string          `json:"tags"`
	Name            string            `json:"name"`
	Version         int64             `json:"version"`
	TransactionUUID string            `json:"transaction_uuid"`
	Environment     string            `json:"environment"`
	Resources       []json.RawMessage `json:"resources"`
	Edges           []DocumentEdge    `json:"edges"`
	Classes         []string          `json:"classes"`
}

// DocumentEdge is one containment edge of the document.
type DocumentEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Write serializes the catalog for a node. Virtual resources are
// omitted from both the resource list and the edges; only containment
// edges are written.
func (c *Catalog) Write(w io.Writer, nodeName, environment string) error {
	document := Document{
		Tags:            []string{},
		Name:            nodeName,
		Version:         time.Now().Unix(),
		TransactionUUID: ulid.Make().String(),
		Environment:     environment,
		Resources:       []json.RawMessage{},
		Edges:           []DocumentEdge{},
		Classes:         c.declaredOrder,
	}
	if document.Classes == nil {
		document.Classes = []string{}
	}

	for _, resource := range c.resources {
		if resource.Virtualized() {
			continue
		}
		rendered, err := marshalResource(resource)
		if err != nil {
			return oops.In("catalog").With("resource", resource.Ref()).Wrap(err)
		}
		document.Resources = append(document.Resources, rendered)

		c.graph.OutEdges(resource.vertexID, func(target *Resource, label Relationship) bool {
			if label != RelationshipContains || target.Virtualized() {
				return true
			}
			document.Edges = append(document.Edges, DocumentEdge{
				Source: resource.Ref(),
				Target: target.Ref(),
			})
			return true
		})
	}

	out, err := json.MarshalIndent(&document, "", "  ")
	if err != nil {
		return oops.In("catalog").Hint("failed to marshal catalog").Wrap(err)
	}
	out = append(out, '\n')
	_, err = w.Write(out)
	return err
}

// marshalResource renders one resource object, keeping parameters in
// attribute insertion order and skipping undef values.
func marshalResource(resource *Resource) (json.RawMessage, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	writeMember(&buf, "type", resource.TypeName, true)
	writeMember(&buf, "title", resource.Title, false)
	buf.WriteString(`, "tags": []`)

	// File and line are omitted for resources synthesized by the
	// compiler itself (path "main").
	if resource.Path != "main" {
		writeMember(&buf, "file", resource.Path, false)
		fmt.Fprintf(&buf, `, "line": %d`, resource.Position.Line)
	}
	fmt.Fprintf(&buf, `, "exported": %t`, resource.Exported())

	buf.WriteString(`, "parameters": {`)
	first := true
	var marshalErr error
	resource.EachAttribute(func(attribute *Attribute) bool {
		if value.IsUndef(attribute.Value) {
			return true
		}
		if !first {
			buf.WriteString(", ")
		}
		first = false
		key, _ := json.Marshal(attribute.Name)
		buf.Write(key)
		buf.WriteString(": ")
		rendered, err := marshalValue(attribute.Value)
		if err != nil {
			marshalErr = err
			return false
		}
		buf.Write(rendered)
		return true
	})
	if marshalErr != nil {
		return nil, marshalErr
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

func writeMember(buf *bytes.Buffer, name, val string, first bool) {
	if !first {
		buf.WriteString(", ")
	}
	key, _ := json.Marshal(name)
	buf.Write(key)
	buf.WriteString(": ")
	rendered, _ := json.Marshal(val)
	buf.Write(rendered)
}

// marshalValue renders a runtime value as JSON. Hashes keep insertion
// order; regexes, types, and references render as their string forms.
func marshalValue(v value.Value) ([]byte, error) {
	switch t := v.(type) {
	case value.Boolean:
		return json.Marshal(bool(t))
	case value.Integer:
		return json.Marshal(int64(t))
	case value.Double:
		return json.Marshal(float64(t))
	case value.String:
		return json.Marshal(string(t))
	case value.Array:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, element := range t {
			if i > 0 {
				buf.WriteString(", ")
			}
			rendered, err := marshalValue(element)
			if err != nil {
				return nil, err
			}
			buf.Write(rendered)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case *value.Hash:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, entry := range t.Entries() {
			if i > 0 {
				buf.WriteString(", ")
			}
			key, err := json.Marshal(entry.Key.String())
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteString(": ")
			rendered, err := marshalValue(entry.Value)
			if err != nil {
				return nil, err
			}
			buf.Write(rendered)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	}
	// Regexes, type descriptors, and references keep their display
	// form.
	return json.Marshal(v.String())
}
