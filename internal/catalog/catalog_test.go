// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package catalog_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minervacm/minerva/internal/ast"
	"github.com/minervacm/minerva/internal/catalog"
	"github.com/minervacm/minerva/internal/lexer"
	"github.com/minervacm/minerva/internal/value"
)

func pos(line int) lexer.Position {
	return lexer.Position{Offset: 0, Line: line}
}

func TestAddResource_Duplicate(t *testing.T) {
	c := catalog.New()
	_, err := c.AddResource("File", "/a", "site.pp", pos(1), nil, false, false)
	require.NoError(t, err)
	_, err = c.AddResource("File", "/a", "site.pp", pos(5), nil, false, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "previously declared at site.pp:1")
}

func TestAddResource_Containment(t *testing.T) {
	c := catalog.New()
	resource, err := c.AddResource("File", "/a", "site.pp", pos(1), c.MainStage(), false, false)
	require.NoError(t, err)

	contained := false
	c.Graph().OutEdges(c.MainStage().VertexID(), func(target *catalog.Resource, label catalog.Relationship) bool {
		if label == catalog.RelationshipContains && target == resource {
			contained = true
		}
		return true
	})
	assert.True(t, contained)
}

func TestGraph_EdgeDeduplication(t *testing.T) {
	c := catalog.New()
	a, _ := c.AddResource("Notify", "a", "site.pp", pos(1), nil, false, false)
	b, _ := c.AddResource("Notify", "b", "site.pp", pos(2), nil, false, false)

	g := c.Graph()
	g.AddRelationship(catalog.RelationshipRequire, a, b)
	g.AddRelationship(catalog.RelationshipRequire, a, b)
	g.AddRelationship(catalog.RelationshipSubscribe, a, b)

	count := 0
	g.OutEdges(a.VertexID(), func(*catalog.Resource, catalog.Relationship) bool {
		count++
		return true
	})
	assert.Equal(t, 2, count)
}

func TestGraph_BeforeAndNotifyFlip(t *testing.T) {
	c := catalog.New()
	a, _ := c.AddResource("Notify", "a", "site.pp", pos(1), nil, false, false)
	b, _ := c.AddResource("Notify", "b", "site.pp", pos(2), nil, false, false)

	c.Graph().AddRelationship(catalog.RelationshipBefore, a, b)

	// a before b: the edge runs from b to a so it reads "b after a".
	found := false
	c.Graph().OutEdges(b.VertexID(), func(target *catalog.Resource, label catalog.Relationship) bool {
		if target == a && label == catalog.RelationshipBefore {
			found = true
		}
		return true
	})
	assert.True(t, found)
}

func TestDetectCycles(t *testing.T) {
	c := catalog.New()
	a, _ := c.AddResource("Notify", "a", "site.pp", pos(1), nil, false, false)
	b, _ := c.AddResource("Notify", "b", "site.pp", pos(2), nil, false, false)
	g := c.Graph()
	g.AddRelationship(catalog.RelationshipRequire, a, b)

	require.NoError(t, g.DetectCycles())

	g.AddRelationship(catalog.RelationshipRequire, b, a)
	err := g.DetectCycles()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "found 1 resource dependency cycle")
	assert.Contains(t, err.Error(), "Notify[a] declared at site.pp:1")
	assert.Contains(t, err.Error(), "Notify[b] declared at site.pp:2")
}

func TestDefineClass_Duplicate(t *testing.T) {
	c := catalog.New()
	require.NoError(t, c.DefineClass(&catalog.ClassDefinition{Name: "foo", Path: "a.pp", Position: pos(1)}))
	err := c.DefineClass(&catalog.ClassDefinition{Name: "Foo", Path: "b.pp", Position: pos(9)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "previously defined at a.pp:1")
}

func TestDefineNode_Indexing(t *testing.T) {
	c := catalog.New()
	tree := &ast.SyntaxTree{Path: "site.pp"}
	ctx := ast.Context{Tree: tree}

	require.NoError(t, c.DefineNode(&catalog.NodeDefinition{
		Names: []ast.Hostname{{Ctx: ctx, Value: "Web01.Example.COM"}},
		Path:  "site.pp", Position: pos(1),
	}))
	require.NoError(t, c.DefineNode(&catalog.NodeDefinition{
		Names: []ast.Hostname{{Ctx: ctx, Value: `^db\d+`, Regex: true}},
		Path:  "site.pp", Position: pos(2),
	}))
	require.NoError(t, c.DefineNode(&catalog.NodeDefinition{
		Names: []ast.Hostname{{Ctx: ctx, Default: true}},
		Path:  "site.pp", Position: pos(3),
	}))

	// Name lookup is case-insensitive.
	def, matched, err := c.SelectNode([]string{"web01.example.com"})
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, pos(1).Line, def.Position.Line)
	assert.Equal(t, "web01.example.com", matched)

	// Regex list is scanned in definition order.
	def, matched, err = c.SelectNode([]string{"db42"})
	require.NoError(t, err)
	assert.Equal(t, pos(2).Line, def.Position.Line)
	assert.Equal(t, `/^db\d+/`, matched)

	// The default catches everything else.
	def, matched, err = c.SelectNode([]string{"unknown.host"})
	require.NoError(t, err)
	assert.Equal(t, pos(3).Line, def.Position.Line)
	assert.Equal(t, "default", matched)
}

func TestDefineNode_Duplicates(t *testing.T) {
	c := catalog.New()
	tree := &ast.SyntaxTree{Path: "site.pp"}
	ctx := ast.Context{Tree: tree}

	require.NoError(t, c.DefineNode(&catalog.NodeDefinition{
		Names: []ast.Hostname{{Ctx: ctx, Default: true}},
		Path:  "site.pp", Position: pos(1),
	}))
	err := c.DefineNode(&catalog.NodeDefinition{
		Names: []ast.Hostname{{Ctx: ctx, Default: true}},
		Path:  "site.pp", Position: pos(2),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default node was previously defined at site.pp:1")
}

func TestSelectNode_NoMatchNoDefault(t *testing.T) {
	c := catalog.New()
	tree := &ast.SyntaxTree{Path: "site.pp"}
	require.NoError(t, c.DefineNode(&catalog.NodeDefinition{
		Names: []ast.Hostname{{Ctx: ast.Context{Tree: tree}, Value: "known"}},
		Path:  "site.pp", Position: pos(1),
	}))

	_, _, err := c.SelectNode([]string{"mystery.example.com", "mystery"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mystery.example.com, mystery")
}

func TestSelectNode_NoDefinitions(t *testing.T) {
	c := catalog.New()
	def, _, err := c.SelectNode([]string{"anything"})
	require.NoError(t, err)
	assert.Nil(t, def)
}

func TestWrite_DocumentShape(t *testing.T) {
	c := catalog.New()
	file, err := c.AddResource("File", "/etc/hosts", "/tmp/site.pp", pos(12), c.MainStage(), false, false)
	require.NoError(t, err)
	file.Set(&catalog.Attribute{Name: "ensure", Value: value.String("present")})
	file.Set(&catalog.Attribute{Name: "backup", Value: value.Undef{}})

	_, err = c.AddResource("Hidden", "x", "/tmp/site.pp", pos(20), c.MainStage(), true, false)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, c.Write(&buf, "agent.example.com", "production"))
	output := buf.String()

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "agent.example.com", doc["name"])
	assert.Equal(t, "production", doc["environment"])
	assert.NotEmpty(t, doc["transaction_uuid"])

	// Virtual resources are omitted from resources and edges.
	assert.NotContains(t, output, "Hidden")
	assert.Contains(t, output, `"title": "/etc/hosts"`)
	assert.Contains(t, output, `"file": "/tmp/site.pp"`)
	assert.Contains(t, output, `"line": 12`)
	// Undef attribute values are excluded.
	assert.NotContains(t, output, "backup")
	// The containment edge from the stage is present.
	assert.Contains(t, output, `"source": "Stage[main]"`)
	assert.Contains(t, output, `"target": "File[/etc/hosts]"`)
	// The synthesized main stage is emitted as a resource.
	stage := strings.Index(output, `"title": "main"`)
	require.Positive(t, stage)
}

func TestWrite_ParameterOrderPreserved(t *testing.T) {
	c := catalog.New()
	resource, err := c.AddResource("Notify", "a", "site.pp", pos(1), nil, false, false)
	require.NoError(t, err)
	resource.Set(&catalog.Attribute{Name: "zeta", Value: value.Integer(1)})
	resource.Set(&catalog.Attribute{Name: "alpha", Value: value.Integer(2)})

	var buf bytes.Buffer
	require.NoError(t, c.Write(&buf, "n", "production"))
	output := buf.String()
	assert.Less(t, strings.Index(output, `"zeta"`), strings.Index(output, `"alpha"`))
}

func TestWrite_ValidatesAgainstSchema(t *testing.T) {
	c := catalog.New()
	resource, err := c.AddResource("File", "/a", "site.pp", pos(1), c.MainStage(), false, false)
	require.NoError(t, err)
	resource.Set(&catalog.Attribute{Name: "ensure", Value: value.String("present")})

	var buf bytes.Buffer
	require.NoError(t, c.Write(&buf, "node", "production"))
	require.NoError(t, catalog.ValidateSchema(buf.Bytes()))
}

func TestGenerateSchema(t *testing.T) {
	schema, err := catalog.GenerateSchema()
	require.NoError(t, err)
	assert.Contains(t, string(schema), catalog.SchemaID)
	assert.Contains(t, string(schema), `"transaction_uuid"`)
}

func TestWriteDOT(t *testing.T) {
	c := catalog.New()
	a, _ := c.AddResource("Notify", "a", "site.pp", pos(1), nil, false, false)
	b, _ := c.AddResource("Notify", "b", "site.pp", pos(2), nil, false, false)
	c.Graph().AddRelationship(catalog.RelationshipSubscribe, a, b)

	var buf bytes.Buffer
	require.NoError(t, c.Graph().WriteDOT(&buf))
	output := buf.String()
	assert.Contains(t, output, "digraph catalog")
	assert.Contains(t, output, `"Notify[a]"`)
	assert.Contains(t, output, `"subscribes to"`)
}

func TestResource_AppendSemantics(t *testing.T) {
	c := catalog.New()
	resource, _ := c.AddResource("Notify", "a", "site.pp", pos(1), nil, false, false)

	resource.Append(&catalog.Attribute{Name: "message", Value: value.Array{value.String("x")}})
	resource.Append(&catalog.Attribute{Name: "message", Value: value.Array{value.String("y")}})
	resource.Append(&catalog.Attribute{Name: "message", Value: value.Array{}})
	assert.Equal(t, "[x, y]", resource.Get("message").Value.String())

	// Appending a scalar coerces it to an array element.
	resource.Append(&catalog.Attribute{Name: "message", Value: value.String("z")})
	assert.Equal(t, "[x, y, z]", resource.Get("message").Value.String())
}
