// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package compiler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minervacm/minerva/internal/catalog"
	"github.com/minervacm/minerva/internal/compiler"
	"github.com/minervacm/minerva/internal/config"
)

type compiled struct {
	result *compiler.Result
	logs   *bytes.Buffer
	json   []byte
}

func compile(t *testing.T, cfg config.Config, src string) (*compiled, error) {
	t.Helper()
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c := compiler.New(cfg, logger)
	result, err := c.Compile(context.Background(), "/tmp/site.pp", src)
	if err != nil {
		return &compiled{logs: logs}, err
	}
	var buf bytes.Buffer
	require.NoError(t, result.Catalog.Write(&buf, cfg.NodeName, cfg.Environment))
	return &compiled{result: result, logs: logs, json: buf.Bytes()}, nil
}

func mustCompile(t *testing.T, src string) *compiled {
	t.Helper()
	out, err := compile(t, config.Defaults(), src)
	require.NoError(t, err)
	return out
}

func decode(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

// S1: a single resource lands in the catalog with its parameters and
// a containment edge from the main stage.
func TestCompile_SimpleResourceEmission(t *testing.T) {
	out := mustCompile(t, `file { '/tmp/a': ensure => 'present' }`)
	doc := decode(t, out.json)

	resources := doc["resources"].([]any)
	var file map[string]any
	for _, raw := range resources {
		resource := raw.(map[string]any)
		if resource["type"] == "File" {
			file = resource
		}
	}
	require.NotNil(t, file)
	assert.Equal(t, "/tmp/a", file["title"])
	assert.Equal(t, "present", file["parameters"].(map[string]any)["ensure"])

	edges := doc["edges"].([]any)
	found := false
	for _, raw := range edges {
		edge := raw.(map[string]any)
		if edge["source"] == "Stage[main]" && edge["target"] == "File[/tmp/a]" {
			found = true
		}
	}
	assert.True(t, found)
	require.NoError(t, out.result.Catalog.Graph().DetectCycles())
	require.NoError(t, catalog.ValidateSchema(out.json))
}

// S2: inheritance declares the parent, and repeated includes do not
// redeclare.
func TestCompile_ClassInheritance(t *testing.T) {
	out := mustCompile(t, `
class base { }
class derived inherits base { }
include derived
include derived
`)
	doc := decode(t, out.json)

	var classTitles []string
	for _, raw := range doc["resources"].([]any) {
		resource := raw.(map[string]any)
		if resource["type"] == "Class" {
			classTitles = append(classTitles, resource["title"].(string))
		}
	}
	assert.ElementsMatch(t, []string{"base", "derived"}, classTitles)

	classes := doc["classes"].([]any)
	assert.Equal(t, []any{"base", "derived"}, classes)

	edges := doc["edges"].([]any)
	found := false
	for _, raw := range edges {
		edge := raw.(map[string]any)
		if edge["source"] == "Stage[main]" && edge["target"] == "Class[derived]" {
			found = true
		}
	}
	assert.True(t, found)
}

// S3: a dependency cycle fails compilation with both resources and
// their lines in the report.
func TestCompile_CycleDetection(t *testing.T) {
	_, err := compile(t, config.Defaults(), `notify { 'a': before => Notify['b'] }
notify { 'b': before => Notify['a'] }`)
	require.Error(t, err)
	message := err.Error()
	assert.Contains(t, message, "dependency cycle")
	assert.Contains(t, message, "Notify[a] declared at /tmp/site.pp:1")
	assert.Contains(t, message, "Notify[b] declared at /tmp/site.pp:2")
}

// S4: heredoc with margin, interpolation, and trailing break removal.
func TestCompile_HeredocMarginAndInterpolation(t *testing.T) {
	out := mustCompile(t, "$x = 1\n$s = @(\"END\"/L)\n  |- hello ${x}\n  | END\nnotice($s)\n")
	assert.Contains(t, out.logs.String(), "hello 1")
}

// S5: case with regex capture; the match variables stay inside the
// case expression's match scope.
func TestCompile_CaseWithRegexCapture(t *testing.T) {
	out := mustCompile(t, `
$v = 'abc123'
case $v {
  /([a-z]+)(\d+)/: { notice("$1-$2") }
  default:         { notice('none') }
}
notice("escaped=[$1]")
`)
	logs := out.logs.String()
	assert.Contains(t, logs, "abc-123")
	assert.Contains(t, logs, "escaped=[]")
	assert.NotContains(t, logs, "none")
}

// S6: a collector realizes the virtual defined type, and the body's
// resources land in the catalog linked by containment.
func TestCompile_DeferredDefinedTypeRealization(t *testing.T) {
	out := mustCompile(t, `
define d($n) { notify { "d-$n": } }
@d { 'x': n => 1 }
D <| |>
`)
	cat := out.result.Catalog
	d := cat.FindResource("D", "x")
	require.NotNil(t, d)
	assert.False(t, d.Virtualized())
	notify := cat.FindResource("Notify", "d-1")
	require.NotNil(t, notify)

	contained := false
	cat.Graph().OutEdges(d.VertexID(), func(target *catalog.Resource, label catalog.Relationship) bool {
		if label == catalog.RelationshipContains && target == notify {
			contained = true
		}
		return true
	})
	assert.True(t, contained)

	doc := decode(t, out.json)
	titles := map[string]bool{}
	for _, raw := range doc["resources"].([]any) {
		resource := raw.(map[string]any)
		titles[resource["type"].(string)+"["+resource["title"].(string)+"]"] = true
	}
	assert.True(t, titles["D[x]"])
	assert.True(t, titles["Notify[d-1]"])
}

func TestCompile_NodeSelection(t *testing.T) {
	cfg := config.Defaults()
	cfg.NodeName = "web01.example.com"
	out, err := compile(t, cfg, `
node /^web\d+/ { notify { 'on-web': } }
node default { notify { 'fallback': } }
`)
	require.NoError(t, err)
	cat := out.result.Catalog
	assert.NotNil(t, cat.FindResource("Notify", "on-web"))
	assert.Nil(t, cat.FindResource("Notify", "fallback"))
	assert.NotNil(t, cat.FindResource("Node", `/^web\d+/`))
}

func TestCompile_CatalogDeterminism(t *testing.T) {
	src := `
class app { notify { 'ready': message => 'go' } }
include app
file { '/tmp/a': ensure => 'present' }
`
	normalize := func(data []byte) string {
		out := regexp.MustCompile(`"version": \d+`).ReplaceAll(data, []byte(`"version": 0`))
		out = regexp.MustCompile(`"transaction_uuid": "[^"]+"`).ReplaceAll(out, []byte(`"transaction_uuid": ""`))
		return string(out)
	}
	first := mustCompile(t, src)
	second := mustCompile(t, src)
	assert.Equal(t, normalize(first.json), normalize(second.json))
}

func TestCompile_Import(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra.pp"), []byte("notify { 'imported': }\n"), 0o600))
	main := filepath.Join(dir, "site.pp")
	require.NoError(t, os.WriteFile(main, []byte("import '*.pp'\nnotify { 'local': }\n"), 0o600))

	c := compiler.New(config.Defaults(), slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	result, err := c.CompileFile(context.Background(), main)
	require.NoError(t, err)
	assert.NotNil(t, result.Catalog.FindResource("Notify", "imported"))
	assert.NotNil(t, result.Catalog.FindResource("Notify", "local"))
}

func TestCompile_Facts(t *testing.T) {
	dir := t.TempDir()
	facts := filepath.Join(dir, "facts.yaml")
	require.NoError(t, os.WriteFile(facts, []byte("os_family: debian\ncpus: 4\n"), 0o600))

	cfg := config.Defaults()
	cfg.FactsFile = facts
	out, err := compile(t, cfg, `notice("family=${os_family} cpus=${facts[cpus]}")`)
	require.NoError(t, err)
	assert.Contains(t, out.logs.String(), "family=debian cpus=4")
}

func TestDiagnose_Format(t *testing.T) {
	source := "$x = 'oops\n"
	_, err := compile(t, config.Defaults(), source)
	require.Error(t, err)

	diagnostic := compiler.Diagnose(err, "/tmp/site.pp")
	formatted := diagnostic.Format(source)
	assert.Regexp(t, `^/tmp/site\.pp:1:\d+: error: `, formatted)
	assert.Contains(t, formatted, "^")
}

func TestDiagnose_EvaluationErrorPosition(t *testing.T) {
	source := "$x = 1\n$y = 1 / 0\n"
	_, err := compile(t, config.Defaults(), source)
	require.Error(t, err)

	diagnostic := compiler.Diagnose(err, "/tmp/site.pp")
	assert.Equal(t, 2, diagnostic.Pos.Line)
	formatted := diagnostic.Format(source)
	assert.Contains(t, formatted, "/tmp/site.pp:2:")
	assert.Contains(t, formatted, "divide by zero")
}
