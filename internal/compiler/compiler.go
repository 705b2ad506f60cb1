// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

// Package compiler drives the pipeline: source text through the
// lexer, parser, and evaluator into a finalized catalog.
package compiler

import (
	"context"
	"log/slog"
	"os"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/minervacm/minerva/internal/ast"
	"github.com/minervacm/minerva/internal/catalog"
	"github.com/minervacm/minerva/internal/config"
	"github.com/minervacm/minerva/internal/evaluator"
	"github.com/minervacm/minerva/internal/parser"
	"github.com/minervacm/minerva/internal/value"
)

// Compiler compiles manifests into catalogs for a configured node.
type Compiler struct {
	cfg    config.Config
	logger *slog.Logger
	tracer trace.Tracer
}

// Result is a finished compilation.
type Result struct {
	Tree    *ast.SyntaxTree
	Catalog *catalog.Catalog
}

// New creates a compiler.
func New(cfg config.Config, logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer("minerva/compiler"),
	}
}

// CompileFile reads and compiles a manifest file.
func (c *Compiler) CompileFile(ctx context.Context, path string) (*Result, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Code("SOURCE_UNREADABLE").With("path", path).Wrap(err)
	}
	return c.Compile(ctx, path, string(source))
}

// Compile compiles manifest source: parse, evaluate against the node,
// realize deferred defined types, and reject cycles.
func (c *Compiler) Compile(ctx context.Context, path, source string) (*Result, error) {
	ctx, span := c.tracer.Start(ctx, "compile",
		trace.WithAttributes(attribute.String("manifest.path", path)))
	defer span.End()

	tree, err := c.parse(ctx, path, source)
	if err != nil {
		return nil, err
	}

	cat := catalog.New()
	facts, err := c.loadFacts()
	if err != nil {
		return nil, err
	}
	ev := evaluator.New(cat,
		evaluator.WithLogger(c.logger),
		evaluator.WithImporter(newGlobImporter(path)),
		evaluator.WithFacts(facts),
	)

	if err := c.evaluate(ctx, ev, tree, cat); err != nil {
		return nil, err
	}
	if err := c.finalize(ctx, ev, cat); err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "catalog compiled",
		"node", c.cfg.NodeName,
		"resources", len(cat.Resources()),
		"classes", len(cat.DeclaredClasses()),
	)
	return &Result{Tree: tree, Catalog: cat}, nil
}

func (c *Compiler) parse(ctx context.Context, path, source string) (*ast.SyntaxTree, error) {
	_, span := c.tracer.Start(ctx, "parse")
	defer span.End()
	return parser.Parse(path, source)
}

func (c *Compiler) evaluate(ctx context.Context, ev *evaluator.Evaluator, tree *ast.SyntaxTree, cat *catalog.Catalog) error {
	_, span := c.tracer.Start(ctx, "evaluate")
	defer span.End()

	if err := ev.RegisterDefinitions(tree); err != nil {
		return err
	}
	if err := ev.EvaluateMain(tree); err != nil {
		return err
	}

	// Select and evaluate the node definition for this agent.
	def, matched, err := cat.SelectNode(c.cfg.CandidateNames())
	if err != nil {
		return err
	}
	if def != nil {
		resource, err := cat.AddResource("Node", matched, def.Path, def.Position, cat.MainStage(), false, false)
		if err != nil {
			return err
		}
		if err := ev.EvaluateNode(def, resource); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) finalize(ctx context.Context, ev *evaluator.Evaluator, cat *catalog.Catalog) error {
	_, span := c.tracer.Start(ctx, "finalize")
	defer span.End()
	return cat.Finalize(ev)
}

// loadFacts reads the optional YAML facts file into values.
func (c *Compiler) loadFacts() (map[string]value.Value, error) {
	if c.cfg.FactsFile == "" {
		return nil, nil
	}
	return readFacts(c.cfg.FactsFile)
}
