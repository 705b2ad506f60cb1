// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package compiler

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/minervacm/minerva/internal/ast"
	"github.com/minervacm/minerva/internal/parser"
)

// globImporter resolves import patterns relative to the importing
// manifest's directory, matching with glob syntax.
type globImporter struct {
	base string
}

func newGlobImporter(manifestPath string) *globImporter {
	return &globImporter{base: filepath.Dir(manifestPath)}
}

// Import parses every manifest whose base-relative path matches the
// pattern, in walk order.
func (i *globImporter) Import(pattern string) ([]*ast.SyntaxTree, error) {
	matcher, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, oops.Code("IMPORT_INVALID").With("pattern", pattern).Wrap(err)
	}

	var trees []*ast.SyntaxTree
	walkErr := filepath.WalkDir(i.base, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(i.base, path)
		if err != nil {
			return err
		}
		if !matcher.Match(filepath.ToSlash(rel)) {
			return nil
		}
		source, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		tree, err := parser.Parse(path, string(source))
		if err != nil {
			return err
		}
		trees = append(trees, tree)
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	if len(trees) == 0 {
		return nil, oops.Code("IMPORT_EMPTY").With("pattern", pattern).Errorf("no manifests matched")
	}
	return trees, nil
}
