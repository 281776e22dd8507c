// Package compile drives the pipeline: load, link, translate, emit, format.
package compile

import (
	"path/filepath"
	"strings"

	"github.com/kilianc/atc/internal/atc/emit"
	"github.com/kilianc/atc/internal/atc/linker"
	"github.com/kilianc/atc/internal/atc/outfile"
	"github.com/kilianc/atc/internal/atc/translate"
)

// Options configures one compilation.
type Options struct {
	// BaseDir anchors include and extends paths. Empty means cwd.
	BaseDir string
	// Package overrides the generated package name; empty derives it from
	// the input file stem.
	Package string
}

// Result is one successful compilation.
type Result struct {
	// Source is the formatted generated module.
	Source []byte
	// Deps lists every file opened, in first-open order.
	Deps []string
	// Warnings are non-fatal diagnostics.
	Warnings []string
}

// Stem derives the generated package name from a template path.
func Stem(path string) string {
	base := filepath.Base(path)
	return emit.Identifier(strings.TrimSuffix(base, filepath.Ext(base)))
}

// File compiles the root template at path into a generated Go module.
func File(path string, opts Options) (*Result, error) {
	baseDir := opts.BaseDir
	if baseDir == "" {
		baseDir = "."
	}

	var manifest linker.Manifest
	p, err := linker.LoadTemplate(path, &manifest)
	if err != nil {
		return nil, err
	}
	if err := linker.New(p).Link(baseDir, &manifest); err != nil {
		return nil, err
	}

	res, err := translate.Translate(p.AST)
	if err != nil {
		return nil, err
	}

	pkg := opts.Package
	if pkg == "" {
		pkg = Stem(path)
	}
	src, warnings := emit.Module(res, pkg)

	formatted, err := outfile.Format(path+".go", src)
	if err != nil {
		return nil, err
	}

	return &Result{Source: formatted, Deps: manifest.Paths(), Warnings: warnings}, nil
}
