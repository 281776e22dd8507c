// Package atc is the public compile facade.
package atc

import "github.com/kilianc/atc/internal/atc/compile"

// Options configures one compilation.
type Options = compile.Options

// Result is one successful compilation.
type Result = compile.Result

// CompileFile compiles the root .at template at path into a gofmt'd Go
// source module exposing Render.
//
// The result is suitable for writing next to the host program's sources and
// checking in.
func CompileFile(path string, opts Options) (*Result, error) {
	return compile.File(path, opts)
}
