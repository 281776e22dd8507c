// Package outfile formats and writes the generated source module.
package outfile

import (
	"fmt"
	"os"

	"golang.org/x/tools/imports"
)

// Format runs the generated source through goimports processing, fixing the
// import block and gofmt-ing the text.
func Format(outPath string, src []byte) ([]byte, error) {
	formatted, err := imports.Process(outPath, src, nil)
	if err != nil {
		return nil, fmt.Errorf("formatting generated source: %w", err)
	}
	return formatted, nil
}

// WriteGeneratedFile writes src to outPath, always overwriting any existing file.
func WriteGeneratedFile(outPath string, src []byte) error {
	return os.WriteFile(outPath, src, 0o644)
}
