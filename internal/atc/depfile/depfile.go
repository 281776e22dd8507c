// Package depfile writes the Make-style dependency manifest.
package depfile

import (
	"os"
	"strings"
)

// Render builds the manifest text: the output path as the target, then one
// indented prerequisite per line joined by backslash continuations, with no
// trailing backslash on the last line. Paths keep first-open order.
func Render(output string, paths []string) string {
	var b strings.Builder
	b.WriteString(output)
	b.WriteString(":")
	for _, p := range paths {
		b.WriteString(" \\\n  ")
		b.WriteString(p)
	}
	b.WriteString("\n")
	return b.String()
}

// Write renders the manifest and writes it to path.
func Write(path, output string, paths []string) error {
	return os.WriteFile(path, []byte(Render(output, paths)), 0o644)
}
