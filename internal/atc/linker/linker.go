// Package linker resolves include and extends directives by splicing loaded
// ASTs into the primary template, keeping every replace-map offset valid
// across mutations and recording each opened file in the I/O manifest.
package linker

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/kilianc/atc/internal/atc/ast"
	"github.com/kilianc/atc/internal/atc/parser"
	"github.com/kilianc/atc/internal/atc/token"
)

// FileInfo is one manifest entry.
type FileInfo struct {
	Path string
	Size int64
}

// Manifest lists every file the linker opened, in first-open order.
type Manifest []FileInfo

// Paths returns the manifest paths in order.
func (m Manifest) Paths() []string {
	out := make([]string, len(m))
	for i, f := range m {
		out[i] = f.Path
	}
	return out
}

// LoadTemplate reads, lexes, and parses one template file, appending it to
// the manifest.
func LoadTemplate(path string, io *Manifest) (*parser.Parser, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file %s: %w", path, err)
	}
	*io = append(*io, FileInfo{Path: path, Size: int64(len(src))})

	p := parser.New(path, token.Tokenize(src))
	if err := p.Parse(); err != nil {
		return nil, token.WithPath(err, path)
	}
	return p, nil
}

// Linker resolves one primary template in place.
type Linker struct {
	p *parser.Parser
}

func New(p *parser.Parser) *Linker { return &Linker{p: p} }

// Link runs include resolution and, when the template extends a layout,
// inheritance resolution. baseDir anchors every include/extends path.
func (l *Linker) Link(baseDir string, io *Manifest) error {
	visiting := map[string]bool{}
	if abs, err := filepath.Abs(l.p.Path); err == nil {
		visiting[abs] = true
	}
	if err := resolveIncludes(l.p, baseDir, io, visiting); err != nil {
		return err
	}
	if l.p.Extends == nil {
		return nil
	}

	extendPath := filepath.Join(baseDir, l.p.Extends.Path)
	layout, err := LoadTemplate(extendPath, io)
	if err != nil {
		return err
	}
	if err := resolveIncludes(layout, baseDir, io, visiting); err != nil {
		return err
	}
	if err := resolveBlocks(layout, l.p); err != nil {
		return err
	}
	l.p.AST = layout.AST
	l.p.Replace = map[string]*ast.ReplaceSlot{}
	return nil
}

type slotEntry struct {
	key  string
	slot *ast.ReplaceSlot
}

// snapshot returns the map entries sorted by (parent, offset). Parents are
// ranked by the first registration seen for them so the order is stable;
// slots sharing a parent stay in offset order, which the per-parent running
// delta depends on.
func snapshot(m map[string]*ast.ReplaceSlot, keep func(*ast.ReplaceSlot) bool) []slotEntry {
	entries := make([]slotEntry, 0, len(m))
	for k, s := range m {
		if keep == nil || keep(s) {
			entries = append(entries, slotEntry{k, s})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].slot.Seq < entries[j].slot.Seq
	})
	rank := map[ast.Node]int{}
	for _, e := range entries {
		if _, ok := rank[e.slot.Parent]; !ok {
			rank[e.slot.Parent] = len(rank)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		ri, rj := rank[entries[i].slot.Parent], rank[entries[j].slot.Parent]
		if ri != rj {
			return ri < rj
		}
		return entries[i].slot.Offset < entries[j].slot.Offset
	})
	return entries
}

// splice replaces vec[pos] with repl (which may be empty) and returns the
// length delta.
func splice(vec *ast.NodeList, pos int, repl ast.NodeList) int {
	v := *vec
	if len(repl) == 0 {
		*vec = append(v[:pos], v[pos+1:]...)
		return -1
	}
	out := make(ast.NodeList, 0, len(v)+len(repl)-1)
	out = append(out, v[:pos]...)
	out = append(out, repl...)
	out = append(out, v[pos+1:]...)
	*vec = out
	return len(repl) - 1
}

func resolveIncludes(p *parser.Parser, baseDir string, io *Manifest, visiting map[string]bool) error {
	entries := snapshot(p.Replace, nil)

	delta := 0
	var prevParent ast.Node
	first := true
	var erased []string

	for _, e := range entries {
		slot := e.slot
		if first || prevParent != slot.Parent {
			delta = 0
		}
		first = false
		prevParent = slot.Parent

		inc, ok := slot.Node.(*ast.Include)
		if !ok {
			slot.Offset += delta
			continue
		}
		erased = append(erased, e.key)

		vec, ok := ast.ChildrenOf(slot.Parent, &p.AST)
		if !ok {
			return fmt.Errorf("invalid include parent node")
		}
		pos := slot.Offset + delta
		if pos < 0 || pos >= len(*vec) {
			return fmt.Errorf("include replacement position out of range")
		}

		path := filepath.Join(baseDir, inc.Path)
		if inc.Mode == ast.IncludePlain {
			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read file %s: %w", path, err)
			}
			*io = append(*io, FileInfo{Path: path, Size: int64(len(raw))})
			(*vec)[pos] = &ast.Text{P: inc.P, Text: string(raw)}
			continue
		}

		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if visiting[abs] {
			return fmt.Errorf("include cycle detected at %s", path)
		}
		visiting[abs] = true
		sub, err := LoadTemplate(path, io)
		if err != nil {
			return err
		}
		if err := resolveIncludes(sub, baseDir, io, visiting); err != nil {
			return err
		}
		delete(visiting, abs)

		delta += splice(vec, pos, sub.AST)
	}

	for _, k := range erased {
		delete(p.Replace, k)
	}
	return nil
}

func resolveBlocks(layout, child *parser.Parser) error {
	entries := snapshot(layout.Replace, func(s *ast.ReplaceSlot) bool {
		_, ok := s.Node.(*ast.Block)
		return ok
	})

	delta := 0
	var prevParent ast.Node
	first := true

	for _, e := range entries {
		slot := e.slot
		if first || prevParent != slot.Parent {
			delta = 0
		}
		first = false
		prevParent = slot.Parent

		vec, ok := ast.ChildrenOf(slot.Parent, &layout.AST)
		if !ok {
			return fmt.Errorf("invalid block parent node")
		}
		pos := slot.Offset + delta
		if pos < 0 || pos >= len(*vec) {
			return fmt.Errorf("block replacement position out of range")
		}
		if (*vec)[pos] != slot.Node {
			return fmt.Errorf("block slot out of sync at offset %d", pos)
		}
		orig := slot.Node.(*ast.Block)

		final := orig.Children
		if cs, ok := child.Replace[e.key]; ok {
			if cb, ok := cs.Node.(*ast.Block); ok {
				switch cb.Mode {
				case ast.BlockReplace:
					final = cb.Children
				case ast.BlockPrepend:
					merged := make(ast.NodeList, 0, len(cb.Children)+len(orig.Children))
					merged = append(merged, cb.Children...)
					merged = append(merged, orig.Children...)
					final = merged
				case ast.BlockAppend:
					merged := make(ast.NodeList, 0, len(cb.Children)+len(orig.Children))
					merged = append(merged, orig.Children...)
					merged = append(merged, cb.Children...)
					final = merged
				default:
					return fmt.Errorf("unknown block mode %d", cb.Mode)
				}
			}
		}

		delta += splice(vec, pos, final)
	}
	return nil
}
