// Package translate lowers the linked AST into a flat emission stream of
// Text, Expr, Code, and MixinCall nodes, pulling mixins, imports, and the
// external declaration out to the side for the emitter.
package translate

import (
	"strings"

	"github.com/kilianc/atc/internal/atc/ast"
	"github.com/kilianc/atc/internal/atc/htmlir"
	"github.com/kilianc/atc/internal/atc/token"
)

const flagBlockAdded = 0x1

// doctypeBuiltin maps the shorthand doctype keys to their canonical output.
var doctypeBuiltin = map[string]string{
	"html":         "<!DOCTYPE html>",
	"xml":          `<?xml version="1.0" encoding="utf-8" ?>`,
	"transitional": `<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Transitional//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-transitional.dtd">`,
	"strict":       `<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd">`,
	"frameset":     `<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Frameset//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-frameset.dtd">`,
	"1.1":          `<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.1//EN" "http://www.w3.org/TR/xhtml11/DTD/xhtml11.dtd">`,
	"basic":        `<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML Basic 1.1//EN" "http://www.w3.org/TR/xhtml-basic/xhtml-basic11.dtd">`,
	"mobile":       `<!DOCTYPE html PUBLIC "-//WAPFORUM//DTD XHTML Mobile 1.2//EN" "http://www.openmobilealliance.org/tech/DTD/xhtml-mobile12.dtd">`,
	"plist":        `<!DOCTYPE plist PUBLIC "-//Apple Computer//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">`,
}

var voidTags = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "command": true,
	"embed": true, "hr": true, "img": true, "input": true, "keygen": true,
	"link": true, "meta": true, "param": true, "portal": true, "source": true,
	"track": true, "wbr": true,
}

// IsVoidTag reports whether tag takes no closing tag.
func IsVoidTag(tag string) bool { return voidTags[tag] }

// Result is the translator output the emitter renders.
type Result struct {
	Stream   ast.NodeList
	Mixins   map[string]*ast.MixinDecl
	External *ast.External
	Imports  []string
}

type translator struct {
	mixins      map[string]*ast.MixinDecl
	imports     map[string]bool
	importOrder []string
	external    *ast.External
	doctypeSeen bool
}

// Translate flattens the linked AST.
func Translate(root ast.NodeList) (*Result, error) {
	t := &translator{
		mixins:  map[string]*ast.MixinDecl{},
		imports: map[string]bool{},
	}
	var stream ast.NodeList
	if _, err := t.nodes(root, &stream); err != nil {
		return nil, err
	}
	return &Result{
		Stream:   stream,
		Mixins:   t.mixins,
		External: t.external,
		Imports:  t.importOrder,
	}, nil
}

func (t *translator) addImport(line string) {
	if !t.imports[line] {
		t.imports[line] = true
		t.importOrder = append(t.importOrder, line)
	}
}

// importSpec recognizes a host import directive and returns the spec text.
func importSpec(code string) (string, bool) {
	trimmed := strings.TrimSpace(code)
	if rest, ok := strings.CutPrefix(trimmed, "import "); ok {
		return strings.TrimSpace(rest), true
	}
	return "", false
}

func (t *translator) nodes(src ast.NodeList, out *ast.NodeList) (int, error) {
	flags := 0
	for _, n := range src {
		f, err := t.node(n, out)
		if err != nil {
			return flags, err
		}
		flags |= f
	}
	return flags, nil
}

func pushText(out *ast.NodeList, pos token.Pos, text string) {
	if text == "" {
		return
	}
	*out = append(*out, &ast.Text{P: pos, Text: text})
}

func pushExpr(out *ast.NodeList, pos token.Pos, expr string) {
	if expr == "" {
		return
	}
	*out = append(*out, &ast.Expr{P: pos, Expr: expr})
}

// pushValue appends a segmented value as alternating Text/Expr nodes.
func pushValue(out *ast.NodeList, pos token.Pos, v htmlir.Value) {
	for _, seg := range v.Segs {
		if seg.Kind == htmlir.Literal {
			pushText(out, pos, seg.Text)
		} else {
			pushExpr(out, pos, seg.Text)
		}
	}
}

// pushPlainText interpolates raw text and appends the resulting segments.
func pushPlainText(out *ast.NodeList, pos token.Pos, raw string) {
	pushValue(out, pos, htmlir.ParseSegments(raw))
}

func (t *translator) node(n ast.Node, out *ast.NodeList) (int, error) {
	switch v := n.(type) {
	case *ast.External:
		t.buildExternal(v)
		return 0, nil

	case *ast.Html:
		return t.buildHTML(v, out)

	case *ast.Text:
		pushPlainText(out, v.P, v.Text)
		return 0, nil

	case *ast.TextGroup:
		var buf strings.Builder
		for i, tn := range v.Lines {
			buf.WriteString(tn.Text)
			if i+1 < len(v.Lines) {
				buf.WriteByte('\n')
			}
		}
		pushPlainText(out, v.P, buf.String())
		return 0, nil

	case *ast.Code:
		if spec, ok := importSpec(v.Code); ok {
			t.addImport(spec)
			return 0, nil
		}
		nc := &ast.Code{P: v.P, Code: v.Code}
		flags, err := t.nodes(v.Children, &nc.Children)
		if err != nil {
			return 0, err
		}
		*out = append(*out, nc)
		return flags, nil

	case *ast.Expr:
		*out = append(*out, v.Clone())
		return 0, nil

	case *ast.MixinDecl:
		m := &ast.MixinDecl{P: v.P, Name: v.Name, Args: v.Args}
		flags, err := t.nodes(v.Children, &m.Children)
		if err != nil {
			return 0, err
		}
		m.HasBlock = flags&flagBlockAdded != 0
		t.mixins[m.Name] = m
		return 0, nil

	case *ast.MixinCall:
		c := &ast.MixinCall{P: v.P, Name: v.Name, Args: v.Args}
		if _, err := t.nodes(v.Children, &c.Children); err != nil {
			return 0, err
		}
		*out = append(*out, c)
		return 0, nil

	case *ast.Block:
		if v.Name == "" {
			*out = append(*out, &ast.Code{P: v.P, Code: "block(sb)"})
			return flagBlockAdded, nil
		}
		// A named block surviving to translation belongs to a template
		// rendered standalone; its children render in place.
		return t.nodes(v.Children, out)

	case *ast.Extends, *ast.Include:
		return 0, nil
	}
	return 0, nil
}

// buildExternal filters the declaration body: import directives join the
// import set, remaining code lines become struct members or parameter
// fragments. The last external declaration wins; imports accumulate.
func (t *translator) buildExternal(src *ast.External) {
	ext := &ast.External{P: src.P, Struct: src.Struct}
	for _, child := range src.Children {
		cn, ok := child.(*ast.Code)
		if !ok {
			continue
		}
		trimmed := strings.TrimSpace(cn.Code)
		if trimmed == "" {
			continue
		}
		if spec, ok := importSpec(trimmed); ok {
			t.addImport(spec)
			continue
		}
		if ext.Struct {
			ext.Children = append(ext.Children, &ast.Code{P: cn.P, Code: trimmed})
			continue
		}
		if isIdentStart(trimmed[0]) {
			ext.Children = append(ext.Children, &ast.Code{P: cn.P, Code: strings.TrimRight(trimmed, ";")})
		}
	}
	t.external = ext
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func (t *translator) buildHTML(node *ast.Html, out *ast.NodeList) (int, error) {
	ir, err := htmlir.ParseHead(node.Head, node.P)
	if err != nil {
		return 0, err
	}

	if !t.doctypeSeen && ir.Tag == "doctype" && len(ir.Content.Segs) == 1 {
		t.doctypeSeen = true
		t.pushDoctype(out, ir, node)
		return 0, nil
	}

	emitChain(out, ir, node)
	flags, err := t.nodes(node.Children, out)
	if err != nil {
		return 0, err
	}

	var opened []string
	for p := ir; p != nil; p = p.Next {
		opened = append(opened, p.Tag)
	}
	for i := len(opened) - 1; i >= 0; i-- {
		if !IsVoidTag(opened[i]) {
			pushText(out, node.P, "</"+opened[i]+">")
		}
	}
	return flags, nil
}

func (t *translator) pushDoctype(out *ast.NodeList, ir *htmlir.IR, node *ast.Html) {
	seg := ir.Content.Segs[0]
	if seg.Kind == htmlir.Literal {
		if s, ok := doctypeBuiltin[strings.TrimSpace(seg.Text)]; ok {
			pushText(out, node.P, s)
			return
		}
	}
	pushText(out, node.P, "<!DOCTYPE ")
	pushValue(out, node.P, ir.Content)
	pushText(out, node.P, ">")
}

// emitChain flattens one IR chain into open tags followed, on the innermost
// element, by its inline content.
func emitChain(out *ast.NodeList, ir *htmlir.IR, node *ast.Html) {
	emitOpenTag(out, ir, node)
	if ir.Next != nil {
		emitChain(out, ir.Next, node)
	} else if !ir.Content.Empty() {
		pushValue(out, node.P, ir.Content)
	}
}

// emitOpenTag renders one open tag, splitting at expression segment
// boundaries so literal runs coalesce into as few Text nodes as possible.
func emitOpenTag(out *ast.NodeList, ir *htmlir.IR, node *ast.Html) {
	var buf strings.Builder

	flush := func() {
		if buf.Len() > 0 {
			pushText(out, node.P, buf.String())
			buf.Reset()
		}
	}
	emitValue := func(v htmlir.Value) {
		for _, seg := range v.Segs {
			if seg.Kind == htmlir.Literal {
				buf.WriteString(seg.Text)
			} else {
				flush()
				pushExpr(out, node.P, seg.Text)
			}
		}
	}

	buf.WriteByte('<')
	buf.WriteString(ir.Tag)

	if !ir.ID.Empty() {
		buf.WriteString(` id="`)
		emitValue(ir.ID)
		buf.WriteByte('"')
	}

	if len(ir.Classes) > 0 {
		buf.WriteString(` class="`)
		for i, c := range ir.Classes {
			emitValue(c)
			if i+1 < len(ir.Classes) {
				buf.WriteByte(' ')
			}
		}
		buf.WriteByte('"')
	}

	for _, attr := range ir.Attrs {
		buf.WriteByte(' ')
		emitValue(attr.Name)
		if !attr.Value.Empty() {
			buf.WriteByte('=')
			emitValue(attr.Value)
		}
	}

	buf.WriteByte('>')
	flush()
}
