// Package emit renders a translated template into the generated Go source
// module: package clause, imports, the External declaration, mixin
// functions, and the Render entry point that streams the output.
package emit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kilianc/atc/internal/atc/ast"
	"github.com/kilianc/atc/internal/atc/translate"
)

const runtimeImport = `"github.com/kilianc/atc/pkg/atrt"`

// Module renders the generated source for res under the given package name.
// Returned warnings are non-fatal (undeclared mixin calls).
func Module(res *translate.Result, pkg string) ([]byte, []string) {
	e := &emitter{res: res}

	var mixins strings.Builder
	names := make([]string, 0, len(res.Mixins))
	for name := range res.Mixins {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m := res.Mixins[name]
		mixins.WriteString("func ")
		mixins.WriteString(mixinFuncName(name))
		mixins.WriteString("(sb *strings.Builder")
		if m.HasBlock {
			mixins.WriteString(", block func(*strings.Builder)")
		}
		for _, arg := range m.Args {
			mixins.WriteString(", ")
			mixins.WriteString(arg)
		}
		mixins.WriteString(") {\n")
		e.writeNodeList(&mixins, m.Children, "\t")
		mixins.WriteString("}\n\n")
	}

	var render strings.Builder
	render.WriteString("func Render(")
	if ext := res.External; ext != nil {
		if ext.Struct {
			render.WriteString("external External")
		} else {
			for i, n := range ext.Children {
				cn, ok := n.(*ast.Code)
				if !ok {
					continue
				}
				if i > 0 {
					render.WriteString(", ")
				}
				render.WriteString(cn.Code)
			}
		}
	}
	render.WriteString(") string {\n")
	render.WriteString("\tsb := &strings.Builder{}\n")
	e.writeNodeList(&render, res.Stream, "\t")
	render.WriteString("\treturn sb.String()\n")
	render.WriteString("}\n")

	var out strings.Builder
	out.WriteString("// Code generated by atc. DO NOT EDIT.\n\n")
	out.WriteString("package ")
	out.WriteString(pkg)
	out.WriteString("\n\nimport (\n")
	out.WriteString("\t\"strings\"\n")
	if e.usesFmt {
		out.WriteString("\t\"fmt\"\n")
	}
	if e.usesAtrt {
		out.WriteString("\t" + runtimeImport + "\n")
	}
	for _, spec := range res.Imports {
		out.WriteString("\t")
		out.WriteString(spec)
		out.WriteString("\n")
	}
	out.WriteString(")\n\n")

	if ext := res.External; ext != nil && ext.Struct {
		out.WriteString("type External struct {\n")
		for _, n := range ext.Children {
			if cn, ok := n.(*ast.Code); ok {
				out.WriteString("\t")
				out.WriteString(cn.Code)
				out.WriteString("\n")
			}
		}
		out.WriteString("}\n\n")
	}

	out.WriteString(mixins.String())
	out.WriteString(render.String())

	return []byte(out.String()), e.warnings
}

type emitter struct {
	res      *translate.Result
	usesFmt  bool
	usesAtrt bool
	warnings []string
}

// exprText rewrites gettext calls to the runtime hook; everything else
// passes through verbatim.
func (e *emitter) exprText(expr string) string {
	trimmed := strings.TrimSpace(expr)
	if strings.HasPrefix(trimmed, "_(") {
		e.usesAtrt = true
		return "atrt.Gettext" + trimmed[1:]
	}
	return trimmed
}

// writeNodeList renders a flat stream. Consecutive Text nodes coalesce into
// one WriteString; a Code fragment always breaks the run.
func (e *emitter) writeNodeList(w *strings.Builder, nodes ast.NodeList, indent string) {
	var pending strings.Builder

	flush := func() {
		if pending.Len() == 0 {
			return
		}
		w.WriteString(indent)
		w.WriteString("sb.WriteString(\"")
		w.WriteString(escapeString(pending.String()))
		w.WriteString("\")\n")
		pending.Reset()
	}

	for _, n := range nodes {
		switch v := n.(type) {
		case *ast.Text:
			pending.WriteString(v.Text)

		case *ast.Expr:
			expr := e.exprText(v.Expr)
			if expr == "" {
				continue
			}
			flush()
			e.usesFmt = true
			w.WriteString(indent)
			w.WriteString("fmt.Fprint(sb, ")
			w.WriteString(expr)
			w.WriteString(")\n")

		case *ast.Code:
			flush()
			w.WriteString(indent)
			w.WriteString(v.Code)
			if len(v.Children) > 0 {
				w.WriteString(" {\n")
				e.writeNodeList(w, v.Children, indent+"\t")
				w.WriteString(indent)
				w.WriteString("}\n")
			} else {
				w.WriteString("\n")
			}

		case *ast.MixinCall:
			decl, ok := e.res.Mixins[v.Name]
			if !ok {
				e.warnings = append(e.warnings,
					fmt.Sprintf("%d:%d: mixin %q was not declared, call dropped", v.P.Line, v.P.Col, v.Name))
				continue
			}
			flush()
			w.WriteString(indent)
			w.WriteString(mixinFuncName(v.Name))
			w.WriteString("(sb")
			if decl.HasBlock {
				if len(v.Children) == 0 {
					w.WriteString(", func(*strings.Builder) {}")
				} else {
					w.WriteString(", func(sb *strings.Builder) {\n")
					e.writeNodeList(w, v.Children, indent+"\t")
					w.WriteString(indent)
					w.WriteString("}")
				}
			}
			for _, arg := range v.Args {
				w.WriteString(", ")
				w.WriteString(arg)
			}
			w.WriteString(")\n")
		}
	}
	flush()
}

// mixinFuncName maps a mixin name onto the generated function family.
func mixinFuncName(name string) string {
	return "mixin_" + Identifier(name)
}

// Identifier sanitizes a name into a valid Go identifier.
func Identifier(name string) string {
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
			b.WriteByte(c)
		case c >= '0' && c <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteByte(c)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// escapeString escapes a literal for a double-quoted Go string.
func escapeString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
