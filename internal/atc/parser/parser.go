// Package parser builds the .at AST from the indent token stream.
package parser

import (
	"path/filepath"
	"strings"

	"github.com/kilianc/atc/internal/atc/ast"
	"github.com/kilianc/atc/internal/atc/token"
)

// Parser consumes a token stream left to right and accumulates the root node
// list, the file-level extends pointer, and the replace map used by the
// linker to patch blocks and includes. Mixin declarations and calls are
// registered too; the linker only keeps their offsets in sync.
type Parser struct {
	Path    string
	Extends *ast.Extends
	Replace map[string]*ast.ReplaceSlot
	AST     ast.NodeList

	ts  []token.Token
	pos int
	seq int

	// cancel counts dedents borrowed by a paren continuation that must be
	// swallowed when they show up again in the stream.
	cancel int
}

// New prepares a parser over a lexed stream. path is used for diagnostics.
func New(path string, ts []token.Token) *Parser {
	return &Parser{
		Path:    path,
		Replace: make(map[string]*ast.ReplaceSlot),
		ts:      ts,
	}
}

func (p *Parser) cur() token.Token {
	for p.cancel > 0 && p.ts[p.pos].Kind == token.Dedent {
		p.pos++
		p.cancel--
	}
	return p.ts[p.pos]
}

func (p *Parser) next() token.Token {
	t := p.cur()
	if t.Kind != token.EOF {
		p.pos++
	}
	return t
}

func (p *Parser) at(k token.Kind) bool { return p.cur().Kind == k }

func (p *Parser) register(key string, n ast.Node, parent ast.Node, offset int) {
	if _, ok := p.Replace[key]; ok {
		return
	}
	p.Replace[key] = &ast.ReplaceSlot{Node: n, Parent: parent, Offset: offset, Seq: p.seq}
	p.seq++
}

// Parse consumes the whole stream into p.AST.
func (p *Parser) Parse() error {
	for !p.at(token.EOF) {
		switch p.cur().Kind {
		case token.Blank:
			p.next()
		case token.Indent, token.Dedent:
			t := p.cur()
			if t.Kind == token.Indent && len(p.AST) == 0 {
				return token.Errorf(t.Pos, "leading indentation before first content is not allowed")
			}
			return token.Errorf(t.Pos, "unexpected %s", t.Kind)
		case token.Line:
			t := p.cur()
			if t.Level != 0 {
				return token.Errorf(t.Pos, "leading indentation before first content is not allowed")
			}
			n, err := p.parseLine(nil, len(p.AST), false)
			if err != nil {
				return err
			}
			p.AST = append(p.AST, n)
		}
	}
	return nil
}

// parseChildren descends into an indented body when one follows, appending
// parsed nodes to list. what names the construct for the missing-dedent
// diagnostic.
func (p *Parser) parseChildren(parent ast.Node, list *ast.NodeList, anonOK bool, what string) error {
	if !p.at(token.Indent) {
		return nil
	}
	p.next()
	for {
		t := p.cur()
		if t.Kind == token.Blank {
			p.next()
			continue
		}
		if t.Kind != token.Line {
			break
		}
		n, err := p.parseLine(parent, len(*list), anonOK)
		if err != nil {
			return err
		}
		*list = append(*list, n)
	}
	if !p.at(token.Dedent) {
		return token.Errorf(p.cur().Pos, "expected dedent after %s", what)
	}
	p.next()
	return nil
}

// collectTextNodes reads a run of verbatim lines (blanks included) at the
// current indent level.
func (p *Parser) collectTextNodes() *ast.TextGroup {
	group := &ast.TextGroup{}
	if p.at(token.Line) || p.at(token.Blank) {
		group.P = p.cur().Pos
	}
	for p.at(token.Line) || p.at(token.Blank) {
		t := p.next()
		tn := &ast.Text{P: t.Pos}
		if t.Kind == token.Line {
			tn.Text = t.Text
		}
		group.Lines = append(group.Lines, tn)
	}
	return group
}

func (p *Parser) parseLine(parent ast.Node, nextIndex int, anonOK bool) (ast.Node, error) {
	t := p.cur()
	s := strings.TrimLeft(t.Text, " \t")

	if rest, ok := strings.CutPrefix(s, "extends "); ok {
		n := &ast.Extends{P: t.Pos, Path: strings.TrimSpace(rest)}
		p.Extends = n
		p.next()
		return n, nil
	}

	if s == "block" || strings.HasPrefix(s, "block ") {
		b := &ast.Block{P: t.Pos, Mode: ast.BlockReplace}
		if s == "block" {
			if !anonOK {
				return nil, token.Errorf(t.Pos, "anonymous block outside mixin body")
			}
		} else {
			rest := strings.TrimSpace(s[len("block "):])
			if name, ok := strings.CutPrefix(rest, "append "); ok {
				b.Mode = ast.BlockAppend
				b.Name = strings.TrimSpace(name)
			} else if name, ok := strings.CutPrefix(rest, "prepend "); ok {
				b.Mode = ast.BlockPrepend
				b.Name = strings.TrimSpace(name)
			} else {
				b.Name = rest
			}
			if b.Name == "" {
				if !anonOK {
					return nil, token.Errorf(t.Pos, "anonymous block outside mixin body")
				}
			} else {
				p.register(b.Name, b, parent, nextIndex)
			}
		}
		p.next()
		if err := p.parseChildren(b, &b.Children, anonOK, "block body"); err != nil {
			return nil, err
		}
		return b, nil
	}

	if strings.HasPrefix(s, "append ") || strings.HasPrefix(s, "prepend ") {
		b := &ast.Block{P: t.Pos}
		if name, ok := strings.CutPrefix(s, "append "); ok {
			b.Mode = ast.BlockAppend
			b.Name = strings.TrimSpace(name)
		} else {
			b.Mode = ast.BlockPrepend
			b.Name = strings.TrimSpace(s[len("prepend "):])
		}
		p.register(b.Name, b, parent, nextIndex)
		p.next()
		if err := p.parseChildren(b, &b.Children, anonOK, "append/prepend body"); err != nil {
			return nil, err
		}
		return b, nil
	}

	if strings.HasPrefix(s, "mixin ") {
		m := &ast.MixinDecl{P: t.Pos}
		rest := strings.TrimLeft(s[len("mixin "):], " ")
		name, n := readName(rest)
		if name == "" {
			return nil, token.Errorf(t.Pos, "mixin name expected")
		}
		m.Name = name
		args, err := parseArgList(rest[n:], t.Pos, true)
		if err != nil {
			return nil, err
		}
		m.Args = args
		p.register(m.Name, m, parent, nextIndex)
		p.next()
		if err := p.parseChildren(m, &m.Children, true, "mixin body"); err != nil {
			return nil, err
		}
		return m, nil
	}

	if strings.HasPrefix(s, "+") {
		m := &ast.MixinCall{P: t.Pos}
		name, n := readName(s[1:])
		if name == "" {
			return nil, token.Errorf(t.Pos, "mixin call name expected")
		}
		m.Name = name
		args, err := parseArgList(s[1+n:], t.Pos, false)
		if err != nil {
			return nil, err
		}
		m.Args = args
		p.register(m.Name, m, parent, nextIndex)
		p.next()
		if err := p.parseChildren(m, &m.Children, anonOK, "mixin call body"); err != nil {
			return nil, err
		}
		return m, nil
	}

	if rest, ok := strings.CutPrefix(s, "- "); ok {
		c := &ast.Code{P: t.Pos, Code: rest}
		p.next()
		if err := p.parseChildren(c, &c.Children, anonOK, "code block"); err != nil {
			return nil, err
		}
		return c, nil
	}

	if rest, ok := strings.CutPrefix(s, "= "); ok {
		e := &ast.Expr{P: t.Pos, Expr: rest}
		p.next()
		return e, nil
	}

	if rest, ok := strings.CutPrefix(s, "|"); ok {
		tn := &ast.Text{P: t.Pos, Text: strings.TrimLeft(rest, " \t")}
		p.next()
		return tn, nil
	}

	if s == "." {
		p.next()
		if !p.at(token.Indent) {
			return nil, token.Errorf(t.Pos, "expected indent after text block marker")
		}
		p.next()
		group := p.collectTextNodes()
		if !p.at(token.Dedent) {
			return nil, token.Errorf(p.cur().Pos, "expected dedent after text block")
		}
		p.next()
		group.P = t.Pos
		return group, nil
	}

	if rest, ok := strings.CutPrefix(s, "include "); ok {
		inc := &ast.Include{P: t.Pos, Path: strings.TrimSpace(rest)}
		if filepath.Ext(inc.Path) == ".at" {
			inc.Mode = ast.IncludeAt
		} else {
			inc.Mode = ast.IncludePlain
		}
		p.register(inc.Path, inc, parent, nextIndex)
		p.next()
		return inc, nil
	}

	if s == "external" || s == "external struct" {
		ext := &ast.External{P: t.Pos, Struct: s == "external struct"}
		p.next()
		if err := p.parseChildren(ext, &ext.Children, anonOK, "external body"); err != nil {
			return nil, err
		}
		return ext, nil
	}

	return p.parseElement(t, s, parent, anonOK)
}

// parseElement handles the HTML fallthrough, including multi-line heads held
// open by an unbalanced paren.
func (p *Parser) parseElement(t token.Token, s string, parent ast.Node, anonOK bool) (ast.Node, error) {
	p.next()
	head := s
	borrowed := 0
	for parenBalance(head) > 0 {
		ct := p.ts[p.pos]
		switch ct.Kind {
		case token.EOF:
			return nil, token.Errorf(t.Pos, "unclosed paren in element head")
		case token.Line:
			head += " " + strings.TrimSpace(ct.Text)
			p.pos++
		case token.Indent:
			borrowed++
			p.pos++
		case token.Dedent:
			borrowed--
			p.pos++
		case token.Blank:
			p.pos++
		}
	}
	if borrowed > 0 {
		p.cancel += borrowed
	} else if borrowed < 0 {
		restored := make([]token.Token, -borrowed)
		for i := range restored {
			restored[i] = token.Token{Kind: token.Dedent, Pos: p.ts[p.pos].Pos}
		}
		p.ts = append(p.ts[:p.pos], append(restored, p.ts[p.pos:]...)...)
	}

	el := &ast.Html{P: t.Pos}
	trimmed := strings.TrimRight(head, " \t")
	textBody := strings.HasSuffix(trimmed, ".")
	if textBody {
		el.Head = trimmed[:len(trimmed)-1]
	} else {
		el.Head = head
	}

	if p.at(token.Indent) {
		p.next()
		if textBody {
			group := p.collectTextNodes()
			el.Children = append(el.Children, group)
			if !p.at(token.Dedent) {
				return nil, token.Errorf(p.cur().Pos, "expected dedent after text block")
			}
			p.next()
		} else {
			for {
				ct := p.cur()
				if ct.Kind == token.Blank {
					p.next()
					continue
				}
				if ct.Kind != token.Line {
					break
				}
				n, err := p.parseLine(el, len(el.Children), anonOK)
				if err != nil {
					return nil, err
				}
				el.Children = append(el.Children, n)
			}
			if !p.at(token.Dedent) {
				return nil, token.Errorf(p.cur().Pos, "expected dedent after element body")
			}
			p.next()
		}
	}
	return el, nil
}

// readName reads an identifier-like name (letter or underscore, then
// letters, digits, underscore, dash) and returns it with its length.
func readName(s string) (string, int) {
	if s == "" {
		return "", 0
	}
	c := s[0]
	if !(c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
		return "", 0
	}
	i := 1
	for i < len(s) {
		c := s[i]
		if c == '_' || c == '-' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
			i++
			continue
		}
		break
	}
	return s[:i], i
}

// parseArgList reads the parenthesized raw argument list after a mixin name.
// Declarations require the parens; calls may omit them entirely.
func parseArgList(s string, pos token.Pos, required bool) ([]string, error) {
	s = strings.TrimLeft(s, " \t")
	if !strings.HasPrefix(s, "(") {
		if required {
			return nil, token.Errorf(pos, "malformed mixin header: missing (")
		}
		return nil, nil
	}
	close := strings.LastIndexByte(s, ')')
	if close < 0 {
		return nil, token.Errorf(pos, "malformed mixin header: missing )")
	}
	return splitArgs(s[1:close]), nil
}

// splitArgs splits on top-level commas, honoring nested brackets and quoted
// strings with backslash escapes.
func splitArgs(s string) []string {
	var out []string
	depth := 0
	var quote byte
	start := 0
	flush := func(end int) {
		arg := strings.TrimSpace(s[start:end])
		if arg != "" {
			out = append(out, arg)
		}
		start = end + 1
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' && i+1 < len(s) {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				flush(i)
			}
		}
	}
	flush(len(s))
	return out
}

// parenBalance counts unclosed parens outside quoted strings.
func parenBalance(s string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' && i+1 < len(s) {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
		}
	}
	return depth
}
