package htmlir

import (
	"strings"
	"testing"

	"github.com/kilianc/atc/internal/atc/token"
)

var pos = token.Pos{Line: 1, Col: 1}

func mustParseHead(t *testing.T, head string) *IR {
	t.Helper()
	ir, err := ParseHead(head, pos)
	if err != nil {
		t.Fatalf("ParseHead(%q): %v", head, err)
	}
	return ir
}

func litOnly(t *testing.T, v Value) string {
	t.Helper()
	var b strings.Builder
	for _, s := range v.Segs {
		if s.Kind != Literal {
			t.Fatalf("unexpected expr segment %q", s.Text)
		}
		b.WriteString(s.Text)
	}
	return b.String()
}

func TestBareTag(t *testing.T) {
	ir := mustParseHead(t, "p")
	if ir.Tag != "p" || ir.Next != nil || !ir.Content.Empty() {
		t.Fatalf("ir = %+v", ir)
	}
}

func TestTagWithContent(t *testing.T) {
	ir := mustParseHead(t, "p Hello world")
	if ir.Tag != "p" {
		t.Fatalf("tag = %q", ir.Tag)
	}
	if litOnly(t, ir.Content) != "Hello world" {
		t.Fatalf("content = %+v", ir.Content)
	}
}

func TestImpliedDiv(t *testing.T) {
	for _, head := range []string{".card", "#main"} {
		ir := mustParseHead(t, head)
		if ir.Tag != "div" {
			t.Errorf("%q: tag = %q, want div", head, ir.Tag)
		}
	}
}

func TestClassesAndID(t *testing.T) {
	ir := mustParseHead(t, "a.btn.primary#go")
	if ir.Tag != "a" {
		t.Fatalf("tag = %q", ir.Tag)
	}
	if len(ir.Classes) != 2 {
		t.Fatalf("classes = %d", len(ir.Classes))
	}
	if litOnly(t, ir.Classes[0]) != "btn" || litOnly(t, ir.Classes[1]) != "primary" {
		t.Fatalf("classes = %+v", ir.Classes)
	}
	if litOnly(t, ir.ID) != "go" {
		t.Fatalf("id = %+v", ir.ID)
	}
}

func TestDuplicateIDError(t *testing.T) {
	if _, err := ParseHead("div#a#b", pos); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestBareBracketError(t *testing.T) {
	for _, head := range []string{"div}", "div{x", "div)"} {
		if _, err := ParseHead(head, pos); err == nil {
			t.Errorf("%q: expected bracket error", head)
		}
	}
}

func TestExprContent(t *testing.T) {
	ir := mustParseHead(t, "b= x")
	if len(ir.Content.Segs) != 1 || ir.Content.Segs[0].Kind != Expr {
		t.Fatalf("content = %+v", ir.Content)
	}
	if strings.TrimSpace(ir.Content.Segs[0].Text) != "x" {
		t.Fatalf("expr = %q", ir.Content.Segs[0].Text)
	}
}

func TestChain(t *testing.T) {
	ir := mustParseHead(t, `li: a(href="/x") go`)
	if ir.Tag != "li" || ir.Next == nil {
		t.Fatalf("ir = %+v", ir)
	}
	next := ir.Next
	if next.Tag != "a" {
		t.Fatalf("chained tag = %q", next.Tag)
	}
	if len(next.Attrs) != 1 || litOnly(t, next.Attrs[0].Name) != "href" {
		t.Fatalf("attrs = %+v", next.Attrs)
	}
	if litOnly(t, next.Attrs[0].Value) != `"/x"` {
		t.Fatalf("attr value = %+v", next.Attrs[0].Value)
	}
	if litOnly(t, next.Content) != "go" {
		t.Fatalf("content = %+v", next.Content)
	}
}

func TestAttrForms(t *testing.T) {
	ir := mustParseHead(t, `input(type="text" required, value=init)`)
	if len(ir.Attrs) != 3 {
		t.Fatalf("attrs = %+v", ir.Attrs)
	}
	if litOnly(t, ir.Attrs[0].Value) != `"text"` {
		t.Fatalf("quoted value = %+v", ir.Attrs[0].Value)
	}
	if !ir.Attrs[1].Value.Empty() {
		t.Fatalf("boolean attr got value %+v", ir.Attrs[1].Value)
	}
	v := ir.Attrs[2].Value
	if len(v.Segs) != 1 || v.Segs[0].Kind != Literal || v.Segs[0].Text != "init" {
		t.Fatalf("unquoted value = %+v", v)
	}
}

func TestQuotedAttrWithInterpolation(t *testing.T) {
	ir := mustParseHead(t, `a(href="/u/#{id}")`)
	v := ir.Attrs[0].Value
	// Opening quote, leading literal, expression, closing quote.
	if !v.HasExpr() {
		t.Fatalf("value = %+v", v)
	}
	if v.Segs[0].Text != `"` || v.Segs[len(v.Segs)-1].Text != `"` {
		t.Fatalf("quotes not kept as literals: %+v", v)
	}
	found := false
	for _, s := range v.Segs {
		if s.Kind == Expr && s.Text == "id" {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing id expression: %+v", v)
	}
}

func TestQuotedAttrWithoutInterpolationKeptVerbatim(t *testing.T) {
	ir := mustParseHead(t, `a(title='it''s fine')`)
	v := ir.Attrs[0].Value
	if len(v.Segs) != 1 || v.Segs[0].Kind != Literal {
		t.Fatalf("value = %+v", v)
	}
	if !strings.HasPrefix(v.Segs[0].Text, "'") {
		t.Fatalf("quotes stripped: %q", v.Segs[0].Text)
	}
}

func TestInterpolationWithQuotedBraces(t *testing.T) {
	// Quotes inside the interpolation must not end the attribute value.
	ir := mustParseHead(t, `a(title="#{f("}")}")`)
	v := ir.Attrs[0].Value
	if !v.HasExpr() {
		t.Fatalf("value = %+v", v)
	}
	found := false
	for _, s := range v.Segs {
		if s.Kind == Expr && s.Text == `f("}")` {
			found = true
		}
	}
	if !found {
		t.Fatalf("expression mangled: %+v", v)
	}
}

func TestUnclosedQuoteError(t *testing.T) {
	if _, err := ParseHead(`a(title="oops)`, pos); err == nil {
		t.Fatal("expected unclosed quote error")
	}
}

func TestGettextAttrValue(t *testing.T) {
	ir := mustParseHead(t, `a(title=_("hello"))`)
	v := ir.Attrs[0].Value
	if len(v.Segs) != 1 || v.Segs[0].Kind != Expr || v.Segs[0].Text != `_("hello")` {
		t.Fatalf("value = %+v", v)
	}
}

func TestParseSegments(t *testing.T) {
	v := ParseSegments("Hello #{name}!")
	want := []Segment{{Literal, "Hello "}, {Expr, "name"}, {Literal, "!"}}
	if len(v.Segs) != len(want) {
		t.Fatalf("segs = %+v", v.Segs)
	}
	for i, s := range v.Segs {
		if s != want[i] {
			t.Fatalf("seg %d = %+v, want %+v", i, s, want[i])
		}
	}
}

func TestParseSegmentsGettext(t *testing.T) {
	v := ParseSegments(`Welcome _("home #{user}") friend`)
	if len(v.Segs) != 3 {
		t.Fatalf("segs = %+v", v.Segs)
	}
	if v.Segs[1].Kind != Expr || v.Segs[1].Text != `_("home #{user}")` {
		t.Fatalf("gettext seg = %+v", v.Segs[1])
	}
}

func TestUnclosedInterpolationConsumesToEnd(t *testing.T) {
	v := ParseSegments("x #{never closes")
	if len(v.Segs) != 2 {
		t.Fatalf("segs = %+v", v.Segs)
	}
	if v.Segs[1].Kind != Expr || v.Segs[1].Text != "never closes" {
		t.Fatalf("tail seg = %+v", v.Segs[1])
	}
}

func TestNestedBracesInInterpolation(t *testing.T) {
	v := ParseSegments("#{map[string]int{}}")
	if len(v.Segs) != 1 || v.Segs[0].Kind != Expr {
		t.Fatalf("segs = %+v", v.Segs)
	}
	if v.Segs[0].Text != "map[string]int{}" {
		t.Fatalf("expr = %q", v.Segs[0].Text)
	}
}

func TestClassInterpolation(t *testing.T) {
	ir := mustParseHead(t, "div.item-#{kind}")
	if len(ir.Classes) != 1 {
		t.Fatalf("classes = %+v", ir.Classes)
	}
	c := ir.Classes[0]
	if len(c.Segs) != 2 || c.Segs[0] != (Segment{Literal, "item-"}) || c.Segs[1] != (Segment{Expr, "kind"}) {
		t.Fatalf("class = %+v", c)
	}
}

func TestEmptyClassDropped(t *testing.T) {
	ir := mustParseHead(t, "div.")
	if len(ir.Classes) != 0 {
		t.Fatalf("classes = %+v", ir.Classes)
	}
}
