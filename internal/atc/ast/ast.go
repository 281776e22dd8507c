// Package ast defines the node set produced by the .at parser. The set is
// closed: the linker and translator switch over these types exhaustively.
package ast

import "github.com/kilianc/atc/internal/atc/token"

// Node is implemented by every AST node. Clone produces an owned deep copy.
type Node interface {
	Pos() token.Pos
	Clone() Node
}

// NodeList is an ordered, owning sequence of children.
type NodeList []Node

// Clone deep-copies the list.
func (l NodeList) Clone() NodeList {
	if l == nil {
		return nil
	}
	out := make(NodeList, len(l))
	for i, n := range l {
		out[i] = n.Clone()
	}
	return out
}

// Text is a literal string fragment.
type Text struct {
	P    token.Pos
	Text string
}

func (n *Text) Pos() token.Pos { return n.P }
func (n *Text) Clone() Node    { c := *n; return &c }

// TextGroup is an ordered run of Text lines forming a verbatim block.
type TextGroup struct {
	P     token.Pos
	Lines []*Text
}

func (n *TextGroup) Pos() token.Pos { return n.P }

func (n *TextGroup) Clone() Node {
	c := &TextGroup{P: n.P, Lines: make([]*Text, len(n.Lines))}
	for i, t := range n.Lines {
		c.Lines[i] = t.Clone().(*Text)
	}
	return c
}

// Expr is a host-language expression streamed into the output.
type Expr struct {
	P    token.Pos
	Expr string
}

func (n *Expr) Pos() token.Pos { return n.P }
func (n *Expr) Clone() Node    { c := *n; return &c }

// Code is a raw host-language fragment with optional nested children that
// render inside a lexical block.
type Code struct {
	P        token.Pos
	Code     string
	Children NodeList
}

func (n *Code) Pos() token.Pos { return n.P }
func (n *Code) Clone() Node {
	return &Code{P: n.P, Code: n.Code, Children: n.Children.Clone()}
}

// Html is an element line. Head stays unparsed until translation.
type Html struct {
	P        token.Pos
	Head     string
	Children NodeList
}

func (n *Html) Pos() token.Pos { return n.P }
func (n *Html) Clone() Node {
	return &Html{P: n.P, Head: n.Head, Children: n.Children.Clone()}
}

// Extends references a parent template. At most one per file.
type Extends struct {
	P    token.Pos
	Path string
}

func (n *Extends) Pos() token.Pos { return n.P }
func (n *Extends) Clone() Node    { c := *n; return &c }

// IncludeMode selects how an included file is interpreted.
type IncludeMode int

const (
	IncludeAt IncludeMode = iota // .at template, spliced as an AST
	IncludePlain                 // any other file, inserted verbatim
)

// Include references another file by path relative to the base directory.
type Include struct {
	P    token.Pos
	Path string
	Mode IncludeMode
}

func (n *Include) Pos() token.Pos { return n.P }
func (n *Include) Clone() Node    { c := *n; return &c }

// BlockMode selects how a child block combines with the parent slot.
type BlockMode int

const (
	BlockReplace BlockMode = iota
	BlockAppend
	BlockPrepend
)

// Block is a named insertion slot. An anonymous block (empty name) is the
// callback slot of a mixin body.
type Block struct {
	P        token.Pos
	Name     string
	Mode     BlockMode
	Children NodeList
}

func (n *Block) Pos() token.Pos { return n.P }
func (n *Block) Clone() Node {
	return &Block{P: n.P, Name: n.Name, Mode: n.Mode, Children: n.Children.Clone()}
}

// MixinDecl declares a reusable fragment. Args holds the raw comma-split
// parameter text. HasBlock is set by the translator when the body contains an
// anonymous block.
type MixinDecl struct {
	P        token.Pos
	Name     string
	Args     []string
	Children NodeList
	HasBlock bool
}

func (n *MixinDecl) Pos() token.Pos { return n.P }
func (n *MixinDecl) Clone() Node {
	c := &MixinDecl{P: n.P, Name: n.Name, HasBlock: n.HasBlock, Children: n.Children.Clone()}
	c.Args = append([]string(nil), n.Args...)
	return c
}

// MixinCall invokes a mixin with raw argument expressions and an optional
// body that becomes the block callback.
type MixinCall struct {
	P        token.Pos
	Name     string
	Args     []string
	Children NodeList
}

func (n *MixinCall) Pos() token.Pos { return n.P }
func (n *MixinCall) Clone() Node {
	c := &MixinCall{P: n.P, Name: n.Name, Children: n.Children.Clone()}
	c.Args = append([]string(nil), n.Args...)
	return c
}

// External declares host data visible to the template: struct members when
// Struct is set, otherwise function-parameter fragments.
type External struct {
	P        token.Pos
	Struct   bool
	Children NodeList
}

func (n *External) Pos() token.Pos { return n.P }
func (n *External) Clone() Node {
	return &External{P: n.P, Struct: n.Struct, Children: n.Children.Clone()}
}

// ReplaceSlot records where a node patched by the linker currently sits: its
// parent (nil means the root list) and its index among the siblings. The
// reference is non-owning; the linker keeps Offset in sync across splices.
// Seq is the registration order, used to group slots deterministically.
type ReplaceSlot struct {
	Node   Node
	Parent Node
	Offset int
	Seq    int
}

// ChildrenOf returns the children vector a slot's offset indexes into: the
// root list when parent is nil, otherwise the parent's own child list. The
// second result is false for parents that cannot own children.
func ChildrenOf(parent Node, root *NodeList) (*NodeList, bool) {
	if parent == nil {
		return root, true
	}
	switch p := parent.(type) {
	case *Html:
		return &p.Children, true
	case *Code:
		return &p.Children, true
	case *Block:
		return &p.Children, true
	case *MixinDecl:
		return &p.Children, true
	case *MixinCall:
		return &p.Children, true
	case *External:
		return &p.Children, true
	}
	return nil, false
}
