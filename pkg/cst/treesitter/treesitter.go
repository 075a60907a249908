// Package treesitter builds cst trees from tree-sitter HTML parses, so the
// completion and auto-close engines can run over plain HTML documents.
package treesitter

import (
	"context"
	"slices"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/html"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/ftlsense/pkg/cst"
	"github.com/walteh/ftlsense/pkg/ftl"
)

type mapping struct {
	name string
	leaf bool
}

// names maps tree-sitter-html node types onto cst node names. Types that are
// missing here are dropped together with their subtree.
var names = map[string]mapping{
	"element":                {name: "Element"},
	"script_element":         {name: "Element"},
	"style_element":          {name: "Element"},
	"start_tag":              {name: "OpenTag"},
	"self_closing_tag":       {name: "OpenTag"},
	"end_tag":                {name: "CloseTag"},
	"erroneous_end_tag":      {name: "MismatchedCloseTag"},
	"tag_name":               {name: "TagName", leaf: true},
	"erroneous_end_tag_name": {name: "TagName", leaf: true},
	"attribute":              {name: "Attribute", leaf: true},
	"<":                      {name: "StartTag", leaf: true},
	"</":                     {name: "StartCloseTag", leaf: true},
	">":                      {name: "EndTag", leaf: true},
	"/>":                     {name: "SelfClosingEndTag", leaf: true},
	"text":                   {name: "Text", leaf: true},
	"raw_text":               {name: "Text", leaf: true},
	"comment":                {name: "Comment", leaf: true},
	"ERROR":                  {name: "⚠"},
}

// Parse parses src as HTML.
func Parse(ctx context.Context, src []byte) (*cst.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(html.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, errors.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	return Convert(tree.RootNode(), src), nil
}

type converter struct {
	b   *cst.Builder
	src []byte
}

// Convert copies the tree under root, parsed from src, into a cst.Tree.
//
// Nodes the parser inserted to recover from an error become zero-width error
// nodes. tree-sitter gives up on an element that is never closed and reports
// its open tag inside an ERROR node; such open tags become elements that run
// to the end of that node, and a dangling "</name" inside it becomes an
// incomplete close tag.
func Convert(root *sitter.Node, src []byte) *cst.Tree {
	c := &converter{b: cst.NewBuilder("Document", len(src)), src: src}
	if root != nil {
		c.children(root)
	}
	return c.b.Finish()
}

func (c *converter) children(n *sitter.Node) {
	for i := 0; i < int(n.ChildCount()); i++ {
		c.node(n.Child(i))
	}
}

func (c *converter) node(n *sitter.Node) {
	if n == nil {
		return
	}
	from, to := int(n.StartByte()), int(n.EndByte())
	if n.IsMissing() {
		c.b.Leaf("⚠", from, from)
		return
	}
	if n.Type() == "ERROR" && n.ChildCount() > 0 && n.Child(0).Type() == "start_tag" {
		c.unclosed(n)
		return
	}
	m, ok := names[n.Type()]
	if !ok {
		return
	}
	if m.leaf {
		c.b.Leaf(m.name, from, to)
		return
	}
	c.b.Open(m.name, from)
	c.children(n)
	c.b.Close(to)
}

func (c *converter) unclosed(n *sitter.Node) {
	end := int(n.EndByte())
	depth := 0
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "start_tag":
			c.b.Open("Element", int(child.StartByte()))
			c.node(child)
			if c.void(child) {
				c.b.Close(int(child.EndByte()))
			} else {
				depth++
			}
			continue
		case "</":
			if i+1 < count {
				if next := n.Child(i + 1); next != nil && (next.Type() == "erroneous_end_tag_name" || next.Type() == "tag_name") {
					c.b.Open("IncompleteCloseTag", int(child.StartByte()))
					c.node(child)
					c.node(next)
					c.b.Close(int(next.EndByte()))
					i++
					continue
				}
			}
		}
		c.node(child)
	}
	for ; depth > 0; depth-- {
		c.b.Close(end)
	}
}

func (c *converter) void(startTag *sitter.Node) bool {
	for i := 0; i < int(startTag.ChildCount()); i++ {
		if child := startTag.Child(i); child != nil && child.Type() == "tag_name" {
			name := strings.ToLower(string(c.src[child.StartByte():child.EndByte()]))
			return slices.Contains(ftl.VoidElements, name)
		}
	}
	return false
}
