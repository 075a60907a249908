// Package check reports tag structure problems in a parsed document: tags
// left open, close tags that match nothing, and unfinished markup.
package check

import (
	"slices"

	"github.com/walteh/ftlsense/pkg/cst"
	"github.com/walteh/ftlsense/pkg/ftl"
	"github.com/walteh/ftlsense/pkg/tagtree"
)

type Problem struct {
	From    int    `json:"from"`
	To      int    `json:"to"`
	Message string `json:"message"`
}

// Tree walks tree in document order and lists its problems.
func Tree(doc cst.Text, tree *cst.Tree) []Problem {
	var out []Problem
	var walk func(n cst.Node)
	walk = func(n cst.Node) {
		for c := n.FirstChild(); c.Valid(); c = c.NextSibling() {
			switch c.Kind() {
			case cst.KindElement:
				if p, ok := unclosed(doc, c); ok {
					out = append(out, p)
				}
			case cst.KindMismatchedCloseTag:
				out = append(out, Problem{From: c.From(), To: c.To(), Message: "close tag " + doc.Slice(c.From(), c.To()) + " matches no open tag"})
				continue
			case cst.KindIncompleteCloseTag:
				out = append(out, Problem{From: c.From(), To: c.To(), Message: "unfinished close tag"})
				continue
			case cst.KindError:
				out = append(out, Problem{From: c.From(), To: c.To(), Message: "unfinished tag"})
				continue
			}
			walk(c)
		}
	}
	walk(tree.Root())
	return out
}

func unclosed(doc cst.Text, el cst.Node) (Problem, bool) {
	open := el.FirstChild()
	if el.LastChild().Kind() == cst.KindCloseTag || open.Child(cst.KindSelfClosingEndTag).Valid() {
		return Problem{}, false
	}
	name := tagtree.ElementName(doc, el, doc.Len())
	if name == "" || slices.Contains(ftl.VoidElements, name) || slices.Contains(ftl.BodilessDirectives, name) {
		return Problem{}, false
	}
	return Problem{From: open.From(), To: open.To(), Message: "tag " + doc.Slice(open.From(), open.Child(cst.KindTagName).To()) + "> is never closed"}, true
}
