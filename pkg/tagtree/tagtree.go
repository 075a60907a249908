// Package tagtree answers structural questions about elements in a cst.Tree:
// an element's name, its enclosing element, which ancestors are still open,
// and which child tags a schema allows.
package tagtree

import (
	"slices"

	"github.com/walteh/ftlsense/pkg/cst"
	"github.com/walteh/ftlsense/pkg/schema"
)

// ElementName reads the tag name of an element from doc, cut off at max so a
// name that is still being typed can be read. It returns "" when node is
// absent or has no name.
func ElementName(doc cst.Text, node cst.Node, max int) string {
	if !node.Valid() {
		return ""
	}
	name := node.FirstChild().Child(cst.KindTagName)
	if !name.Valid() {
		return ""
	}
	return doc.Slice(name.From(), min(name.To(), max))
}

// FindParentElement returns the nearest Element at or above node. With skip
// set the first Element found is passed over, giving the element that
// encloses node's own element.
func FindParentElement(node cst.Node, skip bool) cst.Node {
	for ; node.Valid(); node = node.Parent() {
		if node.Kind() != cst.KindElement {
			continue
		}
		if skip {
			skip = false
			continue
		}
		return node
	}
	return cst.Node{}
}

// OpenTags lists the names of the elements around node that are still open,
// innermost first and without duplicates. The walk stops at the first named
// element that already has its close tag, after that element is considered.
// An element only counts once node is past its opening tag, or when node is
// the closer of a tag.
func OpenTags(doc cst.Text, node cst.Node) []string {
	var open []string
	for parent := FindParentElement(node, false); parent.Valid() && !parent.IsTop(); parent = FindParentElement(parent.Parent(), false) {
		name := ElementName(doc, parent, doc.Len())
		if name != "" && !slices.Contains(open, name) &&
			(node.Kind() == cst.KindEndTag || node.From() >= parent.FirstChild().To()) {
			open = append(open, name)
		}
		if name != "" && parent.LastChild().Kind() == cst.KindCloseTag {
			break
		}
	}
	return open
}

// AllowedChildren lists the tags the schema allows inside the element
// enclosing node, or every known tag when that element is unrestricted.
func AllowedChildren(doc cst.Text, node cst.Node, s *schema.Schema) []string {
	name := ElementName(doc, FindParentElement(node, false), doc.Len())
	if children, ok := s.Children(name); ok {
		return children
	}
	return s.AllTags()
}

// Span is a byte range in the document.
type Span struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// MatchingTags returns the tag name ranges of the element whose open or close
// tag name contains pos: the open name first, then the close name when the
// element is closed.
func MatchingTags(tree *cst.Tree, pos int) []Span {
	name := tree.ResolveInner(pos, -1)
	if name.Kind() != cst.KindTagName {
		name = tree.ResolveInner(pos, 1)
	}
	if name.Kind() != cst.KindTagName {
		return nil
	}
	tag := name.Parent()
	if tag.Kind() != cst.KindOpenTag && tag.Kind() != cst.KindCloseTag {
		return nil
	}
	el := tag.Parent()
	if el.Kind() != cst.KindElement {
		return nil
	}
	openName := el.FirstChild().Child(cst.KindTagName)
	spans := []Span{{From: openName.From(), To: openName.To()}}
	if last := el.LastChild(); last.Kind() == cst.KindCloseTag {
		if closeName := last.Child(cst.KindTagName); closeName.Valid() {
			spans = append(spans, Span{From: closeName.From(), To: closeName.To()})
		}
	}
	return spans
}

// FoldRange is a foldable region of the document.
type FoldRange struct {
	Span
	Kind cst.Kind `json:"-"`
}

// Folds lists elements and comments that span more than one line. An element
// folds from the end of its open tag to the start of its close tag, or to its
// end when unclosed; a comment folds over its whole extent.
func Folds(doc cst.Text, tree *cst.Tree) []FoldRange {
	var out []FoldRange
	var walk func(n cst.Node)
	walk = func(n cst.Node) {
		for c := n.FirstChild(); c.Valid(); c = c.NextSibling() {
			switch c.Kind() {
			case cst.KindElement:
				from := c.FirstChild().To()
				to := c.To()
				if last := c.LastChild(); last.Kind() == cst.KindCloseTag {
					to = last.From()
				}
				if spansLines(doc, from, to) {
					out = append(out, FoldRange{Span: Span{From: from, To: to}, Kind: cst.KindElement})
				}
				walk(c)
			case cst.KindComment:
				if spansLines(doc, c.From(), c.To()) {
					out = append(out, FoldRange{Span: Span{From: c.From(), To: c.To()}, Kind: cst.KindComment})
				}
			}
		}
	}
	walk(tree.Root())
	return out
}

func spansLines(doc cst.Text, from, to int) bool {
	if to <= from {
		return false
	}
	for _, c := range doc.Slice(from, to) {
		if c == '\n' {
			return true
		}
	}
	return false
}
