package cst

import "strings"

const none int32 = -1

type node struct {
	kind   Kind
	name   string
	from   int
	to     int
	parent int32
	first  int32
	last   int32
	next   int32
	prev   int32
}

// Tree is an immutable concrete syntax tree stored as an arena. Nodes refer
// to each other by index, so a Node handle never owns anything and is only
// meaningful while the Tree it came from is.
type Tree struct {
	nodes []node
}

// Node is a handle into a Tree. The zero Node is the absent node: every
// accessor on it returns a zero value, which lets navigation chains run
// without nil checks.
type Node struct {
	tree *Tree
	idx  int32
}

// Root returns the top node of the tree.
func (t *Tree) Root() Node {
	if t == nil || len(t.nodes) == 0 {
		return Node{}
	}
	return Node{tree: t, idx: 0}
}

// Len is the length of the text the tree covers.
func (t *Tree) Len() int {
	return t.Root().To()
}

// Resolve finds the innermost node around pos. See Node.Resolve for side.
func (t *Tree) Resolve(pos, side int) Node {
	return t.Root().Resolve(pos, side)
}

// ResolveInner is Resolve for trees without mounted sub-languages. It exists
// so callers can state which of the two lookups they mean.
func (t *Tree) ResolveInner(pos, side int) Node {
	return t.Root().Resolve(pos, side)
}

func (t *Tree) String() string {
	var sb strings.Builder
	writeNode(&sb, t.Root())
	return sb.String()
}

func writeNode(sb *strings.Builder, n Node) {
	if !n.Valid() {
		return
	}
	sb.WriteString(n.Name())
	c := n.FirstChild()
	if !c.Valid() {
		return
	}
	sb.WriteByte('(')
	for first := true; c.Valid(); c = c.NextSibling() {
		if !first {
			sb.WriteByte(',')
		}
		first = false
		writeNode(sb, c)
	}
	sb.WriteByte(')')
}

func (n Node) raw() *node {
	return &n.tree.nodes[n.idx]
}

func (n Node) at(idx int32) Node {
	if idx == none {
		return Node{}
	}
	return Node{tree: n.tree, idx: idx}
}

// Valid reports whether n refers to a node.
func (n Node) Valid() bool { return n.tree != nil }

func (n Node) Kind() Kind {
	if !n.Valid() {
		return KindUnknown
	}
	return n.raw().kind
}

// Name is the node name as the producing parser spelled it.
func (n Node) Name() string {
	if !n.Valid() {
		return ""
	}
	return n.raw().name
}

func (n Node) From() int {
	if !n.Valid() {
		return 0
	}
	return n.raw().from
}

func (n Node) To() int {
	if !n.Valid() {
		return 0
	}
	return n.raw().to
}

func (n Node) Parent() Node {
	if !n.Valid() {
		return Node{}
	}
	return n.at(n.raw().parent)
}

func (n Node) FirstChild() Node {
	if !n.Valid() {
		return Node{}
	}
	return n.at(n.raw().first)
}

func (n Node) LastChild() Node {
	if !n.Valid() {
		return Node{}
	}
	return n.at(n.raw().last)
}

func (n Node) NextSibling() Node {
	if !n.Valid() {
		return Node{}
	}
	return n.at(n.raw().next)
}

func (n Node) PrevSibling() Node {
	if !n.Valid() {
		return Node{}
	}
	return n.at(n.raw().prev)
}

// IsTop reports whether n is the root of its tree.
func (n Node) IsTop() bool {
	return n.Valid() && n.idx == 0
}

func (n Node) IsError() bool {
	return n.Kind() == KindError
}

// Child returns the first direct child of the given kind.
func (n Node) Child(kind Kind) Node {
	for c := n.FirstChild(); c.Valid(); c = c.NextSibling() {
		if c.Kind() == kind {
			return c
		}
	}
	return Node{}
}

// Children returns the direct children of the given kind, or all of them for
// KindUnknown.
func (n Node) Children(kind Kind) []Node {
	var out []Node
	for c := n.FirstChild(); c.Valid(); c = c.NextSibling() {
		if kind == KindUnknown || c.Kind() == kind {
			out = append(out, c)
		}
	}
	return out
}

// ChildBefore returns the last child that starts before pos.
func (n Node) ChildBefore(pos int) Node {
	for c := n.LastChild(); c.Valid(); c = c.PrevSibling() {
		if c.From() < pos {
			return c
		}
	}
	return Node{}
}

// ChildAfter returns the first child that ends after pos.
func (n Node) ChildAfter(pos int) Node {
	for c := n.FirstChild(); c.Valid(); c = c.NextSibling() {
		if c.To() > pos {
			return c
		}
	}
	return Node{}
}

// Resolve finds the innermost node around pos, starting the search at n and
// moving up first when n does not hold pos.
//
// side selects how boundaries count: -1 enters nodes that end at pos, 1 enters
// nodes that start at pos, 0 only enters nodes that strictly contain pos.
// Zero-width nodes are never entered.
func (n Node) Resolve(pos, side int) Node {
	if !n.Valid() {
		return n
	}
	for !holds(n, pos, side) {
		p := n.Parent()
		if !p.Valid() {
			break
		}
		n = p
	}
	for {
		c := n.enter(pos, side)
		if !c.Valid() {
			return n
		}
		n = c
	}
}

func holds(n Node, pos, side int) bool {
	from, to := n.From(), n.To()
	if from == to {
		return false
	}
	if side < 1 && from >= pos || side >= 1 && from > pos {
		return false
	}
	if side > -1 && to <= pos || side <= -1 && to < pos {
		return false
	}
	return true
}

func (n Node) enter(pos, side int) Node {
	if side < 0 {
		for c := n.LastChild(); c.Valid(); c = c.PrevSibling() {
			if checkSide(side, pos, c.From(), c.To()) {
				return c
			}
		}
		return Node{}
	}
	for c := n.FirstChild(); c.Valid(); c = c.NextSibling() {
		if checkSide(side, pos, c.From(), c.To()) {
			return c
		}
	}
	return Node{}
}

func checkSide(side, pos, from, to int) bool {
	switch {
	case side < 0:
		return to >= pos && from < pos
	case side > 0:
		return from <= pos && to > pos
	default:
		return from < pos && to > pos
	}
}
