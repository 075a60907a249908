package cst

// Builder assembles a Tree in document order. Parsers open container nodes,
// add leaves, and close containers; children must be added left to right.
type Builder struct {
	tree  *Tree
	stack []int32
}

// NewBuilder starts a tree whose root is named rootName and covers length
// bytes.
func NewBuilder(rootName string, length int) *Builder {
	b := &Builder{tree: &Tree{}}
	b.tree.nodes = append(b.tree.nodes, node{
		kind:   KindFromName(rootName),
		name:   rootName,
		from:   0,
		to:     length,
		parent: none,
		first:  none,
		last:   none,
		next:   none,
		prev:   none,
	})
	b.stack = []int32{0}
	return b
}

func (b *Builder) add(name string, from, to int) int32 {
	parent := b.stack[len(b.stack)-1]
	idx := int32(len(b.tree.nodes))
	p := &b.tree.nodes[parent]
	prev := p.last
	b.tree.nodes = append(b.tree.nodes, node{
		kind:   KindFromName(name),
		name:   name,
		from:   from,
		to:     to,
		parent: parent,
		first:  none,
		last:   none,
		next:   none,
		prev:   prev,
	})
	p = &b.tree.nodes[parent]
	if prev == none {
		p.first = idx
	} else {
		b.tree.nodes[prev].next = idx
	}
	p.last = idx
	return idx
}

// Open starts a container node at from. Its end is set by Close.
func (b *Builder) Open(name string, from int) {
	idx := b.add(name, from, from)
	b.stack = append(b.stack, idx)
}

// Leaf adds a node without children to the current container.
func (b *Builder) Leaf(name string, from, to int) {
	b.add(name, from, to)
}

// Close ends the current container at to.
func (b *Builder) Close(to int) {
	if len(b.stack) <= 1 {
		return
	}
	idx := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]
	b.tree.nodes[idx].to = to
}

// CloseAtEnd ends the current container where its last child ends, or at its
// start when it has none.
func (b *Builder) CloseAtEnd() {
	b.Close(b.End())
}

// End is where the current container's content ends so far.
func (b *Builder) End() int {
	n := &b.tree.nodes[b.stack[len(b.stack)-1]]
	if n.last == none {
		return n.from
	}
	return b.tree.nodes[n.last].to
}

// Depth is the number of open containers, excluding the root.
func (b *Builder) Depth() int {
	return len(b.stack) - 1
}

// Finish closes every open container and returns the tree. The builder must
// not be used afterwards.
func (b *Builder) Finish() *Tree {
	for b.Depth() > 0 {
		b.CloseAtEnd()
	}
	t := b.tree
	b.tree = nil
	return t
}
