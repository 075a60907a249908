package cst

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// <a>hi</a> built by hand
func buildSample() *Tree {
	b := NewBuilder("Document", 9)
	b.Open("Element", 0)
	b.Open("OpenTag", 0)
	b.Leaf("StartTag", 0, 1)
	b.Leaf("TagName", 1, 2)
	b.Leaf("EndTag", 2, 3)
	b.CloseAtEnd()
	b.Leaf("Text", 3, 5)
	b.Open("CloseTag", 5)
	b.Leaf("StartCloseTag", 5, 7)
	b.Leaf("TagName", 7, 8)
	b.Leaf("EndTag", 8, 9)
	b.CloseAtEnd()
	b.CloseAtEnd()
	return b.Finish()
}

func TestKindFromName(t *testing.T) {
	assert.Equal(t, KindElement, KindFromName("Element"))
	assert.Equal(t, KindError, KindFromName("⚠"))
	assert.Equal(t, KindError, KindFromName("Error"))
	assert.Equal(t, KindUnknown, KindFromName("SelfClosingTag"))
	assert.Equal(t, "TagName", KindTagName.String())
	assert.True(t, KindIncompleteCloseTag.IsCloseTag())
	assert.False(t, KindOpenTag.IsCloseTag())
}

func TestTreeShape(t *testing.T) {
	tree := buildSample()
	assert.Equal(t, "Document(Element(OpenTag(StartTag,TagName,EndTag),Text,CloseTag(StartCloseTag,TagName,EndTag)))", tree.String())
	assert.Equal(t, 9, tree.Len())

	el := tree.Root().FirstChild()
	require.True(t, el.Valid())
	assert.Equal(t, KindElement, el.Kind())
	assert.Equal(t, 0, el.From())
	assert.Equal(t, 9, el.To())
	assert.Equal(t, KindCloseTag, el.LastChild().Kind())
	assert.Equal(t, KindTagName, el.FirstChild().Child(KindTagName).Kind())
	assert.Equal(t, tree.Root(), el.Parent())
	assert.True(t, tree.Root().IsTop())
	assert.False(t, el.IsTop())
}

func TestAbsentNode(t *testing.T) {
	var n Node
	assert.False(t, n.Valid())
	assert.Equal(t, KindUnknown, n.Kind())
	assert.False(t, n.Parent().Valid())
	assert.False(t, n.FirstChild().Child(KindTagName).Valid())
	assert.Equal(t, n, n.Resolve(3, 0))
}

func TestResolve(t *testing.T) {
	tree := buildSample()

	tests := []struct {
		name string
		pos  int
		side int
		want Kind
	}{
		{name: "end_of_name_before", pos: 2, side: -1, want: KindTagName},
		{name: "end_of_name_around", pos: 2, side: 0, want: KindOpenTag},
		{name: "start_of_name_after", pos: 1, side: 1, want: KindTagName},
		{name: "after_open_tag_before", pos: 3, side: -1, want: KindEndTag},
		{name: "inside_text", pos: 4, side: 0, want: KindText},
		{name: "after_start_close_tag", pos: 7, side: -1, want: KindStartCloseTag},
		{name: "document_end", pos: 9, side: 0, want: KindDocument},
		{name: "document_end_before", pos: 9, side: -1, want: KindEndTag},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tree.ResolveInner(tt.pos, tt.side)
			assert.Equal(t, tt.want, got.Kind())
		})
	}
}

func TestNodeResolveMovesUp(t *testing.T) {
	tree := buildSample()
	name := tree.ResolveInner(2, -1)
	require.Equal(t, KindTagName, name.Kind())
	assert.Equal(t, KindOpenTag, name.Resolve(2, 0).Kind())
	assert.Equal(t, KindText, name.Resolve(4, 0).Kind())
}

func TestChildBeforeAfter(t *testing.T) {
	el := buildSample().Root().FirstChild()
	assert.Equal(t, KindText, el.ChildBefore(5).Kind())
	assert.Equal(t, KindCloseTag, el.ChildBefore(6).Kind())
	assert.False(t, el.ChildBefore(0).Valid())
	assert.Equal(t, KindText, el.ChildAfter(3).Kind())
	assert.False(t, el.ChildAfter(9).Valid())
}

func TestZeroWidthNodesAreNotEntered(t *testing.T) {
	b := NewBuilder("Document", 2)
	b.Open("Element", 0)
	b.Open("OpenTag", 0)
	b.Leaf("StartTag", 0, 1)
	b.Leaf("TagName", 1, 2)
	b.Leaf("⚠", 2, 2)
	b.CloseAtEnd()
	b.CloseAtEnd()
	tree := b.Finish()

	assert.Equal(t, "Document(Element(OpenTag(StartTag,TagName,⚠)))", tree.String())
	assert.Equal(t, KindTagName, tree.ResolveInner(2, -1).Kind())
	assert.Equal(t, KindDocument, tree.Resolve(2, 1).Kind())
	assert.True(t, tree.Root().FirstChild().FirstChild().LastChild().IsError())
}

func TestStringTextSlice(t *testing.T) {
	s := StringText("hello")
	assert.Equal(t, 5, s.Len())
	assert.Equal(t, "ell", s.Slice(1, 4))
	assert.Equal(t, "lo", s.Slice(3, 99))
	assert.Equal(t, "", s.Slice(4, 2))
	assert.Equal(t, "he", s.Slice(-3, 2))
}
