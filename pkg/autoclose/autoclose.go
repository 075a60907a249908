// Package autoclose writes the matching close tag when a tag is finished
// with '>' or a close tag is started with '/'.
//
// The handler sees a keystroke before it lands. It either declines, in which
// case the host inserts the character as usual, or returns a Transaction that
// the host applies instead of the keystroke.
package autoclose

import (
	"context"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/walteh/ftlsense/pkg/cst"
	"github.com/walteh/ftlsense/pkg/tagtree"
)

// SelfClosing names never get a close tag.
var SelfClosing = []string{
	"area", "base", "br", "col", "command", "embed", "frame", "hr", "img", "input",
	"keygen", "link", "meta", "param", "source", "track", "wbr", "menuitem",
}

// UserEvent is the event tag carried by every transaction.
const UserEvent = "input.type"

// Input is the edit the user is about to make: Text replacing [From, To).
type Input struct {
	From int
	To   int
	Text string
}

// State is the editor state before the input is applied.
type State struct {
	Doc  cst.Text
	Tree *cst.Tree
	// Cursors holds the head of every selection range.
	Cursors   []int
	ReadOnly  bool
	Composing bool
	// LanguageActive reports whether template syntax applies at pos. Nil
	// means everywhere.
	LanguageActive func(pos int) bool
}

// Change inserts Insert at From.
type Change struct {
	From   int    `json:"from"`
	Insert string `json:"insert"`
}

// Transaction replaces the keystroke. Changes are in document order and
// positioned against the document before the transaction; Cursors are
// positioned against the document after it.
type Transaction struct {
	Changes        []Change `json:"changes"`
	Cursors        []int    `json:"cursors"`
	UserEvent      string   `json:"userEvent"`
	ScrollIntoView bool     `json:"scrollIntoView"`
}

// Apply returns doc with the transaction's changes applied.
func (tx *Transaction) Apply(doc string) string {
	var sb strings.Builder
	last := 0
	for _, c := range tx.Changes {
		sb.WriteString(doc[last:c.From])
		sb.WriteString(c.Insert)
		last = c.From
	}
	sb.WriteString(doc[last:])
	return sb.String()
}

type Handler struct {
	selfClosing map[string]bool
}

type Option func(*Handler)

// WithSelfClosing adds names that never get a close tag.
func WithSelfClosing(names ...string) Option {
	return func(h *Handler) {
		for _, n := range names {
			h.selfClosing[n] = true
		}
	}
}

func New(opts ...Option) *Handler {
	h := &Handler{selfClosing: make(map[string]bool, len(SelfClosing))}
	for _, n := range SelfClosing {
		h.selfClosing[n] = true
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Intercept decides whether in should be replaced. It returns false when the
// keystroke should be inserted unchanged.
func (h *Handler) Intercept(ctx context.Context, st State, in Input) (*Transaction, bool) {
	if st.Composing || st.ReadOnly || in.From != in.To || (in.Text != ">" && in.Text != "/") {
		return nil, false
	}
	if st.Tree == nil || st.Doc == nil {
		return nil, false
	}
	if st.LanguageActive != nil && !st.LanguageActive(in.From) {
		return nil, false
	}

	cursors := slices.Clone(st.Cursors)
	slices.Sort(cursors)

	tx := &Transaction{UserEvent: UserEvent, ScrollIntoView: true}
	shift, closed := 0, 0
	for _, head := range cursors {
		var change *Change
		var cursor int
		switch in.Text {
		case ">":
			change, cursor = h.closeOnGreater(st, head)
		case "/":
			change, cursor = h.closeOnSlash(st, head)
		}
		if change == nil {
			// Cursors that close nothing still receive the keystroke.
			change, cursor = &Change{From: head, Insert: in.Text}, head+len(in.Text)
		} else {
			closed++
		}
		tx.Changes = append(tx.Changes, *change)
		tx.Cursors = append(tx.Cursors, cursor+shift)
		shift += len(change.Insert)
	}

	if closed == 0 {
		return nil, false
	}
	zerolog.Ctx(ctx).Debug().
		Str("trigger", in.Text).
		Int("closed", closed).
		Int("cursors", len(cursors)).
		Msg("auto-closing tags")
	return tx, true
}

// openTagAt finds the open tag that head is typing into.
func openTagAt(tree *cst.Tree, head int) cst.Node {
	around := tree.ResolveInner(head, -1)
	switch around.Kind() {
	case cst.KindTagName, cst.KindStartTag, cst.KindAttribute:
		around = around.Parent()
	}
	if around.Kind() != cst.KindOpenTag {
		return cst.Node{}
	}
	return around
}

func (h *Handler) closable(doc cst.Text, el cst.Node, head int) (string, bool) {
	if !el.Valid() || el.LastChild().Kind() == cst.KindCloseTag {
		return "", false
	}
	name := tagtree.ElementName(doc, el, head)
	if name == "" || h.selfClosing[name] {
		return "", false
	}
	return name, true
}

// sigil is the directive or macro marker of an element's open tag.
func sigil(doc cst.Text, el cst.Node) string {
	start := el.FirstChild().Child(cst.KindStartTag)
	if !start.Valid() || start.To()-start.From() < 2 {
		return ""
	}
	return doc.Slice(start.From()+1, start.To())
}

func followedByGreater(doc cst.Text, head int) bool {
	return doc.Slice(head, head+1) == ">"
}

func (h *Handler) closeOnGreater(st State, head int) (*Change, int) {
	tag := openTagAt(st.Tree, head)
	if !tag.Valid() {
		return nil, head
	}
	el := tag.Parent()
	name, ok := h.closable(st.Doc, el, head)
	if !ok {
		return nil, head
	}
	closeTag := "</" + sigil(st.Doc, el) + name + ">"
	if followedByGreater(st.Doc, head) {
		return &Change{From: head + 1, Insert: closeTag}, head + 1
	}
	return &Change{From: head, Insert: ">" + closeTag}, head + 1
}

func (h *Handler) closeOnSlash(st State, head int) (*Change, int) {
	tag := openTagAt(st.Tree, head)
	if !tag.Valid() {
		return nil, head
	}
	// The slash must be the first thing typed after the opener.
	start := tag.FirstChild()
	if start.Kind() != cst.KindStartTag || start.To() != head || tag.Child(cst.KindTagName).Valid() {
		return nil, head
	}
	empty := tag.Parent()
	base := empty.Parent()
	if base.Kind() != cst.KindElement {
		return nil, head
	}
	name, ok := h.closable(st.Doc, base, head)
	if !ok {
		return nil, head
	}
	insert := "/" + name
	if start.To()-start.From() == 1 {
		insert = "/" + sigil(st.Doc, base) + name
	}
	if followedByGreater(st.Doc, head) {
		return &Change{From: head, Insert: insert}, head + len(insert) + 1
	}
	insert += ">"
	return &Change{From: head, Insert: insert}, head + len(insert)
}
