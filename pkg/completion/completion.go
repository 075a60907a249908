// Package completion computes tag completions for a position in a parsed
// document. It is a pure function of the tree, the document text, the cursor
// and a schema; the editor host decides when to ask.
package completion

import (
	"context"
	"regexp"

	"github.com/rs/zerolog"

	"github.com/walteh/ftlsense/pkg/cst"
	"github.com/walteh/ftlsense/pkg/schema"
	"github.com/walteh/ftlsense/pkg/tagtree"
)

// Option is a single completion candidate. Apply, when set, is the text
// inserted in place of Label.
type Option struct {
	Label string `json:"label"`
	Apply string `json:"apply,omitempty"`
	Type  string `json:"type"`
	Boost int    `json:"boost,omitempty"`
}

// Insert is the text the option writes into the document.
func (o Option) Insert() string {
	if o.Apply != "" {
		return o.Apply
	}
	return o.Label
}

// Result replaces the range [From, To) with one of Options. While the text
// typed since From keeps matching ValidFor the host may filter Options
// instead of asking again.
type Result struct {
	From     int            `json:"from"`
	To       int            `json:"to"`
	Options  []Option       `json:"options"`
	ValidFor *regexp.Regexp `json:"-"`
}

// Context is the input of a completion request.
type Context struct {
	Tree *cst.Tree
	Doc  cst.Text
	Pos  int
	// Explicit is set when the user asked for completion rather than it
	// being triggered by typing.
	Explicit bool
	// Syntax selects the markers written into new and closing tags. The zero
	// value means FreeMarker.
	Syntax Syntax
}

// Syntax is the pair of markers a document language writes tags with.
type Syntax struct {
	// Open starts a new tag, as in <#list.
	Open string
	// Close ends a synthesized close tag, as in </#list#>.
	Close string
}

var (
	FreeMarker = Syntax{Open: "<#", Close: "#>"}
	HTML       = Syntax{Open: "<", Close: ">"}
)

func (c Context) syntax() Syntax {
	if c.Syntax == (Syntax{}) {
		return FreeMarker
	}
	return c.Syntax
}

// SourceFunc answers a completion request; nil means nothing applies.
type SourceFunc func(ctx context.Context, c Context) *Result

const nameChars = `[:\-\.\w\x{00b7}-\x{ffff}]*`

var (
	tagNameValidFor  = regexp.MustCompile(`^\/?` + nameChars + `$`)
	startTagValidFor = regexp.MustCompile(`^<[#@]?\/?` + nameChars + `$`)
	closerAhead      = regexp.MustCompile(`\s*>`)
)

// closerLookahead is how far past the replacement range a closer is looked for.
const closerLookahead = 5

// Source completes against the built-in schema.
func Source(ctx context.Context, c Context) *Result {
	return Complete(ctx, schema.Default(), c)
}

// SourceWith builds a source for the built-in schema extended by cfg. The
// schema is built once, here.
func SourceWith(cfg schema.Config) SourceFunc {
	s := schema.FromConfig(cfg)
	return func(ctx context.Context, c Context) *Result {
		return Complete(ctx, s, c)
	}
}

// HTMLSourceWith is SourceWith for plain HTML documents: the HTML element
// schema extended by cfg, with tags written in HTML syntax.
func HTMLSourceWith(cfg schema.Config) SourceFunc {
	s := schema.HTMLFromConfig(cfg)
	return func(ctx context.Context, c Context) *Result {
		c.Syntax = HTML
		return Complete(ctx, s, c)
	}
}

// Complete classifies the position under c.Pos and produces the completions
// for it, or nil when the position is not one where tags are completed.
func Complete(ctx context.Context, s *schema.Schema, c Context) *Result {
	if c.Tree == nil || c.Doc == nil {
		return nil
	}
	pos := c.Pos
	tree := c.Tree.ResolveInner(pos, -1)
	around := tree.Resolve(pos, 0)

	// A node that recovered from an error may end before pos even though the
	// markup it started is still being typed; step into it.
	for scan := pos; around == tree; {
		before := tree.ChildBefore(scan)
		if !before.Valid() {
			break
		}
		last := before.LastChild()
		if !last.Valid() || !last.IsError() || last.From() >= last.To() {
			break
		}
		around, tree = before, before
		scan = last.From()
	}

	syn := c.syntax()
	log := zerolog.Ctx(ctx).Trace().Int("pos", pos).Stringer("kind", tree.Kind())

	switch kind := tree.Kind(); {
	case kind == cst.KindTagName:
		if tree.Parent().Kind().IsCloseTag() {
			log.Msg("completing close tag name")
			return completeCloseTag(syn, c.Doc, tree, tree.From(), pos)
		}
		log.Msg("completing tag name")
		return completeTag(syn, s, c.Doc, tree, tree.From(), pos)
	case kind == cst.KindStartTag:
		log.Msg("completing after tag opener")
		return completeTag(syn, s, c.Doc, tree, pos, pos)
	case kind == cst.KindStartCloseTag || kind == cst.KindIncompleteCloseTag:
		log.Msg("completing after close opener")
		return completeCloseTag(syn, c.Doc, tree, pos, pos)
	case c.Explicit && isFreeText(around.Kind()):
		log.Msg("completing new tag")
		return completeStartTag(syn, s, c.Doc, tree, pos)
	}
	return nil
}

func isFreeText(k cst.Kind) bool {
	return k == cst.KindElement || k == cst.KindText || k == cst.KindDocument
}

// closerFor is the text appended to a close tag completion so that it ends
// the tag, unless the document already has a closer right after to.
func closerFor(syn Syntax, doc cst.Text, to int) string {
	if closerAhead.MatchString(doc.Slice(to, to+closerLookahead)) {
		return ""
	}
	return syn.Close
}

func closeOptions(syn Syntax, doc cst.Text, node cst.Node, to int, prefix string) []Option {
	end := closerFor(syn, doc, to)
	open := tagtree.OpenTags(doc, node)
	opts := make([]Option, 0, len(open))
	for i, tag := range open {
		opts = append(opts, Option{Label: prefix + tag, Apply: prefix + tag + end, Type: "type", Boost: 99 - i})
	}
	return opts
}

func completeTag(syn Syntax, s *schema.Schema, doc cst.Text, node cst.Node, from, to int) *Result {
	parent := tagtree.FindParentElement(node, true)
	children := tagtree.AllowedChildren(doc, parent, s)
	opts := make([]Option, 0, len(children))
	for _, name := range children {
		opts = append(opts, Option{Label: name, Type: "type"})
	}
	opts = append(opts, closeOptions(syn, doc, node, to, "/")...)
	return &Result{From: from, To: to, Options: opts, ValidFor: tagNameValidFor}
}

// completeCloseTag runs with the range already behind the "</" opener, so the
// names are offered bare.
func completeCloseTag(syn Syntax, doc cst.Text, node cst.Node, from, to int) *Result {
	return &Result{From: from, To: to, Options: closeOptions(syn, doc, node, to, ""), ValidFor: tagNameValidFor}
}

func completeStartTag(syn Syntax, s *schema.Schema, doc cst.Text, node cst.Node, pos int) *Result {
	children := tagtree.AllowedChildren(doc, node, s)
	open := tagtree.OpenTags(doc, node)
	opts := make([]Option, 0, len(children)+len(open))
	for _, name := range children {
		opts = append(opts, Option{Label: syn.Open + name, Type: "type"})
	}
	for i, tag := range open {
		opts = append(opts, Option{Label: syn.Open + "/" + tag + syn.Close, Type: "type", Boost: 99 - i})
	}
	return &Result{From: pos, To: pos, Options: opts, ValidFor: startTagValidFor}
}
