// Package ftl parses FreeMarker-flavoured markup into a cst.Tree.
//
// The parser is error tolerant: any input produces a tree, with zero-width
// error nodes where a closer is missing. It recognises tags (<name, <#name,
// <@name), close tags, block comments, interpolations and text; expressions
// inside tags are kept as opaque Attribute nodes.
package ftl

import (
	"strings"
	"unicode/utf8"

	"github.com/walteh/ftlsense/pkg/cst"
)

// Node names produced by the parser.
const (
	NameDocument           = "Document"
	NameElement            = "Element"
	NameOpenTag            = "OpenTag"
	NameCloseTag           = "CloseTag"
	NameMismatchedCloseTag = "MismatchedCloseTag"
	NameIncompleteCloseTag = "IncompleteCloseTag"
	NameStartTag           = "StartTag"
	NameStartCloseTag      = "StartCloseTag"
	NameTagName            = "TagName"
	NameEndTag             = "EndTag"
	NameSelfClosingEndTag  = "SelfClosingEndTag"
	NameAttribute          = "Attribute"
	NameText               = "Text"
	NameInterpolation      = "Interpolation"
	NameComment            = "Comment"
	NameCommentContent     = "CommentContent"
	NameError              = "⚠"
)

// VoidElements never take children or a close tag.
var VoidElements = []string{
	"area", "base", "br", "col", "command", "embed", "frame", "hr", "img", "input",
	"keygen", "link", "meta", "param", "source", "track", "wbr", "menuitem",
}

// BodilessDirectives are directives written without a matching close tag.
var BodilessDirectives = []string{
	"assign", "global", "local", "include", "import", "else", "elseif", "break",
	"continue", "return", "setting", "stop", "flush", "ftl", "nested", "t", "lt",
	"rt", "nt", "recover", "sep", "case", "on", "default", "visit", "recurse", "fallback",
}

type Parser struct {
	voids       map[string]bool
	commentBody TokenProducer
}

type Option func(*Parser)

// WithVoidNames replaces the set of names that never take children.
func WithVoidNames(names ...string) Option {
	return func(p *Parser) {
		p.voids = make(map[string]bool, len(names))
		for _, n := range names {
			p.voids[n] = true
		}
	}
}

// WithCommentTokenizer replaces the producer used for block comment bodies.
func WithCommentTokenizer(tp TokenProducer) Option {
	return func(p *Parser) {
		p.commentBody = tp
	}
}

func NewParser(opts ...Option) *Parser {
	p := &Parser{commentBody: ScanCommentBody}
	WithVoidNames(append(append([]string{}, VoidElements...), BodilessDirectives...)...)(p)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var defaultParser = NewParser()

// Parse parses text with the default parser.
func Parse(text string) *cst.Tree {
	return defaultParser.Parse(text)
}

func (p *Parser) Parse(text string) *cst.Tree {
	s := &state{
		p:   p,
		src: text,
		b:   cst.NewBuilder(NameDocument, len(text)),
	}
	s.run()
	return s.b.Finish()
}

type state struct {
	p    *Parser
	src  string
	pos  int
	b    *cst.Builder
	open []string
}

func (s *state) run() {
	for s.pos < len(s.src) {
		switch {
		case s.hasPrefix(CommentOpen):
			s.comment()
		case s.startsCloseTag():
			s.closeTag()
		case s.src[s.pos] == '<' && s.startsTag(s.pos+1):
			s.openTag()
		case s.hasPrefix("${"):
			s.interpolation()
		default:
			s.text()
		}
	}
}

// startsCloseTag matches both close forms, </name and <#/name (or <@/name).
func (s *state) startsCloseTag() bool {
	return s.hasPrefix("</") || s.hasPrefix("<#/") || s.hasPrefix("<@/")
}

func (s *state) hasPrefix(prefix string) bool {
	return strings.HasPrefix(s.src[s.pos:], prefix)
}

func (s *state) hasPrefixAt(i int, prefix string) bool {
	return i <= len(s.src) && strings.HasPrefix(s.src[i:], prefix)
}

// startsTag reports whether a '<' followed by the byte at i opens a tag.
func (s *state) startsTag(i int) bool {
	if i >= len(s.src) {
		return true
	}
	switch c := s.src[i]; {
	case c == ' ' || c == '\t' || c == '\r' || c == '=' || c == '<':
		return false
	case c >= '0' && c <= '9':
		return false
	}
	return true
}

func (s *state) text() {
	start := s.pos
	s.pos++
	for s.pos < len(s.src) {
		if s.src[s.pos] == '<' && (s.hasPrefix(CommentOpen) || s.startsCloseTag() || s.startsTag(s.pos+1)) {
			break
		}
		if s.hasPrefix("${") {
			break
		}
		s.pos++
	}
	s.b.Leaf(NameText, start, s.pos)
}

func (s *state) interpolation() {
	start := s.pos
	s.pos += 2
	depth := 1
	for s.pos < len(s.src) && depth > 0 {
		switch c := s.src[s.pos]; c {
		case '{':
			depth++
		case '}':
			depth--
		case '"', '\'':
			s.skipString(c)
			continue
		}
		s.pos++
	}
	s.b.Leaf(NameInterpolation, start, s.pos)
}

func (s *state) comment() {
	start := s.pos
	bodyStart := start + len(CommentOpen)
	s.b.Open(NameComment, start)
	in := newStringInput(s.src, bodyStart)
	s.p.commentBody(in)
	if in.accepted && in.token == TokenCommentContent && in.end > bodyStart {
		s.b.Leaf(NameCommentContent, bodyStart, in.end)
	}
	if in.pos < len(s.src) {
		s.pos = in.pos + 1
	} else {
		s.pos = len(s.src)
		s.b.Leaf(NameError, s.pos, s.pos)
	}
	s.b.Close(s.pos)
}

// sigil consumes an optional directive (#) or macro (@) marker.
func (s *state) sigil() {
	if s.pos < len(s.src) && (s.src[s.pos] == '#' || s.src[s.pos] == '@') {
		s.pos++
	}
}

func isNameStart(r rune) bool {
	return r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= 0x80
}

func isNameChar(r rune) bool {
	return isNameStart(r) || r >= '0' && r <= '9' || r == '-' || r == '.' || r == ':'
}

func (s *state) scanName() string {
	start := s.pos
	for s.pos < len(s.src) {
		r, size := utf8.DecodeRuneInString(s.src[s.pos:])
		if s.pos == start && !isNameStart(r) || !isNameChar(r) {
			break
		}
		s.pos += size
	}
	return s.src[start:s.pos]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func (s *state) skipSpace() {
	for s.pos < len(s.src) && isSpace(s.src[s.pos]) {
		s.pos++
	}
}

func (s *state) skipString(quote byte) {
	s.pos++
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if c == '\\' {
			s.pos += 2
			continue
		}
		s.pos++
		if c == quote {
			return
		}
	}
	s.pos = min(s.pos, len(s.src))
}

func (s *state) openTag() {
	start := s.pos
	s.b.Open(NameElement, start)
	s.b.Open(NameOpenTag, start)
	s.pos++
	s.sigil()
	s.b.Leaf(NameStartTag, start, s.pos)
	nameStart := s.pos
	name := s.scanName()
	if name != "" {
		s.b.Leaf(NameTagName, nameStart, s.pos)
	}
	selfClosing := s.tagBody()
	s.b.CloseAtEnd()
	if name == "" || selfClosing || s.p.voids[name] {
		s.b.CloseAtEnd()
		return
	}
	s.open = append(s.open, name)
}

// tagBody reads attributes up to the tag closer and reports whether the tag
// closed itself with "/>".
func (s *state) tagBody() bool {
	for {
		s.skipSpace()
		if s.pos >= len(s.src) {
			s.b.Leaf(NameError, s.pos, s.pos)
			return false
		}
		switch {
		case s.src[s.pos] == '>':
			s.b.Leaf(NameEndTag, s.pos, s.pos+1)
			s.pos++
			return false
		case s.hasPrefix("#>"):
			s.b.Leaf(NameEndTag, s.pos, s.pos+2)
			s.pos += 2
			return false
		case s.hasPrefix("/>"):
			s.b.Leaf(NameSelfClosingEndTag, s.pos, s.pos+2)
			s.pos += 2
			return true
		case s.src[s.pos] == '<':
			s.b.Leaf(NameError, s.pos, s.pos)
			return false
		}
		s.attribute()
	}
}

// attribute reads one attribute or expression word. Parentheses group, so a
// '>' inside them does not end the tag.
func (s *state) attribute() {
	start := s.pos
	depth := 0
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if depth == 0 && s.pos > start && (isSpace(c) || c == '>' || c == '<' || s.hasPrefix("/>") || s.hasPrefix("#>")) {
			break
		}
		switch c {
		case '"', '\'':
			s.skipString(c)
			continue
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		}
		s.pos++
	}
	s.b.Leaf(NameAttribute, start, s.pos)
}

func (s *state) closeTag() {
	start := s.pos
	if s.hasPrefix("</") {
		s.pos += 2
		s.sigil()
	} else {
		s.pos += 3
	}
	markEnd := s.pos
	nameStart := s.pos
	name := s.scanName()
	nameEnd := s.pos

	closerAt := nameEnd
	for closerAt < len(s.src) && isSpace(s.src[closerAt]) {
		closerAt++
	}
	closerLen := 0
	if closerAt < len(s.src) && s.src[closerAt] == '>' {
		closerLen = 1
	} else if s.hasPrefixAt(closerAt, "#>") {
		closerLen = 2
	}

	if name == "" || closerLen == 0 {
		s.b.Open(NameIncompleteCloseTag, start)
		s.b.Leaf(NameStartCloseTag, start, markEnd)
		if name != "" {
			s.b.Leaf(NameTagName, nameStart, nameEnd)
		}
		s.b.CloseAtEnd()
		return
	}

	match := -1
	for i := len(s.open) - 1; i >= 0; i-- {
		if s.open[i] == name {
			match = i
			break
		}
	}

	kind := NameMismatchedCloseTag
	if match >= 0 {
		kind = NameCloseTag
		for len(s.open)-1 > match {
			s.b.CloseAtEnd()
			s.open = s.open[:len(s.open)-1]
		}
	}

	s.b.Open(kind, start)
	s.b.Leaf(NameStartCloseTag, start, markEnd)
	s.b.Leaf(NameTagName, nameStart, nameEnd)
	s.b.Leaf(NameEndTag, closerAt, closerAt+closerLen)
	s.b.CloseAtEnd()
	s.pos = closerAt + closerLen

	if match >= 0 {
		s.b.CloseAtEnd()
		s.open = s.open[:len(s.open)-1]
	}
}
