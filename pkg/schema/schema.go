// Package schema holds the tag registry that drives completion: known tag
// names, their attributes, the child tags they accept, and attributes valid on
// every tag.
package schema

import (
	"slices"
	"sort"
)

// TagSpec describes one tag.
type TagSpec struct {
	// Attrs maps attribute names to suggested values. A nil value list means
	// the attribute is free-form.
	Attrs map[string][]string `yaml:"attrs,omitempty" json:"attrs,omitempty"`
	// GlobalAttrs set to false turns off global attributes for this tag.
	GlobalAttrs *bool `yaml:"globalAttrs,omitempty" json:"globalAttrs,omitempty"`
	// Children lists the tags allowed inside this one. Nil allows any tag.
	Children []string `yaml:"children,omitempty" json:"children,omitempty"`
}

// UsesGlobalAttrs reports whether global attributes apply to the tag.
func (t TagSpec) UsesGlobalAttrs() bool {
	return t.GlobalAttrs == nil || *t.GlobalAttrs
}

// Schema is immutable once built; share it freely.
type Schema struct {
	tags            map[string]TagSpec
	globalAttrs     map[string][]string
	allTags         []string
	globalAttrNames []string
}

type tagEntry struct {
	name string
	spec TagSpec
}

type attrEntry struct {
	name   string
	values []string
}

var boolValues = []string{"true", "false"}

var defaultGlobalAttrs = []attrEntry{
	{name: "accesskey"},
	{name: "class"},
	{name: "contenteditable", values: boolValues},
}

var defaultTags = []tagEntry{
	{name: "a"},
	{name: "assign"},
	{name: "attempt"},
	{name: "autoesc"},
	{name: "break"},
	{name: "case"},
	{name: "compress"},
	{name: "default"},
	{name: "else"},
	{name: "elseif"},
	{name: "escape"},
	{name: "fallback"},
	{name: "function"},
	{name: "flush"},
	{name: "ftl"},
	{name: "global"},
	{name: "if"},
	{name: "import"},
	{name: "include"},
	{name: "items"},
	{name: "list"},
	{name: "local"},
	{name: "lt"},
	{name: "macro"},
	{name: "nested"},
	{name: "noautoesc"},
	{name: "noescape"},
	{name: "noparse"},
	{name: "nt"},
	{name: "outputformat"},
	{name: "recover"},
	{name: "recurse"},
	{name: "return"},
	{name: "rt"},
	{name: "sep"},
	{name: "setting"},
	{name: "stop"},
	{name: "switch", spec: TagSpec{Children: []string{"case", "on", "default", "break"}}},
	{name: "t"},
	{name: "visit"},
}

// htmlTags is the element registry used for plain HTML documents.
var htmlTags = []tagEntry{
	{name: "a"},
	{name: "article"},
	{name: "aside"},
	{name: "b"},
	{name: "blockquote"},
	{name: "body"},
	{name: "br"},
	{name: "button"},
	{name: "code"},
	{name: "dd"},
	{name: "div"},
	{name: "dl", spec: TagSpec{Children: []string{"dt", "dd"}}},
	{name: "dt"},
	{name: "em"},
	{name: "footer"},
	{name: "form"},
	{name: "h1"},
	{name: "h2"},
	{name: "h3"},
	{name: "head"},
	{name: "header"},
	{name: "hr"},
	{name: "html", spec: TagSpec{Children: []string{"head", "body"}}},
	{name: "i"},
	{name: "img"},
	{name: "input"},
	{name: "label"},
	{name: "li"},
	{name: "link"},
	{name: "main"},
	{name: "meta"},
	{name: "nav"},
	{name: "ol", spec: TagSpec{Children: []string{"li"}}},
	{name: "option"},
	{name: "p"},
	{name: "pre"},
	{name: "script"},
	{name: "section"},
	{name: "select", spec: TagSpec{Children: []string{"option"}}},
	{name: "span"},
	{name: "strong"},
	{name: "style"},
	{name: "table", spec: TagSpec{Children: []string{"caption", "thead", "tbody", "tfoot", "tr"}}},
	{name: "tbody", spec: TagSpec{Children: []string{"tr"}}},
	{name: "td"},
	{name: "textarea"},
	{name: "th"},
	{name: "thead", spec: TagSpec{Children: []string{"tr"}}},
	{name: "title"},
	{name: "tr", spec: TagSpec{Children: []string{"td", "th"}}},
	{name: "ul", spec: TagSpec{Children: []string{"li"}}},
}

var (
	defaultSchema = New(nil, nil)
	htmlSchema    = NewHTML(nil, nil)
)

// Default returns the schema built from the built-in tags and attributes only.
func Default() *Schema {
	return defaultSchema
}

// HTML returns the built-in HTML element schema.
func HTML() *Schema {
	return htmlSchema
}

// New merges extraTags and extraAttrs over the built-in defaults; caller
// entries replace defaults with the same name. Built-in names keep their
// order, new names follow in lexical order. Names are not validated.
func New(extraTags map[string]TagSpec, extraAttrs map[string][]string) *Schema {
	return build(defaultTags, extraTags, extraAttrs)
}

// NewHTML is New over the plain HTML element registry instead of the template
// directives.
func NewHTML(extraTags map[string]TagSpec, extraAttrs map[string][]string) *Schema {
	return build(htmlTags, extraTags, extraAttrs)
}

func build(base []tagEntry, extraTags map[string]TagSpec, extraAttrs map[string][]string) *Schema {
	s := &Schema{
		tags:        make(map[string]TagSpec, len(base)+len(extraTags)),
		globalAttrs: make(map[string][]string, len(defaultGlobalAttrs)+len(extraAttrs)),
	}

	for _, t := range base {
		s.tags[t.name] = t.spec
		s.allTags = append(s.allTags, t.name)
	}
	for _, name := range sortedKeys(extraTags) {
		if _, ok := s.tags[name]; !ok {
			s.allTags = append(s.allTags, name)
		}
		s.tags[name] = extraTags[name]
	}

	for _, a := range defaultGlobalAttrs {
		s.globalAttrs[a.name] = a.values
		s.globalAttrNames = append(s.globalAttrNames, a.name)
	}
	for _, name := range sortedKeys(extraAttrs) {
		if _, ok := s.globalAttrs[name]; !ok {
			s.globalAttrNames = append(s.globalAttrNames, name)
		}
		s.globalAttrs[name] = extraAttrs[name]
	}

	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Tag looks up a tag by name.
func (s *Schema) Tag(name string) (TagSpec, bool) {
	t, ok := s.tags[name]
	return t, ok
}

// AllTags lists every known tag name in registry order.
func (s *Schema) AllTags() []string {
	return slices.Clone(s.allTags)
}

// GlobalAttrNames lists the attributes valid on every tag, in registry order.
func (s *Schema) GlobalAttrNames() []string {
	return slices.Clone(s.globalAttrNames)
}

// GlobalAttr returns the suggested values of a global attribute.
func (s *Schema) GlobalAttr(name string) ([]string, bool) {
	v, ok := s.globalAttrs[name]
	return slices.Clone(v), ok
}

// AttrNames lists the attributes completable on a tag: its own attributes in
// lexical order, followed by the global ones when the tag uses them.
func (s *Schema) AttrNames(tag string) []string {
	spec := s.tags[tag]
	names := sortedKeys(spec.Attrs)
	if spec.UsesGlobalAttrs() {
		names = append(names, s.globalAttrNames...)
	}
	return names
}

// Children returns the tags allowed inside tag and whether the tag restricts
// them at all.
func (s *Schema) Children(tag string) ([]string, bool) {
	spec, ok := s.tags[tag]
	if !ok || spec.Children == nil {
		return nil, false
	}
	return slices.Clone(spec.Children), true
}
