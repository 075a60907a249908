package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsShared(t *testing.T) {
	assert.Same(t, Default(), Default())
	assert.Same(t, Default(), FromConfig(Config{}))
	assert.NotSame(t, Default(), New(nil, nil))
}

func TestDefaultContents(t *testing.T) {
	s := Default()
	tags := s.AllTags()
	require.NotEmpty(t, tags)
	assert.Equal(t, "a", tags[0])
	assert.Contains(t, tags, "list")
	assert.Contains(t, tags, "switch")

	assert.Equal(t, []string{"accesskey", "class", "contenteditable"}, s.GlobalAttrNames())
	vals, ok := s.GlobalAttr("contenteditable")
	assert.True(t, ok)
	assert.Equal(t, []string{"true", "false"}, vals)
	vals, ok = s.GlobalAttr("class")
	assert.True(t, ok)
	assert.Nil(t, vals)

	children, restricted := s.Children("switch")
	assert.True(t, restricted)
	assert.Equal(t, []string{"case", "on", "default", "break"}, children)

	_, restricted = s.Children("list")
	assert.False(t, restricted)
	_, restricted = s.Children("nope")
	assert.False(t, restricted)
}

func TestHTMLSchema(t *testing.T) {
	assert.Same(t, HTML(), HTMLFromConfig(Config{}))

	tags := HTML().AllTags()
	assert.Contains(t, tags, "div")
	assert.NotContains(t, tags, "assign", "template directives are not HTML elements")
	children, restricted := HTML().Children("ul")
	assert.True(t, restricted)
	assert.Equal(t, []string{"li"}, children)

	s := HTMLFromConfig(Config{ExtraTags: map[string]TagSpec{"my-card": {Children: []string{"p"}}}})
	assert.Equal(t, "my-card", s.AllTags()[len(s.AllTags())-1])
	assert.Equal(t, []string{"accesskey", "class", "contenteditable"}, s.GlobalAttrNames())
}

func TestNewMergesOverDefaults(t *testing.T) {
	no := false
	s := New(
		map[string]TagSpec{
			"zeta":  {Children: []string{"a"}},
			"foo":   {Children: []string{"bar"}, GlobalAttrs: &no, Attrs: map[string][]string{"dir": {"ltr", "rtl"}, "id": nil}},
			"a":     {Children: []string{}},
			"1-bad": {},
		},
		map[string][]string{
			"lang":  {"en"},
			"class": {"x"},
		},
	)

	tags := s.AllTags()
	defaults := Default().AllTags()
	assert.Equal(t, defaults, tags[:len(defaults)], "defaults keep their order")
	assert.Equal(t, []string{"1-bad", "foo", "zeta"}, tags[len(defaults):], "new names follow in lexical order")

	children, restricted := s.Children("a")
	assert.True(t, restricted, "caller entry replaces the default")
	assert.Empty(t, children)

	children, restricted = s.Children("foo")
	assert.True(t, restricted)
	assert.Equal(t, []string{"bar"}, children)

	assert.Equal(t, []string{"accesskey", "class", "contenteditable", "lang"}, s.GlobalAttrNames())
	vals, _ := s.GlobalAttr("class")
	assert.Equal(t, []string{"x"}, vals)

	assert.Equal(t, []string{"dir", "id"}, s.AttrNames("foo"))
	assert.Equal(t, []string{"accesskey", "class", "contenteditable", "lang"}, s.AttrNames("zeta"))

	_, restricted = Default().Children("a")
	assert.False(t, restricted, "the default schema is untouched")
}

func TestAccessorsReturnCopies(t *testing.T) {
	s := Default()
	tags := s.AllTags()
	tags[0] = "changed"
	assert.Equal(t, "a", s.AllTags()[0])
}
