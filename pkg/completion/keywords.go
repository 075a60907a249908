package completion

import (
	"context"
	"regexp"
)

// Directives are the FreeMarker directive names offered as keywords.
var Directives = []string{
	"assign", "attempt", "autoesc", "break", "case", "compress", "default", "else",
	"elseif", "escape", "fallback", "function", "flush", "ftl", "global", "if", "import",
	"include", "items", "list", "local", "lt", "macro", "nested", "noautoesc", "noescape",
	"noparse", "nt", "outputformat", "recover", "recurse", "return", "rt", "sep", "setting",
	"stop", "switch", "t", "visit",
}

// SpecialVariables are the built-in variables reachable as .name.
var SpecialVariables = []string{
	"auto_esc", "caller_template_name", "current_template_name", "data_model", "error",
	"get_optional_template", "globals", "lang", "locale", "locale_object", "locals", "main",
	"main_template_name", "namespace", "node", "now", "output_encoding", "output_format",
	"template_name", "time_zone", "url_escaping_charset", "vars", "version",
}

var (
	wordBefore      = regexp.MustCompile(`\w*$`)
	keywordValidFor = regexp.MustCompile(`^\w*$`)
)

// wordWindow bounds how far back the word before the cursor is searched.
const wordWindow = 64

// Keywords completes the word before the cursor from the directive and
// special variable lists. An empty word only completes on explicit requests.
func Keywords(_ context.Context, c Context) *Result {
	if c.Doc == nil {
		return nil
	}
	start := max(0, c.Pos-wordWindow)
	word := wordBefore.FindString(c.Doc.Slice(start, c.Pos))
	if word == "" && !c.Explicit {
		return nil
	}
	opts := make([]Option, 0, len(Directives)+len(SpecialVariables))
	for _, kw := range Directives {
		opts = append(opts, Option{Label: kw, Type: "keyword"})
	}
	for _, kw := range SpecialVariables {
		opts = append(opts, Option{Label: kw, Type: "keyword"})
	}
	return &Result{From: c.Pos - len(word), To: c.Pos, Options: opts, ValidFor: keywordValidFor}
}

// First asks each source in turn and returns the first answer.
func First(sources ...SourceFunc) SourceFunc {
	return func(ctx context.Context, c Context) *Result {
		for _, src := range sources {
			if r := src(ctx, c); r != nil {
				return r
			}
		}
		return nil
	}
}
