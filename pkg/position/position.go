// Package position converts between byte offsets into a document and the
// line/column forms editors and command lines use.
package position

import (
	"fmt"
	"sort"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/apparentlymart/go-textseg/v13/textseg"
	"gitlab.com/tozd/go/errors"
)

// Place is a zero-based line and a zero-based column counted in UTF-16 code
// units, as the language server protocol counts them.
type Place struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

type Range struct {
	Start Place `json:"start"`
	End   Place `json:"end"`
}

func (p Place) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Character)
}

// Index answers offset questions about one version of a document.
type Index struct {
	text  string
	lines []int // byte offset where each line starts
}

func NewIndex(text string) *Index {
	lines := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, i+1)
		}
	}
	return &Index{text: text, lines: lines}
}

func (x *Index) Text() string { return x.text }

// LineCount is the number of lines, counting a trailing empty line.
func (x *Index) LineCount() int { return len(x.lines) }

func (x *Index) lineBounds(line int) (int, int) {
	start := x.lines[line]
	end := len(x.text)
	if line+1 < len(x.lines) {
		end = x.lines[line+1] - 1
	}
	return start, end
}

// Offset converts p to a byte offset. Lines past the end clamp to the end of
// the text and columns past the end of a line clamp to the line end.
func (x *Index) Offset(p Place) int {
	if p.Line < 0 {
		return 0
	}
	if p.Line >= len(x.lines) {
		return len(x.text)
	}
	start, end := x.lineBounds(p.Line)
	units := 0
	for i := start; i < end; {
		if units >= p.Character {
			return i
		}
		r, size := utf8.DecodeRuneInString(x.text[i:end])
		units += utf16Len(r)
		i += size
	}
	return end
}

// Place converts a byte offset to a line and UTF-16 column.
func (x *Index) Place(offset int) Place {
	offset = max(0, min(offset, len(x.text)))
	line := sort.Search(len(x.lines), func(i int) bool { return x.lines[i] > offset }) - 1
	units := 0
	for i := x.lines[line]; i < offset; {
		r, size := utf8.DecodeRuneInString(x.text[i:offset])
		units += utf16Len(r)
		i += size
	}
	return Place{Line: line, Character: units}
}

func (x *Index) Range(from, to int) Range {
	return Range{Start: x.Place(from), End: x.Place(to)}
}

func utf16Len(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}

// OffsetFromColumn converts a one-based line and a one-based column counted
// in grapheme clusters, the way a person reads a column off the screen, to a
// byte offset. A column one past the last cluster addresses the line end.
func (x *Index) OffsetFromColumn(line, col int) (int, error) {
	if line < 1 || line > len(x.lines) {
		return 0, errors.Errorf("line %d out of range [1, %d]", line, len(x.lines))
	}
	if col < 1 {
		return 0, errors.Errorf("column %d out of range", col)
	}
	start, end := x.lineBounds(line - 1)
	data := []byte(x.text[start:end])
	offset, seen := 0, 1
	for seen < col {
		if offset >= len(data) {
			return 0, errors.Errorf("column %d past the end of line %d", col, line)
		}
		advance, _, err := textseg.ScanGraphemeClusters(data[offset:], true)
		if err != nil {
			return 0, errors.Errorf("segmenting line %d: %w", line, err)
		}
		if advance == 0 {
			break
		}
		offset += advance
		seen++
	}
	return start + offset, nil
}

// Column is the inverse of OffsetFromColumn.
func (x *Index) Column(offset int) (line, col int, err error) {
	offset = max(0, min(offset, len(x.text)))
	p := x.Place(offset)
	start := x.lines[p.Line]
	clusters, err := textseg.TokenCount([]byte(x.text[start:offset]), textseg.ScanGraphemeClusters)
	if err != nil {
		return 0, 0, errors.Errorf("segmenting line %d: %w", p.Line+1, err)
	}
	return p.Line + 1, clusters + 1, nil
}
