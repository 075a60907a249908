package cst

// Text is the document a tree was parsed from, addressed by byte offset.
type Text interface {
	Len() int
	Slice(from, to int) string
}

// StringText adapts a string to Text.
type StringText string

func (s StringText) Len() int { return len(s) }

// Slice returns s[from:to] with both bounds clamped into the text.
func (s StringText) Slice(from, to int) string {
	from = clamp(from, 0, len(s))
	to = clamp(to, from, len(s))
	return string(s[from:to])
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
