package ftl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanCommentBody(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		accepted bool
		body     string
		stop     int
	}{
		{name: "closer_only", input: "-->", accepted: false, stop: 2},
		{name: "one_char_body", input: "a-->", accepted: false, stop: 3},
		{name: "two_char_body", input: "ab-->", accepted: true, body: "ab", stop: 4},
		{name: "three_char_body", input: "abc-->", accepted: true, body: "abc", stop: 5},
		{name: "trailing_text_ignored", input: "abc-->rest", accepted: true, body: "abc", stop: 5},
		{name: "single_dash_resets", input: "a->b-->", accepted: true, body: "a->b", stop: 6},
		{name: "inner_dashes", input: "a--b-->", accepted: true, body: "a--b", stop: 6},
		{name: "unterminated", input: "abc", accepted: true, body: "abc", stop: 3},
		{name: "empty", input: "", accepted: false, stop: 0},
		{name: "multibyte", input: "héllo-->", accepted: true, body: "héllo", stop: 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := newStringInput(tt.input, 0)
			ScanCommentBody(in)
			assert.Equal(t, tt.accepted, in.accepted, "accepted")
			assert.Equal(t, tt.stop, in.pos, "stop position")
			if tt.accepted {
				assert.Equal(t, TokenCommentContent, in.token)
				assert.Equal(t, tt.body, tt.input[:in.end])
			}
		})
	}
}

func TestScanCommentBodyFromOffset(t *testing.T) {
	src := "<#--abc-->"
	in := newStringInput(src, len(CommentOpen))
	ScanCommentBody(in)
	assert.True(t, in.accepted)
	assert.Equal(t, "abc", src[len(CommentOpen):in.end])
}
