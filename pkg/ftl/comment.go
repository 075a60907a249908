package ftl

import "unicode/utf8"

// Token identifies what a TokenProducer recognised.
type Token int

const (
	TokenNone Token = iota
	TokenCommentContent
)

// Input is the character stream a TokenProducer reads. Positions are byte
// offsets into the document.
type Input interface {
	// Next returns the current character, or -1 at the end of input.
	Next() rune
	// Advance moves past the current character and returns the new one.
	Advance() rune
	// AcceptToken ends a token at the current position plus offset.
	AcceptToken(token Token, offset int)
}

// TokenProducer recognises one token at the start of an Input. It may accept
// nothing.
type TokenProducer func(in Input)

// Block comment delimiters of the language.
const (
	CommentOpen  = "<#--"
	CommentClose = "-->"
)

// ScanCommentBody recognises the body of a block comment whose opening
// delimiter was already consumed. The body ends before the "--" of the
// closing "-->", or at the end of input. Bodies that are too short to be
// separated from the delimiter produce no token.
func ScanCommentBody(in Input) {
	for dashes, i := 0, 0; ; i++ {
		c := in.Next()
		if c < 0 {
			if i > 0 {
				in.AcceptToken(TokenCommentContent, 0)
			}
			return
		}
		if c == '-' {
			dashes++
		} else if c == '>' && dashes >= 2 {
			if i > 3 {
				in.AcceptToken(TokenCommentContent, -2)
			}
			return
		} else {
			dashes = 0
		}
		in.Advance()
	}
}

// stringInput is the Input the parser hands to token producers.
type stringInput struct {
	src      string
	pos      int
	token    Token
	end      int
	accepted bool
}

func newStringInput(src string, pos int) *stringInput {
	return &stringInput{src: src, pos: pos}
}

func (in *stringInput) Next() rune {
	if in.pos >= len(in.src) {
		return -1
	}
	r, _ := utf8.DecodeRuneInString(in.src[in.pos:])
	return r
}

func (in *stringInput) Advance() rune {
	if in.pos < len(in.src) {
		_, size := utf8.DecodeRuneInString(in.src[in.pos:])
		in.pos += size
	}
	return in.Next()
}

func (in *stringInput) AcceptToken(token Token, offset int) {
	in.token = token
	in.end = in.pos + offset
	in.accepted = true
}
