// Package cst is the boundary between externally produced concrete syntax
// trees and the editing assistance in this module.
//
// Parsers describe their nodes with string names. Those names are translated
// into a closed Kind enumeration once, when the tree is built, so the rest of
// the module never compares raw strings. Names it does not interpret become
// KindUnknown.
package cst

import "strconv"

// Kind identifies the node types the editing engines interpret.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindDocument
	KindElement
	KindOpenTag
	KindCloseTag
	KindMismatchedCloseTag
	KindIncompleteCloseTag
	KindEndTag
	KindSelfClosingEndTag
	KindTagName
	KindStartTag
	KindStartCloseTag
	KindAttribute
	KindText
	KindInterpolation
	KindComment
	KindCommentContent
	KindError
)

var kindNames = [...]string{
	KindUnknown:            "Unknown",
	KindDocument:           "Document",
	KindElement:            "Element",
	KindOpenTag:            "OpenTag",
	KindCloseTag:           "CloseTag",
	KindMismatchedCloseTag: "MismatchedCloseTag",
	KindIncompleteCloseTag: "IncompleteCloseTag",
	KindEndTag:             "EndTag",
	KindSelfClosingEndTag:  "SelfClosingEndTag",
	KindTagName:            "TagName",
	KindStartTag:           "StartTag",
	KindStartCloseTag:      "StartCloseTag",
	KindAttribute:          "Attribute",
	KindText:               "Text",
	KindInterpolation:      "Interpolation",
	KindComment:            "Comment",
	KindCommentContent:     "CommentContent",
	KindError:              "⚠",
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames)+1)
	for k, name := range kindNames {
		if Kind(k) == KindUnknown {
			continue
		}
		m[name] = Kind(k)
	}
	m["Error"] = KindError
	return m
}()

// KindFromName translates an external node name. Unrecognised names map to
// KindUnknown.
func KindFromName(name string) Kind {
	if k, ok := kindsByName[name]; ok {
		return k
	}
	return KindUnknown
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// IsCloseTag reports whether k is any of the close tag containers.
func (k Kind) IsCloseTag() bool {
	return k == KindCloseTag || k == KindMismatchedCloseTag || k == KindIncompleteCloseTag
}
