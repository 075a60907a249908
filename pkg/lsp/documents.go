package lsp

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/walteh/ftlsense/pkg/cst"
	"github.com/walteh/ftlsense/pkg/cst/treesitter"
	"github.com/walteh/ftlsense/pkg/ftl"
	"github.com/walteh/ftlsense/pkg/lsp/protocol"
	"github.com/walteh/ftlsense/pkg/position"
)

// normalizeURI strips the file scheme so the same file opened through
// different spellings maps to one entry.
func normalizeURI(uri string) string {
	uri = strings.TrimPrefix(uri, "file://")
	uri = strings.TrimPrefix(uri, "file:")
	return uri
}

// Document is an open text document and its parse.
type Document struct {
	ID         uuid.UUID
	URI        string
	LanguageID string
	Version    int32
	Content    string
	Tree       *cst.Tree
	Index      *position.Index
}

// Text is the document content as the engines read it.
func (d *Document) Text() cst.Text {
	return cst.StringText(d.Content)
}

// NewDocument parses content. HTML documents go through tree-sitter, anything
// else through the template parser.
func NewDocument(ctx context.Context, uri protocol.DocumentURI, languageID string, version int32, content string) *Document {
	doc := &Document{
		ID:         uuid.New(),
		URI:        normalizeURI(string(uri)),
		LanguageID: languageID,
	}
	doc.update(ctx, version, content)
	return doc
}

// WithContent returns a copy of d holding content. The id is kept.
func (d *Document) WithContent(ctx context.Context, version int32, content string) *Document {
	next := &Document{ID: d.ID, URI: d.URI, LanguageID: d.LanguageID}
	next.update(ctx, version, content)
	return next
}

func (d *Document) update(ctx context.Context, version int32, content string) {
	d.Version = version
	d.Content = content
	d.Index = position.NewIndex(content)
	d.Tree = parse(ctx, d.LanguageID, content)
	zerolog.Ctx(ctx).Debug().
		Str("document_id", d.ID.String()).
		Str("uri", d.URI).
		Int32("version", version).
		Msg("parsed document")
}

// languageHTML documents are parsed with tree-sitter and completed with HTML
// elements.
const languageHTML = "html"

func parse(ctx context.Context, languageID, content string) *cst.Tree {
	if languageID == languageHTML {
		tree, err := treesitter.Parse(ctx, []byte(content))
		if err == nil {
			return tree
		}
		zerolog.Ctx(ctx).Warn().Err(err).Msg("tree-sitter parse failed, using template parser")
	}
	return ftl.Parse(content)
}

// DocumentManager holds the open documents keyed by normalized URI.
type DocumentManager struct {
	store *sync.Map // map[string]*Document
}

func NewDocumentManager() *DocumentManager {
	return &DocumentManager{
		store: &sync.Map{},
	}
}

func (m *DocumentManager) Get(uri protocol.DocumentURI) (*Document, bool) {
	content, ok := m.store.Load(normalizeURI(string(uri)))
	if !ok {
		return nil, false
	}
	doc, ok := content.(*Document)
	return doc, ok
}

func (m *DocumentManager) Store(doc *Document) {
	m.store.Store(doc.URI, doc)
}

func (m *DocumentManager) Delete(uri protocol.DocumentURI) {
	m.store.Delete(normalizeURI(string(uri)))
}

// Len counts the open documents.
func (m *DocumentManager) Len() int {
	n := 0
	m.store.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
