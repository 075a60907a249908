package lsp

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/ftlsense/pkg/autoclose"
	"github.com/walteh/ftlsense/pkg/completion"
	"github.com/walteh/ftlsense/pkg/cst"
	"github.com/walteh/ftlsense/pkg/lsp/protocol"
	"github.com/walteh/ftlsense/pkg/position"
	"github.com/walteh/ftlsense/pkg/tagtree"
)

func toPlace(p protocol.Position) position.Place {
	return position.Place{Line: int(p.Line), Character: int(p.Character)}
}

func toRange(r position.Range) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: uint32(r.Start.Line), Character: uint32(r.Start.Character)},
		End:   protocol.Position{Line: uint32(r.End.Line), Character: uint32(r.End.Character)},
	}
}

func (s *Server) DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
	item := params.TextDocument
	doc := NewDocument(ctx, item.URI, item.LanguageID, item.Version, item.Text)
	s.documents.Store(doc)
	zerolog.Ctx(ctx).Debug().Str("uri", doc.URI).Str("language", item.LanguageID).Msg("opened document")
	return nil
}

func (s *Server) DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error {
	doc, err := s.document(params.TextDocument.URI)
	if err != nil {
		return err
	}
	content := doc.Content
	index := doc.Index
	for _, change := range params.ContentChanges {
		if change.Range == nil {
			content = change.Text
		} else {
			from := index.Offset(toPlace(change.Range.Start))
			to := index.Offset(toPlace(change.Range.End))
			if to < from {
				return errors.Errorf("change range ends before it starts: %d < %d", to, from)
			}
			content = content[:from] + change.Text + content[to:]
		}
		index = position.NewIndex(content)
	}
	s.documents.Store(doc.WithContent(ctx, params.TextDocument.Version, content))
	return nil
}

func (s *Server) DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error {
	s.documents.Delete(params.TextDocument.URI)
	zerolog.Ctx(ctx).Debug().Str("uri", string(params.TextDocument.URI)).Msg("closed document")
	return nil
}

func (s *Server) Completion(ctx context.Context, params *protocol.CompletionParams) (*protocol.CompletionList, error) {
	doc, err := s.document(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}

	explicit := params.Context == nil || params.Context.TriggerKind == protocol.CompletionTriggerInvoked
	res := s.completionSource(doc.LanguageID)(ctx, completion.Context{
		Tree:     doc.Tree,
		Doc:      doc.Text(),
		Pos:      doc.Index.Offset(toPlace(params.Position)),
		Explicit: explicit,
	})

	var items []protocol.CompletionItem
	if res != nil {
		rng := toRange(doc.Index.Range(res.From, res.To))
		for i, opt := range res.Options {
			items = append(items, protocol.CompletionItem{
				Label:    opt.Label,
				Kind:     itemKind(opt.Type),
				SortText: sortText(opt, i),
				TextEdit: &protocol.TextEdit{Range: rng, NewText: opt.Insert()},
			})
		}
	}
	zerolog.Ctx(ctx).Debug().Int("items", len(items)).Bool("explicit", explicit).Msg("completion")
	return &protocol.CompletionList{Items: protocol.NonNilSlice(items)}, nil
}

func itemKind(t string) protocol.CompletionItemKind {
	switch t {
	case "keyword":
		return protocol.CompletionItemKeyword
	case "type":
		return protocol.CompletionItemClass
	}
	return protocol.CompletionItemText
}

// sortText ranks boosted options first, then keeps the engine's order.
func sortText(opt completion.Option, i int) string {
	return fmt.Sprintf("%03d%04d", 200-opt.Boost, i)
}

// OnTypeFormatting runs the auto-close engine after the client has already
// inserted the trigger character. The keystroke is taken back out to rebuild
// the state the engine expects, and the engine's result is returned as the
// edit from the current content to the closed one.
func (s *Server) OnTypeFormatting(ctx context.Context, params *protocol.DocumentOnTypeFormattingParams) ([]protocol.TextEdit, error) {
	doc, err := s.document(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	return protocol.NonNilSlice(s.closeEdits(ctx, doc, params)), nil
}

func (s *Server) closeEdits(ctx context.Context, doc *Document, params *protocol.DocumentOnTypeFormattingParams) []protocol.TextEdit {
	offset := doc.Index.Offset(toPlace(params.Position))
	head := offset - len(params.Ch)
	if head < 0 || doc.Content[head:offset] != params.Ch {
		zerolog.Ctx(ctx).Debug().Str("ch", params.Ch).Int("offset", offset).Msg("trigger character not found before position")
		return nil
	}

	before := doc.Content[:head] + doc.Content[offset:]
	st := autoclose.State{
		Doc:     cst.StringText(before),
		Tree:    parse(ctx, doc.LanguageID, before),
		Cursors: []int{head},
	}
	tx, ok := s.closer.Intercept(ctx, st, autoclose.Input{From: head, To: head, Text: params.Ch})
	if !ok {
		return nil
	}

	edit, changed := diffEdit(doc.Index, doc.Content, tx.Apply(before))
	if !changed {
		return nil
	}
	return []protocol.TextEdit{edit}
}

// diffEdit is the single edit turning old into next, found by trimming the
// common prefix and suffix on rune boundaries.
func diffEdit(index *position.Index, old, next string) (protocol.TextEdit, bool) {
	if old == next {
		return protocol.TextEdit{}, false
	}
	prefix := 0
	for prefix < len(old) && prefix < len(next) && old[prefix] == next[prefix] {
		prefix++
	}
	for prefix > 0 && prefix < len(old) && !utf8.RuneStart(old[prefix]) {
		prefix--
	}
	suffix := 0
	for suffix < len(old)-prefix && suffix < len(next)-prefix && old[len(old)-1-suffix] == next[len(next)-1-suffix] {
		suffix++
	}
	for suffix > 0 && !utf8.RuneStart(old[len(old)-suffix]) {
		suffix--
	}
	return protocol.TextEdit{
		Range:   toRange(index.Range(prefix, len(old)-suffix)),
		NewText: next[prefix : len(next)-suffix],
	}, true
}

func (s *Server) DocumentHighlight(ctx context.Context, params *protocol.DocumentHighlightParams) ([]protocol.DocumentHighlight, error) {
	doc, err := s.document(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	spans := tagtree.MatchingTags(doc.Tree, doc.Index.Offset(toPlace(params.Position)))
	out := make([]protocol.DocumentHighlight, 0, len(spans))
	for _, span := range spans {
		out = append(out, protocol.DocumentHighlight{
			Range: toRange(doc.Index.Range(span.From, span.To)),
			Kind:  protocol.HighlightText,
		})
	}
	return out, nil
}

func (s *Server) FoldingRange(ctx context.Context, params *protocol.FoldingRangeParams) ([]protocol.FoldingRange, error) {
	doc, err := s.document(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	folds := tagtree.Folds(doc.Text(), doc.Tree)
	out := make([]protocol.FoldingRange, 0, len(folds))
	for _, f := range folds {
		r := toRange(doc.Index.Range(f.From, f.To))
		kind := protocol.FoldingRegion
		if f.Kind == cst.KindComment {
			kind = protocol.FoldingComment
		}
		out = append(out, protocol.FoldingRange{
			StartLine:      r.Start.Line,
			StartCharacter: r.Start.Character,
			EndLine:        r.End.Line,
			EndCharacter:   r.End.Character,
			Kind:           kind,
		})
	}
	return out, nil
}
