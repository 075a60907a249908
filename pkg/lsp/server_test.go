package lsp_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/ftlsense/pkg/diff"
	"github.com/walteh/ftlsense/pkg/lsp"
	"github.com/walteh/ftlsense/pkg/lsp/protocol"
	"github.com/walteh/ftlsense/pkg/schema"
)

type testSetup struct {
	server  *lsp.Server
	client  *jrpc2.Client
	tracker *protocol.RPCTracker
	done    chan error
}

func startServer(t *testing.T, ctx context.Context, opts ...lsp.ServerOption) *testSetup {
	t.Helper()

	serverReader, clientWriter := io.Pipe()
	clientReader, serverWriter := io.Pipe()

	server := lsp.NewServer(ctx, opts...)
	tracker := protocol.NewRPCTracker()
	rpcLog := &protocol.MultiRPCLogger{}
	rpcLog.AddLogger(&protocol.RPCLogger{Ctx: ctx})
	rpcLog.AddLogger(tracker)

	setup := &testSetup{server: server, tracker: tracker, done: make(chan error, 1)}
	go func() {
		setup.done <- server.StartAndWait(ctx, serverReader, serverWriter, &jrpc2.ServerOptions{RPCLog: rpcLog})
	}()

	setup.client = jrpc2.NewClient(channel.LSP(clientReader, clientWriter), &jrpc2.ClientOptions{})
	t.Cleanup(func() {
		setup.client.Close()
		clientWriter.Close()
		clientReader.Close()
	})
	return setup
}

func (s *testSetup) open(t *testing.T, ctx context.Context, uri, languageID, text string) {
	t.Helper()
	require.NoError(t, s.client.Notify(ctx, "textDocument/didOpen", &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: protocol.DocumentURI(uri), LanguageID: languageID, Version: 1, Text: text},
	}))
}

func (s *testSetup) initialize(t *testing.T, ctx context.Context, options string) *protocol.InitializeResult {
	t.Helper()
	params := map[string]any{"processId": 1, "clientInfo": map[string]string{"name": "test"}}
	if options != "" {
		params["initializationOptions"] = jsonRaw(options)
	}
	var res protocol.InitializeResult
	require.NoError(t, s.client.CallResult(ctx, "initialize", params, &res))
	return &res
}

type jsonRaw string

func (j jsonRaw) MarshalJSON() ([]byte, error) { return []byte(j), nil }

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel).WithContext(ctx)
}

func pos(line, char uint32) protocol.Position {
	return protocol.Position{Line: line, Character: char}
}

func rng(l1, c1, l2, c2 uint32) protocol.Range {
	return protocol.Range{Start: pos(l1, c1), End: pos(l2, c2)}
}

func TestInitialize(t *testing.T) {
	ctx := testContext(t)
	setup := startServer(t, ctx, lsp.WithVersion("v0.0.1"))

	res := setup.initialize(t, ctx, "")
	require.NotNil(t, res.ServerInfo)
	assert.Equal(t, "ftlsense", res.ServerInfo.Name)
	assert.Equal(t, "v0.0.1", res.ServerInfo.Version)
	assert.Equal(t, []string{"<", "/", "#"}, res.Capabilities.CompletionProvider.TriggerCharacters)
	assert.Equal(t, ">", res.Capabilities.DocumentOnTypeFormattingProvider.FirstTriggerCharacter)
	assert.Equal(t, []string{"/"}, res.Capabilities.DocumentOnTypeFormattingProvider.MoreTriggerCharacter)
	assert.True(t, res.Capabilities.DocumentHighlightProvider)
	assert.True(t, res.Capabilities.FoldingRangeProvider)
	assert.NotEmpty(t, setup.server.ID())

	assert.Contains(t, setup.tracker.RequestMethods(), "initialize")
}

func TestCompletion(t *testing.T) {
	ctx := testContext(t)
	setup := startServer(t, ctx)
	setup.initialize(t, ctx, "")

	uri := "file:///tmp/page.ftl"
	setup.open(t, ctx, uri, "freemarker", "<#list xs><#if x></#")

	t.Run("close_tag_by_trigger", func(t *testing.T) {
		var list protocol.CompletionList
		require.NoError(t, setup.client.CallResult(ctx, "textDocument/completion", &protocol.CompletionParams{
			TextDocumentPositionParams: protocol.TextDocumentPositionParams{
				TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(uri)},
				Position:     pos(0, 20),
			},
			Context: &protocol.CompletionContext{TriggerKind: protocol.CompletionTriggerCharacter, TriggerCharacter: "#"},
		}, &list))

		require.Len(t, list.Items, 2)
		assert.Equal(t, "if", list.Items[0].Label)
		assert.Equal(t, "if#>", list.Items[0].TextEdit.NewText)
		assert.Equal(t, rng(0, 20, 0, 20), list.Items[0].TextEdit.Range)
		assert.Equal(t, protocol.CompletionItemClass, list.Items[0].Kind)
		assert.Equal(t, "list", list.Items[1].Label)
		assert.Less(t, list.Items[0].SortText, list.Items[1].SortText)
	})

	t.Run("keyword_fallback", func(t *testing.T) {
		other := "file:///tmp/words.ftl"
		setup.open(t, ctx, other, "freemarker", "${.now} ass")

		var list protocol.CompletionList
		require.NoError(t, setup.client.CallResult(ctx, "textDocument/completion", &protocol.CompletionParams{
			TextDocumentPositionParams: protocol.TextDocumentPositionParams{
				TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(other)},
				Position:     pos(0, 11),
			},
			Context: &protocol.CompletionContext{TriggerKind: protocol.CompletionTriggerIncomplete},
		}, &list))

		require.NotEmpty(t, list.Items)
		assert.Equal(t, protocol.CompletionItemKeyword, list.Items[0].Kind)
		assert.Equal(t, rng(0, 8, 0, 11), list.Items[0].TextEdit.Range)
	})

	t.Run("unknown_document", func(t *testing.T) {
		var list protocol.CompletionList
		err := setup.client.CallResult(ctx, "textDocument/completion", &protocol.CompletionParams{
			TextDocumentPositionParams: protocol.TextDocumentPositionParams{
				TextDocument: protocol.TextDocumentIdentifier{URI: "file:///nope.ftl"},
			},
		}, &list)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "document not found")
	})
}

func TestCompletionWithInitializationOptions(t *testing.T) {
	ctx := testContext(t)
	setup := startServer(t, ctx, lsp.WithSchemaConfig(schema.Config{
		ExtraTags: map[string]schema.TagSpec{"gadget": {}},
	}))
	setup.initialize(t, ctx, `{"extraTags":{"widget":{}}}`)

	uri := "file:///tmp/free.ftl"
	setup.open(t, ctx, uri, "freemarker", "hello ")

	var list protocol.CompletionList
	require.NoError(t, setup.client.CallResult(ctx, "textDocument/completion", &protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(uri)},
			Position:     pos(0, 6),
		},
		Context: &protocol.CompletionContext{TriggerKind: protocol.CompletionTriggerInvoked},
	}, &list))

	var labels []string
	for _, item := range list.Items {
		labels = append(labels, item.Label)
	}
	assert.Contains(t, labels, "<#widget")
	assert.Contains(t, labels, "<#gadget")
	assert.Contains(t, labels, "<#list")
}

func TestOnTypeFormatting(t *testing.T) {
	ctx := testContext(t)
	setup := startServer(t, ctx)
	setup.initialize(t, ctx, "")

	tests := []struct {
		name     string
		text     string
		position protocol.Position
		ch       string
		want     []protocol.TextEdit
	}{
		{
			name:     "greater_closes_directive",
			text:     "<#list xs as x>",
			position: pos(0, 15),
			ch:       ">",
			want:     []protocol.TextEdit{{Range: rng(0, 15, 0, 15), NewText: "</#list>"}},
		},
		{
			name:     "slash_finishes_close_tag",
			text:     "<div>\n  </",
			position: pos(1, 4),
			ch:       "/",
			want:     []protocol.TextEdit{{Range: rng(1, 4, 1, 4), NewText: "div>"}},
		},
		{
			name:     "void_element",
			text:     "<br>",
			position: pos(0, 4),
			ch:       ">",
			want:     []protocol.TextEdit{},
		},
		{
			name:     "character_not_there",
			text:     "<x",
			position: pos(0, 2),
			ch:       ">",
			want:     []protocol.TextEdit{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uri := "file:///tmp/" + tt.name + ".ftl"
			setup.open(t, ctx, uri, "freemarker", tt.text)

			var edits []protocol.TextEdit
			require.NoError(t, setup.client.CallResult(ctx, "textDocument/onTypeFormatting", &protocol.DocumentOnTypeFormattingParams{
				TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(uri)},
				Position:     tt.position,
				Ch:           tt.ch,
			}, &edits))
			assert.Equal(t, tt.want, edits, diff.Values(tt.want, edits))
		})
	}
}

func TestDidChange(t *testing.T) {
	ctx := testContext(t)
	setup := startServer(t, ctx)
	setup.initialize(t, ctx, "")

	uri := "file:///tmp/change.ftl"
	setup.open(t, ctx, uri, "freemarker", "<a>\n</a>")

	require.NoError(t, setup.client.Notify(ctx, "textDocument/didChange", &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(uri)},
			Version:                2,
		},
		ContentChanges: []protocol.TextDocumentContentChangeEvent{
			{Range: &protocol.Range{Start: pos(0, 3), End: pos(0, 3)}, Text: "<b>x</b>"},
			{Range: &protocol.Range{Start: pos(1, 2), End: pos(1, 3)}, Text: "a"},
		},
	}))

	// A request after the notification only runs once the notification has.
	var highlights []protocol.DocumentHighlight
	require.NoError(t, setup.client.CallResult(ctx, "textDocument/documentHighlight", &protocol.DocumentHighlightParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(uri)},
			Position:     pos(0, 4),
		},
	}, &highlights))
	require.Len(t, highlights, 2)
	assert.Equal(t, rng(0, 4, 0, 5), highlights[0].Range)
	assert.Equal(t, rng(0, 9, 0, 10), highlights[1].Range)

	doc, ok := setup.server.Documents().Get(protocol.DocumentURI(uri))
	require.True(t, ok)
	assert.Equal(t, "<a><b>x</b>\n</a>", doc.Content)
	assert.Equal(t, int32(2), doc.Version)

	require.NoError(t, setup.client.Notify(ctx, "textDocument/didClose", &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(uri)},
	}))
	var folds []protocol.FoldingRange
	err := setup.client.CallResult(ctx, "textDocument/foldingRange", &protocol.FoldingRangeParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(uri)},
	}, &folds)
	require.Error(t, err)
	assert.Equal(t, 0, setup.server.Documents().Len())
}

func TestHighlightsAndFolding(t *testing.T) {
	ctx := testContext(t)
	setup := startServer(t, ctx)
	setup.initialize(t, ctx, "")

	uri := "file:///tmp/fold.ftl"
	setup.open(t, ctx, uri, "freemarker", "<#list xs>\n  a\n</#list>\n<#--\nc\n--><b>x</b>")

	var highlights []protocol.DocumentHighlight
	require.NoError(t, setup.client.CallResult(ctx, "textDocument/documentHighlight", &protocol.DocumentHighlightParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(uri)},
			Position:     pos(0, 3),
		},
	}, &highlights))
	assert.Equal(t, []protocol.DocumentHighlight{
		{Range: rng(0, 2, 0, 6), Kind: protocol.HighlightText},
		{Range: rng(2, 3, 2, 7), Kind: protocol.HighlightText},
	}, highlights)

	var folds []protocol.FoldingRange
	require.NoError(t, setup.client.CallResult(ctx, "textDocument/foldingRange", &protocol.FoldingRangeParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(uri)},
	}, &folds))
	assert.Equal(t, []protocol.FoldingRange{
		{StartLine: 0, StartCharacter: 10, EndLine: 2, EndCharacter: 0, Kind: protocol.FoldingRegion},
		{StartLine: 3, StartCharacter: 0, EndLine: 5, EndCharacter: 3, Kind: protocol.FoldingComment},
	}, folds)
}

func TestHTMLDocumentsUseTreeSitter(t *testing.T) {
	ctx := testContext(t)
	setup := startServer(t, ctx)
	setup.initialize(t, ctx, "")

	uri := "file:///tmp/index.html"
	setup.open(t, ctx, uri, "html", "<div><b>x</b></div>")

	var list protocol.CompletionList
	require.NoError(t, setup.client.CallResult(ctx, "textDocument/completion", &protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(uri)},
			Position:     pos(0, 17),
		},
		Context: &protocol.CompletionContext{TriggerKind: protocol.CompletionTriggerIncomplete},
	}, &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, "div", list.Items[0].Label)
	assert.Equal(t, rng(0, 15, 0, 17), list.Items[0].TextEdit.Range)

	doc, ok := setup.server.Documents().Get(protocol.DocumentURI(uri))
	require.True(t, ok)
	assert.Equal(t, "html", doc.LanguageID)

	open := "file:///tmp/open.html"
	setup.open(t, ctx, open, "html", "<div>\n</")
	list = protocol.CompletionList{}
	require.NoError(t, setup.client.CallResult(ctx, "textDocument/completion", &protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(open)},
			Position:     pos(1, 2),
		},
		Context: &protocol.CompletionContext{TriggerKind: protocol.CompletionTriggerCharacter, TriggerCharacter: "/"},
	}, &list))
	require.Len(t, list.Items, 1, "the unclosed div is offered")
	assert.Equal(t, "div", list.Items[0].Label)
	assert.Equal(t, "div>", list.Items[0].TextEdit.NewText)
	assert.Equal(t, rng(1, 2, 1, 2), list.Items[0].TextEdit.Range)

	text := "file:///tmp/text.html"
	setup.open(t, ctx, text, "html", "<div>\nx")
	list = protocol.CompletionList{}
	require.NoError(t, setup.client.CallResult(ctx, "textDocument/completion", &protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(text)},
			Position:     pos(1, 1),
		},
		Context: &protocol.CompletionContext{TriggerKind: protocol.CompletionTriggerInvoked},
	}, &list))
	var labels []string
	for _, item := range list.Items {
		labels = append(labels, item.Label)
	}
	assert.Contains(t, labels, "<span")
	assert.Contains(t, labels, "</div>")
	assert.NotContains(t, labels, "<#assign")
	assert.NotContains(t, labels, "<#/div#>")

	typed := "file:///tmp/typed.html"
	setup.open(t, ctx, typed, "html", "<p><div>")
	var edits []protocol.TextEdit
	require.NoError(t, setup.client.CallResult(ctx, "textDocument/onTypeFormatting", &protocol.DocumentOnTypeFormattingParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(typed)},
		Position:     pos(0, 8),
		Ch:           ">",
	}, &edits))
	assert.Equal(t, []protocol.TextEdit{{Range: rng(0, 8, 0, 8), NewText: "</div>"}}, edits)
}

func TestEmptyResultsEncodeAsArrays(t *testing.T) {
	ctx := testContext(t)
	setup := startServer(t, ctx)
	setup.initialize(t, ctx, "")

	uri := "file:///tmp/plain.ftl"
	setup.open(t, ctx, uri, "freemarker", "plain text")
	doc := protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(uri)}

	rsp, err := setup.client.Call(ctx, "textDocument/onTypeFormatting", &protocol.DocumentOnTypeFormattingParams{
		TextDocument: doc,
		Position:     pos(0, 3),
		Ch:           ">",
	})
	require.NoError(t, err)
	assert.Equal(t, "[]", rsp.ResultString())

	rsp, err = setup.client.Call(ctx, "textDocument/completion", &protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{TextDocument: doc, Position: pos(0, 6)},
		Context:                    &protocol.CompletionContext{TriggerKind: protocol.CompletionTriggerIncomplete},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"isIncomplete":false,"items":[]}`, rsp.ResultString())
}

func TestShutdownAndExit(t *testing.T) {
	ctx := testContext(t)
	setup := startServer(t, ctx)
	setup.initialize(t, ctx, "")

	_, err := setup.client.Call(ctx, "shutdown", nil)
	require.NoError(t, err)
	require.NoError(t, setup.client.Notify(ctx, "exit", nil))

	select {
	case err := <-setup.done:
		assert.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("server did not stop after exit")
	}

	assert.Equal(t, []string{"initialize", "shutdown", "exit"}, setup.tracker.RequestMethods())
}
