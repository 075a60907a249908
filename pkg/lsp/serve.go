package lsp

import (
	"context"
	"io"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// StartAndWait serves the protocol over r and w, framed with LSP headers,
// until the client exits or the stream closes.
func (s *Server) StartAndWait(ctx context.Context, r io.Reader, w io.WriteCloser, opts *jrpc2.ServerOptions) error {
	instance := s.BuildServerInstance(ctx, opts)

	zerolog.Ctx(ctx).Info().Str("server_id", s.id).Msg("language server listening")

	if err := instance.Start(channel.LSP(r, w)).Wait(); err != nil {
		return errors.Errorf("serving language server: %w", err)
	}
	return nil
}
