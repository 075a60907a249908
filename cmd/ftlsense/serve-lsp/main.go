package serve_lsp

import (
	"context"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/ftlsense/pkg/lsp"
	"github.com/walteh/ftlsense/pkg/schema"
)

type Handler struct {
	schemaFiles []string
	watch       bool
	version     string
	fs          afero.Fs

	// reloaded receives every config loaded after a schema file changed.
	reloaded chan<- schema.Config
}

func NewServeLSPCommand() *cobra.Command {
	me := &Handler{fs: afero.NewOsFs()}

	cmd := &cobra.Command{
		Use:   "serve-lsp",
		Short: "start the language server on stdin/stdout",
	}

	cmd.Flags().StringArrayVar(&me.schemaFiles, "schema", nil, "schema extension file (.yaml, .yml or .hcl), may be repeated")
	cmd.Flags().BoolVar(&me.watch, "watch", false, "reload schema files when they change")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		me.version = cmd.Root().Version
		return me.Run(cmd.Context())
	}

	return cmd
}

func (me *Handler) Run(ctx context.Context) error {
	cfg, err := schema.LoadFiles(ctx, me.fs, me.schemaFiles...)
	if err != nil {
		return errors.Errorf("loading schema files: %w", err)
	}

	server := lsp.NewServer(ctx, lsp.WithSchemaConfig(cfg), lsp.WithVersion(me.version))

	if me.watch && len(me.schemaFiles) > 0 {
		stop, err := me.watchSchemas(ctx, server)
		if err != nil {
			return err
		}
		defer stop()
	}

	if err := server.StartAndWait(ctx, os.Stdin, os.Stdout, nil); err != nil {
		return errors.Errorf("error running language server: %w", err)
	}

	return nil
}
