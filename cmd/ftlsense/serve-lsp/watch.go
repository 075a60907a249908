package serve_lsp

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/ftlsense/pkg/schema"
)

// schemaTarget is what a reload updates.
type schemaTarget interface {
	SetSchemaConfig(ctx context.Context, cfg schema.Config)
}

// watchSchemas reloads the schema files into target whenever one of them is
// written or replaced. Directories are watched rather than the files so that
// editors which save by renaming a new file into place are seen too.
func (me *Handler) watchSchemas(ctx context.Context, target schemaTarget) (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Errorf("creating schema watcher: %w", err)
	}

	watched := make(map[string]bool, len(me.schemaFiles))
	dirs := make(map[string]bool)
	for _, f := range me.schemaFiles {
		abs, err := filepath.Abs(f)
		if err != nil {
			watcher.Close()
			return nil, errors.Errorf("resolving %s: %w", f, err)
		}
		watched[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, errors.Errorf("watching %s: %w", dir, err)
		}
	}

	logger := zerolog.Ctx(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !watched[filepath.Clean(event.Name)] || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("schema file changed")
				me.reload(ctx, target)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn().Err(err).Msg("schema watcher error")
			}
		}
	}()

	return watcher.Close, nil
}

// reload keeps the previous schema when the files no longer load.
func (me *Handler) reload(ctx context.Context, target schemaTarget) {
	cfg, err := schema.LoadFiles(ctx, me.fs, me.schemaFiles...)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("keeping previous schema")
		return
	}
	target.SetSchemaConfig(ctx, cfg)
	if me.reloaded != nil {
		select {
		case me.reloaded <- cfg:
		default:
		}
	}
}
