package check

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	tagcheck "github.com/walteh/ftlsense/pkg/check"
	"github.com/walteh/ftlsense/pkg/cst"
	"github.com/walteh/ftlsense/pkg/debug"
	"github.com/walteh/ftlsense/pkg/ftl"
	"github.com/walteh/ftlsense/pkg/position"
)

type Handler struct {
	patterns []string
	colorize bool

	fs  afero.Fs
	out io.Writer
}

func NewCheckCommand() *cobra.Command {
	me := &Handler{fs: afero.NewOsFs()}

	cmd := &cobra.Command{
		Use:   "check [glob]...",
		Short: "report unclosed and mismatched tags in template files",
	}

	cmd.Args = cobra.MinimumNArgs(1)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		me.patterns = args
		me.out = cmd.OutOrStdout()
		if f, ok := me.out.(interface{ Fd() uintptr }); ok {
			me.colorize = isatty.IsTerminal(f.Fd())
		}
		return me.Run(cmd.Context())
	}

	return cmd
}

// expand resolves every pattern to the files it matches, each file once.
func (me *Handler) expand(pattern string) ([]string, error) {
	base, rest := doublestar.SplitPattern(filepath.ToSlash(pattern))
	if !filepath.IsAbs(base) {
		abs, err := filepath.Abs(base)
		if err != nil {
			return nil, errors.Errorf("resolving %s: %w", base, err)
		}
		base = abs
	}
	matches, err := doublestar.Glob(afero.NewIOFS(afero.NewBasePathFs(me.fs, base)), rest, doublestar.WithFilesOnly())
	if err != nil {
		return nil, errors.Errorf("expanding %s: %w", pattern, err)
	}
	for i, m := range matches {
		matches[i] = filepath.Join(base, filepath.FromSlash(m))
	}
	return matches, nil
}

func (me *Handler) Run(ctx context.Context) error {
	start := time.Now()
	logger := zerolog.Ctx(ctx)

	var files []string
	for _, p := range me.patterns {
		matches, err := me.expand(p)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			logger.Warn().Str("pattern", p).Msg("pattern matched no files")
		}
		for _, m := range matches {
			if !slices.Contains(files, m) {
				files = append(files, m)
			}
		}
	}

	pathColor := color.New(color.Bold)
	msgColor := color.New(color.FgRed)
	if !me.colorize {
		pathColor.DisableColor()
		msgColor.DisableColor()
	}

	var result *multierror.Error
	for _, file := range files {
		content, err := afero.ReadFile(me.fs, file)
		if err != nil {
			result = multierror.Append(result, errors.Errorf("reading %s: %w", file, err))
			continue
		}
		text := string(content)
		problems := tagcheck.Tree(cst.StringText(text), ftl.Parse(text))
		if len(problems) == 0 {
			continue
		}
		index := position.NewIndex(text)
		for _, p := range problems {
			line, col, err := index.Column(p.From)
			if err != nil {
				return errors.Errorf("locating problem in %s: %w", file, err)
			}
			fmt.Fprintf(me.out, "%s:%d:%d: %s\n", pathColor.Sprint(file), line, col, msgColor.Sprint(p.Message))
		}
		result = multierror.Append(result, errors.Errorf("%s: %d problem(s)", file, len(problems)))
	}

	logger.Debug().Int("files", len(files)).Str("took", debug.Since(start)).Msg("checked templates")

	if err := result.ErrorOrNil(); err != nil {
		return errors.Errorf("check failed: %w", err)
	}
	return nil
}
