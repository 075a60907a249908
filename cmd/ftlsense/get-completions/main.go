package get_completions

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/ftlsense/pkg/completion"
	"github.com/walteh/ftlsense/pkg/cst"
	"github.com/walteh/ftlsense/pkg/cst/treesitter"
	"github.com/walteh/ftlsense/pkg/ftl"
	"github.com/walteh/ftlsense/pkg/position"
	"github.com/walteh/ftlsense/pkg/schema"
)

type Handler struct {
	filePath    string
	line        int
	column      int
	schemaFiles []string
	explicit    bool

	fs  afero.Fs
	out io.Writer
}

// Output is what the command prints: the completion result plus the
// position it applies to.
type Output struct {
	Offset int                `json:"offset"`
	Result *completion.Result `json:"result"`
	Range  *position.Range    `json:"range,omitempty"`
}

func NewGetCompletionsCommand() *cobra.Command {
	me := &Handler{fs: afero.NewOsFs()}

	cmd := &cobra.Command{
		Use:   "get-completions [file-path] [line] [column]",
		Short: "print the completions at a 1-based line and column of a template file",
	}

	cmd.Args = cobra.ExactArgs(3)
	cmd.Flags().StringArrayVar(&me.schemaFiles, "schema", nil, "schema extension file (.yaml, .yml or .hcl), may be repeated")
	cmd.Flags().BoolVar(&me.explicit, "explicit", true, "treat the request as explicitly invoked")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		me.filePath = args[0]
		var err error
		me.line, err = strconv.Atoi(args[1])
		if err != nil {
			return errors.Errorf("invalid line number: %w", err)
		}
		me.column, err = strconv.Atoi(args[2])
		if err != nil {
			return errors.Errorf("invalid column number: %w", err)
		}
		me.out = cmd.OutOrStdout()
		return me.Run(cmd.Context())
	}

	return cmd
}

func (me *Handler) Run(ctx context.Context) error {
	cfg, err := schema.LoadFiles(ctx, me.fs, me.schemaFiles...)
	if err != nil {
		return errors.Errorf("loading schema files: %w", err)
	}

	content, err := afero.ReadFile(me.fs, me.filePath)
	if err != nil {
		return errors.Errorf("failed to read template file: %w", err)
	}
	text := string(content)

	index := position.NewIndex(text)
	offset, err := index.OffsetFromColumn(me.line, me.column)
	if err != nil {
		return errors.Errorf("resolving position: %w", err)
	}

	tree, err := me.parse(ctx, text)
	if err != nil {
		return err
	}

	source := completion.First(completion.SourceWith(cfg), completion.Keywords)
	if me.isHTML() {
		source = completion.HTMLSourceWith(cfg)
	}
	res := source(ctx, completion.Context{
		Tree:     tree,
		Doc:      cst.StringText(text),
		Pos:      offset,
		Explicit: me.explicit,
	})

	out := Output{Offset: offset, Result: res}
	if res != nil {
		r := index.Range(res.From, res.To)
		out.Range = &r
		zerolog.Ctx(ctx).Debug().Int("options", len(res.Options)).Msg("completions found")
	}

	encoder := json.NewEncoder(me.out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		return errors.Errorf("failed to encode completions: %w", err)
	}

	return nil
}

func (me *Handler) isHTML() bool {
	switch strings.ToLower(filepath.Ext(me.filePath)) {
	case ".html", ".htm":
		return true
	}
	return false
}

func (me *Handler) parse(ctx context.Context, text string) (*cst.Tree, error) {
	if me.isHTML() {
		tree, err := treesitter.Parse(ctx, []byte(text))
		if err != nil {
			return nil, errors.Errorf("parsing html: %w", err)
		}
		return tree, nil
	}
	return ftl.Parse(text), nil
}
