package schema

import (
	"context"
	"encoding/json"
	"maps"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Config extends the built-in schema.
type Config struct {
	ExtraTags             map[string]TagSpec  `yaml:"extraTags,omitempty" json:"extraTags,omitempty"`
	ExtraGlobalAttributes map[string][]string `yaml:"extraGlobalAttributes,omitempty" json:"extraGlobalAttributes,omitempty"`
}

// IsZero reports whether the config adds nothing.
func (c Config) IsZero() bool {
	return c.ExtraTags == nil && c.ExtraGlobalAttributes == nil
}

// Merge returns c with other layered on top; entries in other win.
func (c Config) Merge(other Config) Config {
	out := Config{}
	if c.ExtraTags != nil || other.ExtraTags != nil {
		out.ExtraTags = make(map[string]TagSpec, len(c.ExtraTags)+len(other.ExtraTags))
		maps.Copy(out.ExtraTags, c.ExtraTags)
		maps.Copy(out.ExtraTags, other.ExtraTags)
	}
	if c.ExtraGlobalAttributes != nil || other.ExtraGlobalAttributes != nil {
		out.ExtraGlobalAttributes = make(map[string][]string, len(c.ExtraGlobalAttributes)+len(other.ExtraGlobalAttributes))
		maps.Copy(out.ExtraGlobalAttributes, c.ExtraGlobalAttributes)
		maps.Copy(out.ExtraGlobalAttributes, other.ExtraGlobalAttributes)
	}
	return out
}

// FromConfig builds the schema for cfg, reusing Default when cfg is empty.
func FromConfig(cfg Config) *Schema {
	if cfg.IsZero() {
		return Default()
	}
	return New(cfg.ExtraTags, cfg.ExtraGlobalAttributes)
}

// HTMLFromConfig is FromConfig over the HTML element schema.
func HTMLFromConfig(cfg Config) *Schema {
	if cfg.IsZero() {
		return HTML()
	}
	return NewHTML(cfg.ExtraTags, cfg.ExtraGlobalAttributes)
}

type hclFile struct {
	Tags        []hclTag  `hcl:"tag,block"`
	GlobalAttrs []hclAttr `hcl:"global_attr,block"`
}

type hclTag struct {
	Name        string    `hcl:"name,label"`
	Children    *[]string `hcl:"children,optional"`
	GlobalAttrs *bool     `hcl:"global_attrs,optional"`
	Attrs       []hclAttr `hcl:"attr,block"`
}

type hclAttr struct {
	Name   string   `hcl:"name,label"`
	Values []string `hcl:"values,optional"`
}

func (f hclFile) config() Config {
	cfg := Config{}
	if len(f.Tags) > 0 {
		cfg.ExtraTags = make(map[string]TagSpec, len(f.Tags))
	}
	for _, t := range f.Tags {
		spec := TagSpec{GlobalAttrs: t.GlobalAttrs}
		if t.Children != nil {
			spec.Children = append([]string{}, *t.Children...)
		}
		if len(t.Attrs) > 0 {
			spec.Attrs = make(map[string][]string, len(t.Attrs))
			for _, a := range t.Attrs {
				spec.Attrs[a.Name] = a.Values
			}
		}
		cfg.ExtraTags[t.Name] = spec
	}
	if len(f.GlobalAttrs) > 0 {
		cfg.ExtraGlobalAttributes = make(map[string][]string, len(f.GlobalAttrs))
		for _, a := range f.GlobalAttrs {
			cfg.ExtraGlobalAttributes[a.Name] = a.Values
		}
	}
	return cfg
}

// ParseConfig decodes a schema extension. The format follows the file
// extension: .yaml/.yml, .json or .hcl.
func ParseConfig(filename string, data []byte) (Config, error) {
	var cfg Config
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Errorf("decoding yaml schema %s: %w", filename, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Errorf("decoding json schema %s: %w", filename, err)
		}
	case ".hcl":
		var f hclFile
		if err := hclsimple.Decode(filename, data, nil, &f); err != nil {
			return Config{}, errors.Errorf("decoding hcl schema %s: %w", filename, err)
		}
		cfg = f.config()
	default:
		return Config{}, errors.Errorf("unsupported schema file type: %s", filename)
	}
	return cfg, nil
}

// LoadFile reads and decodes one schema extension file.
func LoadFile(ctx context.Context, fs afero.Fs, path string) (Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Config{}, errors.Errorf("reading schema file: %w", err)
	}
	cfg, err := ParseConfig(path, data)
	if err != nil {
		return Config{}, err
	}
	zerolog.Ctx(ctx).Debug().
		Str("path", path).
		Int("tags", len(cfg.ExtraTags)).
		Int("global_attrs", len(cfg.ExtraGlobalAttributes)).
		Msg("loaded schema extension")
	return cfg, nil
}

// LoadFiles loads every path in order and merges them, later files winning.
// Files that fail are skipped; their errors are combined in the returned
// error alongside the merge of the files that loaded.
func LoadFiles(ctx context.Context, fs afero.Fs, paths ...string) (Config, error) {
	var merged Config
	var errs error
	for _, p := range paths {
		cfg, err := LoadFile(ctx, fs, p)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		merged = merged.Merge(cfg)
	}
	return merged, errs
}
