// Package config discovers and merges Hugo-style site configuration and
// extracts the settings postpub needs from it.
package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/postpub/internal/foundation/errors"
	"git.home.luguber.info/inful/postpub/internal/frontmatter"
)

// Tree is a merged configuration. Nested mappings are always map[string]any.
type Tree = map[string]any

// configFiles are looked up directly in the work directory, in order.
var configFiles = []string{"config.toml", "config.yaml", "config.yml", "config.json"}

// HugoLoader loads configuration the way Hugo lays it out: a single config
// file in the site root, or a config/ directory of fragments.
type HugoLoader struct {
	workdir string
}

// NewHugoLoader creates a loader for workdir.
func NewHugoLoader(workdir string) *HugoLoader {
	if abs, err := filepath.Abs(workdir); err == nil {
		workdir = abs
	}
	return &HugoLoader{workdir: workdir}
}

// Workdir returns the absolute work directory.
func (l *HugoLoader) Workdir() string { return l.workdir }

// Load returns the first of config.{toml,yaml,yml,json} found in the work
// directory as-is. Otherwise every fragment under config/ is merged in
// lexical walk order, later fragments overriding earlier ones. A fragment
// named a.b.<ext> is nested under keys a then b; config.<ext> merges at the
// top level.
func (l *HugoLoader) Load() (Tree, error) {
	for _, name := range configFiles {
		path := filepath.Join(l.workdir, name)
		info, err := os.Stat(path)
		if err != nil {
			if stderrors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fsError(err, path)
		}
		if info.IsDir() {
			continue
		}
		return loadFile(path)
	}

	tree := Tree{}
	dir := filepath.Join(l.workdir, "config")
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir && stderrors.Is(err, fs.ErrNotExist) {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := frontmatter.FormatFromExt(path); !ok {
			return nil
		}
		fragment, err := loadFile(path)
		if err != nil {
			return err
		}
		name := d.Name()
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if stem != "config" {
			fragment = NestKeys(strings.Split(stem, "."), fragment)
		}
		MergeNested(tree, fragment)
		return nil
	})
	if err != nil {
		if errors.IsClassified(err) {
			return nil, err
		}
		return nil, fsError(err, dir)
	}

	if len(tree) == 0 {
		return nil, errors.NewError(errors.CategoryNotFound,
			fmt.Sprintf("No Hugo Configuration Found in %s", l.workdir)).
			UserAction().
			WithContext("path", l.workdir).Build()
	}
	return tree, nil
}

func loadFile(path string) (Tree, error) {
	format, ok := frontmatter.FormatFromExt(path)
	if !ok {
		return nil, errors.ConfigError("unsupported configuration file").WithContext("path", path).Build()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fsError(err, path)
	}
	tree, err := frontmatter.Parse(format, data)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig,
			fmt.Sprintf("invalid %s configuration", format.Label())).
			UserAction().
			WithContext("path", path).Build()
	}
	return tree, nil
}

func fsError(err error, path string) error {
	return errors.WrapError(err, errors.CategoryFileSystem, "failed to read configuration").
		WithContext("path", path).Build()
}

// IsNotFound reports whether err means no configuration was found.
func IsNotFound(err error) bool {
	return errors.HasCategory(err, errors.CategoryNotFound)
}

// NestKeys wraps value under keys, outermost first:
// NestKeys([a b], v) is {a: {b: v}}.
func NestKeys(keys []string, value Tree) Tree {
	out := value
	for i := len(keys) - 1; i >= 0; i-- {
		out = Tree{keys[i]: out}
	}
	return out
}

// MergeNested merges src into dst and returns dst. Mappings present on both
// sides merge key by key; any other value from src replaces the one in dst.
func MergeNested(dst, src Tree) Tree {
	for key, sv := range src {
		dm, dok := dst[key].(map[string]any)
		sm, sok := sv.(map[string]any)
		if dok && sok {
			MergeNested(dm, sm)
			continue
		}
		dst[key] = sv
	}
	return dst
}
