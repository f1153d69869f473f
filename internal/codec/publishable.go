package codec

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gobwas/glob"

	"git.home.luguber.info/inful/postpub/internal/util/sets"
)

// IsPost reports whether path is an existing regular file with a content extension.
func (c *Codec) IsPost(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return slices.Contains(ContentExtensions, strings.ToLower(filepath.Ext(path)))
}

// IsPublishable reports whether path is not matched by any ignore glob.
// The ignore set is expanded from the file system on every call.
func (c *Codec) IsPublishable(p string) bool {
	if len(c.ignoreGlobs) == 0 {
		return true
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return false
	}
	return !c.ignoredPaths().Has(filepath.ToSlash(abs))
}

// ignoredPaths expands every ignore glob against the file system.
// `*` does not cross directory boundaries; `**` does and may match no
// directory at all.
func (c *Codec) ignoredPaths() sets.Set[string] {
	ignored := sets.New[string]()
	for _, pattern := range c.ignoreGlobs {
		if strings.TrimSpace(pattern) == "" {
			continue
		}
		root, full := c.resolvePattern(pattern)
		matchers := compileAll(full)
		if len(matchers) == 0 {
			continue
		}
		_ = filepath.WalkDir(filepath.FromSlash(root), func(p string, _ fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			sp := filepath.ToSlash(p)
			for _, g := range matchers {
				if g.Match(sp) {
					ignored.Add(sp)
					break
				}
			}
			return nil
		})
	}
	return ignored
}

// resolvePattern anchors pattern at the posts directory and returns the
// deepest directory free of glob syntax together with the full pattern.
func (c *Codec) resolvePattern(pattern string) (root string, full string) {
	pattern = filepath.ToSlash(pattern)
	base := filepath.ToSlash(c.postsDir)
	if path.IsAbs(pattern) {
		base, pattern = "/", strings.TrimPrefix(pattern, "/")
	}

	segments := strings.Split(pattern, "/")
	literal := 0
	for literal < len(segments)-1 && !hasMeta(segments[literal]) {
		literal++
	}
	root = path.Join(append([]string{base}, segments[:literal]...)...)
	rest := strings.Join(segments[literal:], "/")
	prefix := glob.QuoteMeta(root)
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return root, prefix + rest
}

func compileAll(pattern string) []glob.Glob {
	variants := []string{pattern}
	if strings.Contains(pattern, "**/") {
		variants = append(variants, strings.ReplaceAll(pattern, "**/", ""))
	}
	var out []glob.Glob
	for _, v := range variants {
		g, err := glob.Compile(v, '/')
		if err != nil {
			continue
		}
		out = append(out, g)
	}
	return out
}

func hasMeta(segment string) bool {
	return strings.ContainsAny(segment, `*?[{\`)
}
