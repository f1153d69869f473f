// Package codec converts post files on disk to and from post.Post values.
package codec

import (
	"path/filepath"

	"git.home.luguber.info/inful/postpub/internal/foundation/errors"
	"git.home.luguber.info/inful/postpub/internal/frontmatter"
	"git.home.luguber.info/inful/postpub/internal/markdown"
)

// ContentExtensions lists the file extensions recognized as posts.
var ContentExtensions = []string{".md"}

// Codec loads and dumps posts stored under a posts directory.
// It holds read-only configuration and is safe for concurrent use.
type Codec struct {
	postsDir    string
	ignoreGlobs []string
	variant     Variant
	dumpFormat  frontmatter.Format
	renderer    *markdown.Renderer
}

// Option configures a Codec.
type Option func(*Codec)

// WithIgnoreGlobs sets the patterns excluding posts from publication.
// Relative patterns are resolved against the posts directory.
func WithIgnoreGlobs(patterns []string) Option {
	return func(c *Codec) { c.ignoreGlobs = append([]string(nil), patterns...) }
}

// WithVariant selects the metadata variant used to extract required fields.
func WithVariant(v Variant) Option {
	return func(c *Codec) {
		if v != nil {
			c.variant = v
		}
	}
}

// WithDumpFormat selects the frontmatter format written by Dump.
func WithDumpFormat(f frontmatter.Format) Option {
	return func(c *Codec) {
		if f != "" {
			c.dumpFormat = f
		}
	}
}

// WithRenderer replaces the markdown renderer.
func WithRenderer(r *markdown.Renderer) Option {
	return func(c *Codec) {
		if r != nil {
			c.renderer = r
		}
	}
}

// New creates a Codec rooted at postsDir.
func New(postsDir string, opts ...Option) (*Codec, error) {
	abs, err := filepath.Abs(postsDir)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "invalid posts directory").
			WithContext("path", postsDir).Build()
	}
	c := &Codec{
		postsDir:   abs,
		variant:    GenericVariant{},
		dumpFormat: frontmatter.FormatYAML,
		renderer:   markdown.NewRenderer(markdown.DefaultOptions()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// PostsDir returns the absolute posts directory.
func (c *Codec) PostsDir() string { return c.postsDir }

// Variant returns the configured metadata variant.
func (c *Codec) Variant() Variant { return c.variant }

// IsDecodeError reports whether err is a post decoding failure.
func IsDecodeError(err error) bool {
	return errors.HasCategory(err, errors.CategoryDecode)
}

func decodeError(path, message string) *errors.ClassifiedError {
	return errors.DecodeError(message).WithContext("path", path).Build()
}
