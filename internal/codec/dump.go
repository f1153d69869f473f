package codec

import (
	"bytes"
	"os"

	"git.home.luguber.info/inful/postpub/internal/foundation/errors"
	"git.home.luguber.info/inful/postpub/internal/frontmatter"
	"git.home.luguber.info/inful/postpub/internal/post"
)

const defaultFileMode os.FileMode = 0o644

// Encode serializes p into post file bytes in the codec's dump format.
// canonical_url and filepath are never persisted.
func (c *Codec) Encode(p post.Post) ([]byte, error) {
	body, err := c.renderer.Unrender(p.Content())
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "failed to convert content to markdown").
			WithContext("path", p.Filepath()).Build()
	}

	meta := map[string]any{
		"post_publisher": p.Publisher().Fields(),
		"title":          p.Title(),
		"is_draft":       p.IsDraft(),
		"tags":           p.Tags(),
		"categories":     p.Categories(),
	}
	style := frontmatter.Style{Newline: "\n", HasTrailingNewline: true}
	fm, err := frontmatter.Serialize(c.dumpFormat, meta, style)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "failed to serialize frontmatter").
			WithContext("path", p.Filepath()).
			WithContext("format", string(c.dumpFormat)).Build()
	}

	return frontmatter.Join(frontmatter.Document{
		Format:      c.dumpFormat,
		Frontmatter: fm,
		Body:        []byte(body),
		Had:         true,
		Style:       style,
	}), nil
}

// Dump writes p back to p.Filepath(). File-system errors are returned as-is.
func (c *Codec) Dump(p post.Post) error {
	out, err := c.Encode(p)
	if err != nil {
		return err
	}
	return os.WriteFile(p.Filepath(), out, defaultFileMode)
}

// DumpAppData persists the publisher of p into its existing file. Only
// post_publisher is replaced; the other metadata keeps its values, the file
// keeps its frontmatter format and the body is written back verbatim. The
// write is skipped when the file already records the same publisher.
func (c *Codec) DumpAppData(p post.Post) error {
	path := p.Filepath()
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	doc, meta, err := splitMeta(path, data)
	if err != nil {
		return err
	}

	current, _ := meta["post_publisher"].(map[string]any)
	if id, _ := current["id"].(string); id == p.Publisher().ID.String() {
		return nil
	}
	meta["post_publisher"] = p.Publisher().Fields()

	fm, err := frontmatter.Serialize(doc.Format, meta, doc.Style)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to serialize frontmatter").
			WithContext("path", path).Build()
	}
	doc.Frontmatter = fm
	out := frontmatter.Join(doc)
	if bytes.Equal(out, data) {
		return nil
	}
	return os.WriteFile(path, out, info.Mode().Perm())
}
