package codec

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/postpub/internal/foundation/errors"
	"git.home.luguber.info/inful/postpub/internal/frontmatter"
	"git.home.luguber.info/inful/postpub/internal/post"
)

// Load reads the post file at path and decodes it.
//
// File-system errors are returned as-is. Malformed files yield a decode
// error (see IsDecodeError) whose message names the problem.
func (c *Codec) Load(path string) (post.Post, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return post.Post{}, err
	}
	return c.Decode(path, data)
}

// Decode decodes the content of a post file located at path.
func (c *Codec) Decode(path string, data []byte) (post.Post, error) {
	doc, meta, err := splitMeta(path, data)
	if err != nil {
		return post.Post{}, err
	}
	body := doc.Body
	if len(meta) == 0 {
		return post.Post{}, decodeError(path, "Frontmatter not found.")
	}
	if strings.TrimSpace(string(body)) == "" {
		return post.Post{}, decodeError(path, "Content not found.")
	}

	publisher, perr := decodePublisher(meta)
	if perr != nil {
		return post.Post{}, perr.WithContext("path", path)
	}

	content, err := c.renderer.Render(string(body))
	if err != nil {
		return post.Post{}, errors.WrapError(err, errors.CategoryDecode, "Markdown rendering failed.").
			WithContext("path", path).Build()
	}

	req, err := c.variant.ExtractRequired(meta)
	if err != nil {
		if classified, ok := errors.AsClassified(err); ok {
			return post.Post{}, classified.WithContext("path", path)
		}
		return post.Post{}, err
	}

	return post.New(post.Fields{
		Filepath:   path,
		Publisher:  publisher,
		Title:      req.Title,
		Content:    content,
		Tags:       req.Tags,
		Categories: req.Categories,
		IsDraft:    req.IsDraft,
	})
}

// splitMeta splits data once and parses its metadata block in its own format.
func splitMeta(path string, data []byte) (frontmatter.Document, map[string]any, error) {
	doc, err := frontmatter.Split(data)
	if err != nil || !doc.Had {
		return doc, nil, decodeError(path, "Frontmatter not found.")
	}
	meta, err := frontmatter.Parse(doc.Format, doc.Frontmatter)
	if err != nil {
		return doc, nil, errors.WrapError(err, errors.CategoryDecode,
			fmt.Sprintf("Error in %s Frontmatter: %v", doc.Format.Label(), err)).
			UserAction().
			WithContext("path", path).
			WithContext("format", string(doc.Format)).
			Build()
	}
	return doc, meta, nil
}

func decodePublisher(meta map[string]any) (post.Publisher, *errors.ClassifiedError) {
	raw, ok := meta["post_publisher"]
	if !ok || raw == nil {
		return post.NewPublisher(), nil
	}
	fields, ok := raw.(map[string]any)
	if !ok {
		return post.Publisher{}, invalidKey("post_publisher")
	}
	rawID, ok := fields["id"]
	if !ok {
		return post.NewPublisher(), nil
	}
	s, ok := rawID.(string)
	if !ok {
		return post.Publisher{}, errors.DecodeError("'post_publisher.id' is invalid.").Build()
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return post.Publisher{}, errors.DecodeError("'post_publisher.id' is invalid.").WithCause(err).Build()
	}
	return post.Publisher{ID: id}, nil
}
