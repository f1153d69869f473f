package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"git.home.luguber.info/inful/postpub/internal/codec"
	"git.home.luguber.info/inful/postpub/internal/foundation/errors"
	"git.home.luguber.info/inful/postpub/internal/post"
)

// Sink writes a publish-ready post somewhere.
type Sink interface {
	Write(ctx context.Context, p post.Post) error
}

// Document is the JSON representation written by JSONSink.
type Document struct {
	PublisherID  string   `json:"publisher_id"`
	Source       string   `json:"source"`
	Title        string   `json:"title"`
	CanonicalURL string   `json:"canonical_url"`
	Content      string   `json:"content"`
	Tags         []string `json:"tags"`
	Categories   []string `json:"categories"`
	IsDraft      bool     `json:"is_draft"`
}

// DocumentFor converts p to its JSON representation.
func DocumentFor(p post.Post) Document {
	return Document{
		PublisherID:  p.Publisher().ID.String(),
		Source:       p.Filepath(),
		Title:        p.Title(),
		CanonicalURL: p.CanonicalURL(),
		Content:      p.Content(),
		Tags:         p.Tags(),
		Categories:   p.Categories(),
		IsDraft:      p.IsDraft(),
	}
}

// JSONSink writes <output>/<rel>.json for a post at <postsDir>/<rel>.md.
type JSONSink struct {
	outputDir string
	postsDir  string
}

// NewJSONSink creates a JSONSink.
func NewJSONSink(outputDir, postsDir string) *JSONSink {
	if abs, err := filepath.Abs(postsDir); err == nil {
		postsDir = abs
	}
	return &JSONSink{outputDir: outputDir, postsDir: postsDir}
}

func (s *JSONSink) Write(_ context.Context, p post.Post) error {
	target, err := outputPath(s.outputDir, s.postsDir, p.Filepath(), ".json")
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(DocumentFor(p), "", "  ")
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to encode post").
			WithContext("path", p.Filepath()).Build()
	}
	return writeFile(target, append(data, '\n'))
}

// MarkdownSink writes <output>/<rel>.md through the codec's Dump.
type MarkdownSink struct {
	codec     *codec.Codec
	outputDir string
}

// NewMarkdownSink creates a MarkdownSink.
func NewMarkdownSink(c *codec.Codec, outputDir string) *MarkdownSink {
	return &MarkdownSink{codec: c, outputDir: outputDir}
}

func (s *MarkdownSink) Write(_ context.Context, p post.Post) error {
	target, err := outputPath(s.outputDir, s.codec.PostsDir(), p.Filepath(), filepath.Ext(p.Filepath()))
	if err != nil {
		return err
	}
	if err := mkdirFor(target); err != nil {
		return err
	}
	moved, err := p.WithFilepath(target)
	if err != nil {
		return err
	}
	if err := s.codec.Dump(moved); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write post").
			WithContext("path", target).Build()
	}
	return nil
}

func outputPath(outputDir, postsDir, path, ext string) (string, error) {
	rel, err := filepath.Rel(postsDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.ProcessingError("post is outside the posts directory").
			WithContext("path", path).Build()
	}
	abs, err := filepath.Abs(filepath.Join(outputDir, strings.TrimSuffix(rel, filepath.Ext(rel))+ext))
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryFileSystem, "invalid output path").
			WithContext("path", outputDir).Build()
	}
	return abs, nil
}

func mkdirFor(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create output directory").
			WithContext("path", filepath.Dir(path)).Build()
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := mkdirFor(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write output").
			WithContext("path", path).Build()
	}
	return nil
}
