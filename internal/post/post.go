// Package post defines the immutable Post value decoded from a post file.
package post

import (
	"net/url"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/postpub/internal/foundation/errors"
	"git.home.luguber.info/inful/postpub/internal/markup"
	"git.home.luguber.info/inful/postpub/internal/util/sets"
)

// Publisher identifies one act of publishing a post instance.
type Publisher struct {
	ID uuid.UUID
}

// NewPublisher returns a Publisher with a fresh random id.
func NewPublisher() Publisher {
	return Publisher{ID: uuid.New()}
}

// Fields returns the publisher as it is embedded in frontmatter.
func (p Publisher) Fields() map[string]any {
	return map[string]any{"id": p.ID.String()}
}

// Fields is the input to New.
type Fields struct {
	Filepath     string
	Publisher    Publisher
	Title        string
	Content      string
	CanonicalURL string
	Tags         []string
	Categories   []string
	IsDraft      bool
}

// Post is an immutable decoded post. The zero value is not valid; use New.
type Post struct {
	filepath     string
	publisher    Publisher
	title        string
	content      string
	canonicalURL string
	tags         sets.Set[string]
	categories   sets.Set[string]
	isDraft      bool
}

// New validates f and builds a Post. A zero Publisher is replaced by a fresh one.
func New(f Fields) (Post, error) {
	if !filepath.IsAbs(f.Filepath) {
		return Post{}, errors.ValidationError("post path must be absolute").
			WithContext("path", f.Filepath).Build()
	}
	if strings.TrimSpace(f.Title) == "" {
		return Post{}, errors.ValidationError("post title must not be empty").
			WithContext("path", f.Filepath).Build()
	}
	if f.CanonicalURL != "" {
		if err := validateCanonicalURL(f.CanonicalURL); err != nil {
			return Post{}, err
		}
	}
	if f.Publisher.ID == uuid.Nil {
		f.Publisher = NewPublisher()
	}
	return Post{
		filepath:     filepath.Clean(f.Filepath),
		publisher:    f.Publisher,
		title:        f.Title,
		content:      f.Content,
		canonicalURL: f.CanonicalURL,
		tags:         sets.New(f.Tags...),
		categories:   sets.New(f.Categories...),
		isDraft:      f.IsDraft,
	}, nil
}

func validateCanonicalURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.ValidationError("canonical url must be an absolute http(s) url").
			WithContext("canonical_url", raw).Build()
	}
	return nil
}

func (p Post) Filepath() string     { return p.filepath }
func (p Post) Publisher() Publisher { return p.publisher }
func (p Post) Title() string        { return p.title }
func (p Post) Content() string      { return p.content }
func (p Post) CanonicalURL() string { return p.canonicalURL }
func (p Post) IsDraft() bool        { return p.isDraft }

// Tags returns the tags in sorted order.
func (p Post) Tags() []string { return p.tags.Sorted() }

// Categories returns the categories in sorted order.
func (p Post) Categories() []string { return p.categories.Sorted() }

// WithFilepath returns a copy of p located at path.
func (p Post) WithFilepath(path string) (Post, error) {
	if !filepath.IsAbs(path) {
		return Post{}, errors.ValidationError("post path must be absolute").
			WithContext("path", path).Build()
	}
	out := p.clone()
	out.filepath = filepath.Clean(path)
	return out, nil
}

// WithContent returns a copy of p with content replaced.
func (p Post) WithContent(content string) Post {
	out := p.clone()
	out.content = content
	return out
}

// WithCanonicalURL returns a copy of p with the canonical URL assigned.
func (p Post) WithCanonicalURL(raw string) (Post, error) {
	if err := validateCanonicalURL(raw); err != nil {
		return Post{}, err
	}
	out := p.clone()
	out.canonicalURL = raw
	return out, nil
}

// WithPublisher returns a copy of p with publisher replaced.
func (p Post) WithPublisher(publisher Publisher) Post {
	out := p.clone()
	out.publisher = publisher
	return out
}

func (p Post) clone() Post {
	out := p
	out.tags = p.tags.Clone()
	out.categories = p.categories.Clone()
	return out
}

// Fields exposes every field of p keyed by its frontmatter name.
// canonical_url is nil while unassigned.
func (p Post) Fields() map[string]any {
	var canonical any
	if p.canonicalURL != "" {
		canonical = p.canonicalURL
	}
	return map[string]any{
		"filepath":       p.filepath,
		"post_publisher": p.publisher.Fields(),
		"title":          p.title,
		"content":        p.content,
		"canonical_url":  canonical,
		"tags":           p.Tags(),
		"categories":     p.Categories(),
		"is_draft":       p.isDraft,
	}
}

// Equal compares p with another Post (or *Post) field by field, treating
// content as equal when both fragments have the same canonical HTML form.
// A map[string]any is compared structurally against Fields, raw content
// included. Any other value is never equal.
func (p Post) Equal(other any) bool {
	switch o := other.(type) {
	case Post:
		return p.equalPost(o)
	case *Post:
		return o != nil && p.equalPost(*o)
	case map[string]any:
		return reflect.DeepEqual(p.Fields(), o)
	default:
		return false
	}
}

func (p Post) equalPost(o Post) bool {
	return p.filepath == o.filepath &&
		p.publisher == o.publisher &&
		p.title == o.title &&
		p.canonicalURL == o.canonicalURL &&
		p.isDraft == o.isDraft &&
		p.tags.Equal(o.tags) &&
		p.categories.Equal(o.categories) &&
		markup.Equal(p.content, o.content)
}
