package processor

import (
	"strings"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/postpub/internal/foundation/errors"
	"git.home.luguber.info/inful/postpub/internal/markup"
	"git.home.luguber.info/inful/postpub/internal/post"
)

// excludedHrefPrefixes are href values left untouched besides absolute URLs.
var excludedHrefPrefixes = []string{"tel:", "mailto:", "#"}

// PathToURL rewrites relative href and src references in post content into
// absolute URLs, resolved from the post's own location.
type PathToURL struct {
	resolver *Resolver
}

// NewPathToURL creates a PathToURL processor.
func NewPathToURL(baseURL, postsDir string) (*PathToURL, error) {
	r, err := NewResolver(baseURL, postsDir)
	if err != nil {
		return nil, err
	}
	return &PathToURL{resolver: r}, nil
}

func (c *PathToURL) Process(p post.Post) (post.Post, error) {
	nodes, err := markup.ParseFragment(p.Content())
	if err != nil {
		return post.Post{}, errors.WrapError(err, errors.CategoryProcessing, "failed to parse post content").
			WithContext("path", p.Filepath()).Build()
	}

	markup.Walk(nodes, func(n *html.Node) {
		if href, ok := markup.Attr(n, "href"); ok && rewriteHref(href) {
			markup.SetAttr(n, "href", c.resolver.AbsoluteURL(href, p.Filepath()))
		}
		if src, ok := markup.Attr(n, "src"); ok && !IsAbsoluteURL(src) {
			markup.SetAttr(n, "src", c.resolver.AbsoluteURL(src, p.Filepath()))
		}
	})

	content, err := markup.RenderFragment(nodes)
	if err != nil {
		return post.Post{}, errors.WrapError(err, errors.CategoryProcessing, "failed to render post content").
			WithContext("path", p.Filepath()).Build()
	}
	return p.WithContent(content), nil
}

func rewriteHref(href string) bool {
	if IsAbsoluteURL(href) {
		return false
	}
	for _, prefix := range excludedHrefPrefixes {
		if strings.HasPrefix(href, prefix) {
			return false
		}
	}
	return true
}
