package processor

import (
	"fmt"

	"git.home.luguber.info/inful/postpub/internal/foundation/errors"
	"git.home.luguber.info/inful/postpub/internal/post"
)

// CanonicalURL assigns each post the URL derived from its location under
// the posts directory.
type CanonicalURL struct {
	resolver *Resolver
}

// NewCanonicalURL creates a CanonicalURL processor.
func NewCanonicalURL(baseURL, postsDir string) (*CanonicalURL, error) {
	r, err := NewResolver(baseURL, postsDir)
	if err != nil {
		return nil, err
	}
	return &CanonicalURL{resolver: r}, nil
}

func (c *CanonicalURL) Process(p post.Post) (post.Post, error) {
	if !c.resolver.Contains(p.Filepath()) {
		return post.Post{}, errors.ProcessingError(
			fmt.Sprintf("%s is not in %s.", p.Filepath(), c.resolver.PostsDir())).
			WithContext("path", p.Filepath()).Build()
	}
	return p.WithCanonicalURL(c.resolver.PathURL(p.Filepath()))
}
