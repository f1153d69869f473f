// Package processor derives publish-ready posts: it assigns canonical URLs
// and rewrites relative references in rendered content into absolute URLs.
package processor

import (
	"git.home.luguber.info/inful/postpub/internal/foundation/errors"
	"git.home.luguber.info/inful/postpub/internal/post"
)

// Processor is a pure transformation of a post.
type Processor interface {
	Process(p post.Post) (post.Post, error)
}

// Func adapts a function to Processor.
type Func func(p post.Post) (post.Post, error)

func (f Func) Process(p post.Post) (post.Post, error) { return f(p) }

// Chain applies procs in order and stops at the first error.
func Chain(procs ...Processor) Processor {
	return Func(func(p post.Post) (post.Post, error) {
		var err error
		for _, proc := range procs {
			if p, err = proc.Process(p); err != nil {
				return post.Post{}, err
			}
		}
		return p, nil
	})
}

// IsProcessingError reports whether err is a post processing failure.
func IsProcessingError(err error) bool {
	return errors.HasCategory(err, errors.CategoryProcessing)
}
