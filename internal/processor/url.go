package processor

import (
	"net/url"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/postpub/internal/foundation/errors"
)

// Resolver maps file system locations under the posts directory to URLs
// under the site base URL.
type Resolver struct {
	base     *url.URL
	postsDir string
}

// NewResolver validates baseURL and makes postsDir absolute.
func NewResolver(baseURL, postsDir string) (*Resolver, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.ConfigError("base url must be an absolute url").
			WithCause(err).
			WithContext("base_url", baseURL).Build()
	}
	// The base URL is a directory: https://x/blog behaves as https://x/blog/.
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
		if u.RawPath != "" {
			u.RawPath += "/"
		}
	}
	abs, err := filepath.Abs(postsDir)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "invalid posts directory").
			WithContext("path", postsDir).Build()
	}
	return &Resolver{base: u, postsDir: abs}, nil
}

// PostsDir returns the absolute posts directory.
func (r *Resolver) PostsDir() string { return r.postsDir }

// AbsoluteURL resolves ref to a URL under the base URL.
//
// ref is a URL reference as found in an href or src attribute: its path is
// percent-decoded before the file system algebra and encoded once in the
// result, and a query or fragment is carried over unchanged. An absolute
// file system path is used as-is, "." means from itself, an empty path means
// the directory containing from and any other relative path is taken
// relative to that directory. Without from, relative refs resolve against
// the working directory. Exactly one trailing slash is removed from the
// path, unless a query or fragment follows a directory reference.
func (r *Resolver) AbsoluteURL(ref, from string) string {
	ref, suffix := splitSuffix(ref)
	if decoded, err := url.PathUnescape(ref); err == nil {
		ref = decoded
	}
	dirRef := ref == "" || strings.HasSuffix(ref, "/")

	var abs string
	switch {
	case filepath.IsAbs(ref):
		abs = filepath.Clean(ref)
	case from != "" && ref == ".":
		abs = filepath.Clean(from)
	case from != "":
		abs = filepath.Join(filepath.Dir(from), ref)
	default:
		var err error
		if abs, err = filepath.Abs(ref); err != nil {
			abs = filepath.Clean(ref)
		}
	}

	resolved := r.urlFor(abs)
	if suffix != "" && dirRef {
		resolved += "/"
	}
	return resolved + suffix
}

// PathURL maps a file system path (not a URL reference) to its URL under the
// base URL. Relative paths resolve against the working directory.
func (r *Resolver) PathURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	return r.urlFor(abs)
}

func (r *Resolver) urlFor(abs string) string {
	rel, err := filepath.Rel(r.postsDir, abs)
	if err != nil {
		rel = abs
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		rel = ""
	}
	return strings.TrimSuffix(r.base.ResolveReference(&url.URL{Path: rel}).String(), "/")
}

// Contains reports whether path lies inside the posts directory.
func (r *Resolver) Contains(path string) bool {
	if !filepath.IsAbs(path) {
		return false
	}
	rel, err := filepath.Rel(r.postsDir, filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// splitSuffix separates a query or fragment from a reference.
func splitSuffix(ref string) (string, string) {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		return ref[:i], ref[i:]
	}
	return ref, ""
}

// IsAbsoluteURL reports whether s has both a scheme and a host.
func IsAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}
