package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"git.home.luguber.info/inful/postpub/internal/foundation/errors"
)

// Environment overrides for site settings.
const (
	EnvBaseURL  = "POSTPUB_BASEURL"
	EnvPostsDir = "POSTPUB_POSTSDIR"
)

const defaultContentDir = "content"

// Site holds the settings that configure the codec and processors.
type Site struct {
	BaseURL     string
	PostsDir    string
	IgnoreGlobs []string
	Codec       string
	Frontmatter string
}

// SiteFromTree extracts Site from a loaded tree. Relative posts directories
// resolve against workdir.
//
//	baseURL (or baseurl)          -> BaseURL, overridden by POSTPUB_BASEURL
//	postpub.postsdir | contentDir -> PostsDir, overridden by POSTPUB_POSTSDIR
//	postpub.ignore                -> IgnoreGlobs
//	postpub.codec                 -> Codec (generic, hugo)
//	postpub.frontmatter           -> Frontmatter (yaml, toml, json)
func SiteFromTree(tree Tree, workdir string) (Site, error) {
	site := Site{
		BaseURL:     firstString(tree, "baseURL", "baseurl", "baseUrl"),
		PostsDir:    lookupString(tree, "postpub", "postsdir"),
		Codec:       strings.ToLower(lookupString(tree, "postpub", "codec")),
		Frontmatter: strings.ToLower(lookupString(tree, "postpub", "frontmatter")),
	}
	if site.PostsDir == "" {
		site.PostsDir = firstString(tree, "contentDir", "contentdir")
	}
	if site.PostsDir == "" {
		site.PostsDir = defaultContentDir
	}
	if site.Codec == "" {
		site.Codec = "generic"
	}
	if site.Frontmatter == "" {
		site.Frontmatter = "yaml"
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		site.BaseURL = v
	}
	if v := os.Getenv(EnvPostsDir); v != "" {
		site.PostsDir = v
	}
	if !filepath.IsAbs(site.PostsDir) {
		site.PostsDir = filepath.Join(workdir, site.PostsDir)
	}

	ignore, ok := lookup(tree, "postpub", "ignore")
	if ok {
		globs, valid := toStrings(ignore)
		if !valid {
			return Site{}, errors.ConfigError("postpub.ignore must be a list of strings").Build()
		}
		site.IgnoreGlobs = globs
	}

	if err := site.Validate(); err != nil {
		return Site{}, err
	}
	return site, nil
}

// Validate checks the settings.
func (s Site) Validate() error {
	err := validation.ValidateStruct(&s,
		validation.Field(&s.BaseURL, validation.Required, is.URL, validation.By(absoluteURL)),
		validation.Field(&s.PostsDir, validation.Required),
		validation.Field(&s.Codec, validation.In("generic", "hugo")),
		validation.Field(&s.Frontmatter, validation.In("yaml", "toml", "json")),
	)
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "invalid site configuration: "+err.Error()).
			UserAction().Build()
	}
	return nil
}

func absoluteURL(value any) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return validation.NewError("postpub.site.base_url_absolute", "must be an absolute URL")
	}
	return nil
}

func lookup(tree Tree, keys ...string) (any, bool) {
	var cur any = tree
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[k]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func lookupString(tree Tree, keys ...string) string {
	v, _ := lookup(tree, keys...)
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func firstString(tree Tree, keys ...string) string {
	for _, k := range keys {
		if s := lookupString(tree, k); s != "" {
			return s
		}
	}
	return ""
}

func toStrings(v any) ([]string, bool) {
	switch vv := v.(type) {
	case []string:
		return vv, true
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case string:
		return []string{vv}, true
	default:
		return nil, false
	}
}
