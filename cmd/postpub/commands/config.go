package commands

import (
	"fmt"

	"git.home.luguber.info/inful/postpub/internal/foundation/errors"
	"git.home.luguber.info/inful/postpub/internal/frontmatter"
)

// ConfigCmd implements the 'config' command.
type ConfigCmd struct {
	Format string `help:"Output format" enum:"yaml,toml,json" default:"yaml"`
	Site   bool   `help:"Print only the settings postpub uses"`
}

func (c *ConfigCmd) Run(g *Global, root *CLI) error {
	tree, site, err := loadSite(root.Workdir, g.logger())
	if err != nil {
		return err
	}
	format, err := frontmatter.ParseFormat(c.Format)
	if err != nil {
		return errors.WrapError(err, errors.CategoryValidation, "invalid output format").Build()
	}

	out := tree
	if c.Site {
		out = map[string]any{
			"baseURL":     site.BaseURL,
			"postsdir":    site.PostsDir,
			"ignore":      site.IgnoreGlobs,
			"codec":       site.Codec,
			"frontmatter": site.Frontmatter,
		}
	}
	data, err := frontmatter.Serialize(format, out, frontmatter.Style{Newline: "\n"})
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to render configuration").Build()
	}
	_, err = fmt.Fprint(g.stdout(), string(data))
	return err
}
