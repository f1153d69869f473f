package commands

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/postpub/internal/codec"
	"git.home.luguber.info/inful/postpub/internal/config"
	"git.home.luguber.info/inful/postpub/internal/foundation/errors"
	"git.home.luguber.info/inful/postpub/internal/frontmatter"
	"git.home.luguber.info/inful/postpub/internal/logfields"
	"git.home.luguber.info/inful/postpub/internal/processor"
)

// EnvLogLevel selects debug logging when set to "debug".
const EnvLogLevel = "POSTPUB_LOG_LEVEL"

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
	Stdout io.Writer
}

// CLI definition & global flags - used by commands that need access to root config.
type CLI struct {
	Workdir string           `short:"w" help:"Site directory containing the Hugo configuration" default:"." type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Publish PublishCmd `cmd:"" help:"Publish every post under the posts directory"`
	Watch   WatchCmd   `cmd:"" help:"Publish, then re-publish posts whenever they change"`
	Config  ConfigCmd  `cmd:"" help:"Print the merged site configuration"`
	Ledger  LedgerCmd  `cmd:"" help:"Inspect the publication ledger"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose || strings.EqualFold(os.Getenv(EnvLogLevel), "debug") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

func (g *Global) logger() *slog.Logger {
	if g == nil || g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

func (g *Global) stdout() io.Writer {
	if g == nil || g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

// loadSite reads .env files and the Hugo configuration under workdir.
func loadSite(workdir string, logger *slog.Logger) (config.Tree, config.Site, error) {
	loaded, err := config.LoadEnv(workdir)
	if err != nil {
		return nil, config.Site{}, err
	}
	for _, path := range loaded {
		logger.Debug("Loaded environment file", logfields.Path(path))
	}

	loader := config.NewHugoLoader(workdir)
	tree, err := loader.Load()
	if err != nil {
		return nil, config.Site{}, err
	}
	site, err := config.SiteFromTree(tree, loader.Workdir())
	if err != nil {
		return nil, config.Site{}, err
	}
	logger.Debug("Site configuration loaded",
		slog.String("base_url", site.BaseURL),
		logfields.Path(site.PostsDir),
		slog.String("codec", site.Codec))
	return tree, site, nil
}

// newCodec builds the codec described by site.
func newCodec(site config.Site) (*codec.Codec, error) {
	variant, err := codec.VariantByName(site.Codec)
	if err != nil {
		return nil, err
	}
	format, err := frontmatter.ParseFormat(site.Frontmatter)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "invalid postpub.frontmatter").UserAction().Build()
	}
	return codec.New(site.PostsDir,
		codec.WithIgnoreGlobs(site.IgnoreGlobs),
		codec.WithVariant(variant),
		codec.WithDumpFormat(format))
}

// newProcessors builds the canonical URL and content processors for site.
func newProcessors(site config.Site) (processor.Processor, processor.Processor, error) {
	canonical, err := processor.NewCanonicalURL(site.BaseURL, site.PostsDir)
	if err != nil {
		return nil, nil, err
	}
	content, err := processor.NewPathToURL(site.BaseURL, site.PostsDir)
	if err != nil {
		return nil, nil, err
	}
	return canonical, content, nil
}

// resolve makes path absolute relative to workdir.
func resolve(workdir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workdir, path)
}
