package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/postpub/internal/logfields"
	"git.home.luguber.info/inful/postpub/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	OutputFlags `embed:""`
	Debounce    time.Duration `help:"Quiet period before a burst of changes is published" default:"500ms"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return w.run(ctx, g, root)
}

func (w *WatchCmd) run(ctx context.Context, g *Global, root *CLI) error {
	logger := g.logger()
	_, site, err := loadSite(root.Workdir, logger)
	if err != nil {
		return err
	}
	r, err := newRun(site, root.Workdir, w.OutputFlags, false, logger)
	if err != nil {
		return err
	}
	defer r.Close()

	report, err := r.pipeline.Run(ctx)
	if err != nil {
		return err
	}
	if err := reportError(report); err != nil {
		logger.Warn("Initial publish had failures", logfields.Error(err))
	}
	if err := r.flushMetrics(); err != nil {
		logger.Warn("Failed to write metrics", logfields.Error(err))
	}

	watcher, err := watch.New(site.PostsDir, func(ctx context.Context, paths []string) {
		r.pipeline.RunPaths(ctx, paths)
		if err := r.flushMetrics(); err != nil {
			logger.Warn("Failed to write metrics", logfields.Error(err))
		}
	},
		watch.WithDebounce(w.Debounce),
		watch.WithFilter(r.codec.IsPost),
		watch.WithLogger(logger))
	if err != nil {
		return err
	}

	logger.Info("Watching for changes", logfields.Path(site.PostsDir))
	return watcher.Run(ctx)
}
