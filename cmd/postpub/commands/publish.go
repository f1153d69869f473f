package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/postpub/internal/codec"
	"git.home.luguber.info/inful/postpub/internal/config"
	"git.home.luguber.info/inful/postpub/internal/foundation/errors"
	"git.home.luguber.info/inful/postpub/internal/ledger"
	"git.home.luguber.info/inful/postpub/internal/logfields"
	"git.home.luguber.info/inful/postpub/internal/metrics"
	"git.home.luguber.info/inful/postpub/internal/pipeline"
)

// OutputFlags are shared by publish and watch.
type OutputFlags struct {
	Output      string `short:"o" help:"Output directory" default:"public"`
	Format      string `help:"Output format" enum:"json,markdown" default:"json"`
	Workers     int    `help:"Number of posts processed concurrently" default:"1"`
	Ledger      string `help:"SQLite database recording publications (optional)"`
	MetricsFile string `name:"metrics-file" help:"Write Prometheus metrics to this file after each run (optional)"`
	Drafts      bool   `help:"Publish posts marked is_draft as well"`
	Retries     int    `help:"Retries of transient ledger and output failures" default:"2"`
}

// PublishCmd implements the 'publish' command.
type PublishCmd struct {
	OutputFlags `embed:""`
	DryRun      bool `name:"dry-run" help:"Decode and process posts without writing anything"`
}

func (p *PublishCmd) Run(g *Global, root *CLI) error {
	logger := g.logger()
	_, site, err := loadSite(root.Workdir, logger)
	if err != nil {
		return err
	}
	r, err := newRun(site, root.Workdir, p.OutputFlags, p.DryRun, logger)
	if err != nil {
		return err
	}
	defer r.Close()

	report, err := r.pipeline.Run(context.Background())
	if err != nil {
		return err
	}
	if err := r.flushMetrics(); err != nil {
		return err
	}
	return reportError(report)
}

// run bundles the collaborators of a publish run.
type run struct {
	pipeline    *pipeline.Pipeline
	codec       *codec.Codec
	ledger      *ledger.SQLiteLedger
	prom        *metrics.PrometheusRecorder
	metricsFile string
	logger      *slog.Logger
}

func newRun(site config.Site, workdir string, flags OutputFlags, dryRun bool, logger *slog.Logger) (*run, error) {
	c, err := newCodec(site)
	if err != nil {
		return nil, err
	}
	canonical, content, err := newProcessors(site)
	if err != nil {
		return nil, err
	}

	out := resolve(workdir, flags.Output)
	var sink pipeline.Sink
	switch flags.Format {
	case "markdown":
		sink = pipeline.NewMarkdownSink(c, out)
	default:
		sink = pipeline.NewJSONSink(out, site.PostsDir)
	}

	r := &run{codec: c, metricsFile: resolve(workdir, flags.MetricsFile), logger: logger}
	opts := []pipeline.Option{
		pipeline.WithWorkers(flags.Workers),
		pipeline.WithDryRun(dryRun),
		pipeline.WithDrafts(flags.Drafts),
		pipeline.WithLogger(logger),
		pipeline.WithRetry(pipeline.RetryPolicy{MaxAttempts: flags.Retries + 1, Backoff: 200 * time.Millisecond}),
	}
	if flags.Ledger != "" && !dryRun {
		l, err := ledger.Open(resolve(workdir, flags.Ledger))
		if err != nil {
			return nil, err
		}
		r.ledger = l
		opts = append(opts, pipeline.WithLedger(l))
	}
	if r.metricsFile != "" {
		r.prom = metrics.NewPrometheusRecorder(nil)
		opts = append(opts, pipeline.WithRecorder(r.prom))
	}
	r.pipeline = pipeline.New(c, canonical, content, sink, opts...)
	return r, nil
}

func (r *run) flushMetrics() error {
	if r.prom == nil {
		return nil
	}
	if err := r.prom.WriteTextfile(r.metricsFile); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write metrics file").
			WithContext("path", r.metricsFile).Build()
	}
	r.logger.Debug("Metrics written", logfields.Path(r.metricsFile))
	return nil
}

// Close releases the ledger, if any.
func (r *run) Close() {
	if r.ledger != nil {
		if err := r.ledger.Close(); err != nil {
			r.logger.Warn("Failed to close ledger", logfields.Error(err))
		}
	}
}

// reportError summarizes failed posts as one classified error whose category
// is the one of the first failure.
func reportError(report *pipeline.Report) error {
	failed := report.Failed()
	if len(failed) == 0 {
		return nil
	}
	return errors.WrapError(report.Err(), errors.GetCategory(failed[0].Err),
		fmt.Sprintf("%d of %d posts failed", len(failed), len(report.Results))).
		WithContext("path", failed[0].Path).Build()
}
