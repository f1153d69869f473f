// Package pipeline publishes every post under a posts directory: it decodes,
// assigns the canonical URL, rewrites content links, writes the result to a
// sink and persists publisher bookkeeping.
package pipeline

import (
	"context"
	stderrors "errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/postpub/internal/codec"
	"git.home.luguber.info/inful/postpub/internal/foundation/errors"
	"git.home.luguber.info/inful/postpub/internal/ledger"
	"git.home.luguber.info/inful/postpub/internal/logfields"
	"git.home.luguber.info/inful/postpub/internal/metrics"
	"git.home.luguber.info/inful/postpub/internal/post"
	"git.home.luguber.info/inful/postpub/internal/processor"
)

// Recorder persists publications. *ledger.SQLiteLedger implements it.
type Recorder interface {
	Record(ctx context.Context, e ledger.Entry) error
}

// Result is the outcome for one candidate file.
type Result struct {
	Path    string
	Post    post.Post
	Skipped bool
	Reason  string
	Err     error
}

// Report collects results in discovery order.
type Report struct {
	Results  []Result
	Duration time.Duration
}

// Published counts posts that went through every stage.
func (r *Report) Published() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil && !res.Skipped {
			n++
		}
	}
	return n
}

// Skipped counts ignored and draft posts.
func (r *Report) Skipped() int {
	n := 0
	for _, res := range r.Results {
		if res.Skipped {
			n++
		}
	}
	return n
}

// Failed returns the results carrying an error.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Err joins every per-post error, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Failed() {
		errs = append(errs, res.Err)
	}
	return stderrors.Join(errs...)
}

// Pipeline runs posts through the publishing stages. Posts are independent;
// with more than one worker they are processed concurrently.
type Pipeline struct {
	codec         *codec.Codec
	canonical     processor.Processor
	content       processor.Processor
	sink          Sink
	ledger        Recorder
	recorder      metrics.Recorder
	logger        *slog.Logger
	workers       int
	dryRun        bool
	includeDrafts bool
	retry         RetryPolicy
	now           func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWorkers bounds the number of posts processed concurrently.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithLedger records every publication.
func WithLedger(l Recorder) Option { return func(p *Pipeline) { p.ledger = l } }

// WithRecorder injects a metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithLogger sets the logger (slog.Default otherwise).
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithDryRun runs decode and processing only; nothing is written.
func WithDryRun(dry bool) Option { return func(p *Pipeline) { p.dryRun = dry } }

// WithDrafts publishes posts marked is_draft as well.
func WithDrafts(include bool) Option { return func(p *Pipeline) { p.includeDrafts = include } }

// WithRetry sets the retry policy of the sink and ledger stages.
func WithRetry(policy RetryPolicy) Option { return func(p *Pipeline) { p.retry = policy } }

// WithClock overrides the time source used for ledger entries.
func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

// New assembles a pipeline.
func New(c *codec.Codec, canonical, content processor.Processor, sink Sink, opts ...Option) *Pipeline {
	p := &Pipeline{
		codec:     c,
		canonical: canonical,
		content:   content,
		sink:      sink,
		recorder:  metrics.NoopRecorder{},
		logger:    slog.Default(),
		workers:   1,
		retry:     DefaultRetryPolicy(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Discover lists every post file under the posts directory in lexical order.
func (p *Pipeline) Discover() ([]string, error) {
	var paths []string
	root := p.codec.PostsDir()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && p.codec.IsPost(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to scan posts directory").
			WithContext("path", root).Build()
	}
	return paths, nil
}

// Run discovers and publishes every post.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	paths, err := p.Discover()
	if err != nil {
		return nil, err
	}
	p.logger.Info("Discovered posts", logfields.Path(p.codec.PostsDir()), logfields.Count(len(paths)))
	return p.RunPaths(ctx, paths), nil
}

// RunPaths publishes the given files. Cancelling ctx stops feeding new
// files; files already in progress finish. Files never started carry the
// context error.
func (p *Pipeline) RunPaths(ctx context.Context, paths []string) *Report {
	start := time.Now()
	results := make([]Result, len(paths))
	started := make([]bool, len(paths))

	workers := min(p.workers, max(len(paths), 1))
	p.recorder.SetWorkers(workers)

	jobs := make(chan int)
	var group WorkerGroup
	for range workers {
		group.Go(func() {
			for i := range jobs {
				results[i] = p.ProcessOne(ctx, paths[i])
			}
		})
	}

feed:
	for i := range paths {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
			started[i] = true
		}
	}
	close(jobs)
	group.Wait()

	for i, ok := range started {
		if !ok {
			results[i] = Result{Path: paths[i], Err: ctx.Err()}
		}
	}

	report := &Report{Results: results, Duration: time.Since(start)}
	p.recorder.ObserveRunDuration(report.Duration)
	p.logger.Info("Publish run finished",
		logfields.Count(report.Published()),
		slog.Int("skipped", report.Skipped()),
		slog.Int("failed", len(report.Failed())),
		logfields.DurationMS(float64(report.Duration.Milliseconds())))
	return report
}

// ProcessOne publishes a single file.
func (p *Pipeline) ProcessOne(ctx context.Context, path string) Result {
	res := p.process(ctx, path)
	switch {
	case res.Err != nil:
		p.recorder.IncPostResult(metrics.ResultFailed)
		p.logger.Error("Post failed", logfields.Path(path), logfields.Error(res.Err))
	case res.Skipped:
		p.recorder.IncPostResult(metrics.ResultSkipped)
		p.logger.Debug("Post skipped", logfields.Path(path), slog.String("reason", res.Reason))
	default:
		p.recorder.IncPostResult(metrics.ResultPublished)
		p.logger.Info("Post published",
			logfields.Path(path),
			logfields.Title(res.Post.Title()),
			logfields.CanonicalURL(res.Post.CanonicalURL()),
			logfields.PublisherID(res.Post.Publisher().ID.String()))
	}
	return res
}

func (p *Pipeline) process(ctx context.Context, path string) Result {
	res := Result{Path: path}
	if !p.codec.IsPublishable(path) {
		res.Skipped, res.Reason = true, "ignored"
		return res
	}

	var decoded post.Post
	if res.Err = p.stage(metrics.StageDecode, path, func() (err error) {
		decoded, err = p.codec.Load(path)
		return err
	}); res.Err != nil {
		return res
	}
	if decoded.IsDraft() && !p.includeDrafts {
		res.Post, res.Skipped, res.Reason = decoded, true, "draft"
		return res
	}

	out := decoded
	if res.Err = p.stage(metrics.StageCanonicalURL, path, func() (err error) {
		out, err = p.canonical.Process(out)
		return err
	}); res.Err != nil {
		return res
	}
	if res.Err = p.stage(metrics.StageContent, path, func() (err error) {
		out, err = p.content.Process(out)
		return err
	}); res.Err != nil {
		return res
	}
	res.Post = out

	if p.dryRun {
		return res
	}
	if res.Err = p.stage(metrics.StageSink, path, func() error {
		return p.retry.do(ctx, p.logger, metrics.StageSink, path, func() error {
			return p.sink.Write(ctx, out)
		})
	}); res.Err != nil {
		return res
	}
	if res.Err = p.stage(metrics.StageAppData, path, func() error {
		return p.codec.DumpAppData(decoded)
	}); res.Err != nil {
		return res
	}
	if p.ledger != nil {
		res.Err = p.stage(metrics.StageLedger, path, func() error {
			return p.retry.do(ctx, p.logger, metrics.StageLedger, path, func() error {
				return p.ledger.Record(ctx, ledger.EntryFor(out, p.now()))
			})
		})
	}
	return res
}

func (p *Pipeline) stage(name, path string, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)
	p.recorder.ObserveStageDuration(name, d)
	p.logger.Debug("Stage finished",
		logfields.Path(path),
		logfields.Stage(name),
		logfields.DurationMS(float64(d.Microseconds())/1000),
		logfields.Error(err))
	return err
}
