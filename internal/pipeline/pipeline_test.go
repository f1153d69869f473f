package pipeline

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/postpub/internal/codec"
	"git.home.luguber.info/inful/postpub/internal/frontmatter"
	"git.home.luguber.info/inful/postpub/internal/ledger"
	"git.home.luguber.info/inful/postpub/internal/metrics"
	"git.home.luguber.info/inful/postpub/internal/processor"
)

const baseURL = "https://test.fr"

type site struct {
	posts  string
	output string
	codec  *codec.Codec
}

func newSite(t *testing.T, ignore ...string) site {
	t.Helper()
	root := t.TempDir()
	s := site{posts: filepath.Join(root, "content"), output: filepath.Join(root, "public")}
	require.NoError(t, os.MkdirAll(s.posts, 0o755))
	c, err := codec.New(s.posts, codec.WithIgnoreGlobs(ignore))
	require.NoError(t, err)
	s.codec = c
	return s
}

func (s site) write(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(s.posts, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (s site) pipeline(t *testing.T, sink Sink, opts ...Option) *Pipeline {
	t.Helper()
	canonical, err := processor.NewCanonicalURL(baseURL, s.posts)
	require.NoError(t, err)
	content, err := processor.NewPathToURL(baseURL, s.posts)
	require.NoError(t, err)
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return New(s.codec, canonical, content, sink, opts...)
}

func postFile(title string, draft bool, body string) string {
	d := "false"
	if draft {
		d = "true"
	}
	return "---\ntitle: " + title + "\nis_draft: " + d + "\ntags: [go]\ncategories: [dev]\n---\n" + body
}

func TestRun_PublishesToJSONAndPersistsPublisher(t *testing.T) {
	s := newSite(t)
	src := s.write(t, "subdir1/subdir2/post.md", postFile("Hello", false, "See [t](../test.html).\n"))

	l, err := ledger.Open(":memory:")
	require.NoError(t, err)
	defer l.Close()

	at := time.Unix(1_700_000_000, 0).UTC()
	report, err := s.pipeline(t, NewJSONSink(s.output, s.posts), WithLedger(l), WithClock(func() time.Time { return at })).
		Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, report.Err())
	require.Equal(t, 1, report.Published())

	raw, err := os.ReadFile(filepath.Join(s.output, "subdir1", "subdir2", "post.json"))
	require.NoError(t, err)
	var doc Document
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Equal(t, "Hello", doc.Title)
	require.Equal(t, "https://test.fr/subdir1/subdir2/post.md", doc.CanonicalURL)
	require.Contains(t, doc.Content, `href="https://test.fr/subdir1/test.html"`)

	// The source file now carries the publisher id used for the output.
	data, err := os.ReadFile(src)
	require.NoError(t, err)
	fm, err := frontmatter.Split(data)
	require.NoError(t, err)
	meta, err := frontmatter.Parse(fm.Format, fm.Frontmatter)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"id": doc.PublisherID}, meta["post_publisher"])
	require.Equal(t, "See [t](../test.html).\n", string(fm.Body))

	entry, err := l.Get(context.Background(), doc.PublisherID)
	require.NoError(t, err)
	require.Equal(t, src, entry.Path)
	require.Equal(t, at, entry.PublishedAt)

	// A second run keeps the same publisher id.
	_, err = s.pipeline(t, NewJSONSink(s.output, s.posts)).Run(context.Background())
	require.NoError(t, err)
	again, err := s.codec.Load(src)
	require.NoError(t, err)
	require.Equal(t, doc.PublisherID, again.Publisher().ID.String())
}

func TestRun_MarkdownSink(t *testing.T) {
	s := newSite(t)
	s.write(t, "a/post.md", postFile("Hello", false, "Link to [b](b.html).\n"))

	_, err := s.pipeline(t, NewMarkdownSink(s.codec, s.output)).Run(context.Background())
	require.NoError(t, err)

	out, err := s.codec.Load(filepath.Join(s.output, "a", "post.md"))
	require.NoError(t, err)
	require.Equal(t, "Hello", out.Title())
	require.Contains(t, out.Content(), `href="https://test.fr/a/b.html"`)
}

func TestRun_SkipsIgnoredAndDraftsAndCollectsFailures(t *testing.T) {
	s := newSite(t, "private/*")
	s.write(t, "a.md", postFile("A", false, "a\n"))
	s.write(t, "b.md", postFile("B", true, "b\n"))
	s.write(t, "c.md", "no frontmatter\n")
	s.write(t, "private/d.md", postFile("D", false, "d\n"))
	s.write(t, "notes.txt", "not a post")

	reg := metrics.NewPrometheusRecorder(nil)
	report, err := s.pipeline(t, NewJSONSink(s.output, s.posts), WithRecorder(reg)).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 4)

	require.Equal(t, filepath.Join(s.posts, "a.md"), report.Results[0].Path)
	require.NoError(t, report.Results[0].Err)
	require.True(t, report.Results[1].Skipped)
	require.Equal(t, "draft", report.Results[1].Reason)
	require.True(t, codec.IsDecodeError(report.Results[2].Err))
	require.True(t, report.Results[3].Skipped)
	require.Equal(t, "ignored", report.Results[3].Reason)

	require.Equal(t, 1, report.Published())
	require.Equal(t, 2, report.Skipped())
	require.Len(t, report.Failed(), 1)
	require.Error(t, report.Err())

	_, err = os.Stat(filepath.Join(s.output, "b.json"))
	require.True(t, os.IsNotExist(err))
}

func TestRun_DraftsIncludedOnRequest(t *testing.T) {
	s := newSite(t)
	s.write(t, "b.md", postFile("B", true, "b\n"))

	report, err := s.pipeline(t, NewJSONSink(s.output, s.posts), WithDrafts(true)).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Published())
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	s := newSite(t)
	content := postFile("A", false, "a\n")
	src := s.write(t, "a.md", content)

	report, err := s.pipeline(t, NewJSONSink(s.output, s.posts), WithDryRun(true)).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Published())
	require.Equal(t, "https://test.fr/a.md", report.Results[0].Post.CanonicalURL())

	_, err = os.Stat(s.output)
	require.True(t, os.IsNotExist(err))
	raw, err := os.ReadFile(src)
	require.NoError(t, err)
	require.Equal(t, content, string(raw))
}

func TestRunPaths_WorkersKeepDiscoveryOrder(t *testing.T) {
	s := newSite(t)
	var paths []string
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		paths = append(paths, s.write(t, name+".md", postFile(name, false, name+"\n")))
	}

	report := s.pipeline(t, NewJSONSink(s.output, s.posts), WithWorkers(4)).RunPaths(context.Background(), paths)
	require.NoError(t, report.Err())
	for i, res := range report.Results {
		require.Equal(t, paths[i], res.Path)
		require.Equal(t, filepath.Base(paths[i][:len(paths[i])-3]), res.Post.Title())
	}
}

func TestRunPaths_CanceledContextStartsNothing(t *testing.T) {
	s := newSite(t)
	path := s.write(t, "a.md", postFile("A", false, "a\n"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := s.pipeline(t, NewJSONSink(s.output, s.posts)).RunPaths(ctx, []string{path})
	require.ErrorIs(t, report.Results[0].Err, context.Canceled)
}

type flakyLedger struct {
	failures int
	calls    int
}

func (f *flakyLedger) Record(_ context.Context, _ ledger.Entry) error {
	f.calls++
	if f.calls <= f.failures {
		return transient()
	}
	return nil
}

func TestRun_RetriesTransientLedgerFailures(t *testing.T) {
	s := newSite(t)
	s.write(t, "a.md", postFile("A", false, "a\n"))

	l := &flakyLedger{failures: 2}
	report, err := s.pipeline(t, NewJSONSink(s.output, s.posts),
		WithLedger(l),
		WithRetry(RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond})).
		Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, report.Err())
	require.Equal(t, 3, l.calls)

	l = &flakyLedger{failures: 1}
	report, err = s.pipeline(t, NewJSONSink(s.output, s.posts), WithLedger(l)).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Failed(), 1)
	require.Equal(t, 1, l.calls)
}
