package commands

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/postpub/internal/config"
	"git.home.luguber.info/inful/postpub/internal/foundation/errors"
	"git.home.luguber.info/inful/postpub/internal/ledger"
	"git.home.luguber.info/inful/postpub/internal/pipeline"
)

const helloPost = `---
title: Hello
is_draft: false
tags: [go]
categories: [dev]
---
Hello, see [the other post](other.md).
`

func newSite(t *testing.T) string {
	t.Helper()
	t.Setenv(config.EnvBaseURL, "")
	t.Setenv(config.EnvPostsDir, "")
	t.Setenv(EnvLogLevel, "")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"),
		[]byte("baseURL = \"https://test.fr\"\n[postpub]\npostsdir = \"posts\"\nignore = [\"drafts/**\"]\n"), 0o644))
	writePost(t, dir, "hello.md", helloPost)
	return dir
}

func writePost(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, "posts", rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kong.Name("postpub"), kong.Bind(&cli), kong.Vars{"version": "test"})
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	var out bytes.Buffer
	err = kctx.Run(&Global{Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), Stdout: &out})
	return out.String(), err
}

func readDocument(t *testing.T, path string) pipeline.Document {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc pipeline.Document
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func TestPublishWritesJSONAndPublisher(t *testing.T) {
	dir := newSite(t)
	writePost(t, dir, "drafts/wip.md", helloPost)

	_, err := run(t, "-w", dir, "publish", "--ledger", "ledger.db", "--metrics-file", "metrics.prom")
	require.NoError(t, err)

	doc := readDocument(t, filepath.Join(dir, "public", "hello.json"))
	require.Equal(t, "Hello", doc.Title)
	require.Equal(t, "https://test.fr/hello.md", doc.CanonicalURL)
	require.Contains(t, doc.Content, `href="https://test.fr/other.md"`)
	require.NoFileExists(t, filepath.Join(dir, "public", "drafts", "wip.json"))

	src, err := os.ReadFile(filepath.Join(dir, "posts", "hello.md"))
	require.NoError(t, err)
	require.Contains(t, string(src), "post_publisher")
	require.Contains(t, string(src), doc.PublisherID)

	l, err := ledger.Open(filepath.Join(dir, "ledger.db"))
	require.NoError(t, err)
	defer func() { require.NoError(t, l.Close()) }()
	entry, err := l.Get(context.Background(), doc.PublisherID)
	require.NoError(t, err)
	require.Equal(t, doc.CanonicalURL, entry.CanonicalURL)

	metricsText, err := os.ReadFile(filepath.Join(dir, "metrics.prom"))
	require.NoError(t, err)
	require.Contains(t, string(metricsText), `postpub_posts_total{result="published"} 1`)
}

func TestPublishKeepsPublisherAcrossRuns(t *testing.T) {
	dir := newSite(t)
	_, err := run(t, "-w", dir, "publish")
	require.NoError(t, err)
	first := readDocument(t, filepath.Join(dir, "public", "hello.json"))

	_, err = run(t, "-w", dir, "publish")
	require.NoError(t, err)
	second := readDocument(t, filepath.Join(dir, "public", "hello.json"))
	require.Equal(t, first.PublisherID, second.PublisherID)
}

func TestPublishDryRunWritesNothing(t *testing.T) {
	dir := newSite(t)
	_, err := run(t, "-w", dir, "publish", "--dry-run")
	require.NoError(t, err)
	require.NoDirExists(t, filepath.Join(dir, "public"))

	src, err := os.ReadFile(filepath.Join(dir, "posts", "hello.md"))
	require.NoError(t, err)
	require.Equal(t, helloPost, string(src))
}

func TestPublishMarkdownFormat(t *testing.T) {
	dir := newSite(t)
	_, err := run(t, "-w", dir, "publish", "--format", "markdown", "-o", "out")
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "out", "hello.md"))
	require.NoError(t, err)
	require.Contains(t, string(data), "title: Hello")
	require.Contains(t, string(data), "https://test.fr/other.md")
}

func TestPublishReportsInvalidPost(t *testing.T) {
	dir := newSite(t)
	writePost(t, dir, "broken.md", "---\ntitle: Broken\n---\nbody\n")

	_, err := run(t, "-w", dir, "publish")
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryDecode))
	require.Equal(t, 3, errors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
	require.FileExists(t, filepath.Join(dir, "public", "hello.json"))
}

func TestPublishWithoutConfiguration(t *testing.T) {
	t.Setenv(config.EnvBaseURL, "")
	_, err := run(t, "-w", t.TempDir(), "publish")
	require.Error(t, err)
	require.True(t, config.IsNotFound(err))
}

func TestConfigPrintsMergedTree(t *testing.T) {
	dir := newSite(t)
	out, err := run(t, "-w", dir, "config")
	require.NoError(t, err)

	var tree map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &tree))
	require.Equal(t, "https://test.fr", tree["baseURL"])
	require.Contains(t, tree, "postpub")
}

func TestConfigSiteSettings(t *testing.T) {
	dir := newSite(t)
	t.Setenv(config.EnvBaseURL, "https://override.example")
	out, err := run(t, "-w", dir, "config", "--site", "--format", "json")
	require.NoError(t, err)

	var site map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &site))
	require.Equal(t, "https://override.example", site["baseURL"])
	require.Equal(t, "generic", site["codec"])
	require.Equal(t, filepath.Join(dir, "posts"), site["postsdir"])
}

func TestWatchPublishesNewPosts(t *testing.T) {
	dir := newSite(t)
	var cli CLI
	cli.Workdir = dir
	cmd := &WatchCmd{OutputFlags: OutputFlags{Output: "public", Format: "json", Workers: 1}, Debounce: 50 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- cmd.run(ctx, &Global{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}, &cli)
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "public", "hello.json"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	out := filepath.Join(dir, "public", "later.json")
	require.Eventually(t, func() bool {
		if _, err := os.Stat(out); err == nil {
			return true
		}
		writePost(t, dir, "later.md", helloPost)
		return false
	}, 5*time.Second, 200*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestLedgerListAndShow(t *testing.T) {
	dir := newSite(t)
	writePost(t, dir, "second.md", helloPost)
	_, err := run(t, "-w", dir, "publish", "--ledger", "ledger.db")
	require.NoError(t, err)

	out, err := run(t, "-w", dir, "ledger", "--db", "ledger.db", "--format", "json", "list")
	require.NoError(t, err)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
	require.Equal(t, filepath.Join(dir, "posts", "hello.md"), entries[0]["path"])
	require.Equal(t, "https://test.fr/second.md", entries[1]["canonical_url"])

	id, ok := entries[0]["publisher_id"].(string)
	require.True(t, ok)
	out, err = run(t, "-w", dir, "ledger", "--db", "ledger.db", "show", id)
	require.NoError(t, err)
	var shown map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &shown))
	require.Equal(t, "Hello", shown["title"])
	require.Equal(t, "https://test.fr/hello.md", shown["canonical_url"])

	_, err = run(t, "-w", dir, "ledger", "--db", "ledger.db", "show", "00000000-0000-0000-0000-000000000000")
	require.True(t, errors.HasCategory(err, errors.CategoryNotFound))

	_, err = run(t, "-w", dir, "ledger", "--db", "missing.db", "list")
	require.True(t, errors.HasCategory(err, errors.CategoryNotFound))
	require.NoFileExists(t, filepath.Join(dir, "missing.db"))
}
