package codec

import (
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/postpub/internal/foundation/errors"
	"git.home.luguber.info/inful/postpub/internal/frontmatter"
)

const publisherID = "6a1c9c64-2c1f-4c55-9a7a-3b8e4f4a9e10"

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newCodec(t *testing.T, dir string, opts ...Option) *Codec {
	t.Helper()
	c, err := New(dir, opts...)
	require.NoError(t, err)
	return c
}

func requireDecodeMessage(t *testing.T, err error, message string) {
	t.Helper()
	require.Error(t, err)
	require.True(t, IsDecodeError(err), "expected decode error, got %v", err)
	require.Equal(t, message, errors.MessageOf(err))
}

const yamlPost = `---
title: Hello
is_draft: false
tags: [go, blog]
categories: [dev]
post_publisher:
  id: ` + publisherID + `
---
# Heading

See [other](../other.html).
`

func TestLoad_EveryFrontmatterFormat(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"yaml.md": yamlPost,
		"toml.md": "+++\ntitle = \"Hello\"\nis_draft = false\ntags = [\"go\", \"blog\"]\ncategories = [\"dev\"]\n\n[post_publisher]\nid = \"" + publisherID + "\"\n+++\n# Heading\n\nSee [other](../other.html).\n",
		"json.md": "{\n\"title\": \"Hello\",\n\"is_draft\": false,\n\"tags\": [\"go\", \"blog\"],\n\"categories\": [\"dev\"],\n\"post_publisher\": {\"id\": \"" + publisherID + "\"}\n}\n# Heading\n\nSee [other](../other.html).\n",
	}
	c := newCodec(t, dir)

	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			p, err := c.Load(writeFile(t, filepath.Join(dir, name), content))
			require.NoError(t, err)
			require.Equal(t, "Hello", p.Title())
			require.False(t, p.IsDraft())
			require.Equal(t, []string{"blog", "go"}, p.Tags())
			require.Equal(t, []string{"dev"}, p.Categories())
			require.Equal(t, publisherID, p.Publisher().ID.String())
			require.Contains(t, p.Content(), "<h1>Heading</h1>")
			require.Contains(t, p.Content(), `<a href="../other.html">other</a>`)
			require.Empty(t, p.CanonicalURL())
		})
	}
}

func TestLoad_AssignsPublisherWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "a.md"), "---\ntitle: A\nis_draft: true\ntags: []\ncategories: []\n---\nbody\n")

	p, err := newCodec(t, dir).Load(path)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, p.Publisher().ID)
	require.True(t, p.IsDraft())
}

func TestLoad_DecodeErrors(t *testing.T) {
	cases := []struct {
		name    string
		content string
		message string
	}{
		{"no frontmatter", "# just markdown\n", "Frontmatter not found."},
		{"mismatched separators", "---\ntitle: A\n+++\nbody\n", "Frontmatter not found."},
		{"empty metadata", "---\n---\nbody\n", "Frontmatter not found."},
		{"empty body", "---\ntitle: A\n---\n  \n\n", "Content not found."},
		{"bad publisher", "---\ntitle: A\npost_publisher:\n  id: nope\n---\nbody\n", "'post_publisher.id' is invalid."},
		{"missing is_draft", "---\ntitle: A\n---\nbody\n", "'is_draft' key is missing."},
		{"missing title", "---\nis_draft: false\n---\nbody\n", "'title' key is missing."},
		{"missing tags before categories", "---\ntitle: A\nis_draft: false\n---\nbody\n", "'tags' key is missing."},
		{"missing categories", "---\ntitle: A\nis_draft: false\ntags: [a]\n---\nbody\n", "'categories' key is missing."},
		{"wrong type", "---\ntitle: A\nis_draft: \"no\"\ntags: []\ncategories: []\n---\nbody\n", "'is_draft' key is invalid."},
		{"tags not strings", "---\ntitle: A\nis_draft: false\ntags: [1]\ncategories: []\n---\nbody\n", "'tags' key is invalid."},
	}

	dir := t.TempDir()
	c := newCodec(t, dir)
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, filepath.Join(dir, "case", string(rune('a'+i))+".md"), tc.content)
			_, err := c.Load(path)
			requireDecodeMessage(t, err, tc.message)

			classified, ok := errors.AsClassified(err)
			require.True(t, ok)
			got, _ := classified.Context().GetString("path")
			require.Equal(t, path, got)
		})
	}
}

func TestLoad_ParseErrorsNameTheFormat(t *testing.T) {
	dir := t.TempDir()
	c := newCodec(t, dir)

	_, err := c.Load(writeFile(t, filepath.Join(dir, "y.md"), "---\ntitle: [unclosed\n---\nbody\n"))
	require.True(t, IsDecodeError(err))
	require.Regexp(t, `^Error in YAML Frontmatter: `, errors.MessageOf(err))

	_, err = c.Load(writeFile(t, filepath.Join(dir, "t.md"), "+++\ntitle = \n+++\nbody\n"))
	require.Regexp(t, `^Error in TOML Frontmatter: `, errors.MessageOf(err))

	_, err = c.Load(writeFile(t, filepath.Join(dir, "j.md"), "{\n\"title\": ,\n}\nbody\n"))
	require.Regexp(t, `^Error in JSON Frontmatter: `, errors.MessageOf(err))
}

func TestLoad_FileSystemErrorsAreNotWrapped(t *testing.T) {
	dir := t.TempDir()
	c := newCodec(t, dir)

	_, err := c.Load(filepath.Join(dir, "missing.md"))
	require.ErrorIs(t, err, fs.ErrNotExist)
	require.False(t, errors.IsClassified(err))

	_, err = c.Load(dir)
	require.ErrorIs(t, err, syscall.EISDIR)
}

func TestDump_RoundTrip(t *testing.T) {
	for _, format := range frontmatter.Formats() {
		t.Run(string(format), func(t *testing.T) {
			dir := t.TempDir()
			c := newCodec(t, dir, WithDumpFormat(format))
			path := writeFile(t, filepath.Join(dir, "post.md"), yamlPost)

			first, err := c.Load(path)
			require.NoError(t, err)
			withURL, err := first.WithCanonicalURL("https://blog.example/post.md")
			require.NoError(t, err)
			require.NoError(t, c.Dump(withURL))

			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			require.NotContains(t, string(raw), "canonical_url")
			require.NotContains(t, string(raw), "filepath")

			second, err := c.Load(path)
			require.NoError(t, err)
			require.True(t, first.Equal(second), "round trip changed the post:\n%s", raw)
		})
	}
}

func TestDump_RoundTripBodies(t *testing.T) {
	bodies := map[string]string{
		"paragraphs":   "First *emphasis* and **strong**.\n\nSecond with `code`.\n",
		"links":        "See [the docs](../docs/index.html) and ![pic](img/pic.png).\n",
		"lists":        "- one\n- two\n\n1. first\n2. second\n",
		"nested lists": "- a\n  - b\n  - c\n- d\n",
		"adjacent":     "- dash\n\n* star\n",
		"table":        "| a | b |\n|---|---|\n| 1 | 2 |\n",
		"strike":       "~~gone~~ stays\n",
		"tasks":        "- [x] done\n- [ ] todo\n",
		"code block":   "```go\nfunc main() {\n\tprintln(\"hi\")\n}\n```\n",
		"quote":        "> quoted\n> text\n\n---\n\n## Heading\n",
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			c := newCodec(t, dir)
			path := writeFile(t, filepath.Join(dir, "post.md"),
				"---\ntitle: T\nis_draft: false\ntags: [a]\ncategories: [b]\n---\n"+body)

			first, err := c.Load(path)
			require.NoError(t, err)
			require.NoError(t, c.Dump(first))
			second, err := c.Load(path)
			require.NoError(t, err)

			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			require.True(t, first.Equal(second), "first:\n%s\nsecond:\n%s\nfile:\n%s",
				first.Content(), second.Content(), raw)
		})
	}
}

func TestDump_FileSystemErrors(t *testing.T) {
	dir := t.TempDir()
	c := newCodec(t, dir)
	p, err := c.Load(writeFile(t, filepath.Join(dir, "post.md"), yamlPost))
	require.NoError(t, err)

	missing, err := p.WithFilepath(filepath.Join(dir, "nope", "post.md"))
	require.NoError(t, err)
	require.ErrorIs(t, c.Dump(missing), fs.ErrNotExist)

	isDir, err := p.WithFilepath(dir)
	require.NoError(t, err)
	require.ErrorIs(t, c.Dump(isDir), syscall.EISDIR)

	require.ErrorIs(t, c.DumpAppData(missing), fs.ErrNotExist)
}

func TestDumpAppData_ReplacesOnlyPublisher(t *testing.T) {
	dir := t.TempDir()
	c := newCodec(t, dir)
	original := "+++\ntitle = \"Hello\"\nis_draft = false\ntags = [\"go\"]\ncategories = [\"dev\"]\nextra = \"kept\"\n+++\nBody *kept* verbatim.\n"
	path := writeFile(t, filepath.Join(dir, "post.md"), original)

	p, err := c.Load(path)
	require.NoError(t, err)
	require.NoError(t, c.DumpAppData(p))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	doc, err := frontmatter.Split(raw)
	require.NoError(t, err)
	require.Equal(t, frontmatter.FormatTOML, doc.Format)
	require.Equal(t, "Body *kept* verbatim.\n", string(doc.Body))

	meta, err := frontmatter.Parse(doc.Format, doc.Frontmatter)
	require.NoError(t, err)
	require.Equal(t, "kept", meta["extra"])
	require.Equal(t, map[string]any{"id": p.Publisher().ID.String()}, meta["post_publisher"])

	reloaded, err := c.Load(path)
	require.NoError(t, err)
	require.True(t, p.Equal(reloaded))
}

func TestDumpAppData_SkipsWriteWhenUnchanged(t *testing.T) {
	dir := t.TempDir()
	c := newCodec(t, dir)
	path := writeFile(t, filepath.Join(dir, "post.md"), yamlPost)

	p, err := c.Load(path)
	require.NoError(t, err)
	require.NoError(t, c.DumpAppData(p))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, yamlPost, string(raw))
}

func TestDumpAppData_RejectsUnreadableFrontmatter(t *testing.T) {
	dir := t.TempDir()
	c := newCodec(t, dir)
	p, err := c.Load(writeFile(t, filepath.Join(dir, "post.md"), yamlPost))
	require.NoError(t, err)

	cases := map[string]string{
		"Frontmatter not found.":    "no metadata here\n",
		"Error in YAML Frontmatter": "---\ntitle: [unclosed\n---\nbody\n",
		"Error in TOML Frontmatter": "+++\ntitle = \n+++\nbody\n",
	}
	for message, content := range cases {
		writeFile(t, p.Filepath(), content)
		err := c.DumpAppData(p)
		require.True(t, IsDecodeError(err), content)
		require.Contains(t, errors.MessageOf(err), message)

		raw, rerr := os.ReadFile(p.Filepath())
		require.NoError(t, rerr)
		require.Equal(t, content, string(raw))
	}
}

func TestIsPost(t *testing.T) {
	dir := t.TempDir()
	c := newCodec(t, dir)
	md := writeFile(t, filepath.Join(dir, "a.md"), "x")
	txt := writeFile(t, filepath.Join(dir, "a.txt"), "x")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "folder.md"), 0o755))

	require.True(t, c.IsPost(md))
	require.False(t, c.IsPost(txt))
	require.False(t, c.IsPost(filepath.Join(dir, "folder.md")))
	require.False(t, c.IsPost(filepath.Join(dir, "missing.md")))
}

func TestIsPublishable(t *testing.T) {
	dir := t.TempDir()
	top := writeFile(t, filepath.Join(dir, "top.md"), "x")
	draft := writeFile(t, filepath.Join(dir, "drafts", "wip.md"), "x")
	nestedPrivate := writeFile(t, filepath.Join(dir, "a", "b", "private-notes.md"), "x")
	topPrivate := writeFile(t, filepath.Join(dir, "private-top.md"), "x")

	require.True(t, newCodec(t, dir).IsPublishable(draft))

	c := newCodec(t, dir, WithIgnoreGlobs([]string{"drafts/*", "**/private-*.md"}))
	require.True(t, c.IsPublishable(top))
	require.False(t, c.IsPublishable(draft))
	require.False(t, c.IsPublishable(nestedPrivate))
	require.False(t, c.IsPublishable(topPrivate))
}

func TestIsPublishable_StarDoesNotCrossDirectories(t *testing.T) {
	dir := t.TempDir()
	shallow := writeFile(t, filepath.Join(dir, "drafts", "a.md"), "x")
	deep := writeFile(t, filepath.Join(dir, "drafts", "sub", "b.md"), "x")

	c := newCodec(t, dir, WithIgnoreGlobs([]string{"drafts/*.md"}))
	require.False(t, c.IsPublishable(shallow))
	require.True(t, c.IsPublishable(deep))
}

func TestIsPublishable_RecomputedPerCall(t *testing.T) {
	dir := t.TempDir()
	c := newCodec(t, dir, WithIgnoreGlobs([]string{"drafts/*.md"}))
	later := filepath.Join(dir, "drafts", "later.md")

	require.True(t, c.IsPublishable(later))
	writeFile(t, later, "x")
	require.False(t, c.IsPublishable(later))
}

func TestVariantByName(t *testing.T) {
	v, err := VariantByName("")
	require.NoError(t, err)
	require.Equal(t, "generic", v.Name())

	v, err = VariantByName("Hugo")
	require.NoError(t, err)
	require.Equal(t, "hugo", v.Name())

	_, err = VariantByName("jekyll")
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestVariants_BehaveIdentically(t *testing.T) {
	meta := map[string]any{"title": "A", "is_draft": true, "tags": []any{"x"}, "categories": []any{}}
	g, err := GenericVariant{}.ExtractRequired(meta)
	require.NoError(t, err)
	h, err := HugoVariant{}.ExtractRequired(meta)
	require.NoError(t, err)
	require.Equal(t, g, h)

	_, err = HugoVariant{}.ExtractRequired(map[string]any{"title": "A", "is_draft": true})
	require.True(t, stderrors.Is(err, missingKey("tags")))
}
