// Package markdown converts post bodies between Markdown and HTML.
package markdown

import (
	"bytes"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/strikethrough"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	xhtml "golang.org/x/net/html"
)

// Options controls how Markdown is rendered.
type Options struct {
	// GFM enables GitHub Flavored Markdown (tables, strikethrough, task lists, autolinks).
	GFM bool
	// Unsafe lets raw HTML embedded in the body pass through.
	Unsafe bool
}

// DefaultOptions is the rendering setup used for posts.
func DefaultOptions() Options {
	return Options{GFM: true, Unsafe: true}
}

// Renderer renders Markdown to HTML and back. It is safe for concurrent use.
// Every extension enabled for rendering has a matching plugin on the way
// back, so Unrender followed by Render keeps the same structure.
type Renderer struct {
	md   goldmark.Markdown
	conv *converter.Converter
}

// NewRenderer builds a Renderer for opts.
func NewRenderer(opts Options) *Renderer {
	var gopts []goldmark.Option
	plugins := []converter.Plugin{base.NewBasePlugin(), commonmark.NewCommonmarkPlugin()}
	if opts.GFM {
		gopts = append(gopts, goldmark.WithExtensions(extension.GFM))
		plugins = append(plugins,
			table.NewTablePlugin(),
			strikethrough.NewStrikethroughPlugin(),
			taskListPlugin{})
	}
	if opts.Unsafe {
		gopts = append(gopts, goldmark.WithRendererOptions(html.WithUnsafe()))
	}
	return &Renderer{
		md:   goldmark.New(gopts...),
		conv: converter.NewConverter(converter.WithPlugins(plugins...)),
	}
}

// Render converts a Markdown body (frontmatter already removed) into HTML.
func (r *Renderer) Render(body string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(body), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Unrender converts HTML back into Markdown. The result always ends with a
// single newline so it can be written as a file body.
func (r *Renderer) Unrender(content string) (string, error) {
	out, err := r.conv.ConvertString(content)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n") + "\n", nil
}

// taskListPlugin writes GFM task list checkboxes back as "[ ]" and "[x]".
// Other inputs are dropped, as the base plugin does.
type taskListPlugin struct{}

func (taskListPlugin) Name() string { return "task-list" }

func (taskListPlugin) Init(conv *converter.Converter) error {
	conv.Register.RendererFor("input", converter.TagTypeInline, renderCheckbox, converter.PriorityEarly)
	return nil
}

func renderCheckbox(_ converter.Context, w converter.Writer, n *xhtml.Node) converter.RenderStatus {
	checkbox, checked := false, false
	for _, a := range n.Attr {
		switch a.Key {
		case "type":
			checkbox = strings.EqualFold(a.Val, "checkbox")
		case "checked":
			checked = true
		}
	}
	switch {
	case !checkbox:
	case checked:
		_, _ = w.WriteString("[x] ")
	default:
		_, _ = w.WriteString("[ ] ")
	}
	return converter.RenderSuccess
}
