package markup

import (
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// Canonicalize re-renders an HTML fragment in a normal form so that two
// fragments differing only in incidental formatting compare equal:
//   - whitespace-only text nodes and comments are dropped,
//   - whitespace runs in text are collapsed and trimmed, except inside
//     <pre> and <textarea>,
//   - text and attribute values are NFC normalized,
//   - attributes are sorted by name.
func Canonicalize(content string) (string, error) {
	nodes, err := ParseFragment(content)
	if err != nil {
		return "", err
	}
	kept := nodes[:0]
	for _, n := range nodes {
		if canonicalizeNode(n, false) {
			kept = append(kept, n)
		}
	}
	return RenderFragment(kept)
}

// canonicalizeNode rewrites n in place and reports whether it should be kept.
func canonicalizeNode(n *html.Node, preformatted bool) bool {
	switch n.Type {
	case html.CommentNode:
		return false
	case html.TextNode:
		if preformatted {
			n.Data = norm.NFC.String(n.Data)
			return true
		}
		text := strings.Join(strings.Fields(n.Data), " ")
		if text == "" {
			return false
		}
		n.Data = norm.NFC.String(text)
		return true
	case html.ElementNode:
		for i := range n.Attr {
			n.Attr[i].Val = norm.NFC.String(n.Attr[i].Val)
		}
		sort.SliceStable(n.Attr, func(i, j int) bool {
			if n.Attr[i].Namespace != n.Attr[j].Namespace {
				return n.Attr[i].Namespace < n.Attr[j].Namespace
			}
			return n.Attr[i].Key < n.Attr[j].Key
		})
		preformatted = preformatted || n.Data == "pre" || n.Data == "textarea"
	}

	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if !canonicalizeNode(c, preformatted) {
			n.RemoveChild(c)
		}
		c = next
	}
	return true
}

// Equal reports whether two fragments are the same after canonicalization.
// Fragments that fail to parse are compared verbatim.
func Equal(a, b string) bool {
	if a == b {
		return true
	}
	ca, errA := Canonicalize(a)
	cb, errB := Canonicalize(b)
	if errA != nil || errB != nil {
		return false
	}
	return ca == cb
}
