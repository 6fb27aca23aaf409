// Package page finds the scripts and stylesheets a rendered page references
// and points them at their bundled outputs.
package page

import (
	"bytes"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type RefKind int

const (
	Script RefKind = iota
	Stylesheet
)

func (k RefKind) String() string {
	switch k {
	case Script:
		return "script"
	case Stylesheet:
		return "stylesheet"
	default:
		return "unknown"
	}
}

// Ref is a local asset reference found in a page.
type Ref struct {
	Kind  RefKind
	Value string

	node *html.Node
	attr string
}

// Replacement describes the bundle a reference is rewritten to.
type Replacement struct {
	URL     string
	Preload []string
	CSS     []string
}

type Document struct {
	root *html.Node
}

// Parse parses a rendered page.
func Parse(src string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return &Document{root: root}, nil
}

// Refs returns the module scripts and stylesheets with local URLs, in document order.
func (d *Document) Refs() []Ref {
	var refs []Ref

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script:
				if strings.EqualFold(attr(n, "type"), "module") {
					if src, ok := lookupAttr(n, "src"); ok && IsLocal(src) {
						refs = append(refs, Ref{Kind: Script, Value: src, node: n, attr: "src"})
					}
				}
			case atom.Link:
				if hasToken(attr(n, "rel"), "stylesheet") {
					if href, ok := lookupAttr(n, "href"); ok && IsLocal(href) {
						refs = append(refs, Ref{Kind: Stylesheet, Value: href, node: n, attr: "href"})
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.root)

	return refs
}

// Rewrite replaces every reference for which fn returns true. Preloads and
// extracted stylesheets are appended to the head once each.
func (d *Document) Rewrite(fn func(Ref) (Replacement, bool)) {
	var preloads, styles []string
	seen := map[string]bool{}

	for _, ref := range d.Refs() {
		repl, ok := fn(ref)
		if !ok {
			continue
		}
		setAttr(ref.node, ref.attr, repl.URL)
		seen[repl.URL] = true

		for _, u := range repl.Preload {
			if !seen[u] {
				seen[u] = true
				preloads = append(preloads, u)
			}
		}
		for _, u := range repl.CSS {
			if !seen[u] {
				seen[u] = true
				styles = append(styles, u)
			}
		}
	}

	if len(preloads) == 0 && len(styles) == 0 {
		return
	}

	head := find(d.root, atom.Head)
	if head == nil {
		return
	}
	for _, u := range styles {
		head.AppendChild(linkNode("stylesheet", u))
	}
	for _, u := range preloads {
		head.AppendChild(linkNode("modulepreload", u))
	}
}

// Render serialises the document.
func (d *Document) Render() (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// IsLocal reports whether ref points at a file in the source tree rather than
// another origin or an inline data URI.
func IsLocal(ref string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "//") || strings.HasPrefix(ref, "#") {
		return false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == "" && u.Path != ""
}

// ResolveRef maps a local reference to a file: root relative for "/x.js",
// page relative otherwise. Query and fragment are dropped.
func ResolveRef(root, pageDir, ref string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("invalid asset reference %q: %w", ref, err)
	}

	p := filepath.FromSlash(u.Path)
	if strings.HasPrefix(u.Path, "/") {
		return filepath.Join(root, p), nil
	}
	return filepath.Join(pageDir, p), nil
}

func linkNode(rel, href string) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     "link",
		DataAtom: atom.Link,
		Attr: []html.Attribute{
			{Key: "rel", Val: rel},
			{Key: "href", Val: href},
		},
	}
}

func find(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, a); found != nil {
			return found
		}
	}
	return nil
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func attr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func hasToken(list, token string) bool {
	for _, f := range strings.Fields(list) {
		if strings.EqualFold(f, token) {
			return true
		}
	}
	return false
}
