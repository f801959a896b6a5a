// Package dom provides the live, mutable document tree the pagesync engine
// operates on. A Document owns a golang.org/x/net/html node tree, exposes
// the mutating operations the embedding application performs on it, and
// delivers a mutation record to every subscriber for each write, in the
// order the writes happened.
//
// All *html.Node references handed out are borrowed: the tree stays owned
// by the Document and nodes become invalid once removed. Consumers that
// need to address a node across mutations key it by its identifier
// attribute instead of retaining the pointer.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document wraps a parsed HTML tree with mutation notification. All
// mutating methods, subscription management, and notification run under
// one mutex, so writers on different goroutines serialise against each
// other and against Exclusive sections.
type Document struct {
	mu   sync.Mutex
	root *html.Node
	subs []*Subscription
}

// Parse reads HTML from r and returns a live Document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	return &Document{root: root}, nil
}

// ParseString is Parse over an in-memory HTML string.
func ParseString(src string) (*Document, error) {
	return Parse(strings.NewReader(src))
}

// Root returns the document root node.
func (d *Document) Root() *html.Node { return d.root }

// Exclusive runs fn while holding the document's mutation lock, giving fn
// a view of the tree no concurrent writer can change mid-step. fn must
// not call the Document's mutating or subscription methods; node writes
// inside an Exclusive section go directly onto the nodes.
func (d *Document) Exclusive(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn()
}

// Body returns the <body> element, or the root when the document has none.
func (d *Document) Body() *html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	var body *html.Node
	Walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.Body {
			body = n
			return false
		}
		return true
	})
	if body == nil {
		return d.root
	}
	return body
}

// Render serialises the current tree back to HTML.
func (d *Document) Render() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return nil, fmt.Errorf("dom: render: %w", err)
	}
	return buf.Bytes(), nil
}

// Walk visits n and its subtree in document (depth-first, pre-order) order.
// The visit function returns false to prune: n's children are skipped and
// the walk continues with the next sibling.
func Walk(n *html.Node, visit func(*html.Node) bool) {
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		Walk(c, visit)
	}
}

// Attr returns the value of the named attribute on n, and whether it is set.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// HasAttr reports whether n carries the named attribute.
func HasAttr(n *html.Node, key string) bool {
	_, ok := Attr(n, key)
	return ok
}

// Contains reports whether ancestor contains n (or is n itself).
func Contains(ancestor, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

// FindByAttr returns the first element in document order under root whose
// attribute key equals val, or nil.
func FindByAttr(root *html.Node, key, val string) *html.Node {
	var found *html.Node
	Walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.Type == html.ElementNode {
			if v, ok := Attr(n, key); ok && v == val {
				found = n
				return false
			}
		}
		return true
	})
	return found
}

// NewElement creates a detached element node for the given tag name.
func NewElement(tag string) *html.Node {
	a := atom.Lookup([]byte(tag))
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: tag}
}

// NewText creates a detached text node.
func NewText(text string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: text}
}
