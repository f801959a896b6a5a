package segment

import (
	"log/slog"
	"strings"
	"unicode"

	"golang.org/x/net/html"

	"github.com/hazyhaar/pagesync/dom"
)

// Engine segments one document. It owns the epoch state (occurrence
// table) for that document and is not shared across documents.
type Engine struct {
	doc    *dom.Document
	assign *assigner
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an Engine for the given document.
func NewEngine(doc *dom.Document, opts ...Option) *Engine {
	e := &Engine{
		doc:    doc,
		assign: newAssigner(),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Full performs a full extraction pass: a new epoch. All previously
// assigned identifiers in the document are discarded, the occurrence
// table resets, and the whole tree is re-walked under the document lock.
func (e *Engine) Full() []Block {
	e.assign.reset()

	var blocks []Block
	e.doc.Exclusive(func() {
		e.stripIDs()
		blocks = e.walk(e.doc.Root())
	})
	e.logger.Debug("segment: full pass", "blocks", len(blocks))
	return blocks
}

// Partial re-walks one subtree without resetting epoch state. Nodes that
// already carry identifiers keep them; only genuinely new block parents
// receive fresh ones. A subtree under an inert or hidden ancestor yields
// nothing.
func (e *Engine) Partial(root *html.Node) []Block {
	var blocks []Block
	e.doc.Exclusive(func() {
		if root == nil || dom.InertAncestor(root) || dom.HiddenAncestor(root) {
			return
		}
		blocks = e.walk(root)
	})
	return blocks
}

// NodeByID resolves an identifier to its current node, or nil. The
// returned reference is borrowed and must not outlive the next mutation.
func (e *Engine) NodeByID(id string) *html.Node {
	var n *html.Node
	e.doc.Exclusive(func() {
		n = dom.FindByAttr(e.doc.Root(), IDAttr, id)
	})
	return n
}

// TextOf recomputes the block text of an identified node: the trimmed,
// space-joined meaningful leaves that resolve to it as block parent.
func (e *Engine) TextOf(n *html.Node) string {
	var parts []string
	e.doc.Exclusive(func() {
		parts = e.textParts(n)
	})
	return strings.Join(parts, " ")
}

func (e *Engine) textParts(n *html.Node) []string {
	var parts []string
	dom.Walk(n, func(c *html.Node) bool {
		if c.Type == html.ElementNode && c != n && dom.Inert(c) {
			return false
		}
		if c.Type != html.TextNode {
			return true
		}
		text := strings.TrimSpace(c.Data)
		if text == "" || !meaningful(text) {
			return true
		}
		if blockParent(c) == n {
			parts = append(parts, collapseSpace(text))
		}
		return true
	})
	return parts
}

// stripIDs removes every identifier attribute in the document. Writes go
// directly onto the nodes so an armed observer sees none of it. The
// caller holds the document lock.
func (e *Engine) stripIDs() {
	dom.Walk(e.doc.Root(), func(n *html.Node) bool {
		if n.Type == html.ElementNode && dom.HasAttr(n, IDAttr) {
			removeNodeAttr(n, IDAttr)
		}
		return true
	})
}

// walk is the grouping pass shared by Full and Partial: collect meaningful
// text leaves in document order, resolve each to its block parent, group,
// filter hidden blocks, assign identifiers, classify sections.
func (e *Engine) walk(root *html.Node) []Block {
	type group struct {
		parent *html.Node
		parts  []string
	}
	var order []*group
	index := make(map[*html.Node]*group)

	dom.Walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && dom.Inert(n) {
			return false
		}
		if n.Type != html.TextNode {
			return true
		}
		text := strings.TrimSpace(n.Data)
		if text == "" || !meaningful(text) {
			return true
		}
		parent := blockParent(n)
		if parent == nil {
			return true
		}
		g := index[parent]
		if g == nil {
			g = &group{parent: parent}
			index[parent] = g
			order = append(order, g)
		}
		g.parts = append(g.parts, collapseSpace(text))
		return true
	})

	blocks := make([]Block, 0, len(order))
	for _, g := range order {
		if dom.HiddenAncestor(g.parent) {
			continue
		}
		text := strings.Join(g.parts, " ")
		blocks = append(blocks, Block{
			ID:      e.assign.assign(g.parent, text),
			Text:    text,
			Section: classify(g.parent),
		})
	}
	return blocks
}

// blockParent resolves a text leaf to the node its text is grouped under.
// Climbing from the leaf, the first ancestor that is either a flex/grid
// item or a block-level element wins. The flex/grid check comes first at
// each step: inline children of a layout container render as separate
// visual blocks and must not merge into the container's group.
func blockParent(leaf *html.Node) *html.Node {
	for p := leaf.Parent; p != nil && p.Type == html.ElementNode; p = p.Parent {
		if p.Parent != nil && dom.LayoutContainer(p.Parent) {
			return p
		}
		if dom.Block(p) {
			return p
		}
	}
	if leaf.Parent != nil && leaf.Parent.Type == html.ElementNode {
		return leaf.Parent
	}
	return nil
}

// meaningful requires at least one letter or digit, excluding leaves that
// are nothing but punctuation or list bullets.
func meaningful(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// collapseSpace folds internal whitespace runs to single spaces.
func collapseSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
