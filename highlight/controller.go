// Package highlight tracks the single actively hovered block, debounces
// hover notifications across the context boundary, and drives the
// scroll-and-flash emphasis used for click navigation. The local visual
// highlight is always immediate; only the outbound hover report waits for
// the pointer to settle.
package highlight

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/pagesync/dom"
)

// Marker attributes written onto document nodes. UIAttr additionally tags
// the style element the controller injects, so the change observer never
// mistakes it for page content.
const (
	HighlightAttr = "data-ps-hl"
	FlashAttr     = "data-ps-flash"
	UIAttr        = "data-ps-ui"
)

// Notifier receives outbound interaction events. An empty id on Hovered
// means "hovered: none".
type Notifier interface {
	Hovered(ctx context.Context, id string) error
	Clicked(ctx context.Context, id string) error
}

// Config for creating a Controller.
type Config struct {
	Doc *dom.Document
	// Resolve maps a block identifier to its current node.
	Resolve func(id string) *html.Node
	// Scroll brings a node into the visible viewport. Optional.
	Scroll   func(n *html.Node)
	Notifier Notifier
	// HoverDebounce delays the outbound hover notification. Default: 300ms.
	HoverDebounce time.Duration
	// FlashDuration bounds the emphasis animation. Default: 1s.
	FlashDuration time.Duration
	Logger        *slog.Logger
}

func (c *Config) defaults() {
	if c.HoverDebounce <= 0 {
		c.HoverDebounce = 300 * time.Millisecond
	}
	if c.FlashDuration <= 0 {
		c.FlashDuration = time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Controller owns the highlight state for one document context.
type Controller struct {
	doc      *dom.Document
	resolve  func(id string) *html.Node
	scroll   func(n *html.Node)
	notifier Notifier
	debounce time.Duration
	flashDur time.Duration
	logger   *slog.Logger

	mu         sync.Mutex
	current    string
	currentEl  *html.Node
	hoverTimer *time.Timer
	flashTimer *time.Timer
	flashEl    *html.Node
	styleEl    *html.Node
}

// New creates a Controller.
func New(cfg Config) *Controller {
	cfg.defaults()
	return &Controller{
		doc:      cfg.Doc,
		resolve:  cfg.Resolve,
		scroll:   cfg.Scroll,
		notifier: cfg.Notifier,
		debounce: cfg.HoverDebounce,
		flashDur: cfg.FlashDuration,
		logger:   cfg.Logger,
	}
}

// PointerEnter handles the pointer entering a block's region. The local
// highlight moves immediately; the cross-context hover notification is
// held back until the pointer has settled for the debounce window.
func (c *Controller) PointerEnter(ctx context.Context, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id == c.current {
		return
	}

	c.clearMarkLocked()
	if el := c.resolve(id); el != nil {
		c.ensureStyleLocked()
		c.doc.SetAttr(el, HighlightAttr, "1")
		c.currentEl = el
	}
	c.current = id

	if c.hoverTimer != nil {
		c.hoverTimer.Stop()
	}
	c.hoverTimer = time.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		settled := c.current
		c.mu.Unlock()
		if settled != id {
			return
		}
		if err := c.notifier.Hovered(ctx, id); err != nil {
			c.logger.Warn("highlight: hover notify failed", "error", err, "id", id)
		}
	})
}

// PointerLeave handles the pointer leaving the current block without
// entering a contained descendant: the local highlight clears and the
// "hovered: none" notification goes out immediately, undebounced, so no
// stale highlight lingers on the presentation side.
func (c *Controller) PointerLeave(ctx context.Context) {
	c.mu.Lock()
	if c.current == "" {
		c.mu.Unlock()
		return
	}
	c.clearMarkLocked()
	c.current = ""
	if c.hoverTimer != nil {
		c.hoverTimer.Stop()
		c.hoverTimer = nil
	}
	c.mu.Unlock()

	if err := c.notifier.Hovered(ctx, ""); err != nil {
		c.logger.Warn("highlight: hover clear notify failed", "error", err)
	}
}

// Click emits the clicked notification unconditionally, never debounced.
func (c *Controller) Click(ctx context.Context, id string) {
	if err := c.notifier.Clicked(ctx, id); err != nil {
		c.logger.Warn("highlight: click notify failed", "error", err, "id", id)
	}
}

// Highlight applies the visual highlight to a block on command from the
// presentation side. No notification is emitted for commanded highlights.
func (c *Controller) Highlight(id string) error {
	el := c.resolve(id)
	if el == nil {
		return fmt.Errorf("highlight: no block %q", id)
	}
	c.ensureStyle()
	c.doc.SetAttr(el, HighlightAttr, "1")
	return nil
}

// Unhighlight removes a commanded highlight.
func (c *Controller) Unhighlight(id string) error {
	el := c.resolve(id)
	if el == nil {
		return fmt.Errorf("highlight: no block %q", id)
	}
	c.doc.RemoveAttr(el, HighlightAttr)
	return nil
}

// ScrollAndFlash resolves the block, scrolls it into view, and plays one
// short emphasis flash. Removal of the flash marker is guaranteed by a
// timer rather than any animation-completion event.
func (c *Controller) ScrollAndFlash(id string) error {
	el := c.resolve(id)
	if el == nil {
		return fmt.Errorf("highlight: no block %q", id)
	}

	c.ensureStyle()
	if c.scroll != nil {
		c.scroll(el)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flashTimer != nil {
		c.flashTimer.Stop()
		if c.flashEl != nil {
			c.doc.RemoveAttr(c.flashEl, FlashAttr)
		}
	}
	c.doc.SetAttr(el, FlashAttr, "1")
	c.flashEl = el
	c.flashTimer = time.AfterFunc(c.flashDur, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.flashEl == el {
			c.doc.RemoveAttr(el, FlashAttr)
			c.flashEl = nil
			c.flashTimer = nil
		}
	})
	return nil
}

// Invalidate drops the retained highlighted-node reference. Must be
// called on every full re-extraction: identifiers are reassigned and the
// old node handle may no longer be part of the tree.
func (c *Controller) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearMarkLocked()
	c.current = ""
	if c.hoverTimer != nil {
		c.hoverTimer.Stop()
		c.hoverTimer = nil
	}
}

// Current returns the identifier of the actively hovered block, or "".
func (c *Controller) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Controller) clearMarkLocked() {
	if c.currentEl != nil {
		c.doc.RemoveAttr(c.currentEl, HighlightAttr)
		c.currentEl = nil
	}
}

// ensureStyle injects the controller's style element once. It carries
// UIAttr so the change observer skips it.
func (c *Controller) ensureStyle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureStyleLocked()
}

func (c *Controller) ensureStyleLocked() {
	if c.styleEl != nil {
		return
	}
	style := dom.NewElement("style")
	style.Attr = []html.Attribute{{Key: UIAttr, Val: "1"}}
	css := fmt.Sprintf("[%s]{background:rgba(255,215,0,.35)}[%s]{animation:ps-flash .6s ease-out 1}", HighlightAttr, FlashAttr)
	style.AppendChild(dom.NewText(css))
	c.doc.AppendChild(c.doc.Body(), style)
	c.styleEl = style
}
