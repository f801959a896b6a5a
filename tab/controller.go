// Package tab owns the document-context side of pagesync: one Controller
// per tab, wiring a live document to its segmentation engine, change
// observer, and highlight controller, and speaking the wire protocol to
// the relay. A Controller is destroyed on tab close and replaced wholesale
// on navigation; none of its state is shared across tabs.
package tab

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/pagesync/dom"
	"github.com/hazyhaar/pagesync/highlight"
	"github.com/hazyhaar/pagesync/observe"
	"github.com/hazyhaar/pagesync/relay"
	"github.com/hazyhaar/pagesync/segment"
	"github.com/hazyhaar/pagesync/translate"
	"github.com/hazyhaar/pagesync/wire"
)

// Config for creating a Controller.
type Config struct {
	TabID int
	Doc   *dom.Document
	Relay *relay.Relay
	// DebounceWindow for the change observer. Default: 250ms.
	DebounceWindow time.Duration
	// HoverDebounce for outbound hover notifications. Default: 300ms.
	HoverDebounce time.Duration
	// FlashDuration bounds the click-navigation emphasis. Default: 1s.
	FlashDuration time.Duration
	// Scroll brings a node into view. Optional.
	Scroll func(n *html.Node)
	Logger *slog.Logger
}

// Controller is the document context for one tab.
type Controller struct {
	id     int
	relay  *relay.Relay
	logger *slog.Logger
	cfg    Config

	lifecycle context.Context
	cancel    context.CancelFunc

	mu      sync.Mutex
	doc     *dom.Document
	engine  *segment.Engine
	obs     *observe.Observer
	hl      *highlight.Controller
	enabled bool
}

// New creates a Controller for an already-parsed document.
func New(cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		id:        cfg.TabID,
		relay:     cfg.Relay,
		logger:    cfg.Logger,
		cfg:       cfg,
		lifecycle: ctx,
		cancel:    cancel,
		enabled:   true,
	}
	c.install(cfg.Doc)
	return c
}

// install wires the engine stack onto a document. Called at creation and
// again after navigation.
func (c *Controller) install(doc *dom.Document) {
	engine := segment.NewEngine(doc, segment.WithLogger(c.logger))
	c.doc = doc
	c.engine = engine
	c.obs = observe.New(observe.Config{
		Doc:            doc,
		Engine:         engine,
		Sink:           eventSink{c},
		DebounceWindow: c.cfg.DebounceWindow,
		UIAttr:         highlight.UIAttr,
		Logger:         c.logger,
	})
	c.hl = highlight.New(highlight.Config{
		Doc:           doc,
		Resolve:       engine.NodeByID,
		Scroll:        c.cfg.Scroll,
		Notifier:      eventSink{c},
		HoverDebounce: c.cfg.HoverDebounce,
		FlashDuration: c.cfg.FlashDuration,
		Logger:        c.logger,
	})
}

// TabID returns the tab this controller serves.
func (c *Controller) TabID() int { return c.id }

// Extract implements relay.DocumentEndpoint: a full segmentation pass.
// The currently highlighted node reference is invalidated first, then the
// pass opens a new epoch and arms the observer for incremental updates.
func (c *Controller) Extract(ctx context.Context) (wire.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hl.Invalidate()
	blocks := c.obs.FullPass()
	c.obs.Arm(c.lifecycle)

	hint := languageHint(blocks)
	c.logger.Info("tab: extracted", "tab", c.id, "blocks", len(blocks), "language_hint", hint)
	return wire.PageText(blocks, hint), nil
}

// Deliver implements relay.DocumentEndpoint for presentation-side
// commands.
func (c *Controller) Deliver(ctx context.Context, msg wire.Message) error {
	switch msg.Kind {
	case wire.KindHighlightElement:
		return c.hl.Highlight(msg.ID)
	case wire.KindUnhighlightElement:
		return c.hl.Unhighlight(msg.ID)
	case wire.KindScrollToElement:
		return c.hl.ScrollAndFlash(msg.ID)
	case wire.KindSetMode:
		c.setMode(msg.Enabled)
		return nil
	default:
		return fmt.Errorf("tab: %q is not deliverable: %w", msg.Kind, wire.ErrInvalid)
	}
}

func (c *Controller) setMode(enabled bool) {
	c.mu.Lock()
	was := c.enabled
	c.enabled = enabled
	c.mu.Unlock()
	if was == enabled {
		return
	}
	if !enabled {
		c.hl.Invalidate()
	}
	c.relay.EventFromTab(c.id, wire.ModeChanged(enabled))
}

// Enabled reports whether interaction mode is on for this tab.
func (c *Controller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// PointerEnter forwards a pointer-enter over a block's region to the
// highlight controller. Ignored while the mode is off.
func (c *Controller) PointerEnter(ctx context.Context, id string) {
	if !c.Enabled() {
		return
	}
	c.hl.PointerEnter(ctx, id)
}

// PointerLeave forwards a pointer-leave that did not land on a contained
// descendant.
func (c *Controller) PointerLeave(ctx context.Context) {
	if !c.Enabled() {
		return
	}
	c.hl.PointerLeave(ctx)
}

// Click forwards a click on a block.
func (c *Controller) Click(ctx context.Context, id string) {
	if !c.Enabled() {
		return
	}
	c.hl.Click(ctx, id)
}

// Navigate models a page navigation or reload: the bound panel is warned
// first so it can reset, then the whole engine stack is rebuilt on the
// fresh document.
func (c *Controller) Navigate(doc *dom.Document) {
	c.relay.TabReloading(c.id)

	c.mu.Lock()
	c.obs.Stop()
	c.hl.Invalidate()
	c.install(doc)
	c.mu.Unlock()

	c.logger.Info("tab: navigated", "tab", c.id)
}

// Close stops observation and releases the controller.
func (c *Controller) Close() {
	c.mu.Lock()
	c.obs.Stop()
	c.hl.Invalidate()
	c.mu.Unlock()
	c.cancel()
}

// eventSink adapts the controller to observe.Sink and highlight.Notifier:
// every event leaves through the relay keyed by this tab's identity.
type eventSink struct{ c *Controller }

func (s eventSink) NewBlocks(ctx context.Context, blocks []segment.Block) error {
	s.c.relay.EventFromTab(s.c.id, wire.NewBlocks(blocks))
	return nil
}

func (s eventSink) TextUpdated(ctx context.Context, id, text string) error {
	s.c.relay.EventFromTab(s.c.id, wire.TextUpdated(id, text))
	return nil
}

func (s eventSink) Hovered(ctx context.Context, id string) error {
	s.c.relay.EventFromTab(s.c.id, wire.Hovered(id))
	return nil
}

func (s eventSink) Clicked(ctx context.Context, id string) error {
	s.c.relay.EventFromTab(s.c.id, wire.Clicked(id))
	return nil
}

// languageHint samples the first blocks and asks the detector. Only a
// confident answer becomes a hint; absence is not an error.
func languageHint(blocks []segment.Block) string {
	var sb strings.Builder
	for _, b := range blocks {
		sb.WriteString(b.Text)
		sb.WriteByte(' ')
		if sb.Len() > 400 {
			break
		}
	}
	lang, conf := translate.Detect(sb.String())
	if conf < 0.5 {
		return ""
	}
	return lang
}
