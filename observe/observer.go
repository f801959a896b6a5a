// Package observe keeps an extraction incrementally synchronized with its
// document. An armed Observer classifies raw mutation records into "new
// subtree to resegment" versus "text update on an identified node",
// debounces bursts, and flushes one incremental batch per quiet window.
package observe

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/pagesync/dom"
	"github.com/hazyhaar/pagesync/segment"
)

// Sink receives the incremental events produced by a flush. New-block
// batches always precede text updates within one flush.
type Sink interface {
	NewBlocks(ctx context.Context, blocks []segment.Block) error
	TextUpdated(ctx context.Context, id, text string) error
}

// NewBlocksFunc and TextUpdatedFunc adapt plain functions to a Sink.
type NewBlocksFunc func(ctx context.Context, blocks []segment.Block) error

// TextUpdatedFunc is the text-update half of a callback sink.
type TextUpdatedFunc func(ctx context.Context, id, text string) error

// Callback delivers flush events as in-process function calls. Either
// handler may be nil.
type Callback struct {
	OnNewBlocks   NewBlocksFunc
	OnTextUpdated TextUpdatedFunc
}

func (c Callback) NewBlocks(ctx context.Context, blocks []segment.Block) error {
	if c.OnNewBlocks != nil {
		return c.OnNewBlocks(ctx, blocks)
	}
	return nil
}

func (c Callback) TextUpdated(ctx context.Context, id, text string) error {
	if c.OnTextUpdated != nil {
		return c.OnTextUpdated(ctx, id, text)
	}
	return nil
}

// Config for creating an Observer.
type Config struct {
	Doc    *dom.Document
	Engine *segment.Engine
	Sink   Sink
	// DebounceWindow is the quiet period before a flush. Default: 250ms.
	DebounceWindow time.Duration
	// UIAttr marks presentation nodes injected by the engine itself
	// (highlight styling); their insertion is never treated as content.
	UIAttr string
	Logger *slog.Logger
}

// Observer is the per-document change observer. One per monitored
// document; never shared across tabs.
type Observer struct {
	doc    *dom.Document
	engine *segment.Engine
	sink   Sink
	uiAttr string
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	recCh  chan dom.Record

	// mu serialises all tree work: record classification, flushes, and
	// full passes requested through FullPass.
	mu      sync.Mutex
	sub     *dom.Subscription
	pending *pendingSet
	deb     *debounce
	known   map[string]bool
	armed   bool
}

// New creates an Observer. Call Arm to start it.
func New(cfg Config) *Observer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Observer{
		doc:     cfg.Doc,
		engine:  cfg.Engine,
		sink:    cfg.Sink,
		uiAttr:  cfg.UIAttr,
		logger:  cfg.Logger,
		recCh:   make(chan dom.Record, 4096),
		pending: newPendingSet(),
		deb:     newDebounce(cfg.DebounceWindow),
		known:   make(map[string]bool),
	}
}

// Arm installs the mutation subscription and starts the processing loop.
// Arming twice is a no-op.
func (o *Observer) Arm(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.armed {
		return
	}

	o.ctx, o.cancel = context.WithCancel(ctx)

	// Seed known identifiers from whatever the document already carries,
	// so re-walked subtrees do not re-announce existing blocks.
	o.doc.Exclusive(func() {
		dom.Walk(o.doc.Root(), func(n *html.Node) bool {
			if n.Type == html.ElementNode {
				if id, ok := dom.Attr(n, segment.IDAttr); ok && id != "" {
					o.known[id] = true
				}
			}
			return true
		})
	})

	o.sub = o.doc.Subscribe(o.onMutation, segment.IDAttr)
	o.armed = true

	go o.loop()
	o.logger.Debug("observe: armed", "known", len(o.known))
}

// Stop flushes remaining work and tears the observer down.
func (o *Observer) Stop() {
	o.mu.Lock()
	if !o.armed {
		o.mu.Unlock()
		return
	}
	o.flushLocked()
	if o.sub != nil {
		o.sub.Cancel()
		o.sub = nil
	}
	o.armed = false
	o.mu.Unlock()

	o.cancel()
}

// FullPass runs a full segmentation pass (new epoch) under the observer's
// lock, discarding pending incremental work and rebasing the known-ID set
// on the fresh result. Safe whether or not the observer is armed.
func (o *Observer) FullPass() []segment.Block {
	o.mu.Lock()
	defer o.mu.Unlock()

	blocks := o.engine.Full()

	o.pending.clear()
	o.deb.stop()
	o.known = make(map[string]bool, len(blocks))
	for _, b := range blocks {
		o.known[b.ID] = true
	}
	return blocks
}

// onMutation runs on the mutator's goroutine with the document lock held:
// hand the record to the loop in delivery order. A full buffer means the
// loop is far behind; rather than block the mutator inside the lock, the
// record is dropped and the next full pass rebases.
func (o *Observer) onMutation(rec dom.Record) {
	select {
	case o.recCh <- rec:
	default:
		o.logger.Warn("observe: record buffer full, dropping", "op", string(rec.Op))
	}
}

func (o *Observer) loop() {
	for {
		select {
		case <-o.ctx.Done():
			return
		case rec := <-o.recCh:
			o.handle(rec)
		case <-o.timerC():
			o.mu.Lock()
			o.flushLocked()
			o.mu.Unlock()
		}
	}
}

func (o *Observer) timerC() <-chan time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.deb.ch
}

// handle classifies one raw record into the pending set. Only records
// that actually accumulate work restart the debounce window.
func (o *Observer) handle(rec dom.Record) {
	o.mu.Lock()
	defer o.mu.Unlock()

	recorded := false

	switch rec.Op {
	case dom.OpInsert:
		o.doc.Exclusive(func() {
			switch rec.Target.Type {
			case html.ElementNode:
				if o.uiAttr != "" && dom.HasAttr(rec.Target, o.uiAttr) {
					return
				}
				o.pending.addSubtree(rec.Target)
				recorded = true
			case html.TextNode:
				if strings.TrimSpace(rec.Target.Data) == "" {
					return
				}
				if p := rec.Target.Parent; p != nil && p.Type == html.ElementNode {
					o.pending.addSubtree(p)
					recorded = true
				}
			}
		})

	case dom.OpText:
		node, id := o.identifiedAncestor(rec.Target)
		if id != "" {
			o.pending.addUpdate(id, o.engine.TextOf(node))
			recorded = true
		} else {
			// Not yet identified: pick it up as a resegmentation instead.
			o.doc.Exclusive(func() {
				if p := rec.Target.Parent; p != nil && p.Type == html.ElementNode {
					o.pending.addSubtree(p)
					recorded = true
				}
			})
		}
	}

	if recorded {
		o.deb.restart()
	}
}

// identifiedAncestor climbs from a text node to the nearest element
// already carrying a block identifier.
func (o *Observer) identifiedAncestor(n *html.Node) (node *html.Node, id string) {
	o.doc.Exclusive(func() {
		for p := n.Parent; p != nil && p.Type == html.ElementNode; p = p.Parent {
			if v, ok := dom.Attr(p, segment.IDAttr); ok && v != "" {
				node, id = p, v
				return
			}
		}
	})
	return node, id
}

// flushLocked drains the pending set: partial passes over new subtrees
// first, then text updates, so a node inserted and edited in the same
// window is announced once with its final text. Empty halves emit nothing.
func (o *Observer) flushLocked() {
	o.deb.stop()
	if o.pending.empty() {
		return
	}

	var fresh []segment.Block
	for _, root := range o.pending.subtrees {
		// A subtree inserted then detached before the flush has nothing
		// to announce.
		var attached bool
		o.doc.Exclusive(func() {
			attached = dom.Contains(o.doc.Root(), root)
		})
		if !attached {
			continue
		}
		for _, b := range o.engine.Partial(root) {
			if o.known[b.ID] {
				continue
			}
			o.known[b.ID] = true
			fresh = append(fresh, b)
		}
	}
	if len(fresh) > 0 {
		if err := o.sink.NewBlocks(o.ctx, fresh); err != nil {
			o.logger.Error("observe: send new blocks failed", "error", err)
		}
	}

	for _, id := range o.pending.updateOrder {
		if err := o.sink.TextUpdated(o.ctx, id, o.pending.updates[id]); err != nil {
			o.logger.Error("observe: send text update failed", "error", err, "id", id)
		}
	}

	o.pending.clear()
}
