// Package relay is the privileged intermediary multiplexing messages
// between document contexts and presentation contexts. It owns the only
// state shared across tabs: the tab-to-channel table, mutated solely by
// the relay itself with last-writer-wins semantics on re-registration.
//
// Routing rules: events sourced from a document context travel on the
// sending event's originating-tab identity, never the currently focused
// tab, so a hover emitted from tab 7 reaches tab 7's panel even after the
// user switches to tab 3. Commands sourced from a presentation context
// travel to the currently active tab at command time.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hazyhaar/pagesync/wire"
)

// UnreachableReason is the failure sentinel carried by a PageText reply
// when the document context cannot be reached. It is user-actionable:
// reloading the page re-announces the context.
const UnreachableReason = "document context unreachable: reload the page and try again"

// DocumentEndpoint is a document context as seen by the relay.
type DocumentEndpoint interface {
	// Extract runs a full extraction and returns the PageText reply.
	Extract(ctx context.Context) (wire.Message, error)
	// Deliver applies a presentation-side command.
	Deliver(ctx context.Context, msg wire.Message) error
}

// Relay routes between tabs' document contexts and panel channels.
type Relay struct {
	mu        sync.Mutex
	docs      map[int]DocumentEndpoint
	channels  map[int]Channel
	panelOpen map[int]bool
	activeTab int
	logger    *slog.Logger
}

// Option configures a Relay.
type Option func(*Relay)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Relay) { r.logger = l }
}

// New creates an empty Relay.
func New(opts ...Option) *Relay {
	r := &Relay{
		docs:      make(map[int]DocumentEndpoint),
		channels:  make(map[int]Channel),
		panelOpen: make(map[int]bool),
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RegisterDocument announces a tab's document context.
func (r *Relay) RegisterDocument(tabID int, ep DocumentEndpoint) {
	r.mu.Lock()
	r.docs[tabID] = ep
	r.mu.Unlock()
	r.logger.Debug("relay: document registered", "tab", tabID)
}

// UnregisterDocument removes a tab's document context.
func (r *Relay) UnregisterDocument(tabID int) {
	r.mu.Lock()
	delete(r.docs, tabID)
	r.mu.Unlock()
}

// SetActiveTab records which tab currently has focus. Commands are
// resolved against this at command time.
func (r *Relay) SetActiveTab(tabID int) {
	r.mu.Lock()
	r.activeTab = tabID
	r.mu.Unlock()
}

// ActiveTab returns the currently focused tab.
func (r *Relay) ActiveTab() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeTab
}

// OpenChannel binds a presentation channel to a tab. A prior binding for
// the same tab is replaced: one panel per tab, last registered wins.
func (r *Relay) OpenChannel(tabID int, ch Channel) {
	r.mu.Lock()
	_, replaced := r.channels[tabID]
	r.channels[tabID] = ch
	r.panelOpen[tabID] = true
	r.mu.Unlock()
	r.logger.Debug("relay: channel open", "tab", tabID, "replaced", replaced)
}

// CloseChannel removes a tab's channel binding and its panel-open
// bookkeeping, so the next open is a fresh open rather than a stale
// toggle.
func (r *Relay) CloseChannel(tabID int) {
	r.mu.Lock()
	delete(r.channels, tabID)
	delete(r.panelOpen, tabID)
	r.mu.Unlock()
	r.logger.Debug("relay: channel closed", "tab", tabID)
}

// PanelOpen reports whether a panel is currently bound for the tab.
func (r *Relay) PanelOpen(tabID int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.panelOpen[tabID]
}

// TabClosed tears down everything the relay holds for a tab.
func (r *Relay) TabClosed(tabID int) {
	r.mu.Lock()
	delete(r.docs, tabID)
	delete(r.channels, tabID)
	delete(r.panelOpen, tabID)
	r.mu.Unlock()
	r.logger.Debug("relay: tab closed", "tab", tabID)
}

// TabReloading proactively notifies the bound panel that its tab started
// navigating, so it can reset local state before the document context
// re-announces itself.
func (r *Relay) TabReloading(tabID int) {
	r.EventFromTab(tabID, wire.PageRefreshed())
}

// Extract resolves the currently active tab and forwards the extraction
// request to its document context. An unreachable context resolves to an
// explicit failure sentinel, never an unresolved request.
func (r *Relay) Extract(ctx context.Context) wire.Message {
	r.mu.Lock()
	tab := r.activeTab
	doc := r.docs[tab]
	r.mu.Unlock()

	if doc == nil {
		r.logger.Warn("relay: extract with no document context", "tab", tab)
		return wire.PageTextError(UnreachableReason)
	}

	reply, err := doc.Extract(ctx)
	if err != nil {
		r.logger.Warn("relay: extract failed", "tab", tab, "error", err)
		return wire.PageTextError(UnreachableReason)
	}
	reply.TabID = tab
	return reply
}

// Command routes a presentation-side command to the active tab's
// document context.
func (r *Relay) Command(ctx context.Context, msg wire.Message) error {
	switch msg.Kind {
	case wire.KindHighlightElement, wire.KindUnhighlightElement,
		wire.KindScrollToElement, wire.KindSetMode:
	default:
		return fmt.Errorf("relay: %q is not a command: %w", msg.Kind, wire.ErrInvalid)
	}

	r.mu.Lock()
	tab := r.activeTab
	doc := r.docs[tab]
	r.mu.Unlock()

	if doc == nil {
		return fmt.Errorf("relay: no document context for tab %d", tab)
	}
	return doc.Deliver(ctx, msg)
}

// EventFromTab pushes a document-context event to the channel bound to
// the originating tab. A missing binding drops the event; a severed
// channel drops the event and removes the binding; one tab's failure
// never disturbs another's binding or crashes the relay.
func (r *Relay) EventFromTab(tabID int, msg wire.Message) {
	if err := msg.Validate(); err != nil {
		r.logger.Warn("relay: rejected malformed event", "tab", tabID, "error", err)
		return
	}

	r.mu.Lock()
	ch := r.channels[tabID]
	r.mu.Unlock()
	if ch == nil {
		r.logger.Debug("relay: event for unbound tab dropped", "tab", tabID, "kind", msg.Kind)
		return
	}

	if err := r.push(ch, msg); err != nil {
		r.logger.Warn("relay: deliver failed", "tab", tabID, "kind", msg.Kind, "error", err)
		if err != ErrChannelFull {
			r.CloseChannel(tabID)
		}
	}
}

// Dispatch is the validating boundary entry for raw payloads arriving at
// the relay. Malformed or unknown messages are rejected here, logged and
// dropped, never propagated.
func (r *Relay) Dispatch(ctx context.Context, originTab int, raw []byte) (wire.Message, error) {
	msg, err := wire.Decode(raw)
	if err != nil {
		r.logger.Warn("relay: rejected inbound message", "tab", originTab, "error", err)
		return wire.Message{}, err
	}

	switch msg.Kind {
	case wire.KindExtractRequest:
		return r.Extract(ctx), nil
	case wire.KindHighlightElement, wire.KindUnhighlightElement,
		wire.KindScrollToElement, wire.KindSetMode:
		return wire.Message{}, r.Command(ctx, msg)
	case wire.KindNewBlocks, wire.KindTextUpdated, wire.KindElementHovered,
		wire.KindElementClicked, wire.KindModeChanged, wire.KindPageRefreshed:
		r.EventFromTab(originTab, msg)
		return wire.Message{}, nil
	case wire.KindChannelReady:
		return wire.Message{}, fmt.Errorf("relay: channel_ready requires a transport channel")
	default:
		return wire.Message{}, fmt.Errorf("%w: %q", wire.ErrUnknownKind, msg.Kind)
	}
}

// push isolates channel delivery: a misbehaving channel implementation
// must not take the relay down with it.
func (r *Relay) push(ch Channel, msg wire.Message) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("relay: channel panic: %v", rec)
		}
	}()
	return ch.Push(msg)
}
