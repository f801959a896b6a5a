// Package panel is the presentation context: one open panel per tab,
// holding the ordered block list, mirroring incremental events pushed by
// the relay, issuing highlight/scroll commands, and orchestrating
// translation of ordered text batches against the configured backend.
package panel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hazyhaar/pagesync/relay"
	"github.com/hazyhaar/pagesync/segment"
	"github.com/hazyhaar/pagesync/settings"
	"github.com/hazyhaar/pagesync/translate"
	"github.com/hazyhaar/pagesync/wire"
)

// ErrUnreachable is returned when the document context cannot be reached.
// The accompanying user action is to reload the page, not to retry
// automatically.
var ErrUnreachable = errors.New("panel: page not reachable, reload the page and try again")

// BlockView is a block as the panel renders it: source text plus the
// latest translation, if any.
type BlockView struct {
	ID         string          `json:"id"`
	Text       string          `json:"text"`
	Section    segment.Section `json:"section"`
	Translated string          `json:"translated,omitempty"`
}

// Config for opening a Panel.
type Config struct {
	TabID      int
	Relay      *relay.Relay
	Translator translate.Translator
	// Settings is optional; a nil store means the defaults apply and
	// mode changes are not persisted.
	Settings *settings.Store
	// OnClicked is invoked when the document context reports a block
	// click. Optional.
	OnClicked func(id string)
	// Buffer sizes the event channel. Default: 64.
	Buffer int
	Logger *slog.Logger
}

// Panel is one open presentation surface bound to a tab.
type Panel struct {
	tabID      int
	relay      *relay.Relay
	translator translate.Translator
	store      *settings.Store
	onClicked  func(id string)
	logger     *slog.Logger
	pipe       *relay.Pipe

	mu           sync.Mutex
	blocks       []segment.Block
	index        map[string]int
	translations map[string]string
	languageHint string
	hovered      string
	enabled      bool
}

// Open creates the panel, binds its channel to the tab (replacing any
// prior panel for that tab), and starts consuming pushed events.
func Open(ctx context.Context, cfg Config) *Panel {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	p := &Panel{
		tabID:        cfg.TabID,
		relay:        cfg.Relay,
		translator:   cfg.Translator,
		store:        cfg.Settings,
		onClicked:    cfg.OnClicked,
		logger:       cfg.Logger,
		pipe:         relay.NewPipe(cfg.Buffer),
		index:        make(map[string]int),
		translations: make(map[string]string),
		enabled:      true,
	}
	p.relay.OpenChannel(p.tabID, p.pipe)
	go p.loop(ctx)
	return p
}

// Close disconnects the panel. The relay drops the binding, so the next
// open for this tab is a fresh open.
func (p *Panel) Close() {
	p.relay.CloseChannel(p.tabID)
	p.pipe.Close()
}

// TabID returns the tab this panel is bound to.
func (p *Panel) TabID() int { return p.tabID }

func (p *Panel) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-p.pipe.Receive():
			if !ok {
				return
			}
			p.apply(msg)
		}
	}
}

// apply folds one pushed event into the panel state.
func (p *Panel) apply(msg wire.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch msg.Kind {
	case wire.KindNewBlocks:
		for _, b := range msg.Blocks {
			if _, ok := p.index[b.ID]; ok {
				continue
			}
			p.index[b.ID] = len(p.blocks)
			p.blocks = append(p.blocks, b)
		}

	case wire.KindTextUpdated:
		idx, ok := p.index[msg.ID]
		if !ok {
			break
		}
		// Identical before/after text is a no-op: the stale translation
		// stays valid and nothing needs re-rendering.
		if p.blocks[idx].Text == msg.Text {
			break
		}
		p.blocks[idx].Text = msg.Text
		delete(p.translations, msg.ID)

	case wire.KindElementHovered:
		p.hovered = msg.ID

	case wire.KindElementClicked:
		if p.onClicked != nil {
			go p.onClicked(msg.ID)
		}

	case wire.KindModeChanged:
		p.enabled = msg.Enabled

	case wire.KindPageRefreshed:
		// The tab started navigating: reset before the document context
		// re-announces itself.
		p.resetLocked()

	default:
		p.logger.Debug("panel: ignoring pushed message", "kind", msg.Kind)
	}
}

func (p *Panel) resetLocked() {
	p.blocks = nil
	p.index = make(map[string]int)
	p.translations = make(map[string]string)
	p.languageHint = ""
	p.hovered = ""
}

// Extract asks the relay for a fresh full extraction of the active tab
// and replaces the panel's block list with the result.
func (p *Panel) Extract(ctx context.Context) error {
	reply := p.relay.Extract(ctx)
	if reply.Error != "" {
		return fmt.Errorf("%w: %s", ErrUnreachable, reply.Error)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	p.languageHint = reply.LanguageHint
	for _, b := range reply.Blocks {
		p.index[b.ID] = len(p.blocks)
		p.blocks = append(p.blocks, b)
	}
	return nil
}

// Translate runs the untranslated blocks through the backend as one
// ordered batch. The source language comes from settings, falling back
// to the page's detected hint. Failures carry the taxonomy of the
// translate package; Advice turns them into the user's next step.
func (p *Panel) Translate(ctx context.Context, onProgress translate.Progress) error {
	cfg, err := p.settings(ctx)
	if err != nil {
		return fmt.Errorf("panel: settings: %w", err)
	}

	p.mu.Lock()
	source := cfg.SourceLanguage
	if source == "" {
		source = p.languageHint
	}
	var ids []string
	var texts []string
	for _, b := range p.blocks {
		if _, done := p.translations[b.ID]; done {
			continue
		}
		ids = append(ids, b.ID)
		texts = append(texts, b.Text)
	}
	p.mu.Unlock()

	if len(texts) == 0 {
		return nil
	}

	out, err := p.translator.Translate(ctx, texts, source, cfg.TargetLanguage, onProgress)
	if err != nil {
		return err
	}

	p.mu.Lock()
	for i, id := range ids {
		p.translations[id] = out[i]
	}
	p.mu.Unlock()
	return nil
}

// Advice maps a Translate error to the actionable next step shown to the
// user.
func Advice(err error) string {
	return translate.UserAction(translate.Classify(err))
}

// Blocks returns the current view in document order.
func (p *Panel) Blocks() []BlockView {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]BlockView, len(p.blocks))
	for i, b := range p.blocks {
		out[i] = BlockView{
			ID:         b.ID,
			Text:       b.Text,
			Section:    b.Section,
			Translated: p.translations[b.ID],
		}
	}
	return out
}

// Hovered returns the identifier the document context last reported as
// hovered, or "".
func (p *Panel) Hovered() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hovered
}

// Highlight commands the active tab to highlight a block.
func (p *Panel) Highlight(ctx context.Context, id string) error {
	return p.relay.Command(ctx, wire.HighlightElement(id))
}

// Unhighlight removes a commanded highlight.
func (p *Panel) Unhighlight(ctx context.Context, id string) error {
	return p.relay.Command(ctx, wire.UnhighlightElement(id))
}

// ScrollTo commands the active tab to scroll a block into view and flash
// it.
func (p *Panel) ScrollTo(ctx context.Context, id string) error {
	return p.relay.Command(ctx, wire.ScrollToElement(id))
}

// SetMode toggles interaction mode on the active tab and persists the
// preference.
func (p *Panel) SetMode(ctx context.Context, enabled bool) error {
	if p.store != nil {
		p.store.Set(ctx, settings.Partial{Enabled: &enabled})
	}
	return p.relay.Command(ctx, wire.SetMode(enabled))
}

// settings reads the store, or the defaults when none is configured.
func (p *Panel) settings(ctx context.Context) (settings.Settings, error) {
	if p.store == nil {
		return settings.Defaults(), nil
	}
	return p.store.Get(ctx)
}
