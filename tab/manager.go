package tab

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/pagesync/dom"
	"github.com/hazyhaar/pagesync/relay"
)

// Options are the per-tab defaults a Manager applies.
type Options struct {
	DebounceWindow time.Duration
	HoverDebounce  time.Duration
	FlashDuration  time.Duration
}

// Manager tracks the open tabs and their controllers. It is the only
// place tab IDs are minted.
type Manager struct {
	relay  *relay.Relay
	opts   Options
	logger *slog.Logger

	mu     sync.Mutex
	tabs   map[int]*Controller
	nextID int
}

// NewManager creates a Manager routing through the given relay.
func NewManager(r *relay.Relay, opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		relay:  r,
		opts:   opts,
		logger: logger,
		tabs:   make(map[int]*Controller),
		nextID: 1,
	}
}

// Open creates a tab for a parsed document, registers its document
// context with the relay, and makes it the active tab if it is the first.
func (m *Manager) Open(doc *dom.Document) *Controller {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	c := New(Config{
		TabID:          id,
		Doc:            doc,
		Relay:          m.relay,
		DebounceWindow: m.opts.DebounceWindow,
		HoverDebounce:  m.opts.HoverDebounce,
		FlashDuration:  m.opts.FlashDuration,
		Logger:         m.logger,
	})
	m.tabs[id] = c
	first := len(m.tabs) == 1
	m.mu.Unlock()

	m.relay.RegisterDocument(id, c)
	if first {
		m.relay.SetActiveTab(id)
	}
	m.logger.Info("tab: opened", "tab", id)
	return c
}

// OpenHTML parses src and opens a tab for it.
func (m *Manager) OpenHTML(src string) (*Controller, error) {
	doc, err := dom.ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("tab: open: %w", err)
	}
	return m.Open(doc), nil
}

// Get returns the controller for a tab.
func (m *Manager) Get(tabID int) (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.tabs[tabID]
	return c, ok
}

// Tabs returns the open tab IDs in ascending order of creation.
func (m *Manager) Tabs() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, 0, len(m.tabs))
	for id := 1; id < m.nextID; id++ {
		if _, ok := m.tabs[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Activate focuses a tab: subsequent commands route to it.
func (m *Manager) Activate(tabID int) error {
	if _, ok := m.Get(tabID); !ok {
		return fmt.Errorf("tab: no tab %d", tabID)
	}
	m.relay.SetActiveTab(tabID)
	return nil
}

// CloseTab destroys a tab's controller and all relay state for it.
func (m *Manager) CloseTab(tabID int) {
	m.mu.Lock()
	c, ok := m.tabs[tabID]
	delete(m.tabs, tabID)
	m.mu.Unlock()
	if !ok {
		return
	}
	c.Close()
	m.relay.TabClosed(tabID)
	m.logger.Info("tab: closed", "tab", tabID)
}

// Close destroys all tabs.
func (m *Manager) Close() {
	for _, id := range m.Tabs() {
		m.CloseTab(id)
	}
}
