package panel

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hazyhaar/pagesync/relay"
	"github.com/hazyhaar/pagesync/segment"
	"github.com/hazyhaar/pagesync/settings"
	"github.com/hazyhaar/pagesync/translate"
	"github.com/hazyhaar/pagesync/wire"
)

// scriptedDoc is a relay document endpoint with a canned extraction.
type scriptedDoc struct {
	reply     wire.Message
	delivered []wire.Message
}

func (d *scriptedDoc) Extract(context.Context) (wire.Message, error) { return d.reply, nil }

func (d *scriptedDoc) Deliver(_ context.Context, msg wire.Message) error {
	d.delivered = append(d.delivered, msg)
	return nil
}

// upperTranslator uppercases instead of translating.
type upperTranslator struct {
	calls [][]string
	err   error
}

func (u *upperTranslator) Translate(_ context.Context, texts []string, _, _ string, _ translate.Progress) ([]string, error) {
	u.calls = append(u.calls, append([]string(nil), texts...))
	if u.err != nil {
		return nil, u.err
	}
	out := make([]string, len(texts))
	for i, s := range texts {
		out[i] = "<" + s + ">"
	}
	return out, nil
}

func openPanel(t *testing.T, doc *scriptedDoc, tr translate.Translator) (*Panel, *relay.Relay) {
	t.Helper()
	r := relay.New()
	if doc != nil {
		r.RegisterDocument(1, doc)
	}
	r.SetActiveTab(1)

	store, err := settings.Open(filepath.Join(t.TempDir(), "s.db"))
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	p := Open(t.Context(), Config{
		TabID:      1,
		Relay:      r,
		Translator: tr,
		Settings:   store,
	})
	t.Cleanup(p.Close)
	return p, r
}

// wait lets the panel's event loop drain the pipe.
func wait() { time.Sleep(30 * time.Millisecond) }

func TestOpenBindsChannel(t *testing.T) {
	_, r := openPanel(t, nil, nil)
	if !r.PanelOpen(1) {
		t.Error("open did not bind the channel")
	}
}

func TestCloseUnbindsChannel(t *testing.T) {
	r := relay.New()
	store, _ := settings.Open(filepath.Join(t.TempDir(), "s.db"))
	defer store.Close()
	p := Open(t.Context(), Config{TabID: 2, Relay: r, Settings: store})
	p.Close()
	if r.PanelOpen(2) {
		t.Error("close left the channel bound")
	}
}

func TestExtractPopulatesBlocks(t *testing.T) {
	doc := &scriptedDoc{reply: wire.PageText([]segment.Block{
		{ID: "ps-1", Text: "one", Section: segment.SectionMain},
		{ID: "ps-2", Text: "two", Section: segment.SectionFooter},
	}, "fr")}
	p, _ := openPanel(t, doc, nil)

	if err := p.Extract(context.Background()); err != nil {
		t.Fatalf("extract: %v", err)
	}
	blocks := p.Blocks()
	if len(blocks) != 2 || blocks[0].ID != "ps-1" || blocks[1].Text != "two" {
		t.Errorf("got %+v", blocks)
	}
}

func TestExtractUnreachable(t *testing.T) {
	p, _ := openPanel(t, nil, nil) // no document registered
	err := p.Extract(context.Background())
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("got %v, want ErrUnreachable", err)
	}
}

func TestNewBlocksAppendInOrder(t *testing.T) {
	p, r := openPanel(t, nil, nil)

	r.EventFromTab(1, wire.NewBlocks([]segment.Block{{ID: "ps-1", Text: "first"}}))
	r.EventFromTab(1, wire.NewBlocks([]segment.Block{{ID: "ps-2", Text: "second"}}))
	// A duplicate announcement must not double the block.
	r.EventFromTab(1, wire.NewBlocks([]segment.Block{{ID: "ps-1", Text: "first"}}))
	wait()

	blocks := p.Blocks()
	if len(blocks) != 2 || blocks[0].ID != "ps-1" || blocks[1].ID != "ps-2" {
		t.Errorf("got %+v", blocks)
	}
}

func TestTextUpdateInvalidatesTranslation(t *testing.T) {
	tr := &upperTranslator{}
	p, r := openPanel(t, nil, tr)

	r.EventFromTab(1, wire.NewBlocks([]segment.Block{{ID: "ps-1", Text: "bonjour"}}))
	wait()
	if err := p.Translate(context.Background(), nil); err != nil {
		t.Fatalf("translate: %v", err)
	}
	if got := p.Blocks()[0].Translated; got != "<bonjour>" {
		t.Fatalf("got %q", got)
	}

	r.EventFromTab(1, wire.TextUpdated("ps-1", "salut"))
	wait()
	blocks := p.Blocks()
	if blocks[0].Text != "salut" {
		t.Errorf("text not updated: %+v", blocks[0])
	}
	if blocks[0].Translated != "" {
		t.Errorf("stale translation survived the edit: %+v", blocks[0])
	}

	// Retranslation sends only the invalidated block.
	if err := p.Translate(context.Background(), nil); err != nil {
		t.Fatalf("retranslate: %v", err)
	}
	last := tr.calls[len(tr.calls)-1]
	if len(last) != 1 || last[0] != "salut" {
		t.Errorf("retranslation batch %v, want just the edited text", last)
	}
}

func TestIdenticalTextUpdateKeepsTranslation(t *testing.T) {
	tr := &upperTranslator{}
	p, r := openPanel(t, nil, tr)

	r.EventFromTab(1, wire.NewBlocks([]segment.Block{{ID: "ps-1", Text: "same"}}))
	wait()
	p.Translate(context.Background(), nil)

	r.EventFromTab(1, wire.TextUpdated("ps-1", "same"))
	wait()
	if got := p.Blocks()[0].Translated; got != "<same>" {
		t.Errorf("no-op update dropped the translation: %q", got)
	}
}

func TestPageRefreshedResets(t *testing.T) {
	p, r := openPanel(t, nil, nil)

	r.EventFromTab(1, wire.NewBlocks([]segment.Block{{ID: "ps-1", Text: "old"}}))
	wait()
	r.EventFromTab(1, wire.PageRefreshed())
	wait()

	if blocks := p.Blocks(); len(blocks) != 0 {
		t.Errorf("blocks survived refresh: %+v", blocks)
	}
}

func TestHoveredMirrorsEvents(t *testing.T) {
	p, r := openPanel(t, nil, nil)

	r.EventFromTab(1, wire.Hovered("ps-9"))
	wait()
	if p.Hovered() != "ps-9" {
		t.Errorf("hovered = %q", p.Hovered())
	}
	r.EventFromTab(1, wire.Hovered(""))
	wait()
	if p.Hovered() != "" {
		t.Errorf("hovered none not mirrored: %q", p.Hovered())
	}
}

func TestClickCallback(t *testing.T) {
	r := relay.New()
	store, _ := settings.Open(filepath.Join(t.TempDir(), "s.db"))
	defer store.Close()

	clicked := make(chan string, 1)
	p := Open(t.Context(), Config{
		TabID:     1,
		Relay:     r,
		Settings:  store,
		OnClicked: func(id string) { clicked <- id },
	})
	defer p.Close()

	r.EventFromTab(1, wire.Clicked("ps-3"))
	select {
	case id := <-clicked:
		if id != "ps-3" {
			t.Errorf("clicked %q", id)
		}
	case <-time.After(time.Second):
		t.Fatal("click callback never fired")
	}
}

func TestCommandsReachDocument(t *testing.T) {
	doc := &scriptedDoc{reply: wire.PageText(nil, "")}
	p, _ := openPanel(t, doc, nil)
	ctx := context.Background()

	if err := p.Highlight(ctx, "ps-1"); err != nil {
		t.Fatalf("highlight: %v", err)
	}
	if err := p.ScrollTo(ctx, "ps-1"); err != nil {
		t.Fatalf("scroll: %v", err)
	}
	if err := p.SetMode(ctx, false); err != nil {
		t.Fatalf("set mode: %v", err)
	}

	if len(doc.delivered) != 3 {
		t.Fatalf("delivered %d commands, want 3", len(doc.delivered))
	}
	if doc.delivered[0].Kind != wire.KindHighlightElement ||
		doc.delivered[1].Kind != wire.KindScrollToElement ||
		doc.delivered[2].Kind != wire.KindSetMode {
		t.Errorf("kinds: %v %v %v", doc.delivered[0].Kind, doc.delivered[1].Kind, doc.delivered[2].Kind)
	}
}

func TestTranslateAdvice(t *testing.T) {
	tr := &upperTranslator{err: translate.ErrDownloadRequired}
	p, r := openPanel(t, nil, tr)

	r.EventFromTab(1, wire.NewBlocks([]segment.Block{{ID: "ps-1", Text: "x"}}))
	wait()
	err := p.Translate(context.Background(), nil)
	if !errors.Is(err, translate.ErrDownloadRequired) {
		t.Fatalf("got %v", err)
	}
	if Advice(err) == "" {
		t.Error("download failure must carry user advice")
	}
}

func TestNilSettingsStoreRunsOnDefaults(t *testing.T) {
	doc := &scriptedDoc{}
	tr := &upperTranslator{}
	r := relay.New()
	r.RegisterDocument(3, doc)
	r.SetActiveTab(3)

	// No settings store at all: translate and mode changes must still work.
	p := Open(t.Context(), Config{TabID: 3, Relay: r, Translator: tr})
	t.Cleanup(p.Close)

	r.EventFromTab(3, wire.NewBlocks([]segment.Block{{ID: "ps-1", Text: "hello"}}))
	wait()

	if err := p.Translate(context.Background(), nil); err != nil {
		t.Fatalf("translate without store: %v", err)
	}
	if len(tr.calls) != 1 || len(tr.calls[0]) != 1 {
		t.Fatalf("translator calls: %+v", tr.calls)
	}
	if err := p.SetMode(context.Background(), false); err != nil {
		t.Fatalf("set mode without store: %v", err)
	}
}
