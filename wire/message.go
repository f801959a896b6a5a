// Package wire defines the closed message taxonomy exchanged between
// document contexts, the relay, and presentation contexts. Every inbound
// payload at a trust boundary goes through Decode, which rejects unknown
// kinds and malformed shapes instead of coercing them.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hazyhaar/pagesync/segment"
)

// Kind tags a message. The set is closed: anything else is rejected at
// the boundary.
type Kind string

const (
	KindExtractRequest     Kind = "extract_request"
	KindPageText           Kind = "page_text"
	KindNewBlocks          Kind = "new_blocks"
	KindTextUpdated        Kind = "text_updated"
	KindElementHovered     Kind = "element_hovered"
	KindElementClicked     Kind = "element_clicked"
	KindHighlightElement   Kind = "highlight_element"
	KindUnhighlightElement Kind = "unhighlight_element"
	KindScrollToElement    Kind = "scroll_to_element"
	KindModeChanged        Kind = "mode_changed"
	KindSetMode            Kind = "set_mode"
	KindPageRefreshed      Kind = "page_refreshed"
	KindChannelReady       Kind = "channel_ready"
)

// ErrUnknownKind rejects messages whose kind is outside the closed set.
var ErrUnknownKind = errors.New("wire: unknown message kind")

// ErrInvalid rejects messages of a known kind missing required fields.
var ErrInvalid = errors.New("wire: invalid message")

// Message is the tagged union crossing context boundaries. Which fields
// are meaningful depends on Kind; Validate enforces the per-kind shape.
type Message struct {
	Kind   Kind            `json:"kind"`
	TabID  int             `json:"tab_id,omitempty"`
	Blocks []segment.Block `json:"blocks,omitempty"`
	ID     string          `json:"id,omitempty"`
	Text   string          `json:"text,omitempty"`
	// LanguageHint is the page language detected during extraction,
	// best-effort; absence is not an error.
	LanguageHint string `json:"language_hint,omitempty"`
	Enabled      bool   `json:"enabled,omitempty"`
	// Error carries the explicit failure sentinel on a PageText reply
	// when the document context was unreachable.
	Error string `json:"error,omitempty"`
}

// Validate enforces the closed set and per-kind required fields.
func (m Message) Validate() error {
	switch m.Kind {
	case KindExtractRequest, KindPageRefreshed, KindModeChanged, KindSetMode:
		return nil
	case KindPageText:
		// Zero blocks is a valid empty result; Error marks unreachable.
		return nil
	case KindNewBlocks:
		if len(m.Blocks) == 0 {
			return fmt.Errorf("%w: %s without blocks", ErrInvalid, m.Kind)
		}
		return nil
	case KindTextUpdated, KindElementClicked, KindHighlightElement,
		KindUnhighlightElement, KindScrollToElement:
		if m.ID == "" {
			return fmt.Errorf("%w: %s without id", ErrInvalid, m.Kind)
		}
		return nil
	case KindElementHovered:
		// Empty ID means "hovered: none".
		return nil
	case KindChannelReady:
		if m.TabID <= 0 {
			return fmt.Errorf("%w: %s without tab id", ErrInvalid, m.Kind)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, m.Kind)
	}
}

// Decode parses and validates an inbound payload.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Encode serialises a message for transport.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Constructors for the messages the engine emits and consumes.

func ExtractRequest() Message { return Message{Kind: KindExtractRequest} }

// PageText is the extraction reply.
func PageText(blocks []segment.Block, languageHint string) Message {
	return Message{Kind: KindPageText, Blocks: blocks, LanguageHint: languageHint}
}

// PageTextError is the explicit failure sentinel for an unreachable
// document context.
func PageTextError(reason string) Message {
	return Message{Kind: KindPageText, Error: reason}
}

func NewBlocks(blocks []segment.Block) Message {
	return Message{Kind: KindNewBlocks, Blocks: blocks}
}

func TextUpdated(id, text string) Message {
	return Message{Kind: KindTextUpdated, ID: id, Text: text}
}

// Hovered reports the settled hover target; empty id clears it.
func Hovered(id string) Message { return Message{Kind: KindElementHovered, ID: id} }

func Clicked(id string) Message { return Message{Kind: KindElementClicked, ID: id} }

func HighlightElement(id string) Message {
	return Message{Kind: KindHighlightElement, ID: id}
}

func UnhighlightElement(id string) Message {
	return Message{Kind: KindUnhighlightElement, ID: id}
}

func ScrollToElement(id string) Message {
	return Message{Kind: KindScrollToElement, ID: id}
}

func SetMode(enabled bool) Message { return Message{Kind: KindSetMode, Enabled: enabled} }

func ModeChanged(enabled bool) Message {
	return Message{Kind: KindModeChanged, Enabled: enabled}
}

func PageRefreshed() Message { return Message{Kind: KindPageRefreshed} }

func ChannelReady(tabID int) Message {
	return Message{Kind: KindChannelReady, TabID: tabID}
}
