package relay

import (
	"errors"
	"sync"

	"github.com/hazyhaar/pagesync/wire"
)

// ErrChannelClosed marks delivery into a severed channel. The relay
// responds by dropping the message and removing the binding.
var ErrChannelClosed = errors.New("relay: channel closed")

// ErrChannelFull marks a temporarily congested channel. The message is
// dropped but the binding survives.
var ErrChannelFull = errors.New("relay: channel buffer full")

// Channel is the presentation side of a persistent per-tab binding.
type Channel interface {
	Push(msg wire.Message) error
}

// Pipe is the in-process Channel: a buffered Go channel the presentation
// context drains. Pushing into a closed Pipe returns ErrChannelClosed
// rather than panicking.
type Pipe struct {
	mu     sync.Mutex
	ch     chan wire.Message
	closed bool
}

// NewPipe creates a Pipe with the given buffer (default 64).
func NewPipe(buffer int) *Pipe {
	if buffer <= 0 {
		buffer = 64
	}
	return &Pipe{ch: make(chan wire.Message, buffer)}
}

// Push delivers a message to the consumer, never blocking the relay.
func (p *Pipe) Push(msg wire.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrChannelClosed
	}
	select {
	case p.ch <- msg:
		return nil
	default:
		return ErrChannelFull
	}
}

// Receive returns the consumer side. It is closed when the Pipe closes.
func (p *Pipe) Receive() <-chan wire.Message { return p.ch }

// Close severs the channel. Idempotent.
func (p *Pipe) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.ch)
}
