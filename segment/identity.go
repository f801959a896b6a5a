package segment

import (
	"strconv"

	"golang.org/x/net/html"

	"github.com/hazyhaar/pagesync/dom"
)

// IDAttr is the attribute the engine writes block identifiers into.
// Observers must filter mutations of this attribute to avoid feeding the
// engine's own writes back into change detection.
const IDAttr = "data-psid"

const idPrefix = "ps"

// Hash is a fast non-cryptographic 32-bit content hash (FNV-1a): XOR each
// byte into the accumulator, then multiply by the FNV prime with unsigned
// wraparound. Order-sensitive and position-weighted; collisions across
// distinct texts are tolerable because identifiers only route latest
// values, they are not proofs of identity.
func Hash(text string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(text); i++ {
		h ^= uint32(text[i])
		h *= 16777619
	}
	return h
}

// assigner hands out identifiers for one document. The occurrence table
// is scoped to the current epoch: it resets on every full pass so that
// repeated identical texts (menu labels, list bullets) stay individually
// addressable without leaking counters across extractions.
type assigner struct {
	seen map[uint32]int
}

func newAssigner() *assigner {
	return &assigner{seen: make(map[uint32]int)}
}

// reset opens a new epoch.
func (a *assigner) reset() {
	a.seen = make(map[uint32]int)
}

// assign returns the node's identifier, computing and writing one if the
// node does not carry it yet. Idempotent: an already-identified node keeps
// its identifier, which is what makes overlapping partial passes safe.
// The attribute goes straight onto the node, bypassing the document's
// notification path, so the engine can never observe its own writes.
func (a *assigner) assign(n *html.Node, text string) string {
	if id, ok := dom.Attr(n, IDAttr); ok && id != "" {
		return id
	}

	h := Hash(text)
	id := idPrefix + "-" + strconv.FormatUint(uint64(h), 36)
	if c := a.seen[h]; c > 0 {
		id += "-" + strconv.Itoa(c)
	}
	a.seen[h]++

	setNodeAttr(n, IDAttr, id)
	return id
}

// setNodeAttr and removeNodeAttr are the engine's silent writes: they
// touch the node directly and emit no mutation record.
func setNodeAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeNodeAttr(n *html.Node, key string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}
