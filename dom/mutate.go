package dom

import "golang.org/x/net/html"

// Op is the type of tree mutation observed.
type Op string

const (
	OpInsert  Op = "insert"   // node added to the tree (element or text)
	OpRemove  Op = "remove"   // node detached from the tree
	OpText    Op = "text"     // character data of an existing text node changed
	OpAttr    Op = "attr"     // attribute set or replaced
	OpAttrDel Op = "attr_del" // attribute removed
)

// Record is a single observed mutation. Target stays valid for the
// duration of the notification only; subscribers must not retain it
// past their own processing.
type Record struct {
	Op       Op
	Target   *html.Node
	Attr     string // attribute name for OpAttr / OpAttrDel
	Value    string // new value for OpText / OpAttr
	OldValue string
}

// Subscription is an active mutation feed. Cancel detaches it; after
// Cancel returns no further records are delivered.
type Subscription struct {
	doc    *Document
	fn     func(Record)
	ignore map[string]bool // attribute names whose mutations are suppressed
}

// Subscribe registers fn to receive every subsequent mutation record,
// synchronously and in write order. fn runs with the document lock held
// and must not call back into the Document; hand the record off to
// another goroutine for any real work. ignoreAttrs lists attribute names
// whose OpAttr/OpAttrDel records are filtered out before delivery.
func (d *Document) Subscribe(fn func(Record), ignoreAttrs ...string) *Subscription {
	ig := make(map[string]bool, len(ignoreAttrs))
	for _, a := range ignoreAttrs {
		ig[a] = true
	}
	s := &Subscription{doc: d, fn: fn, ignore: ig}
	d.mu.Lock()
	d.subs = append(d.subs, s)
	d.mu.Unlock()
	return s
}

// Cancel detaches the subscription from its document.
func (s *Subscription) Cancel() {
	s.doc.mu.Lock()
	defer s.doc.mu.Unlock()
	for i, sub := range s.doc.subs {
		if sub == s {
			s.doc.subs = append(s.doc.subs[:i], s.doc.subs[i+1:]...)
			return
		}
	}
}

func (d *Document) notify(rec Record) {
	for _, s := range d.subs {
		if (rec.Op == OpAttr || rec.Op == OpAttrDel) && s.ignore[rec.Attr] {
			continue
		}
		s.fn(rec)
	}
}

// AppendChild attaches child as the last child of parent and notifies.
func (d *Document) AppendChild(parent, child *html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	parent.AppendChild(child)
	d.notify(Record{Op: OpInsert, Target: child})
}

// InsertBefore attaches child immediately before sibling under parent.
func (d *Document) InsertBefore(parent, child, sibling *html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	parent.InsertBefore(child, sibling)
	d.notify(Record{Op: OpInsert, Target: child})
}

// RemoveChild detaches child from its parent and notifies.
func (d *Document) RemoveChild(child *html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if child.Parent == nil {
		return
	}
	child.Parent.RemoveChild(child)
	d.notify(Record{Op: OpRemove, Target: child})
}

// SetText replaces the character data of a text node and notifies.
func (d *Document) SetText(textNode *html.Node, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if textNode.Type != html.TextNode {
		return
	}
	old := textNode.Data
	textNode.Data = text
	d.notify(Record{Op: OpText, Target: textNode, Value: text, OldValue: old})
}

// SetAttr sets or replaces an attribute on an element and notifies.
func (d *Document) SetAttr(n *html.Node, key, val string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			old := n.Attr[i].Val
			n.Attr[i].Val = val
			d.notify(Record{Op: OpAttr, Target: n, Attr: key, Value: val, OldValue: old})
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
	d.notify(Record{Op: OpAttr, Target: n, Attr: key, Value: val})
}

// RemoveAttr removes an attribute from an element and notifies. Removing
// an absent attribute is a no-op.
func (d *Document) RemoveAttr(n *html.Node, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			old := n.Attr[i].Val
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			d.notify(Record{Op: OpAttrDel, Target: n, Attr: key, OldValue: old})
			return
		}
	}
}
