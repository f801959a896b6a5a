package observe

import "golang.org/x/net/html"

// pendingSet is the short-lived accumulator between flushes: subtree
// roots awaiting (re)segmentation and identified-node text updates.
// Update entries keep first-recorded order with last-recorded values so
// a flush emits them deterministically.
type pendingSet struct {
	subtrees    []*html.Node
	subtreeSeen map[*html.Node]bool
	updates     map[string]string
	updateOrder []string
}

func newPendingSet() *pendingSet {
	return &pendingSet{
		subtreeSeen: make(map[*html.Node]bool),
		updates:     make(map[string]string),
	}
}

func (p *pendingSet) addSubtree(n *html.Node) {
	if n == nil || p.subtreeSeen[n] {
		return
	}
	p.subtreeSeen[n] = true
	p.subtrees = append(p.subtrees, n)
}

func (p *pendingSet) addUpdate(id, text string) {
	if _, ok := p.updates[id]; !ok {
		p.updateOrder = append(p.updateOrder, id)
	}
	p.updates[id] = text
}

func (p *pendingSet) empty() bool {
	return len(p.subtrees) == 0 && len(p.updates) == 0
}

func (p *pendingSet) clear() {
	p.subtrees = nil
	p.subtreeSeen = make(map[*html.Node]bool)
	p.updates = make(map[string]string)
	p.updateOrder = nil
}
