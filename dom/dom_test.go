package dom

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

const sampleDoc = `<html><head><title>T</title></head><body>
<div id="a"><p>hello</p></div>
<div id="b"><span>world</span></div>
</body></html>`

func TestParseAndRender(t *testing.T) {
	d, err := ParseString(sampleDoc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	out, err := d.Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(string(out), "hello") {
		t.Errorf("rendered output missing text: %s", out)
	}
}

func TestFindByAttr(t *testing.T) {
	d, err := ParseString(sampleDoc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	n := FindByAttr(d.Root(), "id", "b")
	if n == nil {
		t.Fatal("expected to find node with id=b")
	}
	if n.Data != "div" {
		t.Errorf("found %q, want div", n.Data)
	}
	if FindByAttr(d.Root(), "id", "missing") != nil {
		t.Error("expected nil for missing id")
	}
}

func TestContains(t *testing.T) {
	d, _ := ParseString(sampleDoc)
	a := FindByAttr(d.Root(), "id", "a")
	b := FindByAttr(d.Root(), "id", "b")

	if !Contains(d.Root(), a) {
		t.Error("root should contain a")
	}
	if Contains(a, b) {
		t.Error("a should not contain b")
	}
	if !Contains(a, a) {
		t.Error("a should contain itself")
	}

	detached := NewElement("div")
	if Contains(d.Root(), detached) {
		t.Error("root should not contain a detached node")
	}
}

func TestWalkEarlyStop(t *testing.T) {
	d, _ := ParseString(sampleDoc)
	count := 0
	Walk(d.Root(), func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			count++
		}
		// Do not descend into divs.
		return !(n.Type == html.ElementNode && n.Data == "div")
	})
	// html, head, title, body, two divs. p and span are skipped.
	if count != 6 {
		t.Errorf("visited %d elements, want 6", count)
	}
}

func TestSubscribeRecordsMutations(t *testing.T) {
	d, _ := ParseString(sampleDoc)
	var recs []Record
	sub := d.Subscribe(func(r Record) { recs = append(recs, r) })
	defer sub.Cancel()

	a := FindByAttr(d.Root(), "id", "a")
	el := NewElement("p")
	el.AppendChild(NewText("new"))
	d.AppendChild(a, el)
	d.SetAttr(a, "class", "x")
	d.RemoveAttr(a, "class")

	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	if recs[0].Op != OpInsert || recs[0].Target != el {
		t.Errorf("first record: got %+v, want insert of el", recs[0])
	}
	if recs[1].Op != OpAttr || recs[1].Attr != "class" || recs[1].Value != "x" {
		t.Errorf("second record: got %+v", recs[1])
	}
	if recs[2].Op != OpAttrDel || recs[2].Attr != "class" {
		t.Errorf("third record: got %+v", recs[2])
	}
}

func TestSubscribeIgnoresFilteredAttrs(t *testing.T) {
	d, _ := ParseString(sampleDoc)
	var recs []Record
	sub := d.Subscribe(func(r Record) { recs = append(recs, r) }, "data-psid")
	defer sub.Cancel()

	a := FindByAttr(d.Root(), "id", "a")
	d.SetAttr(a, "data-psid", "ps-1")
	d.RemoveAttr(a, "data-psid")
	d.SetAttr(a, "class", "visible")

	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if recs[0].Attr != "class" {
		t.Errorf("got attr %q, want class", recs[0].Attr)
	}
}

func TestSubscriptionCancel(t *testing.T) {
	d, _ := ParseString(sampleDoc)
	count := 0
	sub := d.Subscribe(func(Record) { count++ })

	a := FindByAttr(d.Root(), "id", "a")
	d.SetAttr(a, "class", "x")
	sub.Cancel()
	d.SetAttr(a, "class", "y")

	if count != 1 {
		t.Errorf("got %d notifications, want 1", count)
	}
}

func TestSetText(t *testing.T) {
	d, _ := ParseString(sampleDoc)
	a := FindByAttr(d.Root(), "id", "a")
	p := a.FirstChild
	text := p.FirstChild

	var rec Record
	sub := d.Subscribe(func(r Record) { rec = r })
	defer sub.Cancel()

	d.SetText(text, "changed")
	if text.Data != "changed" {
		t.Errorf("text is %q, want changed", text.Data)
	}
	if rec.Op != OpText || rec.Value != "changed" || rec.OldValue != "hello" {
		t.Errorf("record: %+v", rec)
	}
}

func TestRemoveChild(t *testing.T) {
	d, _ := ParseString(sampleDoc)
	a := FindByAttr(d.Root(), "id", "a")

	var rec Record
	sub := d.Subscribe(func(r Record) { rec = r })
	defer sub.Cancel()

	d.RemoveChild(a)
	if Contains(d.Root(), a) {
		t.Error("a still attached after removal")
	}
	if rec.Op != OpRemove || rec.Target != a {
		t.Errorf("record: %+v", rec)
	}
}

func TestConcurrentSubscribeAndMutate(t *testing.T) {
	d, err := ParseString(sampleDoc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	root := FindByAttr(d.Root(), "id", "a")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			s := d.Subscribe(func(Record) {})
			s.Cancel()
		}
	}()

	for i := 0; i < 200; i++ {
		p := NewElement("p")
		p.AppendChild(NewText("row"))
		d.AppendChild(root, p)
	}
	<-done

	count := 0
	Walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "p" {
			count++
		}
		return true
	})
	if count != 201 {
		t.Errorf("got %d paragraphs, want 201", count)
	}
}
