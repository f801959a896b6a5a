package dom

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Visibility is approximated from inline styles and standard attributes.
// Without a layout engine the usable signal in static HTML is the inline
// display/visibility/opacity values plus the off-screen absolute trick.
var hiddenStylePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)display\s*:\s*none`),
	regexp.MustCompile(`(?i)visibility\s*:\s*hidden`),
	regexp.MustCompile(`(?i)opacity\s*:\s*0(\.0+)?\s*(;|$)`),
}

var absoluteStylePattern = regexp.MustCompile(`(?i)position\s*:\s*absolute`)

var offscreenOffsetPattern = regexp.MustCompile(`(?i)(left|top|right|bottom|text-indent)\s*:\s*-\d{4,}`)

var pinnedStylePattern = regexp.MustCompile(`(?i)position\s*:\s*(fixed|sticky)`)

var layoutContainerPattern = regexp.MustCompile(`(?i)display\s*:\s*(inline-)?(flex|grid)`)

// Hidden reports whether the element itself is visually hidden: not
// displayed, not visible, fully transparent, or parked off-screen.
// Fixed and sticky positioned elements are exempt from the off-screen
// rule; they can sit outside the viewport yet appear on scroll.
func Hidden(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if HasAttr(n, "hidden") {
		return true
	}
	style, ok := Attr(n, "style")
	if !ok {
		return false
	}
	for _, pat := range hiddenStylePatterns {
		if pat.MatchString(style) {
			return true
		}
	}
	if absoluteStylePattern.MatchString(style) && offscreenOffsetPattern.MatchString(style) &&
		!pinnedStylePattern.MatchString(style) {
		return true
	}
	return false
}

// HiddenAncestor reports whether n or any ancestor below the document
// root is hidden.
func HiddenAncestor(n *html.Node) bool {
	for p := n; p != nil && p.Type != html.DocumentNode; p = p.Parent {
		if Hidden(p) {
			return true
		}
	}
	return false
}

// AriaHidden reports whether the element is explicitly removed from the
// accessibility tree.
func AriaHidden(n *html.Node) bool {
	v, ok := Attr(n, "aria-hidden")
	return ok && strings.EqualFold(strings.TrimSpace(v), "true")
}

// inertAtoms are element types whose text content is never user-readable
// prose: scripting, styling, form controls, code, and embedded graphics.
var inertAtoms = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Textarea: true,
	atom.Input:    true,
	atom.Select:   true,
	atom.Option:   true,
	atom.Code:     true,
	atom.Svg:      true,
	atom.Canvas:   true,
	atom.Object:   true,
	atom.Iframe:   true,
}

// Inert reports whether the element is structurally inert for text
// extraction purposes.
func Inert(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if inertAtoms[n.DataAtom] {
		return true
	}
	return AriaHidden(n)
}

// InertAncestor reports whether n sits beneath (or is) an inert element.
func InertAncestor(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if Inert(p) {
			return true
		}
	}
	return false
}

// blockAtoms are the recognised block-level element types used when
// resolving a text leaf to its block parent.
var blockAtoms = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Li: true, atom.Td: true, atom.Th: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true,
	atom.H6: true, atom.Blockquote: true, atom.Pre: true, atom.Figcaption: true,
	atom.Caption: true, atom.Dt: true, atom.Dd: true, atom.Summary: true,
	atom.Article: true, atom.Section: true, atom.Aside: true, atom.Header: true,
	atom.Footer: true, atom.Main: true, atom.Nav: true, atom.Address: true,
}

// Block reports whether the element is a recognised block-level type.
func Block(n *html.Node) bool {
	return n.Type == html.ElementNode && blockAtoms[n.DataAtom]
}

// LayoutContainer reports whether the element lays its children out as
// flex or grid items. Inline siblings of such a container behave as
// separate visual blocks and must not be merged.
func LayoutContainer(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	style, ok := Attr(n, "style")
	return ok && layoutContainerPattern.MatchString(style)
}
