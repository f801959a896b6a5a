package segment

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/pagesync/dom"
)

// roleSections maps explicit ARIA landmark roles to sections. Roles take
// precedence over element-type inference at each ancestor.
var roleSections = map[string]Section{
	"banner":        SectionHeader,
	"navigation":    SectionNav,
	"main":          SectionMain,
	"complementary": SectionAside,
	"contentinfo":   SectionFooter,
	"article":       SectionArticle,
	"region":        SectionSection,
}

var atomSections = map[atom.Atom]Section{
	atom.Header:  SectionHeader,
	atom.Nav:     SectionNav,
	atom.Main:    SectionMain,
	atom.Aside:   SectionAside,
	atom.Footer:  SectionFooter,
	atom.Article: SectionArticle,
	atom.Section: SectionSection,
}

// classify walks upward from the block parent to the nearest semantic
// landmark. No landmark means SectionOther.
func classify(n *html.Node) Section {
	for p := n; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if role, ok := dom.Attr(p, "role"); ok {
			if s, ok := roleSections[strings.ToLower(strings.TrimSpace(role))]; ok {
				return s
			}
		}
		if s, ok := atomSections[p.DataAtom]; ok {
			return s
		}
	}
	return SectionOther
}
