// Package segment partitions a live document tree into stable, addressable
// text blocks. A full pass opens a new identification epoch over the whole
// document; partial passes re-walk changed subtrees without disturbing
// identifiers assigned earlier in the epoch.
package segment

// Section is the coarse placement classification of a block, derived from
// the nearest semantic landmark above its block parent.
type Section string

const (
	SectionHeader  Section = "header"
	SectionNav     Section = "nav"
	SectionMain    Section = "main"
	SectionAside   Section = "aside"
	SectionFooter  Section = "footer"
	SectionArticle Section = "article"
	SectionSection Section = "section"
	SectionOther   Section = "other"
)

// Block is the atomic extractable unit: the space-joined meaningful text
// of one block parent, addressed by a content-derived identifier that is
// stable for the node for as long as the node lives.
type Block struct {
	ID      string  `json:"id"`
	Text    string  `json:"text"`
	Section Section `json:"section"`
}
