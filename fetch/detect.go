package fetch

import (
	"bytes"

	"golang.org/x/net/html"
)

const (
	minDocumentBytes = 256
	minVisibleText   = 200
	minTextRatio     = 0.10
)

// shellMarkers appear in client-rendered application shells whose
// content only exists after script execution.
var shellMarkers = [][]byte{
	[]byte(`<div id="root"></div>`),
	[]byte(`<div id="app"></div>`),
	[]byte(`<div id="__next"></div>`),
	[]byte("<noscript>you need to enable javascript"),
	[]byte("<noscript>enable javascript"),
}

// IsSufficient reports whether fetched HTML already carries its content,
// so the document can be parsed as-is without a browser render. It
// weighs visible text against markup and rejects known script shells.
func IsSufficient(doc []byte) bool {
	if len(doc) < minDocumentBytes {
		return false
	}

	lower := bytes.ToLower(doc)
	for _, m := range shellMarkers {
		if bytes.Contains(lower, m) {
			return false
		}
	}

	text, markup := weighContent(doc)
	if text < minVisibleText {
		return false
	}
	total := text + markup
	return total > 0 && float64(text)/float64(total) >= minTextRatio
}

// weighContent tokenizes the document and tallies visible text bytes
// against everything else. Bodies of script, style and template elements
// count as markup even though the tokenizer reports them as text.
func weighContent(doc []byte) (text, markup int) {
	tz := html.NewTokenizer(bytes.NewReader(doc))
	rawDepth := 0
	for {
		tt := tz.Next()
		if tt == html.ErrorToken {
			return text, markup
		}
		rawLen := len(tz.Raw())

		switch tt {
		case html.TextToken:
			if rawDepth > 0 {
				markup += rawLen
				break
			}
			for _, b := range tz.Raw() {
				switch b {
				case ' ', '\t', '\n', '\r':
				default:
					text++
				}
			}
		case html.StartTagToken:
			if name, _ := tz.TagName(); rawContentTag(name) {
				rawDepth++
			}
			markup += rawLen
		case html.EndTagToken:
			if name, _ := tz.TagName(); rawDepth > 0 && rawContentTag(name) {
				rawDepth--
			}
			markup += rawLen
		default:
			markup += rawLen
		}
	}
}

func rawContentTag(name []byte) bool {
	switch string(name) {
	case "script", "style", "template":
		return true
	}
	return false
}
