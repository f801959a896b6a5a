package translate

import (
	"unicode"

	"golang.org/x/text/language"
)

// scriptLangs maps dominant writing systems to a default language tag.
// Script counting is crude but it is only used opportunistically: a wrong
// or absent hint costs nothing, the user-selected source language wins.
var scriptLangs = []struct {
	table *unicode.RangeTable
	lang  string
}{
	{unicode.Han, "zh"},
	{unicode.Hiragana, "ja"},
	{unicode.Katakana, "ja"},
	{unicode.Hangul, "ko"},
	{unicode.Cyrillic, "ru"},
	{unicode.Arabic, "ar"},
	{unicode.Hebrew, "he"},
	{unicode.Greek, "el"},
	{unicode.Thai, "th"},
	{unicode.Devanagari, "hi"},
	{unicode.Latin, "en"},
}

// Detect guesses the language of a text sample from its dominant script.
// Best-effort: an empty language with zero confidence is a valid answer,
// not an error.
func Detect(sample string) (lang string, confidence float64) {
	counts := make(map[string]int)
	total := 0
	for _, r := range sample {
		if !unicode.IsLetter(r) {
			continue
		}
		total++
		for _, s := range scriptLangs {
			if unicode.Is(s.table, r) {
				counts[s.lang]++
				break
			}
		}
	}
	if total == 0 {
		return "", 0
	}

	best, bestN := "", 0
	for l, n := range counts {
		if n > bestN {
			best, bestN = l, n
		}
	}
	if best == "" {
		return "", 0
	}

	conf := float64(bestN) / float64(total)
	// Latin dominance is a weak signal: many languages share the script.
	if best == "en" {
		conf *= 0.5
	}
	return best, conf
}

// ValidatePair canonicalises a language pair and rejects ones no backend
// can serve: unparseable tags or identical source and target.
func ValidatePair(sourceLang, targetLang string) (string, string, error) {
	src, err := language.Parse(sourceLang)
	if err != nil {
		return "", "", ErrUnsupportedPair
	}
	dst, err := language.Parse(targetLang)
	if err != nil {
		return "", "", ErrUnsupportedPair
	}
	if src == dst {
		return "", "", ErrUnsupportedPair
	}
	return src.String(), dst.String(), nil
}
