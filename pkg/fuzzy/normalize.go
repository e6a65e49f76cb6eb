// Package fuzzy provides the text normalization used for vendor result matching.
package fuzzy

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	punctRegex      = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// NormalizeTerm lowercases, strips accents, and collapses every run of
// non-alphanumeric characters to a single space. Vendor search results are
// matched by substring containment over this form.
func (n *Normalizer) NormalizeTerm(text string) string {
	text = norm.NFKD.String(text)

	var result strings.Builder
	for _, r := range text {
		if !unicode.IsMark(r) {
			result.WriteRune(r)
		}
	}
	text = result.String()

	text = punctRegex.ReplaceAllString(text, " ")
	text = whitespaceRegex.ReplaceAllString(text, " ")

	text = strings.ToLower(text)
	text = strings.TrimSpace(text)

	return text
}

// PrimaryArtist returns the first artist from a comma-joined artist string.
func (n *Normalizer) PrimaryArtist(artist string) string {
	if idx := strings.Index(artist, ","); idx >= 0 {
		artist = artist[:idx]
	}
	return strings.TrimSpace(artist)
}
