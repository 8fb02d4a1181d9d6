package models

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxURLLength = 255

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSeparators   = regexp.MustCompile(`[\s-]+`)
	slugPattern      = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
)

// SlugFromTitle builds the public event URL: "Festival de Verão 2025" -> "festival-de-verao-2025"
func SlugFromTitle(title string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), strings.ToLower(title))
	if err != nil {
		folded = strings.ToLower(title)
	}
	slug := slugInvalidChars.ReplaceAllString(folded, "")
	slug = slugSeparators.ReplaceAllString(strings.TrimSpace(slug), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxURLLength {
		slug = strings.TrimRight(slug[:maxURLLength], "-")
	}
	return slug
}

// ValidURL reports whether url can be used as an event address as is
func ValidURL(url string) bool {
	return len(url) <= maxURLLength && slugPattern.MatchString(url)
}
