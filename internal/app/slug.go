package app

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var slugSanitizePattern = regexp.MustCompile(`[^a-z0-9]+`)

// ß has no decomposition; spell it out before stripping marks.
var slugReplacer = strings.NewReplacer("ß", "ss", "ẞ", "ss")

// Slugify lowercases s, strips diacritics, collapses every run of
// non-alphanumerics into one hyphen and trims hyphens at both ends.
func Slugify(s string) string {
	s = slugReplacer.Replace(strings.TrimSpace(s))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}
	s = strings.ToLower(s)
	s = slugSanitizePattern.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// RandomSuffix returns n random lowercase alphanumerics.
func RandomSuffix(n int) string {
	b := make([]byte, n)
	max := big.NewInt(int64(len(suffixAlphabet)))
	for i := range b {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			b[i] = suffixAlphabet[i%len(suffixAlphabet)]
			continue
		}
		b[i] = suffixAlphabet[v.Int64()]
	}
	return string(b)
}

func suffixedSlug(base string) string {
	return base + "-" + RandomSuffix(5)
}

// normTitle is the comparison key for fuzzy title matches.
func normTitle(s string) string {
	return strings.ReplaceAll(Slugify(s), "-", "")
}
