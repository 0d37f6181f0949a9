// Package textutil holds text helpers shared by the server and the CLI.
package textutil

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName canonicalises a person's name for matching: NFKC, lower case,
// whitespace-separated tokens sorted and joined by a single space.
// "  Doe   JOHN " and "john doe" normalise to the same value.
func NormalizeName(name string) string {
	folded := cases.Lower(language.Und).String(norm.NFKC.String(name))
	tokens := strings.Fields(folded)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
