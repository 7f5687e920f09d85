package view

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"skyview/internal/types"
)

func casingTag(lang types.Language) language.Tag {
	if lang == types.LanguageTurkish {
		return language.Turkish
	}
	return language.English
}

// CapitalizeDescription upper-cases the first letter of every space-separated
// word and lower-cases the rest, using the casing rules of lang.
// Empty words produced by leading or doubled spaces are kept as-is.
func CapitalizeDescription(description string, lang types.Language) string {
	if description == "" {
		return ""
	}

	tag := casingTag(lang)
	upper := cases.Upper(tag)
	lower := cases.Lower(tag)

	words := strings.Split(description, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		_, size := utf8.DecodeRuneInString(w)
		words[i] = upper.String(w[:size]) + lower.String(w[size:])
	}
	return strings.Join(words, " ")
}
