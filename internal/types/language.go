package types

import "strings"

// Language is the persisted UI locale selector.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageTurkish Language = "tr"
)

// DefaultLanguage is used when no preference is stored or the stored value is
// not recognized.
const DefaultLanguage = LanguageEnglish

// SupportedLanguages lists every locale with a label table, in selector order.
var SupportedLanguages = []Language{LanguageTurkish, LanguageEnglish}

// Valid reports whether l is one of the supported locales.
func (l Language) Valid() bool {
	switch l {
	case LanguageEnglish, LanguageTurkish:
		return true
	default:
		return false
	}
}

// String returns the language code.
func (l Language) String() string {
	return string(l)
}

// ParseLanguage normalizes a language code. The boolean is false for empty or
// unsupported codes.
func ParseLanguage(raw string) (Language, bool) {
	l := Language(strings.ToLower(strings.TrimSpace(raw)))
	return l, l.Valid()
}
