package view

import (
	"strconv"

	"skyview/internal/types"
)

// LabelSet holds every user-facing string of the widget for one language.
// The zero value is returned for unsupported languages.
type LabelSet struct {
	FormLabel           string `json:"form_label"`
	FormDescription     string `json:"form_description"`
	Submit              string `json:"submit"`
	Placeholder         string `json:"placeholder"`
	Humidity            string `json:"humidity"`
	SelectorPlaceholder string `json:"selector_placeholder"`
}

// IsZero reports whether no label is set.
func (l LabelSet) IsZero() bool {
	return l == LabelSet{}
}

var labelTable = map[types.Language]LabelSet{
	types.LanguageEnglish: {
		FormLabel:           "City Name",
		FormDescription:     "Ones you provide a city name the instant weather situation will be shown.",
		Submit:              "Show the weather",
		Placeholder:         "Enter a city name",
		Humidity:            "Humidity",
		SelectorPlaceholder: "English",
	},
	types.LanguageTurkish: {
		FormLabel:           "Şehir ismi",
		FormDescription:     "Herhangi bir şehir ismi girdiğinizde anlık hava durumu gösterilecek.",
		Submit:              "Hava durumunu göster",
		Placeholder:         "Bir şehir ismi girin",
		Humidity:            "Nem",
		SelectorPlaceholder: "Türkçe",
	},
}

// Labels returns the label set for lang.
func Labels(lang types.Language) LabelSet {
	return labelTable[lang]
}

// FormatHumidity renders a humidity percentage with the percent sign placed
// according to lang: "%72" for Turkish, "72%" otherwise. An unsupported
// language yields the bare number.
func FormatHumidity(humidity int, lang types.Language) string {
	value := strconv.Itoa(humidity)
	switch lang {
	case types.LanguageTurkish:
		return "%" + value
	case types.LanguageEnglish:
		return value + "%"
	default:
		return value
	}
}
