// Package view derives the display-ready widget state from a session
// snapshot. Everything here is pure and safe for concurrent use.
package view

import (
	"math"
	"strconv"
	"strings"

	"skyview/internal/types"
)

// DefaultIconBaseURL is the OpenWeatherMap icon host.
const DefaultIconBaseURL = "https://openweathermap.org/img/wn"

// Snapshot is the raw session state a view is built from.
type Snapshot struct {
	Language types.Language
	City     types.CityQuery
	Weather  *types.WeatherRecord
	Image    *types.ImageResult
	Loading  types.LoadingFlags

	// Failure is the code of the last failed weather fetch, if any.
	Failure types.ErrorCode
}

// WeatherView is the rendered weather card.
type WeatherView struct {
	ID           int64   `json:"id"`
	Place        string  `json:"place"`
	Celsius      float64 `json:"celsius"`
	Temperature  string  `json:"temperature"`
	Humidity     int     `json:"humidity"`
	HumidityText string  `json:"humidity_text"`
	Description  string  `json:"description"`
	IconURL      string  `json:"icon_url,omitempty"`
}

// ViewModel is what clients render.
type ViewModel struct {
	Language      types.Language     `json:"language"`
	Labels        LabelSet           `json:"labels"`
	City          string             `json:"city,omitempty"`
	Loading       types.LoadingFlags `json:"loading"`
	Skeleton      bool               `json:"skeleton"`
	Weather       *WeatherView       `json:"weather,omitempty"`
	BackgroundURL string             `json:"background_url,omitempty"`
	Error         string             `json:"error,omitempty"`
}

// Builder turns snapshots into view models.
type Builder struct {
	iconBaseURL string
}

// NewBuilder creates a Builder. An empty iconBaseURL selects
// DefaultIconBaseURL.
func NewBuilder(iconBaseURL string) *Builder {
	if iconBaseURL == "" {
		iconBaseURL = DefaultIconBaseURL
	}
	return &Builder{iconBaseURL: strings.TrimRight(iconBaseURL, "/")}
}

// Build renders s. The background is only set while a weather record is
// present, so a cleared record never shows a photo for another city.
func (b *Builder) Build(s Snapshot) ViewModel {
	vm := ViewModel{
		Language: s.Language,
		Labels:   Labels(s.Language),
		City:     string(s.City),
		Loading:  s.Loading,
		Skeleton: s.Loading.Weather,
		Error:    string(s.Failure),
	}

	if s.Weather == nil {
		return vm
	}

	primary, _ := s.Weather.Primary()
	celsius := Celsius(s.Weather.TempKelvin)
	vm.Weather = &WeatherView{
		ID:           s.Weather.ID,
		Place:        s.Weather.Place,
		Celsius:      celsius,
		Temperature:  FormatCelsius(celsius),
		Humidity:     s.Weather.Humidity,
		HumidityText: FormatHumidity(s.Weather.Humidity, s.Language),
		Description:  CapitalizeDescription(primary.Description, s.Language),
		IconURL:      b.IconURL(primary.Icon),
	}
	if s.Image != nil {
		vm.BackgroundURL = s.Image.URL
	}
	return vm
}

// IconURL returns the 2x icon image for an icon code, or "" for an empty code.
func (b *Builder) IconURL(icon string) string {
	if icon == "" {
		return ""
	}
	return b.iconBaseURL + "/" + icon + "@2x.png"
}

// Celsius converts Kelvin to Celsius without rounding.
func Celsius(kelvin float64) float64 {
	return kelvin - types.KelvinOffset
}

// FormatCelsius rounds half away from zero to one decimal place.
func FormatCelsius(celsius float64) string {
	rounded := math.Round(celsius*10) / 10
	if rounded == 0 {
		rounded = 0 // drop negative zero
	}
	return strconv.FormatFloat(rounded, 'f', 1, 64)
}
