package types

import "strings"

// KelvinOffset is the difference between the Kelvin and Celsius scales.
const KelvinOffset = 273.15

// CityQuery is the free-text city name a client submitted.
// It is replaced wholesale by the next submission; no history is kept.
type CityQuery string

// ParseCityQuery trims the raw input and rejects empty values.
// Presence is the only validation applied.
func ParseCityQuery(raw string) (CityQuery, error) {
	city := strings.TrimSpace(raw)
	if city == "" {
		return "", NewAppError(ErrCodeValidationMissingCity, "city name is required", nil)
	}
	return CityQuery(city), nil
}

// Condition is one entry of the provider's weather condition list.
type Condition struct {
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// WeatherRecord is a normalized snapshot of one current-weather response for
// one city. Temperatures are kept in Kelvin as delivered by the provider.
type WeatherRecord struct {
	ID         int64       `json:"id"`
	Place      string      `json:"place"`
	TempKelvin float64     `json:"temp_kelvin"`
	Humidity   int         `json:"humidity"`
	Conditions []Condition `json:"conditions"`
}

// Primary returns the first reported condition. The boolean is false when the
// provider returned no conditions, so callers never index an empty list.
func (r *WeatherRecord) Primary() (Condition, bool) {
	if r == nil || len(r.Conditions) == 0 {
		return Condition{}, false
	}
	return r.Conditions[0], true
}

// Description returns the primary condition text, or "" when absent.
func (r *WeatherRecord) Description() string {
	c, _ := r.Primary()
	return c.Description
}

// ImageResult is one photo selected to match a weather condition.
type ImageResult struct {
	URL        string `json:"url"`
	Query      string `json:"query"`
	Candidates int    `json:"candidates"`
}

// LoadingFlags gate which view (content or skeleton placeholder) is shown.
// One flag per network call; never persisted.
type LoadingFlags struct {
	Weather bool `json:"weather"`
	Image   bool `json:"image"`
}

// Any reports whether either fetch is in flight.
func (f LoadingFlags) Any() bool {
	return f.Weather || f.Image
}
