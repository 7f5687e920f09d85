package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skyview/internal/types"
)

func parisRecord() *types.WeatherRecord {
	return &types.WeatherRecord{
		ID:         2988507,
		Place:      "Paris",
		TempKelvin: 300,
		Humidity:   72,
		Conditions: []types.Condition{{Description: "light rain", Icon: "10d"}},
	}
}

func TestFormatCelsius(t *testing.T) {
	tests := []struct {
		kelvin float64
		want   string
	}{
		{300, "26.9"},
		{273.15, "0.0"},
		{273.12, "0.0"},
		{173.15, "-100.0"},
		{283.2, "10.1"},
		{263.15, "-10.0"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatCelsius(Celsius(tt.kelvin)))
		})
	}
}

func TestCelsius_Unrounded(t *testing.T) {
	assert.InDelta(t, 26.85, Celsius(300), 1e-9)
}

func TestBuild_WithWeatherAndImage(t *testing.T) {
	b := NewBuilder("")
	vm := b.Build(Snapshot{
		Language: types.LanguageEnglish,
		City:     "Paris",
		Weather:  parisRecord(),
		Image:    &types.ImageResult{URL: "https://images.example/rain.jpg", Query: "light rain", Candidates: 30},
	})

	require.NotNil(t, vm.Weather)
	assert.Equal(t, "Paris", vm.City)
	assert.Equal(t, "Paris", vm.Weather.Place)
	assert.Equal(t, "26.9", vm.Weather.Temperature)
	assert.Equal(t, "72%", vm.Weather.HumidityText)
	assert.Equal(t, "Light Rain", vm.Weather.Description)
	assert.Equal(t, "https://openweathermap.org/img/wn/10d@2x.png", vm.Weather.IconURL)
	assert.Equal(t, "https://images.example/rain.jpg", vm.BackgroundURL)
	assert.Equal(t, "Humidity", vm.Labels.Humidity)
	assert.False(t, vm.Skeleton)
}

func TestBuild_TurkishHumidity(t *testing.T) {
	vm := NewBuilder("").Build(Snapshot{Language: types.LanguageTurkish, Weather: parisRecord()})

	require.NotNil(t, vm.Weather)
	assert.Equal(t, "%72", vm.Weather.HumidityText)
	assert.Equal(t, "Nem", vm.Labels.Humidity)
}

func TestBuild_NoWeatherHidesBackground(t *testing.T) {
	vm := NewBuilder("").Build(Snapshot{
		Language: types.LanguageEnglish,
		City:     "Atlantis",
		Image:    &types.ImageResult{URL: "https://images.example/old.jpg"},
	})

	assert.Nil(t, vm.Weather)
	assert.Empty(t, vm.BackgroundURL)
}

func TestBuild_ReportsFailure(t *testing.T) {
	vm := NewBuilder("").Build(Snapshot{
		Language: types.LanguageEnglish,
		City:     "Atlantis",
		Failure:  types.ErrCodeNotFoundCity,
	})

	assert.Nil(t, vm.Weather)
	assert.Equal(t, "not_found_city", vm.Error)
}

func TestBuild_MissingConditions(t *testing.T) {
	record := parisRecord()
	record.Conditions = nil

	vm := NewBuilder("").Build(Snapshot{Language: types.LanguageEnglish, Weather: record})

	require.NotNil(t, vm.Weather)
	assert.Empty(t, vm.Weather.Description)
	assert.Empty(t, vm.Weather.IconURL)
}

func TestBuild_SkeletonFollowsWeatherFlag(t *testing.T) {
	b := NewBuilder("")

	vm := b.Build(Snapshot{Loading: types.LoadingFlags{Weather: true}})
	assert.True(t, vm.Skeleton)

	vm = b.Build(Snapshot{Loading: types.LoadingFlags{Image: true}, Weather: parisRecord()})
	assert.False(t, vm.Skeleton)
	assert.True(t, vm.Loading.Image)
}

func TestIconURL_CustomBase(t *testing.T) {
	b := NewBuilder("https://icons.example/wn/")
	assert.Equal(t, "https://icons.example/wn/01n@2x.png", b.IconURL("01n"))
	assert.Empty(t, b.IconURL(""))
}
