// Package weather fetches current conditions for a city from OpenWeatherMap.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"skyview/internal/external"
	"skyview/internal/types"
)

// maxErrorBody bounds how much of a failed response is read for diagnostics.
const maxErrorBody = 4 << 10

// Fetcher is the contract the widget session depends on.
type Fetcher interface {
	Fetch(ctx context.Context, city types.CityQuery, lang types.Language) (*types.WeatherRecord, error)
}

// Client calls the "current weather by city name" endpoint.
type Client struct {
	http    *external.BaseClient
	apiKey  types.SecretString
	baseURL string
}

var _ Fetcher = (*Client)(nil)

// NewClient creates a Client. baseURL is the full endpoint URL, e.g.
// https://api.openweathermap.org/data/2.5/weather.
func NewClient(httpClient *external.BaseClient, apiKey types.SecretString, baseURL string) *Client {
	return &Client{
		http:    httpClient,
		apiKey:  apiKey,
		baseURL: baseURL,
	}
}

// currentResponse is the subset of the provider payload the widget reads.
type currentResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Main *struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
}

// apiError is the provider's error body. cod arrives as a string or a number
// depending on the endpoint, so it is kept raw.
type apiError struct {
	Cod     json.RawMessage `json:"cod"`
	Message string          `json:"message"`
}

// Fetch performs one GET for city. lang selects the language of the
// condition description; an empty lang leaves the provider default.
func (c *Client) Fetch(ctx context.Context, city types.CityQuery, lang types.Language) (*types.WeatherRecord, error) {
	endpoint, err := c.buildURL(city, lang)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "invalid weather endpoint", err)
	}

	resp, err := c.http.Get(ctx, endpoint)
	if err != nil {
		return nil, asWeatherError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.mapStatus(resp, city)
	}

	var payload currentResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamWeatherMalformed, "failed to decode weather response", err)
	}
	if payload.Main == nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamWeatherMalformed, "weather response has no main block", nil)
	}

	record := &types.WeatherRecord{
		ID:         payload.ID,
		Place:      payload.Name,
		TempKelvin: payload.Main.Temp,
		Humidity:   payload.Main.Humidity,
		Conditions: make([]types.Condition, 0, len(payload.Weather)),
	}
	for _, w := range payload.Weather {
		record.Conditions = append(record.Conditions, types.Condition{
			Description: w.Description,
			Icon:        w.Icon,
		})
	}
	return record, nil
}

func (c *Client) buildURL(city types.CityQuery, lang types.Language) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	q := u.Query()
	q.Set("q", string(city))
	q.Set("appid", c.apiKey.Unmask())
	if lang != "" {
		q.Set("lang", lang.String())
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// mapStatus converts a non-200 provider response into an AppError.
func (c *Client) mapStatus(resp *http.Response, city types.CityQuery) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	message := http.StatusText(resp.StatusCode)
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
		message = apiErr.Message
	}
	details := map[string]any{"status": resp.StatusCode, "city": string(city)}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return types.NewAppErrorWithDetails(types.ErrCodeNotFoundCity, message, nil, details)
	case http.StatusUnauthorized:
		return types.NewAppErrorWithDetails(types.ErrCodeUpstreamWeatherAuth, message, nil, details)
	default:
		return types.NewAppErrorWithDetails(types.ErrCodeUpstreamWeather,
			fmt.Sprintf("weather provider returned %d: %s", resp.StatusCode, message), nil, details)
	}
}

// asWeatherError re-labels generic transport failures so callers can tell
// which provider failed.
func asWeatherError(err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) && appErr.Code == types.ErrCodeUpstreamUnavailable {
		return &types.AppError{
			Code:    types.ErrCodeUpstreamWeather,
			Message: appErr.Message,
			Err:     appErr.Err,
			Details: appErr.Details,
		}
	}
	return err
}
