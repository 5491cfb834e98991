package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const toolUserAgent = "Mozilla/5.0 (compatible; picobridge/1.0)"

// WeatherNotFoundError and WeatherExternalError implement spec §4.5's
// get_weather failure taxonomy.
type WeatherNotFoundError struct{ Location string }

func (e *WeatherNotFoundError) Error() string { return fmt.Sprintf("no location found for %q", e.Location) }

type WeatherExternalError struct{ Err error }

func (e *WeatherExternalError) Error() string { return fmt.Sprintf("weather service error: %v", e.Err) }
func (e *WeatherExternalError) Unwrap() error { return e.Err }

// WeatherTool geocodes a location then fetches current conditions, a
// two-step call against the Open-Meteo public APIs (no key required,
// grounded on the teacher's web.go two-step HTTP-then-decode pattern).
type WeatherTool struct {
	client *http.Client
}

func NewWeatherTool() *WeatherTool {
	return &WeatherTool{client: &http.Client{Timeout: 10 * time.Second}}
}

func (t *WeatherTool) Name() string { return "get_weather" }

func (t *WeatherTool) Description() string {
	return "Get current weather conditions for a named location."
}

func (t *WeatherTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"location": map[string]interface{}{
				"type":        "string",
				"description": "City name or place, e.g. \"Shenzhen\" or \"Paris, France\"",
			},
		},
		"required": []string{"location"},
	}
}

type geocodeResult struct {
	Results []struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Country   string  `json:"country"`
	} `json:"results"`
}

type weatherResult struct {
	CurrentWeather struct {
		Temperature float64 `json:"temperature"`
		WindSpeed   float64 `json:"windspeed"`
		WeatherCode int     `json:"weathercode"`
	} `json:"current_weather"`
}

func (t *WeatherTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	location, ok := args["location"].(string)
	if !ok || location == "" {
		return "", fmt.Errorf("location is required")
	}

	geoURL := fmt.Sprintf("https://geocoding-api.open-meteo.com/v1/search?name=%s&count=1", url.QueryEscape(location))
	var geo geocodeResult
	if err := t.getJSON(ctx, geoURL, &geo); err != nil {
		return "", &WeatherExternalError{Err: err}
	}
	if len(geo.Results) == 0 {
		return "", &WeatherNotFoundError{Location: location}
	}
	place := geo.Results[0]

	weatherURL := fmt.Sprintf(
		"https://api.open-meteo.com/v1/forecast?latitude=%f&longitude=%f&current_weather=true",
		place.Latitude, place.Longitude,
	)
	var w weatherResult
	if err := t.getJSON(ctx, weatherURL, &w); err != nil {
		return "", &WeatherExternalError{Err: err}
	}

	celsius := w.CurrentWeather.Temperature
	fahrenheit := celsius*9/5 + 32
	condition := decodeWeatherCode(w.CurrentWeather.WeatherCode)

	return fmt.Sprintf(
		"%s, %s: %.1f°C (%.1f°F), %s, wind %.1f km/h",
		place.Name, place.Country, celsius, fahrenheit, condition, w.CurrentWeather.WindSpeed,
	), nil
}

func (t *WeatherTool) getJSON(ctx context.Context, target string, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", toolUserAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}
	return json.Unmarshal(body, dst)
}

// decodeWeatherCode translates Open-Meteo's WMO weather codes to text.
func decodeWeatherCode(code int) string {
	switch {
	case code == 0:
		return "clear sky"
	case code <= 3:
		return "partly cloudy"
	case code == 45 || code == 48:
		return "fog"
	case code >= 51 && code <= 57:
		return "drizzle"
	case code >= 61 && code <= 67:
		return "rain"
	case code >= 71 && code <= 77:
		return "snow"
	case code >= 80 && code <= 82:
		return "rain showers"
	case code >= 95:
		return "thunderstorm"
	default:
		return "unknown conditions"
	}
}
