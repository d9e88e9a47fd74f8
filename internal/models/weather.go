package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// WeatherResponse wraps the body of one /weather call. Raw is the body exactly
// as received; DataSets indexes its top-level members by wire name
// (currentWeather, forecastDaily, ...).
type WeatherResponse struct {
	Raw      json.RawMessage
	DataSets map[string]json.RawMessage
}

// DecodeWeatherResponse wraps body, which must be a JSON object.
func DecodeWeatherResponse(body []byte) (WeatherResponse, error) {
	var sets map[string]json.RawMessage
	if err := json.Unmarshal(body, &sets); err != nil {
		return WeatherResponse{}, fmt.Errorf("parse weather response: %w", err)
	}
	if sets == nil {
		sets = map[string]json.RawMessage{}
	}
	raw := make(json.RawMessage, len(body))
	copy(raw, body)
	return WeatherResponse{Raw: raw, DataSets: sets}, nil
}

// Has reports whether the response carries the data set with the given wire name.
func (r WeatherResponse) Has(wireName string) bool {
	_, ok := r.DataSets[wireName]
	return ok
}

// MarshalJSON emits the upstream body unchanged.
func (r WeatherResponse) MarshalJSON() ([]byte, error) {
	if len(r.Raw) == 0 {
		return []byte("{}"), nil
	}
	return r.Raw, nil
}

// Metadata is attached to every WeatherKit data set.
type Metadata struct {
	AttributionURL string    `json:"attributionURL"`
	ExpireTime     time.Time `json:"expireTime"`
	Language       string    `json:"language,omitempty"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	ProviderName   string    `json:"providerName,omitempty"`
	ReadTime       time.Time `json:"readTime"`
	ReportedTime   time.Time `json:"reportedTime,omitempty"`
	Units          string    `json:"units,omitempty"`
	Version        int       `json:"version"`
}

// CurrentWeather is the currentWeather data set. Units are metric.
type CurrentWeather struct {
	Name                   string    `json:"name"`
	Metadata               Metadata  `json:"metadata"`
	AsOf                   time.Time `json:"asOf"`
	CloudCover             float64   `json:"cloudCover"`
	ConditionCode          string    `json:"conditionCode"`
	Daylight               bool      `json:"daylight"`
	Humidity               float64   `json:"humidity"`
	PrecipitationIntensity float64   `json:"precipitationIntensity"`
	Pressure               float64   `json:"pressure"`
	PressureTrend          string    `json:"pressureTrend"`
	Temperature            float64   `json:"temperature"`
	TemperatureApparent    float64   `json:"temperatureApparent"`
	TemperatureDewPoint    float64   `json:"temperatureDewPoint"`
	UVIndex                int       `json:"uvIndex"`
	Visibility             float64   `json:"visibility"`
	WindDirection          int       `json:"windDirection"`
	WindGust               float64   `json:"windGust"`
	WindSpeed              float64   `json:"windSpeed"`
}

// CurrentWeather decodes the currentWeather data set. ok is false when the
// response does not carry it.
func (r WeatherResponse) CurrentWeather() (*CurrentWeather, bool, error) {
	raw, ok := r.DataSets["currentWeather"]
	if !ok {
		return nil, false, nil
	}
	cw := &CurrentWeather{}
	if err := json.Unmarshal(raw, cw); err != nil {
		return nil, true, fmt.Errorf("parse currentWeather: %w", err)
	}
	return cw, true, nil
}
