package api

import (
	"context"
	"fmt"
	"math"

	"github.com/go-resty/resty/v2"
	"wetterpost/internal/logger"
	"wetterpost/post"
)

const (
	// One Call API 3.0 endpoint
	oneCallBaseURL  = "https://api.openweathermap.org/data/3.0"
	oneCallEndpoint = "/onecall"
)

// OneCallProvider is the OpenWeather One Call fallback provider.
type OneCallProvider struct {
	client   *resty.Client
	apiKey   string
	language string
}

// NewOneCallProvider creates the secondary forecast provider.
func NewOneCallProvider(apiKey string, opts ClientOptions) *OneCallProvider {
	opts = opts.withDefaults(oneCallBaseURL)
	return &OneCallProvider{
		client:   newRESTClient(opts.BaseURL, opts.Timeout),
		apiKey:   apiKey,
		language: opts.Language,
	}
}

func (p *OneCallProvider) Name() string {
	return "onecall"
}

// OneCallResponse is the subset of the One Call response used for daily
// forecasts.
type OneCallResponse struct {
	Lat      float64     `json:"lat"`
	Lon      float64     `json:"lon"`
	Timezone string      `json:"timezone"`
	Daily    []DailyData `json:"daily"`
}

// DailyData represents daily forecast data with proper min/max temperatures
type DailyData struct {
	Dt      int64              `json:"dt"`
	Temp    DailyTemperature   `json:"temp"`
	Weather []WeatherCondition `json:"weather"`
}

// DailyTemperature contains temperature data throughout the day
type DailyTemperature struct {
	Day float64 `json:"day"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// WeatherCondition represents weather condition details
type WeatherCondition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
}

// Forecast maps daily[i] to ForecastDay, rounding temperatures to one
// decimal place since One Call reports full precision.
func (p *OneCallProvider) Forecast(ctx context.Context, at post.Coordinates, days int) ([]ForecastDay, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("openweather API key is not configured")
	}

	complete := logger.LogOperationStart("weather_api_onecall", map[string]any{
		"latitude":  at.Lat,
		"longitude": at.Lon,
		"days":      days,
	})

	var response OneCallResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"lat":     formatCoord(at.Lat),
			"lon":     formatCoord(at.Lon),
			"appid":   p.apiKey,
			"units":   "metric",
			"lang":    p.language,
			"exclude": "current,minutely,hourly,alerts",
		}).
		SetResult(&response).
		Get(oneCallEndpoint)
	if err != nil {
		complete(err)
		return nil, fmt.Errorf("failed to fetch One Call weather: %w", err)
	}

	if !resp.IsSuccess() {
		apiErr := parseProviderError(p.Name(), resp)
		complete(apiErr)
		return nil, apiErr
	}

	if len(response.Daily) < days {
		err := fmt.Errorf("one call returned %d daily entries, want %d", len(response.Daily), days)
		complete(err)
		return nil, err
	}

	result := make([]ForecastDay, days)
	for i := range result {
		daily := response.Daily[i]
		if len(daily.Weather) == 0 {
			err := fmt.Errorf("one call daily[%d] has no weather condition", i)
			complete(err)
			return nil, err
		}
		result[i] = ForecastDay{
			MinC:      roundTenth(daily.Temp.Min),
			MaxC:      roundTenth(daily.Temp.Max),
			Condition: daily.Weather[0].Description,
		}
	}

	complete(nil)
	logger.Debug("One Call forecast received: location=(%f,%f), timezone=%s, daily_count=%d",
		response.Lat, response.Lon, response.Timezone, len(response.Daily))

	return result, nil
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
