package api

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"
	"wetterpost/internal/logger"
	"wetterpost/post"
)

const (
	weatherAPIBaseURL          = "https://api.weatherapi.com/v1"
	weatherAPIForecastEndpoint = "/forecast.json"
)

// WeatherAPIProvider queries the weatherapi.com forecast endpoint.
type WeatherAPIProvider struct {
	client   *resty.Client
	apiKey   string
	language string
}

// NewWeatherAPIProvider creates the primary forecast provider.
func NewWeatherAPIProvider(apiKey string, opts ClientOptions) *WeatherAPIProvider {
	opts = opts.withDefaults(weatherAPIBaseURL)
	return &WeatherAPIProvider{
		client:   newRESTClient(opts.BaseURL, opts.Timeout),
		apiKey:   apiKey,
		language: opts.Language,
	}
}

func (p *WeatherAPIProvider) Name() string {
	return "weatherapi"
}

type weatherAPIForecastResponse struct {
	Forecast struct {
		ForecastDay []struct {
			Date string `json:"date"`
			Day  struct {
				MinTempC  float64 `json:"mintemp_c"`
				MaxTempC  float64 `json:"maxtemp_c"`
				Condition struct {
					Text string `json:"text"`
				} `json:"condition"`
			} `json:"day"`
		} `json:"forecastday"`
	} `json:"forecast"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Forecast returns the first days entries of forecast.forecastday.
func (p *WeatherAPIProvider) Forecast(ctx context.Context, at post.Coordinates, days int) ([]ForecastDay, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("weatherapi API key is not configured")
	}

	complete := logger.LogOperationStart("weatherapi_forecast", map[string]any{
		"latitude":  at.Lat,
		"longitude": at.Lon,
		"days":      days,
	})

	var body weatherAPIForecastResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key":    p.apiKey,
			"q":      formatCoord(at.Lat) + "," + formatCoord(at.Lon),
			"days":   strconv.Itoa(days),
			"lang":   p.language,
			"aqi":    "no",
			"alerts": "no",
		}).
		SetResult(&body).
		Get(weatherAPIForecastEndpoint)
	if err != nil {
		complete(err)
		return nil, fmt.Errorf("weatherapi request failed: %w", err)
	}

	if !resp.IsSuccess() {
		apiErr := parseProviderError(p.Name(), resp)
		complete(apiErr)
		return nil, apiErr
	}
	if body.Error != nil {
		apiErr := &ProviderAPIError{Provider: p.Name(), StatusCode: resp.StatusCode(), Code: body.Error.Code, Message: body.Error.Message}
		complete(apiErr)
		return nil, apiErr
	}

	entries := body.Forecast.ForecastDay
	if len(entries) < days {
		err := fmt.Errorf("weatherapi returned %d forecast days, want %d", len(entries), days)
		complete(err)
		return nil, err
	}

	result := make([]ForecastDay, days)
	for i := range result {
		day := entries[i].Day
		result[i] = ForecastDay{
			MinC:      day.MinTempC,
			MaxC:      day.MaxTempC,
			Condition: day.Condition.Text,
		}
	}

	complete(nil)
	return result, nil
}
