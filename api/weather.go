package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"wetterpost/internal/logger"
	"wetterpost/post"
)

const (
	// DefaultTimeout applies when the configuration leaves the network
	// timeout unset.
	DefaultTimeout = 10 * time.Second

	// DefaultLanguage is passed to providers for condition texts.
	DefaultLanguage = "de"

	userAgent = "wetterpost/1.0"
)

// ForecastDay is a provider-independent daily forecast in Celsius.
type ForecastDay struct {
	MinC      float64 `toml:"min_c"`
	MaxC      float64 `toml:"max_c"`
	Condition string  `toml:"condition"`
}

// Provider fetches a daily forecast for a coordinate pair. Implementations
// return exactly days entries or an error.
type Provider interface {
	Name() string
	Forecast(ctx context.Context, at post.Coordinates, days int) ([]ForecastDay, error)
}

// ClientOptions configures the HTTP client shared by a provider.
type ClientOptions struct {
	BaseURL  string
	Timeout  time.Duration
	Language string
}

func (o ClientOptions) withDefaults(baseURL string) ClientOptions {
	if o.BaseURL == "" {
		o.BaseURL = baseURL
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Language == "" {
		o.Language = DefaultLanguage
	}
	return o
}

// newRESTClient builds a resty client with request/response logging. No
// automatic retries: a failed call surfaces immediately to the caller.
func newRESTClient(baseURL string, timeout time.Duration) *resty.Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("User-Agent", userAgent).
		SetTimeout(timeout)

	client.OnBeforeRequest(func(c *resty.Client, req *resty.Request) error {
		headers := make(map[string]string)
		for key, values := range req.Header {
			if len(values) > 0 {
				headers[key] = values[0]
			}
		}
		logger.LogAPIRequest(req.Method, req.URL, headers)
		return nil
	})

	client.OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
		logger.LogAPIResponse(resp.Request.Method, resp.Request.URL, resp.StatusCode(), resp.Time().String(), len(resp.Body()))
		return nil
	})

	return client
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ProviderAPIError is an error reported by a forecast provider.
type ProviderAPIError struct {
	Provider   string
	StatusCode int
	Code       int
	Message    string
}

func (e *ProviderAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d, code %d): %s", e.Provider, e.StatusCode, e.Code, e.Message)
}

// parseProviderError turns a non-2xx response into a ProviderAPIError. Both
// providers are understood: weatherapi nests {"error":{"code","message"}},
// OpenWeather uses a flat {"cod","message"}.
func parseProviderError(provider string, resp *resty.Response) error {
	statusCode := resp.StatusCode()

	var nested struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body(), &nested); err == nil && nested.Error.Message != "" {
		return &ProviderAPIError{Provider: provider, StatusCode: statusCode, Code: nested.Error.Code, Message: nested.Error.Message}
	}

	var flat struct {
		Cod     json.RawMessage `json:"cod"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(resp.Body(), &flat); err == nil && flat.Message != "" {
		code, _ := strconv.Atoi(string(trimQuotes(flat.Cod)))
		return &ProviderAPIError{Provider: provider, StatusCode: statusCode, Code: code, Message: flat.Message}
	}

	message := fmt.Sprintf("request failed with status %d", statusCode)
	switch statusCode {
	case 401, 403:
		message = "invalid or missing API key"
	case 404:
		message = "location not found"
	case 429:
		message = "API rate limit exceeded"
	}
	return &ProviderAPIError{Provider: provider, StatusCode: statusCode, Code: statusCode, Message: message}
}

func trimQuotes(raw json.RawMessage) []byte {
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		return raw[1 : len(raw)-1]
	}
	return raw
}
