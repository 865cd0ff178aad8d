package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"wetterpost/internal/errorutil"
	"wetterpost/post"
)

// breakerThreshold is the number of consecutive failures after which a
// provider is skipped for the rest of the run.
const breakerThreshold = 3

// ForecastChain tries an ordered list of providers until one succeeds.
type ForecastChain struct {
	providers []guardedProvider
	cache     *CacheManager
	logger    *slog.Logger
}

type guardedProvider struct {
	provider Provider
	breaker  *gobreaker.CircuitBreaker
}

// NewForecastChain wraps each provider in its own circuit breaker. The
// order of providers is the fallback order.
func NewForecastChain(log *slog.Logger, providers ...Provider) *ForecastChain {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	chain := &ForecastChain{logger: log}
	for _, p := range providers {
		chain.providers = append(chain.providers, guardedProvider{
			provider: p,
			breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
				Name:        p.Name(),
				MaxRequests: 1,
				Timeout:     10 * time.Minute,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures >= breakerThreshold
				},
				OnStateChange: func(name string, from, to gobreaker.State) {
					log.Warn("Forecast provider circuit changed state",
						slog.String("provider", name),
						slog.String("from", from.String()),
						slog.String("to", to.String()))
				},
			}),
		})
	}
	return chain
}

// WithCache enables the same-day forecast cache.
func (c *ForecastChain) WithCache(cache *CacheManager) *ForecastChain {
	c.cache = cache
	return c
}

// Providers returns the provider names in fallback order.
func (c *ForecastChain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, gp := range c.providers {
		names[i] = gp.provider.Name()
	}
	return names
}

// Forecast returns exactly days entries from the first provider that
// succeeds, or a *ProviderError listing every failure.
func (c *ForecastChain) Forecast(ctx context.Context, at post.Coordinates, days int) ([]ForecastDay, error) {
	if days < 1 {
		return nil, fmt.Errorf("day count must be at least 1, got %d", days)
	}

	if c.cache != nil {
		if cached, ok := c.cache.Lookup(at, days); ok {
			return cached, nil
		}
	}

	perr := &ProviderError{Coordinates: at}
	for _, gp := range c.providers {
		name := gp.provider.Name()

		result, err := gp.breaker.Execute(func() (interface{}, error) {
			forecast, err := gp.provider.Forecast(ctx, at, days)
			if err == nil && len(forecast) < days {
				err = fmt.Errorf("%s returned %d days, want %d", name, len(forecast), days)
			}
			return forecast, err
		})
		if err != nil {
			perr.Failures = append(perr.Failures, ProviderFailure{Provider: name, Err: err})
			errorutil.LogWarning(c.logger, "forecast provider "+name, err,
				append(errorutil.ProviderContext(name, days), slog.String("coordinates", at.String()))...)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		forecast := result.([]ForecastDay)[:days]
		if c.cache != nil {
			if err := c.cache.Store(at, name, forecast); err != nil {
				errorutil.LogWarning(c.logger, "forecast cache write", err)
			}
		}
		return forecast, nil
	}

	return nil, perr
}
