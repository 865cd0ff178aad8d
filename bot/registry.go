// Package bot runs the per-account pipeline: build the city registry, read
// the water gauge, render one image per day and publish the album.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	"wetterpost/api"
	"wetterpost/internal/errorutil"
	"wetterpost/post"
)

// ForecastSource returns exactly days forecast entries for a coordinate pair.
type ForecastSource interface {
	Forecast(ctx context.Context, at post.Coordinates, days int) ([]api.ForecastDay, error)
}

// Registry collects the cities that will appear on the post, in insertion
// order. A city whose forecast cannot be fetched is left out.
type Registry struct {
	source    ForecastSource
	formatter *post.TemperatureFormatter
	days      int
	logger    *slog.Logger
	cities    []post.CityEntry
	index     map[string]int
}

func NewRegistry(source ForecastSource, formatter *post.TemperatureFormatter, days int, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		source:    source,
		formatter: formatter,
		days:      days,
		logger:    log,
		index:     make(map[string]int),
	}
}

// AddCity fetches the forecast for city and registers it. Adding a name
// twice replaces the earlier entry.
func (r *Registry) AddCity(ctx context.Context, city post.CityEntry) error {
	days, err := r.source.Forecast(ctx, city.Coordinates, r.days)
	if err != nil {
		return err
	}
	if len(days) < r.days {
		return fmt.Errorf("forecast for %s has %d days, want %d", city.Name, len(days), r.days)
	}

	city.Forecast = make([]post.WeatherRecord, r.days)
	for i := range city.Forecast {
		city.Forecast[i] = r.formatter.Record(days[i].MinC, days[i].MaxC, days[i].Condition)
	}

	if i, ok := r.index[city.Name]; ok {
		r.cities[i] = city
		return nil
	}
	r.index[city.Name] = len(r.cities)
	r.cities = append(r.cities, city)
	return nil
}

// AddAll adds every city, logging and skipping the ones that fail. It
// returns the number of cities skipped.
func (r *Registry) AddAll(ctx context.Context, cities []post.CityEntry) int {
	skipped := 0
	for _, city := range cities {
		if err := r.AddCity(ctx, city); err != nil {
			skipped++
			attrs := errorutil.CityContext(city.Name, city.Coordinates.Lat, city.Coordinates.Lon)
			r.logger.Error("City skipped, no forecast available",
				append([]any{slog.String("error", err.Error())}, attrsToAny(attrs)...)...)
			continue
		}
		r.logger.Debug("City registered", slog.String("city", city.Name))
	}
	return skipped
}

// Cities returns a copy of the registered entries.
func (r *Registry) Cities() []post.CityEntry {
	return append([]post.CityEntry(nil), r.cities...)
}

// Len is the number of registered cities.
func (r *Registry) Len() int {
	return len(r.cities)
}

func attrsToAny(attrs []slog.Attr) []any {
	out := make([]any, len(attrs))
	for i, a := range attrs {
		out[i] = a
	}
	return out
}
