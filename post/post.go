// Package post holds the per-run data shared by the fetch, render and publish
// stages. Values are built once per bot run and treated as read-only after.
package post

import (
	"fmt"
	"strings"
	"time"
)

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Lat float64 `toml:"lat"`
	Lon float64 `toml:"lon"`
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.4f,%.4f", c.Lat, c.Lon)
}

// Point is a pixel position or offset on the template image.
type Point struct {
	X float64
	Y float64
}

// Folding selects the side of the marker a callout box extends toward.
type Folding int

const (
	FoldRight Folding = iota
	FoldLeft
)

func (f Folding) String() string {
	if f == FoldLeft {
		return "left"
	}
	return "right"
}

// ParseFolding accepts "l", "left", "r" and "right" in any case.
func ParseFolding(s string) (Folding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "l", "left":
		return FoldLeft, nil
	case "r", "right":
		return FoldRight, nil
	}
	return FoldRight, fmt.Errorf("unknown folding direction %q (want l or r)", s)
}

// WeatherRecord is one forecast day, with temperatures already formatted for
// display.
type WeatherRecord struct {
	MinTemp   string
	MaxTemp   string
	Condition string
}

// CityEntry is a forecast point placed on the map.
type CityEntry struct {
	Name        string
	Coordinates Coordinates
	Position    Point
	Folding     Folding
	Offset      Point
	Forecast    []WeatherRecord
}

// WaterReading is the most recent gauge value. Timestamp is "HH:MM".
type WaterReading struct {
	Timestamp   string
	Temperature string
}

// Location is the geo-tag attached to an upload.
type Location struct {
	Name string  `toml:"name"`
	Lat  float64 `toml:"lat"`
	Lng  float64 `toml:"lon"`
}

// PostContext is everything needed to render and publish one post.
type PostContext struct {
	Cities    []CityEntry
	Water     *WaterReading
	DayCount  int
	Title     string
	Watermark string
	Location  Location
	Date      time.Time
}

// Validate checks that every city carries exactly DayCount forecast days.
func (p *PostContext) Validate() error {
	if p.DayCount < 1 {
		return fmt.Errorf("day count must be at least 1, got %d", p.DayCount)
	}
	for _, city := range p.Cities {
		if len(city.Forecast) != p.DayCount {
			return fmt.Errorf("city %q has %d forecast days, want %d", city.Name, len(city.Forecast), p.DayCount)
		}
	}
	return nil
}

// WaterFor returns the reading to draw on the given day, which is only ever
// today's image.
func (p *PostContext) WaterFor(day int) *WaterReading {
	if day != 0 {
		return nil
	}
	return p.Water
}

// DateFor returns the calendar date shown on the image for day.
func (p *PostContext) DateFor(day int) time.Time {
	return p.Date.AddDate(0, 0, day)
}
