package render

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/goodsign/monday"
	"wetterpost/post"
)

// Compositor draws one forecast image per day.
type Compositor struct {
	layout   Layout
	surfaces SurfaceFactory
	logger   *slog.Logger
}

func NewCompositor(layout Layout, surfaces SurfaceFactory, log *slog.Logger) *Compositor {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Compositor{layout: layout, surfaces: surfaces, logger: log}
}

// Render draws the image for day offset day. The water panel appears only
// on day 0 and only when the context carries a reading.
func (c *Compositor) Render(day int, pc *post.PostContext) (image.Image, error) {
	if day < 0 || day >= pc.DayCount {
		return nil, fmt.Errorf("day offset %d outside [0, %d)", day, pc.DayCount)
	}
	if err := pc.Validate(); err != nil {
		return nil, err
	}

	s, err := c.surfaces()
	if err != nil {
		return nil, err
	}

	if err := c.drawTextBox(s, c.layout.Title, pc.Title); err != nil {
		return nil, fmt.Errorf("title: %w", err)
	}

	date := monday.Format(pc.DateFor(day), c.layout.DateFormat, c.layout.DateLocale)
	if err := c.drawTextBox(s, c.layout.Date, date); err != nil {
		return nil, fmt.Errorf("date: %w", err)
	}

	for _, city := range pc.Cities {
		if err := c.drawCallout(s, city, city.Forecast[day]); err != nil {
			return nil, fmt.Errorf("callout %s: %w", city.Name, err)
		}
	}

	if water := pc.WaterFor(day); water != nil {
		if err := c.drawWaterPanel(s, water); err != nil {
			return nil, fmt.Errorf("water panel: %w", err)
		}
	}

	if pc.Watermark != "" {
		if err := s.DrawText(pc.Watermark, c.layout.Watermark, c.layout.MarkFont, c.layout.MarkColor); err != nil {
			return nil, fmt.Errorf("watermark: %w", err)
		}
	}

	return s.Image(), nil
}

func (c *Compositor) drawTextBox(s Surface, tb TextBox, text string) error {
	w, err := s.MeasureText(text, tb.Font)
	if err != nil {
		return err
	}
	box := tb.Box
	box.X1 = tb.Text.X + w + tb.RightPad
	s.DrawRectangle(box, tb.Fill)
	return s.DrawText(text, tb.Text, tb.Font, tb.Color)
}

// TemperatureLine is the second callout line, e.g. "5,5 bis 12,0°C".
func (c *Compositor) TemperatureLine(rec post.WeatherRecord) string {
	st := c.layout.Callout
	return rec.MinTemp + st.TempSeparator + rec.MaxTemp + st.TempUnit
}

// CalloutWidth is the default width, or wider when the temperature or
// condition line needs more room.
func (c *Compositor) CalloutWidth(s Surface, rec post.WeatherRecord) (float64, error) {
	st := c.layout.Callout

	tempW, err := s.MeasureText(c.TemperatureLine(rec), st.TempFont)
	if err != nil {
		return 0, err
	}
	condW, err := s.MeasureText(rec.Condition, st.ConditionFont)
	if err != nil {
		return 0, err
	}

	return max(st.MinWidth, max(tempW, condW)+2*st.Padding), nil
}

// CalloutBox places the box relative to the marker: a right-folding box
// starts at marker+offset, a left-folding box ends there. Boxes that would
// leave the canvas are shifted back inside and reported as clamped.
func (c *Compositor) CalloutBox(bounds image.Rectangle, city post.CityEntry, width float64) (Rect, bool) {
	st := c.layout.Callout
	x := city.Position.X + city.Offset.X
	y := city.Position.Y + city.Offset.Y
	if city.Folding == post.FoldLeft {
		x -= width
	}

	box := Rect{X0: x, Y0: y, X1: x + width, Y1: y + st.Height}
	minX, minY := float64(bounds.Min.X), float64(bounds.Min.Y)
	maxX, maxY := float64(bounds.Max.X), float64(bounds.Max.Y)

	clamped := false
	if box.X1 > maxX {
		box.X0, box.X1 = maxX-width, maxX
		clamped = true
	}
	if box.X0 < minX {
		box.X0, box.X1 = minX, minX+width
		clamped = true
	}
	if box.Y1 > maxY {
		box.Y0, box.Y1 = maxY-st.Height, maxY
		clamped = true
	}
	if box.Y0 < minY {
		box.Y0, box.Y1 = minY, minY+st.Height
		clamped = true
	}
	return box, clamped
}

func (c *Compositor) drawCallout(s Surface, city post.CityEntry, rec post.WeatherRecord) error {
	st := c.layout.Callout

	width, err := c.CalloutWidth(s, rec)
	if err != nil {
		return err
	}

	box, clamped := c.CalloutBox(s.Bounds(), city, width)
	if clamped {
		c.logger.Warn("Callout clamped to canvas",
			slog.String("city", city.Name),
			slog.Float64("width", width),
			slog.Float64("x", box.X0),
			slog.Float64("y", box.Y0))
	}

	marker := city.Position
	s.DrawRoundedRectangle(box, st.Radius, st.Fill)

	// The arrow meets the box edge facing the marker.
	edge := box.X0
	if city.Folding == post.FoldLeft {
		edge = box.X1
	}
	s.DrawPolygon([]post.Point{
		marker,
		{X: edge, Y: marker.Y + st.ArrowHalfHeight},
		{X: edge, Y: marker.Y - st.ArrowHalfHeight},
	}, st.Fill)
	s.DrawCircle(marker, st.MarkerRadius, st.MarkerFill)

	x := box.X0 + st.Padding
	nameY := box.Y0 + st.Padding
	tempY := nameY + st.NameFont.Size + st.NameGap
	condY := tempY + st.TempFont.Size + st.TempGap

	if err := s.DrawText(city.Name, post.Point{X: x, Y: nameY}, st.NameFont, st.TextColor); err != nil {
		return err
	}
	if err := s.DrawText(c.TemperatureLine(rec), post.Point{X: x, Y: tempY}, st.TempFont, st.TextColor); err != nil {
		return err
	}
	return s.DrawText(rec.Condition, post.Point{X: x, Y: condY}, st.ConditionFont, st.TextColor)
}

func (c *Compositor) drawWaterPanel(s Surface, water *post.WaterReading) error {
	st := c.layout.Water
	s.DrawRoundedRectangle(st.Box, st.Radius, st.Fill)

	if err := s.DrawText(st.Label, st.LabelAt, st.LabelFont, st.TextColor); err != nil {
		return err
	}

	value := water.Temperature + st.TempSuffix
	w, err := s.MeasureText(value, st.ValueFont)
	if err != nil {
		return err
	}
	return s.DrawText(value, post.Point{X: st.ValueX - w/2, Y: st.ValueY}, st.ValueFont, st.TextColor)
}
