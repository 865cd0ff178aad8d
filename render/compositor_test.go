package render

import (
	"image"
	"image/color"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wetterpost/post"
)

type drawOp struct {
	kind string
	text string
	at   post.Point
	rect Rect
	pts  []post.Point
}

// recordingSurface measures text as half the font size per rune.
type recordingSurface struct {
	bounds image.Rectangle
	ops    []drawOp
}

func newRecordingSurface() *recordingSurface {
	return &recordingSurface{bounds: image.Rect(0, 0, DefaultCanvasSize, DefaultCanvasSize)}
}

func (r *recordingSurface) Bounds() image.Rectangle { return r.bounds }

func (r *recordingSurface) DrawRectangle(rect Rect, _ color.Color) {
	r.ops = append(r.ops, drawOp{kind: "rect", rect: rect})
}

func (r *recordingSurface) DrawRoundedRectangle(rect Rect, _ float64, _ color.Color) {
	r.ops = append(r.ops, drawOp{kind: "rounded", rect: rect})
}

func (r *recordingSurface) DrawPolygon(points []post.Point, _ color.Color) {
	r.ops = append(r.ops, drawOp{kind: "polygon", pts: points})
}

func (r *recordingSurface) DrawCircle(center post.Point, _ float64, _ color.Color) {
	r.ops = append(r.ops, drawOp{kind: "circle", at: center})
}

func (r *recordingSurface) DrawText(text string, at post.Point, _ Font, _ color.Color) error {
	r.ops = append(r.ops, drawOp{kind: "text", text: text, at: at})
	return nil
}

func (r *recordingSurface) MeasureText(text string, f Font) (float64, error) {
	return float64(utf8.RuneCountInString(text)) * f.Size / 2, nil
}

func (r *recordingSurface) Image() image.Image {
	return image.NewRGBA(r.bounds)
}

func (r *recordingSurface) texts() []string {
	var out []string
	for _, op := range r.ops {
		if op.kind == "text" {
			out = append(out, op.text)
		}
	}
	return out
}

func (r *recordingSurface) find(kind, text string) (drawOp, bool) {
	for _, op := range r.ops {
		if op.kind == kind && (text == "" || op.text == text) {
			return op, true
		}
	}
	return drawOp{}, false
}

func recorder() (*recordingSurface, SurfaceFactory) {
	rs := newRecordingSurface()
	return rs, func() (Surface, error) {
		rs.ops = nil
		return rs, nil
	}
}

func testContext() *post.PostContext {
	return &post.PostContext{
		DayCount:  2,
		Title:     "Wetter München",
		Watermark: "@wetter.muenchen",
		Date:      time.Date(2026, 5, 1, 7, 0, 0, 0, time.UTC),
		Water:     &post.WaterReading{Timestamp: "08:15", Temperature: "19,2"},
		Cities: []post.CityEntry{
			{
				Name:     "München",
				Position: post.Point{X: 1000, Y: 1000},
				Offset:   post.Point{X: 50, Y: -100},
				Folding:  post.FoldRight,
				Forecast: []post.WeatherRecord{
					{MinTemp: "5,5", MaxTemp: "12,0", Condition: "Sonnig"},
					{MinTemp: "3,1", MaxTemp: "9,4", Condition: "Leichter Regen"},
				},
			},
		},
	}
}

func TestRender_DrawOrderAndContent(t *testing.T) {
	rs, factory := recorder()
	c := NewCompositor(DefaultLayout(FontFiles{}), factory, nil)

	_, err := c.Render(0, testContext())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Wetter München",
		"Freitag, 1. Mai 2026",
		"München",
		"5,5 bis 12,0°C",
		"Sonnig",
		"Wassertemperatur:",
		"19,2°C",
		"@wetter.muenchen",
	}, rs.texts())
}

func TestRender_WaterPanelOnlyOnDayZero(t *testing.T) {
	rs, factory := recorder()
	c := NewCompositor(DefaultLayout(FontFiles{}), factory, nil)
	pc := testContext()

	_, err := c.Render(0, pc)
	require.NoError(t, err)
	_, ok := rs.find("text", "Wassertemperatur:")
	assert.True(t, ok, "day 0 shows the panel")

	_, err = c.Render(1, pc)
	require.NoError(t, err)
	_, ok = rs.find("text", "Wassertemperatur:")
	assert.False(t, ok, "day 1 never shows the panel")
	assert.Contains(t, rs.texts(), "Samstag, 2. Mai 2026")
	assert.Contains(t, rs.texts(), "3,1 bis 9,4°C")

	pc.Water = nil
	_, err = c.Render(0, pc)
	require.NoError(t, err)
	_, ok = rs.find("text", "Wassertemperatur:")
	assert.False(t, ok, "no reading, no panel")
	assert.Contains(t, rs.texts(), "@wetter.muenchen", "watermark keeps its place")
}

func TestRender_WaterValueCentered(t *testing.T) {
	rs, factory := recorder()
	layout := DefaultLayout(FontFiles{})
	c := NewCompositor(layout, factory, nil)

	_, err := c.Render(0, testContext())
	require.NoError(t, err)

	op, ok := rs.find("text", "19,2°C")
	require.True(t, ok)
	w := 6 * layout.Water.ValueFont.Size / 2
	assert.InDelta(t, layout.Water.ValueX-w/2, op.at.X, 1e-9)
	assert.Equal(t, layout.Water.ValueY, op.at.Y)
}

func TestRender_TitleBoxFollowsText(t *testing.T) {
	rs, factory := recorder()
	layout := DefaultLayout(FontFiles{})
	c := NewCompositor(layout, factory, nil)

	_, err := c.Render(0, testContext())
	require.NoError(t, err)

	op, ok := rs.find("rect", "")
	require.True(t, ok)
	titleW := float64(utf8.RuneCountInString("Wetter München")) * layout.Title.Font.Size / 2
	assert.Equal(t, Rect{X0: 40, Y0: 40, X1: 80 + titleW, Y1: 240}, op.rect)
}

func TestRender_RejectsBadDay(t *testing.T) {
	_, factory := recorder()
	c := NewCompositor(DefaultLayout(FontFiles{}), factory, nil)

	_, err := c.Render(2, testContext())
	assert.Error(t, err)
	_, err = c.Render(-1, testContext())
	assert.Error(t, err)

	pc := testContext()
	pc.Cities[0].Forecast = pc.Cities[0].Forecast[:1]
	_, err = c.Render(1, pc)
	assert.Error(t, err, "short forecast is never indexed")
}

func TestCalloutWidth(t *testing.T) {
	rs := newRecordingSurface()
	layout := DefaultLayout(FontFiles{})
	c := NewCompositor(layout, nil, nil)

	tests := []struct {
		name string
		rec  post.WeatherRecord
		want float64
	}{
		{
			name: "short text uses the default",
			rec:  post.WeatherRecord{MinTemp: "5,5", MaxTemp: "12,0", Condition: "Sonnig"},
			want: 350,
		},
		{
			name: "long condition widens the box",
			rec:  post.WeatherRecord{MinTemp: "5,5", MaxTemp: "12,0", Condition: strings.Repeat("x", 20)},
			want: 20*20 + 30,
		},
		{
			name: "long temperature line widens the box",
			rec:  post.WeatherRecord{MinTemp: "-12,5", MaxTemp: "-10,0", Condition: "Schnee"},
			want: float64(utf8.RuneCountInString("-12,5 bis -10,0°C"))*22.5 + 30,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.CalloutWidth(rs, tt.rec)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCalloutBox(t *testing.T) {
	c := NewCompositor(DefaultLayout(FontFiles{}), nil, nil)
	bounds := image.Rect(0, 0, 2160, 2160)

	city := post.CityEntry{
		Name:     "Rosenheim",
		Position: post.Point{X: 1200, Y: 1400},
		Offset:   post.Point{X: 40, Y: -80},
	}

	city.Folding = post.FoldRight
	box, clamped := c.CalloutBox(bounds, city, 400)
	assert.False(t, clamped)
	assert.Equal(t, Rect{X0: 1240, Y0: 1320, X1: 1640, Y1: 1530}, box)

	city.Folding = post.FoldLeft
	city.Offset = post.Point{X: -40, Y: -80}
	box, clamped = c.CalloutBox(bounds, city, 400)
	assert.False(t, clamped)
	assert.Equal(t, Rect{X0: 760, Y0: 1320, X1: 1160, Y1: 1530}, box)
}

func TestCalloutBox_ClampsToCanvas(t *testing.T) {
	c := NewCompositor(DefaultLayout(FontFiles{}), nil, nil)
	bounds := image.Rect(0, 0, 2160, 2160)

	right := post.CityEntry{Position: post.Point{X: 2000, Y: 500}, Offset: post.Point{X: 40}}
	box, clamped := c.CalloutBox(bounds, right, 400)
	assert.True(t, clamped)
	assert.Equal(t, 2160.0, box.X1)
	assert.Equal(t, 400.0, box.Width())

	left := post.CityEntry{Position: post.Point{X: 100, Y: 2100}, Folding: post.FoldLeft, Offset: post.Point{X: -20}}
	box, clamped = c.CalloutBox(bounds, left, 400)
	assert.True(t, clamped)
	assert.Equal(t, 0.0, box.X0)
	assert.Equal(t, 2160.0, box.Y1)
}

func TestRender_ArrowMeetsFacingEdge(t *testing.T) {
	rs, factory := recorder()
	c := NewCompositor(DefaultLayout(FontFiles{}), factory, nil)
	pc := testContext()
	pc.Cities[0].Folding = post.FoldLeft
	pc.Cities[0].Offset = post.Point{X: -50, Y: -100}

	_, err := c.Render(0, pc)
	require.NoError(t, err)

	box, ok := rs.find("rounded", "")
	require.True(t, ok)
	arrow, ok := rs.find("polygon", "")
	require.True(t, ok)

	assert.Equal(t, pc.Cities[0].Position, arrow.pts[0])
	assert.Equal(t, box.rect.X1, arrow.pts[1].X)
	assert.Equal(t, 1000.0+25, arrow.pts[1].Y)
}

func TestGGSurface_RendersWithBuiltinFont(t *testing.T) {
	faces := NewFaceCache()
	c := NewCompositor(DefaultLayout(FontFiles{}), BlankSurfaces(DefaultCanvasSize, DefaultCanvasSize, faces), nil)

	img, err := c.Render(0, testContext())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, DefaultCanvasSize, DefaultCanvasSize), img.Bounds())

	// Marker centre is amber.
	r, g, b, _ := img.At(1000, 1000).RGBA()
	assert.Equal(t, []uint32{238, 125, 0}, []uint32{r >> 8, g >> 8, b >> 8})
}

func TestFaceCache_MissingFile(t *testing.T) {
	_, err := NewFaceCache().Face(Font{Path: "/does/not/exist.ttf", Size: 10})
	assert.Error(t, err)
}
