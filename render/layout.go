package render

import (
	"image/color"

	"github.com/goodsign/monday"
	"wetterpost/post"
)

// FontFiles names the three typefaces used on the image. Empty entries fall
// back to the built-in Go font.
type FontFiles struct {
	Display  string `toml:"display"`
	SemiBold string `toml:"semibold"`
	Regular  string `toml:"regular"`
}

// TextBox is a single line of text on a filled background box whose right
// edge follows the text width.
type TextBox struct {
	Box      Rect // X1 is ignored and computed from the text
	Text     post.Point
	RightPad float64
	Font     Font
	Fill     color.Color
	Color    color.Color
}

// CalloutStyle describes the box drawn next to each city marker.
type CalloutStyle struct {
	MinWidth        float64
	Height          float64
	Padding         float64
	Radius          float64
	MarkerRadius    float64
	ArrowHalfHeight float64
	NameGap         float64 // between name and temperature line
	TempGap         float64 // between temperature and condition line
	NameFont        Font
	TempFont        Font
	ConditionFont   Font
	Fill            color.Color
	MarkerFill      color.Color
	TextColor       color.Color
	TempSeparator   string
	TempUnit        string
}

// WaterPanelStyle is the fixed panel showing the current water temperature.
type WaterPanelStyle struct {
	Box        Rect
	Radius     float64
	Fill       color.Color
	Label      string
	LabelAt    post.Point
	LabelFont  Font
	ValueX     float64 // horizontal centre of the value
	ValueY     float64
	ValueFont  Font
	TextColor  color.Color
	TempSuffix string
}

// Layout holds every anchor, size and colour used by the Compositor.
type Layout struct {
	Title      TextBox
	Date       TextBox
	DateFormat string
	DateLocale monday.Locale
	Callout    CalloutStyle
	Water      WaterPanelStyle
	Watermark  post.Point
	MarkFont   Font
	MarkColor  color.Color
}

var (
	calloutGrey = color.RGBA{244, 244, 244, 255}
	panelGrey   = color.RGBA{224, 224, 224, 255}
	markerAmber = color.RGBA{238, 125, 0, 255}
	markGrey    = color.RGBA{80, 80, 80, 255}
)

// DefaultLayout returns the layout for the 2160 px square template.
func DefaultLayout(fonts FontFiles) Layout {
	return Layout{
		Title: TextBox{
			Box:      Rect{X0: 40, Y0: 40, Y1: 240},
			Text:     post.Point{X: 60, Y: 30},
			RightPad: 20,
			Font:     Font{Path: fonts.Display, Size: 200},
			Fill:     color.White,
			Color:    color.Black,
		},
		Date: TextBox{
			Box:      Rect{X0: 40, Y0: 260, Y1: 385},
			Text:     post.Point{X: 60, Y: 260},
			RightPad: 20,
			Font:     Font{Path: fonts.Display, Size: 100},
			Fill:     color.White,
			Color:    color.Black,
		},
		DateFormat: "Monday, 2. January 2006",
		DateLocale: monday.LocaleDeDE,
		Callout: CalloutStyle{
			MinWidth:        350,
			Height:          210,
			Padding:         15,
			Radius:          10,
			MarkerRadius:    15,
			ArrowHalfHeight: 25,
			NameGap:         5,
			TempGap:         15,
			NameFont:        Font{Path: fonts.SemiBold, Size: 60},
			TempFont:        Font{Path: fonts.Regular, Size: 45},
			ConditionFont:   Font{Path: fonts.Regular, Size: 40},
			Fill:            calloutGrey,
			MarkerFill:      markerAmber,
			TextColor:       color.Black,
			TempSeparator:   " bis ",
			TempUnit:        "°C",
		},
		Water: WaterPanelStyle{
			Box:        Rect{X0: 1500, Y0: 1900, X1: 1980, Y1: 2050},
			Radius:     10,
			Fill:       panelGrey,
			Label:      "Wassertemperatur:",
			LabelAt:    post.Point{X: 1510, Y: 1910},
			LabelFont:  Font{Path: fonts.SemiBold, Size: 50},
			ValueX:     1740,
			ValueY:     1970,
			ValueFont:  Font{Path: fonts.Regular, Size: 50},
			TextColor:  color.Black,
			TempSuffix: "°C",
		},
		Watermark: post.Point{X: 40, Y: 2100},
		MarkFont:  Font{Path: fonts.Display, Size: 60},
		MarkColor: markGrey,
	}
}

// DefaultCanvasSize is used when no template image is configured.
const DefaultCanvasSize = 2160
