// Package render composes the forecast images.
//
// Layout logic lives in Compositor and only talks to a Surface, so it can be
// exercised without fonts or a template bitmap. GGSurface is the production
// Surface backed by fogleman/gg.
package render

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"wetterpost/post"
)

// Font selects a face by file and pixel size. An empty Path selects the
// built-in Go Regular face.
type Font struct {
	Path string
	Size float64
}

func (f Font) String() string {
	if f.Path == "" {
		return fmt.Sprintf("goregular@%.0f", f.Size)
	}
	return fmt.Sprintf("%s@%.0f", f.Path, f.Size)
}

// Rect is an axis-aligned box given by its corners.
type Rect struct {
	X0, Y0, X1, Y1 float64
}

func (r Rect) Width() float64  { return r.X1 - r.X0 }
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// Surface is the set of drawing primitives the compositor needs. Text is
// positioned by the top-left corner of its line box.
type Surface interface {
	Bounds() image.Rectangle
	DrawRectangle(r Rect, fill color.Color)
	DrawRoundedRectangle(r Rect, radius float64, fill color.Color)
	DrawPolygon(points []post.Point, fill color.Color)
	DrawCircle(center post.Point, radius float64, fill color.Color)
	DrawText(text string, at post.Point, f Font, fill color.Color) error
	MeasureText(text string, f Font) (float64, error)
	Image() image.Image
}

// SurfaceFactory returns a fresh surface for one image.
type SurfaceFactory func() (Surface, error)

// FaceCache loads each font face once and shares it between surfaces.
type FaceCache struct {
	mu    sync.Mutex
	fonts map[string]*opentype.Font
	faces map[Font]font.Face
}

func NewFaceCache() *FaceCache {
	return &FaceCache{
		fonts: make(map[string]*opentype.Font),
		faces: make(map[Font]font.Face),
	}
}

// Face returns the face for f, parsing the font file on first use. TrueType
// and CFF-flavoured OpenType files are both accepted.
func (c *FaceCache) Face(f Font) (font.Face, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if face, ok := c.faces[f]; ok {
		return face, nil
	}

	parsed, ok := c.fonts[f.Path]
	if !ok {
		data := goregular.TTF
		if f.Path != "" {
			var err error
			data, err = os.ReadFile(f.Path)
			if err != nil {
				return nil, fmt.Errorf("failed to read font %s: %w", f.Path, err)
			}
		}

		var err error
		parsed, err = opentype.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse font %s: %w", f, err)
		}
		c.fonts[f.Path] = parsed
	}

	// 72 DPI makes the size argument a pixel size.
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    f.Size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create face %s: %w", f, err)
	}
	c.faces[f] = face
	return face, nil
}

// GGSurface draws onto a copy of a background image with fogleman/gg.
type GGSurface struct {
	dc    *gg.Context
	faces *FaceCache
}

// NewGGSurface copies background into a new RGBA canvas.
func NewGGSurface(background image.Image, faces *FaceCache) *GGSurface {
	if faces == nil {
		faces = NewFaceCache()
	}
	return &GGSurface{dc: gg.NewContextForImage(background), faces: faces}
}

// TemplateSurfaces loads the template bitmap once and hands out a fresh
// canvas for every image.
func TemplateSurfaces(path string, faces *FaceCache) (SurfaceFactory, error) {
	background, err := gg.LoadImage(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load template %s: %w", path, err)
	}
	return func() (Surface, error) {
		return NewGGSurface(background, faces), nil
	}, nil
}

// BlankSurfaces produces plain white canvases of the given size.
func BlankSurfaces(width, height int, faces *FaceCache) SurfaceFactory {
	return func() (Surface, error) {
		dc := gg.NewContext(width, height)
		dc.SetColor(color.White)
		dc.Clear()
		return NewGGSurface(dc.Image(), faces), nil
	}
}

func (s *GGSurface) Bounds() image.Rectangle {
	return s.dc.Image().Bounds()
}

func (s *GGSurface) DrawRectangle(r Rect, fill color.Color) {
	s.dc.DrawRectangle(r.X0, r.Y0, r.Width(), r.Height())
	s.dc.SetColor(fill)
	s.dc.Fill()
}

func (s *GGSurface) DrawRoundedRectangle(r Rect, radius float64, fill color.Color) {
	s.dc.DrawRoundedRectangle(r.X0, r.Y0, r.Width(), r.Height(), radius)
	s.dc.SetColor(fill)
	s.dc.Fill()
}

func (s *GGSurface) DrawPolygon(points []post.Point, fill color.Color) {
	if len(points) < 3 {
		return
	}
	s.dc.NewSubPath()
	s.dc.MoveTo(points[0].X, points[0].Y)
	for _, p := range points[1:] {
		s.dc.LineTo(p.X, p.Y)
	}
	s.dc.ClosePath()
	s.dc.SetColor(fill)
	s.dc.Fill()
}

func (s *GGSurface) DrawCircle(center post.Point, radius float64, fill color.Color) {
	s.dc.DrawCircle(center.X, center.Y, radius)
	s.dc.SetColor(fill)
	s.dc.Fill()
}

func (s *GGSurface) DrawText(text string, at post.Point, f Font, fill color.Color) error {
	face, err := s.faces.Face(f)
	if err != nil {
		return err
	}
	s.dc.SetFontFace(face)
	s.dc.SetColor(fill)

	ascent := float64(face.Metrics().Ascent) / 64
	s.dc.DrawString(text, at.X, at.Y+ascent)
	return nil
}

func (s *GGSurface) MeasureText(text string, f Font) (float64, error) {
	face, err := s.faces.Face(f)
	if err != nil {
		return 0, err
	}
	s.dc.SetFontFace(face)
	w, _ := s.dc.MeasureString(text)
	return w, nil
}

func (s *GGSurface) Image() image.Image {
	return s.dc.Image()
}
