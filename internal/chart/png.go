package chart

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"strconv"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

var (
	fontRegular font.Face
	fontTitle   font.Face
	fontOnce    sync.Once
	fontErr     error
)

func loadFonts() {
	fontOnce.Do(func() {
		regular, err := opentype.Parse(goregular.TTF)
		if err != nil {
			fontErr = fmt.Errorf("parse goregular: %w", err)
			return
		}
		fontRegular, err = opentype.NewFace(regular, &opentype.FaceOptions{Size: 12, DPI: 72, Hinting: font.HintingFull})
		if err != nil {
			fontErr = fmt.Errorf("create regular face: %w", err)
			return
		}

		bold, err := opentype.Parse(gobold.TTF)
		if err != nil {
			fontErr = fmt.Errorf("parse gobold: %w", err)
			return
		}
		fontTitle, err = opentype.NewFace(bold, &opentype.FaceOptions{Size: 16, DPI: 72, Hinting: font.HintingFull})
		if err != nil {
			fontErr = fmt.Errorf("create title face: %w", err)
			return
		}
	})
}

var (
	colBackground = color.RGBA{255, 255, 255, 255}
	colAxis       = color.RGBA{120, 120, 120, 255}
	colText       = color.RGBA{40, 40, 40, 255}
	colSeries     = color.RGBA{31, 119, 180, 255}
)

const (
	marginLeft   = 70
	marginRight  = 20
	marginTop    = 40
	marginBottom = 45
	minWidth     = marginLeft + marginRight + 10
	minHeight    = marginTop + marginBottom + 10
)

// RenderPNG draws fig as a width x height PNG.
func RenderPNG(w io.Writer, fig Figure, width, height int) error {
	if width < minWidth || height < minHeight {
		return fmt.Errorf("chart size %dx%d too small (minimum %dx%d)", width, height, minWidth, minHeight)
	}
	if len(fig.X) != len(fig.Y) {
		return fmt.Errorf("figure has %d x values and %d y values", len(fig.X), len(fig.Y))
	}

	loadFonts()
	if fontErr != nil {
		return fmt.Errorf("load fonts: %w", fontErr)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(colBackground), image.Point{}, draw.Src)

	drawCentered(img, fig.Title, width/2, 26, colText, fontTitle)

	if fig.Empty() {
		drawCentered(img, "No data", width/2, height/2, colAxis, fontRegular)
		return encode(w, img)
	}

	p := newPlot(fig, image.Rect(marginLeft, marginTop, width-marginRight, height-marginBottom))
	p.drawAxes(img)
	switch fig.Kind {
	case Bar:
		p.drawBars(img)
	default:
		p.drawLine(img)
	}
	return encode(w, img)
}

func encode(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode chart: %w", err)
	}
	return nil
}

type plot struct {
	fig        Figure
	area       image.Rectangle
	tMin, tMax time.Time
	yMin, yMax float64
}

func newPlot(fig Figure, area image.Rectangle) *plot {
	p := &plot{fig: fig, area: area, yMin: math.Inf(1), yMax: math.Inf(-1)}
	for i, y := range fig.Y {
		if math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}
		p.yMin = math.Min(p.yMin, y)
		p.yMax = math.Max(p.yMax, y)
		t := fig.X[i]
		if p.tMin.IsZero() || t.Before(p.tMin) {
			p.tMin = t
		}
		if p.tMax.IsZero() || t.After(p.tMax) {
			p.tMax = t
		}
	}
	if fig.Kind == Bar {
		p.yMin = math.Min(p.yMin, 0)
		p.yMax = math.Max(p.yMax, 0)
	}
	if p.yMax == p.yMin {
		p.yMin -= 1
		p.yMax += 1
	}
	return p
}

func (p *plot) x(t time.Time) float32 {
	span := p.tMax.Sub(p.tMin)
	if span <= 0 {
		return float32(p.area.Min.X+p.area.Max.X) / 2
	}
	frac := float64(t.Sub(p.tMin)) / float64(span)
	return float32(float64(p.area.Min.X) + frac*float64(p.area.Dx()))
}

func (p *plot) y(v float64) float32 {
	frac := (v - p.yMin) / (p.yMax - p.yMin)
	return float32(float64(p.area.Max.Y) - frac*float64(p.area.Dy()))
}

func (p *plot) drawAxes(img *image.RGBA) {
	a := p.area
	fillRect(img, image.Rect(a.Min.X-1, a.Min.Y, a.Min.X, a.Max.Y+1), colAxis)
	fillRect(img, image.Rect(a.Min.X-1, a.Max.Y, a.Max.X, a.Max.Y+1), colAxis)

	drawRight(img, formatValue(p.yMax), a.Min.X-6, a.Min.Y+5, colText, fontRegular)
	drawRight(img, formatValue(p.yMin), a.Min.X-6, a.Max.Y, colText, fontRegular)

	layout := "2006-01-02"
	drawText(img, p.tMin.UTC().Format(layout), a.Min.X, a.Max.Y+16, colText, fontRegular)
	drawRight(img, p.tMax.UTC().Format(layout), a.Max.X, a.Max.Y+16, colText, fontRegular)

	drawCentered(img, p.fig.XLabel, (a.Min.X+a.Max.X)/2, a.Max.Y+34, colAxis, fontRegular)
	drawText(img, p.fig.YLabel, 8, a.Min.Y-8, colAxis, fontRegular)
}

// drawLine strokes the series, leaving a gap at each missing value.
func (p *plot) drawLine(img *image.RGBA) {
	z := vector.NewRasterizer(img.Bounds().Dx(), img.Bounds().Dy())
	var (
		prevX, prevY float32
		havePrev     bool
	)
	for i, v := range p.fig.Y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			havePrev = false
			continue
		}
		x, y := p.x(p.fig.X[i]), p.y(v)
		if havePrev {
			strokeSegment(z, prevX, prevY, x, y, 1.5)
		} else {
			// A lone point still needs to be visible.
			strokeSegment(z, x-0.75, y, x+0.75, y, 1.5)
		}
		prevX, prevY, havePrev = x, y, true
	}
	z.Draw(img, img.Bounds(), image.NewUniform(colSeries), image.Point{})
}

func (p *plot) drawBars(img *image.RGBA) {
	n := len(p.fig.Y)
	slot := float64(p.area.Dx()) / float64(n)
	barWidth := max(int(slot*0.8), 1)
	zero := int(p.y(0))

	for i, v := range p.fig.Y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		left := p.area.Min.X + int(slot*float64(i)+(slot-float64(barWidth))/2)
		top := int(p.y(v))
		r := image.Rect(left, min(top, zero), left+barWidth, max(top, zero))
		if r.Dy() == 0 {
			r.Max.Y++
		}
		fillRect(img, r, colSeries)
	}
}

// strokeSegment adds a line of the given width as a filled quad.
func strokeSegment(z *vector.Rasterizer, x0, y0, x1, y1, width float32) {
	dx, dy := x1-x0, y1-y0
	length := float32(math.Hypot(float64(dx), float64(dy)))
	if length == 0 {
		return
	}
	nx, ny := -dy/length*width/2, dx/length*width/2

	z.MoveTo(x0+nx, y0+ny)
	z.LineTo(x1+nx, y1+ny)
	z.LineTo(x1-nx, y1-ny)
	z.LineTo(x0-nx, y0-ny)
	z.ClosePath()
}

func fillRect(img *image.RGBA, r image.Rectangle, col color.Color) {
	draw.Draw(img, r, image.NewUniform(col), image.Point{}, draw.Src)
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}

func drawText(img *image.RGBA, text string, x, y int, col color.Color, face font.Face) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

func drawCentered(img *image.RGBA, text string, cx, y int, col color.Color, face font.Face) {
	w := font.MeasureString(face, text).Ceil()
	drawText(img, text, cx-w/2, y, col, face)
}

func drawRight(img *image.RGBA, text string, right, y int, col color.Color, face font.Face) {
	w := font.MeasureString(face, text).Ceil()
	drawText(img, text, right-w, y, col, face)
}
