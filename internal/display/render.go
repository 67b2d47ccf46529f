package display

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/relabs-tech/enviro_monitor/internal/reading"
)

var (
	colourWhite = color.RGBA{255, 255, 255, 255}
	colourGreen = color.RGBA{40, 90, 40, 255}
	colourRed   = color.RGBA{120, 20, 20, 255}
	colourBlue  = color.RGBA{20, 30, 100, 255}
	colourLime  = color.RGBA{0, 250, 70, 255}
)

// Frame is everything one render pass needs. The reading is whatever was
// computed most recently; rendering never waits for acquisition, so a stale
// reading is fine.
type Frame struct {
	Reading  reading.Reading
	Scene    int
	Progress float64 // cadence progress in [0, 1]
	Healthy  bool    // false once the persistent error flag is set
}

// Renderer paints status frames for the monitor's panel.
type Renderer struct {
	name   string
	bounds image.Rectangle
	face   font.Face
}

func NewRenderer(name string, bounds image.Rectangle) *Renderer {
	return &Renderer{name: name, bounds: bounds, face: basicfont.Face7x13}
}

// Welcome paints the startup scene shown before the first sample.
func (r *Renderer) Welcome(now time.Time) *image.RGBA {
	img := image.NewRGBA(r.bounds)
	fill(img, r.bounds, colourBlue)

	r.text(img, 5, 12, "ENVIRO MONITOR")
	r.text(img, 5, 30, r.name)
	r.text(img, 5, r.bounds.Dy()-6, now.Format("2006-01-02 15:04:05"))
	return img
}

// Status paints one steady-state frame: health-coloured background, header
// band, the current scene's values, and the cadence progress bar.
func (r *Renderer) Status(f Frame) *image.RGBA {
	img := image.NewRGBA(r.bounds)

	bg := colourGreen
	if !f.Healthy {
		bg = colourRed
	}
	fill(img, r.bounds, bg)
	fill(img, image.Rect(0, 0, r.bounds.Dx(), 14), colourBlue)

	r.text(img, 5, 11, r.name)

	last := "-"
	if !f.Reading.Timestamp.IsZero() {
		last = f.Reading.Timestamp.Format("15:04:05")
	}
	r.text(img, 5, 26, "Last: "+last)

	switch f.Scene {
	case 0:
		r.value(img, 5, "PM2.5", f.Reading.PM25)
		r.value(img, 60, "PM10", f.Reading.PM10)
		r.value(img, 115, "Temp", f.Reading.Temperature)
	case 1:
		r.value(img, 5, "Humid", f.Reading.Humidity)
		r.value(img, 60, "Press", f.Reading.Pressure)
	case 2:
		r.value(img, 5, "Oxi", f.Reading.Oxidising)
		r.value(img, 60, "Red", f.Reading.Reducing)
		r.value(img, 115, "NH3", f.Reading.NH3)
	}

	p := f.Progress
	if p < 0 {
		p = 0
	} else if p > 1 {
		p = 1
	}
	h := r.bounds.Dy()
	fill(img, image.Rect(0, h-6, int(float64(r.bounds.Dx())*p), h), colourLime)

	return img
}

// value draws a label with the measurement underneath, "--" when absent.
func (r *Renderer) value(img *image.RGBA, x int, label string, v *float64) {
	r.text(img, x, 44, label)
	s := "--"
	if v != nil {
		s = strconv.FormatFloat(*v, 'f', -1, 64)
		if len(s) > 6 {
			s = fmt.Sprintf("%.1f", *v)
		}
	}
	r.text(img, x, 60, s)
}

func (r *Renderer) text(img *image.RGBA, x, y int, s string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(colourWhite),
		Face: r.face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func fill(img *image.RGBA, rect image.Rectangle, c color.RGBA) {
	draw.Draw(img, rect, image.NewUniform(c), image.Point{}, draw.Src)
}
