// Package render draws packed circles as SVG, PNG or plain text.
package render

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/draw"

	"github.com/eugenenazirov/best-candidate/internal/packer"
)

const (
	// supersample is the PNG oversampling factor applied before downscaling.
	supersample = 4
	// maxSupersampledPixels disables oversampling for canvases that would exceed it.
	maxSupersampledPixels = 16 << 20
)

// ErrInvalidCanvas is returned when the canvas dimensions cannot be rendered.
var ErrInvalidCanvas = errors.New("canvas dimensions must be positive")

// Options controls colours and stroke of rendered circles.
// Colours are #rrggbb strings; an empty Fill leaves circles unfilled.
type Options struct {
	Stroke      string
	Fill        string
	Background  string
	StrokeWidth float64
}

// DefaultOptions returns black outlines on a white background.
func DefaultOptions() Options {
	return Options{
		Stroke:      "#333333",
		Background:  "#ffffff",
		StrokeWidth: 1,
	}
}

// Validate reports whether every non-empty colour is a #rrggbb value.
func (o Options) Validate() error {
	for name, value := range map[string]string{"stroke": o.Stroke, "fill": o.Fill, "background": o.Background} {
		if value == "" {
			continue
		}
		if _, err := parseHex(value); err != nil {
			return fmt.Errorf("%s colour: %w", name, err)
		}
	}
	if o.StrokeWidth < 0 || math.IsNaN(o.StrokeWidth) || math.IsInf(o.StrokeWidth, 0) {
		return fmt.Errorf("stroke width must be a non-negative number, got %v", o.StrokeWidth)
	}
	return nil
}

// SVG writes an SVG document of the given canvas size with one <circle> per entry.
func SVG(w io.Writer, width, height float64, circles []packer.Circle, opts Options) error {
	if width <= 0 || height <= 0 {
		return ErrInvalidCanvas
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	fill := opts.Fill
	if fill == "" {
		fill = "none"
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s">`+"\n",
		num(width), num(height), num(width), num(height))
	if opts.Background != "" {
		fmt.Fprintf(bw, `<rect width="100%%" height="100%%" fill="%s"/>`+"\n", opts.Background)
	}
	fmt.Fprintf(bw, `<g stroke="%s" stroke-width="%s" fill="%s">`+"\n", opts.Stroke, num(opts.StrokeWidth), fill)
	for _, c := range circles {
		fmt.Fprintf(bw, `<circle cx="%s" cy="%s" r="%s"/>`+"\n", num(c.X), num(c.Y), num(c.Radius))
	}
	bw.WriteString("</g>\n</svg>\n")

	return bw.Flush()
}

// PNG rasterises the circles at a higher resolution and downsamples the
// result to width x height pixels.
func PNG(w io.Writer, width, height float64, circles []packer.Circle, opts Options) error {
	if width <= 0 || height <= 0 {
		return ErrInvalidCanvas
	}
	pw, ph := int(math.Ceil(width)), int(math.Ceil(height))
	scale := supersample
	if pw*ph*supersample*supersample > maxSupersampledPixels {
		scale = 1
	}

	if err := opts.Validate(); err != nil {
		return err
	}
	stroke, err := parseHex(opts.Stroke)
	if err != nil {
		return fmt.Errorf("stroke colour: %w", err)
	}
	var fill *color.RGBA
	if opts.Fill != "" {
		f, err := parseHex(opts.Fill)
		if err != nil {
			return fmt.Errorf("fill colour: %w", err)
		}
		fill = &f
	}
	background := color.RGBA{}
	if opts.Background != "" {
		if background, err = parseHex(opts.Background); err != nil {
			return fmt.Errorf("background colour: %w", err)
		}
	}

	large := image.NewRGBA(image.Rect(0, 0, pw*scale, ph*scale))
	draw.Draw(large, large.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	half := math.Max(opts.StrokeWidth, 0.5) * float64(scale) / 2
	for _, c := range circles {
		drawCircle(large, c, float64(scale), half, stroke, fill)
	}
	if scale == 1 {
		return png.Encode(w, large)
	}

	final := image.NewRGBA(image.Rect(0, 0, pw, ph))
	draw.CatmullRom.Scale(final, final.Bounds(), large, large.Bounds(), draw.Src, nil)

	return png.Encode(w, final)
}

// Text writes one circle per line in the "(x, y) : r" debug format.
func Text(w io.Writer, circles []packer.Circle) error {
	bw := bufio.NewWriter(w)
	for _, c := range circles {
		bw.WriteString(c.String())
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func drawCircle(img *image.RGBA, c packer.Circle, scale, halfStroke float64, stroke color.RGBA, fill *color.RGBA) {
	cx, cy, r := c.X*scale, c.Y*scale, c.Radius*scale
	outer := r + halfStroke
	inner := math.Max(r-halfStroke, 0)

	b := img.Bounds()
	minX := max(b.Min.X, int(math.Floor(cx-outer)))
	maxX := min(b.Max.X-1, int(math.Ceil(cx+outer)))
	minY := max(b.Min.Y, int(math.Floor(cy-outer)))
	maxY := min(b.Max.Y-1, int(math.Ceil(cy+outer)))

	for y := minY; y <= maxY; y++ {
		dy := float64(y) + 0.5 - cy
		for x := minX; x <= maxX; x++ {
			dx := float64(x) + 0.5 - cx
			d := math.Hypot(dx, dy)
			switch {
			case d >= inner && d <= outer:
				img.SetRGBA(x, y, stroke)
			case d < inner && fill != nil:
				img.SetRGBA(x, y, *fill)
			}
		}
	}
}

func parseHex(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
