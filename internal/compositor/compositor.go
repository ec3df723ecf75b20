// Package compositor draws mesh overlays onto frames with OpenCV.
package compositor

import (
	"fmt"
	"image"
	"image/color"

	"github.com/andresmejia3/facemesh/internal/config"
	"github.com/andresmejia3/facemesh/internal/mesh"
	"gocv.io/x/gocv"
)

// Style holds colours and stroke widths. Colours are plain RGB; gocv maps
// them onto the Mat's BGR(A) channel order.
type Style struct {
	PointColor    color.RGBA
	BoxColor      color.RGBA
	LineColor     color.RGBA
	PointRadius   int
	BoxThickness  int
	LineThickness int
	// DrawPoints toggles the per-landmark dots.
	DrawPoints bool
}

// DefaultStyle is red 1px dots, a red 2px box and green 1px contours.
func DefaultStyle() Style {
	return StyleFromConfig(config.Default().Overlay)
}

// StyleFromConfig converts the YAML overlay section.
func StyleFromConfig(o config.Overlay) Style {
	return Style{
		PointColor:    toRGBA(o.PointColor),
		BoxColor:      toRGBA(o.BoxColor),
		LineColor:     toRGBA(o.LineColor),
		PointRadius:   o.PointRadius,
		BoxThickness:  o.BoxThickness,
		LineThickness: o.LineThickness,
		DrawPoints:    o.Points,
	}
}

func toRGBA(c config.RGB) color.RGBA {
	return color.RGBA{R: uint8(c[0]), G: uint8(c[1]), B: uint8(c[2]), A: 255}
}

func pt(p mesh.Point) image.Point { return image.Pt(p.X, p.Y) }

// Draw renders every overlay onto img in place: points, then the box, then
// the contours. Primitives outside the frame are clipped by OpenCV.
// It returns the number of primitives drawn.
func Draw(img *gocv.Mat, overlays []mesh.Overlay, style Style) int {
	drawn := 0
	for _, o := range overlays {
		if len(o.Points) == 0 {
			continue
		}

		if style.DrawPoints {
			for _, p := range o.Points {
				gocv.Circle(img, pt(p), style.PointRadius, style.PointColor, -1)
			}
			drawn += len(o.Points)
		}

		rect := image.Rect(o.Box.X1, o.Box.Y1, o.Box.X2, o.Box.Y2)
		gocv.Rectangle(img, rect, style.BoxColor, style.BoxThickness)
		drawn++

		for _, c := range o.Contours {
			for _, s := range c.Segments {
				gocv.Line(img, pt(s.From), pt(s.To), style.LineColor, style.LineThickness)
			}
			drawn += len(c.Segments)
		}
	}
	return drawn
}

// DrawBGRA wraps a raw BGRA buffer in a Mat without copying, draws, and
// leaves the result in buf.
func DrawBGRA(buf []byte, width, height int, overlays []mesh.Overlay, style Style) (int, error) {
	if width <= 0 || height <= 0 || len(buf) != width*height*4 {
		return 0, fmt.Errorf("frame is %d bytes, want %dx%dx4", len(buf), width, height)
	}
	mat, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC4, buf)
	if err != nil {
		return 0, err
	}
	defer mat.Close()

	n := Draw(&mat, overlays, style)
	// The Mat may not alias buf depending on the gocv build.
	out, err := mat.DataPtrUint8()
	if err != nil {
		return n, err
	}
	if len(out) == len(buf) && &out[0] != &buf[0] {
		copy(buf, out)
	}
	return n, nil
}
