// Package mesh turns a face's normalized landmarks into overlay geometry:
// projected points, a bounding box and one polyline per facial region.
// Nothing in here draws; the compositor package applies the result to pixels.
package mesh

import "github.com/pkg/errors"

const (
	// BaseLandmarks is the size of the landmark set without iris refinement.
	BaseLandmarks = 468
	// RefinedLandmarks adds the ten iris points (468-477).
	RefinedLandmarks = 478
	// DefaultMargin is the padding added around the face bounding box, in pixels.
	DefaultMargin = 20
)

var (
	// ErrConfiguration marks a malformed region catalog. It is fatal at startup.
	ErrConfiguration = errors.New("invalid region catalog")
	// ErrInvalidInput marks a caller contract violation on per-frame input.
	ErrInvalidInput = errors.New("invalid input")
)

// Landmark is one normalized keypoint as emitted by the detector.
// X and Y are relative to the frame (nominally [0,1]); Z is relative depth.
type Landmark struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Point is a pixel coordinate. It may lie outside the visible frame.
type Point struct {
	X int
	Y int
}

// Box is an axis-aligned rectangle with X1 <= X2 and Y1 <= Y2.
type Box struct {
	X1, Y1, X2, Y2 int
}

// Segment is a straight line between two points, with no style attached.
type Segment struct {
	From Point
	To   Point
}

// Contour is the rendered polyline of one region.
type Contour struct {
	Region   string
	Closed   bool
	Segments []Segment
}

// Overlay holds the geometry for one face in one frame.
type Overlay struct {
	Points   []Point
	Box      Box
	Contours []Contour
}

// Primitives returns how many drawing calls the overlay needs.
func (o Overlay) Primitives() int {
	if len(o.Points) == 0 {
		return 0
	}
	n := len(o.Points) + 1
	for _, c := range o.Contours {
		n += len(c.Segments)
	}
	return n
}
