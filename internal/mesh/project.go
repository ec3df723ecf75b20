package mesh

import (
	"math"

	"github.com/pkg/errors"
)

// Project maps normalized landmarks to pixel coordinates for a width x height
// frame. Coordinates are floored, so values just outside [0,1] land outside
// the frame instead of being clamped. The result is index-parallel to landmarks.
func Project(landmarks []Landmark, width, height int) ([]Point, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(ErrInvalidInput, "frame size %dx%d", width, height)
	}
	w, h := float64(width), float64(height)
	points := make([]Point, len(landmarks))
	for i, lm := range landmarks {
		points[i] = Point{
			X: int(math.Floor(lm.X * w)),
			Y: int(math.Floor(lm.Y * h)),
		}
	}
	return points, nil
}
