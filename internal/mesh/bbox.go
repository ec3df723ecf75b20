package mesh

import "github.com/pkg/errors"

// BoundingBox returns the smallest box enclosing points, grown by margin on
// every side. The box may extend past the frame; clipping is the drawer's job.
func BoundingBox(points []Point, margin int) (Box, error) {
	if len(points) == 0 {
		return Box{}, errors.Wrap(ErrInvalidInput, "bounding box of an empty point set")
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return Box{
		X1: minX - margin,
		Y1: minY - margin,
		X2: maxX + margin,
		Y2: maxY + margin,
	}, nil
}
