package mesh

import "github.com/pkg/errors"

// BuildOverlay runs the per-frame pipeline for one face: project, box, stroke.
// An empty landmark set means no face was detected; it yields ok == false and
// no error so the caller simply skips drawing.
func BuildOverlay(c *Catalog, landmarks []Landmark, width, height, margin int) (Overlay, bool, error) {
	if len(landmarks) == 0 {
		return Overlay{}, false, nil
	}
	if len(landmarks) < c.LandmarkCount() {
		return Overlay{}, false, errors.Wrapf(ErrInvalidInput, "got %d landmarks, catalog needs %d", len(landmarks), c.LandmarkCount())
	}

	points, err := Project(landmarks, width, height)
	if err != nil {
		return Overlay{}, false, err
	}
	box, err := BoundingBox(points, margin)
	if err != nil {
		return Overlay{}, false, err
	}
	return Overlay{
		Points:   points,
		Box:      box,
		Contours: c.RenderContours(points),
	}, true, nil
}

// BuildFrame builds one overlay per detected face. It returns nil when the
// detector found nothing.
func BuildFrame(c *Catalog, faces [][]Landmark, width, height, margin int) ([]Overlay, error) {
	var overlays []Overlay
	for i, face := range faces {
		o, ok, err := BuildOverlay(c, face, width, height, margin)
		if err != nil {
			return nil, errors.Wrapf(err, "face %d", i)
		}
		if ok {
			overlays = append(overlays, o)
		}
	}
	return overlays, nil
}
