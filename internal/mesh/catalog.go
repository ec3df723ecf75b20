package mesh

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Region is a named, ordered run of landmark indices. The order is the
// anatomical contour path, not ascending index order.
type Region struct {
	Name    string `yaml:"name"`
	Indices []int  `yaml:"indices"`
	Closed  bool   `yaml:"closed"`
}

// Region names of the default catalog.
const (
	LeftEye      = "left_eye"
	RightEye     = "right_eye"
	LeftEyebrow  = "left_eyebrow"
	RightEyebrow = "right_eyebrow"
	LipsOuter    = "lips_outer"
	LipsInner    = "lips_inner"
	FaceOval     = "face_oval"
	Nose         = "nose"
	LeftIris     = "left_iris"
	RightIris    = "right_iris"
)

// DefaultRegions returns the ten MediaPipe Face Mesh regions drawn by the overlay.
// The iris regions need the refined (478 point) landmark set.
func DefaultRegions() []Region {
	return []Region{
		{Name: LeftEye, Closed: true, Indices: []int{33, 7, 163, 144, 145, 153, 154, 155, 133, 173, 157, 158, 159, 160, 161, 246}},
		{Name: RightEye, Closed: true, Indices: []int{362, 382, 381, 380, 374, 373, 390, 249, 263, 466, 388, 387, 386, 385, 384, 398}},
		{Name: LeftEyebrow, Closed: false, Indices: []int{70, 63, 105, 66, 107, 55, 65, 52, 53, 46}},
		{Name: RightEyebrow, Closed: false, Indices: []int{300, 293, 334, 296, 336, 285, 295, 282, 283, 276}},
		{Name: LipsOuter, Closed: true, Indices: []int{61, 146, 91, 181, 84, 17, 314, 405, 321, 375, 291, 409, 270, 269, 267, 0, 37, 39, 40, 185}},
		{Name: LipsInner, Closed: true, Indices: []int{78, 95, 88, 178, 87, 14, 317, 402, 318, 324, 308, 415, 310, 311, 312, 13, 82, 81, 80, 191}},
		{Name: FaceOval, Closed: true, Indices: []int{
			10, 338, 297, 332, 284, 251, 389, 356, 454, 323, 361, 288, 397, 365, 379, 378, 400, 377,
			152, 148, 176, 149, 150, 136, 172, 58, 132, 93, 234, 127, 162, 21, 54, 103, 67, 109,
		}},
		{Name: Nose, Closed: false, Indices: []int{168, 6, 197, 195, 5, 4, 1, 19, 94, 2}},
		{Name: LeftIris, Closed: true, Indices: []int{468, 469, 470, 471, 472}},
		{Name: RightIris, Closed: true, Indices: []int{473, 474, 475, 476, 477}},
	}
}

// Catalog is an immutable, validated set of regions bound to a landmark count.
// Build it once at startup and share the pointer across frames.
type Catalog struct {
	landmarks int
	regions   []Region
	byName    map[string]int
}

// NewCatalog validates regions against landmarkCount and returns a catalog
// holding its own copy of them. Every failure wraps ErrConfiguration.
func NewCatalog(landmarkCount int, regions []Region) (*Catalog, error) {
	if landmarkCount != BaseLandmarks && landmarkCount != RefinedLandmarks {
		return nil, errors.Wrapf(ErrConfiguration, "landmark count must be %d or %d, got %d", BaseLandmarks, RefinedLandmarks, landmarkCount)
	}
	if len(regions) == 0 {
		return nil, errors.Wrap(ErrConfiguration, "catalog has no regions")
	}

	c := &Catalog{
		landmarks: landmarkCount,
		regions:   make([]Region, 0, len(regions)),
		byName:    make(map[string]int, len(regions)),
	}
	for i, r := range regions {
		if r.Name == "" {
			return nil, errors.Wrapf(ErrConfiguration, "region #%d has no name", i)
		}
		if _, dup := c.byName[r.Name]; dup {
			return nil, errors.Wrapf(ErrConfiguration, "region %q defined twice", r.Name)
		}
		if len(r.Indices) == 0 {
			return nil, errors.Wrapf(ErrConfiguration, "region %q is empty", r.Name)
		}
		seen := make(map[int]struct{}, len(r.Indices))
		for _, idx := range r.Indices {
			if idx < 0 || idx >= landmarkCount {
				return nil, errors.Wrapf(ErrConfiguration, "region %q: index %d outside [0,%d]", r.Name, idx, landmarkCount-1)
			}
			if _, dup := seen[idx]; dup {
				return nil, errors.Wrapf(ErrConfiguration, "region %q: index %d repeated", r.Name, idx)
			}
			seen[idx] = struct{}{}
		}
		c.byName[r.Name] = len(c.regions)
		c.regions = append(c.regions, cloneRegion(r))
	}
	return c, nil
}

// DefaultCatalog builds the standard catalog. Without refinement the
// detector emits 468 points, so the iris regions are left out.
func DefaultCatalog(refined bool) (*Catalog, error) {
	if refined {
		return NewCatalog(RefinedLandmarks, DefaultRegions())
	}
	var base []Region
	for _, r := range DefaultRegions() {
		if r.Name == LeftIris || r.Name == RightIris {
			continue
		}
		base = append(base, r)
	}
	return NewCatalog(BaseLandmarks, base)
}

type catalogFile struct {
	Landmarks int      `yaml:"landmarks"`
	Regions   []Region `yaml:"regions"`
}

// LoadCatalog reads a YAML catalog file:
//
//	landmarks: 478
//	regions:
//	  - name: left_eye
//	    closed: true
//	    indices: [33, 7, 163]
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read catalog")
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(ErrConfiguration, "parse catalog: %v", err)
	}
	if f.Landmarks == 0 {
		f.Landmarks = RefinedLandmarks
	}
	return NewCatalog(f.Landmarks, f.Regions)
}

// LandmarkCount is the size of the landmark set this catalog was validated for.
func (c *Catalog) LandmarkCount() int { return c.landmarks }

// Len returns the number of regions.
func (c *Catalog) Len() int { return len(c.regions) }

// Regions returns a copy of the regions in catalog order.
func (c *Catalog) Regions() []Region {
	out := make([]Region, len(c.regions))
	for i, r := range c.regions {
		out[i] = cloneRegion(r)
	}
	return out
}

// Region looks a region up by name.
func (c *Catalog) Region(name string) (Region, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Region{}, false
	}
	return cloneRegion(c.regions[i]), true
}

// RenderContours strokes every region over points, in catalog order.
// points must hold at least LandmarkCount entries.
func (c *Catalog) RenderContours(points []Point) []Contour {
	out := make([]Contour, len(c.regions))
	for i, r := range c.regions {
		out[i] = Contour{
			Region:   r.Name,
			Closed:   r.Closed,
			Segments: RenderContour(points, r),
		}
	}
	return out
}

func cloneRegion(r Region) Region {
	r.Indices = append([]int(nil), r.Indices...)
	return r
}
