package mesh

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegions_Shape(t *testing.T) {
	tests := []struct {
		name   string
		count  int
		closed bool
	}{
		{LeftEye, 16, true},
		{RightEye, 16, true},
		{LeftEyebrow, 10, false},
		{RightEyebrow, 10, false},
		{LipsOuter, 20, true},
		{LipsInner, 20, true},
		{FaceOval, 36, true},
		{Nose, 10, false},
		{LeftIris, 5, true},
		{RightIris, 5, true},
	}

	c, err := DefaultCatalog(true)
	require.NoError(t, err)
	require.Equal(t, len(tests), c.Len())
	assert.Equal(t, RefinedLandmarks, c.LandmarkCount())

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := c.Region(tt.name)
			require.True(t, ok)
			assert.Len(t, r.Indices, tt.count)
			assert.Equal(t, tt.closed, r.Closed)
			// Catalog order is the drawing order.
			assert.Equal(t, tt.name, c.Regions()[i].Name)
		})
	}
}

func TestDefaultRegions_Indices(t *testing.T) {
	for _, r := range DefaultRegions() {
		seen := map[int]bool{}
		for _, idx := range r.Indices {
			assert.GreaterOrEqual(t, idx, 0, r.Name)
			assert.LessOrEqual(t, idx, RefinedLandmarks-1, r.Name)
			assert.False(t, seen[idx], "duplicate index %d in %s", idx, r.Name)
			seen[idx] = true
		}
		if r.Name == LeftIris || r.Name == RightIris {
			for _, idx := range r.Indices {
				assert.GreaterOrEqual(t, idx, BaseLandmarks, "iris index %d", idx)
			}
		}
	}
}

func TestDefaultCatalog_Base(t *testing.T) {
	c, err := DefaultCatalog(false)
	require.NoError(t, err)
	assert.Equal(t, BaseLandmarks, c.LandmarkCount())
	assert.Equal(t, 8, c.Len())
	_, ok := c.Region(LeftIris)
	assert.False(t, ok)
}

func TestNewCatalog_Rejects(t *testing.T) {
	tests := []struct {
		name      string
		landmarks int
		regions   []Region
	}{
		{"bad landmark count", 500, DefaultRegions()},
		{"no regions", RefinedLandmarks, nil},
		{"empty region", RefinedLandmarks, []Region{{Name: "x"}}},
		{"unnamed region", RefinedLandmarks, []Region{{Indices: []int{1, 2}}}},
		{"duplicate index", RefinedLandmarks, []Region{{Name: "x", Indices: []int{1, 2, 1}}}},
		{"negative index", RefinedLandmarks, []Region{{Name: "x", Indices: []int{-1, 2}}}},
		{"index past refined set", RefinedLandmarks, []Region{{Name: "x", Indices: []int{1, 478}}}},
		{"iris without refinement", BaseLandmarks, DefaultRegions()},
		{"duplicate name", RefinedLandmarks, []Region{{Name: "x", Indices: []int{1}}, {Name: "x", Indices: []int{2}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.landmarks, tt.regions)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration), "got %v", err)
		})
	}
}

func TestCatalog_Immutable(t *testing.T) {
	regions := []Region{{Name: "x", Indices: []int{1, 2, 3}, Closed: true}}
	c, err := NewCatalog(RefinedLandmarks, regions)
	require.NoError(t, err)

	regions[0].Indices[0] = 99
	got := c.Regions()
	assert.Equal(t, []int{1, 2, 3}, got[0].Indices)

	got[0].Indices[1] = 42
	r, _ := c.Region("x")
	assert.Equal(t, []int{1, 2, 3}, r.Indices)
}

func TestParseCatalog(t *testing.T) {
	doc := []byte(`
landmarks: 468
regions:
  - name: brow
    indices: [70, 63, 105]
  - name: mouth
    closed: true
    indices: [61, 146, 91, 181]
`)
	c, err := ParseCatalog(doc)
	require.NoError(t, err)
	assert.Equal(t, BaseLandmarks, c.LandmarkCount())
	assert.Equal(t, 2, c.Len())

	r, ok := c.Region("mouth")
	require.True(t, ok)
	assert.True(t, r.Closed)
	assert.Equal(t, []int{61, 146, 91, 181}, r.Indices)
}

func TestParseCatalog_DefaultsToRefined(t *testing.T) {
	c, err := ParseCatalog([]byte("regions:\n  - name: iris\n    indices: [468, 469, 470]\n"))
	require.NoError(t, err)
	assert.Equal(t, RefinedLandmarks, c.LandmarkCount())
}

func TestParseCatalog_Malformed(t *testing.T) {
	_, err := ParseCatalog([]byte("regions: [oops"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.yaml")
	require.NoError(t, os.WriteFile(path, []byte("landmarks: 478\nregions:\n  - name: nose\n    indices: [168, 6, 197]\n"), 0644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
