package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "facemesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 20, cfg.Overlay.Margin)
	assert.Equal(t, RGB{0, 255, 0}, cfg.Overlay.LineColor)
	assert.True(t, cfg.Detector.Refine)
	assert.Equal(t, 30*time.Second, cfg.WorkerTimeout())
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
metricsPort: 9102
detector:
  maxFaces: 2
  refine: false
  timeout: 5s
overlay:
  margin: 8
  lineColor: [255, 255, 0]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9102, cfg.MetricsPort)
	assert.Equal(t, 2, cfg.Detector.MaxFaces)
	assert.False(t, cfg.Detector.Refine)
	assert.Equal(t, 5*time.Second, cfg.WorkerTimeout())
	assert.Equal(t, 8, cfg.Overlay.Margin)
	assert.Equal(t, RGB{255, 255, 0}, cfg.Overlay.LineColor)
	// Untouched keys keep their defaults.
	assert.Equal(t, "python3", cfg.Detector.Python)
	assert.Equal(t, 2, cfg.Overlay.BoxThickness)
}

func TestLoad_MissingDefaultIsFine(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	defer os.Chdir(wd)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "detector: [1, 2"},
		{"zero faces", "detector:\n  maxFaces: 0\n"},
		{"confidence too high", "detector:\n  minDetection: 1.5\n"},
		{"bad timeout", "detector:\n  timeout: soon\n"},
		{"negative margin", "overlay:\n  margin: -1\n"},
		{"colour out of range", "overlay:\n  boxColor: [0, 300, 0]\n"},
		{"thin lines", "overlay:\n  lineThickness: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err, "an explicit path must exist")
}
