// Package config loads facemesh.yaml. Every field has a default matching the
// stock overlay, so a missing file is not an error.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when --config is not given and the file exists.
const DefaultPath = "facemesh.yaml"

// RGB is a colour as [red, green, blue], each 0-255.
type RGB [3]int

// Detector configures the Face Mesh worker process.
type Detector struct {
	Python       string  `yaml:"python"`
	Script       string  `yaml:"script"`
	MaxFaces     int     `yaml:"maxFaces"`
	Refine       bool    `yaml:"refine"`
	MinDetection float64 `yaml:"minDetection"`
	MinTracking  float64 `yaml:"minTracking"`
	Timeout      string  `yaml:"timeout"`
}

// Overlay configures geometry (margin) and the drawing style.
type Overlay struct {
	Margin        int  `yaml:"margin"`
	PointRadius   int  `yaml:"pointRadius"`
	BoxThickness  int  `yaml:"boxThickness"`
	LineThickness int  `yaml:"lineThickness"`
	PointColor    RGB  `yaml:"pointColor"`
	BoxColor      RGB  `yaml:"boxColor"`
	LineColor     RGB  `yaml:"lineColor"`
	Points        bool `yaml:"points"`
}

// Log configures internal/logger.
type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Config is the whole file.
type Config struct {
	Regions     string   `yaml:"regions"`
	MetricsPort int      `yaml:"metricsPort"`
	Detector    Detector `yaml:"detector"`
	Overlay     Overlay  `yaml:"overlay"`
	Log         Log      `yaml:"log"`
}

// Default returns the stock overlay settings: one refined face,
// red 1px dots, a red 2px box 20px out, green 1px contours.
func Default() Config {
	return Config{
		Detector: Detector{
			Python:       "python3",
			Script:       "python/face_mesh_worker.py",
			MaxFaces:     1,
			Refine:       true,
			MinDetection: 0.5,
			MinTracking:  0.5,
			Timeout:      "30s",
		},
		Overlay: Overlay{
			Margin:        20,
			PointRadius:   1,
			BoxThickness:  2,
			LineThickness: 1,
			PointColor:    RGB{255, 0, 0},
			BoxColor:      RGB{255, 0, 0},
			LineColor:     RGB{0, 255, 0},
			Points:        true,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads path over the defaults. An empty path or a missing DefaultPath
// yields the defaults; any other read failure is returned.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks ranges. It does not touch the filesystem.
func (c Config) Validate() error {
	d := c.Detector
	if d.MaxFaces < 1 {
		return fmt.Errorf("detector.maxFaces must be >= 1, got %d", d.MaxFaces)
	}
	if d.MinDetection < 0 || d.MinDetection > 1 {
		return fmt.Errorf("detector.minDetection must be between 0.0 and 1.0, got %f", d.MinDetection)
	}
	if d.MinTracking < 0 || d.MinTracking > 1 {
		return fmt.Errorf("detector.minTracking must be between 0.0 and 1.0, got %f", d.MinTracking)
	}
	if _, err := time.ParseDuration(d.Timeout); err != nil {
		return fmt.Errorf("detector.timeout: %w", err)
	}

	o := c.Overlay
	if o.Margin < 0 {
		return fmt.Errorf("overlay.margin must be >= 0, got %d", o.Margin)
	}
	if o.LineThickness < 1 || o.BoxThickness < 1 {
		return fmt.Errorf("overlay thickness must be >= 1")
	}
	if o.PointRadius < 0 {
		return fmt.Errorf("overlay.pointRadius must be >= 0, got %d", o.PointRadius)
	}
	for name, col := range map[string]RGB{"pointColor": o.PointColor, "boxColor": o.BoxColor, "lineColor": o.LineColor} {
		for _, v := range col {
			if v < 0 || v > 255 {
				return fmt.Errorf("overlay.%s channel %d out of range", name, v)
			}
		}
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		return fmt.Errorf("metricsPort out of range: %d", c.MetricsPort)
	}
	return nil
}

// WorkerTimeout parses Detector.Timeout. Call after Validate.
func (c Config) WorkerTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Detector.Timeout)
	return d
}
