// Package monitor exposes frame counters and process usage on /metrics.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/andresmejia3/facemesh/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Metrics groups the collectors updated by the frame loops.
type Metrics struct {
	registry *prometheus.Registry

	Frames        prometheus.Counter
	FramesNoFace  prometheus.Counter
	Faces         prometheus.Counter
	Primitives    prometheus.Counter
	DetectLatency prometheus.Histogram
	BuildLatency  prometheus.Histogram

	memUsage prometheus.Gauge
	cpuUsage prometheus.Gauge
}

// New registers all collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facemesh_frames_total",
			Help: "Frames pushed through the overlay pipeline",
		}),
		FramesNoFace: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facemesh_frames_without_face_total",
			Help: "Frames where the detector reported no face",
		}),
		Faces: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facemesh_faces_total",
			Help: "Faces rendered across all frames",
		}),
		Primitives: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facemesh_primitives_total",
			Help: "Points, boxes and segments handed to the compositor",
		}),
		DetectLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "facemesh_detect_seconds",
			Help:    "Round-trip time of one frame through the detector worker",
			Buckets: prometheus.ExponentialBuckets(0.002, 2, 10),
		}),
		BuildLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "facemesh_build_seconds",
			Help:    "Time spent projecting, boxing and stroking one frame",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
		memUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memory_usage_Megabytes",
			Help: "Memory usage in Megabytes",
		}),
		cpuUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cpu_usage_percent",
			Help: "CPU usage in percent",
		}),
	}
	m.registry.MustRegister(m.Frames, m.FramesNoFace, m.Faces, m.Primitives,
		m.DetectLatency, m.BuildLatency, m.memUsage, m.cpuUsage)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveFrame records one processed frame.
func (m *Metrics) ObserveFrame(faces, primitives int, build time.Duration) {
	m.Frames.Inc()
	if faces == 0 {
		m.FramesNoFace.Inc()
	}
	m.Faces.Add(float64(faces))
	m.Primitives.Add(float64(primitives))
	m.BuildLatency.Observe(build.Seconds())
}

func (m *Metrics) sampleProcess(p *process.Process) {
	if memInfo, err := p.MemoryInfo(); err == nil {
		m.memUsage.Set(float64(memInfo.RSS / 1024 / 1024))
	}
	if cpu, err := p.CPUPercent(); err == nil {
		m.cpuUsage.Set(math.Round(cpu*100) / 100)
	}
}

// Serve exposes /metrics on port and samples process usage every 500ms
// until ctx is done. Port 0 disables the endpoint and returns immediately.
func (m *Metrics) Serve(ctx context.Context, port int) {
	if port == 0 {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry}))
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log().Error("metrics server stopped", zap.Int("port", port), zap.Error(err))
		}
	}()

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Log().Warn("process sampling disabled", zap.Error(err))
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			if proc != nil {
				m.sampleProcess(proc)
			}
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log().Warn("metrics server shutdown", zap.Error(err))
	}
}
