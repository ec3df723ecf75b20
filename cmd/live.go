package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/andresmejia3/facemesh/internal/camera"
	"github.com/andresmejia3/facemesh/internal/compositor"
	"github.com/andresmejia3/facemesh/internal/logger"
	"github.com/andresmejia3/facemesh/internal/mesh"
	"github.com/andresmejia3/facemesh/internal/monitor"
	"github.com/andresmejia3/facemesh/internal/utils"
	"github.com/andresmejia3/facemesh/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// maxMissedReads ends the loop after this many consecutive failed reads,
// e.g. a file source reaching its end or an unplugged camera.
const maxMissedReads = 100

var (
	liveDevice string
	liveMirror bool
)

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Overlay the face mesh on a webcam feed (ESC to quit)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runLive(cmd.Context())
	},
}

func init() {
	liveCmd.Flags().StringVarP(&liveDevice, "device", "d", "0", "Capture device index, file or stream URL")
	liveCmd.Flags().BoolVar(&liveMirror, "mirror", true, "Flip the frame horizontally before detection")
	rootCmd.AddCommand(liveCmd)
}

func runLive(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fmt.Fprintln(os.Stderr, "🚀 Warming up engine...")
	det, err := worker.NewMeshWorker(ctx, 0, workerConfig(Config))
	if err != nil {
		utils.ShowError("Worker startup failed", err, nil)
		return err
	}
	defer det.Close()

	cam, err := camera.Open(liveDevice, liveMirror, camera.WindowTitle)
	if err != nil {
		utils.ShowError("Failed to open camera", err, nil)
		return err
	}
	defer cam.Close()

	return liveLoop(ctx, cam, det, compositor.StyleFromConfig(Config.Overlay))
}

// frameSource is the part of camera.Camera the loop needs.
type frameSource interface {
	Read() (*gocv.Mat, bool)
	Show(img *gocv.Mat, delayMs int) bool
}

// liveLoop overlays frames until ESC, cancellation or a dead source.
func liveLoop(ctx context.Context, src frameSource, det worker.Detector, style compositor.Style) error {
	missed := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		frame, ok := src.Read()
		if !ok {
			missed++
			if missed >= maxMissedReads {
				return fmt.Errorf("no frames from %q after %d attempts", liveDevice, missed)
			}
			continue
		}
		missed = 0

		if err := overlayFrame(det, Catalog, frame, style, Config.Overlay.Margin, Metrics); err != nil {
			// Ctrl+C kills the worker along with ctx; that is a clean stop.
			if ctx.Err() != nil {
				return nil
			}
			var stderr *utils.SafeCommand
			if w, ok := det.(*worker.MeshWorker); ok {
				stderr = w.Cmd
			}
			utils.ShowError("Frame processing failed", err, stderr)
			return err
		}

		if src.Show(frame, 1) {
			logger.Log().Info("stopped by user")
			return nil
		}
	}
}

// overlayFrame runs one BGRA Mat through detector, geometry and compositor,
// drawing in place. A frame without a face is left untouched.
func overlayFrame(det worker.Detector, cat *mesh.Catalog, img *gocv.Mat, style compositor.Style, margin int, m *monitor.Metrics) error {
	width, height := img.Cols(), img.Rows()

	start := time.Now()
	faces, err := det.ProcessFrame(img.ToBytes(), width, height)
	if err != nil {
		return err
	}
	if m != nil {
		m.DetectLatency.Observe(time.Since(start).Seconds())
	}

	start = time.Now()
	overlays, err := mesh.BuildFrame(cat, faces, width, height, margin)
	if err != nil {
		return err
	}
	build := time.Since(start)
	drawn := compositor.Draw(img, overlays, style)

	if m != nil {
		m.ObserveFrame(len(overlays), drawn, build)
	}
	logger.Log().Debug("frame",
		zap.String("run", RunID),
		zap.Int("faces", len(overlays)),
		zap.Int("primitives", drawn),
	)
	return nil
}
