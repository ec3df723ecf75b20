package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/andresmejia3/facemesh/internal/compositor"
	"github.com/andresmejia3/facemesh/internal/logger"
	"github.com/andresmejia3/facemesh/internal/mesh"
	"github.com/andresmejia3/facemesh/internal/monitor"
	"github.com/andresmejia3/facemesh/internal/types"
	"github.com/andresmejia3/facemesh/internal/utils"
	"github.com/andresmejia3/facemesh/internal/worker"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RenderOptions holds the flags of the render command
type RenderOptions struct {
	InputPath  string
	OutputPath string
	NumEngines int
}

var renderOpts RenderOptions

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Draw the face mesh onto every frame of a video file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runRender(cmd.Context(), renderOpts)
	},
}

func init() {
	renderCmd.Flags().StringVarP(&renderOpts.InputPath, "input", "i", "", "Path to input video")
	renderCmd.Flags().StringVarP(&renderOpts.OutputPath, "output", "o", "facemesh.mp4", "Path to output video")
	renderCmd.Flags().IntVarP(&renderOpts.NumEngines, "engines", "e", 1, "Number of parallel detector workers")

	renderCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(renderCmd)
}

// frameBufferPool recycles raw frame buffers between the decoder and the encoder.
var frameBufferPool = sync.Pool{
	New: func() interface{} { return make([]byte, 0, 1024*1024) },
}

func runRender(ctx context.Context, opts RenderOptions) error {
	// Create a cancellable context to ensure all child processes (FFmpeg, Python)
	// are killed immediately if this function returns early (e.g. on error).
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := validateRenderFlags(&opts); err != nil {
		return err
	}

	fps, err := utils.GetVideoFPS(ctx, opts.InputPath)
	if err != nil {
		utils.ShowError("Failed to determine video FPS", err, nil)
		return err
	}
	width, height, err := utils.GetVideoDimensions(ctx, opts.InputPath)
	if err != nil {
		utils.ShowError("Failed to determine video dimensions", err, nil)
		return err
	}
	totalFrames := utils.GetTotalFrames(ctx, opts.InputPath)
	logger.Log().Info("render",
		zap.String("run", RunID),
		zap.String("input", opts.InputPath),
		zap.String("output", opts.OutputPath),
		zap.Float64("fps", fps),
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Int("engines", opts.NumEngines),
	)

	taskChan := make(chan types.FrameTask, opts.NumEngines)
	resultsChan := make(chan types.FrameResult, opts.NumEngines*2)
	errChan := make(chan error, opts.NumEngines+2)

	var wg sync.WaitGroup
	readyChan := make(chan bool, opts.NumEngines)
	wcfg := workerConfig(Config)

	for i := 0; i < opts.NumEngines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			w, err := worker.NewMeshWorker(ctx, id, wcfg)
			if err != nil {
				utils.ShowError("Worker startup failed", err, nil)
				select {
				case errChan <- err:
				default:
				}
				return
			}
			defer w.Close()
			logger.Log().Debug("worker ready", zap.String("run", RunID), zap.Int("worker", id))
			readyChan <- true

			if err := detectLoop(ctx, w, taskChan, resultsChan, Metrics); err != nil {
				utils.ShowError("Python crashed", err, w.Cmd)
				select {
				case errChan <- err:
				default:
				}
			}
		}(i)
	}

	// Wait for workers to be ready
	fmt.Fprintln(os.Stderr, "🚀 Warming up engines...")
	for i := 0; i < opts.NumEngines; i++ {
		select {
		case <-readyChan:
		case err := <-errChan:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	decoder := utils.NewFFmpegRawDecoder(ctx, opts.InputPath)
	decoderOut, err := decoder.StdoutPipe()
	if err != nil {
		utils.ShowError("Failed to create decoder pipe", err, nil)
		return err
	}
	if err := decoder.Start(); err != nil {
		utils.ShowError("Failed to start decoder", err, nil)
		return err
	}

	encoder := utils.NewFFmpegEncoder(ctx, opts.OutputPath, fps, width, height)
	encoderIn, err := encoder.StdinPipe()
	if err != nil {
		utils.ShowError("Failed to create encoder pipe", err, nil)
		return err
	}
	if err := encoder.Start(); err != nil {
		utils.ShowError("Failed to start encoder", err, nil)
		return err
	}

	go func() {
		defer close(taskChan)
		readFrames(ctx, decoderOut, width, height, taskChan)
	}()

	var barTotal int64 = int64(totalFrames)
	if barTotal <= 0 {
		barTotal = -1 // Trigger spinner mode
	}
	bar := progressbar.NewOptions64(barTotal,
		progressbar.OptionSetDescription("Rendering"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	style := compositor.StyleFromConfig(Config.Overlay)
	agg := newReorderBuffer()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errChan:
			return err
		case res, ok := <-resultsChan:
			if !ok {
				goto Flush
			}
			for _, frame := range agg.Push(res) {
				if err := renderFrame(Catalog, frame, style, Config.Overlay.Margin, Metrics); err != nil {
					utils.ShowError("Overlay failed", err, nil)
					return err
				}
				if _, err := encoderIn.Write(frame.Data); err != nil {
					return err
				}

				// Release buffer back to pool
				frameBufferPool.Put(frame.Data)
				bar.Add(1)
			}
		}
	}

Flush:
	// Workers exit without reporting when they see ctx cancelled; surface a
	// late error if one raced with the channel close.
	select {
	case err := <-errChan:
		return err
	default:
	}
	if agg.Pending() > 0 {
		return fmt.Errorf("%d frames never came back from the workers", agg.Pending())
	}

	encoderIn.Close()
	if err := encoder.Wait(); err != nil {
		utils.ShowError("Encoder process failed", err, nil)
		return err
	}
	if err := decoder.Wait(); err != nil {
		utils.ShowError("Decoder process failed", err, nil)
		return err
	}
	fmt.Fprintf(os.Stderr, "\n✅ Wrote %d frames to %s\n", agg.Next(), opts.OutputPath)
	return nil
}

// readFrames slices the decoder's raw stream into BGRA frames and queues them.
func readFrames(ctx context.Context, r io.Reader, width, height int, out chan<- types.FrameTask) {
	frameSize := width * height * 4
	idx := 0
	for {
		buf := frameBufferPool.Get().([]byte)
		if cap(buf) < frameSize {
			buf = make([]byte, frameSize)
		}
		buf = buf[:frameSize]

		if _, err := io.ReadFull(r, buf); err != nil {
			// EOF or unexpected error, stop reading
			frameBufferPool.Put(buf)
			return
		}

		select {
		case out <- types.FrameTask{Index: idx, Width: width, Height: height, Data: buf}:
			idx++
		case <-ctx.Done():
			return
		}
	}
}

// detectLoop feeds tasks to one detector until the task channel closes.
func detectLoop(ctx context.Context, det worker.Detector, tasks <-chan types.FrameTask, results chan<- types.FrameResult, m *monitor.Metrics) error {
	for task := range tasks {
		start := time.Now()
		faces, err := det.ProcessFrame(task.Data, task.Width, task.Height)
		if err != nil {
			return fmt.Errorf("frame %d: %w", task.Index, err)
		}
		if m != nil {
			m.DetectLatency.Observe(time.Since(start).Seconds())
		}
		select {
		case results <- types.FrameResult{FrameTask: task, Faces: faces}:
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

// renderFrame builds the overlays for one result and draws them into its buffer.
func renderFrame(cat *mesh.Catalog, res types.FrameResult, style compositor.Style, margin int, m *monitor.Metrics) error {
	start := time.Now()
	overlays, err := mesh.BuildFrame(cat, res.Faces, res.Width, res.Height, margin)
	if err != nil {
		return fmt.Errorf("frame %d: %w", res.Index, err)
	}
	build := time.Since(start)
	drawn := 0
	if len(overlays) > 0 {
		drawn, err = compositor.DrawBGRA(res.Data, res.Width, res.Height, overlays, style)
		if err != nil {
			return fmt.Errorf("frame %d: %w", res.Index, err)
		}
	}
	if m != nil {
		m.ObserveFrame(len(overlays), drawn, build)
	}
	return nil
}

// reorderBuffer releases results in frame order; workers finish out of order.
type reorderBuffer struct {
	pending map[int]types.FrameResult
	next    int
}

func newReorderBuffer() *reorderBuffer {
	return &reorderBuffer{pending: make(map[int]types.FrameResult)}
}

// Push stores res and returns every result that is now contiguous with the
// last one released.
func (b *reorderBuffer) Push(res types.FrameResult) []types.FrameResult {
	b.pending[res.Index] = res
	var ready []types.FrameResult
	for {
		frame, ok := b.pending[b.next]
		if !ok {
			return ready
		}
		delete(b.pending, b.next)
		ready = append(ready, frame)
		b.next++
	}
}

// Pending is the number of results held back waiting for an earlier frame.
func (b *reorderBuffer) Pending() int { return len(b.pending) }

// Next is the index of the next frame to release, i.e. how many were released.
func (b *reorderBuffer) Next() int { return b.next }

func validateRenderFlags(opts *RenderOptions) error {
	info, err := os.Stat(opts.InputPath)
	if err != nil {
		if os.IsNotExist(err) {
			utils.ShowError("Input file does not exist", err, nil)
			return err
		}
		utils.ShowError("Unable to access input file", err, nil)
		return err
	}
	if info.IsDir() {
		err := fmt.Errorf("is a directory")
		utils.ShowError("Input path is a directory, expected a video file", err, nil)
		return err
	}

	// Safety Check: Prevent overwriting input file which causes corruption
	inAbs, _ := filepath.Abs(opts.InputPath)
	outAbs, _ := filepath.Abs(opts.OutputPath)
	if inAbs == outAbs {
		err := fmt.Errorf("input and output paths must be different to prevent file corruption")
		utils.ShowError("Configuration Error", err, nil)
		return err
	}

	if opts.NumEngines < 1 {
		opts.NumEngines = 1
	}
	return nil
}
