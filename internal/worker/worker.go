package worker

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/andresmejia3/facemesh/internal/mesh"
	"github.com/andresmejia3/facemesh/internal/utils"
)

const (
	statusOK    = 0
	statusError = 1

	// maxResponseSize bounds a single reply; 478 landmarks * 12 bytes per face is tiny.
	maxResponseSize = 16 * 1024 * 1024
)

// Detector is the landmark source the frame loops depend on.
type Detector interface {
	// ProcessFrame runs the detector on one BGRA frame. It returns one landmark
	// slice per face, or nothing when no face was found.
	ProcessFrame(frame []byte, width, height int) ([][]mesh.Landmark, error)
	Close() error
}

// Config is passed to the Python process on its command line.
type Config struct {
	Python       string
	Script       string
	MaxFaces     int
	Refine       bool
	MinDetection float64
	MinTracking  float64
	ReadTimeout  time.Duration
}

func (c Config) args() []string {
	refine := "--no-refine"
	if c.Refine {
		refine = "--refine"
	}
	return []string{"-u", c.Script,
		"--max-faces", strconv.Itoa(c.MaxFaces),
		refine,
		"--min-detection", strconv.FormatFloat(c.MinDetection, 'f', -1, 64),
		"--min-tracking", strconv.FormatFloat(c.MinTracking, 'f', -1, 64),
	}
}

// MeshWorker owns one Face Mesh Python process. Create it with NewMeshWorker
// and always Close it; the model is loaded for the lifetime of the process.
type MeshWorker struct {
	ID       int
	Cmd      *utils.SafeCommand
	Stdin    io.WriteCloser
	DataPipe io.ReadCloser

	timeout   time.Duration
	closeOnce sync.Once
	closeErr  error
}

// NewMeshWorker starts the detector process. It is killed when ctx is cancelled.
func NewMeshWorker(ctx context.Context, id int, cfg Config) (*MeshWorker, error) {
	py := utils.NewSafeCommand(ctx, cfg.Python, cfg.args()...)

	// Create a side-channel pipe (FD 3) for clean data transfer
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	// Pass the write-end to the child process. It will appear as FD 3.
	py.Cmd.ExtraFiles = []*os.File{w}

	stdin, err := py.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := py.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("worker %d failed to start: %w", id, err)
	}

	// Close the write-end in the parent so only the child holds it
	w.Close()

	return &MeshWorker{
		ID:       id,
		Cmd:      py,
		Stdin:    stdin,
		DataPipe: r,
		timeout:  cfg.ReadTimeout,
	}, nil
}

// Communicate sends one length-prefixed request and reads one length-prefixed reply.
func (w *MeshWorker) Communicate(data []byte) ([]byte, error) {
	if err := binary.Write(w.Stdin, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, err
	}
	if _, err := w.Stdin.Write(data); err != nil {
		return nil, err
	}

	if d, ok := w.DataPipe.(interface{ SetReadDeadline(time.Time) error }); ok && w.timeout > 0 {
		_ = d.SetReadDeadline(time.Now().Add(w.timeout))
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(w.DataPipe, header); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, fmt.Errorf("worker %d timed out after %s", w.ID, w.timeout)
		}
		// EOF here means the process died (e.g. missing mediapipe module).
		return nil, err
	}

	respLen := binary.BigEndian.Uint32(header)
	if respLen > maxResponseSize {
		return nil, fmt.Errorf("worker %d response too large: %d bytes", w.ID, respLen)
	}
	respBody := make([]byte, respLen)
	_, err := io.ReadFull(w.DataPipe, respBody)
	return respBody, err
}

// ProcessFrame sends [width][height][BGRA pixels] and decodes the landmarks.
func (w *MeshWorker) ProcessFrame(frame []byte, width, height int) ([][]mesh.Landmark, error) {
	if width <= 0 || height <= 0 || len(frame) != width*height*4 {
		return nil, fmt.Errorf("frame is %d bytes, want %dx%dx4", len(frame), width, height)
	}
	req := make([]byte, 8+len(frame))
	binary.BigEndian.PutUint32(req[0:4], uint32(width))
	binary.BigEndian.PutUint32(req[4:8], uint32(height))
	copy(req[8:], frame)

	resp, err := w.Communicate(req)
	if err != nil {
		return nil, err
	}
	return parseResponse(resp)
}

// parseResponse decodes
//
//	[0x00][u32 faces] then per face [u32 n][n x (f32 x, f32 y, f32 z)]
//	[0x01][u32 len][message]
func parseResponse(body []byte) ([][]mesh.Landmark, error) {
	r := bytes.NewReader(body)
	status, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("empty worker response")
	}

	switch status {
	case statusOK:
	case statusError:
		var msgLen uint32
		if err := binary.Read(r, binary.BigEndian, &msgLen); err != nil {
			return nil, fmt.Errorf("truncated worker error: %w", err)
		}
		if int(msgLen) > r.Len() {
			return nil, fmt.Errorf("truncated worker error message")
		}
		msg := make([]byte, msgLen)
		_, _ = io.ReadFull(r, msg)
		return nil, fmt.Errorf("python worker error: %s", msg)
	default:
		return nil, fmt.Errorf("unknown worker status %d", status)
	}

	var numFaces uint32
	if err := binary.Read(r, binary.BigEndian, &numFaces); err != nil {
		return nil, fmt.Errorf("truncated face count: %w", err)
	}
	if numFaces == 0 {
		return nil, nil
	}

	faces := make([][]mesh.Landmark, 0, numFaces)
	for f := uint32(0); f < numFaces; f++ {
		var n uint32
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return nil, fmt.Errorf("face %d: truncated landmark count: %w", f, err)
		}
		if int(n)*12 > r.Len() {
			return nil, fmt.Errorf("face %d: %d landmarks declared, %d bytes left", f, n, r.Len())
		}
		raw := make([]uint32, n*3)
		if err := binary.Read(r, binary.BigEndian, raw); err != nil {
			return nil, fmt.Errorf("face %d: %w", f, err)
		}
		face := make([]mesh.Landmark, n)
		for i := range face {
			face[i] = mesh.Landmark{
				X: float64(math.Float32frombits(raw[i*3])),
				Y: float64(math.Float32frombits(raw[i*3+1])),
				Z: float64(math.Float32frombits(raw[i*3+2])),
			}
		}
		faces = append(faces, face)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes in worker response", r.Len())
	}
	return faces, nil
}

// Close ends the worker: stdin EOF tells Python to exit, then we reap it.
func (w *MeshWorker) Close() error {
	w.closeOnce.Do(func() {
		if w.Stdin != nil {
			w.Stdin.Close()
		}
		if w.DataPipe != nil {
			w.DataPipe.Close()
		}
		if w.Cmd != nil {
			w.closeErr = w.Cmd.Wait()
		}
	})
	return w.closeErr
}
