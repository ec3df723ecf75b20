package worker

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"
	"testing"
	"time"
)

// MockCloser wraps a bytes.Buffer to satisfy io.ReadCloser and io.WriteCloser interfaces.
// This allows us to use in-memory buffers as if they were OS Pipes.
type MockCloser struct {
	*bytes.Buffer
}

func (m *MockCloser) Close() error { return nil }

// facesPayload builds a status-OK body with n landmarks per face.
func facesPayload(faces int, n int) []byte {
	payload := new(bytes.Buffer)
	payload.WriteByte(0)
	binary.Write(payload, binary.BigEndian, uint32(faces))
	for f := 0; f < faces; f++ {
		binary.Write(payload, binary.BigEndian, uint32(n))
		for i := 0; i < n; i++ {
			binary.Write(payload, binary.BigEndian, [3]float32{float32(i) / float32(n), 0.5, float32(f)})
		}
	}
	return payload.Bytes()
}

func newMockWorker(reply []byte) (*MeshWorker, *MockCloser) {
	stdinMock := &MockCloser{Buffer: new(bytes.Buffer)}
	dataPipeMock := &MockCloser{Buffer: new(bytes.Buffer)}
	binary.Write(dataPipeMock, binary.BigEndian, uint32(len(reply)))
	dataPipeMock.Write(reply)
	// Cmd is nil because we aren't testing process management, just the protocol
	return &MeshWorker{ID: 1, Stdin: stdinMock, DataPipe: dataPipeMock, timeout: time.Second}, stdinMock
}

func TestProcessFrame(t *testing.T) {
	w, stdinMock := newMockWorker(facesPayload(1, 478))

	frame := make([]byte, 4*3*4) // 4x3 BGRA
	faces, err := w.ProcessFrame(frame, 4, 3)
	if err != nil {
		t.Fatalf("ProcessFrame failed: %v", err)
	}

	// Verify Go sent [len][width][height][pixels]
	sent := stdinMock.Bytes()
	if len(sent) != 4+8+len(frame) {
		t.Fatalf("Expected %d bytes sent, got %d", 4+8+len(frame), len(sent))
	}
	if got := binary.BigEndian.Uint32(sent[0:4]); got != uint32(8+len(frame)) {
		t.Errorf("Length header = %d, want %d", got, 8+len(frame))
	}
	if binary.BigEndian.Uint32(sent[4:8]) != 4 || binary.BigEndian.Uint32(sent[8:12]) != 3 {
		t.Errorf("Frame size header wrong: %v", sent[4:12])
	}

	if len(faces) != 1 || len(faces[0]) != 478 {
		t.Fatalf("Expected 1 face of 478 landmarks, got %d faces", len(faces))
	}
	if math.Abs(faces[0][0].Y-0.5) > 1e-9 {
		t.Errorf("Expected landmark y 0.5, got %f", faces[0][0].Y)
	}
	if math.Abs(faces[0][239].X-239.0/478.0) > 1e-6 {
		t.Errorf("Landmark 239 x = %f", faces[0][239].X)
	}
}

func TestProcessFrame_NoFace(t *testing.T) {
	w, _ := newMockWorker(facesPayload(0, 0))
	faces, err := w.ProcessFrame(make([]byte, 16), 2, 2)
	if err != nil {
		t.Fatalf("No-face reply must not be an error: %v", err)
	}
	if len(faces) != 0 {
		t.Errorf("Expected no faces, got %d", len(faces))
	}
}

func TestProcessFrame_Error(t *testing.T) {
	payload := new(bytes.Buffer)
	payload.WriteByte(1) // Status ERROR
	errMsg := "Python Exception: Import Error"
	binary.Write(payload, binary.BigEndian, uint32(len(errMsg)))
	payload.WriteString(errMsg)

	w, _ := newMockWorker(payload.Bytes())
	_, err := w.ProcessFrame(make([]byte, 16), 2, 2)
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if err.Error() != "python worker error: "+errMsg {
		t.Errorf("Expected error message '%s', got '%v'", "python worker error: "+errMsg, err)
	}
}

func TestProcessFrame_BadFrame(t *testing.T) {
	w, stdinMock := newMockWorker(facesPayload(0, 0))
	if _, err := w.ProcessFrame(make([]byte, 10), 2, 2); err == nil {
		t.Fatal("Expected size mismatch error")
	}
	if stdinMock.Len() != 0 {
		t.Error("Nothing should be sent for a malformed frame")
	}
}

func TestProcessFrame_DeadWorker(t *testing.T) {
	w := &MeshWorker{
		ID:       2,
		Stdin:    &MockCloser{Buffer: new(bytes.Buffer)},
		DataPipe: &MockCloser{Buffer: new(bytes.Buffer)}, // EOF immediately
	}
	if _, err := w.ProcessFrame(make([]byte, 16), 2, 2); err == nil {
		t.Fatal("Expected EOF error from a dead worker")
	}
}

func TestParseResponse_Malformed(t *testing.T) {
	full := facesPayload(1, 5)
	tests := []struct {
		name string
		body []byte
	}{
		{"empty", nil},
		{"unknown status", []byte{7}},
		{"missing face count", []byte{0, 0}},
		{"truncated landmarks", full[:len(full)-4]},
		{"trailing bytes", append(append([]byte{}, full...), 0xFF)},
		{"truncated error", []byte{1, 0, 0, 0, 9, 'x'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseResponse(tt.body); err == nil {
				t.Errorf("Expected error for %s", tt.name)
			}
		})
	}
}

func TestParseResponse_MultipleFaces(t *testing.T) {
	faces, err := parseResponse(facesPayload(2, 468))
	if err != nil {
		t.Fatal(err)
	}
	if len(faces) != 2 {
		t.Fatalf("Expected 2 faces, got %d", len(faces))
	}
	if faces[1][0].Z != 1 {
		t.Errorf("Second face z = %f, want 1", faces[1][0].Z)
	}
}

func TestConfigArgs(t *testing.T) {
	cfg := Config{Script: "python/face_mesh_worker.py", MaxFaces: 2, Refine: true, MinDetection: 0.5, MinTracking: 0.25}
	args := strings.Join(cfg.args(), " ")
	want := "-u python/face_mesh_worker.py --max-faces 2 --refine --min-detection 0.5 --min-tracking 0.25"
	if args != want {
		t.Errorf("args = %q, want %q", args, want)
	}

	cfg.Refine = false
	if !strings.Contains(strings.Join(cfg.args(), " "), "--no-refine") {
		t.Error("Expected --no-refine")
	}
}

func TestClose_Idempotent(t *testing.T) {
	w, _ := newMockWorker(nil)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}
