package utils

import (
	"context"
	"math"
	"strings"
	"testing"
)

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"25", 25, false},
		{"30/1", 30, false},
		{"30000/1001", 29.97002997, false},
		{"0/0", 0, true},
		{"abc", 0, true},
		{"30/x", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseFrameRate(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFrameRate(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if math.Abs(got-tt.want) > 1e-6 {
			t.Errorf("ParseFrameRate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewSafeCommand_CapturesStderr(t *testing.T) {
	cmd := NewSafeCommand(context.Background(), "sh", "-c", "echo boom >&2; exit 3")
	if err := cmd.Run(); err == nil {
		t.Fatal("Expected non-zero exit")
	}
	if !strings.Contains(cmd.Stderr.String(), "boom") {
		t.Errorf("Expected stderr to be captured, got %q", cmd.Stderr.String())
	}
}

func TestFFmpegArgs(t *testing.T) {
	dec := NewFFmpegRawDecoder(context.Background(), "in.mp4")
	if !strings.Contains(strings.Join(dec.Args, " "), "-pix_fmt bgra") {
		t.Errorf("Decoder must emit BGRA, got %v", dec.Args)
	}

	enc := NewFFmpegEncoder(context.Background(), "out.mp4", 29.97, 1280, 720)
	args := strings.Join(enc.Args, " ")
	for _, want := range []string{"-s 1280x720", "-r 29.97", "-pix_fmt bgra", "out.mp4"} {
		if !strings.Contains(args, want) {
			t.Errorf("Encoder args %q missing %q", args, want)
		}
	}
}
