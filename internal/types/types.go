package types

import "github.com/andresmejia3/facemesh/internal/mesh"

// FrameTask represents a single raw BGRA frame sent to a worker for processing
type FrameTask struct {
	Index  int
	Width  int
	Height int
	Data   []byte
}

// FrameResult is what a worker hands back to the aggregator for one frame.
// Faces is empty when the detector found nobody.
type FrameResult struct {
	FrameTask
	Faces [][]mesh.Landmark
}
