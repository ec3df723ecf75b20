// Package camera wraps a gocv capture device and preview window for the
// live overlay loop.
package camera

import (
	"fmt"

	"gocv.io/x/gocv"
)

// KeyEscape is the key code that ends the live loop.
const KeyEscape = 27

// WindowTitle is the preview window's name.
const WindowTitle = "Face Mesh"

// Camera owns the capture device, the preview window and the scratch Mats.
// It is not safe for concurrent use.
type Camera struct {
	capture *gocv.VideoCapture
	window  *gocv.Window
	mirror  bool

	raw     gocv.Mat
	flipped gocv.Mat
	frame   gocv.Mat

	closed bool
}

// Open starts device ("0" for the first webcam, or a file/URL) and, when
// title is not empty, a preview window.
func Open(device string, mirror bool, title string) (*Camera, error) {
	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("open video capture %q: %w", device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("video capture %q is not available", device)
	}

	c := &Camera{
		capture: capture,
		mirror:  mirror,
		raw:     gocv.NewMat(),
		flipped: gocv.NewMat(),
		frame:   gocv.NewMat(),
	}
	if title != "" {
		c.window = gocv.NewWindow(title)
	}
	return c, nil
}

// Read grabs the next frame, mirrors it if configured and converts it to
// BGRA. The returned Mat is owned by the Camera and is overwritten by the
// next Read. ok is false when the device has no more frames.
func (c *Camera) Read() (*gocv.Mat, bool) {
	if ok := c.capture.Read(&c.raw); !ok || c.raw.Empty() {
		return nil, false
	}

	src := &c.raw
	if c.mirror {
		gocv.Flip(c.raw, &c.flipped, 1)
		src = &c.flipped
	}
	gocv.CvtColor(*src, &c.frame, gocv.ColorBGRToBGRA)
	return &c.frame, true
}

// Show displays img and polls the keyboard for delayMs. It reports whether
// the user pressed ESC.
func (c *Camera) Show(img *gocv.Mat, delayMs int) bool {
	if c.window == nil {
		return false
	}
	c.window.IMShow(*img)
	return IsExitKey(c.window.WaitKey(delayMs))
}

// IsExitKey reports whether key, as returned by WaitKey, should stop the loop.
func IsExitKey(key int) bool {
	return key&0xFF == KeyEscape
}

// Close releases the device, the window and the Mats. It is safe to call
// more than once.
func (c *Camera) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	c.capture.Close()
	if c.window != nil {
		c.window.Close()
	}
	c.raw.Close()
	c.flipped.Close()
	c.frame.Close()
	return nil
}
