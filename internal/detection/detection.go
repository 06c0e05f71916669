// Package detection provides the frame and detection models shared by the
// classifier adapter, the temporal detector and the stream processor.
package detection

import (
	"context"
	"image"
	"time"
)

// Frame is a single decoded video frame. Frames are owned by the processing
// loop for one iteration and must not be retained by callers.
type Frame struct {
	Index     int           // 1-based position in the stream
	Image     image.Image   // decoded pixels
	Timestamp time.Duration // presentation time relative to the stream start
}

// Width returns the frame width in pixels, zero for an empty frame.
func (f Frame) Width() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dx()
}

// Height returns the frame height in pixels, zero for an empty frame.
func (f Frame) Height() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dy()
}

// Detection is one labelled region reported by a classifier.
type Detection struct {
	Label      string     // class label, e.g. "VIOLENCE"
	Confidence float64    // 0.0-1.0
	BBox       [4]float64 // x1, y1, x2, y2 in pixels
}

// Classifier turns a frame into detections.
type Classifier interface {
	Classify(ctx context.Context, frame Frame) ([]Detection, error)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, frame Frame) ([]Detection, error)

// Classify calls f(ctx, frame).
func (f ClassifierFunc) Classify(ctx context.Context, frame Frame) ([]Detection, error) {
	return f(ctx, frame)
}

// IsPositive reports whether any detection carries label.
func IsPositive(detections []Detection, label string) bool {
	for i := range detections {
		if detections[i].Label == label {
			return true
		}
	}
	return false
}
