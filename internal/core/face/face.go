// Package face defines the domain types shared across the recognition
// pipeline: captured frames, pixel boxes, and located detections
package face

import (
	"fmt"
	"time"
)

// Label is the wire label carried by every detection
const Label = "face"

// Frame is one captured camera frame
// immutable once captured, shared read only downstream
type Frame struct {
	// Seq is a monotonic capture sequence number
	Seq uint64

	// At is the capture timestamp
	At time.Time

	// JPEG is the raw encoded frame buffer
	JPEG []byte
}

// BBox is a pixel space box, x1,y1 top left, x2,y2 bottom right
type BBox struct {
	X1, Y1, X2, Y2 int
}

// Width of the box, negative boxes report zero
func (b BBox) Width() int {
	if b.X2 <= b.X1 {
		return 0
	}
	return b.X2 - b.X1
}

// Height of the box, negative boxes report zero
func (b BBox) Height() int {
	if b.Y2 <= b.Y1 {
		return 0
	}
	return b.Y2 - b.Y1
}

// Area in pixels
func (b BBox) Area() int { return b.Width() * b.Height() }

// Center returns the box midpoint
func (b BBox) Center() (int, int) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// Scale multiplies every coordinate by f, rounding to the nearest pixel.
// Used to project detections made on a downscaled frame back onto the
// full resolution frame with f = 1/resize
func (b BBox) Scale(f float64) BBox {
	return BBox{
		X1: roundPx(float64(b.X1) * f),
		Y1: roundPx(float64(b.Y1) * f),
		X2: roundPx(float64(b.X2) * f),
		Y2: roundPx(float64(b.Y2) * f),
	}
}

// Clamp restricts the box to a w by h image
func (b BBox) Clamp(w, h int) BBox {
	b.X1 = clamp(b.X1, 0, w)
	b.Y1 = clamp(b.Y1, 0, h)
	b.X2 = clamp(b.X2, 0, w)
	b.Y2 = clamp(b.Y2, 0, h)
	return b
}

// Bucket quantizes the box center to a grid cell key "bx:by"
// unknown face cooldowns key on this so a loiterer in one spot cannot
// retrigger while a second person elsewhere in the frame still can
func (b BBox) Bucket(cell int) string {
	if cell < 1 {
		cell = 1
	}
	cx, cy := b.Center()
	return fmt.Sprintf("%d:%d", cx/cell, cy/cell)
}

// Slice renders the box in the wire order x1,y1,x2,y2
func (b BBox) Slice() [4]int { return [4]int{b.X1, b.Y1, b.X2, b.Y2} }

// Detection is one located face on a frame
type Detection struct {
	Box        BBox
	Confidence float64

	// Name is the resolved identity, empty when unknown
	Name string
}

func roundPx(f float64) int {
	if f < 0 {
		return int(f - 0.5)
	}
	return int(f + 0.5)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
