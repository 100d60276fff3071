// Package detector provides hand-landmark detection for the live view.
package detector

import "image"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Connection is a bone between two landmarks.
type Connection struct {
	From, To int
}

// HandConnections is the hand skeleton drawn over each landmark set.
var HandConnections = []Connection{
	{Wrist, ThumbCMC}, {ThumbCMC, ThumbMCP}, {ThumbMCP, ThumbIP}, {ThumbIP, ThumbTip},
	{Wrist, IndexMCP}, {IndexMCP, IndexPIP}, {IndexPIP, IndexDIP}, {IndexDIP, IndexTip},
	{IndexMCP, MiddleMCP}, {MiddleMCP, MiddlePIP}, {MiddlePIP, MiddleDIP}, {MiddleDIP, MiddleTip},
	{MiddleMCP, RingMCP}, {RingMCP, RingPIP}, {RingPIP, RingDIP}, {RingDIP, RingTip},
	{RingMCP, PinkyMCP}, {Wrist, PinkyMCP}, {PinkyMCP, PinkyPIP}, {PinkyPIP, PinkyDIP}, {PinkyDIP, PinkyTip},
}

// Point3D is a landmark in normalized image coordinates: X and Y in [0,1]
// relative to frame width and height, Z as relative depth.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// InFrame reports whether the point lies inside the image.
func (p Point3D) InFrame() bool {
	return p.X >= 0 && p.X <= 1 && p.Y >= 0 && p.Y <= 1
}

// Pixel maps the point onto a width x height frame, clamped to its bounds.
func (p Point3D) Pixel(width, height int) image.Point {
	return image.Point{
		X: clamp(int(p.X*float64(width)), 0, width-1),
		Y: clamp(int(p.Y*float64(height)), 0, height-1),
	}
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// HandLandmarks is one detected hand: 21 ordered landmarks.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Bounds returns the pixel bounding box of the hand on a width x height frame.
func (h *HandLandmarks) Bounds(width, height int) image.Rectangle {
	first := h.Points[0].Pixel(width, height)
	r := image.Rectangle{Min: first, Max: first}
	for _, p := range h.Points[1:] {
		px := p.Pixel(width, height)
		if px.X < r.Min.X {
			r.Min.X = px.X
		}
		if px.Y < r.Min.Y {
			r.Min.Y = px.Y
		}
		if px.X > r.Max.X {
			r.Max.X = px.X
		}
		if px.Y > r.Max.Y {
			r.Max.Y = px.Y
		}
	}
	return r
}
