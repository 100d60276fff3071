// Package overlay draws detected hand landmarks onto video frames.
package overlay

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/signcam/internal/detector"
)

// Style controls how landmark sets are drawn.
type Style struct {
	BoneColor  color.RGBA
	JointColor color.RGBA
	BoneWidth  int
	JointSize  int
	Labels     bool
}

// DefaultStyle mirrors the MediaPipe drawing defaults: light gray bones, red
// joints.
func DefaultStyle() Style {
	return Style{
		BoneColor:  color.RGBA{R: 224, G: 224, B: 224, A: 255},
		JointColor: color.RGBA{R: 255, G: 0, B: 0, A: 255},
		BoneWidth:  2,
		JointSize:  2,
		Labels:     false,
	}
}

// Annotator draws landmark sets in place on BGR frames.
type Annotator struct {
	style Style
}

// NewAnnotator creates an Annotator with the given style.
func NewAnnotator(style Style) *Annotator {
	if style.BoneWidth <= 0 {
		style.BoneWidth = 1
	}
	if style.JointSize <= 0 {
		style.JointSize = 1
	}
	return &Annotator{style: style}
}

// Draw renders every hand onto frame and returns how many landmark groups were
// drawn. A nil or empty frame draws nothing.
func (a *Annotator) Draw(frame *gocv.Mat, hands []detector.HandLandmarks) int {
	if frame == nil || frame.Empty() {
		return 0
	}

	w, h := frame.Cols(), frame.Rows()
	drawn := 0
	for i := range hands {
		a.drawHand(frame, &hands[i], w, h)
		drawn++
	}
	return drawn
}

func (a *Annotator) drawHand(frame *gocv.Mat, hand *detector.HandLandmarks, w, h int) {
	var (
		px      [detector.NumLandmarks]image.Point
		visible [detector.NumLandmarks]bool
	)
	for i, p := range hand.Points {
		px[i] = p.Pixel(w, h)
		visible[i] = p.InFrame()
	}

	// Points outside the frame are skipped, along with their bones.
	for _, c := range detector.HandConnections {
		if !visible[c.From] || !visible[c.To] {
			continue
		}
		gocv.Line(frame, px[c.From], px[c.To], a.style.BoneColor, a.style.BoneWidth)
	}
	for i, p := range px {
		if !visible[i] {
			continue
		}
		gocv.Circle(frame, p, a.style.JointSize, a.style.JointColor, -1)
	}

	if a.style.Labels && hand.Handedness != "" {
		box := hand.Bounds(w, h)
		origin := image.Pt(box.Min.X, max(box.Min.Y-6, 12))
		label := fmt.Sprintf("%s %.2f", hand.Handedness, hand.Score)
		gocv.PutText(frame, label, origin, gocv.FontHersheySimplex, 0.45, a.style.BoneColor, 1)
	}
}
