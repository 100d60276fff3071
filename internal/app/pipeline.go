package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ayusman/signcam/internal/capture"
	"github.com/ayusman/signcam/internal/detector"
	"github.com/ayusman/signcam/internal/mjpeg"
	"github.com/ayusman/signcam/internal/overlay"
	"github.com/ayusman/signcam/internal/status"
)

// Stats summarizes one pipeline run.
type Stats struct {
	Frames   int // chunks emitted
	Skipped  int // frames dropped because encoding failed
	MaxHands int // most hands seen in a single frame
}

// Pipeline turns camera frames into annotated MJPEG chunks.
type Pipeline struct {
	camera    capture.Camera
	detector  detector.Detector
	annotator *overlay.Annotator
	encoder   mjpeg.FrameEncoder
	status    *status.Cell
	delay     time.Duration
}

// NewPipeline wires the stages together. delay is the pause after each
// emitted frame.
func NewPipeline(cam capture.Camera, det detector.Detector, ann *overlay.Annotator, enc mjpeg.FrameEncoder, st *status.Cell, delay time.Duration) *Pipeline {
	return &Pipeline{
		camera:    cam,
		detector:  det,
		annotator: ann,
		encoder:   enc,
		status:    st,
		delay:     delay,
	}
}

// Step runs one iteration: capture, detect, draw, update status, encode.
// It returns a nil chunk with a nil error when encoding failed. Camera and
// detector failures are returned as errors.
func (p *Pipeline) Step() (chunk []byte, hands int, err error) {
	frame, err := p.camera.ReadFrame()
	if err != nil {
		return nil, 0, fmt.Errorf("capture: %w", err)
	}
	defer frame.Close()

	found, err := p.detector.Detect(frame)
	if err != nil {
		return nil, 0, fmt.Errorf("detect: %w", err)
	}

	hands = len(found)
	if hands > 0 {
		p.annotator.Draw(frame, found)
	}
	p.status.SetHands(hands)

	jpeg, err := p.encoder.Encode(*frame)
	if err != nil {
		return nil, hands, nil
	}

	return mjpeg.Chunk(jpeg), hands, nil
}

// Run emits chunks until ctx is cancelled, emit fails, or a capture or
// detection error occurs. Only the last case is returned as an error; a
// failing emit means the client went away.
func (p *Pipeline) Run(ctx context.Context, emit func(chunk []byte) error) (Stats, error) {
	var stats Stats

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return stats, nil
		}

		chunk, hands, err := p.Step()
		if err != nil {
			return stats, err
		}
		if hands > stats.MaxHands {
			stats.MaxHands = hands
		}
		if chunk == nil {
			stats.Skipped++
			continue
		}

		if err := emit(chunk); err != nil {
			return stats, nil
		}
		stats.Frames++

		if p.delay <= 0 {
			continue
		}
		timer.Reset(p.delay)
		select {
		case <-ctx.Done():
			return stats, nil
		case <-timer.C:
		}
	}
}
