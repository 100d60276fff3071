// Package app owns the camera and detector and drives the live stream.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/signcam/internal/capture"
	"github.com/ayusman/signcam/internal/detector"
	"github.com/ayusman/signcam/internal/mjpeg"
	"github.com/ayusman/signcam/internal/overlay"
	"github.com/ayusman/signcam/internal/status"
	"github.com/ayusman/signcam/internal/store"
)

// DefaultFrameDelay paces the stream at roughly 25 fps.
const DefaultFrameDelay = 40 * time.Millisecond

// CaptureFPS is the device frame rate that matches one frame per delay,
// rounded up so the device never falls behind the stream.
func CaptureFPS(delay time.Duration) int {
	if delay <= 0 {
		delay = DefaultFrameDelay
	}
	return max(1, int((time.Second+delay-1)/delay))
}

// StreamPolicy decides what happens when a second client asks for the stream
// while the camera is already in use.
type StreamPolicy string

const (
	// PolicyReject turns concurrent stream requests away.
	PolicyReject StreamPolicy = "reject"
	// PolicySerialize makes concurrent stream requests wait their turn.
	PolicySerialize StreamPolicy = "serialize"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (StreamPolicy, error) {
	switch p := StreamPolicy(s); p {
	case PolicyReject, PolicySerialize:
		return p, nil
	case "":
		return PolicyReject, nil
	default:
		return "", fmt.Errorf("unknown stream policy %q (want %q or %q)", s, PolicyReject, PolicySerialize)
	}
}

// ErrStreamBusy is returned when the camera is already streaming and the
// policy is PolicyReject.
var ErrStreamBusy = errors.New("stream already in use")

// Config holds the resources and tunables for the application.
type Config struct {
	Camera      capture.Camera
	Detector    detector.Detector
	Store       *store.Store // optional session journal
	Status      *status.Cell // optional; a fresh cell is created when nil
	Encoder     mjpeg.FrameEncoder
	Style       overlay.Style
	FrameDelay  time.Duration
	JPEGQuality int
	Policy      StreamPolicy
}

// Stream describes the client of one stream run.
type Stream struct {
	RemoteAddr string
	UserAgent  string
}

// App is the live-view application. It owns one camera and one detector and
// lets a single stream drive them at a time.
type App struct {
	config    Config
	pipeline  *Pipeline
	status    *status.Cell
	slot      chan struct{}
	streaming atomic.Int32
	mu        sync.Mutex
	started   bool
}

// New creates an App from config, filling in defaults.
func New(config Config) *App {
	if config.Status == nil {
		config.Status = status.NewCell()
	}
	if config.Encoder == nil {
		config.Encoder = mjpeg.NewEncoder(config.JPEGQuality)
	}
	if config.FrameDelay <= 0 {
		config.FrameDelay = DefaultFrameDelay
	}
	if config.Policy == "" {
		config.Policy = PolicyReject
	}
	if config.Style == (overlay.Style{}) {
		config.Style = overlay.DefaultStyle()
	}

	a := &App{
		config: config,
		status: config.Status,
		slot:   make(chan struct{}, 1),
	}
	a.pipeline = NewPipeline(
		config.Camera,
		config.Detector,
		overlay.NewAnnotator(config.Style),
		config.Encoder,
		config.Status,
		config.FrameDelay,
	)
	return a
}

// Start opens the camera.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return nil
	}

	if err := a.config.Camera.Open(); err != nil {
		return err
	}

	if a.config.Store != nil {
		if n, err := a.config.Store.Sessions().CloseDangling(); err != nil {
			log.Printf("Error closing dangling sessions: %v", err)
		} else if n > 0 {
			log.Printf("Marked %d interrupted sessions", n)
		}
	}

	a.config.Camera.SetFPS(CaptureFPS(a.config.FrameDelay))

	a.started = true
	w, h := a.config.Camera.Size()
	log.Printf("Camera started at %dx%d, %d fps", w, h, a.config.Camera.FPS())
	return nil
}

// Stop releases the detector and stops the camera.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.config.Detector != nil {
		if err := a.config.Detector.Close(); err != nil {
			log.Printf("Error closing detector: %v", err)
		}
	}

	if err := a.config.Camera.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}

	a.started = false
	log.Println("Camera stopped")
}

// Acquire claims the camera for one stream. Under PolicyReject it fails
// immediately with ErrStreamBusy; under PolicySerialize it waits until the
// camera is free or ctx is done.
func (a *App) Acquire(ctx context.Context) (release func(), err error) {
	switch a.config.Policy {
	case PolicySerialize:
		select {
		case a.slot <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	default:
		select {
		case a.slot <- struct{}{}:
		default:
			return nil, ErrStreamBusy
		}
	}

	a.streaming.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			a.streaming.Add(-1)
			<-a.slot
		})
	}, nil
}

// Stream runs the pipeline for one client until ctx is cancelled or emit
// fails. The run is recorded in the session journal when a store is set.
func (a *App) Stream(ctx context.Context, client Stream, emit func(chunk []byte) error) (Stats, error) {
	release, err := a.Acquire(ctx)
	if err != nil {
		return Stats{}, err
	}
	defer release()

	var sess *store.Session
	if a.config.Store != nil {
		sess, err = a.config.Store.Sessions().Start(client.RemoteAddr, client.UserAgent)
		if err != nil {
			log.Printf("Error recording session: %v", err)
		}
	}

	log.Printf("Stream started for %s", client.RemoteAddr)
	stats, runErr := a.pipeline.Run(ctx, emit)
	log.Printf("Stream ended for %s: %d frames, %d skipped", client.RemoteAddr, stats.Frames, stats.Skipped)

	if sess != nil {
		res := store.SessionResult{
			Frames:   stats.Frames,
			Skipped:  stats.Skipped,
			MaxHands: stats.MaxHands,
			Err:      runErr,
		}
		if err := a.config.Store.Sessions().Finish(sess.ID, res); err != nil {
			log.Printf("Error finishing session %s: %v", sess.ID, err)
		}
	}

	return stats, runErr
}

// Status returns the live status cell.
func (a *App) Status() *status.Cell {
	return a.status
}

// Store returns the session journal, or nil.
func (a *App) Store() *store.Store {
	return a.config.Store
}

// Streaming reports whether a stream currently holds the camera.
func (a *App) Streaming() bool {
	return a.streaming.Load() > 0
}

// CameraOpen reports whether the camera is open.
func (a *App) CameraOpen() bool {
	return a.config.Camera.IsOpen()
}

// Policy returns the configured stream policy.
func (a *App) Policy() StreamPolicy {
	return a.config.Policy
}
