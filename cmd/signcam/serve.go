package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"gocv.io/x/gocv"

	"github.com/ayusman/signcam/internal/app"
	"github.com/ayusman/signcam/internal/capture"
	"github.com/ayusman/signcam/internal/config"
	"github.com/ayusman/signcam/internal/detector"
	"github.com/ayusman/signcam/internal/overlay"
	"github.com/ayusman/signcam/internal/server"
	"github.com/ayusman/signcam/internal/status"
	"github.com/ayusman/signcam/internal/store"
	"github.com/ayusman/signcam/internal/tray"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the annotated camera stream (default)",
	RunE:  runServe,
}

func init() {
	addServeFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("host", "", "listen host (default 0.0.0.0)")
	f.Int("port", 0, "listen port (default 5000)")
	f.Int("camera", 0, "camera device index")
	f.Int("width", 0, "capture width")
	f.Int("height", 0, "capture height")
	f.Int("quality", 0, "JPEG quality 1-100")
	f.Duration("delay", 0, "pause between frames")
	f.String("policy", "", "second /video client: reject or serialize")
	f.String("data-dir", "", "directory for the session journal")
	f.Bool("labels", false, "label each hand with its handedness")
	f.Bool("mock", false, "use a synthetic camera and detector")
	f.Bool("tray", false, "show a system tray indicator")
}

// applyFlags copies every flag the user set into cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	var err error

	if f.Changed("host") {
		cfg.Server.Host, err = f.GetString("host")
	}
	if err == nil && f.Changed("port") {
		cfg.Server.Port, err = f.GetInt("port")
	}
	if err == nil && f.Changed("camera") {
		cfg.Camera.Device, err = f.GetInt("camera")
	}
	if err == nil && f.Changed("width") {
		cfg.Camera.Width, err = f.GetInt("width")
	}
	if err == nil && f.Changed("height") {
		cfg.Camera.Height, err = f.GetInt("height")
	}
	if err == nil && f.Changed("quality") {
		cfg.Stream.JPEGQuality, err = f.GetInt("quality")
	}
	if err == nil && f.Changed("delay") {
		cfg.Stream.FrameDelay, err = f.GetDuration("delay")
	}
	if err == nil && f.Changed("policy") {
		cfg.Stream.Policy, err = f.GetString("policy")
	}
	if err == nil && f.Changed("data-dir") {
		cfg.DataDir, err = f.GetString("data-dir")
	}
	if err == nil && f.Changed("labels") {
		cfg.Stream.Labels, err = f.GetBool("labels")
	}
	if err == nil && f.Changed("mock") {
		cfg.Mock, err = f.GetBool("mock")
	}
	if err == nil && f.Changed("tray") {
		cfg.Tray, err = f.GetBool("tray")
	}
	return err
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	a, err := buildApp(cfg, st)
	if err != nil {
		return err
	}
	if err := a.Start(); err != nil {
		return fmt.Errorf("start camera: %w", err)
	}
	defer a.Stop()

	srv := server.New(server.Config{App: a})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if !cfg.Tray {
		return srv.Run(ctx, cfg.Addr(), cfg.Server.ShutdownTimeout)
	}

	// The tray owns the main goroutine; the server runs beside it.
	var (
		wg      sync.WaitGroup
		serveErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		serveErr = srv.Run(ctx, cfg.Addr(), cfg.Server.ShutdownTimeout)
	}()

	t := tray.New(browseURL(cfg), a.Status())
	t.OnQuit(cancel)
	t.Run(ctx)

	cancel()
	wg.Wait()
	return serveErr
}

// buildApp wires the camera, detector and journal into an App.
func buildApp(cfg config.Config, st *store.Store) (*app.App, error) {
	policy, err := app.ParsePolicy(cfg.Stream.Policy)
	if err != nil {
		return nil, err
	}

	style := overlay.DefaultStyle()
	style.Labels = cfg.Stream.Labels

	cell := status.NewCell()

	var (
		cam capture.Camera
		det detector.Detector
	)
	if cfg.Mock {
		log.Println("Mock mode: synthetic camera and detector")
		cam, det = mockDevices(cfg.Camera.Width, cfg.Camera.Height)
	} else {
		cam = capture.NewCamera(cfg.Camera.Device, cfg.Camera.Width, cfg.Camera.Height)
		det = newDetector(cfg.Detector)
	}

	return app.New(app.Config{
		Camera:      cam,
		Detector:    det,
		Store:       st,
		Status:      cell,
		Style:       style,
		FrameDelay:  cfg.Stream.FrameDelay,
		JPEGQuality: cfg.Stream.JPEGQuality,
		Policy:      policy,
	}), nil
}

// newDetector starts the MediaPipe sidecar, falling back to a detector that
// never finds a hand when the sidecar is not installed.
func newDetector(cfg config.DetectorConfig) detector.Detector {
	dc := detector.DefaultConfig()
	dc.MaxHands = cfg.MaxHands
	dc.ModelComplexity = cfg.ModelComplexity
	dc.MinConfidence = cfg.MinDetection
	dc.MinTrackingConf = cfg.MinTracking
	dc.ScriptPath = cfg.ScriptPath
	dc.PythonPath = cfg.PythonPath
	if cfg.IdleTimeout > 0 {
		dc.IdleTimeout = cfg.IdleTimeout
	}

	det, err := detector.NewMediaPipeDetector(dc)
	if err != nil {
		if errors.Is(err, detector.ErrScriptNotFound) {
			log.Printf("Hand detector unavailable (%v); streaming without landmarks", err)
		} else {
			log.Printf("Error creating hand detector: %v; streaming without landmarks", err)
		}
		return detector.NewMockDetector()
	}
	return det
}

// mockDevices returns a looping synthetic camera and a detector that cycles
// through no hand, one hand and two hands.
func mockDevices(width, height int) (capture.Camera, detector.Detector) {
	frame := capture.SyntheticFrame(width, height)
	cam := capture.NewMockCamera([]*gocv.Mat{&frame}, true)

	palm := detector.OpenPalmLandmarks()
	thumbs := detector.ThumbsUpLandmarks()

	var seq [][]detector.HandLandmarks
	for i := 0; i < 25; i++ {
		seq = append(seq, nil)
	}
	for i := 0; i < 25; i++ {
		seq = append(seq, []detector.HandLandmarks{palm})
	}
	for i := 0; i < 25; i++ {
		seq = append(seq, []detector.HandLandmarks{palm, detector.Mirrored(palm)})
	}
	for i := 0; i < 25; i++ {
		seq = append(seq, []detector.HandLandmarks{thumbs})
	}

	det := detector.NewMockDetector()
	det.SetSequence(seq)
	return cam, det
}

// browseURL is the address a local browser should open.
func browseURL(cfg config.Config) string {
	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d/", host, cfg.Server.Port)
}
