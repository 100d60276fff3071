package e2e

import (
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/signcam/internal/app"
	"github.com/ayusman/signcam/internal/capture"
	"github.com/ayusman/signcam/internal/detector"
	"github.com/ayusman/signcam/internal/server"
	"github.com/ayusman/signcam/internal/store"
)

func TestE2E_LiveView(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	s, err := store.New(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	frame := capture.SyntheticFrame(320, 240)
	defer frame.Close()
	cam := capture.NewMockCamera([]*gocv.Mat{&frame}, true)

	palm := detector.OpenPalmLandmarks()
	mockDetector := detector.NewMockDetector()
	mockDetector.SetSequence([][]detector.HandLandmarks{
		nil,
		{palm},
		{palm, detector.Mirrored(palm)},
	})

	application := app.New(app.Config{
		Camera:     cam,
		Detector:   mockDetector,
		Store:      s,
		FrameDelay: 5 * time.Millisecond,
	})
	if err := application.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer application.Stop()

	ts := httptest.NewServer(server.New(server.Config{App: application}))
	defer ts.Close()

	client := ts.Client()

	getText := func() string {
		t.Helper()
		resp, err := client.Get(ts.URL + "/text")
		if err != nil {
			t.Fatalf("GET /text error = %v", err)
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return string(b)
	}

	t.Run("StatusBeforeStreaming", func(t *testing.T) {
		if got := getText(); got != "Starting…" {
			t.Errorf("text = %q, want %q", got, "Starting…")
		}
	})

	t.Run("StreamDrivesStatus", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/video")
		if err != nil {
			t.Fatalf("GET /video error = %v", err)
		}
		defer resp.Body.Close()

		_, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
		if err != nil {
			t.Fatalf("bad Content-Type: %v", err)
		}
		mr := multipart.NewReader(resp.Body, params["boundary"])

		seen := map[string]bool{}
		for i := 0; i < 90 && len(seen) < 3; i++ {
			part, err := mr.NextPart()
			if err != nil {
				t.Fatalf("NextPart() error = %v", err)
			}
			io.Copy(io.Discard, part)
			seen[getText()] = true
		}

		for _, want := range []string{"No hand", "Hands: 1", "Hands: 2"} {
			if !seen[want] {
				t.Errorf("status %q never observed; saw %v", want, seen)
			}
		}
	})

	t.Run("SessionRecorded", func(t *testing.T) {
		deadline := time.Now().Add(5 * time.Second)
		for {
			resp, err := client.Get(ts.URL + "/api/sessions")
			if err != nil {
				t.Fatalf("GET /api/sessions error = %v", err)
			}

			var body struct {
				Sessions []struct {
					Active   bool `json:"active"`
					Frames   int  `json:"frames"`
					MaxHands int  `json:"max_hands"`
				} `json:"sessions"`
			}
			err = json.NewDecoder(resp.Body).Decode(&body)
			resp.Body.Close()
			if err != nil {
				t.Fatalf("decode sessions: %v", err)
			}

			if len(body.Sessions) == 1 && !body.Sessions[0].Active {
				if body.Sessions[0].MaxHands != 2 {
					t.Errorf("MaxHands = %d, want 2", body.Sessions[0].MaxHands)
				}
				if body.Sessions[0].Frames < 3 {
					t.Errorf("Frames = %d, want >= 3", body.Sessions[0].Frames)
				}
				return
			}
			if time.Now().After(deadline) {
				t.Fatalf("session never finished: %+v", body.Sessions)
			}
			time.Sleep(20 * time.Millisecond)
		}
	})

	t.Run("HealthAfterStream", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/health")
		if err != nil {
			t.Fatalf("GET /api/health error = %v", err)
		}
		defer resp.Body.Close()

		var health map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			t.Fatalf("decode health: %v", err)
		}
		if health["streaming"] != false {
			t.Errorf("streaming = %v, want false", health["streaming"])
		}
		if health["camera_open"] != true {
			t.Errorf("camera_open = %v, want true", health["camera_open"])
		}
	})

	if got := application.Status().Get(); got == "" {
		t.Error("status should never be empty")
	}
}
