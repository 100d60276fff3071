package capture

import (
	"errors"
	"testing"

	"gocv.io/x/gocv"
)

func TestMockCamera_Playback(t *testing.T) {
	frame1 := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame1.Close()
	frame2 := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame2.Close()

	cam := NewMockCamera([]*gocv.Mat{&frame1, &frame2}, false)

	if err := cam.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer cam.Close()

	for i := 0; i < 2; i++ {
		f, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() %d error = %v", i, err)
		}
		f.Close()
	}

	if _, err := cam.ReadFrame(); !errors.Is(err, ErrNoFrames) {
		t.Errorf("ReadFrame() after playback error = %v, want %v", err, ErrNoFrames)
	}
}

func TestMockCamera_SetFPS(t *testing.T) {
	cam := NewMockCamera(nil, false)

	if got := cam.FPS(); got != DefaultFPS {
		t.Errorf("FPS() = %d, want %d", got, DefaultFPS)
	}

	cam.SetFPS(10)
	if got := cam.FPS(); got != 10 {
		t.Errorf("FPS() = %d, want 10", got)
	}

	cam.SetFPS(0)
	if got := cam.FPS(); got != 10 {
		t.Errorf("FPS() = %d after SetFPS(0), want 10", got)
	}
}

func TestMockCamera_Loop(t *testing.T) {
	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	cam := NewMockCamera([]*gocv.Mat{&frame}, true)
	cam.Open()
	defer cam.Close()

	for i := 0; i < 5; i++ {
		f, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() iteration %d error = %v", i, err)
		}
		f.Close()
	}

	if got := cam.Reads(); got != 5 {
		t.Errorf("Reads() = %d, want 5", got)
	}
}

func TestMockCamera_NotOpen(t *testing.T) {
	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	cam := NewMockCamera([]*gocv.Mat{&frame}, true)

	if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("ReadFrame() error = %v, want %v", err, ErrCameraNotOpen)
	}
}

func TestMockCamera_SetError(t *testing.T) {
	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	cam := NewMockCamera([]*gocv.Mat{&frame}, true)
	cam.Open()
	defer cam.Close()

	deviceErr := errors.New("device unplugged")
	cam.SetError(deviceErr)

	if _, err := cam.ReadFrame(); !errors.Is(err, deviceErr) {
		t.Errorf("ReadFrame() error = %v, want %v", err, deviceErr)
	}

	cam.SetError(nil)
	f, err := cam.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() after clearing error = %v", err)
	}
	f.Close()
}

func TestMockCamera_Size(t *testing.T) {
	frame := gocv.NewMatWithSize(240, 424, gocv.MatTypeCV8UC3)
	defer frame.Close()

	cam := NewMockCamera([]*gocv.Mat{&frame}, true)
	if w, h := cam.Size(); w != 424 || h != 240 {
		t.Errorf("Size() = %dx%d, want 424x240", w, h)
	}

	empty := NewMockCamera(nil, false)
	if w, h := empty.Size(); w != DefaultWidth || h != DefaultHeight {
		t.Errorf("Size() of empty mock = %dx%d, want defaults", w, h)
	}
}

func TestSyntheticFrame(t *testing.T) {
	frame := SyntheticFrame(320, 240)
	defer frame.Close()

	if frame.Empty() {
		t.Fatal("SyntheticFrame() returned empty mat")
	}
	if frame.Cols() != 320 || frame.Rows() != 240 {
		t.Errorf("SyntheticFrame() size = %dx%d, want 320x240", frame.Cols(), frame.Rows())
	}
	if frame.Channels() != 3 {
		t.Errorf("SyntheticFrame() channels = %d, want 3", frame.Channels())
	}

	corner := frame.GetVecbAt(0, 0)
	center := frame.GetVecbAt(120, 160)
	if corner[0] == center[0] && corner[1] == center[1] && corner[2] == center[2] {
		t.Error("expected the center panel to differ from the background")
	}
}
