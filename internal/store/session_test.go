package store

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestSessions_StartAndGet(t *testing.T) {
	s := newTestStore(t)

	sess, err := s.Sessions().Start("192.168.1.20:50412", "Mozilla/5.0")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if _, err := uuid.Parse(sess.ID); err != nil {
		t.Errorf("session ID %q is not a UUID: %v", sess.ID, err)
	}

	got, err := s.Sessions().Get(sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if got.RemoteAddr != "192.168.1.20:50412" {
		t.Errorf("RemoteAddr = %s, want 192.168.1.20:50412", got.RemoteAddr)
	}
	if got.UserAgent != "Mozilla/5.0" {
		t.Errorf("UserAgent = %s, want Mozilla/5.0", got.UserAgent)
	}
	if !got.Active() {
		t.Error("new session should be active")
	}
	if got.StartedAt.IsZero() {
		t.Error("StartedAt should be set")
	}
}

func TestSessions_Finish(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	sess, err := repo.Start("127.0.0.1:1", "")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	res := SessionResult{Frames: 120, Skipped: 2, MaxHands: 2, Err: errors.New("camera gone")}
	if err := repo.Finish(sess.ID, res); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	got, err := repo.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if got.Active() {
		t.Error("finished session should not be active")
	}
	if got.Frames != 120 || got.Skipped != 2 || got.MaxHands != 2 {
		t.Errorf("counters = %d/%d/%d, want 120/2/2", got.Frames, got.Skipped, got.MaxHands)
	}
	if got.Error != "camera gone" {
		t.Errorf("Error = %q, want %q", got.Error, "camera gone")
	}

	t.Run("finishing twice returns ErrNotFound", func(t *testing.T) {
		if err := repo.Finish(sess.ID, SessionResult{}); !errors.Is(err, ErrNotFound) {
			t.Errorf("second Finish() error = %v, want %v", err, ErrNotFound)
		}
	})

	t.Run("unknown ID returns ErrNotFound", func(t *testing.T) {
		if err := repo.Finish("missing", SessionResult{}); !errors.Is(err, ErrNotFound) {
			t.Errorf("Finish(missing) error = %v, want %v", err, ErrNotFound)
		}
	})
}

func TestSessions_GetNotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Sessions().Get("does-not-exist"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want %v", err, ErrNotFound)
	}
}

func TestSessions_List(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	var ids []string
	for i := 0; i < 5; i++ {
		sess, err := repo.Start("127.0.0.1:1", "")
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		ids = append(ids, sess.ID)
	}

	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "default limit", limit: 0, want: 5},
		{name: "limited", limit: 2, want: 2},
		{name: "limit above count", limit: 10, want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions, err := repo.List(tt.limit)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(sessions) != tt.want {
				t.Errorf("len(sessions) = %d, want %d", len(sessions), tt.want)
			}
		})
	}

	sessions, _ := repo.List(1)
	if sessions[0].ID != ids[len(ids)-1] {
		t.Errorf("newest session = %s, want %s", sessions[0].ID, ids[len(ids)-1])
	}
}

func TestSessions_ListEmpty(t *testing.T) {
	s := newTestStore(t)

	sessions, err := s.Sessions().List(10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if sessions == nil || len(sessions) != 0 {
		t.Errorf("List() = %v, want empty non-nil slice", sessions)
	}
}

func TestSessions_CloseDangling(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	open, _ := repo.Start("127.0.0.1:1", "")
	done, _ := repo.Start("127.0.0.1:2", "")
	if err := repo.Finish(done.ID, SessionResult{Frames: 3}); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	n, err := repo.CloseDangling()
	if err != nil {
		t.Fatalf("CloseDangling() error = %v", err)
	}
	if n != 1 {
		t.Errorf("CloseDangling() closed %d sessions, want 1", n)
	}

	got, _ := repo.Get(open.ID)
	if got.Active() || got.Error != "interrupted" {
		t.Errorf("dangling session = %+v, want closed as interrupted", got)
	}

	finished, _ := repo.Get(done.ID)
	if finished.Error != "" {
		t.Errorf("finished session error = %q, want empty", finished.Error)
	}
}
