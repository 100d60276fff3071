package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Session is one stream connection recorded in the journal.
type Session struct {
	ID         string     `json:"id"`
	RemoteAddr string     `json:"remote_addr"`
	UserAgent  string     `json:"user_agent"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Frames     int        `json:"frames"`
	Skipped    int        `json:"skipped"`
	MaxHands   int        `json:"max_hands"`
	Error      string     `json:"error,omitempty"`
}

// Active reports whether the session has not finished yet.
func (s *Session) Active() bool {
	return s.EndedAt == nil
}

// SessionResult is the outcome written when a stream ends.
type SessionResult struct {
	Frames   int
	Skipped  int
	MaxHands int
	Err      error
}

// SessionRepository records stream sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Start inserts a new open session with a fresh ID.
func (r *SessionRepository) Start(remoteAddr, userAgent string) (*Session, error) {
	sess := &Session{
		ID:         uuid.NewString(),
		RemoteAddr: remoteAddr,
		UserAgent:  userAgent,
		StartedAt:  time.Now().UTC(),
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, remote_addr, user_agent, started_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.RemoteAddr, sess.UserAgent, sess.StartedAt,
	)
	if err != nil {
		return nil, err
	}

	return sess, nil
}

// Finish closes a session with its final counters.
func (r *SessionRepository) Finish(id string, res SessionResult) error {
	errText := ""
	if res.Err != nil {
		errText = res.Err.Error()
	}

	result, err := r.db.Exec(
		`UPDATE sessions SET ended_at = ?, frames = ?, skipped = ?, max_hands = ?, error = ?
		 WHERE id = ? AND ended_at IS NULL`,
		time.Now().UTC(), res.Frames, res.Skipped, res.MaxHands, errText, id,
	)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

// Get retrieves a session by ID.
func (r *SessionRepository) Get(id string) (*Session, error) {
	row := r.db.QueryRow(
		`SELECT id, remote_addr, user_agent, started_at, ended_at, frames, skipped, max_hands, error
		 FROM sessions WHERE id = ?`,
		id,
	)

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return sess, nil
}

// List returns the most recent sessions, newest first. A non-positive limit
// returns up to 50.
func (r *SessionRepository) List(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(
		`SELECT id, remote_addr, user_agent, started_at, ended_at, frames, skipped, max_hands, error
		 FROM sessions
		 ORDER BY started_at DESC, rowid DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]Session, 0)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// CloseDangling marks sessions left open by a previous process as
// interrupted and returns how many were closed.
func (r *SessionRepository) CloseDangling() (int64, error) {
	result, err := r.db.Exec(
		`UPDATE sessions SET ended_at = ?, error = 'interrupted' WHERE ended_at IS NULL`,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var sess Session
	var ended sql.NullTime

	err := row.Scan(&sess.ID, &sess.RemoteAddr, &sess.UserAgent, &sess.StartedAt, &ended,
		&sess.Frames, &sess.Skipped, &sess.MaxHands, &sess.Error)
	if err != nil {
		return nil, err
	}

	if ended.Valid {
		t := ended.Time
		sess.EndedAt = &t
	}

	return &sess, nil
}
