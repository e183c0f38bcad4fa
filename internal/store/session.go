package store

import (
	"database/sql"
	"time"

	"github.com/avelot/tutoria/internal/model"
)

// CreateTutoringSession inserts a new open tutoring session.
func (s *Store) CreateTutoringSession(sess model.TutoringSession) error {
	_, err := s.db.Exec(
		`INSERT INTO tutoring_sessions (id, student_id, course_id, activity_type, context, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.StudentID, sess.CourseID, sess.ActivityType, sess.Context, model.SessionOpen, time.Now(),
	)
	return err
}

// GetTutoringSession returns a session by ID, or nil if it does not exist.
func (s *Store) GetTutoringSession(id string) (*model.TutoringSession, error) {
	var sess model.TutoringSession
	err := s.db.QueryRow(
		`SELECT id, student_id, course_id, activity_type, context, status, started_at, completed_at
		 FROM tutoring_sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.StudentID, &sess.CourseID, &sess.ActivityType, &sess.Context,
		&sess.Status, &sess.StartedAt, &sess.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// CompleteTutoringSession marks an open session completed. Returns whether the
// transition happened (false when the session was not open).
func (s *Store) CompleteTutoringSession(id string) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE tutoring_sessions SET status = ?, completed_at = ? WHERE id = ? AND status = ?`,
		model.SessionCompleted, time.Now(), id, model.SessionOpen,
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

// ClaimSessionForEvaluation atomically moves a session into the evaluating
// state. Only completed or previously failed sessions qualify; returns false
// when another caller holds the claim or the session is in the wrong state.
// This conditional update is what makes evaluation at-most-once under
// concurrent triggers.
func (s *Store) ClaimSessionForEvaluation(id string) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE tutoring_sessions SET status = ?
		 WHERE id = ? AND status IN (?, ?)`,
		model.SessionEvaluating, id, model.SessionCompleted, model.SessionEvaluationFailed,
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

// SetSessionStatus sets a session status unconditionally.
func (s *Store) SetSessionStatus(id string, status model.SessionStatus) error {
	_, err := s.db.Exec(`UPDATE tutoring_sessions SET status = ? WHERE id = ?`, status, id)
	return err
}

// AddSessionMessage appends a message to a session transcript.
func (s *Store) AddSessionMessage(msg model.SessionMessage) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO session_messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		msg.SessionID, msg.Role, msg.Content, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetTranscript returns the ordered transcript of a session.
func (s *Store) GetTranscript(sessionID string) ([]model.SessionMessage, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, role, content, created_at
		 FROM session_messages WHERE session_id = ? ORDER BY id`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var messages []model.SessionMessage
	for rows.Next() {
		var m model.SessionMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
