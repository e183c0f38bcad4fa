package store

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/avelot/tutoria/internal/apperr"
	"github.com/avelot/tutoria/internal/model"
)

// InsertActivityScore appends one ledger entry for an evaluated session. The
// unique session_id constraint enforces at-most-one evaluation per session;
// a second insert for the same session returns ErrDuplicateEvaluation.
func (s *Store) InsertActivityScore(e model.ActivityScoreEntry) (int64, error) {
	strengths, err := json.Marshal(orEmpty(e.Strengths))
	if err != nil {
		return 0, err
	}
	weaknesses, err := json.Marshal(orEmpty(e.Weaknesses))
	if err != nil {
		return 0, err
	}

	res, err := s.db.Exec(
		`INSERT INTO activity_scores
		   (session_id, student_id, course_id, activity_type,
		    comprehension_score, accuracy_score, autonomy_score, final_score,
		    strengths, weaknesses, recommendation, duration_minutes, message_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.StudentID, e.CourseID, e.ActivityType,
		e.ComprehensionScore, e.AccuracyScore, e.AutonomyScore, e.FinalScore,
		string(strengths), string(weaknesses), e.Recommendation, e.DurationMinutes, e.MessageCount,
		time.Now(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, apperr.ErrDuplicateEvaluation
		}
		return 0, err
	}
	return res.LastInsertId()
}

// GetActivityScoreBySession returns the ledger entry for a session, or nil.
func (s *Store) GetActivityScoreBySession(sessionID string) (*model.ActivityScoreEntry, error) {
	row := s.db.QueryRow(
		`SELECT id, session_id, student_id, course_id, activity_type,
		        comprehension_score, accuracy_score, autonomy_score, final_score,
		        strengths, weaknesses, recommendation, duration_minutes, message_count, created_at
		 FROM activity_scores WHERE session_id = ?`, sessionID,
	)
	e, err := scanActivityScore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListActivityScores returns all ledger entries for a student in a course,
// oldest first.
func (s *Store) ListActivityScores(studentID, courseID int64) ([]model.ActivityScoreEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, student_id, course_id, activity_type,
		        comprehension_score, accuracy_score, autonomy_score, final_score,
		        strengths, weaknesses, recommendation, duration_minutes, message_count, created_at
		 FROM activity_scores WHERE student_id = ? AND course_id = ? ORDER BY id`,
		studentID, courseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []model.ActivityScoreEntry
	for rows.Next() {
		e, err := scanActivityScore(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivityScore(row rowScanner) (*model.ActivityScoreEntry, error) {
	var e model.ActivityScoreEntry
	var strengths, weaknesses string
	err := row.Scan(&e.ID, &e.SessionID, &e.StudentID, &e.CourseID, &e.ActivityType,
		&e.ComprehensionScore, &e.AccuracyScore, &e.AutonomyScore, &e.FinalScore,
		&strengths, &weaknesses, &e.Recommendation, &e.DurationMinutes, &e.MessageCount, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(strengths), &e.Strengths); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(weaknesses), &e.Weaknesses); err != nil {
		return nil, err
	}
	return &e, nil
}

func orEmpty(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
