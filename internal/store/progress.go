package store

import (
	"database/sql"
	"time"

	"github.com/avelot/tutoria/internal/model"
)

// GetAssignment returns the assignment binding a section to a student, or nil.
func (s *Store) GetAssignment(sectionID, studentID int64) (*model.Assignment, error) {
	var a model.Assignment
	err := s.db.QueryRow(
		`SELECT id, section_id, student_id, origin, created_at
		 FROM assignments WHERE section_id = ? AND student_id = ?`,
		sectionID, studentID,
	).Scan(&a.ID, &a.SectionID, &a.StudentID, &a.Origin, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetOrCreateAssignment looks up the assignment for (section, student) and
// synthesizes a self-assignment when none exists. The returned origin tells
// the caller which path was taken; auto-created assignments paper over a
// modeling gap in the assignment subsystem and should stay visible in logs.
func (s *Store) GetOrCreateAssignment(sectionID, studentID int64) (*model.Assignment, error) {
	a, err := s.GetAssignment(sectionID, studentID)
	if err != nil {
		return nil, err
	}
	if a != nil {
		return a, nil
	}

	now := time.Now()
	res, err := s.db.Exec(
		`INSERT INTO assignments (section_id, student_id, origin, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(section_id, student_id) DO NOTHING`,
		sectionID, studentID, model.AssignmentAutoCreated, now,
	)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Lost a race with a concurrent creator; the existing row wins.
		return s.GetAssignment(sectionID, studentID)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &model.Assignment{
		ID:        id,
		SectionID: sectionID,
		StudentID: studentID,
		Origin:    model.AssignmentAutoCreated,
		CreatedAt: now,
	}, nil
}

// CreateAssignment inserts a teacher-made assignment.
func (s *Store) CreateAssignment(a model.Assignment) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO assignments (section_id, student_id, origin, created_at) VALUES (?, ?, ?, ?)`,
		a.SectionID, a.StudentID, model.AssignmentExisting, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpsertSectionProgress records a section score keyed by assignment. A retake
// replaces the previous row, so at most one live score exists per assignment.
func (s *Store) UpsertSectionProgress(p model.SectionProgress) error {
	_, err := s.db.Exec(
		`INSERT INTO section_progress (assignment_id, status, score, time_spent_sec, completed_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(assignment_id) DO UPDATE SET
		   status = excluded.status,
		   score = excluded.score,
		   time_spent_sec = excluded.time_spent_sec,
		   completed_at = excluded.completed_at`,
		p.AssignmentID, p.Status, p.Score, p.TimeSpentSec, p.CompletedAt,
	)
	return err
}

// GetSectionProgress returns the progress row for an assignment, or nil.
func (s *Store) GetSectionProgress(assignmentID int64) (*model.SectionProgress, error) {
	var p model.SectionProgress
	err := s.db.QueryRow(
		`SELECT id, assignment_id, status, score, time_spent_sec, completed_at
		 FROM section_progress WHERE assignment_id = ?`, assignmentID,
	).Scan(&p.ID, &p.AssignmentID, &p.Status, &p.Score, &p.TimeSpentSec, &p.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListCourseProgress returns all progress rows for a student in a course,
// joined with the underlying section so the aggregator can partition by type.
func (s *Store) ListCourseProgress(studentID, courseID int64) ([]model.ProgressRow, error) {
	rows, err := s.db.Query(
		`SELECT p.id, p.assignment_id, p.status, p.score, p.time_spent_sec, p.completed_at,
		        sec.id, sec.type
		 FROM section_progress p
		 JOIN assignments a ON a.id = p.assignment_id
		 JOIN sections sec ON sec.id = a.section_id
		 WHERE a.student_id = ? AND sec.course_id = ?
		 ORDER BY p.id`,
		studentID, courseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ProgressRow
	for rows.Next() {
		var r model.ProgressRow
		if err := rows.Scan(&r.ID, &r.AssignmentID, &r.Status, &r.Score, &r.TimeSpentSec, &r.CompletedAt,
			&r.SectionID, &r.SectionType); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
