package store

import (
	"database/sql"
	"time"

	"github.com/avelot/tutoria/internal/model"
)

// CreateCourse inserts a new course.
func (s *Store) CreateCourse(c model.Course) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO courses (title, subject, created_at) VALUES (?, ?, ?)`,
		c.Title, c.Subject, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetCourse returns a course by ID, or nil if it does not exist.
func (s *Store) GetCourse(id int64) (*model.Course, error) {
	var c model.Course
	err := s.db.QueryRow(
		`SELECT id, title, subject, created_at FROM courses WHERE id = ?`, id,
	).Scan(&c.ID, &c.Title, &c.Subject, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateSection inserts a section into a course.
func (s *Store) CreateSection(sec model.Section) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO sections (course_id, title, type, position) VALUES (?, ?, ?, ?)`,
		sec.CourseID, sec.Title, sec.Type, sec.Position,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetSection returns a section by ID, or nil if it does not exist.
func (s *Store) GetSection(id int64) (*model.Section, error) {
	var sec model.Section
	err := s.db.QueryRow(
		`SELECT id, course_id, title, type, position FROM sections WHERE id = ?`, id,
	).Scan(&sec.ID, &sec.CourseID, &sec.Title, &sec.Type, &sec.Position)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sec, nil
}

// ListSections returns all sections of a course in display order.
func (s *Store) ListSections(courseID int64) ([]model.Section, error) {
	rows, err := s.db.Query(
		`SELECT id, course_id, title, type, position FROM sections
		 WHERE course_id = ? ORDER BY position, id`, courseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sections []model.Section
	for rows.Next() {
		var sec model.Section
		if err := rows.Scan(&sec.ID, &sec.CourseID, &sec.Title, &sec.Type, &sec.Position); err != nil {
			return nil, err
		}
		sections = append(sections, sec)
	}
	return sections, rows.Err()
}

// CountSections returns the total number of sections in a course, including
// ungraded lesson and video sections.
func (s *Store) CountSections(courseID int64) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sections WHERE course_id = ?`, courseID).Scan(&count)
	return count, err
}

// CountCompletedSections returns how many sections of a course the student has
// completed (status completed or graded).
func (s *Store) CountCompletedSections(studentID, courseID int64) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*)
		 FROM section_progress p
		 JOIN assignments a ON a.id = p.assignment_id
		 JOIN sections sec ON sec.id = a.section_id
		 WHERE a.student_id = ? AND sec.course_id = ? AND p.status IN ('completed', 'graded')`,
		studentID, courseID,
	).Scan(&count)
	return count, err
}

// ListCourses returns all courses.
func (s *Store) ListCourses() ([]model.Course, error) {
	rows, err := s.db.Query(`SELECT id, title, subject, created_at FROM courses ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var courses []model.Course
	for rows.Next() {
		var c model.Course
		if err := rows.Scan(&c.ID, &c.Title, &c.Subject, &c.CreatedAt); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}
