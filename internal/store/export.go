package store

import (
	"fmt"

	"github.com/avelot/tutoria/internal/model"
)

// ExportAllResults builds export-ready per-course, per-student assessment
// records: score snapshot, progression, and the activity ledger.
func (s *Store) ExportAllResults() ([]model.CourseResults, error) {
	courses, err := s.ListCourses()
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}

	var out []model.CourseResults
	for _, c := range courses {
		studentIDs, err := s.listAssessedStudents(c.ID)
		if err != nil {
			return nil, fmt.Errorf("list students for course %d: %w", c.ID, err)
		}

		var students []model.StudentCourseResult
		for _, sid := range studentIDs {
			score, err := s.GetStudentCourseScore(sid, c.ID)
			if err != nil {
				return nil, fmt.Errorf("get score (%d, %d): %w", sid, c.ID, err)
			}
			prog, err := s.GetCourseProgression(sid, c.ID)
			if err != nil {
				return nil, fmt.Errorf("get progression (%d, %d): %w", sid, c.ID, err)
			}
			sessions, err := s.ListActivityScores(sid, c.ID)
			if err != nil {
				return nil, fmt.Errorf("list ledger (%d, %d): %w", sid, c.ID, err)
			}

			var username, displayName string
			user, err := s.GetUserByID(sid)
			if err != nil {
				return nil, fmt.Errorf("get user %d: %w", sid, err)
			}
			if user != nil {
				username = user.Username
				displayName = user.DisplayName
			}

			students = append(students, model.StudentCourseResult{
				StudentID:   sid,
				Username:    username,
				DisplayName: displayName,
				Score:       score,
				Progression: prog,
				Sessions:    sessions,
			})
		}

		out = append(out, model.CourseResults{
			CourseID: c.ID,
			Title:    c.Title,
			Subject:  c.Subject,
			Students: students,
		})
	}

	return out, nil
}

// listAssessedStudents returns every student with any assessment signal in the
// course: a score row, a progression row, or a ledger entry.
func (s *Store) listAssessedStudents(courseID int64) ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT student_id FROM student_course_scores WHERE course_id = ?
		 UNION
		 SELECT student_id FROM course_progressions WHERE course_id = ?
		 UNION
		 SELECT student_id FROM activity_scores WHERE course_id = ?
		 ORDER BY student_id`,
		courseID, courseID, courseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
